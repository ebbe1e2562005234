// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logprint renders records for a terminal.
package logprint

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logcatparser"
)

const (
	FormatBrief = "brief"
	FormatLong  = "long"
)

var priorityColors = map[ds.Priority]string{
	ds.PriorityVerbose: "#8a8a8a",
	ds.PriorityDebug:   "#5fafd7",
	ds.PriorityInfo:    "#87d787",
	ds.PriorityWarning: "#ffd75f",
	ds.PriorityError:   "#ff5f5f",
	ds.PriorityFatal:   "#ff0087",
	ds.PriorityAssert:  "#ff0087",
}

type Printer struct {
	out      io.Writer
	format   string
	color    bool
	styles   map[ds.Priority]lipgloss.Style
	tagStyle lipgloss.Style
}

func ValidFormat(format string) bool {
	return format == FormatBrief || format == FormatLong
}

// MakePrinter creates a printer for out. An unknown format falls back to brief.
func MakePrinter(out io.Writer, format string, color bool) *Printer {
	if !ValidFormat(format) {
		format = FormatBrief
	}
	p := &Printer{out: out, format: format, color: color}
	if color {
		renderer := lipgloss.NewRenderer(out)
		p.styles = make(map[ds.Priority]lipgloss.Style, len(priorityColors))
		for prio, c := range priorityColors {
			style := renderer.NewStyle().Foreground(lipgloss.Color(c))
			if prio >= ds.PriorityError {
				style = style.Bold(true)
			}
			p.styles[prio] = style
		}
		p.tagStyle = renderer.NewStyle().Bold(true)
	}
	return p
}

func (p *Printer) paint(prio ds.Priority, s string) string {
	if !p.color {
		return s
	}
	return p.styles[prio].Render(s)
}

// Render returns the text for a single record, including the trailing newline(s).
func (p *Printer) Render(rec ds.Record) string {
	if p.format == FormatLong {
		return p.paint(rec.Priority, logcatparser.FormatMetadata(rec)) + "\n" + rec.Message + "\n\n"
	}
	tag := rec.Tag
	if p.color {
		tag = p.tagStyle.Render(tag)
	}
	prefix := fmt.Sprintf("%s/%s(%5s): ", p.paint(rec.Priority, rec.Priority.Letter()), tag, rec.Pid)
	var sb strings.Builder
	for _, line := range strings.Split(rec.Message, "\n") {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (p *Printer) Print(recs []ds.Record) error {
	for _, rec := range recs {
		if _, err := io.WriteString(p.out, p.Render(rec)); err != nil {
			return err
		}
	}
	return nil
}
