// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilfn

import (
	"bytes"
	"errors"
	"io"
	"iter"
)

// MaxLineLength caps a single line; the remainder of a longer line is discarded.
const MaxLineLength = 64 * 1024

const readChunkSize = 32 * 1024

// LineBuf splits a byte stream into lines. Partial lines are retained between calls.
type LineBuf struct {
	buf        []byte
	inLongLine bool
}

func MakeLineBuf() *LineBuf {
	return &LineBuf{
		buf: make([]byte, 0, 1024),
	}
}

// GetPartialAndReset returns the buffered partial line (without terminator) and resets the buffer.
func (lb *LineBuf) GetPartialAndReset() string {
	rtn := string(bytes.TrimSuffix(lb.buf, []byte{'\r'}))
	lb.buf = lb.buf[:0]
	lb.inLongLine = false
	return rtn
}

// ProcessBuf consumes readBuf and returns the completed lines with "\n" and "\r\n" stripped.
func (lb *LineBuf) ProcessBuf(readBuf []byte) (lines []string) {
	var pos int
	for pos < len(readBuf) {
		if lb.inLongLine {
			nlIdx := bytes.IndexByte(readBuf[pos:], '\n')
			if nlIdx == -1 {
				return
			}
			pos = pos + nlIdx + 1
			lb.inLongLine = false
			continue
		}
		nlIdx := bytes.IndexByte(readBuf[pos:], '\n')
		var chunk []byte
		if nlIdx == -1 {
			chunk = readBuf[pos:]
		} else {
			chunk = readBuf[pos : pos+nlIdx]
		}
		room := MaxLineLength - len(lb.buf)
		if len(chunk) >= room {
			lb.buf = append(lb.buf, chunk[:room]...)
			lines = append(lines, lb.GetPartialAndReset())
			if nlIdx == -1 {
				lb.inLongLine = true
				return
			}
			pos = pos + nlIdx + 1
			continue
		}
		lb.buf = append(lb.buf, chunk...)
		if nlIdx == -1 {
			return
		}
		lines = append(lines, lb.GetPartialAndReset())
		pos = pos + nlIdx + 1
	}
	return
}

// ReadLines yields every line read from r. A final unterminated line is yielded at EOF.
// A read error other than EOF is yielded once with an empty line and ends the sequence.
func ReadLines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		lb := MakeLineBuf()
		readBuf := make([]byte, readChunkSize)
		for {
			n, err := r.Read(readBuf)
			if n > 0 {
				for _, line := range lb.ProcessBuf(readBuf[:n]) {
					if !yield(line, nil) {
						return
					}
				}
			}
			if err != nil {
				if len(lb.buf) > 0 {
					if !yield(lb.GetPartialAndReset(), nil) {
						return
					}
				}
				if !errors.Is(err, io.EOF) {
					yield("", err)
				}
				return
			}
		}
	}
}
