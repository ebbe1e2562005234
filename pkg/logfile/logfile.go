// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logfile saves and loads records in the same text format the log binary emits.
package logfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexflint/go-filemutex"
	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logcatparser"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

var ErrIO = errors.New("log file i/o error")

const (
	LockFileName  = ".logcatreader.lock"
	ZstdExtension = ".zst"
)

var parser = logcatparser.MakeParser(nil)

func ioErr(op string, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}

// SaveName returns a fresh file name of the form logcat_<yyyyMMdd_HHmmss>_<id>.txt
func SaveName(now time.Time, compress bool) string {
	name := fmt.Sprintf("logcat_%s_%s.txt", now.Format("20060102_150405"), uuid.New().String()[:8])
	if compress {
		name += ZstdExtension
	}
	return name
}

func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ZstdExtension)
}

// Save writes records to path, zstd-compressed when path ends in ".zst".
// Writers in the same directory are serialized through a file mutex.
// A failed write leaves whatever was written so far in place.
func Save(path string, recs []ds.Record) (rtnErr error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ioErr("mkdir", dir, err)
	}
	lockPath := filepath.Join(dir, LockFileName)
	fm, err := filemutex.New(lockPath)
	if err != nil {
		return ioErr("open lock", lockPath, err)
	}
	defer fm.Close()
	if err := fm.Lock(); err != nil {
		return ioErr("lock", lockPath, err)
	}
	defer fm.Unlock()

	fd, err := os.Create(path)
	if err != nil {
		return ioErr("create", path, err)
	}
	defer func() {
		if closeErr := fd.Close(); closeErr != nil && rtnErr == nil {
			rtnErr = ioErr("close", path, closeErr)
		}
	}()
	bufWriter := bufio.NewWriter(fd)
	var writer io.Writer = bufWriter
	var encoder *zstd.Encoder
	if IsCompressed(path) {
		encoder, err = zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return ioErr("compress", path, err)
		}
		writer = encoder
	}
	if err := WriteRecords(writer, recs); err != nil {
		return ioErr("write", path, err)
	}
	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return ioErr("compress", path, err)
		}
	}
	if err := bufWriter.Flush(); err != nil {
		return ioErr("write", path, err)
	}
	return nil
}

// WriteRecords serializes records to w in the live wire format.
func WriteRecords(w io.Writer, recs []ds.Record) error {
	for _, rec := range recs {
		if _, err := io.WriteString(w, logcatparser.Format(rec)); err != nil {
			return err
		}
	}
	return nil
}

// Each parses the file at path and calls fn for every record until fn returns false.
func Each(path string, fn func(rec ds.Record) bool) error {
	fd, err := os.Open(path)
	if err != nil {
		return ioErr("open", path, err)
	}
	defer fd.Close()
	var reader io.Reader = fd
	if IsCompressed(path) {
		decoder, err := zstd.NewReader(fd)
		if err != nil {
			return ioErr("decompress", path, err)
		}
		defer decoder.Close()
		reader = decoder
	}
	var readErr error
	for rec := range parser.ParseReader(reader, func(err error) { readErr = err }) {
		if !fn(rec) {
			break
		}
	}
	if readErr != nil {
		return ioErr("read", path, readErr)
	}
	return nil
}

func Load(path string) ([]ds.Record, error) {
	var rtn []ds.Record
	err := Each(path, func(rec ds.Record) bool {
		rtn = append(rtn, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	return rtn, nil
}
