// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ErrBadInput is returned for malformed trace-data input. Callers
// abort the affected chunk or file, not the whole decode.
var ErrBadInput = errors.New("tracefile: bad input")

// A File is a trace-data file: a fixed header plus a sequence of
// records, retrieved in order with File.Records.
type File struct {
	Header Header

	r      io.Reader
	closer io.Closer
}

// Header is the decoded form of the trace-data file's fixed header.
type Header struct {
	CPUFamily, CPUModel, CPUStepping uint16
	NrCPUs                          int
	MTCFreq, NominalFreq            uint32
	CPUID15EAX, CPUID15EBX          uint32
	SampleType                      SampleFormat
	TimeShift                       uint16
	TimeMult                        uint32
	TimeZero                        uint64
	Addr0FilterA, Addr0FilterB      uint64
}

// New reads a trace-data file from r. If compressed is true, r is
// assumed to be zstd-compressed and is transparently decompressed.
//
// The caller must keep r open as long as it is using the returned
// *File if it later calls Close via Open; New itself never closes r.
func New(r io.Reader, compressed bool) (*File, error) {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("tracefile: opening zstd stream: %w", err)
		}
		r = zr.IOReadCloser()
	}

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("tracefile: reading header: %w", err)
	}
	if string(hdr.Magic[:]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadInput, hdr.Magic[:])
	}

	f := &File{
		Header: Header{
			CPUFamily:    hdr.CPUFamily,
			CPUModel:     hdr.CPUModel,
			CPUStepping:  hdr.CPUStepping,
			NrCPUs:       int(hdr.NrCPUs),
			MTCFreq:      hdr.MTCFreq,
			NominalFreq:  hdr.NominalFreq,
			CPUID15EAX:   hdr.CPUID15EAX,
			CPUID15EBX:   hdr.CPUID15EBX,
			SampleType:   hdr.SampleType,
			TimeShift:    hdr.TimeShift,
			TimeMult:     hdr.TimeMult,
			TimeZero:     hdr.TimeZero,
			Addr0FilterA: hdr.Addr0FilterA,
			Addr0FilterB: hdr.Addr0FilterB,
		},
		r: r,
	}
	return f, nil
}

// Open opens the named trace-data file using os.Open. compressed has
// the same meaning as in New.
func Open(name string, compressed bool) (*File, error) {
	fh, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	f, err := New(fh, compressed)
	if err != nil {
		fh.Close()
		return nil, err
	}
	f.closer = fh
	return f, nil
}

// Close closes the File, if it was created with Open.
func (f *File) Close() error {
	if f.closer != nil {
		err := f.closer.Close()
		f.closer = nil
		return err
	}
	return nil
}

// Records returns an iterator over the records in the file, in file
// order. The trace splitter is the only caller that needs more than
// file order, and it buckets by CPU itself.
func (f *File) Records() *Records {
	return &Records{f: f, sr: newBufferedSectionReader(f.r)}
}
