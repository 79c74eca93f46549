// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record is the interface implemented by every trace-data record type.
type Record interface {
	Type() RecordType
}

// RecordAuxtrace carries a block of raw PT bytes for one CPU.
type RecordAuxtrace struct {
	Size      uint64
	Offset    uint64
	Reference uint64
	Idx       uint32
	TID       int
	CPU       int

	// Data is the raw PT byte payload for CPU.
	Data []byte
}

func (r *RecordAuxtrace) Type() RecordType { return RecordTypeAuxtrace }

// RecordAuxAdvance signals that PT data was skipped or lost on CPU.
type RecordAuxAdvance struct {
	CPU int
	TID int
}

func (r *RecordAuxAdvance) Type() RecordType { return RecordTypeAuxAdvance }

// RecordOther is any record type the core does not need to interpret
// structurally, but whose owning CPU must still be recovered to bucket
// sideband events.
type RecordOther struct {
	RawType uint32
	CPU     int
	Raw     []byte
}

func (r *RecordOther) Type() RecordType { return RecordTypeOther }

// auxFlagTruncated is PERF_AUX_FLAG_TRUNCATED: the AUX area's ring
// buffer wrapped before the kernel emitted this record, losing bytes
// at the start of the range it describes.
const auxFlagTruncated = 1 << 0

// RecordAux marks [Offset, Offset+Size) of the owning CPU's AUXTRACE
// payload as having been delivered; Truncated reports data loss.
type RecordAux struct {
	CPU       int
	Time      uint64
	Offset    uint64
	Size      uint64
	Truncated bool
}

func (r *RecordAux) Type() RecordType { return RecordTypeAux }

// RecordItraceStart reports the tid whose instructions the PT stream
// starting here belongs to.
type RecordItraceStart struct {
	CPU  int
	Time uint64
	PID  int
	TID  int
}

func (r *RecordItraceStart) Type() RecordType { return RecordTypeItraceStart }

// RecordSwitch marks a context switch on CPU with no further payload.
type RecordSwitch struct {
	CPU  int
	Time uint64
}

func (r *RecordSwitch) Type() RecordType { return RecordTypeSwitch }

// RecordSwitchCPUWide is RecordSwitch plus the tid being switched
// away from (NextPrevTID), emitted under CPU-wide profiling.
type RecordSwitchCPUWide struct {
	CPU         int
	Time        uint64
	NextPrevPID int
	NextPrevTID int
}

func (r *RecordSwitchCPUWide) Type() RecordType { return RecordTypeSwitchCPUWide }

// Records is an iterator over the records in a trace-data file.
//
//	rs := file.Records()
//	for rs.Next() {
//		switch r := rs.Record.(type) {
//		...
//		}
//	}
//	if rs.Err() != nil { ... }
type Records struct {
	f   *File
	sr  *bufferedSectionReader
	err error

	Record Record

	buf []byte

	recAuxtrace    RecordAuxtrace
	recAdvance     RecordAuxAdvance
	recOther       RecordOther
	recAux         RecordAux
	recItraceStart RecordItraceStart
	recSwitch      RecordSwitch
	recSwitchWide  RecordSwitchCPUWide
}

func (r *Records) Err() error {
	return r.err
}

// Next fetches the next record into r.Record. The record may be reused
// by later calls, so callers needing to retain it must copy.
func (r *Records) Next() bool {
	if r.err != nil {
		return false
	}

	var hdr recordHeader
	if err := binary.Read(r.sr, binary.LittleEndian, &hdr); err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	rlen := int(hdr.Size)
	if rlen > len(r.buf) {
		r.buf = make([]byte, rlen)
	}
	bd := &bufDecoder{r.buf[:rlen], binary.LittleEndian}
	if _, err := io.ReadFull(r.sr, bd.buf); err != nil {
		r.err = fmt.Errorf("%w: short record: %v", ErrBadInput, err)
		return false
	}

	switch hdr.Type {
	case RecordTypeAuxtrace:
		r.Record = r.parseAuxtrace(bd)
	case RecordTypeAuxAdvance:
		r.Record = r.parseAuxAdvance(bd)
	case RecordTypeAux:
		r.Record = r.parseAux(bd)
	case RecordTypeItraceStart:
		r.Record = r.parseItraceStart(bd)
	case RecordTypeSwitch:
		r.Record = r.parseSwitch(bd)
	case RecordTypeSwitchCPUWide:
		r.Record = r.parseSwitchCPUWide(bd)
	default:
		r.Record = r.parseOther(bd, uint32(hdr.Type))
	}
	return r.err == nil
}

// trailerCPU recovers the owning CPU id from the SampleType-dependent
// fixed trailer following payload, the same convention parseOther
// uses for unrecognized record types.
func (r *Records) trailerCPU(payload []byte) int {
	trailer := r.f.Header.SampleType.trailerBytes()
	off := r.f.Header.SampleType.cpuOffset()
	if off < 0 || trailer > len(payload) {
		return -1
	}
	tb := payload[len(payload)-trailer:]
	if off+4 > len(tb) {
		return -1
	}
	return int(binary.LittleEndian.Uint32(tb[off:]))
}

// trailerTime recovers a record's SampleType-dependent timestamp from
// its trailer, or 0 if SampleType carries no Time field.
func (r *Records) trailerTime(payload []byte) uint64 {
	trailer := r.f.Header.SampleType.trailerBytes()
	off := r.f.Header.SampleType.timeOffset()
	if off < 0 || trailer > len(payload) {
		return 0
	}
	tb := payload[len(payload)-trailer:]
	if off+8 > len(tb) {
		return 0
	}
	return binary.LittleEndian.Uint64(tb[off:])
}

func (r *Records) parseAux(bd *bufDecoder) Record {
	o := &r.recAux
	o.CPU = r.trailerCPU(bd.buf)
	o.Time = r.trailerTime(bd.buf)
	o.Offset = bd.u64()
	o.Size = bd.u64()
	flags := bd.u64()
	o.Truncated = flags&auxFlagTruncated != 0
	return o
}

func (r *Records) parseItraceStart(bd *bufDecoder) Record {
	o := &r.recItraceStart
	o.CPU = r.trailerCPU(bd.buf)
	o.Time = r.trailerTime(bd.buf)
	o.PID = int(bd.i32())
	o.TID = int(bd.i32())
	return o
}

func (r *Records) parseSwitch(bd *bufDecoder) Record {
	o := &r.recSwitch
	o.CPU = r.trailerCPU(bd.buf)
	o.Time = r.trailerTime(bd.buf)
	return o
}

func (r *Records) parseSwitchCPUWide(bd *bufDecoder) Record {
	o := &r.recSwitchWide
	o.CPU = r.trailerCPU(bd.buf)
	o.Time = r.trailerTime(bd.buf)
	o.NextPrevPID = int(bd.i32())
	o.NextPrevTID = int(bd.i32())
	return o
}

func (r *Records) parseAuxtrace(bd *bufDecoder) Record {
	o := &r.recAuxtrace
	o.Size = bd.u64()
	o.Offset = bd.u64()
	o.Reference = bd.u64()
	o.Idx = bd.u32()
	o.TID = int(bd.i32())
	o.CPU = int(bd.i32())
	bd.skip(4) // reserved

	if uint64(len(bd.buf)) < o.Size {
		r.err = fmt.Errorf("%w: auxtrace record truncated: want %d have %d", ErrBadInput, o.Size, len(bd.buf))
		return o
	}
	if cap(o.Data) < int(o.Size) {
		o.Data = make([]byte, o.Size)
	} else {
		o.Data = o.Data[:o.Size]
	}
	copy(o.Data, bd.buf)
	return o
}

func (r *Records) parseAuxAdvance(bd *bufDecoder) Record {
	o := &r.recAdvance
	o.CPU = int(bd.i32())
	o.TID = int(bd.i32())
	return o
}

func (r *Records) parseOther(bd *bufDecoder, rawType uint32) Record {
	o := &r.recOther
	o.RawType = rawType

	trailer := r.f.Header.SampleType.trailerBytes()
	cpu := -1
	if off := r.f.Header.SampleType.cpuOffset(); off >= 0 && trailer <= len(bd.buf) {
		tb := bd.buf[len(bd.buf)-trailer:]
		if off+4 <= len(tb) {
			cpu = int(binary.LittleEndian.Uint32(tb[off:]))
		}
	}
	o.CPU = cpu
	if cap(o.Raw) < len(bd.buf) {
		o.Raw = make([]byte, len(bd.buf))
	} else {
		o.Raw = o.Raw[:len(bd.buf)]
	}
	copy(o.Raw, bd.buf)
	return o
}
