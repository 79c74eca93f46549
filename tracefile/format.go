// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefile

// fileHeader is the fixed header at the start of a trace-data file,
// describing the tracing machine and how to recover a CPU id from the
// trailer of records that don't carry one structurally.
type fileHeader struct {
	Magic [8]byte

	CPUFamily   uint16
	CPUModel    uint16
	CPUStepping uint16
	_           uint16 // pad

	NrCPUs uint32

	MTCFreq     uint32 // MTC packet frequency
	NominalFreq uint32 // nominal (TSC) frequency

	CPUID15EAX uint32 // cpuid leaf 0x15 EAX
	CPUID15EBX uint32 // cpuid leaf 0x15 EBX

	SampleType SampleFormat // mask describing the trailer of "other" records

	TimeShift uint16
	_         uint16 // pad
	TimeMult  uint32
	TimeZero  uint64

	Addr0FilterA uint64
	Addr0FilterB uint64
}

const fileMagic = "JPTRACE1"

// SampleFormat is a bitmask describing which fields are present in the
// fixed trailer that "any other" record carries, mirroring the
// perf.data sample_id mechanism used to locate a record's owning CPU.
type SampleFormat uint32

const (
	SampleFormatTID SampleFormat = 1 << iota
	SampleFormatTime
	SampleFormatID
	SampleFormatStreamID
	SampleFormatCPU
)

// trailerBytes returns the length in bytes of the fixed trailer that
// follows the type-specific payload of an "other" record.
func (s SampleFormat) trailerBytes() int {
	n := 0
	for _, bit := range []SampleFormat{SampleFormatTID, SampleFormatTime, SampleFormatID, SampleFormatStreamID, SampleFormatCPU} {
		if s&bit != 0 {
			n += 8
		}
	}
	return n
}

// cpuOffset returns the byte offset (from the start of the trailer) of
// the CPU field, or -1 if the trailer carries no CPU field.
func (s SampleFormat) cpuOffset() int {
	if s&SampleFormatCPU == 0 {
		return -1
	}
	off := 0
	for _, bit := range []SampleFormat{SampleFormatTID, SampleFormatTime, SampleFormatID, SampleFormatStreamID} {
		if s&bit != 0 {
			off += 8
		}
	}
	return off
}

// timeOffset returns the byte offset (from the start of the trailer)
// of the Time field, or -1 if the trailer carries no Time field.
func (s SampleFormat) timeOffset() int {
	if s&SampleFormatTime == 0 {
		return -1
	}
	off := 0
	if s&SampleFormatTID != 0 {
		off += 8
	}
	return off
}

// RecordType identifies the kind of a trace-data record.
type RecordType uint32

const (
	// RecordTypeAuxtrace carries size/offset/reference/idx/tid/cpu
	// followed by Size bytes of raw trace data for one CPU.
	RecordTypeAuxtrace RecordType = 1 + iota

	// RecordTypeAuxAdvance signals skipped or lost PT data on a CPU.
	RecordTypeAuxAdvance

	// RecordTypeOther covers any record not otherwise recognized; its
	// CPU id is recovered from the SampleType-dependent trailer.
	RecordTypeOther

	// RecordTypeAux marks a range of the preceding AUXTRACE payload as
	// skipped or truncated (the PERF_AUX_FLAG_TRUNCATED bit of flags).
	RecordTypeAux

	// RecordTypeItraceStart reports the tid that owns the PT stream
	// starting at this point in the file.
	RecordTypeItraceStart

	// RecordTypeSwitch marks a context switch with no payload beyond
	// the SampleType trailer.
	RecordTypeSwitch

	// RecordTypeSwitchCPUWide is RecordTypeSwitch plus the
	// previous/next tid, emitted when profiling is CPU-wide rather
	// than per-thread.
	RecordTypeSwitchCPUWide
)

func (t RecordType) String() string {
	switch t {
	case RecordTypeAuxtrace:
		return "Auxtrace"
	case RecordTypeAuxAdvance:
		return "AuxAdvance"
	case RecordTypeOther:
		return "Other"
	case RecordTypeAux:
		return "Aux"
	case RecordTypeItraceStart:
		return "ItraceStart"
	case RecordTypeSwitch:
		return "Switch"
	case RecordTypeSwitchCPUWide:
		return "SwitchCPUWide"
	default:
		return "Unknown"
	}
}

// recordHeader is the fixed {type, size} prefix of every record.
type recordHeader struct {
	Type RecordType
	Size uint32
}
