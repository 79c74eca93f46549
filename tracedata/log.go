// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracedata holds the reconstructed execution trace: an
// append-only log of structural records (bytecode runs, JIT entries,
// method entries, exception and deopt transitions) plus side tables
// that classify each record's data-loss exposure and carry the
// per-thread context-switch history.
//
// The log itself is a flat byte stream tagged with bytecode.Op's
// Pseudo* values: every record opens with one tag byte. A bytecode or
// JIT record follows it with an 8-byte little-endian size/count field
// (a bytecode record then carries that many body bytes); every other
// marker record is the tag byte alone. Structured payloads that don't fit in a byte
// stream (a JIT section reference, a decoded call stack) live in Go
// side tables keyed by the tag byte's log offset instead of being
// embedded as a raw pointer the way the source this was ported from
// does; see DESIGN.md for why.
package tracedata // import "github.com/jportal/trace/tracedata"

import (
	"encoding/binary"
	"fmt"

	"github.com/jportal/trace/bytecode"
	"github.com/jportal/trace/jitimage"
)

// SplitKind classifies how much of a method activation's trace was
// actually captured, relative to a PT buffer-overflow data loss.
type SplitKind int

const (
	// NotSplit is the default: the record is unaffected by any loss.
	NotSplit SplitKind = iota
	// MayLoss marks a record near a context switch where loss cannot
	// be ruled out, but neither head nor tail truncation is certain.
	MayLoss
	// HeadTailLoss marks an activation whose entry and exit are both
	// outside the captured span.
	HeadTailLoss
	// HeadLoss marks an activation whose entry is outside the
	// captured span but whose exit was observed.
	HeadLoss
	// TailLoss marks an activation whose entry was observed but whose
	// exit is outside the captured span.
	TailLoss
	// NoLoss marks an activation observed start to finish.
	NoLoss
)

func (k SplitKind) String() string {
	switch k {
	case NotSplit:
		return "not_split"
	case MayLoss:
		return "may_loss"
	case HeadTailLoss:
		return "head_tail_loss"
	case HeadLoss:
		return "head_loss"
	case TailLoss:
		return "tail_loss"
	case NoLoss:
		return "no_loss"
	default:
		return "unknown"
	}
}

// ThreadSplit is one contiguous span of the log produced by a single
// thread between two context switches.
type ThreadSplit struct {
	TID                    int64
	StartOffset, EndOffset int
	StartTime, EndTime     uint64
	HeadLoss, TailLoss     bool
}

// jitRecord is the side-table payload for a JIT or JIT-entry record:
// the section the record executed in, and the PCStackInfo observed
// at each sample within it.
type jitRecord struct {
	section *jitimage.JitSection
	stacks  []jitimage.PCStackInfo
}

// Log is the append-only trace: the tagged byte stream plus the side
// tables that carry everything that wouldn't fit in it.
type Log struct {
	data []byte

	jitRecords map[int]*jitRecord
	splitKind  map[int]SplitKind
	splitMap   map[int][]int // record offset -> offsets of later pieces of the same activation, lost-and-resumed
	methodDesc map[int]int32 // offset just past a METHOD_ENTRY tag -> method index
	threads    map[int64][]*ThreadSplit
}

// NewLog returns an empty trace log.
func NewLog() *Log {
	return &Log{
		jitRecords: make(map[int]*jitRecord),
		splitKind:  make(map[int]SplitKind),
		splitMap:   make(map[int][]int),
		methodDesc: make(map[int]int32),
		threads:    make(map[int64][]*ThreadSplit),
	}
}

// Len returns the number of bytes in the log.
func (l *Log) Len() int { return len(l.data) }

// SplitKind returns the data-loss classification recorded for the
// record opening at offset, or NotSplit if none was recorded.
func (l *Log) SplitKind(offset int) SplitKind {
	if k, ok := l.splitKind[offset]; ok {
		return k
	}
	return NotSplit
}

// MethodDesc returns the method index AddMethodDesc recorded after a
// METHOD_ENTRY tag, keyed by the offset just past that tag (where the
// method's first bytecode record opens), and whether one was recorded.
func (l *Log) MethodDesc(offset int) (int32, bool) {
	md, ok := l.methodDesc[offset]
	return md, ok
}

// JitRecord returns the JIT side-table entry for the record at
// offset, and whether one exists.
func (l *Log) JitRecord(offset int) (section *jitimage.JitSection, stacks []jitimage.PCStackInfo, ok bool) {
	jr, ok := l.jitRecords[offset]
	if !ok {
		return nil, nil, false
	}
	return jr.section, jr.stacks, true
}

// Threads returns the per-thread ordered switch history for tid.
func (l *Log) Threads(tid int64) []*ThreadSplit {
	return l.threads[tid]
}

// InterChildren returns every record offset that continues the
// activation that opened at loc: loc itself, followed by any later
// pieces the activation was split into across a data loss, oldest
// first. It reports false if loc never opened a record.
func (l *Log) InterChildren(loc int) ([]int, bool) {
	if _, ok := l.splitKind[loc]; !ok {
		return nil, false
	}
	out := append([]int{loc}, l.splitMap[loc]...)
	return out, true
}

// Inter reads the bytecode run opened by the PseudoBytecode record at
// loc. It returns the run's raw bytes (as consumed by RunBlocks), the
// offset of the next record, and whether loc held a well-formed
// record.
func (l *Log) Inter(loc int) (code []byte, newLoc int, ok bool) {
	if loc < 0 || loc >= len(l.data) {
		return nil, loc, false
	}
	if bytecode.Op(l.data[loc]) != bytecode.PseudoBytecode {
		return nil, loc, false
	}
	p := loc + 1
	if p+8 > len(l.data) {
		return nil, loc, false
	}
	size := int(binary.LittleEndian.Uint64(l.data[p : p+8]))
	p += 8
	if size < 0 || p+size > len(l.data) {
		return nil, loc, false
	}
	return l.data[p : p+size], p + size, true
}

// Jit reads the JIT or JIT-entry record at loc: its observed call
// stacks and the section they were sampled in.
func (l *Log) Jit(loc int) (stacks []jitimage.PCStackInfo, section *jitimage.JitSection, newLoc int, ok bool) {
	if loc < 0 || loc >= len(l.data) {
		return nil, nil, loc, false
	}
	op := bytecode.Op(l.data[loc])
	if op != bytecode.PseudoJitcodeEntry && op != bytecode.PseudoJitcode {
		return nil, nil, loc, false
	}
	p := loc + 1
	if p+8 > len(l.data) {
		return nil, nil, loc, false
	}
	p += 8
	jr, ok := l.jitRecords[loc]
	if !ok {
		return nil, nil, p, true
	}
	return jr.stacks, jr.section, p, true
}

// AllThreads returns every thread id with recorded switch history.
func (l *Log) AllThreads() []int64 {
	out := make([]int64, 0, len(l.threads))
	for tid := range l.threads {
		out = append(out, tid)
	}
	return out
}

// Records iterates the log's record stream from a given span,
// reporting one (tag, offset) pair per call to Next.
type Records struct {
	log      *Log
	pos, end int
}

// Records iterates the whole log.
func (l *Log) Records() *Records { return &Records{log: l, pos: 0, end: len(l.data)} }

// RecordsFrom iterates the log starting at begin.
func (l *Log) RecordsFrom(begin int) *Records {
	if begin < 0 || begin > len(l.data) {
		begin = len(l.data)
	}
	return &Records{log: l, pos: begin, end: len(l.data)}
}

// RecordsRange iterates the log over [begin, end).
func (l *Log) RecordsRange(begin, end int) *Records {
	if begin < 0 {
		begin = end
	}
	if end > len(l.data) {
		end = len(l.data)
	}
	return &Records{log: l, pos: begin, end: end}
}

// Next returns the tag and offset of the next record, advancing past
// it. It returns ok == false at the end of the span or on a malformed
// tag byte, in which case err explains which.
func (r *Records) Next() (op bytecode.Op, loc int, ok bool, err error) {
	loc = r.pos
	if r.pos >= r.end {
		return 0, loc, false, nil
	}
	op = bytecode.Op(r.log.data[r.pos])
	if op < bytecode.PseudoBytecode || op > bytecode.PseudoOsrEntryPoints {
		r.pos = r.end
		return 0, loc, false, fmt.Errorf("tracedata: format error at offset %d", loc)
	}
	r.pos++
	switch op {
	case bytecode.PseudoBytecode:
		if r.pos+8 > r.end {
			r.pos = r.end
			return 0, loc, false, fmt.Errorf("tracedata: format error at offset %d", loc)
		}
		size := int(binary.LittleEndian.Uint64(r.log.data[r.pos : r.pos+8]))
		r.pos += 8 + size
	case bytecode.PseudoJitcodeEntry, bytecode.PseudoJitcode:
		if r.pos+8 > r.end {
			r.pos = r.end
			return 0, loc, false, fmt.Errorf("tracedata: format error at offset %d", loc)
		}
		r.pos += 8
	}
	if r.pos > r.end {
		r.pos = r.end
		return 0, loc, false, fmt.Errorf("tracedata: format error at offset %d", loc)
	}
	return op, loc, true, nil
}

// End reports whether the iterator has reached the end of its span.
func (r *Records) End() bool { return r.pos >= r.end }

// Offset returns the iterator's current position.
func (r *Records) Offset() int { return r.pos }
