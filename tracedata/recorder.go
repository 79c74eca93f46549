// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracedata

import (
	"encoding/binary"
	"fmt"

	"github.com/jportal/trace/bytecode"
	"github.com/jportal/trace/codelet"
	"github.com/jportal/trace/jitimage"
)

// dumpNumber bounds how many recent split points SwitchOut can
// retroactively mark MayLoss, and how many subsequent bytecode
// records SwitchIn's aftermath must be treated as suspect.
const dumpNumber = 5

type dumpPair struct{ top, begin int }

// Recorder appends records to a Log as a decoder walks one PT trace.
// It tracks the state a single record's shape depends on: the kind of
// record currently open, the last bytecode seen, the call stack of
// open method activations, and the bounded history SwitchOut/SwitchIn
// use to flag records near a context switch as possibly lost.
//
// A Recorder is not safe for concurrent use; callers decoding
// multiple threads' traces into the same Log serialize their calls
// (typically by decoding one PT buffer, and therefore one thread's
// span, at a time).
type Recorder struct {
	log *Log

	codeType     bytecode.Op
	bytecodeType bytecode.Op

	loc int // offset of the currently open record's 8-byte size/count field

	lastSection *jitimage.JitSection

	callStack []int

	dumpList []dumpPair
	dumpCnt  int

	currentTime uint64
	thread      *ThreadSplit
}

// NewRecorder returns a Recorder that appends to log.
func NewRecorder(log *Log) *Recorder {
	return &Recorder{
		log:          log,
		codeType:     bytecode.Illegal,
		bytecodeType: bytecode.Illegal,
	}
}

func (r *Recorder) bumpSize() {
	v := binary.LittleEndian.Uint64(r.log.data[r.loc : r.loc+8])
	binary.LittleEndian.PutUint64(r.log.data[r.loc:r.loc+8], v+1)
}

func (r *Recorder) pushDump(top, begin int) {
	r.dumpList = append([]dumpPair{{top, begin}}, r.dumpList...)
	if len(r.dumpList) > dumpNumber {
		r.dumpList = r.dumpList[:dumpNumber]
	}
}

// AddBytecode appends one interpreted bytecode to the trace, opening
// a new PseudoBytecode record first if one isn't already open.
func (r *Recorder) AddBytecode(time uint64, op bytecode.Op) error {
	l := r.log
	r.currentTime = time
	if r.codeType != bytecode.PseudoBytecode {
		begin := len(l.data)
		if r.dumpCnt > 0 {
			l.splitKind[begin] = MayLoss
			r.dumpCnt--
		} else if r.codeType == bytecode.PseudoMethodEntry {
			l.splitKind[begin] = TailLoss
			r.callStack = append(r.callStack, begin)
		} else if len(r.callStack) == 0 {
			l.splitKind[begin] = HeadTailLoss
			r.callStack = append(r.callStack, begin)
		}
		if len(r.callStack) > 0 && r.callStack[len(r.callStack)-1] != begin {
			top := r.callStack[len(r.callStack)-1]
			l.splitMap[top] = append(l.splitMap[top], begin)
			r.pushDump(top, begin)
		} else {
			r.pushDump(begin, begin)
		}

		prevCode := r.codeType
		r.codeType = bytecode.PseudoBytecode
		l.data = append(l.data, byte(r.codeType))
		r.loc = len(l.data)
		l.data = append(l.data, make([]byte, 8)...)

		if prevCode == bytecode.PseudoExceptionHandling {
			l.data = append(l.data, byte(prevCode))
			r.bumpSize()
		}
	}

	l.data = append(l.data, byte(op))
	r.bumpSize()

	if op.IsReturn() {
		if len(r.callStack) > 0 {
			top := r.callStack[len(r.callStack)-1]
			switch l.splitKind[top] {
			case HeadTailLoss:
				l.splitKind[top] = HeadLoss
			case TailLoss:
				l.splitKind[top] = NoLoss
			}
			r.callStack = r.callStack[:len(r.callStack)-1]
		}
		r.codeType = bytecode.Illegal
	}
	r.bytecodeType = op
	return nil
}

// AddBranch appends the observed taken-bit for the branch bytecode
// most recently added. It is an error to call it when the last
// bytecode wasn't a branch, or when no PseudoBytecode record is open.
func (r *Recorder) AddBranch(taken byte) error {
	if !r.bytecodeType.IsBranch() || r.codeType != bytecode.PseudoBytecode {
		return fmt.Errorf("tracedata: add branch on non-branch bytecode %v", r.bytecodeType)
	}
	r.log.data = append(r.log.data, taken)
	r.bumpSize()
	return nil
}

// AddJitcode appends one observed call stack sampled inside section
// to the trace, opening a new PseudoJitcodeEntry/PseudoJitcode record
// first if the code type or section changed since the last sample.
func (r *Recorder) AddJitcode(time uint64, section *jitimage.JitSection, stack jitimage.PCStackInfo, entry bool) error {
	l := r.log
	r.currentTime = time
	needNew := (r.codeType != bytecode.PseudoJitcode && r.codeType != bytecode.PseudoJitcodeEntry) || r.lastSection != section
	var tagOffset int
	if needNew {
		tagOffset = len(l.data)
		if entry {
			r.codeType = bytecode.PseudoJitcodeEntry
		} else {
			r.codeType = bytecode.PseudoJitcode
		}
		l.data = append(l.data, byte(r.codeType))
		r.loc = len(l.data)
		l.data = append(l.data, make([]byte, 8)...)
		r.lastSection = section
		l.jitRecords[tagOffset] = &jitRecord{section: section}
	} else {
		tagOffset = r.loc - 1
	}
	jr := l.jitRecords[tagOffset]
	jr.stacks = append(jr.stacks, stack)
	r.bumpSize()
	r.bytecodeType = bytecode.Illegal
	return nil
}

// AddCodelet records a transition into a non-bytecode interpreter
// codelet: a method entry, an exception or deopt handler, a return
// trampoline, or anything else the codelet registry classified.
func (r *Recorder) AddCodelet(k codelet.Kind) error {
	l := r.log
	r.bytecodeType = bytecode.Illegal
	switch k {
	case codelet.KindMethodEntryPoint:
		r.codeType = bytecode.PseudoMethodEntry
		l.data = append(l.data, byte(r.codeType))
		return nil

	case codelet.KindThrowExceptionEntrypoints, codelet.KindRethrowException:
		if r.codeType == bytecode.PseudoExceptionHandling && len(r.callStack) > 0 {
			r.callStack = r.callStack[:len(r.callStack)-1]
		}
		r.codeType = bytecode.PseudoThrowException
		l.data = append(l.data, byte(r.codeType))
		return nil

	case codelet.KindInvokeReturnEntryPoints:
		if r.codeType == bytecode.PseudoMethodEntry {
			l.data = l.data[:len(l.data)-1]
			r.codeType = bytecode.Illegal
			return nil
		}
		r.codeType = bytecode.PseudoInvokeReturnEntryPoints
		l.data = append(l.data, byte(r.codeType))
		return nil

	case codelet.KindDeoptimizationEntryPoints:
		r.codeType = bytecode.PseudoDeoptimizationEntryPoints
		l.data = append(l.data, byte(r.codeType))
		r.callStack = r.callStack[:0]
		return nil

	case codelet.KindExceptionHandling:
		r.codeType = bytecode.PseudoExceptionHandling
		l.data = append(l.data, byte(r.codeType))
		return nil

	case codelet.KindResultHandlersForNativeCalls:
		if r.codeType == bytecode.PseudoMethodEntry {
			l.data = l.data[:len(l.data)-1]
		}
		r.codeType = bytecode.Illegal
		return nil

	default:
		r.codeType = bytecode.Illegal
		r.callStack = r.callStack[:0]
		return nil
	}
}

// AddMethodDesc records which method a just-opened METHOD_ENTRY
// record belongs to. It's a no-op if no METHOD_ENTRY record is open.
func (r *Recorder) AddMethodDesc(methodIndex int32) {
	if r.codeType == bytecode.PseudoMethodEntry {
		r.log.methodDesc[len(r.log.data)] = methodIndex
	}
}

// AddOSREntry records an on-stack-replacement transition taken off
// the last bytecode, which must have been a goto or a conditional
// branch. It's a no-op otherwise.
func (r *Recorder) AddOSREntry() error {
	if r.bytecodeType != bytecode.Goto && r.bytecodeType != bytecode.GotoW && !r.bytecodeType.IsBranch() {
		return nil
	}
	r.codeType = bytecode.PseudoOsrEntryPoints
	r.bytecodeType = bytecode.Illegal
	r.log.data = append(r.log.data, byte(r.codeType))
	if len(r.callStack) > 0 {
		r.callStack = r.callStack[:len(r.callStack)-1]
	}
	return nil
}

// SwitchOut closes the thread currently being recorded: it
// retroactively flags the most recent split points as MayLoss, arms
// (when there are any) a budget that marks the next dumpNumber
// bytecode records after the following SwitchIn as MayLoss too, and
// finalizes the ThreadSplit with TailLoss set to loss (true when the
// PT trace was stopped mid-stream).
func (r *Recorder) SwitchOut(loss bool) {
	l := r.log
	if len(r.dumpList) > 0 {
		r.dumpCnt = dumpNumber
	}
	for _, p := range r.dumpList {
		children, ok := l.splitMap[p.top]
		if !ok || len(children) == 0 {
			continue
		}
		l.splitMap[p.top] = children[:len(children)-1]
		l.splitKind[p.begin] = MayLoss
	}
	r.dumpList = nil
	r.callStack = r.callStack[:0]
	r.codeType = bytecode.Illegal
	r.bytecodeType = bytecode.Illegal
	if r.thread != nil {
		r.thread.EndOffset = len(l.data)
		r.thread.EndTime = r.currentTime
		r.thread.TailLoss = loss
	}
	r.thread = nil
}

// SwitchIn begins (or resumes) recording tid's trace at time, opening
// a new ThreadSplit ordered into tid's history by start time. loss
// marks that the switch itself arrives with data already missing.
func (r *Recorder) SwitchIn(tid int64, time uint64, loss bool) {
	l := r.log
	if r.thread != nil && r.thread.TID == tid && !loss {
		return
	}
	r.currentTime = time

	lst := l.threads[tid]
	insertAt := len(lst)
	for i, ts := range lst {
		if time < ts.StartTime {
			insertAt = i
			break
		}
	}
	ts := &ThreadSplit{TID: tid, StartOffset: len(l.data), EndOffset: -1, StartTime: time, EndTime: time}
	lst = append(lst, nil)
	copy(lst[insertAt+1:], lst[insertAt:])
	lst[insertAt] = ts
	l.threads[tid] = lst

	r.thread = ts
	r.thread.HeadLoss = loss
	r.callStack = r.callStack[:0]
	r.codeType = bytecode.Illegal
	r.bytecodeType = bytecode.Illegal
}
