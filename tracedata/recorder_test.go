// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracedata

import (
	"testing"

	"github.com/jportal/trace/bytecode"
	"github.com/jportal/trace/codelet"
	"github.com/jportal/trace/jitimage"
)

func TestRecorderBytecodeRoundTrip(t *testing.T) {
	log := NewLog()
	rec := NewRecorder(log)

	begin := log.Len()
	if err := rec.AddBytecode(1, bytecode.Iconst0); err != nil {
		t.Fatal(err)
	}
	if err := rec.AddBytecode(2, bytecode.Ifeq); err != nil {
		t.Fatal(err)
	}
	if err := rec.AddBranch(1); err != nil {
		t.Fatal(err)
	}
	if err := rec.AddBytecode(3, bytecode.Ireturn); err != nil {
		t.Fatal(err)
	}

	code, newLoc, ok := log.Inter(begin)
	if !ok {
		t.Fatal("Inter: ok = false")
	}
	want := []byte{byte(bytecode.Iconst0), byte(bytecode.Ifeq), 1, byte(bytecode.Ireturn)}
	if len(code) != len(want) {
		t.Fatalf("code = %v, want %v", code, want)
	}
	for i := range want {
		if code[i] != want[i] {
			t.Fatalf("code = %v, want %v", code, want)
		}
	}
	if newLoc != log.Len() {
		t.Errorf("newLoc = %d, want %d", newLoc, log.Len())
	}

	recs := log.RecordsFrom(begin)
	op, loc, ok, err := recs.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v, %v", op, loc, ok, err)
	}
	if op != bytecode.PseudoBytecode || loc != begin {
		t.Errorf("op = %v loc = %d, want PseudoBytecode at %d", op, loc, begin)
	}
	if !recs.End() {
		t.Error("expected a single record to exhaust the iterator")
	}
}

func TestRecorderMethodEntryAndDesc(t *testing.T) {
	log := NewLog()
	rec := NewRecorder(log)

	if err := rec.AddCodelet(codelet.KindMethodEntryPoint); err != nil {
		t.Fatal(err)
	}
	rec.AddMethodDesc(42)

	begin := log.Len()
	if err := rec.AddBytecode(1, bytecode.Iconst0); err != nil {
		t.Fatal(err)
	}
	if err := rec.AddBytecode(2, bytecode.Ireturn); err != nil {
		t.Fatal(err)
	}

	md, ok := log.MethodDesc(begin)
	if !ok || md != 42 {
		t.Fatalf("MethodDesc(%d) = %d, %v, want 42, true", begin, md, ok)
	}
	if kind := log.SplitKind(begin); kind != NoLoss {
		t.Errorf("SplitKind = %v, want NoLoss (entry seen, return seen)", kind)
	}
}

func TestRecorderHeadLossOnMidStreamEntry(t *testing.T) {
	log := NewLog()
	rec := NewRecorder(log)

	// No METHOD_ENTRY precedes this bytecode: the activation's entry
	// was never observed.
	begin := log.Len()
	if err := rec.AddBytecode(1, bytecode.Iconst0); err != nil {
		t.Fatal(err)
	}
	if kind := log.SplitKind(begin); kind != HeadTailLoss {
		t.Fatalf("SplitKind = %v, want HeadTailLoss before return", kind)
	}
	if err := rec.AddBytecode(2, bytecode.Ireturn); err != nil {
		t.Fatal(err)
	}
	if kind := log.SplitKind(begin); kind != HeadLoss {
		t.Errorf("SplitKind = %v, want HeadLoss after return", kind)
	}
}

func TestRecorderJitcodeGroupsBySection(t *testing.T) {
	log := NewLog()
	rec := NewRecorder(log)

	sec, err := jitimage.NewJitSection("m", []byte{0x90, 0x90}, 0x1000, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	begin := log.Len()
	if err := rec.AddJitcode(1, sec, jitimage.PCStackInfo{PC: 0x1000}, true); err != nil {
		t.Fatal(err)
	}
	if err := rec.AddJitcode(2, sec, jitimage.PCStackInfo{PC: 0x1001}, true); err != nil {
		t.Fatal(err)
	}

	stacks, gotSec, newLoc, ok := log.Jit(begin)
	if !ok {
		t.Fatal("Jit: ok = false")
	}
	if gotSec != sec {
		t.Error("Jit returned the wrong section")
	}
	if len(stacks) != 2 {
		t.Fatalf("len(stacks) = %d, want 2 (same section, one record)", len(stacks))
	}
	if newLoc != log.Len() {
		t.Errorf("newLoc = %d, want %d", newLoc, log.Len())
	}

	// A different section opens a second record.
	sec2, err := jitimage.NewJitSection("n", []byte{0x90}, 0x2000, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	second := log.Len()
	if err := rec.AddJitcode(3, sec2, jitimage.PCStackInfo{PC: 0x2000}, false); err != nil {
		t.Fatal(err)
	}
	if _, ok := log.MethodDesc(second); ok {
		t.Error("unexpected method desc on a jit record")
	}
	_, gotSec2, _, ok := log.Jit(second)
	if !ok || gotSec2 != sec2 {
		t.Errorf("Jit(second) section = %v, want %v", gotSec2, sec2)
	}
}

func TestRecorderInvokeReturnRollsBackLoneMethodEntry(t *testing.T) {
	log := NewLog()
	rec := NewRecorder(log)

	before := log.Len()
	if err := rec.AddCodelet(codelet.KindMethodEntryPoint); err != nil {
		t.Fatal(err)
	}
	if log.Len() != before+1 {
		t.Fatalf("log.Len() = %d, want %d after a bare METHOD_ENTRY tag", log.Len(), before+1)
	}
	if err := rec.AddCodelet(codelet.KindInvokeReturnEntryPoints); err != nil {
		t.Fatal(err)
	}
	if log.Len() != before {
		t.Errorf("log.Len() = %d, want %d: lone METHOD_ENTRY should be rolled back", log.Len(), before)
	}
}

func TestRecorderSwitchOutMarksRecentMayLoss(t *testing.T) {
	log := NewLog()
	rec := NewRecorder(log)

	// Open the activation's first record (after a METHOD_ENTRY, so it's
	// classified TailLoss and pushed as the call-stack top).
	if err := rec.AddCodelet(codelet.KindMethodEntryPoint); err != nil {
		t.Fatal(err)
	}
	if err := rec.AddBytecode(1, bytecode.Iconst0); err != nil {
		t.Fatal(err)
	}
	// An exception-handling codelet interrupts the run without
	// returning, so the next bytecode opens a second, continuation
	// record under the same still-open call-stack top.
	if err := rec.AddCodelet(codelet.KindExceptionHandling); err != nil {
		t.Fatal(err)
	}
	continuation := log.Len()
	if err := rec.AddBytecode(2, bytecode.Iconst1); err != nil {
		t.Fatal(err)
	}

	rec.SwitchOut(true)

	if kind := log.SplitKind(continuation); kind != MayLoss {
		t.Errorf("SplitKind(continuation) = %v, want MayLoss after switch-out under loss", kind)
	}
	rec.SwitchIn(1, 10, false)
	rec.SwitchIn(7, 20, false)
	threads := log.Threads(7)
	if len(threads) != 1 || threads[0].StartTime != 20 {
		t.Fatalf("Threads(7) = %+v, want one split starting at time 20", threads)
	}
}

func TestRecorderSwitchInOrdersByTime(t *testing.T) {
	log := NewLog()
	rec := NewRecorder(log)

	rec.SwitchIn(5, 100, false)
	rec.SwitchOut(false)
	rec.SwitchIn(5, 50, false)
	rec.SwitchOut(false)

	splits := log.Threads(5)
	if len(splits) != 2 {
		t.Fatalf("len(splits) = %d, want 2", len(splits))
	}
	if splits[0].StartTime != 50 || splits[1].StartTime != 100 {
		t.Errorf("splits = %+v, want ascending start times [50, 100]", splits)
	}
}
