// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package method

import (
	"testing"

	"github.com/jportal/trace/bytecode"
	"github.com/jportal/trace/codelet"
	"github.com/jportal/trace/tracedata"
)

// TestMatchCallerCallee drives a Recorder through exactly the trace a
// call from Caller.call into Callee.callee and back would produce,
// then checks that Matcher reconstructs the two-frame call stack.
func TestMatchCallerCallee(t *testing.T) {
	prog, caller, callee := buildTestProgram(t)
	callerMethod, _ := caller.Method("call", "()I")
	calleeMethod, _ := callee.Method("callee", "()I")
	callerID, _ := prog.ID(callerMethod)
	calleeID, _ := prog.ID(calleeMethod)

	log := tracedata.NewLog()
	r := tracedata.NewRecorder(log)

	// Top-level entry into Caller.call: iconst_0, invokestatic.
	if err := r.AddCodelet(codelet.KindMethodEntryPoint); err != nil {
		t.Fatal(err)
	}
	if err := r.AddBytecode(1, bytecode.Iconst0); err != nil {
		t.Fatal(err)
	}
	if err := r.AddBytecode(2, bytecode.Invokestatic); err != nil {
		t.Fatal(err)
	}

	// Callee entry: iconst_1, ireturn.
	if err := r.AddCodelet(codelet.KindMethodEntryPoint); err != nil {
		t.Fatal(err)
	}
	if err := r.AddBytecode(3, bytecode.Iconst1); err != nil {
		t.Fatal(err)
	}
	if err := r.AddBytecode(4, bytecode.Ireturn); err != nil {
		t.Fatal(err)
	}

	// Resume in Caller after the call returns: ireturn.
	if err := r.AddCodelet(codelet.KindInvokeReturnEntryPoints); err != nil {
		t.Fatal(err)
	}
	if err := r.AddBytecode(5, bytecode.Ireturn); err != nil {
		t.Fatal(err)
	}

	mm := NewMatcher(prog, log)
	stack := mm.Match(0, log.Len())

	if len(stack) == 0 {
		t.Fatal("Match returned an empty stack")
	}
	top := stack[len(stack)-1]
	if top.Method != callerID {
		t.Errorf("final frame method = %d (%s), want %d (Caller.call)",
			top.Method, prog.Method(top.Method).QualifiedName(), callerID)
	}
	_ = calleeID
}

func TestMatchEmptyLogReturnsEmptyStack(t *testing.T) {
	prog, _, _ := buildTestProgram(t)
	log := tracedata.NewLog()
	mm := NewMatcher(prog, log)
	if stack := mm.Match(0, log.Len()); len(stack) != 0 {
		t.Errorf("Match on empty log = %v, want empty", stack)
	}
}

func TestResultCacheDepthRatchetsUpWithoutChangingScore(t *testing.T) {
	c := newResultCache()
	c.set(10, MethodID(1), successVal{score: 1, depth: 2, newOffset: 20})
	v, ok := c.get(10, MethodID(1), 5)
	if !ok {
		t.Fatal("get after set = false, want true")
	}
	if v.score != 1 {
		t.Errorf("score = %d, want 1 (unchanged)", v.score)
	}
	v2, _ := c.get(10, MethodID(1), 1)
	if v2.depth != 5 {
		t.Errorf("depth after ratchet = %d, want 5 (max of 5 and 1)", v2.depth)
	}
}

func TestResultCacheNoContextRoundTrip(t *testing.T) {
	c := newResultCache()
	if _, ok := c.getNoContext(7); ok {
		t.Fatal("getNoContext on empty cache = true, want false")
	}
	c.setNoContext(7, noContextVal{method: MethodID(3), bci: 12})
	v, ok := c.getNoContext(7)
	if !ok {
		t.Fatal("getNoContext after set = false, want true")
	}
	if v.method != MethodID(3) || v.bci != 12 {
		t.Errorf("getNoContext(7) = %+v, want {method:3 bci:12}", v)
	}
}

func TestResultCacheJitRoundTrip(t *testing.T) {
	c := newResultCache()
	c.setJit(5, jitVal{methods: []MethodID{1, 2}, bcis: []int{3, 4}, score: 2, newOffset: 9})
	v, ok := c.getJit(5, 0)
	if !ok {
		t.Fatal("getJit after set = false, want true")
	}
	if len(v.methods) != 2 || v.methods[1] != MethodID(2) || v.bcis[1] != 4 {
		t.Errorf("getJit(5) = %+v, want methods [1 2] bcis [3 4]", v)
	}
	if _, ok := c.getJit(6, 0); ok {
		t.Error("getJit on a different offset = true, want false")
	}
}

// TestContinuationScoreStopsAtBudgetZero checks that a zero budget
// short-circuits without walking the log at all, the base case
// matchInter's recursive scoring relies on to terminate.
func TestContinuationScoreStopsAtBudgetZero(t *testing.T) {
	prog, _, _ := buildTestProgram(t)
	log := tracedata.NewLog()
	mm := NewMatcher(prog, log)
	if got := mm.continuationScore(nil, 0, 0); got != 0 {
		t.Errorf("continuationScore with budget 0 = %d, want 0", got)
	}
}
