// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package method

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jportal/trace/classfile"
)

func buildTestProgram(t *testing.T) (*Program, *classfile.Class, *classfile.Class) {
	t.Helper()
	caller := buildCallerClass(t)
	callee := buildCalleeClass(t)
	return NewProgram([]*classfile.Class{caller, callee}), caller, callee
}

func TestBuildCallGraphResolvesInvokeSite(t *testing.T) {
	prog, caller, callee := buildTestProgram(t)

	callerMethod, _ := caller.Method("call", "()I")
	calleeMethod, _ := callee.Method("callee", "()I")
	callerID, _ := prog.ID(callerMethod)
	calleeID, _ := prog.ID(calleeMethod)

	edges := prog.Callers(calleeID)
	if len(edges) != 1 {
		t.Fatalf("Callers(callee) = %d edges, want 1", len(edges))
	}
	if edges[0].Caller != callerID {
		t.Errorf("edge.Caller = %d, want %d", edges[0].Caller, callerID)
	}

	cands := prog.Callees(callerID, edges[0].Offset)
	if len(cands) != 1 || cands[0] != calleeID {
		t.Errorf("Callees(caller, %d) = %v, want [%d]", edges[0].Offset, cands, calleeID)
	}
}

func TestFindResolvesByNameAndDescriptor(t *testing.T) {
	prog, _, _ := buildTestProgram(t)
	id, ok := prog.Find("Callee", "callee", "()I")
	if !ok {
		t.Fatal("Find(Callee.callee) = false, want true")
	}
	if prog.Method(id).Name != "callee" {
		t.Errorf("Method(id).Name = %q, want callee", prog.Method(id).Name)
	}
	if _, ok := prog.Find("Nonexistent", "x", "()V"); ok {
		t.Error("Find(Nonexistent.x) = true, want false")
	}
}

func TestWriteCallGraph(t *testing.T) {
	prog, _, _ := buildTestProgram(t)
	var buf bytes.Buffer
	if err := prog.WriteCallGraph(&buf); err != nil {
		t.Fatalf("WriteCallGraph: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Caller.call()I -> Callee.callee()I [") {
		t.Errorf("WriteCallGraph output = %q, missing expected edge line", out)
	}
}

func TestSetCallbacksResolvesKnownMethods(t *testing.T) {
	prog, _, _ := buildTestProgram(t)
	prog.SetCallbacks([][3]string{{"Callee", "callee", "()I"}, {"Missing", "x", "()V"}})
	if len(prog.Callbacks) != 1 {
		t.Fatalf("len(Callbacks) = %d, want 1 (unresolvable entry dropped)", len(prog.Callbacks))
	}
}
