// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import (
	"testing"

	"github.com/jportal/trace/bytecode"
	"github.com/jportal/trace/classfile"
)

// method builds a classfile.Method around raw code for testing without
// going through the classfile parser.
func method(code []byte) *classfile.Method {
	return &classfile.Method{Code: code}
}

func TestGraphBuildIfeq(t *testing.T) {
	code := []byte{
		byte(bytecode.Iconst0), // 0
		byte(bytecode.Ifeq), 0x00, 0x04, // 1: target = 1+4 = 5
		byte(bytecode.Iconst1), // 4
		byte(bytecode.Ireturn), // 5
	}
	g := NewGraph(method(code))
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}

	if len(g.Blocks) != 3 {
		t.Fatalf("len(Blocks) = %d, want 3", len(g.Blocks))
	}

	b0 := g.Block(0)
	if b0 == nil || b0.EndOffset != 4 {
		t.Fatalf("block at 0 = %+v, want EndOffset 4", b0)
	}
	if len(b0.Succs) != 2 || b0.Succs[0].BeginOffset != 4 || b0.Succs[1].BeginOffset != 5 {
		t.Fatalf("block 0 succs = %v, want [4, 5]", succOffsets(b0))
	}

	b1 := g.Block(4)
	if b1 == nil || b1.EndOffset != 5 {
		t.Fatalf("block at 4 = %+v, want EndOffset 5", b1)
	}
	if len(b1.Succs) != 1 || b1.Succs[0].BeginOffset != 5 {
		t.Fatalf("block 1 succs = %v, want [5]", succOffsets(b1))
	}

	b2 := g.Block(5)
	if b2 == nil || b2.EndOffset != 6 {
		t.Fatalf("block at 5 = %+v, want EndOffset 6", b2)
	}
	if len(b2.Succs) != 0 {
		t.Fatalf("block 2 succs = %v, want none", succOffsets(b2))
	}
	if len(b2.Preds) != 2 || b2.Preds[0] != b0 || b2.Preds[1] != b1 {
		t.Fatalf("block 2 preds = %v, want [block0, block1]", b2.Preds)
	}
}

func succOffsets(b *CFGBlock) []int {
	out := make([]int, len(b.Succs))
	for i, s := range b.Succs {
		out[i] = s.BeginOffset
	}
	return out
}

func TestGraphBuildBCT(t *testing.T) {
	code := []byte{
		byte(bytecode.Iconst0),
		byte(bytecode.Ifeq), 0x00, 0x04,
		byte(bytecode.Iconst1),
		byte(bytecode.Ireturn),
	}
	g := NewGraph(method(code))
	if err := g.BuildBCT(); err != nil {
		t.Fatal(err)
	}

	want := []byte{byte(bytecode.Iconst0), byte(bytecode.Ifeq), byte(bytecode.Iconst1), byte(bytecode.Ireturn)}
	if len(g.BCTCode) != len(want) {
		t.Fatalf("BCTCode = %v, want %v", g.BCTCode, want)
	}
	for i := range want {
		if g.BCTCode[i] != want[i] {
			t.Fatalf("BCTCode = %v, want %v", g.BCTCode, want)
		}
	}

	if len(g.BCTBlocks) != 3 {
		t.Fatalf("len(BCTBlocks) = %d, want 3", len(g.BCTBlocks))
	}
	if g.BCTBlocks[0].Begin != 0 || g.BCTBlocks[0].End != 2 {
		t.Errorf("BCTBlocks[0] = [%d,%d), want [0,2)", g.BCTBlocks[0].Begin, g.BCTBlocks[0].End)
	}
	if g.BCTBlocks[1].Begin != 2 || g.BCTBlocks[1].End != 3 {
		t.Errorf("BCTBlocks[1] = [%d,%d), want [2,3)", g.BCTBlocks[1].Begin, g.BCTBlocks[1].End)
	}
	if g.BCTBlocks[2].Begin != 3 || g.BCTBlocks[2].End != 4 {
		t.Errorf("BCTBlocks[2] = [%d,%d), want [3,4)", g.BCTBlocks[2].Begin, g.BCTBlocks[2].End)
	}
}

func TestGraphInvokeSplitsBlock(t *testing.T) {
	code := []byte{
		byte(bytecode.Invokestatic), 0x00, 0x01, // 0
		byte(bytecode.Return), // 3
	}
	g := NewGraph(method(code))
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}
	if len(g.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(g.Blocks))
	}
	site, ok := g.Sites[1]
	if !ok {
		t.Fatal("expected a call site recorded for the invokestatic")
	}
	if site.Op != bytecode.Invokestatic || site.CPIndex != 1 {
		t.Errorf("site = %+v, want {Invokestatic, 1}", site)
	}
}

func TestGraphBCSet(t *testing.T) {
	code := []byte{byte(bytecode.Iconst0), byte(bytecode.Return)}
	g := NewGraph(method(code))
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}
	var want OpSet
	want.set(bytecode.Iconst0)
	want.set(bytecode.Return)
	if !g.BCSet.Contains(want) || !want.Contains(g.BCSet) {
		t.Errorf("BCSet = %v, want %v", g.BCSet, want)
	}
}
