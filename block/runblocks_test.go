// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import (
	"testing"

	"github.com/jportal/trace/bytecode"
)

func TestRunBlocksSplitsOnTakenBit(t *testing.T) {
	// iconst_0, ifeq <taken-bit 1>, iconst_1, return
	code := []byte{
		byte(bytecode.Iconst0),
		byte(bytecode.Ifeq), 1,
		byte(bytecode.Iconst1),
		byte(bytecode.Return),
	}
	r := NewRunBlocks(code)
	if err := r.Build(); err != nil {
		t.Fatal(err)
	}
	if len(r.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(r.Blocks))
	}
	b0 := r.Blocks[0]
	if b0.Begin != 0 || b0.End != 2 {
		t.Errorf("block0 = [%d,%d), want [0,2)", b0.Begin, b0.End)
	}
	if b0.Branch != BranchTaken {
		t.Errorf("block0.Branch = %d, want BranchTaken", b0.Branch)
	}
	b1 := r.Blocks[1]
	if b1.Begin != 3 || b1.End != 5 {
		t.Errorf("block1 = [%d,%d), want [3,5)", b1.Begin, b1.End)
	}
	if b1.Branch != BranchExceptionOrReturn {
		t.Errorf("block1.Branch = %d, want BranchExceptionOrReturn", b1.Branch)
	}
	if r.Exception {
		t.Error("Exception = true, want false")
	}
}

func TestRunBlocksSwitchMarksBranch(t *testing.T) {
	code := []byte{byte(bytecode.Tableswitch), byte(bytecode.Return)}
	r := NewRunBlocks(code)
	if err := r.Build(); err != nil {
		t.Fatal(err)
	}
	if len(r.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(r.Blocks))
	}
	if r.Blocks[0].Branch != BranchSwitch {
		t.Errorf("Branch = %d, want BranchSwitch", r.Blocks[0].Branch)
	}
}

func TestRunBlocksExceptionMarker(t *testing.T) {
	// ShouldNotReachHere (>= NumJavaOps, but still < NumOps so it IS a
	// "valid" op) is not a good marker; use a byte past NumOps instead,
	// which IsValid reports as false.
	marker := byte(bytecode.NumOps + 5)
	code := append([]byte{marker}, byte(bytecode.Iconst0), byte(bytecode.Return))
	r := NewRunBlocks(code)
	if err := r.Build(); err != nil {
		t.Fatal(err)
	}
	if !r.Exception {
		t.Error("Exception = false, want true")
	}
	if len(r.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(r.Blocks))
	}
	if r.Blocks[0].Begin != 1 {
		t.Errorf("Blocks[0].Begin = %d, want 1", r.Blocks[0].Begin)
	}
}
