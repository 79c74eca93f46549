// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import "testing"

func TestLen(t *testing.T) {
	cases := []struct {
		op   Op
		want int
	}{
		{Nop, 1},
		{Iload, 2},
		{Sipush, 3},
		{Invokeinterface, 5},
		{Iinc, 3},
		{Tableswitch, -1},
		{Wide, -1},
	}
	for _, c := range cases {
		if got := c.op.Len(); got != c.want {
			t.Errorf("%s.Len() = %d, want %d", c.op, got, c.want)
		}
	}
}

func TestWideLen(t *testing.T) {
	if got := Iload.WideLen(); got != 4 {
		t.Errorf("Iload.WideLen() = %d, want 4", got)
	}
	if got := Iinc.WideLen(); got != 6 {
		t.Errorf("Iinc.WideLen() = %d, want 6", got)
	}
	if got := Nop.WideLen(); got != -1 {
		t.Errorf("Nop.WideLen() = %d, want -1", got)
	}
}

func TestClassifiers(t *testing.T) {
	if !Ifeq.IsBranch() || !Ifnull.IsBranch() || Goto.IsBranch() {
		t.Error("IsBranch misclassified")
	}
	if !Goto.IsBlockEnd() || !Tableswitch.IsBlockEnd() || Nop.IsBlockEnd() {
		t.Error("IsBlockEnd misclassified")
	}
	if !Ireturn.IsReturn() || !Return.IsReturn() || Athrow.IsReturn() {
		t.Error("IsReturn misclassified")
	}
	if !Invokestatic.IsInvoke() || Getfield.IsInvoke() {
		t.Error("IsInvoke misclassified")
	}
	if !Aload0.IsAload() || !Aload.IsAload() || Astore0.IsAload() {
		t.Error("IsAload misclassified")
	}
}

func TestCanonical(t *testing.T) {
	cases := []struct {
		op        Op
		canon     Op
		follow    Op
		rewritten bool
	}{
		{Getfield, Getfield, Illegal, false},
		{FastIgetfield, Getfield, Illegal, true},
		{FastIaccess0, Aload0, Getfield, true},
		{FastIload2, Iload, Iload, true},
		{FastIcaload, Iload, Caload, true},
		{FastLinearswitch, Lookupswitch, Illegal, true},
		{NofastAload0, Aload0, Illegal, true},
	}
	for _, c := range cases {
		canon, follow, rewritten := Canonical(c.op)
		if canon != c.canon || follow != c.follow || rewritten != c.rewritten {
			t.Errorf("Canonical(%s) = (%s, %s, %v), want (%s, %s, %v)",
				c.op, canon, follow, rewritten, c.canon, c.follow, c.rewritten)
		}
	}
}

func TestSpecialLenTableswitch(t *testing.T) {
	// tableswitch at offset 10: opcode + 1 pad byte (to reach a
	// multiple of 4 at offset 12) + default(4) + low=0(4) + high=1(4)
	// + 2 jump offsets (8) = 1 + 1 + 12 + 8 = 22.
	code := make([]byte, 40)
	code[10] = byte(Tableswitch)
	putBE32 := func(off int, v uint32) {
		code[off] = byte(v >> 24)
		code[off+1] = byte(v >> 16)
		code[off+2] = byte(v >> 8)
		code[off+3] = byte(v)
	}
	putBE32(12, 0)  // default
	putBE32(16, 0)  // low
	putBE32(20, 1)  // high
	putBE32(24, 99) // offset[0]
	putBE32(28, 99) // offset[1]
	n, err := SpecialLen(Tableswitch, code, 10)
	if err != nil {
		t.Fatal(err)
	}
	if want := 22; n != want {
		t.Errorf("SpecialLen(tableswitch) = %d, want %d", n, want)
	}
}
