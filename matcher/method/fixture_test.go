// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package method

import (
	"testing"

	"github.com/jportal/trace/classfile"
)

// cpBuilder accumulates constant-pool entries for a hand-built .class
// file, the way real bytecode tooling emits one entry at a time while
// compiling.
type cpBuilder struct {
	entries [][]byte
}

func (b *cpBuilder) utf8(s string) uint16 {
	buf := append([]byte{1, byte(len(s) >> 8), byte(len(s))}, s...)
	b.entries = append(b.entries, buf)
	return uint16(len(b.entries))
}

func (b *cpBuilder) class(nameIdx uint16) uint16 {
	b.entries = append(b.entries, []byte{7, byte(nameIdx >> 8), byte(nameIdx)})
	return uint16(len(b.entries))
}

func (b *cpBuilder) nameAndType(nameIdx, descIdx uint16) uint16 {
	b.entries = append(b.entries, []byte{12, byte(nameIdx >> 8), byte(nameIdx), byte(descIdx >> 8), byte(descIdx)})
	return uint16(len(b.entries))
}

func (b *cpBuilder) methodref(classIdx, ntIdx uint16) uint16 {
	b.entries = append(b.entries, []byte{10, byte(classIdx >> 8), byte(classIdx), byte(ntIdx >> 8), byte(ntIdx)})
	return uint16(len(b.entries))
}

func (b *cpBuilder) bytes() []byte {
	out := []byte{byte((len(b.entries) + 1) >> 8), byte(len(b.entries) + 1)}
	for _, e := range b.entries {
		out = append(out, e...)
	}
	return out
}

// oneMethodClass assembles a minimal .class file with a single static
// method, given a caller-supplied constant pool already holding
// thisIdx/superIdx and the method's name/descriptor indices.
func oneMethodClass(cp *cpBuilder, thisIdx, superIdx, nameIdx, descIdx, codeAttrIdx uint16, code []byte) []byte {
	var out []byte
	u2 := func(v uint16) { out = append(out, byte(v>>8), byte(v)) }
	u4 := func(v uint32) {
		out = append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}

	u4(0xCAFEBABE)
	u2(0) // minor
	u2(52)
	out = append(out, cp.bytes()...)
	u2(0x21) // access_flags
	u2(thisIdx)
	u2(superIdx)
	u2(0) // interfaces_count
	u2(0) // fields_count
	u2(1) // methods_count
	u2(0x09) // access_flags: public static
	u2(nameIdx)
	u2(descIdx)
	u2(1) // attributes_count
	u2(codeAttrIdx)
	codeAttrLen := 2 + 2 + 4 + len(code) + 2 + 2
	u4(uint32(codeAttrLen))
	u2(4)             // max_stack
	u2(4)             // max_locals
	u4(uint32(len(code)))
	out = append(out, code...)
	u2(0) // exception_table_length
	u2(0) // code attributes_count
	u2(0) // class attributes_count
	return out
}

// buildCalleeClass returns "Callee.callee()I { iconst_1; ireturn; }".
func buildCalleeClass(t *testing.T) *classfile.Class {
	t.Helper()
	cp := &cpBuilder{}
	nameUtf8 := cp.utf8("Callee")
	thisIdx := cp.class(nameUtf8)
	methodNameIdx := cp.utf8("callee")
	descIdx := cp.utf8("()I")
	codeAttrIdx := cp.utf8("Code")

	code := []byte{0x04, 0xAC} // iconst_1, ireturn
	data := oneMethodClass(cp, thisIdx, 0, methodNameIdx, descIdx, codeAttrIdx, code)

	c, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse(Callee): %v", err)
	}
	return c
}

// buildCallerClass returns "Caller.call()I { iconst_0; invokestatic
// Callee.callee()I; ireturn; }".
func buildCallerClass(t *testing.T) *classfile.Class {
	t.Helper()
	cp := &cpBuilder{}
	nameUtf8 := cp.utf8("Caller")
	thisIdx := cp.class(nameUtf8)
	methodNameIdx := cp.utf8("call")
	descIdx := cp.utf8("()I")
	codeAttrIdx := cp.utf8("Code")

	calleeClassUtf8 := cp.utf8("Callee")
	calleeClassIdx := cp.class(calleeClassUtf8)
	calleeNameIdx := cp.utf8("callee")
	calleeDescIdx := cp.utf8("()I")
	ntIdx := cp.nameAndType(calleeNameIdx, calleeDescIdx)
	methodrefIdx := cp.methodref(calleeClassIdx, ntIdx)

	code := []byte{
		0x03,                                              // iconst_0
		0xB8, byte(methodrefIdx >> 8), byte(methodrefIdx), // invokestatic
		0xAC, // ireturn
	}
	data := oneMethodClass(cp, thisIdx, 0, methodNameIdx, descIdx, codeAttrIdx, code)

	c, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse(Caller): %v", err)
	}
	return c
}
