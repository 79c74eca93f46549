// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import "github.com/jportal/trace/bytecode"

func be16(b []byte, off int) uint16 {
	return uint16(b[off])<<8 | uint16(b[off+1])
}

func sbe16(b []byte, off int) int16 {
	return int16(be16(b, off))
}

func be32(b []byte, off int) uint32 {
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}

func sbe32(b []byte, off int) int32 {
	return int32(be32(b, off))
}

// switchPad returns the padding byte count a tableswitch/lookupswitch
// needs after its opcode so its operand table starts 4-byte aligned
// within the method's code array.
func switchPad(offsetAfterOpcode int) int {
	if m := offsetAfterOpcode % 4; m != 0 {
		return 4 - m
	}
	return 0
}

// instrLen returns the byte length, including the opcode byte, of the
// instruction at offset.
func instrLen(code []byte, offset int) (int, error) {
	op := bytecode.Op(code[offset])
	if n := op.Len(); n > 0 {
		return n, nil
	}
	return bytecode.SpecialLen(op, code, offset)
}
