// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package block builds a method's basic-block control-flow graph from
// its classfile bytecode, in two parallel representations: an offset
// graph over the method's original byte offsets, and a canonicalized
// byte stream (BCT) with one byte per instruction and no operands. It
// also builds the analogous block list for one observed run recorded
// in a trace, so the two can be compared byte-for-byte by a matcher.
package block // import "github.com/jportal/trace/block"

import "github.com/jportal/trace/bytecode"

// OpSet is a 224-bit bitmap of which bytecode.Op values occur
// somewhere in a method or a run; used as a cheap pre-filter before a
// byte-exact match is attempted.
type OpSet [7]uint32

func (s *OpSet) set(op bytecode.Op) {
	s[op>>5] |= 1 << uint(op&31)
}

// Contains reports whether every op set in other is also set in s.
func (s OpSet) Contains(other OpSet) bool {
	for i := range s {
		if other[i] != (other[i] & s[i]) {
			return false
		}
	}
	return true
}
