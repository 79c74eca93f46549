// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import "bytes"

// Branch disposition of a BCTBlock built from an observed run: how
// its terminating instruction picked its successor.
const (
	BranchExceptionOrReturn = -1 // block ends in athrow/return, or the run was truncated
	BranchFallthrough       = 0
	BranchTaken             = 1
	BranchSwitch            = 2
)

// BCTBlock is one basic block's span within a canonicalized (BCT)
// byte stream: one byte per instruction, operands stripped. The same
// type serves both Graph (one per static method block) and RunBlocks
// (one per block of an observed INTER run); Branch is meaningful only
// on the latter.
type BCTBlock struct {
	ID    int
	Code  []byte // the owning BCT stream; Begin/End index into it
	Begin int
	End   int // -1 until the block is closed

	Branch int
}

func newBCTBlock(id int, code []byte, begin int) *BCTBlock {
	return &BCTBlock{ID: id, Code: code, Begin: begin, End: -1, Branch: BranchFallthrough}
}

// Bytes returns the block's canonical opcode bytes.
func (b *BCTBlock) Bytes() []byte { return b.Code[b.Begin:b.End] }

// Size returns the number of instructions in the block.
func (b *BCTBlock) Size() int { return b.End - b.Begin }

// IsPartOfPositive reports whether b, read forward starting at
// offset, is a byte-exact prefix of other read forward starting at
// otherOffset.
func (b *BCTBlock) IsPartOfPositive(offset int, other *BCTBlock, otherOffset int) bool {
	srcLen := b.Size() - offset
	destLen := other.Size() - otherOffset
	if srcLen > destLen || srcLen < 0 {
		return false
	}
	return bytes.Equal(
		b.Code[b.Begin+offset:b.Begin+offset+srcLen],
		other.Code[other.Begin+otherOffset:other.Begin+otherOffset+srcLen])
}

// IsIncludePositive reports whether other, read forward from
// otherOffset, is a byte-exact prefix of b read forward from offset.
func (b *BCTBlock) IsIncludePositive(offset int, other *BCTBlock, otherOffset int) bool {
	destLen := other.Size() - otherOffset
	if destLen < 0 || b.Begin+offset+destLen > b.End {
		return false
	}
	return bytes.Equal(
		b.Code[b.Begin+offset:b.Begin+offset+destLen],
		other.Code[other.Begin+otherOffset:other.Begin+otherOffset+destLen])
}

// IsPartOfReverse reports whether the first offset bytes of b match
// the last offset bytes up to otherOffset of other, read backward from
// their respective ends.
func (b *BCTBlock) IsPartOfReverse(offset int, other *BCTBlock, otherOffset int) bool {
	srcLen := offset
	destLen := other.Size() - otherOffset
	if srcLen < 0 || srcLen > destLen {
		return false
	}
	return bytes.Equal(b.Code[b.Begin:b.Begin+srcLen], other.Code[other.End-offset:other.End-offset+srcLen])
}

// IsIncludeReverse is the reverse-direction counterpart of
// IsIncludePositive: other, read from its Begin, matches the region of
// b ending offset bytes before its End.
func (b *BCTBlock) IsIncludeReverse(offset int, other *BCTBlock, otherOffset int) bool {
	destLen := other.Size() - otherOffset
	if destLen < 0 || b.End-offset-destLen < b.Begin {
		return false
	}
	return bytes.Equal(b.Code[b.End-offset-destLen:b.End-offset], other.Code[other.Begin:other.Begin+destLen])
}

// IsEqual reports whether b and other hold byte-identical instruction
// sequences.
func (b *BCTBlock) IsEqual(other *BCTBlock) bool {
	if b.Size() != other.Size() {
		return false
	}
	return bytes.Equal(b.Bytes(), other.Bytes())
}
