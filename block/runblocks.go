// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import "github.com/jportal/trace/bytecode"

// RunBlocks is the block list derived from one recorded INTER byte
// span: a run of canonical opcodes with no operand bytes, except that
// every block-ending branch instruction is immediately followed by one
// taken-bit byte (0 = fall-through, 1 = taken, 2 = unresolved/switch).
//
// If the run's first byte is not a valid opcode, it is a marker the
// producer uses to flag that the run begins inside an exception
// handler; Exception is set and the byte is skipped.
type RunBlocks struct {
	code []byte

	BCSet     OpSet
	Blocks    []*BCTBlock
	Exception bool

	built bool
}

// NewRunBlocks copies code into a fresh, unbuilt RunBlocks.
func NewRunBlocks(code []byte) *RunBlocks {
	c := make([]byte, len(code))
	copy(c, code)
	return &RunBlocks{code: c}
}

func (r *RunBlocks) makeBlockAt(pos int) *BCTBlock {
	bk := newBCTBlock(len(r.Blocks), r.code, pos)
	r.Blocks = append(r.Blocks, bk)
	return bk
}

// Build splits the run into blocks. It is a no-op after the first
// call.
func (r *RunBlocks) Build() error {
	if r.built {
		return nil
	}
	code := r.code
	n := len(code)
	pos := 0

	if n > 0 {
		if op := bytecode.Op(code[0]); !op.IsValid() {
			r.Exception = true
			pos++
		}
	}

	var current *BCTBlock
	for pos < n {
		if current == nil {
			current = r.makeBlockAt(pos)
		}
		op := bytecode.Op(code[pos])
		pos++
		r.BCSet.set(op)

		if pos >= n && !op.IsReturn() && op != bytecode.Athrow {
			current.Branch = BranchExceptionOrReturn
		}

		if !op.IsBlockEnd() {
			continue
		}

		switch {
		case op == bytecode.Athrow || op == bytecode.Ret || op.IsReturn():
			current.End = pos
			current.Branch = BranchExceptionOrReturn
			current = nil

		case op.IsBranch():
			current.End = pos
			if pos < n {
				current.Branch = int(code[pos])
				pos++
			}
			current = nil

		case op == bytecode.Goto || op == bytecode.GotoW ||
			op == bytecode.Jsr || op == bytecode.JsrW:
			current.End = pos
			current = nil

		case op == bytecode.Tableswitch || op == bytecode.Lookupswitch:
			current.End = pos
			current.Branch = BranchSwitch
			current = nil
		}
	}
	if current != nil {
		current.End = pos
	}
	r.built = true
	return nil
}
