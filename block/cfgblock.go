// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

// CFGBlock is one basic block in a method's offset graph: the
// half-open byte range [BeginOffset, EndOffset) of the method's
// original bytecode, plus predecessor/successor edges and the
// BCTBlock holding its canonicalized form. Successor order is
// meaningful: for a conditional branch, Succs[0] is the fall-through
// and Succs[1] the taken target; for a switch, Succs[0] is the
// default and the rest follow table order; for an invoke, Succs[0] is
// the block after the call.
type CFGBlock struct {
	ID           int
	BeginOffset  int
	EndOffset    int // -1 until closed
	BCTCodeBegin int // this block's first instruction's index in the BCT stream
	Preds        []*CFGBlock
	Succs        []*CFGBlock
	BCT          *BCTBlock

	predsSeen map[*CFGBlock]bool
	succsSeen map[*CFGBlock]bool
}

func newCFGBlock(id, beginOffset, bctCodeBegin int) *CFGBlock {
	return &CFGBlock{ID: id, BeginOffset: beginOffset, EndOffset: -1, BCTCodeBegin: bctCodeBegin}
}

func (b *CFGBlock) addPred(p *CFGBlock) {
	if b.predsSeen == nil {
		b.predsSeen = make(map[*CFGBlock]bool)
	}
	if !b.predsSeen[p] {
		b.predsSeen[p] = true
		b.Preds = append(b.Preds, p)
	}
}

func (b *CFGBlock) addSucc(s *CFGBlock) {
	if b.succsSeen == nil {
		b.succsSeen = make(map[*CFGBlock]bool)
	}
	if !b.succsSeen[s] {
		b.succsSeen[s] = true
		b.Succs = append(b.Succs, s)
	}
}

// BCTSize returns the length, in instructions, of this block's
// canonicalized form.
func (b *CFGBlock) BCTSize() int { return b.BCT.Size() }
