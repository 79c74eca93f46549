// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import (
	"github.com/jportal/trace/bytecode"
	"github.com/jportal/trace/classfile"
)

// Excep restates one exception-table entry as a graph edge: a handler
// at Target catches exceptions of Type raised anywhere in [From, To).
type Excep struct {
	From, To, Target, Type uint16
}

// CallSite is an invoke instruction's opcode and constant-pool operand,
// recorded at the BCT-stream index of the instruction that follows it.
type CallSite struct {
	Op      bytecode.Op
	CPIndex uint16
}

// Graph is a method's basic-block control-flow graph, built once from
// its classfile.Method and reused for every observed run matched
// against it.
type Graph struct {
	code []byte

	BCSet     OpSet
	Blocks    []*CFGBlock
	BCTBlocks []*BCTBlock
	BCTCode   []byte
	Exceps    []Excep
	Sites     map[int]CallSite

	// BlockID maps instruction index (in original-code visiting
	// order) to the ID of the block that contains it.
	BlockID []int

	offset2block map[int]*CFGBlock
	bctOffset    map[int]int // bytecode offset -> BCT stream index
	codeCount    int

	graphBuilt bool
	bctBuilt   bool
}

// NewGraph copies m's code and exception table into a fresh, unbuilt
// Graph. Call Build, or BuildBCT (which calls Build itself), before
// using it.
func NewGraph(m *classfile.Method) *Graph {
	code := make([]byte, len(m.Code))
	copy(code, m.Code)
	exceps := make([]Excep, len(m.ExceptionTable))
	for i, e := range m.ExceptionTable {
		exceps[i] = Excep{From: e.StartPC, To: e.EndPC, Target: e.HandlerPC, Type: e.CatchType}
	}
	return &Graph{
		code:         code,
		Exceps:       exceps,
		Sites:        make(map[int]CallSite),
		offset2block: make(map[int]*CFGBlock),
		bctOffset:    make(map[int]int),
	}
}

// Block returns the block containing offset, or nil if offset is not
// a known block-start offset.
func (g *Graph) Block(offset int) *CFGBlock {
	return g.offset2block[offset]
}

func (g *Graph) makeBlockAt(offset int, current *CFGBlock) *CFGBlock {
	blk, ok := g.offset2block[offset]
	if !ok {
		blk = newCFGBlock(len(g.Blocks), offset, g.bctOffset[offset])
		g.Blocks = append(g.Blocks, blk)
		g.offset2block[offset] = blk
	}
	if current != nil {
		current.addSucc(blk)
		blk.addPred(current)
	}
	return blk
}

// Build walks the method's bytecode twice: once to find every block
// boundary (branch targets, fall-throughs, invoke splits, exception
// targets), once to create blocks and wire their successors in match
// order. It is a no-op after the first call.
func (g *Graph) Build() error {
	if g.graphBuilt {
		return nil
	}
	blockStart, jsrFollowing, err := g.scanBlockStarts()
	if err != nil {
		return err
	}
	if err := g.buildBlocks(blockStart, jsrFollowing); err != nil {
		return err
	}
	g.graphBuilt = true
	return nil
}

// scanBlockStarts is build_graph's first pass: it records every offset
// that begins a block, every invoke call site, and the bytecode-offset
// to BCT-index mapping, without creating any blocks yet.
func (g *Graph) scanBlockStarts() (blockStart, jsrFollowing map[int]bool, err error) {
	code := g.code
	n := len(code)
	blockStart = map[int]bool{0: true}
	jsrFollowing = map[int]bool{}
	codeCount := 0

	for offset := 0; offset < n; {
		opStart := offset
		g.bctOffset[opStart] = codeCount
		op := bytecode.Op(code[opStart])
		codeCount++
		g.BCSet.set(op)
		offset++

		switch op {
		case bytecode.Athrow:
			blockStart[offset] = true

		case bytecode.Ret:
			offset++
			blockStart[offset] = true

		case bytecode.Ireturn, bytecode.Lreturn, bytecode.Freturn,
			bytecode.Dreturn, bytecode.Areturn, bytecode.Return:
			blockStart[offset] = true

		case bytecode.Ifeq, bytecode.Ifne, bytecode.Iflt, bytecode.Ifge,
			bytecode.Ifgt, bytecode.Ifle, bytecode.IfIcmpeq, bytecode.IfIcmpne,
			bytecode.IfIcmplt, bytecode.IfIcmpge, bytecode.IfIcmpgt, bytecode.IfIcmple,
			bytecode.IfAcmpeq, bytecode.IfAcmpne, bytecode.Ifnull, bytecode.Ifnonnull:
			jmp := int(sbe16(code, offset))
			offset += 2
			blockStart[offset] = true
			blockStart[opStart+jmp] = true

		case bytecode.Goto:
			jmp := int(sbe16(code, offset))
			offset += 2
			blockStart[opStart+jmp] = true

		case bytecode.GotoW:
			jmp := int(sbe32(code, offset))
			offset += 4
			blockStart[opStart+jmp] = true

		case bytecode.Jsr:
			jmp := int(sbe16(code, offset))
			offset += 2
			blockStart[opStart+jmp] = true
			jsrFollowing[offset] = true

		case bytecode.JsrW:
			jmp := int(sbe32(code, offset))
			offset += 4
			blockStart[opStart+jmp] = true
			jsrFollowing[offset] = true

		case bytecode.Tableswitch, bytecode.Lookupswitch:
			ln, lerr := bytecode.SpecialLen(op, code, opStart)
			if lerr != nil {
				return nil, nil, lerr
			}
			offset = opStart + ln

		case bytecode.Invokevirtual, bytecode.Invokespecial, bytecode.Invokestatic:
			idx := be16(code, offset)
			g.Sites[codeCount] = CallSite{Op: op, CPIndex: idx}
			offset += 2
			blockStart[offset] = true

		case bytecode.Invokeinterface, bytecode.Invokedynamic:
			idx := be16(code, offset)
			g.Sites[codeCount] = CallSite{Op: op, CPIndex: idx}
			offset += 4
			blockStart[offset] = true

		default:
			ln, lerr := instrLen(code, opStart)
			if lerr != nil {
				return nil, nil, lerr
			}
			offset = opStart + ln
		}
	}
	g.codeCount = codeCount
	return blockStart, jsrFollowing, nil
}

// buildBlocks is build_graph's second pass: it walks the same
// instruction sequence again, this time materializing CFGBlocks and
// wiring successors at exactly the points scanBlockStarts found.
func (g *Graph) buildBlocks(blockStart, jsrFollowing map[int]bool) error {
	code := g.code
	n := len(code)
	var current *CFGBlock
	var blockID []int

	for offset := 0; offset < n; {
		opStart := offset
		if current == nil {
			current = g.makeBlockAt(opStart, nil)
		} else if blockStart[opStart] {
			next := g.makeBlockAt(opStart, current)
			current.EndOffset = opStart
			current = next
		}
		blockID = append(blockID, current.ID)

		op := bytecode.Op(code[opStart])
		offset++

		switch op {
		case bytecode.Ret:
			offset++
			for jsrOff := range jsrFollowing {
				g.makeBlockAt(jsrOff, current)
			}
			current.EndOffset = offset
			current = nil

		case bytecode.Athrow, bytecode.Ireturn, bytecode.Lreturn, bytecode.Freturn,
			bytecode.Dreturn, bytecode.Areturn, bytecode.Return:
			current.EndOffset = offset
			current = nil

		case bytecode.Ifeq, bytecode.Ifne, bytecode.Iflt, bytecode.Ifge,
			bytecode.Ifgt, bytecode.Ifle, bytecode.IfIcmpeq, bytecode.IfIcmpne,
			bytecode.IfIcmplt, bytecode.IfIcmpge, bytecode.IfIcmpgt, bytecode.IfIcmple,
			bytecode.IfAcmpeq, bytecode.IfAcmpne, bytecode.Ifnull, bytecode.Ifnonnull:
			jmp := int(sbe16(code, offset))
			offset += 2
			g.makeBlockAt(offset, current)
			g.makeBlockAt(opStart+jmp, current)
			current.EndOffset = offset
			current = nil

		case bytecode.Goto:
			jmp := int(sbe16(code, offset))
			offset += 2
			g.makeBlockAt(opStart+jmp, current)
			current.EndOffset = offset
			current = nil

		case bytecode.GotoW:
			jmp := int(sbe32(code, offset))
			offset += 4
			g.makeBlockAt(opStart+jmp, current)
			current.EndOffset = offset
			current = nil

		case bytecode.Jsr:
			jmp := int(sbe16(code, offset))
			offset += 2
			g.makeBlockAt(opStart+jmp, current)
			current.EndOffset = offset
			current = nil

		case bytecode.JsrW:
			jmp := int(sbe32(code, offset))
			offset += 4
			g.makeBlockAt(opStart+jmp, current)
			current.EndOffset = offset
			current = nil

		case bytecode.Tableswitch:
			bcAddr := opStart
			pad := switchPad(opStart + 1)
			base := opStart + 1 + pad
			defaultOffset := int(sbe32(code, base))
			g.makeBlockAt(bcAddr+defaultOffset, current)
			lo := int(sbe32(code, base+4))
			hi := int(sbe32(code, base+8))
			casesBase := base + 12
			for i := 0; i < hi-lo+1; i++ {
				caseOffset := int(sbe32(code, casesBase+i*4))
				g.makeBlockAt(bcAddr+caseOffset, current)
			}
			offset = casesBase + (hi-lo+1)*4
			current.EndOffset = offset
			current = nil

		case bytecode.Lookupswitch:
			bcAddr := opStart
			pad := switchPad(opStart + 1)
			base := opStart + 1 + pad
			defaultOffset := int(sbe32(code, base))
			g.makeBlockAt(bcAddr+defaultOffset, current)
			npairs := int(be32(code, base+4))
			pairsBase := base + 8
			for i := 0; i < npairs; i++ {
				caseOffset := int(sbe32(code, pairsBase+i*8+4))
				g.makeBlockAt(bcAddr+caseOffset, current)
			}
			offset = pairsBase + npairs*8
			current.EndOffset = offset
			current = nil

		case bytecode.Invokevirtual, bytecode.Invokespecial, bytecode.Invokestatic:
			offset += 2
			g.makeBlockAt(offset, current)
			current.EndOffset = offset
			current = nil

		case bytecode.Invokeinterface, bytecode.Invokedynamic:
			offset += 4
			g.makeBlockAt(offset, current)
			current.EndOffset = offset
			current = nil

		default:
			ln, err := instrLen(code, opStart)
			if err != nil {
				return err
			}
			offset = opStart + ln
		}
	}
	g.BlockID = blockID
	return nil
}

// BuildBCT builds the canonicalized byte stream (BCT) alongside the
// offset graph, copying one opcode byte per instruction with operands
// stripped. It calls Build first if needed, and is a no-op after its
// own first call.
func (g *Graph) BuildBCT() error {
	if g.bctBuilt {
		return nil
	}
	if err := g.Build(); err != nil {
		return err
	}
	code := g.code
	n := len(code)
	bct := make([]byte, g.codeCount)
	g.BCTBlocks = make([]*BCTBlock, len(g.Blocks))

	bctPos := 0
	var predBK *BCTBlock
	for i := 0; i < n; {
		if blk := g.offset2block[i]; blk != nil {
			if predBK != nil {
				predBK.End = bctPos
			}
			bk := newBCTBlock(blk.ID, bct, bctPos)
			predBK = bk
			blk.BCT = bk
			g.BCTBlocks[blk.ID] = bk
		}
		bct[bctPos] = code[i]
		bctPos++
		ln, err := instrLen(code, i)
		if err != nil {
			return err
		}
		i += ln
	}
	if predBK != nil {
		predBK.End = bctPos
	}
	g.BCTCode = bct
	g.bctBuilt = true
	return nil
}
