// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jit implements the single-method JIT matcher: given the
// PCStackInfo entries a JIT run resolved against one method's bytecode
// index, it verifies that consecutive samples are reachable from one
// another within that method's block graph, and answers whether a
// given bci's single-successor chain falls off the end of the method
// (a return) without ever forking.
package jit // import "github.com/jportal/trace/matcher/jit"

import (
	blk "github.com/jportal/trace/block"
)

// Matcher checks bci-to-bci connectivity within one method's static
// block graph, the way a JIT compiler's inlined/optimized code can
// skip recording every intermediate bytecode index.
type Matcher struct {
	Graph *blk.Graph
}

// NewMatcher returns a Matcher over g, which must already have had
// Build called (BuildBCT is not required; this package only walks the
// offset graph).
func NewMatcher(g *blk.Graph) *Matcher { return &Matcher{Graph: g} }

// blockContaining returns the block whose [BeginOffset, EndOffset)
// span covers bci, or nil if none does.
func blockContaining(g *blk.Graph, bci int) *blk.CFGBlock {
	for _, b := range g.Blocks {
		if bci >= b.BeginOffset && bci < b.EndOffset {
			return b
		}
	}
	return nil
}

// Match reports whether dstBci is reachable from srcBci by following
// zero or more successor edges in the block graph: a linear chain
// when every intervening block has exactly one successor, or any
// branch of a multi-successor block otherwise.
func (m *Matcher) Match(srcBci, dstBci int) bool {
	src := blockContaining(m.Graph, srcBci)
	dst := blockContaining(m.Graph, dstBci)
	if src == nil || dst == nil {
		return false
	}
	if src == dst {
		return true
	}
	visited := map[*blk.CFGBlock]bool{src: true}
	var reach func(b *blk.CFGBlock) bool
	reach = func(b *blk.CFGBlock) bool {
		for _, s := range b.Succs {
			if s == dst {
				return true
			}
			if visited[s] {
				continue
			}
			visited[s] = true
			if reach(s) {
				return true
			}
		}
		return false
	}
	return reach(src)
}

// WillReturn follows the single-successor chain starting at bci's
// block and reports whether it runs off the method (a block with no
// successors) without ever reaching a fork or a cycle; a fork means
// the outcome can't be determined this way, and is reported false.
func (m *Matcher) WillReturn(bci int) bool {
	b := blockContaining(m.Graph, bci)
	if b == nil {
		return false
	}
	visited := make(map[*blk.CFGBlock]bool)
	for {
		if visited[b] {
			return false
		}
		visited[b] = true
		switch len(b.Succs) {
		case 0:
			return true
		case 1:
			b = b.Succs[0]
		default:
			return false
		}
	}
}
