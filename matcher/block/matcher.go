// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package block implements the bytecode-sequence-to-block matcher:
// given a method's static block graph and the blocks observed in one
// recorded INTER run, it decides whether the run is byte-exact
// consistent with the method having executed starting at a given
// offset, and if so, where it could have ended.
package block // import "github.com/jportal/trace/matcher/block"

import (
	blk "github.com/jportal/trace/block"
)

// Pos is a position within a method's static block graph: the block
// and how many of its canonicalized instructions have been consumed.
type Pos struct {
	Block  *blk.CFGBlock
	Offset int
}

// Match is the result of matching one observed run against a
// method's block graph.
type Match struct {
	// Starts holds, for each observed block in order, the graph Pos
	// its match began at.
	Starts []Pos
	// Ends holds every graph Pos the run could have exited to; more
	// than one only when the run's last block forked on a switch.
	Ends []Pos
}

// Matcher compares a single method's static block graph against
// observed runs recorded in a trace. A Matcher is stateless and safe
// for concurrent use; callers typically keep one per method and reuse
// it across every observed run.
type Matcher struct {
	Graph *blk.Graph
}

// NewMatcher returns a Matcher over g, which must already have had
// BuildBCT called.
func NewMatcher(g *blk.Graph) *Matcher { return &Matcher{Graph: g} }

// Match walks run's blocks in order against the graph, starting at
// the block beginning at startOffset. It reports ok == false if
// startOffset isn't a known block start, or if any observed block's
// bytes diverge from the graph.
func (m *Matcher) Match(run *blk.RunBlocks, startOffset int) (*Match, bool) {
	start := m.Graph.Block(startOffset)
	if start == nil {
		return nil, false
	}
	res := &Match{}
	if !m.step(start, 0, run.Blocks, 0, res) {
		return nil, false
	}
	return res, true
}

// MatchFrom is like Match, but resumes at an exact mid-block position
// instead of a block-start offset. It's used to chain matching across
// a split activation's successive observed runs: each round's Ends
// become the next round's starting Pos values.
func (m *Matcher) MatchFrom(pos Pos, run *blk.RunBlocks) (*Match, bool) {
	if pos.Block == nil {
		return nil, false
	}
	res := &Match{}
	if !m.step(pos.Block, pos.Offset, run.Blocks, 0, res) {
		return nil, false
	}
	return res, true
}

// MatchExceptional matches run against every exception-table target
// in the graph, unioning every target that produces a positive match.
// It's used when run.Exception is set: the run was recorded as
// resuming inside a handler, so which handler isn't known ahead of
// matching.
func (m *Matcher) MatchExceptional(run *blk.RunBlocks) (*Match, bool) {
	res := &Match{}
	seen := make(map[uint16]bool)
	any := false
	for _, exc := range m.Graph.Exceps {
		if seen[exc.Target] {
			continue
		}
		seen[exc.Target] = true
		r, ok := m.Match(run, int(exc.Target))
		if !ok {
			continue
		}
		res.Starts = append(res.Starts, r.Starts...)
		res.Ends = append(res.Ends, r.Ends...)
		any = true
	}
	if !any {
		return nil, false
	}
	return res, true
}

// step matches obs[idx:] against the graph starting at (cur,
// bctOffset), recursing once per observed block and forking once per
// switch successor.
func (m *Matcher) step(cur *blk.CFGBlock, bctOffset int, obs []*blk.BCTBlock, idx int, res *Match) bool {
	if idx >= len(obs) {
		res.Ends = append(res.Ends, Pos{Block: cur, Offset: bctOffset})
		return true
	}
	ob := obs[idx]
	res.Starts = append(res.Starts, Pos{Block: cur, Offset: bctOffset})

	endBlock, endOffset, ok := matchOne(cur, bctOffset, ob)
	if !ok {
		return false
	}

	switch ob.Branch {
	case blk.BranchExceptionOrReturn:
		// return, athrow, or a run truncated mid-block: nothing
		// follows, however many observed blocks remain.
		res.Ends = append(res.Ends, Pos{Block: endBlock, Offset: endOffset})
		return idx == len(obs)-1

	case blk.BranchFallthrough:
		if len(endBlock.Succs) == 0 {
			return false
		}
		return m.step(endBlock.Succs[0], 0, obs, idx+1, res)

	case blk.BranchTaken:
		if len(endBlock.Succs) < 2 {
			return false
		}
		return m.step(endBlock.Succs[1], 0, obs, idx+1, res)

	case blk.BranchSwitch:
		if len(endBlock.Succs) == 0 {
			return false
		}
		any := false
		for _, succ := range endBlock.Succs {
			forked := &Match{Starts: append([]Pos(nil), res.Starts...)}
			if m.step(succ, 0, obs, idx+1, forked) {
				res.Ends = append(res.Ends, forked.Ends...)
				any = true
			}
		}
		return any

	default:
		return false
	}
}

// matchOne matches a single observed block ob against the graph
// starting at (cur, bctOffset), advancing through fall-through-only
// graph blocks when ob runs longer than the current one.
func matchOne(cur *blk.CFGBlock, bctOffset int, ob *blk.BCTBlock) (endBlock *blk.CFGBlock, endOffset int, ok bool) {
	obConsumed := 0
	for {
		gb := cur.BCT
		remaining := gb.Size() - bctOffset
		obRemaining := ob.Size() - obConsumed
		if obRemaining > remaining {
			// ob runs past this graph block: it must be a prefix,
			// and the graph block must have exactly one successor
			// to advance into (an interior fall-through).
			if !gb.IsPartOfPositive(bctOffset, ob, obConsumed) {
				return nil, 0, false
			}
			if len(cur.Succs) != 1 {
				return nil, 0, false
			}
			obConsumed += remaining
			cur = cur.Succs[0]
			bctOffset = 0
			continue
		}
		if !ob.IsPartOfPositive(obConsumed, gb, bctOffset) {
			return nil, 0, false
		}
		return cur, bctOffset + obRemaining, true
	}
}
