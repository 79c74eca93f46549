// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package method

import (
	blk "github.com/jportal/trace/block"
	"github.com/jportal/trace/bytecode"
	"github.com/jportal/trace/jitimage"
	blockm "github.com/jportal/trace/matcher/block"
	"github.com/jportal/trace/tracedata"
)

// MatchedMethod is one reconstructed call-stack frame: a method, the
// bytecode index execution had reached within it (or -1 if the last
// record ended mid-block, with no call site to resume from), and,
// for a JIT frame, the compiled section it ran in.
type MatchedMethod struct {
	Method  MethodID
	IsJit   bool
	BCI     int
	Section *jitimage.JitSection
}

// scoreLookahead bounds how far matchInter looks past a candidate's
// own matched chain to score its continuation. The original scores a
// candidate by recursing into every call site its matched run
// contains, all the way to the end of the trace; that recursion
// terminates naturally there, but an explicit cap keeps our
// record-at-a-time lookahead (matchInter calling back into itself
// through continuationScore) from growing unbounded on a pathological
// span. resultCache makes repeat lookaheads over the same offset
// cheap regardless.
//
// maxScoredCandidates additionally bounds which candidate sets get
// the recursive treatment at all: a narrow set (the usual case — a
// handful of overriding methods at a polymorphic call site) is cheap
// to score recursively, but the AllMethods/Callbacks no-context
// fallback can be hundreds of methods wide, and recursing through
// every one of those at every lookahead level multiplies out fast.
// Candidate sets above the cap fall back to a flat score of 1, same
// as before this was added — harmless there, since a no-context
// winner never contributes to ambiguity anyway (see candidatesFor).
const (
	scoreLookahead      = 4
	maxScoredCandidates = 6
)

// Matcher reconstructs the call stack that must have produced one
// thread split's worth of tracedata.Log records, against the static
// call graph held in a Program.
//
// NoMatchedDepth is added to the search depth that every chain match
// records in the result cache. Candidate selection compares scores
// only and never reads that depth, so the value does not change which
// candidate wins, and it does not bound the fallback to every loaded
// method as the top-level candidate set: that fallback is the same
// for every value.
type Matcher struct {
	Prog           *Program
	Log            *tracedata.Log
	NoMatchedDepth int

	cache *resultCache
}

// NewMatcher returns a Matcher over prog's call graph and log's
// records.
func NewMatcher(prog *Program, log *tracedata.Log) *Matcher {
	return &Matcher{Prog: prog, Log: log, cache: newResultCache()}
}

// Match reconstructs the call stack for the log span [start, end),
// returning the final activation stack with the outermost frame
// first. It stops early if a record can't be attributed to any
// candidate and the log offers no split continuation to recover from.
func (mm *Matcher) Match(start, end int) []MatchedMethod {
	var stack []MatchedMethod
	var marker bytecode.Op
	haveMarker := false
	atTop := true

	recs := mm.Log.RecordsRange(start, end)
	for {
		op, loc, ok, err := recs.Next()
		if !ok || err != nil {
			return stack
		}
		switch op {
		case bytecode.PseudoMethodEntry, bytecode.PseudoInvokeReturnEntryPoints,
			bytecode.PseudoThrowException, bytecode.PseudoExceptionHandling,
			bytecode.PseudoDeoptimizationEntryPoints, bytecode.PseudoOsrEntryPoints:
			marker = op
			haveMarker = true
			continue

		case bytecode.PseudoBytecode:
			next, _, matched := mm.matchInter(loc, marker, haveMarker, atTop, stack, scoreLookahead)
			if !matched {
				return stack
			}
			stack = next
			atTop = false

		case bytecode.PseudoJitcodeEntry, bytecode.PseudoJitcode:
			stack = mm.matchJit(loc, stack)
			atTop = false
		}
		haveMarker = false
	}
}

// candidatesFor returns the candidate methods for an INTER record
// given the marker (if any) that preceded it, per the selection rules
// a METHOD_ENTRY, an INVOKE_RETURN_ENTRY, and a markerless continuation
// each use. starts[i] is the raw bytecode offset candidates[i]'s match
// should begin from. push/pop report how a winning candidate should be
// folded into the activation stack. noContext reports whether this
// candidate set is a context-free fallback (every loaded method, the
// registered callbacks, or every known call site) rather than one
// narrowed by an actual caller/callee edge — the winner from such a
// scan is memoized by offset alone and never contributes to a
// candidate's score, since it wasn't chosen by any structural
// evidence about the call site itself.
func (mm *Matcher) candidatesFor(marker bytecode.Op, haveMarker, atTop bool, stack []MatchedMethod) (candidates []MethodID, starts []int, push, pop, noContext bool) {
	if !haveMarker {
		if len(stack) == 0 || stack[len(stack)-1].BCI < 0 {
			return nil, nil, false, false, false
		}
		top := stack[len(stack)-1]
		return []MethodID{top.Method}, []int{top.BCI}, false, false, false
	}

	switch marker {
	case bytecode.PseudoMethodEntry:
		switch {
		case len(stack) > 0 && stack[len(stack)-1].BCI >= 0:
			top := stack[len(stack)-1]
			cands := mm.Prog.Callees(top.Method, top.BCI)
			return cands, zeros(len(cands)), true, false, false
		case atTop:
			cands := mm.Prog.AllMethods()
			return cands, zeros(len(cands)), true, false, true
		default:
			return mm.Prog.Callbacks, zeros(len(mm.Prog.Callbacks)), true, false, true
		}

	case bytecode.PseudoInvokeReturnEntryPoints:
		var edges []CallEdge
		noCtx := false
		if len(stack) > 0 {
			edges = mm.Prog.Callers(stack[len(stack)-1].Method)
		} else {
			edges = mm.Prog.allSites
			noCtx = true
		}
		candidates = make([]MethodID, len(edges))
		starts = make([]int, len(edges))
		for i, e := range edges {
			candidates[i] = e.Caller
			starts[i] = e.Offset
		}
		return candidates, starts, false, true, noCtx

	case bytecode.PseudoThrowException, bytecode.PseudoExceptionHandling,
		bytecode.PseudoDeoptimizationEntryPoints, bytecode.PseudoOsrEntryPoints:
		if len(stack) == 0 {
			return nil, nil, false, false, false
		}
		top := stack[len(stack)-1]
		return []MethodID{top.Method}, []int{0}, false, false, false
	}
	return nil, nil, false, false, false
}

// matchInter resolves the INTER record at loc against its candidate
// set, chaining through every later piece of the same split
// activation (if any), and reports the updated stack, the winning
// candidate's score, and whether any candidate matched.
//
// A candidate's score is 1 for its own chain match plus the recursive
// score of its children: how far the trace keeps resolving once that
// candidate is assumed to be the right one, looked ahead up to budget
// further records (see continuationScore). Two candidates that both
// match their own chain but diverge on what comes next are
// disambiguated by that recursive term rather than tying at 1 — a tie
// still means both candidates are equally good prospects as far as
// the lookahead can tell, and leaves the match ambiguous.
func (mm *Matcher) matchInter(loc int, marker bytecode.Op, haveMarker, atTop bool, stack []MatchedMethod, budget int) ([]MatchedMethod, int, bool) {
	chain, ok := mm.Log.InterChildren(loc)
	if !ok {
		chain = []int{loc}
	}

	candidates, starts, push, pop, noContext := mm.candidatesFor(marker, haveMarker, atTop, stack)
	if len(candidates) == 0 {
		return stack, 0, false
	}

	if noContext {
		if v, hit := mm.cache.getNoContext(loc); hit {
			return applyStack(stack, v.method, v.bci, push, pop), 0, true
		}
	}

	depth := 1
	if len(stack) > 0 {
		depth = len(stack) + 1
	}
	if mm.NoMatchedDepth > 0 {
		depth += mm.NoMatchedDepth
	}

	// Where the main record stream resumes after this one, for scoring
	// a candidate's continuation; InterChildren's later pieces (if any)
	// live off to the side and don't change this.
	_, contOffset, _ := mm.Log.Inter(loc)

	var (
		bestID    MethodID
		bestEnds  []blockm.Pos
		bestScore = -1
		ambiguous bool
	)
	for i, cand := range candidates {
		me := mm.Prog.graphFor(cand)
		ends, ok := mm.matchChain(me, cand, chain, starts[i], depth)
		if !ok {
			continue
		}
		bci := -1
		if len(ends) > 0 {
			bci = posBCI(ends[0])
		}

		score := 1
		if budget > 0 && len(candidates) <= maxScoredCandidates {
			trial := applyStack(stack, cand, bci, push, pop)
			score += mm.continuationScore(trial, contOffset, budget-1)
		}

		if noContext {
			// A no-context winner is chosen the same way, but never
			// contributes to ambiguity: it wasn't picked on the
			// strength of any caller/callee edge, so two such
			// candidates tying is expected, not a reason to fail.
			if score > bestScore {
				bestID, bestEnds, bestScore = cand, ends, score
			}
			continue
		}
		switch {
		case score > bestScore:
			bestID, bestEnds, bestScore, ambiguous = cand, ends, score, false
		case score == bestScore:
			ambiguous = true
		}
	}
	if bestScore <= 0 || (ambiguous && !noContext) {
		return stack, 0, false
	}

	bci := -1
	if len(bestEnds) > 0 {
		bci = posBCI(bestEnds[0])
	}
	newStack := applyStack(stack, bestID, bci, push, pop)

	if noContext {
		mm.cache.setNoContext(loc, noContextVal{method: bestID, bci: bci})
		return newStack, 0, true
	}
	return newStack, bestScore, true
}

// continuationScore looks ahead from offset, re-running the same
// marker/candidate/match procedure Match itself runs, and reports how
// many further records in a row resolve against stack before budget
// runs out or one fails to match. This is the "recursive score of
// children" a candidate's own score folds in: the candidate that
// leaves behind a stack whose future keeps matching outscores one
// that leaves the matcher stuck.
func (mm *Matcher) continuationScore(stack []MatchedMethod, offset, budget int) int {
	if budget <= 0 {
		return 0
	}
	recs := mm.Log.RecordsFrom(offset)
	var marker bytecode.Op
	haveMarker := false
	for {
		op, loc, ok, err := recs.Next()
		if !ok || err != nil {
			return 0
		}
		switch op {
		case bytecode.PseudoMethodEntry, bytecode.PseudoInvokeReturnEntryPoints,
			bytecode.PseudoThrowException, bytecode.PseudoExceptionHandling,
			bytecode.PseudoDeoptimizationEntryPoints, bytecode.PseudoOsrEntryPoints:
			marker = op
			haveMarker = true
			continue

		case bytecode.PseudoBytecode:
			next, score, matched := mm.matchInter(loc, marker, haveMarker, false, stack, budget-1)
			if !matched {
				return 0
			}
			return score + mm.continuationScore(next, recs.Offset(), budget-1)

		case bytecode.PseudoJitcodeEntry, bytecode.PseudoJitcode:
			next := mm.matchJit(loc, stack)
			return mm.continuationScore(next, recs.Offset(), budget-1)
		}
		haveMarker = false
	}
}

// applyStack folds a winning candidate into stack the way push/pop
// report it should be: pushed as a new frame, swapped in as a
// just-returned caller, or merged into the current top frame's BCI.
// It never mutates stack's backing array, so a trial candidate scored
// by continuationScore can't corrupt another candidate's view of it.
func applyStack(stack []MatchedMethod, id MethodID, bci int, push, pop bool) []MatchedMethod {
	switch {
	case push:
		out := make([]MatchedMethod, len(stack), len(stack)+1)
		copy(out, stack)
		return append(out, MatchedMethod{Method: id, BCI: bci})
	case pop:
		base := stack
		if len(base) > 0 {
			base = base[:len(base)-1]
		}
		out := make([]MatchedMethod, len(base), len(base)+1)
		copy(out, base)
		return append(out, MatchedMethod{Method: id, BCI: bci})
	default:
		out := make([]MatchedMethod, len(stack))
		copy(out, stack)
		if len(out) > 0 {
			out[len(out)-1].BCI = bci
		}
		return out
	}
}

// matchChain matches run chain[0] against candidate starting at
// startOffset, then resumes at each successor piece's exact graph
// position rather than a fresh block-start offset: the real-world
// counterpart of a method activation whose trace got physically split
// by a data-loss boundary, with no marker record in between to say so.
func (mm *Matcher) matchChain(me *methodEntry, candidate MethodID, chain []int, startOffset, depth int) ([]blockm.Pos, bool) {
	if len(chain) == 0 {
		return nil, false
	}
	code, _, ok := mm.Log.Inter(chain[0])
	if !ok {
		return nil, false
	}
	run := blk.NewRunBlocks(code)
	if err := run.Build(); err != nil {
		return nil, false
	}

	if v, hit := mm.cache.get(startOffset, candidate, depth); hit {
		if v.score <= 0 {
			return nil, false
		}
		return []blockm.Pos{{Block: me.graph.Block(v.newOffset), Offset: 0}}, true
	}

	var res *blockm.Match
	if run.Exception {
		res, ok = me.block.MatchExceptional(run)
	} else {
		res, ok = me.block.Match(run, startOffset)
	}
	if !ok {
		mm.cache.set(startOffset, candidate, successVal{score: 0, depth: depth})
		return nil, false
	}
	cur := res.Ends

	for _, loc := range chain[1:] {
		nextCode, _, ok := mm.Log.Inter(loc)
		if !ok {
			return nil, false
		}
		nextRun := blk.NewRunBlocks(nextCode)
		if err := nextRun.Build(); err != nil {
			return nil, false
		}
		var next []blockm.Pos
		any := false
		for _, pos := range cur {
			var r *blockm.Match
			var rok bool
			if nextRun.Exception {
				r, rok = me.block.MatchExceptional(nextRun)
			} else {
				r, rok = me.block.MatchFrom(pos, nextRun)
			}
			if rok {
				next = append(next, r.Ends...)
				any = true
			}
		}
		if !any {
			mm.cache.set(startOffset, candidate, successVal{score: 0, depth: depth})
			return nil, false
		}
		cur = next
	}

	newOffset := 0
	if len(cur) > 0 && cur[0].Block != nil {
		newOffset = cur[0].Block.BeginOffset
	}
	mm.cache.set(startOffset, candidate, successVal{score: 1, depth: depth, newOffset: newOffset})
	return cur, true
}

// matchJit resolves a JIT record's observed PCStackInfo samples against
// known methods, pushing one frame per sample that names a method this
// Program knows about, merging into the current top frame instead when
// it's the same method and the JIT matcher confirms bci-to-bci
// connectivity between the two samples. The (method, BCI) pairs a
// record resolves to depend only on the record itself, never on the
// incoming stack, so they're cached by log offset and only recomputed
// (MethodByIndex plus a Program.Find per sample) the first time a
// given offset is seen.
func (mm *Matcher) matchJit(loc int, stack []MatchedMethod) []MatchedMethod {
	var methods []MethodID
	var bcis []int
	var section *jitimage.JitSection

	if v, hit := mm.cache.getJit(loc, 0); hit {
		methods, bcis = v.methods, v.bcis
		_, section, _, _ = mm.Log.Jit(loc)
	} else {
		stacks, sec, _, ok := mm.Log.Jit(loc)
		if !ok || sec == nil || sec.CMD == nil {
			return stack
		}
		section = sec
		for _, info := range stacks {
			for i, midx := range info.Methods {
				if i >= len(info.BCIs) {
					break
				}
				bci := int(info.BCIs[i])
				desc, ok := sec.CMD.MethodByIndex(midx)
				if !ok {
					continue
				}
				id, ok := mm.Prog.Find(desc.ClassName, desc.Name, desc.Signature)
				if !ok {
					continue
				}
				methods = append(methods, id)
				bcis = append(bcis, bci)
			}
		}
		mm.cache.setJit(loc, jitVal{methods: methods, bcis: bcis, score: len(methods)})
	}

	if section == nil {
		return stack
	}
	for i, id := range methods {
		bci := bcis[i]
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.IsJit && top.Method == id {
				if mm.Prog.graphFor(id).jit.Match(top.BCI, bci) {
					stack[len(stack)-1].BCI = bci
					continue
				}
			}
		}
		stack = append(stack, MatchedMethod{Method: id, IsJit: true, BCI: bci, Section: section})
	}
	return stack
}

// posBCI returns the raw bytecode offset a Pos names: a fresh block's
// own start, or, for a block a matched run only got to by running off
// the end of an invoke instruction, the start of the block the call
// returns into. It reports -1 when neither holds (a genuine return or
// athrow, or a run truncated strictly inside a block), since no call
// site can be read from there.
func posBCI(pos blockm.Pos) int {
	if pos.Block == nil {
		return -1
	}
	if pos.Offset == 0 {
		return pos.Block.BeginOffset
	}
	if pos.Offset == pos.Block.BCTSize() && len(pos.Block.Succs) > 0 {
		return pos.Block.Succs[0].BeginOffset
	}
	return -1
}

func zeros(n int) []int { return make([]int, n) }
