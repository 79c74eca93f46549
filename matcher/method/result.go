// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package method

// successKey caches an INTER-record match outcome for one candidate
// method at one log offset.
type successKey struct {
	offset int
	method MethodID
}

// successVal is a cached match outcome: how well method matched
// starting at the keyed offset, how deep the recursive search went to
// produce that score, and where the record's bytes ended.
type successVal struct {
	score, depth int
	newOffset    int
}

// jitVal is a cached JIT-record match outcome: the methods resolved
// from the run's PCStackInfo entries (bcis holds the matching BCI for
// each), the resulting score and search depth, and where the record
// ended.
type jitVal struct {
	methods      []MethodID
	bcis         []int
	score, depth int
	newOffset    int
}

// noContextVal is a cached no-context fallback outcome: which
// candidate won an exhaustive AllMethods/Callbacks/allSites scan at
// the keyed offset, and the BCI it left the winning frame at. The
// original's equivalent cache only needs to remember a raw resume
// offset, since its driver threads the current method by reference;
// here the stack is an explicit value, so the cache has to carry
// enough to rebuild the frame, not just skip ahead.
type noContextVal struct {
	method MethodID
	bci    int
}

// resultCache memoizes match attempts by log offset, the way a
// recursive search over the same trace positions would otherwise redo
// identical work from every caller that reaches them.
//
// A cache hit never changes the cached score — only the newly
// requested search depth is allowed to ratchet the cached depth
// upward, so a shallow probe that later gets revisited at a greater
// depth doesn't silently downgrade a result a deeper search already
// committed.
type resultCache struct {
	success   map[successKey]successVal
	jit       map[int]jitVal
	noContext map[int]noContextVal
}

func newResultCache() *resultCache {
	return &resultCache{
		success:   make(map[successKey]successVal),
		jit:       make(map[int]jitVal),
		noContext: make(map[int]noContextVal),
	}
}

// get reports a cached INTER match for (offset, m) at depth, bumping
// the cached depth upward if depth exceeds it.
func (c *resultCache) get(offset int, m MethodID, depth int) (successVal, bool) {
	k := successKey{offset, m}
	v, ok := c.success[k]
	if !ok {
		return successVal{}, false
	}
	if depth > v.depth {
		v.depth = depth
		c.success[k] = v
	}
	return v, true
}

func (c *resultCache) set(offset int, m MethodID, v successVal) {
	c.success[successKey{offset, m}] = v
}

func (c *resultCache) getJit(offset int, depth int) (jitVal, bool) {
	v, ok := c.jit[offset]
	if !ok {
		return jitVal{}, false
	}
	if depth > v.depth {
		v.depth = depth
		c.jit[offset] = v
	}
	return v, true
}

func (c *resultCache) setJit(offset int, v jitVal) { c.jit[offset] = v }

// getNoContext/setNoContext memoize the winner of an exhaustive
// no-context candidate scan (AllMethods, Callbacks, or the global
// call-site list) at a given offset, so the same expensive scan never
// runs twice for the same trace position.
func (c *resultCache) getNoContext(offset int) (noContextVal, bool) {
	v, ok := c.noContext[offset]
	return v, ok
}

func (c *resultCache) setNoContext(offset int, v noContextVal) { c.noContext[offset] = v }
