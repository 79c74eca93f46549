// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package method implements the top-level method matcher: given the
// structural records tracedata.Log holds for one thread split, it
// reconstructs the call stack that must have produced them, resolving
// each record against a candidate set of methods drawn from a static
// call graph built once over every loaded class.
package method // import "github.com/jportal/trace/matcher/method"

import (
	"fmt"
	"io"
	"sort"

	blk "github.com/jportal/trace/block"
	"github.com/jportal/trace/classfile"
	blockm "github.com/jportal/trace/matcher/block"
	jitm "github.com/jportal/trace/matcher/jit"
)

// MethodID names a method by its position in a Program's arena. Call
// graph edges and matched-stack entries carry MethodIDs, never raw
// *classfile.Method pointers, so the reconstructed call tree stays a
// plain, comparable value independent of any one Class's lifetime.
type MethodID int32

// CallEdge is one static call-graph edge: a call site inside Caller
// that resolved, at class-load time, to Callee. Offset is the raw
// bytecode offset, within Caller, where control resumes once Callee
// returns — the start of the block an invoke instruction splits off,
// doubling as both the candidate-lookup key for a just-entered callee
// and the resume position for a just-returned caller.
type CallEdge struct {
	Caller MethodID
	Offset int
	Callee MethodID
}

// methodEntry is the per-method state a Program builds lazily: the
// block graph and the two matchers built over it. Building these
// requires walking every instruction in the method, so Program defers
// the work until a method is actually a match candidate.
type methodEntry struct {
	method *classfile.Method
	graph  *blk.Graph
	block  *blockm.Matcher
	jit    *jitm.Matcher
}

// Program is the arena of every method loaded for one matching run,
// plus the static call graph resolved from their constant pools. It
// is built once per trace and read concurrently by a Matcher.
type Program struct {
	classes []*classfile.Class
	byName  map[string]*classfile.Class

	arena []*methodEntry
	index map[*classfile.Method]MethodID

	// calleesAt[caller][offset] holds the callee(s) a call site
	// resolved to; more than one only for an invokeinterface site
	// implemented by several loaded classes.
	calleesAt []map[int][]MethodID
	callers   [][]CallEdge
	allSites  []CallEdge

	// Callbacks holds externally registered entry points (the
	// --callback config), used as the candidate set when a record
	// can't be attributed to any known caller or callee.
	Callbacks []MethodID
}

// NewProgram builds the method arena and static call graph over every
// method of every class in classes.
func NewProgram(classes []*classfile.Class) *Program {
	p := &Program{
		classes: classes,
		byName:  make(map[string]*classfile.Class, len(classes)),
		index:   make(map[*classfile.Method]MethodID),
	}
	for _, c := range classes {
		p.byName[c.Name] = c
	}
	for _, c := range classes {
		for _, m := range c.Methods {
			id := MethodID(len(p.arena))
			p.arena = append(p.arena, &methodEntry{method: m})
			p.index[m] = id
		}
	}
	p.calleesAt = make([]map[int][]MethodID, len(p.arena))
	p.callers = make([][]CallEdge, len(p.arena))
	p.buildCallGraph()
	return p
}

// buildCallGraph resolves every invoke site's constant-pool operand
// to a concrete method, for every method already in the arena. A site
// that can't be resolved (the target class wasn't loaded, or it's an
// invokedynamic call site with no ordinary method behind it) is left
// out of the graph entirely: it never becomes a callee candidate.
func (p *Program) buildCallGraph() {
	for callerID, me := range p.arena {
		g := p.graphFor(MethodID(callerID)).graph
		cp := me.method.Class.ConstantPool()
		for _, b := range g.Blocks {
			if b.BCT == nil || len(b.Succs) == 0 {
				continue
			}
			// Sites is keyed by the BCT index just past the invoke, which
			// is where an invoke-ending block's BCT range stops.
			site, ok := g.Sites[b.BCTCodeBegin+b.BCT.Size()]
			if !ok {
				continue
			}
			resumeOffset := b.Succs[0].BeginOffset

			className, name, descriptor, err := cp.MethodRef(site.CPIndex)
			if err != nil {
				continue
			}
			target, ok := p.byName[className]
			if !ok {
				continue
			}
			callee, ok := target.Method(name, descriptor)
			if !ok {
				continue
			}
			calleeID, ok := p.index[callee]
			if !ok {
				continue
			}
			edge := CallEdge{Caller: MethodID(callerID), Offset: resumeOffset, Callee: calleeID}
			if p.calleesAt[callerID] == nil {
				p.calleesAt[callerID] = make(map[int][]MethodID)
			}
			p.calleesAt[callerID][resumeOffset] = append(p.calleesAt[callerID][resumeOffset], calleeID)
			p.callers[calleeID] = append(p.callers[calleeID], edge)
			p.allSites = append(p.allSites, edge)
		}
	}
}

// graphFor returns the lazily-built block graph and matchers for id,
// building them on first use.
func (p *Program) graphFor(id MethodID) *methodEntry {
	me := p.arena[id]
	if me.graph != nil {
		return me
	}
	g := blk.NewGraph(me.method)
	if err := g.BuildBCT(); err != nil {
		// A method with malformed bytecode can never be a match
		// candidate; give it an empty, permanently-unbuilt graph so
		// every lookup against it simply fails rather than panicking.
		me.graph = &blk.Graph{}
		me.block = blockm.NewMatcher(me.graph)
		me.jit = jitm.NewMatcher(me.graph)
		return me
	}
	me.graph = g
	me.block = blockm.NewMatcher(g)
	me.jit = jitm.NewMatcher(g)
	return me
}

// Method returns the classfile.Method an id names.
func (p *Program) Method(id MethodID) *classfile.Method { return p.arena[id].method }

// ID returns the MethodID assigned to m, if m belongs to this
// Program's arena.
func (p *Program) ID(m *classfile.Method) (MethodID, bool) {
	id, ok := p.index[m]
	return id, ok
}

// Find resolves a class name, method name, and descriptor to a
// MethodID, the way a JIT debug-info MethodDesc or a tracedata
// MethodDesc hint names a method without carrying a pointer to it.
func (p *Program) Find(className, name, descriptor string) (MethodID, bool) {
	c, ok := p.byName[className]
	if !ok {
		return 0, false
	}
	m, ok := c.Method(name, descriptor)
	if !ok {
		return 0, false
	}
	id, ok := p.index[m]
	return id, ok
}

// NumMethods returns the size of the method arena.
func (p *Program) NumMethods() int { return len(p.arena) }

// AllMethods returns every MethodID in the arena, in arena order.
// Used as the top-level candidate set when no caller context exists.
func (p *Program) AllMethods() []MethodID {
	out := make([]MethodID, len(p.arena))
	for i := range out {
		out[i] = MethodID(i)
	}
	return out
}

// Callees returns the methods a call site at offset inside caller
// resolved to, or nil if the site isn't a known call (or caller has
// none recorded at that offset).
func (p *Program) Callees(caller MethodID, offset int) []MethodID {
	return p.calleesAt[caller][offset]
}

// Callers returns every static call-graph edge whose Callee is
// callee.
func (p *Program) Callers(callee MethodID) []CallEdge {
	return p.callers[callee]
}

// AllCallers returns the distinct set of methods that appear as a
// Caller somewhere in the global call-site list: the candidate set
// for an INVOKE_RETURN_ENTRY record with no known caller context.
func (p *Program) AllCallers() []MethodID {
	seen := make(map[MethodID]bool)
	var out []MethodID
	for _, e := range p.allSites {
		if !seen[e.Caller] {
			seen[e.Caller] = true
			out = append(out, e.Caller)
		}
	}
	return out
}

// SetCallbacks resolves a set of (class, name, descriptor) entry
// points, as loaded from a --callback config file, into the
// Program's candidate list for context-free records.
func (p *Program) SetCallbacks(entries [][3]string) {
	p.Callbacks = p.Callbacks[:0]
	for _, e := range entries {
		if id, ok := p.Find(e[0], e[1], e[2]); ok {
			p.Callbacks = append(p.Callbacks, id)
		}
	}
}

// WriteCallGraph writes the static call graph as one line per edge,
// "<caller> -> <callee> [<call-site-bci>]", callers sorted by method
// index and, within a caller, by call-site offset.
func (p *Program) WriteCallGraph(w io.Writer) error {
	ids := make([]MethodID, 0, len(p.arena))
	for id := range p.arena {
		ids = append(ids, MethodID(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, caller := range ids {
		offsets := make([]int, 0, len(p.calleesAt[caller]))
		for off := range p.calleesAt[caller] {
			offsets = append(offsets, off)
		}
		sort.Ints(offsets)
		for _, off := range offsets {
			for _, callee := range p.calleesAt[caller][off] {
				_, err := fmt.Fprintf(w, "%s -> %s [%d]\n",
					p.Method(caller).QualifiedName(), p.Method(callee).QualifiedName(), off)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}
