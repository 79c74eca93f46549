// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jitimage

// MethodDesc names one method: owning class, method name, and
// descriptor signature, as recorded in a compiled_method_load dump
// record.
type MethodDesc struct {
	ClassName string
	Name      string
	Signature string
}

// CompiledMethodDesc describes one JIT-compiled nmethod: its debug
// table sizes, its entry points, and the MethodDesc of the top-level
// method plus every method inlined into it, keyed by the method index
// a ScopeDesc frame names.
type CompiledMethodDesc struct {
	ScopesPCSize       uint64
	ScopesDataSize     uint64
	EntryPoint         uint64
	VerifiedEntryPoint uint64
	OSREntryPoint      uint64
	InlineMethodCount  int

	Main    MethodDesc
	Methods map[int32]MethodDesc // inlined methods, by ScopeDesc method index
}

// MethodByIndex resolves a ScopeDesc frame's method index to a
// MethodDesc. Index 0 (HotSpot's convention, carried over here) names
// the top-level method; other indices look up the inlined set.
func (cmd *CompiledMethodDesc) MethodByIndex(index int32) (MethodDesc, bool) {
	if cmd == nil {
		return MethodDesc{}, false
	}
	if index == 0 {
		return cmd.Main, true
	}
	md, ok := cmd.Methods[index]
	return md, ok
}
