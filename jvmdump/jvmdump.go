// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jvmdump decodes the companion runtime-emitted metadata
// stream (the --dump-data file): a concatenation of {type, size,
// timestamp} headers followed by variant payloads describing the
// codelet address table, method identities, JIT compilations, and
// thread identity. Decoder's initial pass builds every static table a
// decode needs (the codelet registry, the sys-tid→java-tid map,
// pre-built JitSections); its streaming pass then yields the
// remaining timestamped events in order, gated by the caller's
// current wall-clock position, the same contract ptquery.Decoder and
// sideband.Decoder expose.
package jvmdump

import (
	"fmt"

	"github.com/jportal/trace/codelet"
	"github.com/jportal/trace/jitimage"
)

// Kind identifies one dump-record variant.
type Kind uint32

const (
	KindInterpreterInfo Kind = iota
	KindMethodEntryInitial
	KindMethodEntry
	KindMethodExit
	KindCompiledMethodLoad
	KindCompiledMethodUnload
	KindDynamicCodeGenerated
	KindThreadStart
	KindInlineCacheAdd
	KindInlineCacheClear
)

// MethodEntry is the payload of a method_entry_initial or method_entry
// record: which method (by dump-assigned index) started running on
// which sys-tid, with its class/name/signature when this is the first
// time the index has been seen.
type MethodEntry struct {
	Index int32
	SysTID int
	Class  string
	Name   string
	Sig    string
}

// MethodExit is the payload of a method_exit record.
type MethodExit struct {
	Index  int32
	SysTID int
}

// CompiledMethodLoad is the payload of a compiled_method_load record:
// a freshly JIT-compiled method, already assembled into a JitSection.
type CompiledMethodLoad struct {
	Base    uint64
	Section *jitimage.JitSection
}

// CompiledMethodUnload is the payload of a compiled_method_unload
// record.
type CompiledMethodUnload struct {
	Base uint64
}

// DynamicCodeGenerated is the payload of a dynamic_code_generated
// record: a named stub or generated routine with no scope-table debug
// info (no inlined methods), modeled the same way a compiled method
// is so the JIT matcher never needs a separate code path for it.
type DynamicCodeGenerated struct {
	Base    uint64
	Section *jitimage.JitSection
}

// InlineCacheAdd is the payload of an inline_cache_add record: calls
// made from SrcIP, inside Section, now resolve to DestIP.
type InlineCacheAdd struct {
	SrcIP   uint64
	Section *jitimage.JitSection
	DestIP  uint64
}

// InlineCacheClear is the payload of an inline_cache_clear record.
type InlineCacheClear struct {
	SrcIP   uint64
	Section *jitimage.JitSection
}

// Event is one streamed dump record, time-ordered.
type Event struct {
	Kind Kind
	Time uint64

	MethodEntry          MethodEntry
	MethodExit           MethodExit
	CompiledMethodLoad   CompiledMethodLoad
	CompiledMethodUnload CompiledMethodUnload
	DynamicCodeGenerated DynamicCodeGenerated
	InlineCacheAdd       InlineCacheAdd
	InlineCacheClear     InlineCacheClear
}

// Decoder holds every static table the initial pass over a dump-data
// buffer built, plus the remaining timestamped events in file order
// for the streaming pass to drain.
type Decoder struct {
	Registry *codelet.Registry

	javaTID map[int]int // sys tid -> java tid

	events []Event
	pos    int
}

// JavaTID maps a sys-level thread id (as carried by AUXTRACE/sideband
// records) to the java-level thread id a thread_start record bound it
// to, or (0, false) if this sys tid was never reported.
func (d *Decoder) JavaTID(sysTID int) (int, bool) {
	tid, ok := d.javaTID[sysTID]
	return tid, ok
}

// Next returns the next undelivered event if its timestamp is ≤
// bound, or ok=false if the next event (if any) is still in the
// future or the stream is exhausted.
func (d *Decoder) Next(bound uint64) (Event, bool) {
	if d.pos >= len(d.events) {
		return Event{}, false
	}
	if d.events[d.pos].Time > bound {
		return Event{}, false
	}
	ev := d.events[d.pos]
	d.pos++
	return ev, true
}

// NewDecoder parses the entire dump-data buffer, builds the codelet
// registry and thread-id map, constructs a JitSection for every
// compiled method and dynamically generated stub up front, and
// returns a Decoder ready for the streaming pass.
func NewDecoder(data []byte) (*Decoder, error) {
	d := &Decoder{javaTID: make(map[int]int)}

	r := &reader{buf: data}
	for r.len() > 0 {
		kind, timestamp, body, err := r.nextRecord()
		if err != nil {
			return nil, err
		}
		if err := d.decodeRecord(kind, timestamp, body); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Decoder) decodeRecord(kind Kind, timestamp uint64, body []byte) error {
	bd := &decoder{buf: body}
	switch kind {
	case KindInterpreterInfo:
		tracing := bd.u32() != 0
		n := bd.u32()
		addrs := make([]uint64, n)
		for i := range addrs {
			addrs[i] = bd.u64()
		}
		reg, err := codelet.NewRegistry(tracing, addrs)
		if err != nil {
			return fmt.Errorf("%w: interpreter_info: %v", ErrBadInput, err)
		}
		d.Registry = reg

	case KindThreadStart:
		sysTID := int(bd.i32())
		javaTID := int(bd.i32())
		d.javaTID[sysTID] = javaTID

	case KindMethodEntryInitial, KindMethodEntry:
		me := MethodEntry{
			Index:  bd.i32(),
			SysTID: int(bd.i32()),
			Class:  bd.lenString(),
			Name:   bd.lenString(),
			Sig:    bd.lenString(),
		}
		d.events = append(d.events, Event{Kind: kind, Time: timestamp, MethodEntry: me})

	case KindMethodExit:
		me := MethodExit{Index: bd.i32(), SysTID: int(bd.i32())}
		d.events = append(d.events, Event{Kind: kind, Time: timestamp, MethodExit: me})

	case KindCompiledMethodLoad:
		base := bd.u64()
		code := bd.lenBytes()
		cmd, err := decodeCompiledMethodDesc(bd)
		if err != nil {
			return fmt.Errorf("%w: compiled_method_load: %v", ErrBadInput, err)
		}
		scopesPC := bd.lenBytes()
		scopesData := bd.lenBytes()
		section, err := jitimage.NewJitSection(cmd.Main.ClassName+"."+cmd.Main.Name, code, base, cmd, scopesPC, scopesData)
		if err != nil {
			return fmt.Errorf("%w: compiled_method_load: %v", ErrBadInput, err)
		}
		d.events = append(d.events, Event{
			Kind: kind, Time: timestamp,
			CompiledMethodLoad: CompiledMethodLoad{Base: base, Section: section},
		})

	case KindCompiledMethodUnload:
		d.events = append(d.events, Event{
			Kind: kind, Time: timestamp,
			CompiledMethodUnload: CompiledMethodUnload{Base: bd.u64()},
		})

	case KindDynamicCodeGenerated:
		base := bd.u64()
		name := bd.lenString()
		code := bd.lenBytes()
		section, err := jitimage.NewJitSection(name, code, base, nil, nil, nil)
		if err != nil {
			return fmt.Errorf("%w: dynamic_code_generated: %v", ErrBadInput, err)
		}
		d.events = append(d.events, Event{
			Kind: kind, Time: timestamp,
			DynamicCodeGenerated: DynamicCodeGenerated{Base: base, Section: section},
		})

	case KindInlineCacheAdd:
		d.events = append(d.events, Event{
			Kind: kind, Time: timestamp,
			InlineCacheAdd: InlineCacheAdd{SrcIP: bd.u64(), DestIP: bd.u64()},
		})

	case KindInlineCacheClear:
		d.events = append(d.events, Event{
			Kind: kind, Time: timestamp,
			InlineCacheClear: InlineCacheClear{SrcIP: bd.u64()},
		})

	default:
		return fmt.Errorf("%w: unknown dump record kind %d", ErrBadInput, kind)
	}
	if bd.err != nil {
		return fmt.Errorf("%w: record kind %d: %v", ErrBadInput, kind, bd.err)
	}
	return nil
}

func decodeCompiledMethodDesc(bd *decoder) (*jitimage.CompiledMethodDesc, error) {
	cmd := &jitimage.CompiledMethodDesc{
		EntryPoint:         bd.u64(),
		VerifiedEntryPoint: bd.u64(),
		OSREntryPoint:      bd.u64(),
	}
	cmd.Main = jitimage.MethodDesc{ClassName: bd.lenString(), Name: bd.lenString(), Signature: bd.lenString()}
	n := bd.u32()
	cmd.InlineMethodCount = int(n)
	if n > 0 {
		cmd.Methods = make(map[int32]jitimage.MethodDesc, n)
	}
	for i := uint32(0); i < n; i++ {
		idx := bd.i32()
		cmd.Methods[idx] = jitimage.MethodDesc{ClassName: bd.lenString(), Name: bd.lenString(), Signature: bd.lenString()}
	}
	cmd.ScopesPCSize = bd.u64()
	cmd.ScopesDataSize = bd.u64()
	return cmd, bd.err
}
