// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sideband decodes the out-of-band perf events interleaved
// with one CPU's PT stream: AUX truncation, ITRACE_START thread
// ownership, and context-switch tid changes. A per-chunk decoder
// drains these in timestamp order, bounded by the PT decoder's
// current wall-clock position.
package sideband

import (
	"sort"

	"github.com/jportal/trace/tracefile"
)

// Kind identifies the sideband event kinds the core cares about.
type Kind int

const (
	KindAux Kind = iota
	KindItraceStart
	KindSwitch
)

// Event is one sideband occurrence, ordered by Time within a CPU.
type Event struct {
	Kind      Kind
	Time      uint64
	TID       int  // valid for KindItraceStart and KindSwitch
	Truncated bool // valid for KindAux: AUX data loss
}

// Decoder yields a CPU's sideband events in timestamp order, one at a
// time, each gated by the caller's current-time bound.
type Decoder struct {
	events []Event
	pos    int
}

// NewDecoder returns a Decoder over events, which need not already be
// sorted by Time.
func NewDecoder(events []Event) *Decoder {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return &Decoder{events: sorted}
}

// Next returns the next undelivered event if its timestamp is ≤ bound,
// advancing the cursor; ok is false if the next event (if any) is
// still in the future, or the stream is exhausted.
func (d *Decoder) Next(bound uint64) (ev Event, ok bool) {
	if d.pos >= len(d.events) {
		return Event{}, false
	}
	if d.events[d.pos].Time > bound {
		return Event{}, false
	}
	ev = d.events[d.pos]
	d.pos++
	return ev, true
}

// CollectEvents converts a CPU's bucketed tracefile.Records into the
// Event set a Decoder runs over. recs must already be filtered to one
// CPU (the splitter's first pass does this bucketing).
func CollectEvents(recs []tracefile.Record) []Event {
	var out []Event
	for _, r := range recs {
		switch rec := r.(type) {
		case *tracefile.RecordAux:
			out = append(out, Event{Kind: KindAux, Time: rec.Time, Truncated: rec.Truncated})
		case *tracefile.RecordItraceStart:
			out = append(out, Event{Kind: KindItraceStart, Time: rec.Time, TID: rec.TID})
		case *tracefile.RecordSwitch:
			out = append(out, Event{Kind: KindSwitch, Time: rec.Time})
		case *tracefile.RecordSwitchCPUWide:
			out = append(out, Event{Kind: KindSwitch, Time: rec.Time, TID: rec.NextPrevTID})
		}
	}
	return out
}
