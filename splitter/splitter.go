// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package splitter turns one trace-data file's flat record stream into
// a per-CPU sequence of TraceParts, each small enough for one decode
// task: a first pass buckets every record by owning CPU (AUXTRACE PT
// bytes, AUX_ADVANCE loss markers, and every sideband record kind);
// a second pass per CPU concatenates that CPU's PT bytes and cuts them
// at PSB synchronization points into chunks of roughly syncSplitNumber
// PSBs each.
package splitter

import (
	"fmt"

	"github.com/jportal/trace/ptquery"
	"github.com/jportal/trace/sideband"
	"github.com/jportal/trace/tracefile"
)

// syncSplitNumber bounds how many PSB sync points one TracePart's PT
// bytes span before the second pass cuts a new chunk.
const syncSplitNumber = 500

// TracePart is one decode task's unit of work: a CPU's PT byte chunk
// plus that whole CPU's sideband events (the per-chunk decoder gates
// its own cursor into Sideband by timestamp, so every chunk of one CPU
// shares the same Sideband slice). Loss marks that this chunk follows
// an AUX_ADVANCE discard with no intervening PT data recorded.
type TracePart struct {
	CPU      int
	PT       []byte
	Sideband []sideband.Event
	Loss     bool
}

// ptGroup accumulates one CPU's PT bytes between two AUX_ADVANCE loss
// markers (or from the start of the file to the first one).
type ptGroup struct {
	loss bool
	pt   []byte
}

type cpuState struct {
	groups    []*ptGroup
	sbRecords []tracefile.Record
}

func (cs *cpuState) lastGroup() *ptGroup {
	return cs.groups[len(cs.groups)-1]
}

// Split runs both passes over recs and returns every CPU's TraceParts,
// keyed by CPU id.
func Split(recs *tracefile.Records) (map[int][]TracePart, error) {
	cpus := make(map[int]*cpuState)
	stateFor := func(cpu int) *cpuState {
		cs, ok := cpus[cpu]
		if !ok {
			cs = &cpuState{groups: []*ptGroup{{}}}
			cpus[cpu] = cs
		}
		return cs
	}

	for recs.Next() {
		switch r := recs.Record.(type) {
		case *tracefile.RecordAuxtrace:
			cs := stateFor(r.CPU)
			g := cs.lastGroup()
			g.pt = append(g.pt, r.Data...)
		case *tracefile.RecordAuxAdvance:
			cs := stateFor(r.CPU)
			cs.groups = append(cs.groups, &ptGroup{loss: true})
		case *tracefile.RecordAux:
			cp := *r
			cs := stateFor(r.CPU)
			cs.sbRecords = append(cs.sbRecords, &cp)
		case *tracefile.RecordItraceStart:
			cp := *r
			cs := stateFor(r.CPU)
			cs.sbRecords = append(cs.sbRecords, &cp)
		case *tracefile.RecordSwitch:
			cp := *r
			cs := stateFor(r.CPU)
			cs.sbRecords = append(cs.sbRecords, &cp)
		case *tracefile.RecordSwitchCPUWide:
			cp := *r
			cs := stateFor(r.CPU)
			cs.sbRecords = append(cs.sbRecords, &cp)
		}
	}
	if err := recs.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	out := make(map[int][]TracePart, len(cpus))
	for cpu, cs := range cpus {
		events := sideband.CollectEvents(cs.sbRecords)
		var parts []TracePart
		for _, g := range cs.groups {
			chunks, err := fineSplit(g.pt)
			if err != nil {
				return nil, fmt.Errorf("%w: cpu %d: %v", ErrBadInput, cpu, err)
			}
			if g.loss {
				if len(chunks) == 0 {
					chunks = []TracePart{{Loss: true}}
				} else {
					chunks[0].Loss = true
				}
			}
			for i := range chunks {
				chunks[i].CPU = cpu
				chunks[i].Sideband = events
			}
			parts = append(parts, chunks...)
		}
		out[cpu] = parts
	}
	return out, nil
}

// fineSplit cuts one group's concatenated PT buffer into chunks of
// roughly syncSplitNumber PSBs each.
func fineSplit(pt []byte) ([]TracePart, error) {
	if len(pt) == 0 {
		return nil, nil
	}
	syncs, err := ptquery.ScanSyncPoints(pt)
	if err != nil {
		return nil, err
	}
	if len(syncs) == 0 {
		return []TracePart{{PT: pt}}, nil
	}

	var parts []TracePart
	begin := syncs[0]
	cnt := 0
	for _, off := range syncs[1:] {
		cnt++
		if cnt == syncSplitNumber {
			parts = append(parts, TracePart{PT: pt[begin:off]})
			begin = off
			cnt = 0
		}
	}
	parts = append(parts, TracePart{PT: pt[begin:]})
	return parts, nil
}
