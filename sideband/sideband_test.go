// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sideband

import "testing"

func TestDecoderOrdersByTimeAndGatesOnBound(t *testing.T) {
	d := NewDecoder([]Event{
		{Kind: KindSwitch, Time: 30, TID: 7},
		{Kind: KindAux, Time: 10, Truncated: true},
		{Kind: KindItraceStart, Time: 20, TID: 5},
	})

	ev, ok := d.Next(15)
	if !ok || ev.Kind != KindAux || !ev.Truncated {
		t.Fatalf("Next(15) = %+v, %v, want the Time=10 Aux event", ev, ok)
	}

	if _, ok := d.Next(15); ok {
		t.Fatal("Next(15) again = true, want false (next event is at Time=20)")
	}

	ev, ok = d.Next(25)
	if !ok || ev.Kind != KindItraceStart || ev.TID != 5 {
		t.Fatalf("Next(25) = %+v, %v, want the Time=20 ItraceStart event", ev, ok)
	}

	ev, ok = d.Next(100)
	if !ok || ev.Kind != KindSwitch || ev.TID != 7 {
		t.Fatalf("Next(100) = %+v, %v, want the Time=30 Switch event", ev, ok)
	}

	if _, ok := d.Next(100); ok {
		t.Fatal("Next after exhausting stream = true, want false")
	}
}

func TestCollectEventsIgnoresUnrelatedRecordKinds(t *testing.T) {
	evs := CollectEvents(nil)
	if len(evs) != 0 {
		t.Fatalf("CollectEvents(nil) = %v, want empty", evs)
	}
}
