// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ptquery is the PT packet/query decoder: it walks one CPU's
// processor-trace byte buffer and answers the four questions a
// per-chunk driver needs to reconstruct control flow — "where is the
// next synchronization point", "what happened" (an event: enable/
// disable, paging, mode change, overflow, timing, power state, ...),
// "was this conditional branch taken", and "where did this indirect
// branch go". It owns no interpreter or JIT knowledge; it is pure
// packet bookkeeping, the seam an external PT library is expected to
// fill.
package ptquery // import "github.com/jportal/trace/ptquery"

import (
	"errors"
	"fmt"
	"io"

	"github.com/jportal/trace/ptquery/ptpacket"
)

// ErrNeedCond is returned by NextEvent when the next packet is a
// conditional-branch TNT: the driver must resolve it with NextCond
// before more events can be drained.
var ErrNeedCond = errors.New("ptquery: conditional branch pending")

// ErrNeedIndirect is returned by NextEvent when the next packet is a
// plain indirect-branch TIP: the driver must resolve it with
// NextIndirect before more events can be drained.
var ErrNeedIndirect = errors.New("ptquery: indirect branch pending")

// EventKind classifies one decoded, driver-visible event.
type EventKind int

const (
	EventEnabled EventKind = iota
	EventDisabled
	EventAsyncBranch
	EventOverflow
	EventPaging
	EventVMCS
	EventExecMode
	EventTSX
	EventStop
	EventExstop
	EventMwait
	EventPwre
	EventPwrx
	EventPtwrite
	EventTick
	EventCbr
	EventMnt
)

func (k EventKind) String() string {
	switch k {
	case EventEnabled:
		return "enabled"
	case EventDisabled:
		return "disabled"
	case EventAsyncBranch:
		return "async_branch"
	case EventOverflow:
		return "overflow"
	case EventPaging:
		return "paging"
	case EventVMCS:
		return "vmcs"
	case EventExecMode:
		return "exec_mode"
	case EventTSX:
		return "tsx"
	case EventStop:
		return "stop"
	case EventExstop:
		return "exstop"
	case EventMwait:
		return "mwait"
	case EventPwre:
		return "pwre"
	case EventPwrx:
		return "pwrx"
	case EventPtwrite:
		return "ptwrite"
	case EventTick:
		return "tick"
	case EventCbr:
		return "cbr"
	case EventMnt:
		return "mnt"
	default:
		return "unknown"
	}
}

// Event is one packet's worth of state change the per-chunk driver
// folds into its ip/enabled/mode/asid/speculative bookkeeping.
type Event struct {
	Kind  EventKind
	IP    uint64
	HasIP bool

	CR3      uint64
	VMCSBase uint64
	Mode     byte

	Speculative bool
	Aborted     bool

	CBR  byte
	Time uint64

	Payload uint64
}

// Decoder walks one CPU's processor-trace byte buffer.
type Decoder struct {
	buf []byte
	pos int

	ip          uint64
	enabled     bool
	mode        byte
	cr3         uint64
	speculative bool
	aborted     bool
	cbr         byte
	time        uint64

	hasPendingFUP bool
	pendingFUP    uint64

	tnt []bool
}

// NewDecoder returns a Decoder over buf, positioned at its start.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Pos returns the decoder's current byte offset into its buffer.
func (d *Decoder) Pos() int { return d.pos }

// AtEnd reports whether the decoder has consumed the whole buffer.
func (d *Decoder) AtEnd() bool { return d.pos >= len(d.buf) }

// IP, Enabled, Mode, CR3, Speculative, and Aborted report the
// decoder's current reconstructed processor state, as last updated by
// NextEvent/NextIndirect.
func (d *Decoder) IP() uint64          { return d.ip }
func (d *Decoder) Enabled() bool       { return d.enabled }
func (d *Decoder) Mode() byte          { return d.mode }
func (d *Decoder) CR3() uint64         { return d.cr3 }
func (d *Decoder) Speculative() bool   { return d.speculative }
func (d *Decoder) Aborted() bool       { return d.aborted }

// SyncForward scans ahead to the next PSB synchronization packet,
// resetting ip/enabled/mode/asid/speculative the way resuming at a
// fresh sync point requires, and returns the offset just past the PSB.
// It returns io.EOF if no further PSB exists.
func (d *Decoder) SyncForward() (int, error) {
	d.ip = 0
	d.enabled = false
	d.mode = 0
	d.cr3 = 0
	d.speculative = false
	d.aborted = false
	d.hasPendingFUP = false
	d.tnt = nil

	for d.pos < len(d.buf) {
		pkt, n, err := ptpacket.Decode(d.buf[d.pos:])
		if err != nil {
			return 0, err
		}
		d.pos += n
		if pkt.Kind == ptpacket.PSB {
			return d.pos, nil
		}
	}
	return 0, io.EOF
}

// NextEvent decodes and applies the next driver-visible event,
// silently skipping packets with no query-level meaning (padding,
// cycle counts, timing calibration, interior PSB/PSBEND markers).
// It returns ErrNeedCond or ErrNeedIndirect when a branch resolution
// must happen first, and io.EOF at the end of the buffer.
func (d *Decoder) NextEvent() (Event, error) {
	for {
		if d.pos >= len(d.buf) {
			return Event{}, io.EOF
		}
		pkt, n, err := ptpacket.Decode(d.buf[d.pos:])
		if err != nil {
			return Event{}, err
		}

		switch pkt.Kind {
		case ptpacket.Pad, ptpacket.PSBEnd, ptpacket.PSB, ptpacket.CYC, ptpacket.TMA:
			d.pos += n
			continue

		case ptpacket.TSC:
			d.pos += n
			d.time = pkt.TSC
			return Event{Kind: EventTick, Time: d.time}, nil

		case ptpacket.MTC:
			d.pos += n
			return Event{Kind: EventTick, Time: d.time}, nil

		case ptpacket.TIPPGE:
			d.pos += n
			d.enabled = true
			d.ip = pkt.IP
			return Event{Kind: EventEnabled, IP: pkt.IP, HasIP: pkt.HasIP}, nil

		case ptpacket.TIPPGD:
			d.pos += n
			d.enabled = false
			d.ip = pkt.IP
			return Event{Kind: EventDisabled, IP: pkt.IP, HasIP: pkt.HasIP}, nil

		case ptpacket.FUP:
			d.pos += n
			d.hasPendingFUP = pkt.HasIP
			d.pendingFUP = pkt.IP
			continue

		case ptpacket.TIP:
			if d.hasPendingFUP {
				d.pos += n
				d.hasPendingFUP = false
				d.ip = pkt.IP
				return Event{Kind: EventAsyncBranch, IP: pkt.IP, HasIP: pkt.HasIP}, nil
			}
			return Event{}, ErrNeedIndirect

		case ptpacket.TNT, ptpacket.TNTLong:
			return Event{}, ErrNeedCond

		case ptpacket.PIP:
			d.pos += n
			d.cr3 = pkt.CR3
			return Event{Kind: EventPaging, CR3: pkt.CR3}, nil

		case ptpacket.VMCS:
			d.pos += n
			d.cr3 = 0
			return Event{Kind: EventVMCS, VMCSBase: pkt.VMCSBase}, nil

		case ptpacket.ModeExec:
			d.pos += n
			d.mode = pkt.Mode
			return Event{Kind: EventExecMode, Mode: pkt.Mode}, nil

		case ptpacket.ModeTSX:
			d.pos += n
			d.speculative = pkt.Speculative
			d.aborted = pkt.Aborted
			return Event{Kind: EventTSX, Speculative: pkt.Speculative, Aborted: pkt.Aborted}, nil

		case ptpacket.OVF:
			d.pos += n
			return Event{Kind: EventOverflow}, nil

		case ptpacket.Stop:
			d.pos += n
			return Event{Kind: EventStop}, nil

		case ptpacket.Exstop:
			d.pos += n
			return Event{Kind: EventExstop}, nil

		case ptpacket.Mwait:
			d.pos += n
			return Event{Kind: EventMwait, Payload: pkt.Payload}, nil

		case ptpacket.Pwre:
			d.pos += n
			return Event{Kind: EventPwre, Payload: uint64(pkt.PWRState)}, nil

		case ptpacket.Pwrx:
			d.pos += n
			return Event{Kind: EventPwrx, Payload: uint64(pkt.PWRState)}, nil

		case ptpacket.PTW:
			d.pos += n
			return Event{Kind: EventPtwrite, Payload: pkt.Payload}, nil

		case ptpacket.MNT:
			d.pos += n
			return Event{Kind: EventMnt, Payload: pkt.Payload}, nil

		case ptpacket.CBR:
			d.pos += n
			d.cbr = pkt.CBR
			return Event{Kind: EventCbr, CBR: pkt.CBR}, nil

		default:
			d.pos += n
			continue
		}
	}
}

// NextCond resolves the next conditional branch, decoding a fresh TNT
// packet once any previously buffered bits are exhausted.
func (d *Decoder) NextCond() (taken bool, err error) {
	if len(d.tnt) == 0 {
		if d.pos >= len(d.buf) {
			return false, io.EOF
		}
		pkt, n, err := ptpacket.Decode(d.buf[d.pos:])
		if err != nil {
			return false, err
		}
		if pkt.Kind != ptpacket.TNT && pkt.Kind != ptpacket.TNTLong {
			return false, fmt.Errorf("ptquery: expected a TNT packet, got kind %d", pkt.Kind)
		}
		d.pos += n
		d.tnt = append(d.tnt, pkt.TNTBits...)
		if len(d.tnt) == 0 {
			return false, fmt.Errorf("ptquery: empty TNT packet")
		}
	}
	taken = d.tnt[0]
	d.tnt = d.tnt[1:]
	return taken, nil
}

// NextIndirect resolves the next indirect (or direct-with-payload)
// branch target from a TIP packet.
func (d *Decoder) NextIndirect() (uint64, error) {
	if d.pos >= len(d.buf) {
		return 0, io.EOF
	}
	pkt, n, err := ptpacket.Decode(d.buf[d.pos:])
	if err != nil {
		return 0, err
	}
	if pkt.Kind != ptpacket.TIP {
		return 0, fmt.Errorf("ptquery: expected a TIP packet, got kind %d", pkt.Kind)
	}
	d.pos += n
	if pkt.HasIP {
		d.ip = pkt.IP
	}
	return pkt.IP, nil
}

// ScanSyncPoints returns the start offset of every PSB packet in buf,
// in stream order — the splitter's second pass over one CPU's
// concatenated PT bytes.
func ScanSyncPoints(buf []byte) ([]int, error) {
	var out []int
	pos := 0
	for pos < len(buf) {
		pkt, n, err := ptpacket.Decode(buf[pos:])
		if err != nil {
			return out, err
		}
		if pkt.Kind == ptpacket.PSB {
			out = append(out, pos)
		}
		pos += n
	}
	return out, nil
}
