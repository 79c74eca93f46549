// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ptpacket is the packet-level wire format for one CPU's
// processor-trace byte stream: the fixed vocabulary of packets a
// hardware trace decoder walks to reconstruct control flow (taken/
// not-taken branches, indirect targets, synchronization points, and
// the sideband-like events — paging, mode changes, overflow,
// timestamps — that accompany them).
//
// This is a from-scratch tagged encoding, not a byte-for-byte
// reproduction of Intel PT's variable-width opcode scheme: the PT
// packet/query decoder is an external contract specified by its query
// semantics ("next taken/not-taken", "next indirect target", "next
// event", "next sync point"), not by wire compatibility with real
// processor output. Each packet here opens with one Kind byte, so
// decoding is a straight switch rather than a bitfield scan.
package ptpacket // import "github.com/jportal/trace/ptquery/ptpacket"

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a buffer ends before a packet's
// declared length.
var ErrShortBuffer = errors.New("ptpacket: short buffer")

// ErrBadKind is returned when a tag byte doesn't name a known packet.
var ErrBadKind = errors.New("ptpacket: unknown packet kind")

// Kind identifies a packet's type.
type Kind byte

const (
	Pad     Kind = iota // single-byte alignment filler
	PSB                 // packet-stream-boundary: periodic synchronization point
	PSBEnd              // closes the header block following a PSB
	TNT                 // taken/not-taken bits, short form (Encode writes at most 63)
	TNTLong             // up to 56 taken/not-taken bits, long form
	TIP                 // indirect/compressed target, mid-stream
	TIPPGE              // TIP.PGE: tracing (re)enabled, ip = resume address
	TIPPGD              // TIP.PGD: tracing disabled, ip = last retired address
	FUP                 // flow update: ip of the next event, without a transfer
	PIP                 // paging: new CR3 (address-space change)
	ModeExec            // execution mode (16/32/64-bit)
	ModeTSX             // transactional-memory state (speculative/aborted)
	TSC                 // full timestamp counter
	MTC                 // mini time counter (coarse, cheap time update)
	CYC                 // cycle count since the last CYC/timing packet
	CBR                 // core:bus clock ratio
	TMA                 // time-multiplier adjustment (CTC, fast counter)
	OVF                 // trace overflow: packets were dropped
	VMCS                // VMCS base (virtual-machine entry)
	MNT                 // maintenance packet, opaque payload
	PTW                 // PTWRITE payload
	Exstop              // execution stopped (waiting for an external event)
	Mwait               // MWAIT hints
	Pwre                // power-state request, entry
	Pwrx                // power-state request, exit
	Stop                // tracing stopped
)

// Packet is one decoded packet and whichever fields its Kind uses.
type Packet struct {
	Kind Kind

	IP    uint64
	HasIP bool

	TNTBits []bool // oldest first

	CR3 uint64

	Mode           byte
	Speculative    bool
	Aborted        bool
	TSC            uint64
	MTC            byte
	CYC            uint64
	CBR            byte
	TMACTC         uint32
	TMAFastCounter uint16
	VMCSBase       uint64
	Payload        uint64 // MNT / PTW
	PWRHW          bool
	PWRLastState   byte
	PWRState       byte // Pwre's requested state, or Pwrx's deepest state
	PWRWake        byte // Pwrx wake reason
}

// ipBytesFor returns the number of payload bytes a compressed-IP
// packet (TIP/TIPPGE/TIPPGD/FUP) byte selector names: 0 means the
// packet carries no IP update at all (out of context).
func ipBytesFor(sel byte) (int, error) {
	switch sel {
	case 0:
		return 0, nil
	case 1:
		return 2, nil
	case 2:
		return 4, nil
	case 3:
		return 6, nil
	case 4:
		return 8, nil
	default:
		return 0, fmt.Errorf("ptpacket: bad ip byte selector %d", sel)
	}
}

func ipSelFor(n int) (byte, error) {
	switch n {
	case 0:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 6:
		return 3, nil
	case 8:
		return 4, nil
	default:
		return 0, fmt.Errorf("ptpacket: bad ip byte count %d", n)
	}
}

func readLE(b []byte) uint64 {
	var v uint64
	for i, c := range b {
		v |= uint64(c) << (8 * uint(i))
	}
	return v
}

func putLE(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// decodeIPPacket reads the one-byte ip-length selector plus that many
// little-endian payload bytes.
func decodeIPPacket(buf []byte) (ip uint64, hasIP bool, n int, err error) {
	if len(buf) < 2 {
		return 0, false, 0, ErrShortBuffer
	}
	nb, err := ipBytesFor(buf[1])
	if err != nil {
		return 0, false, 0, err
	}
	if nb == 0 {
		return 0, false, 2, nil
	}
	if len(buf) < 2+nb {
		return 0, false, 0, ErrShortBuffer
	}
	return readLE(buf[2 : 2+nb]), true, 2 + nb, nil
}

// Decode reads one packet from the front of buf, returning the packet
// and the number of bytes it consumed.
func Decode(buf []byte) (Packet, int, error) {
	if len(buf) == 0 {
		return Packet{}, 0, ErrShortBuffer
	}
	kind := Kind(buf[0])
	switch kind {
	case Pad:
		return Packet{Kind: Pad}, 1, nil

	case PSB, PSBEnd, Stop:
		return Packet{Kind: kind}, 1, nil

	case TNT:
		if len(buf) < 2 {
			return Packet{}, 0, ErrShortBuffer
		}
		count := buf[1] >> 1
		stopBit := buf[1]&1 == 1
		bits := make([]bool, 0, count)
		if len(buf) < 2+int((count+7)/8) {
			return Packet{}, 0, ErrShortBuffer
		}
		payload := buf[2 : 2+int((count+7)/8)]
		for i := 0; i < int(count); i++ {
			bits = append(bits, payload[i/8]&(1<<uint(i%8)) != 0)
		}
		_ = stopBit
		return Packet{Kind: TNT, TNTBits: bits}, 2 + int((count+7)/8), nil

	case TNTLong:
		if len(buf) < 9 {
			return Packet{}, 0, ErrShortBuffer
		}
		count := int(buf[1])
		mask := readLE(buf[2:9])
		bits := make([]bool, 0, count)
		for i := 0; i < count && i < 56; i++ {
			bits = append(bits, mask&(1<<uint(i)) != 0)
		}
		return Packet{Kind: TNTLong, TNTBits: bits}, 9, nil

	case TIP, TIPPGE, TIPPGD, FUP:
		ip, hasIP, n, err := decodeIPPacket(buf)
		if err != nil {
			return Packet{}, 0, err
		}
		return Packet{Kind: kind, IP: ip, HasIP: hasIP}, n, nil

	case PIP:
		if len(buf) < 9 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: PIP, CR3: readLE(buf[1:9])}, 9, nil

	case ModeExec:
		if len(buf) < 2 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: ModeExec, Mode: buf[1]}, 2, nil

	case ModeTSX:
		if len(buf) < 2 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: ModeTSX, Speculative: buf[1]&1 != 0, Aborted: buf[1]&2 != 0}, 2, nil

	case TSC:
		if len(buf) < 9 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: TSC, TSC: readLE(buf[1:9])}, 9, nil

	case MTC:
		if len(buf) < 2 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: MTC, MTC: buf[1]}, 2, nil

	case CYC:
		if len(buf) < 9 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: CYC, CYC: readLE(buf[1:9])}, 9, nil

	case CBR:
		if len(buf) < 2 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: CBR, CBR: buf[1]}, 2, nil

	case TMA:
		if len(buf) < 7 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{
			Kind:           TMA,
			TMACTC:         uint32(readLE(buf[1:5])),
			TMAFastCounter: uint16(readLE(buf[5:7])),
		}, 7, nil

	case OVF:
		return Packet{Kind: OVF}, 1, nil

	case VMCS:
		if len(buf) < 9 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: VMCS, VMCSBase: readLE(buf[1:9])}, 9, nil

	case MNT, PTW:
		if len(buf) < 9 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: kind, Payload: readLE(buf[1:9])}, 9, nil

	case Exstop:
		return Packet{Kind: Exstop}, 1, nil

	case Mwait:
		if len(buf) < 9 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: Mwait, Payload: readLE(buf[1:9])}, 9, nil

	case Pwre:
		if len(buf) < 3 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: Pwre, PWRHW: buf[1]&1 != 0, PWRState: buf[2]}, 3, nil

	case Pwrx:
		if len(buf) < 4 {
			return Packet{}, 0, ErrShortBuffer
		}
		return Packet{Kind: Pwrx, PWRLastState: buf[1], PWRState: buf[2], PWRWake: buf[3]}, 4, nil

	default:
		return Packet{}, 0, fmt.Errorf("%w: %d", ErrBadKind, buf[0])
	}
}

// Encode appends p's wire representation to dst and returns the
// result, for building synthetic packet streams in tests and for the
// (not otherwise needed) round trip this format's Decode assumes.
func Encode(dst []byte, p Packet) []byte {
	switch p.Kind {
	case Pad, PSB, PSBEnd, Stop, OVF, Exstop:
		return append(dst, byte(p.Kind))

	case TNT:
		count := len(p.TNTBits)
		if count > 63 {
			count = 63
		}
		nbytes := (count + 7) / 8
		payload := make([]byte, nbytes)
		for i := 0; i < count; i++ {
			if p.TNTBits[i] {
				payload[i/8] |= 1 << uint(i%8)
			}
		}
		dst = append(dst, byte(TNT), byte(count)<<1)
		return append(dst, payload...)

	case TNTLong:
		var mask uint64
		count := len(p.TNTBits)
		if count > 56 {
			count = 56
		}
		for i := 0; i < count; i++ {
			if p.TNTBits[i] {
				mask |= 1 << uint(i)
			}
		}
		var b [7]byte
		putLE(b[:], mask)
		dst = append(dst, byte(TNTLong), byte(count))
		return append(dst, b[:]...)

	case TIP, TIPPGE, TIPPGD, FUP:
		if !p.HasIP {
			return append(dst, byte(p.Kind), 0)
		}
		n := 8
		var b [8]byte
		putLE(b[:], p.IP)
		for n > 2 && b[n-1] == 0 && b[n-2] == 0 {
			n -= 2
		}
		sel, err := ipSelFor(n)
		if err != nil {
			sel = 4
			n = 8
		}
		dst = append(dst, byte(p.Kind), sel)
		return append(dst, b[:n]...)

	case PIP:
		dst = append(dst, byte(PIP))
		var b [8]byte
		putLE(b[:], p.CR3)
		return append(dst, b[:]...)

	case ModeExec:
		return append(dst, byte(ModeExec), p.Mode)

	case ModeTSX:
		var m byte
		if p.Speculative {
			m |= 1
		}
		if p.Aborted {
			m |= 2
		}
		return append(dst, byte(ModeTSX), m)

	case TSC:
		dst = append(dst, byte(TSC))
		var b [8]byte
		putLE(b[:], p.TSC)
		return append(dst, b[:]...)

	case MTC:
		return append(dst, byte(MTC), p.MTC)

	case CYC:
		dst = append(dst, byte(CYC))
		var b [8]byte
		putLE(b[:], p.CYC)
		return append(dst, b[:]...)

	case CBR:
		return append(dst, byte(CBR), p.CBR)

	case TMA:
		dst = append(dst, byte(TMA))
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], p.TMACTC)
		dst = append(dst, b[:]...)
		var c [2]byte
		binary.LittleEndian.PutUint16(c[:], p.TMAFastCounter)
		return append(dst, c[:]...)

	case VMCS:
		dst = append(dst, byte(VMCS))
		var b [8]byte
		putLE(b[:], p.VMCSBase)
		return append(dst, b[:]...)

	case MNT, PTW:
		dst = append(dst, byte(p.Kind))
		var b [8]byte
		putLE(b[:], p.Payload)
		return append(dst, b[:]...)

	case Mwait:
		dst = append(dst, byte(Mwait))
		var b [8]byte
		putLE(b[:], p.Payload)
		return append(dst, b[:]...)

	case Pwre:
		hw := byte(0)
		if p.PWRHW {
			hw = 1
		}
		return append(dst, byte(Pwre), hw, p.PWRState)

	case Pwrx:
		return append(dst, byte(Pwrx), p.PWRLastState, p.PWRState, p.PWRWake)

	default:
		return dst
	}
}
