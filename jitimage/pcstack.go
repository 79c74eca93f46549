// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jitimage

import "fmt"

// PCStackInfo is the logical Java call stack inside a compiled method
// at one resolved pc, innermost frame first. It's built once per
// JitSection by decoding the section's scopes_pc/scopes_data tables.
type PCStackInfo struct {
	PC      uint64
	Methods []int32 // method_index per frame, innermost first
	BCIs    []int32 // bytecode index per frame, innermost first
}

// pcDescRecordSize is the on-disk width of one scopes_pc entry: three
// little-endian int32 fields (pc_offset, scope_decode_offset,
// obj_decode_offset) packed the way the dump writer serializes the
// VM's PcDesc array. There's no surviving header for PcDesc in the
// retrieved sources, so this layout is inferred from its three
// accessors used by create_inline_record plus the always-zero flags
// word the constructor sets; should_reexecute/rethrow_exception/
// return_oop are always false as a result, so pcDesc does not carry
// them.
const pcDescRecordSize = 12

type pcDesc struct {
	pcOffset          int32
	scopeDecodeOffset int32
	objDecodeOffset   int32
}

func (p pcDesc) realPC(codeBegin uint64) uint64 {
	return codeBegin + uint64(p.pcOffset)
}

func decodePCDescs(scopesPC []byte) ([]pcDesc, error) {
	if len(scopesPC)%pcDescRecordSize != 0 {
		return nil, fmt.Errorf("jitimage: scopes_pc size %d not a multiple of %d", len(scopesPC), pcDescRecordSize)
	}
	n := len(scopesPC) / pcDescRecordSize
	out := make([]pcDesc, n)
	for i := range out {
		b := scopesPC[i*pcDescRecordSize:]
		out[i] = pcDesc{
			pcOffset:          int32(le32(b[0:4])),
			scopeDecodeOffset: int32(le32(b[4:8])),
			objDecodeOffset:   int32(le32(b[8:12])),
		}
	}
	return out, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// scopeDesc is one frame of the compressed inlining chain recorded in
// scopes_data. decode_body in the original reads, in order, the
// sender's decode offset, a method index, a bias-encoded bci, and
// three further offsets (locals/expressions/monitors) that the
// inline-record builder never uses and this decoder discards.
type scopeDesc struct {
	methodIndex       int32
	bci               int32
	senderDecodeOffset int32
}

// invocationEntryBci mirrors the original's sentinel bci for the
// outermost synthetic frame.
const invocationEntryBci = -1

func decodeScope(data []byte, offset int32) (scopeDesc, error) {
	if offset == 0 {
		// serialized_null: the synthetic top-of-chain sentinel frame.
		return scopeDesc{methodIndex: 1, bci: invocationEntryBci, senderDecodeOffset: 0}, nil
	}
	s := newByteStream(data, int(offset))
	sender, err := s.readInt()
	if err != nil {
		return scopeDesc{}, err
	}
	methodIndex, err := s.readInt()
	if err != nil {
		return scopeDesc{}, err
	}
	rawBCI, err := s.readInt()
	if err != nil {
		return scopeDesc{}, err
	}
	// Three more offsets (locals/expressions/monitors) follow but are
	// irrelevant to the inlined-stack record this package builds.
	return scopeDesc{
		methodIndex:        methodIndex,
		bci:                rawBCI + invocationEntryBci,
		senderDecodeOffset: sender,
	}, nil
}

func (s scopeDesc) isTop() bool { return s.senderDecodeOffset == 0 }

// BuildInlineRecord decodes a compiled method's scopes_pc/scopes_data
// tables into one PCStackInfo per resolved pc, following
// create_inline_record: walk the sender chain of each pc's ScopeDesc
// once to count frames and once to fill them.
func BuildInlineRecord(scopesPC, scopesData []byte, instsBegin uint64) ([]PCStackInfo, error) {
	if len(scopesData) == 0 || len(scopesPC) == 0 {
		return nil, nil
	}
	descs, err := decodePCDescs(scopesPC)
	if err != nil {
		return nil, err
	}

	var out []PCStackInfo
	for _, p := range descs {
		if p.scopeDecodeOffset == 0 {
			continue
		}
		info := PCStackInfo{PC: p.realPC(instsBegin)}

		frame, err := decodeScope(scopesData, p.scopeDecodeOffset)
		if err != nil {
			return nil, err
		}
		for {
			info.Methods = append(info.Methods, frame.methodIndex)
			info.BCIs = append(info.BCIs, frame.bci)
			if frame.isTop() {
				break
			}
			frame, err = decodeScope(scopesData, frame.senderDecodeOffset)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, info)
	}
	return out, nil
}
