// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jitimage

import "testing"

func putLE32(b []byte, off int, v int32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func TestBuildInlineRecordSingleFrame(t *testing.T) {
	// One PcDesc at pc_offset=16, pointing at a scopes_data frame that
	// is immediately the sentinel chain terminator.
	scopesPC := make([]byte, pcDescRecordSize)
	putLE32(scopesPC, 0, 16) // pc_offset
	putLE32(scopesPC, 4, 1)  // scope_decode_offset (nonzero: real frame)
	putLE32(scopesPC, 8, 0)  // obj_decode_offset

	// scopes_data frame at offset 1: sender=0 (top), method_index=3,
	// bci raw=6 (decoded bci = 6 + InvocationEntryBci = 5).
	data := make([]byte, 16)
	data[1] = 0 // sender_decode_offset = 0 -> is_top
	data[2] = 3 // method_index
	data[3] = 6 // raw bci
	// locals/expressions/monitors offsets, unused but must be present
	data[4], data[5], data[6] = 0, 0, 0

	infos, err := BuildInlineRecord(scopesPC, data, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("len(infos) = %d, want 1", len(infos))
	}
	info := infos[0]
	if info.PC != 0x1000+16 {
		t.Errorf("PC = %#x, want %#x", info.PC, 0x1000+16)
	}
	if len(info.Methods) != 1 || info.Methods[0] != 3 {
		t.Errorf("Methods = %v, want [3]", info.Methods)
	}
	if len(info.BCIs) != 1 || info.BCIs[0] != 5 {
		t.Errorf("BCIs = %v, want [5]", info.BCIs)
	}
}

func TestBuildInlineRecordSkipsSentinelPC(t *testing.T) {
	scopesPC := make([]byte, pcDescRecordSize)
	// scope_decode_offset left at 0: serialized_null, must be skipped.
	infos, err := BuildInlineRecord(scopesPC, []byte{0, 0, 0, 0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Fatalf("len(infos) = %d, want 0", len(infos))
	}
}

func TestBuildInlineRecordEmptyTables(t *testing.T) {
	infos, err := BuildInlineRecord(nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if infos != nil {
		t.Fatalf("infos = %v, want nil", infos)
	}
}

func TestDecodePCDescsRejectsMisalignedTable(t *testing.T) {
	if _, err := decodePCDescs(make([]byte, pcDescRecordSize+1)); err == nil {
		t.Fatal("expected error for misaligned scopes_pc table")
	}
}
