// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jvmdump

import (
	"encoding/binary"
	"errors"
	"testing"
)

// appendRecord appends one dump-data record (header plus body) to buf.
func appendRecord(buf []byte, kind Kind, timestamp uint64, body []byte) []byte {
	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(kind))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(recordHeaderSize+len(body)))
	binary.LittleEndian.PutUint64(hdr[8:16], timestamp)
	buf = append(buf, hdr[:]...)
	return append(buf, body...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendLenString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendLenBytes(buf []byte, b []byte) []byte {
	buf = appendU64(buf, uint64(len(b)))
	return append(buf, b...)
}

func TestNewDecoderInterpreterInfoTruncatedTableErrors(t *testing.T) {
	var body []byte
	body = appendU32(body, 0) // tracingBytecodes = false
	body = appendU32(body, 4) // claims 4 addresses
	body = appendU64(body, 1)
	body = appendU64(body, 2) // but only 2 are present: truncated

	data := appendRecord(nil, KindInterpreterInfo, 100, body)
	if _, err := NewDecoder(data); !errors.Is(err, ErrBadInput) {
		t.Errorf("NewDecoder on truncated interpreter_info = %v, want ErrBadInput", err)
	}
}

func TestNewDecoderThreadStartPopulatesJavaTID(t *testing.T) {
	var body []byte
	body = appendU32(body, 42) // sys tid
	body = appendU32(body, 7)  // java tid

	data := appendRecord(nil, KindThreadStart, 10, body)
	d, err := NewDecoder(data)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	javaTID, ok := d.JavaTID(42)
	if !ok || javaTID != 7 {
		t.Errorf("JavaTID(42) = %d, %v, want 7, true", javaTID, ok)
	}
	if _, ok := d.JavaTID(99); ok {
		t.Errorf("JavaTID(99) unexpectedly found")
	}
}

func TestNewDecoderStreamsMethodEntryAndExitInOrder(t *testing.T) {
	var entry []byte
	entry = appendU32(entry, 3)  // method index
	entry = appendU32(entry, 5)  // sys tid
	entry = appendLenString(entry, "java/lang/Runnable")
	entry = appendLenString(entry, "run")
	entry = appendLenString(entry, "()V")

	var exit []byte
	exit = appendU32(exit, 3)
	exit = appendU32(exit, 5)

	var data []byte
	data = appendRecord(data, KindMethodEntryInitial, 100, entry)
	data = appendRecord(data, KindMethodExit, 200, exit)

	d, err := NewDecoder(data)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	ev, ok := d.Next(50)
	if ok {
		t.Fatalf("Next(50) = %+v, true; want no event before its timestamp", ev)
	}

	ev, ok = d.Next(100)
	if !ok || ev.Kind != KindMethodEntryInitial || ev.MethodEntry.Class != "java/lang/Runnable" {
		t.Fatalf("Next(100) = %+v, %v; want method_entry_initial for Runnable", ev, ok)
	}

	if _, ok := d.Next(150); ok {
		t.Fatalf("Next(150) delivered the exit event before its timestamp")
	}

	ev, ok = d.Next(200)
	if !ok || ev.Kind != KindMethodExit || ev.MethodExit.Index != 3 {
		t.Fatalf("Next(200) = %+v, %v; want method_exit for index 3", ev, ok)
	}

	if _, ok := d.Next(1000); ok {
		t.Fatalf("Next after stream exhausted still returned an event")
	}
}

func TestNewDecoderCompiledMethodLoadBuildsJitSection(t *testing.T) {
	code := []byte{0x90, 0x90, 0xc3} // nop nop ret

	var body []byte
	body = appendU64(body, 0x1000) // base
	body = appendLenBytes(body, code)
	body = appendU64(body, 0x1000) // entry point
	body = appendU64(body, 0x1003) // verified entry point
	body = appendU64(body, 0)      // osr entry point
	body = appendLenString(body, "Worker")
	body = appendLenString(body, "run")
	body = appendLenString(body, "()V")
	body = appendU32(body, 0) // no inline methods
	body = appendU64(body, 0) // scopes-pc size
	body = appendU64(body, 0) // scopes-data size
	body = appendLenBytes(body, nil) // scopesPC
	body = appendLenBytes(body, nil) // scopesData

	data := appendRecord(nil, KindCompiledMethodLoad, 300, body)
	d, err := NewDecoder(data)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	ev, ok := d.Next(300)
	if !ok || ev.Kind != KindCompiledMethodLoad {
		t.Fatalf("Next(300) = %+v, %v; want compiled_method_load", ev, ok)
	}
	section := ev.CompiledMethodLoad.Section
	if section == nil {
		t.Fatal("CompiledMethodLoad.Section is nil")
	}
	if section.Name != "Worker.run" {
		t.Errorf("section.Name = %q, want Worker.run", section.Name)
	}
	if section.Begin != 0x1000 || section.Size != uint64(len(code)) {
		t.Errorf("section begin/size = %#x/%d, want %#x/%d", section.Begin, section.Size, 0x1000, len(code))
	}
}

func TestNewDecoderUnknownKindErrors(t *testing.T) {
	data := appendRecord(nil, Kind(999), 1, nil)
	if _, err := NewDecoder(data); !errors.Is(err, ErrBadInput) {
		t.Errorf("NewDecoder on unknown kind = %v, want ErrBadInput", err)
	}
}
