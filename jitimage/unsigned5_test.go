// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jitimage

import "testing"

func TestReadIntSingleByte(t *testing.T) {
	s := newByteStream([]byte{191, 5}, 0)
	v, err := s.readInt()
	if err != nil {
		t.Fatal(err)
	}
	if v != 191 {
		t.Errorf("readInt = %d, want 191", v)
	}
	if s.position() != 1 {
		t.Errorf("position = %d, want 1", s.position())
	}
}

func TestReadIntMultiByte(t *testing.T) {
	// high_byte low_byte: b0=192 (>= L, so read_int_mb continues),
	// b1=10 (< L, terminates): sum = b0 + b1*64 = 192 + 640 = 832.
	s := newByteStream([]byte{192, 10}, 0)
	v, err := s.readInt()
	if err != nil {
		t.Fatal(err)
	}
	if want := int32(192 + 10*64); v != want {
		t.Errorf("readInt = %d, want %d", v, want)
	}
	if s.position() != 2 {
		t.Errorf("position = %d, want 2", s.position())
	}
}

func TestReadIntThreeBytes(t *testing.T) {
	// b0=255, b1=255 (both >= L, continue), b2=1 (< L, terminates):
	// sum = 255 + 255*64 + 1*4096 = 255 + 16320 + 4096 = 20671.
	s := newByteStream([]byte{255, 255, 1}, 0)
	v, err := s.readInt()
	if err != nil {
		t.Fatal(err)
	}
	if want := int32(255 + 255*64 + 1*4096); v != want {
		t.Errorf("readInt = %d, want %d", v, want)
	}
}

func TestReadSignedInt(t *testing.T) {
	// SIGNED5 zigzag of -1 is 1, which is a single low byte.
	s := newByteStream([]byte{1}, 0)
	v, err := s.readSignedInt()
	if err != nil {
		t.Fatal(err)
	}
	if v != -1 {
		t.Errorf("readSignedInt = %d, want -1", v)
	}
}

func TestReadPastEnd(t *testing.T) {
	s := newByteStream([]byte{200}, 0) // high byte with nothing following
	if _, err := s.readInt(); err == nil {
		t.Fatal("expected error reading past end of buffer")
	}
}

func TestDecodeSign(t *testing.T) {
	cases := []struct {
		coded uint32
		want  int32
	}{
		{0, 0},
		{1, -1},
		{2, 1},
		{3, -2},
		{4, 2},
	}
	for _, c := range cases {
		if got := decodeSign(c.coded); got != c.want {
			t.Errorf("decodeSign(%d) = %d, want %d", c.coded, got, c.want)
		}
	}
}
