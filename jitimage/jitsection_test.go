// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jitimage

import "testing"

func TestNewJitSectionNoDebugInfo(t *testing.T) {
	s, err := NewJitSection("noop", make([]byte, 64), 0x2000, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.userCount != 1 {
		t.Fatalf("userCount = %d, want 1", s.userCount)
	}
	if _, ok, err := s.DebugInfo(0x2010); ok || err != nil {
		t.Fatalf("DebugInfo on section with no CMD: ok=%v err=%v", ok, err)
	}
}

func TestJitSectionRefcount(t *testing.T) {
	s, err := NewJitSection("s", make([]byte, 16), 0, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Get(); err != nil {
		t.Fatal(err)
	}
	if s.userCount != 2 {
		t.Fatalf("userCount = %d, want 2", s.userCount)
	}
	last, err := s.Put()
	if err != nil {
		t.Fatal(err)
	}
	if last {
		t.Fatal("Put reported last reference too early")
	}
	last, err = s.Put()
	if err != nil {
		t.Fatal(err)
	}
	if !last {
		t.Fatal("Put should have reported the last reference")
	}
}

func TestJitSectionPutUnderflow(t *testing.T) {
	s := &JitSection{Name: "zero"}
	if _, err := s.Put(); err == nil {
		t.Fatal("expected error putting a section with zero user count")
	}
}

func TestJitSectionMapRespectsUserCount(t *testing.T) {
	s, err := NewJitSection("m", make([]byte, 16), 0, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Map(); err != nil {
		t.Fatal(err)
	}
	if err := s.Map(); err == nil {
		t.Fatal("expected error mapping beyond the user count")
	}
	if err := s.Unmap(); err != nil {
		t.Fatal(err)
	}
	if err := s.Unmap(); err == nil {
		t.Fatal("expected error unmapping with zero mapper count")
	}
}

func TestJitSectionReadCode(t *testing.T) {
	code := []byte{1, 2, 3, 4, 5}
	s, err := NewJitSection("code", code, 0x1000, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 2)
	n, err := s.ReadCode(buf, 0x1001)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || buf[0] != 2 || buf[1] != 3 {
		t.Fatalf("ReadCode = %d, %v; want 2, [2 3]", n, buf)
	}
	if _, err := s.ReadCode(buf, 0x2000); err != ErrNoMapping {
		t.Fatalf("ReadCode out of range: err = %v, want ErrNoMapping", err)
	}
}
