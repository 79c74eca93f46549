// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jitimage

import "testing"

func mustSection(t *testing.T, name string, begin uint64, size int) *JitSection {
	t.Helper()
	s, err := NewJitSection(name, make([]byte, size), begin, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestJitImageAddFind(t *testing.T) {
	img := NewJitImage("test")
	s := mustSection(t, "m1", 0x1000, 0x100)
	if err := img.Add(s); err != nil {
		t.Fatal(err)
	}

	found, err := img.Find(0x1050)
	if err != nil {
		t.Fatal(err)
	}
	if found != s {
		t.Fatal("Find returned the wrong section")
	}
	if s.userCount != 2 {
		t.Fatalf("userCount after Find = %d, want 2", s.userCount)
	}
	if !s.isAttached() {
		t.Fatal("section should be attached after Add")
	}
}

func TestJitImageFindNoMapping(t *testing.T) {
	img := NewJitImage("test")
	if _, err := img.Find(0x9999); err != ErrNoMapping {
		t.Fatalf("Find on empty image: err = %v, want ErrNoMapping", err)
	}
}

func TestJitImageRemove(t *testing.T) {
	img := NewJitImage("test")
	s := mustSection(t, "m1", 0x1000, 0x100)
	if err := img.Add(s); err != nil {
		t.Fatal(err)
	}
	if err := img.Remove(0x1000); err != nil {
		t.Fatal(err)
	}
	if _, err := img.Find(0x1010); err != ErrNoMapping {
		t.Fatalf("Find after Remove: err = %v, want ErrNoMapping", err)
	}
	if s.isAttached() {
		t.Fatal("section should be detached after Remove")
	}
	removed := img.Removed()
	if len(removed) != 1 || removed[0] != s {
		t.Fatalf("Removed() = %v, want [%v]", removed, s)
	}
}

func TestJitImageRemoveNoMapping(t *testing.T) {
	img := NewJitImage("test")
	if err := img.Remove(0x1234); err != ErrNoMapping {
		t.Fatalf("Remove on empty image: err = %v, want ErrNoMapping", err)
	}
}

func TestJitImageFindMovesToFront(t *testing.T) {
	img := NewJitImage("test")
	a := mustSection(t, "a", 0x1000, 0x100)
	b := mustSection(t, "b", 0x2000, 0x100)
	if err := img.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := img.Add(b); err != nil {
		t.Fatal(err)
	}
	// Add appends, so a is at the front and b behind it; finding b
	// should move it to the front.
	if _, err := img.Find(0x1050); err != nil {
		t.Fatal(err)
	}
	if img.live[0] != a {
		t.Fatal("Find should move the hit section to the front of the live list")
	}
	if !img.Validate(a, 0x1050) {
		t.Fatal("Validate should succeed for the most-recently-found section")
	}
	if img.Validate(b, 0x2050) {
		t.Fatal("Validate should fail for a section no longer at the front")
	}
}

func TestJitImageAddOverlapRemovesOld(t *testing.T) {
	img := NewJitImage("test")
	old := mustSection(t, "old", 0x1000, 0x100)
	if err := img.Add(old); err != nil {
		t.Fatal(err)
	}

	next := mustSection(t, "next", 0x1050, 0x100)
	if err := img.Add(next); err != nil {
		t.Fatal(err)
	}

	found, err := img.Find(0x1060)
	if err != nil {
		t.Fatal(err)
	}
	if found != next {
		t.Fatal("Find should resolve to the newly added section")
	}
	if old.isAttached() {
		t.Fatal("overlapping add should have detached the old section")
	}
}
