// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jitimage tracks the currently live JIT-compiled code regions
// of a traced process: an address-keyed registry of JitSections that
// grows and shrinks as compiled_method_load/unload events arrive, plus
// the per-pc call-stack tables (PCStackInfo) decoded from each
// section's scope tables.
package jitimage

import "fmt"

// JitImage is the set of currently live JitSections for one traced
// image, belonging to a single per-chunk decoder — it is not used
// concurrently by more than one goroutine, so unlike JitSection it
// carries no lock of its own.
//
// live is kept MRU-ordered: the most recently found section floats to
// the front, since a chunk decoder's successive lookups cluster in
// whichever section it's currently executing.
type JitImage struct {
	Name string

	live    []*JitSection
	removed []*JitSection
}

// NewJitImage allocates an empty image with an optional name.
func NewJitImage(name string) *JitImage {
	return &JitImage{Name: name}
}

// Add inserts section into the image. Any live section overlapping it
// is moved to the removed list first, since two compiled methods can
// never legitimately share an address range — an overlap means the
// old section was unloaded without an explicit event reaching here.
func (img *JitImage) Add(section *JitSection) error {
	if section == nil {
		return fmt.Errorf("jitimage: add of nil section")
	}
	begin, end := section.Begin, section.Begin+section.Size

	kept := img.live[:0]
	for _, s := range img.live {
		if s.Begin < end && begin < s.Begin+s.Size {
			img.removeSection(s)
			continue
		}
		kept = append(kept, s)
	}
	img.live = kept

	img.live = append(img.live, section)
	section.attach()
	return nil
}

// Remove removes the section whose base address exactly equals base,
// moving it to the removed list.
func (img *JitImage) Remove(base uint64) error {
	for i, s := range img.live {
		if s.Begin != base {
			continue
		}
		img.live = append(img.live[:i], img.live[i+1:]...)
		img.removeSection(s)
		return nil
	}
	return ErrNoMapping
}

func (img *JitImage) removeSection(s *JitSection) {
	s.detach()
	img.removed = append(img.removed, s)
}

// Find returns the section containing vaddr, taking a user reference
// on it that the caller must Put after use. On a hit, the section is
// moved to the front of the live list.
func (img *JitImage) Find(vaddr uint64) (*JitSection, error) {
	for i, s := range img.live {
		if vaddr < s.Begin || vaddr >= s.Begin+s.Size {
			continue
		}
		if err := s.Get(); err != nil {
			return nil, err
		}
		img.moveToFront(i)
		return s, nil
	}
	return nil, ErrNoMapping
}

func (img *JitImage) moveToFront(i int) {
	if i == 0 {
		return
	}
	s := img.live[i]
	copy(img.live[1:i+1], img.live[:i])
	img.live[0] = s
}

// Validate reports whether section still maps vaddr and is still the
// most-recently-found section. A caller observing false should retry
// through Find rather than trust a stale section reference.
func (img *JitImage) Validate(section *JitSection, vaddr uint64) bool {
	if len(img.live) == 0 || img.live[0] != section {
		return false
	}
	return vaddr >= section.Begin && vaddr < section.Begin+section.Size
}

// Removed returns the sections that have been detached but may still
// be referenced by in-flight user counts, for diagnostics.
func (img *JitImage) Removed() []*JitSection {
	out := make([]*JitSection, len(img.removed))
	copy(out, img.removed)
	return out
}
