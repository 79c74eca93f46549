// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jitimage

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoMapping is returned when an address falls outside a section or
// image, or when a section has no debug-info table to query.
var ErrNoMapping = errors.New("jitimage: no mapping")

// JitSection is a contiguous run of JIT-compiled native code for one
// method, possibly with callees inlined into it, plus the decoded
// per-pc call-stack table built from the method's scope tables.
//
// A section is reference-counted: userCount tracks holders that keep
// the section from being discarded (a JitImage and any in-flight
// matcher reference); mapperCount tracks active raw-byte readers.
// userCount >= mapperCount >= 0 always; a section is only eligible
// for removal once userCount drops to zero.
//
// mu guards the counts; attachMu guards the section's attached/
// detached state transition inside a JitImage. attachMu must never be
// acquired while mu is held; the reverse order is fine.
type JitSection struct {
	Name  string
	Code  []byte
	Begin uint64
	Size  uint64

	CMD      *CompiledMethodDesc
	pcStacks []PCStackInfo // sorted by PC, ascending

	mu          sync.Mutex
	userCount   uint16
	mapperCount uint16

	attachMu sync.Mutex
	attached bool
}

// NewJitSection builds a section over code starting at begin, with an
// optional CompiledMethodDesc and its raw scopes_pc/scopes_data
// tables. The returned section starts with a user count of one.
func NewJitSection(name string, code []byte, begin uint64, cmd *CompiledMethodDesc, scopesPC, scopesData []byte) (*JitSection, error) {
	s := &JitSection{
		Name:      name,
		Code:      code,
		Begin:     begin,
		Size:      uint64(len(code)),
		CMD:       cmd,
		userCount: 1,
	}
	if cmd != nil {
		stacks, err := BuildInlineRecord(scopesPC, scopesData, begin)
		if err != nil {
			return nil, fmt.Errorf("jitimage: decode debug info for %s: %w", name, err)
		}
		s.pcStacks = stacks
	}
	return s, nil
}

// Get increments the user count.
func (s *JitSection) Get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userCount == 0xffff {
		return fmt.Errorf("jitimage: user count overflow on section %s", s.Name)
	}
	s.userCount++
	return nil
}

// Put decrements the user count. ok reports whether this was the
// last reference, in which case the caller should discard the
// section; Put refuses to drop the count below the mapper count.
func (s *JitSection) Put() (ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userCount == 0 {
		return false, fmt.Errorf("jitimage: put on section %s with zero user count", s.Name)
	}
	if s.userCount <= s.mapperCount {
		return false, fmt.Errorf("jitimage: put on section %s would drop user count below mapper count", s.Name)
	}
	if s.userCount == 1 {
		s.userCount = 0
		return true, nil
	}
	s.userCount--
	return false, nil
}

// Map increments the mapper count; the section must already hold a
// user reference.
func (s *JitSection) Map() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapperCount >= s.userCount {
		return fmt.Errorf("jitimage: map on section %s would exceed user count", s.Name)
	}
	s.mapperCount++
	return nil
}

// Unmap decrements the mapper count.
func (s *JitSection) Unmap() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapperCount == 0 {
		return fmt.Errorf("jitimage: unmap on section %s with zero mapper count", s.Name)
	}
	s.mapperCount--
	return nil
}

// attach marks the section as live inside a JitImage. It takes
// attachMu itself and is never called while mu is held.
func (s *JitSection) attach() {
	s.attachMu.Lock()
	s.attached = true
	s.attachMu.Unlock()
}

func (s *JitSection) detach() {
	s.attachMu.Lock()
	s.attached = false
	s.attachMu.Unlock()
}

func (s *JitSection) isAttached() bool {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	return s.attached
}

// ReadCode copies up to len(buf) bytes starting at vaddr, truncating
// at the section's end.
func (s *JitSection) ReadCode(buf []byte, vaddr uint64) (int, error) {
	if vaddr < s.Begin {
		return 0, ErrNoMapping
	}
	offset := vaddr - s.Begin
	if offset >= s.Size {
		return 0, ErrNoMapping
	}
	n := copy(buf, s.Code[offset:])
	return n, nil
}

// DebugInfo returns the PCStackInfo describing the logical Java call
// stack at vaddr: the first record whose PC is > vaddr, matching the
// original's "next pc after this address" lookup semantics.
func (s *JitSection) DebugInfo(vaddr uint64) (PCStackInfo, bool, error) {
	if s.CMD == nil {
		return PCStackInfo{}, false, nil
	}
	end := s.Begin + s.Size
	if vaddr < s.Begin || vaddr >= end {
		return PCStackInfo{}, false, ErrNoMapping
	}
	for _, info := range s.pcStacks {
		if vaddr < info.PC {
			return info, true, nil
		}
	}
	return PCStackInfo{}, false, nil
}
