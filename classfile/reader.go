// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package classfile reads the fields of a .class file the block-graph
// builder needs: the constant pool, the super/interface names, and
// each method's Code attribute (bytecode plus exception table).
// Anything else in the file (other attributes, debug tables, field
// descriptors) is skipped.
package classfile

import (
	"encoding/binary"
	"fmt"
)

// ErrBadInput is returned for any malformed or truncated class file.
var ErrBadInput = fmt.Errorf("classfile: bad input")

// reader is a bounds-checked big-endian byte cursor over a class
// file's bytes, returning errors instead of panicking: class files are
// untrusted input.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) require(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("classfile: truncated at offset %d wanting %d bytes: %w", r.pos, n, ErrBadInput)
	}
	return nil
}

func (r *reader) u1() (byte, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u2() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u8() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) skip(n int) error {
	if err := r.require(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}
