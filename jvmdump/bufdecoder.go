// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jvmdump

import "encoding/binary"

// decoder decodes fixed- and variable-width fields from a single
// record's payload, in the same style as perffile's and tracefile's
// bufDecoder. Unlike those, a dump-data payload comes from another
// process entirely (not a format this package's own writer produced),
// so every read here is bounds-checked: once buf runs short, every
// further read returns the zero value and err is set once, for
// decodeRecord to check at the end rather than threading an error
// return through every field read.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if len(d.buf) < n {
		d.err = errShortRecord
		return false
	}
	return true
}

func (d *decoder) u32() uint32 {
	if !d.need(4) {
		return 0
	}
	x := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	return x
}

func (d *decoder) i32() int32 {
	return int32(d.u32())
}

func (d *decoder) u64() uint64 {
	if !d.need(8) {
		return 0
	}
	x := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return x
}

// cstring reads a NUL-terminated string from the front of buf.
func (d *decoder) cstring() string {
	if d.err != nil {
		return ""
	}
	for i, c := range d.buf {
		if c == 0 {
			s := string(d.buf[:i])
			d.buf = d.buf[i+1:]
			return s
		}
	}
	d.err = errShortRecord
	return ""
}

// lenString reads a u32 byte length followed by that many bytes of
// string data (no NUL terminator).
func (d *decoder) lenString() string {
	n := d.u32()
	if !d.need(int(n)) {
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

// lenBytes reads a u64 byte length followed by that many raw bytes,
// for compiled-code and scope-table blobs.
func (d *decoder) lenBytes() []byte {
	n := d.u64()
	if n > uint64(len(d.buf)) {
		if d.err == nil {
			d.err = errShortRecord
		}
		return nil
	}
	b := make([]byte, n)
	copy(b, d.buf[:n])
	d.buf = d.buf[n:]
	return b
}
