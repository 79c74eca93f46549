// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefile

import (
	"errors"
	"io"
)

// bufferedSectionReader is a buffered io.Reader with offset tracking,
// based on bufio.Reader. It is specialized for Records' one use so the
// linker can statically resolve the method calls.
type bufferedSectionReader struct {
	buf  []byte
	rd   io.Reader
	r, w int
	err  error
	pos  int64
}

func newBufferedSectionReader(rd io.Reader) *bufferedSectionReader {
	return &bufferedSectionReader{
		buf: make([]byte, 16<<10),
		rd:  rd,
	}
}

var errNegativeRead = errors.New("reader returned negative count from Read")

func (b *bufferedSectionReader) readErr() error {
	err := b.err
	b.err = nil
	return err
}

func (b *bufferedSectionReader) Pos() int64 {
	return b.pos
}

func (b *bufferedSectionReader) Read(p []byte) (n int, err error) {
	n = len(p)
	if n == 0 {
		return 0, b.readErr()
	}
	if b.r == b.w {
		if b.err != nil {
			return 0, b.readErr()
		}
		if len(p) >= len(b.buf) {
			n, b.err = b.rd.Read(p)
			if n < 0 {
				panic(errNegativeRead)
			}
			b.pos += int64(n)
			return n, b.readErr()
		}
		b.fill()
		if b.r == b.w {
			return 0, b.readErr()
		}
	}

	n = copy(p, b.buf[b.r:b.w])
	b.r += n
	b.pos += int64(n)
	return n, nil
}

// fill reads a new chunk into the buffer.
func (b *bufferedSectionReader) fill() {
	if b.r > 0 {
		copy(b.buf, b.buf[b.r:b.w])
		b.w -= b.r
		b.r = 0
	}

	if b.w >= len(b.buf) {
		panic("tried to fill full buffer")
	}

	for i := 0; i < 100; i++ {
		n, err := b.rd.Read(b.buf[b.w:])
		if n < 0 {
			panic(errNegativeRead)
		}
		b.w += n
		if err != nil {
			b.err = err
			return
		}
		if n > 0 {
			return
		}
	}
	b.err = io.ErrNoProgress
}
