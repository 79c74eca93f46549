// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jvmdump

import (
	"encoding/binary"
	"fmt"
)

// recordHeaderSize is the width of the {type, total_size, timestamp}
// header every dump-data record starts with: a u32 Kind, a u32
// total_size counting the header itself plus the payload, and a u64
// nanosecond timestamp.
const recordHeaderSize = 16

// reader walks the flat sequence of {type, total_size, timestamp}
// headers and variant payloads that make up a dump-data file.
type reader struct {
	buf []byte
}

func (r *reader) len() int {
	return len(r.buf)
}

// nextRecord consumes one record's header and payload, returning the
// payload for decodeRecord to decode further.
func (r *reader) nextRecord() (kind Kind, timestamp uint64, body []byte, err error) {
	if len(r.buf) < recordHeaderSize {
		return 0, 0, nil, fmt.Errorf("%w: truncated record header", ErrBadInput)
	}
	kind = Kind(binary.LittleEndian.Uint32(r.buf[0:4]))
	totalSize := binary.LittleEndian.Uint32(r.buf[4:8])
	timestamp = binary.LittleEndian.Uint64(r.buf[8:16])
	if totalSize < recordHeaderSize || int(totalSize) > len(r.buf) {
		return 0, 0, nil, fmt.Errorf("%w: record size %d out of range", ErrBadInput, totalSize)
	}
	body = r.buf[recordHeaderSize:totalSize]
	r.buf = r.buf[totalSize:]
	return kind, timestamp, body, nil
}
