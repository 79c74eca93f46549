// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jvmdump

import "errors"

// ErrBadInput is returned, wrapped with more specific context, for a
// dump-data file that is truncated or carries a record this decoder
// does not recognize.
var ErrBadInput = errors.New("jvmdump: bad input")

// errShortRecord is wrapped into ErrBadInput once a record's payload
// runs out of bytes mid-decode.
var errShortRecord = errors.New("record payload too short")
