// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package splitter

import "errors"

// ErrBadInput is returned, wrapped with more specific context, when a
// trace-data file's record stream cannot be split.
var ErrBadInput = errors.New("splitter: bad input")
