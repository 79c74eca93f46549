// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decoder

import "errors"

// ErrBadInput is returned, wrapped with more specific context, when a
// chunk's PT or sideband data cannot be decoded.
var ErrBadInput = errors.New("decoder: bad input")
