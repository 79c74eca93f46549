// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "errors"

// ErrBadInput is returned for a malformed or unreadable config file.
var ErrBadInput = errors.New("config: bad input")
