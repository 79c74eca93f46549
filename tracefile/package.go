// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracefile parses the trace-data file produced by the
// processor-tracing collector: a fixed header describing the tracing
// CPU, followed by a sequence of perf-style records.
//
// Parsing a trace-data file starts with a call to New or Open. Records
// are retrieved in file order with File.Records; AUXTRACE records carry
// the raw per-CPU PT bytes the splitter groups into chunks.
package tracefile // import "github.com/jportal/trace/tracefile"
