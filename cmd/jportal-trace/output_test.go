// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jportal/trace/matcher/method"
)

func TestWriteMethodsOnEmptyProgram(t *testing.T) {
	dir := t.TempDir()
	prog := method.NewProgram(nil)
	if err := writeMethods(dir, prog); err != nil {
		t.Fatalf("writeMethods: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "methods"))
	if err != nil {
		t.Fatalf("reading methods file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("methods file = %q, want empty (no loaded classes)", data)
	}
}

func TestWriteThreadsOrdersByStartTimeAndTID(t *testing.T) {
	dir := t.TempDir()
	acc := newAccumulator()
	acc.addSplit(2, threadSplitResult{startTime: 20, endTime: 30, methodIndices: []int32{1}})
	acc.addSplit(1, threadSplitResult{startTime: 10, endTime: 15, methodIndices: []int32{0, 3}})
	acc.addSplit(1, threadSplitResult{startTime: 1, endTime: 5, tailLoss: true, methodIndices: nil})

	if err := writeThreads(dir, acc); err != nil {
		t.Fatalf("writeThreads: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "1"))
	if err != nil {
		t.Fatalf("reading thread 1 output: %v", err)
	}
	want := "#1 5 false true\n#10 15 false false\n0\n3\n"
	if string(got) != want {
		t.Errorf("thread 1 output = %q, want %q", got, want)
	}

	if _, err := os.Stat(filepath.Join(dir, "2")); err != nil {
		t.Errorf("thread 2 output missing: %v", err)
	}
}

func TestWriteCPUDumpsOneFilePerCPU(t *testing.T) {
	dir := t.TempDir()
	acc := newAccumulator()
	acc.addCPUDump(0, "chunk a\n")
	acc.addCPUDump(0, "chunk b\n")
	acc.addCPUDump(1, "chunk c\n")

	if err := writeCPUDumps(dir, acc); err != nil {
		t.Fatalf("writeCPUDumps: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "cpu0"))
	if err != nil {
		t.Fatalf("reading cpu0 dump: %v", err)
	}
	if want := "chunk a\nchunk b\n"; string(got) != want {
		t.Errorf("cpu0 dump = %q, want %q", got, want)
	}

	if _, err := os.Stat(filepath.Join(dir, "cpu1")); err != nil {
		t.Errorf("cpu1 dump missing: %v", err)
	}
}

func TestEscapeSVGText(t *testing.T) {
	cases := map[string]string{
		"plain":         "plain",
		"a<b>c":         "a&lt;b&gt;c",
		"Foo&Bar":       "Foo&amp;Bar",
		"<script>&x</>": "&lt;script&gt;&amp;x&lt;/&gt;",
	}
	for in, want := range cases {
		if got := escapeSVGText(in); got != want {
			t.Errorf("escapeSVGText(%q) = %q, want %q", in, got, want)
		}
	}
}
