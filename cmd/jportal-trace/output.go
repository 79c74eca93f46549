// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/jportal/trace/matcher/method"
)

// writeMethods writes the "methods" output file: one line per loaded
// method, "<class> <name+signature> : <method_index>".
func writeMethods(outputDir string, prog *method.Program) error {
	f, err := os.Create(filepath.Join(outputDir, "methods"))
	if err != nil {
		return fmt.Errorf("creating methods file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := 0; i < prog.NumMethods(); i++ {
		id := method.MethodID(i)
		m := prog.Method(id)
		if _, err := fmt.Fprintf(w, "%s %s%s : %d\n", m.Class.Name, m.Name, m.Descriptor, i); err != nil {
			return fmt.Errorf("writing methods file: %w", err)
		}
	}
	return w.Flush()
}

// writeThreads writes one file per observed Java thread ID, named
// after the tid, each holding a header line per matched thread split
// ("#<start_time> <end_time> <head_loss> <tail_loss>") followed by one
// method index per matched stack frame, outermost first.
func writeThreads(outputDir string, acc *accumulator) error {
	acc.mu.Lock()
	defer acc.mu.Unlock()

	tids := make([]int64, 0, len(acc.splits))
	for tid := range acc.splits {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })

	for _, tid := range tids {
		splits := acc.splits[tid]
		sort.Slice(splits, func(i, j int) bool { return splits[i].startTime < splits[j].startTime })

		f, err := os.Create(filepath.Join(outputDir, strconv.FormatInt(tid, 10)))
		if err != nil {
			return fmt.Errorf("creating thread %d output: %w", tid, err)
		}
		w := bufio.NewWriter(f)
		for _, s := range splits {
			if _, err := fmt.Fprintf(w, "#%d %d %t %t\n", s.startTime, s.endTime, s.headLoss, s.tailLoss); err != nil {
				f.Close()
				return fmt.Errorf("writing thread %d output: %w", tid, err)
			}
			for _, idx := range s.methodIndices {
				if _, err := fmt.Fprintf(w, "%d\n", idx); err != nil {
					f.Close()
					return fmt.Errorf("writing thread %d output: %w", tid, err)
				}
			}
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return fmt.Errorf("flushing thread %d output: %w", tid, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing thread %d output: %w", tid, err)
		}
	}
	return nil
}

// writeCallGraph writes the human-readable "call_graph" file and, if
// svgPath is non-empty, a rendered SVG alongside it.
func writeCallGraph(outputDir string, prog *method.Program, svgPath string) error {
	f, err := os.Create(filepath.Join(outputDir, "call_graph"))
	if err != nil {
		return fmt.Errorf("creating call_graph file: %w", err)
	}
	defer f.Close()
	if err := prog.WriteCallGraph(f); err != nil {
		return fmt.Errorf("writing call_graph file: %w", err)
	}

	if svgPath == "" {
		return nil
	}
	return renderCallGraphSVG(svgPath, prog)
}

// writeCPUDumps writes the optional per-CPU "cpu<N>" debug dump files.
func writeCPUDumps(outputDir string, acc *accumulator) error {
	acc.mu.Lock()
	defer acc.mu.Unlock()

	cpus := make([]int, 0, len(acc.cpuDumps))
	for cpu := range acc.cpuDumps {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)

	for _, cpu := range cpus {
		name := filepath.Join(outputDir, fmt.Sprintf("cpu%d", cpu))
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		w := bufio.NewWriter(f)
		for _, chunk := range acc.cpuDumps[cpu] {
			if _, err := w.WriteString(chunk); err != nil {
				f.Close()
				return fmt.Errorf("writing %s: %w", name, err)
			}
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return fmt.Errorf("flushing %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", name, err)
		}
	}
	return nil
}
