// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/jportal/trace/config"
	"github.com/jportal/trace/decoder"
	"github.com/jportal/trace/matcher/method"
	"github.com/jportal/trace/splitter"
	"github.com/jportal/trace/task"
	"github.com/jportal/trace/tracedata"
	"github.com/jportal/trace/tracefile"
)

// accumulator collects every chunk's results as task workers finish
// them, guarded by a single mutex: chunks run concurrently but the
// output each produces (runtime method identities, per-thread matched
// stacks, optional raw dumps) is cheap enough to merge under a lock
// rather than worth a lock-free structure.
type accumulator struct {
	mu       sync.Mutex
	methods  decoder.MethodTable
	splits   map[int64][]threadSplitResult
	cpuDumps map[int][]string
}

// threadSplitResult is one ThreadSplit's matched output, ready to be
// written to that thread's output file once every chunk has reported.
type threadSplitResult struct {
	startTime, endTime uint64
	headLoss, tailLoss bool
	methodIndices      []int32
}

func newAccumulator() *accumulator {
	return &accumulator{
		methods:  make(decoder.MethodTable),
		splits:   make(map[int64][]threadSplitResult),
		cpuDumps: make(map[int][]string),
	}
}

func (a *accumulator) mergeMethods(m decoder.MethodTable) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for idx, entry := range m {
		a.methods[idx] = entry
	}
}

func (a *accumulator) addSplit(tid int64, r threadSplitResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.splits[tid] = append(a.splits[tid], r)
}

func (a *accumulator) addCPUDump(cpu int, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cpuDumps[cpu] = append(a.cpuDumps[cpu], text)
}

// run loads the classfile/callback config, splits the trace-data file
// into per-CPU chunks, decodes and matches every chunk concurrently,
// and writes the methods, per-thread, call-graph and (optionally)
// per-CPU debug output files.
func run(ctx context.Context, o options, logger *zap.SugaredLogger) error {
	cfg, err := config.LoadClassConfig(o.classConfig)
	if err != nil {
		return err
	}
	classes, err := config.LoadClasses(cfg)
	if err != nil {
		return err
	}
	logger.Infow("loaded classes", "count", len(classes))

	prog := method.NewProgram(classes)

	if o.callback != "" {
		entries, err := config.LoadCallbacks(o.callback)
		if err != nil {
			return err
		}
		triples := make([][3]string, len(entries))
		for i, e := range entries {
			triples[i] = [3]string{e.Class, e.Method, e.Desc}
		}
		prog.SetCallbacks(triples)
		logger.Infow("loaded callback candidates", "count", len(entries))
	}

	dumpData, err := os.ReadFile(o.dumpData)
	if err != nil {
		return fmt.Errorf("reading dump-data: %w", err)
	}

	tf, err := tracefile.Open(o.traceData, o.traceCompressed)
	if err != nil {
		return fmt.Errorf("opening trace-data: %w", err)
	}
	defer tf.Close()

	parts, err := splitter.Split(tf.Records())
	if err != nil {
		return fmt.Errorf("splitting trace-data: %w", err)
	}

	var m *metrics
	if o.metricsAddr != "" {
		m = newMetrics()
		srv := m.serve(o.metricsAddr, logger)
		defer srv.Close()
	}

	parallelism := o.parallelism
	if parallelism <= 0 {
		parallelism = tf.Header.NrCPUs
	}
	if parallelism <= 0 {
		parallelism = len(parts)
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	totalParts := 0
	for _, cpuParts := range parts {
		totalParts += len(cpuParts)
	}
	logger.Infow("split trace-data", "cpus", len(parts), "chunks", totalParts, "parallelism", parallelism)

	acc := newAccumulator()
	// Every chunk is committed up front (there are no follow-on tasks
	// here), so the queue needs room for all of them at once: Commit
	// blocks once the buffer fills, and nothing drains it until Run
	// starts its workers below.
	queue := task.NewQueue(totalParts)
	for cpu, cpuParts := range parts {
		for i, part := range cpuParts {
			cpu, part, i := cpu, part, i
			queue.Commit(func(ctx context.Context) (task.Func, error) {
				if err := decodeAndMatch(cpu, i, part, dumpData, prog, acc, m, o.dumpCPU, logger); err != nil {
					return nil, fmt.Errorf("cpu %d chunk %d: %w", cpu, i, err)
				}
				return nil, nil
			})
		}
	}
	if err := task.Run(ctx, queue, int64(parallelism)); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}

	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := writeMethods(o.outputDir, prog); err != nil {
		return err
	}
	if err := writeThreads(o.outputDir, acc); err != nil {
		return err
	}
	if err := writeCallGraph(o.outputDir, prog, o.callGraphSVG); err != nil {
		return err
	}
	if o.dumpCPU {
		if err := writeCPUDumps(o.outputDir, acc); err != nil {
			return err
		}
	}

	logger.Infow("done", "methods", prog.NumMethods(), "threads", len(acc.splits))
	return nil
}

// decodeAndMatch runs one TracePart's decoder and, for every thread
// split the chunk produced, reconstructs its call stack against prog.
// Chunks are embarrassingly parallel: each owns a fresh decoder.Driver
// that replays the whole companion metadata stream up to its own
// first timestamp, so no state crosses chunk boundaries.
func decodeAndMatch(cpu, idx int, part splitter.TracePart, dumpData []byte, prog *method.Program, acc *accumulator, m *metrics, dumpCPU bool, logger *zap.SugaredLogger) error {
	d, err := decoder.NewDriver(dumpData, logger)
	if err != nil {
		return fmt.Errorf("building driver: %w", err)
	}
	log, methods, err := d.Run(part)
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	if m != nil {
		m.chunksDecoded.Inc()
		m.logBytes.Add(float64(log.Len()))
	}

	acc.mergeMethods(methods)

	for _, tid := range log.AllThreads() {
		for _, ts := range log.Threads(tid) {
			if ts.HeadLoss || ts.TailLoss {
				if m != nil {
					m.lossEvents.Inc()
				}
			}
			mm := method.NewMatcher(prog, log)
			stack := mm.Match(ts.StartOffset, ts.EndOffset)
			indices := make([]int32, len(stack))
			for i, f := range stack {
				indices[i] = int32(f.Method)
			}
			acc.addSplit(tid, threadSplitResult{
				startTime:     ts.StartTime,
				endTime:       ts.EndTime,
				headLoss:      ts.HeadLoss,
				tailLoss:      ts.TailLoss,
				methodIndices: indices,
			})
		}
	}

	if dumpCPU {
		acc.addCPUDump(cpu, dumpCPUText(cpu, idx, log))
	}
	return nil
}

// dumpCPUText renders one chunk's raw tag stream as text, for the
// optional cpu<N> debug dump.
func dumpCPUText(cpu, idx int, log *tracedata.Log) string {
	var out []byte
	out = append(out, fmt.Sprintf("# cpu %d chunk %d, %d bytes\n", cpu, idx, log.Len())...)
	recs := log.Records()
	for {
		op, _, ok, err := recs.Next()
		if err != nil {
			out = append(out, fmt.Sprintf("error: %v\n", err)...)
			break
		}
		if !ok {
			break
		}
		out = append(out, fmt.Sprintf("%s\n", op)...)
	}
	return string(out)
}
