// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command jportal-trace reconstructs bytecode- and JIT-level execution
// traces of a running JVM from a processor-trace capture plus its
// companion runtime metadata stream.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var opts options

type options struct {
	traceData       string
	dumpData        string
	classConfig     string
	callback        string
	traceCompressed bool
	metricsAddr     string
	callGraphSVG    string
	dumpCPU         bool
	outputDir       string
	parallelism     int
	verbose         bool
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jportal-trace",
		Short: "Reconstruct JVM bytecode/JIT execution traces from a processor-trace capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.verbose)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer logger.Sync()
			return run(cmd.Context(), opts, logger.Sugar())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.traceData, "trace-data", "JPortalTrace.data", "binary trace file")
	flags.StringVar(&opts.dumpData, "dump-data", "JPortalDump.data", "VM-side metadata stream")
	flags.StringVar(&opts.classConfig, "class-config", "", "classfile search roots and option blocks (required)")
	flags.StringVar(&opts.callback, "callback", "", "list of (class_name method_name+signature) pairs seeding the callback candidate set")
	flags.BoolVar(&opts.traceCompressed, "trace-compressed", false, "read --trace-data as a zstd-compressed stream")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (disabled if empty)")
	flags.StringVar(&opts.callGraphSVG, "call-graph-svg", "", "also render the call graph as an SVG at this path")
	flags.BoolVar(&opts.dumpCPU, "dump-cpu", false, "also write a raw per-CPU cpu<N> bytecode/JIT dump for debugging")
	flags.StringVar(&opts.outputDir, "output-dir", ".", "directory the methods/<tid>/call_graph output files are written to")
	flags.IntVar(&opts.parallelism, "parallelism", 0, "number of concurrent decode/match workers (0 means one per captured CPU)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug-level logging")
	cmd.MarkFlagRequired("class-config")

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
