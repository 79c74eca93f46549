// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// metrics holds the counters exported on --metrics-addr. There is no
// exported hook into matcher/method's private result cache, so the
// cache hit rate isn't tracked here; decoded chunks, emitted log
// bytes and thread-split loss events stand in as the observable proxy
// for decode/match progress and data quality.
type metrics struct {
	chunksDecoded prometheus.Counter
	logBytes      prometheus.Counter
	lossEvents    prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		chunksDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jportal_trace_chunks_decoded_total",
			Help: "Total number of TraceParts decoded",
		}),
		logBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jportal_trace_log_bytes_total",
			Help: "Total number of tracedata.Log bytes emitted across all decoded chunks",
		}),
		lossEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jportal_trace_loss_events_total",
			Help: "Total number of thread splits with head or tail data loss",
		}),
	}
}

// serve starts an HTTP server exposing /metrics on addr, returning
// immediately; the caller is responsible for closing the returned
// server once done is no longer needed.
func (m *metrics) serve(addr string, logger *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warnw("metrics server stopped", "error", err)
		}
	}()
	logger.Infow("serving metrics", "addr", addr)
	return srv
}
