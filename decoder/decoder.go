// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package decoder drives one chunk's worth of processor-trace bytes
// through ptquery's packet/query decoder, classifies every IP it
// lands on against the interpreter's codelet table or a JIT image,
// and folds the result into a tracedata.Log via tracedata.Recorder.
// It is the seam where the codelet registry, the JIT image, the
// sideband decoder and the companion metadata stream all come
// together for a single splitter.TracePart.
package decoder

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/jportal/trace/codelet"
	"github.com/jportal/trace/jitimage"
	"github.com/jportal/trace/jvmdump"
	"github.com/jportal/trace/ptquery"
	"github.com/jportal/trace/sideband"
	"github.com/jportal/trace/splitter"
	"github.com/jportal/trace/tracedata"
)

// errResync is a sentinel the decode loop returns to ask Run to mark
// the current position lost and resume from the chunk's next PSB,
// without treating the chunk itself as exhausted.
var errResync = errors.New("decoder: resync requested")

// inlineCacheKey names one inline-cache call site: the source IP
// inside a given JIT section, the (src, section) pair a
// inline_cache_add/_clear record keys on.
type inlineCacheKey struct {
	ip      uint64
	section *jitimage.JitSection
}

// MethodTable accumulates the method identities seen across however
// many chunks a trace-data file was split into, keyed by the
// dump-assigned method index every chunk's Driver resolves bytecode
// and JIT frames against.
type MethodTable map[int32]jvmdump.MethodEntry

// Driver decodes one TracePart at a time. Each Driver owns its own
// jvmdump.Decoder and jitimage.JitImage built fresh from the whole
// companion metadata stream: chunks from different CPUs can overlap
// in time, so (mirroring the per-chunk allocation the original
// decoder makes) nothing about a JIT image or method table is shared
// between Drivers.
type Driver struct {
	registry *codelet.Registry
	image    *jitimage.JitImage
	dump     *jvmdump.Decoder
	methods  MethodTable
	ics      map[inlineCacheKey]uint64
	logger   *zap.SugaredLogger

	rec  *tracedata.Recorder
	sb   *sideband.Decoder
	time uint64
	tid  int64
	loss bool

	justBranched  bool
	pendingResync bool
	lastEnabledIP uint64

	lastDisabled          ptquery.Event
	pendingDisableErratum bool
}

// NewDriver parses dumpData (the whole companion metadata stream) and
// returns a Driver ready to decode one TracePart. logger may be nil.
func NewDriver(dumpData []byte, logger *zap.SugaredLogger) (*Driver, error) {
	dump, err := jvmdump.NewDecoder(dumpData)
	if err != nil {
		return nil, fmt.Errorf("%w: dump-data: %v", ErrBadInput, err)
	}
	if dump.Registry == nil {
		return nil, fmt.Errorf("%w: dump-data has no interpreter_info record", ErrBadInput)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Driver{
		registry: dump.Registry,
		image:    jitimage.NewJitImage("jitted-code"),
		dump:     dump,
		methods:  make(MethodTable),
		ics:      make(map[inlineCacheKey]uint64),
		logger:   logger,
	}, nil
}

// Run decodes part, appending every resolved bytecode, JIT sample,
// codelet transition and thread switch to a fresh tracedata.Log, and
// returns that log plus the method identities it observed.
func (d *Driver) Run(part splitter.TracePart) (*tracedata.Log, MethodTable, error) {
	l := tracedata.NewLog()
	d.rec = tracedata.NewRecorder(l)
	d.sb = sideband.NewDecoder(part.Sideband)
	d.loss = part.Loss
	d.tid = -1

	pt := ptquery.NewDecoder(part.PT)
	for {
		if _, err := pt.SyncForward(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("%w: sync forward: %v", ErrBadInput, err)
		}
		d.lastEnabledIP = 0
		d.justBranched = false
		d.pendingResync = false

		err := d.decodeChunk(pt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			d.logger.Warnw("decode error, resyncing to next PSB",
				"error", err, "time", d.time)
			d.loss = true
		}
	}
	d.rec.SwitchOut(d.loss)
	return l, d.methods, nil
}

// decodeChunk drains events from pt, resolving conditional and
// indirect branches as they come up, until the buffer is exhausted
// (io.EOF) or a decode error forces a resync.
func (d *Driver) decodeChunk(pt *ptquery.Decoder) error {
	for {
		ev, err := pt.NextEvent()
		switch {
		case errors.Is(err, io.EOF):
			return io.EOF

		case errors.Is(err, ptquery.ErrNeedCond):
			taken, cerr := pt.NextCond()
			if cerr != nil {
				_ = d.rec.AddBranch(2)
				return cerr
			}
			tb := byte(0)
			if taken {
				tb = 1
			}
			if aerr := d.rec.AddBranch(tb); aerr != nil {
				d.logger.Debugw("add branch", "error", aerr)
			}
			continue

		case errors.Is(err, ptquery.ErrNeedIndirect):
			target, ierr := pt.NextIndirect()
			if ierr != nil {
				return ierr
			}
			d.justBranched = true
			if err := d.onIP(target, pt); err != nil {
				return err
			}
			continue

		case err != nil:
			return err
		}

		switch ev.Kind {
		case ptquery.EventTick:
			d.time = ev.Time
			d.drainSideband()

		case ptquery.EventEnabled:
			d.justBranched = false
			if ev.HasIP {
				if d.pendingDisableErratum && d.errataSKL014(d.lastDisabled, ev) {
					d.logger.Debugw("skl014 errata: absorbing spurious disable/enable pair",
						"ip", ev.IP)
				}
				d.pendingDisableErratum = false
				d.lastEnabledIP = ev.IP
				if err := d.onIP(ev.IP, pt); err != nil {
					return err
				}
			}

		case ptquery.EventAsyncBranch:
			d.justBranched = true
			if ev.HasIP {
				if d.errataSKD022(ev.IP) {
					d.logger.Debugw("skd022 errata: suppressing vmlaunch/vmresume async-branch",
						"ip", ev.IP)
					break
				}
				if err := d.onIP(ev.IP, pt); err != nil {
					return err
				}
			}

		case ptquery.EventDisabled:
			d.lastDisabled = ev
			d.pendingDisableErratum = true

		case ptquery.EventTSX:
			d.errataBDM64(ev)
			if d.pendingResync {
				return errResync
			}
		}
	}
}

// onIP drains any sideband/dump events due by the current time,
// classifies ip, then drains again: a method_entry record timestamped
// at the same instant the interpreter jumps to the method-entry
// codelet only has somewhere to attach (AddMethodDesc is a no-op
// unless a PseudoMethodEntry record is open) once classify has run.
func (d *Driver) onIP(ip uint64, pt *ptquery.Decoder) error {
	if !pt.Enabled() {
		return nil
	}
	d.drainSideband()
	d.drainDump()
	if err := d.classify(ip, pt); err != nil {
		return err
	}
	d.drainDump()
	return nil
}

// classify resolves ip against the JIT image first (compiled code
// takes priority over any stale codelet range at the same address)
// and falls back to the interpreter codelet table.
func (d *Driver) classify(ip uint64, pt *ptquery.Decoder) error {
	if section, err := d.image.Find(ip); err == nil {
		err := d.classifyJIT(ip, section, pt)
		if _, perr := section.Put(); perr != nil {
			d.logger.Debugw("put jit section", "error", perr)
		}
		return err
	}

	kind, op := d.registry.Match(ip)
	switch kind {
	case codelet.KindIllegal:
		return nil

	case codelet.KindBytecode:
		if err := d.rec.AddBytecode(d.time, op); err != nil {
			return err
		}
		if op.IsBranch() {
			taken, err := pt.NextCond()
			tb := byte(2)
			if err == nil {
				if taken {
					tb = 1
				} else {
					tb = 0
				}
			}
			if aerr := d.rec.AddBranch(tb); aerr != nil {
				d.logger.Debugw("add branch", "error", aerr)
			}
		}
		return nil

	default:
		return d.rec.AddCodelet(kind)
	}
}

// classifyJIT records one sample inside a JIT section, following an
// inline-cache redirection first if one is pinned for this call site.
func (d *Driver) classifyJIT(ip uint64, section *jitimage.JitSection, pt *ptquery.Decoder) error {
	if dest, ok := d.ics[inlineCacheKey{ip, section}]; ok {
		if destSection, err := d.image.Find(dest); err == nil {
			err := d.classifyJIT(dest, destSection, pt)
			if _, perr := destSection.Put(); perr != nil {
				d.logger.Debugw("put jit section", "error", perr)
			}
			return err
		}
		return d.classify(dest, pt)
	}

	stack, ok, err := section.DebugInfo(ip)
	if err != nil {
		return fmt.Errorf("%w: debug info for %s at %#x: %v", ErrBadInput, section.Name, ip, err)
	}
	if !ok {
		stack = jitimage.PCStackInfo{PC: ip}
	}
	entry := section.CMD != nil && (ip == section.CMD.EntryPoint ||
		ip == section.CMD.VerifiedEntryPoint || ip == section.CMD.OSREntryPoint)
	return d.rec.AddJitcode(d.time, section, stack, entry)
}

// drainSideband folds every sideband event due by d.time into a
// thread switch or a loss flag.
func (d *Driver) drainSideband() {
	for {
		ev, ok := d.sb.Next(d.time)
		if !ok {
			return
		}
		switch ev.Kind {
		case sideband.KindAux:
			if ev.Truncated {
				d.loss = true
			}
		case sideband.KindItraceStart, sideband.KindSwitch:
			javaTID, _ := d.dump.JavaTID(ev.TID)
			d.rec.SwitchOut(d.loss)
			d.tid = int64(javaTID)
			d.rec.SwitchIn(d.tid, d.time, d.loss)
			d.loss = false
		}
	}
}

// drainDump folds every companion-metadata event due by d.time into
// the JIT image, the method table, or the open record.
func (d *Driver) drainDump() {
	for {
		ev, ok := d.dump.Next(d.time)
		if !ok {
			return
		}
		switch ev.Kind {
		case jvmdump.KindCompiledMethodLoad:
			if err := d.image.Add(ev.CompiledMethodLoad.Section); err != nil {
				d.logger.Warnw("add compiled-method section", "error", err)
			}
		case jvmdump.KindDynamicCodeGenerated:
			if err := d.image.Add(ev.DynamicCodeGenerated.Section); err != nil {
				d.logger.Warnw("add dynamic-code section", "error", err)
			}
		case jvmdump.KindCompiledMethodUnload:
			if err := d.image.Remove(ev.CompiledMethodUnload.Base); err != nil {
				d.logger.Debugw("remove compiled-method section", "error", err)
			}
		case jvmdump.KindMethodEntryInitial:
			d.methods[ev.MethodEntry.Index] = ev.MethodEntry
			d.rec.AddMethodDesc(ev.MethodEntry.Index)
		case jvmdump.KindMethodEntry:
			d.rec.AddMethodDesc(ev.MethodEntry.Index)
		case jvmdump.KindInlineCacheAdd:
			ica := ev.InlineCacheAdd
			d.ics[inlineCacheKey{ica.SrcIP, ica.Section}] = ica.DestIP
		case jvmdump.KindInlineCacheClear:
			icc := ev.InlineCacheClear
			delete(d.ics, inlineCacheKey{icc.SrcIP, icc.Section})
		}
	}
}
