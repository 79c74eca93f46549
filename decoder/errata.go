// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decoder

import "github.com/jportal/trace/ptquery"

// vmlaunchOpcode and vmresumeOpcode are the raw x86 bytes libipt's
// SKD022 workaround looks for at the IP an asynchronous branch event
// names: VMLAUNCH (0F 01 C2) and VMRESUME (0F 01 C3). Matching the
// opcode bytes directly is enough here; a full instruction-length decoder
// isn't needed for these two fixed-width, fixed-prefix instructions.
var (
	vmlaunchOpcode = []byte{0x0f, 0x01, 0xc2}
	vmresumeOpcode = []byte{0x0f, 0x01, 0xc3}
)

// errataSKD022 reports whether ip, the IP an asynchronous branch
// event reports, sits on a VMLAUNCH/VMRESUME inside a JIT section:
// some CPUs log the event before the VMX instruction has actually
// retired, so the driver drops such an event rather than attributing
// it to guest code.
func (d *Driver) errataSKD022(ip uint64) bool {
	var buf [3]byte
	section, err := d.image.Find(ip)
	if err != nil {
		return false
	}
	defer func() {
		if _, perr := section.Put(); perr != nil {
			d.logger.Debugw("put jit section", "error", perr)
		}
	}()
	n, err := section.ReadCode(buf[:], ip)
	if err != nil || n != 3 {
		return false
	}
	return matchesOpcode(buf[:n], vmlaunchOpcode) || matchesOpcode(buf[:n], vmresumeOpcode)
}

func matchesOpcode(got, want []byte) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// errataBDM64 handles a TSX abort reported right after an indirect or
// conditional branch: on affected CPUs the preceding TIP may carry a
// stale target, so the driver resyncs to the query decoder's own
// cursor instead of trusting the ip it just resolved.
func (d *Driver) errataBDM64(ev ptquery.Event) {
	if ev.Kind == ptquery.EventTSX && ev.Aborted && d.justBranched {
		d.pendingResync = true
	}
}

// errataSKL014 absorbs a disable/enable pair with no intervening IP
// change: on some CPUs an unconditional direct branch landing right
// on a filter's range boundary is reported as disabling and then
// immediately re-enabling tracing, rather than as a no-op. Treating
// that pair as a loss-free continuation (instead of a switch-out/in)
// avoids spuriously splitting the thread's trace at every such
// boundary hit.
func (d *Driver) errataSKL014(disabled, reenabled ptquery.Event) bool {
	return !disabled.HasIP && reenabled.HasIP && reenabled.IP == d.lastEnabledIP
}
