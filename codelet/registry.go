// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codelet classifies an interpreter instruction pointer: is it
// inside the bytecode dispatch loop (and if so, for which opcode), a
// method entry, a return or exception codelet, a safepoint poll, or a
// deoptimization entry. The JVM dump emits the addresses of all of
// these "codelets" (small hand-written or template-generated chunks
// of interpreter code) once at startup; Registry turns that flat
// address list into something IPs can be matched against in O(log N).
package codelet // import "github.com/jportal/trace/codelet"

import (
	"fmt"

	"github.com/jportal/trace/bytecode"
)

// Kind identifies the category of interpreter codelet an instruction
// pointer falls in.
type Kind int

const (
	KindIllegal Kind = iota - 1
	KindSlowSignatureHandler
	KindErrorExits
	KindBytecodeTracingSupport
	KindReturnEntryPoints
	KindInvokeReturnEntryPoints
	KindEarlyretEntryPoints
	KindResultHandlersForNativeCalls
	KindSafepointEntryPoints
	KindExceptionHandling
	KindRethrowException
	KindThrowExceptionEntrypoints
	KindMethodEntryPoint
	KindBytecode
	KindDeoptimizationEntryPoints
)

func (k Kind) String() string {
	switch k {
	case KindIllegal:
		return "illegal"
	case KindSlowSignatureHandler:
		return "slow_signature_handler"
	case KindErrorExits:
		return "error_exits"
	case KindBytecodeTracingSupport:
		return "bytecode_tracing_support"
	case KindReturnEntryPoints:
		return "return_entry_points"
	case KindInvokeReturnEntryPoints:
		return "invoke_return_entry_points"
	case KindEarlyretEntryPoints:
		return "earlyret_entry_points"
	case KindResultHandlersForNativeCalls:
		return "result_handlers_for_native_calls"
	case KindSafepointEntryPoints:
		return "safepoint_entry_points"
	case KindExceptionHandling:
		return "exception_handling"
	case KindRethrowException:
		return "rethrow_exception"
	case KindThrowExceptionEntrypoints:
		return "throw_exception_entrypoints"
	case KindMethodEntryPoint:
		return "method_entry_point"
	case KindBytecode:
		return "bytecode"
	case KindDeoptimizationEntryPoints:
		return "deoptimization_entry_points"
	default:
		return "unknown"
	}
}

// Layout constants mirroring the fixed shape of the address stream a
// JVM dump emits for a given HotSpot build: the number of interpreter
// dispatch states (TOS-caching variants), the number of codelets that
// get a coarse [start, end) range, and so on.
const (
	numStates          = 10
	numReturnEntries   = 6
	numReturnAddrs     = 10
	numMethodEntries   = 34
	numResultHandlers  = 10
	numDeoptEntries    = 7
	numCodes           = 239 // bytecode.NumOps
	numCodelets        = 272
	idxSlowSigHandler  = 0
	idxErrorExits      = 1
	idxTracingSupport  = 2
	idxReturnEntry     = 3
	idxInvokeReturn    = 4
	idxEarlyretEntry   = 5
	idxResultHandlers  = 6
	idxSafepointEntry  = 7
	idxExceptionHandle = 8
	idxThrowException  = 9
	idxMethodEntry     = 10
	idxStartOfCodes    = 32
	idxDeoptEntry      = 271
)

// Registry answers "what codelet is this instruction pointer in" for a
// single JVM process, once initialized from its dump's codelet address
// table with NewRegistry.
type Registry struct {
	tracingBytecodes bool

	lowBound, highBound uint64
	start, end          [numCodelets]uint64

	dispatch    [numStates][numCodes]uint64
	traceCode   [numStates]uint64
	returnEntry [numStates][numReturnEntries]uint64

	invokeReturnEntry          [numReturnAddrs]uint64
	invokeinterfaceReturnEntry [numReturnAddrs]uint64
	invokedynamicReturnEntry   [numReturnAddrs]uint64

	earlyretEntry    [numStates]uint64
	nativeAbiToTosca [numResultHandlers]uint64
	safeptEntry      [numStates]uint64

	slowSignatureHandlerEntry                uint64
	rethrowExceptionEntry                    uint64
	throwExceptionEntry                      uint64
	removeActivationPreservingArgsEntry      uint64
	removeActivationEntry                    uint64
	throwArrayIndexOutOfBoundsExceptionEntry uint64
	throwArrayStoreExceptionEntry            uint64
	throwArithmeticExceptionEntry            uint64
	throwClassCastExceptionEntry             uint64
	throwNullPointerExceptionEntry           uint64
	throwStackOverflowErrorEntry             uint64

	entryTable [numMethodEntries]uint64
	deoptEntry [numStates][numDeoptEntries]uint64
}

type addrCursor struct {
	addrs []uint64
	pos   int
}

func (c *addrCursor) next() (uint64, error) {
	if c.pos >= len(c.addrs) {
		return 0, fmt.Errorf("codelet: address table truncated at entry %d", c.pos)
	}
	v := c.addrs[c.pos]
	c.pos++
	return v, nil
}

// NewRegistry builds a Registry from the flat codelet address table a
// JVM dump emits, in the fixed order HotSpot's interpreter generator
// lays them out. tracingBytecodes must match the TraceBytecodes flag
// the dumped JVM ran with, since that flag changes the table's shape.
func NewRegistry(tracingBytecodes bool, addrs []uint64) (*Registry, error) {
	r := &Registry{tracingBytecodes: tracingBytecodes}
	c := &addrCursor{addrs: addrs}
	var err error
	next := func() uint64 {
		var v uint64
		if err == nil {
			v, err = c.next()
		}
		return v
	}

	r.lowBound = next()
	r.highBound = next()
	for i := 0; i < 2; i++ {
		r.start[i] = next()
		r.end[i] = next()
	}
	if tracingBytecodes {
		r.start[idxTracingSupport] = next()
		r.end[idxTracingSupport] = next()
	} else {
		r.start[idxTracingSupport] = r.end[1]
		r.end[idxTracingSupport] = r.end[1]
	}
	for i := 3; i < numCodelets; i++ {
		r.start[i] = next()
		r.end[i] = next()
	}

	for i := 0; i < numCodes; i++ {
		for j := 0; j < numStates; j++ {
			r.dispatch[j][i] = next()
		}
	}

	r.slowSignatureHandlerEntry = next()
	if tracingBytecodes {
		for j := 0; j < numStates; j++ {
			r.traceCode[j] = next()
		}
	}

	for i := 0; i < numReturnEntries; i++ {
		for j := 0; j < numStates; j++ {
			r.returnEntry[j][i] = next()
		}
	}
	for i := 0; i < numReturnAddrs; i++ {
		r.invokeReturnEntry[i] = next()
		r.invokeinterfaceReturnEntry[i] = next()
		r.invokedynamicReturnEntry[i] = next()
	}
	for i := 0; i < numStates; i++ {
		r.earlyretEntry[i] = next()
	}
	for i := 0; i < numResultHandlers; i++ {
		r.nativeAbiToTosca[i] = next()
	}
	for i := 0; i < numStates; i++ {
		r.safeptEntry[i] = next()
	}

	r.rethrowExceptionEntry = next()
	r.throwExceptionEntry = next()
	r.removeActivationPreservingArgsEntry = next()
	r.removeActivationEntry = next()
	r.throwArrayIndexOutOfBoundsExceptionEntry = next()
	r.throwArrayStoreExceptionEntry = next()
	r.throwArithmeticExceptionEntry = next()
	r.throwClassCastExceptionEntry = next()
	r.throwNullPointerExceptionEntry = next()
	r.throwStackOverflowErrorEntry = next()

	for i := 0; i < numMethodEntries; i++ {
		r.entryTable[i] = next()
	}
	for i := 0; i < numDeoptEntries; i++ {
		for j := 0; j < numStates; j++ {
			r.deoptEntry[j][i] = next()
		}
	}

	if err != nil {
		return nil, err
	}
	return r, nil
}

// Match classifies ip. When the result is KindBytecode, op names the
// specific bytecode whose dispatch codelet ip falls in.
func (r *Registry) Match(ip uint64) (Kind, bytecode.Op) {
	if ip < r.start[0] || ip >= r.end[numCodelets-1] {
		return KindIllegal, bytecode.Illegal
	}

	ind := r.findRange(ip)
	if ind < 0 {
		return KindIllegal, bytecode.Illegal
	}

	switch {
	case ind == idxSlowSigHandler:
		if ip == r.slowSignatureHandlerEntry {
			return KindSlowSignatureHandler, bytecode.Illegal
		}
		return KindIllegal, bytecode.Illegal

	case ind == idxErrorExits:
		return KindErrorExits, bytecode.Illegal

	case ind == idxTracingSupport:
		for i := 0; i < numStates; i++ {
			if r.traceCode[i] == ip {
				return KindBytecodeTracingSupport, bytecode.Illegal
			}
		}
		return KindIllegal, bytecode.Illegal

	case ind == idxReturnEntry:
		for i := 0; i < numReturnEntries; i++ {
			for j := 0; j < numStates; j++ {
				if r.returnEntry[j][i] == ip {
					return KindReturnEntryPoints, bytecode.Illegal
				}
			}
		}
		return KindIllegal, bytecode.Illegal

	case ind == idxInvokeReturn:
		for i := 0; i < numReturnAddrs; i++ {
			if r.invokeReturnEntry[i] == ip || r.invokeinterfaceReturnEntry[i] == ip || r.invokedynamicReturnEntry[i] == ip {
				return KindInvokeReturnEntryPoints, bytecode.Illegal
			}
		}
		return KindIllegal, bytecode.Illegal

	case ind == idxEarlyretEntry:
		for j := 0; j < numStates; j++ {
			if r.earlyretEntry[j] == ip {
				return KindEarlyretEntryPoints, bytecode.Illegal
			}
		}
		return KindIllegal, bytecode.Illegal

	case ind == idxResultHandlers:
		for i := 0; i < numResultHandlers; i++ {
			if r.nativeAbiToTosca[i] == ip {
				return KindResultHandlersForNativeCalls, bytecode.Illegal
			}
		}
		return KindIllegal, bytecode.Illegal

	case ind == idxSafepointEntry:
		for j := 0; j < numStates; j++ {
			if r.safeptEntry[j] == ip {
				return KindSafepointEntryPoints, bytecode.Illegal
			}
		}
		return KindIllegal, bytecode.Illegal

	case ind == idxExceptionHandle:
		if ip == r.rethrowExceptionEntry {
			return KindRethrowException, bytecode.Illegal
		}
		return KindExceptionHandling, bytecode.Illegal

	case ind == idxThrowException:
		return KindThrowExceptionEntrypoints, bytecode.Illegal

	case ind < idxStartOfCodes:
		for i := 0; i < numMethodEntries; i++ {
			if r.entryTable[i] == ip {
				return KindMethodEntryPoint, bytecode.Illegal
			}
		}
		return KindIllegal, bytecode.Illegal

	case ind < idxStartOfCodes+numCodes:
		op := bytecode.Op(ind - idxStartOfCodes)
		for i := 0; i < numStates; i++ {
			if r.dispatch[i][int(op)] == ip {
				return KindBytecode, op
			}
		}
		return KindIllegal, bytecode.Illegal

	case ind == idxDeoptEntry:
		for i := 0; i < numDeoptEntries; i++ {
			for j := 0; j < numStates; j++ {
				if r.deoptEntry[j][i] == ip {
					return KindDeoptimizationEntryPoints, bytecode.Illegal
				}
			}
		}
		return KindIllegal, bytecode.Illegal

	default:
		return KindIllegal, bytecode.Illegal
	}
}

// findRange binary-searches the coarse [start, end) codelet ranges for
// the one containing ip, returning its index or -1.
func (r *Registry) findRange(ip uint64) int {
	low, high := 0, numCodelets-1
	for low <= high {
		mid := (low + high) / 2
		switch {
		case ip >= r.start[mid] && ip < r.end[mid]:
			return mid
		case ip >= r.end[mid] && mid+1 < numCodelets && ip < r.start[mid+1]:
			return -1
		case ip < r.start[mid]:
			high = mid - 1
		default:
			low = mid + 1
		}
	}
	return -1
}
