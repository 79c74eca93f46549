// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bytecode describes the Java bytecode set: the standard
// opcodes, the interpreter's internal "fast" and "nofast" rewrites of
// some of them, and the handful of pseudo-opcodes a trace uses to mark
// interpreter and compiled-code entry points that have no bytecode of
// their own.
//
// An Op's instruction length, branch/invoke/return classification, and
// canonical (pre-rewrite) form are all table-driven; see Op.Len and
// Canonical.
package bytecode // import "github.com/jportal/trace/bytecode"

import "fmt"

// Op is a single bytecode, in the numbering the JVM interpreter itself
// uses (which includes its internal rewritten forms, not just the
// standard JVM spec opcodes).
type Op int

// Illegal is not a valid Op; it is the zero value's complement, used as
// a sentinel return from lookups that fail.
const Illegal Op = -1

// Standard Java bytecodes, in JVM specification order. Numeric values
// match the class-file encoding, so Op(classfileByte) is always valid
// for codes below NumJavaOps.
const (
	Nop Op = iota
	AconstNull
	IconstM1
	Iconst0
	Iconst1
	Iconst2
	Iconst3
	Iconst4
	Iconst5
	Lconst0
	Lconst1
	Fconst0
	Fconst1
	Fconst2
	Dconst0
	Dconst1
	Bipush
	Sipush
	Ldc
	LdcW
	Ldc2W
	Iload
	Lload
	Fload
	Dload
	Aload
	Iload0
	Iload1
	Iload2
	Iload3
	Lload0
	Lload1
	Lload2
	Lload3
	Fload0
	Fload1
	Fload2
	Fload3
	Dload0
	Dload1
	Dload2
	Dload3
	Aload0
	Aload1
	Aload2
	Aload3
	Iaload
	Laload
	Faload
	Daload
	Aaload
	Baload
	Caload
	Saload
	Istore
	Lstore
	Fstore
	Dstore
	Astore
	Istore0
	Istore1
	Istore2
	Istore3
	Lstore0
	Lstore1
	Lstore2
	Lstore3
	Fstore0
	Fstore1
	Fstore2
	Fstore3
	Dstore0
	Dstore1
	Dstore2
	Dstore3
	Astore0
	Astore1
	Astore2
	Astore3
	Iastore
	Lastore
	Fastore
	Dastore
	Aastore
	Bastore
	Castore
	Sastore
	Pop
	Pop2
	Dup
	DupX1
	DupX2
	Dup2
	Dup2X1
	Dup2X2
	Swap
	Iadd
	Ladd
	Fadd
	Dadd
	Isub
	Lsub
	Fsub
	Dsub
	Imul
	Lmul
	Fmul
	Dmul
	Idiv
	Ldiv
	Fdiv
	Ddiv
	Irem
	Lrem
	Frem
	Drem
	Ineg
	Lneg
	Fneg
	Dneg
	Ishl
	Lshl
	Ishr
	Lshr
	Iushr
	Lushr
	Iand
	Land
	Ior
	Lor
	Ixor
	Lxor
	Iinc
	I2l
	I2f
	I2d
	L2i
	L2f
	L2d
	F2i
	F2l
	F2d
	D2i
	D2l
	D2f
	I2b
	I2c
	I2s
	Lcmp
	Fcmpl
	Fcmpg
	Dcmpl
	Dcmpg
	Ifeq
	Ifne
	Iflt
	Ifge
	Ifgt
	Ifle
	IfIcmpeq
	IfIcmpne
	IfIcmplt
	IfIcmpge
	IfIcmpgt
	IfIcmple
	IfAcmpeq
	IfAcmpne
	Goto
	Jsr
	Ret
	Tableswitch
	Lookupswitch
	Ireturn
	Lreturn
	Freturn
	Dreturn
	Areturn
	Return
	Getstatic
	Putstatic
	Getfield
	Putfield
	Invokevirtual
	Invokespecial
	Invokestatic
	Invokeinterface
	Invokedynamic
	New
	Newarray
	Anewarray
	Arraylength
	Athrow
	Checkcast
	Instanceof
	Monitorenter
	Monitorexit
	Wide
	Multianewarray
	Ifnull
	Ifnonnull
	GotoW
	JsrW
	Breakpoint

	// NumJavaOps is the number of standard Java bytecodes.
	NumJavaOps
)

// Interpreter-internal rewrites of standard bytecodes: quickened field
// accesses and invokes, and specializations the template interpreter
// installs in place of the original opcode after first execution.
// These never appear in a class file, only in a running method's
// bytecode, which is exactly where a traced instruction pointer lands.
const (
	FastAgetfield Op = NumJavaOps + iota
	FastBgetfield
	FastCgetfield
	FastDgetfield
	FastFgetfield
	FastIgetfield
	FastLgetfield
	FastSgetfield

	FastAputfield
	FastBputfield
	FastZputfield
	FastCputfield
	FastDputfield
	FastFputfield
	FastIputfield
	FastLputfield
	FastSputfield

	FastAload0
	FastIaccess0
	FastAaccess0
	FastFaccess0

	FastIload
	FastIload2
	FastIcaload

	FastInvokevfinal
	FastLinearswitch
	FastBinaryswitch

	FastAldc
	FastAldcW

	ReturnRegisterFinalizer

	Invokehandle

	NofastGetfield
	NofastPutfield
	NofastAload0
	NofastIload

	ShouldNotReachHere

	// NumOps is the number of ops the interpreter can execute,
	// standard plus internal.
	NumOps
)

// Pseudo-ops a trace uses to mark control transfers that land outside
// any bytecode: interpreter and compiled-code entry points, exception
// delivery, deoptimization, and on-stack-replacement entries. These
// never occur in Len, Canonical, or the Is* classifiers below; they
// exist only as Op values a codelet match can report.
const (
	PseudoBytecode Op = NumOps + iota
	PseudoJitcodeEntry
	PseudoJitcode
	PseudoMethodEntry
	PseudoInvokeReturnEntryPoints
	PseudoThrowException
	PseudoExceptionHandling
	PseudoDeoptimizationEntryPoints
	PseudoOsrEntryPoints
)

// IsValid reports whether op is a recognized interpreter opcode (not a
// pseudo-op, and not Illegal).
func (op Op) IsValid() bool {
	return 0 <= op && op < NumOps
}

// String returns op's mnemonic, or "illegal"/"unknown" for values
// outside the known range.
func (op Op) String() string {
	if op == Illegal {
		return "illegal"
	}
	if int(op) >= 0 && int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("unknown(%d)", int(op))
}

// Len returns the length in bytes of op's instruction, including its
// opcode byte, or -1 if op has no fixed length (tableswitch,
// lookupswitch, and their fast variants, wide, and breakpoint, which
// need SpecialLen on the actual operand bytes) or is not valid.
func (op Op) Len() int {
	if !op.IsValid() {
		return -1
	}
	n := int(opLengths[op] & 0xF)
	if n == 0 {
		return -1
	}
	return n
}

// WideLen returns the length in bytes of op's instruction when
// prefixed by the wide bytecode, or -1 if op has no wide form.
func (op Op) WideLen() int {
	if !op.IsValid() {
		return -1
	}
	n := int(opLengths[op] >> 4)
	if n == 0 {
		return -1
	}
	return n
}

// IsBlockEnd reports whether op always ends a basic block: a branch,
// switch, return, or athrow.
func (op Op) IsBlockEnd() bool {
	return op.IsValid() && opIsBlockEnd[op]
}

// IsBranch reports whether op is a conditional branch (if*), including
// ifnull/ifnonnull. goto, jsr, and their _w forms are unconditional and
// are not reported as branches.
func (op Op) IsBranch() bool {
	return (op >= Ifeq && op <= IfAcmpne) || op == Ifnull || op == Ifnonnull
}

// IsReturn reports whether op returns from a method (ireturn..return).
func (op Op) IsReturn() bool {
	return op >= Ireturn && op <= Return
}

// IsInvoke reports whether op is one of the five invoke* bytecodes.
func (op Op) IsInvoke() bool {
	return op >= Invokevirtual && op <= Invokedynamic
}

// IsAload reports whether op loads a reference-typed local.
func (op Op) IsAload() bool {
	switch op {
	case Aload, Aload0, Aload1, Aload2, Aload3:
		return true
	}
	return false
}

// IsAstore reports whether op stores a reference-typed local.
func (op Op) IsAstore() bool {
	switch op {
	case Astore, Astore0, Astore1, Astore2, Astore3:
		return true
	}
	return false
}

// IsStoreIntoLocal reports whether op stores into a local variable slot.
func (op Op) IsStoreIntoLocal() bool {
	return op >= Istore && op <= Astore3
}

// IsConst reports whether op pushes a constant (aconst_null..ldc2_w).
func (op Op) IsConst() bool {
	return op >= AconstNull && op <= Ldc2W
}

// IsZeroConst reports whether op pushes a literal zero.
func (op Op) IsZeroConst() bool {
	switch op {
	case AconstNull, Iconst0, Fconst0, Dconst0:
		return true
	}
	return false
}
