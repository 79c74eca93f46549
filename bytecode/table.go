// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

// opLengths packs each op's fixed instruction length into the low
// nibble and its wide-prefixed length into the high nibble; zero means
// "not applicable" (either the op has no such form, or its length is
// data-dependent and must be computed by the caller from the operand
// bytes, as with *switch).
var opLengths = [NumOps]byte{
	Nop: 1, AconstNull: 1, IconstM1: 1, Iconst0: 1, Iconst1: 1, Iconst2: 1,
	Iconst3: 1, Iconst4: 1, Iconst5: 1, Lconst0: 1, Lconst1: 1, Fconst0: 1,
	Fconst1: 1, Fconst2: 1, Dconst0: 1, Dconst1: 1,
	Bipush: 2, Sipush: 3,
	Ldc: 2, LdcW: 3, Ldc2W: 3,
	Iload: 2 | 4<<4, Lload: 2 | 4<<4, Fload: 2 | 4<<4, Dload: 2 | 4<<4, Aload: 2 | 4<<4,
	Iload0: 1, Iload1: 1, Iload2: 1, Iload3: 1,
	Lload0: 1, Lload1: 1, Lload2: 1, Lload3: 1,
	Fload0: 1, Fload1: 1, Fload2: 1, Fload3: 1,
	Dload0: 1, Dload1: 1, Dload2: 1, Dload3: 1,
	Aload0: 1, Aload1: 1, Aload2: 1, Aload3: 1,
	Iaload: 1, Laload: 1, Faload: 1, Daload: 1, Aaload: 1, Baload: 1, Caload: 1, Saload: 1,
	Istore: 2 | 4<<4, Lstore: 2 | 4<<4, Fstore: 2 | 4<<4, Dstore: 2 | 4<<4, Astore: 2 | 4<<4,
	Istore0: 1, Istore1: 1, Istore2: 1, Istore3: 1,
	Lstore0: 1, Lstore1: 1, Lstore2: 1, Lstore3: 1,
	Fstore0: 1, Fstore1: 1, Fstore2: 1, Fstore3: 1,
	Dstore0: 1, Dstore1: 1, Dstore2: 1, Dstore3: 1,
	Astore0: 1, Astore1: 1, Astore2: 1, Astore3: 1,
	Iastore: 1, Lastore: 1, Fastore: 1, Dastore: 1, Aastore: 1, Bastore: 1, Castore: 1, Sastore: 1,
	Pop: 1, Pop2: 1, Dup: 1, DupX1: 1, DupX2: 1, Dup2: 1, Dup2X1: 1, Dup2X2: 1, Swap: 1,
	Iadd: 1, Ladd: 1, Fadd: 1, Dadd: 1, Isub: 1, Lsub: 1, Fsub: 1, Dsub: 1,
	Imul: 1, Lmul: 1, Fmul: 1, Dmul: 1, Idiv: 1, Ldiv: 1, Fdiv: 1, Ddiv: 1,
	Irem: 1, Lrem: 1, Frem: 1, Drem: 1, Ineg: 1, Lneg: 1, Fneg: 1, Dneg: 1,
	Ishl: 1, Lshl: 1, Ishr: 1, Lshr: 1, Iushr: 1, Lushr: 1, Iand: 1, Land: 1,
	Ior: 1, Lor: 1, Ixor: 1, Lxor: 1,
	Iinc: 3 | 6<<4,
	I2l: 1, I2f: 1, I2d: 1, L2i: 1, L2f: 1, L2d: 1, F2i: 1, F2l: 1, F2d: 1,
	D2i: 1, D2l: 1, D2f: 1, I2b: 1, I2c: 1, I2s: 1,
	Lcmp: 1, Fcmpl: 1, Fcmpg: 1, Dcmpl: 1, Dcmpg: 1,
	Ifeq: 3, Ifne: 3, Iflt: 3, Ifge: 3, Ifgt: 3, Ifle: 3,
	IfIcmpeq: 3, IfIcmpne: 3, IfIcmplt: 3, IfIcmpge: 3, IfIcmpgt: 3, IfIcmple: 3,
	IfAcmpeq: 3, IfAcmpne: 3, Goto: 3, Jsr: 3,
	Ret: 2 | 4<<4,
	// Tableswitch, Lookupswitch: data-dependent length, left 0.
	Ireturn: 1, Lreturn: 1, Freturn: 1, Dreturn: 1, Areturn: 1, Return: 1,
	Getstatic: 3, Putstatic: 3, Getfield: 3, Putfield: 3,
	Invokevirtual: 3, Invokespecial: 3, Invokestatic: 3,
	Invokeinterface: 5, Invokedynamic: 5,
	New: 3, Newarray: 2, Anewarray: 3, Arraylength: 1, Athrow: 1,
	Checkcast: 3, Instanceof: 3, Monitorenter: 1, Monitorexit: 1,
	// Wide: data-dependent length, left 0.
	Multianewarray: 4, Ifnull: 3, Ifnonnull: 3, GotoW: 5, JsrW: 5,
	// Breakpoint: left 0.

	FastAgetfield: 3, FastBgetfield: 3, FastCgetfield: 3, FastDgetfield: 3,
	FastFgetfield: 3, FastIgetfield: 3, FastLgetfield: 3, FastSgetfield: 3,
	FastAputfield: 3, FastBputfield: 3, FastZputfield: 3, FastCputfield: 3,
	FastDputfield: 3, FastFputfield: 3, FastIputfield: 3, FastLputfield: 3, FastSputfield: 3,
	FastAload0:   1,
	FastIaccess0: 4, FastAaccess0: 4, FastFaccess0: 4,
	FastIload: 2, FastIload2: 4, FastIcaload: 3,
	FastInvokevfinal: 3,
	// FastLinearswitch, FastBinaryswitch: data-dependent, left 0.
	FastAldc: 2, FastAldcW: 3,
	ReturnRegisterFinalizer: 1,
	Invokehandle:            3,
	NofastGetfield:          3, NofastPutfield: 3,
	NofastAload0: 1, NofastIload: 2,
	ShouldNotReachHere: 1,
}

// opIsBlockEnd reports which ops always end a basic block.
var opIsBlockEnd = [NumOps]bool{
	Ifeq: true, Ifne: true, Iflt: true, Ifge: true, Ifgt: true, Ifle: true,
	IfIcmpeq: true, IfIcmpne: true, IfIcmplt: true, IfIcmpge: true,
	IfIcmpgt: true, IfIcmple: true, IfAcmpeq: true, IfAcmpne: true,
	Goto: true, Jsr: true, Ret: true, Tableswitch: true, Lookupswitch: true,
	Ireturn: true, Lreturn: true, Freturn: true, Dreturn: true, Areturn: true,
	Return: true, Athrow: true, Ifnull: true, Ifnonnull: true,
	GotoW: true, JsrW: true,
}

var opNames = [PseudoOsrEntryPoints + 1]string{
	Nop: "nop", AconstNull: "aconst_null", IconstM1: "iconst_m1",
	Iconst0: "iconst_0", Iconst1: "iconst_1", Iconst2: "iconst_2",
	Iconst3: "iconst_3", Iconst4: "iconst_4", Iconst5: "iconst_5",
	Lconst0: "lconst_0", Lconst1: "lconst_1",
	Fconst0: "fconst_0", Fconst1: "fconst_1", Fconst2: "fconst_2",
	Dconst0: "dconst_0", Dconst1: "dconst_1",
	Bipush: "bipush", Sipush: "sipush",
	Ldc: "ldc", LdcW: "ldc_w", Ldc2W: "ldc2_w",
	Iload: "iload", Lload: "lload", Fload: "fload", Dload: "dload", Aload: "aload",
	Iload0: "iload_0", Iload1: "iload_1", Iload2: "iload_2", Iload3: "iload_3",
	Lload0: "lload_0", Lload1: "lload_1", Lload2: "lload_2", Lload3: "lload_3",
	Fload0: "fload_0", Fload1: "fload_1", Fload2: "fload_2", Fload3: "fload_3",
	Dload0: "dload_0", Dload1: "dload_1", Dload2: "dload_2", Dload3: "dload_3",
	Aload0: "aload_0", Aload1: "aload_1", Aload2: "aload_2", Aload3: "aload_3",
	Iaload: "iaload", Laload: "laload", Faload: "faload", Daload: "daload",
	Aaload: "aaload", Baload: "baload", Caload: "caload", Saload: "saload",
	Istore: "istore", Lstore: "lstore", Fstore: "fstore", Dstore: "dstore", Astore: "astore",
	Istore0: "istore_0", Istore1: "istore_1", Istore2: "istore_2", Istore3: "istore_3",
	Lstore0: "lstore_0", Lstore1: "lstore_1", Lstore2: "lstore_2", Lstore3: "lstore_3",
	Fstore0: "fstore_0", Fstore1: "fstore_1", Fstore2: "fstore_2", Fstore3: "fstore_3",
	Dstore0: "dstore_0", Dstore1: "dstore_1", Dstore2: "dstore_2", Dstore3: "dstore_3",
	Astore0: "astore_0", Astore1: "astore_1", Astore2: "astore_2", Astore3: "astore_3",
	Iastore: "iastore", Lastore: "lastore", Fastore: "fastore", Dastore: "dastore",
	Aastore: "aastore", Bastore: "bastore", Castore: "castore", Sastore: "sastore",
	Pop: "pop", Pop2: "pop2", Dup: "dup", DupX1: "dup_x1", DupX2: "dup_x2",
	Dup2: "dup2", Dup2X1: "dup2_x1", Dup2X2: "dup2_x2", Swap: "swap",
	Iadd: "iadd", Ladd: "ladd", Fadd: "fadd", Dadd: "dadd",
	Isub: "isub", Lsub: "lsub", Fsub: "fsub", Dsub: "dsub",
	Imul: "imul", Lmul: "lmul", Fmul: "fmul", Dmul: "dmul",
	Idiv: "idiv", Ldiv: "ldiv", Fdiv: "fdiv", Ddiv: "ddiv",
	Irem: "irem", Lrem: "lrem", Frem: "frem", Drem: "drem",
	Ineg: "ineg", Lneg: "lneg", Fneg: "fneg", Dneg: "dneg",
	Ishl: "ishl", Lshl: "lshl", Ishr: "ishr", Lshr: "lshr",
	Iushr: "iushr", Lushr: "lushr", Iand: "iand", Land: "land",
	Ior: "ior", Lor: "lor", Ixor: "ixor", Lxor: "lxor",
	Iinc: "iinc",
	I2l:  "i2l", I2f: "i2f", I2d: "i2d", L2i: "l2i", L2f: "l2f", L2d: "l2d",
	F2i: "f2i", F2l: "f2l", F2d: "f2d", D2i: "d2i", D2l: "d2l", D2f: "d2f",
	I2b: "i2b", I2c: "i2c", I2s: "i2s",
	Lcmp: "lcmp", Fcmpl: "fcmpl", Fcmpg: "fcmpg", Dcmpl: "dcmpl", Dcmpg: "dcmpg",
	Ifeq: "ifeq", Ifne: "ifne", Iflt: "iflt", Ifge: "ifge", Ifgt: "ifgt", Ifle: "ifle",
	IfIcmpeq: "if_icmpeq", IfIcmpne: "if_icmpne", IfIcmplt: "if_icmplt",
	IfIcmpge: "if_icmpge", IfIcmpgt: "if_icmpgt", IfIcmple: "if_icmple",
	IfAcmpeq: "if_acmpeq", IfAcmpne: "if_acmpne",
	Goto: "goto", Jsr: "jsr", Ret: "ret",
	Tableswitch: "tableswitch", Lookupswitch: "lookupswitch",
	Ireturn: "ireturn", Lreturn: "lreturn", Freturn: "freturn",
	Dreturn: "dreturn", Areturn: "areturn", Return: "return",
	Getstatic: "getstatic", Putstatic: "putstatic",
	Getfield: "getfield", Putfield: "putfield",
	Invokevirtual: "invokevirtual", Invokespecial: "invokespecial",
	Invokestatic: "invokestatic", Invokeinterface: "invokeinterface",
	Invokedynamic: "invokedynamic",
	New:           "new", Newarray: "newarray", Anewarray: "anewarray",
	Arraylength: "arraylength", Athrow: "athrow",
	Checkcast: "checkcast", Instanceof: "instanceof",
	Monitorenter: "monitorenter", Monitorexit: "monitorexit",
	Wide: "wide", Multianewarray: "multianewarray",
	Ifnull: "ifnull", Ifnonnull: "ifnonnull",
	GotoW: "goto_w", JsrW: "jsr_w", Breakpoint: "breakpoint",

	FastAgetfield: "fast_agetfield", FastBgetfield: "fast_bgetfield",
	FastCgetfield: "fast_cgetfield", FastDgetfield: "fast_dgetfield",
	FastFgetfield: "fast_fgetfield", FastIgetfield: "fast_igetfield",
	FastLgetfield: "fast_lgetfield", FastSgetfield: "fast_sgetfield",
	FastAputfield: "fast_aputfield", FastBputfield: "fast_bputfield",
	FastZputfield: "fast_zputfield", FastCputfield: "fast_cputfield",
	FastDputfield: "fast_dputfield", FastFputfield: "fast_fputfield",
	FastIputfield: "fast_iputfield", FastLputfield: "fast_lputfield",
	FastSputfield: "fast_sputfield",
	FastAload0:    "fast_aload_0",
	FastIaccess0:  "fast_iaccess_0", FastAaccess0: "fast_aaccess_0", FastFaccess0: "fast_faccess_0",
	FastIload: "fast_iload", FastIload2: "fast_iload2", FastIcaload: "fast_icaload",
	FastInvokevfinal: "fast_invokevfinal",
	FastLinearswitch: "fast_linearswitch", FastBinaryswitch: "fast_binaryswitch",
	FastAldc: "fast_aldc", FastAldcW: "fast_aldc_w",
	ReturnRegisterFinalizer: "return_register_finalizer",
	Invokehandle:            "invokehandle",
	NofastGetfield:          "nofast_getfield", NofastPutfield: "nofast_putfield",
	NofastAload0: "nofast_aload_0", NofastIload: "nofast_iload",
	ShouldNotReachHere: "shouldnotreachhere",

	PseudoBytecode:                  "pseudo_bytecode",
	PseudoJitcodeEntry:              "pseudo_jitcode_entry",
	PseudoJitcode:                   "pseudo_jitcode",
	PseudoMethodEntry:               "pseudo_method_entry",
	PseudoInvokeReturnEntryPoints:   "pseudo_invoke_return_entry_points",
	PseudoThrowException:            "pseudo_throw_exception",
	PseudoExceptionHandling:         "pseudo_exception_handling",
	PseudoDeoptimizationEntryPoints: "pseudo_deoptimization_entry_points",
	PseudoOsrEntryPoints:            "pseudo_osr_entry_points",
}
