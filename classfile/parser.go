// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import "fmt"

const (
	classFileMagic = 0xCAFEBABE
	codeAttribute  = "Code"
)

// Parse reads one .class file's bytes into a Class. Only the Code
// attribute is interpreted; every other attribute (debug tables,
// annotations, signatures, ...) is skipped over by its declared
// length without being inspected.
func Parse(data []byte) (*Class, error) {
	r := newReader(data)

	magic, err := r.u4()
	if err != nil {
		return nil, err
	}
	if magic != classFileMagic {
		return nil, fmt.Errorf("classfile: bad magic %#x: %w", magic, ErrBadInput)
	}
	if err := r.skip(4); err != nil { // minor_version, major_version
		return nil, err
	}

	cpSize, err := r.u2()
	if err != nil {
		return nil, err
	}
	cp, err := parseConstantPool(r, int(cpSize))
	if err != nil {
		return nil, err
	}

	if _, err := r.u2(); err != nil { // access_flags
		return nil, err
	}

	thisClassIndex, err := r.u2()
	if err != nil {
		return nil, err
	}
	className, err := cp.ClassName(thisClassIndex)
	if err != nil {
		return nil, err
	}

	superClassIndex, err := r.u2()
	if err != nil {
		return nil, err
	}
	var superName string
	if superClassIndex != 0 {
		if superName, err = cp.ClassName(superClassIndex); err != nil {
			return nil, err
		}
	}

	class := &Class{Name: className, SuperName: superName, cp: cp}

	itfsLen, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(itfsLen); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.ClassName(idx)
		if err != nil {
			return nil, err
		}
		class.Interfaces = append(class.Interfaces, name)
	}

	if err := skipFields(r); err != nil {
		return nil, err
	}

	if err := parseMethods(r, cp, class); err != nil {
		return nil, err
	}

	if err := skipAttributes(r); err != nil {
		return nil, err
	}

	return class, nil
}

func skipFields(r *reader) error {
	n, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if err := r.skip(6); err != nil { // access_flags, name_index, descriptor_index
			return err
		}
		if err := skipAttributes(r); err != nil {
			return err
		}
	}
	return nil
}

func parseMethods(r *reader, cp *ConstantPool, class *Class) error {
	n, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		m, err := parseMethod(r, cp, class)
		if err != nil {
			return err
		}
		class.Methods = append(class.Methods, m)
	}
	return nil
}

func parseMethod(r *reader, cp *ConstantPool, class *Class) (*Method, error) {
	if _, err := r.u2(); err != nil { // access_flags
		return nil, err
	}
	nameIndex, err := r.u2()
	if err != nil {
		return nil, err
	}
	name, err := cp.Utf8(nameIndex)
	if err != nil {
		return nil, err
	}
	descIndex, err := r.u2()
	if err != nil {
		return nil, err
	}
	descriptor, err := cp.Utf8(descIndex)
	if err != nil {
		return nil, err
	}

	m := &Method{Name: name, Descriptor: descriptor, Class: class}

	attrCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(attrCount); i++ {
		attrNameIndex, err := r.u2()
		if err != nil {
			return nil, err
		}
		attrLength, err := r.u4()
		if err != nil {
			return nil, err
		}
		attrName, err := cp.Utf8(attrNameIndex)
		if err != nil {
			return nil, err
		}
		if attrName != codeAttribute {
			if err := r.skip(int(attrLength)); err != nil {
				return nil, err
			}
			continue
		}
		if err := parseCode(r, m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// parseCode reads a Code attribute's body. Class files older than
// major version 45.3 used one-byte max_stack/max_locals/code_length
// fields; every class file this package has ever been asked to parse
// targets a modern JVM, so that legacy layout isn't handled.
func parseCode(r *reader, m *Method) error {
	maxStack, err := r.u2()
	if err != nil {
		return err
	}
	maxLocals, err := r.u2()
	if err != nil {
		return err
	}
	codeLength, err := r.u4()
	if err != nil {
		return err
	}
	code, err := r.bytes(int(codeLength))
	if err != nil {
		return err
	}
	m.MaxStack = maxStack
	m.MaxLocals = maxLocals
	m.Code = code

	exLen, err := r.u2()
	if err != nil {
		return err
	}
	m.ExceptionTable = make([]ExceptionHandler, exLen)
	for i := range m.ExceptionTable {
		startPC, err := r.u2()
		if err != nil {
			return err
		}
		endPC, err := r.u2()
		if err != nil {
			return err
		}
		handlerPC, err := r.u2()
		if err != nil {
			return err
		}
		catchType, err := r.u2()
		if err != nil {
			return err
		}
		m.ExceptionTable[i] = ExceptionHandler{startPC, endPC, handlerPC, catchType}
	}

	return skipAttributes(r) // code attributes (LineNumberTable, ...)
}

func skipAttributes(r *reader) error {
	n, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if _, err := r.u2(); err != nil { // attribute_name_index
			return err
		}
		length, err := r.u4()
		if err != nil {
			return err
		}
		if err := r.skip(int(length)); err != nil {
			return err
		}
	}
	return nil
}
