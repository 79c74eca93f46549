// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import "fmt"

// Constant pool tags, JVM spec §4.4.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// constant is one constant-pool entry. Only the fields a given tag
// uses are meaningful; which is which is documented per field.
type constant struct {
	tag uint8

	// tagUtf8
	utf8 string

	// tagClass, tagString, tagMethodType, tagModule/tagPackage (>= Java 9)
	index1 uint16

	// tagFieldref, tagMethodref, tagInterfaceMethodref: classIndex,
	// nameAndTypeIndex
	// tagNameAndType: nameIndex, descriptorIndex
	// tagDynamic, tagInvokeDynamic: bootstrapMethodAttrIndex, nameAndTypeIndex
	index2a, index2b uint16
}

// ConstantPool is a parsed class file's constant pool, one-indexed as
// the class file format requires (index 0 is never used; Long/Double
// entries occupy two indices).
type ConstantPool struct {
	entries []constant // entries[0] is always the zero value
}

func newConstantPool(size int) *ConstantPool {
	return &ConstantPool{entries: make([]constant, size)}
}

func (cp *ConstantPool) get(index uint16) (constant, error) {
	if int(index) >= len(cp.entries) || index == 0 {
		return constant{}, fmt.Errorf("classfile: constant pool index %d out of range: %w", index, ErrBadInput)
	}
	return cp.entries[index], nil
}

// Utf8 returns the string value of a CONSTANT_Utf8_info entry.
func (cp *ConstantPool) Utf8(index uint16) (string, error) {
	c, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if c.tag != tagUtf8 {
		return "", fmt.Errorf("classfile: constant %d is tag %d, want Utf8: %w", index, c.tag, ErrBadInput)
	}
	return c.utf8, nil
}

// ClassName resolves a CONSTANT_Class_info entry to its name.
func (cp *ConstantPool) ClassName(index uint16) (string, error) {
	c, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if c.tag != tagClass {
		return "", fmt.Errorf("classfile: constant %d is tag %d, want Class: %w", index, c.tag, ErrBadInput)
	}
	return cp.Utf8(c.index1)
}

// NameAndType resolves a CONSTANT_NameAndType_info entry to its name
// and descriptor strings.
func (cp *ConstantPool) NameAndType(index uint16) (name, descriptor string, err error) {
	c, err := cp.get(index)
	if err != nil {
		return "", "", err
	}
	if c.tag != tagNameAndType {
		return "", "", fmt.Errorf("classfile: constant %d is tag %d, want NameAndType: %w", index, c.tag, ErrBadInput)
	}
	name, err = cp.Utf8(c.index2a)
	if err != nil {
		return "", "", err
	}
	descriptor, err = cp.Utf8(c.index2b)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MethodRef resolves a CONSTANT_Methodref_info or
// CONSTANT_InterfaceMethodref_info entry to the class name, method
// name, and descriptor it names — the (class, method, signature)
// triple a call site's bytecode operand points at.
func (cp *ConstantPool) MethodRef(index uint16) (class, name, descriptor string, err error) {
	c, err := cp.get(index)
	if err != nil {
		return "", "", "", err
	}
	if c.tag != tagMethodref && c.tag != tagInterfaceMethodref {
		return "", "", "", fmt.Errorf("classfile: constant %d is tag %d, want Methodref: %w", index, c.tag, ErrBadInput)
	}
	class, err = cp.ClassName(c.index2a)
	if err != nil {
		return "", "", "", err
	}
	name, descriptor, err = cp.NameAndType(c.index2b)
	if err != nil {
		return "", "", "", err
	}
	return class, name, descriptor, nil
}

// InvokeDynamicNameAndType resolves a CONSTANT_InvokeDynamic_info
// entry's name-and-type component (call-site name and descriptor;
// the bootstrap method itself isn't needed for block-graph matching).
func (cp *ConstantPool) InvokeDynamicNameAndType(index uint16) (name, descriptor string, err error) {
	c, err := cp.get(index)
	if err != nil {
		return "", "", err
	}
	if c.tag != tagInvokeDynamic && c.tag != tagDynamic {
		return "", "", fmt.Errorf("classfile: constant %d is tag %d, want InvokeDynamic: %w", index, c.tag, ErrBadInput)
	}
	return cp.NameAndType(c.index2b)
}

func parseConstantPool(r *reader, size int) (*ConstantPool, error) {
	cp := newConstantPool(size)
	for i := 1; i < size; i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, err
		}
		c := constant{tag: tag}
		switch tag {
		case tagClass, tagString, tagMethodType:
			if c.index1, err = r.u2(); err != nil {
				return nil, err
			}
		case tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			if c.index2a, err = r.u2(); err != nil {
				return nil, err
			}
			if c.index2b, err = r.u2(); err != nil {
				return nil, err
			}
		case tagMethodHandle:
			if _, err = r.u1(); err != nil { // reference_kind
				return nil, err
			}
			if c.index2b, err = r.u2(); err != nil { // reference_index
				return nil, err
			}
		case tagInteger, tagFloat:
			if _, err = r.u4(); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if _, err = r.u8(); err != nil {
				return nil, err
			}
			i++ // long/double occupy two constant pool indices
		case tagUtf8:
			n, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			c.utf8 = string(b)
		case tagModule, tagPackage:
			if c.index1, err = r.u2(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("classfile: unknown constant pool tag %d: %w", tag, ErrBadInput)
		}
		cp.entries[i] = c
	}
	return cp, nil
}
