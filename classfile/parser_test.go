// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classBuilder assembles a minimal, valid .class file byte-by-byte
// for testing the parser without needing a real compiled artifact.
type classBuilder struct {
	cp [][]byte // constant pool entries, index 1-based
}

func newClassBuilder() *classBuilder { return &classBuilder{} }

func (b *classBuilder) addUtf8(s string) uint16 {
	var e bytes.Buffer
	e.WriteByte(tagUtf8)
	binary.Write(&e, binary.BigEndian, uint16(len(s)))
	e.WriteString(s)
	b.cp = append(b.cp, e.Bytes())
	return uint16(len(b.cp))
}

func (b *classBuilder) addClass(nameIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(tagClass)
	binary.Write(&e, binary.BigEndian, nameIdx)
	b.cp = append(b.cp, e.Bytes())
	return uint16(len(b.cp))
}

func u2(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func u4(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }

// build produces a class file with one method named methodName with
// descriptor "()V" and the given code bytes, extending java/lang/Object
// with no interfaces.
func (b *classBuilder) build(thisName, methodName string, code []byte) []byte {
	thisUtf8 := b.addUtf8(thisName)
	thisClass := b.addClass(thisUtf8)
	superUtf8 := b.addUtf8("java/lang/Object")
	superClass := b.addClass(superUtf8)
	methodNameIdx := b.addUtf8(methodName)
	descIdx := b.addUtf8("()V")
	codeAttrNameIdx := b.addUtf8(codeAttribute)

	var out bytes.Buffer
	out.Write(u4(classFileMagic))
	out.Write(u2(0)) // minor
	out.Write(u2(52))
	out.Write(u2(uint16(len(b.cp) + 1))) // constant_pool_count
	for _, e := range b.cp {
		out.Write(e)
	}
	out.Write(u2(0x0021))      // access_flags
	out.Write(u2(thisClass))   // this_class
	out.Write(u2(superClass))  // super_class
	out.Write(u2(0))           // interfaces_count
	out.Write(u2(0))           // fields_count

	out.Write(u2(1)) // methods_count
	out.Write(u2(0x0001)) // access_flags
	out.Write(u2(methodNameIdx))
	out.Write(u2(descIdx))
	out.Write(u2(1)) // method attributes_count

	var codeAttr bytes.Buffer
	codeAttr.Write(u2(4))                  // max_stack
	codeAttr.Write(u2(1))                  // max_locals
	codeAttr.Write(u4(uint32(len(code))))  // code_length
	codeAttr.Write(code)
	codeAttr.Write(u2(0)) // exception_table_length
	codeAttr.Write(u2(0)) // code attributes_count

	out.Write(u2(codeAttrNameIdx))
	out.Write(u4(uint32(codeAttr.Len())))
	out.Write(codeAttr.Bytes())

	out.Write(u2(0)) // classfile attributes_count

	return out.Bytes()
}

func TestParseMinimalClass(t *testing.T) {
	code := []byte{0xb1} // return
	data := newClassBuilder().build("com/example/Foo", "run", code)

	class, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if class.Name != "com/example/Foo" {
		t.Errorf("Name = %q, want com/example/Foo", class.Name)
	}
	if class.SuperName != "java/lang/Object" {
		t.Errorf("SuperName = %q, want java/lang/Object", class.SuperName)
	}
	if len(class.Methods) != 1 {
		t.Fatalf("len(Methods) = %d, want 1", len(class.Methods))
	}
	m := class.Methods[0]
	if m.Name != "run" || m.Descriptor != "()V" {
		t.Errorf("method = %s%s, want run()V", m.Name, m.Descriptor)
	}
	if !bytes.Equal(m.Code, code) {
		t.Errorf("Code = %v, want %v", m.Code, code)
	}
	if m.QualifiedName() != "com/example/Foo.run()V" {
		t.Errorf("QualifiedName = %q", m.QualifiedName())
	}
}

func TestParseBadMagic(t *testing.T) {
	if _, err := Parse([]byte{0, 0, 0, 0}); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseTruncated(t *testing.T) {
	data := newClassBuilder().build("com/example/Foo", "run", []byte{0xb1})
	if _, err := Parse(data[:len(data)-10]); err == nil {
		t.Fatal("expected error for truncated class file")
	}
}
