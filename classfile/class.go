// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

// Class is the parsed shape of one .class file: its name, its
// superclass and interfaces (by name, not resolved to a Class), and
// its methods.
type Class struct {
	Name       string
	SuperName  string // empty for java/lang/Object
	Interfaces []string

	Methods []*Method

	cp *ConstantPool
}

// ConstantPool returns the class's parsed constant pool, so a block
// graph builder can resolve a call site's operand to a MethodRef.
func (c *Class) ConstantPool() *ConstantPool { return c.cp }

// Method looks up a method by name and descriptor.
func (c *Class) Method(name, descriptor string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m, true
		}
	}
	return nil, false
}
