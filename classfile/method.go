// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

// ExceptionHandler is one entry of a method's Code attribute
// exception table: code in [StartPC, EndPC) is protected by a handler
// starting at HandlerPC, for throwables assignable to CatchType (a
// constant-pool Class index, or 0 to catch everything — finally
// blocks).
type ExceptionHandler struct {
	StartPC, EndPC, HandlerPC uint16
	CatchType                 uint16
}

// Method is one method of a Class: its name, descriptor, and — if it
// has a Code attribute (native and abstract methods don't) — its
// bytecode and exception table.
type Method struct {
	Name       string
	Descriptor string

	Code           []byte
	ExceptionTable []ExceptionHandler
	MaxStack       uint16
	MaxLocals      uint16

	Class *Class
}

// QualifiedName is the class.name+descriptor form the original's
// constant-pool method-ref resolution produces, used as the matcher's
// method-identity key.
func (m *Method) QualifiedName() string {
	if m.Class == nil {
		return m.Name + m.Descriptor
	}
	return m.Class.Name + "." + m.Name + m.Descriptor
}
