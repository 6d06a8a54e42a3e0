// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package types defines the closed set of value types that flow
// between expression nodes. A type is a layout: an element kind
// (float, int, or bool) and an element count. Types are registered
// once, under a unique name, in a process-wide registry:
//
//	Float     float x1     scalars
//	Int       int x1       integers
//	Bool      bool x1      booleans
//	Vec3      float x3     3-vectors (positions, colors, normals)
//	IVec3     int x3       integer 3-vectors (raw channel layouts)
//	Quat      float x4     quaternions (w, x, y, z)
//
// Two types are equal if their layouts are equal, regardless of the
// name under which they were registered; thus two differently named
// types with identical layouts are interchangeable. The registry is
// populated at package initialization (and by clients' own init
// functions) and is read without locking thereafter.
package types

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aws/thinkbox-magma-sub002/errors"
)

// Kind represents the kind of a type's elements.
type Kind int

const (
	// ErrorKind is an illegal type.
	ErrorKind Kind = iota
	// FloatKind is the kind of 32-bit floating point elements.
	FloatKind
	// IntKind is the kind of 32-bit signed integer elements.
	IntKind
	// BoolKind is the kind of boolean elements.
	BoolKind

	kindMax
)

var kindStrings = [kindMax]string{
	ErrorKind: "error",
	FloatKind: "float",
	IntKind:   "int",
	BoolKind:  "bool",
}

func (k Kind) String() string {
	if k < 0 || k >= kindMax {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindStrings[k]
}

// ElemSize is the size in bytes of a single element of any kind.
// Booleans are widened to ElemSize so that every value in a scratch
// region is 4-byte aligned.
const ElemSize = 4

// T is a named type descriptor. The zero T is the invalid type,
// which is the type of no value.
type T struct {
	// Kind is the kind of the type's elements.
	Kind Kind
	// Arity is the number of elements.
	Arity int
	// Name is the name under which the type was registered.
	Name string
}

// Valid tells whether t describes a value layout.
func (t T) Valid() bool {
	return t.Kind != ErrorKind && t.Arity > 0
}

// Equal tells whether t and u have the same layout.
func (t T) Equal(u T) bool {
	return t.Kind == u.Kind && t.Arity == u.Arity
}

// Size returns the number of bytes occupied by a value of type t.
func (t T) Size() int {
	return t.Arity * ElemSize
}

// String returns t's registered name, or else a description of its
// layout.
func (t T) String() string {
	switch {
	case t.Name != "":
		return t.Name
	case !t.Valid():
		return "none"
	case t.Arity == 1:
		return t.Kind.String()
	default:
		return fmt.Sprintf("%s[%d]", t.Kind, t.Arity)
	}
}

type registry struct {
	order  []T
	byName map[string]T
}

var (
	mu  sync.Mutex
	reg atomic.Value // *registry
)

func current() *registry {
	r, _ := reg.Load().(*registry)
	if r == nil {
		return &registry{}
	}
	return r
}

// Register registers a new type under the given name. Registering a
// name a second time with the same layout is a no-op that returns
// the original type; registering it with a different layout is an
// error.
func Register(name string, kind Kind, arity int) (T, error) {
	if name == "" || kind <= ErrorKind || kind >= kindMax || arity <= 0 {
		return T{}, errors.E("register", name, errors.Invalid,
			errors.Errorf("invalid layout %s x%d", kind, arity))
	}
	mu.Lock()
	defer mu.Unlock()
	old := current()
	t := T{Kind: kind, Arity: arity, Name: name}
	if prev, ok := old.byName[name]; ok {
		if prev.Equal(t) {
			return prev, nil
		}
		return T{}, errors.E("register", name, errors.Invalid,
			errors.Errorf("already registered as %s x%d", prev.Kind, prev.Arity))
	}
	next := &registry{
		order:  append(append([]T(nil), old.order...), t),
		byName: make(map[string]T, len(old.byName)+1),
	}
	for k, v := range old.byName {
		next.byName[k] = v
	}
	next.byName[name] = t
	reg.Store(next)
	return t, nil
}

// MustRegister is like Register, but panics on error. It is intended
// for use in package initialization.
func MustRegister(name string, kind Kind, arity int) T {
	t, err := Register(name, kind, arity)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the type registered under the given name.
func Lookup(name string) (T, bool) {
	t, ok := current().byName[name]
	return t, ok
}

// Match returns the first registered type (in registration order)
// with the given layout.
func Match(kind Kind, arity int) (T, bool) {
	for _, t := range current().order {
		if t.Kind == kind && t.Arity == arity {
			return t, true
		}
	}
	return T{}, false
}

// All returns all registered types, in registration order.
func All() []T {
	return append([]T(nil), current().order...)
}

// The built-in types.
var (
	Float = MustRegister("Float", FloatKind, 1)
	Int   = MustRegister("Int", IntKind, 1)
	Bool  = MustRegister("Bool", BoolKind, 1)
	Vec3  = MustRegister("Vec3", FloatKind, 3)
	IVec3 = MustRegister("IVec3", IntKind, 3)
	Quat  = MustRegister("Quat", FloatKind, 4)
)
