// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package flow

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// PropertyDesc describes a typed node property.
type PropertyDesc struct {
	// Name is the property's name.
	Name string
	// Default is the property's initial value. Its dynamic type
	// determines the type of the property: values assigned to the
	// property must have exactly the same type.
	Default interface{}
	// ReadOnly properties may be read but not assigned by hosts.
	ReadOnly bool
	// Validate, if non-nil, is called to check a new value before
	// it is assigned.
	Validate func(v interface{}) error
}

// Type returns the Go type of the property's values.
func (p PropertyDesc) Type() reflect.Type {
	return reflect.TypeOf(p.Default)
}

// InputDesc describes an input socket.
type InputDesc struct {
	// Name is the socket's display name.
	Name string
	// Default is the socket's initial default value. None means the
	// socket must be connected unless a host supplies a default.
	Default values.T
	// NoDefault marks sockets that do not accept default values;
	// assigning a default to such a socket is ignored.
	NoDefault bool
	// Accepts, if non-empty, lists the types the socket accepts.
	// Values of other types are rejected at compile time.
	Accepts []types.T
}

// OutputDesc describes an output socket.
type OutputDesc struct {
	// Name is the socket's display name.
	Name string
	// Type is the socket's declared type. The zero type means the
	// output type is determined by the node's input types.
	Type types.T
}

// Func computes a single output value from a node's input values.
// Funcs must be safe to call concurrently.
type Func func(args []values.T) values.T

// An Overload is one implementation of an operator node for a
// specific list of input types.
type Overload struct {
	// In is the list of input types accepted by this overload.
	In []types.T
	// Out is the list of output types produced by this overload.
	Out []types.T
	// Fn contains one Func per output.
	Fn []Func
}

// Matches tells whether the overload accepts the given input types.
func (o Overload) Matches(in []types.T) bool {
	if len(in) != len(o.In) {
		return false
	}
	for i := range in {
		if !in[i].Equal(o.In[i]) {
			return false
		}
	}
	return true
}

// Type describes a node type: its name, its property schema, its
// sockets, and, for operator types, its overloads.
type Type struct {
	// Name is the type's unique name.
	Name string
	// Category is the type's category, used for introspection.
	Category string
	// Description is a short, human-readable description.
	Description string

	// Hidden types may not be created by hosts. They are used for
	// the placeholder nodes synthesized inside containers.
	Hidden bool
	// Container types own a sub-graph.
	Container bool
	// Disableable types may be disabled; a disabled node passes its
	// first input through.
	Disableable bool
	// TopLevel types may only be created outside of containers.
	TopLevel bool

	Properties []PropertyDesc
	Inputs     []InputDesc
	Outputs    []OutputDesc

	// Overloads lists the operator implementations of the type,
	// tried in order. Types without overloads must be handled by
	// the compiler directly or by a registered extension.
	Overloads []Overload
}

// Property returns the descriptor of the named property.
func (t *Type) Property(name string) (PropertyDesc, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDesc{}, false
}

// Overload returns the first overload that accepts the given input
// types.
func (t *Type) Overload(in []types.T) (Overload, bool) {
	for _, o := range t.Overloads {
		if o.Matches(in) {
			return o, true
		}
	}
	return Overload{}, false
}

func (t *Type) String() string {
	return t.Name
}

// check verifies the internal consistency of a type definition.
func (t *Type) check() error {
	if t.Name == "" {
		return errors.New("type has no name")
	}
	seen := make(map[string]bool)
	for _, p := range t.Properties {
		if p.Default == nil {
			return fmt.Errorf("property %s has no default", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("property %s defined twice", p.Name)
		}
		seen[p.Name] = true
	}
	for i, o := range t.Overloads {
		if len(o.In) != len(t.Inputs) {
			return fmt.Errorf("overload %d has %d inputs, type has %d", i, len(o.In), len(t.Inputs))
		}
		if len(o.Out) != len(t.Outputs) || len(o.Fn) != len(t.Outputs) {
			return fmt.Errorf("overload %d does not define %d outputs", i, len(t.Outputs))
		}
	}
	return nil
}

var (
	typesMu  sync.RWMutex
	registry = make(map[string]*Type)
)

// Register registers a node type. Register panics if the type is
// malformed or if a type with the same name is already registered:
// both indicate a programming error.
func Register(t *Type) {
	if err := t.check(); err != nil {
		panic(errors.E("register", t.Name, errors.Fatal, err))
	}
	typesMu.Lock()
	defer typesMu.Unlock()
	if _, ok := registry[t.Name]; ok {
		panic(errors.E("register", t.Name, errors.Fatal, errors.New("node type registered twice")))
	}
	registry[t.Name] = t
}

// LookupType returns the node type with the given name.
func LookupType(name string) (*Type, bool) {
	typesMu.RLock()
	t, ok := registry[name]
	typesMu.RUnlock()
	return t, ok
}

// Types returns all registered node types, ordered by category and
// then name.
func Types() []*Type {
	typesMu.RLock()
	list := make([]*Type, 0, len(registry))
	for _, t := range registry {
		list = append(list, t)
	}
	typesMu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].Category != list[j].Category {
			return list[i].Category < list[j].Category
		}
		return list[i].Name < list[j].Name
	})
	return list
}

// TypeList is a list of types that renders as a "|"-separated list.
type TypeList []types.T

func (l TypeList) String() string {
	names := make([]string, len(l))
	for i, t := range l {
		names[i] = t.String()
	}
	return strings.Join(names, "|")
}
