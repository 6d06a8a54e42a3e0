// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package compiler

import (
	"sync"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/flow"
)

// An Extension compiles nodes of a type that the compiler does not
// know. Compile must return one operand per node output.
type Extension interface {
	Compile(b *Builder, n *flow.Node) ([]Operand, error)
}

// ExtensionFunc adapts a function to an Extension.
type ExtensionFunc func(b *Builder, n *flow.Node) ([]Operand, error)

// Compile implements Extension.
func (f ExtensionFunc) Compile(b *Builder, n *flow.Node) ([]Operand, error) {
	return f(b, n)
}

var (
	extMu      sync.RWMutex
	extensions = make(map[string]Extension)
)

// Register registers the extension that compiles nodes of the named
// type. Extensions take precedence over a type's overloads. Register
// panics if an extension is already registered for the type.
func Register(typeName string, ext Extension) {
	extMu.Lock()
	defer extMu.Unlock()
	if _, ok := extensions[typeName]; ok {
		panic(errors.E("register", typeName, errors.Fatal, errors.New("extension registered twice")))
	}
	extensions[typeName] = ext
}

func lookupExtension(typeName string) (Extension, bool) {
	extMu.RLock()
	defer extMu.RUnlock()
	ext, ok := extensions[typeName]
	return ext, ok
}
