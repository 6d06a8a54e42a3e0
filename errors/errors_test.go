// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors

import (
	goerrors "errors"
	"os"
	"strings"
	"testing"
)

type typeName string

func (t typeName) String() string { return string(t) }

func TestE(t *testing.T) {
	e := E("open", os.ErrNotExist)
	if got, want := e, E("open", NotExist); !Match(want, got) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Collapse errors
	e = E("compile", Invalid, E("property", Invalid))
	if got, want := e, E("compile", Invalid, E("property")); !Match(want, got) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Located errors are never collapsed.
	e = E("compile", E(Unconnected, Node(4), Input(0)))
	if got, want := Recover(e).Kind, Unconnected; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := Recover(e).Locate().Node, 4; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestError(t *testing.T) {
	e := E("create", "Bogus", NotExist, New(`node type "Bogus" is not registered`))
	if got, want := e.Error(), `create Bogus: does not exist: node type "Bogus" is not registered`; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	e = E("compile", Node(2), Input(1), TypeMismatch, Expected(typeName("Float")), Found(typeName("Vec3")))
	if got, want := e.Error(), "compile node 2 input 1: type mismatch (expected Float, found Vec3)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	e = E("compile", E("visit", Node(7), Unconnected))
	if got, want := e.Error(), "compile: unconnected input socket:\n\tvisit node 7"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIs(t *testing.T) {
	for kind := Other; kind < maxKind; kind++ {
		if got, want := Is(kind, E(kind)), true; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if got, want := Is(Invalid, nil), false; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !IsFatal(Internal(3, "missing placeholder")) {
		t.Error("expected internal error to be fatal")
	}
}

func TestInternal(t *testing.T) {
	err := Internal(5, "container has no placeholders")
	e := Recover(err)
	if got, want := e.Node, 5; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if len(e.Arg) == 0 || !strings.Contains(e.Arg[0], "errors_test.go") {
		t.Errorf("expected caller location in %v", e.Arg)
	}
}

func TestUnwrap(t *testing.T) {
	err := E("eval", os.ErrClosed)
	if !goerrors.Is(err, os.ErrClosed) {
		t.Errorf("expected %v to wrap %v", err, os.ErrClosed)
	}
}

func TestKindName(t *testing.T) {
	if got, want := TypeMismatch.Name(), "TypeMismatch"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := Kind(100).Name(), "Other"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := Recover(New("plain")).Kind.Name(), "Other"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
