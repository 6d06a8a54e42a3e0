// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package types_test

import (
	"testing"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/types"
)

func TestBuiltins(t *testing.T) {
	for _, c := range []struct {
		t     types.T
		kind  types.Kind
		arity int
		size  int
	}{
		{types.Float, types.FloatKind, 1, 4},
		{types.Int, types.IntKind, 1, 4},
		{types.Bool, types.BoolKind, 1, 4},
		{types.Vec3, types.FloatKind, 3, 12},
		{types.IVec3, types.IntKind, 3, 12},
		{types.Quat, types.FloatKind, 4, 16},
	} {
		if got, want := c.t.Kind, c.kind; got != want {
			t.Errorf("%s: got %v, want %v", c.t, got, want)
		}
		if got, want := c.t.Arity, c.arity; got != want {
			t.Errorf("%s: got %v, want %v", c.t, got, want)
		}
		if got, want := c.t.Size(), c.size; got != want {
			t.Errorf("%s: got %v, want %v", c.t, got, want)
		}
		got, ok := types.Lookup(c.t.Name)
		if !ok {
			t.Errorf("%s not registered", c.t)
		} else if got != c.t {
			t.Errorf("got %v, want %v", got, c.t)
		}
	}
}

func TestRegisterIdempotent(t *testing.T) {
	t1, err := types.Register("Color3", types.FloatKind, 3)
	if err != nil {
		t.Fatal(err)
	}
	t2, err := types.Register("Color3", types.FloatKind, 3)
	if err != nil {
		t.Fatal(err)
	}
	if t1 != t2 {
		t.Errorf("got %v, want %v", t2, t1)
	}
	// Equality is by layout, not name.
	if !t1.Equal(types.Vec3) {
		t.Errorf("%v and %v should be interchangeable", t1, types.Vec3)
	}
	_, err = types.Register("Color3", types.FloatKind, 4)
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error, got %v", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	for _, c := range []struct {
		name  string
		kind  types.Kind
		arity int
	}{
		{"", types.FloatKind, 1},
		{"Nothing", types.ErrorKind, 1},
		{"Empty", types.IntKind, 0},
	} {
		if _, err := types.Register(c.name, c.kind, c.arity); !errors.Is(errors.Invalid, err) {
			t.Errorf("%q: expected invalid error, got %v", c.name, err)
		}
	}
}

func TestLookupMissing(t *testing.T) {
	if _, ok := types.Lookup("Matrix"); ok {
		t.Error("unexpected type Matrix")
	}
}

func TestMatch(t *testing.T) {
	// Vec3 was registered before any alias with the same layout.
	got, ok := types.Match(types.FloatKind, 3)
	if !ok {
		t.Fatal("no match for float x3")
	}
	if got, want := got.Name, "Vec3"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, ok := types.Match(types.BoolKind, 3); ok {
		t.Error("unexpected match for bool x3")
	}
}

func TestString(t *testing.T) {
	if got, want := (types.T{}).String(), "none"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := (types.T{Kind: types.IntKind, Arity: 2}).String(), "int[2]"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
