// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package values_test

import (
	"testing"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeThroughDescriptor(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("vec3 decodes to itself", prop.ForAll(
		func(x, y, z float32) bool {
			v := values.Vec3(x, y, z)
			b := make([]byte, types.Vec3.Size())
			if err := values.Encode(types.Vec3, v, b); err != nil {
				return false
			}
			w, err := values.Decode(types.Vec3, b)
			return err == nil && w == v
		},
		gen.Float32Range(-1e6, 1e6),
		gen.Float32Range(-1e6, 1e6),
		gen.Float32Range(-1e6, 1e6),
	))
	properties.Property("int decodes to itself", prop.ForAll(
		func(i int32) bool {
			b := make([]byte, 4)
			if err := values.Encode(types.Int, values.Int(i), b); err != nil {
				return false
			}
			w, err := values.Decode(types.Int, b)
			return err == nil && w.Int() == i
		},
		gen.Int32(),
	))
	properties.TestingRun(t)
}

func TestEncodeMismatch(t *testing.T) {
	b := make([]byte, 16)
	err := values.Encode(types.Vec3, values.Float(1), b)
	if !errors.Is(errors.TypeMismatch, err) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	e := errors.Recover(err)
	if got, want := e.Expected, "Vec3"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := e.Found, "Float"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := values.Encode(types.Float, values.None, b); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error encoding none, got %v", err)
	}
	if err := values.Encode(types.Quat, values.Quat(1, 0, 0, 0), b[:8]); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error for short buffer, got %v", err)
	}
	if _, err := values.Decode(types.IVec3, b); !errors.Is(errors.NotSupported, err) {
		t.Errorf("expected not supported error, got %v", err)
	}
}

func TestEncodeAlias(t *testing.T) {
	normal := types.MustRegister("Normal3", types.FloatKind, 3)
	b := make([]byte, 12)
	if err := values.Encode(normal, values.Vec3(0, 1, 0), b); err != nil {
		t.Fatal(err)
	}
	v, err := values.Decode(types.Vec3, b)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, values.Vec3(0, 1, 0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEquality(t *testing.T) {
	if values.Int(4) != values.Int(4) {
		t.Error("equal ints compare unequal")
	}
	if values.Int(1) == values.Float(1) {
		t.Error("int and float compare equal")
	}
	if values.Bool(false) == values.None {
		t.Error("false and none compare equal")
	}
	m := map[values.T]int{values.Vec3(0.25, 0, 0): 1}
	if got, want := m[values.Vec3(0.25, 0, 0)], 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if values.Digest(values.Int(4)) != values.Digest(values.Int(4)) {
		t.Error("digests of equal values differ")
	}
	if values.Digest(values.Int(0)) == values.Digest(values.Float(0)) {
		t.Error("digests of int and float zero collide")
	}
}

func TestString(t *testing.T) {
	for _, c := range []struct {
		v    values.T
		want string
	}{
		{values.None, "none"},
		{values.Float(0.25), "0.25"},
		{values.Int(-3), "-3"},
		{values.Bool(true), "true"},
		{values.Vec3(0.25, 0, 1), "(0.25, 0, 1)"},
		{values.Quat(1, 0, 0, 0), "(1, 0, 0, 0)"},
	} {
		if got := c.v.String(); got != c.want {
			t.Errorf("got %v, want %v", got, c.want)
		}
	}
}

func TestZero(t *testing.T) {
	v, err := values.Zero(types.Vec3)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, values.Vec3(0, 0, 0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, err := values.Zero(types.IVec3); err == nil {
		t.Error("expected error")
	}
}
