// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package channel_test

import (
	"testing"

	"github.com/aws/thinkbox-magma-sub002/channel"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

func TestParticleLayout(t *testing.T) {
	m := channel.Particle()
	// 5 vec3 + float + quat + int
	if got, want := m.Size(), 5*12+4+16+4; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	f, ok := m.Field(channel.Density)
	if !ok {
		t.Fatal("no density channel")
	}
	if got, want := f.Offset, 60; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !f.Type.Equal(types.Float) {
		t.Errorf("got %v, want Float", f.Type)
	}
}

func TestGetSet(t *testing.T) {
	m := channel.Particle()
	rec := m.NewRecord()
	if err := channel.Set(m, rec, channel.Color, values.Vec3(0, 0, 1)); err != nil {
		t.Fatal(err)
	}
	v, err := channel.Get(m, rec, channel.Color)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, values.Vec3(0, 0, 1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := channel.Set(m, rec, channel.ID, values.Float(1)); !errors.Is(errors.TypeMismatch, err) {
		t.Errorf("expected type mismatch, got %v", err)
	}
	if _, err := channel.Get(m, rec, "Temperature"); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected not exist, got %v", err)
	}
	if _, err := channel.Get(m, rec[:10], channel.Color); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid, got %v", err)
	}
}

func TestDefineDuplicate(t *testing.T) {
	m := channel.New()
	if err := m.Define("A", types.Float); err != nil {
		t.Fatal(err)
	}
	if err := m.Define("A", types.Int); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid, got %v", err)
	}
	if err := m.Define("B", types.T{}); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid, got %v", err)
	}
}
