// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package ops registers the standard operator node types: arithmetic,
// vector, comparison, logic, and conversion operators, as well as
// the system nodes that supply constants, ambient values, and
// collaborators to a graph. Importing the package registers the
// types with package flow and their extensions with package compiler.
package ops

import (
	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// Node type categories.
const (
	Arithmetic = "Arithmetic"
	Vector     = "Vector"
	Logic      = "Logic"
	Conversion = "Conversion"
	Input      = "Input"
)

var (
	tFloat = types.Float
	tInt   = types.Int
	tBool  = types.Bool
	tVec3  = types.Vec3
	tQuat  = types.Quat
)

func sig(ts ...types.T) []types.T { return ts }

func unary(in, out types.T, f func(a values.T) values.T) flow.Overload {
	return flow.Overload{
		In:  sig(in),
		Out: sig(out),
		Fn:  []flow.Func{func(args []values.T) values.T { return f(args[0]) }},
	}
}

func binary(a, b, out types.T, f func(a, b values.T) values.T) flow.Overload {
	return flow.Overload{
		In:  sig(a, b),
		Out: sig(out),
		Fn:  []flow.Func{func(args []values.T) values.T { return f(args[0], args[1]) }},
	}
}

func ternary(a, b, c, out types.T, f func(a, b, c values.T) values.T) flow.Overload {
	return flow.Overload{
		In:  sig(a, b, c),
		Out: sig(out),
		Fn:  []flow.Func{func(args []values.T) values.T { return f(args[0], args[1], args[2]) }},
	}
}

// num returns v as a float, widening ints and bools.
func num(v values.T) float32 {
	switch v.Kind() {
	case values.IntKind:
		return float32(v.Int())
	case values.BoolKind:
		if v.Bool() {
			return 1
		}
		return 0
	default:
		return v.Float()
	}
}

func vec(v [3]float32) values.T {
	return values.Vec3(v[0], v[1], v[2])
}

func quat(q [4]float32) values.T {
	return values.Quat(q[0], q[1], q[2], q[3])
}

// componentwise applies f to each component of a vector.
func componentwise(v values.T, f func(float32) float32) values.T {
	x := v.Vec3()
	return values.Vec3(f(x[0]), f(x[1]), f(x[2]))
}

func inputs(names ...string) []flow.InputDesc {
	list := make([]flow.InputDesc, len(names))
	for i, name := range names {
		list[i] = flow.InputDesc{Name: name}
	}
	return list
}

func output(name string, t types.T) []flow.OutputDesc {
	return []flow.OutputDesc{{Name: name, Type: t}}
}
