// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ops

import (
	"math"

	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func magnitude(v [3]float32) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

// normalize returns v scaled to unit length. The zero vector is
// returned unchanged.
func normalize(v [3]float32) [3]float32 {
	m := magnitude(v)
	if m == 0 {
		return v
	}
	return [3]float32{v[0] / m, v[1] / m, v[2] / m}
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// toVector returns the overloads of ToVector: every combination of
// float and int components.
func toVector() []flow.Overload {
	var list []flow.Overload
	scalars := []types.T{tFloat, tInt}
	for _, x := range scalars {
		for _, y := range scalars {
			for _, z := range scalars {
				list = append(list, ternary(x, y, z, tVec3, func(a, b, c values.T) values.T {
					return values.Vec3(num(a), num(b), num(c))
				}))
			}
		}
	}
	return list
}

func component(i int) flow.Func {
	return func(args []values.T) values.T { return values.Float(args[0].Vec3()[i]) }
}

func init() {
	flow.Register(&flow.Type{
		Name:        "Magnitude",
		Category:    Vector,
		Description: "Computes the length of a vector.",
		Inputs:      inputs("Vector"),
		Outputs:     output("Length", tFloat),
		Overloads: []flow.Overload{
			unary(tVec3, tFloat, func(a values.T) values.T { return values.Float(magnitude(a.Vec3())) }),
		},
	})
	flow.Register(&flow.Type{
		Name:        "Normalize",
		Category:    Vector,
		Description: "Scales a vector to unit length.",
		Disableable: true,
		Inputs:      inputs("Vector"),
		Outputs:     output("Result", tVec3),
		Overloads: []flow.Overload{
			unary(tVec3, tVec3, func(a values.T) values.T { return vec(normalize(a.Vec3())) }),
		},
	})
	flow.Register(&flow.Type{
		Name:      "Dot",
		Category:  Vector,
		Inputs:    inputs("Left", "Right"),
		Outputs:   output("Result", tFloat),
		Overloads: []flow.Overload{binary(tVec3, tVec3, tFloat, func(a, b values.T) values.T { return values.Float(dot(a.Vec3(), b.Vec3())) })},
	})
	flow.Register(&flow.Type{
		Name:        "Cross",
		Category:    Vector,
		Disableable: true,
		Inputs:      inputs("Left", "Right"),
		Outputs:     output("Result", tVec3),
		Overloads:   []flow.Overload{binary(tVec3, tVec3, tVec3, func(a, b values.T) values.T { return vec(cross(a.Vec3(), b.Vec3())) })},
	})
	flow.Register(&flow.Type{
		Name:        "ComponentSum",
		Category:    Vector,
		Description: "Sums the components of a vector.",
		Inputs:      inputs("Vector"),
		Outputs:     output("Sum", tFloat),
		Overloads: []flow.Overload{
			unary(tVec3, tFloat, func(a values.T) values.T {
				v := a.Vec3()
				return values.Float(v[0] + v[1] + v[2])
			}),
		},
	})
	flow.Register(&flow.Type{
		Name:        "ToVector",
		Category:    Conversion,
		Description: "Builds a vector from three scalars.",
		Inputs: []flow.InputDesc{
			{Name: "X", Default: values.Float(0)},
			{Name: "Y", Default: values.Float(0)},
			{Name: "Z", Default: values.Float(0)},
		},
		Outputs:   output("Vector", tVec3),
		Overloads: toVector(),
	})
	flow.Register(&flow.Type{
		Name:        "Breakout",
		Category:    Conversion,
		Description: "Splits a vector into its components.",
		Inputs:      inputs("Vector"),
		Outputs: []flow.OutputDesc{
			{Name: "X", Type: tFloat},
			{Name: "Y", Type: tFloat},
			{Name: "Z", Type: tFloat},
		},
		Overloads: []flow.Overload{{
			In:  sig(tVec3),
			Out: sig(tFloat, tFloat, tFloat),
			Fn:  []flow.Func{component(0), component(1), component(2)},
		}},
	})
}
