// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ops

import (
	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// compare returns the overloads of an ordering comparison over
// scalars. Int pairs are compared as ints.
func compare(fcmp func(a, b float32) bool, icmp func(a, b int32) bool) []flow.Overload {
	ff := func(a, b values.T) values.T { return values.Bool(fcmp(num(a), num(b))) }
	return []flow.Overload{
		binary(tFloat, tFloat, tBool, ff),
		binary(tInt, tInt, tBool, func(a, b values.T) values.T { return values.Bool(icmp(a.Int(), b.Int())) }),
		binary(tFloat, tInt, tBool, ff),
		binary(tInt, tFloat, tBool, ff),
	}
}

// equality returns the overloads of Equal (or, if negate, NotEqual).
// Values of the same type compare structurally; mixed scalars
// compare as floats.
func equality(negate bool) []flow.Overload {
	same := func(a, b values.T) values.T { return values.Bool((a == b) != negate) }
	mixed := func(a, b values.T) values.T { return values.Bool((num(a) == num(b)) != negate) }
	list := []flow.Overload{
		binary(tFloat, tInt, tBool, mixed),
		binary(tInt, tFloat, tBool, mixed),
	}
	for _, t := range []types.T{tFloat, tInt, tBool, tVec3, tQuat} {
		list = append(list, binary(t, t, tBool, same))
	}
	return list
}

func logical(op func(a, b bool) bool) []flow.Overload {
	return []flow.Overload{
		binary(tBool, tBool, tBool, func(a, b values.T) values.T { return values.Bool(op(a.Bool(), b.Bool())) }),
	}
}

func switchOverloads() []flow.Overload {
	var list []flow.Overload
	for _, t := range []types.T{tFloat, tInt, tBool, tVec3, tQuat} {
		list = append(list, ternary(t, t, tBool, t, func(a, b, c values.T) values.T {
			if c.Bool() {
				return a
			}
			return b
		}))
	}
	return list
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampOverloads() []flow.Overload {
	fff := func(a, b, c values.T) values.T { return values.Float(clamp(num(a), num(b), num(c))) }
	return []flow.Overload{
		ternary(tFloat, tFloat, tFloat, tFloat, fff),
		ternary(tInt, tInt, tInt, tInt, func(a, b, c values.T) values.T {
			x, lo, hi := a.Int(), b.Int(), c.Int()
			if x < lo {
				x = lo
			}
			if x > hi {
				x = hi
			}
			return values.Int(x)
		}),
		ternary(tFloat, tInt, tInt, tFloat, fff),
		ternary(tVec3, tFloat, tFloat, tVec3, func(a, b, c values.T) values.T {
			lo, hi := num(b), num(c)
			return componentwise(a, func(x float32) float32 { return clamp(x, lo, hi) })
		}),
		ternary(tVec3, tVec3, tVec3, tVec3, func(a, b, c values.T) values.T {
			x, lo, hi := a.Vec3(), b.Vec3(), c.Vec3()
			return values.Vec3(clamp(x[0], lo[0], hi[0]), clamp(x[1], lo[1], hi[1]), clamp(x[2], lo[2], hi[2]))
		}),
	}
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func blendOverloads() []flow.Overload {
	return []flow.Overload{
		ternary(tFloat, tFloat, tFloat, tFloat, func(a, b, c values.T) values.T {
			return values.Float(lerp(a.Float(), b.Float(), c.Float()))
		}),
		ternary(tVec3, tVec3, tFloat, tVec3, func(a, b, c values.T) values.T {
			x, y, t := a.Vec3(), b.Vec3(), c.Float()
			return values.Vec3(lerp(x[0], y[0], t), lerp(x[1], y[1], t), lerp(x[2], y[2], t))
		}),
	}
}

func init() {
	for _, c := range []struct {
		name string
		f    func(a, b float32) bool
		i    func(a, b int32) bool
	}{
		{"Less", func(a, b float32) bool { return a < b }, func(a, b int32) bool { return a < b }},
		{"LessOrEqual", func(a, b float32) bool { return a <= b }, func(a, b int32) bool { return a <= b }},
		{"Greater", func(a, b float32) bool { return a > b }, func(a, b int32) bool { return a > b }},
		{"GreaterOrEqual", func(a, b float32) bool { return a >= b }, func(a, b int32) bool { return a >= b }},
	} {
		flow.Register(&flow.Type{
			Name:      c.name,
			Category:  Logic,
			Inputs:    binaryInputs(values.Float(0)),
			Outputs:   output("Result", tBool),
			Overloads: compare(c.f, c.i),
		})
	}
	flow.Register(&flow.Type{
		Name:      "Equal",
		Category:  Logic,
		Inputs:    binaryInputs(values.Float(0)),
		Outputs:   output("Result", tBool),
		Overloads: equality(false),
	})
	flow.Register(&flow.Type{
		Name:      "NotEqual",
		Category:  Logic,
		Inputs:    binaryInputs(values.Float(0)),
		Outputs:   output("Result", tBool),
		Overloads: equality(true),
	})
	flow.Register(&flow.Type{
		Name:        "LogicalNot",
		Category:    Logic,
		Disableable: true,
		Inputs:      inputs("Value"),
		Outputs:     output("Result", tBool),
		Overloads: []flow.Overload{
			unary(tBool, tBool, func(a values.T) values.T { return values.Bool(!a.Bool()) }),
		},
	})
	flow.Register(&flow.Type{
		Name:      "LogicalAnd",
		Category:  Logic,
		Inputs:    binaryInputs(values.Bool(true)),
		Outputs:   output("Result", tBool),
		Overloads: logical(func(a, b bool) bool { return a && b }),
	})
	flow.Register(&flow.Type{
		Name:      "LogicalOr",
		Category:  Logic,
		Inputs:    binaryInputs(values.Bool(false)),
		Outputs:   output("Result", tBool),
		Overloads: logical(func(a, b bool) bool { return a || b }),
	})
	flow.Register(&flow.Type{
		Name:      "LogicalXor",
		Category:  Logic,
		Inputs:    binaryInputs(values.Bool(false)),
		Outputs:   output("Result", tBool),
		Overloads: logical(func(a, b bool) bool { return a != b }),
	})
	flow.Register(&flow.Type{
		Name:        "Switch",
		Category:    Logic,
		Description: "Selects its first input if the condition holds, its second otherwise.",
		Inputs: []flow.InputDesc{
			{Name: "True"},
			{Name: "False"},
			{Name: "Condition", Default: values.Bool(true), Accepts: []types.T{tBool}},
		},
		Outputs:   output("Result", types.T{}),
		Overloads: switchOverloads(),
	})
	flow.Register(&flow.Type{
		Name:     "Clamp",
		Category: Arithmetic,
		Inputs: []flow.InputDesc{
			{Name: "Value"},
			{Name: "Min", Default: values.Float(0)},
			{Name: "Max", Default: values.Float(1)},
		},
		Outputs:   output("Result", types.T{}),
		Overloads: clampOverloads(),
	})
	flow.Register(&flow.Type{
		Name:        "Blend",
		Category:    Arithmetic,
		Description: "Interpolates linearly between its first two inputs.",
		Inputs: []flow.InputDesc{
			{Name: "A"},
			{Name: "B"},
			{Name: "Amount", Default: values.Float(0.5), Accepts: []types.T{tFloat}},
		},
		Outputs:   output("Result", types.T{}),
		Overloads: blendOverloads(),
	})
	flow.Register(&flow.Type{
		Name:        "ToFloat",
		Category:    Conversion,
		Disableable: true,
		Inputs:      inputs("Value"),
		Outputs:     output("Result", tFloat),
		Overloads: []flow.Overload{
			unary(tFloat, tFloat, func(a values.T) values.T { return a }),
			unary(tInt, tFloat, func(a values.T) values.T { return values.Float(num(a)) }),
			unary(tBool, tFloat, func(a values.T) values.T { return values.Float(num(a)) }),
		},
	})
	flow.Register(&flow.Type{
		Name:        "ToInt",
		Category:    Conversion,
		Description: "Converts its input to an int, truncating toward zero.",
		Disableable: true,
		Inputs:      inputs("Value"),
		Outputs:     output("Result", tInt),
		Overloads: []flow.Overload{
			unary(tInt, tInt, func(a values.T) values.T { return a }),
			unary(tFloat, tInt, func(a values.T) values.T { return values.Int(int32(a.Float())) }),
			unary(tBool, tInt, func(a values.T) values.T { return values.Int(int32(num(a))) }),
		},
	})
}
