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

// arith returns the overloads of a binary arithmetic operator.
// Mixed int and float operands are promoted to float; scalars are
// broadcast over vectors. If iop is nil, int operands are promoted to
// float.
func arith(fop func(a, b float32) float32, iop func(a, b int32) int32) []flow.Overload {
	ff := func(a, b values.T) values.T { return values.Float(fop(num(a), num(b))) }
	vv := func(a, b values.T) values.T {
		x, y := a.Vec3(), b.Vec3()
		return values.Vec3(fop(x[0], y[0]), fop(x[1], y[1]), fop(x[2], y[2]))
	}
	vs := func(a, b values.T) values.T {
		s := num(b)
		return componentwise(a, func(x float32) float32 { return fop(x, s) })
	}
	sv := func(a, b values.T) values.T {
		s := num(a)
		return componentwise(b, func(x float32) float32 { return fop(s, x) })
	}
	list := []flow.Overload{binary(tFloat, tFloat, tFloat, ff)}
	if iop != nil {
		list = append(list, binary(tInt, tInt, tInt, func(a, b values.T) values.T {
			return values.Int(iop(a.Int(), b.Int()))
		}))
	} else {
		list = append(list, binary(tInt, tInt, tFloat, ff))
	}
	return append(list,
		binary(tFloat, tInt, tFloat, ff),
		binary(tInt, tFloat, tFloat, ff),
		binary(tVec3, tVec3, tVec3, vv),
		binary(tVec3, tFloat, tVec3, vs),
		binary(tVec3, tInt, tVec3, vs),
		binary(tFloat, tVec3, tVec3, sv),
		binary(tInt, tVec3, tVec3, sv),
	)
}

// math1 returns the overloads of a unary float function applied to
// scalars and component-wise to vectors. Ints are promoted to float
// unless iop is non-nil.
func math1(fop func(float32) float32, iop func(int32) int32) []flow.Overload {
	list := []flow.Overload{
		unary(tFloat, tFloat, func(a values.T) values.T { return values.Float(fop(a.Float())) }),
		unary(tVec3, tVec3, func(a values.T) values.T { return componentwise(a, fop) }),
	}
	if iop != nil {
		return append(list, unary(tInt, tInt, func(a values.T) values.T { return values.Int(iop(a.Int())) }))
	}
	return append(list, unary(tInt, tFloat, func(a values.T) values.T { return values.Float(fop(num(a))) }))
}

func f64(f func(float64) float64) func(float32) float32 {
	return func(x float32) float32 { return float32(f(float64(x))) }
}

func identity(i int32) int32 { return i }

func absInt(i int32) int32 {
	if i < 0 {
		return -i
	}
	return i
}

func divInt(a, b int32) int32 {
	if b == 0 {
		return 0
	}
	return a / b
}

func modInt(a, b int32) int32 {
	if b == 0 {
		return 0
	}
	return a % b
}

func modFloat(a, b float32) float32 {
	return float32(math.Mod(float64(a), float64(b)))
}

func powFloat(a, b float32) float32 {
	return float32(math.Pow(float64(a), float64(b)))
}

// quatMul returns the Hamilton product pq.
func quatMul(p, q [4]float32) [4]float32 {
	return [4]float32{
		p[0]*q[0] - p[1]*q[1] - p[2]*q[2] - p[3]*q[3],
		p[0]*q[1] + p[1]*q[0] + p[2]*q[3] - p[3]*q[2],
		p[0]*q[2] - p[1]*q[3] + p[2]*q[0] + p[3]*q[1],
		p[0]*q[3] + p[1]*q[2] - p[2]*q[1] + p[3]*q[0],
	}
}

// rotate rotates v by the unit quaternion q.
func rotate(q [4]float32, v [3]float32) [3]float32 {
	p := quatMul(quatMul(q, [4]float32{0, v[0], v[1], v[2]}), [4]float32{q[0], -q[1], -q[2], -q[3]})
	return [3]float32{p[1], p[2], p[3]}
}

func binaryInputs(right values.T) []flow.InputDesc {
	return []flow.InputDesc{
		{Name: "Left"},
		{Name: "Right", Default: right},
	}
}

func init() {
	flow.Register(&flow.Type{
		Name:        "Add",
		Category:    Arithmetic,
		Description: "Adds its inputs.",
		Disableable: true,
		Inputs:      binaryInputs(values.Float(0)),
		Outputs:     output("Result", types.T{}),
		Overloads:   arith(func(a, b float32) float32 { return a + b }, func(a, b int32) int32 { return a + b }),
	})
	flow.Register(&flow.Type{
		Name:        "Subtract",
		Category:    Arithmetic,
		Description: "Subtracts its right input from its left input.",
		Disableable: true,
		Inputs:      binaryInputs(values.Float(0)),
		Outputs:     output("Result", types.T{}),
		Overloads:   arith(func(a, b float32) float32 { return a - b }, func(a, b int32) int32 { return a - b }),
	})
	flow.Register(&flow.Type{
		Name:        "Multiply",
		Category:    Arithmetic,
		Description: "Multiplies its inputs. Quaternions compose; a quaternion times a vector rotates the vector.",
		Disableable: true,
		Inputs:      binaryInputs(values.Float(1)),
		Outputs:     output("Result", types.T{}),
		Overloads: append(arith(func(a, b float32) float32 { return a * b }, func(a, b int32) int32 { return a * b }),
			binary(tQuat, tQuat, tQuat, func(a, b values.T) values.T { return quat(quatMul(a.Quat(), b.Quat())) }),
			binary(tQuat, tVec3, tVec3, func(a, b values.T) values.T { return vec(rotate(a.Quat(), b.Vec3())) }),
		),
	})
	flow.Register(&flow.Type{
		Name:        "Divide",
		Category:    Arithmetic,
		Description: "Divides its left input by its right input. Integer division by zero yields zero.",
		Disableable: true,
		Inputs:      binaryInputs(values.Float(1)),
		Outputs:     output("Result", types.T{}),
		Overloads:   arith(func(a, b float32) float32 { return a / b }, divInt),
	})
	flow.Register(&flow.Type{
		Name:        "Modulo",
		Category:    Arithmetic,
		Description: "Computes the remainder of dividing its left input by its right input.",
		Disableable: true,
		Inputs:      binaryInputs(values.Float(1)),
		Outputs:     output("Result", types.T{}),
		Overloads:   arith(modFloat, modInt),
	})
	flow.Register(&flow.Type{
		Name:        "Power",
		Category:    Arithmetic,
		Description: "Raises its left input to the power of its right input.",
		Disableable: true,
		Inputs:      binaryInputs(values.Float(1)),
		Outputs:     output("Result", types.T{}),
		Overloads:   arith(powFloat, nil),
	})
	flow.Register(&flow.Type{
		Name:        "Negate",
		Category:    Arithmetic,
		Disableable: true,
		Inputs:      inputs("Value"),
		Outputs:     output("Result", types.T{}),
		Overloads:   math1(func(x float32) float32 { return -x }, func(i int32) int32 { return -i }),
	})
	flow.Register(&flow.Type{
		Name:        "Abs",
		Category:    Arithmetic,
		Disableable: true,
		Inputs:      inputs("Value"),
		Outputs:     output("Result", types.T{}),
		Overloads:   math1(f64(math.Abs), absInt),
	})
	flow.Register(&flow.Type{
		Name:        "Floor",
		Category:    Arithmetic,
		Disableable: true,
		Inputs:      inputs("Value"),
		Outputs:     output("Result", types.T{}),
		Overloads:   math1(f64(math.Floor), identity),
	})
	flow.Register(&flow.Type{
		Name:        "Ceil",
		Category:    Arithmetic,
		Disableable: true,
		Inputs:      inputs("Value"),
		Outputs:     output("Result", types.T{}),
		Overloads:   math1(f64(math.Ceil), identity),
	})
	flow.Register(&flow.Type{
		Name:        "Sqrt",
		Category:    Arithmetic,
		Disableable: true,
		Inputs:      inputs("Value"),
		Outputs:     output("Result", types.T{}),
		Overloads:   math1(f64(math.Sqrt), nil),
	})
}
