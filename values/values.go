// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package values defines the runtime representation of values that
// flow between expression nodes. Every value of a registered type
// (see package types) with a Float, Int, Bool, Vec3, or Quat layout
// is representable by a values.T, which is a closed tagged union:
//
//	none      the absent value (unconnected sockets, missing defaults)
//	float     float32
//	int       int32
//	bool      bool
//	vec3      [3]float32
//	quat      [4]float32, ordered (w, x, y, z)
//
// Values are comparable: two values are structurally equal exactly
// when they are ==, and thus values may be used as map keys.
//
// None is a legal transient state, but it is never a legal operand:
// encoding none is an error.
package values

import (
	"crypto" // The SHA-256 implementation is required for this package's
	// Digester.
	_ "crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/grailbio/base/digest"
)

// Digester is the digester used to compute value digests.
var Digester = digest.Digester(crypto.SHA256)

// Kind is the tag of a value.
type Kind int

const (
	// NoneKind is the kind of the absent value.
	NoneKind Kind = iota
	// FloatKind is the kind of float values.
	FloatKind
	// IntKind is the kind of int values.
	IntKind
	// BoolKind is the kind of bool values.
	BoolKind
	// Vec3Kind is the kind of 3-vector values.
	Vec3Kind
	// QuatKind is the kind of quaternion values.
	QuatKind

	kindMax
)

var kindStrings = [kindMax]string{
	NoneKind:  "none",
	FloatKind: "float",
	IntKind:   "int",
	BoolKind:  "bool",
	Vec3Kind:  "vec3",
	QuatKind:  "quat",
}

func (k Kind) String() string {
	return kindStrings[k]
}

// T is a runtime value. The zero T is None.
type T struct {
	kind Kind
	f    [4]float32
	i    int32
	b    bool
}

// None is the absent value.
var None T

// Float returns a new float value.
func Float(f float32) T {
	return T{kind: FloatKind, f: [4]float32{f}}
}

// Int returns a new int value.
func Int(i int32) T {
	return T{kind: IntKind, i: i}
}

// Bool returns a new bool value.
func Bool(b bool) T {
	return T{kind: BoolKind, b: b}
}

// Vec3 returns a new 3-vector value.
func Vec3(x, y, z float32) T {
	return T{kind: Vec3Kind, f: [4]float32{x, y, z}}
}

// Quat returns a new quaternion value with real part w and
// imaginary parts x, y, and z.
func Quat(w, x, y, z float32) T {
	return T{kind: QuatKind, f: [4]float32{w, x, y, z}}
}

// Kind returns v's tag.
func (v T) Kind() Kind { return v.kind }

// IsNone tells whether v is the absent value.
func (v T) IsNone() bool { return v.kind == NoneKind }

// Type returns the built-in type of v. Type returns false if v is
// None.
func (v T) Type() (types.T, bool) {
	switch v.kind {
	case FloatKind:
		return types.Float, true
	case IntKind:
		return types.Int, true
	case BoolKind:
		return types.Bool, true
	case Vec3Kind:
		return types.Vec3, true
	case QuatKind:
		return types.Quat, true
	default:
		return types.T{}, false
	}
}

// Float returns v's float value. It returns 0 for non-float values.
func (v T) Float() float32 {
	if v.kind != FloatKind {
		return 0
	}
	return v.f[0]
}

// Int returns v's int value. It returns 0 for non-int values.
func (v T) Int() int32 { return v.i }

// Bool returns v's bool value. It returns false for non-bool values.
func (v T) Bool() bool { return v.b }

// Vec3 returns v's vector components. It returns the zero vector for
// non-vector values.
func (v T) Vec3() [3]float32 {
	if v.kind != Vec3Kind {
		return [3]float32{}
	}
	return [3]float32{v.f[0], v.f[1], v.f[2]}
}

// Quat returns v's quaternion components (w, x, y, z). It returns
// the zero quaternion for non-quaternion values.
func (v T) Quat() [4]float32 {
	if v.kind != QuatKind {
		return [4]float32{}
	}
	return v.f
}

// Components returns v's elements widened to float64. Bools are
// rendered as 0 or 1. Components returns nil for None.
func (v T) Components() []float64 {
	switch v.kind {
	case FloatKind:
		return []float64{float64(v.f[0])}
	case IntKind:
		return []float64{float64(v.i)}
	case BoolKind:
		if v.b {
			return []float64{1}
		}
		return []float64{0}
	case Vec3Kind:
		return []float64{float64(v.f[0]), float64(v.f[1]), float64(v.f[2])}
	case QuatKind:
		return []float64{float64(v.f[0]), float64(v.f[1]), float64(v.f[2]), float64(v.f[3])}
	default:
		return nil
	}
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func (v T) String() string {
	switch v.kind {
	case FloatKind:
		return formatFloat(v.f[0])
	case IntKind:
		return strconv.FormatInt(int64(v.i), 10)
	case BoolKind:
		return strconv.FormatBool(v.b)
	case Vec3Kind, QuatKind:
		n := 3
		if v.kind == QuatKind {
			n = 4
		}
		elems := make([]string, n)
		for i := range elems {
			elems[i] = formatFloat(v.f[i])
		}
		return "(" + strings.Join(elems, ", ") + ")"
	default:
		return "none"
	}
}

// Zero returns the zero value of type t.
func Zero(t types.T) (T, error) {
	switch {
	case t.Equal(types.Float):
		return Float(0), nil
	case t.Equal(types.Int):
		return Int(0), nil
	case t.Equal(types.Bool):
		return Bool(false), nil
	case t.Equal(types.Vec3):
		return Vec3(0, 0, 0), nil
	case t.Equal(types.Quat):
		return Quat(1, 0, 0, 0), nil
	default:
		return None, errors.E("zero", t.String(), errors.NotSupported)
	}
}

// Encode writes v into b through type descriptor t. Encode fails if
// v is None, if t does not describe v's layout, or if b is too short.
func Encode(t types.T, v T, b []byte) error {
	vt, ok := v.Type()
	if !ok {
		return errors.E("encode", errors.Invalid, errors.Expected(t), errors.Found(types.T{}))
	}
	if !vt.Equal(t) {
		return errors.E("encode", errors.TypeMismatch, errors.Expected(t), errors.Found(vt))
	}
	if len(b) < t.Size() {
		return errors.E("encode", t.String(), errors.Invalid,
			errors.Errorf("buffer of %d bytes is too short", len(b)))
	}
	Put(v, b)
	return nil
}

// Put writes v into b without checking. It is used by the
// interpreter, where layouts were checked at compile time.
func Put(v T, b []byte) {
	switch v.kind {
	case FloatKind:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v.f[0]))
	case IntKind:
		binary.LittleEndian.PutUint32(b, uint32(v.i))
	case BoolKind:
		var u uint32
		if v.b {
			u = 1
		}
		binary.LittleEndian.PutUint32(b, u)
	case Vec3Kind, QuatKind:
		n := 3
		if v.kind == QuatKind {
			n = 4
		}
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(b[i*types.ElemSize:], math.Float32bits(v.f[i]))
		}
	}
}

// Decode reads a value of type t from b. Decode fails if t has no
// value representation or if b is too short.
func Decode(t types.T, b []byte) (T, error) {
	if len(b) < t.Size() {
		return None, errors.E("decode", t.String(), errors.Invalid,
			errors.Errorf("buffer of %d bytes is too short", len(b)))
	}
	k := KindOf(t)
	if k == NoneKind {
		return None, errors.E("decode", t.String(), errors.NotSupported)
	}
	return Get(k, b), nil
}

// KindOf returns the value kind that represents values of type t, or
// NoneKind if there is none.
func KindOf(t types.T) Kind {
	switch {
	case t.Equal(types.Float):
		return FloatKind
	case t.Equal(types.Int):
		return IntKind
	case t.Equal(types.Bool):
		return BoolKind
	case t.Equal(types.Vec3):
		return Vec3Kind
	case t.Equal(types.Quat):
		return QuatKind
	default:
		return NoneKind
	}
}

// Get reads a value of kind k from b without checking.
func Get(k Kind, b []byte) T {
	v := T{kind: k}
	switch k {
	case FloatKind:
		v.f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	case IntKind:
		v.i = int32(binary.LittleEndian.Uint32(b))
	case BoolKind:
		v.b = binary.LittleEndian.Uint32(b) != 0
	case Vec3Kind, QuatKind:
		n := 3
		if k == QuatKind {
			n = 4
		}
		for i := 0; i < n; i++ {
			v.f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*types.ElemSize:]))
		}
	}
	return v
}

// WriteDigest writes digestible material for v to w.
func WriteDigest(w io.Writer, v T) {
	var b [1 + 4*types.ElemSize]byte
	b[0] = byte(v.kind)
	Put(v, b[1:])
	w.Write(b[:])
}

// Digest computes the digest of value v.
func Digest(v T) digest.Digest {
	w := Digester.NewWriter()
	WriteDigest(w, v)
	return w.Digest()
}

// Must panics if err is non-nil, and otherwise returns v. It is
// intended for tests and package initialization.
func Must(v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("values: %v", err))
	}
	return v
}
