// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package channel describes the native layout of the elements
// (particles, vertices, faces) that a compiled expression reads from
// and writes to. An element is a flat byte record; a layout names
// the fields ("channels") in the record together with their types
// and byte offsets.
package channel

import (
	"fmt"
	"strings"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// Field is a named, typed field in an element record.
type Field struct {
	// Name is the field's name, e.g., "Position".
	Name string
	// Type is the field's type.
	Type types.T
	// Offset is the byte offset of the field in the record.
	Offset int
}

func (f Field) String() string {
	return fmt.Sprintf("%s %s @%d", f.Name, f.Type, f.Offset)
}

// Layout is the interface through which the compiler and evaluator
// access element records.
type Layout interface {
	// Fields enumerates the layout's fields in offset order.
	Fields() []Field
	// Field returns the field with the given name.
	Field(name string) (Field, bool)
	// Size returns the size of a record in bytes.
	Size() int
}

// Map is a Layout of fields packed in definition order.
type Map struct {
	fields []Field
	index  map[string]int
	size   int
}

// New returns a new, empty Map.
func New() *Map {
	return &Map{index: make(map[string]int)}
}

// Define appends a field to the map. Field names must be unique and
// the type must describe a value layout.
func (m *Map) Define(name string, t types.T) error {
	if !t.Valid() {
		return errors.E("define", name, errors.Invalid, errors.Errorf("invalid type %v", t))
	}
	if _, ok := m.index[name]; ok {
		return errors.E("define", name, errors.Invalid, errors.New("field already defined"))
	}
	m.index[name] = len(m.fields)
	m.fields = append(m.fields, Field{Name: name, Type: t, Offset: m.size})
	m.size += t.Size()
	return nil
}

// MustDefine is like Define, but panics on error.
func (m *Map) MustDefine(name string, t types.T) *Map {
	if err := m.Define(name, t); err != nil {
		panic(err)
	}
	return m
}

// Fields implements Layout.
func (m *Map) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

// Field implements Layout.
func (m *Map) Field(name string) (Field, bool) {
	i, ok := m.index[name]
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

// Size implements Layout.
func (m *Map) Size() int {
	return m.size
}

// NewRecord allocates a zeroed record for this map.
func (m *Map) NewRecord() []byte {
	return make([]byte, m.size)
}

// Get reads the named field from record rec.
func Get(l Layout, rec []byte, name string) (values.T, error) {
	f, ok := l.Field(name)
	if !ok {
		return values.None, errors.E("get", name, errors.NotExist)
	}
	if len(rec) < f.Offset+f.Type.Size() {
		return values.None, errors.E("get", name, errors.Invalid, errors.New("record too short"))
	}
	return values.Decode(f.Type, rec[f.Offset:])
}

// Set writes v into the named field of record rec. The value's type
// must match the field's type.
func Set(l Layout, rec []byte, name string, v values.T) error {
	f, ok := l.Field(name)
	if !ok {
		return errors.E("set", name, errors.NotExist)
	}
	if len(rec) < f.Offset+f.Type.Size() {
		return errors.E("set", name, errors.Invalid, errors.New("record too short"))
	}
	if err := values.Encode(f.Type, v, rec[f.Offset:]); err != nil {
		return errors.E("set", name, err)
	}
	return nil
}

func (m *Map) String() string {
	parts := make([]string, len(m.fields))
	for i, f := range m.fields {
		parts[i] = f.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// The names of the predefined particle channels.
const (
	Position     = "Position"
	Velocity     = "Velocity"
	Normal       = "Normal"
	Color        = "Color"
	TextureCoord = "TextureCoord"
	Density      = "Density"
	Orientation  = "Orientation"
	ID           = "ID"
)

// Particle returns a layout with the predefined particle channels.
func Particle() *Map {
	return New().
		MustDefine(Position, types.Vec3).
		MustDefine(Velocity, types.Vec3).
		MustDefine(Normal, types.Vec3).
		MustDefine(Color, types.Vec3).
		MustDefine(TextureCoord, types.Vec3).
		MustDefine(Density, types.Float).
		MustDefine(Orientation, types.Quat).
		MustDefine(ID, types.Int)
}

// Vertex returns a layout with the predefined mesh vertex channels.
func Vertex() *Map {
	return New().MustDefine(Position, types.Vec3)
}
