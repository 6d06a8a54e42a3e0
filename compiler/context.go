// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package compiler

import (
	"fmt"

	"github.com/aws/thinkbox-magma-sub002/channel"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// Context supplies ambient values, such as the current time, by
// name. It is consulted at compile time only.
type Context interface {
	Lookup(name string) (values.T, bool)
}

// Sources is implemented by contexts that also supply named
// collections (particle sets, meshes, scene objects) for nodes that
// provide them to the rest of the graph.
type Sources interface {
	Source(kind ProviderKind, name string) (interface{}, bool)
}

// ProviderKind is the kind of collaborator a provider supplies.
type ProviderKind int

const (
	// ParticlesProvider providers implement Particles.
	ParticlesProvider ProviderKind = iota
	// GeometryProvider providers implement Geometry.
	GeometryProvider
	// ObjectsProvider providers implement Objects.
	ObjectsProvider
)

func (k ProviderKind) String() string {
	switch k {
	case ParticlesProvider:
		return "particles"
	case GeometryProvider:
		return "geometry"
	case ObjectsProvider:
		return "objects"
	}
	return fmt.Sprintf("provider(%d)", int(k))
}

// Particles is a set of particles that may be queried during
// evaluation. Implementations must be safe for concurrent use.
type Particles interface {
	// Count returns the number of particles.
	Count() int
	// Layout returns the layout of each particle's record.
	Layout() channel.Layout
	// Get returns the named channel of particle i.
	Get(i int, name string) (values.T, error)
}

// Geometry is a triangle mesh that may be queried during evaluation.
// Implementations must be safe for concurrent use.
type Geometry interface {
	NumVertices() int
	NumFaces() int
	// Vertex returns the position of vertex i.
	Vertex(i int) ([3]float32, error)
}

// Objects is a set of scene objects. Implementations must be safe
// for concurrent use.
type Objects interface {
	Count() int
	// Position returns the position of object i.
	Position(i int) ([3]float32, error)
}

// MapContext is a Context and Sources backed by maps.
type MapContext struct {
	Values    map[string]values.T
	Particles map[string]Particles
	Geometry  map[string]Geometry
	Objects   map[string]Objects
}

// Lookup implements Context.
func (c MapContext) Lookup(name string) (values.T, bool) {
	v, ok := c.Values[name]
	return v, ok
}

// Source implements Sources.
func (c MapContext) Source(kind ProviderKind, name string) (interface{}, bool) {
	var (
		p  interface{}
		ok bool
	)
	switch kind {
	case ParticlesProvider:
		p, ok = c.Particles[name]
	case GeometryProvider:
		p, ok = c.Geometry[name]
	case ObjectsProvider:
		p, ok = c.Objects[name]
	}
	return p, ok
}

// ParticleSet is a Particles backed by a slice of records.
type ParticleSet struct {
	Map     channel.Layout
	Records [][]byte
}

// Count implements Particles.
func (s *ParticleSet) Count() int { return len(s.Records) }

// Layout implements Particles.
func (s *ParticleSet) Layout() channel.Layout { return s.Map }

// Get implements Particles.
func (s *ParticleSet) Get(i int, name string) (values.T, error) {
	if i < 0 || i >= len(s.Records) {
		return values.None, errors.E("particles", errors.Invalid, errors.Errorf("particle %d out of range [0, %d)", i, len(s.Records)))
	}
	return channel.Get(s.Map, s.Records[i], name)
}
