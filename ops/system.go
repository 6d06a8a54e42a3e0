// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ops

import (
	"github.com/aws/thinkbox-magma-sub002/compiler"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// Names of the system node types.
const (
	TypeElbow          = "Elbow"
	TypeInputValue     = "InputValue"
	TypeContextValue   = "ContextValue"
	TypeInputParticles = "InputParticles"
	TypeInputGeometry  = "InputGeometry"
	TypeInputObjects   = "InputObjects"
	TypeParticleCount  = "ParticleCount"
	TypeVertexCount    = "VertexCount"
	TypeFaceCount      = "FaceCount"
	TypeObjectCount    = "ObjectCount"
	TypeParticleQuery  = "ParticleQuery"
	TypeVertexPosition = "VertexPosition"
	TypeObjectPosition = "ObjectPosition"
)

// Property names of the system node types.
const (
	PropValue   = "value"
	PropName    = "name"
	PropSource  = "source"
	PropChannel = "channel"
)

func notNone(v interface{}) error {
	if v.(values.T).IsNone() {
		return errors.E(errors.Invalid, errors.New("value must not be none"))
	}
	return nil
}

// source declares a node type that supplies a named collaborator of
// the given kind. Its output is the collaborator's element count.
func source(name, description string, kind compiler.ProviderKind) {
	flow.Register(&flow.Type{
		Name:        name,
		Category:    Input,
		Description: description,
		Properties:  []flow.PropertyDesc{{Name: PropSource, Default: ""}},
		Outputs:     output("Count", tInt),
	})
	compiler.Register(name, compiler.ExtensionFunc(func(b *compiler.Builder, n *flow.Node) ([]compiler.Operand, error) {
		name := n.StringProperty(PropSource)
		srcs, ok := b.Context().(compiler.Sources)
		if !ok {
			return nil, errors.E("compile", n.Type().Name, errors.NotExist, errors.Node(n.ID()), errors.Property(PropSource),
				errors.New("context supplies no providers"))
		}
		p, ok := srcs.Source(kind, name)
		if !ok {
			return nil, errors.E("compile", n.Type().Name, errors.NotExist, errors.Node(n.ID()), errors.Property(PropSource),
				errors.Errorf("no %s named %q", kind, name))
		}
		b.RegisterProvider(n.ID(), 0, kind, p)
		count, err := size(kind, p)
		if err != nil {
			return nil, errors.E("compile", n.Type().Name, errors.Node(n.ID()), err)
		}
		op, err := b.Constant(values.Int(int32(count)))
		if err != nil {
			return nil, err
		}
		return []compiler.Operand{op}, nil
	}))
}

// size returns the element count of provider p.
func size(kind compiler.ProviderKind, p interface{}) (int, error) {
	switch p := p.(type) {
	case compiler.Particles:
		if kind == compiler.ParticlesProvider {
			return p.Count(), nil
		}
	case compiler.Geometry:
		if kind == compiler.GeometryProvider {
			return p.NumVertices(), nil
		}
	case compiler.Objects:
		if kind == compiler.ObjectsProvider {
			return p.Count(), nil
		}
	}
	return 0, errors.E(errors.Invalid, errors.Errorf("provider %T is not a %s provider", p, kind))
}

// provider resolves the collaborator connected to input 0 of n.
func provider(b *compiler.Builder, n *flow.Node, kind compiler.ProviderKind) (interface{}, error) {
	src := n.Input(0)
	if !src.Connected() {
		return nil, errors.E("compile", n.Type().Name, errors.Unconnected, errors.Node(n.ID()), errors.Input(0))
	}
	p, err := b.Provider(src, kind)
	if err != nil {
		return nil, errors.E("compile", n.Type().Name, errors.Node(n.ID()), errors.Input(0), err)
	}
	return p, nil
}

// count declares a node type whose output is a compile-time count
// taken from the collaborator connected to its input.
func count(name string, kind compiler.ProviderKind, fn func(p interface{}) (int, bool)) {
	flow.Register(&flow.Type{
		Name:     name,
		Category: Input,
		Inputs:   []flow.InputDesc{{Name: "Source", NoDefault: true}},
		Outputs:  output("Count", tInt),
	})
	compiler.Register(name, compiler.ExtensionFunc(func(b *compiler.Builder, n *flow.Node) ([]compiler.Operand, error) {
		p, err := provider(b, n, kind)
		if err != nil {
			return nil, err
		}
		c, ok := fn(p)
		if !ok {
			return nil, wrongProvider(n, p, kind)
		}
		op, err := b.Constant(values.Int(int32(c)))
		if err != nil {
			return nil, err
		}
		return []compiler.Operand{op}, nil
	}))
}

// query declares a node type that looks up a value of the
// collaborator connected to its first input, by the index given in
// its second input. The lookup happens during evaluation; a failed
// lookup yields none, which fails the evaluation.
func query(name string, kind compiler.ProviderKind, props []flow.PropertyDesc, out types.T,
	resolve func(b *compiler.Builder, n *flow.Node, p interface{}) (types.T, func(i int) (values.T, error), error)) {
	flow.Register(&flow.Type{
		Name:       name,
		Category:   Input,
		Properties: props,
		Inputs: []flow.InputDesc{
			{Name: "Source", NoDefault: true},
			{Name: "Index", Default: values.Int(0), Accepts: []types.T{tInt}},
		},
		Outputs: output("Value", out),
	})
	compiler.Register(name, compiler.ExtensionFunc(func(b *compiler.Builder, n *flow.Node) ([]compiler.Operand, error) {
		p, err := provider(b, n, kind)
		if err != nil {
			return nil, err
		}
		t, get, err := resolve(b, n, p)
		if err != nil {
			return nil, err
		}
		in, err := b.Inputs(n)
		if err != nil {
			return nil, err
		}
		log := b.Log()
		fn := func(args []values.T) values.T {
			v, err := get(int(args[1].Int()))
			if err != nil {
				log.Debugf("%s %d: %v", name, n.ID(), err)
				return values.None
			}
			return v
		}
		op, err := b.Call(n, 0, t, fn, in...)
		if err != nil {
			return nil, err
		}
		return []compiler.Operand{op}, nil
	}))
}

func wrongProvider(n *flow.Node, p interface{}, kind compiler.ProviderKind) error {
	return errors.E("compile", n.Type().Name, errors.Invalid, errors.Node(n.ID()),
		errors.Errorf("provider %T is not a %s provider", p, kind))
}

func init() {
	flow.Register(&flow.Type{
		Name:        TypeElbow,
		Category:    "System",
		Description: "Forwards its input unchanged.",
		Inputs:      []flow.InputDesc{{Name: "Value", NoDefault: true}},
		Outputs:     output("Value", types.T{}),
	})
	compiler.Register(TypeElbow, compiler.ExtensionFunc(func(b *compiler.Builder, n *flow.Node) ([]compiler.Operand, error) {
		op, err := b.Input(n, 0)
		if err != nil {
			return nil, err
		}
		return []compiler.Operand{op}, nil
	}))

	flow.Register(&flow.Type{
		Name:        TypeInputValue,
		Category:    Input,
		Description: "Supplies a constant value.",
		Properties:  []flow.PropertyDesc{{Name: PropValue, Default: values.Float(0), Validate: notNone}},
		Outputs:     output("Value", types.T{}),
	})
	compiler.Register(TypeInputValue, compiler.ExtensionFunc(func(b *compiler.Builder, n *flow.Node) ([]compiler.Operand, error) {
		v, _ := n.Property(PropValue)
		op, err := b.Constant(v.(values.T))
		if err != nil {
			return nil, errors.E("compile", n.Type().Name, errors.Node(n.ID()), errors.Property(PropValue), err)
		}
		return []compiler.Operand{op}, nil
	}))

	flow.Register(&flow.Type{
		Name:        TypeContextValue,
		Category:    Input,
		Description: "Supplies a named value of the evaluation context, or its fallback if the context has none.",
		Properties:  []flow.PropertyDesc{{Name: PropName, Default: ""}},
		Inputs:      []flow.InputDesc{{Name: "Fallback"}},
		Outputs:     output("Value", types.T{}),
	})
	compiler.Register(TypeContextValue, compiler.ExtensionFunc(func(b *compiler.Builder, n *flow.Node) ([]compiler.Operand, error) {
		name := n.StringProperty(PropName)
		var (
			op  compiler.Operand
			err error
		)
		if v, ok := b.Context().Lookup(name); ok {
			op, err = b.Constant(v)
		} else if n.Input(0).Connected() || !n.Default(0).IsNone() {
			op, err = b.Input(n, 0)
		} else {
			err = errors.E("compile", n.Type().Name, errors.NotExist, errors.Node(n.ID()), errors.Property(PropName),
				errors.Errorf("context has no value named %q", name))
		}
		if err != nil {
			return nil, err
		}
		return []compiler.Operand{op}, nil
	}))

	source(TypeInputParticles, "Supplies a particle set of the evaluation context.", compiler.ParticlesProvider)
	source(TypeInputGeometry, "Supplies a mesh of the evaluation context.", compiler.GeometryProvider)
	source(TypeInputObjects, "Supplies a set of scene objects of the evaluation context.", compiler.ObjectsProvider)

	count(TypeParticleCount, compiler.ParticlesProvider, func(p interface{}) (int, bool) {
		ps, ok := p.(compiler.Particles)
		if !ok {
			return 0, false
		}
		return ps.Count(), true
	})
	count(TypeVertexCount, compiler.GeometryProvider, func(p interface{}) (int, bool) {
		g, ok := p.(compiler.Geometry)
		if !ok {
			return 0, false
		}
		return g.NumVertices(), true
	})
	count(TypeFaceCount, compiler.GeometryProvider, func(p interface{}) (int, bool) {
		g, ok := p.(compiler.Geometry)
		if !ok {
			return 0, false
		}
		return g.NumFaces(), true
	})
	count(TypeObjectCount, compiler.ObjectsProvider, func(p interface{}) (int, bool) {
		o, ok := p.(compiler.Objects)
		if !ok {
			return 0, false
		}
		return o.Count(), true
	})

	query(TypeParticleQuery, compiler.ParticlesProvider,
		[]flow.PropertyDesc{{Name: PropChannel, Default: ""}}, types.T{},
		func(b *compiler.Builder, n *flow.Node, p interface{}) (types.T, func(int) (values.T, error), error) {
			ps, ok := p.(compiler.Particles)
			if !ok {
				return types.T{}, nil, wrongProvider(n, p, compiler.ParticlesProvider)
			}
			name := n.StringProperty(PropChannel)
			f, ok := ps.Layout().Field(name)
			if !ok {
				return types.T{}, nil, errors.E("compile", n.Type().Name, errors.NotExist, errors.Node(n.ID()), errors.Property(PropChannel),
					errors.Errorf("particles have no channel named %q", name))
			}
			return f.Type, func(i int) (values.T, error) { return ps.Get(i, name) }, nil
		})
	query(TypeVertexPosition, compiler.GeometryProvider, nil, tVec3,
		func(b *compiler.Builder, n *flow.Node, p interface{}) (types.T, func(int) (values.T, error), error) {
			g, ok := p.(compiler.Geometry)
			if !ok {
				return types.T{}, nil, wrongProvider(n, p, compiler.GeometryProvider)
			}
			return tVec3, func(i int) (values.T, error) {
				v, err := g.Vertex(i)
				return vec(v), err
			}, nil
		})
	query(TypeObjectPosition, compiler.ObjectsProvider, nil, tVec3,
		func(b *compiler.Builder, n *flow.Node, p interface{}) (types.T, func(int) (values.T, error), error) {
			o, ok := p.(compiler.Objects)
			if !ok {
				return types.T{}, nil, wrongProvider(n, p, compiler.ObjectsProvider)
			}
			return tVec3, func(i int) (values.T, error) {
				v, err := o.Position(i)
				return vec(v), err
			}, nil
		})
}
