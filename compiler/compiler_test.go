// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package compiler_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/aws/thinkbox-magma-sub002/channel"
	"github.com/aws/thinkbox-magma-sub002/compiler"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/eval"
	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/metrics"
	"github.com/aws/thinkbox-magma-sub002/ops"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

var valueComparer = cmp.Comparer(func(a, b values.T) bool { return a == b })

type builder struct {
	t *testing.T
	g *flow.Graph
}

func newBuilder(t *testing.T) *builder {
	return &builder{t, flow.New()}
}

func (b *builder) create(typ string) flow.ID {
	b.t.Helper()
	id, err := b.g.Create(typ, flow.InvalidID)
	require.NoError(b.t, err)
	return id
}

func (b *builder) connect(dst flow.ID, i int, src flow.ID, o int) {
	b.t.Helper()
	require.NoError(b.t, b.g.SetInput(dst, i, flow.Socket{Node: src, Output: o}))
}

func (b *builder) def(id flow.ID, i int, v values.T) {
	b.t.Helper()
	require.NoError(b.t, b.g.SetDefault(id, i, v))
}

func (b *builder) prop(id flow.ID, name string, v interface{}) {
	b.t.Helper()
	require.NoError(b.t, b.g.SetProperty(id, name, v))
}

func (b *builder) node(id flow.ID) *flow.Node {
	b.t.Helper()
	n, ok := b.g.Node(id)
	require.True(b.t, ok, "node %d", id)
	return n
}

// read creates an InputChannel node reading the named channel.
func (b *builder) read(name string) flow.ID {
	id := b.create(flow.TypeInputChannel)
	b.prop(id, flow.PropChannelName, name)
	return id
}

// write creates an Output node writing output o of src to the named
// channel.
func (b *builder) write(name string, src flow.ID, o int) flow.ID {
	id := b.create(flow.TypeOutput)
	b.prop(id, flow.PropChannelName, name)
	b.connect(id, 0, src, o)
	return id
}

func (b *builder) compile(env compiler.Context) (*compiler.Program, error) {
	return compiler.Compile(context.Background(), b.g, channel.Particle(), env)
}

func (b *builder) mustCompile(env compiler.Context) *compiler.Program {
	b.t.Helper()
	prog, err := b.compile(env)
	require.NoError(b.t, err)
	return prog
}

// run evaluates prog for a single particle with the given channel
// values and returns the resulting record.
func run(t *testing.T, prog *compiler.Program, init map[string]values.T) []byte {
	t.Helper()
	layout := channel.Particle()
	rec := layout.NewRecord()
	for name, v := range init {
		require.NoError(t, channel.Set(layout, rec, name, v))
	}
	require.NoError(t, eval.New(prog).Eval(rec))
	return rec
}

func get(t *testing.T, rec []byte, name string) values.T {
	t.Helper()
	v, err := channel.Get(channel.Particle(), rec, name)
	require.NoError(t, err)
	return v
}

func TestColor(t *testing.T) {
	b := newBuilder(t)
	add := b.create("Add")
	b.connect(add, 0, b.read(channel.Color), 0)
	b.def(add, 1, values.Vec3(0.25, 0, 0))
	b.write(channel.Color, add, 0)
	prog := b.mustCompile(nil)
	rec := run(t, prog, map[string]values.T{channel.Color: values.Vec3(0, 0, 1)})
	if got, want := get(t, rec, channel.Color), values.Vec3(0.25, 0, 1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDeterminism(t *testing.T) {
	build := func() *builder {
		b := newBuilder(t)
		mul := b.create("Multiply")
		b.connect(mul, 0, b.read(channel.Velocity), 0)
		b.def(mul, 1, values.Float(2))
		add := b.create("Add")
		b.connect(add, 0, b.read(channel.Position), 0)
		b.connect(add, 1, mul, 0)
		b.write(channel.Position, add, 0)
		return b
	}
	p1, p2 := build().mustCompile(nil), build().mustCompile(nil)
	if got, want := p1.String(), p2.String(); got != want {
		t.Errorf("programs differ:\n%s\n%s", got, want)
	}
	if got, want := p1.Digest(), p2.Digest(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	init := map[string]values.T{
		channel.Position: values.Vec3(1, 2, 3),
		channel.Velocity: values.Vec3(1, 0, -1),
	}
	r1, r2 := run(t, p1, init), run(t, p2, init)
	if got, want := get(t, r1, channel.Position), values.Vec3(3, 2, 1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	require.Equal(t, r1, r2)
}

func TestDefaultIsConstant(t *testing.T) {
	withDefault := newBuilder(t)
	add := withDefault.create("Add")
	withDefault.connect(add, 0, withDefault.read(channel.Density), 0)
	withDefault.def(add, 1, values.Float(2))
	withDefault.write(channel.Density, add, 0)

	withNode := newBuilder(t)
	add = withNode.create("Add")
	withNode.connect(add, 0, withNode.read(channel.Density), 0)
	c := withNode.create(ops.TypeInputValue)
	withNode.prop(c, ops.PropValue, values.Float(2))
	withNode.connect(add, 1, c, 0)
	withNode.write(channel.Density, add, 0)

	p1, p2 := withDefault.mustCompile(nil), withNode.mustCompile(nil)
	if got, want := p1.Count(compiler.Const), p2.Count(compiler.Const); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := p1.Len(), p2.Len(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	init := map[string]values.T{channel.Density: values.Float(0.5)}
	v1, v2 := get(t, run(t, p1, init), channel.Density), get(t, run(t, p2, init), channel.Density)
	if got, want := v1, values.Float(2.5); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if v1 != v2 {
		t.Errorf("default %v differs from constant node %v", v1, v2)
	}
}

func TestConstantDedup(t *testing.T) {
	b := newBuilder(t)
	add := b.create("Add")
	b.def(add, 0, values.Int(4))
	b.def(add, 1, values.Int(4))
	b.write(channel.ID, add, 0)
	prog := b.mustCompile(nil)
	if got, want := prog.Count(compiler.Const), 1; got != want {
		t.Errorf("got %v, want %v\n%s", got, want, prog)
	}
	if got, want := get(t, run(t, prog, nil), channel.ID), values.Int(8); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestConstantDedupProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)
	properties.Property("equal defaults share one constant", prop.ForAll(
		func(x, y int32) bool {
			b := newBuilder(t)
			left := b.create("Add")
			b.def(left, 0, values.Int(x))
			b.def(left, 1, values.Int(y))
			right := b.create("Subtract")
			b.def(right, 0, values.Int(x))
			b.def(right, 1, values.Int(y))
			mul := b.create("Multiply")
			b.connect(mul, 0, left, 0)
			b.connect(mul, 1, right, 0)
			b.write(channel.ID, mul, 0)
			prog, err := b.compile(nil)
			if err != nil {
				return false
			}
			want := 2
			if x == y {
				want = 1
			}
			if prog.Count(compiler.Const) != want {
				return false
			}
			return get(t, run(t, prog, nil), channel.ID) == values.Int((x+y)*(x-y))
		},
		gen.Int32(),
		gen.Int32(),
	))
	properties.TestingRun(t)
}

func TestConstantSignedZero(t *testing.T) {
	b := newBuilder(t)
	density := b.read(channel.Density)
	pos := b.create("Divide")
	b.connect(pos, 0, density, 0)
	b.def(pos, 1, values.Float(0))
	neg := b.create("Divide")
	b.connect(neg, 0, density, 0)
	b.def(neg, 1, values.Float(float32(math.Copysign(0, -1))))
	vec := b.create("ToVector")
	b.connect(vec, 0, pos, 0)
	b.connect(vec, 1, neg, 0)
	b.write(channel.Velocity, vec, 0)
	prog := b.mustCompile(nil)
	// +0 is shared by the Z default; -0 is a constant of its own.
	if got, want := prog.Count(compiler.Const), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	rec := run(t, prog, map[string]values.T{channel.Density: values.Float(1)})
	inf := float32(math.Inf(1))
	if got, want := get(t, rec, channel.Velocity), values.Vec3(inf, -inf, 0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestConstantNaN(t *testing.T) {
	b := newBuilder(t)
	add := b.create("Add")
	nan := values.Float(float32(math.NaN()))
	b.def(add, 0, nan)
	b.def(add, 1, nan)
	b.write(channel.Density, add, 0)
	prog := b.mustCompile(nil)
	if got, want := prog.Count(compiler.Const), 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSharedSubexpression(t *testing.T) {
	b := newBuilder(t)
	neg := b.create("Negate")
	b.connect(neg, 0, b.read(channel.Density), 0)
	add := b.create("Add")
	b.connect(add, 0, neg, 0)
	b.connect(add, 1, neg, 0)
	b.write(channel.Density, add, 0)
	b.write(channel.TextureCoord, b.read(channel.Position), 0)
	prog := b.mustCompile(nil)
	// The negation is computed once and read twice.
	if got, want := prog.Count(compiler.Call), 2; got != want {
		t.Errorf("got %v, want %v\n%s", got, want, prog)
	}
	rec := run(t, prog, map[string]values.T{
		channel.Density:  values.Float(2),
		channel.Position: values.Vec3(1, 2, 3),
	})
	if got, want := get(t, rec, channel.Density), values.Float(-4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := get(t, rec, channel.TextureCoord), values.Vec3(1, 2, 3); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnconnected(t *testing.T) {
	b := newBuilder(t)
	neg := b.create("Negate")
	b.write(channel.Density, neg, 0)
	_, err := b.compile(nil)
	if !errors.Is(errors.Unconnected, err) {
		t.Fatalf("expected Unconnected, got %v", err)
	}
	e := errors.Recover(err).Locate()
	if got, want := e.Node, int(neg); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := e.Input, 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDeleteUnconnects(t *testing.T) {
	b := newBuilder(t)
	in := b.read(channel.Density)
	neg := b.create("Negate")
	b.connect(neg, 0, in, 0)
	b.write(channel.Density, neg, 0)
	prog := b.mustCompile(nil)
	if got, want := get(t, run(t, prog, map[string]values.T{channel.Density: values.Float(3)}), channel.Density), values.Float(-3); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	require.NoError(t, b.g.Delete(in))
	if _, err := b.compile(nil); !errors.Is(errors.Unconnected, err) {
		t.Errorf("expected Unconnected, got %v", err)
	}
}

func TestReplaceWithFewerOutputs(t *testing.T) {
	b := newBuilder(t)
	breakout := b.create("Breakout")
	b.connect(breakout, 0, b.read(channel.Position), 0)
	b.write(channel.Density, breakout, 2)
	add := b.create("Add")
	b.connect(add, 0, b.read(channel.Density), 0)
	require.NoError(t, b.g.Replace(breakout, add))
	prog, err := b.compile(nil)
	if errors.Is(errors.Fatal, err) {
		t.Fatalf("replace left a dangling socket: %v", err)
	}
	require.NoError(t, err)
	if got, want := len(prog.Outputs()), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSkippedOutputs(t *testing.T) {
	b := newBuilder(t)
	b.create(flow.TypeOutput)
	out := b.write(channel.Density, b.read(channel.Density), 0)
	require.NoError(t, b.g.SetEnabled(out, false))
	prog := b.mustCompile(nil)
	if got, want := len(prog.Outputs()), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTypeMismatch(t *testing.T) {
	b := newBuilder(t)
	b.write(channel.ID, b.read(channel.Density), 0)
	_, err := b.compile(nil)
	if !errors.Is(errors.TypeMismatch, err) {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
	e := errors.Recover(err)
	if got, want := e.Expected, types.Int.String(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := e.Found, types.Float.String(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	b = newBuilder(t)
	dot := b.create("Dot")
	b.connect(dot, 0, b.read(channel.Density), 0)
	b.connect(dot, 1, b.read(channel.Position), 0)
	b.write(channel.Density, dot, 0)
	_, err = b.compile(nil)
	if !errors.Is(errors.TypeMismatch, err) {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
	if got, want := errors.Recover(err).Locate().Node, int(dot); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMissingChannel(t *testing.T) {
	b := newBuilder(t)
	b.write("Bogus", b.read(channel.Density), 0)
	if _, err := b.compile(nil); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	b := newBuilder(t)
	neg := b.create("Negate")
	b.connect(neg, 0, b.read(channel.Density), 0)
	b.write(channel.Density, neg, 0)
	require.NoError(t, b.g.SetEnabled(neg, false))
	prog := b.mustCompile(nil)
	if got, want := prog.Count(compiler.Call), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := get(t, run(t, prog, map[string]values.T{channel.Density: values.Float(3)}), channel.Density), values.Float(3); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	// A disabled node whose first input does not match its declared
	// output type cannot pass through.
	b = newBuilder(t)
	conv := b.create("ToFloat")
	b.connect(conv, 0, b.read(channel.ID), 0)
	b.write(channel.Density, conv, 0)
	require.NoError(t, b.g.SetEnabled(conv, false))
	if _, err := b.compile(nil); !errors.Is(errors.TypeMismatch, err) {
		t.Errorf("expected TypeMismatch, got %v", err)
	}
}

func TestBLOP(t *testing.T) {
	b := newBuilder(t)
	blop := b.create(flow.TypeBLOP)
	require.NoError(t, b.g.SetNumInputs(blop, 1))
	b.connect(blop, 0, b.read(channel.Density), 0)
	n := b.node(blop)
	require.NoError(t, b.g.Push(blop))
	mul := b.create("Multiply")
	b.connect(mul, 0, n.Source(), 0)
	b.def(mul, 1, values.Float(3))
	b.connect(n.Sink(), 0, mul, 0)
	_, err := b.g.Pop()
	require.NoError(t, err)
	b.write(channel.Density, blop, 0)

	prog := b.mustCompile(nil)
	if got, want := prog.Count(compiler.Iterate), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := get(t, run(t, prog, map[string]values.T{channel.Density: values.Float(2)}), channel.Density), values.Float(6); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	// Unconnected BLOP outputs are reported against the BLOP.
	require.NoError(t, b.g.SetInput(n.Sink(), 0, flow.Unconnected))
	_, err = b.compile(nil)
	if !errors.Is(errors.Unconnected, err) {
		t.Fatalf("expected Unconnected, got %v", err)
	}
	if got, want := errors.Recover(err).Node, int(blop); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// loop creates a loop with a single carried Int variable, initialized
// to init, that is incremented by one in each iteration.
func (b *builder) loop(init int32, max int) (loop, add flow.ID) {
	loop = b.create(flow.TypeLoop)
	b.prop(loop, flow.PropMaxIterations, max)
	b.def(loop, 0, values.Int(init))
	n := b.node(loop)
	require.NoError(b.t, b.g.Push(loop))
	add = b.create("Add")
	b.connect(add, 0, n.Source(), 1)
	b.def(add, 1, values.Int(1))
	b.connect(n.Sink(), 1, add, 0)
	_, err := b.g.Pop()
	require.NoError(b.t, err)
	return loop, add
}

func TestLoop(t *testing.T) {
	for _, n := range []int{0, 1, 5, 100} {
		b := newBuilder(t)
		loop, _ := b.loop(0, n)
		b.write(channel.ID, loop, 0)
		prog := b.mustCompile(nil)
		if got, want := prog.Count(compiler.Iterate), 1; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if got, want := get(t, run(t, prog, nil), channel.ID), values.Int(int32(n)); got != want {
			t.Errorf("%d iterations: got %v, want %v", n, got, want)
		}
	}
}

func TestLoopCondition(t *testing.T) {
	b := newBuilder(t)
	loop, _ := b.loop(10, 100)
	n := b.node(loop)
	require.NoError(t, b.g.Push(loop))
	less := b.create("Less")
	b.connect(less, 0, n.Source(), 0)
	b.def(less, 1, values.Int(3))
	b.connect(n.Sink(), 0, less, 0)
	_, err := b.g.Pop()
	require.NoError(t, err)
	b.write(channel.ID, loop, 0)
	prog := b.mustCompile(nil)
	if got, want := get(t, run(t, prog, nil), channel.ID), values.Int(13); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	// Conditions must be booleans.
	b.connect(n.Sink(), 0, n.Source(), 0)
	if _, err := b.compile(nil); !errors.Is(errors.TypeMismatch, err) {
		t.Errorf("expected TypeMismatch, got %v", err)
	}
}

func TestLoopSwap(t *testing.T) {
	// Two carried variables that swap values each iteration: all
	// updates must read the previous iteration's values.
	b := newBuilder(t)
	loop := b.create(flow.TypeLoop)
	require.NoError(t, b.g.SetNumOutputs(loop, 2))
	b.prop(loop, flow.PropMaxIterations, 3)
	b.def(loop, 0, values.Int(1))
	b.def(loop, 1, values.Int(2))
	n := b.node(loop)
	require.Equal(t, []int{0, 1}, n.OutputMask())
	b.connect(n.Sink(), 1, n.Source(), 2)
	b.connect(n.Sink(), 2, n.Source(), 1)
	b.write(channel.ID, loop, 0)
	prog := b.mustCompile(nil)
	if got, want := get(t, run(t, prog, nil), channel.ID), values.Int(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLoopInvariant(t *testing.T) {
	b := newBuilder(t)
	loop, add := b.loop(0, 4)
	require.NoError(t, b.g.SetNumInputs(loop, 1))
	n := b.node(loop)
	b.connect(loop, 0, b.read(channel.ID), 0)
	// Increment by the invariant input rather than by one.
	b.connect(add, 1, n.Source(), 1)
	b.write(channel.ID, loop, 0)
	prog := b.mustCompile(nil)
	if got, want := get(t, run(t, prog, map[string]values.T{channel.ID: values.Int(3)}), channel.ID), values.Int(12); got != want {
		t.Errorf("got %v, want %v\n%s", got, want, prog)
	}
}

func TestDebugTrace(t *testing.T) {
	b := newBuilder(t)
	loop, add := b.loop(0, 3)
	b.write(channel.ID, loop, 0)
	prog := b.mustCompile(nil)
	var tr eval.Trace
	rec := channel.Particle().NewRecord()
	require.NoError(t, eval.New(prog).EvalDebug(rec, &tr))
	want := []values.T{values.Int(1), values.Int(2), values.Int(3)}
	if diff := cmp.Diff(want, tr.Values(add, 0), valueComparer); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if got, want := tr.Values(loop, -1), []values.T{values.Int(3)}; !cmp.Equal(got, want, valueComparer) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestProviders(t *testing.T) {
	layout := channel.Particle()
	set := &compiler.ParticleSet{Map: layout}
	for i := 0; i < 3; i++ {
		rec := layout.NewRecord()
		require.NoError(t, channel.Set(layout, rec, channel.Density, values.Float(float32(i)+0.5)))
		set.Records = append(set.Records, rec)
	}
	env := compiler.MapContext{Particles: map[string]compiler.Particles{"emitter": set}}

	b := newBuilder(t)
	src := b.create(ops.TypeInputParticles)
	b.prop(src, ops.PropSource, "emitter")
	count := b.create(ops.TypeParticleCount)
	b.connect(count, 0, src, 0)
	b.write(channel.ID, count, 0)
	query := b.create(ops.TypeParticleQuery)
	b.prop(query, ops.PropChannel, channel.Density)
	b.connect(query, 0, src, 0)
	b.def(query, 1, values.Int(1))
	b.write(channel.Density, query, 0)

	prog := b.mustCompile(env)
	rec := run(t, prog, nil)
	if got, want := get(t, rec, channel.ID), values.Int(3); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := get(t, rec, channel.Density), values.Float(1.5); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	// Out of range queries fail evaluation.
	b.def(query, 1, values.Int(7))
	prog = b.mustCompile(env)
	if err := eval.New(prog).Eval(layout.NewRecord()); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected Invalid, got %v", err)
	}

	// A missing source fails compilation.
	if _, err := b.compile(compiler.MapContext{}); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
}

func TestCompilerProvider(t *testing.T) {
	b := newBuilder(t)
	elbow := b.create(ops.TypeElbow)
	b.connect(elbow, 0, b.read(channel.ID), 0)
	count := b.create(ops.TypeObjectCount)
	b.connect(count, 0, elbow, 0)
	b.write(channel.ID, count, 0)

	c := compiler.New(nil)
	if _, err := c.Compile(context.Background(), b.g, channel.Particle(), nil); !errors.Is(errors.NotExist, err) {
		t.Fatalf("expected NotExist, got %v", err)
	}
	c.RegisterProvider(elbow, 0, compiler.ObjectsProvider, objects{2})
	prog, err := c.Compile(context.Background(), b.g, channel.Particle(), nil)
	require.NoError(t, err)
	if got, want := get(t, run(t, prog, nil), channel.ID), values.Int(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

type objects struct{ n int }

func (o objects) Count() int { return o.n }
func (o objects) Position(i int) ([3]float32, error) {
	return [3]float32{float32(i), 0, 0}, nil
}

func TestContextValue(t *testing.T) {
	b := newBuilder(t)
	v := b.create(ops.TypeContextValue)
	b.prop(v, ops.PropName, "Time")
	b.write(channel.Density, v, 0)
	env := compiler.MapContext{Values: map[string]values.T{"Time": values.Float(1.25)}}
	prog := b.mustCompile(env)
	if got, want := get(t, run(t, prog, nil), channel.Density), values.Float(1.25); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, err := b.compile(nil); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
	b.def(v, 0, values.Float(0.5))
	prog = b.mustCompile(nil)
	if got, want := get(t, run(t, prog, nil), channel.Density), values.Float(0.5); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestClonedGraphCompilesIdentically(t *testing.T) {
	b := newBuilder(t)
	loop, _ := b.loop(1, 4)
	b.write(channel.ID, loop, 0)
	p1 := b.mustCompile(nil)
	p2, err := compiler.Compile(context.Background(), b.g.Clone(), channel.Particle(), nil)
	require.NoError(t, err)
	if got, want := p2.String(), p1.String(); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestMetrics(t *testing.T) {
	client := metrics.NewMemClient()
	ctx := metrics.WithClient(context.Background(), client)
	b := newBuilder(t)
	b.write(channel.Density, b.read(channel.Density), 0)
	_, err := compiler.Compile(ctx, b.g, channel.Particle(), nil)
	require.NoError(t, err)
	b.write(channel.ID, b.read(channel.Density), 0)
	_, err = compiler.Compile(ctx, b.g, channel.Particle(), nil)
	require.Error(t, err)

	if got, want := client.Value("programs_compiled_count"), 1.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := client.Value(metrics.Key("programs_failed_count", map[string]string{"kind": "TypeMismatch"})), 1.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := client.Value("instructions_emitted_count{op=read}"), 1.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := client.Count("compile_latency_seconds"), 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestProgramString(t *testing.T) {
	b := newBuilder(t)
	loop, _ := b.loop(0, 2)
	b.write(channel.ID, loop, 0)
	s := b.mustCompile(nil).String()
	for _, want := range []string{"loop", "call", "const", "output ID"} {
		if !strings.Contains(s, want) {
			t.Errorf("program listing %q does not contain %q", s, want)
		}
	}
}
