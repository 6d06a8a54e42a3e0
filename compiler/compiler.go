// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package compiler lowers an expression flow graph into a Program: a
// flat list of instructions whose operands and results are byte
// offsets into a per-evaluation scratch region.
//
// Compilation walks the graph depth-first from its top-level Output
// nodes. Every node is compiled at most once per program, so shared
// sub-expressions are evaluated once. Unconnected sockets compile to
// constants, which are deduplicated by value across the program.
// BLOPs are flattened into their enclosing instruction list; loops
// compile their condition and body into nested lists that are run by
// a single Iterate instruction.
//
// All type checking happens here: a program that compiles
// successfully can only fail evaluation if a node function or
// collaborator fails.
package compiler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/thinkbox-magma-sub002/channel"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/log"
	"github.com/aws/thinkbox-magma-sub002/metrics"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

type providerKey struct {
	node   flow.ID
	output int
	kind   ProviderKind
}

// Compiler compiles graphs into programs. A Compiler may be used for
// any number of compilations, but not concurrently.
type Compiler struct {
	// Log, if non-nil, receives per-node compilation logs at
	// debug level.
	Log *log.Logger

	mu        sync.Mutex
	providers map[providerKey]interface{}
}

// New returns a new compiler that logs to the provided logger.
func New(log *log.Logger) *Compiler {
	return &Compiler{Log: log, providers: make(map[providerKey]interface{})}
}

// RegisterProvider registers p as the provider of the given kind
// answering for output socket (id, output). Providers registered on
// the compiler persist across compilations; nodes that supply
// providers register them on the Builder instead.
func (c *Compiler) RegisterProvider(id flow.ID, output int, kind ProviderKind, p interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.providers == nil {
		c.providers = make(map[providerKey]interface{})
	}
	c.providers[providerKey{id, output, kind}] = p
}

// Provider returns the provider registered on the compiler for
// output socket (id, output).
func (c *Compiler) Provider(id flow.ID, output int, kind ProviderKind) (interface{}, error) {
	if p, ok := c.provider(providerKey{id, output, kind}); ok {
		return p, nil
	}
	return nil, errors.E("provider", kind.String(), errors.NotExist, errors.Node(id), errors.Output(output))
}

func (c *Compiler) provider(key providerKey) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.providers[key]
	return p, ok
}

// Compile compiles graph g for elements with the given layout. The
// context env, which may be nil, supplies ambient values. Metrics are
// emitted to the client carried by ctx, if any.
func Compile(ctx context.Context, g *flow.Graph, layout channel.Layout, env Context) (*Program, error) {
	return New(nil).Compile(ctx, g, layout, env)
}

// Compile compiles graph g for elements with the given layout. The
// graph must not be modified during compilation.
func (c *Compiler) Compile(ctx context.Context, g *flow.Graph, layout channel.Layout, env Context) (prog *Program, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			metrics.GetProgramsFailedCountCounter(ctx, errors.Recover(err).Kind.Name()).Inc()
			c.Log.Debugf("compile failed: %v", err)
			return
		}
		metrics.GetProgramsCompiledCountCounter(ctx).Inc()
		metrics.ObserveSince(metrics.GetCompileLatencySecondsHistogram(ctx), start)
	}()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if env == nil {
		env = MapContext{}
	}
	b := &Builder{
		c:         c,
		g:         g,
		layout:    layout,
		env:       env,
		prog:      &Program{record: layout.Size(), fields: layout.Fields(), graph: g.Digest()},
		memo:      make(map[flow.ID][]Operand),
		consts:    make(map[constKey]Operand),
		bound:     make(map[flow.ID]func(int) (Operand, error)),
		active:    make(map[flow.ID]bool),
		providers: make(map[providerKey]interface{}),
		emitted:   make(map[Op]int),
	}
	b.out = &b.prog.instrs
	for _, id := range g.Outputs() {
		if err := b.output(id); err != nil {
			return nil, err
		}
	}
	for op, n := range b.emitted {
		metrics.GetInstructionsEmittedCountCounter(ctx, op.String()).Add(float64(n))
	}
	c.Log.Debugf("compiled program %s: %d instructions, %d outputs, %d bytes of scratch",
		b.prog.graph.Short(), b.prog.Len(), len(b.prog.outputs), b.prog.size)
	return b.prog, nil
}

// Builder holds the state of a single compilation. It is passed to
// extensions, which use it to compile their inputs and emit
// instructions.
type Builder struct {
	c      *Compiler
	g      *flow.Graph
	layout channel.Layout
	env    Context
	prog   *Program
	// out is the instruction list currently being emitted to.
	out *[]Instr

	memo   map[flow.ID][]Operand
	consts map[constKey]Operand
	// bound maps container input placeholders to the operands they
	// forward.
	bound     map[flow.ID]func(int) (Operand, error)
	active    map[flow.ID]bool
	providers map[providerKey]interface{}
	emitted   map[Op]int
}

// Context returns the compilation's ambient context.
func (b *Builder) Context() Context { return b.env }

// Layout returns the element layout the program is compiled for.
func (b *Builder) Layout() channel.Layout { return b.layout }

// Log returns the compiler's logger.
func (b *Builder) Log() *log.Logger { return b.c.Log }

func (b *Builder) alloc(t types.T) int {
	off := b.prog.size
	b.prog.size += (t.Size() + types.ElemSize - 1) &^ (types.ElemSize - 1)
	return off
}

func (b *Builder) emit(in Instr) {
	*b.out = append(*b.out, in)
	b.emitted[in.Op]++
}

func (b *Builder) output(id flow.ID) error {
	n, ok := b.g.Node(id)
	if !ok {
		return errors.Internal(int(id), "output node disappeared")
	}
	src := n.Input(0)
	switch {
	case !n.Enabled():
		b.c.Log.Debugf("skipping disabled output %v", n)
		return nil
	case !src.Connected():
		b.c.Log.Debugf("skipping unconnected output %v", n)
		return nil
	}
	name := n.StringProperty(flow.PropChannelName)
	f, ok := b.layout.Field(name)
	if !ok {
		return errors.E("compile", flow.TypeOutput, errors.NotExist, errors.Node(id), errors.Property(flow.PropChannelName),
			errors.Errorf("no channel named %q", name))
	}
	op, err := b.visit(src)
	if err != nil {
		return err
	}
	if want := channelType(n); want.Valid() && !want.Equal(op.Type) {
		return errors.E("compile", flow.TypeOutput, errors.TypeMismatch, errors.Node(id), errors.Input(0),
			errors.Expected(want), errors.Found(op.Type))
	}
	if !f.Type.Equal(op.Type) {
		return errors.E("compile", flow.TypeOutput, errors.TypeMismatch, errors.Node(id), errors.Input(0),
			errors.Expected(f.Type), errors.Found(op.Type))
	}
	b.prog.outputs = append(b.prog.outputs, Output{Node: id, Field: f, Operand: op})
	return nil
}

func channelType(n *flow.Node) types.T {
	v, _ := n.Property(flow.PropChannelType)
	t, _ := v.(types.T)
	return t
}

// visit returns the operand holding the value of output socket src.
func (b *Builder) visit(src flow.Socket) (Operand, error) {
	if bind, ok := b.bound[src.Node]; ok {
		return bind(src.Output)
	}
	ops, err := b.compile(src.Node)
	if err != nil {
		return Operand{}, err
	}
	if src.Output < 0 || src.Output >= len(ops) {
		return Operand{}, errors.Internal(int(src.Node), fmt.Sprintf("output %d out of range", src.Output))
	}
	return ops[src.Output], nil
}

// compile compiles node id, if it has not been compiled already, and
// returns the operands holding its outputs.
func (b *Builder) compile(id flow.ID) ([]Operand, error) {
	if ops, ok := b.memo[id]; ok {
		return ops, nil
	}
	n, ok := b.g.Node(id)
	if !ok {
		return nil, errors.Internal(int(id), "socket refers to a missing node")
	}
	if b.active[id] {
		return nil, errors.Internal(int(id), "cycle through node")
	}
	b.active[id] = true
	defer delete(b.active, id)

	var (
		ops []Operand
		err error
	)
	if !n.Enabled() {
		ops, err = b.passThrough(n)
	} else {
		switch name := n.Type().Name; name {
		case flow.TypeBLOP:
			ops, err = b.blop(n)
		case flow.TypeLoop:
			ops, err = b.loop(n)
		case flow.TypeInputChannel:
			ops, err = b.read(n)
		case flow.TypeBLOPSocket, flow.TypeLoopInput, flow.TypeBLOPOutput, flow.TypeLoopOutput, flow.TypeOutput:
			return nil, errors.Internal(int(id), "placeholder "+name+" referenced outside of its container")
		default:
			if ext, ok := lookupExtension(name); ok {
				ops, err = ext.Compile(b, n)
			} else if len(n.Type().Overloads) > 0 {
				ops, err = b.operator(n)
			} else {
				err = errors.E("compile", name, errors.NotSupported, errors.Node(id),
					errors.New("no compiler for node type"))
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if len(ops) != n.NumOutputs() {
		return nil, errors.Internal(int(id), fmt.Sprintf("compiled %d outputs, node has %d", len(ops), n.NumOutputs()))
	}
	b.memo[id] = ops
	b.c.Log.Debugf("compiled %v: %v", n, ops)
	return ops, nil
}

// Input compiles input socket i of node n: the operand holding the
// connected output, or a constant holding the socket's default.
// Input fails if the socket is unconnected and has no default, or if
// the socket does not accept the type of its value.
func (b *Builder) Input(n *flow.Node, i int) (Operand, error) {
	var (
		op  Operand
		err error
	)
	if src := n.Input(i); src.Connected() {
		if op, err = b.visit(src); err != nil {
			return Operand{}, err
		}
	} else if def := n.Default(i); !def.IsNone() {
		if op, err = b.Constant(def); err != nil {
			return Operand{}, errors.E("compile", errors.Node(n.ID()), errors.Input(i), err)
		}
	} else {
		return Operand{}, errors.E("compile", n.Type().Name, errors.Unconnected, errors.Node(n.ID()), errors.Input(i))
	}
	if desc, ok := n.InputDesc(i); ok && len(desc.Accepts) > 0 && !accepts(desc.Accepts, op.Type) {
		return Operand{}, errors.E("compile", n.Type().Name, errors.TypeMismatch, errors.Node(n.ID()), errors.Input(i),
			errors.Expected(flow.TypeList(desc.Accepts)), errors.Found(op.Type))
	}
	return op, nil
}

func accepts(list []types.T, t types.T) bool {
	for _, u := range list {
		if u.Equal(t) {
			return true
		}
	}
	return false
}

// Inputs compiles all of node n's input sockets.
func (b *Builder) Inputs(n *flow.Node) ([]Operand, error) {
	in := make([]Operand, n.NumInputs())
	for i := range in {
		var err error
		if in[i], err = b.Input(n, i); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// constKey identifies a constant by its kind and its encoding, so that
// -0 and +0 are distinct constants and NaNs with equal bits are shared.
type constKey struct {
	kind values.Kind
	bits [16]byte
}

func keyOf(v values.T) constKey {
	k := constKey{kind: v.Kind()}
	values.Put(v, k.bits[:])
	return k
}

// Constant returns an operand holding constant v. Constants are
// deduplicated: every request for a value with the same encoding
// returns the same operand.
func (b *Builder) Constant(v values.T) (Operand, error) {
	key := keyOf(v)
	if op, ok := b.consts[key]; ok {
		return op, nil
	}
	t, ok := v.Type()
	if !ok {
		return Operand{}, errors.E("constant", errors.Invalid, errors.New("none is not a value"))
	}
	op := Operand{Type: t, Kind: v.Kind(), Offset: b.alloc(t), Const: v}
	b.prog.consts = append(b.prog.consts, Instr{
		Op:     Const,
		Node:   flow.InvalidID,
		Type:   t,
		Kind:   op.Kind,
		Offset: op.Offset,
		Value:  v,
	})
	b.emitted[Const]++
	b.consts[key] = op
	return op, nil
}

// Call emits an instruction that computes output socket output of
// node n by applying fn to the operands in. The result has type t.
func (b *Builder) Call(n *flow.Node, output int, t types.T, fn flow.Func, in ...Operand) (Operand, error) {
	kind := values.KindOf(t)
	if kind == values.NoneKind {
		return Operand{}, errors.E("compile", n.Type().Name, errors.NotSupported, errors.Node(n.ID()), errors.Output(output),
			errors.Errorf("type %s has no runtime representation", t))
	}
	op := Operand{Type: t, Kind: kind, Offset: b.alloc(t)}
	b.emit(Instr{
		Op:     Call,
		Node:   n.ID(),
		Output: output,
		Type:   t,
		Kind:   kind,
		Offset: op.Offset,
		In:     in,
		Fn:     fn,
	})
	return op, nil
}

type signature []types.T

func (s signature) String() string {
	names := make([]string, len(s))
	for i, t := range s {
		names[i] = t.String()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

type overloads []flow.Overload

func (o overloads) String() string {
	sigs := make([]string, len(o))
	for i := range o {
		sigs[i] = signature(o[i].In).String()
	}
	return strings.Join(sigs, "|")
}

// operator compiles a node through the first of its type's overloads
// that accepts the types of its inputs.
func (b *Builder) operator(n *flow.Node) ([]Operand, error) {
	in, err := b.Inputs(n)
	if err != nil {
		return nil, err
	}
	sig := make(signature, len(in))
	for i := range in {
		sig[i] = in[i].Type
	}
	o, ok := n.Type().Overload(sig)
	if !ok {
		return nil, errors.E("compile", n.Type().Name, errors.TypeMismatch, errors.Node(n.ID()),
			errors.Expected(overloads(n.Type().Overloads)), errors.Found(sig))
	}
	ops := make([]Operand, len(o.Out))
	for k := range o.Out {
		if ops[k], err = b.Call(n, k, o.Out[k], o.Fn[k], in...); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// passThrough compiles a disabled node. A disabled node must have
// exactly one output and at least one input; its output is its first
// input, which must match the output's declared type, if any.
func (b *Builder) passThrough(n *flow.Node) ([]Operand, error) {
	if n.NumInputs() < 1 || n.NumOutputs() != 1 {
		return nil, errors.E("compile", n.Type().Name, errors.Invalid, errors.Node(n.ID()),
			errors.New("only nodes with one output and at least one input can be disabled"))
	}
	op, err := b.Input(n, 0)
	if err != nil {
		return nil, err
	}
	if desc, ok := n.OutputDesc(0); ok && desc.Type.Valid() && !desc.Type.Equal(op.Type) {
		return nil, errors.E("compile", n.Type().Name, errors.TypeMismatch, errors.Node(n.ID()), errors.Output(0),
			errors.Expected(desc.Type), errors.Found(op.Type), errors.New("disabled node passes through its first input"))
	}
	return []Operand{op}, nil
}

func (b *Builder) read(n *flow.Node) ([]Operand, error) {
	name := n.StringProperty(flow.PropChannelName)
	f, ok := b.layout.Field(name)
	if !ok {
		return nil, errors.E("compile", n.Type().Name, errors.NotExist, errors.Node(n.ID()), errors.Property(flow.PropChannelName),
			errors.Errorf("no channel named %q", name))
	}
	if want := channelType(n); want.Valid() && !want.Equal(f.Type) {
		return nil, errors.E("compile", n.Type().Name, errors.TypeMismatch, errors.Node(n.ID()), errors.Output(0),
			errors.Expected(want), errors.Found(f.Type))
	}
	kind := values.KindOf(f.Type)
	if kind == values.NoneKind {
		return nil, errors.E("compile", n.Type().Name, errors.NotSupported, errors.Node(n.ID()),
			errors.Errorf("channel %s has unsupported type %s", name, f.Type))
	}
	op := Operand{Type: f.Type, Kind: kind, Offset: b.alloc(f.Type)}
	b.emit(Instr{Op: Read, Node: n.ID(), Type: f.Type, Kind: kind, Offset: op.Offset, Field: f})
	return []Operand{op}, nil
}

// placeholders returns a container's output placeholder, checking
// that both placeholders exist.
func (b *Builder) placeholders(n *flow.Node) (*flow.Node, error) {
	if src, ok := b.g.Node(n.Source()); !ok || src.Parent() != n.ID() {
		return nil, errors.Internal(int(n.ID()), "container has no input placeholder")
	}
	sink, ok := b.g.Node(n.Sink())
	if !ok || sink.Parent() != n.ID() {
		return nil, errors.Internal(int(n.ID()), "container has no output placeholder")
	}
	return sink, nil
}

// bind binds a container's input placeholder output k to the
// container's input socket k, compiled lazily into list.
func (b *Builder) bind(n *flow.Node, list *[]Instr, socket func(k int) int) func(int) (Operand, error) {
	cache := make(map[int]Operand)
	return func(k int) (Operand, error) {
		if op, ok := cache[k]; ok {
			return op, nil
		}
		i := socket(k)
		if i < 0 || i >= n.NumInputs() {
			return Operand{}, errors.Internal(int(n.Source()), fmt.Sprintf("placeholder output %d out of range", k))
		}
		saved := b.out
		b.out = list
		op, err := b.Input(n, i)
		b.out = saved
		if err != nil {
			return Operand{}, err
		}
		cache[k] = op
		return op, nil
	}
}

// sinkInput compiles input i of container n's output placeholder.
// Unconnected placeholder sockets are reported against the
// container's output.
func (b *Builder) sinkInput(n, sink *flow.Node, i, output int) (Operand, error) {
	op, err := b.Input(sink, i)
	if err == nil {
		return op, nil
	}
	if e := errors.Recover(err); e.Kind == errors.Unconnected && e.Node == int(sink.ID()) {
		if output < 0 {
			return Operand{}, errors.E("compile", n.Type().Name, errors.Unconnected, errors.Node(n.ID()),
				errors.New("loop condition is unconnected"))
		}
		return Operand{}, errors.E("compile", n.Type().Name, errors.Unconnected, errors.Node(n.ID()), errors.Output(output))
	}
	return Operand{}, err
}

func (b *Builder) blop(n *flow.Node) ([]Operand, error) {
	sink, err := b.placeholders(n)
	if err != nil {
		return nil, err
	}
	b.bound[n.Source()] = b.bind(n, b.out, func(k int) int { return k })
	ops := make([]Operand, n.NumOutputs())
	for k := range ops {
		if ops[k], err = b.sinkInput(n, sink, k, k); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func (b *Builder) loop(n *flow.Node) (ops []Operand, err error) {
	sink, err := b.placeholders(n)
	if err != nil {
		return nil, err
	}
	mask := n.OutputMask()
	if len(mask) != n.NumOutputs() || sink.NumInputs() != 1+len(mask) {
		return nil, errors.Internal(int(n.ID()), "loop sockets do not match its output mask")
	}
	parent := b.out
	defer func() { b.out = parent }()

	l := &Loop{Max: n.IntProperty(flow.PropMaxIterations)}
	carried := make([]Operand, len(mask))
	slots := make(map[int]bool)
	// first maps an input to the first carried variable it
	// initializes.
	first := make(map[int]int)
	for k, j := range mask {
		if j < 0 || j >= n.NumInputs() {
			return nil, errors.Internal(int(n.ID()), fmt.Sprintf("output mask entry %d out of range", j))
		}
		init, err := b.Input(n, j)
		if err != nil {
			return nil, err
		}
		carried[k] = Operand{Type: init.Type, Kind: init.Kind, Offset: b.alloc(init.Type)}
		slots[carried[k].Offset] = true
		l.Init = append(l.Init, Move{From: init, To: carried[k].Offset, Size: init.Type.Size(), Stage: -1})
		if _, ok := first[j]; !ok {
			first[j] = k
		}
	}
	l.Index = b.alloc(types.Int)
	index := Operand{Type: types.Int, Kind: values.IntKind, Offset: l.Index}
	invariant := b.bind(n, parent, func(o int) int { return o - 1 })
	b.bound[n.Source()] = func(o int) (Operand, error) {
		if o == 0 {
			return index, nil
		}
		if k, ok := first[o-1]; ok {
			return carried[k], nil
		}
		return invariant(o)
	}

	b.out = &l.Cond
	if l.Condition, err = b.sinkInput(n, sink, 0, -1); err != nil {
		return nil, err
	}
	if !l.Condition.Type.Equal(types.Bool) {
		return nil, errors.E("compile", n.Type().Name, errors.TypeMismatch, errors.Node(n.ID()),
			errors.Expected(types.Bool), errors.Found(l.Condition.Type), errors.New("loop condition"))
	}
	b.out = &l.Body
	for k := range carried {
		i := 1 + k
		if !sink.Input(i).Connected() && sink.Default(i).IsNone() {
			// Unconnected updates leave the variable unchanged.
			continue
		}
		up, err := b.sinkInput(n, sink, i, k)
		if err != nil {
			return nil, err
		}
		if !up.Type.Equal(carried[k].Type) {
			return nil, errors.E("compile", n.Type().Name, errors.TypeMismatch, errors.Node(n.ID()), errors.Output(k),
				errors.Expected(carried[k].Type), errors.Found(up.Type))
		}
		mv := Move{From: up, To: carried[k].Offset, Size: up.Type.Size(), Stage: -1}
		if slots[up.Offset] && !up.Constant() {
			mv.Stage = b.alloc(up.Type)
		}
		l.Update = append(l.Update, mv)
	}
	b.out = parent
	b.emit(Instr{
		Op:     Iterate,
		Node:   n.ID(),
		Output: -1,
		Type:   types.Int,
		Kind:   values.IntKind,
		Offset: l.Index,
		Loop:   l,
	})
	return carried, nil
}

// RegisterProvider registers p as the provider of the given kind
// answering for output socket (id, output) for the remainder of the
// compilation.
func (b *Builder) RegisterProvider(id flow.ID, output int, kind ProviderKind, p interface{}) {
	b.providers[providerKey{id, output, kind}] = p
}

// Provider resolves the provider of the given kind that answers for
// output socket src. BLOP boundaries are followed to the socket that
// feeds them. Nodes are compiled as needed so that providers have a
// chance to register themselves.
func (b *Builder) Provider(src flow.Socket, kind ProviderKind) (interface{}, error) {
	orig := src
	for src.Connected() {
		key := providerKey{src.Node, src.Output, kind}
		if p, ok := b.providers[key]; ok {
			return p, nil
		}
		if p, ok := b.c.provider(key); ok {
			return p, nil
		}
		n, ok := b.g.Node(src.Node)
		if !ok {
			break
		}
		switch n.Type().Name {
		case flow.TypeBLOPSocket:
			c, ok := b.g.Node(n.Parent())
			if !ok {
				return nil, errors.Internal(int(n.ID()), "placeholder has no container")
			}
			src = c.Input(src.Output)
			continue
		case flow.TypeLoopInput:
		default:
			if _, err := b.compile(src.Node); err != nil {
				return nil, err
			}
			if p, ok := b.providers[key]; ok {
				return p, nil
			}
			if n.Type().Name == flow.TypeBLOP {
				sink, ok := b.g.Node(n.Sink())
				if !ok {
					return nil, errors.Internal(int(n.ID()), "container has no output placeholder")
				}
				src = sink.Input(src.Output)
				continue
			}
		}
		break
	}
	return nil, errors.E("provider", kind.String(), errors.NotExist, errors.Node(orig.Node), errors.Output(orig.Output))
}
