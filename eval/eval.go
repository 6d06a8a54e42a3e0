// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package eval implements the interpreter for compiled expression
// flows. An Evaluator runs a Program against one element record at a
// time, using a scratch region that it reuses across elements.
// Evaluators are not safe for concurrent use; Each runs a program
// over many elements in parallel, one Evaluator per worker.
package eval

import (
	"fmt"

	"github.com/aws/thinkbox-magma-sub002/compiler"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// Evaluator evaluates a program.
type Evaluator struct {
	prog    *compiler.Program
	instrs  []compiler.Instr
	outputs []compiler.Output
	scratch []byte
	args    []values.T
	trace   *Trace
	// iter is the iteration of the innermost loop being run, or -1.
	iter int
}

// New returns a new evaluator for the provided program.
func New(prog *compiler.Program) *Evaluator {
	return &Evaluator{
		prog:    prog,
		instrs:  prog.Instrs(),
		outputs: prog.Outputs(),
		scratch: make([]byte, prog.Size()),
		iter:    -1,
	}
}

// Program returns the evaluator's program.
func (e *Evaluator) Program() *compiler.Program { return e.prog }

// Eval evaluates the program for the element stored in rec, writing
// the program's outputs into rec.
func (e *Evaluator) Eval(rec []byte) error {
	e.trace = nil
	return e.eval(rec)
}

// EvalDebug evaluates the program like Eval, and also appends the
// value computed by every instruction to tr, including the values
// computed in every loop iteration.
func (e *Evaluator) EvalDebug(rec []byte, tr *Trace) error {
	e.trace = tr
	defer func() { e.trace = nil }()
	return e.eval(rec)
}

func (e *Evaluator) eval(rec []byte) error {
	if len(rec) < e.prog.RecordSize() {
		return errors.E("eval", errors.Invalid,
			errors.Errorf("record of %d bytes is shorter than the layout's %d bytes", len(rec), e.prog.RecordSize()))
	}
	e.iter = -1
	if err := e.run(e.instrs, rec); err != nil {
		return err
	}
	for _, o := range e.outputs {
		n := o.Field.Type.Size()
		copy(rec[o.Field.Offset:o.Field.Offset+n], e.scratch[o.Operand.Offset:o.Operand.Offset+n])
	}
	return nil
}

func (e *Evaluator) value(op compiler.Operand) values.T {
	if op.Constant() {
		return op.Const
	}
	return values.Get(op.Kind, e.scratch[op.Offset:])
}

func (e *Evaluator) record(in *compiler.Instr, v values.T) {
	if e.trace == nil || in.Node == flow.InvalidID {
		return
	}
	e.trace.Entries = append(e.trace.Entries, Entry{Node: in.Node, Output: in.Output, Iteration: e.iter, Value: v})
}

func (e *Evaluator) run(list []compiler.Instr, rec []byte) error {
	for i := range list {
		in := &list[i]
		switch in.Op {
		case compiler.Const:
			values.Put(in.Value, e.scratch[in.Offset:])
			e.record(in, in.Value)
		case compiler.Read:
			n := in.Field.Type.Size()
			copy(e.scratch[in.Offset:in.Offset+n], rec[in.Field.Offset:in.Field.Offset+n])
			if e.trace != nil {
				e.record(in, values.Get(in.Kind, e.scratch[in.Offset:]))
			}
		case compiler.Call:
			args := e.args[:0]
			for _, op := range in.In {
				args = append(args, e.value(op))
			}
			e.args = args
			v := in.Fn(args)
			if v.Kind() != in.Kind {
				return errors.E("eval", errors.Invalid, errors.Node(int(in.Node)), errors.Output(in.Output),
					errors.Errorf("node function returned %v, expected a %s", v, in.Type))
			}
			values.Put(v, e.scratch[in.Offset:])
			e.record(in, v)
		case compiler.Iterate:
			if err := e.loop(in, rec); err != nil {
				return err
			}
		default:
			return errors.Internal(int(in.Node), fmt.Sprintf("bad instruction %v", in.Op))
		}
	}
	return nil
}

func (e *Evaluator) move(from compiler.Operand, to, size int) {
	if from.Constant() {
		values.Put(from.Const, e.scratch[to:])
		return
	}
	copy(e.scratch[to:to+size], e.scratch[from.Offset:from.Offset+size])
}

func (e *Evaluator) loop(in *compiler.Instr, rec []byte) error {
	l := in.Loop
	for _, mv := range l.Init {
		e.move(mv.From, mv.To, mv.Size)
	}
	outer := e.iter
	defer func() { e.iter = outer }()
	var n int
	for ; n < l.Max; n++ {
		e.iter = n
		values.Put(values.Int(int32(n)), e.scratch[l.Index:])
		if err := e.run(l.Cond, rec); err != nil {
			return err
		}
		if !e.value(l.Condition).Bool() {
			break
		}
		if err := e.run(l.Body, rec); err != nil {
			return err
		}
		for _, mv := range l.Update {
			if mv.Stage >= 0 {
				e.move(mv.From, mv.Stage, mv.Size)
			}
		}
		for _, mv := range l.Update {
			if mv.Stage >= 0 {
				copy(e.scratch[mv.To:mv.To+mv.Size], e.scratch[mv.Stage:mv.Stage+mv.Size])
			} else {
				e.move(mv.From, mv.To, mv.Size)
			}
		}
	}
	e.iter = outer
	v := values.Int(int32(n))
	values.Put(v, e.scratch[l.Index:])
	e.record(in, v)
	return nil
}
