// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package compiler

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/aws/thinkbox-magma-sub002/channel"
	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
	"github.com/grailbio/base/digest"
)

// Op is the operation performed by an instruction.
type Op int

const (
	// Const writes a constant value.
	Const Op = 1 + iota
	// Read copies a field of the element record.
	Read
	// Call applies a node's function to its operands.
	Call
	// Iterate runs a loop's condition and body repeatedly.
	Iterate

	maxOp
)

var opStrings = [maxOp]string{
	0:       "BROKEN",
	Const:   "const",
	Read:    "read",
	Call:    "call",
	Iterate: "loop",
}

func (o Op) String() string {
	return opStrings[o]
}

// An Operand is the location of an instruction input: a byte offset
// into the scratch region. Operands produced by constant instructions
// also carry the constant itself, so that the evaluator need not read
// it back from scratch.
type Operand struct {
	Type   types.T
	Kind   values.Kind
	Offset int
	Const  values.T
}

// Constant tells whether the operand holds a baked constant.
func (o Operand) Constant() bool {
	return !o.Const.IsNone()
}

func (o Operand) String() string {
	if o.Constant() {
		return fmt.Sprintf("@%d=%v", o.Offset, o.Const)
	}
	return fmt.Sprintf("@%d", o.Offset)
}

// Instr is a single program instruction. Each instruction writes a
// single value of type Type at byte offset Offset of the scratch
// region.
type Instr struct {
	Op Op
	// Node and Output identify the node output computed by the
	// instruction. Constants compiled for socket defaults are shared
	// between nodes and have Node flow.InvalidID.
	Node   flow.ID
	Output int

	Type   types.T
	Kind   values.Kind
	Offset int

	// In lists the operands of Call instructions.
	In []Operand
	// Value is the value written by Const instructions.
	Value values.T
	// Field is the record field copied by Read instructions.
	Field channel.Field
	// Fn computes the value of Call instructions.
	Fn flow.Func
	// Loop is the loop run by Iterate instructions. An Iterate
	// instruction writes the number of completed iterations.
	Loop *Loop
}

// Loop is a compiled loop. Each iteration writes the iteration index,
// runs Cond, stops if Condition is false, runs Body, and applies
// Update. Iteration stops after Max iterations.
type Loop struct {
	Max       int
	Index     int
	Init      []Move
	Cond      []Instr
	Condition Operand
	Body      []Instr
	Update    []Move
}

// A Move copies Size bytes from an operand to scratch offset To. If
// Stage is non-negative, the operand is first copied to offset Stage,
// so that all of a loop's updates read the values of the previous
// iteration.
type Move struct {
	From  Operand
	To    int
	Size  int
	Stage int
}

// Output is a program output: the value at scratch offset
// Operand.Offset is written to Field of the element record.
type Output struct {
	Node    flow.ID
	Field   channel.Field
	Operand Operand
}

// Program is a compiled expression flow. Programs are immutable and
// may be evaluated concurrently, each evaluation using its own
// scratch region.
type Program struct {
	consts  []Instr
	instrs  []Instr
	outputs []Output
	size    int
	record  int
	graph   digest.Digest
	fields  []channel.Field
}

// Instrs returns the program's top-level instructions in evaluation
// order. Constants are evaluated first.
func (p *Program) Instrs() []Instr {
	list := make([]Instr, 0, len(p.consts)+len(p.instrs))
	list = append(list, p.consts...)
	return append(list, p.instrs...)
}

// Walk calls fn for every instruction of the program, including
// instructions nested in loops, in evaluation order.
func (p *Program) Walk(fn func(depth int, in *Instr)) {
	var walk func(depth int, list []Instr)
	walk = func(depth int, list []Instr) {
		for i := range list {
			fn(depth, &list[i])
			if l := list[i].Loop; l != nil {
				walk(depth+1, l.Cond)
				walk(depth+1, l.Body)
			}
		}
	}
	walk(0, p.consts)
	walk(0, p.instrs)
}

// Count returns the number of instructions, including nested
// instructions, that perform op.
func (p *Program) Count(op Op) int {
	var n int
	p.Walk(func(_ int, in *Instr) {
		if in.Op == op {
			n++
		}
	})
	return n
}

// Len returns the total number of instructions in the program.
func (p *Program) Len() int {
	var n int
	p.Walk(func(int, *Instr) { n++ })
	return n
}

// Size returns the size in bytes of the program's scratch region.
func (p *Program) Size() int { return p.size }

// RecordSize returns the size in bytes of the element records the
// program was compiled for.
func (p *Program) RecordSize() int { return p.record }

// Outputs returns the program's outputs, in the order of the graph's
// Output nodes.
func (p *Program) Outputs() []Output {
	return append([]Output(nil), p.outputs...)
}

// Digest returns a digest of the graph and element layout the
// program was compiled from. Programs with equal digests are
// equivalent.
func (p *Program) Digest() digest.Digest {
	w := values.Digester.NewWriter()
	io.WriteString(w, p.graph.String())
	for _, f := range p.fields {
		fmt.Fprintf(w, "%s:%s:%d;", f.Name, f.Type, f.Offset)
	}
	return w.Digest()
}

func (p *Program) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "program size %d record %d\n", p.size, p.record)
	n := 0
	p.Walk(func(depth int, in *Instr) {
		fmt.Fprintf(&b, "%s%3d %s\n", strings.Repeat("  ", depth+1), n, in)
		n++
	})
	for _, o := range p.outputs {
		fmt.Fprintf(&b, "  output %s <- %v\n", o.Field, o.Operand)
	}
	return b.String()
}

func (in *Instr) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s @%d %s", in.Op, in.Offset, in.Type)
	switch in.Op {
	case Const:
		fmt.Fprintf(&b, " = %v", in.Value)
	case Read:
		fmt.Fprintf(&b, " = %s", in.Field)
	case Call:
		args := make([]string, len(in.In))
		for i, o := range in.In {
			args[i] = o.String()
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(args, ", "))
	case Iterate:
		fmt.Fprintf(&b, " max %d cond %v", in.Loop.Max, in.Loop.Condition)
	}
	if in.Node != flow.InvalidID {
		fmt.Fprintf(&b, " node %d:%d", in.Node, in.Output)
	}
	return b.String()
}
