// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package flow

import (
	"github.com/aws/thinkbox-magma-sub002/errors"
)

// containerNode resolves id (which may be Current) to a container
// node.
func (g *Graph) containerNode(op string, id ID) (*Node, error) {
	c, err := g.container(id)
	if err != nil {
		return nil, err
	}
	if c == TopLevel {
		return nil, errors.E(op, errors.Invalid, errors.New("the top level has no sockets"))
	}
	return g.nodes[c], nil
}

// rewire remaps every socket in container parent that refers to an
// output of node id. Sockets for which remap reports false become
// unconnected.
func (g *Graph) rewire(parent, id ID, remap func(output int) (int, bool)) {
	fix := func(n *Node) {
		for i := range n.inputs {
			src := n.inputs[i].src
			if src.Node != id {
				continue
			}
			if o, ok := remap(src.Output); ok {
				n.inputs[i].src.Output = o
			} else {
				n.inputs[i].src = Unconnected
			}
		}
	}
	for _, m := range *g.members(parent) {
		fix(g.nodes[m])
	}
	if parent != TopLevel {
		fix(g.nodes[g.nodes[parent].sink])
	}
}

func below(n int) func(int) (int, bool) {
	return func(o int) (int, bool) { return o, o < n }
}

// SetNumInputs sets the number of inputs of container id (which may
// be Current). For BLOPs, this is the total number of inputs. For
// loops, this is the number of invariant inputs; the inputs that
// initialize carried variables follow them. Sockets that referred to
// removed inputs become unconnected.
func (g *Graph) SetNumInputs(id ID, count int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.containerNode("setnuminputs", id)
	if err != nil {
		return err
	}
	if count < 0 {
		count = 0
	}
	switch n.typ.Name {
	case TypeBLOP:
		n.inputs = resize(n.inputs, count)
		g.layout(n)
		g.rewire(n.id, n.source, below(count))
	case TypeLoop:
		old, delta := n.invariants, count-n.invariants
		inputs := resize(n.inputs[:old:old], count)
		n.inputs = append(inputs, n.inputs[old:]...)
		n.invariants = count
		mask := n.OutputMask()
		for k, idx := range mask {
			switch {
			case idx >= old:
				mask[k] = idx + delta
			case idx >= count:
				mask[k] = count + k
			}
		}
		g.layout(n)
		// Loop input placeholder output 0 is the iteration index.
		g.rewire(n.id, n.source, func(o int) (int, bool) {
			switch j := o - 1; {
			case o == 0:
				return 0, true
			case j < old:
				return o, j < count
			default:
				return o + delta, true
			}
		})
	default:
		return errors.E("setnuminputs", n.typ.Name, errors.NotSupported, errors.Node(n.id))
	}
	return nil
}

// SetNumOutputs sets the number of outputs of container id (which
// may be Current). For loops, this is the number of carried
// variables. Sockets that referred to removed outputs become
// unconnected.
func (g *Graph) SetNumOutputs(id ID, count int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.containerNode("setnumoutputs", id)
	if err != nil {
		return err
	}
	if count < 0 {
		count = 0
	}
	switch n.typ.Name {
	case TypeBLOP:
		n.outputs = count
		g.layout(n)
	case TypeLoop:
		n.inputs = resize(n.inputs, n.invariants+count)
		mask := n.OutputMask()
		next := make([]int, count)
		for k := range next {
			if k < len(mask) && mask[k] < len(n.inputs) {
				next[k] = mask[k]
			} else {
				next[k] = n.invariants + k
			}
		}
		n.props[PropOutputMask] = next
		n.outputs = count
		g.layout(n)
		g.rewire(n.id, n.source, below(1+len(n.inputs)))
	default:
		return errors.E("setnumoutputs", n.typ.Name, errors.NotSupported, errors.Node(n.id))
	}
	g.rewire(n.parent, n.id, below(count))
	return nil
}

// Explode replaces BLOP id with its member nodes, which are moved
// into the BLOP's container. Sockets that referred to the BLOP's
// outputs are rewired to the sources of the corresponding output
// placeholder sockets, and member sockets that referred to the input
// placeholder are rewired to the sources of the BLOP's inputs.
// Explode returns the IDs of the moved nodes.
func (g *Graph) Explode(id ID) ([]ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.lookup("explode", id)
	if err != nil {
		return nil, err
	}
	if b.typ.Name != TypeBLOP {
		return nil, errors.E("explode", b.typ.Name, errors.NotSupported, errors.Node(id), errors.New("only BLOPs can be exploded"))
	}
	if g.open(id) {
		return nil, errors.E("explode", errors.Invalid, errors.Node(id), errors.New("container is open for editing"))
	}
	sink := g.nodes[b.sink]
	// resolve follows an input placeholder output to the BLOP's
	// input socket.
	resolve := func(in input) input {
		if in.src.Node != b.source {
			return in
		}
		if o := in.src.Output; o >= 0 && o < len(b.inputs) {
			return b.inputs[o]
		}
		return input{src: Unconnected}
	}
	assign := func(n *Node, i int, in input) {
		n.inputs[i].src = in.src
		if !in.src.Connected() && !in.def.IsNone() && !n.inputs[i].noDefault {
			n.inputs[i].def = in.def
		}
	}
	level := append([]ID(nil), *g.members(b.parent)...)
	if b.parent != TopLevel {
		level = append(level, g.nodes[b.parent].sink)
	}
	for _, nid := range level {
		n := g.nodes[nid]
		for i := range n.inputs {
			src := n.inputs[i].src
			if src.Node != id {
				continue
			}
			in := input{src: Unconnected}
			if src.Output >= 0 && src.Output < len(sink.inputs) {
				in = resolve(sink.inputs[src.Output])
			}
			assign(n, i, in)
		}
	}
	moved := b.members
	for _, mid := range moved {
		m := g.nodes[mid]
		for i := range m.inputs {
			if m.inputs[i].src.Node == b.source {
				assign(m, i, resolve(m.inputs[i]))
			}
		}
		m.parent = b.parent
		list := g.members(b.parent)
		*list = append(*list, mid)
	}
	b.members = nil
	g.remove(b)
	g.prune()
	return moved, nil
}

// Group creates a new BLOP in the current container and moves the
// given nodes, which must be members of the current container, into
// it. Every connection that crosses the new container's boundary is
// rewired through a new (or shared) input or output socket of the
// BLOP. Group fails, leaving the graph unchanged, if any node may not
// be moved or if grouping would introduce a cycle.
func (g *Graph) Group(ids []ID) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(ids) == 0 {
		return InvalidID, errors.E("group", errors.Invalid, errors.New("no nodes to group"))
	}
	cur := g.current()
	set := make(map[ID]bool)
	for _, id := range ids {
		n, err := g.lookup("group", id)
		if err != nil {
			return InvalidID, err
		}
		switch {
		case n.typ.Hidden, n.typ.TopLevel:
			return InvalidID, errors.E("group", n.typ.Name, errors.Invalid, errors.Node(id), errors.New("node cannot be grouped"))
		case n.parent != cur:
			return InvalidID, errors.E("group", errors.Invalid, errors.Node(id), errors.New("node is not in the current container"))
		}
		set[id] = true
	}
	saved := g.save()
	b := g.newNode(mustType(TypeBLOP), InvalidID, cur, true)
	b.source = g.newNode(mustType(TypeBLOPSocket), InvalidID, b.id, false).id
	b.sink = g.newNode(mustType(TypeBLOPOutput), InvalidID, b.id, false).id
	b.outputs = 1
	g.layout(b)
	sink := g.nodes[b.sink]

	level := append([]ID(nil), *g.members(cur)...)
	if cur != TopLevel {
		level = append(level, g.nodes[cur].sink)
	}
	for _, nid := range level {
		if nid == b.id {
			continue
		}
		n := g.nodes[nid]
		if set[nid] {
			for i, in := range n.inputs {
				if !in.src.Connected() || set[in.src.Node] {
					continue
				}
				k := -1
				for j := range b.inputs {
					if b.inputs[j].src == in.src {
						k = j
						break
					}
				}
				if k < 0 {
					k = len(b.inputs)
					b.inputs = append(b.inputs, input{src: in.src})
					g.layout(b)
				}
				n.inputs[i].src = Socket{Node: b.source, Output: k}
			}
			continue
		}
		for i, in := range n.inputs {
			if !in.src.Connected() || !set[in.src.Node] {
				continue
			}
			k := -1
			for j := range sink.inputs {
				if !sink.inputs[j].src.Connected() {
					sink.inputs[j].src = in.src
					k = j
					break
				} else if sink.inputs[j].src == in.src {
					k = j
					break
				}
			}
			if k < 0 {
				k = b.outputs
				b.outputs++
				g.layout(b)
				sink.inputs[k].src = in.src
			}
			n.inputs[i].src = Socket{Node: b.id, Output: k}
		}
	}
	// Move the grouped nodes, preserving their relative order.
	var kept []ID
	for _, id := range *g.members(cur) {
		if set[id] {
			g.nodes[id].parent = b.id
			b.members = append(b.members, id)
		} else {
			kept = append(kept, id)
		}
	}
	*g.members(cur) = kept
	for _, in := range b.inputs {
		if g.upstream(in.src.Node, b.id) {
			g.restore(saved)
			return InvalidID, errors.E("group", errors.Cycle, errors.Node(in.src.Node))
		}
	}
	return b.id, nil
}
