// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package flow

import "github.com/aws/thinkbox-magma-sub002/errors"

// copy returns a deep copy of node n.
func (n *Node) copy() *Node {
	c := *n
	c.props = make(map[string]interface{}, len(n.props))
	for k, v := range n.props {
		c.props[k] = copyProp(v)
	}
	c.inputs = append([]input(nil), n.inputs...)
	c.members = append([]ID(nil), n.members...)
	return &c
}

// state is a snapshot of a graph's mutable state.
type state struct {
	nodes map[ID]*Node
	top   []ID
	stack []ID
	next  ID
}

func (g *Graph) save() state {
	s := state{
		nodes: make(map[ID]*Node, len(g.nodes)),
		top:   append([]ID(nil), g.top...),
		stack: append([]ID(nil), g.stack...),
		next:  g.next,
	}
	for id, n := range g.nodes {
		s.nodes[id] = n.copy()
	}
	return s
}

func (g *Graph) restore(s state) {
	g.nodes, g.top, g.stack, g.next = s.nodes, s.top, s.stack, s.next
}

// Clone returns a deep copy of the graph. Node IDs and the editing
// stack are preserved.
func (g *Graph) Clone() *Graph {
	g.mu.Lock()
	s := g.save()
	g.mu.Unlock()
	c := new(Graph)
	c.restore(s)
	return c
}

// CloneNode copies node id, and, for containers, everything it
// contains, into the current container. Every copied node receives a
// fresh ID, which is passed to collect (if non-nil); connections
// between copied nodes are remapped to the copies. The copy's own
// input sockets keep their sources when it is created in the same
// container as the original and are disconnected otherwise.
// CloneNode returns the ID of the copy of node id.
func (g *Graph) CloneNode(id ID, collect func(ID)) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	orig, err := g.lookup("clone", id)
	if err != nil {
		return InvalidID, err
	}
	cur := g.current()
	switch {
	case orig.typ.Hidden:
		return InvalidID, errors.E("clone", errors.Invalid, errors.Node(id), errors.New("placeholders cannot be cloned"))
	case orig.typ.TopLevel && cur != TopLevel:
		return InvalidID, errors.E("clone", orig.typ.Name, errors.Invalid, errors.Node(id),
			errors.New("node type may not be created inside a container"))
	}
	for _, c := range g.stack {
		if c == id {
			return InvalidID, errors.E("clone", errors.Invalid, errors.Node(id), errors.New("container is open for editing"))
		}
	}
	remap := make(map[ID]ID)
	var copies []*Node
	var clone func(n *Node, parent ID, member bool) *Node
	clone = func(n *Node, parent ID, member bool) *Node {
		c := n.copy()
		c.id = g.allocate(InvalidID)
		c.parent = parent
		g.nodes[c.id] = c
		if member {
			list := g.members(parent)
			*list = append(*list, c.id)
		}
		remap[n.id] = c.id
		copies = append(copies, c)
		if collect != nil {
			collect(c.id)
		}
		if n.typ.Container {
			c.members = nil
			c.source = clone(g.nodes[n.source], c.id, false).id
			c.sink = clone(g.nodes[n.sink], c.id, false).id
			for _, m := range n.members {
				clone(g.nodes[m], c.id, true)
			}
		}
		return c
	}
	root := clone(orig, cur, true)
	for _, c := range copies[1:] {
		for i, in := range c.inputs {
			if !in.src.Connected() {
				continue
			}
			if to, ok := remap[in.src.Node]; ok {
				c.inputs[i].src.Node = to
			} else {
				c.inputs[i].src = Unconnected
			}
		}
	}
	if cur != orig.parent {
		for i := range root.inputs {
			root.inputs[i].src = Unconnected
		}
	}
	return root.id, nil
}
