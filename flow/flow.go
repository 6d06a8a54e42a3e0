// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package flow implements the mutable node graph ("expression flow")
// that hosts edit and that package compiler lowers into a flat
// program.
//
// A Graph is an arena of nodes addressed by small integer IDs that
// are unique within the graph. Each node has a registered Type, a
// property bag typed by the type's schema, an ordered list of input
// sockets, and a number of output sockets. An input socket is either
// connected to another node's output socket, or it is unconnected and
// carries a default value.
//
// Container nodes (BLOPs and loops) own a sub-graph: an input
// placeholder node whose outputs forward the container's inputs, an
// output placeholder node whose inputs become the container's
// outputs, and any number of member nodes. Sockets may only refer to
// nodes in the same container; placeholders refer back to their
// container by ID only.
//
// New nodes are created in the container at the top of the graph's
// editing stack (see Push and Pop), or at the top level when the
// stack is empty.
//
// Graphs are safe for concurrent use, but must not be edited while
// they are being compiled.
package flow

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/values"
	"github.com/mitchellh/copystructure"
)

// ID identifies a node within a graph.
type ID int

const (
	// InvalidID is the ID of no node. It is used for unconnected
	// sockets and to request automatic ID assignment.
	InvalidID ID = -1
	// Current names the container currently open for editing.
	Current ID = -2
	// TopLevel names the graph's top-level container.
	TopLevel ID = -3
)

// Socket is the address of an output socket: a node ID and an
// output index.
type Socket struct {
	Node   ID
	Output int
}

// Unconnected is the source of an unconnected input socket.
var Unconnected = Socket{Node: InvalidID}

// Connected tells whether the socket refers to a node.
func (s Socket) Connected() bool {
	return s.Node != InvalidID
}

func (s Socket) String() string {
	if !s.Connected() {
		return "unconnected"
	}
	return fmt.Sprintf("%d:%d", s.Node, s.Output)
}

type input struct {
	src       Socket
	def       values.T
	noDefault bool
}

// Node is a node in a graph. Nodes are mutated only through their
// graph; the methods on Node provide read access.
type Node struct {
	id      ID
	typ     *Type
	parent  ID
	enabled bool
	props   map[string]interface{}
	inputs  []input
	outputs int

	members      []ID
	source, sink ID
	// invariants is the number of a loop's inputs that are not
	// carried variables.
	invariants int
}

// ID returns the node's ID.
func (n *Node) ID() ID { return n.id }

// Type returns the node's type.
func (n *Node) Type() *Type { return n.typ }

// Parent returns the ID of the node's container, or TopLevel.
func (n *Node) Parent() ID { return n.parent }

// Enabled tells whether the node is enabled.
func (n *Node) Enabled() bool { return n.enabled }

// NumInputs returns the number of input sockets.
func (n *Node) NumInputs() int { return len(n.inputs) }

// NumOutputs returns the number of output sockets.
func (n *Node) NumOutputs() int { return n.outputs }

// Input returns the source of input socket i, or Unconnected.
func (n *Node) Input(i int) Socket {
	if i < 0 || i >= len(n.inputs) {
		return Unconnected
	}
	return n.inputs[i].src
}

// Default returns the default value of input socket i.
func (n *Node) Default(i int) values.T {
	if i < 0 || i >= len(n.inputs) {
		return values.None
	}
	return n.inputs[i].def
}

// InputDesc returns the schema of input socket i, if the socket is
// declared by the node's type. Sockets of containers are dynamic
// and have no declared schema.
func (n *Node) InputDesc(i int) (InputDesc, bool) {
	if i < 0 || i >= len(n.typ.Inputs) {
		return InputDesc{}, false
	}
	return n.typ.Inputs[i], true
}

// OutputDesc returns the schema of output socket i, if declared.
func (n *Node) OutputDesc(i int) (OutputDesc, bool) {
	if i < 0 || i >= len(n.typ.Outputs) {
		return OutputDesc{}, false
	}
	return n.typ.Outputs[i], true
}

// Property returns the value of the named property. The returned
// value must not be modified.
func (n *Node) Property(name string) (interface{}, bool) {
	v, ok := n.props[name]
	return v, ok
}

// IntProperty returns the value of an integer property, or 0.
func (n *Node) IntProperty(name string) int {
	v, _ := n.props[name].(int)
	return v
}

// StringProperty returns the value of a string property, or "".
func (n *Node) StringProperty(name string) string {
	v, _ := n.props[name].(string)
	return v
}

// Container tells whether the node owns a sub-graph.
func (n *Node) Container() bool { return n.typ.Container }

// Members returns the IDs of the (non-placeholder) nodes owned by a
// container, in creation order.
func (n *Node) Members() []ID { return append([]ID(nil), n.members...) }

// Source returns the ID of a container's input placeholder.
func (n *Node) Source() ID { return n.source }

// Sink returns the ID of a container's output placeholder.
func (n *Node) Sink() ID { return n.sink }

// Invariants returns the number of a loop's inputs that are passed
// unchanged to every iteration. The remaining inputs initialize the
// loop's carried variables.
func (n *Node) Invariants() int { return n.invariants }

// OutputMask returns a loop's output mask: output k is the carried
// variable initialized by input OutputMask()[k].
func (n *Node) OutputMask() []int {
	m, _ := n.props[PropOutputMask].([]int)
	return m
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%d)", n.typ.Name, n.id)
}

// Graph is an expression flow graph.
type Graph struct {
	mu    sync.Mutex
	nodes map[ID]*Node
	top   []ID
	stack []ID
	next  ID
}

// New returns a new, empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[ID]*Node)}
}

// Clear removes all nodes from the graph and resets its editing
// stack.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[ID]*Node)
	g.top = nil
	g.stack = nil
	g.next = 0
}

// Node returns the node with the given ID.
func (g *Graph) Node(id ID) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the total number of nodes in the graph, including
// nodes inside containers and placeholders.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Outputs returns the IDs of the graph's top-level Output nodes, in
// creation order.
func (g *Graph) Outputs() []ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []ID
	for _, id := range g.top {
		if g.nodes[id].typ.Name == TypeOutput {
			ids = append(ids, id)
		}
	}
	return ids
}

// Nodes returns the IDs of the nodes in the given container (which
// may be TopLevel or Current), excluding its placeholders.
func (g *Graph) Nodes(container ID) ([]ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, err := g.container(container)
	if err != nil {
		return nil, err
	}
	return append([]ID(nil), *g.members(c)...), nil
}

func (g *Graph) lookup(op string, id ID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, errors.E(op, errors.NotExist, errors.Node(id))
	}
	return n, nil
}

// container resolves a container argument to TopLevel or the ID of
// a container node.
func (g *Graph) container(id ID) (ID, error) {
	switch id {
	case Current:
		return g.current(), nil
	case TopLevel:
		return TopLevel, nil
	}
	n, err := g.lookup("container", id)
	if err != nil {
		return InvalidID, err
	}
	if !n.typ.Container {
		return InvalidID, errors.E("container", errors.Invalid, errors.Node(id), errors.New("not a container node"))
	}
	return id, nil
}

func (g *Graph) members(container ID) *[]ID {
	if container == TopLevel {
		return &g.top
	}
	return &g.nodes[container].members
}

func (g *Graph) current() ID {
	if len(g.stack) == 0 {
		return TopLevel
	}
	return g.stack[len(g.stack)-1]
}

// allocate returns id if it is free, or else the next free ID.
func (g *Graph) allocate(id ID) ID {
	if id >= 0 {
		if _, ok := g.nodes[id]; !ok {
			if id >= g.next {
				g.next = id + 1
			}
			return id
		}
	}
	id = g.next
	for {
		if _, ok := g.nodes[id]; !ok {
			break
		}
		id++
	}
	g.next = id + 1
	return id
}

// copyProp returns a deep copy of property value v, so that
// properties are never shared between nodes or with callers.
func copyProp(v interface{}) interface{} {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Map, reflect.Ptr:
		return copystructure.Must(copystructure.Copy(v))
	default:
		return v
	}
}

func defaults(typ *Type) map[string]interface{} {
	props := make(map[string]interface{}, len(typ.Properties))
	for _, p := range typ.Properties {
		props[p.Name] = copyProp(p.Default)
	}
	return props
}

// newNode creates a node of the given type in the given container.
// Placeholders are not added to their container's member list.
func (g *Graph) newNode(typ *Type, id ID, parent ID, member bool) *Node {
	n := &Node{
		id:      g.allocate(id),
		typ:     typ,
		parent:  parent,
		enabled: true,
		props:   defaults(typ),
		outputs: len(typ.Outputs),
		source:  InvalidID,
		sink:    InvalidID,
	}
	n.inputs = make([]input, len(typ.Inputs))
	for i, desc := range typ.Inputs {
		n.inputs[i] = input{src: Unconnected, def: desc.Default, noDefault: desc.NoDefault}
	}
	g.nodes[n.id] = n
	if member {
		list := g.members(parent)
		*list = append(*list, n.id)
	}
	return n
}

func mustType(name string) *Type {
	typ, ok := LookupType(name)
	if !ok {
		panic(errors.Internal(int(InvalidID), "type "+name+" is not registered"))
	}
	return typ
}

// Create creates a new node of the named type in the current
// container and returns its ID. If id is free, it is used; if id is
// InvalidID or already in use, a fresh ID is assigned. Create fails
// if the type is unknown or hidden, or if a top-level-only type is
// created inside a container.
func (g *Graph) Create(typeName string, id ID) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	typ, ok := LookupType(typeName)
	if !ok || typ.Hidden {
		return InvalidID, errors.E("create", typeName, errors.NotExist, errors.New("unknown node type"))
	}
	parent := g.current()
	if typ.TopLevel && parent != TopLevel {
		return InvalidID, errors.E("create", typeName, errors.Invalid, errors.Node(parent),
			errors.New("node type may not be created inside a container"))
	}
	n := g.newNode(typ, id, parent, true)
	switch typ.Name {
	case TypeBLOP:
		n.source = g.newNode(mustType(TypeBLOPSocket), InvalidID, n.id, false).id
		n.sink = g.newNode(mustType(TypeBLOPOutput), InvalidID, n.id, false).id
		// A new BLOP has a single, unconnected output.
		n.outputs = 1
	case TypeLoop:
		n.source = g.newNode(mustType(TypeLoopInput), InvalidID, n.id, false).id
		n.sink = g.newNode(mustType(TypeLoopOutput), InvalidID, n.id, false).id
		// A new loop has a single carried variable.
		n.inputs = []input{{src: Unconnected}}
		n.outputs = 1
		n.props[PropOutputMask] = []int{0}
	}
	if n.typ.Container {
		g.layout(n)
	}
	return n.id, nil
}

// resize returns inputs resized to n sockets, preserving existing
// sockets.
func resize(inputs []input, n int) []input {
	if n <= len(inputs) {
		return inputs[:n:n]
	}
	grown := make([]input, n)
	copy(grown, inputs)
	for i := len(inputs); i < n; i++ {
		grown[i] = input{src: Unconnected}
	}
	return grown
}

// layout updates a container's placeholders to match the
// container's socket counts.
func (g *Graph) layout(n *Node) {
	source, sink := g.nodes[n.source], g.nodes[n.sink]
	switch n.typ.Name {
	case TypeBLOP:
		source.outputs = len(n.inputs)
		sink.inputs = resize(sink.inputs, n.outputs)
	case TypeLoop:
		source.outputs = 1 + len(n.inputs)
		fresh := len(sink.inputs) == 0
		sink.inputs = resize(sink.inputs, 1+n.outputs)
		if fresh {
			sink.inputs[0].def = loopConditionDefault
		}
	}
}

// Delete deletes the node with the given ID. Deleting a container
// also deletes the nodes it contains. Sockets that referred to a
// deleted node become unconnected. Delete is equivalent to
// Replace(id, InvalidID).
func (g *Graph) Delete(id ID) error {
	return g.Replace(id, InvalidID)
}

// Replace relabels node src as dest: dest is deleted, and src takes
// its ID, so that every socket that referred to dest now refers to
// the node formerly known as src. Sockets that referred to src
// become unconnected. If src is InvalidID, dest is simply deleted.
func (g *Graph) Replace(dest, src ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, err := g.lookup("replace", dest)
	if err != nil {
		return err
	}
	if d.typ.Hidden {
		return errors.E("replace", errors.Invalid, errors.Node(dest), errors.New("placeholders cannot be deleted"))
	}
	if g.open(dest) {
		return errors.E("replace", errors.Invalid, errors.Node(dest), errors.New("container is open for editing"))
	}
	if src == InvalidID {
		g.remove(d)
		g.prune()
		return nil
	}
	s, err := g.lookup("replace", src)
	if err != nil {
		return err
	}
	switch {
	case src == dest:
		return nil
	case s.typ.Hidden:
		return errors.E("replace", errors.Invalid, errors.Node(src), errors.New("placeholders cannot be relabeled"))
	case s.parent != d.parent:
		return errors.E("replace", errors.Invalid, errors.Node(src), errors.New("nodes are in different containers"))
	case g.open(src):
		return errors.E("replace", errors.Invalid, errors.Node(src), errors.New("container is open for editing"))
	case g.upstream(src, dest):
		return errors.E("replace", errors.Cycle, errors.Node(src))
	}
	g.remove(d)
	delete(g.nodes, src)
	s.id = dest
	g.nodes[dest] = s
	list := g.members(s.parent)
	for i, id := range *list {
		if id == src {
			(*list)[i] = dest
		}
	}
	if s.typ.Container {
		for _, id := range s.members {
			g.nodes[id].parent = dest
		}
		g.nodes[s.source].parent = dest
		g.nodes[s.sink].parent = dest
	}
	g.prune()
	return nil
}

// open tells whether id is on the editing stack.
func (g *Graph) open(id ID) bool {
	for _, c := range g.stack {
		if c == id {
			return true
		}
	}
	return false
}

// remove removes node n, and recursively the nodes it contains.
func (g *Graph) remove(n *Node) {
	if n.typ.Container {
		for _, id := range n.members {
			g.remove(g.nodes[id])
		}
		delete(g.nodes, n.source)
		delete(g.nodes, n.sink)
	}
	list := g.members(n.parent)
	for i, id := range *list {
		if id == n.id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			break
		}
	}
	delete(g.nodes, n.id)
}

// prune disconnects every socket that refers to a node that no
// longer exists, or to an output its node does not have.
func (g *Graph) prune() {
	for _, n := range g.nodes {
		for i := range n.inputs {
			if src := n.inputs[i].src; src.Connected() {
				if m, ok := g.nodes[src.Node]; !ok || src.Output >= m.outputs {
					n.inputs[i].src = Unconnected
				}
			}
		}
	}
}

// upstream tells whether target is reachable by following input
// sockets from node from.
func (g *Graph) upstream(from, target ID) bool {
	visited := make(map[ID]bool)
	var walk func(id ID) bool
	walk = func(id ID) bool {
		if id == target {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		n, ok := g.nodes[id]
		if !ok {
			return false
		}
		for _, in := range n.inputs {
			if in.src.Connected() && walk(in.src.Node) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// SetInput connects input socket i of node id to src. If src is
// Unconnected, the socket is disconnected. SetInput fails if the
// socket or source output does not exist, if src is in a different
// container, or if the connection would introduce a cycle.
func (g *Graph) SetInput(id ID, i int, src Socket) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setInput(id, i, src)
}

func (g *Graph) setInput(id ID, i int, src Socket) error {
	n, err := g.lookup("setinput", id)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(n.inputs) {
		return errors.E("setinput", errors.Invalid, errors.Node(id), errors.Input(i), errors.New("no such socket"))
	}
	if !src.Connected() {
		n.inputs[i].src = Unconnected
		return nil
	}
	s, err := g.lookup("setinput", src.Node)
	if err != nil {
		return err
	}
	if src.Output < 0 || src.Output >= s.outputs {
		return errors.E("setinput", errors.Invalid, errors.Node(src.Node), errors.Output(src.Output), errors.New("no such socket"))
	}
	if s.parent != n.parent {
		return errors.E("setinput", errors.Invalid, errors.Node(id), errors.Input(i),
			errors.Errorf("node %d is in a different container", src.Node))
	}
	if src.Node == id || g.upstream(src.Node, id) {
		return errors.E("setinput", errors.Cycle, errors.Node(id), errors.Input(i))
	}
	n.inputs[i].src = src
	return nil
}

// Input returns the source of input socket i of node id.
func (g *Graph) Input(id ID, i int) (Socket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup("input", id)
	if err != nil {
		return Unconnected, err
	}
	if i < 0 || i >= len(n.inputs) {
		return Unconnected, errors.E("input", errors.Invalid, errors.Node(id), errors.Input(i), errors.New("no such socket"))
	}
	return n.inputs[i].src, nil
}

// SetDefault sets the default value of input socket i of node id.
// Assignments to sockets that do not exist or that do not accept
// defaults are ignored.
func (g *Graph) SetDefault(id ID, i int, v values.T) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup("setdefault", id)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(n.inputs) || n.inputs[i].noDefault {
		return nil
	}
	n.inputs[i].def = v
	return nil
}

// Default returns the default value of input socket i of node id,
// or None if the socket does not exist.
func (g *Graph) Default(id ID, i int) (values.T, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup("default", id)
	if err != nil {
		return values.None, err
	}
	return n.Default(i), nil
}

type goType struct{ reflect.Type }

func (t goType) String() string {
	if t.Type == nil {
		return "nil"
	}
	return t.Type.String()
}

// SetProperty assigns the named property of node id. The value's
// type must be exactly the property's type.
func (g *Graph) SetProperty(id ID, name string, v interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup("setproperty", id)
	if err != nil {
		return err
	}
	desc, ok := n.typ.Property(name)
	if !ok {
		return errors.E("setproperty", errors.NotExist, errors.Node(id), errors.Property(name))
	}
	if desc.ReadOnly {
		return errors.E("setproperty", errors.Invalid, errors.Node(id), errors.Property(name), errors.New("property is read-only"))
	}
	if got, want := reflect.TypeOf(v), desc.Type(); got != want {
		return errors.E("setproperty", errors.TypeMismatch, errors.Node(id), errors.Property(name),
			errors.Expected(goType{want}), errors.Found(goType{got}))
	}
	if desc.Validate != nil {
		if err := desc.Validate(v); err != nil {
			return errors.E("setproperty", errors.Node(id), errors.Property(name), errors.Invalid, err)
		}
	}
	if n.typ.Name == TypeLoop && name == PropOutputMask {
		mask := v.([]int)
		if len(mask) != n.outputs {
			return errors.E("setproperty", errors.Invalid, errors.Node(id), errors.Property(name),
				errors.Errorf("mask has %d entries, loop has %d outputs", len(mask), n.outputs))
		}
		for k, idx := range mask {
			if idx < 0 || idx >= len(n.inputs) {
				return errors.E("setproperty", errors.Invalid, errors.Node(id), errors.Property(name),
					errors.Errorf("invalid index %d in outputMask[%d]", idx, k))
			}
		}
	}
	n.props[name] = copyProp(v)
	return nil
}

// Property returns a copy of the named property of node id.
func (g *Graph) Property(id ID, name string) (interface{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup("property", id)
	if err != nil {
		return nil, err
	}
	v, ok := n.props[name]
	if !ok {
		return nil, errors.E("property", errors.NotExist, errors.Node(id), errors.Property(name))
	}
	return copyProp(v), nil
}

// SetEnabled enables or disables node id. Only nodes of disableable
// types may be disabled.
func (g *Graph) SetEnabled(id ID, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup("setenabled", id)
	if err != nil {
		return err
	}
	if !enabled && !n.typ.Disableable {
		return errors.E("setenabled", n.typ.Name, errors.NotSupported, errors.Node(id), errors.New("node type cannot be disabled"))
	}
	n.enabled = enabled
	return nil
}

// Push opens container id for editing. Subsequently created nodes
// are placed inside it. The container must be a member of the
// currently open container.
func (g *Graph) Push(id ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup("push", id)
	if err != nil {
		return err
	}
	if !n.typ.Container {
		return errors.E("push", errors.Invalid, errors.Node(id), errors.New("not a container node"))
	}
	if n.parent != g.current() {
		return errors.E("push", errors.Invalid, errors.Node(id), errors.New("container is not in the current container"))
	}
	g.stack = append(g.stack, id)
	return nil
}

// Pop closes the most recently opened container and returns its ID.
func (g *Graph) Pop() (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.stack) == 0 {
		return InvalidID, errors.E("pop", errors.Invalid, errors.New("no container is open"))
	}
	id := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	return id, nil
}

// Depth returns the number of open containers.
func (g *Graph) Depth() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.stack)
}

// Current returns the ID of the container currently open for
// editing, or TopLevel.
func (g *Graph) Current() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current()
}

// StackAt returns the ID of the container open at the given depth;
// depth 0 is the top level.
func (g *Graph) StackAt(depth int) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case depth == 0:
		return TopLevel
	case depth < 0 || depth > len(g.stack):
		return InvalidID
	default:
		return g.stack[depth-1]
	}
}
