// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package flow

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// dotNode is a graph node in the dot graph.
type dotNode struct {
	*Node
}

// ID implements graph.Node.
func (n dotNode) ID() int64 {
	return int64(n.id)
}

// DOTID implements dot.Node.
func (n dotNode) DOTID() string {
	return fmt.Sprintf("%s-%d", n.typ.Name, n.id)
}

// Attributes implements encoding.Attributer.
func (n dotNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "parent", Value: fmt.Sprint(n.parent)}}
	switch {
	case n.typ.Container:
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "box3d"})
	case n.typ.Hidden:
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "point"})
	}
	if !n.enabled {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return attrs
}

// dotEdge represents one or more connections from the outputs of a
// node to the inputs of another.
type dotEdge struct {
	graph.Edge
	// sockets lists the connections as "output>input".
	sockets []string
}

// Attributes implements encoding.Attributer.
func (e dotEdge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: strings.Join(e.sockets, ",")}}
}

// DOT writes the graph in Graphviz dot format to w. Every node,
// including placeholders, is rendered; edges point from a source
// node to the node that consumes its output.
func (g *Graph) DOT(w io.Writer) error {
	g.mu.Lock()
	ids := make([]ID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	dg := simple.NewDirectedGraph()
	for _, id := range ids {
		dg.AddNode(dotNode{g.nodes[id]})
	}
	edges := make(map[[2]ID]*dotEdge)
	var order [][2]ID
	for _, id := range ids {
		n := g.nodes[id]
		for i, in := range n.inputs {
			src, ok := g.nodes[in.src.Node]
			if !in.src.Connected() || !ok {
				continue
			}
			key := [2]ID{src.id, n.id}
			e := edges[key]
			if e == nil {
				e = &dotEdge{Edge: dg.NewEdge(dotNode{src}, dotNode{n})}
				edges[key] = e
				order = append(order, key)
			}
			e.sockets = append(e.sockets, fmt.Sprintf("%d>%d", in.src.Output, i))
		}
	}
	g.mu.Unlock()
	for _, key := range order {
		dg.SetEdge(*edges[key])
	}
	b, err := dot.Marshal(dg, "expression flow", "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
