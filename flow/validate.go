// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package flow

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/values"
	"github.com/grailbio/base/digest"
	multierror "github.com/hashicorp/go-multierror"
)

func (g *Graph) sortedIDs() []ID {
	ids := make([]ID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks the structural integrity of the graph: container
// membership, placeholders, and socket references. Violations
// indicate a bug in the graph implementation and are reported as
// fatal errors; all violations found are returned together.
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var result *multierror.Error
	fail := func(n *Node, format string, args ...interface{}) {
		result = multierror.Append(result, errors.Internal(int(n.id), fmt.Sprintf(format, args...)))
	}
	member := make(map[ID]ID)
	for _, id := range g.top {
		member[id] = TopLevel
	}
	for _, id := range g.sortedIDs() {
		n := g.nodes[id]
		if !n.typ.Container {
			continue
		}
		for _, m := range n.members {
			member[m] = id
		}
		for _, p := range []ID{n.source, n.sink} {
			if ph, ok := g.nodes[p]; !ok || ph.parent != id || !ph.typ.Hidden {
				fail(n, "container has an invalid placeholder %d", p)
			}
		}
	}
	for _, id := range g.sortedIDs() {
		n := g.nodes[id]
		if n.parent != TopLevel {
			if p, ok := g.nodes[n.parent]; !ok || !p.typ.Container {
				fail(n, "parent %d is not a container", n.parent)
				continue
			}
		}
		if c, ok := member[id]; ok && c != n.parent {
			fail(n, "listed as a member of %d, parent is %d", c, n.parent)
		} else if !ok && !n.typ.Hidden {
			fail(n, "not listed as a member of its container")
		}
		for i, in := range n.inputs {
			if !in.src.Connected() {
				continue
			}
			src, ok := g.nodes[in.src.Node]
			switch {
			case !ok:
				fail(n, "input %d refers to missing node %d", i, in.src.Node)
			case src.parent != n.parent:
				fail(n, "input %d refers to node %d in another container", i, in.src.Node)
			case in.src.Output < 0 || in.src.Output >= src.outputs:
				fail(n, "input %d refers to missing output %v", i, in.src)
			}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.E("validate", errors.Fatal, err)
	}
	return nil
}

// Digest returns a digest of the graph's structure: its nodes and
// their types, properties, connections, and defaults. Graphs with
// equal digests compile to equivalent programs.
func (g *Graph) Digest() digest.Digest {
	g.mu.Lock()
	defer g.mu.Unlock()
	w := values.Digester.NewWriter()
	for _, id := range g.sortedIDs() {
		g.writeNode(w, g.nodes[id])
	}
	return w.Digest()
}

func writeInt(w io.Writer, v int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.Write(b[:])
}

func (g *Graph) writeNode(w io.Writer, n *Node) {
	io.WriteString(w, n.typ.Name)
	writeInt(w, int(n.id))
	writeInt(w, int(n.parent))
	if n.enabled {
		writeInt(w, 1)
	} else {
		writeInt(w, 0)
	}
	names := make([]string, 0, len(n.props))
	for k := range n.props {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "%s=%v;", k, n.props[k])
	}
	writeInt(w, len(n.inputs))
	for _, in := range n.inputs {
		writeInt(w, int(in.src.Node))
		writeInt(w, in.src.Output)
		values.WriteDigest(w, in.def)
	}
	writeInt(w, n.outputs)
	writeInt(w, len(n.members))
	for _, m := range n.members {
		writeInt(w, int(m))
	}
	writeInt(w, int(n.source))
	writeInt(w, int(n.sink))
	writeInt(w, n.invariants)
}
