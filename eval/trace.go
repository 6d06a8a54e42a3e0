// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package eval

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// Entry is a single traced value: the value computed for output
// Output of node Node. Iteration is the iteration of the innermost
// enclosing loop, or -1 outside of loops. A loop's own entry has
// Output -1 and records its number of completed iterations.
type Entry struct {
	Node      flow.ID
	Output    int
	Iteration int
	Value     values.T
}

func (e Entry) String() string {
	if e.Iteration < 0 {
		return fmt.Sprintf("%d:%d = %v", e.Node, e.Output, e.Value)
	}
	return fmt.Sprintf("%d:%d[%d] = %v", e.Node, e.Output, e.Iteration, e.Value)
}

// Trace is the list of values computed during the evaluation of a
// single element, in evaluation order.
type Trace struct {
	Entries []Entry
}

// Reset clears the trace so that it may be reused.
func (t *Trace) Reset() { t.Entries = t.Entries[:0] }

// Value returns the last value traced for the given node output.
func (t *Trace) Value(node flow.ID, output int) (values.T, bool) {
	for i := len(t.Entries) - 1; i >= 0; i-- {
		if e := t.Entries[i]; e.Node == node && e.Output == output {
			return e.Value, true
		}
	}
	return values.None, false
}

// Values returns every value traced for the given node output, in
// evaluation order. Outputs computed in loops have one value per
// iteration.
func (t *Trace) Values(node flow.ID, output int) []values.T {
	var list []values.T
	for _, e := range t.Entries {
		if e.Node == node && e.Output == output {
			list = append(list, e.Value)
		}
	}
	return list
}

// Debug collects traces across the elements of a batch. It is safe
// for concurrent use.
type Debug struct {
	mu     sync.Mutex
	traces map[int]*Trace
}

// Add records the trace of element i.
func (d *Debug) Add(i int, tr *Trace) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.traces == nil {
		d.traces = make(map[int]*Trace)
	}
	d.traces[i] = tr
}

// Trace returns the trace of element i.
func (d *Debug) Trace(i int) (*Trace, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tr, ok := d.traces[i]
	return tr, ok
}

// Elements returns the indices of the traced elements, in order.
func (d *Debug) Elements() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := make([]int, 0, len(d.traces))
	for i := range d.traces {
		list = append(list, i)
	}
	sort.Ints(list)
	return list
}

// Stats summarizes the values computed for a node output across
// elements. Vector values are summarized component-wise.
type Stats struct {
	N             int
	Min, Mean, Max []float64
}

func (s Stats) String() string {
	return fmt.Sprintf("n=%d min=%v mean=%v max=%v", s.N, s.Min, s.Mean, s.Max)
}

// Stats returns summary statistics of the last value computed for
// the given node output in each traced element. Stats returns false
// if no element computed the output.
func (d *Debug) Stats(node flow.ID, output int) (Stats, bool) {
	var s Stats
	for _, i := range d.Elements() {
		tr, _ := d.Trace(i)
		v, ok := tr.Value(node, output)
		if !ok {
			continue
		}
		c := v.Components()
		if s.N == 0 {
			s.Min = make([]float64, len(c))
			s.Max = make([]float64, len(c))
			s.Mean = make([]float64, len(c))
			for k := range c {
				s.Min[k] = math.Inf(1)
				s.Max[k] = math.Inf(-1)
			}
		}
		if len(c) != len(s.Min) {
			continue
		}
		for k, x := range c {
			s.Min[k] = math.Min(s.Min[k], x)
			s.Max[k] = math.Max(s.Max[k], x)
			s.Mean[k] += x
		}
		s.N++
	}
	if s.N == 0 {
		return Stats{}, false
	}
	for k := range s.Mean {
		s.Mean[k] /= float64(s.N)
	}
	return s, true
}
