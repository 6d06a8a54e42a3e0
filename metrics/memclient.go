// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemClient is a Client that accumulates metrics in memory. It is
// useful in tests and for one-shot tools that print a summary.
type MemClient struct {
	mu     sync.Mutex
	values map[string]float64
	counts map[string]int
}

// NewMemClient returns a new, empty MemClient.
func NewMemClient() *MemClient {
	return &MemClient{values: make(map[string]float64), counts: make(map[string]int)}
}

// Key returns the key under which a metric with the given name and
// labels is recorded.
func Key(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		keys[i] = fmt.Sprintf("%s=%s", k, labels[k])
	}
	return name + "{" + strings.Join(keys, ",") + "}"
}

// Value returns the current value of a gauge or counter, or the sum
// of a histogram's observations.
func (c *MemClient) Value(key string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

// Count returns the number of observations of a histogram.
func (c *MemClient) Count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

func (c *MemClient) add(key string, v float64) {
	c.mu.Lock()
	c.values[key] += v
	c.counts[key]++
	c.mu.Unlock()
}

func (c *MemClient) set(key string, v float64) {
	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
}

type memMetric struct {
	c   *MemClient
	key string
}

func (m memMetric) Set(v float64)     { m.c.set(m.key, v) }
func (m memMetric) Inc()              { m.c.add(m.key, 1) }
func (m memMetric) Dec()              { m.c.add(m.key, -1) }
func (m memMetric) Add(v float64)     { m.c.add(m.key, v) }
func (m memMetric) Sub(v float64)     { m.c.add(m.key, -v) }
func (m memMetric) Observe(v float64) { m.c.add(m.key, v) }

// GetGauge implements Client.
func (c *MemClient) GetGauge(name string, labels map[string]string) Gauge {
	return memMetric{c, Key(name, labels)}
}

// GetCounter implements Client.
func (c *MemClient) GetCounter(name string, labels map[string]string) Counter {
	return memMetric{c, Key(name, labels)}
}

// GetHistogram implements Client.
func (c *MemClient) GetHistogram(name string, labels map[string]string) Histogram {
	return memMetric{c, Key(name, labels)}
}
