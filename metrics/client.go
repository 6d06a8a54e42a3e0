// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics declares the metrics emitted by the compiler and
// the evaluator and carries a metrics Client in a context.
// Metrics are disabled unless a Client is attached to the context
// with WithClient.
package metrics

import (
	"context"
	"fmt"
	"time"
)

// A Gauge tracks a level that rises and falls, such as the number of
// busy evaluation workers. prometheus.Gauge implements Gauge.
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Sub(float64)
}

// A Counter accumulates a monotonic total, such as compiled programs
// or evaluated elements. Add must not be given a negative value.
// prometheus.Counter implements Counter.
type Counter interface {
	Inc()
	Add(float64)
}

// A Histogram buckets observations, such as compile and batch
// latencies, into the buckets declared for its metric.
// prometheus.Histogram implements Histogram.
type Histogram interface {
	Observe(float64)
}

// ObserveSince records the time elapsed since start, in seconds.
func ObserveSince(h Histogram, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

type labelSet []string

type gaugeOpts struct {
	Labels labelSet
	Help   string
}

type counterOpts struct {
	Labels labelSet
	Help   string
}

type histogramOpts struct {
	Labels  labelSet
	Help    string
	Buckets []float64
}

// mustCompleteLabels confirms that all of the labels in the given labelSet are satisfied by labels.
func mustCompleteLabels(labelSet labelSet, labels map[string]string) bool {
	if len(labels) != len(labelSet) {
		return false
	}
	for _, label := range labelSet {
		if _, ok := labels[label]; !ok {
			return false
		}
	}
	return true
}

// check panics if the named metric is not declared, or if labels
// do not match its declared label set.
func check(kind, name string, declared labelSet, ok bool, labels map[string]string) {
	if !ok {
		panic(fmt.Sprintf("attempted to get undeclared %s %s", kind, name))
	}
	if !mustCompleteLabels(declared, labels) {
		panic(fmt.Sprintf("attempted to get %s %s with invalid labels, expected %v but got %v",
			kind, name, declared, labels))
	}
}

// getGauge returns the named gauge of ctx's client, or a discarding
// gauge if ctx carries no client.
func getGauge(ctx context.Context, name string, labels map[string]string) Gauge {
	if !On(ctx) {
		return discard
	}
	opts, ok := Gauges[name]
	check("gauge", name, opts.Labels, ok, labels)
	return metricsClient(ctx).GetGauge(name, labels)
}

func getCounter(ctx context.Context, name string, labels map[string]string) Counter {
	if !On(ctx) {
		return discard
	}
	opts, ok := Counters[name]
	check("counter", name, opts.Labels, ok, labels)
	return metricsClient(ctx).GetCounter(name, labels)
}

func getHistogram(ctx context.Context, name string, labels map[string]string) Histogram {
	if !On(ctx) {
		return discard
	}
	opts, ok := Histograms[name]
	check("histogram", name, opts.Labels, ok, labels)
	return metricsClient(ctx).GetHistogram(name, labels)
}

// A Client resolves declared metrics by name and label values.
// Compilations and evaluations find their Client in the context.
type Client interface {
	GetGauge(name string, labels map[string]string) Gauge
	GetCounter(name string, labels map[string]string) Counter
	GetHistogram(name string, labels map[string]string) Histogram
}

type contextKey int

// clientKey is the context key for the metrics client.
const clientKey contextKey = iota

// NopClient discards every metric.
var NopClient Client = nopClient{}

// WithClient returns a context that emits metrics to the provided
// Client.
func WithClient(ctx context.Context, client Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, clientKey, client)
}

// On tells whether ctx carries a Client.
func On(ctx context.Context) bool {
	_, ok := ctx.Value(clientKey).(Client)
	return ok
}

func metricsClient(ctx context.Context) Client {
	return ctx.Value(clientKey).(Client)
}
