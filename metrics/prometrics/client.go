// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package prometrics implements a metrics.Client backed by a
// Prometheus registry.
package prometrics

import (
	"net/http"

	"github.com/aws/thinkbox-magma-sub002/log"
	"github.com/aws/thinkbox-magma-sub002/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace is the namespace given to metrics by NewClient.
const DefaultNamespace = "exprflow"

type client struct {
	// Namespace is given as a prefix to all prometheus metrics.
	Namespace string

	reg        *prometheus.Registry
	gauges     map[string]*prometheus.GaugeVec
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// initCollectors inspects the counters/gauges/histograms declared by
// package metrics and registers their backing stores with the
// client's registry. It should only be called once.
func (r *client) initCollectors() error {
	for name, opts := range metrics.Gauges {
		gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: r.Namespace,
			Name:      name,
			Help:      opts.Help,
		}, opts.Labels)
		r.gauges[name] = gv
		if err := r.reg.Register(gv); err != nil {
			return err
		}
	}
	for name, opts := range metrics.Counters {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: r.Namespace,
			Name:      name,
			Help:      opts.Help,
		}, opts.Labels)
		r.counters[name] = cv
		if err := r.reg.Register(cv); err != nil {
			return err
		}
	}
	for name, opts := range metrics.Histograms {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.Namespace,
			Name:      name,
			Buckets:   opts.Buckets,
			Help:      opts.Help,
		}, opts.Labels)
		r.histograms[name] = hv
		if err := r.reg.Register(hv); err != nil {
			return err
		}
	}
	return nil
}

func (r *client) GetGauge(name string, labels map[string]string) metrics.Gauge {
	gauge, err := r.gauges[name].GetMetricWith(labels)
	if err != nil {
		log.Fatal(err)
	}
	return gauge
}

func (r *client) GetCounter(name string, labels map[string]string) metrics.Counter {
	counter, err := r.counters[name].GetMetricWith(labels)
	if err != nil {
		log.Fatal(err)
	}
	return counter
}

func (r *client) GetHistogram(name string, labels map[string]string) metrics.Histogram {
	histogram, err := r.histograms[name].GetMetricWith(labels)
	if err != nil {
		log.Fatal(err)
	}
	return histogram
}

// NewClient returns a prometheus metrics Client that registers the
// declared metrics with reg under the given namespace (or
// DefaultNamespace if empty).
func NewClient(reg *prometheus.Registry, namespace string) (metrics.Client, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &client{
		reg:        reg,
		Namespace:  namespace,
		gauges:     make(map[string]*prometheus.GaugeVec),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	if err := r.initCollectors(); err != nil {
		return nil, err
	}
	return r, nil
}

// Handler returns an HTTP handler that serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
