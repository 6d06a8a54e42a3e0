// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"net/http"

	"github.com/aws/thinkbox-magma-sub002/metrics"
	"github.com/aws/thinkbox-magma-sub002/metrics/prometrics"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	Register(Metrics, "off", "", "discard metrics",
		func(cfg Config, arg string) (Config, error) {
			return &metricsOff{cfg}, nil
		},
	)
	Register(Metrics, "prometheus", "namespace", "collect metrics in a prometheus registry (default namespace: exprflow)",
		func(cfg Config, arg string) (Config, error) {
			if arg == "" {
				arg = prometrics.DefaultNamespace
			}
			return &prometheusMetrics{cfg, arg, prometheus.NewRegistry()}, nil
		},
	)
}

type metricsOff struct {
	Config
}

func (c *metricsOff) Metrics() (metrics.Client, error) {
	return metrics.NopClient, nil
}

// prometheusMetrics registers its collectors on each call to
// Metrics, so that a second call fails; OnceConfig shares a single
// client.
type prometheusMetrics struct {
	Config
	namespace string
	reg       *prometheus.Registry
}

func (c *prometheusMetrics) Metrics() (metrics.Client, error) {
	return prometrics.NewClient(c.reg, c.namespace)
}

func (c *prometheusMetrics) MetricsHandler() (http.Handler, error) {
	return prometrics.Handler(c.reg), nil
}
