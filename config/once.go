// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"net/http"

	"github.com/aws/thinkbox-magma-sub002/log"
	"github.com/aws/thinkbox-magma-sub002/metrics"
	"github.com/grailbio/base/sync/once"
)

// OnceConfig memoizes the first call of the following methods to the
// underlying config: Logger, Metrics, and MetricsHandler.
type OnceConfig struct {
	Config

	loggerOnce once.Task
	logger     *log.Logger

	metricsOnce once.Task
	metrics     metrics.Client

	handlerOnce once.Task
	handler     http.Handler
}

// Once constructs a new OnceConfig using the provided
// underlying configuration.
func Once(cfg Config) *OnceConfig {
	return &OnceConfig{Config: cfg}
}

// Logger returns the result of the first call to the underlying
// configuration's Logger.
func (o *OnceConfig) Logger() (*log.Logger, error) {
	err := o.loggerOnce.Do(func() (err error) {
		o.logger, err = o.Config.Logger()
		return
	})
	return o.logger, err
}

// Metrics returns the result of the first call to the underlying
// configuration's Metrics.
func (o *OnceConfig) Metrics() (metrics.Client, error) {
	err := o.metricsOnce.Do(func() (err error) {
		o.metrics, err = o.Config.Metrics()
		return
	})
	return o.metrics, err
}

// MetricsHandler returns the result of the first call to the
// underlying configuration's MetricsHandler.
func (o *OnceConfig) MetricsHandler() (http.Handler, error) {
	err := o.handlerOnce.Do(func() (err error) {
		o.handler, err = o.Config.MetricsHandler()
		return
	})
	return o.handler, err
}
