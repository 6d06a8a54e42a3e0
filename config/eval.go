// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"strconv"
	"strings"

	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/eval"
)

func init() {
	Register(Eval, "serial", "chunksize", "evaluate elements one at a time, in order",
		func(cfg Config, arg string) (Config, error) {
			opts := eval.Options{Workers: 1}
			if arg != "" {
				n, err := positive("chunk size", arg)
				if err != nil {
					return nil, err
				}
				opts.ChunkSize = n
			}
			return &evalConfig{cfg, opts}, nil
		},
	)
	Register(Eval, "parallel", "workers[,chunksize]", "evaluate chunks of elements concurrently (default: one worker per CPU)",
		func(cfg Config, arg string) (Config, error) {
			var opts eval.Options
			if arg == "" {
				return &evalConfig{cfg, opts}, nil
			}
			workers, chunk := peel(arg, ",")
			n, err := positive("workers", workers)
			if err != nil {
				return nil, err
			}
			opts.Workers = n
			if chunk != "" {
				if opts.ChunkSize, err = positive("chunk size", chunk); err != nil {
					return nil, err
				}
			}
			return &evalConfig{cfg, opts}, nil
		},
	)
}

func positive(what, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, errors.E(errors.Invalid, errors.Errorf("%s: expected a positive integer, got %q", what, s))
	}
	return n, nil
}

type evalConfig struct {
	Config
	opts eval.Options
}

func (c *evalConfig) EvalOptions() (eval.Options, error) {
	opts := c.opts
	var err error
	opts.Log, err = c.Config.Logger()
	return opts, err
}
