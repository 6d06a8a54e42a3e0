// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"strconv"
	"strings"

	"github.com/aws/thinkbox-magma-sub002/compiler"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/values"
)

func init() {
	Register(Context, "kv", "name=value,...",
		"comma separated list of ambient values; values are ints, floats, bools, or x/y/z vectors",
		func(cfg Config, arg string) (Config, error) {
			vals, err := parseValues(arg)
			if err != nil {
				return nil, err
			}
			return &ambient{cfg, vals}, nil
		})
}

type ambient struct {
	Config
	vals map[string]values.T
}

func (a *ambient) Context() (compiler.MapContext, error) {
	ctx, err := a.Config.Context()
	if err != nil {
		return ctx, err
	}
	merged := make(map[string]values.T, len(ctx.Values)+len(a.vals))
	for k, v := range ctx.Values {
		merged[k] = v
	}
	for k, v := range a.vals {
		merged[k] = v
	}
	ctx.Values = merged
	return ctx, nil
}

func parseValues(arg string) (map[string]values.T, error) {
	vals := make(map[string]values.T)
	if arg == "" {
		return vals, nil
	}
	for _, kv := range strings.Split(arg, ",") {
		s := strings.Split(kv, "=")
		if len(s) != 2 || len(s[0]) == 0 || len(s[1]) == 0 {
			return nil, errors.E(errors.Invalid, errors.Errorf("invalid value %q", kv))
		}
		v, err := parseValue(s[1])
		if err != nil {
			return nil, errors.E(s[0], errors.Invalid, err)
		}
		vals[s[0]] = v
	}
	return vals, nil
}

func parseValue(s string) (values.T, error) {
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return values.Int(int32(i)), nil
	}
	if f, err := strconv.ParseFloat(s, 32); err == nil {
		return values.Float(float32(f)), nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return values.Bool(b), nil
	}
	if parts := strings.Split(s, "/"); len(parts) == 3 {
		var v [3]float32
		for i, p := range parts {
			f, err := strconv.ParseFloat(p, 32)
			if err != nil {
				return values.None, errors.Errorf("invalid vector component %q", p)
			}
			v[i] = float32(f)
		}
		return values.Vec3(v[0], v[1], v[2]), nil
	}
	return values.None, errors.Errorf("cannot parse %q as a value", s)
}
