// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config defines an interface for configuring the hosts that
// compile and evaluate expression flows. This interface can be
// composed in multiple ways, allowing for layered configuration.
//
// A configuration is a set of keys (corresponding to toplevel keys
// in a YAML document). A subset of keys, defined by the package's
// AllKeys, correspond to objects that are configured by the Config
// interface. These keys are provisioned by globally registered
// providers; the keys must be string formatted, and contain the
// (registered) name of the provider, followed by an optional comma
// and string argument. For example:
//
//	eval: parallel,8
//
// configures the eval key (corresponding to Config.EvalOptions)
// using the parallel provider; the argument "8" is the number of
// workers.
//
// A complete configuration may look like:
//
//	logger: stderr,debug
//	metrics: prometheus,exprflow
//	eval: parallel,8,512
//	context: kv,Time=1.5,Frame=30
package config

import (
	"fmt"
	"io/ioutil"
	golog "log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/aws/thinkbox-magma-sub002/compiler"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/eval"
	"github.com/aws/thinkbox-magma-sub002/log"
	"github.com/aws/thinkbox-magma-sub002/metrics"
	yaml "gopkg.in/yaml.v2"
)

// The following are the set of keys provisioned by Config.
const (
	Logger  = "logger"
	Metrics = "metrics"
	Eval    = "eval"
	Context = "context"
)

// AllKeys defines the order in which configuration keys are
// provisioned. Thus, providers for keys later in the list may use
// configuration provided by providers for keys earlier in the list.
var AllKeys = []string{
	Logger,
	Metrics,
	Eval,
	Context,
}

// Keys is a map of string keys to configuration values.
type Keys map[string]interface{}

// A Config provides a number of methods to mint the objects used to
// compile and evaluate expression flows. It is safe to call each
// method multiple times, but they should not be called concurrently.
type Config interface {
	// Logger returns the configured logger.
	Logger() (*log.Logger, error)

	// Metrics returns the configured metrics client.
	Metrics() (metrics.Client, error)

	// MetricsHandler returns an HTTP handler that exports the
	// configured metrics.
	MetricsHandler() (http.Handler, error)

	// EvalOptions returns the options used to evaluate programs.
	EvalOptions() (eval.Options, error)

	// Context returns the ambient values supplied to compilations.
	Context() (compiler.MapContext, error)

	// Value returns the value of the given key.
	Value(key string) interface{}

	// Marshal marshals the current configuration into keys.
	Marshal(keys Keys) error

	// Keys returns all the keys as defined by this config.
	Keys() Keys
}

// Base defines a base configuration with reasonable defaults
// where they apply.
type Base Keys

// Logger returns a logger that outputs to standard error.
func (b Base) Logger() (*log.Logger, error) {
	return log.New(golog.New(os.Stderr, "", golog.LstdFlags), log.InfoLevel), nil
}

// Metrics returns the nop client.
func (b Base) Metrics() (metrics.Client, error) {
	return metrics.NopClient, nil
}

// MetricsHandler returns an error indicating that metrics are not
// exported.
func (b Base) MetricsHandler() (http.Handler, error) {
	return nil, errors.E("metrics", errors.NotExist, errors.New("metrics are not exported"))
}

// EvalOptions returns the default evaluation options: one worker per
// CPU.
func (b Base) EvalOptions() (eval.Options, error) {
	return eval.Options{}, nil
}

// Context returns an empty context.
func (b Base) Context() (compiler.MapContext, error) {
	return compiler.MapContext{}, nil
}

// Keys returns the configured keys.
func (b Base) Keys() Keys {
	return Keys(b)
}

// Value returns the value for the provided key.
func (b Base) Value(key string) interface{} {
	return b[key]
}

// Marshal populates the provided key dictionary with the keys
// present in this configuration.
func (b Base) Marshal(keys Keys) error {
	for k, v := range b {
		keys[k] = v
	}
	return nil
}

// Compiler returns a compiler that logs to the configured logger.
func Compiler(cfg Config) (*compiler.Compiler, error) {
	l, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	return compiler.New(l), nil
}

// Unmarshal unmarshals the (YAML-configured) configuration in b into
// keys.
func Unmarshal(b []byte, keys Keys) error {
	return yaml.Unmarshal(b, keys)
}

// Marshal marshals the given keys into YAML-formatted bytes.
func Marshal(cfg Config) ([]byte, error) {
	keys := make(Keys)
	if err := cfg.Marshal(keys); err != nil {
		return nil, err
	}
	return yaml.Marshal(keys)
}

// Make evaluates a config's keys: for each key in AllKeys (and in
// the order defined by AllKeys), Make parses its provider, and
// provisions the key accordingly. Make returns errors if a provider
// cannot be found or if the provider fails to configure the given
// key.
func Make(cfg Config) (Config, error) {
	for _, key := range AllKeys {
		v := cfg.Value(key)
		if v == nil {
			continue
		}
		vstr, ok := providerString(v)
		if !ok {
			return nil, errors.E("config", key, errors.Invalid, errors.Errorf("expected string, got %T", v))
		}
		name, arg := peel(vstr, ",")
		provider, ok := Lookup(key, name)
		if !ok {
			return nil, errors.E("config", key, errors.NotExist, errors.Errorf("provider %s not defined", name))
		}
		var err error
		cfg, err = provider.Configure(cfg, arg)
		if err != nil {
			return nil, errors.E("config", key, name, errors.Invalid, err)
		}
	}
	return cfg, nil
}

// Parse parses and provisions a configuration from the
// YAML-formatted bytes b.
func Parse(b []byte) (Config, error) {
	base := make(Base)
	if err := Unmarshal(b, Keys(base)); err != nil {
		return nil, err
	}
	return Make(base)
}

// ParseFile reads and then parses the configuration from the
// provided filename.
func ParseFile(filename string) (Config, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.E("config", filename, err)
	}
	return Parse(b)
}

// A Provider provisions a single key in a configuration. Providers
// must be registered via the package's Register function.
type Provider struct {
	Configure        func(cfg Config, arg string) (Config, error)
	Kind, Arg, Usage string
}

var (
	providers = make(map[string]map[string]Provider)
	mu        sync.Mutex
)

// Register the configuration provider kind for the given key. The
// arg and usage string should describe the provider's argument.
// Register panics if the key is not one of AllKeys or if the kind is
// already registered for the key.
func Register(key, kind, arg, usage string, configure func(Config, string) (Config, error)) {
	var known bool
	for _, k := range AllKeys {
		known = known || k == key
	}
	if !known {
		panic(fmt.Sprintf("config key %s is not provisioned", key))
	}
	mu.Lock()
	defer mu.Unlock()
	kindmap := providers[key]
	if kindmap == nil {
		kindmap = make(map[string]Provider)
		providers[key] = kindmap
	}
	if _, ok := kindmap[kind]; ok {
		panic(fmt.Sprintf("provider %s already registered for key %s", kind, key))
	}
	kindmap[kind] = Provider{
		Configure: configure,
		Kind:      kind,
		Arg:       arg,
		Usage:     usage,
	}
}

// Lookup returns the Provider of kind for key.
func Lookup(key, kind string) (Provider, bool) {
	mu.Lock()
	defer mu.Unlock()
	p, ok := providers[key][kind]
	return p, ok
}

// Usage contains usage information for a provider.
type Usage struct {
	Kind, Arg, Usage string
}

// Help returns Usages, organized by key.
func Help() map[string][]Usage {
	mu.Lock()
	defer mu.Unlock()
	help := make(map[string][]Usage)
	for key, keyProviders := range providers {
		var usages []Usage
		for name, provider := range keyProviders {
			usages = append(usages, Usage{
				Kind:  name,
				Arg:   provider.Arg,
				Usage: provider.Usage,
			})
		}
		help[key] = usages
	}
	return help
}

// providerString renders the scalar configuration value v as a
// provider string. YAML 1.1 decodes a bare off as false, which names
// the off provider.
func providerString(v interface{}) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case bool:
		if !v {
			return "off", true
		}
		return "on", true
	case int, int64, uint64, float64:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

func peel(s, sep string) (head, tail string) {
	switch parts := strings.SplitN(s, sep, 2); len(parts) {
	case 1:
		return parts[0], ""
	case 2:
		return parts[0], parts[1]
	default:
		panic("bug")
	}
}
