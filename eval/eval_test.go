// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package eval_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aws/thinkbox-magma-sub002/channel"
	"github.com/aws/thinkbox-magma-sub002/compiler"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/eval"
	"github.com/aws/thinkbox-magma-sub002/flow"
	"github.com/aws/thinkbox-magma-sub002/log"
	"github.com/aws/thinkbox-magma-sub002/metrics"
	_ "github.com/aws/thinkbox-magma-sub002/ops"
	"github.com/aws/thinkbox-magma-sub002/values"
	"github.com/stretchr/testify/require"
)

// scale compiles a program that multiplies each particle's density by
// factor and writes the particle's position scaled by its density to
// its velocity. It returns the program and the ID of the node that
// computes the new density.
func scale(t *testing.T, factor float32) (*compiler.Program, flow.ID) {
	t.Helper()
	g := flow.New()
	create := func(typ string) flow.ID {
		id, err := g.Create(typ, flow.InvalidID)
		require.NoError(t, err)
		return id
	}
	connect := func(dst flow.ID, i int, src flow.ID) {
		require.NoError(t, g.SetInput(dst, i, flow.Socket{Node: src}))
	}
	channelNode := func(typ, name string) flow.ID {
		id := create(typ)
		require.NoError(t, g.SetProperty(id, flow.PropChannelName, name))
		return id
	}
	density := channelNode(flow.TypeInputChannel, channel.Density)
	mul := create("Multiply")
	connect(mul, 0, density)
	require.NoError(t, g.SetDefault(mul, 1, values.Float(factor)))
	connect(channelNode(flow.TypeOutput, channel.Density), 0, mul)
	vel := create("Multiply")
	connect(vel, 0, channelNode(flow.TypeInputChannel, channel.Position))
	connect(vel, 1, mul)
	connect(channelNode(flow.TypeOutput, channel.Velocity), 0, vel)
	prog, err := compiler.Compile(context.Background(), g, channel.Particle(), nil)
	require.NoError(t, err)
	return prog, mul
}

func particles(t *testing.T, n int) [][]byte {
	t.Helper()
	layout := channel.Particle()
	records := make([][]byte, n)
	for i := range records {
		records[i] = layout.NewRecord()
		require.NoError(t, channel.Set(layout, records[i], channel.Density, values.Float(float32(i))))
		require.NoError(t, channel.Set(layout, records[i], channel.Position, values.Vec3(1, 0, -1)))
	}
	return records
}

func check(t *testing.T, records [][]byte, factor float32) {
	t.Helper()
	layout := channel.Particle()
	for i, rec := range records {
		d := float32(i) * factor
		v, err := channel.Get(layout, rec, channel.Density)
		require.NoError(t, err)
		if got, want := v, values.Float(d); got != want {
			t.Fatalf("element %d: got %v, want %v", i, got, want)
		}
		v, err = channel.Get(layout, rec, channel.Velocity)
		require.NoError(t, err)
		if got, want := v, values.Vec3(d, 0, -d); got != want {
			t.Fatalf("element %d: got %v, want %v", i, got, want)
		}
	}
}

func TestEval(t *testing.T) {
	prog, _ := scale(t, 2)
	e := eval.New(prog)
	records := particles(t, 10)
	for _, rec := range records {
		require.NoError(t, e.Eval(rec))
	}
	check(t, records, 2)
	if err := e.Eval(make([]byte, 3)); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected Invalid, got %v", err)
	}
}

func TestEach(t *testing.T) {
	prog, _ := scale(t, 3)
	for _, opts := range []eval.Options{
		{Workers: 1},
		{Workers: 4, ChunkSize: 7},
		{},
	} {
		records := particles(t, 1000)
		require.NoError(t, eval.Each(context.Background(), prog, records, opts))
		check(t, records, 3)
	}
	require.NoError(t, eval.Each(context.Background(), prog, nil, eval.Options{}))
}

func TestEachError(t *testing.T) {
	prog, _ := scale(t, 1)
	records := particles(t, 100)
	records[57] = records[57][:4]
	err := eval.Each(context.Background(), prog, records, eval.Options{Workers: 4, ChunkSize: 10})
	if !errors.Is(errors.Invalid, err) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	if got, want := errors.Recover(err).Arg, []string{"element 57"}; len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEachCanceled(t *testing.T) {
	prog, _ := scale(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := eval.Each(ctx, prog, particles(t, 10), eval.Options{}); err != context.Canceled {
		t.Errorf("got %v, want %v", err, context.Canceled)
	}
}

func TestDebugStats(t *testing.T) {
	prog, mul := scale(t, 2)
	var debug eval.Debug
	records := particles(t, 5)
	require.NoError(t, eval.Each(context.Background(), prog, records, eval.Options{Workers: 2, ChunkSize: 2, Debug: &debug}))
	if got, want := len(debug.Elements()), 5; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	tr, ok := debug.Trace(3)
	require.True(t, ok)
	if v, _ := tr.Value(mul, 0); v != values.Float(6) {
		t.Errorf("got %v, want %v", v, values.Float(6))
	}
	stats, ok := debug.Stats(mul, 0)
	require.True(t, ok)
	require.Equal(t, 5, stats.N)
	require.Equal(t, []float64{0}, stats.Min)
	require.Equal(t, []float64{4}, stats.Mean)
	require.Equal(t, []float64{8}, stats.Max)
	if _, ok := debug.Stats(flow.ID(1000), 0); ok {
		t.Error("expected no stats for unknown node")
	}
}

type logBuffer struct {
	mu       sync.Mutex
	messages []string
}

func (b *logBuffer) Output(calldepth int, s string) error {
	b.mu.Lock()
	b.messages = append(b.messages, s)
	b.mu.Unlock()
	return nil
}

func (b *logBuffer) has(prefix string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.messages {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func TestAll(t *testing.T) {
	p2, _ := scale(t, 2)
	p5, _ := scale(t, 5)
	a, b := particles(t, 100), particles(t, 33)
	client := metrics.NewMemClient()
	ctx := metrics.WithClient(context.Background(), client)
	var logs logBuffer
	err := eval.All(ctx, []eval.Batch{
		{Program: p2, Records: a},
		{Program: p5, Records: b},
	}, eval.Options{Workers: 3, ChunkSize: 16, Log: log.New(&logs, log.DebugLevel)})
	require.NoError(t, err)
	for _, prefix := range []string{"batch 0: eval: 100 elements", "batch 1: eval: 33 elements"} {
		if !logs.has(prefix) {
			t.Errorf("no log message with prefix %q", prefix)
		}
	}
	check(t, a, 2)
	check(t, b, 5)
	if got, want := client.Value("elements_evaluated_count"), 133.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := client.Value("eval_workers"), 0.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := client.Count(metrics.Key("eval_batch_latency_seconds", map[string]string{"mode": "parallel"})), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
