// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"testing"
)

func panics(f func()) (ok bool) {
	defer func() {
		ok = recover() != nil
	}()
	f()
	return
}

func TestUndeclared(t *testing.T) {
	ctx := WithClient(context.Background(), NopClient)
	if !panics(func() { getCounter(ctx, "bogus_count", nil) }) {
		t.Error("expected panic for undeclared counter")
	}
	if !panics(func() { getHistogram(ctx, "eval_batch_latency_seconds", nil) }) {
		t.Error("expected panic for missing labels")
	}
	if panics(func() { getGauge(ctx, "eval_workers", nil) }) {
		t.Error("unexpected panic for declared gauge")
	}
}

func TestDiscard(t *testing.T) {
	off := context.Background()
	nop := WithClient(off, NopClient)
	for _, ctx := range []context.Context{off, nop} {
		if got := getCounter(ctx, "programs_compiled_count", nil); got != Counter(discard) {
			t.Errorf("got %v, want discarding counter", got)
		}
		if got := getGauge(ctx, "eval_workers", nil); got != Gauge(discard) {
			t.Errorf("got %v, want discarding gauge", got)
		}
		if got := getHistogram(ctx, "compile_latency_seconds", nil); got != Histogram(discard) {
			t.Errorf("got %v, want discarding histogram", got)
		}
	}
	if WithClient(off, nil) != off {
		t.Error("nil client should leave the context unchanged")
	}
}
