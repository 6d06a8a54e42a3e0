// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package prometrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/thinkbox-magma-sub002/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewClient(reg, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := metrics.WithClient(context.Background(), c)
	metrics.GetProgramsCompiledCountCounter(ctx).Inc()
	metrics.GetInstructionsEmittedCountCounter(ctx, "const").Add(2)
	r := c.(*client)
	if got, want := testutil.ToFloat64(r.counters["programs_compiled_count"]), 1.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := testutil.ToFloat64(r.counters["instructions_emitted_count"].WithLabelValues("const")), 2.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if body := w.Body.String(); !strings.Contains(body, "exprflow_programs_compiled_count 1") {
		t.Errorf("metric not served: %s", body)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewClient(reg, "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewClient(reg, "x"); err == nil {
		t.Error("expected registration error")
	}
}
