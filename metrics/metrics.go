// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
)

// The metrics emitted by the compiler and the evaluator. Every metric
// must be declared here before it is used: getters panic on
// undeclared names.
var (
	Counters = map[string]counterOpts{
		"elements_evaluated_count": {
			Help: "Count of evaluated elements.",
		},
		"evaluation_errors_count": {
			Help: "Count of failed element evaluations.",
		},
		"instructions_emitted_count": {
			Help:   "Count of emitted instructions.",
			Labels: []string{"op"},
		},
		"programs_compiled_count": {
			Help: "Count of compiled programs.",
		},
		"programs_failed_count": {
			Help:   "Count of failed compilations.",
			Labels: []string{"kind"},
		},
	}
	Gauges = map[string]gaugeOpts{
		"eval_workers": {
			Help: "Number of active evaluation workers.",
		},
	}
	Histograms = map[string]histogramOpts{
		"compile_latency_seconds": {
			Help:    "Compilation latency in seconds.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		},
		"eval_batch_latency_seconds": {
			Help:    "Batch evaluation latency in seconds.",
			Labels:  []string{"mode"},
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10},
		},
	}
)

// GetElementsEvaluatedCountCounter returns a Counter to set metric elements_evaluated_count (count of evaluated elements).
func GetElementsEvaluatedCountCounter(ctx context.Context) Counter {
	return getCounter(ctx, "elements_evaluated_count", nil)
}

// GetEvaluationErrorsCountCounter returns a Counter to set metric evaluation_errors_count (count of failed element evaluations).
func GetEvaluationErrorsCountCounter(ctx context.Context) Counter {
	return getCounter(ctx, "evaluation_errors_count", nil)
}

// GetInstructionsEmittedCountCounter returns a Counter to set metric instructions_emitted_count (count of emitted instructions).
func GetInstructionsEmittedCountCounter(ctx context.Context, op string) Counter {
	return getCounter(ctx, "instructions_emitted_count", map[string]string{"op": op})
}

// GetProgramsCompiledCountCounter returns a Counter to set metric programs_compiled_count (count of compiled programs).
func GetProgramsCompiledCountCounter(ctx context.Context) Counter {
	return getCounter(ctx, "programs_compiled_count", nil)
}

// GetProgramsFailedCountCounter returns a Counter to set metric programs_failed_count (count of failed compilations).
func GetProgramsFailedCountCounter(ctx context.Context, kind string) Counter {
	return getCounter(ctx, "programs_failed_count", map[string]string{"kind": kind})
}

// GetEvalWorkersGauge returns a Gauge to set metric eval_workers (number of active evaluation workers).
func GetEvalWorkersGauge(ctx context.Context) Gauge {
	return getGauge(ctx, "eval_workers", nil)
}

// GetCompileLatencySecondsHistogram returns a Histogram to set metric compile_latency_seconds (compilation latency in seconds).
func GetCompileLatencySecondsHistogram(ctx context.Context) Histogram {
	return getHistogram(ctx, "compile_latency_seconds", nil)
}

// GetEvalBatchLatencySecondsHistogram returns a Histogram to set metric eval_batch_latency_seconds (batch evaluation latency in seconds).
func GetEvalBatchLatencySecondsHistogram(ctx context.Context, mode string) Histogram {
	return getHistogram(ctx, "eval_batch_latency_seconds", map[string]string{"mode": mode})
}
