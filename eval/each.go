// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package eval

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/aws/thinkbox-magma-sub002/compiler"
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/log"
	"github.com/aws/thinkbox-magma-sub002/metrics"
	"github.com/grailbio/base/traverse"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the default number of elements evaluated by a
// worker at a time.
const DefaultChunkSize = 256

// Options configures parallel evaluation.
type Options struct {
	// Workers is the maximum number of concurrent workers. If zero,
	// runtime.NumCPU() workers are used. A single worker evaluates
	// the elements serially, in order.
	Workers int
	// ChunkSize is the number of consecutive elements evaluated by a
	// worker at a time. If zero, DefaultChunkSize is used.
	ChunkSize int
	// Log receives batch summaries at debug level.
	Log *log.Logger
	// Debug, if non-nil, receives the trace of every element.
	Debug *Debug
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o Options) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return DefaultChunkSize
}

// Each evaluates prog for each record. Records are divided into
// chunks of consecutive elements that are evaluated concurrently; each
// worker uses its own Evaluator. Each returns the first error
// encountered, after which remaining chunks are abandoned. Each
// also stops early if ctx is done.
func Each(ctx context.Context, prog *compiler.Program, records [][]byte, opts Options) (err error) {
	var (
		start   = time.Now()
		workers = opts.workers()
		size    = opts.chunkSize()
		chunks  = (len(records) + size - 1) / size
		mode    = "parallel"
	)
	if workers > chunks {
		workers = chunks
	}
	if workers <= 1 {
		mode = "serial"
	}
	gauge := metrics.GetEvalWorkersGauge(ctx)
	gauge.Add(float64(workers))
	defer func() {
		gauge.Sub(float64(workers))
		if err != nil {
			metrics.GetEvaluationErrorsCountCounter(ctx).Inc()
			opts.Log.Debugf("eval: %d elements: %v", len(records), err)
			return
		}
		metrics.GetElementsEvaluatedCountCounter(ctx).Add(float64(len(records)))
		metrics.ObserveSince(metrics.GetEvalBatchLatencySecondsHistogram(ctx, mode), start)
		opts.Log.Debugf("eval: %d elements in %d chunks (%d workers) in %s", len(records), chunks, workers, time.Since(start))
	}()
	if chunks == 0 {
		return nil
	}
	pool := make(chan *Evaluator, workers)
	for i := 0; i < workers; i++ {
		pool <- New(prog)
	}
	return traverse.Limit(workers).Each(chunks, func(c int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := <-pool
		defer func() { pool <- e }()
		end := (c + 1) * size
		if end > len(records) {
			end = len(records)
		}
		for i := c * size; i < end; i++ {
			var err error
			if opts.Debug != nil {
				tr := new(Trace)
				err = e.EvalDebug(records[i], tr)
				opts.Debug.Add(i, tr)
			} else {
				err = e.Eval(records[i])
			}
			if err != nil {
				return errors.E("eval", fmt.Sprintf("element %d", i), err)
			}
		}
		return nil
	})
}

// Batch is a set of records evaluated by a program.
type Batch struct {
	Program *compiler.Program
	Records [][]byte
	// Debug, if non-nil, receives the traces of the batch's
	// elements.
	Debug *Debug
}

// All evaluates a number of batches concurrently, for example the
// particles and the mesh vertices of a scene. Each batch is evaluated
// by Each with the provided options; log messages are prefixed with
// the batch's index. All returns the first error, and cancels the
// remaining batches when one fails.
func All(ctx context.Context, batches []Batch, opts Options) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range batches {
		b := batches[i]
		o := opts
		o.Debug = b.Debug
		o.Log = opts.Log.Tee(nil, fmt.Sprintf("batch %d: ", i))
		g.Go(func() error {
			return Each(ctx, b.Program, b.Records, o)
		})
	}
	return g.Wait()
}
