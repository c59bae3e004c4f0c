// Package trace runs ground-trace computations for catalog selections: a
// fixed-size worker pool, per-satellite failure collection, and
// last-request-wins cancellation for interactive callers.
package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/metrics"
	"github.com/jakifasty/orbiteye/internal/orbit"
	"github.com/jakifasty/orbiteye/internal/tle"
)

const tracerName = "github.com/jakifasty/orbiteye/internal/trace"

// Computer produces the ground trace of one satellite. *orbit.Sampler and
// the trace cache implement it.
type Computer interface {
	GroundTraceAt(ctx context.Context, sat *catalog.Satellite, step time.Duration, ref time.Time) (*orbit.Trace, error)
}

// Failure records a satellite whose trace could not be computed.
type Failure struct {
	SatelliteID string
	Err         error
}

func (f Failure) Error() string {
	return fmt.Sprintf("satellite %s: %v", f.SatelliteID, f.Err)
}

// Outcome is the result for one satellite of a batch. Exactly one of Trace
// and Failure is set. Index is the satellite's position in the batch input.
type Outcome struct {
	Index   int
	Trace   *orbit.Trace
	Failure *Failure
}

// Result collects a finished batch. Traces and Failures follow input order.
type Result struct {
	Traces   []*orbit.Trace
	Failures []Failure
}

type traceJob struct {
	index int
	sat   *catalog.Satellite
}

// WorkerPool manages a fixed number of goroutines for parallel trace
// computation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
	tracer  oteltrace.Tracer
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// Stream computes traces for sats and delivers each outcome as soon as it
// is ready, in completion order. The channel is closed once every satellite
// has been handled or ctx is done; callers must drain it or cancel ctx.
func (wp *WorkerPool) Stream(ctx context.Context, c Computer, sats []catalog.Satellite, step time.Duration, ref time.Time) <-chan Outcome {
	jobs := make(chan traceJob, wp.workers*2)
	out := make(chan Outcome, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				o := wp.traceSingle(ctx, c, job, step, ref)
				select {
				case out <- o:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range sats {
			select {
			case jobs <- traceJob{index: i, sat: &sats[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// TraceBatch computes traces for every satellite in sats. Per-satellite
// failures are collected in the result and never abort the batch. When ctx
// ends before the batch completes, TraceBatch returns ctx's error and no
// partial result.
func (wp *WorkerPool) TraceBatch(ctx context.Context, c Computer, sats []catalog.Satellite, step time.Duration, ref time.Time) (*Result, error) {
	ctx, span := wp.tracer.Start(ctx, "trace.batch", oteltrace.WithAttributes(
		attribute.Int("batch.size", len(sats)),
		attribute.Int64("trace.step_ms", step.Milliseconds()),
	))
	defer span.End()

	metrics.RecordBatch(len(sats))
	if len(sats) == 0 {
		return &Result{Traces: []*orbit.Trace{}, Failures: []Failure{}}, nil
	}

	outcomes := make([]Outcome, 0, len(sats))
	for o := range wp.Stream(ctx, c, sats, step, ref) {
		outcomes = append(outcomes, o)
	}
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled")
		return nil, err
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })
	res := &Result{
		Traces:   make([]*orbit.Trace, 0, len(outcomes)),
		Failures: []Failure{},
	}
	for _, o := range outcomes {
		if o.Failure != nil {
			res.Failures = append(res.Failures, *o.Failure)
			continue
		}
		res.Traces = append(res.Traces, o.Trace)
	}

	span.SetAttributes(
		attribute.Int("batch.traces", len(res.Traces)),
		attribute.Int("batch.failures", len(res.Failures)),
	)
	if len(res.Failures) > 0 {
		wp.logger.Info("trace batch completed with failures",
			"satellites", len(sats),
			"traces", len(res.Traces),
			"failures", len(res.Failures),
		)
	}
	return res, nil
}

// traceSingle computes one trace and records its metrics and span.
func (wp *WorkerPool) traceSingle(ctx context.Context, c Computer, job traceJob, step time.Duration, ref time.Time) Outcome {
	ctx, span := wp.tracer.Start(ctx, "trace.satellite", oteltrace.WithAttributes(
		attribute.String("satellite.id", job.sat.ID),
		attribute.Int("satellite.norad_id", job.sat.NORADID),
	))
	defer span.End()

	tr, err := computeOne(ctx, c, job.sat, step, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, context.Canceled) {
			wp.logger.Warn("trace failed",
				"satellite_id", job.sat.ID,
				"norad_id", job.sat.NORADID,
				"error", err,
			)
		}
		return Outcome{Index: job.index, Failure: &Failure{SatelliteID: job.sat.ID, Err: err}}
	}
	span.SetAttributes(
		attribute.String("trace.mode", tr.Mode.String()),
		attribute.Int("trace.points", len(tr.Points)),
	)
	return Outcome{Index: job.index, Trace: tr}
}

// computeOne runs c and records the outcome metric.
func computeOne(ctx context.Context, c Computer, sat *catalog.Satellite, step time.Duration, ref time.Time) (*orbit.Trace, error) {
	start := time.Now()
	tr, err := c.GroundTraceAt(ctx, sat, step, ref)
	if err != nil {
		metrics.RecordTrace("", outcomeOf(err), time.Since(start))
		return nil, err
	}
	metrics.RecordTrace(tr.Mode.String(), metrics.OutcomeOK, time.Since(start))
	return tr, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, tle.ErrMalformedElements):
		return metrics.OutcomeMalformed
	case errors.Is(err, orbit.ErrMissingElements):
		return metrics.OutcomeMissing
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeError
	}
}
