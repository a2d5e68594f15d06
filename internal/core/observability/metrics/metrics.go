// Package metrics holds the OpenTelemetry instruments of the frame pipeline.
// Instruments come from the global meter provider, so they are no-ops until
// the host installs one.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/zeusync/replica/internal/core/runtime"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Frame groups the instruments recorded once per rendered frame.
type Frame struct {
	frames        metric.Int64Counter
	duration      metric.Float64Histogram
	touched       metric.Int64Counter
	diffsApplied  metric.Int64Counter
	diffsRejected metric.Int64Counter
	faults        metric.Int64Counter
	discarded     metric.Int64Counter
}

// NewFrame creates the frame instruments.
func NewFrame() (*Frame, error) {
	m := meter()
	f := &Frame{}

	var err error
	if f.frames, err = m.Int64Counter("replica.frames",
		metric.WithDescription("Frames rendered")); err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	if f.duration, err = m.Float64Histogram("replica.frame.duration",
		metric.WithDescription("Wall time spent in the frame pipeline"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating frame duration histogram: %w", err)
	}
	if f.touched, err = m.Int64Counter("replica.entities.touched",
		metric.WithDescription("Entities whose pose changed in a frame")); err != nil {
		return nil, fmt.Errorf("creating touched counter: %w", err)
	}
	if f.diffsApplied, err = m.Int64Counter("replica.diffs.applied",
		metric.WithDescription("Entity diffs merged into metadata")); err != nil {
		return nil, fmt.Errorf("creating applied counter: %w", err)
	}
	if f.diffsRejected, err = m.Int64Counter("replica.diffs.rejected",
		metric.WithDescription("Entity diffs rejected by the reconciler")); err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}
	if f.faults, err = m.Int64Counter("replica.entity.faults",
		metric.WithDescription("Recovered per-entity processing faults")); err != nil {
		return nil, fmt.Errorf("creating faults counter: %w", err)
	}
	if f.discarded, err = m.Int64Counter("replica.assets.discarded",
		metric.WithDescription("Asset loads discarded as stale")); err != nil {
		return nil, fmt.Errorf("creating discarded counter: %w", err)
	}
	return f, nil
}

// MustFrame is NewFrame for callers that cannot recover from a broken meter.
func MustFrame() *Frame {
	f, err := NewFrame()
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) Rendered(ms float64, touched int) {
	ctx := context.Background()
	f.frames.Add(ctx, 1)
	f.duration.Record(ctx, ms)
	if touched > 0 {
		f.touched.Add(ctx, int64(touched))
	}
}

func (f *Frame) DiffApplied() {
	f.diffsApplied.Add(context.Background(), 1)
}

func (f *Frame) DiffRejected(reason string) {
	f.diffsRejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (f *Frame) Fault(stage string) {
	f.faults.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("stage", stage)))
}

func (f *Frame) AssetDiscarded() {
	f.discarded.Add(context.Background(), 1)
}
