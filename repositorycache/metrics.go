package repositorycache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/goliatone/go-worldstore/repositorycache"

// Metrics counts identity cache traffic. One instance is shared by every
// Repository of a store; each Repository tags its measurements with its kind.
type Metrics struct {
	// Hits counts Get and GetMany keys served from the cache.
	Hits metric.Int64Counter

	// Misses counts keys that had to be loaded.
	Misses metric.Int64Counter

	// Loads counts loader invocations (one per Load, one per LoadMany).
	Loads metric.Int64Counter

	// LoadErrors counts loader invocations that returned an error.
	LoadErrors metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Hits, err = m.Int64Counter("worldstore.cache.hits",
		metric.WithDescription("Identity cache lookups served without storage access, by kind."),
	); err != nil {
		return nil, err
	}
	if met.Misses, err = m.Int64Counter("worldstore.cache.misses",
		metric.WithDescription("Identity cache lookups that required a load, by kind."),
	); err != nil {
		return nil, err
	}
	if met.Loads, err = m.Int64Counter("worldstore.cache.loads",
		metric.WithDescription("Loader invocations, by kind."),
	); err != nil {
		return nil, err
	}
	if met.LoadErrors, err = m.Int64Counter("worldstore.cache.load_errors",
		metric.WithDescription("Loader invocations that failed, by kind."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// GlobalMetrics builds Metrics on the global OpenTelemetry provider.
func GlobalMetrics() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

// recorder binds Metrics to one kind. A nil recorder records nothing.
type recorder struct {
	m    *Metrics
	opts metric.MeasurementOption
}

func newRecorder(m *Metrics, kind string) *recorder {
	if m == nil {
		return nil
	}
	return &recorder{m: m, opts: metric.WithAttributes(attribute.String("kind", kind))}
}

func (r *recorder) hits(ctx context.Context, n int) {
	if r == nil || n == 0 {
		return
	}
	r.m.Hits.Add(ctx, int64(n), r.opts)
}

func (r *recorder) misses(ctx context.Context, n int) {
	if r == nil || n == 0 {
		return
	}
	r.m.Misses.Add(ctx, int64(n), r.opts)
}

func (r *recorder) load(ctx context.Context, err error) {
	if r == nil {
		return
	}
	r.m.Loads.Add(ctx, 1, r.opts)
	if err != nil {
		r.m.LoadErrors.Add(ctx, 1, r.opts)
	}
}
