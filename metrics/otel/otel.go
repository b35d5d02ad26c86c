// Package otel exports cache.Metrics through an OpenTelemetry meter.
package otel

import (
	"context"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IvanBrykalov/memocache/cache"
)

// ScopeName is the instrumentation scope used when New gets no meter.
const ScopeName = "github.com/IvanBrykalov/memocache"

// Adapter implements cache.Metrics with OTel instruments:
//
//	<prefix>.hits       Int64Counter
//	<prefix>.misses     Int64Counter
//	<prefix>.evictions  Int64Counter, attribute "reason"
//	<prefix>.entries    Int64Gauge
//	<prefix>.cost       Int64Gauge
type Adapter struct {
	hits    metric.Int64Counter
	misses  metric.Int64Counter
	evicts  metric.Int64Counter
	entries metric.Int64Gauge
	cost    metric.Int64Gauge

	attrs   metric.MeasurementOption
	reasons [3]metric.AddOption
}

// New creates the instruments on meter (nil => the global provider's
// meter for ScopeName). attrs are attached to every measurement.
func New(meter metric.Meter, prefix string, attrs ...attribute.KeyValue) (*Adapter, error) {
	if meter == nil {
		meter = otelapi.GetMeterProvider().Meter(ScopeName)
	}
	if prefix == "" {
		prefix = "cache"
	}

	var (
		a   = &Adapter{attrs: metric.WithAttributes(attrs...)}
		err error
	)
	if a.hits, err = meter.Int64Counter(prefix+".hits",
		metric.WithDescription("Cache hits"), metric.WithUnit("{hit}")); err != nil {
		return nil, err
	}
	if a.misses, err = meter.Int64Counter(prefix+".misses",
		metric.WithDescription("Cache misses"), metric.WithUnit("{miss}")); err != nil {
		return nil, err
	}
	if a.evicts, err = meter.Int64Counter(prefix+".evictions",
		metric.WithDescription("Cache evictions by reason"), metric.WithUnit("{entry}")); err != nil {
		return nil, err
	}
	if a.entries, err = meter.Int64Gauge(prefix+".entries",
		metric.WithDescription("Resident entries"), metric.WithUnit("{entry}")); err != nil {
		return nil, err
	}
	if a.cost, err = meter.Int64Gauge(prefix+".cost",
		metric.WithDescription("Total resident cost")); err != nil {
		return nil, err
	}

	for _, r := range []cache.EvictReason{cache.EvictPolicy, cache.EvictTTL, cache.EvictCapacity} {
		kv := append([]attribute.KeyValue{attribute.String("reason", r.String())}, attrs...)
		a.reasons[r] = metric.WithAttributes(kv...)
	}
	return a, nil
}

func (a *Adapter) Hit()  { a.hits.Add(context.Background(), 1, a.attrs) }
func (a *Adapter) Miss() { a.misses.Add(context.Background(), 1, a.attrs) }

func (a *Adapter) Evict(r cache.EvictReason) {
	if r < 0 || int(r) >= len(a.reasons) {
		r = cache.EvictPolicy
	}
	a.evicts.Add(context.Background(), 1, a.reasons[r])
}

func (a *Adapter) Size(entries int, cost int64) {
	a.entries.Record(context.Background(), int64(entries), a.attrs)
	a.cost.Record(context.Background(), cost, a.attrs)
}

var _ cache.Metrics = (*Adapter)(nil)
