// Package prom exports cache.Metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/memocache/cache"
)

// Adapter implements cache.Metrics with Prometheus counters and gauges.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	sizeEnt  prometheus.Gauge
	sizeCost prometheus.Gauge
}

// New registers the adapter's collectors with reg (nil => the default
// registerer) under ns_sub_*. constLabels may be nil.
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels}
	}
	a := &Adapter{
		hits:     prometheus.NewCounter(prometheus.CounterOpts(opts("hits_total", "Cache hits"))),
		misses:   prometheus.NewCounter(prometheus.CounterOpts(opts("misses_total", "Cache misses"))),
		evicts:   prometheus.NewCounterVec(prometheus.CounterOpts(opts("evictions_total", "Cache evictions by reason")), []string{"reason"}),
		sizeEnt:  prometheus.NewGauge(prometheus.GaugeOpts(opts("size_entries", "Resident entries"))),
		sizeCost: prometheus.NewGauge(prometheus.GaugeOpts(opts("size_cost", "Total resident cost"))),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost)
	return a
}

func (a *Adapter) Hit()  { a.hits.Inc() }
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict counts an eviction labelled with its reason.
func (a *Adapter) Evict(r cache.EvictReason) { a.evicts.WithLabelValues(r.String()).Inc() }

func (a *Adapter) Size(entries int, cost int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeCost.Set(float64(cost))
}

var _ cache.Metrics = (*Adapter)(nil)
