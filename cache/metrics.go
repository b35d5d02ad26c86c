package cache

// NoopMetrics discards every signal.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict(EvictReason) {}
func (NoopMetrics) Size(int, int64)   {}

var _ Metrics = NoopMetrics{}

// Stats is a point-in-time view of the cache's own counters, kept
// regardless of the configured Metrics.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Cost      int64
}
