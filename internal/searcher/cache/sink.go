package cache

import "time"

// MetricsSink receives cache outcomes. Calls are fire-and-forget.
type MetricsSink interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordSearchTime(d time.Duration)
}

// MultiSink fans every event out to each sink in order.
type MultiSink []MetricsSink

func (m MultiSink) RecordCacheHit() {
	for _, s := range m {
		s.RecordCacheHit()
	}
}

func (m MultiSink) RecordCacheMiss() {
	for _, s := range m {
		s.RecordCacheMiss()
	}
}

func (m MultiSink) RecordSearchTime(d time.Duration) {
	for _, s := range m {
		s.RecordSearchTime(d)
	}
}

type noopSink struct{}

func (noopSink) RecordCacheHit()                {}
func (noopSink) RecordCacheMiss()               {}
func (noopSink) RecordSearchTime(time.Duration) {}
