package analytics

import "time"

type EventType string

const (
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one completed search. LatencyMs is the wall time
// of the request including any cache lookup.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Total     int       `json:"total"`
	Returned  int       `json:"returned"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
	BoardID   *int64    `json:"board_id,omitempty"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// TypeFor classifies a search outcome. Zero-result searches take priority
// over the cache outcome.
func TypeFor(total int, cacheHit bool) EventType {
	switch {
	case total == 0:
		return EventZeroResult
	case cacheHit:
		return EventCacheHit
	default:
		return EventCacheMiss
	}
}

// Tracker receives completed search events.
type Tracker interface {
	Track(event SearchEvent)
}

// Trackers fans an event out to several trackers.
type Trackers []Tracker

func (ts Trackers) Track(event SearchEvent) {
	for _, t := range ts {
		t.Track(event)
	}
}
