package pixel

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats tracks process-wide conversion delivery outcomes. Telemetry failures
// never propagate, so this accessor is the only place they are observable.
type Stats struct {
	mu          sync.Mutex
	sent        int64
	failed      int64
	lastStatus  string
	lastError   string
	lastEventAt time.Time

	sentCounter   prometheus.Counter
	failedCounter prometheus.Counter
	lastDelivery  prometheus.Gauge
}

// StatsSnapshot is the read-side view of delivery stats.
type StatsSnapshot struct {
	Sent        int64     `json:"sent"`
	Failed      int64     `json:"failed"`
	LastStatus  string    `json:"last_status,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
}

// NewStats registers the delivery metrics on the provided registerer.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{}
	if reg == nil {
		return s
	}
	s.sentCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conversion_events_sent_total",
		Help: "Conversion events delivered to the graph API.",
	})
	s.failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conversion_events_failed_total",
		Help: "Conversion events abandoned after exhausting retries.",
	})
	s.lastDelivery = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conversion_last_delivery_timestamp_seconds",
		Help: "Unix time of the most recent delivery attempt outcome.",
	})
	reg.MustRegister(s.sentCounter, s.failedCounter, s.lastDelivery)
	return s
}

func (s *Stats) RecordSent(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	s.lastStatus = "sent"
	s.lastError = ""
	s.lastEventAt = now
	if s.sentCounter != nil {
		s.sentCounter.Inc()
	}
	if s.lastDelivery != nil {
		s.lastDelivery.Set(float64(now.Unix()))
	}
}

func (s *Stats) RecordFailure(now time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.lastStatus = "failed"
	if err != nil {
		s.lastError = err.Error()
	}
	s.lastEventAt = now
	if s.failedCounter != nil {
		s.failedCounter.Inc()
	}
	if s.lastDelivery != nil {
		s.lastDelivery.Set(float64(now.Unix()))
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Sent:        s.sent,
		Failed:      s.failed,
		LastStatus:  s.lastStatus,
		LastError:   s.lastError,
		LastEventAt: s.lastEventAt,
	}
}
