package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry tracks pipeline metrics. All methods are nil-safe so callers can
// run without metrics wired (tests, one-off tools).
type Telemetry struct {
	logger *log.Logger

	researchTotal *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	eventsTotal   *prometheus.CounterVec
	chunksIndexed prometheus.Counter
}

func New(logger *log.Logger) *Telemetry {
	return NewWithRegistry(logger, prometheus.DefaultRegisterer)
}

func NewWithRegistry(logger *log.Logger, reg prometheus.Registerer) *Telemetry {
	if logger == nil {
		logger = log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags)
	}
	t := &Telemetry{
		logger: logger,
		researchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_sessions_total",
			Help: "Research sessions by terminal status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deepresearch_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_events_total",
			Help: "Events emitted to research streams by type.",
		}, []string{"type"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepresearch_chunks_indexed_total",
			Help: "Chunks written to the retrieval store.",
		}),
	}
	for _, c := range []prometheus.Collector{t.researchTotal, t.stageDuration, t.eventsTotal, t.chunksIndexed} {
		if err := reg.Register(c); err != nil {
			logger.Printf("metric registration failed: %v", err)
		}
	}
	return t
}

func (t *Telemetry) RecordResearch(status string, d time.Duration) {
	if t == nil {
		return
	}
	t.researchTotal.WithLabelValues(status).Inc()
}

func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (t *Telemetry) RecordEvent(typ string) {
	if t == nil {
		return
	}
	t.eventsTotal.WithLabelValues(typ).Inc()
}

func (t *Telemetry) AddChunks(n int) {
	if t == nil || n <= 0 {
		return
	}
	t.chunksIndexed.Add(float64(n))
}
