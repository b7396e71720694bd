// Package metrics holds the Prometheus counters of the ingestion pipeline
// and the index manager.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minutes"

// Metrics groups the pipeline counters.
type Metrics struct {
	ChunksProcessed   prometheus.Counter
	ChunksFailed      prometheus.Counter
	CandidatesDropped prometheus.Counter
	ItemsInserted     prometheus.Counter
	ItemsMerged       prometheus.Counter
	VectorFailures    prometheus.Counter
	SessionsSkipped   prometheus.Counter
	SessionsProcessed prometheus.Counter
	Searches          *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ChunksProcessed:   counter("chunks_processed_total", "Chunks whose candidates were committed."),
		ChunksFailed:      counter("chunks_failed_total", "Chunks whose extraction failed after all retries."),
		CandidatesDropped: counter("candidates_dropped_total", "Malformed candidates dropped before deduplication."),
		ItemsInserted:     counter("items_inserted_total", "Knowledge items written to the indexes for the first time."),
		ItemsMerged:       counter("items_merged_total", "Writes of knowledge items that already existed."),
		VectorFailures:    counter("vector_failures_total", "Items left vector-pending after a failed embedding or vector write."),
		SessionsSkipped:   counter("sessions_skipped_total", "Sessions skipped because their file hash was already processed."),
		SessionsProcessed: counter("sessions_processed_total", "Sessions processed to completion."),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Queries answered, by mode.",
		}, []string{"mode"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ChunksProcessed,
		m.ChunksFailed,
		m.CandidatesDropped,
		m.ItemsInserted,
		m.ItemsMerged,
		m.VectorFailures,
		m.SessionsSkipped,
		m.SessionsProcessed,
		m.Searches,
	}
}

func (m *Metrics) ChunkProcessed() {
	if m != nil {
		m.ChunksProcessed.Inc()
	}
}

func (m *Metrics) ChunkFailed() {
	if m != nil {
		m.ChunksFailed.Inc()
	}
}

func (m *Metrics) Dropped(n int) {
	if m != nil && n > 0 {
		m.CandidatesDropped.Add(float64(n))
	}
}

// ItemWritten counts an insert, or a merge when the item already existed.
func (m *Metrics) ItemWritten(existed bool) {
	if m == nil {
		return
	}
	if existed {
		m.ItemsMerged.Inc()
	} else {
		m.ItemsInserted.Inc()
	}
}

func (m *Metrics) VectorFailed() {
	if m != nil {
		m.VectorFailures.Inc()
	}
}

func (m *Metrics) SessionSkipped() {
	if m != nil {
		m.SessionsSkipped.Inc()
	}
}

func (m *Metrics) SessionProcessed() {
	if m != nil {
		m.SessionsProcessed.Inc()
	}
}

// Searched counts a query in the given mode.
func (m *Metrics) Searched(mode string) {
	if m != nil {
		m.Searches.WithLabelValues(mode).Inc()
	}
}
