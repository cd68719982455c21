package shelf

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts browse outcomes. A nil *Metrics records nothing.
type Metrics struct {
	windows    *prometheus.CounterVec
	missing    prometheus.Counter
	duplicates prometheus.Counter
	surplus    prometheus.Counter
	absorbed   *prometheus.CounterVec
}

// NewMetrics creates the browse counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		windows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lccshelf",
			Subsystem: "shelf",
			Name:      "windows_total",
			Help:      "Browse windows assembled, by offset mode and the sides fetched.",
		}, []string{"mode", "direction"}),
		missing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lccshelf",
			Subsystem: "shelf",
			Name:      "missing_slots_total",
			Help:      "Window slots filled with a missing marker.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lccshelf",
			Subsystem: "shelf",
			Name:      "duplicate_slots_total",
			Help:      "Window slots replaced by a duplicate marker.",
		}),
		surplus: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lccshelf",
			Subsystem: "shelf",
			Name:      "surplus_documents_total",
			Help:      "Documents dropped because a lookup returned more than the terms requested.",
		}),
		absorbed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lccshelf",
			Subsystem: "shelf",
			Name:      "absorbed_errors_total",
			Help:      "Collaborator errors logged and treated as empty results.",
		}, []string{"collaborator"}),
	}
	if reg != nil {
		reg.MustRegister(m.windows, m.missing, m.duplicates, m.surplus, m.absorbed)
	}
	return m
}

func (m *Metrics) window(mode, direction string) {
	if m == nil {
		return
	}
	m.windows.WithLabelValues(mode, direction).Inc()
}

func (m *Metrics) missingSlots(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.missing.Add(float64(n))
}

func (m *Metrics) duplicateSlot() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Metrics) surplusDocuments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.surplus.Add(float64(n))
}

func (m *Metrics) absorbedError(collaborator string) {
	if m == nil {
		return
	}
	m.absorbed.WithLabelValues(collaborator).Inc()
}
