package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	StorageRetries     prometheus.Counter
	StorageUnavailable prometheus.Counter
	Registrations      *prometheus.CounterVec
	Conflicts          *prometheus.CounterVec
	CodesIssued        prometheus.Counter
	RecordsExpunged    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StorageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_storage_retries_total",
			Help: "Statements or transactions retried after a transient lock or timeout error",
		}),
		StorageUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_storage_unavailable_total",
			Help: "Operations failed with storage unavailable",
		}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_registrations_total",
			Help: "Successful registrations by entity kind",
		}, []string{"kind"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_conflicts_total",
			Help: "Rejected requests caused by a natural key or state conflict",
		}, []string{"code"}),
		CodesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_codes_issued_total",
			Help: "Payment codes issued",
		}),
		RecordsExpunged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_records_expunged_total",
			Help: "Justice records deleted by expungement",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.StorageRetries,
			m.StorageUnavailable,
			m.Registrations,
			m.Conflicts,
			m.CodesIssued,
			m.RecordsExpunged,
		)
	}
	return m
}

func (m *Metrics) IncStorageRetry() {
	if m == nil {
		return
	}
	m.StorageRetries.Inc()
}

func (m *Metrics) IncStorageUnavailable() {
	if m == nil {
		return
	}
	m.StorageUnavailable.Inc()
}

// IncRegistration counts a committed registration of kind (identity, license, vehicle...).
func (m *Metrics) IncRegistration(kind string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncConflict(code string) {
	if m == nil {
		return
	}
	m.Conflicts.WithLabelValues(code).Inc()
}

func (m *Metrics) IncCodesIssued() {
	if m == nil {
		return
	}
	m.CodesIssued.Inc()
}

func (m *Metrics) AddExpunged(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsExpunged.WithLabelValues(kind).Add(float64(n))
}
