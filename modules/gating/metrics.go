package gating

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
)

const (
	kindLimit   = "limit"
	kindFeature = "feature"

	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"

	// unknownName replaces names from the URL that are not predefined
	unknownName = "unknown"
)

// Metrics counts entitlement decisions made at the HTTP surface.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics registers the decision counter with reg.
// A nil reg yields unregistered collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratplan",
			Subsystem: "entitlement",
			Name:      "decisions_total",
			Help:      "Entitlement decisions by kind, limit or feature name, and outcome.",
		}, []string{"kind", "name", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions)
	}
	return m
}

// Decisions exposes the underlying collector.
func (m *Metrics) Decisions() *prometheus.CounterVec {
	return m.decisions
}

func (m *Metrics) limit(l entitlement.Limit, err error) {
	m.observe(kindLimit, string(l), err)
}

func (m *Metrics) feature(f entitlement.Feature, err error) {
	name := string(f)
	if !f.Known() {
		name = unknownName
	}
	m.observe(kindFeature, name, err)
}

func (m *Metrics) observe(kind, name string, err error) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind, name, outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeAllowed
	case errors.Is(err, entitlement.ErrLimitExceeded), errors.Is(err, entitlement.ErrFeatureNotAvailable):
		return outcomeDenied
	default:
		return outcomeError
	}
}
