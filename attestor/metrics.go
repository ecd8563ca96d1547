// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package attestor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Aggregation result labels.
const (
	resultQuorum   = "quorum"
	resultNoQuorum = "no_quorum"
	resultError    = "error"
)

// Metrics instruments the signer and aggregator. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	signatureRequests   prometheus.Counter
	signaturesIssued    prometheus.Counter
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	aggregations        *prometheus.CounterVec
	aggregationDuration prometheus.Histogram
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		signatureRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attestor_signature_requests_total",
			Help: "Number of attestation requests received",
		}),
		signaturesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attestor_signatures_issued_total",
			Help: "Number of attestation signatures issued",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attestor_signature_cache_hits_total",
			Help: "Number of requests answered from the signature cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attestor_signature_cache_misses_total",
			Help: "Number of requests that missed the signature cache",
		}),
		aggregations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attestor_aggregations_total",
				Help: "Number of aggregation attempts",
			},
			[]string{"result"},
		),
		aggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestor_aggregation_duration_seconds",
			Help:    "Time to collect a quorum attestation",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registerer.MustRegister(m.signatureRequests)
	registerer.MustRegister(m.signaturesIssued)
	registerer.MustRegister(m.cacheHits)
	registerer.MustRegister(m.cacheMisses)
	registerer.MustRegister(m.aggregations)
	registerer.MustRegister(m.aggregationDuration)

	return &m
}

func (m *Metrics) SignatureRequested() {
	if m == nil {
		return
	}
	m.signatureRequests.Inc()
}

func (m *Metrics) SignatureIssued() {
	if m == nil {
		return
	}
	m.signaturesIssued.Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) AggregationFinished(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(result).Inc()
	m.aggregationDuration.Observe(elapsed.Seconds())
}
