// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the ledger and transfer coordinator. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	messagesSent         prometheus.Counter
	attestationsAccepted prometheus.Counter
	attestationsRejected *prometheus.CounterVec
	keyRotations         prometheus.Counter
	currentEpoch         prometheus.Gauge
	tokensBridged        prometheus.Counter
	tokensClaimed        prometheus.Counter
	transferAmount       prometheus.Histogram
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_messages_sent_total",
			Help: "Number of message hashes recorded as sent",
		}),
		attestationsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_attestations_accepted_total",
			Help: "Number of inbound messages accepted with a valid attestation",
		}),
		attestationsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_attestations_rejected_total",
				Help: "Number of inbound attestations rejected",
			},
			[]string{"reason"},
		),
		keyRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_key_rotations_total",
			Help: "Number of group key rotations applied",
		}),
		currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_current_epoch",
			Help: "Epoch of the current group key",
		}),
		tokensBridged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_tokens_bridged_total",
			Help: "Number of outbound token transfers",
		}),
		tokensClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_tokens_claimed_total",
			Help: "Number of claimed inbound token transfers",
		}),
		transferAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_transfer_amount",
			Help:    "Distribution of bridged token amounts",
			Buckets: prometheus.ExponentialBuckets(1, 10, 12),
		}),
	}

	registerer.MustRegister(m.messagesSent)
	registerer.MustRegister(m.attestationsAccepted)
	registerer.MustRegister(m.attestationsRejected)
	registerer.MustRegister(m.keyRotations)
	registerer.MustRegister(m.currentEpoch)
	registerer.MustRegister(m.tokensBridged)
	registerer.MustRegister(m.tokensClaimed)
	registerer.MustRegister(m.transferAmount)

	return &m
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) AttestationAccepted() {
	if m == nil {
		return
	}
	m.attestationsAccepted.Inc()
}

func (m *Metrics) AttestationRejected(reason string) {
	if m == nil {
		return
	}
	m.attestationsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) KeyRotated(newEpoch uint64) {
	if m == nil {
		return
	}
	m.keyRotations.Inc()
	m.currentEpoch.Set(float64(newEpoch))
}

func (m *Metrics) SetEpoch(epoch uint64) {
	if m == nil {
		return
	}
	m.currentEpoch.Set(float64(epoch))
}

func (m *Metrics) TokensBridged(amount *uint256.Int) {
	if m == nil {
		return
	}
	m.tokensBridged.Inc()
	m.observeAmount(amount)
}

func (m *Metrics) TokensClaimed(amount *uint256.Int) {
	if m == nil {
		return
	}
	m.tokensClaimed.Inc()
	m.observeAmount(amount)
}

func (m *Metrics) observeAmount(amount *uint256.Int) {
	if amount == nil {
		return
	}
	f, _ := new(big.Float).SetInt(amount.ToBig()).Float64()
	m.transferAmount.Observe(f)
}
