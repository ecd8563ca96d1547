// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package attestor

import (
	"context"
	"errors"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tempoxyz/bridge/bls"
)

var errPeerUnreachable = errors.New("peer unreachable")

// memoryNetwork routes attestation requests directly to in-process signers,
// invoking the response callback synchronously. Per-node knobs simulate the
// failure modes a real network produces.
type memoryNetwork struct {
	signers map[ids.NodeID]*Signer

	drop        map[ids.NodeID]bool       // respond with a transport error
	silent      map[ids.NodeID]bool       // never respond
	corrupt     map[ids.NodeID]bool       // respond with a signature over the wrong payload
	duplicate   map[ids.NodeID]bool       // deliver the response twice
	impersonate map[ids.NodeID]ids.NodeID // deliver the response under another node's ID
}

func newMemoryNetwork() *memoryNetwork {
	return &memoryNetwork{
		signers:     make(map[ids.NodeID]*Signer),
		drop:        make(map[ids.NodeID]bool),
		silent:      make(map[ids.NodeID]bool),
		corrupt:     make(map[ids.NodeID]bool),
		duplicate:   make(map[ids.NodeID]bool),
		impersonate: make(map[ids.NodeID]ids.NodeID),
	}
}

func (n *memoryNetwork) Request(
	ctx context.Context,
	nodeIDs set.Set[ids.NodeID],
	requestBytes []byte,
	onResponse func(ctx context.Context, nodeID ids.NodeID, responseBytes []byte, err error),
) error {
	for nodeID := range nodeIDs {
		switch {
		case n.silent[nodeID]:
			continue
		case n.drop[nodeID]:
			onResponse(ctx, nodeID, nil, errPeerUnreachable)
			continue
		case n.corrupt[nodeID]:
			sk, _, err := bls.GenerateKey()
			if err != nil {
				return err
			}
			sig, err := sk.Sign([]byte("unrelated payload"))
			if err != nil {
				return err
			}
			responseBytes, err := MarshalAttestationResponse(sig.Bytes())
			if err != nil {
				return err
			}
			onResponse(ctx, nodeID, responseBytes, nil)
			continue
		}

		responseBytes, err := n.signers[nodeID].HandleRequest(nodeID, requestBytes)
		respondAs := nodeID
		if mapped, ok := n.impersonate[nodeID]; ok {
			respondAs = mapped
		}
		onResponse(ctx, respondAs, responseBytes, err)
		if n.duplicate[nodeID] {
			onResponse(ctx, respondAs, responseBytes, err)
		}
	}
	return nil
}

type aggregationHarness struct {
	validators *ValidatorSet
	network    *memoryNetwork
	aggregator *Aggregator
	ledger     *sentLedgerStub
	req        *AttestationRequest
}

// newAggregationHarness builds one signer per weight, all backed by a shared
// origin ledger that has recorded the harness request's message.
func newAggregationHarness(t *testing.T, weights ...uint64) *aggregationHarness {
	t.Helper()
	require := require.New(t)

	req := testRequest(1)
	ledger := &sentLedgerStub{chainID: 1}
	ledger.record(req.Sender, req.MessageHash)

	network := newMemoryNetwork()
	vdrs := make([]*Validator, len(weights))
	for i, weight := range weights {
		sk, pk, err := bls.GenerateKey()
		require.NoError(err)
		signer, err := NewSigner(SignerConfig{Ledger: ledger, Key: sk})
		require.NoError(err)

		nodeID := ids.GenerateTestNodeID()
		network.signers[nodeID] = signer
		vdrs[i] = &Validator{NodeID: nodeID, PublicKey: pk, Weight: weight}
	}
	vset, err := NewValidatorSet(vdrs)
	require.NoError(err)

	return &aggregationHarness{
		validators: vset,
		network:    network,
		aggregator: NewAggregator(log.NewNoOpLogger(), network, NewMetrics(prometheus.NewRegistry())),
		ledger:     ledger,
		req:        req,
	}
}

// nodeAt returns the node ID at the given canonical validator index.
func (h *aggregationHarness) nodeAt(index int) ids.NodeID {
	return h.validators.Validators()[index].NodeID
}

// verifyAttestation recomputes the aggregate public key from the reported
// signer bits and checks the aggregate signature against it.
func (h *aggregationHarness) verifyAttestation(t *testing.T, att *AggregateAttestation) {
	t.Helper()
	require := require.New(t)

	keys := make([]*bls.PublicKey, 0, h.validators.Len())
	var weight uint64
	for i, v := range h.validators.Validators() {
		if att.Signers.Contains(i) {
			keys = append(keys, v.PublicKey)
			weight += v.Weight
		}
	}
	require.Equal(weight, att.SignedWeight)
	require.GreaterOrEqual(weight, h.validators.RequiredWeight())

	aggregateKey, err := bls.AggregatePublicKeys(keys)
	require.NoError(err)
	require.True(bls.Verify(aggregateKey, h.req.Payload(), att.Signature))
}

func TestAggregateAllSign(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1, 1, 1, 1)
	att, err := h.aggregator.Aggregate(context.Background(), h.validators, h.req)
	require.NoError(err)
	h.verifyAttestation(t, att)
}

func TestAggregateWithUnreachablePeer(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1, 1, 1, 1)
	h.network.drop[h.nodeAt(0)] = true

	att, err := h.aggregator.Aggregate(context.Background(), h.validators, h.req)
	require.NoError(err)
	require.False(att.Signers.Contains(0))
	require.Equal(uint64(3), att.SignedWeight)
	h.verifyAttestation(t, att)
}

func TestAggregateNoQuorum(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1, 1, 1, 1)
	h.network.drop[h.nodeAt(0)] = true
	h.network.drop[h.nodeAt(1)] = true

	_, err := h.aggregator.Aggregate(context.Background(), h.validators, h.req)
	require.ErrorIs(err, ErrQuorumNotReached)
}

func TestAggregateDropsInvalidPartials(t *testing.T) {
	t.Run("quorum survives one bad signature", func(t *testing.T) {
		require := require.New(t)

		h := newAggregationHarness(t, 1, 1, 1, 1)
		h.network.corrupt[h.nodeAt(2)] = true

		att, err := h.aggregator.Aggregate(context.Background(), h.validators, h.req)
		require.NoError(err)
		require.False(att.Signers.Contains(2))
		h.verifyAttestation(t, att)
	})

	t.Run("too many bad signatures", func(t *testing.T) {
		require := require.New(t)

		h := newAggregationHarness(t, 1, 1, 1, 1)
		h.network.corrupt[h.nodeAt(0)] = true
		h.network.corrupt[h.nodeAt(1)] = true

		_, err := h.aggregator.Aggregate(context.Background(), h.validators, h.req)
		require.ErrorIs(err, ErrQuorumNotReached)
	})
}

func TestAggregateDropsUnknownResponder(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1, 1, 1, 1)
	h.network.impersonate[h.nodeAt(0)] = ids.GenerateTestNodeID()

	att, err := h.aggregator.Aggregate(context.Background(), h.validators, h.req)
	require.NoError(err)
	require.False(att.Signers.Contains(0))
	require.Equal(uint64(3), att.SignedWeight)
	h.verifyAttestation(t, att)
}

func TestAggregateIgnoresDuplicateResponses(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1, 1, 1)
	h.network.duplicate[h.nodeAt(0)] = true
	h.network.silent[h.nodeAt(2)] = true

	att, err := h.aggregator.Aggregate(context.Background(), h.validators, h.req)
	require.NoError(err)
	require.True(att.Signers.Contains(0))
	require.True(att.Signers.Contains(1))
	require.False(att.Signers.Contains(2))
	require.Equal(uint64(2), att.SignedWeight)
	h.verifyAttestation(t, att)
}

func TestAggregateWeightedQuorum(t *testing.T) {
	require := require.New(t)

	// One heavyweight validator clears the two-thirds bar alone.
	h := newAggregationHarness(t, 10, 1, 1)
	heavy := -1
	for i, v := range h.validators.Validators() {
		if v.Weight == 10 {
			heavy = i
		} else {
			h.network.drop[v.NodeID] = true
		}
	}
	require.GreaterOrEqual(heavy, 0)

	att, err := h.aggregator.Aggregate(context.Background(), h.validators, h.req)
	require.NoError(err)
	require.True(att.Signers.Contains(heavy))
	require.Equal(uint64(10), att.SignedWeight)
	h.verifyAttestation(t, att)
}

func TestAggregateUnsentMessage(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1, 1, 1)
	unsent := *h.req
	unsent.MessageHash = common.HexToHash("0xffff")

	_, err := h.aggregator.Aggregate(context.Background(), h.validators, &unsent)
	require.ErrorIs(err, ErrQuorumNotReached)
}

type silentClient struct{}

func (silentClient) Request(
	context.Context,
	set.Set[ids.NodeID],
	[]byte,
	func(ctx context.Context, nodeID ids.NodeID, responseBytes []byte, err error),
) error {
	return nil
}

func TestAggregateContextCancelled(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1, 1, 1)
	aggregator := NewAggregator(log.NewNoOpLogger(), silentClient{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := aggregator.Aggregate(ctx, h.validators, h.req)
	require.ErrorIs(err, ErrQuorumNotReached)
	require.ErrorIs(err, context.Canceled)
}

func TestAggregateRequestFailure(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1, 1, 1)
	failing := requestClientFunc(func(
		context.Context,
		set.Set[ids.NodeID],
		[]byte,
		func(ctx context.Context, nodeID ids.NodeID, responseBytes []byte, err error),
	) error {
		return errPeerUnreachable
	})
	aggregator := NewAggregator(log.NewNoOpLogger(), failing, nil)

	_, err := aggregator.Aggregate(context.Background(), h.validators, h.req)
	require.ErrorIs(err, errPeerUnreachable)
}

type requestClientFunc func(
	ctx context.Context,
	nodeIDs set.Set[ids.NodeID],
	requestBytes []byte,
	onResponse func(ctx context.Context, nodeID ids.NodeID, responseBytes []byte, err error),
) error

func (f requestClientFunc) Request(
	ctx context.Context,
	nodeIDs set.Set[ids.NodeID],
	requestBytes []byte,
	onResponse func(ctx context.Context, nodeID ids.NodeID, responseBytes []byte, err error),
) error {
	return f(ctx, nodeIDs, requestBytes, onResponse)
}

func TestAggregateEmptyValidatorSet(t *testing.T) {
	require := require.New(t)

	h := newAggregationHarness(t, 1)
	_, err := h.aggregator.Aggregate(context.Background(), nil, h.req)
	require.ErrorIs(err, ErrNoValidators)
}
