// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package attestor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/p2p"

	"github.com/tempoxyz/bridge/bls"
)

var (
	ErrQuorumNotReached = errors.New("attestation quorum not reached")
	ErrAggregateInvalid = errors.New("aggregate signature failed verification")
)

// RequestClient fans a request out to a set of peers and reports every
// response, or failure, through the callback.
type RequestClient interface {
	Request(
		ctx context.Context,
		nodeIDs set.Set[ids.NodeID],
		requestBytes []byte,
		onResponse func(ctx context.Context, nodeID ids.NodeID, responseBytes []byte, err error),
	) error
}

// ClientAdapter exposes a *p2p.Client as a RequestClient.
type ClientAdapter struct {
	Client *p2p.Client
}

func (a *ClientAdapter) Request(
	ctx context.Context,
	nodeIDs set.Set[ids.NodeID],
	requestBytes []byte,
	onResponse func(ctx context.Context, nodeID ids.NodeID, responseBytes []byte, err error),
) error {
	return a.Client.Request(ctx, nodeIDs, requestBytes, onResponse)
}

// AggregateAttestation is a quorum attestation over one request payload:
// the aggregate signature, the canonical indices of the validators behind
// it, and their combined weight.
type AggregateAttestation struct {
	Signature    *bls.Signature
	Signers      set.Bits
	SignedWeight uint64
}

// Aggregator collects validator signatures into quorum attestations.
type Aggregator struct {
	log     log.Logger
	client  RequestClient
	metrics *Metrics
}

func NewAggregator(logger log.Logger, client RequestClient, metrics *Metrics) *Aggregator {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Aggregator{
		log:     logger,
		client:  client,
		metrics: metrics,
	}
}

type partialResult struct {
	nodeID    ids.NodeID
	index     int
	weight    uint64
	signature *bls.Signature
	err       error
}

// Aggregate requests signatures over req's payload from every validator
// and blocks until quorum weight has signed, every validator has answered,
// or ctx is done. Each partial is verified against its validator's key on
// arrival and the final aggregate is verified against the signers'
// aggregate key before it is returned.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	validators *ValidatorSet,
	req *AttestationRequest,
) (*AggregateAttestation, error) {
	start := time.Now()
	attestation, err := a.aggregate(ctx, validators, req)
	elapsed := time.Since(start)
	switch {
	case err == nil:
		a.metrics.AggregationFinished(resultQuorum, elapsed)
	case errors.Is(err, ErrQuorumNotReached):
		a.metrics.AggregationFinished(resultNoQuorum, elapsed)
	default:
		a.metrics.AggregationFinished(resultError, elapsed)
	}
	return attestation, err
}

func (a *Aggregator) aggregate(
	ctx context.Context,
	validators *ValidatorSet,
	req *AttestationRequest,
) (*AggregateAttestation, error) {
	if validators == nil || validators.Len() == 0 {
		return nil, ErrNoValidators
	}

	payload := req.Payload()

	nodeIDs := set.NewSet[ids.NodeID](validators.Len())
	nodeIDToIndex := make(map[ids.NodeID]int, validators.Len())
	for i, v := range validators.Validators() {
		nodeIDs.Add(v.NodeID)
		nodeIDToIndex[v.NodeID] = i
	}

	// Buffered so late responses never block their callback after this
	// call has returned.
	results := make(chan partialResult, validators.Len())
	handler := &responseHandler{
		validators:    validators,
		nodeIDToIndex: nodeIDToIndex,
		payload:       payload,
		results:       results,
	}

	if err := a.client.Request(ctx, nodeIDs, req.Bytes(), handler.HandleResponse); err != nil {
		return nil, fmt.Errorf("sending attestation request: %w", err)
	}

	required := validators.RequiredWeight()
	signers := set.NewBits()
	signatures := make([]*bls.Signature, 0, validators.Len())
	var signedWeight uint64

	for responded := 0; responded < validators.Len(); responded++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %d of %d weight signed: %w",
				ErrQuorumNotReached, signedWeight, required, ctx.Err())
		case result := <-results:
			if result.err != nil {
				a.log.Debug("dropping response",
					log.Stringer("nodeID", result.nodeID),
					log.Err(result.err),
				)
				continue
			}
			if signers.Contains(result.index) {
				continue
			}
			signers.Add(result.index)
			signatures = append(signatures, result.signature)
			signedWeight += result.weight

			if signedWeight >= required {
				return a.finish(validators, signers, signatures, signedWeight, payload)
			}
		}
	}
	return nil, fmt.Errorf("%w: %d of %d weight signed", ErrQuorumNotReached, signedWeight, required)
}

func (a *Aggregator) finish(
	validators *ValidatorSet,
	signers set.Bits,
	signatures []*bls.Signature,
	signedWeight uint64,
	payload []byte,
) (*AggregateAttestation, error) {
	aggregate, err := bls.AggregateSignatures(signatures)
	if err != nil {
		return nil, err
	}

	keys := make([]*bls.PublicKey, 0, len(signatures))
	for i, v := range validators.Validators() {
		if signers.Contains(i) {
			keys = append(keys, v.PublicKey)
		}
	}
	aggregateKey, err := bls.AggregatePublicKeys(keys)
	if err != nil {
		return nil, err
	}
	if !bls.Verify(aggregateKey, payload, aggregate) {
		return nil, ErrAggregateInvalid
	}

	return &AggregateAttestation{
		Signature:    aggregate,
		Signers:      signers,
		SignedWeight: signedWeight,
	}, nil
}

type responseHandler struct {
	validators    *ValidatorSet
	nodeIDToIndex map[ids.NodeID]int
	payload       []byte
	results       chan partialResult
}

// HandleResponse verifies one validator's response and forwards the
// outcome to the aggregation loop.
func (h *responseHandler) HandleResponse(
	_ context.Context,
	nodeID ids.NodeID,
	responseBytes []byte,
	err error,
) {
	index, ok := h.nodeIDToIndex[nodeID]
	if !ok {
		h.results <- partialResult{nodeID: nodeID, err: fmt.Errorf("response from unknown node %s", nodeID)}
		return
	}
	validator := h.validators.Validators()[index]

	if err != nil {
		h.results <- partialResult{nodeID: nodeID, index: index, err: err}
		return
	}
	response, err := ParseAttestationResponse(responseBytes)
	if err != nil {
		h.results <- partialResult{nodeID: nodeID, index: index, err: err}
		return
	}
	signature, err := bls.SignatureFromBytes(response.Signature)
	if err != nil {
		h.results <- partialResult{nodeID: nodeID, index: index, err: err}
		return
	}
	if !bls.Verify(validator.PublicKey, h.payload, signature) {
		h.results <- partialResult{nodeID: nodeID, index: index, err: errors.New("invalid partial signature")}
		return
	}

	h.results <- partialResult{
		nodeID:    nodeID,
		index:     index,
		weight:    validator.Weight,
		signature: signature,
	}
}
