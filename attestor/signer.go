// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package attestor

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/p2p"

	"github.com/tempoxyz/bridge/bls"
)

// DefaultCacheSize bounds the signature cache when the config does not.
const DefaultCacheSize = 1024

var (
	ErrUnknownMessage = errors.New("message was not sent on this chain")
	ErrWrongChain     = errors.New("request origin is not this chain")
)

// SentLedger is the slice of the message ledger the signer consults before
// signing. *bridge.Ledger satisfies it.
type SentLedger interface {
	ChainID() uint64
	IsSent(sender common.Address, messageHash common.Hash) (bool, error)
}

// SignerConfig configures a validator's attestation signer.
type SignerConfig struct {
	// Ledger is the local chain's ledger; only messages it recorded as
	// sent are signed.
	Ledger SentLedger

	// Key is this validator's signing key.
	Key *bls.SecretKey

	// CacheSize bounds the response cache. Defaults to DefaultCacheSize.
	CacheSize int

	Logger  log.Logger
	Metrics *Metrics
}

// Signer answers attestation requests with this validator's signature. A
// request is signed only if the local ledger actually recorded the message
// as sent, so a validator never attests to traffic its chain did not
// produce. Responses are cached by request digest.
type Signer struct {
	log     log.Logger
	ledger  SentLedger
	key     *bls.SecretKey
	cache   *lru.Cache[common.Hash, []byte]
	metrics *Metrics
}

func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger must be set")
	}
	if cfg.Key == nil {
		return nil, errors.New("signing key must be set")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[common.Hash, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Signer{
		log:     logger,
		ledger:  cfg.Ledger,
		key:     cfg.Key,
		cache:   cache,
		metrics: cfg.Metrics,
	}, nil
}

// HandleRequest processes one encoded attestation request and returns the
// encoded response.
func (s *Signer) HandleRequest(nodeID ids.NodeID, requestBytes []byte) ([]byte, error) {
	s.metrics.SignatureRequested()

	req, err := ParseAttestationRequest(requestBytes)
	if err != nil {
		return nil, err
	}
	if req.OriginChainID != s.ledger.ChainID() {
		return nil, fmt.Errorf("%w: requested %d, serving %d",
			ErrWrongChain, req.OriginChainID, s.ledger.ChainID())
	}

	digest := req.Digest()
	if signature, ok := s.cache.Get(digest); ok {
		s.metrics.CacheHit()
		return MarshalAttestationResponse(signature)
	}
	s.metrics.CacheMiss()

	sent, err := s.ledger.IsSent(req.Sender, req.MessageHash)
	if err != nil {
		return nil, err
	}
	if !sent {
		return nil, fmt.Errorf("%w: %s from %s", ErrUnknownMessage, req.MessageHash, req.Sender)
	}

	signature, err := s.key.Sign(req.Payload())
	if err != nil {
		return nil, err
	}
	signatureBytes := signature.Bytes()
	s.cache.Add(digest, signatureBytes)
	s.metrics.SignatureIssued()

	s.log.Debug("attestation signed",
		log.Stringer("nodeID", nodeID),
		log.Stringer("messageHash", req.MessageHash),
		log.Uint64("destinationChainID", req.DestinationChainID),
		log.Uint64("epoch", req.Epoch),
	)
	return MarshalAttestationResponse(signatureBytes)
}

var _ p2p.Handler = (*Handler)(nil)

// Handler adapts a Signer to the p2p router.
type Handler struct {
	signer *Signer
}

func NewHandler(signer *Signer) *Handler {
	return &Handler{signer: signer}
}

// Gossip implements p2p.Handler. Attestation requests are not gossiped.
func (*Handler) Gossip(context.Context, ids.NodeID, []byte) {}

// Request implements p2p.Handler by delegating to the signer.
func (h *Handler) Request(
	_ context.Context,
	nodeID ids.NodeID,
	_ time.Time,
	requestBytes []byte,
) ([]byte, *p2p.Error) {
	response, err := h.signer.HandleRequest(nodeID, requestBytes)
	if err != nil {
		return nil, &p2p.Error{
			Code:    500,
			Message: err.Error(),
		}
	}
	return response, nil
}
