// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/tempoxyz/bridge/bls"
	"github.com/tempoxyz/bridge/store"
)

// Rejection reasons reported through metrics.
const (
	rejectMalformedSignature = "malformed_signature"
	rejectUnknownEpoch       = "unknown_epoch"
	rejectInvalidSignature   = "invalid_signature"
)

// LedgerConfig configures a message attestation ledger.
type LedgerConfig struct {
	// ChainID is the local chain this ledger is scoped to. Attestations are
	// only valid if signed for this chain as the destination.
	ChainID uint64

	// Owner may rotate keys, pause and transfer ownership.
	Owner common.Address

	// InitialEpoch and InitialGroupKey seed the group key window. Ignored
	// when DB already holds a persisted window.
	InitialEpoch    uint64
	InitialGroupKey []byte

	// DB defaults to an in-memory database.
	DB database.Database

	Emitter Emitter
	Logger  log.Logger
	Metrics *Metrics

	// Clock supplies receivedAt timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// Ledger is the chain-scoped message attestation ledger: an append-only
// record of locally sent message hashes and of remote message hashes
// accepted under a valid group key attestation. One operation runs at a
// time; a failed operation leaves no partial state.
type Ledger struct {
	lock    sync.RWMutex
	chainID uint64
	state   *store.State
	admin   *Admin
	keys    *GroupKeyStore
	emitter Emitter
	log     log.Logger
	metrics *Metrics
	clock   func() time.Time
}

// NewLedger builds a ledger, seeding owner and group key on first use.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	db := cfg.DB
	if db == nil {
		db = memdb.New()
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	state := store.New(db)
	admin, err := NewAdmin(state, cfg.Owner)
	if err != nil {
		state.Abort()
		return nil, err
	}
	keys, err := NewGroupKeyStore(state, cfg.InitialEpoch, cfg.InitialGroupKey)
	if err != nil {
		state.Abort()
		return nil, err
	}
	if err := state.Commit(); err != nil {
		state.Abort()
		return nil, err
	}

	epoch, err := keys.CurrentEpoch()
	if err != nil {
		return nil, err
	}
	cfg.Metrics.SetEpoch(epoch)

	return &Ledger{
		chainID: cfg.ChainID,
		state:   state,
		admin:   admin,
		keys:    keys,
		emitter: emitter,
		log:     logger,
		metrics: cfg.Metrics,
		clock:   clock,
	}, nil
}

// ChainID returns the local chain ID the ledger is scoped to.
func (l *Ledger) ChainID() uint64 { return l.chainID }

// Send records messageHash as sent by sender toward destinationChainID.
// Rejected while paused; each (sender, hash) pair is recorded at most once.
func (l *Ledger) Send(sender common.Address, messageHash common.Hash, destinationChainID uint64) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if messageHash == (common.Hash{}) {
		return ErrZeroMessageHash
	}
	if err := l.admin.RequireNotPaused(); err != nil {
		return err
	}
	sent, err := l.state.HasSent(sender, messageHash)
	if err != nil {
		return err
	}
	if sent {
		return fmt.Errorf("%w: %s from %s", ErrMessageAlreadySent, messageHash, sender)
	}

	if err := l.state.PutSent(sender, messageHash); err != nil {
		l.state.Abort()
		return err
	}
	if err := l.commit(); err != nil {
		return err
	}

	l.metrics.MessageSent()
	l.emitter.Emit(MessageSent{
		Sender:             sender,
		MessageHash:        messageHash,
		DestinationChainID: destinationChainID,
	})
	l.log.Debug("message sent",
		log.Stringer("sender", sender),
		log.Stringer("messageHash", messageHash),
		log.Uint64("destinationChainID", destinationChainID),
	)
	return nil
}

// ReceiveAttested accepts messageHash as sent by sender on originChainID,
// provided signature is a valid group key attestation for this chain under
// epoch. Resubmitting an already received message succeeds without touching
// state. ReceiveAttested is deliberately not gated on pause: freezing
// attestations would strand in-flight transfers, while claiming them is
// already frozen.
func (l *Ledger) ReceiveAttested(
	originChainID uint64,
	sender common.Address,
	messageHash common.Hash,
	epoch uint64,
	signature []byte,
) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	sig, err := bls.SignatureFromBytes(signature)
	if err != nil {
		l.metrics.AttestationRejected(rejectMalformedSignature)
		return err
	}

	existing, err := l.state.ReceivedAt(originChainID, sender, messageHash)
	if err != nil {
		return err
	}
	if existing != 0 {
		return nil
	}

	key, err := l.keys.KeyForEpoch(epoch)
	if err != nil {
		l.metrics.AttestationRejected(rejectUnknownEpoch)
		return err
	}

	payload := AttestationPayload(originChainID, sender, messageHash, l.chainID, epoch)
	if !bls.Verify(key, payload, sig) {
		l.metrics.AttestationRejected(rejectInvalidSignature)
		return fmt.Errorf("%w: %s from chain %d", ErrInvalidAttestation, messageHash, originChainID)
	}

	receivedAt := uint64(l.clock().Unix())
	if receivedAt == 0 {
		receivedAt = 1
	}
	if err := l.state.PutReceivedAt(originChainID, sender, messageHash, receivedAt); err != nil {
		l.state.Abort()
		return err
	}
	if err := l.commit(); err != nil {
		return err
	}

	l.metrics.AttestationAccepted()
	l.emitter.Emit(MessageReceived{
		OriginChainID: originChainID,
		Sender:        sender,
		MessageHash:   messageHash,
		Epoch:         epoch,
		ReceivedAt:    receivedAt,
	})
	l.log.Debug("message received",
		log.Uint64("originChainID", originChainID),
		log.Stringer("sender", sender),
		log.Stringer("messageHash", messageHash),
		log.Uint64("epoch", epoch),
	)
	return nil
}

// ReceivedAt returns when the message was attested, or 0 if it never was.
func (l *Ledger) ReceivedAt(originChainID uint64, sender common.Address, messageHash common.Hash) (uint64, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state.ReceivedAt(originChainID, sender, messageHash)
}

// IsSent reports whether sender has recorded messageHash.
func (l *Ledger) IsSent(sender common.Address, messageHash common.Hash) (bool, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state.HasSent(sender, messageHash)
}

// RotateGroupKey installs newKey at newEpoch. Owner only; the epoch must
// strictly increase; the old key stays usable for exactly one more window.
func (l *Ledger) RotateGroupKey(caller common.Address, newEpoch uint64, newKey []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.admin.Authorize(caller); err != nil {
		return err
	}
	oldEpoch, err := l.keys.CurrentEpoch()
	if err != nil {
		return err
	}
	if err := l.keys.Rotate(newEpoch, newKey); err != nil {
		l.state.Abort()
		return err
	}
	if err := l.commit(); err != nil {
		return err
	}

	l.metrics.KeyRotated(newEpoch)
	l.emitter.Emit(KeyRotated{OldEpoch: oldEpoch, NewEpoch: newEpoch})
	l.log.Info("group key rotated",
		log.Uint64("oldEpoch", oldEpoch),
		log.Uint64("newEpoch", newEpoch),
	)
	return nil
}

// KeyForEpoch resolves the group key for epoch (current or previous only).
func (l *Ledger) KeyForEpoch(epoch uint64) (*bls.PublicKey, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.keys.KeyForEpoch(epoch)
}

// CurrentEpoch returns the current group key epoch.
func (l *Ledger) CurrentEpoch() (uint64, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.keys.CurrentEpoch()
}

// Pause freezes Send. Owner only.
func (l *Ledger) Pause(caller common.Address) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.admin.SetPaused(caller, true); err != nil {
		l.state.Abort()
		return err
	}
	if err := l.commit(); err != nil {
		return err
	}
	l.emitter.Emit(Paused{By: caller})
	l.log.Info("ledger paused", log.Stringer("by", caller))
	return nil
}

// Unpause lifts a pause. Owner only.
func (l *Ledger) Unpause(caller common.Address) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.admin.SetPaused(caller, false); err != nil {
		l.state.Abort()
		return err
	}
	if err := l.commit(); err != nil {
		return err
	}
	l.emitter.Emit(Unpaused{By: caller})
	l.log.Info("ledger unpaused", log.Stringer("by", caller))
	return nil
}

// TransferOwnership hands the ledger to newOwner. Owner only.
func (l *Ledger) TransferOwnership(caller, newOwner common.Address) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	previous, err := l.admin.Owner()
	if err != nil {
		return err
	}
	if err := l.admin.SetOwner(caller, newOwner); err != nil {
		l.state.Abort()
		return err
	}
	if err := l.commit(); err != nil {
		return err
	}
	l.emitter.Emit(OwnershipTransferred{PreviousOwner: previous, NewOwner: newOwner})
	return nil
}

// Owner returns the current owner.
func (l *Ledger) Owner() (common.Address, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.admin.Owner()
}

// Paused reports whether Send is frozen.
func (l *Ledger) Paused() (bool, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.admin.Paused()
}

func (l *Ledger) commit() error {
	if err := l.state.Commit(); err != nil {
		l.state.Abort()
		return err
	}
	return nil
}
