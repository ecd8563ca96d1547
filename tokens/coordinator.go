// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package tokens

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	bridge "github.com/tempoxyz/bridge"
	"github.com/tempoxyz/bridge/store"
)

// MessageLedger is the slice of the attestation ledger the coordinator
// depends on. *bridge.Ledger satisfies it.
type MessageLedger interface {
	ChainID() uint64
	Send(sender common.Address, messageHash common.Hash, destinationChainID uint64) error
	ReceivedAt(originChainID uint64, sender common.Address, messageHash common.Hash) (uint64, error)
	Paused() (bool, error)
}

// CoordinatorConfig configures a token transfer coordinator.
type CoordinatorConfig struct {
	// Address is the coordinator's own account: the escrow holder on home
	// chains and the sender identity recorded on the ledger.
	Address common.Address

	// Owner may register assets, set remote coordinators, pause and
	// transfer ownership.
	Owner common.Address

	// Ledger is the local chain's attestation ledger.
	Ledger MessageLedger

	// Resolver maps registered local token addresses to implementations.
	Resolver Resolver

	// DB defaults to an in-memory database.
	DB database.Database

	Emitter bridge.Emitter
	Logger  log.Logger
	Metrics *bridge.Metrics
}

// Coordinator moves tokens across chains by pairing escrow or burn on the
// way out with a ledger message, and escrow release or mint on the way in
// with an attested ledger record. One operation runs at a time; a failed
// operation leaves no partial state.
type Coordinator struct {
	lock     sync.RWMutex
	chainID  uint64
	address  common.Address
	state    *store.State
	admin    *bridge.Admin
	registry *Registry
	ledger   MessageLedger
	resolver Resolver
	emitter  bridge.Emitter
	log      log.Logger
	metrics  *bridge.Metrics
}

// Receipt reports the outcome of a successful BridgeTokens call.
type Receipt struct {
	// MessageHash identifies the transfer on both chains.
	MessageHash common.Hash

	// Nonce is the transfer nonce assigned to this deposit.
	Nonce uint64

	// Amount is the measured amount actually received by the coordinator,
	// which is what the recipient can claim. For fee-on-transfer tokens
	// this is less than the requested amount.
	Amount *uint256.Int
}

// NewCoordinator builds a coordinator, seeding the owner on first use.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: coordinator address must be set", bridge.ErrInvalidRecipient)
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger must be set")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("resolver must be set")
	}
	db := cfg.DB
	if db == nil {
		db = memdb.New()
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = bridge.NoopEmitter{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}

	state := store.New(db)
	admin, err := bridge.NewAdmin(state, cfg.Owner)
	if err != nil {
		state.Abort()
		return nil, err
	}
	if err := state.Commit(); err != nil {
		state.Abort()
		return nil, err
	}

	return &Coordinator{
		chainID:  cfg.Ledger.ChainID(),
		address:  cfg.Address,
		state:    state,
		admin:    admin,
		registry: NewRegistry(state),
		ledger:   cfg.Ledger,
		resolver: cfg.Resolver,
		emitter:  emitter,
		log:      logger,
		metrics:  cfg.Metrics,
	}, nil
}

// ChainID returns the local chain ID the coordinator operates on.
func (c *Coordinator) ChainID() uint64 { return c.chainID }

// Address returns the coordinator's escrow and sender address.
func (c *Coordinator) Address() common.Address { return c.address }

// BridgeTokens deposits amount of the registered asset for transfer to
// recipient on destinationChainID. On the asset's home chain the deposit is
// pulled into escrow; elsewhere the local representation is pulled and
// burned. The amount recorded in the transfer message is the measured
// balance delta, not the requested amount, so fee-on-transfer tokens bridge
// exactly what the coordinator received.
func (c *Coordinator) BridgeTokens(
	caller common.Address,
	assetID common.Hash,
	recipient common.Address,
	amount *uint256.Int,
	destinationChainID uint64,
) (*Receipt, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", bridge.ErrInvalidAmount)
	}
	if recipient == (common.Address{}) {
		return nil, fmt.Errorf("%w: recipient must not be the zero address", bridge.ErrInvalidRecipient)
	}
	if err := c.admin.RequireNotPaused(); err != nil {
		return nil, err
	}
	asset, err := c.registry.Get(assetID)
	if err != nil {
		return nil, err
	}
	if !asset.Active {
		return nil, fmt.Errorf("%w: %s", bridge.ErrAssetNotActive, assetID)
	}
	// A paused ledger would reject the send after funds already moved, so
	// check before pulling anything.
	ledgerPaused, err := c.ledger.Paused()
	if err != nil {
		return nil, err
	}
	if ledgerPaused {
		return nil, fmt.Errorf("%w: message ledger", bridge.ErrContractPaused)
	}
	token, err := c.resolver.Token(asset.LocalToken)
	if err != nil {
		return nil, err
	}
	// Read the nonce before funds move so a database failure here cannot
	// strand a pulled deposit.
	nonce, err := c.state.Nonce()
	if err != nil {
		return nil, err
	}

	received, err := c.pullMeasured(token, caller, amount)
	if err != nil {
		return nil, err
	}

	if !asset.IsHomeChain {
		if err := token.Burn(c.address, received); err != nil {
			c.refund(token, caller, received)
			return nil, fmt.Errorf("burning bridged tokens: %w", err)
		}
	}

	msg := &bridge.TransferMessage{
		OriginChainID:      c.chainID,
		DestinationChainID: destinationChainID,
		HomeChainID:        asset.HomeChainID,
		HomeToken:          asset.HomeToken,
		Recipient:          recipient,
		Amount:             received,
		Nonce:              nonce,
	}
	messageHash := msg.Hash()

	if err := c.ledger.Send(c.address, messageHash, destinationChainID); err != nil {
		if asset.IsHomeChain {
			c.refund(token, caller, received)
		} else if mintErr := token.Mint(caller, received); mintErr != nil {
			c.log.Error("re-minting after failed send",
				log.Stringer("caller", caller), log.Err(mintErr))
		}
		return nil, err
	}

	// The send is recorded; from here the deposit must stay locked or
	// burned to back it.
	if err := c.state.PutNonce(nonce + 1); err != nil {
		c.state.Abort()
		return nil, err
	}
	if asset.IsHomeChain {
		if err := c.addEscrow(assetID, received); err != nil {
			c.state.Abort()
			return nil, err
		}
	}
	if err := c.commit(); err != nil {
		c.log.Error("committing deposit state after send",
			log.Stringer("messageHash", messageHash), log.Err(err))
		return nil, err
	}

	c.metrics.TokensBridged(received)
	c.emitter.Emit(bridge.TokensBridged{
		AssetID:            assetID,
		Sender:             caller,
		Recipient:          recipient,
		Amount:             received,
		DestinationChainID: destinationChainID,
		Nonce:              nonce,
		MessageHash:        messageHash,
	})
	c.log.Debug("tokens bridged",
		log.Stringer("assetID", assetID),
		log.Stringer("sender", caller),
		log.Stringer("recipient", recipient),
		log.Uint64("destinationChainID", destinationChainID),
		log.Uint64("nonce", nonce),
		log.Stringer("messageHash", messageHash),
	)
	return &Receipt{MessageHash: messageHash, Nonce: nonce, Amount: received}, nil
}

// ClaimTokens pays out a transfer attested on the local ledger. The claim
// arguments reconstruct the transfer message; the claim succeeds only if
// the resulting hash was attested as sent by the origin chain's registered
// coordinator. The transfer is marked claimed, and escrow decremented on
// the home chain, before any funds move.
func (c *Coordinator) ClaimTokens(
	assetID common.Hash,
	recipient common.Address,
	amount *uint256.Int,
	transferNonce uint64,
	originChainID uint64,
) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", bridge.ErrInvalidAmount)
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: recipient must not be the zero address", bridge.ErrInvalidRecipient)
	}
	if err := c.admin.RequireNotPaused(); err != nil {
		return err
	}
	asset, err := c.registry.Get(assetID)
	if err != nil {
		return err
	}
	remote, err := c.remoteCoordinator(originChainID)
	if err != nil {
		return err
	}

	msg := &bridge.TransferMessage{
		OriginChainID:      originChainID,
		DestinationChainID: c.chainID,
		HomeChainID:        asset.HomeChainID,
		HomeToken:          asset.HomeToken,
		Recipient:          recipient,
		Amount:             amount,
		Nonce:              transferNonce,
	}
	messageHash := msg.Hash()

	receivedAt, err := c.ledger.ReceivedAt(originChainID, remote, messageHash)
	if err != nil {
		return err
	}
	if receivedAt == 0 {
		return fmt.Errorf("%w: %s", bridge.ErrMessageNotReceived, messageHash)
	}
	claimed, err := c.state.IsClaimed(originChainID, messageHash)
	if err != nil {
		return err
	}
	if claimed {
		return fmt.Errorf("%w: %s", bridge.ErrAlreadyClaimed, messageHash)
	}
	token, err := c.resolver.Token(asset.LocalToken)
	if err != nil {
		return err
	}

	// Mark the claim and settle escrow before funds move. A token that
	// re-enters sees the claim already recorded.
	var escrowed *uint256.Int
	if asset.IsHomeChain {
		escrowed, err = c.state.Escrowed(assetID)
		if err != nil {
			return err
		}
		if escrowed.Lt(amount) {
			return fmt.Errorf("escrowed balance %s below claim amount %s for asset %s",
				escrowed, amount, assetID)
		}
		if err := c.state.PutEscrowed(assetID, new(uint256.Int).Sub(escrowed, amount)); err != nil {
			c.state.Abort()
			return err
		}
	}
	if err := c.state.PutClaimed(originChainID, messageHash); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.commit(); err != nil {
		return err
	}

	if asset.IsHomeChain {
		err = token.Transfer(c.address, recipient, amount)
	} else {
		err = token.Mint(recipient, amount)
	}
	if err != nil {
		return c.rollbackClaim(asset, assetID, originChainID, messageHash, escrowed, err)
	}

	c.metrics.TokensClaimed(amount)
	c.emitter.Emit(bridge.TokensClaimed{
		AssetID:       assetID,
		Recipient:     recipient,
		Amount:        amount,
		OriginChainID: originChainID,
		Nonce:         transferNonce,
		MessageHash:   messageHash,
	})
	c.log.Debug("tokens claimed",
		log.Stringer("assetID", assetID),
		log.Stringer("recipient", recipient),
		log.Uint64("originChainID", originChainID),
		log.Uint64("nonce", transferNonce),
		log.Stringer("messageHash", messageHash),
	)
	return nil
}

// pullMeasured pulls amount from caller and returns the coordinator's
// actual balance delta.
func (c *Coordinator) pullMeasured(token Token, caller common.Address, amount *uint256.Int) (*uint256.Int, error) {
	before, err := token.BalanceOf(c.address)
	if err != nil {
		return nil, err
	}
	if err := token.TransferFrom(c.address, caller, c.address, amount); err != nil {
		return nil, fmt.Errorf("pulling deposit: %w", err)
	}
	after, err := token.BalanceOf(c.address)
	if err != nil {
		// The deposit was already pulled; the delta can no longer be
		// measured, so return the nominal amount.
		c.refund(token, caller, amount)
		return nil, err
	}
	if after.Lt(before) {
		return nil, fmt.Errorf("token balance decreased during deposit from %s", caller)
	}
	received := new(uint256.Int).Sub(after, before)
	if received.IsZero() {
		return nil, fmt.Errorf("%w: deposit measured zero after transfer", bridge.ErrInvalidAmount)
	}
	return received, nil
}

// refund returns a pulled deposit to caller after a later step failed.
func (c *Coordinator) refund(token Token, caller common.Address, amount *uint256.Int) {
	if err := token.Transfer(c.address, caller, amount); err != nil {
		c.log.Error("refunding failed deposit",
			log.Stringer("caller", caller), log.Err(err))
	}
}

// rollbackClaim undoes the claim mark and escrow decrement after the token
// payout failed, so the transfer stays claimable.
func (c *Coordinator) rollbackClaim(
	asset *Asset,
	assetID common.Hash,
	originChainID uint64,
	messageHash common.Hash,
	escrowed *uint256.Int,
	cause error,
) error {
	if err := c.state.DeleteClaimed(originChainID, messageHash); err != nil {
		c.state.Abort()
		return errors.Join(cause, err)
	}
	if asset.IsHomeChain {
		if err := c.state.PutEscrowed(assetID, escrowed); err != nil {
			c.state.Abort()
			return errors.Join(cause, err)
		}
	}
	if err := c.commit(); err != nil {
		c.log.Error("rolling back claim mark",
			log.Stringer("messageHash", messageHash), log.Err(err))
		return errors.Join(cause, err)
	}
	return fmt.Errorf("paying out claim: %w", cause)
}

func (c *Coordinator) addEscrow(assetID common.Hash, amount *uint256.Int) error {
	escrowed, err := c.state.Escrowed(assetID)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(escrowed, amount)
	if overflow {
		return fmt.Errorf("%w: escrow overflow for asset %s", bridge.ErrInvalidAmount, assetID)
	}
	return c.state.PutEscrowed(assetID, sum)
}

func (c *Coordinator) remoteCoordinator(chainID uint64) (common.Address, error) {
	remote, err := c.state.Remote(chainID)
	if errors.Is(err, database.ErrNotFound) {
		return common.Address{}, fmt.Errorf("%w: chain %d", bridge.ErrRemoteNotRegistered, chainID)
	}
	if err != nil {
		return common.Address{}, err
	}
	return remote, nil
}

// RegisterAsset registers or reconfigures a bridged asset. Owner only.
func (c *Coordinator) RegisterAsset(caller common.Address, assetID common.Hash, asset Asset) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.admin.Authorize(caller); err != nil {
		return err
	}
	if err := c.registry.Register(assetID, asset); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.commit(); err != nil {
		return err
	}
	c.emitter.Emit(bridge.AssetRegistered{
		AssetID:     assetID,
		HomeChainID: asset.HomeChainID,
		HomeToken:   asset.HomeToken,
		LocalToken:  asset.LocalToken,
		IsHomeChain: asset.IsHomeChain,
	})
	c.log.Info("asset registered",
		log.Stringer("assetID", assetID),
		log.Uint64("homeChainID", asset.HomeChainID),
		log.Stringer("homeToken", asset.HomeToken),
		log.Stringer("localToken", asset.LocalToken),
	)
	return nil
}

// SetAssetActive flips whether new outbound transfers of the asset are
// accepted. Claims are unaffected. Owner only.
func (c *Coordinator) SetAssetActive(caller common.Address, assetID common.Hash, active bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.admin.Authorize(caller); err != nil {
		return err
	}
	if err := c.registry.SetActive(assetID, active); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.commit(); err != nil {
		return err
	}
	c.emitter.Emit(bridge.AssetStatusChanged{AssetID: assetID, Active: active})
	return nil
}

// SetRemoteCoordinator records the coordinator address claims from chainID
// must have been sent by. The zero address unregisters the chain. Owner
// only.
func (c *Coordinator) SetRemoteCoordinator(caller common.Address, chainID uint64, coordinator common.Address) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.admin.Authorize(caller); err != nil {
		return err
	}
	if coordinator == (common.Address{}) {
		err := c.state.DeleteRemote(chainID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			c.state.Abort()
			return err
		}
	} else if err := c.state.PutRemote(chainID, coordinator); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.commit(); err != nil {
		return err
	}
	c.emitter.Emit(bridge.RemoteCoordinatorSet{ChainID: chainID, Coordinator: coordinator})
	c.log.Info("remote coordinator set",
		log.Uint64("chainID", chainID), log.Stringer("coordinator", coordinator))
	return nil
}

// GetAsset returns the registered configuration for assetID.
func (c *Coordinator) GetAsset(assetID common.Hash) (*Asset, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.registry.Get(assetID)
}

// RemoteCoordinator returns the registered coordinator for chainID.
func (c *Coordinator) RemoteCoordinator(chainID uint64) (common.Address, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.remoteCoordinator(chainID)
}

// Escrowed returns the coordinator's escrow counter for assetID.
func (c *Coordinator) Escrowed(assetID common.Hash) (*uint256.Int, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state.Escrowed(assetID)
}

// IsClaimed reports whether the transfer identified by origin chain and
// message hash was paid out.
func (c *Coordinator) IsClaimed(originChainID uint64, messageHash common.Hash) (bool, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state.IsClaimed(originChainID, messageHash)
}

// Nonce returns the next transfer nonce to be assigned.
func (c *Coordinator) Nonce() (uint64, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state.Nonce()
}

// Pause freezes deposits and claims. Owner only.
func (c *Coordinator) Pause(caller common.Address) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.admin.SetPaused(caller, true); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.commit(); err != nil {
		return err
	}
	c.emitter.Emit(bridge.Paused{By: caller})
	c.log.Info("coordinator paused", log.Stringer("by", caller))
	return nil
}

// Unpause lifts a pause. Owner only.
func (c *Coordinator) Unpause(caller common.Address) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.admin.SetPaused(caller, false); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.commit(); err != nil {
		return err
	}
	c.emitter.Emit(bridge.Unpaused{By: caller})
	c.log.Info("coordinator unpaused", log.Stringer("by", caller))
	return nil
}

// TransferOwnership hands the coordinator to newOwner. Owner only.
func (c *Coordinator) TransferOwnership(caller, newOwner common.Address) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	previous, err := c.admin.Owner()
	if err != nil {
		return err
	}
	if err := c.admin.SetOwner(caller, newOwner); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.commit(); err != nil {
		return err
	}
	c.emitter.Emit(bridge.OwnershipTransferred{PreviousOwner: previous, NewOwner: newOwner})
	return nil
}

// Owner returns the current owner.
func (c *Coordinator) Owner() (common.Address, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.admin.Owner()
}

// Paused reports whether deposits and claims are frozen.
func (c *Coordinator) Paused() (bool, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.admin.Paused()
}

func (c *Coordinator) commit() error {
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}
