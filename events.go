// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Event type identifiers.
const (
	TypeMessageSent          = "bridge.message_sent"
	TypeMessageReceived      = "bridge.message_received"
	TypeKeyRotated           = "bridge.key_rotated"
	TypeAssetRegistered      = "bridge.asset_registered"
	TypeAssetStatusChanged   = "bridge.asset_status_changed"
	TypeRemoteCoordinatorSet = "bridge.remote_coordinator_set"
	TypeTokensBridged        = "bridge.tokens_bridged"
	TypeTokensClaimed        = "bridge.tokens_claimed"
	TypePaused               = "bridge.paused"
	TypeUnpaused             = "bridge.unpaused"
	TypeOwnershipTransferred = "bridge.ownership_transferred"
)

// Event is a typed notification emitted by bridge components.
type Event interface {
	EventType() string
}

// Emitter receives events from bridge components. Implementations must not
// block; bridge operations emit while holding their state lock.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// ChannelEmitter forwards events to a buffered channel. When the buffer is
// full the oldest event is dropped so emitting never blocks.
type ChannelEmitter struct {
	ch chan Event
}

func NewChannelEmitter(size int) *ChannelEmitter {
	return &ChannelEmitter{ch: make(chan Event, size)}
}

func (e *ChannelEmitter) Emit(ev Event) {
	for {
		select {
		case e.ch <- ev:
			return
		default:
			select {
			case <-e.ch:
			default:
			}
		}
	}
}

// Events returns the receive side of the emitter.
func (e *ChannelEmitter) Events() <-chan Event { return e.ch }

type MessageSent struct {
	Sender             common.Address
	MessageHash        common.Hash
	DestinationChainID uint64
}

func (MessageSent) EventType() string { return TypeMessageSent }

type MessageReceived struct {
	OriginChainID uint64
	Sender        common.Address
	MessageHash   common.Hash
	Epoch         uint64
	ReceivedAt    uint64
}

func (MessageReceived) EventType() string { return TypeMessageReceived }

type KeyRotated struct {
	OldEpoch uint64
	NewEpoch uint64
}

func (KeyRotated) EventType() string { return TypeKeyRotated }

type AssetRegistered struct {
	AssetID     common.Hash
	HomeChainID uint64
	HomeToken   common.Address
	LocalToken  common.Address
	IsHomeChain bool
}

func (AssetRegistered) EventType() string { return TypeAssetRegistered }

type AssetStatusChanged struct {
	AssetID common.Hash
	Active  bool
}

func (AssetStatusChanged) EventType() string { return TypeAssetStatusChanged }

type RemoteCoordinatorSet struct {
	ChainID     uint64
	Coordinator common.Address
}

func (RemoteCoordinatorSet) EventType() string { return TypeRemoteCoordinatorSet }

type TokensBridged struct {
	AssetID            common.Hash
	Sender             common.Address
	Recipient          common.Address
	Amount             *uint256.Int
	DestinationChainID uint64
	Nonce              uint64
	MessageHash        common.Hash
}

func (TokensBridged) EventType() string { return TypeTokensBridged }

type TokensClaimed struct {
	AssetID       common.Hash
	Recipient     common.Address
	Amount        *uint256.Int
	OriginChainID uint64
	Nonce         uint64
	MessageHash   common.Hash
}

func (TokensClaimed) EventType() string { return TypeTokensClaimed }

type Paused struct {
	By common.Address
}

func (Paused) EventType() string { return TypePaused }

type Unpaused struct {
	By common.Address
}

func (Unpaused) EventType() string { return TypeUnpaused }

type OwnershipTransferred struct {
	PreviousOwner common.Address
	NewOwner      common.Address
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }
