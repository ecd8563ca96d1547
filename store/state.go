// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists bridge state behind typed accessors. All writes go
// through a version layer so a multi-key mutation commits atomically or not
// at all; callers stage writes and finish with Commit or Abort.
package store

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"
)

var (
	groupKeyPrefix = []byte("groupkey")
	sentPrefix     = []byte("sent")
	receivedPrefix = []byte("received")
	assetPrefix    = []byte("asset")
	escrowPrefix   = []byte("escrow")
	claimedPrefix  = []byte("claimed")
	noncePrefix    = []byte("nonce")
	remotePrefix   = []byte("remote")
	adminPrefix    = []byte("admin")

	currentKey = []byte("current")
	nonceKey   = []byte("next")
	ownerKey   = []byte("owner")
	pausedKey  = []byte("paused")
)

// GroupKey is the persisted validator group key window: the current epoch's
// key and, after the first rotation, the immediately previous one.
type GroupKey struct {
	Epoch       uint64
	Key         []byte
	PrevEpoch   uint64
	PrevKey     []byte
	HasPrevious bool
}

// Asset is the persisted registration of one bridged asset.
type Asset struct {
	HomeChainID uint64
	HomeToken   common.Address
	LocalToken  common.Address
	IsHomeChain bool
	Active      bool
}

// State wraps a database with the bridge's namespaces. Writes are staged in
// a version layer; nothing reaches the backing database until Commit.
type State struct {
	vdb *versiondb.Database

	groupKeyDB database.Database
	sentDB     database.Database
	receivedDB database.Database
	assetDB    database.Database
	escrowDB   database.Database
	claimedDB  database.Database
	nonceDB    database.Database
	remoteDB   database.Database
	adminDB    database.Database
}

// New builds a State over db. The caller keeps ownership of db.
func New(db database.Database) *State {
	vdb := versiondb.New(db)
	return &State{
		vdb:        vdb,
		groupKeyDB: prefixdb.New(groupKeyPrefix, vdb),
		sentDB:     prefixdb.New(sentPrefix, vdb),
		receivedDB: prefixdb.New(receivedPrefix, vdb),
		assetDB:    prefixdb.New(assetPrefix, vdb),
		escrowDB:   prefixdb.New(escrowPrefix, vdb),
		claimedDB:  prefixdb.New(claimedPrefix, vdb),
		nonceDB:    prefixdb.New(noncePrefix, vdb),
		remoteDB:   prefixdb.New(remotePrefix, vdb),
		adminDB:    prefixdb.New(adminPrefix, vdb),
	}
}

// Commit flushes all staged writes to the backing database atomically.
func (s *State) Commit() error { return s.vdb.Commit() }

// Abort discards all staged writes.
func (s *State) Abort() { s.vdb.Abort() }

func (s *State) GroupKey() (*GroupKey, error) {
	b, err := s.groupKeyDB.Get(currentKey)
	if err != nil {
		return nil, err
	}
	gk := &GroupKey{}
	if err := rlp.DecodeBytes(b, gk); err != nil {
		return nil, err
	}
	return gk, nil
}

func (s *State) PutGroupKey(gk *GroupKey) error {
	b, err := rlp.EncodeToBytes(gk)
	if err != nil {
		return err
	}
	return s.groupKeyDB.Put(currentKey, b)
}

func sentKey(sender common.Address, messageHash common.Hash) []byte {
	key := make([]byte, 0, common.AddressLength+common.HashLength)
	key = append(key, sender.Bytes()...)
	key = append(key, messageHash.Bytes()...)
	return key
}

func (s *State) HasSent(sender common.Address, messageHash common.Hash) (bool, error) {
	return s.sentDB.Has(sentKey(sender, messageHash))
}

func (s *State) PutSent(sender common.Address, messageHash common.Hash) error {
	return s.sentDB.Put(sentKey(sender, messageHash), nil)
}

func receivedKey(originChainID uint64, sender common.Address, messageHash common.Hash) []byte {
	key := make([]byte, 0, 8+common.AddressLength+common.HashLength)
	key = binary.BigEndian.AppendUint64(key, originChainID)
	key = append(key, sender.Bytes()...)
	key = append(key, messageHash.Bytes()...)
	return key
}

// ReceivedAt returns the stored attestation timestamp, or 0 if the message
// was never attested.
func (s *State) ReceivedAt(originChainID uint64, sender common.Address, messageHash common.Hash) (uint64, error) {
	b, err := s.receivedDB.Get(receivedKey(originChainID, sender, messageHash))
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return database.ParseUInt64(b)
}

func (s *State) PutReceivedAt(originChainID uint64, sender common.Address, messageHash common.Hash, receivedAt uint64) error {
	return s.receivedDB.Put(receivedKey(originChainID, sender, messageHash), database.PackUInt64(receivedAt))
}

func (s *State) Asset(assetID common.Hash) (*Asset, error) {
	b, err := s.assetDB.Get(assetID.Bytes())
	if err != nil {
		return nil, err
	}
	asset := &Asset{}
	if err := rlp.DecodeBytes(b, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *State) PutAsset(assetID common.Hash, asset *Asset) error {
	b, err := rlp.EncodeToBytes(asset)
	if err != nil {
		return err
	}
	return s.assetDB.Put(assetID.Bytes(), b)
}

// Escrowed returns the per-asset escrow counter, zero when absent.
func (s *State) Escrowed(assetID common.Hash) (*uint256.Int, error) {
	b, err := s.escrowDB.Get(assetID.Bytes())
	if errors.Is(err, database.ErrNotFound) {
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(b), nil
}

func (s *State) PutEscrowed(assetID common.Hash, amount *uint256.Int) error {
	b := amount.Bytes32()
	return s.escrowDB.Put(assetID.Bytes(), b[:])
}

func claimedKey(originChainID uint64, messageHash common.Hash) []byte {
	key := make([]byte, 0, 8+common.HashLength)
	key = binary.BigEndian.AppendUint64(key, originChainID)
	key = append(key, messageHash.Bytes()...)
	return key
}

func (s *State) IsClaimed(originChainID uint64, messageHash common.Hash) (bool, error) {
	return s.claimedDB.Has(claimedKey(originChainID, messageHash))
}

func (s *State) PutClaimed(originChainID uint64, messageHash common.Hash) error {
	return s.claimedDB.Put(claimedKey(originChainID, messageHash), nil)
}

func (s *State) DeleteClaimed(originChainID uint64, messageHash common.Hash) error {
	return s.claimedDB.Delete(claimedKey(originChainID, messageHash))
}

// Nonce returns the next unassigned transfer nonce, starting at zero.
func (s *State) Nonce() (uint64, error) {
	b, err := s.nonceDB.Get(nonceKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return database.ParseUInt64(b)
}

func (s *State) PutNonce(nonce uint64) error {
	return s.nonceDB.Put(nonceKey, database.PackUInt64(nonce))
}

func remoteKey(chainID uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, chainID)
}

func (s *State) Remote(chainID uint64) (common.Address, error) {
	b, err := s.remoteDB.Get(remoteKey(chainID))
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

func (s *State) PutRemote(chainID uint64, coordinator common.Address) error {
	return s.remoteDB.Put(remoteKey(chainID), coordinator.Bytes())
}

func (s *State) DeleteRemote(chainID uint64) error {
	return s.remoteDB.Delete(remoteKey(chainID))
}

// Owner returns the zero address until one is persisted.
func (s *State) Owner() (common.Address, error) {
	b, err := s.adminDB.Get(ownerKey)
	if errors.Is(err, database.ErrNotFound) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

func (s *State) PutOwner(owner common.Address) error {
	return s.adminDB.Put(ownerKey, owner.Bytes())
}

func (s *State) Paused() (bool, error) {
	has, err := s.adminDB.Has(pausedKey)
	if err != nil {
		return false, err
	}
	return has, nil
}

func (s *State) PutPaused(paused bool) error {
	if paused {
		return s.adminDB.Put(pausedKey, nil)
	}
	return s.adminDB.Delete(pausedKey)
}
