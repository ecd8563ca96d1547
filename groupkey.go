// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/tempoxyz/bridge/bls"
	"github.com/tempoxyz/bridge/store"
)

// GroupKeyStore tracks the validator group key per epoch. Exactly two keys
// are ever usable: the current epoch's and the immediately previous one,
// which keeps a rotation window open for in-flight attestations without
// letting retired keys linger. Keys are validated when they enter the store,
// not at verification time.
//
// Methods stage writes; the owning component holds its lock and commits.
type GroupKeyStore struct {
	state *store.State
}

// NewGroupKeyStore seeds the store with the genesis epoch and key. If the
// backing state already holds a key window (restart), the persisted window
// wins and the seed is ignored.
func NewGroupKeyStore(state *store.State, initialEpoch uint64, initialKey []byte) (*GroupKeyStore, error) {
	g := &GroupKeyStore{state: state}

	_, err := state.GroupKey()
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if _, err := bls.PublicKeyFromBytes(initialKey); err != nil {
		return nil, fmt.Errorf("invalid initial group key: %w", err)
	}
	key := make([]byte, len(initialKey))
	copy(key, initialKey)
	if err := state.PutGroupKey(&store.GroupKey{Epoch: initialEpoch, Key: key}); err != nil {
		return nil, err
	}
	return g, nil
}

// Rotate replaces the current key with newKey at newEpoch and shifts the
// current pair into the previous slot. The new epoch must be strictly
// greater than the current one.
func (g *GroupKeyStore) Rotate(newEpoch uint64, newKey []byte) error {
	gk, err := g.state.GroupKey()
	if err != nil {
		return err
	}
	if newEpoch <= gk.Epoch {
		return fmt.Errorf("%w: epoch %d, current %d", ErrEpochMustIncrease, newEpoch, gk.Epoch)
	}
	if _, err := bls.PublicKeyFromBytes(newKey); err != nil {
		return err
	}

	key := make([]byte, len(newKey))
	copy(key, newKey)
	return g.state.PutGroupKey(&store.GroupKey{
		Epoch:       newEpoch,
		Key:         key,
		PrevEpoch:   gk.Epoch,
		PrevKey:     gk.Key,
		HasPrevious: true,
	})
}

// KeyForEpoch returns the group key for epoch. Only the current and the
// previous epoch resolve; older epochs are gone for good.
func (g *GroupKeyStore) KeyForEpoch(epoch uint64) (*bls.PublicKey, error) {
	gk, err := g.state.GroupKey()
	if err != nil {
		return nil, err
	}
	switch {
	case epoch == gk.Epoch:
		return bls.PublicKeyFromBytes(gk.Key)
	case gk.HasPrevious && epoch == gk.PrevEpoch:
		return bls.PublicKeyFromBytes(gk.PrevKey)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownEpoch, epoch)
	}
}

// CurrentEpoch returns the epoch of the current group key.
func (g *GroupKeyStore) CurrentEpoch() (uint64, error) {
	gk, err := g.state.GroupKey()
	if err != nil {
		return 0, err
	}
	return gk.Epoch, nil
}

// PreviousEpoch returns the previous epoch and whether one exists.
func (g *GroupKeyStore) PreviousEpoch() (uint64, bool, error) {
	gk, err := g.state.GroupKey()
	if err != nil {
		return 0, false, err
	}
	return gk.PrevEpoch, gk.HasPrevious, nil
}

// CurrentKeyBytes returns the serialized current group key.
func (g *GroupKeyStore) CurrentKeyBytes() ([]byte, error) {
	gk, err := g.state.GroupKey()
	if err != nil {
		return nil, err
	}
	key := make([]byte, len(gk.Key))
	copy(key, gk.Key)
	return key, nil
}
