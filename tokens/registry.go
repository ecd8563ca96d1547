// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package tokens

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"

	bridge "github.com/tempoxyz/bridge"
	"github.com/tempoxyz/bridge/store"
)

// Asset describes a bridged asset on this chain. The home chain escrows the
// canonical token; every other chain maps the asset to a mintable local
// representation.
type Asset = store.Asset

// ComputeAssetID derives the chain-agnostic asset identifier from the home
// chain ID and the home token address. Every chain bridging the same asset
// derives the same ID, which is what lets transfer hashes line up across
// chains.
func ComputeAssetID(homeChainID uint64, homeToken common.Address) common.Hash {
	buf := make([]byte, 0, 8+common.AddressLength)
	buf = binary.BigEndian.AppendUint64(buf, homeChainID)
	buf = append(buf, homeToken.Bytes()...)
	return common.BytesToHash(crypto.Keccak256(buf))
}

// Registry tracks which assets the coordinator will bridge. Mutations stage
// writes on the shared state; the coordinator commits them.
type Registry struct {
	state *store.State
}

// NewRegistry returns a registry reading and staging through state.
func NewRegistry(state *store.State) *Registry {
	return &Registry{state: state}
}

// Register stages a new or updated asset configuration. The declared asset
// ID must match the one derived from the asset's home coordinates, so a
// misconfigured registration fails before it can strand transfers under an
// unreachable ID. Registering always activates the asset, and registering
// an existing ID overwrites its configuration.
func (r *Registry) Register(assetID common.Hash, asset Asset) error {
	derived := ComputeAssetID(asset.HomeChainID, asset.HomeToken)
	if derived != assetID {
		return fmt.Errorf("%w: declared %s derived %s",
			bridge.ErrAssetIDMismatch, assetID, derived)
	}
	if asset.LocalToken == (common.Address{}) {
		return fmt.Errorf("%w: local token must be set", bridge.ErrInvalidTokenAddress)
	}
	asset.Active = true
	return r.state.PutAsset(assetID, &asset)
}

// SetActive stages an activation flip for a registered asset. Deactivation
// stops new outbound transfers only; claims for messages already attested
// stay payable so deactivation cannot strand funds in flight.
func (r *Registry) SetActive(assetID common.Hash, active bool) error {
	asset, err := r.Get(assetID)
	if err != nil {
		return err
	}
	asset.Active = active
	return r.state.PutAsset(assetID, asset)
}

// Get returns the configuration for assetID.
func (r *Registry) Get(assetID common.Hash) (*Asset, error) {
	asset, err := r.state.Asset(assetID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", bridge.ErrAssetNotRegistered, assetID)
	}
	if err != nil {
		return nil, err
	}
	return asset, nil
}
