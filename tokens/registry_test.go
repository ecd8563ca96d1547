// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package tokens

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	bridge "github.com/tempoxyz/bridge"
	"github.com/tempoxyz/bridge/store"
)

func TestComputeAssetID(t *testing.T) {
	require := require.New(t)

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	id := ComputeAssetID(1, token)
	require.NotEqual(common.Hash{}, id)

	// The same home coordinates derive the same ID everywhere.
	require.Equal(id, ComputeAssetID(1, token))

	// Either coordinate changing changes the ID.
	require.NotEqual(id, ComputeAssetID(2, token))
	require.NotEqual(id, ComputeAssetID(1, common.HexToAddress("0x2222222222222222222222222222222222222222")))
}

func TestRegistryRegister(t *testing.T) {
	require := require.New(t)

	r := NewRegistry(store.New(memdb.New()))

	homeToken := common.HexToAddress("0x1111111111111111111111111111111111111111")
	localToken := common.HexToAddress("0x2222222222222222222222222222222222222222")
	assetID := ComputeAssetID(7, homeToken)

	asset := Asset{
		HomeChainID: 7,
		HomeToken:   homeToken,
		LocalToken:  localToken,
	}
	require.NoError(r.Register(assetID, asset))

	// Registration always activates, whatever the input flag said.
	got, err := r.Get(assetID)
	require.NoError(err)
	require.True(got.Active)
	require.Equal(localToken, got.LocalToken)

	// The declared ID must match the derived one.
	err = r.Register(common.HexToHash("0xdead"), asset)
	require.ErrorIs(err, bridge.ErrAssetIDMismatch)

	// A registration without a local token is rejected.
	bad := asset
	bad.LocalToken = common.Address{}
	require.ErrorIs(r.Register(assetID, bad), bridge.ErrInvalidTokenAddress)

	// Re-registering overwrites the configuration.
	replacement := common.HexToAddress("0x3333333333333333333333333333333333333333")
	updated := asset
	updated.LocalToken = replacement
	require.NoError(r.Register(assetID, updated))
	got, err = r.Get(assetID)
	require.NoError(err)
	require.Equal(replacement, got.LocalToken)
}

func TestRegistrySetActive(t *testing.T) {
	require := require.New(t)

	r := NewRegistry(store.New(memdb.New()))

	homeToken := common.HexToAddress("0x1111111111111111111111111111111111111111")
	assetID := ComputeAssetID(1, homeToken)
	require.NoError(r.Register(assetID, Asset{
		HomeChainID: 1,
		HomeToken:   homeToken,
		LocalToken:  homeToken,
		IsHomeChain: true,
	}))

	require.NoError(r.SetActive(assetID, false))
	got, err := r.Get(assetID)
	require.NoError(err)
	require.False(got.Active)

	require.NoError(r.SetActive(assetID, true))
	got, err = r.Get(assetID)
	require.NoError(err)
	require.True(got.Active)

	err = r.SetActive(common.HexToHash("0xbeef"), false)
	require.ErrorIs(err, bridge.ErrAssetNotRegistered)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry(store.New(memdb.New()))
	_, err := r.Get(common.HexToHash("0x01"))
	require.ErrorIs(t, err, bridge.ErrAssetNotRegistered)
}
