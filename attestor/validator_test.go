// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package attestor

import (
	"bytes"
	"math"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/tempoxyz/bridge/bls"
)

func newTestValidator(t *testing.T, weight uint64) *Validator {
	t.Helper()

	_, pk, err := bls.GenerateKey()
	require.NoError(t, err)
	return &Validator{
		NodeID:    ids.GenerateTestNodeID(),
		PublicKey: pk,
		Weight:    weight,
	}
}

func TestValidatorSetCanonicalOrder(t *testing.T) {
	require := require.New(t)

	vdrs := make([]*Validator, 5)
	for i := range vdrs {
		vdrs[i] = newTestValidator(t, uint64(i+1))
	}

	forward, err := NewValidatorSet(vdrs)
	require.NoError(err)

	reversed := make([]*Validator, len(vdrs))
	for i, vdr := range vdrs {
		reversed[len(vdrs)-1-i] = vdr
	}
	backward, err := NewValidatorSet(reversed)
	require.NoError(err)

	// The same members always produce the same ordering regardless of
	// the order they were supplied in.
	require.Equal(forward.Validators(), backward.Validators())

	ordered := forward.Validators()
	for i := 1; i < len(ordered); i++ {
		prev := ordered[i-1].PublicKey.Bytes()
		cur := ordered[i].PublicKey.Bytes()
		require.Less(bytes.Compare(prev, cur), 0)
	}

	require.Equal(5, forward.Len())
	require.Equal(uint64(15), forward.TotalWeight())
}

func TestValidatorSetRejections(t *testing.T) {
	valid := newTestValidator(t, 1)

	tests := []struct {
		name       string
		validators []*Validator
		wantErr    error
	}{
		{
			name:       "empty",
			validators: nil,
			wantErr:    ErrNoValidators,
		},
		{
			name:       "nil member",
			validators: []*Validator{valid, nil},
			wantErr:    ErrNilValidator,
		},
		{
			name: "zero weight",
			validators: []*Validator{
				valid,
				{
					NodeID:    ids.GenerateTestNodeID(),
					PublicKey: valid.PublicKey,
					Weight:    0,
				},
			},
			wantErr: ErrZeroWeight,
		},
		{
			name: "nil public key",
			validators: []*Validator{
				valid,
				{
					NodeID: ids.GenerateTestNodeID(),
					Weight: 1,
				},
			},
			wantErr: ErrNilPublicKey,
		},
		{
			name: "duplicate public key",
			validators: []*Validator{
				valid,
				{
					NodeID:    ids.GenerateTestNodeID(),
					PublicKey: valid.PublicKey,
					Weight:    2,
				},
			},
			wantErr: ErrDuplicateValidator,
		},
		{
			name: "weight overflow",
			validators: []*Validator{
				newTestValidator(t, math.MaxUint64),
				newTestValidator(t, 1),
			},
			wantErr: ErrWeightOverflow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidatorSet(tt.validators)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequiredWeight(t *testing.T) {
	tests := []struct {
		total    uint64
		required uint64
	}{
		{total: 0, required: 0},
		{total: 1, required: 1},
		{total: 2, required: 2},
		{total: 3, required: 2},
		{total: 4, required: 3},
		{total: 5, required: 4},
		{total: 6, required: 4},
		{total: 7, required: 5},
		{total: 10, required: 7},
		{total: 100, required: 67},
		// ceil(2n/3) must not overflow near the top of the range.
		{total: math.MaxUint64, required: 12297829382473034410},
	}
	for _, tt := range tests {
		require.Equal(t, tt.required, RequiredWeight(tt.total), "total %d", tt.total)
	}
}

func TestValidatorSetRequiredWeight(t *testing.T) {
	require := require.New(t)

	vdrs := []*Validator{
		newTestValidator(t, 3),
		newTestValidator(t, 3),
		newTestValidator(t, 4),
	}
	vset, err := NewValidatorSet(vdrs)
	require.NoError(err)

	require.Equal(uint64(10), vset.TotalWeight())
	require.Equal(uint64(7), vset.RequiredWeight())
}

func TestAddUint64(t *testing.T) {
	require := require.New(t)

	sum, err := AddUint64(math.MaxUint64-1, 1)
	require.NoError(err)
	require.Equal(uint64(math.MaxUint64), sum)

	_, err = AddUint64(math.MaxUint64, 1)
	require.ErrorIs(err, ErrWeightOverflow)
}
