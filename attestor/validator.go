// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

// Package attestor implements the off-chain attestation duty: validators
// sign attestation payloads for messages their local ledger sent, and an
// aggregator collects those signatures into a quorum attestation the
// destination ledger accepts.
package attestor

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/luxfi/ids"

	"github.com/tempoxyz/bridge/bls"
)

var (
	ErrNoValidators       = errors.New("validator set is empty")
	ErrNilValidator       = errors.New("nil validator")
	ErrZeroWeight         = errors.New("validator has zero weight")
	ErrNilPublicKey       = errors.New("validator has no public key")
	ErrDuplicateValidator = errors.New("duplicate validator public key")
	ErrWeightOverflow     = errors.New("validator weight overflows uint64")
)

// Validator is one member of the attesting set.
type Validator struct {
	NodeID    ids.NodeID
	PublicKey *bls.PublicKey
	Weight    uint64
}

// ValidatorSet is a validator set in canonical order. Ordering is by
// serialized public key, so every party that builds the set from the same
// members derives the same signer indices.
type ValidatorSet struct {
	validators  []*Validator
	totalWeight uint64
}

// NewValidatorSet canonicalizes validators. Members must be unique by
// public key and carry nonzero weight; the total weight must fit a uint64.
func NewValidatorSet(validators []*Validator) (*ValidatorSet, error) {
	if len(validators) == 0 {
		return nil, ErrNoValidators
	}

	type keyed struct {
		validator *Validator
		key       []byte
	}
	keyedValidators := make([]keyed, 0, len(validators))
	seen := make(map[string]struct{}, len(validators))
	var totalWeight uint64
	for i, v := range validators {
		if v == nil {
			return nil, fmt.Errorf("%w at index %d", ErrNilValidator, i)
		}
		if v.PublicKey == nil {
			return nil, fmt.Errorf("%w at index %d", ErrNilPublicKey, i)
		}
		if v.Weight == 0 {
			return nil, fmt.Errorf("%w at index %d", ErrZeroWeight, i)
		}
		key := v.PublicKey.Bytes()
		if _, ok := seen[string(key)]; ok {
			return nil, fmt.Errorf("%w at index %d", ErrDuplicateValidator, i)
		}
		seen[string(key)] = struct{}{}

		newTotal, err := AddUint64(totalWeight, v.Weight)
		if err != nil {
			return nil, err
		}
		totalWeight = newTotal
		keyedValidators = append(keyedValidators, keyed{validator: v, key: key})
	}

	sort.Slice(keyedValidators, func(i, j int) bool {
		return bytes.Compare(keyedValidators[i].key, keyedValidators[j].key) < 0
	})

	sorted := make([]*Validator, len(keyedValidators))
	for i, kv := range keyedValidators {
		sorted[i] = kv.validator
	}
	return &ValidatorSet{
		validators:  sorted,
		totalWeight: totalWeight,
	}, nil
}

// Validators returns the members in canonical order. The returned slice
// must not be modified.
func (s *ValidatorSet) Validators() []*Validator { return s.validators }

func (s *ValidatorSet) Len() int { return len(s.validators) }

// TotalWeight returns the combined weight of all members.
func (s *ValidatorSet) TotalWeight() uint64 { return s.totalWeight }

// RequiredWeight returns the quorum weight for this set.
func (s *ValidatorSet) RequiredWeight() uint64 {
	return RequiredWeight(s.totalWeight)
}

// RequiredWeight returns the smallest weight that is at least two thirds
// of total.
func RequiredWeight(total uint64) uint64 {
	required := 2 * (total / 3)
	switch total % 3 {
	case 1:
		required++
	case 2:
		required += 2
	}
	return required
}

// AddUint64 returns a+b, or an error if the sum overflows.
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrWeightOverflow
	}
	return a + b, nil
}
