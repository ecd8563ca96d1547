// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/tempoxyz/bridge/store"
)

// Admin holds the owner and pause flag of one bridge component. Every
// privileged entry point routes through Authorize; every pausable entry
// point routes through RequireNotPaused. Mutating methods stage writes only:
// the owning component holds its lock and commits.
type Admin struct {
	state *store.State
}

// NewAdmin binds admin state, seeding the owner on first use. A previously
// persisted owner wins over the seed.
func NewAdmin(state *store.State, owner common.Address) (*Admin, error) {
	a := &Admin{state: state}
	current, err := state.Owner()
	if err != nil {
		return nil, err
	}
	if current != (common.Address{}) {
		return a, nil
	}
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner must not be the zero address", ErrInvalidRecipient)
	}
	if err := state.PutOwner(owner); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Admin) Owner() (common.Address, error) {
	return a.state.Owner()
}

func (a *Admin) Paused() (bool, error) {
	return a.state.Paused()
}

// Authorize returns ErrUnauthorized unless caller is the owner.
func (a *Admin) Authorize(caller common.Address) error {
	owner, err := a.state.Owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	return nil
}

// RequireNotPaused returns ErrContractPaused while paused.
func (a *Admin) RequireNotPaused() error {
	paused, err := a.state.Paused()
	if err != nil {
		return err
	}
	if paused {
		return ErrContractPaused
	}
	return nil
}

func (a *Admin) SetPaused(caller common.Address, paused bool) error {
	if err := a.Authorize(caller); err != nil {
		return err
	}
	return a.state.PutPaused(paused)
}

func (a *Admin) SetOwner(caller, newOwner common.Address) error {
	if err := a.Authorize(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: new owner must not be the zero address", ErrInvalidRecipient)
	}
	return a.state.PutOwner(newOwner)
}
