// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tokens implements lock/unlock and mint/burn token bridging on top
// of the message attestation ledger. On an asset's home chain the
// coordinator escrows deposits and releases them on claims; on every other
// chain it burns the local representation on the way out and mints it on
// the way in.
package tokens

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Token is the minimal surface the coordinator needs from a bridged token.
// Implementations must not call back into the coordinator synchronously:
// the claim path marks a transfer claimed before any funds move, so a
// re-entered claim fails on the claimed record rather than double-paying.
type Token interface {
	BalanceOf(account common.Address) (*uint256.Int, error)

	// Transfer moves amount from one holder to another.
	Transfer(from, to common.Address, amount *uint256.Int) error

	// TransferFrom moves amount on behalf of spender, enforcing whatever
	// authorization model the token has.
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error

	// Mint creates amount for to. Only meaningful for remote
	// representations; home-chain tokens may reject it.
	Mint(to common.Address, amount *uint256.Int) error

	// Burn destroys amount held by from.
	Burn(from common.Address, amount *uint256.Int) error
}

// Resolver maps a registered local token address to its implementation.
type Resolver interface {
	Token(localToken common.Address) (Token, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(common.Address) (Token, error)

func (f ResolverFunc) Token(localToken common.Address) (Token, error) {
	return f(localToken)
}
