// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

// Command simple walks a token transfer across two in-memory chains: a
// deposit into escrow on the home chain, a group key attestation of the
// transfer message, and a claim minting the wrapped representation on the
// destination chain.
package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	bridge "github.com/tempoxyz/bridge"
	"github.com/tempoxyz/bridge/bls"
	"github.com/tempoxyz/bridge/tokens"
)

const (
	chainA uint64 = 1 // the asset's home chain
	chainB uint64 = 2
)

var (
	owner      = common.HexToAddress("0xffff00000000000000000000000000000000ffff")
	user       = common.HexToAddress("0x1000000000000000000000000000000000000001")
	friend     = common.HexToAddress("0x2000000000000000000000000000000000000002")
	tokenAddrA = common.HexToAddress("0xaaaa0000000000000000000000000000000000aa")
	tokenAddrB = common.HexToAddress("0xbbbb0000000000000000000000000000000000bb")
	coordAddrA = common.HexToAddress("0xcccc0000000000000000000000000000000000cc")
	coordAddrB = common.HexToAddress("0xdddd0000000000000000000000000000000000dd")
)

// memoryToken is a minimal in-memory token; real deployments adapt their
// chain's token interface instead.
type memoryToken struct {
	balances map[common.Address]*uint256.Int
}

func newMemoryToken() *memoryToken {
	return &memoryToken{balances: make(map[common.Address]*uint256.Int)}
}

func (m *memoryToken) BalanceOf(account common.Address) (*uint256.Int, error) {
	if balance, ok := m.balances[account]; ok {
		return new(uint256.Int).Set(balance), nil
	}
	return uint256.NewInt(0), nil
}

func (m *memoryToken) Transfer(from, to common.Address, amount *uint256.Int) error {
	return m.move(from, to, amount)
}

func (m *memoryToken) TransferFrom(_, from, to common.Address, amount *uint256.Int) error {
	return m.move(from, to, amount)
}

func (m *memoryToken) Mint(to common.Address, amount *uint256.Int) error {
	balance, _ := m.BalanceOf(to)
	m.balances[to] = balance.Add(balance, amount)
	return nil
}

func (m *memoryToken) Burn(from common.Address, amount *uint256.Int) error {
	balance, _ := m.BalanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("burning %s exceeds balance %s", amount, balance)
	}
	m.balances[from] = balance.Sub(balance, amount)
	return nil
}

func (m *memoryToken) move(from, to common.Address, amount *uint256.Int) error {
	fromBalance, _ := m.BalanceOf(from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("transferring %s exceeds balance %s", amount, fromBalance)
	}
	toBalance, _ := m.BalanceOf(to)
	m.balances[from] = fromBalance.Sub(fromBalance, amount)
	m.balances[to] = toBalance.Add(toBalance, amount)
	return nil
}

// chain bundles one chain's ledger, coordinator and token.
type chain struct {
	ledger      *bridge.Ledger
	coordinator *tokens.Coordinator
	token       *memoryToken
}

func newChain(id uint64, coordAddr, tokenAddr common.Address, groupKey *bls.PublicKey) (*chain, error) {
	ledger, err := bridge.NewLedger(bridge.LedgerConfig{
		ChainID:         id,
		Owner:           owner,
		InitialEpoch:    1,
		InitialGroupKey: groupKey.Bytes(),
	})
	if err != nil {
		return nil, err
	}

	token := newMemoryToken()
	coordinator, err := tokens.NewCoordinator(tokens.CoordinatorConfig{
		Address: coordAddr,
		Owner:   owner,
		Ledger:  ledger,
		Resolver: tokens.ResolverFunc(func(local common.Address) (tokens.Token, error) {
			if local != tokenAddr {
				return nil, fmt.Errorf("unknown token %s", local)
			}
			return token, nil
		}),
	})
	if err != nil {
		return nil, err
	}
	return &chain{ledger: ledger, coordinator: coordinator, token: token}, nil
}

func main() {
	// The validator group: three BLS keys whose aggregate is the group key
	// both ledgers trust at epoch 1.
	var (
		secretKeys []*bls.SecretKey
		publicKeys []*bls.PublicKey
	)
	for i := 0; i < 3; i++ {
		sk, pk, err := bls.GenerateKey()
		must(err)
		secretKeys = append(secretKeys, sk)
		publicKeys = append(publicKeys, pk)
	}
	groupKey, err := bls.AggregatePublicKeys(publicKeys)
	must(err)

	a, err := newChain(chainA, coordAddrA, tokenAddrA, groupKey)
	must(err)
	b, err := newChain(chainB, coordAddrB, tokenAddrB, groupKey)
	must(err)

	// Register the asset on both chains under the same derived ID, and
	// point each coordinator at its counterpart.
	assetID := tokens.ComputeAssetID(chainA, tokenAddrA)
	must(a.coordinator.RegisterAsset(owner, assetID, tokens.Asset{
		HomeChainID: chainA,
		HomeToken:   tokenAddrA,
		LocalToken:  tokenAddrA,
		IsHomeChain: true,
	}))
	must(b.coordinator.RegisterAsset(owner, assetID, tokens.Asset{
		HomeChainID: chainA,
		HomeToken:   tokenAddrA,
		LocalToken:  tokenAddrB,
	}))
	must(a.coordinator.SetRemoteCoordinator(owner, chainB, coordAddrB))
	must(b.coordinator.SetRemoteCoordinator(owner, chainA, coordAddrA))

	must(a.token.Mint(user, uint256.NewInt(1000)))
	fmt.Printf("asset %s registered on both chains\n", assetID)

	// Deposit 250 on chain A for delivery to friend on chain B. The tokens
	// move into the coordinator's escrow and the transfer message hash is
	// recorded on chain A's ledger.
	receipt, err := a.coordinator.BridgeTokens(user, assetID, friend, uint256.NewInt(250), chainB)
	must(err)
	fmt.Printf("deposited 250 on chain %d, message %s nonce %d\n",
		chainA, receipt.MessageHash, receipt.Nonce)

	// Each validator signs the attestation payload for chain B; the
	// aggregate of their partial signatures is the group key attestation.
	payload := bridge.AttestationPayload(chainA, coordAddrA, receipt.MessageHash, chainB, 1)
	var partials []*bls.Signature
	for _, sk := range secretKeys {
		sig, err := sk.Sign(payload)
		must(err)
		partials = append(partials, sig)
	}
	attestation, err := bls.AggregateSignatures(partials)
	must(err)
	must(b.ledger.ReceiveAttested(chainA, coordAddrA, receipt.MessageHash, 1, attestation.Bytes()))
	fmt.Printf("chain %d accepted the attestation\n", chainB)

	// Claiming on chain B mints the wrapped representation.
	must(b.coordinator.ClaimTokens(assetID, friend, receipt.Amount, receipt.Nonce, chainA))
	balance, err := b.token.BalanceOf(friend)
	must(err)
	fmt.Printf("friend holds %s wrapped tokens on chain %d\n", balance, chainB)

	// Bridge 100 back: the wrapped tokens are burned on chain B and, after
	// attestation, released from escrow on chain A.
	back, err := b.coordinator.BridgeTokens(friend, assetID, user, uint256.NewInt(100), chainA)
	must(err)
	payload = bridge.AttestationPayload(chainB, coordAddrB, back.MessageHash, chainA, 1)
	partials = partials[:0]
	for _, sk := range secretKeys {
		sig, err := sk.Sign(payload)
		must(err)
		partials = append(partials, sig)
	}
	attestation, err = bls.AggregateSignatures(partials)
	must(err)
	must(a.ledger.ReceiveAttested(chainB, coordAddrB, back.MessageHash, 1, attestation.Bytes()))
	must(a.coordinator.ClaimTokens(assetID, user, back.Amount, back.Nonce, chainB))

	userBalance, err := a.token.BalanceOf(user)
	must(err)
	friendBalance, err := b.token.BalanceOf(friend)
	must(err)
	escrowed, err := a.coordinator.Escrowed(assetID)
	must(err)
	fmt.Printf("final: user %s on chain %d, friend %s on chain %d, %s in escrow\n",
		userBalance, chainA, friendBalance, chainB, escrowed)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
