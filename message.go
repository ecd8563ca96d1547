// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge implements the Tempo cross-chain bridge core: a
// chain-scoped ledger of sent and attested message hashes gated by BLS
// threshold signatures from the validator group key, plus the epoch'd group
// key store the ledger verifies against. Token transfer semantics on top of
// the ledger live in the tokens subpackage.
package bridge

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// Domain separation constants. These must match bit-for-bit across every
// deployment that wants to interoperate.
const (
	// TokenTransferDomain prefixes transfer message hashes.
	TokenTransferDomain = "TOKEN_BRIDGE_V1"

	// AttestationDomain prefixes attestation payloads and key rotation
	// hashes. It names the protocol version.
	AttestationDomain = "TEMPO_BRIDGE_V1"
)

// TransferMessage is the canonical content of one cross-chain token
// transfer. Its hash is the protocol-wide transfer identity: the sending
// coordinator records it, validators attest it, and the destination
// coordinator recomputes it from claim arguments.
type TransferMessage struct {
	OriginChainID      uint64
	DestinationChainID uint64
	HomeChainID        uint64
	HomeToken          common.Address
	Recipient          common.Address
	Amount             *uint256.Int
	Nonce              uint64
}

// Hash returns keccak256 over the domain-prefixed packed encoding. Every
// field is hash-significant: changing any of them yields a different hash.
func (m *TransferMessage) Hash() common.Hash {
	var amount uint256.Int
	if m.Amount != nil {
		amount.Set(m.Amount)
	}
	amountBytes := amount.Bytes32()

	buf := make([]byte, 0, len(TokenTransferDomain)+3*8+2*common.AddressLength+32+8)
	buf = append(buf, TokenTransferDomain...)
	buf = binary.BigEndian.AppendUint64(buf, m.OriginChainID)
	buf = binary.BigEndian.AppendUint64(buf, m.DestinationChainID)
	buf = binary.BigEndian.AppendUint64(buf, m.HomeChainID)
	buf = append(buf, m.HomeToken.Bytes()...)
	buf = append(buf, m.Recipient.Bytes()...)
	buf = append(buf, amountBytes[:]...)
	buf = binary.BigEndian.AppendUint64(buf, m.Nonce)
	return common.BytesToHash(crypto.Keccak256(buf))
}

// AttestationPayload is the byte string validators sign to attest that the
// origin chain sent messageHash. It binds the origin chain, the sending
// address, the destination chain and the signing epoch, so an attestation
// for one chain or epoch cannot be replayed against another.
func AttestationPayload(
	originChainID uint64,
	sender common.Address,
	messageHash common.Hash,
	destinationChainID uint64,
	epoch uint64,
) []byte {
	buf := make([]byte, 0, len(AttestationDomain)+8+common.AddressLength+common.HashLength+8+8)
	buf = append(buf, AttestationDomain...)
	buf = binary.BigEndian.AppendUint64(buf, originChainID)
	buf = append(buf, sender.Bytes()...)
	buf = append(buf, messageHash.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, destinationChainID)
	buf = binary.BigEndian.AppendUint64(buf, epoch)
	return buf
}

// RotationMessageHash is the hash validators threshold-sign to authorize a
// group key rotation from oldEpoch to newEpoch.
func RotationMessageHash(oldEpoch, newEpoch uint64, newKey []byte) common.Hash {
	buf := make([]byte, 0, len(AttestationDomain)+8+8+len(newKey))
	buf = append(buf, AttestationDomain...)
	buf = binary.BigEndian.AppendUint64(buf, oldEpoch)
	buf = binary.BigEndian.AppendUint64(buf, newEpoch)
	buf = append(buf, newKey...)
	return common.BytesToHash(crypto.Keccak256(buf))
}
