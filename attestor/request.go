// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package attestor

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	bridge "github.com/tempoxyz/bridge"
	"github.com/tempoxyz/bridge/bls"
)

// HandlerID is the p2p protocol ID attestation requests are routed under.
const HandlerID = 0x42524447 // "BRDG"

// requestLen is the fixed wire size of an AttestationRequest.
const requestLen = 8 + common.AddressLength + common.HashLength + 8 + 8

// AttestationRequest asks a validator to sign the attestation payload for
// one message its chain sent.
type AttestationRequest struct {
	OriginChainID      uint64
	Sender             common.Address
	MessageHash        common.Hash
	DestinationChainID uint64
	Epoch              uint64
}

// Bytes returns the fixed-width big-endian encoding.
func (r *AttestationRequest) Bytes() []byte {
	buf := make([]byte, 0, requestLen)
	buf = binary.BigEndian.AppendUint64(buf, r.OriginChainID)
	buf = append(buf, r.Sender.Bytes()...)
	buf = append(buf, r.MessageHash.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, r.DestinationChainID)
	buf = binary.BigEndian.AppendUint64(buf, r.Epoch)
	return buf
}

// ParseAttestationRequest decodes data produced by Bytes.
func ParseAttestationRequest(data []byte) (*AttestationRequest, error) {
	if len(data) != requestLen {
		return nil, fmt.Errorf("invalid request length: %d", len(data))
	}
	r := &AttestationRequest{}
	r.OriginChainID = binary.BigEndian.Uint64(data[0:8])
	r.Sender = common.BytesToAddress(data[8 : 8+common.AddressLength])
	offset := 8 + common.AddressLength
	r.MessageHash = common.BytesToHash(data[offset : offset+common.HashLength])
	offset += common.HashLength
	r.DestinationChainID = binary.BigEndian.Uint64(data[offset : offset+8])
	r.Epoch = binary.BigEndian.Uint64(data[offset+8 : offset+16])
	return r, nil
}

// Payload returns the byte string validators sign for this request.
func (r *AttestationRequest) Payload() []byte {
	return bridge.AttestationPayload(
		r.OriginChainID,
		r.Sender,
		r.MessageHash,
		r.DestinationChainID,
		r.Epoch,
	)
}

// Digest identifies the request for caching and deduplication.
func (r *AttestationRequest) Digest() common.Hash {
	return common.BytesToHash(crypto.Keccak256(r.Bytes()))
}

// AttestationResponse carries one validator's signature over the request
// payload.
type AttestationResponse struct {
	Signature []byte
}

// MarshalAttestationResponse frames signature with a 4-byte length prefix.
func MarshalAttestationResponse(signature []byte) ([]byte, error) {
	if len(signature) != bls.SignatureLen {
		return nil, fmt.Errorf("%w: %d", bls.ErrInvalidSignatureLength, len(signature))
	}
	buf := make([]byte, 4+len(signature))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(signature)))
	copy(buf[4:], signature)
	return buf, nil
}

// ParseAttestationResponse decodes data produced by
// MarshalAttestationResponse.
func ParseAttestationResponse(data []byte) (*AttestationResponse, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("response too short: %d", len(data))
	}
	sigLen := binary.BigEndian.Uint32(data[0:4])
	if uint32(len(data)-4) != sigLen {
		return nil, fmt.Errorf("response length %d does not match prefix %d", len(data)-4, sigLen)
	}
	return &AttestationResponse{Signature: data[4:]}, nil
}
