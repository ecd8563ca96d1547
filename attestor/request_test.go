// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package attestor

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	bridge "github.com/tempoxyz/bridge"
	"github.com/tempoxyz/bridge/bls"
)

func TestAttestationRequestRoundTrip(t *testing.T) {
	require := require.New(t)

	req := &AttestationRequest{
		OriginChainID:      7,
		Sender:             common.HexToAddress("0x1111111111111111111111111111111111111111"),
		MessageHash:        common.HexToHash("0xdeadbeef"),
		DestinationChainID: 9,
		Epoch:              3,
	}

	encoded := req.Bytes()
	require.Len(encoded, requestLen)

	parsed, err := ParseAttestationRequest(encoded)
	require.NoError(err)
	require.Equal(req, parsed)
}

func TestParseAttestationRequestBadLength(t *testing.T) {
	req := &AttestationRequest{OriginChainID: 1, DestinationChainID: 2}
	encoded := req.Bytes()

	tests := []struct {
		name  string
		bytes []byte
	}{
		{name: "empty", bytes: nil},
		{name: "truncated", bytes: encoded[:len(encoded)-1]},
		{name: "trailing byte", bytes: append(encoded, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAttestationRequest(tt.bytes)
			require.Error(t, err)
		})
	}
}

// The request payload must be exactly the bytes the destination ledger
// verifies, otherwise collected signatures would never be accepted.
func TestAttestationRequestPayload(t *testing.T) {
	require := require.New(t)

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	hash := common.HexToHash("0xabcd")
	req := &AttestationRequest{
		OriginChainID:      1,
		Sender:             sender,
		MessageHash:        hash,
		DestinationChainID: 2,
		Epoch:              5,
	}

	require.Equal(bridge.AttestationPayload(1, sender, hash, 2, 5), req.Payload())

	other := *req
	other.Epoch = 6
	require.NotEqual(req.Digest(), other.Digest())
}

func TestAttestationResponseCodec(t *testing.T) {
	require := require.New(t)

	sk, _, err := bls.GenerateKey()
	require.NoError(err)
	sig, err := sk.Sign([]byte("payload"))
	require.NoError(err)

	encoded, err := MarshalAttestationResponse(sig.Bytes())
	require.NoError(err)

	resp, err := ParseAttestationResponse(encoded)
	require.NoError(err)
	require.Equal(sig.Bytes(), resp.Signature)

	_, err = MarshalAttestationResponse(make([]byte, bls.SignatureLen-1))
	require.ErrorIs(err, bls.ErrInvalidSignatureLength)

	_, err = ParseAttestationResponse(encoded[:3])
	require.Error(err)

	_, err = ParseAttestationResponse(append(encoded, 0))
	require.Error(err)
}
