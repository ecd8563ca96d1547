// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package bls

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// Uncompressed G2 generator in the padded wire encoding: x.c1, x.c0, y.c1,
// y.c0, each coordinate left-padded to 64 bytes.
const g2GeneratorHex = "00000000000000000000000000000000" +
	"13e02b6052719f607dacd3a088274f65596bd0d09920b61ab5da61bbdc7f5049334cf11213945d57e5ac7d055d042b7e" +
	"00000000000000000000000000000000" +
	"024aa2b2f08f0a91260805272dc51051c6e47ad4fa403b02b4510b647ae3d1770bac0326a805bbefd48056c8c121bdb8" +
	"00000000000000000000000000000000" +
	"0606c4a02ea734cc32acd2b02bc28b99cb3e287e85a763af267492ab572e99ab3f370d275cec1da1aaa9075ff05f79be" +
	"00000000000000000000000000000000" +
	"0ce5d527727d6e118cc9cdc6da2e351aadfd9baa8cbdd3a76d429a695160d12c923ac9cc3baca289e193548608b82801"

func TestGeneratorEncoding(t *testing.T) {
	require := require.New(t)

	raw, err := hex.DecodeString(g2GeneratorHex)
	require.NoError(err)
	require.Len(raw, PublicKeyLen)

	pk, err := PublicKeyFromBytes(raw)
	require.NoError(err)
	require.Equal(raw, pk.Bytes())
}

func TestPublicKeyRoundTrip(t *testing.T) {
	require := require.New(t)

	sk, pk, err := GenerateKey()
	require.NoError(err)
	require.NotNil(sk)

	b := pk.Bytes()
	require.Len(b, PublicKeyLen)

	parsed, err := PublicKeyFromBytes(b)
	require.NoError(err)
	require.True(pk.Equal(parsed))
}

func TestPublicKeyValidation(t *testing.T) {
	validKey := func() []byte {
		_, pk, err := GenerateKey()
		require.NoError(t, err)
		return pk.Bytes()
	}

	tests := []struct {
		name        string
		key         func() []byte
		expectedErr error
	}{
		{
			name:        "short key",
			key:         func() []byte { return make([]byte, 48) },
			expectedErr: ErrInvalidPublicKeyLength,
		},
		{
			name:        "truncated key",
			key:         func() []byte { return validKey()[:PublicKeyLen-1] },
			expectedErr: ErrInvalidPublicKeyLength,
		},
		{
			name:        "all zero key is infinity",
			key:         func() []byte { return make([]byte, PublicKeyLen) },
			expectedErr: ErrPublicKeyIsInfinity,
		},
		{
			name: "nonzero padding",
			key: func() []byte {
				b := validKey()
				b[0] = 1
				return b
			},
			expectedErr: ErrInvalidPadding,
		},
		{
			name: "corrupted coordinate",
			key: func() []byte {
				b := validKey()
				b[PublicKeyLen-1] ^= 0xff
				return b
			},
			expectedErr: ErrInvalidPublicKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PublicKeyFromBytes(tt.key())
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestSignatureValidation(t *testing.T) {
	validSig := func() []byte {
		sk, _, err := GenerateKey()
		require.NoError(t, err)
		sig, err := sk.Sign([]byte("payload"))
		require.NoError(t, err)
		return sig.Bytes()
	}

	tests := []struct {
		name        string
		sig         func() []byte
		expectedErr error
	}{
		{
			name:        "unpadded length",
			sig:         func() []byte { return make([]byte, 64) },
			expectedErr: ErrInvalidSignatureLength,
		},
		{
			name:        "all zero signature is infinity",
			sig:         func() []byte { return make([]byte, SignatureLen) },
			expectedErr: ErrSignatureIsInfinity,
		},
		{
			name: "nonzero padding",
			sig: func() []byte {
				b := validSig()
				b[wordLen] = 1
				return b
			},
			expectedErr: ErrInvalidPadding,
		},
		{
			name: "corrupted coordinate",
			sig: func() []byte {
				b := validSig()
				b[SignatureLen-1] ^= 0xff
				return b
			},
			expectedErr: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SignatureFromBytes(tt.sig())
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestSignVerify(t *testing.T) {
	require := require.New(t)

	sk, pk, err := GenerateKey()
	require.NoError(err)

	msg := []byte("cross-chain transfer payload")
	sig, err := sk.Sign(msg)
	require.NoError(err)
	require.Len(sig.Bytes(), SignatureLen)

	require.True(Verify(pk, msg, sig))
	require.False(Verify(pk, []byte("different payload"), sig))

	_, otherPK, err := GenerateKey()
	require.NoError(err)
	require.False(Verify(otherPK, msg, sig))
}

func TestSignDeterministic(t *testing.T) {
	require := require.New(t)

	sk, _, err := GenerateKey()
	require.NoError(err)

	msg := []byte("payload")
	sig1, err := sk.Sign(msg)
	require.NoError(err)
	sig2, err := sk.Sign(msg)
	require.NoError(err)
	require.Equal(sig1.Bytes(), sig2.Bytes())
}

func TestSignatureRoundTrip(t *testing.T) {
	require := require.New(t)

	sk, pk, err := GenerateKey()
	require.NoError(err)

	msg := []byte("payload")
	sig, err := sk.Sign(msg)
	require.NoError(err)

	parsed, err := SignatureFromBytes(sig.Bytes())
	require.NoError(err)
	require.True(Verify(pk, msg, parsed))
}

func TestAggregate(t *testing.T) {
	require := require.New(t)

	msg := []byte("shared payload")

	var (
		sigs []*Signature
		pks  []*PublicKey
	)
	for i := 0; i < 3; i++ {
		sk, pk, err := GenerateKey()
		require.NoError(err)
		sig, err := sk.Sign(msg)
		require.NoError(err)
		sigs = append(sigs, sig)
		pks = append(pks, pk)
	}

	aggSig, err := AggregateSignatures(sigs)
	require.NoError(err)
	aggPK, err := AggregatePublicKeys(pks)
	require.NoError(err)

	require.True(Verify(aggPK, msg, aggSig))

	// A subset aggregate must not verify under the full aggregate key.
	partial, err := AggregateSignatures(sigs[:2])
	require.NoError(err)
	require.False(Verify(aggPK, msg, partial))
}

func TestAggregateEmpty(t *testing.T) {
	require := require.New(t)

	_, err := AggregateSignatures(nil)
	require.ErrorIs(err, ErrNoSignatures)

	_, err = AggregatePublicKeys(nil)
	require.ErrorIs(err, ErrNoPublicKeys)
}

func TestSecretKeyRoundTrip(t *testing.T) {
	require := require.New(t)

	sk, err := NewSecretKey()
	require.NoError(err)

	b := sk.Bytes()
	require.Len(b, SecretKeyLen)

	parsed, err := SecretKeyFromBytes(b)
	require.NoError(err)
	require.Equal(sk.Bytes(), parsed.Bytes())
	require.True(sk.PublicKey().Equal(parsed.PublicKey()))

	_, err = SecretKeyFromBytes(make([]byte, SecretKeyLen))
	require.ErrorIs(err, ErrInvalidSecretKey)

	_, err = SecretKeyFromBytes(make([]byte, 16))
	require.ErrorIs(err, ErrInvalidSecretKeyLength)
}
