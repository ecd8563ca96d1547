// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bls implements the bridge's BLS12-381 signature scheme in the
// MinSig orientation: public keys are G2 points, signatures are G1 points.
// Wire encodings follow the EIP-2537 convention of 64-byte words, each a
// 48-byte base field element left-padded with 16 zero bytes.
package bls

import (
	"errors"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

const (
	// CoordinateLen is the length of a BLS12-381 base field element.
	CoordinateLen = 48

	// wordLen is the length of one padded coordinate on the wire.
	wordLen = 64

	padLen = wordLen - CoordinateLen

	// PublicKeyLen is the length of a serialized public key: an uncompressed
	// G2 point (x.c1, x.c0, y.c1, y.c0), each coordinate padded to 64 bytes.
	PublicKeyLen = 4 * wordLen

	// SignatureLen is the length of a serialized signature: an uncompressed
	// G1 point (x, y), each coordinate padded to 64 bytes.
	SignatureLen = 2 * wordLen

	// SecretKeyLen is the length of a serialized secret key scalar.
	SecretKeyLen = 32

	// SignatureDST is the domain separation tag for hashing messages to G1.
	// It is bound to the protocol version and must match on every deployment.
	SignatureDST = "TEMPO_BRIDGE_V1_BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_"
)

var (
	ErrInvalidPublicKeyLength = errors.New("invalid public key length")
	ErrInvalidSignatureLength = errors.New("invalid signature length")
	ErrInvalidSecretKeyLength = errors.New("invalid secret key length")
	ErrInvalidPadding         = errors.New("invalid coordinate padding")
	ErrInvalidPublicKey       = errors.New("invalid public key")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrInvalidSecretKey       = errors.New("invalid secret key")
	ErrPublicKeyIsInfinity    = errors.New("public key is the point at infinity")
	ErrSignatureIsInfinity    = errors.New("signature is the point at infinity")
	ErrNoPublicKeys           = errors.New("no public keys to aggregate")
	ErrNoSignatures           = errors.New("no signatures to aggregate")
)

var (
	g2Gen    bls12381.G2Affine
	g2GenNeg bls12381.G2Affine
)

func init() {
	_, _, _, g2Gen = bls12381.Generators()
	g2GenNeg.Neg(&g2Gen)
}

// PublicKey is a point in G2.
type PublicKey struct {
	point bls12381.G2Affine
}

// Signature is a point in G1.
type Signature struct {
	point bls12381.G1Affine
}

// SecretKey is a scalar in Fr.
type SecretKey struct {
	scalar fr.Element
}

// PublicKeyFromBytes deserializes a 256-byte padded G2 point. The point must
// be on the curve, in the prime-order subgroup, and not the point at infinity.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeyLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKeyLength, PublicKeyLen, len(b))
	}
	raw, err := stripPadding(b)
	if err != nil {
		return nil, err
	}
	if allZero(raw) {
		return nil, ErrPublicKeyIsInfinity
	}

	pk := &PublicKey{}
	if err := pk.point.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}
	if pk.point.IsInfinity() {
		return nil, ErrPublicKeyIsInfinity
	}
	return pk, nil
}

// Bytes returns the 256-byte padded serialization of the public key.
func (pk *PublicKey) Bytes() []byte {
	return padCoordinates(pk.point.Marshal())
}

// Equal returns true if both keys are the same G2 point.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.point.Equal(&other.point)
}

// SignatureFromBytes deserializes a 128-byte padded G1 point. The point must
// be on the curve, in the prime-order subgroup, and not the point at infinity.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignatureLength, SignatureLen, len(b))
	}
	raw, err := stripPadding(b)
	if err != nil {
		return nil, err
	}
	if allZero(raw) {
		return nil, ErrSignatureIsInfinity
	}

	sig := &Signature{}
	if err := sig.point.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if sig.point.IsInfinity() {
		return nil, ErrSignatureIsInfinity
	}
	return sig, nil
}

// Bytes returns the 128-byte padded serialization of the signature.
func (sig *Signature) Bytes() []byte {
	return padCoordinates(sig.point.Marshal())
}

// Verify reports whether sig is a valid signature of msg under pk. The
// message is hashed to G1 with XMD:SHA-256 SSWU RO under SignatureDST and
// the check is the two-pairing product e(sig, -g2) * e(H(msg), pk) == 1.
func Verify(pk *PublicKey, msg []byte, sig *Signature) bool {
	hm, err := bls12381.HashToG1(msg, []byte(SignatureDST))
	if err != nil {
		return false
	}
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.point, hm},
		[]bls12381.G2Affine{g2GenNeg, pk.point},
	)
	return err == nil && ok
}

// NewSecretKey generates a secret key from crypto/rand.
func NewSecretKey() (*SecretKey, error) {
	sk := &SecretKey{}
	if _, err := sk.scalar.SetRandom(); err != nil {
		return nil, err
	}
	if sk.scalar.IsZero() {
		return nil, ErrInvalidSecretKey
	}
	return sk, nil
}

// SecretKeyFromBytes deserializes a 32-byte big-endian scalar. The scalar is
// reduced mod r; zero is rejected.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	if len(b) != SecretKeyLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSecretKeyLength, SecretKeyLen, len(b))
	}
	sk := &SecretKey{}
	sk.scalar.SetBytes(b)
	if sk.scalar.IsZero() {
		return nil, ErrInvalidSecretKey
	}
	return sk, nil
}

// Bytes returns the 32-byte big-endian serialization of the secret key.
func (sk *SecretKey) Bytes() []byte {
	b := sk.scalar.Bytes()
	return b[:]
}

// PublicKey returns the G2 public key corresponding to the secret key.
func (sk *SecretKey) PublicKey() *PublicKey {
	pk := &PublicKey{}
	pk.point.ScalarMultiplication(&g2Gen, sk.scalar.BigInt(new(big.Int)))
	return pk
}

// Sign signs msg: H(msg) * sk in G1, hashing under SignatureDST.
func (sk *SecretKey) Sign(msg []byte) (*Signature, error) {
	hm, err := bls12381.HashToG1(msg, []byte(SignatureDST))
	if err != nil {
		return nil, err
	}
	sig := &Signature{}
	sig.point.ScalarMultiplication(&hm, sk.scalar.BigInt(new(big.Int)))
	return sig, nil
}

// AggregateSignatures sums the signatures in G1.
func AggregateSignatures(sigs []*Signature) (*Signature, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}
	agg := &Signature{}
	agg.point.Set(&sigs[0].point)
	for _, sig := range sigs[1:] {
		agg.point.Add(&agg.point, &sig.point)
	}
	if agg.point.IsInfinity() {
		return nil, ErrSignatureIsInfinity
	}
	return agg, nil
}

// AggregatePublicKeys sums the public keys in G2. An aggregate that lands on
// the point at infinity is rejected.
func AggregatePublicKeys(pks []*PublicKey) (*PublicKey, error) {
	if len(pks) == 0 {
		return nil, ErrNoPublicKeys
	}
	agg := &PublicKey{}
	agg.point.Set(&pks[0].point)
	for _, pk := range pks[1:] {
		agg.point.Add(&agg.point, &pk.point)
	}
	if agg.point.IsInfinity() {
		return nil, ErrPublicKeyIsInfinity
	}
	return agg, nil
}

// stripPadding converts padded 64-byte words to packed 48-byte coordinates,
// rejecting any word whose leading 16 bytes are not zero.
func stripPadding(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b)/wordLen*CoordinateLen)
	for i := 0; i < len(b); i += wordLen {
		for _, pad := range b[i : i+padLen] {
			if pad != 0 {
				return nil, ErrInvalidPadding
			}
		}
		out = append(out, b[i+padLen:i+wordLen]...)
	}
	return out, nil
}

// padCoordinates converts packed 48-byte coordinates to padded 64-byte words.
func padCoordinates(raw []byte) []byte {
	out := make([]byte, 0, len(raw)/CoordinateLen*wordLen)
	var pad [padLen]byte
	for i := 0; i < len(raw); i += CoordinateLen {
		out = append(out, pad[:]...)
		out = append(out, raw[i:i+CoordinateLen]...)
	}
	return out
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Generate a keypair for tests and tooling in one call.
func GenerateKey() (*SecretKey, *PublicKey, error) {
	sk, err := NewSecretKey()
	if err != nil {
		return nil, nil, err
	}
	return sk, sk.PublicKey(), nil
}
