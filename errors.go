// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import "errors"

// Errors are grouped the way operations check them: input validation first,
// then authorization, then state consistency, then cryptographic
// verification. A failed operation leaves no partial state behind.

// Input validation.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrInvalidTokenAddress = errors.New("invalid token address")
	ErrZeroMessageHash     = errors.New("zero message hash")
)

// Authorization.
var (
	ErrUnauthorized   = errors.New("caller is not the owner")
	ErrContractPaused = errors.New("bridge is paused")
)

// State consistency.
var (
	ErrAssetNotRegistered  = errors.New("asset not registered")
	ErrAssetNotActive      = errors.New("asset not active")
	ErrAssetIDMismatch     = errors.New("asset id does not match home chain and token")
	ErrMessageAlreadySent  = errors.New("message already sent")
	ErrMessageNotReceived  = errors.New("message not received")
	ErrAlreadyClaimed      = errors.New("transfer already claimed")
	ErrEpochMustIncrease   = errors.New("epoch must be greater than current")
	ErrUnknownEpoch        = errors.New("no group key for epoch")
	ErrRemoteNotRegistered = errors.New("no coordinator registered for origin chain")
)

// Cryptographic verification.
var (
	ErrInvalidAttestation = errors.New("attestation signature verification failed")
)
