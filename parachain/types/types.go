// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package parachaintypes holds the data model shared between the
// paras-inherent pipeline and its collaborators: identifiers, weights,
// availability bitfields, candidate receipts and dispute statement sets.
package parachaintypes

import (
	"fmt"

	"github.com/ChainSafe/gossamer/lib/common"
	"github.com/ChainSafe/gossamer/lib/crypto/sr25519"
)

// ParaID is the numeric identifier of a parachain.
type ParaID uint32

// CoreIndex is the index of an availability core.
type CoreIndex uint32

// GroupIndex is the index of a backing validator group.
type GroupIndex uint32

// ValidatorIndex is the index of a validator in the active validator set.
type ValidatorIndex uint32

// SessionIndex is a session index.
type SessionIndex uint32

// BlockNumber is a relay chain block number.
type BlockNumber uint32

// ValidatorID represents a validator sr25519 public key.
type ValidatorID [sr25519.PublicKeyLength]byte

// ValidatorSignature is an sr25519 signature from a validator.
type ValidatorSignature [sr25519.SignatureLength]byte

func (v ValidatorSignature) String() string { return fmt.Sprintf("0x%x", v[:]) }

// SigningContext is the context bound into every validator signature,
// tying it to one session and one relay chain fork.
type SigningContext struct {
	// SessionIndex is the current session index.
	SessionIndex SessionIndex `scale:"1"`
	// ParentHash is the hash of the parent block.
	ParentHash common.Hash `scale:"2"`
}

// VerifySignature checks an sr25519 signature made by the given validator
// over the given payload.
func VerifySignature(validator ValidatorID, payload []byte, signature ValidatorSignature) (bool, error) {
	publicKey, err := sr25519.NewPublicKey(validator[:])
	if err != nil {
		return false, fmt.Errorf("getting public key: %w", err)
	}

	return publicKey.Verify(payload, signature[:])
}
