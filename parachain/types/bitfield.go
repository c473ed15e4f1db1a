// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// ErrInvalidBitfieldSignature is returned when checking a signed
// availability bitfield whose signature does not verify.
var ErrInvalidBitfieldSignature = errors.New("invalid bitfield signature")

// AvailabilityBitfield is one validator's view of core occupancy: a bit
// vector with one bit per availability core, lsb ordered. The SCALE
// representation is the compact encoded bit count followed by the packed
// bytes, matching a `BitVec<u8, Lsb0>`.
type AvailabilityBitfield struct {
	Bits []bool
}

// NewAvailabilityBitfield returns a zeroed bitfield of the given size.
func NewAvailabilityBitfield(size uint32) AvailabilityBitfield {
	return AvailabilityBitfield{Bits: make([]bool, size)}
}

// Len returns the number of bits.
func (a AvailabilityBitfield) Len() int { return len(a.Bits) }

// SetBit sets the bit at the given core index.
func (a AvailabilityBitfield) SetBit(index uint32) {
	a.Bits[index] = true
}

// AnyAnd returns true if the bitwise AND with the disputed mask has any
// bit set. Both bitfields must have the same length.
func (a AvailabilityBitfield) AnyAnd(mask DisputedBitfield) bool {
	for i, bit := range a.Bits {
		if bit && mask.Bits[i] {
			return true
		}
	}
	return false
}

// Encode returns the SCALE encoding of the bitfield.
func (a AvailabilityBitfield) Encode() ([]byte, error) {
	length, err := scale.Marshal(uint(len(a.Bits)))
	if err != nil {
		return nil, fmt.Errorf("encoding bit count: %w", err)
	}

	return append(length, bitsToBytes(a.Bits)...), nil
}

// bitsToBytes packs bits into bytes using lsb ordering.
func bitsToBytes(bits []bool) []byte {
	b := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			b[i/8] |= 1 << (i % 8)
		}
	}
	return b
}

// DisputedBitfield is the derived per block mask of cores freed by a
// dispute that concluded against the occupying candidate.
type DisputedBitfield struct {
	Bits []bool
}

// NewDisputedBitfield returns a zeroed mask sized to the core count.
func NewDisputedBitfield(size uint32) DisputedBitfield {
	return DisputedBitfield{Bits: make([]bool, size)}
}

// UncheckedSignedAvailabilityBitfield is an availability bitfield whose
// signature has not been verified yet.
type UncheckedSignedAvailabilityBitfield struct {
	// Payload is part of the signed data. The rest is the signing context,
	// which is known both at signing and at validation.
	Payload AvailabilityBitfield `scale:"1"`
	// ValidatorIndex is the index of the signing validator.
	ValidatorIndex ValidatorIndex `scale:"2"`
	// Signature is the validator signature over the signing payload.
	Signature ValidatorSignature `scale:"3"`
}

// SigningPayload returns the payload the validator signature covers:
// the SCALE encoded bitfield followed by the SCALE encoded signing context.
func (u UncheckedSignedAvailabilityBitfield) SigningPayload(
	signingContext SigningContext,
) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)

	encodedPayload, err := u.Payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	buffer.Write(encodedPayload)

	encodedContext, err := scale.Marshal(signingContext)
	if err != nil {
		return nil, fmt.Errorf("encoding signing context: %w", err)
	}
	buffer.Write(encodedContext)

	return buffer.Bytes(), nil
}

// TryIntoChecked verifies the signature against the signing context and the
// given validator public key, returning the checked form on success.
func (u UncheckedSignedAvailabilityBitfield) TryIntoChecked(
	signingContext SigningContext,
	validator ValidatorID,
) (SignedAvailabilityBitfield, error) {
	payload, err := u.SigningPayload(signingContext)
	if err != nil {
		return SignedAvailabilityBitfield{}, fmt.Errorf("building signing payload: %w", err)
	}

	ok, err := VerifySignature(validator, payload, u.Signature)
	if err != nil {
		return SignedAvailabilityBitfield{}, fmt.Errorf("verifying signature: %w", err)
	}
	if !ok {
		return SignedAvailabilityBitfield{}, ErrInvalidBitfieldSignature
	}

	return SignedAvailabilityBitfield(u), nil
}

// SignedAvailabilityBitfield is an availability bitfield that passed
// signature verification.
type SignedAvailabilityBitfield UncheckedSignedAvailabilityBitfield

// IntoUnchecked discards the checked marker, for re-embedding into an
// inherent.
func (s SignedAvailabilityBitfield) IntoUnchecked() UncheckedSignedAvailabilityBitfield {
	return UncheckedSignedAvailabilityBitfield(s)
}
