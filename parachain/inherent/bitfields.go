// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

// createDisputedBitfield builds the per block mask of cores freed by
// concluded invalid disputes. Core indices beyond the expected bit count
// are ignored.
func createDisputedBitfield(expectedBits uint32, freedCores []parachaintypes.CoreIndex,
) parachaintypes.DisputedBitfield {
	bitfield := parachaintypes.NewDisputedBitfield(expectedBits)
	for _, core := range freedCores {
		if uint32(core) < expectedBits {
			bitfield.Bits[core] = true
		}
	}
	return bitfield
}

// sanitizeBitfields filters the unchecked bitfields down to the
// cryptographically checked ones, preserving input order.
//
// Per entry, in input order, an entry is dropped when:
//  1. its bit length differs from the expected core count
//  2. it claims availability on a core freed by a dispute this block
//  3. its validator index is not strictly greater than the last accepted
//  4. its validator index is out of range of the validator set
//  5. its signature does not verify
//
// A disputed mask whose length does not match the expected bit count is a
// logic error in the caller; the sanitizer fails closed and drops all
// bitfields.
func sanitizeBitfields(
	uncheckedBitfields []parachaintypes.UncheckedSignedAvailabilityBitfield,
	disputedBitfield parachaintypes.DisputedBitfield,
	expectedBits uint32,
	signingContext parachaintypes.SigningContext,
	validators []parachaintypes.ValidatorID,
) []parachaintypes.SignedAvailabilityBitfield {
	if uint32(len(disputedBitfield.Bits)) != expectedBits {
		logger.Errorf("disputed bitfield length %d does not match expected bits %d",
			len(disputedBitfield.Bits), expectedBits)
		return nil
	}

	bitfields := make([]parachaintypes.SignedAvailabilityBitfield, 0, len(uncheckedBitfields))

	haveLastIndex := false
	var lastIndex parachaintypes.ValidatorIndex

	for _, unchecked := range uncheckedBitfields {
		if uint32(unchecked.Payload.Len()) != expectedBits {
			logger.Tracef("bad bitfield length: %d != %d",
				unchecked.Payload.Len(), expectedBits)
			continue
		}

		if unchecked.Payload.AnyAnd(disputedBitfield) {
			logger.Tracef("bitfield of validator %d contains disputed cores",
				unchecked.ValidatorIndex)
			continue
		}

		validatorIndex := unchecked.ValidatorIndex

		if haveLastIndex && lastIndex >= validatorIndex {
			logger.Tracef("bitfield validator index is not greater than last: !(%d < %d)",
				lastIndex, validatorIndex)
			continue
		}

		if uint32(validatorIndex) >= uint32(len(validators)) {
			logger.Tracef("bitfield validator index is out of bounds: %d >= %d",
				validatorIndex, len(validators))
			continue
		}

		checked, err := unchecked.TryIntoChecked(signingContext, validators[validatorIndex])
		if err != nil {
			logger.Warnf("invalid bitfield signature from validator %d: %s",
				validatorIndex, err)
			invalidBitfieldSignatures.Inc()
		} else {
			bitfields = append(bitfields, checked)
			validBitfieldSignatures.Inc()
		}

		lastIndex = validatorIndex
		haveLastIndex = true
	}

	return bitfields
}
