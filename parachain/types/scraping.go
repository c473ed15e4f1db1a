// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

// BackingValidators is one backing validator's index and attestation for a
// candidate.
type BackingValidators struct {
	ValidatorIndex      ValidatorIndex
	ValidityAttestation ValidityAttestation
}

// BackingValidatorsPerCandidate is the set of backing votes recorded on
// chain for one candidate.
type BackingValidatorsPerCandidate struct {
	CandidateReceipt  CandidateReceipt
	BackingValidators []BackingValidators
}

// ScrapedOnChainVotes are the backing votes and dispute statements a
// processed inherent contributed on chain, as exposed to off chain
// subsystems.
type ScrapedOnChainVotes struct {
	Session           SessionIndex
	BackingValidators []BackingValidatorsPerCandidate
	Disputes          MultiDisputeStatementSet
}
