// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

// The weight accountant: pure additive functions over the WeightInfo cost
// table. Empty input always costs zero.

// signedBitfieldWeight returns the cost of processing one signed bitfield.
func signedBitfieldWeight(weights WeightInfo) parachaintypes.Weight {
	return weights.EnterBitfields()
}

// signedBitfieldsWeight returns the cost of processing the given number of
// signed bitfields.
func signedBitfieldsWeight(weights WeightInfo, count int) parachaintypes.Weight {
	var total parachaintypes.Weight
	for i := 0; i < count; i++ {
		total = total.Add(signedBitfieldWeight(weights))
	}
	return total
}

// backedCandidateWeight returns the cost of processing one backed
// candidate. Candidates carrying a code upgrade use the dedicated,
// heavier benchmark.
func backedCandidateWeight(weights WeightInfo, candidate *parachaintypes.BackedCandidate,
) parachaintypes.Weight {
	if candidate.HasCodeUpgrade() {
		return weights.EnterBackedCandidateCodeUpgraded()
	}
	return weights.EnterBackedCandidatesVariable(len(candidate.ValidityVotes))
}

// backedCandidatesWeight returns the cost of processing all the given
// backed candidates.
func backedCandidatesWeight(weights WeightInfo, candidates []parachaintypes.BackedCandidate,
) parachaintypes.Weight {
	var total parachaintypes.Weight
	for i := range candidates {
		total = total.Add(backedCandidateWeight(weights, &candidates[i]))
	}
	return total
}

// disputeStatementSetWeight returns the cost of importing one dispute
// statement set.
func disputeStatementSetWeight(weights WeightInfo, set parachaintypes.DisputeStatementSet,
) parachaintypes.Weight {
	return weights.EnterDisputeStatementSet(len(set.Statements))
}

// multiDisputeStatementSetsWeight returns the cost of importing all the
// given dispute statement sets.
func multiDisputeStatementSetsWeight(weights WeightInfo,
	sets parachaintypes.MultiDisputeStatementSet) parachaintypes.Weight {
	var total parachaintypes.Weight
	for _, set := range sets {
		total = total.Add(disputeStatementSetWeight(weights, set))
	}
	return total
}

// checkedMultiDisputeStatementSetsWeight returns the cost of importing all
// the given checked dispute statement sets.
func checkedMultiDisputeStatementSetsWeight(weights WeightInfo,
	sets []parachaintypes.CheckedDisputeStatementSet) parachaintypes.Weight {
	var total parachaintypes.Weight
	for _, set := range sets {
		total = total.Add(disputeStatementSetWeight(weights, set.AsUnchecked()))
	}
	return total
}
