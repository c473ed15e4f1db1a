// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

type disputeSetKey struct {
	session   parachaintypes.SessionIndex
	candidate parachaintypes.CandidateHash
}

// dedupeDisputes removes duplicate (session, candidate hash) statement
// sets, keeping the first occurrence. Returns true if any duplicate was
// found.
func dedupeDisputes(disputes parachaintypes.MultiDisputeStatementSet,
) (parachaintypes.MultiDisputeStatementSet, bool) {
	seen := make(map[disputeSetKey]struct{}, len(disputes))
	deduped := make(parachaintypes.MultiDisputeStatementSet, 0, len(disputes))

	for _, set := range disputes {
		key := disputeSetKey{session: set.Session, candidate: set.CandidateHash}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, set)
	}

	return deduped, len(deduped) != len(disputes)
}

// disputeSetValidityFn validates one dispute statement set, returning its
// checked form or false when the whole set must be dropped.
type disputeSetValidityFn func(parachaintypes.DisputeStatementSet,
) (parachaintypes.CheckedDisputeStatementSet, bool)

// limitAndSanitizeDisputes bounds the dispute statement sets by weight.
//
// If everything fits, every set is run through the validity function and
// the consumed weight is recomputed from the kept sets only. Under
// scarcity the sets are walked in order, charging the weight of every set
// in the accepted prefix whether or not it turns out valid (invalid data
// costs processing time too), stopping at the first set that would exceed
// the budget. The consumed weight is always within maxConsumableWeight.
func limitAndSanitizeDisputes(
	weights WeightInfo,
	disputes parachaintypes.MultiDisputeStatementSet,
	disputeSetValid disputeSetValidityFn,
	maxConsumableWeight parachaintypes.Weight,
) ([]parachaintypes.CheckedDisputeStatementSet, parachaintypes.Weight) {
	disputesWeight := multiDisputeStatementSetsWeight(weights, disputes)

	if disputesWeight.AnyGt(maxConsumableWeight) {
		logger.Debugf("disputes above max consumable weight: %s/%s",
			disputesWeight, maxConsumableWeight)

		checked := make([]parachaintypes.CheckedDisputeStatementSet, 0, len(disputes))
		var weightAcc parachaintypes.Weight

		for _, set := range disputes {
			updated := weightAcc.Add(disputeStatementSetWeight(weights, set))
			if !maxConsumableWeight.AllGte(updated) {
				break
			}
			weightAcc = updated
			if checkedSet, ok := disputeSetValid(set); ok {
				checked = append(checked, checkedSet)
			}
		}

		return checked, weightAcc
	}

	checked := make([]parachaintypes.CheckedDisputeStatementSet, 0, len(disputes))
	for _, set := range disputes {
		if checkedSet, ok := disputeSetValid(set); ok {
			checked = append(checked, checkedSet)
		}
	}

	// some might have been filtered out, so recompute the weight
	return checked, checkedMultiDisputeStatementSetsWeight(weights, checked)
}
