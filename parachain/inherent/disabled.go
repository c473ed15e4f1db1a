// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

// effectiveMinimumBackingVotes is the backing vote threshold for a group:
// the configured minimum, capped by the group size.
func effectiveMinimumBackingVotes(groupLen int, configured uint32) int {
	if groupLen < int(configured) {
		return groupLen
	}
	return int(configured)
}

// filterDisabledValidatorVotes strips backing votes cast by disabled
// validators from the mapped candidates. A candidate left with fewer votes
// than the effective minimum for its backing group is dropped, along with
// its chain successors.
func (p *ParasInherent) filterDisabledValidatorVotes(
	candidatesWithCore map[parachaintypes.ParaID][]BackedCandidateWithCore,
	tracker *parachaintypes.AllowedRelayParentsTracker,
	coreIndexEnabled bool,
) {
	disabledList := p.shared.DisabledValidators()
	if len(disabledList) == 0 {
		return
	}

	disabled := make(map[parachaintypes.ValidatorIndex]struct{}, len(disabledList))
	for _, index := range disabledList {
		disabled[index] = struct{}{}
	}

	minimumBackingVotes := p.config.MinimumBackingVotes()

	// The validator index bitmap of a backed candidate is relative to the
	// validator group assigned to its core. Resolving the group needs the
	// core index and the candidate's relay parent block number.
	retainCandidates(candidatesWithCore,
		func(paraID parachaintypes.ParaID, withCore *BackedCandidateWithCore) bool {
			bc := &withCore.Candidate

			validatorIndices, maybeCoreIndex := bc.ValidatorIndicesAndCoreIndex(coreIndexEnabled)

			info, ok := tracker.AcquireInfo(bc.Descriptor().RelayParent)
			if !ok {
				logger.Debugf(
					"relay parent %s of candidate is not in the allowed window, dropping",
					bc.Descriptor().RelayParent)
				return false
			}

			groupIndex, ok := p.scheduler.GroupAssignedToCore(withCore.CoreIndex, info.Number+1)
			if !ok {
				logger.Debugf("no group assigned to core %d, dropping the candidate",
					withCore.CoreIndex)
				return false
			}

			validatorGroup, ok := p.scheduler.GroupValidators(groupIndex)
			if !ok {
				logger.Debugf("no validators in group %d, dropping the candidate", groupIndex)
				return false
			}

			// positions within the group whose votes must be dropped
			var indicesToDrop []int
			kept := make([]bool, len(validatorIndices))
			copy(kept, validatorIndices)

			for position, validatorIndex := range validatorGroup {
				if position >= len(kept) {
					break
				}
				if _, isDisabled := disabled[validatorIndex]; !isDisabled {
					continue
				}
				if kept[position] {
					indicesToDrop = append(indicesToDrop, position)
					kept[position] = false
				}
			}

			bc.SetValidatorIndicesAndCoreIndex(kept, maybeCoreIndex)

			// the vote list is ordered by position within the group, so a
			// dropped bit at the n-th set position removes the n-th vote;
			// remove highest first to keep indices valid
			for i := len(indicesToDrop) - 1; i >= 0; i-- {
				voteIndex := countSetBitsBelow(validatorIndices, indicesToDrop[i])
				bc.ValidityVotes = append(
					bc.ValidityVotes[:voteIndex], bc.ValidityVotes[voteIndex+1:]...)
			}

			if len(bc.ValidityVotes) <
				effectiveMinimumBackingVotes(len(validatorGroup), minimumBackingVotes) {
				logger.Debugf(
					"dropping candidate of paraid %d: too few backing votes after disabled filter",
					paraID)
				return false
			}

			return true
		})
}

// countSetBitsBelow returns the number of set bits before the given
// position, which is the vote list index of the vote cast at position.
func countSetBitsBelow(bits []bool, position int) int {
	count := 0
	for i := 0; i < position && i < len(bits); i++ {
		if bits[i] {
			count++
		}
	}
	return count
}
