// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

// BackedCandidateWithCore is a sanitized backed candidate assigned to its
// availability core.
type BackedCandidateWithCore struct {
	Candidate parachaintypes.BackedCandidate
	CoreIndex parachaintypes.CoreIndex
}

// retainCandidates truncates each para's candidate list at the first
// element failing the predicate. Candidates of one para form a dependency
// chain, so everything after a dropped candidate is dropped too.
func retainCandidates[C any](
	candidatesPerPara map[parachaintypes.ParaID][]C,
	pred func(parachaintypes.ParaID, *C) bool,
) {
	for paraID, candidates := range candidatesPerPara {
		keep := 0
		for i := range candidates {
			if !pred(paraID, &candidates[i]) {
				break
			}
			keep = i + 1
		}

		if keep == 0 {
			delete(candidatesPerPara, paraID)
		} else {
			candidatesPerPara[paraID] = candidates[:keep]
		}
	}
}

// countBackedCandidates returns the total number of candidates in the map.
func countBackedCandidates(
	candidatesPerPara map[parachaintypes.ParaID][]BackedCandidateWithCore,
) int {
	count := 0
	for _, candidates := range candidatesPerPara {
		count += len(candidates)
	}
	return count
}

// sanitizeBackedCandidates runs the full candidate filtering: chain
// linearity, concluded invalid exclusion, core mapping and the disabled
// validator vote filter. The returned map keeps each para's candidates in
// dependency order.
func (p *ParasInherent) sanitizeBackedCandidates(
	backedCandidates []parachaintypes.BackedCandidate,
	tracker *parachaintypes.AllowedRelayParentsTracker,
	concludedInvalidWithDescendants map[parachaintypes.CandidateHash]struct{},
	scheduled map[parachaintypes.ParaID]map[parachaintypes.CoreIndex]struct{},
	coreIndexEnabled bool,
) map[parachaintypes.ParaID][]BackedCandidateWithCore {
	// Group candidates per para, keeping the order between candidates of
	// the same para.
	candidatesPerPara := make(map[parachaintypes.ParaID][]parachaintypes.BackedCandidate)
	for _, candidate := range backedCandidates {
		paraID := candidate.Descriptor().ParaID
		candidatesPerPara[paraID] = append(candidatesPerPara[paraID], candidate)
	}

	p.filterUnchainedCandidates(candidatesPerPara, tracker)

	retainCandidates(candidatesPerPara,
		func(paraID parachaintypes.ParaID, candidate *parachaintypes.BackedCandidate) bool {
			hash, err := candidate.Candidate.Hash()
			if err != nil {
				logger.Warnf("hashing candidate of paraid %d: %s", paraID, err)
				return false
			}

			if _, invalid := concludedInvalidWithDescendants[hash]; invalid {
				logger.Debugf(
					"found backed candidate %s of paraid %d concluded invalid or descended from one",
					hash, paraID)
				return false
			}
			return true
		})

	candidatesWithCore := p.mapCandidatesToCores(
		tracker, scheduled, coreIndexEnabled, candidatesPerPara)

	p.filterDisabledValidatorVotes(candidatesWithCore, tracker, coreIndexEnabled)

	return candidatesWithCore
}

// filterUnchainedCandidates checks that candidates of the same para form a
// chain extending the para's latest included head data, dropping the first
// offender and everything after it. Duplicate candidates are dropped too,
// even when they would form a valid cycle.
func (p *ParasInherent) filterUnchainedCandidates(
	candidates map[parachaintypes.ParaID][]parachaintypes.BackedCandidate,
	tracker *parachaintypes.AllowedRelayParentsTracker,
) {
	latestHeadData := make(map[parachaintypes.ParaID]parachaintypes.HeadData, len(candidates))
	for paraID := range candidates {
		headData, ok := p.inclusion.ParaLatestHeadData(paraID)
		if !ok {
			logger.Warnf("latest included head data for paraid %d is missing", paraID)
			continue
		}
		latestHeadData[paraID] = headData
	}

	visited := make(map[parachaintypes.ParaID]map[parachaintypes.CandidateHash]struct{})

	retainCandidates(candidates,
		func(paraID parachaintypes.ParaID, candidate *parachaintypes.BackedCandidate) bool {
			headData, ok := latestHeadData[paraID]
			if !ok {
				return false
			}

			candidateHash, err := candidate.Candidate.Hash()
			if err != nil {
				logger.Warnf("hashing candidate of paraid %d: %s", paraID, err)
				return false
			}

			visitedForPara := visited[paraID]
			if visitedForPara == nil {
				visitedForPara = make(map[parachaintypes.CandidateHash]struct{})
				visited[paraID] = visitedForPara
			}
			if _, seen := visitedForPara[candidateHash]; seen {
				logger.Debugf("found duplicate candidate %s for paraid %d",
					candidateHash, paraID)
				return false
			}
			visitedForPara[candidateHash] = struct{}{}

			if !p.verifyBackedCandidate(tracker, candidate, headData) {
				return false
			}

			latestHeadData[paraID] = candidate.Candidate.Commitments.HeadData
			return true
		})
}

// verifyBackedCandidate checks one candidate against the running head
// data: the relay parent must lie within the allowed window and the
// persisted validation data hash must commit to the running head at that
// relay parent.
func (p *ParasInherent) verifyBackedCandidate(
	tracker *parachaintypes.AllowedRelayParentsTracker,
	candidate *parachaintypes.BackedCandidate,
	parentHeadData parachaintypes.HeadData,
) bool {
	descriptor := candidate.Descriptor()

	info, ok := tracker.AcquireInfo(descriptor.RelayParent)
	if !ok {
		logger.Debugf("relay parent %s of candidate for paraid %d is not in the allowed window",
			descriptor.RelayParent, descriptor.ParaID)
		return false
	}

	expectedPVD := parachaintypes.PersistedValidationData{
		ParentHead:             parentHeadData,
		RelayParentNumber:      info.Number,
		RelayParentStorageRoot: info.StateRoot,
		MaxPovSize:             p.config.MaxPovSize(),
	}

	expectedHash, err := expectedPVD.Hash()
	if err != nil {
		logger.Warnf("hashing persisted validation data: %s", err)
		return false
	}

	if expectedHash != descriptor.PersistedValidationDataHash {
		logger.Debugf(
			"persisted validation data mismatch for candidate of paraid %d: %s != %s",
			descriptor.ParaID, expectedHash, descriptor.PersistedValidationDataHash)
		return false
	}

	return true
}

// mapCandidatesToCores maps each para's candidates to its scheduled cores.
// A para with a single scheduled core and elastic scaling off takes its
// first candidate only. With elastic scaling on, candidates must carry an
// injected core index naming a still unassigned scheduled core. A para
// with multiple scheduled cores but elastic scaling off gets nothing.
func (p *ParasInherent) mapCandidatesToCores(
	tracker *parachaintypes.AllowedRelayParentsTracker,
	scheduled map[parachaintypes.ParaID]map[parachaintypes.CoreIndex]struct{},
	coreIndexEnabled bool,
	candidates map[parachaintypes.ParaID][]parachaintypes.BackedCandidate,
) map[parachaintypes.ParaID][]BackedCandidateWithCore {
	candidatesWithCore := make(map[parachaintypes.ParaID][]BackedCandidateWithCore)

	for paraID, backedCandidates := range candidates {
		if len(backedCandidates) == 0 {
			continue
		}

		scheduledCores, ok := scheduled[paraID]
		if !ok || len(scheduledCores) == 0 {
			// paras without scheduled cores are silently filtered out
			logger.Debugf("paraid %d has no scheduled cores but %d candidates were supplied",
				paraID, len(backedCandidates))
			continue
		}

		switch {
		case len(scheduledCores) == 1 && !coreIndexEnabled:
			var core parachaintypes.CoreIndex
			for coreIndex := range scheduledCores {
				core = coreIndex
			}
			delete(scheduledCores, core)

			// candidates of a para are in dependency order, take the first
			candidatesWithCore[paraID] = []BackedCandidateWithCore{{
				Candidate: backedCandidates[0],
				CoreIndex: core,
			}}

		case coreIndexEnabled:
			assigned := make([]BackedCandidateWithCore, 0, len(scheduledCores))

			for i := range backedCandidates {
				if len(scheduledCores) == 0 {
					logger.Debugf("found enough candidates for paraid %d", paraID)
					break
				}

				coreIndex, ok := p.getInjectedCoreIndex(tracker, &backedCandidates[i])
				if !ok {
					// stop the work for this para, the already assigned
					// chain prefix is still fine
					logger.Debugf(
						"candidate for paraid %d has no usable injected core index", paraID)
					break
				}

				if _, isScheduled := scheduledCores[coreIndex]; !isScheduled {
					logger.Debugf(
						"candidate for paraid %d names core %d which is not scheduled",
						paraID, coreIndex)
					break
				}
				delete(scheduledCores, coreIndex)

				assigned = append(assigned, BackedCandidateWithCore{
					Candidate: backedCandidates[i],
					CoreIndex: coreIndex,
				})
			}

			if len(assigned) > 0 {
				candidatesWithCore[paraID] = assigned
			}

		default:
			logger.Warnf(
				"paraid %d has multiple scheduled cores but elastic scaling is not enabled",
				paraID)
		}
	}

	return candidatesWithCore
}

// getInjectedCoreIndex extracts and validates the core index injected into
// the candidate's validator index bitmap. After stripping the injected
// bits the bitmap length must equal the backing group size at the
// candidate's relay parent, otherwise the core index is badly encoded.
func (p *ParasInherent) getInjectedCoreIndex(
	tracker *parachaintypes.AllowedRelayParentsTracker,
	candidate *parachaintypes.BackedCandidate,
) (parachaintypes.CoreIndex, bool) {
	validatorIndices, maybeCoreIndex := candidate.ValidatorIndicesAndCoreIndex(true)
	if maybeCoreIndex == nil {
		return 0, false
	}
	coreIndex := *maybeCoreIndex

	info, ok := tracker.AcquireInfo(candidate.Descriptor().RelayParent)
	if !ok {
		logger.Debugf("relay parent %s of candidate is not in the allowed window",
			candidate.Descriptor().RelayParent)
		return 0, false
	}

	groupIndex, ok := p.scheduler.GroupAssignedToCore(coreIndex, info.Number+1)
	if !ok {
		logger.Debugf("no group assigned to core %d", coreIndex)
		return 0, false
	}

	groupValidators, ok := p.scheduler.GroupValidators(groupIndex)
	if !ok {
		return 0, false
	}

	if len(groupValidators) != len(validatorIndices) {
		logger.Debugf("validator indices count %d does not match group size %d",
			len(validatorIndices), len(groupValidators))
		return 0, false
	}

	return coreIndex, true
}
