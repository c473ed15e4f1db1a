// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package parasinherent decides, for each relay chain block, which
// availability bitfields, backed candidates and dispute statement sets are
// admitted into the block's state transition. The pipeline reduces the
// untrusted bundle submitted by the block author to a subset that fits the
// block weight budget, is internally consistent, and is reproduced
// bit for bit by every node re-executing the block.
package parasinherent

import (
	"fmt"
	"sort"

	"github.com/ChainSafe/gossamer/dot/types"
	"github.com/ChainSafe/gossamer/lib/common"

	"github.com/ChainSafe/paras-inherent/internal/log"
	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "paras-inherent"))

// InherentData is the parachains inherent passed into the runtime by a
// block author.
type InherentData struct {
	// Bitfields are signed availability bitfields by validators.
	Bitfields []parachaintypes.UncheckedSignedAvailabilityBitfield `scale:"1"`
	// BackedCandidates are backed candidates for inclusion in the block.
	BackedCandidates []parachaintypes.BackedCandidate `scale:"2"`
	// Disputes are sets of dispute votes for inclusion.
	Disputes parachaintypes.MultiDisputeStatementSet `scale:"3"`
	// ParentHeader is the parent block header, used for checking state
	// proofs.
	ParentHeader types.Header `scale:"4"`
}

// processContext is the context in which the inherent data is processed.
type processContext int

const (
	// contextProvideInherent filters and weight-limits the inherent data
	// during block authorship, up to the maximum block weight.
	contextProvideInherent processContext = iota
	// contextEnter checks the weight invariant during block execution.
	contextEnter
)

// ParasInherent is the admission pipeline for one relay chain block. All
// collaborators are injected at construction; the instance lives for
// exactly one block.
type ParasInherent struct {
	config     Configuration
	scheduler  Scheduler
	inclusion  Inclusion
	disputes   DisputesHandler
	shared     Shared
	randomness Randomness
	weights    WeightInfo

	parentHash  common.Hash
	blockNumber parachaintypes.BlockNumber

	// included latches whether the inherent was entered this block. The
	// block is invalid if it is still unset at finalization.
	included     bool
	onChainVotes *parachaintypes.ScrapedOnChainVotes
}

// Config wires the collaborators and the block context into a new
// ParasInherent.
type Config struct {
	Configuration Configuration
	Scheduler     Scheduler
	Inclusion     Inclusion
	Disputes      DisputesHandler
	Shared        Shared
	Randomness    Randomness
	Weights       WeightInfo

	// ParentHash is the hash of the parent block.
	ParentHash common.Hash
	// BlockNumber is the number of the block being built or executed.
	BlockNumber parachaintypes.BlockNumber
}

// New returns the admission pipeline for one block.
func New(config Config) *ParasInherent {
	return &ParasInherent{
		config:      config.Configuration,
		scheduler:   config.Scheduler,
		inclusion:   config.Inclusion,
		disputes:    config.Disputes,
		shared:      config.Shared,
		randomness:  config.Randomness,
		weights:     config.Weights,
		parentHash:  config.ParentHash,
		blockNumber: config.BlockNumber,
	}
}

// Enter processes the inherent during block execution. It must be called
// at most once per block and rejects rather than silently fixing: any
// data the author should have filtered is a hard error. Returns the
// weight consumed by the inherent.
func (p *ParasInherent) Enter(data InherentData) (parachaintypes.Weight, error) {
	if p.included {
		return parachaintypes.Weight{}, ErrTooManyInclusionInherents
	}
	p.included = true

	_, weight, err := p.processInherentData(data, contextEnter)
	if err != nil {
		return parachaintypes.Weight{}, err
	}
	return weight, nil
}

// CreateInherent builds the sanitized inherent during block authorship,
// dropping and trimming freely so that the result passes Enter on every
// honest node. Returns the sanitized bundle and its weight.
func (p *ParasInherent) CreateInherent(data InherentData) (InherentData, parachaintypes.Weight, error) {
	return p.processInherentData(data, contextProvideInherent)
}

// OnFinalize checks the end of block invariant: a block without the paras
// inherent is invalid.
func (p *ParasInherent) OnFinalize() error {
	if !p.included {
		return ErrInherentNotIncluded
	}
	return nil
}

// OnChainVotes returns the backing votes and dispute statements scraped
// from this block's inherent, or nil when none was processed.
func (p *ParasInherent) OnChainVotes() *parachaintypes.ScrapedOnChainVotes {
	return p.onChainVotes
}

// setScrapableOnChainDisputes updates the disputes half of the on chain
// votes, preserving the backings half when already written.
func (p *ParasInherent) setScrapableOnChainDisputes(session parachaintypes.SessionIndex,
	checked []parachaintypes.CheckedDisputeStatementSet) {
	disputes := make(parachaintypes.MultiDisputeStatementSet, 0, len(checked))
	for _, set := range checked {
		disputes = append(disputes, set.AsUnchecked())
	}

	votes := &parachaintypes.ScrapedOnChainVotes{Session: session, Disputes: disputes}
	if p.onChainVotes != nil {
		votes.BackingValidators = p.onChainVotes.BackingValidators
	}
	p.onChainVotes = votes
}

// setScrapableOnChainBackings updates the backings half of the on chain
// votes, preserving the disputes half when already written.
func (p *ParasInherent) setScrapableOnChainBackings(session parachaintypes.SessionIndex,
	backings []parachaintypes.BackingValidatorsPerCandidate) {
	votes := &parachaintypes.ScrapedOnChainVotes{Session: session, BackingValidators: backings}
	if p.onChainVotes != nil {
		votes.Disputes = p.onChainVotes.Disputes
	}
	p.onChainVotes = votes
}

// processInherentData runs the whole pipeline. The two contexts share
// every step except weight limiting: the author trims to the budget, the
// executor asserts the budget and that no further filtering occurred.
func (p *ParasInherent) processInherentData(data InherentData, context processContext,
) (InherentData, parachaintypes.Weight, error) {
	bitfields := data.Bitfields
	backedCandidates := data.BackedCandidates
	disputes := data.Disputes
	parentHeader := data.ParentHeader

	logger.Debugf("processing inherent data: %d bitfields, %d backed candidates, %d disputes",
		len(bitfields), len(backedCandidates), len(disputes))

	if parentHeader.Hash() != p.parentHash {
		return InherentData{}, parachaintypes.Weight{}, fmt.Errorf(
			"%w: %s != %s", ErrInvalidParentHeader, parentHeader.Hash(), p.parentHash)
	}

	now := p.blockNumber

	// Before anything else, update the allowed relay parents window.
	tracker := p.shared.AllowedRelayParents()
	tracker.Update(p.parentHash, parentHeader.StateRoot, now-1, p.config.AllowedAncestryLen())

	candidatesWeight := backedCandidatesWeight(p.weights, backedCandidates)
	bitfieldsWeight := signedBitfieldsWeight(p.weights, len(bitfields))
	disputesWeight := multiDisputeStatementSetsWeight(p.weights, disputes)

	// weight before filtering and sanitization
	allWeightBefore := candidatesWeight.Add(bitfieldsWeight).Add(disputesWeight)
	logger.Debugf("weight before filter: %s, candidates + bitfields: %s, disputes: %s",
		allWeightBefore, candidatesWeight.Add(bitfieldsWeight), disputesWeight)

	currentSession := p.shared.SessionIndex()
	expectedBits := p.scheduler.AvailabilityCores()
	validatorPublic := p.shared.ActiveValidatorKeys()
	maxBlockWeight := p.config.MaxInherentWeight()

	entropy := computeEntropy(p.randomness, p.parentHash)
	rng, err := newChaChaRng(entropy)
	if err != nil {
		return InherentData{}, parachaintypes.Weight{}, fmt.Errorf("seeding selector rng: %w", err)
	}

	var hadDuplicates bool
	disputes, hadDuplicates = dedupeDisputes(disputes)
	if hadDuplicates {
		logger.Debugf("found duplicate dispute statement sets, retaining the first")
	}

	acceptancePeriod := p.config.DisputePostConclusionAcceptancePeriod()
	disputeSetValid := func(set parachaintypes.DisputeStatementSet,
	) (parachaintypes.CheckedDisputeStatementSet, bool) {
		return p.disputes.FilterDisputeData(set, acceptancePeriod)
	}

	// Limit the disputes first, since the following steps depend on the
	// votes included here.
	checkedDisputes, checkedDisputesWeight := limitAndSanitizeDisputes(
		p.weights, disputes, disputeSetValid, maxBlockWeight)

	var allWeightAfter parachaintypes.Weight
	if context == contextProvideInherent {
		// Stay within the maximum block weight by limiting bitfields and
		// backed candidates. Disputes were already limited above.
		nonDisputesWeight := applyWeightLimit(p.weights, &backedCandidates, &bitfields,
			maxBlockWeight.Sub(checkedDisputesWeight), rng)

		allWeightAfter = nonDisputesWeight.Add(checkedDisputesWeight)
		logger.Debugf(
			"after filter: %d bitfields, %d backed candidates, %d checked disputes, weight %s",
			len(bitfields), len(backedCandidates), len(checkedDisputes), allWeightAfter)

		if allWeightAfter.AnyGt(maxBlockWeight) {
			logger.Warnf("post weight limiting weight is still too large: %s > %s",
				allWeightAfter, maxBlockWeight)
		}
	} else {
		// Block execution context: the author already guaranteed the
		// weight invariant, assert it.
		if allWeightBefore.AnyGt(maxBlockWeight) {
			logger.Errorf("overweight paras inherent data reached the runtime %s: %s > %s",
				p.parentHash, allWeightBefore, maxBlockWeight)
			return InherentData{}, parachaintypes.Weight{}, ErrInherentOverweight
		}
		allWeightAfter = allWeightBefore
	}

	// Import each checked dispute. The input is bounded by the weight
	// limiting above. Failures are tolerable here, storage is queried
	// through the handler afterwards either way.
	if err := p.disputes.ProcessCheckedMultiDisputeData(checkedDisputes); err != nil {
		logger.Warnf("importing dispute data failed: %s", err)
	}
	disputesImported.Add(float64(len(checkedDisputes)))

	p.setScrapableOnChainDisputes(currentSession, checkedDisputes)

	if p.disputes.IsFrozen() {
		// Relay chain freeze: the chain we are on is invalid, so no
		// parachain blocks are included. The inherent still succeeds,
		// carrying only the processed disputes.
		relayChainFreezes.Inc()

		uncheckedDisputes := make(parachaintypes.MultiDisputeStatementSet, 0, len(checkedDisputes))
		for _, set := range checkedDisputes {
			uncheckedDisputes = append(uncheckedDisputes, set.AsUnchecked())
		}

		return InherentData{
			Disputes:     uncheckedDisputes,
			ParentHeader: parentHeader,
		}, checkedDisputesWeight, nil
	}

	// Disputes concluding against a candidate in the current session are
	// the only ones that can still occupy cores; older conclusions have
	// had their cores cleaned up already.
	currentConcludedInvalid := make(map[parachaintypes.CandidateHash]struct{})
	for _, set := range checkedDisputes {
		unchecked := set.AsUnchecked()
		if unchecked.Session != currentSession {
			continue
		}
		if p.disputes.ConcludedInvalid(unchecked.Session, unchecked.CandidateHash) {
			currentConcludedInvalid[unchecked.CandidateHash] = struct{}{}
		}
	}

	// Cores freed as a result of concluded invalid candidates, including
	// evicted descendants.
	freedDisputed := p.inclusion.FreeDisputed(currentConcludedInvalid)

	freedDisputedCores := make([]parachaintypes.CoreIndex, 0, len(freedDisputed))
	concludedInvalidHashes := make(map[parachaintypes.CandidateHash]struct{}, len(freedDisputed))
	for _, freed := range freedDisputed {
		freedDisputedCores = append(freedDisputedCores, freed.CoreIndex)
		concludedInvalidHashes[freed.CandidateHash] = struct{}{}
	}

	disputedBitfield := createDisputedBitfield(expectedBits, freedDisputedCores)

	signingContext := parachaintypes.SigningContext{
		SessionIndex: currentSession,
		ParentHash:   p.parentHash,
	}
	checkedBitfields := sanitizeBitfields(
		bitfields, disputedBitfield, expectedBits, signingContext, validatorPublic)
	bitfieldsProcessed.Add(float64(len(checkedBitfields)))

	// Process the new availability bitfields, yielding any cores whose
	// work has now concluded.
	freedConcluded := p.inclusion.UpdatePendingAvailability(validatorPublic, checkedBitfields)

	// Inform the disputes module of all included candidates.
	for _, freed := range freedConcluded {
		p.disputes.NoteIncluded(currentSession, freed.CandidateHash, now)
	}
	candidatesIncluded.Add(float64(len(freedConcluded)))

	var freedTimeout []parachaintypes.CoreIndex
	if p.scheduler.AvailabilityTimeoutCheckRequired() {
		freedTimeout = p.inclusion.FreeTimedout()
	}
	if len(freedTimeout) > 0 {
		logger.Debugf("evicted timed out cores: %v", freedTimeout)
	}

	// Schedule paras again given the freed cores and the reasons for
	// freeing them.
	freed := make(map[parachaintypes.CoreIndex]FreedReason)
	for _, f := range freedConcluded {
		freed[f.CoreIndex] = FreedReasonConcluded
	}
	for _, core := range freedDisputedCores {
		freed[core] = FreedReasonConcluded
	}
	for _, core := range freedTimeout {
		freed[core] = FreedReasonTimedOut
	}
	p.scheduler.FreeCoresAndFillClaimQueue(freed, now)

	candidatesProcessed.Add(float64(len(backedCandidates)))

	coreIndexEnabled := p.config.ElasticScalingMVP()

	scheduled := make(map[parachaintypes.ParaID]map[parachaintypes.CoreIndex]struct{})
	totalScheduledCores := 0
	for _, assignment := range p.scheduler.ScheduledParas() {
		totalScheduledCores++
		cores := scheduled[assignment.ParaID]
		if cores == nil {
			cores = make(map[parachaintypes.CoreIndex]struct{})
			scheduled[assignment.ParaID] = cores
		}
		cores[assignment.CoreIndex] = struct{}{}
	}

	initialCandidateCount := len(backedCandidates)
	candidatesWithCore := p.sanitizeBackedCandidates(
		backedCandidates, tracker, concludedInvalidHashes, scheduled, coreIndexEnabled)
	count := countBackedCandidates(candidatesWithCore)

	if count > totalScheduledCores {
		return InherentData{}, parachaintypes.Weight{}, fmt.Errorf(
			"%w: %d > %d", ErrUnscheduledCandidate, count, totalScheduledCores)
	}
	candidatesSanitized.Add(float64(count))

	// During execution no more candidates may be filtered, that already
	// happened during creation. Abort otherwise.
	if context == contextEnter && initialCandidateCount != count {
		return InherentData{}, parachaintypes.Weight{}, fmt.Errorf(
			"%w: %d -> %d", ErrCandidatesFilteredDuringExecution, initialCandidateCount, count)
	}

	processed, err := p.inclusion.ProcessCandidates(tracker, candidatesWithCore, coreIndexEnabled)
	if err != nil {
		return InherentData{}, parachaintypes.Weight{}, fmt.Errorf("processing candidates: %w", err)
	}

	// Note which of the scheduled cores were actually occupied.
	p.scheduler.Occupied(processed.CoreIndices)

	p.setScrapableOnChainBackings(currentSession,
		processed.CandidateReceiptsWithBackingValidatorIndices)

	uncheckedDisputes := make(parachaintypes.MultiDisputeStatementSet, 0, len(checkedDisputes))
	for _, set := range checkedDisputes {
		uncheckedDisputes = append(uncheckedDisputes, set.AsUnchecked())
	}

	uncheckedBitfields := make([]parachaintypes.UncheckedSignedAvailabilityBitfield,
		0, len(checkedBitfields))
	for _, bitfield := range checkedBitfields {
		uncheckedBitfields = append(uncheckedBitfields, bitfield.IntoUnchecked())
	}

	return InherentData{
		Bitfields:        uncheckedBitfields,
		BackedCandidates: flattenCandidates(candidatesWithCore, count),
		Disputes:         uncheckedDisputes,
		ParentHeader:     parentHeader,
	}, allWeightAfter, nil
}

// flattenCandidates lays the mapped candidates back out as a flat list, in
// ascending para order with each para's dependency order kept.
func flattenCandidates(
	candidatesWithCore map[parachaintypes.ParaID][]BackedCandidateWithCore,
	count int,
) []parachaintypes.BackedCandidate {
	paraIDs := make([]parachaintypes.ParaID, 0, len(candidatesWithCore))
	for paraID := range candidatesWithCore {
		paraIDs = append(paraIDs, paraID)
	}
	sort.Slice(paraIDs, func(i, j int) bool { return paraIDs[i] < paraIDs[j] })

	flattened := make([]parachaintypes.BackedCandidate, 0, count)
	for _, paraID := range paraIDs {
		for _, withCore := range candidatesWithCore[paraID] {
			flattened = append(flattened, withCore.Candidate)
		}
	}
	return flattened
}
