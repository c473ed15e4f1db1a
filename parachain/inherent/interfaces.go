// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	"github.com/ChainSafe/gossamer/lib/common"

	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

// WeightInfo is the benchmark-derived cost table for inherent processing.
type WeightInfo interface {
	// EnterBitfields is the cost of processing one signed bitfield.
	EnterBitfields() parachaintypes.Weight
	// EnterBackedCandidatesVariable is the cost of processing one backed
	// candidate carrying the given number of validity votes.
	EnterBackedCandidatesVariable(votes int) parachaintypes.Weight
	// EnterBackedCandidateCodeUpgraded is the cost of processing one backed
	// candidate that commits to a validation code upgrade.
	EnterBackedCandidateCodeUpgraded() parachaintypes.Weight
	// EnterDisputeStatementSet is the cost of importing one dispute
	// statement set with the given number of statements.
	EnterDisputeStatementSet(statements int) parachaintypes.Weight
}

// Configuration exposes the active host configuration values the pipeline
// consumes.
type Configuration interface {
	// MaxInherentWeight is the weight budget for the whole inherent,
	// derived from the mandatory dispatch class limits.
	MaxInherentWeight() parachaintypes.Weight
	// MinimumBackingVotes is the configured minimum number of backing
	// votes per candidate.
	MinimumBackingVotes() uint32
	// DisputePostConclusionAcceptancePeriod is how long after conclusion
	// dispute statements are still accepted.
	DisputePostConclusionAcceptancePeriod() parachaintypes.BlockNumber
	// AllowedAncestryLen is the depth of the allowed relay parents window.
	AllowedAncestryLen() uint32
	// MaxPovSize is the maximum proof of validity size, committed to by
	// every candidate's persisted validation data.
	MaxPovSize() uint32
	// ElasticScalingMVP reports whether the elastic scaling node feature
	// is enabled, allowing candidates to carry an injected core index.
	ElasticScalingMVP() bool
}

// FreedReason is why an availability core was freed.
type FreedReason byte

const (
	// FreedReasonConcluded means the candidate occupying the core
	// concluded, by availability or by dispute.
	FreedReasonConcluded FreedReason = iota
	// FreedReasonTimedOut means availability timed out.
	FreedReasonTimedOut
)

// CoreIndexAndPara pairs a scheduled core with the para assigned to it.
type CoreIndexAndPara struct {
	CoreIndex parachaintypes.CoreIndex
	ParaID    parachaintypes.ParaID
}

// Scheduler exposes the availability core scheduler.
type Scheduler interface {
	// AvailabilityCores returns the number of availability cores, which is
	// the expected bit length of every availability bitfield.
	AvailabilityCores() uint32
	// ScheduledParas returns the current (core, para) assignments.
	ScheduledParas() []CoreIndexAndPara
	// GroupAssignedToCore returns the backing group assigned to the core
	// at the given block number.
	GroupAssignedToCore(core parachaintypes.CoreIndex, at parachaintypes.BlockNumber,
	) (parachaintypes.GroupIndex, bool)
	// GroupValidators returns the validator indices making up a group.
	GroupValidators(group parachaintypes.GroupIndex) ([]parachaintypes.ValidatorIndex, bool)
	// AvailabilityTimeoutCheckRequired reports whether timed out cores
	// should be freed this block.
	AvailabilityTimeoutCheckRequired() bool
	// FreeCoresAndFillClaimQueue frees the given cores and refills the
	// claim queue for the current block.
	FreeCoresAndFillClaimQueue(freed map[parachaintypes.CoreIndex]FreedReason,
		now parachaintypes.BlockNumber)
	// Occupied notes which scheduled cores were occupied by a backed
	// candidate this block.
	Occupied(cores []CoreIndexAndPara)
}

// FreedCore is a core freed by a concluded-invalid dispute, together with
// the candidate that occupied it.
type FreedCore struct {
	CoreIndex     parachaintypes.CoreIndex
	CandidateHash parachaintypes.CandidateHash
}

// ProcessedCandidates is the result of handing the admitted candidates to
// the inclusion module.
type ProcessedCandidates struct {
	// CoreIndices are the cores now occupied, along with the para
	// occupying them.
	CoreIndices []CoreIndexAndPara
	// CandidateReceiptsWithBackingValidatorIndices are the per candidate
	// backing votes, for on chain scraping.
	CandidateReceiptsWithBackingValidatorIndices []parachaintypes.BackingValidatorsPerCandidate
}

// Inclusion exposes the availability bookkeeping module.
type Inclusion interface {
	// ParaLatestHeadData returns the latest included head data for a para.
	ParaLatestHeadData(para parachaintypes.ParaID) (parachaintypes.HeadData, bool)
	// FreeDisputed frees cores occupied by the given concluded invalid
	// candidates, returning the freed cores and the full set of concluded
	// invalid candidate hashes including descendants.
	FreeDisputed(concludedInvalid map[parachaintypes.CandidateHash]struct{}) []FreedCore
	// UpdatePendingAvailability processes the checked bitfields and
	// returns the cores whose candidates became available, with the
	// candidate hashes.
	UpdatePendingAvailability(validators []parachaintypes.ValidatorID,
		bitfields []parachaintypes.SignedAvailabilityBitfield) []FreedCore
	// FreeTimedout frees cores whose availability timed out.
	FreeTimedout() []parachaintypes.CoreIndex
	// ProcessCandidates enacts the admitted candidates, returning the
	// occupied cores and backing vote records.
	ProcessCandidates(tracker *parachaintypes.AllowedRelayParentsTracker,
		candidates map[parachaintypes.ParaID][]BackedCandidateWithCore,
		coreIndexEnabled bool) (ProcessedCandidates, error)
}

// DisputesHandler exposes the dispute adjudication module.
type DisputesHandler interface {
	// FilterDisputeData validates one statement set, returning its checked
	// form or false when the whole set must be dropped.
	FilterDisputeData(set parachaintypes.DisputeStatementSet,
		postConclusionAcceptancePeriod parachaintypes.BlockNumber,
	) (parachaintypes.CheckedDisputeStatementSet, bool)
	// ProcessCheckedMultiDisputeData imports the checked statement sets.
	ProcessCheckedMultiDisputeData(sets []parachaintypes.CheckedDisputeStatementSet) error
	// ConcludedInvalid reports whether the dispute on the given candidate
	// concluded against it.
	ConcludedInvalid(session parachaintypes.SessionIndex,
		candidate parachaintypes.CandidateHash) bool
	// IsFrozen reports whether the chain is frozen due to a dispute
	// against a finalized block. No candidates are included while frozen.
	IsFrozen() bool
	// NoteIncluded records that a candidate was included on chain.
	NoteIncluded(session parachaintypes.SessionIndex,
		candidate parachaintypes.CandidateHash, includedIn parachaintypes.BlockNumber)
}

// Shared exposes session-scoped validator state.
type Shared interface {
	// SessionIndex returns the current session index.
	SessionIndex() parachaintypes.SessionIndex
	// ActiveValidatorKeys returns the active validator public keys, in
	// validator index order.
	ActiveValidatorKeys() []parachaintypes.ValidatorID
	// DisabledValidators returns the currently disabled validator indices.
	DisabledValidators() []parachaintypes.ValidatorIndex
	// AllowedRelayParents returns the mutable allowed relay parents
	// window. It is owned by the surrounding block execution context.
	AllowedRelayParents() *parachaintypes.AllowedRelayParentsTracker
}

// Randomness provides verifiable per block randomness.
type Randomness interface {
	// ParentBlockRandomness returns the randomness of the parent block
	// under the given subject, or false when none is available.
	ParentBlockRandomness(subject []byte) (common.Hash, bool)
}
