// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	"testing"

	"github.com/ChainSafe/gossamer/lib/common"
	"github.com/ChainSafe/gossamer/lib/crypto/sr25519"
	"github.com/stretchr/testify/require"

	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

// fakeWeights is a flat cost table for tests.
type fakeWeights struct{}

func (fakeWeights) EnterBitfields() parachaintypes.Weight {
	return parachaintypes.NewWeight(100, 100)
}

func (fakeWeights) EnterBackedCandidatesVariable(votes int) parachaintypes.Weight {
	return parachaintypes.NewWeight(1000+100*uint64(votes), 1000)
}

func (fakeWeights) EnterBackedCandidateCodeUpgraded() parachaintypes.Weight {
	return parachaintypes.NewWeight(10000, 10000)
}

func (fakeWeights) EnterDisputeStatementSet(statements int) parachaintypes.Weight {
	return parachaintypes.NewWeight(200+10*uint64(statements), 200)
}

type fakeConfiguration struct {
	maxWeight        parachaintypes.Weight
	minBackingVotes  uint32
	acceptancePeriod parachaintypes.BlockNumber
	ancestryLen      uint32
	maxPovSize       uint32
	elastic          bool
}

func newFakeConfiguration() *fakeConfiguration {
	return &fakeConfiguration{
		maxWeight:        parachaintypes.NewWeight(1_000_000, 1_000_000),
		minBackingVotes:  2,
		acceptancePeriod: 10,
		ancestryLen:      3,
		maxPovSize:       5 * 1024 * 1024,
	}
}

func (f *fakeConfiguration) MaxInherentWeight() parachaintypes.Weight { return f.maxWeight }
func (f *fakeConfiguration) MinimumBackingVotes() uint32              { return f.minBackingVotes }
func (f *fakeConfiguration) DisputePostConclusionAcceptancePeriod() parachaintypes.BlockNumber {
	return f.acceptancePeriod
}
func (f *fakeConfiguration) AllowedAncestryLen() uint32 { return f.ancestryLen }
func (f *fakeConfiguration) MaxPovSize() uint32         { return f.maxPovSize }
func (f *fakeConfiguration) ElasticScalingMVP() bool    { return f.elastic }

type fakeScheduler struct {
	cores           uint32
	scheduled       []CoreIndexAndPara
	groupForCore    map[parachaintypes.CoreIndex]parachaintypes.GroupIndex
	groupValidators map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex
	timeoutCheck    bool

	freedCalls    []map[parachaintypes.CoreIndex]FreedReason
	occupiedCores []CoreIndexAndPara
}

func newFakeScheduler(cores uint32) *fakeScheduler {
	return &fakeScheduler{
		cores:           cores,
		groupForCore:    make(map[parachaintypes.CoreIndex]parachaintypes.GroupIndex),
		groupValidators: make(map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex),
	}
}

func (f *fakeScheduler) AvailabilityCores() uint32          { return f.cores }
func (f *fakeScheduler) ScheduledParas() []CoreIndexAndPara { return f.scheduled }

func (f *fakeScheduler) GroupAssignedToCore(core parachaintypes.CoreIndex,
	_ parachaintypes.BlockNumber) (parachaintypes.GroupIndex, bool) {
	group, ok := f.groupForCore[core]
	return group, ok
}

func (f *fakeScheduler) GroupValidators(group parachaintypes.GroupIndex,
) ([]parachaintypes.ValidatorIndex, bool) {
	validators, ok := f.groupValidators[group]
	return validators, ok
}

func (f *fakeScheduler) AvailabilityTimeoutCheckRequired() bool { return f.timeoutCheck }

func (f *fakeScheduler) FreeCoresAndFillClaimQueue(
	freed map[parachaintypes.CoreIndex]FreedReason, _ parachaintypes.BlockNumber) {
	f.freedCalls = append(f.freedCalls, freed)
}

func (f *fakeScheduler) Occupied(cores []CoreIndexAndPara) {
	f.occupiedCores = append(f.occupiedCores, cores...)
}

type fakeInclusion struct {
	heads        map[parachaintypes.ParaID]parachaintypes.HeadData
	freeDisputed []FreedCore
	freedByAvail []FreedCore
	timedout     []parachaintypes.CoreIndex

	processedCalls int
}

func newFakeInclusion() *fakeInclusion {
	return &fakeInclusion{heads: make(map[parachaintypes.ParaID]parachaintypes.HeadData)}
}

func (f *fakeInclusion) ParaLatestHeadData(para parachaintypes.ParaID,
) (parachaintypes.HeadData, bool) {
	head, ok := f.heads[para]
	return head, ok
}

func (f *fakeInclusion) FreeDisputed(
	_ map[parachaintypes.CandidateHash]struct{}) []FreedCore {
	return f.freeDisputed
}

func (f *fakeInclusion) UpdatePendingAvailability(_ []parachaintypes.ValidatorID,
	_ []parachaintypes.SignedAvailabilityBitfield) []FreedCore {
	return f.freedByAvail
}

func (f *fakeInclusion) FreeTimedout() []parachaintypes.CoreIndex { return f.timedout }

func (f *fakeInclusion) ProcessCandidates(_ *parachaintypes.AllowedRelayParentsTracker,
	candidates map[parachaintypes.ParaID][]BackedCandidateWithCore, _ bool,
) (ProcessedCandidates, error) {
	f.processedCalls++

	var processed ProcessedCandidates
	for paraID, withCore := range candidates {
		for _, candidate := range withCore {
			processed.CoreIndices = append(processed.CoreIndices, CoreIndexAndPara{
				CoreIndex: candidate.CoreIndex,
				ParaID:    paraID,
			})

			receipt, err := candidate.Candidate.Candidate.ToPlain()
			if err != nil {
				return ProcessedCandidates{}, err
			}
			processed.CandidateReceiptsWithBackingValidatorIndices = append(
				processed.CandidateReceiptsWithBackingValidatorIndices,
				parachaintypes.BackingValidatorsPerCandidate{CandidateReceipt: receipt},
			)
		}
	}
	return processed, nil
}

type fakeDisputes struct {
	rejectedSets     map[disputeSetKey]struct{}
	concludedInvalid map[parachaintypes.CandidateHash]struct{}
	frozen           bool

	imported [][]parachaintypes.CheckedDisputeStatementSet
	noted    []parachaintypes.CandidateHash
}

func newFakeDisputes() *fakeDisputes {
	return &fakeDisputes{
		rejectedSets:     make(map[disputeSetKey]struct{}),
		concludedInvalid: make(map[parachaintypes.CandidateHash]struct{}),
	}
}

func (f *fakeDisputes) FilterDisputeData(set parachaintypes.DisputeStatementSet,
	_ parachaintypes.BlockNumber) (parachaintypes.CheckedDisputeStatementSet, bool) {
	key := disputeSetKey{session: set.Session, candidate: set.CandidateHash}
	if _, rejected := f.rejectedSets[key]; rejected {
		return parachaintypes.CheckedDisputeStatementSet{}, false
	}
	return parachaintypes.NewCheckedDisputeStatementSet(set), true
}

func (f *fakeDisputes) ProcessCheckedMultiDisputeData(
	sets []parachaintypes.CheckedDisputeStatementSet) error {
	f.imported = append(f.imported, sets)
	return nil
}

func (f *fakeDisputes) ConcludedInvalid(_ parachaintypes.SessionIndex,
	candidate parachaintypes.CandidateHash) bool {
	_, ok := f.concludedInvalid[candidate]
	return ok
}

func (f *fakeDisputes) IsFrozen() bool { return f.frozen }

func (f *fakeDisputes) NoteIncluded(_ parachaintypes.SessionIndex,
	candidate parachaintypes.CandidateHash, _ parachaintypes.BlockNumber) {
	f.noted = append(f.noted, candidate)
}

type fakeShared struct {
	session    parachaintypes.SessionIndex
	validators []parachaintypes.ValidatorID
	disabled   []parachaintypes.ValidatorIndex
	tracker    *parachaintypes.AllowedRelayParentsTracker
}

func newFakeShared() *fakeShared {
	return &fakeShared{session: 1, tracker: &parachaintypes.AllowedRelayParentsTracker{}}
}

func (f *fakeShared) SessionIndex() parachaintypes.SessionIndex      { return f.session }
func (f *fakeShared) ActiveValidatorKeys() []parachaintypes.ValidatorID { return f.validators }
func (f *fakeShared) DisabledValidators() []parachaintypes.ValidatorIndex {
	return f.disabled
}
func (f *fakeShared) AllowedRelayParents() *parachaintypes.AllowedRelayParentsTracker {
	return f.tracker
}

type fakeRandomness struct {
	random common.Hash
	ok     bool
}

func (f *fakeRandomness) ParentBlockRandomness(_ []byte) (common.Hash, bool) {
	return f.random, f.ok
}

// testPipeline bundles a ParasInherent with its fakes.
type testPipeline struct {
	config    *fakeConfiguration
	scheduler *fakeScheduler
	inclusion *fakeInclusion
	disputes  *fakeDisputes
	shared    *fakeShared
	random    *fakeRandomness
	pipeline  *ParasInherent
}

func newTestPipeline(parentHash common.Hash, blockNumber parachaintypes.BlockNumber,
	cores uint32) *testPipeline {
	tp := &testPipeline{
		config:    newFakeConfiguration(),
		scheduler: newFakeScheduler(cores),
		inclusion: newFakeInclusion(),
		disputes:  newFakeDisputes(),
		shared:    newFakeShared(),
		random:    &fakeRandomness{},
	}

	tp.pipeline = New(Config{
		Configuration: tp.config,
		Scheduler:     tp.scheduler,
		Inclusion:     tp.inclusion,
		Disputes:      tp.disputes,
		Shared:        tp.shared,
		Randomness:    tp.random,
		Weights:       fakeWeights{},
		ParentHash:    parentHash,
		BlockNumber:   blockNumber,
	})

	return tp
}

// dummyDisputeSet builds a statement set of the given size against the
// candidate hash derived from tag.
func dummyDisputeSet(t *testing.T, session parachaintypes.SessionIndex, tag byte,
	statements int) parachaintypes.DisputeStatementSet {
	t.Helper()

	set := parachaintypes.DisputeStatementSet{
		CandidateHash: parachaintypes.CandidateHash{Value: common.Hash{tag}},
		Session:       session,
	}

	for i := 0; i < statements; i++ {
		statement, err := parachaintypes.NewValidDisputeStatement(
			parachaintypes.ExplicitValidDisputeStatementKind{})
		require.NoError(t, err)

		set.Statements = append(set.Statements, parachaintypes.Statement{
			DisputeStatement: statement,
			ValidatorIndex:   parachaintypes.ValidatorIndex(i),
		})
	}

	return set
}

// dummyVotes builds the given number of implicit validity attestations.
func dummyVotes(t *testing.T, count int) []parachaintypes.ValidityAttestation {
	t.Helper()

	votes := make([]parachaintypes.ValidityAttestation, 0, count)
	for i := 0; i < count; i++ {
		var signature parachaintypes.ValidatorSignature
		signature[0] = byte(i + 1)

		vote, err := parachaintypes.NewImplicitValidityAttestation(signature)
		require.NoError(t, err)
		votes = append(votes, vote)
	}
	return votes
}

// groupBitmap returns a bitmap of groupSize bits with the first votes set.
func groupBitmap(groupSize, votes int) []bool {
	bits := make([]bool, groupSize)
	for i := 0; i < votes && i < groupSize; i++ {
		bits[i] = true
	}
	return bits
}

// buildBackedCandidate builds a backed candidate whose persisted
// validation data commits to the given parent head at the given relay
// parent, so it passes the chain linearity check.
func buildBackedCandidate(
	t *testing.T,
	paraID parachaintypes.ParaID,
	parentHead, newHead parachaintypes.HeadData,
	relayParent parachaintypes.RelayParentInfo,
	maxPovSize uint32,
	votes, groupSize int,
	coreIndex *parachaintypes.CoreIndex,
) parachaintypes.BackedCandidate {
	t.Helper()

	pvd := parachaintypes.PersistedValidationData{
		ParentHead:             parentHead,
		RelayParentNumber:      relayParent.Number,
		RelayParentStorageRoot: relayParent.StateRoot,
		MaxPovSize:             maxPovSize,
	}
	pvdHash, err := pvd.Hash()
	require.NoError(t, err)

	committed := parachaintypes.CommittedCandidateReceipt{
		Descriptor: parachaintypes.CandidateDescriptor{
			ParaID:                      paraID,
			RelayParent:                 relayParent.Hash,
			PersistedValidationDataHash: pvdHash,
		},
		Commitments: parachaintypes.CandidateCommitments{
			HeadData: newHead,
		},
	}

	return parachaintypes.NewBackedCandidate(
		committed, dummyVotes(t, votes), groupBitmap(groupSize, votes), coreIndex)
}

// signedBitfield signs a bitfield with the given keypair.
func signedBitfield(
	t *testing.T,
	keypair *sr25519.Keypair,
	bits []bool,
	validatorIndex parachaintypes.ValidatorIndex,
	signingContext parachaintypes.SigningContext,
) parachaintypes.UncheckedSignedAvailabilityBitfield {
	t.Helper()

	unchecked := parachaintypes.UncheckedSignedAvailabilityBitfield{
		Payload:        parachaintypes.AvailabilityBitfield{Bits: bits},
		ValidatorIndex: validatorIndex,
	}

	payload, err := unchecked.SigningPayload(signingContext)
	require.NoError(t, err)

	signature, err := keypair.Sign(payload)
	require.NoError(t, err)
	copy(unchecked.Signature[:], signature)

	return unchecked
}

// generateValidators returns keypairs and their validator IDs.
func generateValidators(t *testing.T, count int,
) ([]*sr25519.Keypair, []parachaintypes.ValidatorID) {
	t.Helper()

	keypairs := make([]*sr25519.Keypair, 0, count)
	ids := make([]parachaintypes.ValidatorID, 0, count)

	for i := 0; i < count; i++ {
		keypair, err := sr25519.GenerateKeypair()
		require.NoError(t, err)
		keypairs = append(keypairs, keypair)

		var id parachaintypes.ValidatorID
		copy(id[:], keypair.Public().Encode())
		ids = append(ids, id)
	}

	return keypairs, ids
}
