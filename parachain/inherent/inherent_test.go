// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	"testing"

	"github.com/ChainSafe/gossamer/dot/types"
	"github.com/ChainSafe/gossamer/lib/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

// fullSetup builds a pipeline with one para on one core, a group of three
// validators with real keys, and an inherent bundle that passes every
// check: three signed bitfields, one chained candidate and one dispute.
func fullSetup(t *testing.T) (*testPipeline, InherentData) {
	t.Helper()

	parentHeader := types.NewHeader(
		common.Hash{9}, common.Hash{0xbb}, common.Hash{}, 9, types.NewDigest())
	parentHash := parentHeader.Hash()

	tp := newTestPipeline(parentHash, 10, 2)

	keypairs, validators := generateValidators(t, 3)
	tp.shared.validators = validators

	tp.scheduler.scheduled = []CoreIndexAndPara{{CoreIndex: 0, ParaID: testParaID}}
	tp.scheduler.groupForCore[0] = 0
	tp.scheduler.groupValidators[0] = []parachaintypes.ValidatorIndex{0, 1, 2}

	tp.inclusion.heads[testParaID] = head(0)

	// the pipeline inserts the parent into the window itself
	relayParent := parachaintypes.RelayParentInfo{
		Hash:      parentHash,
		StateRoot: parentHeader.StateRoot,
		Number:    9,
	}

	candidate := buildBackedCandidate(t, testParaID,
		head(0), head(1), relayParent, tp.config.MaxPovSize(), 3, 3, nil)

	signingContext := parachaintypes.SigningContext{
		SessionIndex: tp.shared.session,
		ParentHash:   parentHash,
	}

	var bitfields []parachaintypes.UncheckedSignedAvailabilityBitfield
	for i, keypair := range keypairs {
		bitfields = append(bitfields, signedBitfield(
			t, keypair, groupBitmap(2, 1), parachaintypes.ValidatorIndex(i), signingContext))
	}

	data := InherentData{
		Bitfields:        bitfields,
		BackedCandidates: []parachaintypes.BackedCandidate{candidate},
		Disputes: parachaintypes.MultiDisputeStatementSet{
			dummyDisputeSet(t, tp.shared.session, 0x55, 2),
		},
		ParentHeader: *parentHeader,
	}

	return tp, data
}

func TestParasInherent_createInherent(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)

	sanitized, weight, err := tp.pipeline.CreateInherent(data)
	require.NoError(t, err)

	assert.Equal(t, data.Bitfields, sanitized.Bitfields)
	assert.Equal(t, data.BackedCandidates, sanitized.BackedCandidates)
	assert.Equal(t, data.Disputes, sanitized.Disputes)
	assert.True(t, weight.AllLte(tp.config.MaxInherentWeight()))

	// disputes were imported and both halves of the scrape are present
	require.Len(t, tp.disputes.imported, 1)
	votes := tp.pipeline.OnChainVotes()
	require.NotNil(t, votes)
	assert.Equal(t, tp.shared.session, votes.Session)
	assert.Len(t, votes.Disputes, 1)
	assert.Len(t, votes.BackingValidators, 1)

	// the scheduled core was occupied by the admitted candidate
	require.Len(t, tp.scheduler.occupiedCores, 1)
	assert.Equal(t, CoreIndexAndPara{CoreIndex: 0, ParaID: testParaID},
		tp.scheduler.occupiedCores[0])
}

func TestParasInherent_constructThenVerifyIsIdempotent(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)

	sanitized, constructWeight, err := tp.pipeline.CreateInherent(data)
	require.NoError(t, err)

	// re-feed the author's exact output through block execution, against
	// the same validator set
	verify, verifyData := fullSetup(t)
	verify.shared.validators = tp.shared.validators
	verifyData.Bitfields = sanitized.Bitfields
	verifyData.BackedCandidates = sanitized.BackedCandidates
	verifyData.Disputes = sanitized.Disputes

	enterWeight, err := verify.pipeline.Enter(verifyData)
	require.NoError(t, err)
	assert.Equal(t, constructWeight, enterWeight)
}

func TestParasInherent_enterTwiceFails(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)

	_, err := tp.pipeline.Enter(data)
	require.NoError(t, err)

	_, err = tp.pipeline.Enter(data)
	assert.ErrorIs(t, err, ErrTooManyInclusionInherents)
}

func TestParasInherent_invalidParentHeader(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)

	otherHeader := types.NewHeader(
		common.Hash{8}, common.Hash{0xcc}, common.Hash{}, 8, types.NewDigest())
	data.ParentHeader = *otherHeader

	_, _, err := tp.pipeline.CreateInherent(data)
	assert.ErrorIs(t, err, ErrInvalidParentHeader)
}

func TestParasInherent_enterOverweightFails(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)
	tp.config.maxWeight = parachaintypes.NewWeight(10, 10)

	_, err := tp.pipeline.Enter(data)
	assert.ErrorIs(t, err, ErrInherentOverweight)
}

func TestParasInherent_enterFiltersCandidateFails(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)

	// no scheduled cores: the candidate would be silently filtered during
	// creation, which execution must reject
	tp.scheduler.scheduled = nil

	_, err := tp.pipeline.Enter(data)
	assert.ErrorIs(t, err, ErrCandidatesFilteredDuringExecution)
}

func TestParasInherent_freezeProducesDisputesOnlyInherent(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)
	tp.disputes.frozen = true

	sanitized, weight, err := tp.pipeline.CreateInherent(data)
	require.NoError(t, err)

	assert.Empty(t, sanitized.Bitfields)
	assert.Empty(t, sanitized.BackedCandidates)
	assert.Equal(t, data.Disputes, sanitized.Disputes)

	expected := multiDisputeStatementSetsWeight(fakeWeights{}, data.Disputes)
	assert.Equal(t, expected, weight)

	// no candidates were processed while frozen
	assert.Zero(t, tp.inclusion.processedCalls)
}

func TestParasInherent_freedCoresReachScheduler(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)

	includedHash := parachaintypes.CandidateHash{Value: common.Hash{0x77}}
	tp.inclusion.freedByAvail = []FreedCore{{CoreIndex: 1, CandidateHash: includedHash}}
	tp.scheduler.timeoutCheck = true
	tp.inclusion.timedout = []parachaintypes.CoreIndex{0}

	_, _, err := tp.pipeline.CreateInherent(data)
	require.NoError(t, err)

	// the disputes module learned about the included candidate
	require.Len(t, tp.disputes.noted, 1)
	assert.Equal(t, includedHash, tp.disputes.noted[0])

	require.Len(t, tp.scheduler.freedCalls, 1)
	freed := tp.scheduler.freedCalls[0]
	assert.Equal(t, FreedReasonConcluded, freed[1])
	assert.Equal(t, FreedReasonTimedOut, freed[0])
}

func TestParasInherent_onFinalize(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)

	assert.ErrorIs(t, tp.pipeline.OnFinalize(), ErrInherentNotIncluded)

	_, err := tp.pipeline.Enter(data)
	require.NoError(t, err)

	assert.NoError(t, tp.pipeline.OnFinalize())
}

func TestParasInherent_overweightInputIsTrimmedDuringCreation(t *testing.T) {
	t.Parallel()

	tp, data := fullSetup(t)

	// budget fits the disputes and bitfields but not the candidate
	disputesWeight := multiDisputeStatementSetsWeight(fakeWeights{}, data.Disputes)
	bitfieldsWeight := signedBitfieldsWeight(fakeWeights{}, len(data.Bitfields))
	tp.config.maxWeight = disputesWeight.Add(bitfieldsWeight)

	sanitized, weight, err := tp.pipeline.CreateInherent(data)
	require.NoError(t, err)

	assert.Empty(t, sanitized.BackedCandidates)
	assert.Equal(t, data.Bitfields, sanitized.Bitfields)
	assert.True(t, weight.AllLte(tp.config.MaxInherentWeight()))
}
