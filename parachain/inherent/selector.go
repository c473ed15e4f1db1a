// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	"encoding/binary"
	"sort"

	"github.com/ChainSafe/gossamer/lib/common"
	"golang.org/x/crypto/chacha20"

	parachaintypes "github.com/ChainSafe/paras-inherent/parachain/types"
)

// candidateSeedSubject is the subject under which per block randomness is
// requested for candidate selection. Exactly 32 bytes.
const candidateSeedSubject = "candidate-seed-selection-subject"

// computeEntropy derives the selector seed from per block randomness,
// falling back to the parent hash when none is available. The fallback is
// weaker since the block author controls the parent hash contents more
// easily than a VRF output.
func computeEntropy(randomness Randomness, parentHash common.Hash) [32]byte {
	var entropy [32]byte
	copy(entropy[:], candidateSeedSubject)

	random, ok := randomness.ParentBlockRandomness([]byte(candidateSeedSubject))
	if ok {
		copy(entropy[:], random[:])
	} else {
		logger.Warnf("parent block randomness did not provide entropy, using parent hash")
		copy(entropy[:], parentHash[:])
	}

	return entropy
}

// chaChaRng is a deterministic random generator over a ChaCha20 keystream.
// Every node seeding it with the same per block entropy draws the same
// sequence.
type chaChaRng struct {
	cipher *chacha20.Cipher
}

func newChaChaRng(seed [32]byte) (*chaChaRng, error) {
	nonce := make([]byte, chacha20.NonceSize)
	cipher, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce)
	if err != nil {
		return nil, err
	}
	return &chaChaRng{cipher: cipher}, nil
}

func (c *chaChaRng) nextUint64() uint64 {
	buf := make([]byte, 8)
	c.cipher.XORKeyStream(buf, buf)
	return binary.LittleEndian.Uint64(buf)
}

// shuffle permutes the indices in place, Fisher-Yates over the keystream.
func (c *chaChaRng) shuffle(indices []int) {
	for i := len(indices) - 1; i > 0; i-- {
		j := int(c.nextUint64() % uint64(i+1))
		indices[i], indices[j] = indices[j], indices[i]
	}
}

// randomSel selects a random subset of items within the weight limit, with
// preference for the given indices. Preferred indices are drawn first,
// then the rest; an item that does not fit is skipped, not terminal.
// Returns the consumed weight and the picked indices in ascending order,
// so the caller retains the original relative ordering.
func randomSel[X any](
	rng *chaChaRng,
	selectables []X,
	preferredIndices []int,
	weightFn func(*X) parachaintypes.Weight,
	weightLimit parachaintypes.Weight,
) (parachaintypes.Weight, []int) {
	if len(selectables) == 0 {
		return parachaintypes.Weight{}, nil
	}

	preferred := make(map[int]struct{}, len(preferredIndices))
	for _, idx := range preferredIndices {
		preferred[idx] = struct{}{}
	}

	indices := make([]int, 0, len(selectables))
	for idx := range selectables {
		if _, isPreferred := preferred[idx]; !isPreferred {
			indices = append(indices, idx)
		}
	}

	var weightAcc parachaintypes.Weight
	picked := make([]int, 0, len(selectables))

	rng.shuffle(preferredIndices)
	for _, idx := range preferredIndices {
		if idx >= len(selectables) {
			continue
		}
		updated := weightAcc.Add(weightFn(&selectables[idx]))
		if updated.AnyGt(weightLimit) {
			continue
		}
		weightAcc = updated
		picked = append(picked, idx)
	}

	rng.shuffle(indices)
	for _, idx := range indices {
		updated := weightAcc.Add(weightFn(&selectables[idx]))
		if updated.AnyGt(weightLimit) {
			continue
		}
		weightAcc = updated
		picked = append(picked, idx)
	}

	sort.Ints(picked)
	return weightAcc, picked
}

// applyWeightLimit bounds bitfields and backed candidates to the given
// budget, truncating both slices in place.
//
// If everything fits, everything is admitted. Otherwise candidates are
// partitioned into chains (maximal runs of consecutive same-para
// candidates, the author's declared dependency order) and a random subset
// of chains is admitted after reserving the full bitfield weight, with
// preference for chains carrying a code upgrade since those candidates are
// large and would rarely win a uniform draw. If the bitfields alone exceed
// the budget, all candidates are dropped and the same admission runs over
// individual bitfields.
func applyWeightLimit(
	weights WeightInfo,
	candidates *[]parachaintypes.BackedCandidate,
	bitfields *[]parachaintypes.UncheckedSignedAvailabilityBitfield,
	maxConsumableWeight parachaintypes.Weight,
	rng *chaChaRng,
) parachaintypes.Weight {
	totalCandidatesWeight := backedCandidatesWeight(weights, *candidates)
	totalBitfieldsWeight := signedBitfieldsWeight(weights, len(*bitfields))
	total := totalBitfieldsWeight.Add(totalCandidatesWeight)

	if maxConsumableWeight.AllGte(total) {
		return total
	}

	// Partition into chains. The author provides candidates of one para
	// consecutively, in dependency order; broken runs fail later in the
	// chain filter anyway.
	var chains [][]parachaintypes.BackedCandidate
	havePara := false
	var currentParaID parachaintypes.ParaID

	for _, candidate := range *candidates {
		paraID := candidate.Descriptor().ParaID
		if havePara && paraID == currentParaID {
			chains[len(chains)-1] = append(chains[len(chains)-1], candidate)
		} else {
			havePara = true
			currentParaID = paraID
			chains = append(chains, []parachaintypes.BackedCandidate{candidate})
		}
	}

	var preferredChainIndices []int
	for idx, chain := range chains {
		for i := range chain {
			if chain[i].HasCodeUpgrade() {
				preferredChainIndices = append(preferredChainIndices, idx)
				break
			}
		}
	}

	if maxConsumableWeight.AllGte(totalBitfieldsWeight) {
		maxConsumableByCandidates := maxConsumableWeight.Sub(totalBitfieldsWeight)

		accCandidateWeight, chainIndices := randomSel(
			rng, chains, preferredChainIndices,
			func(chain *[]parachaintypes.BackedCandidate) parachaintypes.Weight {
				return backedCandidatesWeight(weights, *chain)
			},
			maxConsumableByCandidates,
		)
		logger.Debugf("admitted candidate chain indices: %v of %d", chainIndices, len(chains))

		admitted := make([]parachaintypes.BackedCandidate, 0, len(*candidates))
		for _, idx := range chainIndices {
			admitted = append(admitted, chains[idx]...)
		}
		*candidates = admitted

		// all bitfields, and the remaining space goes to candidates
		return accCandidateWeight.Add(totalBitfieldsWeight)
	}

	// insufficient space for even the bitfields alone, so drop all
	// candidates and fit as many bitfields as possible
	*candidates = nil

	totalConsumed, indices := randomSel(
		rng, *bitfields, nil,
		func(*parachaintypes.UncheckedSignedAvailabilityBitfield) parachaintypes.Weight {
			return signedBitfieldWeight(weights)
		},
		maxConsumableWeight,
	)
	logger.Debugf("admitted bitfield indices: %v of %d", indices, len(*bitfields))

	admitted := make([]parachaintypes.UncheckedSignedAvailabilityBitfield, 0, len(indices))
	for _, idx := range indices {
		admitted = append(admitted, (*bitfields)[idx])
	}
	*bitfields = admitted

	return totalConsumed
}
