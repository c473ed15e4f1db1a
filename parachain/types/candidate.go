// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"fmt"

	"github.com/ChainSafe/gossamer/lib/common"
	"github.com/ChainSafe/gossamer/pkg/scale"
)

// HeadData is the head data of a parachain, opaque to the relay chain.
type HeadData struct {
	Data []byte `scale:"1"`
}

// Equal returns true if both head datas hold the same bytes.
func (h HeadData) Equal(other HeadData) bool {
	return string(h.Data) == string(other.Data)
}

// ValidationCode is parachain validation code, opaque to the relay chain.
type ValidationCode []byte

// Hash returns the blake2b hash of the validation code.
func (v ValidationCode) Hash() (common.Hash, error) {
	return common.Blake2bHash(v)
}

// CollatorID is the public key of a collator.
type CollatorID [32]byte

// CollatorSignature is a signature from a collator.
type CollatorSignature [64]byte

// PersistedValidationData is the validation data a candidate was built
// against. Its hash commits a candidate to a specific parent head and
// relay parent.
type PersistedValidationData struct {
	ParentHead             HeadData    `scale:"1"`
	RelayParentNumber      BlockNumber `scale:"2"`
	RelayParentStorageRoot common.Hash `scale:"3"`
	MaxPovSize             uint32      `scale:"4"`
}

// Hash returns the blake2b hash of the SCALE encoded validation data.
func (pvd PersistedValidationData) Hash() (common.Hash, error) {
	encoded, err := scale.Marshal(pvd)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encoding persisted validation data: %w", err)
	}
	return common.Blake2bHash(encoded)
}

// CandidateDescriptor is a unique descriptor of a candidate receipt.
type CandidateDescriptor struct {
	ParaID                      ParaID            `scale:"1"`
	RelayParent                 common.Hash       `scale:"2"`
	Collator                    CollatorID        `scale:"3"`
	PersistedValidationDataHash common.Hash       `scale:"4"`
	PovHash                     common.Hash       `scale:"5"`
	ErasureRoot                 common.Hash       `scale:"6"`
	Signature                   CollatorSignature `scale:"7"`
	ParaHead                    common.Hash       `scale:"8"`
	ValidationCodeHash          common.Hash       `scale:"9"`
}

// CandidateCommitments are the commitments made in a candidate receipt.
type CandidateCommitments struct {
	UpwardMessages            [][]byte        `scale:"1"`
	HorizontalMessages        [][]byte        `scale:"2"`
	NewValidationCode         *ValidationCode `scale:"3"`
	HeadData                  HeadData        `scale:"4"`
	ProcessedDownwardMessages uint32          `scale:"5"`
	HrmpWatermark             BlockNumber     `scale:"6"`
}

// Hash returns the blake2b hash of the SCALE encoded commitments.
func (c CandidateCommitments) Hash() (common.Hash, error) {
	encoded, err := scale.Marshal(c)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encoding candidate commitments: %w", err)
	}
	return common.Blake2bHash(encoded)
}

// CandidateHash makes it easy to enforce that a hash is a candidate hash
// on the type level.
type CandidateHash struct {
	Value common.Hash `scale:"1"`
}

func (c CandidateHash) String() string { return c.Value.String() }

// CandidateReceipt is a receipt for a parachain candidate, with the
// commitments hashed.
type CandidateReceipt struct {
	Descriptor      CandidateDescriptor `scale:"1"`
	CommitmentsHash common.Hash         `scale:"2"`
}

// Hash returns the candidate hash: the blake2b hash of the SCALE encoded
// receipt.
func (c CandidateReceipt) Hash() (CandidateHash, error) {
	encoded, err := scale.Marshal(c)
	if err != nil {
		return CandidateHash{}, fmt.Errorf("encoding candidate receipt: %w", err)
	}

	hash, err := common.Blake2bHash(encoded)
	if err != nil {
		return CandidateHash{}, fmt.Errorf("hashing candidate receipt: %w", err)
	}
	return CandidateHash{Value: hash}, nil
}

// CommittedCandidateReceipt is a candidate receipt along with the full
// commitments.
type CommittedCandidateReceipt struct {
	Descriptor  CandidateDescriptor  `scale:"1"`
	Commitments CandidateCommitments `scale:"2"`
}

// ToPlain returns the CandidateReceipt for this candidate.
func (c CommittedCandidateReceipt) ToPlain() (CandidateReceipt, error) {
	commitmentsHash, err := c.Commitments.Hash()
	if err != nil {
		return CandidateReceipt{}, fmt.Errorf("hashing commitments: %w", err)
	}
	return CandidateReceipt{Descriptor: c.Descriptor, CommitmentsHash: commitmentsHash}, nil
}

// Hash returns the candidate hash of the underlying receipt.
func (c CommittedCandidateReceipt) Hash() (CandidateHash, error) {
	receipt, err := c.ToPlain()
	if err != nil {
		return CandidateHash{}, err
	}
	return receipt.Hash()
}

// coreIndexBits is the number of trailing bits of the validator index
// bitmap reserved for an injected core index under elastic scaling.
const coreIndexBits = 8

// BackedCandidate is a parachain block proposal with the backing
// signatures of its validator group.
type BackedCandidate struct {
	// Candidate is the committed candidate receipt being backed.
	Candidate CommittedCandidateReceipt `scale:"1"`
	// ValidityVotes are the backing signatures themselves.
	ValidityVotes []ValidityAttestation `scale:"2"`
	// ValidatorIndices marks the voting validators within the backing
	// group. It may be extended beyond the group size by 8 bits carrying
	// the assigned core index, if elastic scaling is enabled.
	ValidatorIndices []bool `scale:"3"`
}

// NewBackedCandidate builds a backed candidate with the given core index
// injected into the trailing bits of the validator index bitmap.
func NewBackedCandidate(
	candidate CommittedCandidateReceipt,
	validityVotes []ValidityAttestation,
	validatorIndices []bool,
	coreIndex *CoreIndex,
) BackedCandidate {
	bc := BackedCandidate{
		Candidate:        candidate,
		ValidityVotes:    validityVotes,
		ValidatorIndices: validatorIndices,
	}
	bc.SetValidatorIndicesAndCoreIndex(validatorIndices, coreIndex)
	return bc
}

// Descriptor returns the descriptor of the candidate.
func (bc *BackedCandidate) Descriptor() CandidateDescriptor {
	return bc.Candidate.Descriptor
}

// HasCodeUpgrade returns true if the candidate commits to a runtime
// validation code upgrade.
func (bc *BackedCandidate) HasCodeUpgrade() bool {
	return bc.Candidate.Commitments.NewValidationCode != nil
}

// ValidatorIndicesAndCoreIndex splits the validator index bitmap from the
// injected core index in its trailing 8 bits. Without elastic scaling the
// whole bitmap is returned and the core index is nil.
func (bc *BackedCandidate) ValidatorIndicesAndCoreIndex(
	coreIndexEnabled bool,
) (validatorIndices []bool, coreIndex *CoreIndex) {
	if !coreIndexEnabled || len(bc.ValidatorIndices) <= coreIndexBits {
		return bc.ValidatorIndices, nil
	}

	offset := len(bc.ValidatorIndices) - coreIndexBits
	var index uint32
	for i, bit := range bc.ValidatorIndices[offset:] {
		if bit {
			index |= 1 << i
		}
	}

	core := CoreIndex(index)
	return bc.ValidatorIndices[:offset], &core
}

// SetValidatorIndicesAndCoreIndex replaces the validator index bitmap,
// re-injecting the core index into the trailing bits when given.
func (bc *BackedCandidate) SetValidatorIndicesAndCoreIndex(
	validatorIndices []bool,
	coreIndex *CoreIndex,
) {
	bc.ValidatorIndices = validatorIndices
	if coreIndex == nil {
		return
	}

	injected := make([]bool, coreIndexBits)
	for i := 0; i < coreIndexBits; i++ {
		injected[i] = (*coreIndex>>i)&1 == 1
	}
	bc.ValidatorIndices = append(bc.ValidatorIndices, injected...)
}
