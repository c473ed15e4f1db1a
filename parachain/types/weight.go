// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"fmt"
	"math"
)

// Weight is the two dimensional resource cost of block content:
// execution time and proof size. All arithmetic saturates.
type Weight struct {
	// RefTime is the computational time used, in picoseconds.
	RefTime uint64 `scale:"1"`
	// ProofSize is the size of the state proof contribution, in bytes.
	ProofSize uint64 `scale:"2"`
}

// NewWeight returns a weight with the given components.
func NewWeight(refTime, proofSize uint64) Weight {
	return Weight{RefTime: refTime, ProofSize: proofSize}
}

func (w Weight) String() string {
	return fmt.Sprintf("Weight(ref_time: %d, proof_size: %d)", w.RefTime, w.ProofSize)
}

// Add returns the saturating sum of both weights.
func (w Weight) Add(other Weight) Weight {
	return Weight{
		RefTime:   saturatingAdd(w.RefTime, other.RefTime),
		ProofSize: saturatingAdd(w.ProofSize, other.ProofSize),
	}
}

// Sub returns the saturating difference of both weights.
func (w Weight) Sub(other Weight) Weight {
	return Weight{
		RefTime:   saturatingSub(w.RefTime, other.RefTime),
		ProofSize: saturatingSub(w.ProofSize, other.ProofSize),
	}
}

// AnyGt returns true if any component of w is greater than the
// corresponding component of other.
func (w Weight) AnyGt(other Weight) bool {
	return w.RefTime > other.RefTime || w.ProofSize > other.ProofSize
}

// AllGte returns true if all components of w are greater than or equal to
// the corresponding components of other.
func (w Weight) AllGte(other Weight) bool {
	return w.RefTime >= other.RefTime && w.ProofSize >= other.ProofSize
}

// AllLte returns true if all components of w are less than or equal to
// the corresponding components of other.
func (w Weight) AllLte(other Weight) bool {
	return w.RefTime <= other.RefTime && w.ProofSize <= other.ProofSize
}

// IsZero returns true if both components are zero.
func (w Weight) IsZero() bool {
	return w.RefTime == 0 && w.ProofSize == 0
}

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint64
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
