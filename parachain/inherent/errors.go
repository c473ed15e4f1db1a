// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import "errors"

var (
	// ErrTooManyInclusionInherents is returned when the inherent is entered
	// more than once per block.
	ErrTooManyInclusionInherents = errors.New("inclusion inherent called more than once per block")

	// ErrInvalidParentHeader is returned when the hash of the submitted
	// parent header does not correspond to the known parent block hash.
	ErrInvalidParentHeader = errors.New("parent header does not match the parent block hash")

	// ErrInherentOverweight is returned during block execution when the
	// supplied inherent data would result in an overweight block.
	ErrInherentOverweight = errors.New("inherent data results in an overweight block")

	// ErrCandidatesFilteredDuringExecution is returned during block
	// execution when candidates were filtered out; filtering must only
	// happen during inherent creation.
	ErrCandidatesFilteredDuringExecution = errors.New("candidates were filtered during execution")

	// ErrUnscheduledCandidate is returned when more candidates were
	// admitted than there are scheduled cores.
	ErrUnscheduledCandidate = errors.New("candidate count exceeds scheduled cores")

	// ErrInherentNotIncluded is returned by OnFinalize when no paras
	// inherent was included in the block.
	ErrInherentNotIncluded = errors.New("paras inherent was not included in the block")
)
