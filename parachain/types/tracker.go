// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"github.com/ChainSafe/gossamer/lib/common"
)

// RelayParentInfo is the stored state of one acceptable relay parent.
type RelayParentInfo struct {
	Hash      common.Hash
	StateRoot common.Hash
	Number    BlockNumber
}

// AllowedRelayParentsTracker keeps a rolling window of recent relay chain
// blocks that candidates are allowed to build on. The window holds at most
// the configured ancestry length, oldest entries dropped first.
type AllowedRelayParentsTracker struct {
	buffer []RelayParentInfo
}

// Update records a new relay parent at the head of the window, trimming the
// window down to maxAncestryLen entries. A zero maxAncestryLen keeps only
// the block itself.
func (t *AllowedRelayParentsTracker) Update(
	hash, stateRoot common.Hash,
	number BlockNumber,
	maxAncestryLen uint32,
) {
	t.buffer = append(t.buffer, RelayParentInfo{
		Hash:      hash,
		StateRoot: stateRoot,
		Number:    number,
	})

	maxLen := int(maxAncestryLen) + 1
	if len(t.buffer) > maxLen {
		t.buffer = t.buffer[len(t.buffer)-maxLen:]
	}
}

// AcquireInfo returns the stored info for the given relay parent, if it is
// within the allowed window.
func (t *AllowedRelayParentsTracker) AcquireInfo(hash common.Hash) (RelayParentInfo, bool) {
	for _, info := range t.buffer {
		if info.Hash == hash {
			return info, true
		}
	}
	return RelayParentInfo{}, false
}

// LatestNumber returns the number of the most recently recorded relay
// parent, or zero when the window is empty.
func (t *AllowedRelayParentsTracker) LatestNumber() BlockNumber {
	if len(t.buffer) == 0 {
		return 0
	}
	return t.buffer[len(t.buffer)-1].Number
}
