// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parasinherent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bitfieldsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossamer_parachain_inherent",
		Name:      "bitfields_processed_total",
		Help:      "number of bitfields processed in inherent data",
	})
	validBitfieldSignatures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossamer_parachain_inherent",
		Name:      "bitfields_signature_checks_valid_total",
		Help:      "number of bitfields with a valid signature",
	})
	invalidBitfieldSignatures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossamer_parachain_inherent",
		Name:      "bitfields_signature_checks_invalid_total",
		Help:      "number of bitfields with an invalid signature",
	})
	candidatesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossamer_parachain_inherent",
		Name:      "candidates_processed_total",
		Help:      "number of backed candidates processed in inherent data",
	})
	candidatesSanitized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossamer_parachain_inherent",
		Name:      "candidates_sanitized_total",
		Help:      "number of backed candidates which passed sanitization",
	})
	candidatesIncluded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossamer_parachain_inherent",
		Name:      "candidates_included_total",
		Help:      "number of candidates that became available this block",
	})
	disputesImported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossamer_parachain_inherent",
		Name:      "disputes_imported_total",
		Help:      "number of checked dispute statement sets imported",
	})
	relayChainFreezes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gossamer_parachain_inherent",
		Name:      "relay_chain_freeze_total",
		Help:      "number of blocks processed while the relay chain was frozen",
	})
)
