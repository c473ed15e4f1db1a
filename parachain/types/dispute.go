// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"fmt"

	"github.com/ChainSafe/gossamer/lib/common"
	"github.com/ChainSafe/gossamer/pkg/scale"
)

// DisputeStatement is a statement about a candidate, to be used within the
// dispute resolution process. Statements are either in favour of the
// candidate's validity or against it.
type DisputeStatement scale.VaryingDataType

// Set will set a VaryingDataTypeValue using the underlying VaryingDataType
func (d *DisputeStatement) Set(val scale.VaryingDataTypeValue) (err error) {
	vdt := scale.VaryingDataType(*d)
	err = vdt.Set(val)
	if err != nil {
		return fmt.Errorf("setting value to varying data type: %w", err)
	}
	*d = DisputeStatement(vdt)
	return nil
}

// Value will return the value from the underlying VaryingDataType
func (d *DisputeStatement) Value() (scale.VaryingDataTypeValue, error) {
	vdt := scale.VaryingDataType(*d)
	return vdt.Value()
}

// ValidDisputeStatementKind is a kind of statement of validity on a candidate.
type ValidDisputeStatementKind scale.VaryingDataType

// Index returns VDT index
func (ValidDisputeStatementKind) Index() uint {
	return 0
}

func (ValidDisputeStatementKind) String() string {
	return "valid dispute statement kind"
}

// Set will set a VaryingDataTypeValue using the underlying VaryingDataType
func (v *ValidDisputeStatementKind) Set(val scale.VaryingDataTypeValue) (err error) {
	vdt := scale.VaryingDataType(*v)
	err = vdt.Set(val)
	if err != nil {
		return fmt.Errorf("setting value to varying data type: %w", err)
	}
	*v = ValidDisputeStatementKind(vdt)
	return nil
}

// Value will return the value from the underlying VaryingDataType
func (v *ValidDisputeStatementKind) Value() (scale.VaryingDataTypeValue, error) {
	vdt := scale.VaryingDataType(*v)
	return vdt.Value()
}

// ExplicitValidDisputeStatementKind is an explicit statement issued as part of a dispute.
type ExplicitValidDisputeStatementKind struct{}

// Index returns VDT index
func (ExplicitValidDisputeStatementKind) Index() uint {
	return 0
}

func (ExplicitValidDisputeStatementKind) String() string {
	return "explicit valid dispute statement kind"
}

// BackingSeconded is a seconded statement on a candidate from the backing phase.
type BackingSeconded common.Hash

// Index returns VDT index
func (BackingSeconded) Index() uint {
	return 1
}

func (b BackingSeconded) String() string {
	return fmt.Sprintf("backingSeconded(%s)", common.Hash(b))
}

// BackingValid is a valid statement on a candidate from the backing phase.
type BackingValid common.Hash

// Index returns VDT index
func (BackingValid) Index() uint {
	return 2
}

func (b BackingValid) String() string {
	return fmt.Sprintf("backingValid(%s)", common.Hash(b))
}

// ApprovalChecking is an approval vote from the approval checking phase.
type ApprovalChecking struct{}

// Index returns VDT index
func (ApprovalChecking) Index() uint {
	return 3
}

func (ApprovalChecking) String() string { return "approval checking" }

// InvalidDisputeStatementKind is a kind of statement of invalidity on a candidate.
type InvalidDisputeStatementKind scale.VaryingDataType

// Index returns VDT index
func (InvalidDisputeStatementKind) Index() uint {
	return 1
}

func (InvalidDisputeStatementKind) String() string {
	return "invalid dispute statement kind"
}

// Set will set a VaryingDataTypeValue using the underlying VaryingDataType
func (in *InvalidDisputeStatementKind) Set(val scale.VaryingDataTypeValue) (err error) {
	vdt := scale.VaryingDataType(*in)
	err = vdt.Set(val)
	if err != nil {
		return fmt.Errorf("setting value to varying data type: %w", err)
	}
	*in = InvalidDisputeStatementKind(vdt)
	return nil
}

// Value will return the value from the underlying VaryingDataType
func (in *InvalidDisputeStatementKind) Value() (scale.VaryingDataTypeValue, error) {
	vdt := scale.VaryingDataType(*in)
	return vdt.Value()
}

// ExplicitInvalidDisputeStatementKind is an explicit statement issued as part of a dispute.
type ExplicitInvalidDisputeStatementKind struct{}

// Index returns VDT index
func (ExplicitInvalidDisputeStatementKind) Index() uint {
	return 0
}

func (ExplicitInvalidDisputeStatementKind) String() string {
	return "explicit invalid dispute statement kind"
}

// NewDisputeStatement creates a new DisputeStatement varying data type.
func NewDisputeStatement() DisputeStatement {
	idsKind, err := scale.NewVaryingDataType(ExplicitInvalidDisputeStatementKind{})
	if err != nil {
		panic(err)
	}

	vdsKind, err := scale.NewVaryingDataType(
		ExplicitValidDisputeStatementKind{}, BackingSeconded{}, BackingValid{}, ApprovalChecking{})
	if err != nil {
		panic(err)
	}

	vdt, err := scale.NewVaryingDataType(
		ValidDisputeStatementKind(vdsKind), InvalidDisputeStatementKind(idsKind))
	if err != nil {
		panic(err)
	}

	return DisputeStatement(vdt)
}

// NewValidDisputeStatement returns a statement in favour of the candidate,
// of the given kind.
func NewValidDisputeStatement(kind scale.VaryingDataTypeValue) (DisputeStatement, error) {
	ds := NewDisputeStatement()

	vdsKind, err := scale.NewVaryingDataType(
		ExplicitValidDisputeStatementKind{}, BackingSeconded{}, BackingValid{}, ApprovalChecking{})
	if err != nil {
		return DisputeStatement{}, fmt.Errorf("creating valid dispute statement kind: %w", err)
	}
	if err := vdsKind.Set(kind); err != nil {
		return DisputeStatement{}, fmt.Errorf("setting valid dispute statement kind: %w", err)
	}

	if err := ds.Set(ValidDisputeStatementKind(vdsKind)); err != nil {
		return DisputeStatement{}, fmt.Errorf("setting dispute statement: %w", err)
	}
	return ds, nil
}

// NewInvalidDisputeStatement returns an explicit statement against the candidate.
func NewInvalidDisputeStatement() (DisputeStatement, error) {
	ds := NewDisputeStatement()

	idsKind, err := scale.NewVaryingDataType(ExplicitInvalidDisputeStatementKind{})
	if err != nil {
		return DisputeStatement{}, fmt.Errorf("creating invalid dispute statement kind: %w", err)
	}
	if err := idsKind.Set(ExplicitInvalidDisputeStatementKind{}); err != nil {
		return DisputeStatement{}, fmt.Errorf("setting invalid dispute statement kind: %w", err)
	}

	if err := ds.Set(InvalidDisputeStatementKind(idsKind)); err != nil {
		return DisputeStatement{}, fmt.Errorf("setting dispute statement: %w", err)
	}
	return ds, nil
}

// Statement is one validator's dispute statement about a candidate,
// together with its signature.
type Statement struct {
	DisputeStatement   DisputeStatement   `scale:"1"`
	ValidatorIndex     ValidatorIndex     `scale:"2"`
	ValidatorSignature ValidatorSignature `scale:"3"`
}

// DisputeStatementSet is a set of statements about a specific candidate.
type DisputeStatementSet struct {
	// CandidateHash is the candidate referenced by this set.
	CandidateHash CandidateHash `scale:"1"`
	// Session is the session index of the candidate.
	Session SessionIndex `scale:"2"`
	// Statements are the signed statements about the candidate.
	Statements []Statement `scale:"3"`
}

// MultiDisputeStatementSet is a set of dispute statement sets.
type MultiDisputeStatementSet []DisputeStatementSet

// CheckedDisputeStatementSet is a dispute statement set that passed the
// dispute module's signature and session checks.
type CheckedDisputeStatementSet struct {
	set DisputeStatementSet
}

// NewCheckedDisputeStatementSet marks a set as checked. Only the dispute
// handler should produce these.
func NewCheckedDisputeStatementSet(set DisputeStatementSet) CheckedDisputeStatementSet {
	return CheckedDisputeStatementSet{set: set}
}

// AsUnchecked returns the underlying statement set.
func (c CheckedDisputeStatementSet) AsUnchecked() DisputeStatementSet {
	return c.set
}
