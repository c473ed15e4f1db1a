// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// ValidityAttestation is an implicit or explicit attestation to the validity of a parachain
// candidate.
type ValidityAttestation scale.VaryingDataType

// Set will set a VaryingDataTypeValue using the underlying VaryingDataType
func (va *ValidityAttestation) Set(val scale.VaryingDataTypeValue) (err error) {
	vdt := scale.VaryingDataType(*va)
	err = vdt.Set(val)
	if err != nil {
		return fmt.Errorf("setting value to varying data type: %w", err)
	}
	*va = ValidityAttestation(vdt)
	return nil
}

// Value returns the value from the underlying VaryingDataType
func (va *ValidityAttestation) Value() (scale.VaryingDataTypeValue, error) {
	vdt := scale.VaryingDataType(*va)
	return vdt.Value()
}

// Implicit is for an implicit attestation, from a "seconded" statement.
type Implicit ValidatorSignature

// Index returns VDT index
func (Implicit) Index() uint {
	return 1
}

func (i Implicit) String() string {
	return fmt.Sprintf("implicit(%s)", ValidatorSignature(i))
}

// Explicit is for an explicit attestation, from a "valid" statement.
type Explicit ValidatorSignature

// Index returns VDT index
func (Explicit) Index() uint {
	return 2
}

func (e Explicit) String() string {
	return fmt.Sprintf("explicit(%s)", ValidatorSignature(e))
}

// NewValidityAttestation creates a ValidityAttestation varying data type.
func NewValidityAttestation() ValidityAttestation {
	vdt, err := scale.NewVaryingDataType(Implicit{}, Explicit{})
	if err != nil {
		panic(err)
	}

	return ValidityAttestation(vdt)
}

// NewImplicitValidityAttestation returns an attestation holding the given
// signature as an implicit vote.
func NewImplicitValidityAttestation(signature ValidatorSignature) (ValidityAttestation, error) {
	va := NewValidityAttestation()
	if err := va.Set(Implicit(signature)); err != nil {
		return ValidityAttestation{}, err
	}
	return va, nil
}

// NewExplicitValidityAttestation returns an attestation holding the given
// signature as an explicit vote.
func NewExplicitValidityAttestation(signature ValidatorSignature) (ValidityAttestation, error) {
	va := NewValidityAttestation()
	if err := va.Set(Explicit(signature)); err != nil {
		return ValidityAttestation{}, err
	}
	return va, nil
}
