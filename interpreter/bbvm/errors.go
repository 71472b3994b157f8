// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import "github.com/bbvm-labs/bbvm/vm"

const (
	// errOutOfGas is reported when a gas debit cannot be covered by the
	// remaining gas of the frame.
	errOutOfGas = vm.ConstError("out of gas")

	// errGasUintOverflow is reported when a memory offset or size is too
	// large to be addressable. Such ranges can never be paid for, so the
	// condition surfaces as an out-of-gas fault.
	errGasUintOverflow = vm.ConstError("gas uint64 overflow")
)
