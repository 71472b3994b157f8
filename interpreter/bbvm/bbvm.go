// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

// Package bbvm implements a basic-block based interpreter for EVM byte
// code. The analysis pass partitions the code into basic blocks and
// precomputes each block's gas cost and stack shape, so the execution
// loop checks gas and stack bounds once per block instead of once per
// instruction. In addition to the canonical instruction set, the
// interpreter supports a set of 384-bit modular arithmetic extension
// instructions for elliptic-curve pairing workloads.
//
// The implementation registers itself in the interpreter registry under
// the name "bbvm"; importing this package is sufficient to make it
// available through vm.NewInterpreter.
package bbvm

import (
	"fmt"

	"github.com/bbvm-labs/bbvm/vm"
)

// defaultAnalysisCacheCapacity is the number of code analyses kept by the
// cache if no capacity is configured.
const defaultAnalysisCacheCapacity = 1 << 14

// Config customizes an interpreter instance obtained from the factory.
type Config struct {
	// AnalysisCacheCapacity is the maximum number of code analyses
	// retained, keyed by code hash and revision. Zero selects the
	// default capacity.
	AnalysisCacheCapacity int
}

func init() {
	err := vm.RegisterInterpreterFactory("bbvm", func(config any) (vm.Interpreter, error) {
		var cfg Config
		switch c := config.(type) {
		case nil:
		case Config:
			cfg = c
		case *Config:
			cfg = *c
		default:
			return nil, fmt.Errorf("unexpected configuration type %T", config)
		}
		return newInterpreter(cfg)
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register interpreter: %v", err))
	}
}
