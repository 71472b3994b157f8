// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import "github.com/bbvm-labs/bbvm/vm"

// maxCallDepth is the maximum nesting depth of call frames; calls and
// creations issued at this depth fail without being executed.
const maxCallDepth = 1024

// context is the execution state of one call frame. It is exclusively
// owned by the execution loop of that frame and never shared.
type context struct {
	params   vm.Parameters
	host     vm.Host
	revision vm.Revision
	analysis *codeAnalysis

	// gasLeft may transiently drop below zero between a block's
	// pre-debit and the corresponding correction point; whenever it is
	// observed at a check it reflects the true remaining gas.
	gasLeft          vm.Gas
	currentBlockCost vm.Gas
	refund           vm.Gas

	stack  *stack
	memory *Memory

	status       vm.Status
	returnData   []byte
	outputOffset uint64
	outputSize   uint64
}

// useGas debits the given amount from the remaining gas of the frame.
func (c *context) useGas(amount vm.Gas) error {
	if amount < 0 || c.gasLeft < amount {
		return errOutOfGas
	}
	c.gasLeft -= amount
	return nil
}

// fail records the fault terminating this frame and halts the loop.
func (c *context) fail(status vm.Status) int {
	c.status = status
	return haltPosition
}

// run executes the instruction stream until a handler halts the frame.
// The stream is guaranteed to end in a STOP, so the cursor can never run
// past it.
func run(c *context) {
	instructions := c.analysis.instructions
	for pos := 0; pos >= 0; {
		i := &instructions[pos]
		pos = i.execute(c, i, pos)
	}
}

// interpreter is a block-based implementation of the vm.Interpreter
// interface: byte code is translated once into an instruction stream
// with per-block gas and stack metadata, and execution dispatches through
// the precomputed handlers. Instances are thread-safe.
type interpreter struct {
	analyzer *analyzer
}

func newInterpreter(config Config) (*interpreter, error) {
	capacity := config.AnalysisCacheCapacity
	if capacity <= 0 {
		capacity = defaultAnalysisCacheCapacity
	}
	analyzer, err := newAnalyzer(capacity)
	if err != nil {
		return nil, err
	}
	return &interpreter{analyzer: analyzer}, nil
}

func (e *interpreter) Run(params vm.Parameters) (vm.Result, error) {
	if params.Revision < 0 || int(params.Revision) >= vm.NumRevisions {
		return vm.Result{}, &vm.ErrUnsupportedRevision{Revision: params.Revision}
	}
	if len(params.Code) == 0 {
		return vm.Result{Status: vm.StatusSuccess, GasLeft: params.Gas}, nil
	}

	analysis := e.analyzer.analyze(params.Revision, params.CodeHash, params.Code)

	c := context{
		params:   params,
		host:     params.Host,
		revision: params.Revision,
		analysis: analysis,
		gasLeft:  params.Gas,
		stack:    newStack(),
		memory:   NewMemory(),
	}
	defer returnStack(c.stack)

	run(&c)

	res := vm.Result{Status: c.status}
	switch c.status {
	case vm.StatusSuccess, vm.StatusRevert:
		res.GasLeft = c.gasLeft
		if c.outputSize > 0 {
			output := make([]byte, c.outputSize)
			copy(output, c.memory.view(c.outputOffset, c.outputSize))
			res.Output = output
		}
		if c.status == vm.StatusSuccess {
			res.GasRefund = c.refund
		}
	default:
		// Faults consume all remaining gas and produce no output.
	}
	return res, nil
}
