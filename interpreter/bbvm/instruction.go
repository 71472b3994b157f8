// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"github.com/bbvm-labs/bbvm/vm"
	"github.com/holiman/uint256"
)

// opFn is the handler of a single instruction. It receives the execution
// context, the instruction itself, and the instruction's position in the
// stream, and returns the position of the next instruction to execute, or
// haltPosition if the frame has halted.
type opFn func(c *context, i *instruction, pos int) int

// haltPosition is returned by a handler to terminate the execution loop.
// The halting status is recorded in the context.
const haltPosition = -1

// instruction is one element of the analyzed instruction stream. The
// stream is produced once by the analysis and is immutable for the
// lifetime of a call; instances may be shared by concurrent frames.
type instruction struct {
	execute opFn
	opcode  OpCode
	arg     instructionArgument
}

// instructionArgument carries the analysis-time argument of an
// instruction. Which field is meaningful depends on the opcode: push
// instructions carry their immediate value, the program-counter opcode
// carries its code offset, dynamic-cost instructions carry the block's
// accumulated static gas up to and including themselves, and begin-block
// instructions carry the block metadata.
type instructionArgument struct {
	number         int64
	smallPushValue uint64
	pushValue      *uint256.Int
	block          blockInfo
}

// blockInfo is the precomputed gas and stack metadata of one basic block,
// checked once at block entry by the begin-block instruction.
type blockInfo struct {
	// gasCost is the sum of the static gas costs of all instructions in
	// the block.
	gasCost vm.Gas
	// stackReq is the minimum stack depth required to execute all
	// instructions in the block without underflow.
	stackReq int
	// stackMaxGrowth is the maximum net stack growth reached at any point
	// while executing the block.
	stackMaxGrowth int
}
