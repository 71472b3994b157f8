// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

// Package vm defines the public interface of the bbvm project: the value
// types exchanged with an interpreter, the host capability interface, and
// the registry through which interpreter implementations are obtained.
package vm

// Interpreter is a component capable of executing EVM byte code. The
// resulting error is nil whenever the code was correctly processed, even
// if the execution itself halted with a fault status. A non-nil error
// indicates a problem inside the interpreter; in that case the result is
// undefined. Interpreters are required to be thread-safe, multiple runs
// may be conducted in parallel.
type Interpreter interface {
	Run(Parameters) (Result, error)
}

// Parameters summarizes the inputs required for executing code in a
// single call frame.
type Parameters struct {
	BlockParameters
	TransactionParameters
	Host      Host
	Static    bool
	Depth     int
	Gas       Gas
	Recipient Address
	Sender    Address
	Input     Data
	Value     Value
	CodeHash  *Hash
	Code      Code
}

// BlockParameters contains the block-level context visible to executing
// code.
type BlockParameters struct {
	ChainID     Word
	BlockNumber int64
	Timestamp   int64
	Coinbase    Address
	GasLimit    Gas
	PrevRandao  Hash
	BaseFee     Value
	BlobBaseFee Value
	Revision    Revision
}

// TransactionParameters contains the transaction-level context visible to
// executing code.
type TransactionParameters struct {
	Origin     Address
	GasPrice   Value
	BlobHashes []Hash
}

// Result summarizes the outcome of running one call frame.
type Result struct {
	// Status is the halting status of the frame. Faults are reported
	// through this field, never as an error.
	Status Status
	// Output holds the bytes produced by RETURN or REVERT. It is empty
	// for every other status.
	Output Data
	// GasLeft is the remaining gas. It is only meaningful if Status is
	// StatusSuccess or StatusRevert; for all fault statuses it is zero.
	GasLeft Gas
	// GasRefund is the accumulated refund, meaningful only on success.
	GasRefund Gas
}

// Success returns true if the frame completed without being reverted or
// faulting.
func (r Result) Success() bool {
	return r.Status == StatusSuccess
}

// Status is the halting status of an execution frame. Every run of the
// interpreter terminates with exactly one of these values.
type Status byte

const (
	StatusSuccess Status = iota
	StatusRevert
	StatusOutOfGas
	StatusInvalidInstruction   // < the INVALID opcode was executed
	StatusUndefinedInstruction // < an opcode undefined for the revision was encountered
	StatusStackOverflow
	StatusStackUnderflow
	StatusBadJumpDestination
	StatusStaticModeViolation
	StatusInternalError // < the host failed; not a code-level fault
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRevert:
		return "revert"
	case StatusOutOfGas:
		return "out_of_gas"
	case StatusInvalidInstruction:
		return "invalid_instruction"
	case StatusUndefinedInstruction:
		return "undefined_instruction"
	case StatusStackOverflow:
		return "stack_overflow"
	case StatusStackUnderflow:
		return "stack_underflow"
	case StatusBadJumpDestination:
		return "bad_jump_destination"
	case StatusStaticModeViolation:
		return "static_mode_violation"
	case StatusInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Gas represents an amount of the metered execution resource. It is
// signed so that intermediate accounting steps may transiently drop below
// zero before being checked.
type Gas int64

// Data represents the input or output of a contract invocation.
type Data []byte

// Code represents the byte code of a contract.
type Code []byte
