// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import "github.com/bbvm-labs/bbvm/vm"

// opTableEntry combines everything the analysis needs to know about one
// opcode under a given revision: its handler, its static gas cost, and
// its stack shape.
type opTableEntry struct {
	execute     opFn
	gasCost     vm.Gas
	stackReq    int
	stackChange int
}

type opTable [numOpCodes]opTableEntry

var opTablesPerRevision = func() [vm.NumRevisions]opTable {
	var res [vm.NumRevisions]opTable
	for rev := vm.Revision(0); int(rev) < vm.NumRevisions; rev++ {
		prices := getStaticGasPrices(rev)
		for op := 0; op < numOpCodes; op++ {
			entry := &res[rev][op]
			handler := getHandler(OpCode(op))
			if handler == nil || rev < opCodeAvailableFrom(OpCode(op)) {
				// Undefined opcodes carry no gas cost and no stack
				// requirements; encountering one is a fault of its own.
				entry.execute = opUndefined
				continue
			}
			entry.execute = handler
			entry.gasCost = prices.get(OpCode(op))
			entry.stackReq, entry.stackChange = getStackTraits(OpCode(op))
		}
	}
	return res
}()

func getOpTable(revision vm.Revision) *opTable {
	return &opTablesPerRevision[revision]
}

// opCodeAvailableFrom reports the first revision in which the given
// opcode is defined. Opcodes of the base instruction set report the
// oldest supported revision.
func opCodeAvailableFrom(op OpCode) vm.Revision {
	switch op {
	case BASEFEE:
		return vm.R10_London
	case PUSH0:
		return vm.R12_Shanghai
	case TLOAD, TSTORE, MCOPY, BLOBHASH, BLOBBASEFEE:
		return vm.R13_Cancun
	default:
		return vm.R07_Istanbul
	}
}

// getHandler returns the handler implementing the given opcode, or nil if
// the opcode is not part of the instruction set of any revision.
func getHandler(op OpCode) opFn {
	if op.isPush() {
		if op <= PUSH8 {
			return opPushSmall
		}
		return opPushFull
	}
	if DUP1 <= op && op <= DUP16 {
		return opDup
	}
	if SWAP1 <= op && op <= SWAP16 {
		return opSwap
	}
	if LOG0 <= op && op <= LOG4 {
		return opLog
	}
	switch op {
	case STOP:
		return opStop
	case ADD:
		return opAdd
	case MUL:
		return opMul
	case SUB:
		return opSub
	case DIV:
		return opDiv
	case SDIV:
		return opSDiv
	case MOD:
		return opMod
	case SMOD:
		return opSMod
	case ADDMOD:
		return opAddMod
	case MULMOD:
		return opMulMod
	case EXP:
		return opExp
	case SIGNEXTEND:
		return opSignExtend
	case LT:
		return opLt
	case GT:
		return opGt
	case SLT:
		return opSlt
	case SGT:
		return opSgt
	case EQ:
		return opEq
	case ISZERO:
		return opIsZero
	case AND:
		return opAnd
	case OR:
		return opOr
	case XOR:
		return opXor
	case NOT:
		return opNot
	case BYTE:
		return opByte
	case SHL:
		return opShl
	case SHR:
		return opShr
	case SAR:
		return opSar
	case KECCAK256:
		return opKeccak256
	case ADDRESS:
		return opAddress
	case BALANCE:
		return opBalance
	case ORIGIN:
		return opOrigin
	case CALLER:
		return opCaller
	case CALLVALUE:
		return opCallValue
	case CALLDATALOAD:
		return opCallDataLoad
	case CALLDATASIZE:
		return opCallDataSize
	case CALLDATACOPY:
		return opCallDataCopy
	case CODESIZE:
		return opCodeSize
	case CODECOPY:
		return opCodeCopy
	case GASPRICE:
		return opGasPrice
	case EXTCODESIZE:
		return opExtCodeSize
	case EXTCODECOPY:
		return opExtCodeCopy
	case RETURNDATASIZE:
		return opReturnDataSize
	case RETURNDATACOPY:
		return opReturnDataCopy
	case EXTCODEHASH:
		return opExtCodeHash
	case BLOCKHASH:
		return opBlockHash
	case COINBASE:
		return opCoinbase
	case TIMESTAMP:
		return opTimestamp
	case NUMBER:
		return opNumber
	case PREVRANDAO:
		return opPrevRandao
	case GASLIMIT:
		return opGasLimit
	case CHAINID:
		return opChainId
	case SELFBALANCE:
		return opSelfBalance
	case BASEFEE:
		return opBaseFee
	case BLOBHASH:
		return opBlobHash
	case BLOBBASEFEE:
		return opBlobBaseFee
	case POP:
		return opPop
	case MLOAD:
		return opMload
	case MSTORE:
		return opMstore
	case MSTORE8:
		return opMstore8
	case SLOAD:
		return opSload
	case SSTORE:
		return opSstore
	case JUMP:
		return opJump
	case JUMPI:
		return opJumpi
	case PC:
		return opPc
	case MSIZE:
		return opMsize
	case GAS:
		return opGas
	case JUMPDEST: // doubles as the begin-block instruction
		return opBeginBlock
	case TLOAD:
		return opTload
	case TSTORE:
		return opTstore
	case MCOPY:
		return opMcopy
	case PUSH0:
		return opPush0
	case ADDMOD384:
		return opAddMod384
	case SUBMOD384:
		return opSubMod384
	case MULMODMONT384:
		return opMulModMont384
	case CREATE, CREATE2:
		return opCreate
	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		return opCall
	case RETURN:
		return opReturn
	case REVERT:
		return opRevert
	case INVALID:
		return opInvalid
	case SELFDESTRUCT:
		return opSelfDestruct
	}
	return nil
}

// getStackTraits returns the minimum stack depth required by the given
// opcode and its net effect on the stack depth.
func getStackTraits(op OpCode) (req, change int) {
	if op.isPush() || op == PUSH0 {
		return 0, 1
	}
	if DUP1 <= op && op <= DUP16 {
		n := int(op-DUP1) + 1
		return n, 1
	}
	if SWAP1 <= op && op <= SWAP16 {
		n := int(op-SWAP1) + 1
		return n + 1, 0
	}
	if LOG0 <= op && op <= LOG4 {
		n := int(op-LOG0) + 2
		return n, -n
	}
	switch op {
	case STOP, JUMPDEST, INVALID:
		return 0, 0
	case ADD, MUL, SUB, DIV, SDIV, MOD, SMOD, SIGNEXTEND, EXP,
		LT, GT, SLT, SGT, EQ, AND, OR, XOR, BYTE, SHL, SHR, SAR,
		KECCAK256:
		return 2, -1
	case ADDMOD, MULMOD:
		return 3, -2
	case ISZERO, NOT, BALANCE, CALLDATALOAD, EXTCODESIZE, EXTCODEHASH,
		BLOCKHASH, BLOBHASH, MLOAD, SLOAD, TLOAD:
		return 1, 0
	case ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE, CODESIZE,
		GASPRICE, RETURNDATASIZE, COINBASE, TIMESTAMP, NUMBER,
		PREVRANDAO, GASLIMIT, CHAINID, SELFBALANCE, BASEFEE,
		BLOBBASEFEE, PC, MSIZE, GAS:
		return 0, 1
	case CALLDATACOPY, CODECOPY, RETURNDATACOPY, MCOPY:
		return 3, -3
	case EXTCODECOPY:
		return 4, -4
	case POP, JUMP, SELFDESTRUCT:
		return 1, -1
	case MSTORE, MSTORE8, SSTORE, TSTORE, JUMPI, RETURN, REVERT:
		return 2, -2
	case ADDMOD384, SUBMOD384, MULMODMONT384:
		return 1, -1
	case CREATE:
		return 3, -2
	case CREATE2:
		return 4, -3
	case CALL, CALLCODE:
		return 7, -6
	case DELEGATECALL, STATICCALL:
		return 6, -5
	}
	return 0, 0
}
