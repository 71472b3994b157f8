// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"github.com/bbvm-labs/bbvm/vm"
	"github.com/holiman/uint256"
)

const (
	CallNewAccountGas    vm.Gas = 25000 // Paid for CALL when the destination address didn't exist prior.
	CallValueTransferGas vm.Gas = 9000  // Paid for CALL when the value transfer is non-zero.
	CallStipend          vm.Gas = 2300  // Free gas given at beginning of a value-bearing call.

	ColdSloadCost         vm.Gas = 2100 // Cost of a cold SLOAD since Berlin.
	ColdAccountAccessCost vm.Gas = 2600 // Cost of a cold account access since Berlin.
	WarmStorageReadCost   vm.Gas = 100  // Cost of reading warm storage since Berlin.

	SloadGas           vm.Gas = 800   // Cost of SLOAD in Istanbul.
	SstoreSetGas       vm.Gas = 20000 // Once per SSTORE from clean zero to non-zero.
	SstoreResetGas     vm.Gas = 5000  // Once per SSTORE from clean non-zero to something else.
	SstoreSentryGas    vm.Gas = 2300  // Minimum gas required to be present for an SSTORE, not consumed.
	SstoreClearsRefund vm.Gas = 15000 // Refund for clearing a slot, until London.

	// SstoreClearsRefundEIP3529 is the reduced clearing refund since
	// London: SSTORE_RESET_GAS - COLD_SLOAD_COST + ACCESS_LIST_STORAGE_KEY_COST
	// = 5000 - 2100 + 1900 = 4800.
	SstoreClearsRefundEIP3529 vm.Gas = 4800

	SelfdestructGas          vm.Gas = 5000  // Base cost of SELFDESTRUCT.
	SelfdestructRefund       vm.Gas = 24000 // Refunded for a selfdestruct, until London.
	CreateBySelfdestructGas  vm.Gas = 25000 // Paid when selfdestruct credits a non-existing account.
	InitCodeWordGas          vm.Gas = 2     // Per word of init code since Shanghai.
	MaxInitCodeSize                 = 2 * 24576
)

// staticGasPrices holds one static gas cost per opcode. The dynamic share
// of an instruction's cost is computed by its handler at execution time.
type staticGasPrices [numOpCodes]vm.Gas

var staticGasPricesPerRevision = func() [vm.NumRevisions]staticGasPrices {
	var res [vm.NumRevisions]staticGasPrices
	for rev := vm.Revision(0); int(rev) < vm.NumRevisions; rev++ {
		for op := 0; op < numOpCodes; op++ {
			res[rev][op] = getStaticGasPriceInternal(OpCode(op))
		}
		if rev >= vm.R09_Berlin {
			applyBerlinGasPrices(&res[rev])
		}
	}
	return res
}()

func getStaticGasPrices(revision vm.Revision) *staticGasPrices {
	return &staticGasPricesPerRevision[revision]
}

func (p *staticGasPrices) get(op OpCode) vm.Gas {
	return p[op]
}

// applyBerlinGasPrices adjusts the schedule for EIP-2929: the static cost
// of state-accessing instructions drops to the warm access cost, and the
// cold surcharge is charged dynamically by the handlers.
func applyBerlinGasPrices(prices *staticGasPrices) {
	prices[SLOAD] = WarmStorageReadCost
	prices[BALANCE] = WarmStorageReadCost
	prices[EXTCODESIZE] = WarmStorageReadCost
	prices[EXTCODECOPY] = WarmStorageReadCost
	prices[EXTCODEHASH] = WarmStorageReadCost
	prices[CALL] = WarmStorageReadCost
	prices[CALLCODE] = WarmStorageReadCost
	prices[DELEGATECALL] = WarmStorageReadCost
	prices[STATICCALL] = WarmStorageReadCost
}

func getStaticGasPriceInternal(op OpCode) vm.Gas {
	if op.isPush() {
		return 3
	}
	if DUP1 <= op && op <= DUP16 {
		return 3
	}
	if SWAP1 <= op && op <= SWAP16 {
		return 3
	}
	if LT <= op && op <= SAR {
		return 3
	}
	switch op {
	case STOP, RETURN, REVERT, INVALID, SSTORE:
		return 0
	case SELFDESTRUCT:
		return SelfdestructGas
	case ADD, SUB, CALLDATALOAD, CALLDATACOPY, CODECOPY,
		RETURNDATACOPY, MLOAD, MSTORE, MSTORE8, MCOPY, BLOBHASH:
		return 3
	case MUL, DIV, SDIV, MOD, SMOD, SIGNEXTEND, SELFBALANCE:
		return 5
	case ADDMOD, MULMOD, JUMP:
		return 8
	case EXP, JUMPI:
		return 10
	case ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE, CODESIZE,
		GASPRICE, COINBASE, TIMESTAMP, NUMBER, PREVRANDAO, GASLIMIT,
		CHAINID, BASEFEE, BLOBBASEFEE, RETURNDATASIZE,
		POP, PC, MSIZE, GAS, PUSH0:
		return 2
	case JUMPDEST:
		return 1
	case KECCAK256:
		return 30
	case BALANCE, EXTCODESIZE, EXTCODEHASH, EXTCODECOPY,
		CALL, CALLCODE, DELEGATECALL, STATICCALL:
		return 700
	case SLOAD:
		return SloadGas
	case TLOAD, TSTORE:
		return 100
	case BLOCKHASH:
		return 20
	case LOG0, LOG1, LOG2, LOG3, LOG4:
		return vm.Gas(375 * (int64(op) - int64(LOG0) + 1))
	case CREATE, CREATE2:
		return 32000
	case ADDMOD384, SUBMOD384:
		return 8
	case MULMODMONT384:
		return 24
	}
	return 0
}

// callGas computes the gas forwarded to a nested call: all but one 64th
// of the remaining gas (EIP-150), capped by the requested amount.
func callGas(availableGas vm.Gas, requested *uint256.Int) vm.Gas {
	gas := availableGas - availableGas/64
	if requested.IsUint64() && gas >= vm.Gas(requested.Uint64()) {
		return vm.Gas(requested.Uint64())
	}
	return gas
}

// accessCostColdSurcharge is the extra gas charged dynamically for a cold
// location since Berlin; the warm share is part of the static schedule.
func accountAccessColdSurcharge(status vm.AccessStatus) vm.Gas {
	if status == vm.ColdAccess {
		return ColdAccountAccessCost - WarmStorageReadCost
	}
	return 0
}

func storageAccessColdSurcharge(status vm.AccessStatus) vm.Gas {
	if status == vm.ColdAccess {
		return ColdSloadCost - WarmStorageReadCost
	}
	return 0
}

// sstoreDynamicGas returns the warm share of the dynamic SSTORE cost for
// the given storage modification. The cold surcharge is charged
// separately, and the static schedule contributes nothing for SSTORE.
func sstoreDynamicGas(revision vm.Revision, status vm.StorageStatus) vm.Gas {
	sloadCost := SloadGas
	resetCost := SstoreResetGas
	if revision >= vm.R09_Berlin {
		sloadCost = WarmStorageReadCost
		resetCost = SstoreResetGas - ColdSloadCost
	}
	switch status {
	case vm.StorageAdded:
		return SstoreSetGas
	case vm.StorageDeleted, vm.StorageModified:
		return resetCost
	default:
		// No-ops and dirty updates pay the load cost only.
		return sloadCost
	}
}

// sstoreRefund returns the refund delta caused by the given storage
// modification. The delta may be negative when a previously granted
// clearing refund is taken back.
func sstoreRefund(revision vm.Revision, status vm.StorageStatus) vm.Gas {
	clearingRefund := SstoreClearsRefund
	if revision >= vm.R10_London {
		clearingRefund = SstoreClearsRefundEIP3529
	}
	sloadCost := SloadGas
	resetCost := SstoreResetGas
	if revision >= vm.R09_Berlin {
		sloadCost = WarmStorageReadCost
		resetCost = SstoreResetGas - ColdSloadCost
	}
	switch status {
	case vm.StorageDeleted, vm.StorageModifiedDeleted:
		return clearingRefund
	case vm.StorageDeletedAdded:
		return -clearingRefund
	case vm.StorageDeletedRestored:
		return -clearingRefund + resetCost - sloadCost
	case vm.StorageAddedDeleted:
		return SstoreSetGas - sloadCost
	case vm.StorageModifiedRestored:
		return resetCost - sloadCost
	default:
		return 0
	}
}

// selfdestructRefund is granted once per destructed account, until London
// removed the refund (EIP-3529).
func selfdestructRefund(destructed bool, revision vm.Revision) vm.Gas {
	if destructed && revision < vm.R10_London {
		return SelfdestructRefund
	}
	return 0
}
