// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"testing"

	"github.com/bbvm-labs/bbvm/vm"
	"github.com/holiman/uint256"
)

func TestStaticGasPrices_SelectedValues(t *testing.T) {
	tests := []struct {
		revision vm.Revision
		op       OpCode
		want     vm.Gas
	}{
		{vm.R07_Istanbul, ADD, 3},
		{vm.R07_Istanbul, EXP, 10},
		{vm.R07_Istanbul, JUMPDEST, 1},
		{vm.R07_Istanbul, KECCAK256, 30},
		{vm.R07_Istanbul, SLOAD, 800},
		{vm.R07_Istanbul, BALANCE, 700},
		{vm.R07_Istanbul, CALL, 700},
		{vm.R07_Istanbul, SSTORE, 0},
		{vm.R07_Istanbul, LOG0, 375},
		{vm.R07_Istanbul, LOG4, 1875},
		{vm.R07_Istanbul, CREATE, 32000},
		{vm.R07_Istanbul, SELFDESTRUCT, 5000},
		{vm.R07_Istanbul, ADDMOD384, 8},
		{vm.R07_Istanbul, SUBMOD384, 8},
		{vm.R07_Istanbul, MULMODMONT384, 24},

		// Since Berlin, state-accessing instructions carry the warm access
		// cost in the static schedule; the cold surcharge is dynamic.
		{vm.R09_Berlin, SLOAD, 100},
		{vm.R09_Berlin, BALANCE, 100},
		{vm.R09_Berlin, EXTCODEHASH, 100},
		{vm.R09_Berlin, CALL, 100},
		{vm.R09_Berlin, STATICCALL, 100},
		{vm.R13_Cancun, SLOAD, 100},
		{vm.R13_Cancun, TLOAD, 100},
		{vm.R13_Cancun, TSTORE, 100},
	}
	for _, test := range tests {
		got := getStaticGasPrices(test.revision).get(test.op)
		if got != test.want {
			t.Errorf("unexpected static cost of %v in %v, wanted %d, got %d",
				test.op, test.revision, test.want, got)
		}
	}
}

func TestCallGas_RetainsOneSixtyFourth(t *testing.T) {
	tests := []struct {
		available vm.Gas
		requested *uint256.Int
		want      vm.Gas
	}{
		{6400, uint256.NewInt(1000), 1000},
		{6400, uint256.NewInt(1_000_000), 6300},
		{6400, new(uint256.Int).Lsh(uint256.NewInt(1), 128), 6300},
		{63, uint256.NewInt(100), 63},
		{0, uint256.NewInt(100), 0},
	}
	for _, test := range tests {
		if got := callGas(test.available, test.requested); got != test.want {
			t.Errorf("callGas(%d, %v) = %d, wanted %d",
				test.available, test.requested, got, test.want)
		}
	}
}

func TestColdSurcharges(t *testing.T) {
	if got := accountAccessColdSurcharge(vm.ColdAccess); got != 2500 {
		t.Errorf("unexpected cold account surcharge, wanted 2500, got %d", got)
	}
	if got := accountAccessColdSurcharge(vm.WarmAccess); got != 0 {
		t.Errorf("warm account access must be free, got %d", got)
	}
	if got := storageAccessColdSurcharge(vm.ColdAccess); got != 2000 {
		t.Errorf("unexpected cold storage surcharge, wanted 2000, got %d", got)
	}
	if got := storageAccessColdSurcharge(vm.WarmAccess); got != 0 {
		t.Errorf("warm storage access must be free, got %d", got)
	}
}

func TestSstoreDynamicGas(t *testing.T) {
	tests := []struct {
		revision vm.Revision
		status   vm.StorageStatus
		want     vm.Gas
	}{
		{vm.R07_Istanbul, vm.StorageAdded, 20000},
		{vm.R07_Istanbul, vm.StorageDeleted, 5000},
		{vm.R07_Istanbul, vm.StorageModified, 5000},
		{vm.R07_Istanbul, vm.StorageAssigned, 800},
		{vm.R07_Istanbul, vm.StorageDeletedRestored, 800},

		{vm.R09_Berlin, vm.StorageAdded, 20000},
		{vm.R09_Berlin, vm.StorageDeleted, 2900},
		{vm.R09_Berlin, vm.StorageModified, 2900},
		{vm.R09_Berlin, vm.StorageAssigned, 100},

		{vm.R13_Cancun, vm.StorageModified, 2900},
		{vm.R13_Cancun, vm.StorageAssigned, 100},
	}
	for _, test := range tests {
		got := sstoreDynamicGas(test.revision, test.status)
		if got != test.want {
			t.Errorf("unexpected cost for %v in %v, wanted %d, got %d",
				test.status, test.revision, test.want, got)
		}
	}
}

func TestSstoreRefund(t *testing.T) {
	tests := []struct {
		revision vm.Revision
		status   vm.StorageStatus
		want     vm.Gas
	}{
		{vm.R07_Istanbul, vm.StorageDeleted, 15000},
		{vm.R07_Istanbul, vm.StorageModifiedDeleted, 15000},
		{vm.R07_Istanbul, vm.StorageDeletedAdded, -15000},
		{vm.R07_Istanbul, vm.StorageDeletedRestored, -15000 + 5000 - 800},
		{vm.R07_Istanbul, vm.StorageAddedDeleted, 20000 - 800},
		{vm.R07_Istanbul, vm.StorageModifiedRestored, 5000 - 800},
		{vm.R07_Istanbul, vm.StorageAdded, 0},
		{vm.R07_Istanbul, vm.StorageAssigned, 0},

		{vm.R09_Berlin, vm.StorageDeleted, 15000},
		{vm.R09_Berlin, vm.StorageDeletedRestored, -15000 + 2900 - 100},
		{vm.R09_Berlin, vm.StorageAddedDeleted, 20000 - 100},
		{vm.R09_Berlin, vm.StorageModifiedRestored, 2900 - 100},

		// London reduces the clearing refund (EIP-3529).
		{vm.R10_London, vm.StorageDeleted, 4800},
		{vm.R10_London, vm.StorageDeletedAdded, -4800},
		{vm.R10_London, vm.StorageDeletedRestored, -4800 + 2900 - 100},
		{vm.R13_Cancun, vm.StorageDeleted, 4800},
	}
	for _, test := range tests {
		got := sstoreRefund(test.revision, test.status)
		if got != test.want {
			t.Errorf("unexpected refund for %v in %v, wanted %d, got %d",
				test.status, test.revision, test.want, got)
		}
	}
}

func TestSelfdestructRefund_RemovedInLondon(t *testing.T) {
	if got := selfdestructRefund(true, vm.R09_Berlin); got != 24000 {
		t.Errorf("unexpected refund, wanted 24000, got %d", got)
	}
	if got := selfdestructRefund(true, vm.R10_London); got != 0 {
		t.Errorf("refund must be removed since London, got %d", got)
	}
	if got := selfdestructRefund(false, vm.R07_Istanbul); got != 0 {
		t.Errorf("repeated destruction must not be refunded, got %d", got)
	}
}
