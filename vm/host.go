// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package vm

//go:generate mockgen -source host.go -destination host_mock.go -package vm

// Host is the capability interface through which executing code reaches
// its environment: account state, storage, block data, logs, and nested
// calls. It is the only channel between execution frames. All operations
// are synchronous; a nested Call runs to completion before returning.
type Host interface {
	AccountExists(Address) bool
	GetBalance(Address) Value

	GetStorage(Address, Key) Word
	SetStorage(Address, Key, Word) StorageStatus
	GetTransientStorage(Address, Key) Word
	SetTransientStorage(Address, Key, Word)

	// AccessAccount and AccessStorage mark the given location as accessed
	// and report whether it was cold or warm before, which determines the
	// accounting tier of the access.
	AccessAccount(Address) AccessStatus
	AccessStorage(Address, Key) AccessStatus

	GetCode(Address) Code
	GetCodeSize(Address) int
	GetCodeHash(Address) Hash

	// GetBlockHash returns the hash of the block with the given number.
	GetBlockHash(number int64) Hash

	EmitLog(Log)

	// Call executes a nested call or contract creation on behalf of the
	// current frame. The returned error is reserved for host-internal
	// failures; code-level outcomes of the callee are reported through
	// CallResult.Status.
	Call(kind CallKind, parameters CallParameters) (CallResult, error)

	// SelfDestruct schedules the given account for destruction,
	// transferring its balance to the beneficiary. It returns true if the
	// account was not already scheduled.
	SelfDestruct(address Address, beneficiary Address) bool
}

// AccessStatus indicates a cold or warm account or storage slot access.
type AccessStatus bool

const (
	ColdAccess AccessStatus = false
	WarmAccess AccessStatus = true
)

// StorageStatus is an enum describing the effect of an SSTORE on a
// storage slot, derived from its original (committed), current, and new
// value. It determines dynamic gas costs and refunds.
type StorageStatus int

const (
	StorageAssigned StorageStatus = iota
	StorageAdded
	StorageDeleted
	StorageModified
	StorageDeletedAdded
	StorageModifiedDeleted
	StorageDeletedRestored
	StorageAddedDeleted
	StorageModifiedRestored
)

func (s StorageStatus) String() string {
	switch s {
	case StorageAssigned:
		return "assigned"
	case StorageAdded:
		return "added"
	case StorageDeleted:
		return "deleted"
	case StorageModified:
		return "modified"
	case StorageDeletedAdded:
		return "deleted_added"
	case StorageModifiedDeleted:
		return "modified_deleted"
	case StorageDeletedRestored:
		return "deleted_restored"
	case StorageAddedDeleted:
		return "added_deleted"
	case StorageModifiedRestored:
		return "modified_restored"
	default:
		return "unknown"
	}
}

// Log is a log message emitted as a side effect of contract execution.
type Log struct {
	Address Address
	Topics  []Hash
	Data    Data
}

// CallKind distinguishes the kinds of recursive contract invocations.
type CallKind int

const (
	Call CallKind = iota
	DelegateCall
	StaticCall
	CallCode
	Create
	Create2
)

func (k CallKind) String() string {
	switch k {
	case Call:
		return "call"
	case StaticCall:
		return "static_call"
	case DelegateCall:
		return "delegate_call"
	case CallCode:
		return "call_code"
	case Create:
		return "create"
	case Create2:
		return "create2"
	default:
		return "unknown"
	}
}

type CallParameters struct {
	Sender      Address
	Recipient   Address // < not relevant for Create and Create2
	Value       Value   // < ignored by static calls, considered to be 0
	Input       Data
	Gas         Gas
	Salt        Hash // < only relevant for Create2
	CodeAddress Address
}

type CallResult struct {
	// Status is the halting status of the nested frame. StatusSuccess and
	// StatusRevert are ordinary callee outcomes; any other status is
	// propagated unchanged to the caller's frame.
	Status         Status
	Output         Data
	GasLeft        Gas
	GasRefund      Gas
	CreatedAddress Address // < only meaningful for Create and Create2
}

// Success returns true if the nested frame completed without reverting
// or faulting.
func (r CallResult) Success() bool {
	return r.Status == StatusSuccess
}
