// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/bbvm-labs/bbvm/vm"
	"golang.org/x/crypto/sha3"
	"golang.org/x/exp/maps"
)

// runHost is a self-contained in-memory implementation of the vm.Host
// interface, backing the run command. State lives in plain maps, nested
// calls re-enter the interpreter synchronously, and reverted or faulted
// frames are rolled back via full-state snapshots. It is good enough to
// exercise complete call trees, not a production state backend.
type runHost struct {
	interpreter vm.Interpreter
	blockParams vm.BlockParameters
	txParams    vm.TransactionParameters

	depth       int
	staticDepth int

	accounts     map[vm.Address]*account
	original     map[storageSlot]vm.Word
	transient    map[storageSlot]vm.Word
	warmAccounts map[vm.Address]struct{}
	warmSlots    map[storageSlot]struct{}
	destructed   map[vm.Address]struct{}
	logs         []vm.Log
}

type account struct {
	balance vm.Value
	nonce   uint64
	code    vm.Code
	storage map[vm.Key]vm.Word
}

type storageSlot struct {
	addr vm.Address
	key  vm.Key
}

func newRunHost(interpreter vm.Interpreter, blockParams vm.BlockParameters) *runHost {
	return &runHost{
		interpreter:  interpreter,
		blockParams:  blockParams,
		accounts:     map[vm.Address]*account{},
		original:     map[storageSlot]vm.Word{},
		transient:    map[storageSlot]vm.Word{},
		warmAccounts: map[vm.Address]struct{}{},
		warmSlots:    map[storageSlot]struct{}{},
		destructed:   map[vm.Address]struct{}{},
	}
}

func (h *runHost) setBalance(addr vm.Address, balance vm.Value) {
	h.getOrCreateAccount(addr).balance = balance
}

func (h *runHost) setCode(addr vm.Address, code vm.Code) {
	h.getOrCreateAccount(addr).code = code
}

func (h *runHost) getOrCreateAccount(addr vm.Address) *account {
	if acc, found := h.accounts[addr]; found {
		return acc
	}
	acc := &account{storage: map[vm.Key]vm.Word{}}
	h.accounts[addr] = acc
	return acc
}

// ------------------ vm.Host implementation ------------------

func (h *runHost) AccountExists(addr vm.Address) bool {
	acc, found := h.accounts[addr]
	return found && (acc.balance != (vm.Value{}) || acc.nonce > 0 || len(acc.code) > 0)
}

func (h *runHost) GetBalance(addr vm.Address) vm.Value {
	if acc, found := h.accounts[addr]; found {
		return acc.balance
	}
	return vm.Value{}
}

func (h *runHost) GetStorage(addr vm.Address, key vm.Key) vm.Word {
	if acc, found := h.accounts[addr]; found {
		return acc.storage[key]
	}
	return vm.Word{}
}

func (h *runHost) SetStorage(addr vm.Address, key vm.Key, value vm.Word) vm.StorageStatus {
	acc := h.getOrCreateAccount(addr)
	slot := storageSlot{addr, key}
	current := acc.storage[key]
	original, committed := h.original[slot]
	if !committed {
		original = current
		h.original[slot] = original
	}
	acc.storage[key] = value
	return vm.GetStorageStatus(original, current, value)
}

func (h *runHost) GetTransientStorage(addr vm.Address, key vm.Key) vm.Word {
	return h.transient[storageSlot{addr, key}]
}

func (h *runHost) SetTransientStorage(addr vm.Address, key vm.Key, value vm.Word) {
	h.transient[storageSlot{addr, key}] = value
}

func (h *runHost) AccessAccount(addr vm.Address) vm.AccessStatus {
	if _, warm := h.warmAccounts[addr]; warm {
		return vm.WarmAccess
	}
	h.warmAccounts[addr] = struct{}{}
	return vm.ColdAccess
}

func (h *runHost) AccessStorage(addr vm.Address, key vm.Key) vm.AccessStatus {
	slot := storageSlot{addr, key}
	if _, warm := h.warmSlots[slot]; warm {
		return vm.WarmAccess
	}
	h.warmSlots[slot] = struct{}{}
	return vm.ColdAccess
}

func (h *runHost) GetCode(addr vm.Address) vm.Code {
	if acc, found := h.accounts[addr]; found {
		return acc.code
	}
	return nil
}

func (h *runHost) GetCodeSize(addr vm.Address) int {
	return len(h.GetCode(addr))
}

func (h *runHost) GetCodeHash(addr vm.Address) vm.Hash {
	if !h.AccountExists(addr) {
		return vm.Hash{}
	}
	return keccak(h.GetCode(addr))
}

func (h *runHost) GetBlockHash(number int64) vm.Hash {
	// Synthetic but deterministic block hashes.
	return keccak([]byte{
		byte(number >> 56), byte(number >> 48), byte(number >> 40), byte(number >> 32),
		byte(number >> 24), byte(number >> 16), byte(number >> 8), byte(number),
	})
}

func (h *runHost) EmitLog(log vm.Log) {
	h.logs = append(h.logs, log)
}

func (h *runHost) SelfDestruct(addr vm.Address, beneficiary vm.Address) bool {
	acc := h.getOrCreateAccount(addr)
	balance := acc.balance.ToUint256()
	acc.balance = vm.Value{}
	target := h.getOrCreateAccount(beneficiary)
	target.balance = vm.ValueFromUint256(balance.Add(balance, target.balance.ToUint256()))
	if _, done := h.destructed[addr]; done {
		return false
	}
	h.destructed[addr] = struct{}{}
	return true
}

func (h *runHost) Call(kind vm.CallKind, params vm.CallParameters) (vm.CallResult, error) {
	snapshot := h.snapshot()
	h.depth++
	defer func() { h.depth-- }()

	if kind == vm.Create || kind == vm.Create2 {
		return h.runCreate(kind, params, snapshot)
	}
	return h.runCall(kind, params, snapshot)
}

func (h *runHost) runCall(kind vm.CallKind, params vm.CallParameters, snapshot hostSnapshot) (vm.CallResult, error) {
	if kind == vm.Call || kind == vm.CallCode {
		if !h.transferValue(params.Sender, params.Recipient, params.Value) {
			return vm.CallResult{Status: vm.StatusRevert, GasLeft: params.Gas}, nil
		}
	}

	static := h.staticDepth > 0 || kind == vm.StaticCall
	if static {
		h.staticDepth++
		defer func() { h.staticDepth-- }()
	}

	result, err := h.interpreter.Run(vm.Parameters{
		BlockParameters:       h.blockParams,
		TransactionParameters: h.txParams,
		Host:                  h,
		Static:                static,
		Depth:                 h.depth,
		Gas:                   params.Gas,
		Recipient:             params.Recipient,
		Sender:                params.Sender,
		Input:                 params.Input,
		Value:                 params.Value,
		Code:                  h.GetCode(params.CodeAddress),
	})
	if err != nil {
		return vm.CallResult{}, err
	}
	if result.Status != vm.StatusSuccess {
		h.restore(snapshot)
	}
	return vm.CallResult{
		Status:    result.Status,
		Output:    result.Output,
		GasLeft:   result.GasLeft,
		GasRefund: result.GasRefund,
	}, nil
}

func (h *runHost) runCreate(kind vm.CallKind, params vm.CallParameters, snapshot hostSnapshot) (vm.CallResult, error) {
	const (
		maxCodeSize     = 24576
		codeDepositCost = 200
	)

	creator := h.getOrCreateAccount(params.Sender)
	var created vm.Address
	if kind == vm.Create {
		created = createAddress(params.Sender, creator.nonce)
	} else {
		created = create2Address(params.Sender, params.Salt, params.Input)
	}
	creator.nonce++

	if acc, found := h.accounts[created]; found && (acc.nonce > 0 || len(acc.code) > 0) {
		return vm.CallResult{Status: vm.StatusRevert}, nil
	}

	newAccount := h.getOrCreateAccount(created)
	newAccount.nonce = 1
	if !h.transferValue(params.Sender, created, params.Value) {
		h.restore(snapshot)
		return vm.CallResult{Status: vm.StatusRevert, GasLeft: params.Gas}, nil
	}

	result, err := h.interpreter.Run(vm.Parameters{
		BlockParameters:       h.blockParams,
		TransactionParameters: h.txParams,
		Host:                  h,
		Depth:                 h.depth,
		Gas:                   params.Gas,
		Recipient:             created,
		Sender:                params.Sender,
		Value:                 params.Value,
		Code:                  vm.Code(params.Input),
	})
	if err != nil {
		return vm.CallResult{}, err
	}
	if result.Status != vm.StatusSuccess {
		h.restore(snapshot)
		return vm.CallResult{
			Status:  result.Status,
			Output:  result.Output,
			GasLeft: result.GasLeft,
		}, nil
	}

	depositCost := vm.Gas(codeDepositCost * len(result.Output))
	badCode := len(result.Output) > maxCodeSize ||
		(h.blockParams.Revision >= vm.R10_London && len(result.Output) > 0 && result.Output[0] == 0xEF)
	if badCode || result.GasLeft < depositCost {
		h.restore(snapshot)
		return vm.CallResult{Status: vm.StatusRevert}, nil
	}

	h.getOrCreateAccount(created).code = vm.Code(result.Output)
	return vm.CallResult{
		Status:         vm.StatusSuccess,
		GasLeft:        result.GasLeft - depositCost,
		GasRefund:      result.GasRefund,
		CreatedAddress: created,
	}, nil
}

func (h *runHost) transferValue(from, to vm.Address, value vm.Value) bool {
	if value == (vm.Value{}) || from == to {
		return true
	}
	source := h.getOrCreateAccount(from)
	if source.balance.Cmp(value) < 0 {
		return false
	}
	balance := source.balance.ToUint256()
	source.balance = vm.ValueFromUint256(balance.Sub(balance, value.ToUint256()))
	target := h.getOrCreateAccount(to)
	balance = target.balance.ToUint256()
	target.balance = vm.ValueFromUint256(balance.Add(balance, value.ToUint256()))
	return true
}

// ------------------ Snapshots ------------------

type hostSnapshot struct {
	accounts     map[vm.Address]*account
	transient    map[storageSlot]vm.Word
	warmAccounts map[vm.Address]struct{}
	warmSlots    map[storageSlot]struct{}
	destructed   map[vm.Address]struct{}
	numLogs      int
}

func (h *runHost) snapshot() hostSnapshot {
	accounts := make(map[vm.Address]*account, len(h.accounts))
	for addr, acc := range h.accounts {
		storage := make(map[vm.Key]vm.Word, len(acc.storage))
		for key, value := range acc.storage {
			storage[key] = value
		}
		accounts[addr] = &account{
			balance: acc.balance,
			nonce:   acc.nonce,
			code:    acc.code,
			storage: storage,
		}
	}
	return hostSnapshot{
		accounts:     accounts,
		transient:    maps.Clone(h.transient),
		warmAccounts: maps.Clone(h.warmAccounts),
		warmSlots:    maps.Clone(h.warmSlots),
		destructed:   maps.Clone(h.destructed),
		numLogs:      len(h.logs),
	}
}

func (h *runHost) restore(snapshot hostSnapshot) {
	h.accounts = snapshot.accounts
	h.transient = snapshot.transient
	h.warmAccounts = snapshot.warmAccounts
	h.warmSlots = snapshot.warmSlots
	h.destructed = snapshot.destructed
	h.logs = h.logs[:snapshot.numLogs]
}

// ------------------ Address Derivation ------------------

func keccak(data ...[]byte) (res vm.Hash) {
	hasher := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hasher.Write(d)
	}
	hasher.Sum(res[0:0])
	return
}

// createAddress derives the address of a contract created by CREATE: the
// last 20 bytes of the hash of the RLP encoding of [sender, nonce].
func createAddress(sender vm.Address, nonce uint64) (res vm.Address) {
	var nonceBytes []byte
	switch {
	case nonce == 0:
		nonceBytes = []byte{0x80}
	case nonce < 0x80:
		nonceBytes = []byte{byte(nonce)}
	default:
		for shift := 56; shift >= 0; shift -= 8 {
			if b := byte(nonce >> shift); b != 0 || len(nonceBytes) > 0 {
				nonceBytes = append(nonceBytes, b)
			}
		}
		nonceBytes = append([]byte{0x80 + byte(len(nonceBytes))}, nonceBytes...)
	}
	payload := append([]byte{0x94}, sender[:]...)
	payload = append(payload, nonceBytes...)
	hash := keccak(append([]byte{0xc0 + byte(len(payload))}, payload...))
	copy(res[:], hash[12:])
	return
}

// create2Address derives the address of a contract created by CREATE2:
// the last 20 bytes of keccak(0xff ++ sender ++ salt ++ keccak(initCode)).
func create2Address(sender vm.Address, salt vm.Hash, initCode []byte) (res vm.Address) {
	initCodeHash := keccak(initCode)
	hash := keccak([]byte{0xff}, sender[:], salt[:], initCodeHash[:])
	copy(res[:], hash[12:])
	return
}
