// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"math"

	"github.com/bbvm-labs/bbvm/vm"
	"github.com/holiman/uint256"
)

// checkOffsetAndSize converts a memory offset and size from stack words
// to native integers. Ranges that cannot be addressed are rejected; a
// size of zero is always valid, whatever the offset.
func checkOffsetAndSize(offset, size *uint256.Int) (uint64, uint64, error) {
	if size.IsZero() {
		return 0, 0, nil
	}
	if !offset.IsUint64() || !size.IsUint64() {
		return 0, 0, errGasUintOverflow
	}
	return offset.Uint64(), size.Uint64(), nil
}

// ------------------ Halting & Faults ------------------

func opStop(c *context, i *instruction, pos int) int {
	c.status = vm.StatusSuccess
	return haltPosition
}

func opReturn(c *context, i *instruction, pos int) int {
	return endWithOutput(c, vm.StatusSuccess)
}

func opRevert(c *context, i *instruction, pos int) int {
	return endWithOutput(c, vm.StatusRevert)
}

func endWithOutput(c *context, status vm.Status) int {
	offsetU, sizeU := c.stack.pop(), c.stack.pop()
	offset, size, err := checkOffsetAndSize(offsetU, sizeU)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.memory.expandMemory(offset, size, c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	c.outputOffset = offset
	c.outputSize = size
	c.status = status
	return haltPosition
}

func opInvalid(c *context, i *instruction, pos int) int {
	return c.fail(vm.StatusInvalidInstruction)
}

func opUndefined(c *context, i *instruction, pos int) int {
	return c.fail(vm.StatusUndefinedInstruction)
}

// ------------------ Block Accounting ------------------

// opBeginBlock performs the combined gas and stack check of one basic
// block. It debits the block's full static gas cost; dynamic-cost
// instructions inside the block later correct this pre-debit.
func opBeginBlock(c *context, i *instruction, pos int) int {
	block := &i.arg.block
	c.gasLeft -= block.gasCost
	if c.gasLeft < 0 {
		return c.fail(vm.StatusOutOfGas)
	}
	if c.stack.len() < block.stackReq {
		return c.fail(vm.StatusStackUnderflow)
	}
	if c.stack.len()+block.stackMaxGrowth > maxStackSize {
		return c.fail(vm.StatusStackOverflow)
	}
	c.currentBlockCost = block.gasCost
	return pos + 1
}

// ------------------ Arithmetic ------------------

func opAdd(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
	return pos + 1
}

func opMul(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
	return pos + 1
}

func opSub(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
	return pos + 1
}

func opDiv(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
	return pos + 1
}

func opSDiv(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SDiv(a, b)
	return pos + 1
}

func opMod(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
	return pos + 1
}

func opSMod(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SMod(a, b)
	return pos + 1
}

func opAddMod(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.pop()
	m := c.stack.peek()
	m.AddMod(a, b, m)
	return pos + 1
}

func opMulMod(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.pop()
	m := c.stack.peek()
	m.MulMod(a, b, m)
	return pos + 1
}

func opExp(c *context, i *instruction, pos int) int {
	base := c.stack.pop()
	exponent := c.stack.peek()
	expBytes := (exponent.BitLen() + 7) / 8
	if err := c.useGas(vm.Gas(50 * expBytes)); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	exponent.Exp(base, exponent)
	return pos + 1
}

func opSignExtend(c *context, i *instruction, pos int) int {
	back := c.stack.pop()
	num := c.stack.peek()
	num.ExtendSign(num, back)
	return pos + 1
}

// ------------------ Comparison & Bitwise ------------------

func opLt(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Lt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return pos + 1
}

func opGt(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Gt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return pos + 1
}

func opSlt(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Slt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return pos + 1
}

func opSgt(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Sgt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return pos + 1
}

func opEq(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Eq(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return pos + 1
}

func opIsZero(c *context, i *instruction, pos int) int {
	a := c.stack.peek()
	if a.IsZero() {
		a.SetOne()
	} else {
		a.Clear()
	}
	return pos + 1
}

func opAnd(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
	return pos + 1
}

func opOr(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
	return pos + 1
}

func opXor(c *context, i *instruction, pos int) int {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Xor(a, b)
	return pos + 1
}

func opNot(c *context, i *instruction, pos int) int {
	a := c.stack.peek()
	a.Not(a)
	return pos + 1
}

func opByte(c *context, i *instruction, pos int) int {
	n := c.stack.pop()
	v := c.stack.peek()
	v.Byte(n)
	return pos + 1
}

func opShl(c *context, i *instruction, pos int) int {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return pos + 1
}

func opShr(c *context, i *instruction, pos int) int {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return pos + 1
}

func opSar(c *context, i *instruction, pos int) int {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return pos + 1
	}
	value.SRsh(value, uint(shift.Uint64()))
	return pos + 1
}

// ------------------ Hashing ------------------

func opKeccak256(c *context, i *instruction, pos int) int {
	offsetU := c.stack.pop()
	sizeU := c.stack.peek()
	offset, size, err := checkOffsetAndSize(offsetU, sizeU)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	data, err := c.memory.getSlice(offset, size, c)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.useGas(vm.Gas(6 * vm.SizeInWords(size))); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	hash := keccak256(data)
	sizeU.SetBytes32(hash[:])
	return pos + 1
}

// ------------------ Execution Context ------------------

func opAddress(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes20(c.params.Recipient[:])
	return pos + 1
}

func opBalance(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	addr := vm.Address(top.Bytes20())
	if c.revision >= vm.R09_Berlin {
		if err := c.useGas(accountAccessColdSurcharge(c.host.AccessAccount(addr))); err != nil {
			return c.fail(vm.StatusOutOfGas)
		}
	}
	balance := c.host.GetBalance(addr)
	top.SetBytes32(balance[:])
	return pos + 1
}

func opOrigin(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes20(c.params.Origin[:])
	return pos + 1
}

func opCaller(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes20(c.params.Sender[:])
	return pos + 1
}

func opCallValue(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes32(c.params.Value[:])
	return pos + 1
}

func opCallDataLoad(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	if !top.IsUint64() {
		top.Clear()
		return pos + 1
	}
	offset := top.Uint64()
	var buffer [32]byte
	if offset < uint64(len(c.params.Input)) {
		copy(buffer[:], c.params.Input[offset:])
	}
	top.SetBytes32(buffer[:])
	return pos + 1
}

func opCallDataSize(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(uint64(len(c.params.Input)))
	return pos + 1
}

func opCallDataCopy(c *context, i *instruction, pos int) int {
	if err := copyDataToMemory(c, c.params.Input); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	return pos + 1
}

func opCodeSize(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(uint64(len(c.params.Code)))
	return pos + 1
}

func opCodeCopy(c *context, i *instruction, pos int) int {
	if err := copyDataToMemory(c, c.params.Code); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	return pos + 1
}

func opGasPrice(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes32(c.params.GasPrice[:])
	return pos + 1
}

func opExtCodeSize(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	addr := vm.Address(top.Bytes20())
	if c.revision >= vm.R09_Berlin {
		if err := c.useGas(accountAccessColdSurcharge(c.host.AccessAccount(addr))); err != nil {
			return c.fail(vm.StatusOutOfGas)
		}
	}
	top.SetUint64(uint64(c.host.GetCodeSize(addr)))
	return pos + 1
}

func opExtCodeCopy(c *context, i *instruction, pos int) int {
	addr := vm.Address(c.stack.pop().Bytes20())
	if c.revision >= vm.R09_Berlin {
		if err := c.useGas(accountAccessColdSurcharge(c.host.AccessAccount(addr))); err != nil {
			return c.fail(vm.StatusOutOfGas)
		}
	}
	if err := copyDataToMemory(c, c.host.GetCode(addr)); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	return pos + 1
}

func opExtCodeHash(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	addr := vm.Address(top.Bytes20())
	if c.revision >= vm.R09_Berlin {
		if err := c.useGas(accountAccessColdSurcharge(c.host.AccessAccount(addr))); err != nil {
			return c.fail(vm.StatusOutOfGas)
		}
	}
	hash := c.host.GetCodeHash(addr)
	top.SetBytes32(hash[:])
	return pos + 1
}

func opReturnDataSize(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(uint64(len(c.returnData)))
	return pos + 1
}

func opReturnDataCopy(c *context, i *instruction, pos int) int {
	destU := c.stack.pop()
	offsetU := c.stack.pop()
	sizeU := c.stack.pop()

	// Reads beyond the return data are a fault, unlike the zero-padded
	// reads of the other copy instructions.
	if !offsetU.IsUint64() || !sizeU.IsUint64() {
		return c.fail(vm.StatusOutOfGas)
	}
	offset, size := offsetU.Uint64(), sizeU.Uint64()
	end := offset + size
	if end < offset || end > uint64(len(c.returnData)) {
		return c.fail(vm.StatusOutOfGas)
	}

	dest, _, err := checkOffsetAndSize(destU, sizeU)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.useGas(vm.Gas(3 * vm.SizeInWords(size))); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.memory.set(dest, c.returnData[offset:end], c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	return pos + 1
}

// copyDataToMemory implements the shared semantics of the copy
// instructions: pop destination, source offset and size, charge the copy
// fee, and write the requested range into memory, zero-padding reads
// beyond the end of the source.
func copyDataToMemory(c *context, data []byte) error {
	destU := c.stack.pop()
	offsetU := c.stack.pop()
	sizeU := c.stack.pop()

	dest, size, err := checkOffsetAndSize(destU, sizeU)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	offset, overflow := offsetU.Uint64WithOverflow()
	if overflow {
		offset = math.MaxUint64
	}
	if err := c.useGas(vm.Gas(3 * vm.SizeInWords(size))); err != nil {
		return err
	}
	target, err := c.memory.getSlice(dest, size, c)
	if err != nil {
		return err
	}
	var src []byte
	if offset < uint64(len(data)) {
		src = data[offset:]
	}
	n := copy(target, src)
	for i := n; i < len(target); i++ {
		target[i] = 0
	}
	return nil
}

// ------------------ Block Context ------------------

func opBlockHash(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	current := uint64(c.params.BlockNumber)
	if top.IsUint64() {
		number := top.Uint64()
		if number < current && number+256 >= current {
			hash := c.host.GetBlockHash(int64(number))
			top.SetBytes32(hash[:])
			return pos + 1
		}
	}
	top.Clear()
	return pos + 1
}

func opCoinbase(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes20(c.params.Coinbase[:])
	return pos + 1
}

func opTimestamp(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(uint64(c.params.Timestamp))
	return pos + 1
}

func opNumber(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(uint64(c.params.BlockNumber))
	return pos + 1
}

func opPrevRandao(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes32(c.params.PrevRandao[:])
	return pos + 1
}

func opGasLimit(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(uint64(c.params.GasLimit))
	return pos + 1
}

func opChainId(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes32(c.params.ChainID[:])
	return pos + 1
}

func opSelfBalance(c *context, i *instruction, pos int) int {
	balance := c.host.GetBalance(c.params.Recipient)
	c.stack.pushUndefined().SetBytes32(balance[:])
	return pos + 1
}

func opBaseFee(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes32(c.params.BaseFee[:])
	return pos + 1
}

func opBlobHash(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	if top.IsUint64() && top.Uint64() < uint64(len(c.params.BlobHashes)) {
		hash := c.params.BlobHashes[top.Uint64()]
		top.SetBytes32(hash[:])
	} else {
		top.Clear()
	}
	return pos + 1
}

func opBlobBaseFee(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetBytes32(c.params.BlobBaseFee[:])
	return pos + 1
}

// ------------------ Stack, Memory & Storage ------------------

func opPop(c *context, i *instruction, pos int) int {
	c.stack.pop()
	return pos + 1
}

func opPush0(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().Clear()
	return pos + 1
}

func opPushSmall(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(i.arg.smallPushValue)
	return pos + 1
}

func opPushFull(c *context, i *instruction, pos int) int {
	c.stack.push(i.arg.pushValue)
	return pos + 1
}

func opDup(c *context, i *instruction, pos int) int {
	c.stack.dup(int(i.opcode - DUP1))
	return pos + 1
}

func opSwap(c *context, i *instruction, pos int) int {
	c.stack.swap(int(i.opcode-SWAP1) + 1)
	return pos + 1
}

func opMload(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	if !top.IsUint64() {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.memory.readWord(top.Uint64(), top, c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	return pos + 1
}

func opMstore(c *context, i *instruction, pos int) int {
	addr := c.stack.pop()
	value := c.stack.pop()
	if !addr.IsUint64() {
		return c.fail(vm.StatusOutOfGas)
	}
	bytes := value.Bytes32()
	if err := c.memory.set(addr.Uint64(), bytes[:], c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	return pos + 1
}

func opMstore8(c *context, i *instruction, pos int) int {
	addr := c.stack.pop()
	value := c.stack.pop()
	if !addr.IsUint64() {
		return c.fail(vm.StatusOutOfGas)
	}
	target, err := c.memory.getSlice(addr.Uint64(), 1, c)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	target[0] = byte(value.Uint64())
	return pos + 1
}

func opMsize(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(c.memory.length())
	return pos + 1
}

func opMcopy(c *context, i *instruction, pos int) int {
	destU := c.stack.pop()
	srcU := c.stack.pop()
	sizeU := c.stack.pop()
	if sizeU.IsZero() {
		return pos + 1
	}
	if !destU.IsUint64() || !srcU.IsUint64() || !sizeU.IsUint64() {
		return c.fail(vm.StatusOutOfGas)
	}
	dest, src, size := destU.Uint64(), srcU.Uint64(), sizeU.Uint64()
	if err := c.useGas(vm.Gas(3 * vm.SizeInWords(size))); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.memory.expandMemory(src, size, c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.memory.expandMemory(dest, size, c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	copy(c.memory.view(dest, size), c.memory.view(src, size))
	return pos + 1
}

func opSload(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	key := vm.Key(top.Bytes32())
	if c.revision >= vm.R09_Berlin {
		if c.host.AccessStorage(c.params.Recipient, key) == vm.ColdAccess {
			if err := c.useGas(storageAccessColdSurcharge(vm.ColdAccess)); err != nil {
				return c.fail(vm.StatusOutOfGas)
			}
		}
	}
	value := c.host.GetStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
	return pos + 1
}

func opSstore(c *context, i *instruction, pos int) int {
	if c.params.Static {
		return c.fail(vm.StatusStaticModeViolation)
	}

	// The sentry check is made against the true remaining gas, which
	// requires undoing the part of the block's pre-debit not caused by
	// instructions preceding this one.
	correction := c.currentBlockCost - vm.Gas(i.arg.number)
	if c.gasLeft+correction <= SstoreSentryGas {
		return c.fail(vm.StatusOutOfGas)
	}

	key := vm.Key(c.stack.pop().Bytes32())
	value := vm.Word(c.stack.pop().Bytes32())

	var cost vm.Gas
	if c.revision >= vm.R09_Berlin {
		if c.host.AccessStorage(c.params.Recipient, key) == vm.ColdAccess {
			cost += ColdSloadCost
		}
	}
	status := c.host.SetStorage(c.params.Recipient, key, value)
	cost += sstoreDynamicGas(c.revision, status)
	if err := c.useGas(cost); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	c.refund += sstoreRefund(c.revision, status)
	return pos + 1
}

func opTload(c *context, i *instruction, pos int) int {
	top := c.stack.peek()
	key := vm.Key(top.Bytes32())
	value := c.host.GetTransientStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
	return pos + 1
}

func opTstore(c *context, i *instruction, pos int) int {
	if c.params.Static {
		return c.fail(vm.StatusStaticModeViolation)
	}
	key := vm.Key(c.stack.pop().Bytes32())
	value := vm.Word(c.stack.pop().Bytes32())
	c.host.SetTransientStorage(c.params.Recipient, key, value)
	return pos + 1
}

// ------------------ Control Flow ------------------

func opJump(c *context, i *instruction, pos int) int {
	return c.jumpTo(c.stack.pop())
}

func opJumpi(c *context, i *instruction, pos int) int {
	destination := c.stack.pop()
	condition := c.stack.pop()
	if !condition.IsZero() {
		return c.jumpTo(destination)
	}
	// The fall-through edge enters a fresh basic block, so accounting is
	// re-triggered there.
	return pos + 1
}

func (c *context) jumpTo(destination *uint256.Int) int {
	if !destination.IsUint64() {
		return c.fail(vm.StatusBadJumpDestination)
	}
	target := c.analysis.findJumpdest(destination.Uint64())
	if target < 0 {
		return c.fail(vm.StatusBadJumpDestination)
	}
	return target
}

func opPc(c *context, i *instruction, pos int) int {
	c.stack.pushUndefined().SetUint64(uint64(i.arg.number))
	return pos + 1
}

// opGas pushes the true remaining gas, reconstructed from the block's
// pre-debit without charging anything beyond its static share.
func opGas(c *context, i *instruction, pos int) int {
	correction := c.currentBlockCost - vm.Gas(i.arg.number)
	c.stack.pushUndefined().SetUint64(uint64(c.gasLeft + correction))
	return pos + 1
}

// ------------------ Logging ------------------

func opLog(c *context, i *instruction, pos int) int {
	if c.params.Static {
		return c.fail(vm.StatusStaticModeViolation)
	}
	numTopics := int(i.opcode - LOG0)
	offsetU := c.stack.pop()
	sizeU := c.stack.pop()
	topics := make([]vm.Hash, numTopics)
	for t := 0; t < numTopics; t++ {
		topics[t] = vm.Hash(c.stack.pop().Bytes32())
	}
	offset, size, err := checkOffsetAndSize(offsetU, sizeU)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	data, err := c.memory.getSlice(offset, size, c)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.useGas(vm.Gas(8 * size)); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	// The memory slice is volatile; the log must carry its own copy.
	logData := make([]byte, len(data))
	copy(logData, data)
	c.host.EmitLog(vm.Log{
		Address: c.params.Recipient,
		Topics:  topics,
		Data:    logData,
	})
	return pos + 1
}

// ------------------ Calls & Creations ------------------

func opCall(c *context, i *instruction, pos int) int {
	kind := vm.Call
	switch i.opcode {
	case CALLCODE:
		kind = vm.CallCode
	case DELEGATECALL:
		kind = vm.DelegateCall
	case STATICCALL:
		kind = vm.StaticCall
	}

	requestedGas := c.stack.pop()
	addr := vm.Address(c.stack.pop().Bytes20())
	var value vm.Value
	hasValue := false
	if kind == vm.Call || kind == vm.CallCode {
		v := c.stack.pop()
		hasValue = !v.IsZero()
		value = vm.ValueFromUint256(v)
	}
	inOffsetU, inSizeU := c.stack.pop(), c.stack.pop()
	outOffsetU, outSizeU := c.stack.pop(), c.stack.pop()

	if kind == vm.Call && hasValue && c.params.Static {
		return c.fail(vm.StatusStaticModeViolation)
	}

	inOffset, inSize, err := checkOffsetAndSize(inOffsetU, inSizeU)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	outOffset, outSize, err := checkOffsetAndSize(outOffsetU, outSizeU)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.memory.expandMemory(inOffset, inSize, c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.memory.expandMemory(outOffset, outSize, c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}

	// Undo the share of the block's pre-debit not earned by preceding
	// instructions, so the forwarding rule sees the true remaining gas.
	correction := c.currentBlockCost - vm.Gas(i.arg.number)
	c.gasLeft += correction

	c.returnData = nil

	var cost vm.Gas
	if c.revision >= vm.R09_Berlin {
		cost += accountAccessColdSurcharge(c.host.AccessAccount(addr))
	}
	if hasValue {
		cost += CallValueTransferGas
	}
	if kind == vm.Call && hasValue && !c.host.AccountExists(addr) {
		cost += CallNewAccountGas
	}
	if err := c.useGas(cost); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}

	gas := callGas(c.gasLeft, requestedGas)

	if c.params.Depth >= maxCallDepth ||
		(hasValue && value.Cmp(c.host.GetBalance(c.params.Recipient)) > 0) {
		// The call fails without being executed; only the costs charged
		// so far are kept.
		c.stack.pushUndefined().Clear()
		c.gasLeft -= correction
		if c.gasLeft < 0 {
			return c.fail(vm.StatusOutOfGas)
		}
		return pos + 1
	}

	if err := c.useGas(gas); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if hasValue {
		gas += CallStipend
	}

	// A frame running in static mode passes its staticness on to every
	// nested frame, so a plain CALL issued from it must reach the host as
	// a static call.
	if c.params.Static && kind == vm.Call {
		kind = vm.StaticCall
	}

	callParams := vm.CallParameters{
		Sender:      c.params.Recipient,
		Value:       value,
		Input:       c.memory.view(inOffset, inSize),
		Gas:         gas,
		CodeAddress: addr,
	}
	switch kind {
	case vm.Call, vm.StaticCall:
		callParams.Recipient = addr
	case vm.CallCode:
		callParams.Recipient = c.params.Recipient
	case vm.DelegateCall:
		callParams.Recipient = c.params.Recipient
		callParams.Sender = c.params.Sender
		callParams.Value = c.params.Value
	}

	result, err := c.host.Call(kind, callParams)
	if err != nil {
		return c.fail(vm.StatusInternalError)
	}
	if result.Status != vm.StatusSuccess && result.Status != vm.StatusRevert {
		// A fault of the nested frame consumes all forwarded gas and is
		// propagated unchanged.
		return c.fail(result.Status)
	}

	c.returnData = result.Output
	if n := uint64(len(result.Output)); n > 0 && outSize > 0 {
		if n > outSize {
			n = outSize
		}
		copy(c.memory.view(outOffset, n), result.Output[:n])
	}
	c.gasLeft += result.GasLeft
	if result.Status == vm.StatusSuccess {
		c.refund += result.GasRefund
		c.stack.pushUndefined().SetOne()
	} else {
		c.stack.pushUndefined().Clear()
	}

	c.gasLeft -= correction
	if c.gasLeft < 0 {
		return c.fail(vm.StatusOutOfGas)
	}
	return pos + 1
}

func opCreate(c *context, i *instruction, pos int) int {
	if c.params.Static {
		return c.fail(vm.StatusStaticModeViolation)
	}
	kind := vm.Create
	if i.opcode == CREATE2 {
		kind = vm.Create2
	}

	value := vm.ValueFromUint256(c.stack.pop())
	offsetU, sizeU := c.stack.pop(), c.stack.pop()
	var salt vm.Hash
	if kind == vm.Create2 {
		salt = vm.Hash(c.stack.pop().Bytes32())
	}

	offset, size, err := checkOffsetAndSize(offsetU, sizeU)
	if err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	if err := c.memory.expandMemory(offset, size, c); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}

	correction := c.currentBlockCost - vm.Gas(i.arg.number)
	c.gasLeft += correction

	c.returnData = nil

	if c.revision >= vm.R12_Shanghai && size > MaxInitCodeSize {
		return c.fail(vm.StatusOutOfGas)
	}
	var initCodeCost vm.Gas
	if c.revision >= vm.R12_Shanghai {
		initCodeCost += InitCodeWordGas * vm.Gas(vm.SizeInWords(size))
	}
	if kind == vm.Create2 {
		// The init code is hashed to derive the new address.
		initCodeCost += vm.Gas(6 * vm.SizeInWords(size))
	}
	if err := c.useGas(initCodeCost); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}

	if c.params.Depth >= maxCallDepth ||
		value.Cmp(c.host.GetBalance(c.params.Recipient)) > 0 {
		c.stack.pushUndefined().Clear()
		c.gasLeft -= correction
		if c.gasLeft < 0 {
			return c.fail(vm.StatusOutOfGas)
		}
		return pos + 1
	}

	gas := c.gasLeft - c.gasLeft/64
	if err := c.useGas(gas); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}

	result, err := c.host.Call(kind, vm.CallParameters{
		Sender: c.params.Recipient,
		Value:  value,
		Input:  c.memory.view(offset, size),
		Gas:    gas,
		Salt:   salt,
	})
	if err != nil {
		return c.fail(vm.StatusInternalError)
	}

	switch result.Status {
	case vm.StatusSuccess:
		c.gasLeft += result.GasLeft
		c.refund += result.GasRefund
		c.stack.pushUndefined().SetBytes20(result.CreatedAddress[:])
	case vm.StatusRevert:
		c.gasLeft += result.GasLeft
		c.returnData = result.Output
		c.stack.pushUndefined().Clear()
	default:
		return c.fail(result.Status)
	}

	c.gasLeft -= correction
	if c.gasLeft < 0 {
		return c.fail(vm.StatusOutOfGas)
	}
	return pos + 1
}

func opSelfDestruct(c *context, i *instruction, pos int) int {
	if c.params.Static {
		return c.fail(vm.StatusStaticModeViolation)
	}
	beneficiary := vm.Address(c.stack.pop().Bytes20())

	var cost vm.Gas
	if c.revision >= vm.R09_Berlin && c.host.AccessAccount(beneficiary) == vm.ColdAccess {
		cost += ColdAccountAccessCost
	}
	balance := c.host.GetBalance(c.params.Recipient)
	if balance != (vm.Value{}) && !c.host.AccountExists(beneficiary) {
		cost += CreateBySelfdestructGas
	}
	if err := c.useGas(cost); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}

	destructed := c.host.SelfDestruct(c.params.Recipient, beneficiary)
	c.refund += selfdestructRefund(destructed, c.revision)
	c.status = vm.StatusSuccess
	return haltPosition
}
