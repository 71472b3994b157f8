// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"math"

	"github.com/bbvm-labs/bbvm/vm"
	"github.com/holiman/uint256"
)

// Memory is the byte-addressable linear memory of a call frame. It starts
// empty and grows on demand in 32-byte words. Growth is charged to the
// frame's gas; memory never shrinks within a frame.
type Memory struct {
	store             []byte
	currentMemoryCost vm.Gas
}

func NewMemory() *Memory {
	return &Memory{}
}

// maxMemoryExpansionSize bounds the addressable memory. Larger expansion
// requests are priced at MaxInt64 gas and thus can never be paid.
const maxMemoryExpansionSize = 0x1FFFFFFFE0

func toValidMemorySize(size uint64) uint64 {
	fullWordsSize := vm.SizeInWords(size) * 32
	if size != 0 && fullWordsSize < size {
		return math.MaxUint64
	}
	return fullWordsSize
}

func (m *Memory) length() uint64 {
	return uint64(len(m.store))
}

// expansionCosts computes the gas fee for growing the memory to hold
// size bytes. The result is zero if the memory is already large enough.
func (m *Memory) expansionCosts(size uint64) vm.Gas {
	if m.length() >= size {
		return 0
	}
	size = toValidMemorySize(size)
	if size > maxMemoryExpansionSize {
		return vm.Gas(math.MaxInt64)
	}
	words := vm.SizeInWords(size)
	newCosts := vm.Gas((words*words)/512 + 3*words)
	return newCosts - m.currentMemoryCost
}

// expandMemory is the memory-bounds-check primitive: it verifies that the
// byte range [offset, offset+size) is addressable, charging and growing
// the memory as needed. A size of zero never grows the memory, whatever
// the offset. Errors indicate that the frame must halt: errGasUintOverflow
// for unaddressable ranges, errOutOfGas if the growth cannot be paid.
func (m *Memory) expandMemory(offset, size uint64, c *context) error {
	if size == 0 {
		return nil
	}
	needed := offset + size
	if needed < offset { // overflow
		return errGasUintOverflow
	}
	if m.length() < needed {
		fee := m.expansionCosts(needed)
		if err := c.useGas(fee); err != nil {
			return err
		}
		needed = toValidMemorySize(needed)
		m.currentMemoryCost += m.expansionCosts(needed)
		m.store = append(m.store, make([]byte, needed-m.length())...)
	}
	return nil
}

// getSlice obtains a slice of size bytes from the memory at the given
// offset, expanding and charging as needed. The returned slice aliases
// the memory's internal store; it is invalidated by any subsequent
// operation that grows the memory.
func (m *Memory) getSlice(offset, size uint64, c *context) ([]byte, error) {
	if err := m.expandMemory(offset, size, c); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return m.store[offset : offset+size], nil
}

// set copies the given data into memory at the given offset, expanding
// and charging as needed.
func (m *Memory) set(offset uint64, data []byte, c *context) error {
	target, err := m.getSlice(offset, uint64(len(data)), c)
	if err != nil {
		return err
	}
	copy(target, data)
	return nil
}

// readWord reads a 32-byte word from memory at the given offset into the
// provided target, expanding and charging as needed.
func (m *Memory) readWord(offset uint64, target *uint256.Int, c *context) error {
	data, err := m.getSlice(offset, 32, c)
	if err != nil {
		return err
	}
	target.SetBytes32(data)
	return nil
}

// view returns the byte range [offset, offset+size) without any bounds
// check or charging. Callers must have established the range via
// expandMemory beforehand.
func (m *Memory) view(offset, size uint64) []byte {
	return m.store[offset : offset+size]
}
