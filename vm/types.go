// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Address represents a 20-byte account address.
type Address [20]byte

// Key represents a 32-byte storage slot key.
type Key [32]byte

// Word represents an arbitrary 32-byte value, the native type of the
// value stack.
type Word [32]byte

// Hash represents a 32-byte hash.
type Hash [32]byte

// Value represents a 32-byte big-endian monetary amount.
type Value [32]byte

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

func (k Key) String() string {
	return fmt.Sprintf("0x%x", k[:])
}

func (w Word) String() string {
	return fmt.Sprintf("0x%x", w[:])
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

func (v Value) ToBig() *big.Int {
	return new(big.Int).SetBytes(v[:])
}

func (v Value) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes(v[:])
}

func (v Value) String() string {
	return v.ToUint256().String()
}

func (v Value) Cmp(o Value) int {
	return bytes.Compare(v[:], o[:])
}

// NewValue creates a Value from up to 4 uint64 arguments, given in order
// from most significant to least significant, padding leading zeros as
// needed. No argument results in a value of zero.
func NewValue(args ...uint64) (result Value) {
	if len(args) > 4 {
		panic("too many arguments")
	}
	offset := 4 - len(args)
	for i := 0; i < len(args); i++ {
		start := (offset + i) * 8
		binary.BigEndian.PutUint64(result[start:start+8], args[i])
	}
	return
}

// ValueFromUint256 converts a *uint256.Int to a Value. A nil input yields
// a zero value.
func ValueFromUint256(value *uint256.Int) (result Value) {
	if value == nil {
		return result
	}
	return value.Bytes32()
}
