// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestStack_PushAndPopPreserveOrder(t *testing.T) {
	s := newStack()
	defer returnStack(s)

	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))
	s.push(uint256.NewInt(3))

	if got := s.len(); got != 3 {
		t.Fatalf("unexpected stack size, wanted 3, got %d", got)
	}
	for _, want := range []uint64{3, 2, 1} {
		if got := s.pop(); !got.Eq(uint256.NewInt(want)) {
			t.Errorf("unexpected value, wanted %d, got %v", want, got)
		}
	}
}

func TestStack_PushUndefinedReservesTopSlot(t *testing.T) {
	s := newStack()
	defer returnStack(s)

	s.pushUndefined().SetUint64(42)
	if got := s.peek(); !got.Eq(uint256.NewInt(42)) {
		t.Errorf("unexpected top value, wanted 42, got %v", got)
	}
}

func TestStack_PushStoresACopy(t *testing.T) {
	s := newStack()
	defer returnStack(s)

	value := uint256.NewInt(7)
	s.push(value)
	value.SetUint64(8)
	if got := s.peek(); !got.Eq(uint256.NewInt(7)) {
		t.Errorf("push must copy its argument, got %v", got)
	}
}

func TestStack_DupCopiesNthElement(t *testing.T) {
	s := newStack()
	defer returnStack(s)

	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))

	s.dup(1) // duplicates the value below the top
	if got := s.peek(); !got.Eq(uint256.NewInt(1)) {
		t.Errorf("unexpected duplicated value, wanted 1, got %v", got)
	}
	if got := s.len(); got != 3 {
		t.Errorf("unexpected stack size, wanted 3, got %d", got)
	}
}

func TestStack_SwapExchangesElements(t *testing.T) {
	s := newStack()
	defer returnStack(s)

	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))
	s.push(uint256.NewInt(3))

	s.swap(2)
	if got := s.peek(); !got.Eq(uint256.NewInt(1)) {
		t.Errorf("unexpected top after swap, wanted 1, got %v", got)
	}
	if got := s.peekN(2); !got.Eq(uint256.NewInt(3)) {
		t.Errorf("unexpected bottom after swap, wanted 3, got %v", got)
	}
}

func TestStack_PoolReturnsEmptyStacks(t *testing.T) {
	s := newStack()
	s.push(uint256.NewInt(1))
	returnStack(s)

	s = newStack()
	defer returnStack(s)
	if got := s.len(); got != 0 {
		t.Errorf("recycled stack must be empty, got size %d", got)
	}
}
