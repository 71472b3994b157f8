// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/holiman/uint256"
)

// maxStackSize is the maximum depth of the VM value stack.
const maxStackSize = 1024

// stack is the 1024-element 256-bit word-wide value stack of the VM. It
// is a fixed-size stack to prevent memory reallocation during execution.
// Boundaries are not checked by the accessors; the begin-block check of
// the enclosing basic block guarantees that no operation within the block
// can over- or underflow the stack.
//
// Each stack occupies 1024 * 32 bytes = 32KB of memory. Creating and
// destroying stacks for every call frame would incur significant
// overhead, so a reuse pool is provided. Obtain an empty stack with
// newStack() and hand it back with returnStack(s).
//
// The stack is not thread-safe. newStack() and returnStack() are.
type stack struct {
	data         [maxStackSize]uint256.Int
	stackPointer int
}

// push adds a copy of the given value to the top of the stack.
func (s *stack) push(d *uint256.Int) {
	s.data[s.stackPointer] = *d
	s.stackPointer++
}

// pushUndefined adds a value with undefined content to the top of the
// stack and returns a pointer to it, to be initialized by the caller.
func (s *stack) pushUndefined() *uint256.Int {
	s.stackPointer++
	return &s.data[s.stackPointer-1]
}

// pop removes the top element from the stack and returns a pointer to it.
// The obtained pointer is only valid until the next push operation.
func (s *stack) pop() *uint256.Int {
	s.stackPointer--
	return &s.data[s.stackPointer]
}

// peek returns a pointer to the top element of the stack without removing
// it. The returned pointer is only valid until the next stack operation.
func (s *stack) peek() *uint256.Int {
	return &s.data[s.len()-1]
}

// peekN returns a pointer to the n-th element from the top of the stack
// without removing it. The top element is at index 0.
func (s *stack) peekN(n int) *uint256.Int {
	return &s.data[s.len()-n-1]
}

// len returns the number of elements on the stack.
func (s *stack) len() int {
	return s.stackPointer
}

// swap exchanges the top element with the n-th element below it.
func (s *stack) swap(n int) {
	s.data[s.len()-n-1], s.data[s.len()-1] = s.data[s.len()-1], s.data[s.len()-n-1]
}

// dup duplicates the n-th element from the top and pushes it to the top
// of the stack. The top element is at index 0.
func (s *stack) dup(n int) {
	s.data[s.stackPointer] = s.data[s.stackPointer-n-1]
	s.stackPointer++
}

func (s *stack) String() string {
	b := strings.Builder{}
	for i := 0; i < s.len(); i++ {
		value := s.peekN(i).Bytes32()
		b.WriteString(fmt.Sprintf("    [%4d] 0x%x\n", s.len()-i-1, value))
	}
	return b.String()
}

// ------------------ Stack Pool ------------------

var stackPool = sync.Pool{
	New: func() any {
		return &stack{}
	},
}

// newStack returns an empty stack instance from the reuse pool.
// This function is thread-safe.
func newStack() *stack {
	return stackPool.Get().(*stack)
}

// returnStack returns the stack to the reuse pool. Any stack may only be
// returned once to avoid concurrent re-use. This is not checked.
// This function is thread-safe.
func returnStack(s *stack) {
	s.stackPointer = 0
	stackPool.Put(s)
}
