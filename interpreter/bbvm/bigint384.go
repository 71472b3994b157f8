// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"encoding/binary"
	"math/bits"

	"github.com/bbvm-labs/bbvm/vm"
	"github.com/holiman/uint256"
)

// The 384-bit extension instructions operate on fixed-width numbers laid
// out in memory as six 64-bit little-endian limbs (48 bytes). Operands
// are addressed by four 32-bit offsets packed into the low 16 bytes of a
// single stack word, in little-endian order: modulus, second operand,
// first operand, output.
//
// Operands are expected to be fully reduced (less than the modulus);
// inputs violating this produce unspecified values but never fault.

const num384Bytes = 48

// element384 is a 384-bit unsigned integer in six little-endian limbs.
type element384 [6]uint64

func load384(b []byte) (e element384) {
	for i := range e {
		e[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return
}

func store384(b []byte, e element384) {
	for i := range e {
		binary.LittleEndian.PutUint64(b[i*8:], e[i])
	}
}

// lt384 returns true if a < b.
func lt384(a, b element384) bool {
	for i := 5; i >= 0; i-- {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// addMod384 computes (x + y) mod m for reduced x and y. A single
// conditional subtraction suffices since x + y < 2m.
func addMod384(x, y, m element384) element384 {
	var sum element384
	var carry uint64
	for i := 0; i < 6; i++ {
		sum[i], carry = bits.Add64(x[i], y[i], carry)
	}
	if carry != 0 || !lt384(sum, m) {
		var borrow uint64
		for i := 0; i < 6; i++ {
			sum[i], borrow = bits.Sub64(sum[i], m[i], borrow)
		}
	}
	return sum
}

// subMod384 computes (x - y) mod m for reduced x and y, adding the
// modulus back on borrow.
func subMod384(x, y, m element384) element384 {
	var diff element384
	var borrow uint64
	for i := 0; i < 6; i++ {
		diff[i], borrow = bits.Sub64(x[i], y[i], borrow)
	}
	if borrow != 0 {
		var carry uint64
		for i := 0; i < 6; i++ {
			diff[i], carry = bits.Add64(diff[i], m[i], carry)
		}
	}
	return diff
}

// mulModMont384Generic computes the Montgomery product x * y * R^-1
// mod m with R = 2^384, using the CIOS method with plain limb loops.
// inv must be -m^-1 mod 2^64; m must be odd. Inputs are expected in
// Montgomery form and reduced. mulModMont384 below is the unrolled
// rendition of the same rounds; the two must agree byte for byte on
// every input.
func mulModMont384Generic(x, y, m element384, inv uint64) element384 {
	var t [8]uint64
	for i := 0; i < 6; i++ {
		// t += x * y[i]
		var c uint64
		for j := 0; j < 6; j++ {
			hi, lo := bits.Mul64(x[j], y[i])
			var carry uint64
			lo, carry = bits.Add64(lo, c, 0)
			hi += carry
			t[j], carry = bits.Add64(t[j], lo, 0)
			c = hi + carry
		}
		t[6], c = bits.Add64(t[6], c, 0)
		t[7] = c

		// t += (t[0] * inv mod 2^64) * m, then shift one limb
		u := t[0] * inv
		hi, lo := bits.Mul64(u, m[0])
		var carry uint64
		_, carry = bits.Add64(t[0], lo, 0)
		c = hi + carry
		for j := 1; j < 6; j++ {
			hi, lo = bits.Mul64(u, m[j])
			lo, carry = bits.Add64(lo, c, 0)
			hi += carry
			t[j-1], carry = bits.Add64(t[j], lo, 0)
			c = hi + carry
		}
		t[5], carry = bits.Add64(t[6], c, 0)
		t[6] = t[7] + carry
	}

	res := element384{t[0], t[1], t[2], t[3], t[4], t[5]}
	if t[6] != 0 || !lt384(res, m) {
		var borrow uint64
		for i := 0; i < 6; i++ {
			res[i], borrow = bits.Sub64(res[i], m[i], borrow)
		}
	}
	return res
}

// madd0 returns the high word of a*b + c.
func madd0(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, carry := bits.Add64(lo, c, 0)
	return hi + carry
}

// madd returns the high and low words of a*b + c + d. The sum fits in
// 128 bits for all inputs.
func madd(a, b, c, d uint64) (hi, lo uint64) {
	hi, lo = bits.Mul64(a, b)
	var carry uint64
	lo, carry = bits.Add64(lo, c, 0)
	hi += carry
	lo, carry = bits.Add64(lo, d, 0)
	hi += carry
	return
}

// mulModMont384 is the hot path of the Montgomery product, the CIOS
// rounds of mulModMont384Generic with the limb loops spelled out. Same
// contract: inv = -m^-1 mod 2^64, m odd, operands in Montgomery form
// and reduced.
func mulModMont384(x, y, m element384, inv uint64) element384 {
	var t0, t1, t2, t3, t4, t5, t6, t7 uint64
	var c, carry, u uint64

	// round 0
	c, t0 = madd(x[0], y[0], 0, t0)
	c, t1 = madd(x[1], y[0], c, t1)
	c, t2 = madd(x[2], y[0], c, t2)
	c, t3 = madd(x[3], y[0], c, t3)
	c, t4 = madd(x[4], y[0], c, t4)
	c, t5 = madd(x[5], y[0], c, t5)
	t6, t7 = bits.Add64(t6, c, 0)
	u = t0 * inv
	c = madd0(u, m[0], t0)
	c, t0 = madd(u, m[1], c, t1)
	c, t1 = madd(u, m[2], c, t2)
	c, t2 = madd(u, m[3], c, t3)
	c, t3 = madd(u, m[4], c, t4)
	c, t4 = madd(u, m[5], c, t5)
	t5, carry = bits.Add64(t6, c, 0)
	t6 = t7 + carry

	// round 1
	c, t0 = madd(x[0], y[1], 0, t0)
	c, t1 = madd(x[1], y[1], c, t1)
	c, t2 = madd(x[2], y[1], c, t2)
	c, t3 = madd(x[3], y[1], c, t3)
	c, t4 = madd(x[4], y[1], c, t4)
	c, t5 = madd(x[5], y[1], c, t5)
	t6, t7 = bits.Add64(t6, c, 0)
	u = t0 * inv
	c = madd0(u, m[0], t0)
	c, t0 = madd(u, m[1], c, t1)
	c, t1 = madd(u, m[2], c, t2)
	c, t2 = madd(u, m[3], c, t3)
	c, t3 = madd(u, m[4], c, t4)
	c, t4 = madd(u, m[5], c, t5)
	t5, carry = bits.Add64(t6, c, 0)
	t6 = t7 + carry

	// round 2
	c, t0 = madd(x[0], y[2], 0, t0)
	c, t1 = madd(x[1], y[2], c, t1)
	c, t2 = madd(x[2], y[2], c, t2)
	c, t3 = madd(x[3], y[2], c, t3)
	c, t4 = madd(x[4], y[2], c, t4)
	c, t5 = madd(x[5], y[2], c, t5)
	t6, t7 = bits.Add64(t6, c, 0)
	u = t0 * inv
	c = madd0(u, m[0], t0)
	c, t0 = madd(u, m[1], c, t1)
	c, t1 = madd(u, m[2], c, t2)
	c, t2 = madd(u, m[3], c, t3)
	c, t3 = madd(u, m[4], c, t4)
	c, t4 = madd(u, m[5], c, t5)
	t5, carry = bits.Add64(t6, c, 0)
	t6 = t7 + carry

	// round 3
	c, t0 = madd(x[0], y[3], 0, t0)
	c, t1 = madd(x[1], y[3], c, t1)
	c, t2 = madd(x[2], y[3], c, t2)
	c, t3 = madd(x[3], y[3], c, t3)
	c, t4 = madd(x[4], y[3], c, t4)
	c, t5 = madd(x[5], y[3], c, t5)
	t6, t7 = bits.Add64(t6, c, 0)
	u = t0 * inv
	c = madd0(u, m[0], t0)
	c, t0 = madd(u, m[1], c, t1)
	c, t1 = madd(u, m[2], c, t2)
	c, t2 = madd(u, m[3], c, t3)
	c, t3 = madd(u, m[4], c, t4)
	c, t4 = madd(u, m[5], c, t5)
	t5, carry = bits.Add64(t6, c, 0)
	t6 = t7 + carry

	// round 4
	c, t0 = madd(x[0], y[4], 0, t0)
	c, t1 = madd(x[1], y[4], c, t1)
	c, t2 = madd(x[2], y[4], c, t2)
	c, t3 = madd(x[3], y[4], c, t3)
	c, t4 = madd(x[4], y[4], c, t4)
	c, t5 = madd(x[5], y[4], c, t5)
	t6, t7 = bits.Add64(t6, c, 0)
	u = t0 * inv
	c = madd0(u, m[0], t0)
	c, t0 = madd(u, m[1], c, t1)
	c, t1 = madd(u, m[2], c, t2)
	c, t2 = madd(u, m[3], c, t3)
	c, t3 = madd(u, m[4], c, t4)
	c, t4 = madd(u, m[5], c, t5)
	t5, carry = bits.Add64(t6, c, 0)
	t6 = t7 + carry

	// round 5
	c, t0 = madd(x[0], y[5], 0, t0)
	c, t1 = madd(x[1], y[5], c, t1)
	c, t2 = madd(x[2], y[5], c, t2)
	c, t3 = madd(x[3], y[5], c, t3)
	c, t4 = madd(x[4], y[5], c, t4)
	c, t5 = madd(x[5], y[5], c, t5)
	t6, t7 = bits.Add64(t6, c, 0)
	u = t0 * inv
	c = madd0(u, m[0], t0)
	c, t0 = madd(u, m[1], c, t1)
	c, t1 = madd(u, m[2], c, t2)
	c, t2 = madd(u, m[3], c, t3)
	c, t3 = madd(u, m[4], c, t4)
	c, t4 = madd(u, m[5], c, t5)
	t5, carry = bits.Add64(t6, c, 0)
	t6 = t7 + carry

	res := element384{t0, t1, t2, t3, t4, t5}
	if t6 != 0 || !lt384(res, m) {
		var borrow uint64
		for i := 0; i < 6; i++ {
			res[i], borrow = bits.Sub64(res[i], m[i], borrow)
		}
	}
	return res
}

// unpack384Offsets extracts the four packed operand offsets from a stack
// word. The high 128 bits of the word are ignored.
func unpack384Offsets(w *uint256.Int) (out, x, y, mod uint64) {
	mod = uint64(uint32(w[0]))
	y = w[0] >> 32
	x = uint64(uint32(w[1]))
	out = w[1] >> 32
	return
}

func max4(a, b, c, d uint64) uint64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	if d > m {
		m = d
	}
	return m
}

// expand384Operands makes the operand ranges of a 384-bit instruction
// addressable, charging memory expansion as usual. The window covers
// `window` bytes starting at the largest of the four offsets, which also
// covers every smaller offset.
func (c *context) expand384Operands(out, x, y, mod, window uint64) error {
	return c.memory.expandMemory(max4(out, x, y, mod), window, c)
}

func opAddMod384(c *context, i *instruction, pos int) int {
	out, x, y, mod := unpack384Offsets(c.stack.pop())
	if err := c.expand384Operands(out, x, y, mod, num384Bytes); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	result := addMod384(
		load384(c.memory.view(x, num384Bytes)),
		load384(c.memory.view(y, num384Bytes)),
		load384(c.memory.view(mod, num384Bytes)))
	store384(c.memory.view(out, num384Bytes), result)
	return pos + 1
}

func opSubMod384(c *context, i *instruction, pos int) int {
	out, x, y, mod := unpack384Offsets(c.stack.pop())
	if err := c.expand384Operands(out, x, y, mod, num384Bytes); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	result := subMod384(
		load384(c.memory.view(x, num384Bytes)),
		load384(c.memory.view(y, num384Bytes)),
		load384(c.memory.view(mod, num384Bytes)))
	store384(c.memory.view(out, num384Bytes), result)
	return pos + 1
}

func opMulModMont384(c *context, i *instruction, pos int) int {
	out, x, y, mod := unpack384Offsets(c.stack.pop())
	// The Montgomery inverse is stored in the 8 bytes following the
	// modulus, so the addressable window is 56 bytes.
	if err := c.expand384Operands(out, x, y, mod, num384Bytes+8); err != nil {
		return c.fail(vm.StatusOutOfGas)
	}
	inv := binary.LittleEndian.Uint64(c.memory.view(mod+num384Bytes, 8))
	result := mulModMont384(
		load384(c.memory.view(x, num384Bytes)),
		load384(c.memory.view(y, num384Bytes)),
		load384(c.memory.view(mod, num384Bytes)),
		inv)
	store384(c.memory.view(out, num384Bytes), result)
	return pos + 1
}
