// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestNewValue_PlacesArgumentsBigEndian(t *testing.T) {
	tests := map[string]struct {
		args []uint64
		want Value
	}{
		"empty": {nil, Value{}},
		"one": {[]uint64{1}, Value{
			0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}},
		"two": {[]uint64{1, 2}, Value{
			0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2}},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := NewValue(test.args...); got != test.want {
				t.Errorf("unexpected value, wanted %v, got %v", test.want, got)
			}
		})
	}
}

func TestValue_Uint256RoundTrip(t *testing.T) {
	value := uint256.NewInt(0).Not(uint256.NewInt(12))
	restored := ValueFromUint256(value).ToUint256()
	if value.Cmp(restored) != 0 {
		t.Errorf("round trip failed, wanted %v, got %v", value, restored)
	}
}

func TestValue_CmpOrdersByMagnitude(t *testing.T) {
	small := NewValue(1)
	big := NewValue(1, 0)
	if small.Cmp(big) >= 0 {
		t.Errorf("expected %v < %v", small, big)
	}
	if big.Cmp(small) <= 0 {
		t.Errorf("expected %v > %v", big, small)
	}
	if small.Cmp(small) != 0 {
		t.Errorf("expected %v == %v", small, small)
	}
}
