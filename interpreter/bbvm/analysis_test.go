// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"testing"

	"github.com/bbvm-labs/bbvm/vm"
	"github.com/holiman/uint256"
)

func TestAnalyzeCode_SingleBlockMetadata(t *testing.T) {
	code := []byte{
		byte(PUSH1), 5,
		byte(PUSH1), 3,
		byte(ADD),
		byte(STOP),
	}
	analysis := analyzeCode(vm.R13_Cancun, code)

	wantOps := []OpCode{BEGINBLOCK, PUSH1, PUSH1, ADD, STOP, STOP}
	if got := len(analysis.instructions); got != len(wantOps) {
		t.Fatalf("unexpected stream length, wanted %d, got %d", len(wantOps), got)
	}
	for i, want := range wantOps {
		if got := analysis.instructions[i].opcode; got != want {
			t.Errorf("unexpected opcode at %d, wanted %v, got %v", i, want, got)
		}
	}

	block := analysis.instructions[0].arg.block
	if got := block.gasCost; got != 9 {
		t.Errorf("unexpected block gas cost, wanted 9, got %d", got)
	}
	if got := block.stackReq; got != 0 {
		t.Errorf("unexpected stack requirement, wanted 0, got %d", got)
	}
	if got := block.stackMaxGrowth; got != 2 {
		t.Errorf("unexpected stack growth, wanted 2, got %d", got)
	}
}

func TestAnalyzeCode_StackRequirementSeesThroughPushes(t *testing.T) {
	// The ADD needs two operands, of which only one is produced inside
	// the block, so one must be present at block entry.
	code := []byte{
		byte(PUSH1), 5,
		byte(ADD),
	}
	analysis := analyzeCode(vm.R13_Cancun, code)
	block := analysis.instructions[0].arg.block
	if got := block.stackReq; got != 1 {
		t.Errorf("unexpected stack requirement, wanted 1, got %d", got)
	}
}

func TestAnalyzeCode_StreamAlwaysEndsInStop(t *testing.T) {
	for _, code := range [][]byte{
		{},
		{byte(PUSH1), 1},
		{byte(ADD)},
		{byte(PUSH1)}, // truncated push
	} {
		analysis := analyzeCode(vm.R13_Cancun, code)
		last := analysis.instructions[len(analysis.instructions)-1]
		if last.opcode != STOP {
			t.Errorf("stream for %x must end in STOP, got %v", code, last.opcode)
		}
	}
}

func TestAnalyzeCode_JumpdestAnchorsItsOwnBlock(t *testing.T) {
	code := []byte{
		byte(PUSH1), 3,
		byte(JUMP),
		byte(JUMPDEST),
		byte(STOP),
	}
	analysis := analyzeCode(vm.R13_Cancun, code)

	target := analysis.findJumpdest(3)
	if target < 0 {
		t.Fatalf("offset 3 must be a valid jump destination")
	}
	if got := analysis.instructions[target].opcode; got != JUMPDEST {
		t.Errorf("jump target must be the JUMPDEST instruction, got %v", got)
	}
	if got := analysis.instructions[target].arg.block.gasCost; got != 1 {
		t.Errorf("unexpected gas cost of the jump target block, wanted 1, got %d", got)
	}

	// Offsets not holding a JUMPDEST byte are invalid, including the
	// data byte of the push.
	for _, offset := range []uint64{0, 1, 2, 4, 5, 1 << 40} {
		if got := analysis.findJumpdest(offset); got != -1 {
			t.Errorf("offset %d must not be a jump destination, got %d", offset, got)
		}
	}
}

func TestAnalyzeCode_PushDataIsNotAJumpdest(t *testing.T) {
	code := []byte{
		byte(PUSH2), byte(JUMPDEST), byte(JUMPDEST),
		byte(JUMPDEST),
	}
	analysis := analyzeCode(vm.R13_Cancun, code)
	if got := analysis.findJumpdest(1); got != -1 {
		t.Errorf("push data must not be a jump destination, got %d", got)
	}
	if got := analysis.findJumpdest(2); got != -1 {
		t.Errorf("push data must not be a jump destination, got %d", got)
	}
	if got := analysis.findJumpdest(3); got < 0 {
		t.Errorf("offset 3 must be a valid jump destination")
	}
}

func TestAnalyzeCode_JumpiOpensAFreshBlockOnTheFallThroughEdge(t *testing.T) {
	code := []byte{
		byte(PUSH1), 0,
		byte(PUSH1), 6,
		byte(JUMPI),
		byte(STOP),
	}
	analysis := analyzeCode(vm.R13_Cancun, code)

	// Stream: BEGINBLOCK PUSH PUSH JUMPI | BEGINBLOCK STOP | STOP
	if got := analysis.instructions[4].opcode; got != BEGINBLOCK {
		t.Errorf("fall-through of JUMPI must start a new block, got %v", got)
	}
	if got := analysis.instructions[0].arg.block.gasCost; got != 16 {
		t.Errorf("unexpected first block cost, wanted 16, got %d", got)
	}
}

func TestAnalyzeCode_SmallPushValuesAreInlined(t *testing.T) {
	tests := map[string]struct {
		code []byte
		want uint64
	}{
		"push1":           {[]byte{byte(PUSH1), 0xAB}, 0xAB},
		"push2":           {[]byte{byte(PUSH2), 0x12, 0x34}, 0x1234},
		"push8":           {[]byte{byte(PUSH8), 1, 2, 3, 4, 5, 6, 7, 8}, 0x0102030405060708},
		"truncated push1": {[]byte{byte(PUSH1)}, 0},
		// Missing data bytes are zero-padded on the right.
		"truncated push2": {[]byte{byte(PUSH2), 0xAA}, 0xAA00},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			analysis := analyzeCode(vm.R13_Cancun, test.code)
			if got := analysis.instructions[1].arg.smallPushValue; got != test.want {
				t.Errorf("unexpected push value, wanted 0x%x, got 0x%x", test.want, got)
			}
		})
	}
}

func TestAnalyzeCode_FullPushValuesAreDecoded(t *testing.T) {
	code := []byte{byte(PUSH32)}
	data := make([]byte, 32)
	data[0] = 0x01
	data[31] = 0xFF
	code = append(code, data...)

	analysis := analyzeCode(vm.R13_Cancun, code)
	want := new(uint256.Int).SetBytes(data)
	if got := analysis.instructions[1].arg.pushValue; !got.Eq(want) {
		t.Errorf("unexpected push value, wanted %v, got %v", want, got)
	}
}

func TestAnalyzeCode_TruncatedFullPushIsPaddedRight(t *testing.T) {
	code := []byte{byte(PUSH32), 0xAB}
	analysis := analyzeCode(vm.R13_Cancun, code)
	want := new(uint256.Int).Lsh(uint256.NewInt(0xAB), 248)
	if got := analysis.instructions[1].arg.pushValue; !got.Eq(want) {
		t.Errorf("unexpected push value, wanted %v, got %v", want, got)
	}
}

func TestAnalyzeCode_PcInstructionRemembersItsOffset(t *testing.T) {
	code := []byte{
		byte(JUMPDEST),
		byte(PC),
		byte(PUSH1), 1,
		byte(PC),
	}
	analysis := analyzeCode(vm.R13_Cancun, code)
	if got := analysis.instructions[1].arg.number; got != 1 {
		t.Errorf("unexpected PC argument, wanted 1, got %d", got)
	}
	if got := analysis.instructions[3].arg.number; got != 4 {
		t.Errorf("unexpected PC argument, wanted 4, got %d", got)
	}
}

func TestAnalyzeCode_DynamicInstructionsRememberTheirStaticDebit(t *testing.T) {
	code := []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 2,
		byte(SSTORE),
		byte(GAS),
	}
	analysis := analyzeCode(vm.R13_Cancun, code)

	// The argument covers the block's static cost up to and including the
	// instruction itself.
	if got := analysis.instructions[3].arg.number; got != 6 {
		t.Errorf("unexpected SSTORE argument, wanted 6, got %d", got)
	}
	if got := analysis.instructions[4].arg.number; got != 8 {
		t.Errorf("unexpected GAS argument, wanted 8, got %d", got)
	}
}

func TestAnalyzeCode_UndefinedOpCodesDependOnTheRevision(t *testing.T) {
	code := []byte{byte(PUSH0)}

	analysis := analyzeCode(vm.R09_Berlin, code)
	if got := analysis.instructions[1].arg.block; got != (blockInfo{}) {
		// The undefined handler faults on its own; the instruction must
		// not contribute to the block accounting.
		t.Errorf("undefined instructions must not be accounted, got %+v", got)
	}

	analysis = analyzeCode(vm.R12_Shanghai, code)
	if got := analysis.instructions[0].arg.block.gasCost; got != 2 {
		t.Errorf("unexpected block cost, wanted 2, got %d", got)
	}
}

func TestAnalyzer_CachesResultsByCodeHash(t *testing.T) {
	analyzer, err := newAnalyzer(16)
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}
	code := vm.Code{byte(PUSH1), 1}
	hash := vm.Hash{0x01}

	first := analyzer.analyze(vm.R13_Cancun, &hash, code)
	second := analyzer.analyze(vm.R13_Cancun, &hash, code)
	if first != second {
		t.Errorf("expected the cached analysis to be reused")
	}

	// Different revisions must not share an entry.
	other := analyzer.analyze(vm.R07_Istanbul, &hash, code)
	if other == first {
		t.Errorf("analyses of different revisions must be distinct")
	}

	// Without a hash the cache is bypassed.
	uncached := analyzer.analyze(vm.R13_Cancun, nil, code)
	if uncached == first {
		t.Errorf("analyses without code hash must not be cached")
	}
}
