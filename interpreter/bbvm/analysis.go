// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"math"
	"sort"

	"github.com/bbvm-labs/bbvm/vm"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
)

// codeAnalysis is the immutable result of analyzing one byte code for one
// revision: the executable instruction stream and the jump-destination
// table mapping valid code offsets to instruction positions.
type codeAnalysis struct {
	instructions []instruction

	// jumpdestOffsets lists the code offsets of all JUMPDEST bytes in
	// ascending order; jumpdestTargets holds the position of the
	// corresponding begin-block instruction in the stream.
	jumpdestOffsets []int32
	jumpdestTargets []int32
}

// findJumpdest maps a code offset to the position of the begin-block
// instruction anchored at it, or -1 if the offset is not a valid jump
// destination.
func (a *codeAnalysis) findJumpdest(offset uint64) int {
	if offset > math.MaxInt32 {
		return -1
	}
	n := len(a.jumpdestOffsets)
	i := sort.Search(n, func(i int) bool {
		return a.jumpdestOffsets[i] >= int32(offset)
	})
	if i < n && a.jumpdestOffsets[i] == int32(offset) {
		return int(a.jumpdestTargets[i])
	}
	return -1
}

// blockBuilder accumulates the gas and stack metadata of the basic block
// currently being analyzed.
type blockBuilder struct {
	beginIndex     int
	gasCost        vm.Gas
	stackReq       int
	stackChange    int
	stackMaxGrowth int
}

func (b *blockBuilder) info() blockInfo {
	return blockInfo{
		gasCost:        b.gasCost,
		stackReq:       b.stackReq,
		stackMaxGrowth: b.stackMaxGrowth,
	}
}

// analyzeCode partitions the given byte code into basic blocks and
// produces the instruction stream executed by the interpreter. Every
// block starts with a begin-block instruction carrying the block's
// precomputed gas cost and stack shape; JUMPDEST bytes double as the
// begin-block instruction of the block they open. The stream always ends
// in an explicit STOP.
func analyzeCode(revision vm.Revision, code vm.Code) *codeAnalysis {
	tbl := getOpTable(revision)
	res := &codeAnalysis{
		instructions: make([]instruction, 0, len(code)+2),
	}

	var block blockBuilder
	blockOpen := false
	closeBlock := func() {
		if blockOpen {
			res.instructions[block.beginIndex].arg.block = block.info()
			blockOpen = false
		}
	}

	for pc := 0; pc < len(code); {
		op := OpCode(code[pc])
		entry := &tbl[op]

		if op == JUMPDEST {
			// A JUMPDEST always opens a new block and serves as its
			// begin-block instruction.
			closeBlock()
			res.jumpdestOffsets = append(res.jumpdestOffsets, int32(pc))
			res.jumpdestTargets = append(res.jumpdestTargets, int32(len(res.instructions)))
			block = blockBuilder{beginIndex: len(res.instructions)}
			blockOpen = true
		} else if !blockOpen {
			// Inject a synthetic begin-block instruction in front of any
			// block not anchored at a JUMPDEST.
			block = blockBuilder{beginIndex: len(res.instructions)}
			blockOpen = true
			res.instructions = append(res.instructions, instruction{
				execute: opBeginBlock,
				opcode:  BEGINBLOCK,
			})
		}

		res.instructions = append(res.instructions, instruction{
			execute: entry.execute,
			opcode:  op,
		})
		instr := &res.instructions[len(res.instructions)-1]

		if req := entry.stackReq - block.stackChange; req > block.stackReq {
			block.stackReq = req
		}
		block.stackChange += entry.stackChange
		if block.stackChange > block.stackMaxGrowth {
			block.stackMaxGrowth = block.stackChange
		}
		block.gasCost += entry.gasCost

		pc++
		switch {
		case PUSH1 <= op && op <= PUSH8:
			// Small push values are inlined into the instruction. Pushes
			// truncated by the end of the code are padded with zeros.
			end := pc + op.pushDataSize()
			if end > len(code) {
				end = len(code)
			}
			var value uint64
			shift := uint((op.pushDataSize() - 1) * 8)
			for ; pc < end; pc++ {
				value |= uint64(code[pc]) << shift
				shift -= 8
			}
			pc = end
			instr.arg.smallPushValue = value

		case PUSH9 <= op && op <= PUSH32:
			size := op.pushDataSize()
			end := pc + size
			if end > len(code) {
				end = len(code)
			}
			var data [32]byte
			copy(data[32-size:], code[pc:end])
			instr.arg.pushValue = new(uint256.Int).SetBytes(data[:])
			pc += size

		case op == PC:
			instr.arg.number = int64(pc - 1)

		case op == GAS || op == SSTORE ||
			op == CALL || op == CALLCODE ||
			op == DELEGATECALL || op == STATICCALL ||
			op == CREATE || op == CREATE2:
			// Dynamic-cost instructions remember the static gas debited
			// for the block up to and including themselves, so their
			// handler can reconstruct the true remaining gas.
			instr.arg.number = int64(block.gasCost)

		case op == JUMP || op == JUMPI || op == STOP ||
			op == RETURN || op == REVERT || op == SELFDESTRUCT:
			// Block terminators; a JUMPI falls through into a fresh
			// block so its checks are re-triggered on both edges.
			closeBlock()
		}
	}
	closeBlock()

	// Terminate the stream so that execution falling off the end of the
	// code halts regularly.
	res.instructions = append(res.instructions, instruction{
		execute: opStop,
		opcode:  STOP,
	})
	return res
}

// analysisCacheKey identifies one analysis result. The same code analyzed
// under different revisions yields different instruction streams.
type analysisCacheKey struct {
	hash     vm.Hash
	revision vm.Revision
}

// analyzer converts byte code into instruction streams, caching results
// for codes identified by their hash. It is thread-safe.
type analyzer struct {
	cache *lru.Cache[analysisCacheKey, *codeAnalysis]
}

func newAnalyzer(cacheCapacity int) (*analyzer, error) {
	cache, err := lru.New[analysisCacheKey, *codeAnalysis](cacheCapacity)
	if err != nil {
		return nil, err
	}
	return &analyzer{cache: cache}, nil
}

// analyze returns the instruction stream for the given code, consulting
// the cache if a code hash is provided.
func (a *analyzer) analyze(revision vm.Revision, codeHash *vm.Hash, code vm.Code) *codeAnalysis {
	if codeHash == nil {
		return analyzeCode(revision, code)
	}
	key := analysisCacheKey{hash: *codeHash, revision: revision}
	if res, found := a.cache.Get(key); found {
		return res
	}
	res := analyzeCode(revision, code)
	a.cache.Add(key, res)
	return res
}
