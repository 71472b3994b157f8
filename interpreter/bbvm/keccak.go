// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package bbvm

import (
	"hash"
	"sync"

	"github.com/bbvm-labs/bbvm/vm"
	"golang.org/x/crypto/sha3"
)

var keccakHasherPool = sync.Pool{
	New: func() any { return sha3.NewLegacyKeccak256() },
}

// keccak256 computes the Keccak-256 hash of the given data. Hasher
// instances are pooled to avoid per-call allocations.
func keccak256(data []byte) (res vm.Hash) {
	hasher := keccakHasherPool.Get().(hash.Hash)
	hasher.Reset()
	hasher.Write(data)
	hasher.Sum(res[0:0])
	keccakHasherPool.Put(hasher)
	return
}
