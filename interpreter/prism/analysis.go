// Copyright (c) 2026 Basalt Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file.
//
// Change Date: 2030-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package prism

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/basalt-vm/basalt/vm"
)

// bitvec marks the positions of valid jump destinations in a code blob. A
// position is valid if it holds a JUMPDEST opcode that is not part of the
// immediate data of a preceding PUSH instruction.
type bitvec []byte

func (b bitvec) set(pos int) {
	b[pos/8] |= 1 << (uint(pos) % 8)
}

func (b bitvec) isSet(pos int) bool {
	return b[pos/8]&(1<<(uint(pos)%8)) != 0
}

// analyzeCode performs a single linear pass over the code, skipping push
// immediates, and records every reachable JUMPDEST.
func analyzeCode(code []byte) bitvec {
	bits := make(bitvec, len(code)/8+1)
	for i := 0; i < len(code); {
		op := OpCode(code[i])
		if op == JUMPDEST {
			bits.set(i)
		}
		i += 1 + op.pushDataSize()
	}
	return bits
}

// isValidJumpdest reports whether pos is a valid jump target in the code the
// analysis was derived from.
func (b bitvec) isValidJumpdest(pos uint64) bool {
	return pos < uint64(len(b))*8 && b.isSet(int(pos))
}

// analysisCache caches code analyses across executions, keyed by code hash.
// Contracts are typically executed many times with the same code, so the
// linear analysis pass is amortized away for hot contracts.
type analysisCache struct {
	cache *lru.Cache[vm.Hash, bitvec]
}

func newAnalysisCache(capacity int) *analysisCache {
	cache, err := lru.New[vm.Hash, bitvec](capacity)
	if err != nil {
		panic(err) // only reachable with capacity <= 0
	}
	return &analysisCache{cache: cache}
}

// getAnalysis returns the jump destination analysis for the given code. If a
// hash is provided the result is looked up from and stored in the cache;
// without a hash the code is analyzed on the spot.
func (a *analysisCache) getAnalysis(hash *vm.Hash, code []byte) bitvec {
	if hash == nil {
		return analyzeCode(code)
	}
	if res, found := a.cache.Get(*hash); found {
		return res
	}
	res := analyzeCode(code)
	a.cache.Add(*hash, res)
	return res
}
