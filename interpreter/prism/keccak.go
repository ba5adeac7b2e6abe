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
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/basalt-vm/basalt/vm"
)

// keccakState wraps sha3.state to support Read for obtaining the hash sum
// without the copy performed by Sum.
type keccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

var keccakHasherPool = sync.Pool{
	New: func() any {
		return sha3.NewLegacyKeccak256().(keccakState)
	},
}

// Keccak256 is the default hash function of the engine. Alternative
// implementations can be injected through the interpreter configuration.
func Keccak256(data []byte) vm.Hash {
	hasher := keccakHasherPool.Get().(keccakState)
	defer keccakHasherPool.Put(hasher)
	hasher.Reset()
	hasher.Write(data)
	var res vm.Hash
	hasher.Read(res[:])
	return res
}
