// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Node is a stored mmr node. Data holds the leaf payload and is empty for
// inner nodes.
type Node struct {
	Hash common.Hash `serialize:"true" json:"hash"`
	Data []byte      `serialize:"true" json:"data,omitempty"`
}

// LeafNode hashes [data] into a leaf.
func LeafNode(data []byte) Node {
	return Node{Hash: HashLeaf(data), Data: data}
}

func HashLeaf(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

func Merge(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left[:], right[:])
}

// bagPeaks folds peak hashes from the right: the rightmost peak is merged
// with its left neighbour until one hash remains.
func bagPeaks(peaks []common.Hash) (common.Hash, bool) {
	if len(peaks) == 0 {
		return common.Hash{}, false
	}
	acc := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		acc = Merge(acc, peaks[i])
	}
	return acc, true
}
