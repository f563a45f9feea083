// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Leaf is a leaf hash claimed at a position.
type Leaf struct {
	Pos  uint64      `serialize:"true" json:"pos"`
	Hash common.Hash `serialize:"true" json:"hash"`
}

// Proof is an inclusion proof of a set of leaves in an mmr of MMRSize nodes.
type Proof struct {
	MMRSize uint64        `serialize:"true" json:"mmrSize"`
	Items   []common.Hash `serialize:"true" json:"items"`
}

// VerifyProof reports whether [leaves] are included in the mmr with [root].
func VerifyProof(root common.Hash, leaves []Leaf, proof *Proof) (bool, error) {
	return proof.Verify(root, leaves)
}

func (p *Proof) Verify(root common.Hash, leaves []Leaf) (bool, error) {
	calculated, err := p.CalculateRoot(leaves)
	if err != nil {
		return false, err
	}
	return calculated == root, nil
}

// CalculateRoot recomputes the root implied by [leaves] and the proof items.
func (p *Proof) CalculateRoot(leaves []Leaf) (common.Hash, error) {
	peaks, err := p.peakHashes(leaves)
	if err != nil {
		return common.Hash{}, err
	}
	root, ok := bagPeaks(peaks)
	if !ok {
		return common.Hash{}, ErrCorruptedProof
	}
	return root, nil
}

// proofItems hands out proof items in order.
type proofItems struct {
	items []common.Hash
	next  int
}

func (it *proofItems) pop() (common.Hash, bool) {
	if it.next >= len(it.items) {
		return common.Hash{}, false
	}
	item := it.items[it.next]
	it.next++
	return item, true
}

func (p *Proof) peakHashes(leaves []Leaf) ([]common.Hash, error) {
	for _, leaf := range leaves {
		if PosHeightInTree(leaf.Pos) > 0 {
			return nil, ErrNodeProofsNotSupported
		}
	}
	if p.MMRSize == 1 && len(leaves) == 1 && leaves[0].Pos == 0 {
		return []common.Hash{leaves[0].Hash}, nil
	}

	remaining := append([]Leaf(nil), leaves...)
	sort.SliceStable(remaining, func(i, j int) bool { return remaining[i].Pos < remaining[j].Pos })
	remaining = dedupLeaves(remaining)

	var (
		it     = &proofItems{items: p.Items}
		hashes = make([]common.Hash, 0, len(p.Items)+1)
	)
peaks:
	for _, peak := range GetPeaks(p.MMRSize) {
		n := 0
		for n < len(remaining) && remaining[n].Pos <= peak {
			n++
		}
		under := remaining[:n]
		remaining = remaining[n:]

		switch {
		case len(under) == 1 && under[0].Pos == peak:
			hashes = append(hashes, under[0].Hash)
		case len(under) == 0:
			// either a sibling peak or the bagged peaks on the right
			item, ok := it.pop()
			if !ok {
				break peaks
			}
			hashes = append(hashes, item)
		default:
			root, err := peakRoot(under, peak, it)
			if err != nil {
				return nil, err
			}
			hashes = append(hashes, root)
		}
	}
	if len(remaining) != 0 {
		return nil, ErrCorruptedProof
	}
	if item, ok := it.pop(); ok {
		hashes = append(hashes, item)
	}
	if _, ok := it.pop(); ok {
		return nil, ErrCorruptedProof
	}
	return hashes, nil
}

type queuedHash struct {
	pos    uint64
	hash   common.Hash
	height uint32
}

// peakRoot climbs from [leaves] to the peak at [peakPos], taking missing
// siblings from the proof.
func peakRoot(leaves []Leaf, peakPos uint64, it *proofItems) (common.Hash, error) {
	queue := make([]queuedHash, 0, len(leaves))
	for _, leaf := range leaves {
		queue = append(queue, queuedHash{pos: leaf.Pos, hash: leaf.Hash})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.pos == peakPos {
			if len(queue) == 0 {
				return cur.hash, nil
			}
			return common.Hash{}, ErrCorruptedProof
		}

		sibling, parent := family(cur.pos, cur.height)
		var siblingHash common.Hash
		if len(queue) > 0 && queue[0].pos == sibling {
			siblingHash = queue[0].hash
			queue = queue[1:]
		} else {
			item, ok := it.pop()
			if !ok {
				return common.Hash{}, ErrCorruptedProof
			}
			siblingHash = item
		}

		var parentHash common.Hash
		if isRightChild(cur.pos, cur.height) {
			parentHash = Merge(siblingHash, cur.hash)
		} else {
			parentHash = Merge(cur.hash, siblingHash)
		}
		if parent > peakPos {
			return common.Hash{}, ErrCorruptedProof
		}
		queue = append(queue, queuedHash{pos: parent, hash: parentHash, height: cur.height + 1})
	}
	return common.Hash{}, ErrCorruptedProof
}

func dedupLeaves(sorted []Leaf) []Leaf {
	out := sorted[:0]
	for i, leaf := range sorted {
		if i == 0 || leaf.Pos != sorted[i-1].Pos {
			out = append(out, leaf)
		}
	}
	return out
}
