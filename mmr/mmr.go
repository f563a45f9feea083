// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mmr implements an append-only Merkle Mountain Range over keccak256.
package mmr

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// maxSize bounds the node count so that position arithmetic cannot wrap.
const maxSize = 1 << 63

// Store reads node hashes by position.
type Store interface {
	Get(pos uint64) (common.Hash, bool, error)
}

// Writer persists the nodes appended at [pos] and after.
type Writer interface {
	Append(pos uint64, nodes []Node) error
}

// MMR is a view of a mountain range of a given size. Pushed nodes are
// buffered until Commit.
type MMR struct {
	size      uint64
	committed uint64
	batch     []Node
	store     Store
}

// New returns an mmr of [size] nodes read from [store]. [size] may be lower
// than the store's size to work on a historical version of the range.
func New(size uint64, store Store) *MMR {
	return &MMR{
		size:      size,
		committed: size,
		store:     store,
	}
}

func (m *MMR) Size() uint64 { return m.size }

func (m *MMR) IsEmpty() bool { return m.size == 0 }

func (m *MMR) get(pos uint64) (common.Hash, error) {
	if pos >= m.committed {
		if i := pos - m.committed; i < uint64(len(m.batch)) {
			return m.batch[i].Hash, nil
		}
		return common.Hash{}, ErrInconsistentStore
	}
	hash, ok, err := m.store.Get(pos)
	if err != nil {
		return common.Hash{}, err
	}
	if !ok {
		return common.Hash{}, ErrInconsistentStore
	}
	return hash, nil
}

// Push appends a leaf holding [data] and returns its position.
func (m *MMR) Push(data []byte) (uint64, error) {
	if m.size >= maxSize {
		return 0, ErrPositionOverflow
	}
	leafPos := m.size
	m.batch = append(m.batch, LeafNode(data))

	var (
		pos    = leafPos
		height uint32
	)
	for PosHeightInTree(pos+1) > height {
		pos++
		left := pos - ParentOffset(height)
		right := left + SiblingOffset(height)
		leftHash, err := m.get(left)
		if err != nil {
			return 0, err
		}
		rightHash, err := m.get(right)
		if err != nil {
			return 0, err
		}
		m.batch = append(m.batch, Node{Hash: Merge(leftHash, rightHash)})
		height++
	}
	m.size = pos + 1
	return leafPos, nil
}

// Pending returns the nodes pushed since the last commit along with the
// position of the first one.
func (m *MMR) Pending() (uint64, []Node) {
	return m.committed, m.batch
}

// Commit writes the pending nodes to [w].
func (m *MMR) Commit(w Writer) error {
	if len(m.batch) == 0 {
		return nil
	}
	if err := w.Append(m.committed, m.batch); err != nil {
		return err
	}
	m.committed = m.size
	m.batch = nil
	return nil
}

func (m *MMR) peakHashes() ([]common.Hash, error) {
	peaks := GetPeaks(m.size)
	hashes := make([]common.Hash, 0, len(peaks))
	for _, pos := range peaks {
		hash, err := m.get(pos)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

// Root bags the current peaks.
func (m *MMR) Root() (common.Hash, error) {
	if m.size == 0 {
		return common.Hash{}, ErrGetRootOnEmpty
	}
	peaks, err := m.peakHashes()
	if err != nil {
		return common.Hash{}, err
	}
	root, ok := bagPeaks(peaks)
	if !ok {
		return common.Hash{}, ErrInconsistentStore
	}
	return root, nil
}

// GenProof returns the proof of the leaves at [positions] against the root of
// this size.
func (m *MMR) GenProof(positions []uint64) (*Proof, error) {
	if len(positions) == 0 {
		return nil, ErrGenProofForInvalidLeaves
	}
	if m.size == 1 && len(positions) == 1 && positions[0] == 0 {
		return &Proof{MMRSize: m.size}, nil
	}
	for _, pos := range positions {
		if PosHeightInTree(pos) > 0 {
			return nil, ErrNodeProofsNotSupported
		}
	}
	remaining := sortedUnique(positions)

	var (
		items   []common.Hash
		bagging int
		err     error
	)
	for _, peak := range GetPeaks(m.size) {
		n := 0
		for n < len(remaining) && remaining[n] <= peak {
			n++
		}
		if n == 0 {
			bagging++
		} else {
			bagging = 0
		}
		items, err = m.proveUnderPeak(items, remaining[:n], peak)
		if err != nil {
			return nil, err
		}
		remaining = remaining[n:]
	}
	if len(remaining) != 0 {
		return nil, ErrGenProofForInvalidLeaves
	}

	// peaks right of the last proven leaf collapse into a single item
	if bagging > 1 {
		split := len(items) - bagging
		rhs, _ := bagPeaks(items[split:])
		items = append(items[:split], rhs)
	}
	return &Proof{MMRSize: m.size, Items: items}, nil
}

type queued struct {
	pos    uint64
	height uint32
}

func (m *MMR) proveUnderPeak(items []common.Hash, positions []uint64, peak uint64) ([]common.Hash, error) {
	if len(positions) == 1 && positions[0] == peak {
		return items, nil
	}
	if len(positions) == 0 {
		hash, err := m.get(peak)
		if err != nil {
			return nil, err
		}
		return append(items, hash), nil
	}

	queue := make([]queued, 0, len(positions))
	for _, pos := range positions {
		queue = append(queue, queued{pos: pos})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.pos == peak {
			if len(queue) == 0 {
				break
			}
			return nil, ErrNodeProofsNotSupported
		}

		sibling, parent := family(cur.pos, cur.height)
		if len(queue) > 0 && queue[0].pos == sibling {
			queue = queue[1:]
		} else {
			hash, err := m.get(sibling)
			if err != nil {
				return nil, err
			}
			items = append(items, hash)
		}
		if parent < peak {
			queue = append(queue, queued{pos: parent, height: cur.height + 1})
		}
	}
	return items, nil
}

// family returns the sibling and parent of the node at [pos].
func family(pos uint64, height uint32) (sibling uint64, parent uint64) {
	if PosHeightInTree(pos+1) > height {
		// right child
		return pos - SiblingOffset(height), pos + 1
	}
	return pos + SiblingOffset(height), pos + ParentOffset(height)
}

func isRightChild(pos uint64, height uint32) bool {
	return PosHeightInTree(pos+1) > height
}

func sortedUnique(positions []uint64) []uint64 {
	sorted := append([]uint64(nil), positions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := sorted[:0]
	for i, pos := range sorted {
		if i == 0 || pos != sorted[i-1] {
			out = append(out, pos)
		}
	}
	return out
}
