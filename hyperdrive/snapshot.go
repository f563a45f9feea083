// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acurast/acurastvm/mmr"
	"github.com/acurast/acurastvm/types"
)

// Snapshot is an mmr root the target chains can be updated to.
type Snapshot struct {
	Number      uint64      `serialize:"true" json:"number"`
	Root        common.Hash `serialize:"true" json:"root"`
	MMRSize     uint64      `serialize:"true" json:"mmrSize"`
	LeafCount   uint64      `serialize:"true" json:"leafCount"`
	BlockHeight uint64      `serialize:"true" json:"blockHeight"`
}

// OnFinalize takes a snapshot if messages were sent since the last one and
// closes the block in the mmr. It returns the nodes the block appended, to
// be indexed off-chain, or nil if there were none.
func (r *Relay) OnFinalize(block types.BlockContext) (*mmr.BlockInfo, []mmr.Node, error) {
	if err := r.takeSnapshot(block); err != nil {
		return nil, nil, err
	}
	return r.chain.FinishBlock(block.Height, block.Parent)
}

func (r *Relay) takeSnapshot(block types.BlockContext) error {
	tree, err := r.chain.Open()
	if err != nil {
		return err
	}
	if tree.IsEmpty() {
		return nil
	}
	count, err := r.snapshotCount()
	if err != nil {
		return err
	}
	if count > 0 {
		last, _, err := r.getSnapshot(count - 1)
		if err != nil {
			return err
		}
		if last.MMRSize == tree.Size() {
			return nil
		}
	}

	root, err := tree.Root()
	if err != nil {
		return err
	}
	leaves, err := mmr.LeafCount(tree.Size())
	if err != nil {
		return err
	}
	snapshot := &Snapshot{
		Number:      count,
		Root:        root,
		MMRSize:     tree.Size(),
		LeafCount:   leaves,
		BlockHeight: block.Height,
	}
	if err := r.putSnapshot(snapshot); err != nil {
		return err
	}
	r.emit(EventTypeSnapshotTaken,
		uintAttr(AttributeKeySnapshot, snapshot.Number),
		types.NewAttribute(AttributeKeyRoot, root.Hex()),
	)
	r.log.Debug("snapshot taken",
		"number", snapshot.Number,
		"root", root,
		"leaves", leaves,
	)
	return nil
}

// SnapshotRoot returns snapshot [number].
func (r *Relay) SnapshotRoot(number uint64) (*Snapshot, error) {
	snapshot, found, err := r.getSnapshot(number)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrapf(ErrSnapshotNotFound, "snapshot %d", number)
	}
	return snapshot, nil
}

// SnapshotRoots returns the snapshots from [from] on, at most [limit] of
// them.
func (r *Relay) SnapshotRoots(from uint64, limit int) ([]*Snapshot, error) {
	count, err := r.snapshotCount()
	if err != nil {
		return nil, err
	}
	var snapshots []*Snapshot
	for n := from; n < count && len(snapshots) < limit; n++ {
		snapshot, err := r.SnapshotRoot(n)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// NodeReader reads every node of the mmr, leaf data included.
type NodeReader interface {
	mmr.Store
	Node(pos uint64) (mmr.Node, bool, error)
}

// TargetChainProof proves the messages numbered [From, From+len(Messages))
// against the root of a snapshot.
type TargetChainProof struct {
	Snapshot Snapshot   `json:"snapshot"`
	From     uint64     `json:"from"`
	Messages []Message  `json:"messages"`
	Leaves   []mmr.Leaf `json:"leaves"`
	Proof    *mmr.Proof `json:"proof"`
}

// GenerateTargetChainProof proves up to [maxMessages] messages starting at
// [nextMessageNumber] against snapshot [snapshotNumber]. It returns nil when
// the snapshot holds no message from [nextMessageNumber] on.
func (r *Relay) GenerateTargetChainProof(nodes NodeReader, nextMessageNumber, maxMessages, snapshotNumber uint64) (*TargetChainProof, error) {
	snapshot, err := r.SnapshotRoot(snapshotNumber)
	if err != nil {
		return nil, err
	}
	if maxMessages == 0 || nextMessageNumber >= snapshot.LeafCount {
		return nil, nil
	}
	end := snapshot.LeafCount
	if maxMessages < end-nextMessageNumber {
		end = nextMessageNumber + maxMessages
	}

	result := &TargetChainProof{
		Snapshot: *snapshot,
		From:     nextMessageNumber,
	}
	positions := make([]uint64, 0, end-nextMessageNumber)
	for i := nextMessageNumber; i < end; i++ {
		pos, err := mmr.LeafIndexToPos(i)
		if err != nil {
			return nil, err
		}
		node, ok, err := nodes.Node(pos)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errorsmod.Wrapf(mmr.ErrInconsistentStore, "leaf %d", i)
		}
		msg, err := ParseMessage(node.Data)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
		result.Messages = append(result.Messages, msg)
		result.Leaves = append(result.Leaves, mmr.Leaf{Pos: pos, Hash: node.Hash})
	}

	result.Proof, err = mmr.New(snapshot.MMRSize, nodes).GenProof(positions)
	if err != nil {
		return nil, err
	}
	return result, nil
}
