// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stack

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/snow/engine/common"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

var errInvalid = errors.New("invalid block")

type testBlock struct {
	id     ids.ID
	parent ids.ID
	height uint64
	bytes  []byte
}

func newTestBlock(parent ids.ID, height uint64, salt uint64) *testBlock {
	bytes := make([]byte, 0, 48)
	bytes = append(bytes, parent[:]...)
	bytes = binary.BigEndian.AppendUint64(bytes, height)
	bytes = binary.BigEndian.AppendUint64(bytes, salt)
	return &testBlock{
		id:     hashing.ComputeHash256Array(bytes),
		parent: parent,
		height: height,
		bytes:  bytes,
	}
}

func (b *testBlock) ID() ids.ID { return b.id }
func (b *testBlock) Parent() ids.ID { return b.parent }
func (b *testBlock) Bytes() []byte { return b.bytes }
func (b *testBlock) Height() uint64 { return b.height }
func (b *testBlock) Timestamp() time.Time { return time.UnixMilli(int64(b.height)) }

// testBackend accepts every block except those in invalid.
type testBackend struct {
	lock     sync.Mutex
	salt     uint64
	invalid  map[ids.ID]bool
	accepted map[ids.ID]*testBlock
	heights  map[uint64]ids.ID
	last     *testBlock
	rejected []ids.ID
	gets     int
}

func newTestBackend() *testBackend {
	genesis := newTestBlock(ids.Empty, 0, 0)
	return &testBackend{
		invalid:  make(map[ids.ID]bool),
		accepted: map[ids.ID]*testBlock{genesis.id: genesis},
		heights:  map[uint64]ids.ID{0: genesis.id},
		last:     genesis,
	}
}

func (b *testBackend) LastAccepted(context.Context) (ids.ID, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.last.id, nil
}

func (b *testBackend) lastHeight() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.last.height
}

func (b *testBackend) GetBlockIDAtHeight(_ context.Context, height uint64) (ids.ID, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	blkID, ok := b.heights[height]
	if !ok {
		return ids.Empty, database.ErrNotFound
	}
	return blkID, nil
}

func (b *testBackend) GetBlock(_ context.Context, blkID ids.ID) (*testBlock, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.gets++
	blk, ok := b.accepted[blkID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return blk, nil
}

func (*testBackend) ParseBlock(_ context.Context, bytes []byte) (*testBlock, error) {
	if len(bytes) != 48 {
		return nil, errInvalid
	}
	parent, err := ids.ToID(bytes[:32])
	if err != nil {
		return nil, err
	}
	return newTestBlock(
		parent,
		binary.BigEndian.Uint64(bytes[32:40]),
		binary.BigEndian.Uint64(bytes[40:]),
	), nil
}

func (b *testBackend) BuildBlock(_ context.Context, parent *testBlock) (*testBlock, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.salt++
	return newTestBlock(parent.id, parent.height+1, b.salt), nil
}

func (b *testBackend) Verify(_ context.Context, parent *testBlock, block *testBlock) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.invalid[block.id] || block.height != parent.height+1 {
		return errInvalid
	}
	return nil
}

func (b *testBackend) Accept(_ context.Context, block *testBlock) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.accepted[block.id] = block
	b.heights[block.height] = block.id
	b.last = block
	return nil
}

func (b *testBackend) Reject(_ context.Context, block *testBlock) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.rejected = append(b.rejected, block.id)
	return nil
}

func newTestCache(t *testing.T) (*BlockCache[*testBlock], *testBackend) {
	backend := newTestBackend()
	bc, err := NewBlockCache[*testBlock](backend, backend.last, DefaultBlockCacheConfig, "test", prometheus.NewRegistry())
	require.NoError(t, err)
	return bc, backend
}

func buildVerified(t *testing.T, bc *BlockCache[*testBlock]) *Block[*testBlock] {
	blk, err := bc.BuildBlock(context.Background())
	require.NoError(t, err)
	require.NoError(t, blk.Verify(context.Background()))
	return blk.(*Block[*testBlock])
}

func TestProduce(t *testing.T) {
	require := require.New(t)
	bc, backend := newTestCache(t)
	producer := NewProducer(bc)

	for height := uint64(1); height <= 3; height++ {
		blk, err := producer.Produce(context.Background())
		require.NoError(err)
		require.Equal(height, blk.Height())
		require.Equal(choices.Accepted, blk.Status())

		lastAccepted, err := bc.LastAccepted(context.Background())
		require.NoError(err)
		require.Equal(blk.ID(), lastAccepted)
		require.Equal(blk.ID(), bc.Preferred().ID())
	}
	require.Equal(uint64(3), backend.lastHeight())
	require.Zero(bc.Processing())
}

func TestProduceInvalidBlock(t *testing.T) {
	require := require.New(t)
	bc, backend := newTestCache(t)

	// the next salt is 1
	invalid := newTestBlock(backend.last.id, 1, 1)
	backend.invalid[invalid.id] = true

	_, err := NewProducer(bc).Produce(context.Background())
	require.ErrorIs(err, errInvalid)
	require.Zero(bc.Processing())
	require.Zero(backend.lastHeight())

	blk, err := bc.GetBlock(context.Background(), invalid.id)
	require.NoError(err)
	require.Equal(choices.Processing, blk.Status())
}

func TestParseBlockIsCached(t *testing.T) {
	require := require.New(t)
	bc, _ := newTestCache(t)

	built, err := bc.BuildBlock(context.Background())
	require.NoError(err)
	parsed, err := bc.ParseBlock(context.Background(), built.Bytes())
	require.NoError(err)
	require.Same(built, parsed)

	require.NoError(parsed.Verify(context.Background()))
	require.NoError(built.Verify(context.Background()))
	require.Equal(1, bc.Processing())

	// a flushed cache still knows the blocks in consensus
	bc.Flush()
	parsed, err = bc.ParseBlock(context.Background(), built.Bytes())
	require.NoError(err)
	require.Same(built, parsed)

	_, err = bc.ParseBlock(context.Background(), []byte{1})
	require.ErrorIs(err, errInvalid)
}

func TestMissingBlocksAreCached(t *testing.T) {
	require := require.New(t)
	bc, backend := newTestCache(t)

	unknown := ids.GenerateTestID()
	_, err := bc.GetBlock(context.Background(), unknown)
	require.ErrorIs(err, database.ErrNotFound)
	_, err = bc.GetBlock(context.Background(), unknown)
	require.ErrorIs(err, database.ErrNotFound)
	require.Equal(1, backend.gets)
}

func TestAcceptRequiresAcceptedParent(t *testing.T) {
	require := require.New(t)
	bc, _ := newTestCache(t)

	parent := buildVerified(t, bc)
	require.NoError(bc.SetPreference(context.Background(), parent.ID()))
	child := buildVerified(t, bc)
	require.Equal(parent.ID(), child.Parent())
	require.Equal(2, bc.Processing())

	require.ErrorIs(child.Accept(context.Background()), errParentNotAccepted)
	require.NoError(parent.Accept(context.Background()))
	require.NoError(child.Accept(context.Background()))
	require.Equal(child.ID(), bc.LastAcceptedBlock().ID())
}

func TestRejectResetsPreference(t *testing.T) {
	require := require.New(t)
	bc, backend := newTestCache(t)
	genesisID := bc.LastAcceptedBlock().ID()

	rejected := buildVerified(t, bc)
	require.NoError(bc.SetPreference(context.Background(), rejected.ID()))
	require.NoError(rejected.Reject(context.Background()))
	require.Equal(choices.Rejected, rejected.Status())
	require.Equal([]ids.ID{rejected.ID()}, backend.rejected)
	require.Equal(genesisID, bc.Preferred().ID())
	require.Error(rejected.Verify(context.Background()))

	orphan := newTestBlock(rejected.ID(), 2, 100)
	blk, err := bc.ParseBlock(context.Background(), orphan.bytes)
	require.NoError(err)
	require.Error(blk.Verify(context.Background()))
}

func TestProducerRun(t *testing.T) {
	bc, backend := newTestCache(t)
	toEngine := make(chan common.Message, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewProducer(bc).Run(ctx, toEngine, time.Millisecond)
	}()

	// no block is produced without pending txs
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, backend.lastHeight())

	toEngine <- common.PendingTxs
	require.Eventually(t, func() bool {
		return backend.lastHeight() == 1
	}, time.Second, time.Millisecond)

	cancel()
	<-done
	require.Equal(t, uint64(1), backend.lastHeight())
}
