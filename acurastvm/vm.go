// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package acurastvm packages the runtime as a chain of blocks. Verifying a
// block executes it on top of its parent's pending state. Accepting it
// commits that state and tells the canonicalization gadget the block is
// final.
package acurastvm

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/manager"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow"
	"github.com/ava-labs/avalanchego/snow/engine/common"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/acurast/acurastvm/canonicalizer"
	"github.com/acurast/acurastvm/metrics"
	"github.com/acurast/acurastvm/mmr"
	"github.com/acurast/acurastvm/runtime"
	"github.com/acurast/acurastvm/sdk/stack"
)

var (
	Name    = "acurastvm"
	Version = "v0.1.0"
	ID      = ids.ID{'a', 'c', 'u', 'r', 'a', 's', 't'}
)

var _ stack.VMBackend[*Block] = (*VM)(nil)

var (
	// Database prefixes
	heightPrefix   = []byte("height")
	blockPrefix    = []byte("block")
	receiptPrefix  = []byte("receipt")
	acceptedPrefix = []byte("accepted")
	statePrefix    = []byte("state")
	offchainPrefix = []byte("offchain")
	auxPrefix      = []byte("aux")

	// Database markers
	acceptedKey = []byte("acceptedBlock")
	genesisKey  = []byte("genesis")

	errNoPendingTxs      = errors.New("there is no tx to include in a block")
	errUnknownParent     = errors.New("parent block is neither verified nor last accepted")
	errBlockNotVerified  = errors.New("block was not verified")
	errTimestampTooEarly = errors.New("block's timestamp is earlier than its parent's timestamp")
	errTimestampTooLate  = errors.New("block's timestamp is too far in the future")
	errTooManyTxs        = errors.New("block has too many txs")
	errGenesisMismatch   = errors.New("genesis differs from the one the database was created with")
)

// verifiedBlock is a block in consensus and the state it left behind.
type verifiedBlock struct {
	block    *Block
	state    *versiondb.Database
	receipts []runtime.Receipt
	appended *mmr.BlockInfo
}

type VM struct {
	config Config
	clock  mockable.Clock
	log    log.Logger

	// lock guards the state and the verified blocks.
	lock sync.RWMutex

	vDB           *versiondb.Database
	heightIndex   database.Database
	blockIndex    database.Database
	receiptIndex  database.Database
	acceptedIndex database.Database
	state         database.Database

	offchain *mmr.OffchainStore
	runtime  *runtime.Runtime
	registry *prometheus.Registry
	metrics  *metrics.Collector

	gadget     *canonicalizer.Gadget
	stopGadget context.CancelFunc
	gadgetDone chan struct{}

	mempool      *mempool
	verified     map[ids.ID]*verifiedBlock
	lastAccepted *Block
	chain        *stack.BlockCache[*Block]
}

// Initialize opens the chain stored in [dbManager], creating it from the
// JSON genesis [genesisBytes] if it is empty, and starts the
// canonicalization gadget.
func (vm *VM) Initialize(
	ctx context.Context,
	_ *snow.Context,
	dbManager manager.Manager,
	genesisBytes []byte,
	_ []byte,
	configBytes []byte,
	toEngine chan<- common.Message,
	_ []*common.Fx,
	_ common.AppSender,
) error {
	if vm.log == nil {
		vm.log = log.New("module", Name)
	}
	config, err := ParseConfig(configBytes)
	if err != nil {
		return err
	}
	vm.config = config

	vm.registry = prometheus.NewRegistry()
	vm.metrics, err = metrics.New(Name, vm.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	baseDB := dbManager.Current().Database
	vm.vDB = versiondb.New(baseDB)
	vm.heightIndex = prefixdb.New(heightPrefix, vm.vDB)
	vm.blockIndex = prefixdb.New(blockPrefix, vm.vDB)
	vm.receiptIndex = prefixdb.New(receiptPrefix, vm.vDB)
	vm.acceptedIndex = prefixdb.New(acceptedPrefix, vm.vDB)
	vm.state = prefixdb.New(statePrefix, vm.vDB)

	// off-chain nodes and the gadget's progress bypass block commits
	vm.offchain = mmr.NewOffchainStore(baseDB, offchainPrefix)
	vm.runtime = runtime.New(config.Params, vm.metrics, nil)
	vm.mempool = newMempool(config.MempoolSize, toEngine)
	vm.verified = make(map[ids.ID]*verifiedBlock)

	if err := vm.initGenesis(ctx, genesisBytes); err != nil {
		return err
	}
	lastAcceptedID, err := vm.LastAccepted(ctx)
	if err != nil {
		return err
	}
	vm.lastAccepted, err = vm.GetBlock(ctx, lastAcceptedID)
	if err != nil {
		return err
	}
	vm.chain, err = stack.NewBlockCache[*Block](vm, vm.lastAccepted, config.BlockCache, Name, vm.registry)
	if err != nil {
		return fmt.Errorf("failed to create block cache: %w", err)
	}

	vm.gadget = canonicalizer.New(canonicalizer.Config{
		Aux:      prefixdb.New(auxPrefix, baseDB),
		Offchain: vm.offchain,
		Chain:    &finalizedChain{vm: vm},
		Metrics:  vm.metrics,
	})
	gadgetCtx, cancel := context.WithCancel(context.Background())
	vm.stopGadget = cancel
	vm.gadgetDone = make(chan struct{})
	go func() {
		defer close(vm.gadgetDone)
		vm.gadget.Run(gadgetCtx)
	}()
	// catch up on blocks finalized before a restart
	vm.gadget.Finalized(vm.lastAccepted.Hght)

	vm.log.Info("initialized",
		"version", Version,
		"lastAccepted", lastAcceptedID,
		"height", vm.lastAccepted.Hght,
	)
	return nil
}

func (vm *VM) initGenesis(ctx context.Context, genesisBytes []byte) error {
	genesisHash := hashing.ComputeHash256(genesisBytes)
	stored, err := vm.acceptedIndex.Get(genesisKey)
	switch {
	case err == nil:
		if string(stored) != string(genesisHash) {
			return errGenesisMismatch
		}
		return nil
	case !errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("failed to get genesis hash: %w", err)
	}

	genesis, err := runtime.ParseGenesis(genesisBytes)
	if err != nil {
		return err
	}
	if err := vm.runtime.InitGenesis(vm.state, genesis); err != nil {
		return fmt.Errorf("failed to initialize genesis state: %w", err)
	}
	genesisBlock, err := newBlock(ids.Empty, 0, 0, nil)
	if err != nil {
		return err
	}
	if err := vm.acceptedIndex.Put(genesisKey, genesisHash); err != nil {
		return err
	}
	if err := vm.putAccepted(genesisBlock, nil); err != nil {
		return fmt.Errorf("failed to put genesis block: %w", err)
	}
	vm.log.Info("created genesis", "block", genesisBlock.ID(), "endowments", len(genesis.Endowments))
	return nil
}

func heightKey(height uint64) []byte {
	key := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(key, height)
	return key
}

// putAccepted indexes [block] as the last accepted block and flushes every
// pending write of the VM to disk.
func (vm *VM) putAccepted(block *Block, receipts []runtime.Receipt) error {
	defer vm.vDB.Abort()

	if err := vm.heightIndex.Put(heightKey(block.Hght), block.id[:]); err != nil {
		return fmt.Errorf("failed to put block %s into height index: %w", block.ID(), err)
	}
	if err := vm.blockIndex.Put(block.id[:], block.bytes); err != nil {
		return fmt.Errorf("failed to put block %s into block index: %w", block.ID(), err)
	}
	receiptBytes, err := Codec.Marshal(CodecVersion, &blockReceipts{Receipts: receipts})
	if err != nil {
		return fmt.Errorf("failed to marshal receipts of %s: %w", block.ID(), err)
	}
	if err := vm.receiptIndex.Put(block.id[:], receiptBytes); err != nil {
		return fmt.Errorf("failed to put receipts of %s: %w", block.ID(), err)
	}
	if err := vm.acceptedIndex.Put(acceptedKey, block.id[:]); err != nil {
		return fmt.Errorf("failed to update last accepted block to %s: %w", block.id, err)
	}
	if err := vm.vDB.Commit(); err != nil {
		return fmt.Errorf("failed to commit database accepting block %s: %w", block.id, err)
	}
	return nil
}

func (vm *VM) ParseBlock(_ context.Context, b []byte) (*Block, error) {
	return ParseBlock(b)
}

// BuildBlock fills a block on top of [parent] with mempool txs that execute
// there. Txs that cannot be included, a stale nonce for instance, are
// dropped.
func (vm *VM) BuildBlock(_ context.Context, parent *Block) (*Block, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	parentState, err := vm.stateOf(parent.id)
	if err != nil {
		return nil, err
	}
	timestamp := vm.clock.Time().UnixMilli()
	if timestamp < parent.Tmstmp {
		timestamp = parent.Tmstmp
	}
	probe := &Block{PrntID: parent.id, Hght: parent.Hght + 1, Tmstmp: timestamp}

	trial := versiondb.New(parentState)
	defer trial.Abort()
	var txs []*runtime.Tx
	for len(txs) < vm.config.MaxBlockTxs {
		tx, ok := vm.mempool.Next()
		if !ok {
			break
		}
		if _, err := vm.runtime.Execute(trial, probe.context(), tx); err != nil {
			vm.log.Debug("dropping tx", "tx", tx.ID(), "signer", tx.Signer(), "error", err)
			continue
		}
		txs = append(txs, tx)
	}
	if len(txs) == 0 {
		return nil, errNoPendingTxs
	}
	if vm.mempool.Len() > 0 {
		vm.mempool.notify()
	}
	return newBlock(parent.id, parent.Hght+1, timestamp, txs)
}

// stateOf returns the state after block [blkID], which must be the last
// accepted block or a verified one.
func (vm *VM) stateOf(blkID ids.ID) (database.Database, error) {
	if v, ok := vm.verified[blkID]; ok {
		return v.state, nil
	}
	if blkID == vm.lastAccepted.id {
		return vm.state, nil
	}
	return nil, fmt.Errorf("%w: %s", errUnknownParent, blkID)
}

// Verify executes [block] on top of [parent]. A tx that cannot be included
// fails the whole block. Failing calls do not.
func (vm *VM) Verify(_ context.Context, parent *Block, block *Block) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if _, ok := vm.verified[block.id]; ok {
		return nil
	}
	if expectedHeight := parent.Hght + 1; expectedHeight != block.Hght {
		return fmt.Errorf("expected block to have height %d, but found %d", expectedHeight, block.Hght)
	}
	if block.Tmstmp < parent.Tmstmp {
		return errTimestampTooEarly
	}
	if limit := vm.clock.Time().Add(vm.config.FutureBlockLimit); block.Timestamp().After(limit) {
		return fmt.Errorf("%w: %s after %s", errTimestampTooLate, block.Timestamp(), limit)
	}
	if len(block.txs) > vm.config.MaxBlockTxs {
		return fmt.Errorf("%w: %d", errTooManyTxs, len(block.txs))
	}

	parentState, err := vm.stateOf(parent.id)
	if err != nil {
		return err
	}
	pending := versiondb.New(parentState)
	receipts := make([]runtime.Receipt, 0, len(block.txs))
	for _, tx := range block.txs {
		receipt, err := vm.runtime.Execute(pending, block.context(), tx)
		if err != nil {
			return fmt.Errorf("block %s includes tx %s: %w", block.id, tx.ID(), err)
		}
		receipts = append(receipts, *receipt)
	}

	fin, err := vm.runtime.OnFinalize(pending, block.context())
	if err != nil {
		return err
	}
	if fin.MMR != nil {
		// indexed right away so proofs over pending blocks can be served
		if err := vm.offchain.PutFork(fin.MMR.Fork(), fin.MMR.SizeBefore, fin.Nodes); err != nil {
			return fmt.Errorf("failed to index mmr nodes of %s: %w", block.id, err)
		}
	}

	vm.verified[block.id] = &verifiedBlock{
		block:    block,
		state:    pending,
		receipts: receipts,
		appended: fin.MMR,
	}
	vm.log.Debug("verified block",
		"block", block.id,
		"height", block.Hght,
		"txs", len(block.txs),
	)
	return nil
}

// Accept commits the state of [block], which must extend the last accepted
// block, and hands the block's height to the canonicalization gadget.
func (vm *VM) Accept(_ context.Context, block *Block) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	v, ok := vm.verified[block.id]
	if !ok {
		return fmt.Errorf("%w: %s", errBlockNotVerified, block.id)
	}
	if block.PrntID != vm.lastAccepted.id {
		return fmt.Errorf("%w: %s", errUnknownParent, block.PrntID)
	}
	if err := v.state.Commit(); err != nil {
		return fmt.Errorf("failed to commit state of %s: %w", block.id, err)
	}
	if err := vm.putAccepted(block, v.receipts); err != nil {
		return err
	}
	delete(vm.verified, block.id)
	vm.lastAccepted = block

	// children now build on the accepted state
	for _, child := range vm.verified {
		if child.block.PrntID == block.id {
			if err := child.state.SetDatabase(vm.state); err != nil {
				return err
			}
		}
	}

	vm.gadget.Finalized(block.Hght)
	vm.log.Info("accepted block",
		"block", block.id,
		"height", block.Hght,
		"txs", len(block.txs),
	)
	return nil
}

// Reject drops the state of [block].
func (vm *VM) Reject(_ context.Context, block *Block) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if v, ok := vm.verified[block.id]; ok {
		v.state.Abort()
		delete(vm.verified, block.id)
		if err := vm.dropOrphanedNodes(v); err != nil {
			return err
		}
	}
	vm.log.Info("rejected block", "block", block.id, "height", block.Hght)
	return nil
}

// dropOrphanedNodes removes the off-chain nodes of a rejected block whose
// parent never got accepted. Children of accepted blocks share their parent
// with the canonical block, so the gadget prunes those.
func (vm *VM) dropOrphanedNodes(v *verifiedBlock) error {
	if v.appended == nil {
		return nil
	}
	acceptedParent, err := vm.heightIndex.Get(heightKey(v.block.Hght - 1))
	switch {
	case err == nil && bytes.Equal(acceptedParent, v.block.PrntID[:]):
		return nil
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return err
	}
	return vm.offchain.DropFork(v.appended.Fork(), v.appended.SizeBefore, v.appended.SizeAfter)
}

func (vm *VM) GetBlockIDAtHeight(_ context.Context, height uint64) (ids.ID, error) {
	blkIDBytes, err := vm.heightIndex.Get(heightKey(height))
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ids.ID{}, err
	case err != nil:
		return ids.ID{}, fmt.Errorf("failed to get height index at %d: %w", height, err)
	}
	blkID, err := ids.ToID(blkIDBytes)
	if err != nil {
		return ids.ID{}, fmt.Errorf("failed to parse blkIDBytes at height %d: %w", height, err)
	}
	return blkID, nil
}

// GetBlock returns the accepted block [blkID] or database.ErrNotFound.
func (vm *VM) GetBlock(_ context.Context, blkID ids.ID) (*Block, error) {
	blkBytes, err := vm.blockIndex.Get(blkID[:])
	if err != nil {
		return nil, err
	}
	blk, err := ParseBlock(blkBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block from disk %s: %w", blkID, err)
	}
	return blk, nil
}

// Receipts returns the receipts of the accepted block [blkID], one per tx.
func (vm *VM) Receipts(blkID ids.ID) ([]runtime.Receipt, error) {
	bytes, err := vm.receiptIndex.Get(blkID[:])
	if err != nil {
		return nil, err
	}
	var r blockReceipts
	if _, err := Codec.Unmarshal(bytes, &r); err != nil {
		return nil, fmt.Errorf("failed to parse receipts of %s: %w", blkID, err)
	}
	return r.Receipts, nil
}

func (vm *VM) LastAccepted(context.Context) (ids.ID, error) {
	blkIDBytes, err := vm.acceptedIndex.Get(acceptedKey)
	if err != nil {
		return ids.ID{}, fmt.Errorf("failed to get last accepted blockID: %w", err)
	}
	blkID, err := ids.ToID(blkIDBytes)
	if err != nil {
		return ids.ID{}, fmt.Errorf("failed to parse last accepted blockID from disk: %w", err)
	}
	return blkID, nil
}

// SubmitTx queues [tx] for the next block.
func (vm *VM) SubmitTx(tx *runtime.Tx) error {
	return vm.mempool.Add(tx)
}

// Chain is the consensus view of the VM's blocks.
func (vm *VM) Chain() *stack.BlockCache[*Block] { return vm.chain }

// Registry holds the VM's metrics.
func (vm *VM) Registry() *prometheus.Registry { return vm.registry }

// Queries reads the accepted state. [read] must not keep the queries.
func (vm *VM) Queries(read func(*runtime.Queries) error) error {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return read(vm.runtime.Queries(vm.state))
}

func (vm *VM) HealthCheck(context.Context) (interface{}, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	best, err := vm.gadget.Best()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"lastAcceptedHeight": vm.lastAccepted.Hght,
		"bestCanonicalized":  best,
		"processingBlocks":   len(vm.verified),
		"mempool":            vm.mempool.Len(),
	}, nil
}

// Shutdown stops the canonicalization gadget.
func (vm *VM) Shutdown(context.Context) error {
	if vm.stopGadget == nil {
		return nil
	}
	vm.stopGadget()
	<-vm.gadgetDone
	return nil
}

func (vm *VM) Version(context.Context) (string, error) {
	return Version, nil
}
