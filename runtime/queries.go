// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"

	"github.com/acurast/acurastvm/attestation"
	"github.com/acurast/acurastvm/hyperdrive"
	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/mmr"
	"github.com/acurast/acurastvm/types"
)

// Queries read the state of one database. They never write.
type Queries struct {
	runtime *Runtime
	state   database.Database
}

func (r *Runtime) Queries(state database.Database) *Queries {
	return &Queries{runtime: r, state: state}
}

func (q *Queries) pallets() *pallets { return q.runtime.open(q.state, nil) }

// Nonce is the nonce the next extrinsic of [account] must carry.
func (q *Queries) Nonce(account types.AccountID) (uint64, error) {
	return getNonce(prefixdb.New(systemPrefix, q.state), account)
}

func (q *Queries) Balance(asset types.AssetID, account types.AccountID) (types.Balance, error) {
	return q.pallets().ledger.BalanceOf(asset, account)
}

func (q *Queries) Reputation(source types.AccountID, asset types.AssetID) (types.Permill, error) {
	return q.pallets().marketplace.Reputation(source, asset)
}

func (q *Queries) Attestation(account types.AccountID) (attestation.Attestation, error) {
	return q.pallets().attestations.Get(account)
}

func (q *Queries) Job(id types.JobID) (*marketplace.Job, error) {
	return q.pallets().marketplace.Job(id)
}

func (q *Queries) FilterMatchingSources(
	reg *marketplace.JobRegistration,
	consumer types.MultiOrigin,
	sources []types.AccountID,
	latestSeenAfter *uint64,
	now uint64,
) ([]types.AccountID, error) {
	return q.pallets().marketplace.FilterMatchingSources(reg, consumer, sources, latestSeenAfter, now)
}

func (q *Queries) MatchedJobs(source types.AccountID) ([]marketplace.MatchedJob, error) {
	return q.pallets().marketplace.MatchedJobs(source)
}

func (q *Queries) JobEnvironment(id types.JobID, source types.AccountID) (*marketplace.Environment, error) {
	return q.pallets().marketplace.JobEnvironment(id, source)
}

func (q *Queries) OutgoingMessage(id hyperdrive.MessageID) (*hyperdrive.OutgoingMessageWithMeta, error) {
	return q.pallets().relay.OutgoingMessage(id)
}

func (q *Queries) IncomingMessage(id hyperdrive.MessageID) (*hyperdrive.IncomingMessageWithMeta, error) {
	return q.pallets().relay.IncomingMessage(id)
}

func (q *Queries) SnapshotRoots(from uint64, limit int) ([]*hyperdrive.Snapshot, error) {
	return q.pallets().relay.SnapshotRoots(from, limit)
}

func (q *Queries) SnapshotRoot(number uint64) (*hyperdrive.Snapshot, error) {
	return q.pallets().relay.SnapshotRoot(number)
}

// GenerateTargetChainProof reads the leaves from [offchain], resolving nodes
// of blocks that are not canonicalized yet through this state.
func (q *Queries) GenerateTargetChainProof(offchain *mmr.OffchainStore, next, max, snapshot uint64) (*hyperdrive.TargetChainProof, error) {
	relay := q.pallets().relay
	return relay.GenerateTargetChainProof(offchain.Reader(relay.Chain()), next, max, snapshot)
}

// MMRBlockInfo returns what the block at [height] appended to the message
// mmr.
func (q *Queries) MMRBlockInfo(height uint64) (mmr.BlockInfo, bool, error) {
	return q.pallets().relay.Chain().BlockInfo(height)
}
