// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client calls the JSON-RPC service of a node.
package client

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/rpc"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/acurast/acurastvm/acurastvm"
	"github.com/acurast/acurastvm/attestation"
	"github.com/acurast/acurastvm/hyperdrive"
	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/runtime"
	"github.com/acurast/acurastvm/types"
)

// Client defines acurastvm client operations.
type Client interface {
	// SubmitTx queues a signed extrinsic and returns its id
	SubmitTx(ctx context.Context, tx *runtime.Tx) (ids.ID, error)

	// GetBlock fetches an accepted block, the last accepted one if [blockID]
	// is nil
	GetBlock(ctx context.Context, blockID *ids.ID) (*acurastvm.GetBlockReply, error)

	Nonce(ctx context.Context, account ids.ShortID) (uint64, error)
	Balance(ctx context.Context, account ids.ShortID, asset types.AssetID) (types.Balance, error)
	Reputation(ctx context.Context, source ids.ShortID, asset types.AssetID) (types.Permill, error)
	Attestation(ctx context.Context, account ids.ShortID) (attestation.Attestation, error)
	Job(ctx context.Context, id types.JobID) (*marketplace.Job, error)
	FilterMatchingSources(ctx context.Context, args *acurastvm.FilterMatchingSourcesArgs) ([]ids.ShortID, error)
	MatchedJobs(ctx context.Context, source ids.ShortID) ([]marketplace.MatchedJob, error)
	JobEnvironment(ctx context.Context, id types.JobID, source ids.ShortID) (*marketplace.Environment, error)
	SnapshotRoots(ctx context.Context, from uint64, limit int) ([]*hyperdrive.Snapshot, error)
	SnapshotRoot(ctx context.Context, number uint64) (*hyperdrive.Snapshot, error)
	GenerateTargetChainProof(ctx context.Context, next, max, snapshot uint64) (*hyperdrive.TargetChainProof, error)
	OutgoingMessage(ctx context.Context, id hyperdrive.MessageID) (*hyperdrive.OutgoingMessageWithMeta, error)
	IncomingMessage(ctx context.Context, id hyperdrive.MessageID) (*hyperdrive.IncomingMessageWithMeta, error)
}

// New creates a client of the node serving at [uri].
func New(uri string) Client {
	return &client{req: rpc.NewEndpointRequester(uri + acurastvm.Endpoint)}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) call(ctx context.Context, method string, args, reply interface{}) error {
	return cli.req.SendRequest(ctx, acurastvm.Name+"."+method, args, reply)
}

func (cli *client) SubmitTx(ctx context.Context, tx *runtime.Tx) (ids.ID, error) {
	encoded, err := formatting.Encode(formatting.Hex, tx.Bytes())
	if err != nil {
		return ids.Empty, err
	}
	resp := new(acurastvm.SubmitTxReply)
	if err := cli.call(ctx, "submitTx", &acurastvm.SubmitTxArgs{Tx: encoded}, resp); err != nil {
		return ids.Empty, err
	}
	return resp.TxID, nil
}

func (cli *client) GetBlock(ctx context.Context, blockID *ids.ID) (*acurastvm.GetBlockReply, error) {
	resp := new(acurastvm.GetBlockReply)
	err := cli.call(ctx, "getBlock", &acurastvm.GetBlockArgs{ID: blockID}, resp)
	return resp, err
}

func (cli *client) Nonce(ctx context.Context, account ids.ShortID) (uint64, error) {
	resp := new(acurastvm.NonceReply)
	err := cli.call(ctx, "nonce", &acurastvm.AccountArgs{Account: account}, resp)
	return uint64(resp.Nonce), err
}

func (cli *client) Balance(ctx context.Context, account ids.ShortID, asset types.AssetID) (types.Balance, error) {
	resp := new(acurastvm.BalanceReply)
	err := cli.call(ctx, "balance", &acurastvm.BalanceArgs{
		Account: account,
		Asset:   cjson.Uint32(asset),
	}, resp)
	return types.Balance(resp.Balance), err
}

func (cli *client) Reputation(ctx context.Context, source ids.ShortID, asset types.AssetID) (types.Permill, error) {
	resp := new(acurastvm.ReputationReply)
	err := cli.call(ctx, "reputation", &acurastvm.ReputationArgs{
		Source: source,
		Asset:  cjson.Uint32(asset),
	}, resp)
	return types.Permill(resp.Reputation), err
}

func (cli *client) Attestation(ctx context.Context, account ids.ShortID) (attestation.Attestation, error) {
	resp := new(acurastvm.AttestationReply)
	err := cli.call(ctx, "attestation", &acurastvm.AccountArgs{Account: account}, resp)
	return resp.Attestation, err
}

func (cli *client) Job(ctx context.Context, id types.JobID) (*marketplace.Job, error) {
	resp := new(acurastvm.JobReply)
	err := cli.call(ctx, "job", &acurastvm.JobArgs{JobID: id}, resp)
	return resp.Job, err
}

func (cli *client) FilterMatchingSources(ctx context.Context, args *acurastvm.FilterMatchingSourcesArgs) ([]ids.ShortID, error) {
	resp := new(acurastvm.SourcesReply)
	err := cli.call(ctx, "filterMatchingSources", args, resp)
	return resp.Sources, err
}

func (cli *client) MatchedJobs(ctx context.Context, source ids.ShortID) ([]marketplace.MatchedJob, error) {
	resp := new(acurastvm.MatchedJobsReply)
	err := cli.call(ctx, "matchedJobs", &acurastvm.SourceArgs{Source: source}, resp)
	return resp.Jobs, err
}

func (cli *client) JobEnvironment(ctx context.Context, id types.JobID, source ids.ShortID) (*marketplace.Environment, error) {
	resp := new(acurastvm.JobEnvironmentReply)
	err := cli.call(ctx, "jobEnvironment", &acurastvm.JobEnvironmentArgs{JobID: id, Source: source}, resp)
	return resp.Environment, err
}

func (cli *client) SnapshotRoots(ctx context.Context, from uint64, limit int) ([]*hyperdrive.Snapshot, error) {
	resp := new(acurastvm.SnapshotRootsReply)
	err := cli.call(ctx, "snapshotRoots", &acurastvm.SnapshotRootsArgs{
		From:  cjson.Uint64(from),
		Limit: limit,
	}, resp)
	return resp.Snapshots, err
}

func (cli *client) SnapshotRoot(ctx context.Context, number uint64) (*hyperdrive.Snapshot, error) {
	resp := new(acurastvm.SnapshotRootReply)
	err := cli.call(ctx, "snapshotRoot", &acurastvm.SnapshotRootArgs{Number: cjson.Uint64(number)}, resp)
	return resp.Snapshot, err
}

func (cli *client) GenerateTargetChainProof(ctx context.Context, next, max, snapshot uint64) (*hyperdrive.TargetChainProof, error) {
	resp := new(acurastvm.GenerateTargetChainProofReply)
	err := cli.call(ctx, "generateTargetChainProof", &acurastvm.GenerateTargetChainProofArgs{
		NextMessageNumber: cjson.Uint64(next),
		MaxMessages:       cjson.Uint64(max),
		SnapshotNumber:    cjson.Uint64(snapshot),
	}, resp)
	return resp.Proof, err
}

func (cli *client) OutgoingMessage(ctx context.Context, id hyperdrive.MessageID) (*hyperdrive.OutgoingMessageWithMeta, error) {
	resp := new(acurastvm.OutgoingMessageReply)
	err := cli.call(ctx, "outgoingMessage", &acurastvm.MessageArgs{ID: id}, resp)
	return resp.Message, err
}

func (cli *client) IncomingMessage(ctx context.Context, id hyperdrive.MessageID) (*hyperdrive.IncomingMessageWithMeta, error) {
	resp := new(acurastvm.IncomingMessageReply)
	err := cli.call(ctx, "incomingMessage", &acurastvm.MessageArgs{ID: id}, resp)
	return resp.Message, err
}
