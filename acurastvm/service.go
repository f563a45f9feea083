// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package acurastvm

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/engine/common"
	"github.com/ava-labs/avalanchego/utils/formatting"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/acurast/acurastvm/attestation"
	"github.com/acurast/acurastvm/hyperdrive"
	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/runtime"
	"github.com/acurast/acurastvm/types"
)

const Endpoint = "/rpc"

var errCannotGetLastAccepted = errors.New("cannot get last accepted block")

// CreateHandlers serves the JSON-RPC service under [Endpoint].
func (vm *VM) CreateHandlers(context.Context) (map[string]*common.HTTPHandler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(cjson.NewCodec(), "application/json")
	server.RegisterCodec(cjson.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(&Service{vm: vm}, Name); err != nil {
		return nil, err
	}
	return map[string]*common.HTTPHandler{
		Endpoint: {LockOptions: common.NoLock, Handler: server},
	}, nil
}

// Service is the API service for this VM
type Service struct{ vm *VM }

type SubmitTxArgs struct {
	// Tx is the hex encoded signed extrinsic
	Tx string `json:"tx"`
}

type SubmitTxReply struct {
	TxID ids.ID `json:"txId"`
}

// SubmitTx queues an extrinsic for the next block.
func (s *Service) SubmitTx(_ *http.Request, args *SubmitTxArgs, reply *SubmitTxReply) error {
	bytes, err := formatting.Decode(formatting.Hex, args.Tx)
	if err != nil {
		return err
	}
	tx, err := runtime.ParseTx(bytes)
	if err != nil {
		return err
	}
	if err := s.vm.SubmitTx(tx); err != nil {
		return err
	}
	reply.TxID = tx.ID()
	return nil
}

type GetBlockArgs struct {
	// ID of the block. If left empty, the last accepted block.
	ID *ids.ID `json:"id"`
}

type GetBlockReply struct {
	ID        ids.ID            `json:"id"`
	ParentID  ids.ID            `json:"parentID"`
	Height    cjson.Uint64      `json:"height"`
	Timestamp cjson.Uint64      `json:"timestamp"`
	Txs       []ids.ID          `json:"txs"`
	Receipts  []runtime.Receipt `json:"receipts"`
}

// GetBlock returns an accepted block and the receipts of its txs.
func (s *Service) GetBlock(_ *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	ctx := context.Background()
	var blkID ids.ID
	if args.ID != nil {
		blkID = *args.ID
	} else {
		var err error
		if blkID, err = s.vm.LastAccepted(ctx); err != nil {
			return errCannotGetLastAccepted
		}
	}
	block, err := s.vm.GetBlock(ctx, blkID)
	if err != nil {
		return err
	}
	receipts, err := s.vm.Receipts(blkID)
	if err != nil {
		return err
	}

	reply.ID = block.ID()
	reply.ParentID = block.PrntID
	reply.Height = cjson.Uint64(block.Hght)
	reply.Timestamp = cjson.Uint64(block.Tmstmp)
	reply.Txs = make([]ids.ID, len(block.txs))
	for i, tx := range block.txs {
		reply.Txs[i] = tx.ID()
	}
	reply.Receipts = receipts
	return nil
}

type AccountArgs struct {
	Account ids.ShortID `json:"account"`
}

type NonceReply struct {
	Nonce cjson.Uint64 `json:"nonce"`
}

func (s *Service) Nonce(_ *http.Request, args *AccountArgs, reply *NonceReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		nonce, err := q.Nonce(args.Account)
		reply.Nonce = cjson.Uint64(nonce)
		return err
	})
}

type BalanceArgs struct {
	Account ids.ShortID  `json:"account"`
	Asset   cjson.Uint32 `json:"asset"`
}

type BalanceReply struct {
	Balance cjson.Uint64 `json:"balance"`
}

func (s *Service) Balance(_ *http.Request, args *BalanceArgs, reply *BalanceReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		balance, err := q.Balance(types.AssetID(args.Asset), args.Account)
		reply.Balance = cjson.Uint64(balance)
		return err
	})
}

type ReputationArgs struct {
	Source ids.ShortID  `json:"source"`
	Asset  cjson.Uint32 `json:"asset"`
}

type ReputationReply struct {
	// Reputation in parts per million
	Reputation cjson.Uint32 `json:"reputation"`
}

func (s *Service) Reputation(_ *http.Request, args *ReputationArgs, reply *ReputationReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		reputation, err := q.Reputation(args.Source, types.AssetID(args.Asset))
		reply.Reputation = cjson.Uint32(reputation)
		return err
	})
}

type AttestationReply struct {
	Attestation attestation.Attestation `json:"attestation"`
}

func (s *Service) Attestation(_ *http.Request, args *AccountArgs, reply *AttestationReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		a, err := q.Attestation(args.Account)
		reply.Attestation = a
		return err
	})
}

type JobArgs struct {
	JobID types.JobID `json:"jobId"`
}

type JobReply struct {
	Job *marketplace.Job `json:"job"`
}

func (s *Service) Job(_ *http.Request, args *JobArgs, reply *JobReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		job, err := q.Job(args.JobID)
		reply.Job = job
		return err
	})
}

type FilterMatchingSourcesArgs struct {
	Registration marketplace.JobRegistration `json:"registration"`
	Consumer     types.MultiOrigin           `json:"consumer"`
	Sources      []ids.ShortID               `json:"sources"`
	// LatestSeenAfter, if set, drops sources without a heartbeat after it.
	LatestSeenAfter *cjson.Uint64 `json:"latestSeenAfter"`
}

type SourcesReply struct {
	Sources []ids.ShortID `json:"sources"`
}

// FilterMatchingSources keeps the sources that could be matched with the
// registration right now.
func (s *Service) FilterMatchingSources(_ *http.Request, args *FilterMatchingSourcesArgs, reply *SourcesReply) error {
	var latestSeenAfter *uint64
	if args.LatestSeenAfter != nil {
		after := uint64(*args.LatestSeenAfter)
		latestSeenAfter = &after
	}
	now := uint64(s.vm.clock.Time().UnixMilli())
	return s.vm.Queries(func(q *runtime.Queries) error {
		sources, err := q.FilterMatchingSources(&args.Registration, args.Consumer, args.Sources, latestSeenAfter, now)
		reply.Sources = sources
		return err
	})
}

type SourceArgs struct {
	Source ids.ShortID `json:"source"`
}

type MatchedJobsReply struct {
	Jobs []marketplace.MatchedJob `json:"jobs"`
}

func (s *Service) MatchedJobs(_ *http.Request, args *SourceArgs, reply *MatchedJobsReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		jobs, err := q.MatchedJobs(args.Source)
		reply.Jobs = jobs
		return err
	})
}

type JobEnvironmentArgs struct {
	JobID  types.JobID `json:"jobId"`
	Source ids.ShortID `json:"source"`
}

type JobEnvironmentReply struct {
	Environment *marketplace.Environment `json:"environment"`
}

func (s *Service) JobEnvironment(_ *http.Request, args *JobEnvironmentArgs, reply *JobEnvironmentReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		env, err := q.JobEnvironment(args.JobID, args.Source)
		reply.Environment = env
		return err
	})
}

type SnapshotRootsArgs struct {
	From  cjson.Uint64 `json:"from"`
	Limit int          `json:"limit"`
}

type SnapshotRootsReply struct {
	Snapshots []*hyperdrive.Snapshot `json:"snapshots"`
}

func (s *Service) SnapshotRoots(_ *http.Request, args *SnapshotRootsArgs, reply *SnapshotRootsReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		snapshots, err := q.SnapshotRoots(uint64(args.From), args.Limit)
		reply.Snapshots = snapshots
		return err
	})
}

type SnapshotRootArgs struct {
	Number cjson.Uint64 `json:"number"`
}

type SnapshotRootReply struct {
	Snapshot *hyperdrive.Snapshot `json:"snapshot"`
}

func (s *Service) SnapshotRoot(_ *http.Request, args *SnapshotRootArgs, reply *SnapshotRootReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		snapshot, err := q.SnapshotRoot(uint64(args.Number))
		reply.Snapshot = snapshot
		return err
	})
}

type GenerateTargetChainProofArgs struct {
	NextMessageNumber cjson.Uint64 `json:"nextMessageNumber"`
	MaxMessages       cjson.Uint64 `json:"maxMessages"`
	SnapshotNumber    cjson.Uint64 `json:"snapshotNumber"`
}

type GenerateTargetChainProofReply struct {
	// Proof is empty when the snapshot holds no message from
	// NextMessageNumber on.
	Proof *hyperdrive.TargetChainProof `json:"proof"`
}

func (s *Service) GenerateTargetChainProof(_ *http.Request, args *GenerateTargetChainProofArgs, reply *GenerateTargetChainProofReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		proof, err := q.GenerateTargetChainProof(
			s.vm.offchain,
			uint64(args.NextMessageNumber),
			uint64(args.MaxMessages),
			uint64(args.SnapshotNumber),
		)
		reply.Proof = proof
		return err
	})
}

type MessageArgs struct {
	ID hyperdrive.MessageID `json:"id"`
}

type OutgoingMessageReply struct {
	Message *hyperdrive.OutgoingMessageWithMeta `json:"message"`
}

func (s *Service) OutgoingMessage(_ *http.Request, args *MessageArgs, reply *OutgoingMessageReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		msg, err := q.OutgoingMessage(args.ID)
		reply.Message = msg
		return err
	})
}

type IncomingMessageReply struct {
	Message *hyperdrive.IncomingMessageWithMeta `json:"message"`
}

func (s *Service) IncomingMessage(_ *http.Request, args *MessageArgs, reply *IncomingMessageReply) error {
	return s.vm.Queries(func(q *runtime.Queries) error {
		msg, err := q.IncomingMessage(args.ID)
		reply.Message = msg
		return err
	})
}
