// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/acurast/acurastvm/assets"
	"github.com/acurast/acurastvm/mmr"
	"github.com/acurast/acurastvm/signature"
	"github.com/acurast/acurastvm/types"
)

const (
	endowment = 1_000_000
	fee       = 1_000
)

var (
	payer    = ids.ShortID{0x0a}
	relayer  = ids.ShortID{0x0b}
	stranger = ids.ShortID{0x0c}

	ethereumContract = &EthereumSubject{Target: ContractLayer(make([]byte, 20), []byte{1, 2, 3, 4})}
	acurastPallet    = &AcurastSubject{Target: ExtrinsicLayer(types.PalletAccount("hyperdrive").Bytes())}
)

type processorFunc func(db database.Database, block types.BlockContext, msg Message) error

func (f processorFunc) Process(db database.Database, block types.BlockContext, msg Message) error {
	return f(db, block, msg)
}

type oracleKey struct {
	key *ecdsa.PrivateKey
	pub []byte
}

func newOracleKey(t *testing.T) oracleKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return oracleKey{key: key, pub: crypto.CompressPubkey(&key.PublicKey)}
}

func (o oracleKey) sign(t *testing.T, payload []byte) OracleSignature {
	sig, err := crypto.Sign(crypto.Keccak256(payload), o.key)
	require.NoError(t, err)
	return OracleSignature{
		PubKey:    o.pub,
		Signature: signature.Signature{Scheme: signature.Secp256k1, Bytes: sig},
	}
}

type testEnv struct {
	db      database.Database
	ledger  *assets.Ledger
	events  *types.EventLog
	params  Params
	relay   *Relay
	oracles []oracleKey
}

func newTestEnv(t *testing.T, processor MessageProcessor) *testEnv {
	db := memdb.New()
	ledger := assets.NewPrefixed([]byte("assets"), db)
	require.NoError(t, ledger.Mint(types.NativeAsset, payer, endowment))

	env := &testEnv{
		db:     db,
		ledger: ledger,
		events: &types.EventLog{},
		params: DefaultParams(),
	}
	env.params.MinDeliveryConfirmationSignatures = 2
	env.params.MinReceiptConfirmationSignatures = 2
	env.relay = New(db, env.params, Deps{
		Currency:  ledger,
		Processor: processor,
		Events:    env.events,
	})

	var updates []OracleUpdate
	for i := 0; i < 3; i++ {
		oracle := newOracleKey(t)
		env.oracles = append(env.oracles, oracle)
		updates = append(updates, OracleUpdate{Op: AddOracle, PubKey: oracle.pub})
	}
	require.NoError(t, env.relay.UpdateOracles(env.params.Updater, updates))
	return env
}

func (e *testEnv) lastEvent() types.Event {
	return e.events.Events[len(e.events.Events)-1]
}

func (e *testEnv) balance(t *testing.T, account types.AccountID) types.Balance {
	b, err := e.ledger.BalanceOf(types.NativeAsset, account)
	require.NoError(t, err)
	return b
}

func (e *testEnv) held(t *testing.T, account types.AccountID) types.Balance {
	b, err := e.ledger.BalanceOnHold(types.NativeAsset, account, FeeHold)
	require.NoError(t, err)
	return b
}

func at(height uint64) types.BlockContext {
	return types.BlockContext{Height: height, Parent: ids.ID{byte(height)}}
}

func nonce(n byte) Nonce {
	return Nonce{31: n}
}

func TestMessageID(t *testing.T) {
	require := require.New(t)

	id, err := ComputeMessageID(acurastPallet, nonce(1))
	require.NoError(err)
	again, err := ComputeMessageID(acurastPallet, nonce(1))
	require.NoError(err)
	require.Equal(id, again)

	other, err := ComputeMessageID(acurastPallet, nonce(2))
	require.NoError(err)
	require.NotEqual(id, other)

	// same address bytes on another chain
	vara := &VaraSubject{Target: ExtrinsicLayer(make([]byte, 32))}
	alephZero := &AlephZeroSubject{Target: ExtrinsicLayer(make([]byte, 32))}
	a, err := ComputeMessageID(vara, nonce(1))
	require.NoError(err)
	b, err := ComputeMessageID(alephZero, nonce(1))
	require.NoError(err)
	require.NotEqual(a, b)

	msg, err := NewMessage(acurastPallet, nonce(1), ethereumContract, []byte("payload"))
	require.NoError(err)
	bytes, err := msg.Bytes()
	require.NoError(err)
	parsed, err := ParseMessage(bytes)
	require.NoError(err)
	require.Equal(msg.ID, parsed.ID)
	require.True(SubjectEqual(msg.Recipient, parsed.Recipient))

	text, err := json.Marshal(msg)
	require.NoError(err)
	var decoded Message
	require.NoError(json.Unmarshal(text, &decoded))
	require.Equal(msg, decoded)
}

func TestVerifySubject(t *testing.T) {
	tests := []struct {
		name    string
		subject Subject
		err     error
	}{
		{"acurast extrinsic", acurastPallet, nil},
		{"ethereum contract", ethereumContract, nil},
		{"missing", nil, ErrInvalidSubject},
		{"short ethereum address", &EthereumSubject{Target: ExtrinsicLayer(make([]byte, 19))}, ErrInvalidSubject},
		{"extrinsic with selector", &VaraSubject{Target: Layer{Kind: Extrinsic, Address: make([]byte, 32), Selector: []byte{1}}}, ErrInvalidSubject},
		{"short selector", &SolanaSubject{Target: ContractLayer(make([]byte, 32), []byte{1})}, ErrInvalidSubject},
		{"tezos", &TezosSubject{Target: ExtrinsicLayer([]byte("tz1VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb"))}, nil},
		{"empty tezos", &TezosSubject{Target: ExtrinsicLayer(nil)}, ErrInvalidSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, VerifySubject(tt.subject), tt.err)
		})
	}
}

func TestSendMessage(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, nil)

	_, err := env.relay.SendMessage(at(1), acurastPallet, payer, nonce(1), ethereumContract, nil, env.params.MinTTL-1, fee)
	require.ErrorIs(err, ErrTTLSmallerThanMinimum)

	meta, err := env.relay.SendMessage(at(1), acurastPallet, payer, nonce(1), ethereumContract, []byte("a"), env.params.MinTTL, fee)
	require.NoError(err)
	require.Equal(1+env.params.MinTTL, meta.TTLBlock)
	require.Zero(meta.LeafIndex)
	require.Equal(EventTypeMessageReadyToSend, env.lastEvent().Type)
	require.Equal(uint64(endowment-fee), env.balance(t, payer))
	require.Equal(uint64(fee), env.held(t, payer))

	// still pending at the last block before the ttl
	_, err = env.relay.SendMessage(at(meta.TTLBlock-1), acurastPallet, payer, nonce(1), ethereumContract, []byte("b"), env.params.MinTTL, fee)
	require.ErrorIs(err, ErrMessageWithSameNoncePending)

	second, err := env.relay.SendMessage(at(2), acurastPallet, payer, nonce(2), ethereumContract, []byte("c"), env.params.MinTTL, fee)
	require.NoError(err)
	require.Equal(uint64(1), second.LeafIndex)

	// the expired message is replaced and its fee released
	replaced, err := env.relay.SendMessage(at(meta.TTLBlock), acurastPallet, payer, nonce(1), ethereumContract, []byte("b"), env.params.MinTTL, fee)
	require.NoError(err)
	require.Equal(meta.Message.ID, replaced.Message.ID)
	require.Equal(uint64(2), replaced.LeafIndex)
	require.Equal(uint64(2*fee), env.held(t, payer))
	require.Equal(uint64(endowment-2*fee), env.balance(t, payer))

	stored, err := env.relay.OutgoingMessage(meta.Message.ID)
	require.NoError(err)
	require.Equal([]byte("b"), stored.Message.Payload)

	// ttl additions saturate
	far, err := env.relay.SendMessage(at(10), acurastPallet, payer, nonce(3), ethereumContract, nil, ^uint64(0), 0)
	require.NoError(err)
	require.Equal(^uint64(0), far.TTLBlock)

	_, err = env.relay.SendMessage(at(1), acurastPallet, stranger, nonce(4), ethereumContract, nil, env.params.MinTTL, fee)
	require.ErrorIs(err, assets.ErrInsufficientBalance)
}

func TestConfirmMessageDelivery(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, nil)

	meta, err := env.relay.SendMessage(at(1), acurastPallet, payer, nonce(1), ethereumContract, []byte("a"), env.params.MinTTL, fee)
	require.NoError(err)
	id := meta.Message.ID

	payload, err := DeliveryConfirmationPayload(meta.Message, relayer)
	require.NoError(err)
	sigs := []OracleSignature{env.oracles[0].sign(t, payload), env.oracles[1].sign(t, payload)}

	// signatures bound to another relayer are invalid for this one
	err = env.relay.ConfirmMessageDelivery(at(2), stranger, id, sigs)
	require.ErrorIs(err, ErrSignatureInvalid)

	// the same oracle twice counts once
	err = env.relay.ConfirmMessageDelivery(at(2), relayer, id, []OracleSignature{sigs[0], sigs[0]})
	require.ErrorIs(err, ErrNotEnoughValidSignatures)

	// unknown oracles are skipped
	unknown := newOracleKey(t)
	err = env.relay.ConfirmMessageDelivery(at(2), relayer, id, []OracleSignature{sigs[0], unknown.sign(t, payload)})
	require.ErrorIs(err, ErrNotEnoughValidSignatures)

	err = env.relay.ConfirmMessageDelivery(at(meta.TTLBlock), relayer, id, sigs)
	require.ErrorIs(err, ErrDeliveryConfirmationOverdue)

	require.NoError(env.relay.ConfirmMessageDelivery(at(2), relayer, id, append(sigs, unknown.sign(t, payload))))
	require.Equal(EventTypeMessageDelivered, env.lastEvent().Type)
	require.Equal(uint64(fee), env.balance(t, relayer))
	require.Zero(env.held(t, payer))

	err = env.relay.ConfirmMessageDelivery(at(2), relayer, id, sigs)
	require.ErrorIs(err, ErrMessageNotFound)
}

func TestOracleActivityWindow(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, nil)

	// oracle 2 retires at block 5
	require.NoError(env.relay.UpdateOracles(env.params.Updater, []OracleUpdate{
		{Op: AddOracle, PubKey: env.oracles[2].pub, Window: ActivityWindow{StartBlock: 0, HasEnd: true, EndBlock: 5}},
	}))

	meta, err := env.relay.SendMessage(at(1), acurastPallet, payer, nonce(1), ethereumContract, nil, env.params.MinTTL, fee)
	require.NoError(err)
	payload, err := DeliveryConfirmationPayload(meta.Message, relayer)
	require.NoError(err)

	retired := env.oracles[2].sign(t, payload)
	err = env.relay.ConfirmMessageDelivery(at(5), relayer, meta.Message.ID, []OracleSignature{env.oracles[0].sign(t, payload), retired})
	require.ErrorIs(err, ErrNotEnoughValidSignatures)

	// a garbage signature of a retired oracle is skipped, not rejected
	garbage := OracleSignature{PubKey: env.oracles[2].pub, Signature: signature.Signature{Scheme: signature.Secp256k1, Bytes: make([]byte, 65)}}
	err = env.relay.ConfirmMessageDelivery(at(6), relayer, meta.Message.ID, []OracleSignature{
		garbage,
		env.oracles[0].sign(t, payload),
		env.oracles[1].sign(t, payload),
	})
	require.NoError(err)
}

func TestUnsupportedSchemeSkipped(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, nil)

	meta, err := env.relay.SendMessage(at(1), acurastPallet, payer, nonce(1), ethereumContract, nil, env.params.MinTTL, fee)
	require.NoError(err)
	payload, err := DeliveryConfirmationPayload(meta.Message, relayer)
	require.NoError(err)

	sr25519 := OracleSignature{PubKey: env.oracles[2].pub, Signature: signature.Signature{Scheme: signature.Sr25519, Bytes: make([]byte, 64)}}

	// an active oracle signing with sr25519 neither fails the call nor counts
	err = env.relay.ConfirmMessageDelivery(at(2), relayer, meta.Message.ID, []OracleSignature{sr25519, env.oracles[0].sign(t, payload)})
	require.ErrorIs(err, ErrNotEnoughValidSignatures)

	require.NoError(env.relay.ConfirmMessageDelivery(at(2), relayer, meta.Message.ID, []OracleSignature{
		sr25519,
		env.oracles[0].sign(t, payload),
		env.oracles[1].sign(t, payload),
	}))
}

func TestUpdateOracles(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, nil)

	err := env.relay.UpdateOracles(stranger, nil)
	require.ErrorIs(err, ErrNotUpdater)

	err = env.relay.UpdateOracles(env.params.Updater, []OracleUpdate{
		{Op: AddOracle, PubKey: []byte{1}, Window: ActivityWindow{StartBlock: 5, HasEnd: true, EndBlock: 5}},
	})
	require.ErrorIs(err, ErrInvalidActivityWindow)

	err = env.relay.UpdateOracles(env.params.Updater, []OracleUpdate{{Op: RemoveOracle, PubKey: []byte{1}}})
	require.ErrorIs(err, ErrOracleNotFound)

	require.NoError(env.relay.UpdateOracles(env.params.Updater, []OracleUpdate{{Op: RemoveOracle, PubKey: env.oracles[0].pub}}))
	require.Equal(EventTypeOraclesUpdated, env.lastEvent().Type)

	msg, err := NewMessage(ethereumContract, nonce(1), acurastPallet, nil)
	require.NoError(err)
	payload, err := ReceiptPayload(msg)
	require.NoError(err)
	_, err = env.relay.ReceiveMessage(at(1), ethereumContract, nonce(1), acurastPallet, nil, relayer, []OracleSignature{
		env.oracles[0].sign(t, payload),
		env.oracles[1].sign(t, payload),
	})
	require.ErrorIs(err, ErrNotEnoughValidSignatures)
}

func TestReceiveMessage(t *testing.T) {
	require := require.New(t)

	var (
		processed []MessageID
		fail      bool
	)
	processor := processorFunc(func(db database.Database, _ types.BlockContext, msg Message) error {
		if err := db.Put(msg.ID[:], msg.Payload); err != nil {
			return err
		}
		if fail {
			return errors.New("processing failed")
		}
		processed = append(processed, msg.ID)
		return nil
	})
	env := newTestEnv(t, processor)

	receive := func(n Nonce, payload []byte, recipient Subject) (*IncomingMessageWithMeta, error) {
		msg, err := NewMessage(ethereumContract, n, recipient, payload)
		require.NoError(err)
		receipt, err := ReceiptPayload(msg)
		require.NoError(err)
		return env.relay.ReceiveMessage(at(3), ethereumContract, n, recipient, payload, relayer, []OracleSignature{
			env.oracles[0].sign(t, receipt),
			env.oracles[2].sign(t, receipt),
		})
	}

	meta, err := receive(nonce(1), []byte("register"), acurastPallet)
	require.NoError(err)
	require.Equal(EventTypeMessageProcessed, env.lastEvent().Type)
	require.Equal([]MessageID{meta.Message.ID}, processed)
	written, err := env.db.Get(meta.Message.ID[:])
	require.NoError(err)
	require.Equal([]byte("register"), written)

	_, err = receive(nonce(1), []byte("register"), acurastPallet)
	require.ErrorIs(err, ErrMessageAlreadyReceived)

	_, err = receive(nonce(2), nil, ethereumContract)
	require.ErrorIs(err, ErrIncorrectRecipient)

	// a failing processor keeps the receipt but none of its writes
	fail = true
	failed, err := receive(nonce(3), []byte("broken"), acurastPallet)
	require.NoError(err)
	require.Equal(EventTypeMessageProcessedWithErrors, env.lastEvent().Type)
	has, err := env.db.Has(failed.Message.ID[:])
	require.NoError(err)
	require.False(has)

	stored, err := env.relay.IncomingMessage(failed.Message.ID)
	require.NoError(err)
	require.Equal(relayer, stored.Relayer)

	_, err = receive(nonce(3), []byte("broken"), acurastPallet)
	require.ErrorIs(err, ErrMessageAlreadyReceived)
}

func TestCleanup(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, nil)

	msg, err := NewMessage(ethereumContract, nonce(1), acurastPallet, nil)
	require.NoError(err)
	receipt, err := ReceiptPayload(msg)
	require.NoError(err)
	_, err = env.relay.ReceiveMessage(at(1), ethereumContract, nonce(1), acurastPallet, nil, relayer, []OracleSignature{
		env.oracles[0].sign(t, receipt),
		env.oracles[1].sign(t, receipt),
	})
	require.NoError(err)

	result, err := env.relay.CleanIncoming(at(env.params.IncomingTTL), []MessageID{msg.ID})
	require.NoError(err)
	require.Equal(CleanupResult{Pays: PaysYes}, result)

	result, err = env.relay.CleanIncoming(at(1+env.params.IncomingTTL), []MessageID{msg.ID, {0xff}})
	require.NoError(err)
	require.Equal(CleanupResult{Removed: 1, Pays: PaysNo}, result)
	_, err = env.relay.IncomingMessage(msg.ID)
	require.ErrorIs(err, ErrMessageNotFound)

	_, err = env.relay.CleanIncoming(at(1), make([]MessageID, env.params.MaxMessagesCleanup+1))
	require.ErrorIs(err, ErrTooManyMessagesToClean)

	sent, err := env.relay.SendMessage(at(1), acurastPallet, payer, nonce(1), ethereumContract, nil, env.params.MinTTL, fee)
	require.NoError(err)
	err = env.relay.RemoveMessage(at(sent.TTLBlock-1), sent.Message.ID)
	require.ErrorIs(err, ErrCannotRemoveMessageBeforeTTL)

	result, err = env.relay.CleanOutgoing(at(sent.TTLBlock-1), []MessageID{sent.Message.ID})
	require.NoError(err)
	require.Equal(PaysYes, result.Pays)

	result, err = env.relay.CleanOutgoing(at(sent.TTLBlock), []MessageID{sent.Message.ID})
	require.NoError(err)
	require.Equal(CleanupResult{Removed: 1, Pays: PaysNo}, result)
	require.Equal(uint64(endowment), env.balance(t, payer))
	require.Zero(env.held(t, payer))

	err = env.relay.RemoveMessage(at(sent.TTLBlock), sent.Message.ID)
	require.ErrorIs(err, ErrMessageNotFound)

	another, err := env.relay.SendMessage(at(2), acurastPallet, payer, nonce(2), ethereumContract, nil, env.params.MinTTL, fee)
	require.NoError(err)
	require.NoError(env.relay.RemoveMessage(at(another.TTLBlock), another.Message.ID))
	require.Equal(EventTypeMessageRemoved, env.lastEvent().Type)
	require.Equal(uint64(endowment), env.balance(t, payer))
}

func TestSnapshotsAndTargetChainProof(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, nil)
	offchain := mmr.NewOffchainStore(memdb.New(), []byte("hyperdrive"))

	finalize := func(height uint64) {
		info, nodes, err := env.relay.OnFinalize(at(height))
		require.NoError(err)
		if info != nil {
			require.NoError(offchain.PutFork(info.Fork(), info.SizeBefore, nodes))
		}
	}

	// nothing to snapshot yet
	finalize(1)
	_, err := env.relay.SnapshotRoot(0)
	require.ErrorIs(err, ErrSnapshotNotFound)

	var sent []Message
	send := func(height uint64, n byte) {
		meta, err := env.relay.SendMessage(at(height), acurastPallet, payer, nonce(n), ethereumContract, []byte{n}, env.params.MinTTL, 0)
		require.NoError(err)
		sent = append(sent, meta.Message)
	}
	send(2, 1)
	send(2, 2)
	send(2, 3)
	finalize(2)
	finalize(3)
	send(4, 4)
	send(4, 5)
	finalize(4)

	snapshots, err := env.relay.SnapshotRoots(0, 10)
	require.NoError(err)
	require.Len(snapshots, 2)
	require.Equal(uint64(3), snapshots[0].LeafCount)
	require.Equal(uint64(2), snapshots[0].BlockHeight)
	require.Equal(uint64(5), snapshots[1].LeafCount)
	require.Equal(uint64(4), snapshots[1].BlockHeight)

	reader := offchain.Reader(env.relay.Chain())
	for _, snapshot := range snapshots {
		proof, err := env.relay.GenerateTargetChainProof(reader, 1, 10, snapshot.Number)
		require.NoError(err)
		require.Len(proof.Messages, int(snapshot.LeafCount)-1)
		for i, msg := range proof.Messages {
			require.Equal(sent[i+1].ID, msg.ID)
		}
		ok, err := mmr.VerifyProof(snapshot.Root, proof.Leaves, proof.Proof)
		require.NoError(err)
		require.True(ok, "snapshot %d", snapshot.Number)
	}

	limited, err := env.relay.GenerateTargetChainProof(reader, 3, 1, 1)
	require.NoError(err)
	require.Len(limited.Messages, 1)
	require.Equal(sent[3].ID, limited.Messages[0].ID)

	none, err := env.relay.GenerateTargetChainProof(reader, 3, 10, 0)
	require.NoError(err)
	require.Nil(none)

	_, err = env.relay.GenerateTargetChainProof(reader, 0, 10, 2)
	require.ErrorIs(err, ErrSnapshotNotFound)
}
