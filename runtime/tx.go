// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"crypto/ecdsa"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/acurast/acurastvm/types"
)

const CodecVersion = 0

// Codec marshals extrinsics. Calls are registered in wire order: the type id
// of a call is its index below and must never change.
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	errs.Add(
		c.RegisterType(&Transfer{}),
		c.RegisterType(&RegisterJob{}),
		c.RegisterType(&DeregisterJob{}),
		c.RegisterType(&UpdateAllowedSources{}),
		c.RegisterType(&SetEnvironment{}),
		c.RegisterType(&FinalizeJob{}),
		c.RegisterType(&Advertise{}),
		c.RegisterType(&DeleteAdvertisement{}),
		c.RegisterType(&ProposeMatching{}),
		c.RegisterType(&MatchJob{}),
		c.RegisterType(&AcknowledgeMatch{}),
		c.RegisterType(&Report{}),
		c.RegisterType(&Heartbeat{}),
		c.RegisterType(&SubmitAttestation{}),
		c.RegisterType(&SendMessage{}),
		c.RegisterType(&SendTestMessage{}),
		c.RegisterType(&ConfirmMessageDelivery{}),
		c.RegisterType(&ReceiveMessage{}),
		c.RegisterType(&RemoveMessage{}),
		c.RegisterType(&CleanOutgoing{}),
		c.RegisterType(&CleanIncoming{}),
		c.RegisterType(&UpdateOracles{}),
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

// UnsignedTx is what the signer of an extrinsic signs.
type UnsignedTx struct {
	// Nonce is the number of extrinsics the signer sent before.
	Nonce uint64 `serialize:"true" json:"nonce"`
	Call  Call   `serialize:"true" json:"call"`
}

// Tx is a signed extrinsic. The signer is recovered from the secp256k1
// signature over the keccak256 hash of the unsigned bytes.
type Tx struct {
	Unsigned  UnsignedTx `serialize:"true" json:"unsigned"`
	Signature []byte     `serialize:"true" json:"signature"`

	id     ids.ID
	bytes  []byte
	signer types.AccountID
}

// SignTx builds the extrinsic of [call] signed with [key].
func SignTx(key *ecdsa.PrivateKey, nonce uint64, call Call) (*Tx, error) {
	tx := &Tx{Unsigned: UnsignedTx{Nonce: nonce, Call: call}}
	unsigned, err := Codec.Marshal(CodecVersion, &tx.Unsigned)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal unsigned tx: %w", err)
	}
	tx.Signature, err = crypto.Sign(crypto.Keccak256(unsigned), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	bytes, err := Codec.Marshal(CodecVersion, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx: %w", err)
	}
	return ParseTx(bytes)
}

// ParseTx decodes [bytes] and recovers the signer.
func ParseTx(bytes []byte) (*Tx, error) {
	tx := &Tx{}
	if _, err := Codec.Unmarshal(bytes, tx); err != nil {
		return nil, errorsmod.Wrap(ErrMalformedTx, err.Error())
	}
	if tx.Unsigned.Call == nil {
		return nil, errorsmod.Wrap(ErrMalformedTx, "missing call")
	}
	unsigned, err := Codec.Marshal(CodecVersion, &tx.Unsigned)
	if err != nil {
		return nil, errorsmod.Wrap(ErrMalformedTx, err.Error())
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(unsigned), tx.Signature)
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidSignature, err.Error())
	}
	tx.signer = Address(pub)
	tx.bytes = bytes
	tx.id = hashing.ComputeHash256Array(bytes)
	return tx, nil
}

// Address is the account of the holder of [pub].
func Address(pub *ecdsa.PublicKey) types.AccountID {
	return ids.ShortID(crypto.PubkeyToAddress(*pub))
}

func (tx *Tx) ID() ids.ID { return tx.id }

func (tx *Tx) Bytes() []byte { return tx.bytes }

func (tx *Tx) Signer() types.AccountID { return tx.signer }
