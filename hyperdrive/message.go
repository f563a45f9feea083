// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/acurast/acurastvm/types"
)

// Nonce is chosen by the sender. A (sender, nonce) pair identifies a message.
type Nonce [32]byte

// MessageID is blake2b-256 of the encoded (sender, nonce).
type MessageID [32]byte

func (id MessageID) String() string { return hex.EncodeToString(id[:]) }

func (id MessageID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *MessageID) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(id) {
		return fmt.Errorf("message id of %d hex characters", len(text))
	}
	_, err := hex.Decode(id[:], text)
	return err
}

type idPreimage struct {
	Sender Subject `serialize:"true"`
	Nonce  Nonce   `serialize:"true"`
}

// ComputeMessageID derives the id of the message [sender] sends with [nonce].
func ComputeMessageID(sender Subject, nonce Nonce) (MessageID, error) {
	bytes, err := Codec.Marshal(CodecVersion, &idPreimage{Sender: sender, Nonce: nonce})
	if err != nil {
		return MessageID{}, fmt.Errorf("failed to marshal message id preimage: %w", err)
	}
	return blake2b.Sum256(bytes), nil
}

type Message struct {
	ID        MessageID `serialize:"true" json:"id"`
	Sender    Subject   `serialize:"true" json:"sender"`
	Nonce     Nonce     `serialize:"true" json:"nonce"`
	Recipient Subject   `serialize:"true" json:"recipient"`
	Payload   []byte    `serialize:"true" json:"payload"`
}

// NewMessage assembles a message and derives its id.
func NewMessage(sender Subject, nonce Nonce, recipient Subject, payload []byte) (Message, error) {
	if err := VerifySubject(sender); err != nil {
		return Message{}, err
	}
	if err := VerifySubject(recipient); err != nil {
		return Message{}, err
	}
	id, err := ComputeMessageID(sender, nonce)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:        id,
		Sender:    sender,
		Nonce:     nonce,
		Recipient: recipient,
		Payload:   payload,
	}, nil
}

// Bytes is the encoding of the message, which is also its mmr leaf.
func (m *Message) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, m)
}

// jsonSubject names the chain next to the endpoint, which the interface
// value alone does not survive decoding.
type jsonSubject struct {
	Chain  types.ProxyChain `json:"chain"`
	Target Layer            `json:"target"`
}

type jsonMessage struct {
	ID        MessageID   `json:"id"`
	Sender    jsonSubject `json:"sender"`
	Nonce     string      `json:"nonce"`
	Recipient jsonSubject `json:"recipient"`
	Payload   []byte      `json:"payload"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.Sender == nil || m.Recipient == nil {
		return nil, fmt.Errorf("message %s without subjects", m.ID)
	}
	return json.Marshal(jsonMessage{
		ID:        m.ID,
		Sender:    jsonSubject{Chain: m.Sender.Chain(), Target: m.Sender.Endpoint()},
		Nonce:     hex.EncodeToString(m.Nonce[:]),
		Recipient: jsonSubject{Chain: m.Recipient.Chain(), Target: m.Recipient.Endpoint()},
		Payload:   m.Payload,
	})
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var j jsonMessage
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	sender, err := NewSubject(j.Sender.Chain, j.Sender.Target)
	if err != nil {
		return err
	}
	recipient, err := NewSubject(j.Recipient.Chain, j.Recipient.Target)
	if err != nil {
		return err
	}
	nonce, err := hex.DecodeString(j.Nonce)
	if err != nil {
		return err
	}
	if len(nonce) != len(m.Nonce) {
		return fmt.Errorf("nonce of %d bytes", len(nonce))
	}
	*m = Message{
		ID:        j.ID,
		Sender:    sender,
		Recipient: recipient,
		Payload:   j.Payload,
	}
	copy(m.Nonce[:], nonce)
	return nil
}

func ParseMessage(bytes []byte) (Message, error) {
	var m Message
	if _, err := Codec.Unmarshal(bytes, &m); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return m, nil
}

type OutgoingMessageWithMeta struct {
	Message      Message         `serialize:"true" json:"message"`
	CurrentBlock uint64          `serialize:"true" json:"currentBlock"`
	TTLBlock     uint64          `serialize:"true" json:"ttlBlock"`
	Fee          types.Balance   `serialize:"true" json:"fee"`
	Payer        types.AccountID `serialize:"true" json:"payer"`
	LeafIndex    uint64          `serialize:"true" json:"leafIndex"`
}

// Pending reports whether the message can still be confirmed at [block].
func (m *OutgoingMessageWithMeta) Pending(block uint64) bool {
	return block < m.TTLBlock
}

type IncomingMessageWithMeta struct {
	Message      Message         `serialize:"true" json:"message"`
	CurrentBlock uint64          `serialize:"true" json:"currentBlock"`
	Relayer      types.AccountID `serialize:"true" json:"relayer"`
}

type deliveryPayload struct {
	Message Message         `serialize:"true"`
	Relayer types.AccountID `serialize:"true"`
}

// DeliveryConfirmationPayload is what oracles sign to confirm that [msg] was
// delivered by [relayer]. Only [relayer] can claim the fee with them.
func DeliveryConfirmationPayload(msg Message, relayer types.AccountID) ([]byte, error) {
	return Codec.Marshal(CodecVersion, &deliveryPayload{Message: msg, Relayer: relayer})
}

// ReceiptPayload is what oracles sign to attest an incoming message.
func ReceiptPayload(msg Message) ([]byte, error) {
	return msg.Bytes()
}
