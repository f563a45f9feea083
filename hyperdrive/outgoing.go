// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"github.com/acurast/acurastvm/mmr"
	"github.com/acurast/acurastvm/types"
)

// Pays tells whether the caller of a cleanup is charged for it.
type Pays uint8

const (
	PaysYes Pays = iota
	PaysNo
)

// CleanupResult reports how many entries a cleanup removed. The fee is
// waived when at least one was.
type CleanupResult struct {
	Removed int  `json:"removed"`
	Pays    Pays `json:"pays"`
}

func cleanupResult(removed int) CleanupResult {
	if removed > 0 {
		return CleanupResult{Removed: removed, Pays: PaysNo}
	}
	return CleanupResult{Pays: PaysYes}
}

// SendMessage escrows [fee] from [payer] and appends the message to the mmr.
// A message with the same (sender, nonce) may only be replaced once its ttl
// passed.
func (r *Relay) SendMessage(
	block types.BlockContext,
	sender Subject,
	payer types.AccountID,
	nonce Nonce,
	recipient Subject,
	payload []byte,
	ttl uint64,
	fee types.Balance,
) (*OutgoingMessageWithMeta, error) {
	if ttl < r.params.MinTTL {
		return nil, errorsmod.Wrapf(ErrTTLSmallerThanMinimum, "%d < %d", ttl, r.params.MinTTL)
	}
	if len(payload) > int(r.params.MaxPayloadSize) {
		return nil, errorsmod.Wrapf(ErrPayloadTooLarge, "%d bytes", len(payload))
	}
	msg, err := NewMessage(sender, nonce, recipient, payload)
	if err != nil {
		return nil, err
	}

	previous, found, err := r.getOutgoing(msg.ID)
	if err != nil {
		return nil, err
	}
	if found {
		if previous.Pending(block.Height) {
			return nil, errorsmod.Wrap(ErrMessageWithSameNoncePending, msg.ID.String())
		}
		// the expired message is replaced, its fee goes back to its payer
		if err := r.releaseFee(previous); err != nil {
			return nil, err
		}
	}

	if fee > 0 {
		if err := r.currency.Hold(types.NativeAsset, payer, FeeHold, fee); err != nil {
			return nil, err
		}
	}

	leaf, err := msg.Bytes()
	if err != nil {
		return nil, err
	}
	tree, err := r.chain.Open()
	if err != nil {
		return nil, err
	}
	if _, err := tree.Push(leaf); err != nil {
		return nil, err
	}
	if err := tree.Commit(r.chain); err != nil {
		return nil, err
	}
	leafCount, err := mmr.LeafCount(tree.Size())
	if err != nil {
		return nil, err
	}

	meta := &OutgoingMessageWithMeta{
		Message:      msg,
		CurrentBlock: block.Height,
		TTLBlock:     saturatingAdd(block.Height, ttl),
		Fee:          fee,
		Payer:        payer,
		LeafIndex:    leafCount - 1,
	}
	if err := r.putOutgoing(meta); err != nil {
		return nil, err
	}

	r.emit(EventTypeMessageReadyToSend,
		idAttr(msg.ID),
		types.NewAttribute(AttributeKeySender, SubjectString(sender)),
		types.NewAttribute(AttributeKeyRecipient, SubjectString(recipient)),
		uintAttr(AttributeKeyLeafIndex, meta.LeafIndex),
		uintAttr(AttributeKeyTTLBlock, meta.TTLBlock),
		uintAttr(AttributeKeyFee, fee),
	)
	r.metrics.Message("sent", 1)
	r.log.Debug("message ready to send",
		"id", msg.ID,
		"leafIndex", meta.LeafIndex,
		"ttlBlock", meta.TTLBlock,
	)
	return meta, nil
}

// SendTestMessage sends an empty-fee message from [caller] to [recipient]
// with a nonce taken from a counter.
func (r *Relay) SendTestMessage(block types.BlockContext, caller types.AccountID, recipient Subject) (*OutgoingMessageWithMeta, error) {
	n, err := r.counter(testNonceKey)
	if err != nil {
		return nil, err
	}
	var nonce Nonce
	binary.BigEndian.PutUint64(nonce[len(nonce)-8:], n)
	sender := &AcurastSubject{Target: ExtrinsicLayer(caller.Bytes())}
	meta, err := r.SendMessage(block, sender, caller, nonce, recipient, []byte("test"), r.params.MinTTL, 0)
	if err != nil {
		return nil, err
	}
	if err := r.putCounter(testNonceKey, n+1); err != nil {
		return nil, err
	}
	return meta, nil
}

// ConfirmMessageDelivery pays the message fee to [relayer] once enough
// oracles signed that [relayer] delivered the message.
func (r *Relay) ConfirmMessageDelivery(block types.BlockContext, relayer types.AccountID, id MessageID, sigs []OracleSignature) error {
	meta, found, err := r.getOutgoing(id)
	if err != nil {
		return err
	}
	if !found {
		return errorsmod.Wrap(ErrMessageNotFound, id.String())
	}
	if !meta.Pending(block.Height) {
		return errorsmod.Wrapf(ErrDeliveryConfirmationOverdue, "ttl block %d", meta.TTLBlock)
	}
	payload, err := DeliveryConfirmationPayload(meta.Message, relayer)
	if err != nil {
		return err
	}
	if err := r.checkSignatures(payload, sigs, r.params.MinDeliveryConfirmationSignatures, block.Height); err != nil {
		return err
	}

	if meta.Fee > 0 {
		if err := r.currency.TransferOnHold(types.NativeAsset, FeeHold, meta.Payer, relayer, meta.Fee); err != nil {
			return err
		}
	}
	if err := r.deleteOutgoing(id); err != nil {
		return err
	}

	r.emit(EventTypeMessageDelivered,
		idAttr(id),
		types.NewAttribute(AttributeKeyRelayer, relayer.String()),
		uintAttr(AttributeKeyFee, meta.Fee),
	)
	r.metrics.Message("confirmed", 1)
	return nil
}

// RemoveMessage removes an outgoing message after its ttl and gives the fee
// back to the payer. Anybody may call it.
func (r *Relay) RemoveMessage(block types.BlockContext, id MessageID) error {
	meta, found, err := r.getOutgoing(id)
	if err != nil {
		return err
	}
	if !found {
		return errorsmod.Wrap(ErrMessageNotFound, id.String())
	}
	if meta.Pending(block.Height) {
		return errorsmod.Wrapf(ErrCannotRemoveMessageBeforeTTL, "ttl block %d", meta.TTLBlock)
	}
	if err := r.removeOutgoing(meta); err != nil {
		return err
	}
	r.metrics.Message("removed", 1)
	return nil
}

// CleanOutgoing removes the expired messages among [ids]. Unknown and still
// pending ids are ignored.
func (r *Relay) CleanOutgoing(block types.BlockContext, ids []MessageID) (CleanupResult, error) {
	if len(ids) > int(r.params.MaxMessagesCleanup) {
		return CleanupResult{}, errorsmod.Wrapf(ErrTooManyMessagesToClean, "%d ids", len(ids))
	}
	removed := 0
	for _, id := range ids {
		meta, found, err := r.getOutgoing(id)
		if err != nil {
			return CleanupResult{}, err
		}
		if !found || meta.Pending(block.Height) {
			continue
		}
		if err := r.removeOutgoing(meta); err != nil {
			return CleanupResult{}, err
		}
		removed++
	}
	if removed > 0 {
		r.emit(EventTypeOutgoingMessagesCleaned, uintAttr(AttributeKeyCount, uint64(removed)))
		r.metrics.Message("removed", removed)
	}
	return cleanupResult(removed), nil
}

func (r *Relay) removeOutgoing(meta *OutgoingMessageWithMeta) error {
	if err := r.releaseFee(meta); err != nil {
		return err
	}
	if err := r.deleteOutgoing(meta.Message.ID); err != nil {
		return err
	}
	r.emit(EventTypeMessageRemoved, idAttr(meta.Message.ID))
	return nil
}

func (r *Relay) releaseFee(meta *OutgoingMessageWithMeta) error {
	if meta.Fee == 0 {
		return nil
	}
	return r.currency.Release(types.NativeAsset, meta.Payer, FeeHold, meta.Fee)
}

// OutgoingMessage returns a message that has not been confirmed or removed.
func (r *Relay) OutgoingMessage(id MessageID) (*OutgoingMessageWithMeta, error) {
	meta, found, err := r.getOutgoing(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrap(ErrMessageNotFound, id.String())
	}
	return meta, nil
}

// saturatingAdd is used for ttl blocks, which cap at the largest block.
func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}
