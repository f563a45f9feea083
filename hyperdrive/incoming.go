// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/acurast/acurastvm/types"
)

// ReceiveMessage accepts a message from a proxy chain signed by enough
// oracles and hands it to the processor. A failing processor does not fail
// the receipt.
func (r *Relay) ReceiveMessage(
	block types.BlockContext,
	sender Subject,
	nonce Nonce,
	recipient Subject,
	payload []byte,
	relayer types.AccountID,
	sigs []OracleSignature,
) (*IncomingMessageWithMeta, error) {
	if err := VerifySubject(recipient); err != nil {
		return nil, err
	}
	if recipient.Chain() != r.params.ThisChain {
		return nil, errorsmod.Wrapf(ErrIncorrectRecipient, "recipient on %s", recipient.Chain())
	}
	if len(payload) > int(r.params.MaxPayloadSize) {
		return nil, errorsmod.Wrapf(ErrPayloadTooLarge, "%d bytes", len(payload))
	}
	msg, err := NewMessage(sender, nonce, recipient, payload)
	if err != nil {
		return nil, err
	}

	_, found, err := r.getIncoming(msg.ID)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errorsmod.Wrap(ErrMessageAlreadyReceived, msg.ID.String())
	}

	receipt, err := ReceiptPayload(msg)
	if err != nil {
		return nil, err
	}
	if err := r.checkSignatures(receipt, sigs, r.params.MinReceiptConfirmationSignatures, block.Height); err != nil {
		return nil, err
	}

	meta := &IncomingMessageWithMeta{
		Message:      msg,
		CurrentBlock: block.Height,
		Relayer:      relayer,
	}
	if err := r.putIncoming(meta); err != nil {
		return nil, err
	}
	r.emit(EventTypeMessageReceived,
		idAttr(msg.ID),
		types.NewAttribute(AttributeKeySender, SubjectString(sender)),
		types.NewAttribute(AttributeKeyRelayer, relayer.String()),
	)
	r.metrics.Message("received", 1)

	if err := r.process(block, msg); err != nil {
		r.log.Warn("failed to process message",
			"id", msg.ID,
			"sender", SubjectString(sender),
			"error", err,
		)
		r.emit(EventTypeMessageProcessedWithErrors,
			idAttr(msg.ID),
			types.NewAttribute(AttributeKeyError, err.Error()),
		)
		r.metrics.ProcessorError()
		return meta, nil
	}
	r.emit(EventTypeMessageProcessed, idAttr(msg.ID))
	return meta, nil
}

// CleanIncoming removes the received messages among [ids] that are older
// than IncomingTTL blocks. Unknown and recent ids are ignored.
func (r *Relay) CleanIncoming(block types.BlockContext, ids []MessageID) (CleanupResult, error) {
	if len(ids) > int(r.params.MaxMessagesCleanup) {
		return CleanupResult{}, errorsmod.Wrapf(ErrTooManyMessagesToClean, "%d ids", len(ids))
	}
	removed := 0
	for _, id := range ids {
		meta, found, err := r.getIncoming(id)
		if err != nil {
			return CleanupResult{}, err
		}
		if !found || block.Height < saturatingAdd(meta.CurrentBlock, r.params.IncomingTTL) {
			continue
		}
		if err := r.deleteIncoming(id); err != nil {
			return CleanupResult{}, err
		}
		removed++
	}
	if removed > 0 {
		r.emit(EventTypeIncomingMessagesCleaned, uintAttr(AttributeKeyCount, uint64(removed)))
		r.metrics.Message("cleaned", removed)
	}
	return cleanupResult(removed), nil
}

// IncomingMessage returns a received message that was not cleaned yet.
func (r *Relay) IncomingMessage(id MessageID) (*IncomingMessageWithMeta, error) {
	meta, found, err := r.getIncoming(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrap(ErrMessageNotFound, id.String())
	}
	return meta, nil
}
