// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"strconv"

	"github.com/acurast/acurastvm/types"
)

const ModuleName = "hyperdrive"

const (
	EventTypeMessageReadyToSend         = "message_ready_to_send"
	EventTypeMessageDelivered           = "message_delivered"
	EventTypeMessageRemoved             = "message_removed"
	EventTypeMessageReceived            = "message_received"
	EventTypeMessageProcessed           = "message_processed"
	EventTypeMessageProcessedWithErrors = "message_processed_with_errors"
	EventTypeIncomingMessagesCleaned    = "incoming_messages_cleaned"
	EventTypeOutgoingMessagesCleaned    = "outgoing_messages_cleaned"
	EventTypeOraclesUpdated             = "oracles_updated"
	EventTypeSnapshotTaken              = "snapshot_taken"

	AttributeKeyMessageID = "message_id"
	AttributeKeySender    = "sender"
	AttributeKeyRecipient = "recipient"
	AttributeKeyRelayer   = "relayer"
	AttributeKeyLeafIndex = "leaf_index"
	AttributeKeyTTLBlock  = "ttl_block"
	AttributeKeyFee       = "fee"
	AttributeKeyError     = "error"
	AttributeKeyCount     = "count"
	AttributeKeySnapshot  = "snapshot"
	AttributeKeyRoot      = "root"
)

func (r *Relay) emit(typ string, attrs ...types.Attribute) {
	if r.events != nil {
		r.events.Emit(types.NewEvent(ModuleName, typ, attrs...))
	}
}

func idAttr(id MessageID) types.Attribute {
	return types.NewAttribute(AttributeKeyMessageID, id.String())
}

func uintAttr(key string, v uint64) types.Attribute {
	return types.NewAttribute(key, strconv.FormatUint(v, 10))
}
