// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	"strconv"

	"github.com/acurast/acurastvm/types"
)

const ModuleName = "marketplace"

const (
	EventTypeJobRegistrationStored       = "job_registration_stored"
	EventTypeJobRegistrationRemoved      = "job_registration_removed"
	EventTypeAllowedSourcesUpdated       = "allowed_sources_updated"
	EventTypeAdvertisementStored         = "advertisement_stored"
	EventTypeAdvertisementRemoved        = "advertisement_removed"
	EventTypeJobRegistrationMatched      = "job_registration_matched"
	EventTypeJobRegistrationAssigned     = "job_registration_assigned"
	EventTypeReported                    = "reported"
	EventTypeJobFinalized                = "job_finalized"
	EventTypeExecutionEnvironmentUpdated = "execution_environment_updated"
	EventTypeProcessorHeartbeat          = "processor_heartbeat"
	EventTypeReputationUpdated           = "reputation_updated"

	AttributeKeyJobID      = "job_id"
	AttributeKeySource     = "source"
	AttributeKeyCreator    = "creator"
	AttributeKeySlot       = "slot"
	AttributeKeyStatus     = "status"
	AttributeKeySuccess    = "success"
	AttributeKeyIndex      = "execution_index"
	AttributeKeyPayout     = "payout"
	AttributeKeyFee        = "fee"
	AttributeKeyRefund     = "refund"
	AttributeKeyReputation = "reputation"
	AttributeKeyMissed     = "missed"
	AttributeKeyTimestamp  = "timestamp"
)

func (m *Marketplace) emit(typ string, attrs ...types.Attribute) {
	if m.events != nil {
		m.events.Emit(types.NewEvent(ModuleName, typ, attrs...))
	}
}

func jobAttr(id types.JobID) types.Attribute {
	return types.NewAttribute(AttributeKeyJobID, id.String())
}

func sourceAttr(source types.AccountID) types.Attribute {
	return types.NewAttribute(AttributeKeySource, source.String())
}

func uintAttr(key string, v uint64) types.Attribute {
	return types.NewAttribute(key, strconv.FormatUint(v, 10))
}
