// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/acurast/acurastvm/attestation"
	"github.com/acurast/acurastvm/hyperdrive"
	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/types"
)

// Call is the state transition an extrinsic asks for. The signer of the
// extrinsic is the caller.
type Call interface {
	isCall()
}

// SubjectRef names a hyperdrive subject inside a call.
type SubjectRef struct {
	Chain  types.ProxyChain `serialize:"true" json:"chain"`
	Target hyperdrive.Layer `serialize:"true" json:"target"`
}

func RefOf(s hyperdrive.Subject) SubjectRef {
	return SubjectRef{Chain: s.Chain(), Target: s.Endpoint()}
}

func (r SubjectRef) Subject() (hyperdrive.Subject, error) {
	return hyperdrive.NewSubject(r.Chain, r.Target)
}

type (
	Transfer struct {
		To     types.AccountID `serialize:"true" json:"to"`
		Asset  types.AssetID   `serialize:"true" json:"asset"`
		Amount types.Balance   `serialize:"true" json:"amount"`
	}

	RegisterJob struct {
		Registration marketplace.JobRegistration `serialize:"true" json:"registration"`
	}
	DeregisterJob struct {
		JobID types.JobID `serialize:"true" json:"jobId"`
	}
	UpdateAllowedSources struct {
		JobID   types.JobID                       `serialize:"true" json:"jobId"`
		Updates []marketplace.AllowedSourceUpdate `serialize:"true" json:"updates"`
	}
	SetEnvironment struct {
		JobID       types.JobID             `serialize:"true" json:"jobId"`
		Source      types.AccountID         `serialize:"true" json:"source"`
		Environment marketplace.Environment `serialize:"true" json:"environment"`
	}
	FinalizeJob struct {
		JobID types.JobID `serialize:"true" json:"jobId"`
	}
	Advertise struct {
		Advertisement marketplace.Advertisement `serialize:"true" json:"advertisement"`
	}
	DeleteAdvertisement struct{}
	ProposeMatching     struct {
		Matches []marketplace.Match `serialize:"true" json:"matches"`
	}
	// MatchJob matches a job with the first qualifying advertisements.
	MatchJob struct {
		JobID types.JobID `serialize:"true" json:"jobId"`
	}
	AcknowledgeMatch struct {
		JobID   types.JobID          `serialize:"true" json:"jobId"`
		PubKeys []marketplace.PubKey `serialize:"true" json:"pubKeys"`
	}
	Report struct {
		JobID  types.JobID                 `serialize:"true" json:"jobId"`
		IsLast bool                        `serialize:"true" json:"isLast"`
		Result marketplace.ExecutionResult `serialize:"true" json:"result"`
	}
	Heartbeat struct{}

	SubmitAttestation struct {
		Account     types.AccountID         `serialize:"true" json:"account"`
		Attestation attestation.Attestation `serialize:"true" json:"attestation"`
	}

	// SendMessage sends a message from the signer's account.
	SendMessage struct {
		Nonce     hyperdrive.Nonce `serialize:"true" json:"nonce"`
		Recipient SubjectRef       `serialize:"true" json:"recipient"`
		Payload   []byte           `serialize:"true" json:"payload"`
		TTL       uint64           `serialize:"true" json:"ttl"`
		Fee       types.Balance    `serialize:"true" json:"fee"`
	}
	SendTestMessage struct {
		Recipient SubjectRef `serialize:"true" json:"recipient"`
	}
	ConfirmMessageDelivery struct {
		ID         hyperdrive.MessageID         `serialize:"true" json:"id"`
		Signatures []hyperdrive.OracleSignature `serialize:"true" json:"signatures"`
	}
	ReceiveMessage struct {
		Sender     SubjectRef                   `serialize:"true" json:"sender"`
		Nonce      hyperdrive.Nonce             `serialize:"true" json:"nonce"`
		Recipient  SubjectRef                   `serialize:"true" json:"recipient"`
		Payload    []byte                       `serialize:"true" json:"payload"`
		Signatures []hyperdrive.OracleSignature `serialize:"true" json:"signatures"`
	}
	RemoveMessage struct {
		ID hyperdrive.MessageID `serialize:"true" json:"id"`
	}
	CleanOutgoing struct {
		IDs []hyperdrive.MessageID `serialize:"true" json:"ids"`
	}
	CleanIncoming struct {
		IDs []hyperdrive.MessageID `serialize:"true" json:"ids"`
	}
	UpdateOracles struct {
		Updates []hyperdrive.OracleUpdate `serialize:"true" json:"updates"`
	}
)

func (*Transfer) isCall()               {}
func (*RegisterJob) isCall()            {}
func (*DeregisterJob) isCall()          {}
func (*UpdateAllowedSources) isCall()   {}
func (*SetEnvironment) isCall()         {}
func (*FinalizeJob) isCall()            {}
func (*Advertise) isCall()              {}
func (*DeleteAdvertisement) isCall()    {}
func (*ProposeMatching) isCall()        {}
func (*MatchJob) isCall()               {}
func (*AcknowledgeMatch) isCall()       {}
func (*Report) isCall()                 {}
func (*Heartbeat) isCall()              {}
func (*SubmitAttestation) isCall()      {}
func (*SendMessage) isCall()            {}
func (*SendTestMessage) isCall()        {}
func (*ConfirmMessageDelivery) isCall() {}
func (*ReceiveMessage) isCall()         {}
func (*RemoveMessage) isCall()          {}
func (*CleanOutgoing) isCall()          {}
func (*CleanIncoming) isCall()          {}
func (*UpdateOracles) isCall()          {}
