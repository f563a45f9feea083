// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	"bytes"

	"github.com/acurast/acurastvm/schedule"
	"github.com/acurast/acurastvm/types"
)

const (
	ScriptLen    = 53
	ScriptPrefix = "ipfs://"
)

// JobModule is a runtime capability a processor offers to scripts.
type JobModule uint8

const (
	ModuleDataEncryption JobModule = iota
	ModuleLLM

	numModules
)

func (m JobModule) Valid() bool { return m < numModules }

// PlannedExecution assigns one slot of a job to [Source], shifted by
// [StartDelay].
type PlannedExecution struct {
	Source     types.AccountID `serialize:"true" json:"source"`
	StartDelay uint64          `serialize:"true" json:"startDelay"`
}

// Match pairs every slot of a job with a distinct source.
type Match struct {
	JobID   types.JobID        `serialize:"true" json:"jobId"`
	Sources []PlannedExecution `serialize:"true" json:"sources"`
}

// JobRequirements are the marketplace terms of a registration.
type JobRequirements struct {
	Slots              uint8         `serialize:"true" json:"slots"`
	RewardPerExecution types.Balance `serialize:"true" json:"rewardPerExecution"`
	RewardAsset        types.AssetID `serialize:"true" json:"rewardAsset"`
	HasMinReputation   bool          `serialize:"true" json:"hasMinReputation"`
	MinReputation      types.Permill `serialize:"true" json:"minReputation"`
	// InstantMatch, when not empty, is matched during registration.
	InstantMatch []PlannedExecution `serialize:"true" json:"instantMatch"`
}

// JobRegistration describes what a consumer wants executed.
type JobRegistration struct {
	Script                   []byte            `serialize:"true" json:"script"`
	HasAllowedSources        bool              `serialize:"true" json:"hasAllowedSources"`
	AllowedSources           []types.AccountID `serialize:"true" json:"allowedSources"`
	AllowOnlyVerifiedSources bool              `serialize:"true" json:"allowOnlyVerifiedSources"`
	Schedule                 schedule.Schedule `serialize:"true" json:"schedule"`
	Memory                   uint32            `serialize:"true" json:"memory"`
	NetworkRequests          uint32            `serialize:"true" json:"networkRequests"`
	Storage                  uint32            `serialize:"true" json:"storage"`
	RequiredModules          []JobModule       `serialize:"true" json:"requiredModules"`
	Extra                    JobRequirements   `serialize:"true" json:"extra"`
}

// IsSourceAllowed reports whether the registration admits [source].
func (r *JobRegistration) IsSourceAllowed(source types.AccountID) bool {
	if !r.HasAllowedSources {
		return true
	}
	for _, allowed := range r.AllowedSources {
		if allowed == source {
			return true
		}
	}
	return false
}

// ValidScript checks the ipfs CID URI format.
func ValidScript(script []byte) bool {
	return len(script) == ScriptLen && bytes.HasPrefix(script, []byte(ScriptPrefix))
}

// JobStatus is the lifecycle state of a stored job.
type JobStatus uint8

const (
	StatusOpen JobStatus = iota
	StatusMatched
	// StatusAssigned means at least one matched source acknowledged.
	StatusAssigned
)

func (s JobStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusMatched:
		return "matched"
	case StatusAssigned:
		return "assigned"
	default:
		return "unknown"
	}
}

// Job is the stored state of a registration.
type Job struct {
	Registration JobRegistration `serialize:"true" json:"registration"`
	Creator      types.AccountID `serialize:"true" json:"creator"`
	Status       JobStatus       `serialize:"true" json:"status"`
	Acknowledged uint8           `serialize:"true" json:"acknowledged"`
	// Budget is the escrow not yet paid out.
	Budget types.Balance `serialize:"true" json:"budget"`
	// Sources holds the matched sources ordered by slot.
	Sources []types.AccountID `serialize:"true" json:"sources"`
}

// SchedulingWindowKind selects how far out a source accepts matches.
type SchedulingWindowKind uint8

const (
	// WindowEnd accepts jobs ending before an absolute timestamp.
	WindowEnd SchedulingWindowKind = iota
	// WindowDelta accepts jobs ending within a duration from now.
	WindowDelta
)

type SchedulingWindow struct {
	Kind  SchedulingWindowKind `serialize:"true" json:"kind"`
	Value uint64               `serialize:"true" json:"value"`
}

// Covers reports whether a job ending at [end] fits into the window at [now].
func (w SchedulingWindow) Covers(end, now uint64) bool {
	switch w.Kind {
	case WindowEnd:
		return end <= w.Value
	case WindowDelta:
		limit := now + w.Value
		if limit < now {
			return true
		}
		return end <= limit
	default:
		return false
	}
}

type Pricing struct {
	RewardAsset         types.AssetID    `serialize:"true" json:"rewardAsset"`
	FeePerMillisecond   types.Balance    `serialize:"true" json:"feePerMillisecond"`
	FeePerStorageByte   types.Balance    `serialize:"true" json:"feePerStorageByte"`
	BaseFeePerExecution types.Balance    `serialize:"true" json:"baseFeePerExecution"`
	SchedulingWindow    SchedulingWindow `serialize:"true" json:"schedulingWindow"`
}

// Advertisement is what a processor offers to the marketplace.
type Advertisement struct {
	Pricing             Pricing             `serialize:"true" json:"pricing"`
	MaxMemory           uint32              `serialize:"true" json:"maxMemory"`
	NetworkRequestQuota uint32              `serialize:"true" json:"networkRequestQuota"`
	StorageCapacity     uint32              `serialize:"true" json:"storageCapacity"`
	HasAllowedConsumers bool                `serialize:"true" json:"hasAllowedConsumers"`
	AllowedConsumers    []types.MultiOrigin `serialize:"true" json:"allowedConsumers"`
	AvailableModules    []JobModule         `serialize:"true" json:"availableModules"`
}

func (a *Advertisement) allowsConsumer(consumer types.MultiOrigin) bool {
	if !a.HasAllowedConsumers {
		return true
	}
	for _, allowed := range a.AllowedConsumers {
		if allowed.Equal(consumer) {
			return true
		}
	}
	return false
}

func (a *Advertisement) hasModules(required []JobModule) bool {
	for _, m := range required {
		found := false
		for _, available := range a.AvailableModules {
			if available == m {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SLA counts scheduled and successfully met executions.
type SLA struct {
	Total uint64 `serialize:"true" json:"total"`
	Met   uint64 `serialize:"true" json:"met"`
}

// PubKey is a processing key a source reveals on acknowledgement.
type PubKey struct {
	Scheme uint8  `serialize:"true" json:"scheme"`
	Key    []byte `serialize:"true" json:"key"`
}

// Assignment is the state of one matched (job, source) pair.
type Assignment struct {
	Slot              uint8         `serialize:"true" json:"slot"`
	StartDelay        uint64        `serialize:"true" json:"startDelay"`
	FeePerExecution   types.Balance `serialize:"true" json:"feePerExecution"`
	Acknowledged      bool          `serialize:"true" json:"acknowledged"`
	SLA               SLA           `serialize:"true" json:"sla"`
	PubKeys           []PubKey      `serialize:"true" json:"pubKeys"`
	HasReported       bool          `serialize:"true" json:"hasReported"`
	LastReportedIndex uint64        `serialize:"true" json:"lastReportedIndex"`
}

// ExecutionResult is what a source reports for one execution.
type ExecutionResult struct {
	Success bool   `serialize:"true" json:"success"`
	Payload []byte `serialize:"true" json:"payload"`
}

type EnvironmentVariable struct {
	Key   []byte `serialize:"true" json:"key"`
	Value []byte `serialize:"true" json:"value"`
}

// Environment carries encrypted variables a creator hands to one source.
type Environment struct {
	PublicKey []byte                `serialize:"true" json:"publicKey"`
	Variables []EnvironmentVariable `serialize:"true" json:"variables"`
}

// AllowedSourcesOp is one step of an allowed sources update.
type AllowedSourcesOp uint8

const (
	OpAdd AllowedSourcesOp = iota
	OpRemove
)

type AllowedSourceUpdate struct {
	Op     AllowedSourcesOp `serialize:"true" json:"op"`
	Source types.AccountID  `serialize:"true" json:"source"`
}

// MatchedJob is returned by the matched jobs query.
type MatchedJob struct {
	JobID        types.JobID     `json:"jobId"`
	Registration JobRegistration `json:"registration"`
	Assignment   Assignment      `json:"assignment"`
}
