// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ethereum holds the Ethereum encodings of hyperdrive: the ABI of job
// registrations sent from Ethereum and the storage proofs of the Ethereum
// hyperdrive contract.
package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/schedule"
	"github.com/acurast/acurastvm/types"
)

// The fields of these structs follow the ABI tuple component order.
type abiSchedule struct {
	Duration      uint64
	StartTime     uint64
	EndTime       uint64
	Interval      uint64
	MaxStartDelay uint64
}

type abiPlannedExecution struct {
	Source     common.Address
	StartDelay uint64
}

type abiRequirements struct {
	Slots         uint8
	Reward        *big.Int
	RewardAsset   uint32
	MinReputation uint32
	InstantMatch  []abiPlannedExecution
}

type abiJobRegistration struct {
	Script                   []byte
	AllowedSources           []common.Address
	AllowOnlyVerifiedSources bool
	Schedule                 abiSchedule
	Memory                   uint32
	NetworkRequests          uint32
	Storage                  uint32
	RequiredModules          []uint8
	Extra                    abiRequirements
}

var registrationArgs abi.Arguments

func init() {
	registrationType, err := abi.NewType("tuple", "AcurastJobRegistration", []abi.ArgumentMarshaling{
		{Name: "script", Type: "bytes"},
		{Name: "allowedSources", Type: "address[]"},
		{Name: "allowOnlyVerifiedSources", Type: "bool"},
		{
			Name: "schedule",
			Type: "tuple",
			Components: []abi.ArgumentMarshaling{
				{Name: "duration", Type: "uint64"},
				{Name: "startTime", Type: "uint64"},
				{Name: "endTime", Type: "uint64"},
				{Name: "interval", Type: "uint64"},
				{Name: "maxStartDelay", Type: "uint64"},
			},
		},
		{Name: "memory", Type: "uint32"},
		{Name: "networkRequests", Type: "uint32"},
		{Name: "storage", Type: "uint32"},
		{Name: "requiredModules", Type: "uint8[]"},
		{
			Name: "extra",
			Type: "tuple",
			Components: []abi.ArgumentMarshaling{
				{Name: "slots", Type: "uint8"},
				{Name: "reward", Type: "uint128"},
				{Name: "rewardAsset", Type: "uint32"},
				{Name: "minReputation", Type: "uint32"},
				{
					Name: "instantMatch",
					Type: "tuple[]",
					Components: []abi.ArgumentMarshaling{
						{Name: "source", Type: "address"},
						{Name: "startDelay", Type: "uint64"},
					},
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	registrationArgs = abi.Arguments{{Type: registrationType}}
}

// EncodeJobRegistration ABI-encodes [reg] as a single AcurastJobRegistration
// tuple. A missing minimum reputation is encoded as 0.
func EncodeJobRegistration(reg *marketplace.JobRegistration) ([]byte, error) {
	out := abiJobRegistration{
		Script:                   reg.Script,
		AllowedSources:           make([]common.Address, 0, len(reg.AllowedSources)),
		AllowOnlyVerifiedSources: reg.AllowOnlyVerifiedSources,
		Schedule: abiSchedule{
			Duration:      reg.Schedule.Duration,
			StartTime:     reg.Schedule.StartTime,
			EndTime:       reg.Schedule.EndTime,
			Interval:      reg.Schedule.Interval,
			MaxStartDelay: reg.Schedule.MaxStartDelay,
		},
		Memory:          reg.Memory,
		NetworkRequests: reg.NetworkRequests,
		Storage:         reg.Storage,
		RequiredModules: make([]uint8, 0, len(reg.RequiredModules)),
		Extra: abiRequirements{
			Slots:        reg.Extra.Slots,
			Reward:       new(big.Int).SetUint64(reg.Extra.RewardPerExecution),
			RewardAsset:  uint32(reg.Extra.RewardAsset),
			InstantMatch: make([]abiPlannedExecution, 0, len(reg.Extra.InstantMatch)),
		},
	}
	for _, source := range reg.AllowedSources {
		out.AllowedSources = append(out.AllowedSources, common.Address(source))
	}
	for _, module := range reg.RequiredModules {
		out.RequiredModules = append(out.RequiredModules, uint8(module))
	}
	if reg.Extra.HasMinReputation {
		out.Extra.MinReputation = reg.Extra.MinReputation.Parts()
	}
	for _, planned := range reg.Extra.InstantMatch {
		out.Extra.InstantMatch = append(out.Extra.InstantMatch, abiPlannedExecution{
			Source:     common.Address(planned.Source),
			StartDelay: planned.StartDelay,
		})
	}
	return registrationArgs.Pack(out)
}

// DecodeJobRegistration parses an ABI-encoded AcurastJobRegistration. An
// empty allowed sources list admits every source.
func DecodeJobRegistration(data []byte) (*marketplace.JobRegistration, error) {
	var decoded struct {
		Registration abiJobRegistration
	}
	values, err := registrationArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack job registration: %w", err)
	}
	if err := registrationArgs.Copy(&decoded, values); err != nil {
		return nil, fmt.Errorf("failed to copy job registration: %w", err)
	}
	in := decoded.Registration
	if in.Extra.Reward == nil || !in.Extra.Reward.IsUint64() {
		return nil, fmt.Errorf("reward %v does not fit a balance", in.Extra.Reward)
	}

	reg := &marketplace.JobRegistration{
		Script:                   in.Script,
		HasAllowedSources:        len(in.AllowedSources) > 0,
		AllowOnlyVerifiedSources: in.AllowOnlyVerifiedSources,
		Schedule: schedule.Schedule{
			Duration:      in.Schedule.Duration,
			StartTime:     in.Schedule.StartTime,
			EndTime:       in.Schedule.EndTime,
			Interval:      in.Schedule.Interval,
			MaxStartDelay: in.Schedule.MaxStartDelay,
		},
		Memory:          in.Memory,
		NetworkRequests: in.NetworkRequests,
		Storage:         in.Storage,
		Extra: marketplace.JobRequirements{
			Slots:              in.Extra.Slots,
			RewardPerExecution: in.Extra.Reward.Uint64(),
			RewardAsset:        types.AssetID(in.Extra.RewardAsset),
			HasMinReputation:   in.Extra.MinReputation > 0,
			MinReputation:      types.Permill(in.Extra.MinReputation),
		},
	}
	for _, source := range in.AllowedSources {
		reg.AllowedSources = append(reg.AllowedSources, ids.ShortID(source))
	}
	for _, module := range in.RequiredModules {
		reg.RequiredModules = append(reg.RequiredModules, marketplace.JobModule(module))
	}
	for _, planned := range in.Extra.InstantMatch {
		reg.Extra.InstantMatch = append(reg.Extra.InstantMatch, marketplace.PlannedExecution{
			Source:     ids.ShortID(planned.Source),
			StartDelay: planned.StartDelay,
		})
	}
	return reg, nil
}
