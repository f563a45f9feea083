// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/acurast/acurastvm/assets"
	"github.com/acurast/acurastvm/attestation"
	"github.com/acurast/acurastvm/schedule"
	"github.com/acurast/acurastvm/types"
)

const (
	reward    = 10_000_000
	jobStart  = 1_000_000
	interval  = 100_000
	duration  = 5_000
	tolerance = 10_000
	endowment = 1_000_000_000
)

var (
	consumer   = ids.ShortID{0xc0}
	processorA = ids.ShortID{0x01}
	processorB = ids.ShortID{0x02}
	processorC = ids.ShortID{0x03}

	script = []byte("ipfs://QmUvQRDnTN4cXpyiYSGeVKmXaHYaGdqDbVUybWw3yXXwMd")
)

type testEnv struct {
	ledger *assets.Ledger
	attest *attestation.Store
	events *types.EventLog
	params Params
	m      *Marketplace
}

func newTestEnv(t *testing.T, opts ...func(*Params)) *testEnv {
	db := memdb.New()
	ledger := assets.NewPrefixed([]byte("assets"), db)
	attest := attestation.New(memdb.New())
	events := &types.EventLog{}
	params := DefaultParams()
	params.ReportTolerance = tolerance
	for _, opt := range opts {
		opt(&params)
	}

	require.NoError(t, ledger.Mint(types.NativeAsset, consumer, endowment))
	return &testEnv{
		ledger: ledger,
		attest: attest,
		events: events,
		params: params,
		m: New(db, params, Deps{
			Currency:     ledger,
			Attestations: attest,
			Events:       events,
		}),
	}
}

func (e *testEnv) balance(t *testing.T, account types.AccountID) types.Balance {
	balance, err := e.ledger.BalanceOf(types.NativeAsset, account)
	require.NoError(t, err)
	return balance
}

func registration(executions uint64) *JobRegistration {
	return &JobRegistration{
		Script: script,
		Schedule: schedule.Schedule{
			Duration:  duration,
			StartTime: jobStart,
			EndTime:   jobStart + executions*interval,
			Interval:  interval,
		},
		Memory:          100,
		NetworkRequests: 10,
		Storage:         1_000,
		Extra: JobRequirements{
			Slots:              1,
			RewardPerExecution: reward,
		},
	}
}

// advertisement prices an execution of [registration] at 5_000_000.
func advertisement() *Advertisement {
	return &Advertisement{
		Pricing: Pricing{
			FeePerMillisecond: 1_000,
			SchedulingWindow:  SchedulingWindow{Kind: WindowDelta, Value: 100 * interval},
		},
		MaxMemory:           1_000,
		NetworkRequestQuota: 100,
		StorageCapacity:     10_000,
	}
}

func TestRegisterEscrow(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	reg := registration(2)
	require.Equal(uint64(2), reg.Schedule.ExecutionCount())

	id, err := e.m.Register(consumer, reg, 0)
	require.NoError(err)
	require.Equal(uint64(1), id.Seq)

	require.Equal(uint64(endowment-2*reward), e.balance(t, consumer))
	require.Equal(uint64(2*reward), e.balance(t, EscrowAccount))

	job, err := e.m.Job(id)
	require.NoError(err)
	require.Equal(StatusOpen, job.Status)
	require.Equal(uint64(2*reward), job.Budget)
	require.Equal(consumer, job.Creator)

	id2, err := e.m.Register(consumer, reg, 0)
	require.NoError(err)
	require.Equal(uint64(2), id2.Seq)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*JobRegistration)
		err    error
	}{
		{"short script", func(r *JobRegistration) { r.Script = r.Script[:52] }, ErrInvalidScriptValue},
		{"wrong prefix", func(r *JobRegistration) { r.Script = append([]byte("ipfz"), r.Script[4:]...) }, ErrInvalidScriptValue},
		{"empty allowed sources", func(r *JobRegistration) { r.HasAllowedSources = true }, ErrTooFewAllowedSources},
		{"too many allowed sources", func(r *JobRegistration) {
			r.HasAllowedSources = true
			r.AllowedSources = make([]types.AccountID, DefaultParams().MaxAllowedSources+1)
		}, ErrTooManyAllowedSources},
		{"zero interval", func(r *JobRegistration) { r.Schedule.Interval = 0 }, ErrInvalidSchedule},
		{"start in past", func(r *JobRegistration) {
			r.Schedule.StartTime = 10
			r.Schedule.EndTime = 10 + interval
		}, ErrStartInPast},
		{"zero slots", func(r *JobRegistration) { r.Extra.Slots = 0 }, ErrInvalidSlots},
		{"zero reward", func(r *JobRegistration) { r.Extra.RewardPerExecution = 0 }, ErrZeroReward},
		{"unknown module", func(r *JobRegistration) { r.RequiredModules = []JobModule{9} }, ErrTooManyRequiredModules},
		{"overflowing escrow", func(r *JobRegistration) { r.Extra.RewardPerExecution = 1 << 63 }, ErrCalculationOverflow},
		{"insufficient balance", func(r *JobRegistration) { r.Extra.RewardPerExecution = endowment }, assets.ErrInsufficientBalance},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := newTestEnv(t)
			reg := registration(2)
			test.modify(reg)
			_, err := e.m.Register(consumer, reg, 100)
			require.ErrorIs(t, err, test.err)
			require.Equal(t, uint64(endowment), e.balance(t, consumer))
		})
	}
}

func TestLifecycle(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	id, err := e.m.Register(consumer, registration(2), 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(id, 10))

	job, err := e.m.Job(id)
	require.NoError(err)
	require.Equal(StatusMatched, job.Status)
	require.Equal([]types.AccountID{processorA}, job.Sources)

	assignment, found, err := e.m.Assignment(processorA, id)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(5_000_000), assignment.FeePerExecution)

	remaining, err := e.m.RemainingStorage(processorA)
	require.NoError(err)
	require.Equal(uint64(9_000), remaining)

	// reports need an acknowledged assignment
	require.ErrorIs(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart), ErrReportFromUnassignedSource)
	require.NoError(e.m.Acknowledge(processorA, id, []PubKey{{Key: []byte{1}}}))
	require.ErrorIs(e.m.Acknowledge(processorA, id, nil), ErrCannotAcknowledge)
	require.ErrorIs(e.m.Acknowledge(processorB, id, nil), ErrCannotAcknowledge)

	require.ErrorIs(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart-1), ErrReportOutsideTolerance)
	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart+10))

	score, err := e.m.Reputation(processorA, types.NativeAsset)
	require.NoError(err)
	require.Equal(types.Permill(666_666), score)

	// a second report for the same execution pays nothing
	require.ErrorIs(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart+20), ErrDuplicateReport)
	require.Equal(uint64(3_500_000), e.balance(t, processorA))

	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart+interval))
	score, err = e.m.Reputation(processorA, types.NativeAsset)
	require.NoError(err)
	require.Equal(types.Permill(743_589), score)

	// processor earns 2 * (price - 30% of price)
	require.Equal(uint64(2*(5_000_000-1_500_000)), e.balance(t, processorA))
	require.Equal(uint64(2*1_500_000), e.balance(t, e.params.FeeManager))
	// the unspent escrow went back to the consumer with the last report
	require.Equal(uint64(endowment-2*5_000_000), e.balance(t, consumer))
	require.Zero(e.balance(t, EscrowAccount))

	_, err = e.m.Job(id)
	require.ErrorIs(err, ErrJobNotFound)
	matched, err := e.m.MatchedJobs(processorA)
	require.NoError(err)
	require.Empty(matched)
	remaining, err = e.m.RemainingStorage(processorA)
	require.NoError(err)
	require.Equal(uint64(10_000), remaining)
}

func TestReportTooLate(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	id, err := e.m.Register(consumer, registration(3), 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(id, 10))
	require.NoError(e.m.Acknowledge(processorA, id, nil))

	require.ErrorIs(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart+duration+tolerance+1), ErrReportOutsideTolerance)
	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart+duration+tolerance))
}

func TestMissedExecutions(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	id, err := e.m.Register(consumer, registration(4), 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(id, 10))
	require.NoError(e.m.Acknowledge(processorA, id, nil))

	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart))
	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart+2*interval))
	assignment, _, err := e.m.Assignment(processorA, id)
	require.NoError(err)
	require.Equal(SLA{Total: 3, Met: 2}, assignment.SLA)

	score, err := e.m.Reputation(processorA, types.NativeAsset)
	require.NoError(err)
	// success, one missed, success
	require.Equal(types.Permill(596_602), score)

	// two payments only; the missed execution stays in escrow
	require.Equal(uint64(2*3_500_000), e.balance(t, processorA))
}

func TestMissedExecutionsReputation(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	id, err := e.m.Register(consumer, registration(4), 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(id, 10))
	require.NoError(e.m.Acknowledge(processorA, id, nil))

	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart))
	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart+3*interval))

	score, err := e.m.Reputation(processorA, types.NativeAsset)
	require.NoError(err)
	require.Equal(types.Permill(501_746), score)
}

func TestReputationWeightedByReward(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	pricey := advertisement()
	pricey.Pricing.FeePerMillisecond = 2_000
	require.NoError(e.m.Advertise(processorB, pricey))

	cheap := registration(2)
	cheap.HasAllowedSources = true
	cheap.AllowedSources = []types.AccountID{processorA}
	first, err := e.m.Register(consumer, cheap, 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(first, 10))
	require.NoError(e.m.Acknowledge(processorA, first, nil))
	require.NoError(e.m.Report(processorA, first, false, ExecutionResult{Success: true}, jobStart))

	// the first report of an asset weighs one unit
	score, err := e.m.Reputation(processorA, types.NativeAsset)
	require.NoError(err)
	require.Equal(types.Permill(666_666), score)

	expensive := registration(2)
	expensive.HasAllowedSources = true
	expensive.AllowedSources = []types.AccountID{processorB}
	second, err := e.m.Register(consumer, expensive, 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(second, 10))
	assignment, found, err := e.m.Assignment(processorB, second)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(10_000_000), assignment.FeePerExecution)
	require.NoError(e.m.Acknowledge(processorB, second, nil))
	require.NoError(e.m.Report(processorB, second, false, ExecutionResult{Success: true}, jobStart))

	// paid twice the average fee, the success counts twice: 3/4
	score, err = e.m.Reputation(processorB, types.NativeAsset)
	require.NoError(err)
	require.Equal(types.Permill(750_000), score)
}

func TestFulfillmentFeeReserve(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, func(p *Params) { p.FulfillmentFee = 1_000_000 })

	require.NoError(e.m.Advertise(processorA, advertisement()))
	id, err := e.m.Register(consumer, registration(3), 0)
	require.NoError(err)
	require.Equal(uint64(3*(reward+1_000_000)), e.balance(t, EscrowAccount))

	require.NoError(e.m.MatchJob(id, 10))
	require.NoError(e.m.Acknowledge(processorA, id, nil))
	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart))
	// 70% of the price plus the whole fulfillment fee
	require.Equal(uint64(3_500_000+1_000_000), e.balance(t, processorA))
	require.Equal(uint64(1_500_000), e.balance(t, e.params.FeeManager))

	require.NoError(e.m.Report(processorA, id, true, ExecutionResult{Success: true}, jobStart+interval))
	require.Equal(uint64(2*4_500_000), e.balance(t, processorA))
	// the reserve of the execution never run is refunded with the rest
	require.Equal(uint64(endowment-2*(5_000_000+1_000_000)), e.balance(t, consumer))
	require.Zero(e.balance(t, EscrowAccount))
}

func TestPayEscrowExhausted(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, func(p *Params) { p.FulfillmentFee = 10 })
	require.NoError(e.ledger.Mint(types.NativeAsset, EscrowAccount, 5_000_010))

	job := &Job{Registration: *registration(1), Budget: 5_000_005}
	_, _, err := e.m.pay(job, processorA, 5_000_000)
	require.ErrorIs(err, ErrEscrowExhausted)
	require.Equal(uint64(5_000_005), job.Budget)
	require.Zero(e.balance(t, processorA))

	job.Budget = 5_000_010
	payout, fee, err := e.m.pay(job, processorA, 5_000_000)
	require.NoError(err)
	require.Equal(uint64(3_500_010), payout)
	require.Equal(uint64(1_500_000), fee)
	require.Zero(job.Budget)
}

func TestEscrowConservation(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	require.NoError(e.m.Advertise(processorB, advertisement()))
	reg := registration(5)
	reg.Extra.Slots = 2
	id, err := e.m.Register(consumer, reg, 0)
	require.NoError(err)
	escrow := e.balance(t, EscrowAccount)
	require.Equal(uint64(2*5*reward), escrow)

	require.NoError(e.m.MatchJob(id, 10))
	require.NoError(e.m.Acknowledge(processorA, id, nil))
	require.NoError(e.m.Acknowledge(processorB, id, nil))

	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart))
	require.NoError(e.m.Report(processorB, id, false, ExecutionResult{Success: false}, jobStart+1))
	require.NoError(e.m.Report(processorA, id, false, ExecutionResult{Success: true}, jobStart+2*interval))
	require.NoError(e.m.Report(processorA, id, true, ExecutionResult{Success: true}, jobStart+3*interval))

	// processor B still holds its slot
	job, err := e.m.Job(id)
	require.NoError(err)
	require.Equal([]types.AccountID{processorB}, job.Sources)

	require.ErrorIs(e.m.FinalizeJob(types.AcurastOrigin(consumer), id, jobStart+4*interval), ErrCannotFinalizeJob)
	require.NoError(e.m.FinalizeJob(types.AcurastOrigin(consumer), id, jobStart+5*interval))

	payouts := e.balance(t, processorA) + e.balance(t, processorB)
	fees := e.balance(t, e.params.FeeManager)
	refund := e.balance(t, consumer) - (endowment - escrow)
	require.Equal(escrow, payouts+fees+refund)
	require.Zero(e.balance(t, EscrowAccount))
}

func TestDeregister(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	id, err := e.m.Register(consumer, registration(2), 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(id, 10))

	require.ErrorIs(e.m.Deregister(types.AcurastOrigin(processorA), id), ErrNotJobCreator)
	require.ErrorIs(e.m.DeleteAdvertisement(processorA), ErrCannotDeleteAdvertisementWhileMatched)

	require.NoError(e.m.Deregister(types.AcurastOrigin(consumer), id))
	require.Equal(uint64(endowment), e.balance(t, consumer))
	require.ErrorIs(e.m.Deregister(types.AcurastOrigin(consumer), id), ErrRegistrationNotFound)

	require.NoError(e.m.DeleteAdvertisement(processorA))
	require.ErrorIs(e.m.DeleteAdvertisement(processorA), ErrAdvertisementNotFound)
}

func TestMatchJobFirstFit(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	expensive := advertisement()
	expensive.Pricing.FeePerMillisecond = 10_000
	require.NoError(e.m.Advertise(processorC, advertisement()))
	require.NoError(e.m.Advertise(processorA, expensive))
	require.NoError(e.m.Advertise(processorB, advertisement()))

	reg := registration(2)
	reg.Extra.Slots = 2
	id, err := e.m.Register(consumer, reg, 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(id, 10))

	job, err := e.m.Job(id)
	require.NoError(err)
	require.Equal([]types.AccountID{processorB, processorC}, job.Sources)

	reg.Extra.Slots = 3
	id, err = e.m.Register(consumer, reg, 0)
	require.NoError(err)
	require.ErrorIs(e.m.MatchJob(id, 10), ErrNoMatchFound)
}

func TestProposeMatchingRejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testing.T, *testEnv, *JobRegistration, *Advertisement)
		match func(types.JobID) Match
		now   uint64
		err   error
	}{
		{
			name: "overdue",
			now:  jobStart,
			err:  ErrOverdueMatch,
		},
		{
			name: "start delay",
			match: func(id types.JobID) Match {
				return Match{JobID: id, Sources: []PlannedExecution{{Source: processorA, StartDelay: 1}}}
			},
			err: ErrInvalidStartDelay,
		},
		{
			name: "source count",
			match: func(id types.JobID) Match {
				return Match{JobID: id, Sources: []PlannedExecution{{Source: processorA}, {Source: processorB}}}
			},
			err: ErrIncorrectSourceCountInMatch,
		},
		{
			name: "duplicate source",
			setup: func(_ *testing.T, _ *testEnv, reg *JobRegistration, _ *Advertisement) {
				reg.Extra.Slots = 2
			},
			match: func(id types.JobID) Match {
				return Match{JobID: id, Sources: []PlannedExecution{{Source: processorA}, {Source: processorA}}}
			},
			err: ErrDuplicateSourceInMatch,
		},
		{
			name: "not in allowed sources",
			setup: func(_ *testing.T, _ *testEnv, reg *JobRegistration, _ *Advertisement) {
				reg.HasAllowedSources = true
				reg.AllowedSources = []types.AccountID{processorB}
			},
			err: ErrSourceNotAllowed,
		},
		{
			name: "consumer not allowed",
			setup: func(_ *testing.T, _ *testEnv, _ *JobRegistration, ad *Advertisement) {
				ad.HasAllowedConsumers = true
				ad.AllowedConsumers = []types.MultiOrigin{types.AcurastOrigin(processorB)}
			},
			err: ErrSourceNotAllowed,
		},
		{
			name: "not attested",
			setup: func(_ *testing.T, _ *testEnv, reg *JobRegistration, _ *Advertisement) {
				reg.AllowOnlyVerifiedSources = true
			},
			err: ErrSourceNotAllowed,
		},
		{
			name: "reputation",
			setup: func(_ *testing.T, _ *testEnv, reg *JobRegistration, _ *Advertisement) {
				reg.Extra.HasMinReputation = true
				reg.Extra.MinReputation = 600_000
			},
			err: ErrSourceNotAllowed,
		},
		{
			name: "window",
			setup: func(_ *testing.T, _ *testEnv, _ *JobRegistration, ad *Advertisement) {
				ad.Pricing.SchedulingWindow = SchedulingWindow{Kind: WindowEnd, Value: jobStart}
			},
			err: ErrSchedulingWindowExceededInMatch,
		},
		{
			name: "memory",
			setup: func(_ *testing.T, _ *testEnv, reg *JobRegistration, _ *Advertisement) {
				reg.Memory = 1_001
			},
			err: ErrMaxMemoryExceededInMatch,
		},
		{
			name: "storage",
			setup: func(_ *testing.T, _ *testEnv, reg *JobRegistration, _ *Advertisement) {
				reg.Storage = 10_001
			},
			err: ErrInsufficientStorageCapacity,
		},
		{
			name: "modules",
			setup: func(_ *testing.T, _ *testEnv, reg *JobRegistration, _ *Advertisement) {
				reg.RequiredModules = []JobModule{ModuleLLM}
			},
			err: ErrModuleNotAvailableInMatch,
		},
		{
			name: "price",
			setup: func(_ *testing.T, _ *testEnv, _ *JobRegistration, ad *Advertisement) {
				ad.Pricing.BaseFeePerExecution = 5_000_001
			},
			err: ErrInsufficientRewardInMatch,
		},
		{
			name: "reward asset",
			setup: func(_ *testing.T, _ *testEnv, _ *JobRegistration, ad *Advertisement) {
				ad.Pricing.RewardAsset = 1
			},
			err: ErrAdvertisementPricingNotFound,
		},
		{
			name: "job not found",
			match: func(types.JobID) Match {
				return Match{JobID: types.JobID{Origin: types.AcurastOrigin(consumer), Seq: 99}}
			},
			err: ErrJobNotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := newTestEnv(t)
			reg := registration(2)
			ad := advertisement()
			if test.setup != nil {
				test.setup(t, e, reg, ad)
			}
			require.NoError(t, e.m.Advertise(processorA, ad))
			require.NoError(t, e.m.Advertise(processorB, advertisement()))
			id, err := e.m.Register(consumer, reg, 0)
			require.NoError(t, err)

			match := Match{JobID: id, Sources: []PlannedExecution{{Source: processorA}}}
			if test.match != nil {
				match = test.match(id)
			}
			now := test.now
			if now == 0 {
				now = 10
			}
			require.ErrorIs(t, e.m.ProposeMatching([]Match{match}, now), test.err)

			job, err := e.m.Job(id)
			require.NoError(t, err)
			require.Equal(t, StatusOpen, job.Status)
		})
	}
}

func TestAttestedSourceMatches(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.attest.Put(processorA, attestation.Attestation{IssuedAt: 0, ExpiresAt: 1 << 40}))
	require.NoError(e.m.Advertise(processorA, advertisement()))
	reg := registration(2)
	reg.AllowOnlyVerifiedSources = true
	id, err := e.m.Register(consumer, reg, 0)
	require.NoError(err)
	require.NoError(e.m.ProposeMatching([]Match{{JobID: id, Sources: []PlannedExecution{{Source: processorA}}}}, 10))
}

func TestCapacityConflict(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	first, err := e.m.Register(consumer, registration(3), 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(first, 10))

	second, err := e.m.Register(consumer, registration(3), 0)
	require.NoError(err)
	require.ErrorIs(e.m.MatchJob(second, 10), ErrNoMatchFound)
	require.ErrorIs(
		e.m.ProposeMatching([]Match{{JobID: second, Sources: []PlannedExecution{{Source: processorA}}}}, 10),
		ErrCapacityConflict,
	)

	// shifted by half an interval the executions interleave
	shifted := registration(3)
	shifted.Schedule.StartTime += interval / 2
	shifted.Schedule.EndTime += interval / 2
	third, err := e.m.Register(consumer, shifted, 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(third, 10))

	remaining, err := e.m.RemainingStorage(processorA)
	require.NoError(err)
	require.Equal(uint64(8_000), remaining)
}

func TestInstantMatch(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	reg := registration(2)
	reg.Extra.InstantMatch = []PlannedExecution{{Source: processorA}}
	id, err := e.m.Register(consumer, reg, 0)
	require.NoError(err)

	job, err := e.m.Job(id)
	require.NoError(err)
	require.Equal(StatusMatched, job.Status)

	matched, err := e.m.MatchedJobs(processorA)
	require.NoError(err)
	require.Len(matched, 1)
	require.True(matched[0].JobID.Equal(id))
}

func TestUpdateAllowedSources(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	id, err := e.m.Register(consumer, registration(2), 0)
	require.NoError(err)
	origin := types.AcurastOrigin(consumer)

	require.NoError(e.m.UpdateAllowedSources(origin, id, []AllowedSourceUpdate{
		{Op: OpAdd, Source: processorA},
		{Op: OpAdd, Source: processorA},
		{Op: OpAdd, Source: processorB},
		{Op: OpRemove, Source: processorC},
		{Op: OpRemove, Source: processorB},
	}))
	job, err := e.m.Job(id)
	require.NoError(err)
	require.True(job.Registration.HasAllowedSources)
	require.Equal([]types.AccountID{processorA}, job.Registration.AllowedSources)

	require.NoError(e.m.UpdateAllowedSources(origin, id, []AllowedSourceUpdate{{Op: OpRemove, Source: processorA}}))
	job, err = e.m.Job(id)
	require.NoError(err)
	require.False(job.Registration.HasAllowedSources)

	require.ErrorIs(e.m.UpdateAllowedSources(types.AcurastOrigin(processorA), id, nil), ErrNotJobCreator)
}

func TestAdvertiseStorageBookkeeping(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	id, err := e.m.Register(consumer, registration(2), 0)
	require.NoError(err)
	require.NoError(e.m.MatchJob(id, 10))

	smaller := advertisement()
	smaller.StorageCapacity = 999
	require.ErrorIs(e.m.Advertise(processorA, smaller), ErrStorageCapacityBelowUsage)

	smaller.StorageCapacity = 4_000
	require.NoError(e.m.Advertise(processorA, smaller))
	remaining, err := e.m.RemainingStorage(processorA)
	require.NoError(err)
	require.Equal(uint64(3_000), remaining)

	tooMany := advertisement()
	tooMany.HasAllowedConsumers = true
	require.ErrorIs(e.m.Advertise(processorB, tooMany), ErrTooFewAllowedConsumers)
}

func TestEnvironment(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	require.NoError(e.m.Advertise(processorA, advertisement()))
	id, err := e.m.Register(consumer, registration(2), 0)
	require.NoError(err)
	origin := types.AcurastOrigin(consumer)
	env := &Environment{
		PublicKey: []byte{1, 2, 3},
		Variables: []EnvironmentVariable{{Key: []byte("API_KEY"), Value: []byte("secret")}},
	}

	require.ErrorIs(e.m.SetEnvironment(origin, id, processorA, env), ErrEnvironmentSourceNotAssigned)
	require.NoError(e.m.MatchJob(id, 10))
	require.NoError(e.m.SetEnvironment(origin, id, processorA, env))

	stored, err := e.m.JobEnvironment(id, processorA)
	require.NoError(err)
	require.Equal(env, stored)

	long := &Environment{Variables: []EnvironmentVariable{{Key: make([]byte, 33)}}}
	require.ErrorIs(e.m.SetEnvironment(origin, id, processorA, long), ErrEnvironmentVariableTooLong)

	require.NoError(e.m.Deregister(origin, id))
	_, err = e.m.JobEnvironment(id, processorA)
	require.ErrorIs(err, ErrEnvironmentNotFound)
}

func TestFilterMatchingSources(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	small := advertisement()
	small.MaxMemory = 10
	require.NoError(e.m.Advertise(processorA, advertisement()))
	require.NoError(e.m.Advertise(processorB, small))
	require.NoError(e.m.Advertise(processorC, advertisement()))
	require.NoError(e.m.Heartbeat(processorC, 500))

	origin := types.AcurastOrigin(consumer)
	sources, err := e.m.FilterMatchingSources(registration(2), origin, nil, nil, 10)
	require.NoError(err)
	require.Equal([]types.AccountID{processorA, processorC}, sources)

	after := uint64(100)
	sources, err = e.m.FilterMatchingSources(registration(2), origin, nil, &after, 10)
	require.NoError(err)
	require.Equal([]types.AccountID{processorC}, sources)

	sources, err = e.m.FilterMatchingSources(registration(2), origin, []types.AccountID{processorB}, nil, 10)
	require.NoError(err)
	require.Empty(sources)
}
