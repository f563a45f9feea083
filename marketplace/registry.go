// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	errorsmod "cosmossdk.io/errors"

	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/acurast/acurastvm/types"
)

// Register stores a job of a local account under the next local sequence.
func (m *Marketplace) Register(caller types.AccountID, reg *JobRegistration, now uint64) (types.JobID, error) {
	seq, err := m.nextLocalSequence()
	if err != nil {
		return types.JobID{}, err
	}
	id := types.JobID{Origin: types.AcurastOrigin(caller), Seq: seq}
	return id, m.RegisterWithID(id, reg, now)
}

// RegisterWithID validates [reg], escrows its rewards from the origin's owner
// and stores it under [id]. A non-empty instant match is applied right away.
func (m *Marketplace) RegisterWithID(id types.JobID, reg *JobRegistration, now uint64) error {
	if err := id.Origin.Verify(); err != nil {
		return errorsmod.Wrap(ErrInvalidOrigin, err.Error())
	}
	if err := m.validateRegistration(reg, now); err != nil {
		return err
	}
	_, exists, err := m.getJob(id)
	if err != nil {
		return err
	}
	if exists {
		return errorsmod.Wrap(ErrJobAlreadyRegistered, id.String())
	}

	escrow, err := TotalEscrow(reg, m.params.FulfillmentFee)
	if err != nil {
		return err
	}
	creator := id.Origin.Owner()
	if err := m.currency.Transfer(reg.Extra.RewardAsset, creator, EscrowAccount, escrow); err != nil {
		return err
	}

	job := &Job{
		Registration: *reg,
		Creator:      creator,
		Status:       StatusOpen,
		Budget:       escrow,
	}
	if err := m.putJob(id, job); err != nil {
		return err
	}
	m.emit(EventTypeJobRegistrationStored,
		jobAttr(id),
		types.NewAttribute(AttributeKeyCreator, creator.String()),
	)
	m.metrics.JobRegistered()

	if len(reg.Extra.InstantMatch) > 0 {
		return m.applyMatch(Match{JobID: id, Sources: reg.Extra.InstantMatch}, now)
	}
	return nil
}

func (m *Marketplace) validateRegistration(reg *JobRegistration, now uint64) error {
	if !ValidScript(reg.Script) {
		return ErrInvalidScriptValue
	}
	if reg.HasAllowedSources {
		switch n := len(reg.AllowedSources); {
		case n == 0:
			return ErrTooFewAllowedSources
		case n > m.params.MaxAllowedSources:
			return errorsmod.Wrapf(ErrTooManyAllowedSources, "%d > %d", n, m.params.MaxAllowedSources)
		}
	}
	if err := reg.Schedule.Validate(); err != nil {
		return errorsmod.Wrap(ErrInvalidSchedule, err.Error())
	}
	if reg.Schedule.StartTime <= now {
		return ErrStartInPast
	}
	if reg.Extra.Slots == 0 || reg.Extra.Slots > m.params.MaxSlots {
		return errorsmod.Wrapf(ErrInvalidSlots, "%d", reg.Extra.Slots)
	}
	if reg.Extra.RewardPerExecution == 0 {
		return ErrZeroReward
	}
	if len(reg.RequiredModules) > int(numModules) {
		return ErrTooManyRequiredModules
	}
	for _, module := range reg.RequiredModules {
		if !module.Valid() {
			return errorsmod.Wrapf(ErrTooManyRequiredModules, "unknown module %d", module)
		}
	}
	if reg.Extra.HasMinReputation && !reg.Extra.MinReputation.Valid() {
		return ErrInvalidMinReputation
	}
	return nil
}

// TotalEscrow is slots * executions * (reward + fulfillmentFee).
func TotalEscrow(reg *JobRegistration, fulfillmentFee types.Balance) (types.Balance, error) {
	perExecution, err := safemath.Add64(reg.Extra.RewardPerExecution, fulfillmentFee)
	if err != nil {
		return 0, ErrCalculationOverflow
	}
	perSlot, err := safemath.Mul64(reg.Schedule.ExecutionCount(), perExecution)
	if err != nil {
		return 0, ErrCalculationOverflow
	}
	total, err := safemath.Mul64(perSlot, uint64(reg.Extra.Slots))
	if err != nil {
		return 0, ErrCalculationOverflow
	}
	return total, nil
}

// loadOwnedJob returns the job if [origin] created it.
func (m *Marketplace) loadOwnedJob(origin types.MultiOrigin, id types.JobID) (*Job, error) {
	job, found, err := m.getJob(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrap(ErrRegistrationNotFound, id.String())
	}
	if !id.Origin.Equal(origin) {
		return nil, ErrNotJobCreator
	}
	return job, nil
}

// Deregister removes a job at any stage and refunds the unspent escrow.
func (m *Marketplace) Deregister(origin types.MultiOrigin, id types.JobID) error {
	job, err := m.loadOwnedJob(origin, id)
	if err != nil {
		return err
	}
	refund, err := m.removeJob(id, job)
	if err != nil {
		return err
	}
	m.emit(EventTypeJobRegistrationRemoved, jobAttr(id), uintAttr(AttributeKeyRefund, refund))
	m.metrics.JobFinalized()
	return nil
}

// FinalizeJob removes a job whose schedule has ended, including every
// possible start delay, and refunds the unspent escrow.
func (m *Marketplace) FinalizeJob(origin types.MultiOrigin, id types.JobID, now uint64) error {
	job, err := m.loadOwnedJob(origin, id)
	if err != nil {
		return err
	}
	sched := job.Registration.Schedule
	_, end, ok := sched.Range(sched.MaxStartDelay)
	if !ok {
		return ErrCalculationOverflow
	}
	if now < end {
		return errorsmod.Wrapf(ErrCannotFinalizeJob, "ends at %d", end)
	}
	refund, err := m.removeJob(id, job)
	if err != nil {
		return err
	}
	m.emit(EventTypeJobFinalized, jobAttr(id), uintAttr(AttributeKeyRefund, refund))
	m.metrics.JobFinalized()
	return nil
}

// UpdateAllowedSources applies [updates] in order. Adding a member or
// removing a non-member is a no-op.
func (m *Marketplace) UpdateAllowedSources(origin types.MultiOrigin, id types.JobID, updates []AllowedSourceUpdate) error {
	job, err := m.loadOwnedJob(origin, id)
	if err != nil {
		return err
	}
	reg := &job.Registration
	allowed := reg.AllowedSources
	if !reg.HasAllowedSources {
		allowed = nil
	}
	for _, update := range updates {
		index := -1
		for i, source := range allowed {
			if source == update.Source {
				index = i
				break
			}
		}
		switch update.Op {
		case OpAdd:
			if index < 0 {
				allowed = append(allowed, update.Source)
			}
		case OpRemove:
			if index >= 0 {
				allowed = append(allowed[:index], allowed[index+1:]...)
			}
		}
	}
	if len(allowed) > m.params.MaxAllowedSources {
		return ErrTooManyAllowedSources
	}
	reg.HasAllowedSources = len(allowed) > 0
	reg.AllowedSources = allowed
	if err := m.putJob(id, job); err != nil {
		return err
	}
	m.emit(EventTypeAllowedSourcesUpdated, jobAttr(id))
	return nil
}

// removeJob drops every assignment of the job and refunds its budget.
func (m *Marketplace) removeJob(id types.JobID, job *Job) (types.Balance, error) {
	for _, source := range job.Sources {
		if err := m.releaseAssignment(id, job, source); err != nil {
			return 0, err
		}
	}
	refund := job.Budget
	if refund > 0 {
		if err := m.currency.Transfer(job.Registration.Extra.RewardAsset, EscrowAccount, job.Creator, refund); err != nil {
			return 0, err
		}
	}
	return refund, m.deleteJob(id)
}

// releaseAssignment deletes the assignment of [source] and returns its
// storage to the advertisement.
func (m *Marketplace) releaseAssignment(id types.JobID, job *Job, source types.AccountID) error {
	if err := m.deleteAssignment(source, id); err != nil {
		return err
	}
	if err := m.envDB.Delete(envKey(id, source)); err != nil {
		return err
	}
	ad, found, err := m.getAdvertisement(source)
	if err != nil || !found {
		return err
	}
	remaining, err := m.remainingCapacity(source)
	if err != nil {
		return err
	}
	// Saturates at the advertised capacity.
	remaining += uint64(job.Registration.Storage)
	if remaining > uint64(ad.StorageCapacity) || remaining < uint64(job.Registration.Storage) {
		remaining = uint64(ad.StorageCapacity)
	}
	return m.setRemainingCapacity(source, remaining)
}
