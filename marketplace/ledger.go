// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	"strconv"

	errorsmod "cosmossdk.io/errors"

	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/acurast/acurastvm/reputation"
	"github.com/acurast/acurastvm/types"
)

// Acknowledge confirms the assignment of [source] to the job and records its
// processing keys.
func (m *Marketplace) Acknowledge(source types.AccountID, id types.JobID, pubKeys []PubKey) error {
	job, found, err := m.getJob(id)
	if err != nil {
		return err
	}
	if !found {
		return errorsmod.Wrap(ErrJobNotFound, id.String())
	}
	assignment, found, err := m.getAssignment(source, id)
	if err != nil {
		return err
	}
	if !found || job.Status == StatusOpen {
		return errorsmod.Wrap(ErrCannotAcknowledge, "no matched assignment")
	}
	if assignment.Acknowledged {
		return errorsmod.Wrap(ErrCannotAcknowledge, "already acknowledged")
	}
	if len(pubKeys) > m.params.MaxPubKeys {
		return ErrTooManyPubKeys
	}

	assignment.Acknowledged = true
	assignment.PubKeys = pubKeys
	if err := m.putAssignment(source, id, assignment); err != nil {
		return err
	}
	job.Acknowledged++
	job.Status = StatusAssigned
	if err := m.putJob(id, job); err != nil {
		return err
	}
	m.emit(EventTypeJobRegistrationAssigned,
		jobAttr(id),
		sourceAttr(source),
		uintAttr(AttributeKeySlot, uint64(assignment.Slot)),
		types.NewAttribute(AttributeKeyStatus, strconv.Itoa(int(job.Acknowledged))+"/"+strconv.Itoa(int(job.Registration.Extra.Slots))),
	)
	return nil
}

// Report settles the execution [now] falls into. Executions skipped since the
// previous report count as failures and are not paid.
func (m *Marketplace) Report(source types.AccountID, id types.JobID, isLast bool, result ExecutionResult, now uint64) error {
	job, found, err := m.getJob(id)
	if err != nil {
		return err
	}
	if !found {
		return errorsmod.Wrap(ErrJobNotFound, id.String())
	}
	assignment, found, err := m.getAssignment(source, id)
	if err != nil {
		return err
	}
	if !found || !assignment.Acknowledged {
		return ErrReportFromUnassignedSource
	}

	sched := job.Registration.Schedule
	index, ok := sched.CurrentExecutionIndex(assignment.StartDelay, now)
	if !ok {
		return errorsmod.Wrap(ErrReportOutsideTolerance, "execution not started")
	}
	start, ok := sched.NthStartTime(assignment.StartDelay, index)
	if !ok {
		return ErrCalculationOverflow
	}
	// Saturating: a deadline past the end of time never expires.
	deadline := start + sched.Duration + m.params.ReportTolerance
	if deadline < start {
		deadline = ^uint64(0)
	}
	if now > deadline {
		return errorsmod.Wrapf(ErrReportOutsideTolerance, "execution %d closed at %d", index, deadline)
	}
	if assignment.HasReported && index <= assignment.LastReportedIndex {
		return errorsmod.Wrapf(ErrDuplicateReport, "execution %d", index)
	}

	missed := index
	if assignment.HasReported {
		missed = index - assignment.LastReportedIndex - 1
	}
	settled, err := safemath.Add64(missed, 1)
	if err != nil {
		return ErrCalculationOverflow
	}
	if assignment.SLA.Total, err = safemath.Add64(assignment.SLA.Total, settled); err != nil {
		return ErrCalculationOverflow
	}
	if result.Success {
		assignment.SLA.Met++
	}
	assignment.HasReported = true
	assignment.LastReportedIndex = index

	payout, fee, err := m.pay(job, source, assignment.FeePerExecution)
	if err != nil {
		return err
	}
	if err := m.updateReputation(source, job.Registration.Extra.RewardAsset, missed, result.Success, assignment.FeePerExecution); err != nil {
		return err
	}
	m.emit(EventTypeReported,
		jobAttr(id),
		sourceAttr(source),
		uintAttr(AttributeKeyIndex, index),
		uintAttr(AttributeKeyMissed, missed),
		types.NewAttribute(AttributeKeySuccess, strconv.FormatBool(result.Success)),
		uintAttr(AttributeKeyPayout, payout),
		uintAttr(AttributeKeyFee, fee),
	)
	m.metrics.Report(result.Success, payout, fee)

	if !isLast && index+1 < sched.ExecutionCount() {
		if err := m.putAssignment(source, id, assignment); err != nil {
			return err
		}
		return m.putJob(id, job)
	}
	return m.finalizeAssignment(id, job, source)
}

// pay moves the fee per execution and the fulfillment fee out of escrow: the
// fee percentage of the former to the fee manager, the rest to [source].
func (m *Marketplace) pay(job *Job, source types.AccountID, feePerExecution types.Balance) (types.Balance, types.Balance, error) {
	total, err := safemath.Add64(feePerExecution, m.params.FulfillmentFee)
	if err != nil {
		return 0, 0, ErrCalculationOverflow
	}
	if job.Budget < total {
		return 0, 0, errorsmod.Wrapf(ErrEscrowExhausted, "budget %d below %d", job.Budget, total)
	}
	job.Budget -= total

	asset := job.Registration.Extra.RewardAsset
	fee := m.params.FeePercentage.MulFloor(feePerExecution)
	payout := total - fee
	if fee > 0 {
		if err := m.currency.Transfer(asset, EscrowAccount, m.params.FeeManager, fee); err != nil {
			return 0, 0, err
		}
	}
	if payout > 0 {
		if err := m.currency.Transfer(asset, EscrowAccount, source, payout); err != nil {
			return 0, 0, err
		}
	}
	return payout, fee, nil
}

// updateReputation weighs the report by [reward] relative to the average fee
// per execution paid in [asset] so far, then adds [reward] to that average.
func (m *Marketplace) updateReputation(source types.AccountID, asset types.AssetID, missed uint64, success bool, reward types.Balance) error {
	params, err := m.getReputation(source, asset)
	if err != nil {
		return err
	}
	avg, err := m.getRewardAverage(asset)
	if err != nil {
		return err
	}
	params, err = reputation.Observe(params, missed, success, avg.Weight(uint64(reward)), m.params.ReputationDecay)
	if err != nil {
		return errorsmod.Wrap(ErrCalculationOverflow, err.Error())
	}
	if avg, err = avg.Add(uint64(reward)); err != nil {
		return errorsmod.Wrap(ErrCalculationOverflow, err.Error())
	}
	if err := m.putReputation(source, asset, params); err != nil {
		return err
	}
	if err := m.putRewardAverage(asset, avg); err != nil {
		return err
	}
	score, err := reputation.Normalize(params)
	if err != nil {
		return errorsmod.Wrap(ErrCalculationOverflow, err.Error())
	}
	m.emit(EventTypeReputationUpdated, sourceAttr(source), uintAttr(AttributeKeyReputation, uint64(score)))
	return nil
}

// finalizeAssignment ends the assignment of [source]. The job is removed and
// its remaining budget refunded once no source is left.
func (m *Marketplace) finalizeAssignment(id types.JobID, job *Job, source types.AccountID) error {
	if err := m.releaseAssignment(id, job, source); err != nil {
		return err
	}
	for i, s := range job.Sources {
		if s == source {
			job.Sources = append(job.Sources[:i], job.Sources[i+1:]...)
			break
		}
	}
	if len(job.Sources) > 0 {
		return m.putJob(id, job)
	}
	refund, err := m.removeJob(id, job)
	if err != nil {
		return err
	}
	m.emit(EventTypeJobFinalized, jobAttr(id), uintAttr(AttributeKeyRefund, refund))
	m.metrics.JobFinalized()
	return nil
}
