// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	errorsmod "cosmossdk.io/errors"

	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/acurast/acurastvm/reputation"
	"github.com/acurast/acurastvm/types"
)

// ProposeMatching applies every match or none of them.
func (m *Marketplace) ProposeMatching(matches []Match, now uint64) error {
	if len(matches) == 0 || len(matches) > m.params.MaxProposedMatches {
		return errorsmod.Wrapf(ErrTooManyMatches, "%d", len(matches))
	}
	for _, match := range matches {
		if err := m.applyMatch(match, now); err != nil {
			return err
		}
	}
	return nil
}

// MatchJob picks the first qualifying sources in ascending account order,
// each with a zero start delay, and applies the match.
func (m *Marketplace) MatchJob(id types.JobID, now uint64) error {
	job, found, err := m.getJob(id)
	if err != nil {
		return err
	}
	if !found {
		return errorsmod.Wrap(ErrJobNotFound, id.String())
	}
	if job.Status != StatusOpen {
		return ErrJobStatusNotOpen
	}
	sources, err := m.advertisedSources()
	if err != nil {
		return err
	}

	slots := int(job.Registration.Extra.Slots)
	planned := make([]PlannedExecution, 0, slots)
	for _, source := range sources {
		if len(planned) == slots {
			break
		}
		_, rejection, err := m.checkSource(id, job, source, 0, now)
		if err != nil {
			return err
		}
		if rejection != nil {
			m.log.Debug("source rejected", "job", id, "source", source, "reason", rejection)
			continue
		}
		planned = append(planned, PlannedExecution{Source: source})
	}
	if len(planned) < slots {
		return errorsmod.Wrapf(ErrNoMatchFound, "%d of %d slots", len(planned), slots)
	}
	return m.applyMatch(Match{JobID: id, Sources: planned}, now)
}

func (m *Marketplace) applyMatch(match Match, now uint64) error {
	id := match.JobID
	job, found, err := m.getJob(id)
	if err != nil {
		return err
	}
	if !found {
		return errorsmod.Wrap(ErrJobNotFound, id.String())
	}
	if job.Status != StatusOpen {
		return ErrJobStatusNotOpen
	}
	reg := &job.Registration
	if len(match.Sources) != int(reg.Extra.Slots) {
		return errorsmod.Wrapf(ErrIncorrectSourceCountInMatch, "%d sources for %d slots", len(match.Sources), reg.Extra.Slots)
	}
	if reg.Schedule.StartTime <= now {
		return ErrOverdueMatch
	}

	prices := make([]types.Balance, len(match.Sources))
	seen := make(map[types.AccountID]struct{}, len(match.Sources))
	for i, planned := range match.Sources {
		if _, ok := seen[planned.Source]; ok {
			return errorsmod.Wrap(ErrDuplicateSourceInMatch, planned.Source.String())
		}
		seen[planned.Source] = struct{}{}
		if planned.StartDelay > reg.Schedule.MaxStartDelay {
			return errorsmod.Wrapf(ErrInvalidStartDelay, "%d > %d", planned.StartDelay, reg.Schedule.MaxStartDelay)
		}
		price, rejection, err := m.checkSource(id, job, planned.Source, planned.StartDelay, now)
		if err != nil {
			return err
		}
		if rejection != nil {
			return rejection
		}
		prices[i] = price
	}

	job.Sources = make([]types.AccountID, len(match.Sources))
	for slot, planned := range match.Sources {
		assignment := &Assignment{
			Slot:            uint8(slot),
			StartDelay:      planned.StartDelay,
			FeePerExecution: prices[slot],
		}
		if err := m.putAssignment(planned.Source, id, assignment); err != nil {
			return err
		}
		remaining, err := m.remainingCapacity(planned.Source)
		if err != nil {
			return err
		}
		if err := m.setRemainingCapacity(planned.Source, remaining-uint64(reg.Storage)); err != nil {
			return err
		}
		job.Sources[slot] = planned.Source
		m.emit(EventTypeJobRegistrationMatched,
			jobAttr(id),
			sourceAttr(planned.Source),
			uintAttr(AttributeKeySlot, uint64(slot)),
		)
	}
	job.Status = StatusMatched
	if err := m.putJob(id, job); err != nil {
		return err
	}
	m.metrics.JobMatched()
	return nil
}

// checkSource decides whether [source] may take one slot of [job] at
// [startDelay]. A non-nil rejection carries the typed reason; err is only set
// on storage failures.
func (m *Marketplace) checkSource(
	id types.JobID,
	job *Job,
	source types.AccountID,
	startDelay uint64,
	now uint64,
) (price types.Balance, rejection error, err error) {
	reg := &job.Registration
	ad, found, err := m.getAdvertisement(source)
	if err != nil {
		return 0, nil, err
	}
	if !found {
		return 0, errorsmod.Wrap(ErrAdvertisementNotFound, source.String()), nil
	}
	if ad.Pricing.RewardAsset != reg.Extra.RewardAsset {
		return 0, ErrAdvertisementPricingNotFound, nil
	}

	_, end, ok := reg.Schedule.Range(startDelay)
	if !ok {
		return 0, ErrCalculationOverflow, nil
	}
	if !ad.Pricing.SchedulingWindow.Covers(end, now) {
		return 0, ErrSchedulingWindowExceededInMatch, nil
	}
	if reg.Memory > ad.MaxMemory {
		return 0, ErrMaxMemoryExceededInMatch, nil
	}
	if reg.NetworkRequests > ad.NetworkRequestQuota {
		return 0, ErrNetworkRequestQuotaExceeded, nil
	}
	remaining, err := m.remainingCapacity(source)
	if err != nil {
		return 0, nil, err
	}
	if uint64(reg.Storage) > remaining {
		return 0, ErrInsufficientStorageCapacity, nil
	}
	if !ad.hasModules(reg.RequiredModules) {
		return 0, ErrModuleNotAvailableInMatch, nil
	}
	if !reg.IsSourceAllowed(source) {
		return 0, errorsmod.Wrap(ErrSourceNotAllowed, "not in the job's allowed sources"), nil
	}
	if !ad.allowsConsumer(id.Origin) {
		return 0, errorsmod.Wrap(ErrSourceNotAllowed, "consumer not allowed by advertisement"), nil
	}

	if reg.AllowOnlyVerifiedSources {
		verified, err := m.attestations.IsVerified(source, now)
		if err != nil {
			return 0, nil, err
		}
		if !verified {
			return 0, errorsmod.Wrap(ErrSourceNotAllowed, "source is not attested"), nil
		}
	}
	if reg.Extra.HasMinReputation {
		score, err := m.Reputation(source, reg.Extra.RewardAsset)
		if err != nil {
			return 0, nil, err
		}
		if score < reg.Extra.MinReputation {
			return 0, errorsmod.Wrapf(ErrSourceNotAllowed, "reputation %d below %d", score, reg.Extra.MinReputation), nil
		}
	}

	conflict, err := m.hasConflictingAssignment(source, reg, startDelay)
	if err != nil {
		return 0, nil, err
	}
	if conflict {
		return 0, errorsmod.Wrap(ErrCapacityConflict, source.String()), nil
	}

	price, err = PricePerExecution(ad.Pricing, reg)
	if err != nil {
		return 0, err, nil
	}
	if price > reg.Extra.RewardPerExecution {
		return 0, errorsmod.Wrapf(ErrInsufficientRewardInMatch, "price %d above reward %d", price, reg.Extra.RewardPerExecution), nil
	}
	return price, nil, nil
}

// hasConflictingAssignment reports whether any job [source] is already
// assigned to runs at the same time as [reg] shifted by [startDelay].
func (m *Marketplace) hasConflictingAssignment(source types.AccountID, reg *JobRegistration, startDelay uint64) (bool, error) {
	keys, err := m.assignedJobKeys(source)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		otherID, err := types.ParseJobIDKey(key)
		if err != nil {
			return false, err
		}
		other, found, err := m.getJob(otherID)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		assignment, found, err := m.getAssignment(source, otherID)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		if reg.Schedule.OverlapsSchedule(startDelay, other.Registration.Schedule, assignment.StartDelay) {
			return true, nil
		}
	}
	return false, nil
}

// PricePerExecution is base + duration*feePerMs + storage*feePerByte.
func PricePerExecution(pricing Pricing, reg *JobRegistration) (types.Balance, error) {
	durationFee, err := safemath.Mul64(reg.Schedule.Duration, pricing.FeePerMillisecond)
	if err != nil {
		return 0, ErrCalculationOverflow
	}
	storageFee, err := safemath.Mul64(uint64(reg.Storage), pricing.FeePerStorageByte)
	if err != nil {
		return 0, ErrCalculationOverflow
	}
	price, err := safemath.Add64(pricing.BaseFeePerExecution, durationFee)
	if err != nil {
		return 0, ErrCalculationOverflow
	}
	price, err = safemath.Add64(price, storageFee)
	if err != nil {
		return 0, ErrCalculationOverflow
	}
	return price, nil
}

// Reputation returns the normalized score of [source] for rewards paid in
// [asset]. Sources without reports score the prior mean.
func (m *Marketplace) Reputation(source types.AccountID, asset types.AssetID) (types.Permill, error) {
	params, err := m.getReputation(source, asset)
	if err != nil {
		return 0, err
	}
	score, err := reputation.Normalize(params)
	if err != nil {
		return 0, errorsmod.Wrap(ErrCalculationOverflow, err.Error())
	}
	return score, nil
}
