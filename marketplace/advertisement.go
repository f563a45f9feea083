// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/acurast/acurastvm/types"
)

// Advertise stores or replaces the offer of [source]. Storage already taken
// by assignments stays reserved.
func (m *Marketplace) Advertise(source types.AccountID, ad *Advertisement) error {
	if ad.HasAllowedConsumers {
		switch n := len(ad.AllowedConsumers); {
		case n == 0:
			return ErrTooFewAllowedConsumers
		case n > m.params.MaxAllowedConsumers:
			return errorsmod.Wrapf(ErrTooManyAllowedConsumers, "%d > %d", n, m.params.MaxAllowedConsumers)
		}
	}

	previous, found, err := m.getAdvertisement(source)
	if err != nil {
		return err
	}
	var used uint64
	if found {
		remaining, err := m.remainingCapacity(source)
		if err != nil {
			return err
		}
		if remaining < uint64(previous.StorageCapacity) {
			used = uint64(previous.StorageCapacity) - remaining
		}
	}
	if uint64(ad.StorageCapacity) < used {
		return errorsmod.Wrapf(ErrStorageCapacityBelowUsage, "%d < %d", ad.StorageCapacity, used)
	}
	if err := m.setRemainingCapacity(source, uint64(ad.StorageCapacity)-used); err != nil {
		return err
	}
	if err := m.putAdvertisement(source, ad); err != nil {
		return err
	}
	m.emit(EventTypeAdvertisementStored, sourceAttr(source))
	return nil
}

// DeleteAdvertisement withdraws the offer of a source without assignments.
func (m *Marketplace) DeleteAdvertisement(source types.AccountID) error {
	_, found, err := m.getAdvertisement(source)
	if err != nil {
		return err
	}
	if !found {
		return ErrAdvertisementNotFound
	}
	assigned, err := m.hasAssignments(source)
	if err != nil {
		return err
	}
	if assigned {
		return ErrCannotDeleteAdvertisementWhileMatched
	}
	if err := m.advertDB.Delete(source[:]); err != nil {
		return err
	}
	if err := m.capacityDB.Delete(source[:]); err != nil {
		return err
	}
	m.emit(EventTypeAdvertisementRemoved, sourceAttr(source))
	return nil
}

// Heartbeat records that [source] is alive at [now].
func (m *Marketplace) Heartbeat(source types.AccountID, now uint64) error {
	if err := m.heartbeatDB.Put(source[:], types.Uint64Bytes(now)); err != nil {
		return err
	}
	m.emit(EventTypeProcessorHeartbeat, sourceAttr(source), uintAttr(AttributeKeyTimestamp, now))
	return nil
}
