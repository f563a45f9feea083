// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	errorsmod "cosmossdk.io/errors"
)

const Codespace = "marketplace"

// registry
var (
	ErrInvalidScriptValue          = errorsmod.Register(Codespace, 2, "invalid script value")
	ErrTooManyAllowedSources       = errorsmod.Register(Codespace, 3, "too many allowed sources")
	ErrTooFewAllowedSources        = errorsmod.Register(Codespace, 4, "too few allowed sources")
	ErrInvalidSchedule             = errorsmod.Register(Codespace, 5, "invalid schedule")
	ErrStartInPast                 = errorsmod.Register(Codespace, 6, "job registration starts in the past")
	ErrInvalidSlots                = errorsmod.Register(Codespace, 7, "invalid number of slots")
	ErrZeroReward                  = errorsmod.Register(Codespace, 8, "reward per execution must be positive")
	ErrJobAlreadyRegistered        = errorsmod.Register(Codespace, 9, "job already registered")
	ErrRegistrationNotFound        = errorsmod.Register(Codespace, 10, "job registration not found")
	ErrNotJobCreator               = errorsmod.Register(Codespace, 11, "caller is not the job creator")
	ErrCalculationOverflow         = errorsmod.Register(Codespace, 12, "calculation overflow")
	ErrCannotFinalizeJob           = errorsmod.Register(Codespace, 13, "job cannot be finalized before its schedule ends")
	ErrTooManyRequiredModules      = errorsmod.Register(Codespace, 14, "too many required modules")
	ErrInvalidMinReputation        = errorsmod.Register(Codespace, 15, "invalid minimum reputation")
	ErrInvalidOrigin               = errorsmod.Register(Codespace, 16, "invalid origin")
	ErrJobRegistrationUnmodifiable = errorsmod.Register(Codespace, 17, "job registration cannot be modified once matched")
	ErrEscrowExhausted             = errorsmod.Register(Codespace, 18, "escrow exhausted")
)

// matching
var (
	ErrJobNotFound                     = errorsmod.Register(Codespace, 20, "job not found")
	ErrJobStatusNotOpen                = errorsmod.Register(Codespace, 21, "job is not open for matching")
	ErrSourceNotAllowed                = errorsmod.Register(Codespace, 22, "source not allowed")
	ErrCapacityConflict                = errorsmod.Register(Codespace, 23, "source has an overlapping assignment")
	ErrNoMatchFound                    = errorsmod.Register(Codespace, 24, "no match found")
	ErrOverdueMatch                    = errorsmod.Register(Codespace, 25, "job already started")
	ErrInvalidStartDelay               = errorsmod.Register(Codespace, 26, "start delay exceeds maximum")
	ErrDuplicateSourceInMatch          = errorsmod.Register(Codespace, 27, "duplicate source in match")
	ErrIncorrectSourceCountInMatch     = errorsmod.Register(Codespace, 28, "number of sources differs from slots")
	ErrAdvertisementNotFound           = errorsmod.Register(Codespace, 29, "advertisement not found")
	ErrAdvertisementPricingNotFound    = errorsmod.Register(Codespace, 30, "advertisement does not price the reward asset")
	ErrSchedulingWindowExceededInMatch = errorsmod.Register(Codespace, 31, "job ends outside the scheduling window")
	ErrMaxMemoryExceededInMatch        = errorsmod.Register(Codespace, 32, "job exceeds advertised memory")
	ErrNetworkRequestQuotaExceeded     = errorsmod.Register(Codespace, 33, "job exceeds advertised network request quota")
	ErrInsufficientStorageCapacity     = errorsmod.Register(Codespace, 34, "job exceeds remaining storage capacity")
	ErrModuleNotAvailableInMatch       = errorsmod.Register(Codespace, 35, "required module not available")
	ErrInsufficientRewardInMatch       = errorsmod.Register(Codespace, 36, "reward does not cover the advertised price")
	ErrTooManyMatches                  = errorsmod.Register(Codespace, 37, "too many matches proposed")
)

// ledger
var (
	ErrCannotAcknowledge          = errorsmod.Register(Codespace, 40, "cannot acknowledge match")
	ErrReportFromUnassignedSource = errorsmod.Register(Codespace, 41, "report from unassigned or unacknowledged source")
	ErrReportOutsideTolerance     = errorsmod.Register(Codespace, 42, "report outside tolerance window")
	ErrDuplicateReport            = errorsmod.Register(Codespace, 43, "execution already reported")
	ErrTooManyPubKeys             = errorsmod.Register(Codespace, 44, "too many processing public keys")
)

// advertisements and environments
var (
	ErrTooManyAllowedConsumers               = errorsmod.Register(Codespace, 50, "too many allowed consumers")
	ErrTooFewAllowedConsumers                = errorsmod.Register(Codespace, 51, "too few allowed consumers")
	ErrCannotDeleteAdvertisementWhileMatched = errorsmod.Register(Codespace, 52, "cannot delete advertisement while assigned")
	ErrStorageCapacityBelowUsage             = errorsmod.Register(Codespace, 53, "storage capacity below current usage")
	ErrEnvironmentSourceNotAssigned          = errorsmod.Register(Codespace, 54, "source is not assigned to the job")
	ErrTooManyEnvironmentVariables           = errorsmod.Register(Codespace, 55, "too many environment variables")
	ErrEnvironmentVariableTooLong            = errorsmod.Register(Codespace, 56, "environment variable key or value too long")
	ErrEnvironmentNotFound                   = errorsmod.Register(Codespace, 57, "environment not found")
)
