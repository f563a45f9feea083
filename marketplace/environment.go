// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/acurast/acurastvm/types"
)

// SetEnvironment hands encrypted variables to an assigned source.
func (m *Marketplace) SetEnvironment(origin types.MultiOrigin, id types.JobID, source types.AccountID, env *Environment) error {
	if _, err := m.loadOwnedJob(origin, id); err != nil {
		return err
	}
	_, assigned, err := m.getAssignment(source, id)
	if err != nil {
		return err
	}
	if !assigned {
		return errorsmod.Wrap(ErrEnvironmentSourceNotAssigned, source.String())
	}
	if len(env.Variables) > m.params.MaxEnvVars {
		return errorsmod.Wrapf(ErrTooManyEnvironmentVariables, "%d > %d", len(env.Variables), m.params.MaxEnvVars)
	}
	for _, v := range env.Variables {
		if len(v.Key) > m.params.MaxEnvKeyLen || len(v.Value) > m.params.MaxEnvValueLen {
			return errorsmod.Wrapf(ErrEnvironmentVariableTooLong, "%q", v.Key)
		}
	}
	if err := putRecord(m.envDB, envKey(id, source), env); err != nil {
		return err
	}
	m.emit(EventTypeExecutionEnvironmentUpdated, jobAttr(id), sourceAttr(source))
	return nil
}
