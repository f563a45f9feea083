// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/acurast/acurastvm/assets"
	"github.com/acurast/acurastvm/attestation"
	"github.com/acurast/acurastvm/hyperdrive"
	"github.com/acurast/acurastvm/types"
)

type GenesisAttestation struct {
	Account     types.AccountID         `json:"account"`
	Attestation attestation.Attestation `json:"attestation"`
}

// Genesis is the initial state of the chain.
type Genesis struct {
	Endowments   []assets.Endowment   `json:"endowments"`
	Attestations []GenesisAttestation `json:"attestations"`
	Oracles      []hyperdrive.Oracle  `json:"oracles"`
}

func ParseGenesis(bytes []byte) (*Genesis, error) {
	genesis := &Genesis{}
	if err := json.Unmarshal(bytes, genesis); err != nil {
		return nil, fmt.Errorf("failed to parse genesis: %w", err)
	}
	return genesis, nil
}

// InitGenesis writes [genesis] into [state].
func (r *Runtime) InitGenesis(state database.Database, genesis *Genesis) error {
	p := r.open(state, nil)
	if err := p.ledger.InitGenesis(genesis.Endowments); err != nil {
		return err
	}
	for _, a := range genesis.Attestations {
		if err := p.attestations.Put(a.Account, a.Attestation); err != nil {
			return fmt.Errorf("failed to store attestation of %s: %w", a.Account, err)
		}
	}

	updates := make([]hyperdrive.OracleUpdate, 0, len(genesis.Oracles))
	for _, oracle := range genesis.Oracles {
		updates = append(updates, hyperdrive.OracleUpdate{
			Op:     hyperdrive.AddOracle,
			PubKey: oracle.PubKey,
			Window: oracle.Window,
		})
	}
	limit := int(r.params.Hyperdrive.MaxOracleUpdates)
	for len(updates) > 0 {
		n := len(updates)
		if limit > 0 && n > limit {
			n = limit
		}
		if err := p.relay.UpdateOracles(r.params.Hyperdrive.Updater, updates[:n]); err != nil {
			return fmt.Errorf("failed to add genesis oracles: %w", err)
		}
		updates = updates[n:]
	}
	return nil
}
