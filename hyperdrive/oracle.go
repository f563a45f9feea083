// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"encoding/hex"

	errorsmod "cosmossdk.io/errors"

	"github.com/acurast/acurastvm/signature"
	"github.com/acurast/acurastvm/types"
)

// ActivityWindow is the block range [StartBlock, EndBlock) in which an
// oracle's signatures count. An open window has no end.
type ActivityWindow struct {
	StartBlock uint64 `serialize:"true" json:"startBlock"`
	HasEnd     bool   `serialize:"true" json:"hasEnd"`
	EndBlock   uint64 `serialize:"true" json:"endBlock"`
}

func (w ActivityWindow) Active(block uint64) bool {
	return block >= w.StartBlock && (!w.HasEnd || block < w.EndBlock)
}

type Oracle struct {
	PubKey []byte         `serialize:"true" json:"pubKey"`
	Window ActivityWindow `serialize:"true" json:"window"`
}

type OracleUpdateOp uint8

const (
	AddOracle OracleUpdateOp = iota
	RemoveOracle
)

type OracleUpdate struct {
	Op     OracleUpdateOp `serialize:"true" json:"op"`
	PubKey []byte         `serialize:"true" json:"pubKey"`
	Window ActivityWindow `serialize:"true" json:"window"`
}

// OracleSignature is a signature by the oracle holding PubKey.
type OracleSignature struct {
	PubKey    []byte              `serialize:"true" json:"pubKey"`
	Signature signature.Signature `serialize:"true" json:"signature"`
}

// UpdateOracles applies [updates] to the oracle set. Only the updater may
// call it.
func (r *Relay) UpdateOracles(caller types.AccountID, updates []OracleUpdate) error {
	if caller != r.params.Updater {
		return ErrNotUpdater
	}
	if len(updates) > int(r.params.MaxOracleUpdates) {
		return errorsmod.Wrapf(ErrTooManyOracleUpdates, "%d updates", len(updates))
	}
	for _, update := range updates {
		switch update.Op {
		case AddOracle:
			w := update.Window
			if w.HasEnd && w.EndBlock <= w.StartBlock {
				return errorsmod.Wrapf(ErrInvalidActivityWindow, "[%d, %d)", w.StartBlock, w.EndBlock)
			}
			if err := r.putOracle(Oracle{PubKey: update.PubKey, Window: w}); err != nil {
				return err
			}
		case RemoveOracle:
			_, found, err := r.getOracle(update.PubKey)
			if err != nil {
				return err
			}
			if !found {
				return errorsmod.Wrap(ErrOracleNotFound, hex.EncodeToString(update.PubKey))
			}
			if err := r.deleteOracle(update.PubKey); err != nil {
				return err
			}
		default:
			return errorsmod.Wrapf(ErrInvalidActivityWindow, "unknown oracle update %d", update.Op)
		}
	}
	r.emit(EventTypeOraclesUpdated, uintAttr(AttributeKeyCount, uint64(len(updates))))
	return nil
}

// checkSignatures requires [min] valid signatures of distinct oracles over
// [payload]. Signatures of unknown oracles, of oracles outside their activity
// window and of schemes that cannot be verified are skipped. An invalid
// signature of an active oracle fails the call.
func (r *Relay) checkSignatures(payload []byte, sigs []OracleSignature, min uint32, block uint64) error {
	seen := make(map[string]struct{}, len(sigs))
	valid := uint32(0)
	for _, sig := range sigs {
		key := string(sig.PubKey)
		if _, ok := seen[key]; ok {
			continue
		}
		oracle, found, err := r.getOracle(sig.PubKey)
		if err != nil {
			return err
		}
		if !found {
			r.log.Debug("skipping signature of unknown oracle", "pubKey", hex.EncodeToString(sig.PubKey))
			r.metrics.SignatureSkipped()
			continue
		}
		if !oracle.Window.Active(block) {
			r.log.Debug("skipping signature of inactive oracle",
				"pubKey", hex.EncodeToString(sig.PubKey),
				"block", block,
			)
			r.metrics.SignatureSkipped()
			continue
		}
		if !sig.Signature.Scheme.Supported() {
			r.log.Warn("skipping signature of unsupported scheme",
				"pubKey", hex.EncodeToString(sig.PubKey),
				"scheme", sig.Signature.Scheme,
			)
			r.metrics.SignatureSkipped()
			continue
		}
		if !r.verifier.Verify(sig.Signature, payload, sig.PubKey) {
			return errorsmod.Wrapf(ErrSignatureInvalid, "oracle %s", hex.EncodeToString(sig.PubKey))
		}
		seen[key] = struct{}{}
		valid++
	}
	if valid < min {
		return errorsmod.Wrapf(ErrNotEnoughValidSignatures, "%d of %d", valid, min)
	}
	return nil
}
