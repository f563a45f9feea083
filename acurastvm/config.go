// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package acurastvm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/acurast/acurastvm/runtime"
	"github.com/acurast/acurastvm/sdk/stack"
)

const (
	mempoolSizeKey      = "mempoolSize"
	maxBlockTxsKey      = "maxBlockTxs"
	futureBlockLimitKey = "futureBlockLimit"
	blockCacheKey       = "blockCache"
	paramsKey           = "params"
)

// Config is the VM's config. Params are the constants every node of the
// chain must agree on.
type Config struct {
	MempoolSize      int                    `mapstructure:"mempoolSize"`
	MaxBlockTxs      int                    `mapstructure:"maxBlockTxs"`
	FutureBlockLimit time.Duration          `mapstructure:"futureBlockLimit"`
	BlockCache       stack.BlockCacheConfig `mapstructure:"blockCache"`
	Params           runtime.Params         `mapstructure:"-"`
}

// ParseConfig reads the JSON config [configBytes]. Missing keys keep their
// defaults, also inside params.
func ParseConfig(configBytes []byte) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault(mempoolSizeKey, 1024)
	v.SetDefault(maxBlockTxsKey, 256)
	v.SetDefault(futureBlockLimitKey, time.Minute)
	v.SetDefault(blockCacheKey, map[string]interface{}{
		"decided":    stack.DefaultBlockCacheConfig.Decided,
		"unverified": stack.DefaultBlockCacheConfig.Unverified,
		"missing":    stack.DefaultBlockCacheConfig.Missing,
		"bytesToID":  stack.DefaultBlockCacheConfig.BytesToID,
	})
	if len(configBytes) > 0 {
		if err := v.ReadConfig(bytes.NewReader(configBytes)); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	config := Config{Params: runtime.DefaultParams()}
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if v.IsSet(paramsKey) {
		// params carry account ids, which only decode from their JSON form
		raw, err := json.Marshal(v.Get(paramsKey))
		if err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(raw, &config.Params); err != nil {
			return Config{}, fmt.Errorf("failed to decode params: %w", err)
		}
	}
	return config, config.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.MempoolSize <= 0:
		return fmt.Errorf("mempool size must be positive")
	case c.MaxBlockTxs <= 0:
		return fmt.Errorf("max block txs must be positive")
	case c.FutureBlockLimit <= 0:
		return fmt.Errorf("future block limit must be positive")
	}
	return c.Params.Validate()
}
