// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey       = "version"
	httpHostKey      = "http-host"
	httpPortKey      = "http-port"
	blockIntervalKey = "block-interval"
	configFileKey    = "config-file"
	genesisFileKey   = "genesis-file"
	logLevelKey      = "log-level"
)

type params struct {
	version       bool
	httpHost      string
	httpPort      uint16
	blockInterval time.Duration
	logLevel      string
	configBytes   []byte
	genesisBytes  []byte
}

func buildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("acurastvm", pflag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(httpHostKey, "127.0.0.1", "Address the RPC server listens on")
	fs.Uint16(httpPortKey, 9650, "Port the RPC server listens on")
	fs.Duration(blockIntervalKey, time.Second, "Minimum time between two blocks")
	fs.String(configFileKey, "", "Path to the JSON VM config")
	fs.String(genesisFileKey, "", "Path to the JSON genesis")
	fs.String(logLevelKey, "info", "One of crit, error, warn, info, debug")

	return fs
}

// getViper returns the viper environment for the binary
func getViper(args []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("acurastvm")
	v.AutomaticEnv()

	fs := buildFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

func parseParams(args []string) (*params, error) {
	v, err := getViper(args)
	if err != nil {
		return nil, err
	}

	p := &params{
		version:       v.GetBool(versionKey),
		httpHost:      v.GetString(httpHostKey),
		httpPort:      uint16(v.GetUint(httpPortKey)),
		blockInterval: v.GetDuration(blockIntervalKey),
		logLevel:      v.GetString(logLevelKey),
	}
	if p.version {
		return p, nil
	}
	if p.blockInterval <= 0 {
		return nil, fmt.Errorf("--%s must be positive", blockIntervalKey)
	}

	genesisFile := v.GetString(genesisFileKey)
	if genesisFile == "" {
		return nil, fmt.Errorf("--%s is required", genesisFileKey)
	}
	if p.genesisBytes, err = os.ReadFile(genesisFile); err != nil {
		return nil, fmt.Errorf("failed to read genesis: %w", err)
	}
	if configFile := v.GetString(configFileKey); configFile != "" {
		if p.configBytes, err = os.ReadFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return p, nil
}
