// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

const (
	HTTPAddrKey        = "http-addr"
	GenesisFileKey     = "genesis"
	ConfigFileKey      = "config"
	ShutdownTimeoutKey = "shutdown-timeout"
	AllowedOriginsKey  = "allowed-origins"
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(HTTPAddrKey, "127.0.0.1:9650", "Address the HTTP server listens on")
	flags.String(GenesisFileKey, "", "JSON genesis file. An empty chain is started when unset")
	flags.String(ConfigFileKey, "", "JSON config file overlaying the defaults")
	flags.Duration(ShutdownTimeoutKey, 5*time.Second, "How long in-flight requests may take to finish on shutdown")
	flags.StringSlice(AllowedOriginsKey, []string{"*"}, "Origins allowed to make cross-origin requests")
}

type Config struct {
	HTTPAddr        string
	GenesisBytes    []byte
	ConfigBytes     []byte
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	httpAddr, err := flags.GetString(HTTPAddrKey)
	if err != nil {
		return nil, err
	}
	genesisBytes, err := readFileFlag(flags, GenesisFileKey)
	if err != nil {
		return nil, err
	}
	configBytes, err := readFileFlag(flags, ConfigFileKey)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := flags.GetDuration(ShutdownTimeoutKey)
	if err != nil {
		return nil, err
	}

	allowedOrigins, err := flags.GetStringSlice(AllowedOriginsKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPAddr:        httpAddr,
		GenesisBytes:    genesisBytes,
		ConfigBytes:     configBytes,
		ShutdownTimeout: shutdownTimeout,
		AllowedOrigins:  allowedOrigins,
	}, nil
}

func readFileFlag(flags *pflag.FlagSet, key string) ([]byte, error) {
	path, err := flags.GetString(key)
	if err != nil || path == "" {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", key, err)
	}
	return b, nil
}
