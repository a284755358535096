// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package defaults prints the default VM config.
package defaults

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/luxfi/aminalvm/config"
)

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the default config as JSON",
		RunE: func(c *cobra.Command, _ []string) error {
			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(config.DefaultConfig())
		},
	}
}
