// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/aminalvm/cmd/aminalvm/defaults"
	"github.com/luxfi/aminalvm/cmd/aminalvm/serve"
	"github.com/luxfi/aminalvm/cmd/aminalvm/version"
)

func init() {
	cobra.EnablePrefixMatching = true
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := &cobra.Command{
		Use:   "aminalvm",
		Short: "Runs and inspects the Aminal breeding VM",
	}
	cmd.AddCommand(
		serve.Command(),
		defaults.Command(),
		version.Command(),
	)
	cmd.SilenceUsage = true
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
