// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines configuration types for the Aminal VM.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNonPositivePeriod = errors.New("period must be positive")
	ErrMissingNamespace  = errors.New("metrics namespace must be set")
)

// Config contains configuration parameters for the Aminal VM.
type Config struct {
	// ProposalPeriod is how long a new ticket accepts component proposals.
	ProposalPeriod time.Duration `json:"proposalPeriod"`
	// VotingPeriod is how long the ballots accept votes once proposals
	// close.
	VotingPeriod time.Duration `json:"votingPeriod"`

	// MaxDescriptionLength bounds the offspring description of a ticket.
	MaxDescriptionLength int `json:"maxDescriptionLength"`

	MetricsNamespace string `json:"metricsNamespace"`
}

// DefaultConfig returns the default configuration for the Aminal VM.
func DefaultConfig() Config {
	return Config{
		ProposalPeriod:       3 * 24 * time.Hour,
		VotingPeriod:         4 * 24 * time.Hour,
		MaxDescriptionLength: 256,
		MetricsNamespace:     "aminalvm",
	}
}

// Parse overlays configBytes onto the defaults.
func Parse(configBytes []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(configBytes) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, cfg.Verify()
}

func (c Config) Verify() error {
	switch {
	case c.ProposalPeriod <= 0:
		return fmt.Errorf("%w: proposalPeriod %s", ErrNonPositivePeriod, c.ProposalPeriod)
	case c.VotingPeriod <= 0:
		return fmt.Errorf("%w: votingPeriod %s", ErrNonPositivePeriod, c.VotingPeriod)
	case c.MaxDescriptionLength <= 0:
		return fmt.Errorf("maxDescriptionLength must be positive, got %d", c.MaxDescriptionLength)
	case c.MetricsNamespace == "":
		return ErrMissingNamespace
	default:
		return nil
	}
}
