// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    Config
		expectedErr error
	}{
		{
			name:     "empty",
			input:    "",
			expected: DefaultConfig(),
		},
		{
			name:  "override voting period",
			input: `{"votingPeriod":60000000000}`,
			expected: func() Config {
				c := DefaultConfig()
				c.VotingPeriod = time.Minute
				return c
			}(),
		},
		{
			name:        "zero proposal period",
			input:       `{"proposalPeriod":0}`,
			expectedErr: ErrNonPositivePeriod,
		},
		{
			name:        "empty namespace",
			input:       `{"metricsNamespace":""}`,
			expectedErr: ErrMissingNamespace,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			cfg, err := Parse([]byte(test.input))
			require.ErrorIs(err, test.expectedErr)
			if test.expectedErr != nil {
				return
			}
			require.Equal(test.expected, cfg)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("{"))
	require.Error(t, err)
}

func TestDefaultConfigVerifies(t *testing.T) {
	require.NoError(t, DefaultConfig().Verify())
}
