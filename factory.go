// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aminalvm

import (
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/aminalvm/config"
)

// Factory creates new VM instances.
type Factory struct {
	config.Config

	// Registry receives the VM's metrics. A private registry is used when it
	// is nil.
	Registry metric.Registry
}

func (f *Factory) New(logger log.Logger) (interface{}, error) {
	return &VM{
		Config:   f.Config,
		registry: f.Registry,
		log:      logger,
	}, nil
}
