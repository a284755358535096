// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle provides contributor weights to the breeding engine.
package oracle

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// WeightOracle reports how much weight a contributor holds on an entity.
// Implementations must be side-effect free and callable at any time.
type WeightOracle interface {
	WeightOf(ctx context.Context, entity, contributor ids.ShortID) (*uint256.Int, error)
}
