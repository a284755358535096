// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package breeding

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/aminalvm/traits"
)

// OffspringRequest carries everything the factory needs to create the
// offspring of an executed ticket.
type OffspringRequest struct {
	TicketID    uint64
	ParentA     ids.ShortID
	ParentB     ids.ShortID
	Description string
	MetadataRef string
	Components  traits.Set
}

// Factory creates and tracks aminals.
type Factory interface {
	// ComponentsOf returns the components of an existing aminal.
	ComponentsOf(ctx context.Context, aminal ids.ShortID) (traits.Set, error)
	// CreateOffspring creates a new aminal on behalf of caller and returns
	// its address.
	CreateOffspring(ctx context.Context, caller ids.ShortID, req OffspringRequest) (ids.ShortID, error)
	// FeePayer returns the settlement endpoint of an existing aminal.
	FeePayer(aminal ids.ShortID) (FeePayer, error)
}

// FeePayer is the settlement endpoint exposed by a parent aminal.
type FeePayer interface {
	PayBreedingFee(ctx context.Context, caller ids.ShortID, recipients []ids.ShortID, ticketID uint64) (*uint256.Int, error)
}
