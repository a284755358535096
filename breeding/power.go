// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package breeding

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/state"
)

// VoterPower returns the power locked by contributor on a ticket and whether
// it has been locked yet.
func (e *Engine) VoterPower(_ context.Context, ticketID uint64, contributor ids.ShortID) (*uint256.Int, bool, error) {
	s := e.state()
	if _, err := getTicket(s, ticketID); err != nil {
		return nil, false, err
	}
	return s.GetPower(ticketID, contributor)
}

// lockPowerIfUnset returns the contributor's locked power on the ticket,
// capturing it from the weight oracle on first use. The oracle is queried at
// most once per contributor and ticket.
func (e *Engine) lockPowerIfUnset(
	ctx context.Context,
	s *state.State,
	ticket *state.Ticket,
	contributor ids.ShortID,
) (*uint256.Int, error) {
	power, locked, err := s.GetPower(ticket.ID, contributor)
	if err != nil || locked {
		return power, err
	}

	weightA, err := e.weights.WeightOf(ctx, ticket.ParentA, contributor)
	if err != nil {
		return nil, fmt.Errorf("weight on %s: %w", ticket.ParentA, err)
	}
	weightB, err := e.weights.WeightOf(ctx, ticket.ParentB, contributor)
	if err != nil {
		return nil, fmt.Errorf("weight on %s: %w", ticket.ParentB, err)
	}
	power, err = ledger.AddAmount(weightA, weightB)
	if err != nil {
		return nil, err
	}
	if err := s.PutPower(ticket.ID, contributor, power); err != nil {
		return nil, err
	}

	e.log.Debug("locked voter power",
		log.Uint64("ticketID", ticket.ID),
		log.Stringer("contributor", contributor),
		log.String("power", power.Dec()),
	)
	return power, e.emit(EventPowerLocked, ticket.ID,
		ledger.Attr{Key: "contributor", Value: contributor.String()},
		ledger.Attr{Key: "power", Value: power.Dec()},
	)
}
