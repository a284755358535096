// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package breeding

import (
	"context"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/metrics"
	"github.com/luxfi/aminalvm/state"
)

// VetoStatus is the running veto tally of a ticket.
type VetoStatus struct {
	ForVeto    *uint256.Int `json:"forVeto"`
	ForProceed *uint256.Int `json:"forProceed"`
	// Vetoed reports whether the ticket would be vetoed if executed now.
	Vetoed bool `json:"vetoed"`
}

// vetoWins reports whether a tally cancels breeding. Ties go to the veto
// unless nobody voted.
func vetoWins(t state.VetoTally) bool {
	return !t.ForVeto.IsZero() && t.ForVeto.Cmp(t.ForProceed) >= 0
}

// VoteOnVeto casts or changes the voter's veto choice.
func (e *Engine) VoteOnVeto(ctx context.Context, ticketID uint64, voter ids.ShortID, veto bool) error {
	err := e.ledger.Run(func(db database.Database) error {
		s := state.New(db)
		ticket, err := e.requirePhase(s, ticketID, state.Voting)
		if err != nil {
			return err
		}
		power, err := e.lockPowerIfUnset(ctx, s, ticket, voter)
		if err != nil {
			return err
		}

		// ChoiceParentA stands for veto, ChoiceParentB for proceed.
		next := state.ParentChoice(veto)
		prev, err := s.GetVetoChoice(ticketID, voter)
		if err != nil {
			return err
		}
		if prev != next {
			tally, err := s.GetVetoTally(ticketID)
			if err != nil {
				return err
			}
			if err := moveWeight(&tally.ForVeto, &tally.ForProceed, prev, next, power); err != nil {
				return err
			}
			if err := s.PutVetoTally(ticketID, tally); err != nil {
				return err
			}
			if err := s.PutVetoChoice(ticketID, voter, next); err != nil {
				return err
			}
		}

		e.log.Debug("veto vote cast",
			log.Uint64("ticketID", ticketID),
			log.Stringer("voter", voter),
			log.Bool("veto", veto),
		)
		return e.emit(EventVetoVote, ticketID,
			ledger.Attr{Key: "voter", Value: voter.String()},
			ledger.Attr{Key: "veto", Value: strconv.FormatBool(veto)},
			ledger.Attr{Key: "power", Value: power.Dec()},
		)
	})
	if err != nil {
		return err
	}
	e.metrics.MarkVote(metrics.VetoBallot)
	return nil
}

// GetVetoStatus returns the veto tally of a ticket.
func (e *Engine) GetVetoStatus(_ context.Context, ticketID uint64) (*VetoStatus, error) {
	s := e.state()
	if _, err := getTicket(s, ticketID); err != nil {
		return nil, err
	}
	tally, err := s.GetVetoTally(ticketID)
	if err != nil {
		return nil, err
	}
	return &VetoStatus{
		ForVeto:    tally.ForVeto,
		ForProceed: tally.ForProceed,
		Vetoed:     vetoWins(tally),
	}, nil
}
