// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package breeding

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/metrics"
	"github.com/luxfi/aminalvm/state"
	"github.com/luxfi/aminalvm/traits"
)

// SlotResult is the running trait tally of one slot.
type SlotResult struct {
	Slot traits.Slot  `json:"slot"`
	ForA *uint256.Int `json:"forA"`
	ForB *uint256.Int `json:"forB"`
}

// Vote casts or changes the voter's parent choice on each listed slot.
// slots[i] is paired with chooseParentA[i].
func (e *Engine) Vote(
	ctx context.Context,
	ticketID uint64,
	voter ids.ShortID,
	slots []traits.Slot,
	chooseParentA []bool,
) error {
	if len(slots) != len(chooseParentA) {
		return fmt.Errorf("%w: %d slots, %d choices", ErrArrayLengthMismatch, len(slots), len(chooseParentA))
	}
	for _, slot := range slots {
		if err := checkSlot(slot); err != nil {
			return err
		}
	}

	err := e.ledger.Run(func(db database.Database) error {
		s := state.New(db)
		ticket, err := e.requirePhase(s, ticketID, state.Voting)
		if err != nil || len(slots) == 0 {
			return err
		}
		power, err := e.lockPowerIfUnset(ctx, s, ticket, voter)
		if err != nil {
			return err
		}
		for i, slot := range slots {
			if err := e.voteTrait(s, ticketID, voter, power, slot, state.ParentChoice(chooseParentA[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for range slots {
		e.metrics.MarkVote(metrics.TraitBallot)
	}
	return nil
}

func (e *Engine) voteTrait(
	s *state.State,
	ticketID uint64,
	voter ids.ShortID,
	power *uint256.Int,
	slot traits.Slot,
	next state.Choice,
) error {
	prev, err := s.GetTraitChoice(ticketID, slot, voter)
	if err != nil {
		return err
	}
	if prev != next {
		tally, err := s.GetTraitTally(ticketID, slot)
		if err != nil {
			return err
		}
		if err := moveWeight(&tally.ForA, &tally.ForB, prev, next, power); err != nil {
			return err
		}
		if err := s.PutTraitTally(ticketID, slot, tally); err != nil {
			return err
		}
		if err := s.PutTraitChoice(ticketID, slot, voter, next); err != nil {
			return err
		}
	}

	e.log.Debug("trait vote cast",
		log.Uint64("ticketID", ticketID),
		log.Stringer("voter", voter),
		log.Stringer("slot", slot),
		log.Bool("parentA", next == state.ChoiceParentA),
	)
	return e.emit(EventTraitVote, ticketID,
		ledger.Attr{Key: "voter", Value: voter.String()},
		ledger.Attr{Key: "slot", Value: slot.String()},
		ledger.Attr{Key: "choice", Value: choiceName(next)},
		ledger.Attr{Key: "power", Value: power.Dec()},
	)
}

// GetVoteResults returns the trait tally of every slot.
func (e *Engine) GetVoteResults(_ context.Context, ticketID uint64) ([]SlotResult, error) {
	s := e.state()
	if _, err := getTicket(s, ticketID); err != nil {
		return nil, err
	}
	results := make([]SlotResult, 0, traits.NumSlots)
	for _, slot := range traits.AllSlots() {
		tally, err := s.GetTraitTally(ticketID, slot)
		if err != nil {
			return nil, err
		}
		results = append(results, SlotResult{
			Slot: slot,
			ForA: tally.ForA,
			ForB: tally.ForB,
		})
	}
	return results, nil
}

// moveWeight takes power off the side named by prev and adds it to the side
// named by next. Side one is ChoiceParentA, side two ChoiceParentB.
func moveWeight(one, two **uint256.Int, prev, next state.Choice, power *uint256.Int) error {
	side := func(c state.Choice) **uint256.Int {
		switch c {
		case state.ChoiceParentA:
			return one
		case state.ChoiceParentB:
			return two
		default:
			return nil
		}
	}
	if from := side(prev); from != nil {
		*from = new(uint256.Int).Sub(*from, power)
	}
	if to := side(next); to != nil {
		sum, err := ledger.AddAmount(*to, power)
		if err != nil {
			return err
		}
		*to = sum
	}
	return nil
}

func choiceName(c state.Choice) string {
	switch c {
	case state.ChoiceParentA:
		return "parentA"
	case state.ChoiceParentB:
		return "parentB"
	default:
		return "unset"
	}
}
