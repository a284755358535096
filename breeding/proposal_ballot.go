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

// ProposeComponent offers component as a candidate for slot and returns the
// index the proposal was stored at. Anyone may propose.
func (e *Engine) ProposeComponent(
	ctx context.Context,
	ticketID uint64,
	proposer ids.ShortID,
	slot traits.Slot,
	component traits.ComponentRef,
) (uint64, error) {
	if err := checkSlot(slot); err != nil {
		return 0, err
	}
	if component.Contract == ids.ShortEmpty {
		return 0, fmt.Errorf("%w: empty contract", ErrInvalidComponent)
	}

	var index uint64
	err := e.ledger.Run(func(db database.Database) error {
		s := state.New(db)
		if _, err := e.requirePhase(s, ticketID, state.Proposal); err != nil {
			return err
		}
		if err := e.checkFits(ctx, slot, component); err != nil {
			return err
		}

		var err error
		index, err = s.AppendProposal(ticketID, slot, &state.ProposalRecord{
			Component:  component,
			Proposer:   proposer,
			ProposedAt: e.ledger.Clock().Unix(),
		})
		if err != nil {
			return err
		}
		return e.emit(EventComponentProposed, ticketID,
			ledger.Attr{Key: "proposer", Value: proposer.String()},
			ledger.Attr{Key: "slot", Value: slot.String()},
			ledger.Attr{Key: "component", Value: component.String()},
			ledger.Attr{Key: "index", Value: formatUint(index)},
		)
	})
	if err != nil {
		return 0, err
	}

	e.metrics.IncProposals()
	e.log.Debug("component proposed",
		log.Uint64("ticketID", ticketID),
		log.Stringer("slot", slot),
		log.Stringer("component", component),
		log.Uint64("index", index),
	)
	return index, nil
}

// checkFits rejects components whose gene reports a different slot. Genes
// missing from the catalog are admitted.
func (e *Engine) checkFits(ctx context.Context, slot traits.Slot, component traits.ComponentRef) error {
	if e.catalog == nil {
		return nil
	}
	gene, ok := e.catalog.Gene(component.Contract)
	if !ok {
		return nil
	}
	got, err := gene.TraitType(ctx, component.TokenID)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidComponent, component, err)
	}
	if got != slot {
		return fmt.Errorf("%w: %s is a %s component, not %s", ErrSlotMismatch, component, got, slot)
	}
	return nil
}

// VoteForComponent casts or moves the voter's vote on slot to the proposal
// at index.
func (e *Engine) VoteForComponent(
	ctx context.Context,
	ticketID uint64,
	voter ids.ShortID,
	slot traits.Slot,
	index uint64,
) error {
	if err := checkSlot(slot); err != nil {
		return err
	}

	err := e.ledger.Run(func(db database.Database) error {
		s := state.New(db)
		ticket, err := e.requirePhase(s, ticketID, state.Voting)
		if err != nil {
			return err
		}
		count, err := s.ProposalCount(ticketID, slot)
		if err != nil {
			return err
		}
		if index >= count {
			return fmt.Errorf("%w: %d >= %d proposals for %s", ErrInvalidIndex, index, count, slot)
		}
		power, err := e.lockPowerIfUnset(ctx, s, ticket, voter)
		if err != nil {
			return err
		}

		prev, voted, err := s.GetComponentChoice(ticketID, slot, voter)
		if err != nil {
			return err
		}
		if !voted || prev != index {
			if voted {
				votes, err := s.GetProposalVotes(ticketID, slot, prev)
				if err != nil {
					return err
				}
				if err := s.PutProposalVotes(ticketID, slot, prev, new(uint256.Int).Sub(votes, power)); err != nil {
					return err
				}
			}
			votes, err := s.GetProposalVotes(ticketID, slot, index)
			if err != nil {
				return err
			}
			votes, err = ledger.AddAmount(votes, power)
			if err != nil {
				return err
			}
			if err := s.PutProposalVotes(ticketID, slot, index, votes); err != nil {
				return err
			}
			if err := s.PutComponentChoice(ticketID, slot, voter, index); err != nil {
				return err
			}
		}
		return e.emit(EventComponentVote, ticketID,
			ledger.Attr{Key: "voter", Value: voter.String()},
			ledger.Attr{Key: "slot", Value: slot.String()},
			ledger.Attr{Key: "index", Value: formatUint(index)},
			ledger.Attr{Key: "power", Value: power.Dec()},
		)
	})
	if err != nil {
		return err
	}
	e.metrics.MarkVote(metrics.ProposalBallot)
	return nil
}

// GetActiveProposals returns every proposal for slot in index order.
func (e *Engine) GetActiveProposals(_ context.Context, ticketID uint64, slot traits.Slot) ([]state.ProposalRecord, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	s := e.state()
	if _, err := getTicket(s, ticketID); err != nil {
		return nil, err
	}
	return s.GetProposals(ticketID, slot)
}

// GetComponentVotes returns the vote total of every proposal for slot, in
// index order.
func (e *Engine) GetComponentVotes(_ context.Context, ticketID uint64, slot traits.Slot) ([]*uint256.Int, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	s := e.state()
	if _, err := getTicket(s, ticketID); err != nil {
		return nil, err
	}
	return componentVotes(s, ticketID, slot)
}

func componentVotes(s *state.State, ticketID uint64, slot traits.Slot) ([]*uint256.Int, error) {
	count, err := s.ProposalCount(ticketID, slot)
	if err != nil {
		return nil, err
	}
	votes := make([]*uint256.Int, count)
	for i := range votes {
		votes[i], err = s.GetProposalVotes(ticketID, slot, uint64(i))
		if err != nil {
			return nil, err
		}
	}
	return votes, nil
}
