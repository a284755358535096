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
	"github.com/luxfi/aminalvm/state"
	"github.com/luxfi/aminalvm/traits"
)

// Execution describes the result of executing a ticket.
type Execution struct {
	TicketID uint64        `json:"ticketID"`
	Outcome  state.Outcome `json:"outcome"`
	// The remaining fields are only set when the ticket bred.
	Offspring   ids.ShortID   `json:"offspring"`
	Components  traits.Set    `json:"components"`
	Recipients  []ids.ShortID `json:"recipients"`
	Settlements []Settlement  `json:"settlements"`
}

// Settlement is the result of asking one parent to pay the breeding fee.
type Settlement struct {
	Parent ids.ShortID  `json:"parent"`
	Paid   *uint256.Int `json:"paid"`
	// Error is set when the parent refused to pay. It never fails the
	// execution.
	Error string `json:"error,omitempty"`
}

// resolution is the winning component of every slot.
type resolution struct {
	components traits.Set
	// recipients are the distinct proposers of winning proposals, in slot
	// order.
	recipients []ids.ShortID
}

// ExecuteBreeding closes a ticket whose voting window has ended. A vetoed
// ticket ends there. Otherwise the winning component of every slot is
// resolved, the offspring is created and both parents are asked to pay
// the proposers of winning components.
func (e *Engine) ExecuteBreeding(ctx context.Context, ticketID uint64, caller ids.ShortID) (*Execution, error) {
	var execution *Execution
	err := e.ledger.Run(func(db database.Database) error {
		s := state.New(db)
		ticket, err := getTicket(s, ticketID)
		if err != nil {
			return err
		}
		if ticket.Executed {
			return fmt.Errorf("%w: %d", ErrAlreadyExecuted, ticketID)
		}
		if phase := e.phase(ticket); phase != state.Execution {
			return fmt.Errorf("%w: ticket %d is in %s, not %s", ErrPhaseMismatch, ticketID, phase, state.Execution)
		}

		veto, err := s.GetVetoTally(ticketID)
		if err != nil {
			return err
		}
		if vetoWins(veto) {
			ticket.Executed = true
			ticket.Outcome = state.Vetoed
			if err := s.PutTicket(ticket); err != nil {
				return err
			}
			execution = &Execution{
				TicketID: ticketID,
				Outcome:  state.Vetoed,
			}
			return e.emit(EventBreedingVetoed, ticketID,
				ledger.Attr{Key: "executor", Value: caller.String()},
				ledger.Attr{Key: "forVeto", Value: veto.ForVeto.Dec()},
				ledger.Attr{Key: "forProceed", Value: veto.ForProceed.Dec()},
			)
		}

		res, err := e.resolve(ctx, s, ticket)
		if err != nil {
			return err
		}
		offspring, err := e.factory.CreateOffspring(ctx, e.address, OffspringRequest{
			TicketID:    ticketID,
			ParentA:     ticket.ParentA,
			ParentB:     ticket.ParentB,
			Description: ticket.Description,
			MetadataRef: ticket.MetadataRef,
			Components:  res.components,
		})
		if err != nil {
			return fmt.Errorf("creating offspring of ticket %d: %w", ticketID, err)
		}

		ticket.Executed = true
		ticket.Outcome = state.Bred
		ticket.Offspring = offspring
		if err := s.PutTicket(ticket); err != nil {
			return err
		}
		if err := e.emit(EventBreedingExecuted, ticketID,
			ledger.Attr{Key: "executor", Value: caller.String()},
			ledger.Attr{Key: "offspring", Value: offspring.String()},
		); err != nil {
			return err
		}

		execution = &Execution{
			TicketID:   ticketID,
			Outcome:    state.Bred,
			Offspring:  offspring,
			Components: res.components,
			Recipients: res.recipients,
		}
		if len(res.recipients) == 0 {
			return nil
		}
		for _, parent := range []ids.ShortID{ticket.ParentA, ticket.ParentB} {
			settlement, err := e.settle(ctx, ticketID, parent, res.recipients)
			if err != nil {
				return err
			}
			execution.Settlements = append(execution.Settlements, settlement)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.MarkExecution(execution.Outcome.String())
	e.log.Info("executed breeding ticket",
		log.Uint64("ticketID", ticketID),
		log.Stringer("outcome", execution.Outcome),
		log.Stringer("offspring", execution.Offspring),
	)
	return execution, nil
}

// resolve picks the winning component of every slot. The trait ballot picks
// a parent, ties going to parent A. The most voted proposal, earliest on
// ties, replaces that parent's component only when it has strictly more
// votes than the winning parent. The bar is the winning side's total, never
// the losing side's: a proposal has to out-poll the ballot that was won.
func (e *Engine) resolve(ctx context.Context, s *state.State, ticket *state.Ticket) (*resolution, error) {
	componentsA, err := e.factory.ComponentsOf(ctx, ticket.ParentA)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", ticket.ParentA, err)
	}
	componentsB, err := e.factory.ComponentsOf(ctx, ticket.ParentB)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", ticket.ParentB, err)
	}

	res := &resolution{}
	seen := make(map[ids.ShortID]struct{})
	for _, slot := range traits.AllSlots() {
		tally, err := s.GetTraitTally(ticket.ID, slot)
		if err != nil {
			return nil, err
		}
		winner, winnerVotes := componentsA[slot], tally.ForA
		if tally.ForB.Gt(tally.ForA) {
			winner, winnerVotes = componentsB[slot], tally.ForB
		}

		votes, err := componentVotes(s, ticket.ID, slot)
		if err != nil {
			return nil, err
		}
		best := -1
		for i, v := range votes {
			if v.Gt(winnerVotes) && (best < 0 || v.Gt(votes[best])) {
				best = i
			}
		}
		if best < 0 {
			res.components[slot] = winner
			continue
		}

		proposals, err := s.GetProposals(ticket.ID, slot)
		if err != nil {
			return nil, err
		}
		proposal := proposals[best]
		res.components[slot] = proposal.Component
		if _, ok := seen[proposal.Proposer]; !ok {
			seen[proposal.Proposer] = struct{}{}
			res.recipients = append(res.recipients, proposal.Proposer)
		}
	}
	return res, nil
}

// settle asks parent to pay the breeding fee. A refusal is recorded and
// tolerated; only ledger failures are returned.
func (e *Engine) settle(ctx context.Context, ticketID uint64, parent ids.ShortID, recipients []ids.ShortID) (Settlement, error) {
	settlement := Settlement{
		Parent: parent,
		Paid:   new(uint256.Int),
	}
	payer, err := e.factory.FeePayer(parent)
	if err == nil {
		var paid *uint256.Int
		paid, err = payer.PayBreedingFee(ctx, e.address, recipients, ticketID)
		if err == nil {
			settlement.Paid = paid
			return settlement, nil
		}
	}

	e.log.Warn("breeding fee settlement failed",
		log.Uint64("ticketID", ticketID),
		log.Stringer("parent", parent),
		log.Err(err),
	)
	settlement.Error = err.Error()
	return settlement, e.emit(EventSettlementFailed, ticketID,
		ledger.Attr{Key: "parent", Value: parent.String()},
		ledger.Attr{Key: "error", Value: err.Error()},
	)
}
