// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package breeding implements breeding governance: tickets move through a
// proposal window and a voting window, contributors vote with power locked
// at their first vote, and an executed ticket either breeds an offspring
// or is vetoed.
package breeding

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/aminalvm/config"
	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/metrics"
	"github.com/luxfi/aminalvm/oracle"
	"github.com/luxfi/aminalvm/state"
	"github.com/luxfi/aminalvm/traits"
)

// Event names emitted by the engine.
const (
	EventTicketCreated     = "BreedingTicketCreated"
	EventComponentProposed = "ComponentProposed"
	EventComponentVote     = "ComponentVoteCast"
	EventTraitVote         = "TraitVoteCast"
	EventVetoVote          = "VetoVoteCast"
	EventPowerLocked       = "VoterPowerLocked"
	EventBreedingExecuted  = "BreedingExecuted"
	EventBreedingVetoed    = "BreedingVetoed"
	EventSettlementFailed  = "BreedingSettlementFailed"
)

// Engine is the breeding governance contract. It is not safe for concurrent
// use; callers serialize access.
type Engine struct {
	address ids.ShortID
	config  config.Config
	log     log.Logger
	metrics metrics.Metrics

	ledger  *ledger.Ledger
	weights oracle.WeightOracle
	factory Factory
	// catalog is optional. When set, proposals naming a known gene must fit
	// the slot they are proposed for.
	catalog traits.Catalog
}

func New(
	address ids.ShortID,
	cfg config.Config,
	l *ledger.Ledger,
	weights oracle.WeightOracle,
	factory Factory,
	catalog traits.Catalog,
	m metrics.Metrics,
	logger log.Logger,
) *Engine {
	return &Engine{
		address: address,
		config:  cfg,
		log:     logger,
		metrics: m,
		ledger:  l,
		weights: weights,
		factory: factory,
		catalog: catalog,
	}
}

// Address is the identity the engine uses when it calls other contracts.
func (e *Engine) Address() ids.ShortID {
	return e.address
}

// CreateTicket opens a breeding ticket between two existing aminals.
func (e *Engine) CreateTicket(
	ctx context.Context,
	creator ids.ShortID,
	parentA ids.ShortID,
	parentB ids.ShortID,
	description string,
	metadataRef string,
) (uint64, error) {
	if parentA == parentB {
		return 0, ErrSameParents
	}
	if len(description) > e.config.MaxDescriptionLength {
		return 0, fmt.Errorf("%w: %d > %d", ErrDescriptionTooLong, len(description), e.config.MaxDescriptionLength)
	}
	for _, parent := range []ids.ShortID{parentA, parentB} {
		if _, err := e.factory.ComponentsOf(ctx, parent); err != nil {
			return 0, fmt.Errorf("parent %s: %w", parent, err)
		}
	}

	var ticketID uint64
	err := e.ledger.Run(func(db database.Database) error {
		s := state.New(db)
		id, err := s.NextTicketID()
		if err != nil {
			return err
		}
		ticket := &state.Ticket{
			ID:          id,
			ParentA:     parentA,
			ParentB:     parentB,
			Description: description,
			MetadataRef: metadataRef,
			Creator:     creator,
			CreatedAt:   e.ledger.Clock().Unix(),
		}
		if err := s.PutTicket(ticket); err != nil {
			return err
		}
		ticketID = id
		return e.emit(EventTicketCreated, id,
			ledger.Attr{Key: "parentA", Value: parentA.String()},
			ledger.Attr{Key: "parentB", Value: parentB.String()},
			ledger.Attr{Key: "creator", Value: creator.String()},
		)
	})
	if err != nil {
		return 0, err
	}

	e.metrics.IncTicketsCreated()
	e.log.Info("created breeding ticket",
		log.Uint64("ticketID", ticketID),
		log.Stringer("parentA", parentA),
		log.Stringer("parentB", parentB),
	)
	return ticketID, nil
}

// GetTicket returns the stored ticket.
func (e *Engine) GetTicket(_ context.Context, ticketID uint64) (*state.Ticket, error) {
	return getTicket(e.state(), ticketID)
}

func (e *Engine) TicketCount() (uint64, error) {
	return e.state().TicketCount()
}

// CurrentPhase derives the phase of a ticket at the current block time.
func (e *Engine) CurrentPhase(_ context.Context, ticketID uint64) (state.Phase, error) {
	ticket, err := getTicket(e.state(), ticketID)
	if err != nil {
		return 0, err
	}
	return e.phase(ticket), nil
}

// IsParentInTicket reports whether aminal is a parent of the ticket. Unknown
// tickets have no parents.
func (e *Engine) IsParentInTicket(_ context.Context, ticketID uint64, aminal ids.ShortID) (bool, error) {
	ticket, err := getTicket(e.state(), ticketID)
	if errors.Is(err, ErrUnknownTicket) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ticket.HasParent(aminal), nil
}

func (e *Engine) state() *state.State {
	return state.New(e.ledger.DB())
}

func (e *Engine) phase(ticket *state.Ticket) state.Phase {
	return ticket.PhaseAt(e.ledger.Clock().Time(), e.config.ProposalPeriod, e.config.VotingPeriod)
}

// requirePhase loads a ticket and fails unless it is in the wanted phase.
func (e *Engine) requirePhase(s *state.State, ticketID uint64, want state.Phase) (*state.Ticket, error) {
	ticket, err := getTicket(s, ticketID)
	if err != nil {
		return nil, err
	}
	if got := e.phase(ticket); got != want {
		return nil, fmt.Errorf("%w: ticket %d is in %s, not %s", ErrPhaseMismatch, ticketID, got, want)
	}
	return ticket, nil
}

func (e *Engine) emit(name string, ticketID uint64, attrs ...ledger.Attr) error {
	return e.ledger.Emit(ledger.Event{
		Emitter:  e.address,
		Name:     name,
		TicketID: ticketID,
		Attrs:    attrs,
	})
}

func getTicket(s *state.State, ticketID uint64) (*state.Ticket, error) {
	ticket, err := s.GetTicket(ticketID)
	if errors.Is(err, state.ErrTicketNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTicket, ticketID)
	}
	return ticket, err
}

func checkSlot(slot traits.Slot) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
