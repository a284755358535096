// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state stores breeding tickets and their ballots.
//
// Each ticket owns a prefixed namespace holding its locked powers, trait
// ballot, proposal ballot and veto ballot. Ballot records are created
// lazily by their first write.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"

	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/traits"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrCorrupted      = errors.New("state corrupted")

	ticketPrefix     = []byte("ticket:")
	ballotPrefix     = []byte("ballot:")
	ticketCounterKey = []byte("ticketCount")
)

// Per-ticket record kinds.
const (
	powerKind byte = iota
	traitChoiceKind
	traitTallyKind
	proposalKind
	proposalCountKind
	proposalTallyKind
	componentChoiceKind
	vetoChoiceKind
	vetoTallyKind
)

const (
	ChoiceUnset Choice = iota
	ChoiceParentA
	ChoiceParentB
)

// Choice is a contributor's pick on a binary ballot.
type Choice uint8

// ParentChoice maps a boolean parent-A selection to a Choice.
func ParentChoice(chooseParentA bool) Choice {
	if chooseParentA {
		return ChoiceParentA
	}
	return ChoiceParentB
}

// Tally holds the running totals of a trait slot.
type Tally struct {
	ForA *uint256.Int `json:"forA"`
	ForB *uint256.Int `json:"forB"`
}

// VetoTally holds the running totals of a veto ballot.
type VetoTally struct {
	ForVeto    *uint256.Int `json:"forVeto"`
	ForProceed *uint256.Int `json:"forProceed"`
}

// ProposalRecord is an externally supplied candidate for a slot. It is
// immutable once stored.
type ProposalRecord struct {
	Component  traits.ComponentRef `serialize:"true" json:"component"`
	Proposer   ids.ShortID         `serialize:"true" json:"proposer"`
	ProposedAt uint64              `serialize:"true" json:"proposedAt"`
}

// State reads and writes breeding records through db.
type State struct {
	db database.Database
}

func New(db database.Database) *State {
	return &State{db: db}
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func concat(parts ...[]byte) []byte {
	var key []byte
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func (s *State) ballotDB(ticketID uint64) database.Database {
	return prefixdb.New(concat(ballotPrefix, u64(ticketID)), s.db)
}

// NextTicketID reserves and returns the next sequential ticket id. Ids start
// at 1.
func (s *State) NextTicketID() (uint64, error) {
	count, err := database.GetUInt64(s.db, ticketCounterKey)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return 0, err
	}
	count++
	return count, database.PutUInt64(s.db, ticketCounterKey, count)
}

// TicketCount returns the number of tickets ever created.
func (s *State) TicketCount() (uint64, error) {
	count, err := database.GetUInt64(s.db, ticketCounterKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return count, err
}

func (s *State) GetTicket(id uint64) (*Ticket, error) {
	b, err := s.db.Get(concat(ticketPrefix, u64(id)))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrTicketNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	t := &Ticket{}
	if _, err := Codec.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("%w: ticket %d: %w", ErrCorrupted, id, err)
	}
	return t, nil
}

func (s *State) PutTicket(t *Ticket) error {
	b, err := Codec.Marshal(CodecVersion, t)
	if err != nil {
		return err
	}
	return s.db.Put(concat(ticketPrefix, u64(t.ID)), b)
}

// GetPower returns the locked power of contributor on a ticket, and whether
// it has been locked at all. Zero is a valid locked power.
func (s *State) GetPower(ticketID uint64, contributor ids.ShortID) (*uint256.Int, bool, error) {
	return ledger.ReadAmountOK(s.ballotDB(ticketID), concat([]byte{powerKind}, contributor[:]))
}

func (s *State) PutPower(ticketID uint64, contributor ids.ShortID, power *uint256.Int) error {
	return ledger.WriteAmount(s.ballotDB(ticketID), concat([]byte{powerKind}, contributor[:]), power)
}

func (s *State) GetTraitChoice(ticketID uint64, slot traits.Slot, contributor ids.ShortID) (Choice, error) {
	return s.getChoice(concat([]byte{traitChoiceKind, byte(slot)}, contributor[:]), ticketID)
}

func (s *State) PutTraitChoice(ticketID uint64, slot traits.Slot, contributor ids.ShortID, c Choice) error {
	return s.ballotDB(ticketID).Put(concat([]byte{traitChoiceKind, byte(slot)}, contributor[:]), []byte{byte(c)})
}

func (s *State) GetTraitTally(ticketID uint64, slot traits.Slot) (Tally, error) {
	db := s.ballotDB(ticketID)
	forA, err := ledger.ReadAmount(db, []byte{traitTallyKind, byte(slot), byte(ChoiceParentA)})
	if err != nil {
		return Tally{}, err
	}
	forB, err := ledger.ReadAmount(db, []byte{traitTallyKind, byte(slot), byte(ChoiceParentB)})
	if err != nil {
		return Tally{}, err
	}
	return Tally{ForA: forA, ForB: forB}, nil
}

func (s *State) PutTraitTally(ticketID uint64, slot traits.Slot, t Tally) error {
	db := s.ballotDB(ticketID)
	if err := ledger.WriteAmount(db, []byte{traitTallyKind, byte(slot), byte(ChoiceParentA)}, t.ForA); err != nil {
		return err
	}
	return ledger.WriteAmount(db, []byte{traitTallyKind, byte(slot), byte(ChoiceParentB)}, t.ForB)
}

// ProposalCount returns the number of proposals recorded for a slot.
func (s *State) ProposalCount(ticketID uint64, slot traits.Slot) (uint64, error) {
	count, err := database.GetUInt64(s.ballotDB(ticketID), []byte{proposalCountKind, byte(slot)})
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return count, err
}

// AppendProposal stores p at the end of the slot's list and returns its
// index.
func (s *State) AppendProposal(ticketID uint64, slot traits.Slot, p *ProposalRecord) (uint64, error) {
	index, err := s.ProposalCount(ticketID, slot)
	if err != nil {
		return 0, err
	}
	b, err := Codec.Marshal(CodecVersion, p)
	if err != nil {
		return 0, err
	}
	db := s.ballotDB(ticketID)
	if err := db.Put(concat([]byte{proposalKind, byte(slot)}, u64(index)), b); err != nil {
		return 0, err
	}
	return index, database.PutUInt64(db, []byte{proposalCountKind, byte(slot)}, index+1)
}

// GetProposals returns every proposal for a slot in index order.
func (s *State) GetProposals(ticketID uint64, slot traits.Slot) ([]ProposalRecord, error) {
	count, err := s.ProposalCount(ticketID, slot)
	if err != nil {
		return nil, err
	}
	db := s.ballotDB(ticketID)
	proposals := make([]ProposalRecord, count)
	for i := range proposals {
		b, err := db.Get(concat([]byte{proposalKind, byte(slot)}, u64(uint64(i))))
		if err != nil {
			return nil, fmt.Errorf("%w: proposal %d/%s/%d: %w", ErrCorrupted, ticketID, slot, i, err)
		}
		if _, err := Codec.Unmarshal(b, &proposals[i]); err != nil {
			return nil, fmt.Errorf("%w: proposal %d/%s/%d: %w", ErrCorrupted, ticketID, slot, i, err)
		}
	}
	return proposals, nil
}

func (s *State) GetProposalVotes(ticketID uint64, slot traits.Slot, index uint64) (*uint256.Int, error) {
	return ledger.ReadAmount(s.ballotDB(ticketID), concat([]byte{proposalTallyKind, byte(slot)}, u64(index)))
}

func (s *State) PutProposalVotes(ticketID uint64, slot traits.Slot, index uint64, votes *uint256.Int) error {
	return ledger.WriteAmount(s.ballotDB(ticketID), concat([]byte{proposalTallyKind, byte(slot)}, u64(index)), votes)
}

// GetComponentChoice returns the proposal index contributor last voted for
// on a slot, if any.
func (s *State) GetComponentChoice(ticketID uint64, slot traits.Slot, contributor ids.ShortID) (uint64, bool, error) {
	index, err := database.GetUInt64(s.ballotDB(ticketID), concat([]byte{componentChoiceKind, byte(slot)}, contributor[:]))
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return index, true, nil
}

func (s *State) PutComponentChoice(ticketID uint64, slot traits.Slot, contributor ids.ShortID, index uint64) error {
	return database.PutUInt64(s.ballotDB(ticketID), concat([]byte{componentChoiceKind, byte(slot)}, contributor[:]), index)
}

func (s *State) GetVetoChoice(ticketID uint64, contributor ids.ShortID) (Choice, error) {
	return s.getChoice(concat([]byte{vetoChoiceKind}, contributor[:]), ticketID)
}

func (s *State) PutVetoChoice(ticketID uint64, contributor ids.ShortID, c Choice) error {
	return s.ballotDB(ticketID).Put(concat([]byte{vetoChoiceKind}, contributor[:]), []byte{byte(c)})
}

// Veto ballots reuse ChoiceParentA for "veto" and ChoiceParentB for
// "proceed".
func (s *State) GetVetoTally(ticketID uint64) (VetoTally, error) {
	db := s.ballotDB(ticketID)
	forVeto, err := ledger.ReadAmount(db, []byte{vetoTallyKind, byte(ChoiceParentA)})
	if err != nil {
		return VetoTally{}, err
	}
	forProceed, err := ledger.ReadAmount(db, []byte{vetoTallyKind, byte(ChoiceParentB)})
	if err != nil {
		return VetoTally{}, err
	}
	return VetoTally{ForVeto: forVeto, ForProceed: forProceed}, nil
}

func (s *State) PutVetoTally(ticketID uint64, t VetoTally) error {
	db := s.ballotDB(ticketID)
	if err := ledger.WriteAmount(db, []byte{vetoTallyKind, byte(ChoiceParentA)}, t.ForVeto); err != nil {
		return err
	}
	return ledger.WriteAmount(db, []byte{vetoTallyKind, byte(ChoiceParentB)}, t.ForProceed)
}

func (s *State) getChoice(key []byte, ticketID uint64) (Choice, error) {
	b, err := s.ballotDB(ticketID).Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return ChoiceUnset, nil
	}
	if err != nil {
		return ChoiceUnset, err
	}
	if len(b) != 1 || Choice(b[0]) > ChoiceParentB {
		return ChoiceUnset, fmt.Errorf("%w: choice %x", ErrCorrupted, b)
	}
	return Choice(b[0]), nil
}
