// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api provides the JSON-RPC service of the Aminal VM.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/aminalvm/breeding"
	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/registry"
	"github.com/luxfi/aminalvm/state"
	"github.com/luxfi/aminalvm/traits"
	"github.com/luxfi/aminalvm/utils/json"
)

const defaultEventLimit = 100

var ErrInvalidRequest = errors.New("invalid request")

// VM is the surface of the Aminal VM exposed over RPC. Every call is
// serialized by the VM.
type VM interface {
	Version(context.Context) (string, error)
	Ready() bool
	Now() time.Time

	CreateTicket(ctx context.Context, creator, parentA, parentB ids.ShortID, description, metadataRef string) (uint64, error)
	ProposeComponent(ctx context.Context, ticketID uint64, proposer ids.ShortID, slot traits.Slot, component traits.ComponentRef) (uint64, error)
	Vote(ctx context.Context, ticketID uint64, voter ids.ShortID, slots []traits.Slot, chooseParentA []bool) error
	VoteForComponent(ctx context.Context, ticketID uint64, voter ids.ShortID, slot traits.Slot, index uint64) error
	VoteOnVeto(ctx context.Context, ticketID uint64, voter ids.ShortID, veto bool) error
	ExecuteBreeding(ctx context.Context, ticketID uint64, caller ids.ShortID) (*breeding.Execution, error)
	Feed(ctx context.Context, aminal, contributor ids.ShortID, amount *uint256.Int) error
	PayBreedingFee(ctx context.Context, aminal, caller ids.ShortID, recipients []ids.ShortID, ticketID uint64) (*uint256.Int, error)

	GetTicket(ctx context.Context, ticketID uint64) (*state.Ticket, error)
	CurrentPhase(ctx context.Context, ticketID uint64) (state.Phase, error)
	GetActiveProposals(ctx context.Context, ticketID uint64, slot traits.Slot) ([]state.ProposalRecord, error)
	GetComponentVotes(ctx context.Context, ticketID uint64, slot traits.Slot) ([]*uint256.Int, error)
	GetVoteResults(ctx context.Context, ticketID uint64) ([]breeding.SlotResult, error)
	GetVetoStatus(ctx context.Context, ticketID uint64) (*breeding.VetoStatus, error)
	VoterPower(ctx context.Context, ticketID uint64, contributor ids.ShortID) (*uint256.Int, bool, error)
	IsParentInTicket(ctx context.Context, ticketID uint64, aminal ids.ShortID) (bool, error)

	Love(aminal, contributor ids.ShortID) (*uint256.Int, error)
	TotalLove(aminal ids.ShortID) (*uint256.Int, error)
	Balance(address ids.ShortID) (*uint256.Int, error)
	Events(from uint64, limit int) ([]ledger.Event, error)
	GetAminal(address ids.ShortID) (*registry.Record, error)
	Aminals() ([]*registry.Record, error)
}

// Service provides the RPC API of the Aminal VM.
type Service struct {
	vm VM
}

func NewService(vm VM) *Service {
	return &Service{vm: vm}
}

type StatusArgs struct{}

type StatusReply struct {
	Ready   bool        `json:"ready"`
	Version string      `json:"version"`
	Time    json.Uint64 `json:"time"`
}

// Status reports whether the VM accepts operations and its block time.
func (s *Service) Status(r *http.Request, _ *StatusArgs, reply *StatusReply) error {
	version, err := s.vm.Version(r.Context())
	if err != nil {
		return err
	}
	reply.Ready = s.vm.Ready()
	reply.Version = version
	reply.Time = json.Uint64(s.vm.Now().Unix())
	return nil
}

type CreateTicketArgs struct {
	From        string `json:"from"`
	ParentA     string `json:"parentA"`
	ParentB     string `json:"parentB"`
	Description string `json:"description"`
	MetadataRef string `json:"metadataRef"`
}

type TicketIDReply struct {
	TicketID json.Uint64 `json:"ticketID"`
}

func (s *Service) CreateTicket(r *http.Request, args *CreateTicketArgs, reply *TicketIDReply) error {
	from, err := parseAddress("from", args.From)
	if err != nil {
		return err
	}
	parentA, err := parseAddress("parentA", args.ParentA)
	if err != nil {
		return err
	}
	parentB, err := parseAddress("parentB", args.ParentB)
	if err != nil {
		return err
	}
	id, err := s.vm.CreateTicket(r.Context(), from, parentA, parentB, args.Description, args.MetadataRef)
	if err != nil {
		return err
	}
	reply.TicketID = json.Uint64(id)
	return nil
}

type ComponentRef struct {
	Contract string      `json:"contract"`
	TokenID  json.Uint64 `json:"tokenID"`
}

type ProposeComponentArgs struct {
	From      string       `json:"from"`
	TicketID  json.Uint64  `json:"ticketID"`
	Slot      string       `json:"slot"`
	Component ComponentRef `json:"component"`
}

type IndexReply struct {
	Index json.Uint64 `json:"index"`
}

func (s *Service) ProposeComponent(r *http.Request, args *ProposeComponentArgs, reply *IndexReply) error {
	from, err := parseAddress("from", args.From)
	if err != nil {
		return err
	}
	slot, err := parseSlot(args.Slot)
	if err != nil {
		return err
	}
	contract, err := parseAddress("contract", args.Component.Contract)
	if err != nil {
		return err
	}
	index, err := s.vm.ProposeComponent(r.Context(), uint64(args.TicketID), from, slot, traits.ComponentRef{
		Contract: contract,
		TokenID:  uint64(args.Component.TokenID),
	})
	if err != nil {
		return err
	}
	reply.Index = json.Uint64(index)
	return nil
}

type VoteTraitsArgs struct {
	From          string      `json:"from"`
	TicketID      json.Uint64 `json:"ticketID"`
	Slots         []string    `json:"slots"`
	ChooseParentA []bool      `json:"chooseParentA"`
}

type EmptyReply struct{}

// VoteTraits casts trait votes. slots[i] is paired with chooseParentA[i].
func (s *Service) VoteTraits(r *http.Request, args *VoteTraitsArgs, _ *EmptyReply) error {
	from, err := parseAddress("from", args.From)
	if err != nil {
		return err
	}
	slots := make([]traits.Slot, len(args.Slots))
	for i, name := range args.Slots {
		if slots[i], err = parseSlot(name); err != nil {
			return err
		}
	}
	return s.vm.Vote(r.Context(), uint64(args.TicketID), from, slots, args.ChooseParentA)
}

type VoteForComponentArgs struct {
	From     string      `json:"from"`
	TicketID json.Uint64 `json:"ticketID"`
	Slot     string      `json:"slot"`
	Index    json.Uint64 `json:"index"`
}

func (s *Service) VoteForComponent(r *http.Request, args *VoteForComponentArgs, _ *EmptyReply) error {
	from, err := parseAddress("from", args.From)
	if err != nil {
		return err
	}
	slot, err := parseSlot(args.Slot)
	if err != nil {
		return err
	}
	return s.vm.VoteForComponent(r.Context(), uint64(args.TicketID), from, slot, uint64(args.Index))
}

type VoteOnVetoArgs struct {
	From     string      `json:"from"`
	TicketID json.Uint64 `json:"ticketID"`
	Veto     bool        `json:"veto"`
}

func (s *Service) VoteOnVeto(r *http.Request, args *VoteOnVetoArgs, _ *EmptyReply) error {
	from, err := parseAddress("from", args.From)
	if err != nil {
		return err
	}
	return s.vm.VoteOnVeto(r.Context(), uint64(args.TicketID), from, args.Veto)
}

type ExecuteBreedingArgs struct {
	From     string      `json:"from"`
	TicketID json.Uint64 `json:"ticketID"`
}

type Settlement struct {
	Parent string      `json:"parent"`
	Paid   json.Amount `json:"paid"`
	Error  string      `json:"error,omitempty"`
}

type ExecuteBreedingReply struct {
	Outcome     string                  `json:"outcome"`
	Offspring   string                  `json:"offspring,omitempty"`
	Components  map[string]ComponentRef `json:"components,omitempty"`
	Recipients  []string                `json:"recipients,omitempty"`
	Settlements []Settlement            `json:"settlements,omitempty"`
}

func (s *Service) ExecuteBreeding(r *http.Request, args *ExecuteBreedingArgs, reply *ExecuteBreedingReply) error {
	from, err := parseAddress("from", args.From)
	if err != nil {
		return err
	}
	execution, err := s.vm.ExecuteBreeding(r.Context(), uint64(args.TicketID), from)
	if err != nil {
		return err
	}
	reply.Outcome = execution.Outcome.String()
	if execution.Outcome != state.Bred {
		return nil
	}
	reply.Offspring = execution.Offspring.String()
	reply.Components = formatComponents(execution.Components)
	for _, recipient := range execution.Recipients {
		reply.Recipients = append(reply.Recipients, recipient.String())
	}
	for _, settlement := range execution.Settlements {
		reply.Settlements = append(reply.Settlements, Settlement{
			Parent: settlement.Parent.String(),
			Paid:   json.NewAmount(settlement.Paid),
			Error:  settlement.Error,
		})
	}
	return nil
}

type FeedArgs struct {
	From   string      `json:"from"`
	Aminal string      `json:"aminal"`
	Amount json.Amount `json:"amount"`
}

// Feed transfers amount from the caller to an Aminal and records the love.
func (s *Service) Feed(r *http.Request, args *FeedArgs, _ *EmptyReply) error {
	from, err := parseAddress("from", args.From)
	if err != nil {
		return err
	}
	aminal, err := parseAddress("aminal", args.Aminal)
	if err != nil {
		return err
	}
	return s.vm.Feed(r.Context(), aminal, from, args.Amount.Int())
}

type PayBreedingFeeArgs struct {
	From       string      `json:"from"`
	Aminal     string      `json:"aminal"`
	Recipients []string    `json:"recipients"`
	TicketID   json.Uint64 `json:"ticketID"`
}

// PayBreedingFee asks an Aminal to pay its breeding fee for a ticket. Only
// breeding governance is authorized, so any other caller is rejected.
func (s *Service) PayBreedingFee(r *http.Request, args *PayBreedingFeeArgs, reply *AmountReply) error {
	from, err := parseAddress("from", args.From)
	if err != nil {
		return err
	}
	aminal, err := parseAddress("aminal", args.Aminal)
	if err != nil {
		return err
	}
	recipients := make([]ids.ShortID, len(args.Recipients))
	for i, recipient := range args.Recipients {
		if recipients[i], err = parseAddress("recipients", recipient); err != nil {
			return err
		}
	}
	paid, err := s.vm.PayBreedingFee(r.Context(), aminal, from, recipients, uint64(args.TicketID))
	if err != nil {
		return err
	}
	reply.Amount = json.NewAmount(paid)
	return nil
}

type TicketArgs struct {
	TicketID json.Uint64 `json:"ticketID"`
}

type GetTicketReply struct {
	TicketID    json.Uint64 `json:"ticketID"`
	ParentA     string      `json:"parentA"`
	ParentB     string      `json:"parentB"`
	Description string      `json:"description"`
	MetadataRef string      `json:"metadataRef"`
	Creator     string      `json:"creator"`
	CreatedAt   json.Uint64 `json:"createdAt"`
	Phase       string      `json:"phase"`
	Executed    bool        `json:"executed"`
	Outcome     string      `json:"outcome"`
	Offspring   string      `json:"offspring,omitempty"`
}

func (s *Service) GetTicket(r *http.Request, args *TicketArgs, reply *GetTicketReply) error {
	ctx := r.Context()
	id := uint64(args.TicketID)
	ticket, err := s.vm.GetTicket(ctx, id)
	if err != nil {
		return err
	}
	phase, err := s.vm.CurrentPhase(ctx, id)
	if err != nil {
		return err
	}
	reply.TicketID = json.Uint64(ticket.ID)
	reply.ParentA = ticket.ParentA.String()
	reply.ParentB = ticket.ParentB.String()
	reply.Description = ticket.Description
	reply.MetadataRef = ticket.MetadataRef
	reply.Creator = ticket.Creator.String()
	reply.CreatedAt = json.Uint64(ticket.CreatedAt)
	reply.Phase = phase.String()
	reply.Executed = ticket.Executed
	reply.Outcome = ticket.Outcome.String()
	if ticket.Outcome == state.Bred {
		reply.Offspring = ticket.Offspring.String()
	}
	return nil
}

type PhaseReply struct {
	Phase string `json:"phase"`
}

func (s *Service) CurrentPhase(r *http.Request, args *TicketArgs, reply *PhaseReply) error {
	phase, err := s.vm.CurrentPhase(r.Context(), uint64(args.TicketID))
	if err != nil {
		return err
	}
	reply.Phase = phase.String()
	return nil
}

type SlotArgs struct {
	TicketID json.Uint64 `json:"ticketID"`
	Slot     string      `json:"slot"`
}

type Proposal struct {
	Index      json.Uint64  `json:"index"`
	Component  ComponentRef `json:"component"`
	Proposer   string       `json:"proposer"`
	ProposedAt json.Uint64  `json:"proposedAt"`
	Votes      json.Amount  `json:"votes"`
}

type GetActiveProposalsReply struct {
	Proposals []Proposal `json:"proposals"`
}

// GetActiveProposals lists every proposal for a slot with its vote total.
func (s *Service) GetActiveProposals(r *http.Request, args *SlotArgs, reply *GetActiveProposalsReply) error {
	ctx := r.Context()
	slot, err := parseSlot(args.Slot)
	if err != nil {
		return err
	}
	id := uint64(args.TicketID)
	proposals, err := s.vm.GetActiveProposals(ctx, id, slot)
	if err != nil {
		return err
	}
	votes, err := s.vm.GetComponentVotes(ctx, id, slot)
	if err != nil {
		return err
	}
	if len(votes) != len(proposals) {
		return fmt.Errorf("%d proposals but %d vote totals", len(proposals), len(votes))
	}
	reply.Proposals = make([]Proposal, len(proposals))
	for i, p := range proposals {
		reply.Proposals[i] = Proposal{
			Index:      json.Uint64(i),
			Component:  formatComponent(p.Component),
			Proposer:   p.Proposer.String(),
			ProposedAt: json.Uint64(p.ProposedAt),
			Votes:      json.NewAmount(votes[i]),
		}
	}
	return nil
}

type GetComponentVotesReply struct {
	Votes []json.Amount `json:"votes"`
}

func (s *Service) GetComponentVotes(r *http.Request, args *SlotArgs, reply *GetComponentVotesReply) error {
	slot, err := parseSlot(args.Slot)
	if err != nil {
		return err
	}
	votes, err := s.vm.GetComponentVotes(r.Context(), uint64(args.TicketID), slot)
	if err != nil {
		return err
	}
	reply.Votes = make([]json.Amount, len(votes))
	for i, v := range votes {
		reply.Votes[i] = json.NewAmount(v)
	}
	return nil
}

type SlotResult struct {
	Slot string      `json:"slot"`
	ForA json.Amount `json:"forA"`
	ForB json.Amount `json:"forB"`
}

type GetVoteResultsReply struct {
	Results []SlotResult `json:"results"`
}

func (s *Service) GetVoteResults(r *http.Request, args *TicketArgs, reply *GetVoteResultsReply) error {
	results, err := s.vm.GetVoteResults(r.Context(), uint64(args.TicketID))
	if err != nil {
		return err
	}
	reply.Results = make([]SlotResult, len(results))
	for i, result := range results {
		reply.Results[i] = SlotResult{
			Slot: result.Slot.String(),
			ForA: json.NewAmount(result.ForA),
			ForB: json.NewAmount(result.ForB),
		}
	}
	return nil
}

type GetVetoStatusReply struct {
	ForVeto    json.Amount `json:"forVeto"`
	ForProceed json.Amount `json:"forProceed"`
	Vetoed     bool        `json:"vetoed"`
}

func (s *Service) GetVetoStatus(r *http.Request, args *TicketArgs, reply *GetVetoStatusReply) error {
	status, err := s.vm.GetVetoStatus(r.Context(), uint64(args.TicketID))
	if err != nil {
		return err
	}
	reply.ForVeto = json.NewAmount(status.ForVeto)
	reply.ForProceed = json.NewAmount(status.ForProceed)
	reply.Vetoed = status.Vetoed
	return nil
}

type VoterPowerArgs struct {
	TicketID json.Uint64 `json:"ticketID"`
	Address  string      `json:"address"`
}

type VoterPowerReply struct {
	Power  json.Amount `json:"power"`
	Locked bool        `json:"locked"`
}

func (s *Service) VoterPower(r *http.Request, args *VoterPowerArgs, reply *VoterPowerReply) error {
	addr, err := parseAddress("address", args.Address)
	if err != nil {
		return err
	}
	power, locked, err := s.vm.VoterPower(r.Context(), uint64(args.TicketID), addr)
	if err != nil {
		return err
	}
	reply.Power = json.NewAmount(power)
	reply.Locked = locked
	return nil
}

type IsParentInTicketArgs struct {
	TicketID json.Uint64 `json:"ticketID"`
	Aminal   string      `json:"aminal"`
}

type IsParentInTicketReply struct {
	IsParent bool `json:"isParent"`
}

func (s *Service) IsParentInTicket(r *http.Request, args *IsParentInTicketArgs, reply *IsParentInTicketReply) error {
	aminal, err := parseAddress("aminal", args.Aminal)
	if err != nil {
		return err
	}
	reply.IsParent, err = s.vm.IsParentInTicket(r.Context(), uint64(args.TicketID), aminal)
	return err
}

type AddressArgs struct {
	Address string `json:"address"`
}

type AmountReply struct {
	Amount json.Amount `json:"amount"`
}

func (s *Service) GetBalance(_ *http.Request, args *AddressArgs, reply *AmountReply) error {
	addr, err := parseAddress("address", args.Address)
	if err != nil {
		return err
	}
	balance, err := s.vm.Balance(addr)
	if err != nil {
		return err
	}
	reply.Amount = json.NewAmount(balance)
	return nil
}

type GetLoveArgs struct {
	Aminal      string `json:"aminal"`
	Contributor string `json:"contributor"`
}

// GetLove returns the love contributor has given aminal, or the total love
// of aminal when contributor is empty.
func (s *Service) GetLove(_ *http.Request, args *GetLoveArgs, reply *AmountReply) error {
	aminal, err := parseAddress("aminal", args.Aminal)
	if err != nil {
		return err
	}
	var love *uint256.Int
	if args.Contributor == "" {
		love, err = s.vm.TotalLove(aminal)
	} else {
		contributor, parseErr := parseAddress("contributor", args.Contributor)
		if parseErr != nil {
			return parseErr
		}
		love, err = s.vm.Love(aminal, contributor)
	}
	if err != nil {
		return err
	}
	reply.Amount = json.NewAmount(love)
	return nil
}

type GetEventsArgs struct {
	From  json.Uint64 `json:"from"`
	Limit int         `json:"limit"`
}

type Event struct {
	Seq      json.Uint64       `json:"seq"`
	Time     json.Uint64       `json:"time"`
	Emitter  string            `json:"emitter"`
	Name     string            `json:"name"`
	TicketID json.Uint64       `json:"ticketID"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

type GetEventsReply struct {
	Events []Event `json:"events"`
}

// GetEvents pages through the event log starting at sequence From.
func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	limit := args.Limit
	if limit <= 0 || limit > defaultEventLimit {
		limit = defaultEventLimit
	}
	events, err := s.vm.Events(uint64(args.From), limit)
	if err != nil {
		return err
	}
	reply.Events = make([]Event, len(events))
	for i, e := range events {
		reply.Events[i] = Event{
			Seq:      json.Uint64(e.Seq),
			Time:     json.Uint64(e.Time),
			Emitter:  e.Emitter.String(),
			Name:     e.Name,
			TicketID: json.Uint64(e.TicketID),
		}
		if len(e.Attrs) > 0 {
			attrs := make(map[string]string, len(e.Attrs))
			for _, a := range e.Attrs {
				attrs[a.Key] = a.Value
			}
			reply.Events[i].Attrs = attrs
		}
	}
	return nil
}

type Aminal struct {
	Address    string                  `json:"address"`
	Name       string                  `json:"name"`
	Components map[string]ComponentRef `json:"components"`
	ParentA    string                  `json:"parentA,omitempty"`
	ParentB    string                  `json:"parentB,omitempty"`
	TicketID   json.Uint64             `json:"ticketID"`
	CreatedAt  json.Uint64             `json:"createdAt"`
}

func (s *Service) GetAminal(_ *http.Request, args *AddressArgs, reply *Aminal) error {
	addr, err := parseAddress("address", args.Address)
	if err != nil {
		return err
	}
	record, err := s.vm.GetAminal(addr)
	if err != nil {
		return err
	}
	*reply = formatAminal(record)
	return nil
}

type ListAminalsArgs struct{}

type ListAminalsReply struct {
	Aminals []Aminal `json:"aminals"`
}

func (s *Service) ListAminals(_ *http.Request, _ *ListAminalsArgs, reply *ListAminalsReply) error {
	records, err := s.vm.Aminals()
	if err != nil {
		return err
	}
	reply.Aminals = make([]Aminal, len(records))
	for i, record := range records {
		reply.Aminals[i] = formatAminal(record)
	}
	return nil
}

func parseAddress(field, s string) (ids.ShortID, error) {
	if s == "" {
		return ids.ShortEmpty, fmt.Errorf("%w: missing %s", ErrInvalidRequest, field)
	}
	addr, err := ids.ShortFromString(s)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, field, err)
	}
	return addr, nil
}

func parseSlot(name string) (traits.Slot, error) {
	slot, err := traits.ParseSlot(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return slot, nil
}

func formatComponent(ref traits.ComponentRef) ComponentRef {
	return ComponentRef{
		Contract: ref.Contract.String(),
		TokenID:  json.Uint64(ref.TokenID),
	}
}

// formatComponents keys the filled slots of set by slot name.
func formatComponents(set traits.Set) map[string]ComponentRef {
	components := make(map[string]ComponentRef, traits.NumSlots)
	for _, slot := range traits.AllSlots() {
		ref := set[slot]
		if ref.IsZero() {
			continue
		}
		components[slot.String()] = formatComponent(ref)
	}
	return components
}

func formatAminal(record *registry.Record) Aminal {
	a := Aminal{
		Address:    record.Address.String(),
		Name:       record.Name,
		Components: formatComponents(record.Components),
		TicketID:   json.Uint64(record.TicketID),
		CreatedAt:  json.Uint64(record.CreatedAt),
	}
	if record.TicketID != 0 {
		a.ParentA = record.ParentA.String()
		a.ParentB = record.ParentB.String()
	}
	return a
}
