// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aminalvm

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/aminalvm/api"
	"github.com/luxfi/aminalvm/breeding"
	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/registry"
	"github.com/luxfi/aminalvm/state"
	"github.com/luxfi/aminalvm/traits"
)

var _ api.VM = (*VM)(nil)

func (vm *VM) Ready() bool {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.ready() == nil
}

func (vm *VM) Now() time.Time {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.ledger == nil {
		return time.Time{}
	}
	return vm.ledger.Clock().Time()
}

func (vm *VM) CreateTicket(
	ctx context.Context,
	creator ids.ShortID,
	parentA ids.ShortID,
	parentB ids.ShortID,
	description string,
	metadataRef string,
) (uint64, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return 0, err
	}
	return vm.engine.CreateTicket(ctx, creator, parentA, parentB, description, metadataRef)
}

func (vm *VM) ProposeComponent(
	ctx context.Context,
	ticketID uint64,
	proposer ids.ShortID,
	slot traits.Slot,
	component traits.ComponentRef,
) (uint64, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return 0, err
	}
	return vm.engine.ProposeComponent(ctx, ticketID, proposer, slot, component)
}

func (vm *VM) Vote(ctx context.Context, ticketID uint64, voter ids.ShortID, slots []traits.Slot, chooseParentA []bool) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return vm.engine.Vote(ctx, ticketID, voter, slots, chooseParentA)
}

func (vm *VM) VoteForComponent(ctx context.Context, ticketID uint64, voter ids.ShortID, slot traits.Slot, index uint64) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return vm.engine.VoteForComponent(ctx, ticketID, voter, slot, index)
}

func (vm *VM) VoteOnVeto(ctx context.Context, ticketID uint64, voter ids.ShortID, veto bool) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return vm.engine.VoteOnVeto(ctx, ticketID, voter, veto)
}

func (vm *VM) ExecuteBreeding(ctx context.Context, ticketID uint64, caller ids.ShortID) (*breeding.Execution, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	return vm.engine.ExecuteBreeding(ctx, ticketID, caller)
}

// Feed moves amount from contributor to an existing Aminal and credits the
// contributor with the same amount of love.
func (vm *VM) Feed(ctx context.Context, aminal ids.ShortID, contributor ids.ShortID, amount *uint256.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	if _, err := vm.registry.Get(aminal); err != nil {
		return fmt.Errorf("feeding %s: %w", aminal, err)
	}
	return vm.love.Feed(ctx, aminal, contributor, amount)
}

// PayBreedingFee settles the breeding fee of an Aminal on behalf of caller.
func (vm *VM) PayBreedingFee(
	ctx context.Context,
	aminal ids.ShortID,
	caller ids.ShortID,
	recipients []ids.ShortID,
	ticketID uint64,
) (*uint256.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	a, err := vm.registry.Aminal(aminal)
	if err != nil {
		return nil, err
	}
	return a.PayBreedingFee(ctx, caller, recipients, ticketID)
}

// Credit mints amount into address. It backs faucets and tests; genesis
// allocations are the only other source of funds.
func (vm *VM) Credit(address ids.ShortID, amount *uint256.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return vm.ledger.Credit(address, amount)
}

func (vm *VM) GetTicket(ctx context.Context, ticketID uint64) (*state.Ticket, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.engine == nil {
		return nil, errNotInitialized
	}
	return vm.engine.GetTicket(ctx, ticketID)
}

func (vm *VM) CurrentPhase(ctx context.Context, ticketID uint64) (state.Phase, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.engine == nil {
		return 0, errNotInitialized
	}
	return vm.engine.CurrentPhase(ctx, ticketID)
}

func (vm *VM) GetActiveProposals(ctx context.Context, ticketID uint64, slot traits.Slot) ([]state.ProposalRecord, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.engine == nil {
		return nil, errNotInitialized
	}
	return vm.engine.GetActiveProposals(ctx, ticketID, slot)
}

func (vm *VM) GetComponentVotes(ctx context.Context, ticketID uint64, slot traits.Slot) ([]*uint256.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.engine == nil {
		return nil, errNotInitialized
	}
	return vm.engine.GetComponentVotes(ctx, ticketID, slot)
}

func (vm *VM) GetVoteResults(ctx context.Context, ticketID uint64) ([]breeding.SlotResult, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.engine == nil {
		return nil, errNotInitialized
	}
	return vm.engine.GetVoteResults(ctx, ticketID)
}

func (vm *VM) GetVetoStatus(ctx context.Context, ticketID uint64) (*breeding.VetoStatus, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.engine == nil {
		return nil, errNotInitialized
	}
	return vm.engine.GetVetoStatus(ctx, ticketID)
}

func (vm *VM) VoterPower(ctx context.Context, ticketID uint64, contributor ids.ShortID) (*uint256.Int, bool, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.engine == nil {
		return nil, false, errNotInitialized
	}
	return vm.engine.VoterPower(ctx, ticketID, contributor)
}

func (vm *VM) IsParentInTicket(ctx context.Context, ticketID uint64, aminal ids.ShortID) (bool, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.engine == nil {
		return false, errNotInitialized
	}
	return vm.engine.IsParentInTicket(ctx, ticketID, aminal)
}

func (vm *VM) Love(aminal ids.ShortID, contributor ids.ShortID) (*uint256.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.love == nil {
		return nil, errNotInitialized
	}
	return vm.love.WeightOf(context.Background(), aminal, contributor)
}

func (vm *VM) TotalLove(aminal ids.ShortID) (*uint256.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.love == nil {
		return nil, errNotInitialized
	}
	return vm.love.TotalLove(aminal)
}

func (vm *VM) Balance(address ids.ShortID) (*uint256.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.ledger == nil {
		return nil, errNotInitialized
	}
	return vm.ledger.Balance(address)
}

func (vm *VM) Events(from uint64, limit int) ([]ledger.Event, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.ledger == nil {
		return nil, errNotInitialized
	}
	return vm.ledger.Events(from, limit)
}

func (vm *VM) GetAminal(address ids.ShortID) (*registry.Record, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.registry == nil {
		return nil, errNotInitialized
	}
	return vm.registry.Get(address)
}

func (vm *VM) Aminals() ([]*registry.Record, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.registry == nil {
		return nil, errNotInitialized
	}
	return vm.registry.List()
}
