// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/aminalvm"
	"github.com/luxfi/aminalvm/aminal"
	"github.com/luxfi/aminalvm/api"
	"github.com/luxfi/aminalvm/breeding"

	apijson "github.com/luxfi/aminalvm/utils/json"
)

type fixture struct {
	vm      *aminalvm.VM
	service *api.Service
	req     *http.Request
	funder  ids.ShortID
	gene    ids.ShortID
	parentA string
	parentB string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	require := require.New(t)

	f := &fixture{
		funder: ids.GenerateTestShortID(),
		gene:   ids.GenerateTestShortID(),
	}
	genesis, err := json.Marshal(aminalvm.Genesis{
		Deployer: ids.GenerateTestShortID().String(),
		Allocations: []aminalvm.Allocation{
			{Address: f.funder.String(), Amount: 500},
		},
		Genes: []aminalvm.GenesisGene{{
			Contract: f.gene.String(),
			Tokens: []aminalvm.GenesisGeneToken{
				{TokenID: 9, Slot: "ears", Value: "floppy"},
			},
		}},
		Aminals: []aminalvm.GenesisAminal{
			{Name: "Fern", Balance: 100},
			{Name: "Clover", Balance: 200},
		},
	})
	require.NoError(err)

	f.vm = &aminalvm.VM{}
	ctx := context.Background()
	require.NoError(f.vm.Initialize(ctx, memdb.New(), genesis, nil))
	require.NoError(f.vm.SetState(ctx, aminalvm.NormalOp))
	f.vm.Clock().Set(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

	f.service = api.NewService(f.vm)
	f.req = httptest.NewRequest(http.MethodPost, "/", nil)

	var list api.ListAminalsReply
	require.NoError(f.service.ListAminals(f.req, &api.ListAminalsArgs{}, &list))
	require.Len(list.Aminals, 2)
	f.parentA = list.Aminals[0].Address
	f.parentB = list.Aminals[1].Address
	return f
}

func TestStatus(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	reply := api.StatusReply{}
	require.NoError(f.service.Status(f.req, &api.StatusArgs{}, &reply))
	require.True(reply.Ready)
	require.Equal(aminalvm.Version, reply.Version)
	require.Equal(apijson.Uint64(f.vm.Now().Unix()), reply.Time)
}

func TestInvalidRequests(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	err := f.service.CreateTicket(f.req, &api.CreateTicketArgs{
		ParentA: f.parentA,
		ParentB: f.parentB,
	}, &api.TicketIDReply{})
	require.ErrorIs(err, api.ErrInvalidRequest)

	err = f.service.CreateTicket(f.req, &api.CreateTicketArgs{
		From:    "not an address",
		ParentA: f.parentA,
		ParentB: f.parentB,
	}, &api.TicketIDReply{})
	require.ErrorIs(err, api.ErrInvalidRequest)

	err = f.service.GetActiveProposals(f.req, &api.SlotArgs{TicketID: 1, Slot: "wing"}, &api.GetActiveProposalsReply{})
	require.ErrorIs(err, api.ErrInvalidRequest)
}

func TestTicketFlow(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	from := f.funder.String()

	var amount apijson.Amount
	require.NoError(json.Unmarshal([]byte(`"40"`), &amount))
	require.NoError(f.service.Feed(f.req, &api.FeedArgs{
		From:   from,
		Aminal: f.parentA,
		Amount: amount,
	}, &api.EmptyReply{}))

	love := api.AmountReply{}
	require.NoError(f.service.GetLove(f.req, &api.GetLoveArgs{Aminal: f.parentA}, &love))
	require.Equal("40", love.Amount.String())
	require.NoError(f.service.GetLove(f.req, &api.GetLoveArgs{Aminal: f.parentB, Contributor: from}, &love))
	require.Equal("0", love.Amount.String())

	balance := api.AmountReply{}
	require.NoError(f.service.GetBalance(f.req, &api.AddressArgs{Address: f.parentA}, &balance))
	require.Equal("140", balance.Amount.String())

	created := api.TicketIDReply{}
	require.NoError(f.service.CreateTicket(f.req, &api.CreateTicketArgs{
		From:        from,
		ParentA:     f.parentA,
		ParentB:     f.parentB,
		Description: "Fern x Clover",
	}, &created))
	require.Equal(apijson.Uint64(1), created.TicketID)

	ticket := api.GetTicketReply{}
	require.NoError(f.service.GetTicket(f.req, &api.TicketArgs{TicketID: created.TicketID}, &ticket))
	require.Equal("proposal", ticket.Phase)
	require.Equal("pending", ticket.Outcome)
	require.Equal(from, ticket.Creator)
	require.Empty(ticket.Offspring)

	index := api.IndexReply{}
	require.NoError(f.service.ProposeComponent(f.req, &api.ProposeComponentArgs{
		From:     from,
		TicketID: created.TicketID,
		Slot:     "Ears",
		Component: api.ComponentRef{
			Contract: f.gene.String(),
			TokenID:  9,
		},
	}, &index))
	require.Zero(index.Index)

	proposals := api.GetActiveProposalsReply{}
	require.NoError(f.service.GetActiveProposals(f.req, &api.SlotArgs{TicketID: created.TicketID, Slot: "ears"}, &proposals))
	require.Len(proposals.Proposals, 1)
	require.Equal(from, proposals.Proposals[0].Proposer)
	require.Equal("0", proposals.Proposals[0].Votes.String())

	// Votes are only accepted once proposals close.
	err := f.service.VoteTraits(f.req, &api.VoteTraitsArgs{
		From:          from,
		TicketID:      created.TicketID,
		Slots:         []string{"ears"},
		ChooseParentA: []bool{true},
	}, &api.EmptyReply{})
	require.ErrorIs(err, breeding.ErrPhaseMismatch)

	f.vm.Clock().Advance(f.vm.ProposalPeriod)
	phase := api.PhaseReply{}
	require.NoError(f.service.CurrentPhase(f.req, &api.TicketArgs{TicketID: created.TicketID}, &phase))
	require.Equal("voting", phase.Phase)

	err = f.service.VoteTraits(f.req, &api.VoteTraitsArgs{
		From:          from,
		TicketID:      created.TicketID,
		Slots:         []string{"ears", "tail"},
		ChooseParentA: []bool{true},
	}, &api.EmptyReply{})
	require.ErrorIs(err, breeding.ErrArrayLengthMismatch)

	require.NoError(f.service.VoteTraits(f.req, &api.VoteTraitsArgs{
		From:          from,
		TicketID:      created.TicketID,
		Slots:         []string{"ears"},
		ChooseParentA: []bool{false},
	}, &api.EmptyReply{}))
	require.NoError(f.service.VoteForComponent(f.req, &api.VoteForComponentArgs{
		From:     from,
		TicketID: created.TicketID,
		Slot:     "ears",
	}, &api.EmptyReply{}))
	require.NoError(f.service.VoteOnVeto(f.req, &api.VoteOnVetoArgs{
		From:     from,
		TicketID: created.TicketID,
		Veto:     true,
	}, &api.EmptyReply{}))

	power := api.VoterPowerReply{}
	require.NoError(f.service.VoterPower(f.req, &api.VoterPowerArgs{TicketID: created.TicketID, Address: from}, &power))
	require.True(power.Locked)
	require.Equal("40", power.Power.String())

	results := api.GetVoteResultsReply{}
	require.NoError(f.service.GetVoteResults(f.req, &api.TicketArgs{TicketID: created.TicketID}, &results))
	require.Len(results.Results, 8)
	require.Equal("ears", results.Results[3].Slot)
	require.Equal("0", results.Results[3].ForA.String())
	require.Equal("40", results.Results[3].ForB.String())

	veto := api.GetVetoStatusReply{}
	require.NoError(f.service.GetVetoStatus(f.req, &api.TicketArgs{TicketID: created.TicketID}, &veto))
	require.True(veto.Vetoed)
	require.Equal("40", veto.ForVeto.String())

	f.vm.Clock().Advance(f.vm.VotingPeriod)
	executed := api.ExecuteBreedingReply{}
	require.NoError(f.service.ExecuteBreeding(f.req, &api.ExecuteBreedingArgs{
		From:     from,
		TicketID: created.TicketID,
	}, &executed))
	require.Equal("vetoed", executed.Outcome)
	require.Empty(executed.Offspring)
	require.Empty(executed.Settlements)

	isParent := api.IsParentInTicketReply{}
	require.NoError(f.service.IsParentInTicket(f.req, &api.IsParentInTicketArgs{TicketID: created.TicketID, Aminal: f.parentB}, &isParent))
	require.True(isParent.IsParent)
	require.NoError(f.service.IsParentInTicket(f.req, &api.IsParentInTicketArgs{TicketID: 7, Aminal: f.parentB}, &isParent))
	require.False(isParent.IsParent)

	events := api.GetEventsReply{}
	require.NoError(f.service.GetEvents(f.req, &api.GetEventsArgs{}, &events))
	last := events.Events[len(events.Events)-1]
	require.Equal(breeding.EventBreedingVetoed, last.Name)
	require.Equal(created.TicketID, last.TicketID)
	require.Equal("40", last.Attrs["forVeto"])

	events = api.GetEventsReply{}
	require.NoError(f.service.GetEvents(f.req, &api.GetEventsArgs{From: 2, Limit: 1}, &events))
	require.Len(events.Events, 1)
	require.Equal(apijson.Uint64(2), events.Events[0].Seq)
}

func TestGetAminal(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	reply := api.Aminal{}
	require.NoError(f.service.GetAminal(f.req, &api.AddressArgs{Address: f.parentB}, &reply))
	require.Equal("Clover", reply.Name)
	require.Empty(reply.ParentA)
	require.Empty(reply.Components)

	err := f.service.GetAminal(f.req, &api.AddressArgs{Address: ids.GenerateTestShortID().String()}, &reply)
	require.Error(err)
}

func TestPayBreedingFeeUnauthorized(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	recipient := ids.GenerateTestShortID().String()

	created := api.TicketIDReply{}
	require.NoError(f.service.CreateTicket(f.req, &api.CreateTicketArgs{
		From:    f.funder.String(),
		ParentA: f.parentA,
		ParentB: f.parentB,
	}, &created))

	tests := []struct {
		name     string
		from     string
		ticketID apijson.Uint64
	}{
		{
			name:     "funder",
			from:     f.funder.String(),
			ticketID: created.TicketID,
		},
		{
			name:     "recipient",
			from:     recipient,
			ticketID: created.TicketID,
		},
		{
			name:     "unknown ticket",
			from:     f.funder.String(),
			ticketID: created.TicketID + 100,
		},
		{
			name:     "governance on unknown ticket",
			from:     aminalvm.BreedingAddress.String(),
			ticketID: created.TicketID + 100,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			err := f.service.PayBreedingFee(f.req, &api.PayBreedingFeeArgs{
				From:       test.from,
				Aminal:     f.parentA,
				Recipients: []string{recipient},
				TicketID:   test.ticketID,
			}, &api.AmountReply{})
			require.ErrorIs(err, aminal.ErrUnauthorized)

			balance := api.AmountReply{}
			require.NoError(f.service.GetBalance(f.req, &api.AddressArgs{Address: f.parentA}, &balance))
			require.Equal("100", balance.Amount.String())
			require.NoError(f.service.GetBalance(f.req, &api.AddressArgs{Address: recipient}, &balance))
			require.Equal("0", balance.Amount.String())
		})
	}

	err := f.service.PayBreedingFee(f.req, &api.PayBreedingFeeArgs{
		From:       aminalvm.BreedingAddress.String(),
		Aminal:     ids.GenerateTestShortID().String(),
		Recipients: []string{recipient},
		TicketID:   created.TicketID,
	}, &api.AmountReply{})
	require.Error(err)
}
