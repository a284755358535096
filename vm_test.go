// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aminalvm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/aminalvm/breeding"
	"github.com/luxfi/aminalvm/config"
	"github.com/luxfi/aminalvm/registry"
	"github.com/luxfi/aminalvm/state"
	"github.com/luxfi/aminalvm/traits"
)

var genesisTime = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

type testChain struct {
	deployer ids.ShortID
	voter1   ids.ShortID
	voter2   ids.ShortID
	proposer ids.ShortID
	gene     ids.ShortID
	genesis  []byte
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()

	c := &testChain{
		deployer: ids.GenerateTestShortID(),
		voter1:   ids.GenerateTestShortID(),
		voter2:   ids.GenerateTestShortID(),
		proposer: ids.GenerateTestShortID(),
		gene:     ids.GenerateTestShortID(),
	}
	gene := c.gene.String()
	g := Genesis{
		Deployer: c.deployer.String(),
		Allocations: []Allocation{
			{Address: c.voter1.String(), Amount: 1000},
			{Address: c.voter2.String(), Amount: 1000},
		},
		Genes: []GenesisGene{{
			Contract: gene,
			Tokens: []GenesisGeneToken{
				{TokenID: 1, Slot: "back", Value: "wings"},
				{TokenID: 2, Slot: "tail", Value: "fluffy"},
				{TokenID: 3, Slot: "tail", Value: "spiky"},
				{TokenID: 4, Slot: "back", Value: "shell"},
			},
		}},
		Aminals: []GenesisAminal{
			{
				Name:    "Mossy",
				Balance: 1000,
				Components: map[string]GenesisRef{
					"back": {Contract: gene, TokenID: 1},
					"tail": {Contract: gene, TokenID: 2},
				},
			},
			{
				Name:    "Pebble",
				Balance: 500,
				Components: map[string]GenesisRef{
					"tail": {Contract: gene, TokenID: 3},
				},
			},
		},
	}
	b, err := json.Marshal(g)
	require.NoError(t, err)
	c.genesis = b
	return c
}

func newTestVM(t *testing.T, db database.Database, genesisBytes []byte) *VM {
	t.Helper()
	require := require.New(t)

	vm := &VM{}
	ctx := context.Background()
	require.NoError(vm.Initialize(ctx, db, genesisBytes, nil))
	require.NoError(vm.SetState(ctx, NormalOp))
	vm.Clock().Set(genesisTime)
	return vm
}

func requireBalance(t *testing.T, vm *VM, addr ids.ShortID, want uint64) {
	t.Helper()

	balance, err := vm.Balance(addr)
	require.NoError(t, err)
	require.Equal(t, want, balance.Uint64())
}

func TestInitializeAppliesGenesis(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t)
	vm := newTestVM(t, memdb.New(), c.genesis)

	aminals, err := vm.Aminals()
	require.NoError(err)
	require.Len(aminals, 2)
	require.Equal("Mossy", aminals[0].Name)
	require.Equal("Pebble", aminals[1].Name)
	require.Equal(traits.ComponentRef{Contract: c.gene, TokenID: 1}, aminals[0].Components[traits.Back])

	requireBalance(t, vm, aminals[0].Address, 1000)
	requireBalance(t, vm, aminals[1].Address, 500)
	requireBalance(t, vm, c.voter1, 1000)

	version, err := vm.Version(context.Background())
	require.NoError(err)
	require.Equal(Version, version)

	health, err := vm.HealthCheck(context.Background())
	require.NoError(err)
	require.Equal(map[string]interface{}{
		"healthy": true,
		"state":   "NormalOp",
		"tickets": uint64(0),
		"aminals": uint64(2),
	}, health)

	handlers, err := vm.CreateHandlers(context.Background())
	require.NoError(err)
	require.Contains(handlers, "")
}

func TestInitializeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		genesis []byte
		config  []byte
	}{
		{
			name:    "malformed genesis",
			genesis: []byte("{"),
		},
		{
			name:    "missing deployer",
			genesis: []byte(`{"allocations":[]}`),
		},
		{
			name:   "invalid config",
			config: []byte(`{"votingPeriod":0}`),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			vm := &VM{}
			err := vm.Initialize(context.Background(), memdb.New(), test.genesis, test.config)
			require.Error(t, err)
		})
	}
}

func TestFactoryConfigIsUsed(t *testing.T) {
	require := require.New(t)

	cfg := config.DefaultConfig()
	cfg.ProposalPeriod = time.Hour
	cfg.VotingPeriod = 2 * time.Hour

	f := &Factory{Config: cfg}
	intf, err := f.New(nil)
	require.NoError(err)
	vm := intf.(*VM)
	require.NoError(vm.Initialize(context.Background(), memdb.New(), nil, nil))
	require.Equal(time.Hour, vm.ProposalPeriod)
	require.Equal(2*time.Hour, vm.VotingPeriod)
}

func TestOperationsRequireNormalOp(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t)
	vm := &VM{}
	ctx := context.Background()

	_, err := vm.CreateTicket(ctx, c.voter1, c.voter1, c.voter2, "", "")
	require.ErrorIs(err, errNotInitialized)

	require.NoError(vm.Initialize(ctx, memdb.New(), c.genesis, nil))
	require.False(vm.Ready())

	aminals, err := vm.Aminals()
	require.NoError(err)
	_, err = vm.CreateTicket(ctx, c.voter1, aminals[0].Address, aminals[1].Address, "", "")
	require.ErrorIs(err, errNotReady)

	require.NoError(vm.SetState(ctx, NormalOp))
	require.True(vm.Ready())
	require.ErrorIs(vm.SetState(ctx, Unknown), errUnknownState)
}

func TestFeedUnknownAminal(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t)
	vm := newTestVM(t, memdb.New(), c.genesis)

	err := vm.Feed(context.Background(), ids.GenerateTestShortID(), c.voter1, uint256.NewInt(1))
	require.ErrorIs(err, registry.ErrUnknownAminal)
	requireBalance(t, vm, c.voter1, 1000)
}

func TestBreedingLifecycle(t *testing.T) {
	require := require.New(t)

	ctx := context.Background()
	c := newTestChain(t)
	vm := newTestVM(t, memdb.New(), c.genesis)

	aminals, err := vm.Aminals()
	require.NoError(err)
	mossy, pebble := aminals[0].Address, aminals[1].Address

	require.NoError(vm.Feed(ctx, mossy, c.voter1, uint256.NewInt(100)))
	require.NoError(vm.Feed(ctx, pebble, c.voter2, uint256.NewInt(50)))
	requireBalance(t, vm, mossy, 1100)
	requireBalance(t, vm, pebble, 550)

	ticketID, err := vm.CreateTicket(ctx, c.voter1, mossy, pebble, "Mossy x Pebble", "ipfs://meta")
	require.NoError(err)
	require.Equal(uint64(1), ticketID)

	shell := traits.ComponentRef{Contract: c.gene, TokenID: 4}
	index, err := vm.ProposeComponent(ctx, ticketID, c.proposer, traits.Back, shell)
	require.NoError(err)
	require.Zero(index)

	// A tail gene cannot be proposed for the back slot.
	_, err = vm.ProposeComponent(ctx, ticketID, c.proposer, traits.Back, traits.ComponentRef{Contract: c.gene, TokenID: 2})
	require.ErrorIs(err, breeding.ErrSlotMismatch)

	vm.Clock().Advance(vm.ProposalPeriod)
	phase, err := vm.CurrentPhase(ctx, ticketID)
	require.NoError(err)
	require.Equal(state.Voting, phase)

	require.NoError(vm.Vote(ctx, ticketID, c.voter1, []traits.Slot{traits.Back}, []bool{true}))
	require.NoError(vm.Vote(ctx, ticketID, c.voter2, []traits.Slot{traits.Back}, []bool{false}))
	require.NoError(vm.VoteForComponent(ctx, ticketID, c.voter1, traits.Back, 0))
	require.NoError(vm.VoteForComponent(ctx, ticketID, c.voter2, traits.Back, 0))
	require.NoError(vm.VoteOnVeto(ctx, ticketID, c.voter2, false))

	power, locked, err := vm.VoterPower(ctx, ticketID, c.voter1)
	require.NoError(err)
	require.True(locked)
	require.Equal(uint64(100), power.Uint64())

	results, err := vm.GetVoteResults(ctx, ticketID)
	require.NoError(err)
	require.Equal(uint64(100), results[traits.Back].ForA.Uint64())
	require.Equal(uint64(50), results[traits.Back].ForB.Uint64())

	votes, err := vm.GetComponentVotes(ctx, ticketID, traits.Back)
	require.NoError(err)
	require.Len(votes, 1)
	require.Equal(uint64(150), votes[0].Uint64())

	_, err = vm.ExecuteBreeding(ctx, ticketID, c.voter1)
	require.ErrorIs(err, breeding.ErrPhaseMismatch)

	vm.Clock().Advance(vm.VotingPeriod)
	execution, err := vm.ExecuteBreeding(ctx, ticketID, c.voter1)
	require.NoError(err)
	require.Equal(state.Bred, execution.Outcome)
	require.Equal([]ids.ShortID{c.proposer}, execution.Recipients)
	require.Len(execution.Settlements, 2)
	for _, settlement := range execution.Settlements {
		require.Empty(settlement.Error)
	}

	// Each parent pays a tenth of its balance to the winning proposer.
	requireBalance(t, vm, mossy, 990)
	requireBalance(t, vm, pebble, 495)
	requireBalance(t, vm, c.proposer, 165)

	child, err := vm.GetAminal(execution.Offspring)
	require.NoError(err)
	require.Equal(mossy, child.ParentA)
	require.Equal(pebble, child.ParentB)
	require.Equal(ticketID, child.TicketID)
	require.Equal(shell, child.Components[traits.Back])
	// Nobody voted on the tail, so it follows parent A.
	require.Equal(traits.ComponentRef{Contract: c.gene, TokenID: 2}, child.Components[traits.Tail])

	phase, err = vm.CurrentPhase(ctx, ticketID)
	require.NoError(err)
	require.Equal(state.Completed, phase)

	_, err = vm.ExecuteBreeding(ctx, ticketID, c.voter1)
	require.ErrorIs(err, breeding.ErrAlreadyExecuted)

	events, err := vm.Events(1, 1000)
	require.NoError(err)
	names := make(map[string]int)
	for _, e := range events {
		names[e.Name]++
	}
	require.Equal(1, names[breeding.EventBreedingExecuted])
	require.Equal(1, names[registry.EventAminalBorn])
	require.Zero(names[breeding.EventSettlementFailed])
}

func TestRestartKeepsState(t *testing.T) {
	require := require.New(t)

	ctx := context.Background()
	c := newTestChain(t)
	db := memdb.New()
	vm := newTestVM(t, db, c.genesis)

	aminals, err := vm.Aminals()
	require.NoError(err)
	require.NoError(vm.Feed(ctx, aminals[0].Address, c.voter1, uint256.NewInt(10)))

	restarted := newTestVM(t, db, c.genesis)
	aminals, err = restarted.Aminals()
	require.NoError(err)
	require.Len(aminals, 2)
	requireBalance(t, restarted, c.voter1, 990)
	requireBalance(t, restarted, aminals[0].Address, 1010)

	ticketID, err := restarted.CreateTicket(ctx, c.voter1, aminals[0].Address, aminals[1].Address, "", "")
	require.NoError(err)
	isParent, err := restarted.IsParentInTicket(ctx, ticketID, aminals[1].Address)
	require.NoError(err)
	require.True(isParent)
}

func TestShutdown(t *testing.T) {
	require := require.New(t)

	vm := &VM{}
	require.NoError(vm.Shutdown(context.Background()))

	require.NoError(vm.Initialize(context.Background(), memdb.New(), nil, nil))
	require.NoError(vm.Shutdown(context.Background()))
	require.NoError(vm.Shutdown(context.Background()))
}

func TestRPCGetBalance(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t)
	vm := newTestVM(t, memdb.New(), c.genesis)
	handlers, err := vm.CreateHandlers(context.Background())
	require.NoError(err)

	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  Name + ".GetBalance",
		"params":  map[string]string{"address": c.voter1.String()},
	})
	require.NoError(err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handlers[""].ServeHTTP(rec, req)
	require.Equal(http.StatusOK, rec.Code)

	var reply struct {
		Result struct {
			Amount string `json:"amount"`
		} `json:"result"`
	}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Equal("1000", reply.Result.Amount)
}

func TestParseGenesis(t *testing.T) {
	require := require.New(t)

	g, err := ParseGenesis(nil)
	require.NoError(err)
	deployer, err := g.DeployerAddress()
	require.NoError(err)
	require.Equal(ids.ShortEmpty, deployer)

	_, err = ParseGenesis([]byte(`{"aminals":[]}`))
	require.ErrorIs(err, errMissingDeployer)

	g, err = ParseGenesis([]byte(`{"deployer":"` + ids.ShortEmpty.String() + `","genes":[{"contract":"` + ids.ShortEmpty.String() + `","tokens":[{"tokenID":1,"slot":"wing"}]}]}`))
	require.NoError(err)
	_, err = g.Catalog()
	require.ErrorIs(err, traits.ErrUnknownSlot)
}
