// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aminal

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/metrics"
)

var errTest = errors.New("non-nil error")

type testGovernance struct {
	address ids.ShortID
	// parents maps ticket ids to their parents.
	parents map[uint64][2]ids.ShortID
}

func (g *testGovernance) Address() ids.ShortID {
	return g.address
}

func (g *testGovernance) IsParentInTicket(_ context.Context, ticketID uint64, aminal ids.ShortID) (bool, error) {
	parents, ok := g.parents[ticketID]
	return ok && (parents[0] == aminal || parents[1] == aminal), nil
}

type testAuthority struct {
	gov Governance
}

func (a *testAuthority) BreedingGovernance() (Governance, bool) {
	return a.gov, a.gov != nil
}

type testEnv struct {
	ctx    context.Context
	ledger *ledger.Ledger
	gov    *testGovernance
	aminal *Aminal
}

const testTicket = 7

func newTestEnv(t *testing.T, balance uint64) *testEnv {
	t.Helper()

	l := ledger.New(memdb.New(), log.NoLog{})
	address := ids.GenerateTestShortID()
	gov := &testGovernance{
		address: ids.GenerateTestShortID(),
		parents: map[uint64][2]ids.ShortID{
			testTicket: {address, ids.GenerateTestShortID()},
		},
	}
	require.NoError(t, l.Credit(address, uint256.NewInt(balance)))
	return &testEnv{
		ctx:    context.Background(),
		ledger: l,
		gov:    gov,
		aminal: New(address, l, &testAuthority{gov: gov}, metrics.NewNoop(), log.NoLog{}),
	}
}

func (env *testEnv) balance(t *testing.T, addr ids.ShortID) uint64 {
	t.Helper()

	b, err := env.ledger.Balance(addr)
	require.NoError(t, err)
	return b.Uint64()
}

func (env *testEnv) events(t *testing.T, name string) []ledger.Event {
	t.Helper()

	all, err := env.ledger.Events(0, 1_000)
	require.NoError(t, err)
	var events []ledger.Event
	for _, e := range all {
		if e.Name == name {
			events = append(events, e)
		}
	}
	return events
}

func newRecipients(n int) []ids.ShortID {
	recipients := make([]ids.ShortID, n)
	for i := range recipients {
		recipients[i] = ids.GenerateTestShortID()
	}
	return recipients
}

func TestPayBreedingFee(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, 100)
	recipients := newRecipients(3)

	paid, err := env.aminal.PayBreedingFee(env.ctx, env.gov.address, recipients, testTicket)
	require.NoError(err)
	require.Equal(uint64(10), paid.Uint64())

	require.Equal(uint64(3), env.balance(t, recipients[0]))
	require.Equal(uint64(3), env.balance(t, recipients[1]))
	require.Equal(uint64(4), env.balance(t, recipients[2]))
	require.Equal(uint64(90), env.balance(t, env.aminal.Address()))

	events := env.events(t, EventBreedingFeePaid)
	require.Len(events, 1)
	require.Equal(env.aminal.Address(), events[0].Emitter)
	require.Equal(uint64(testTicket), events[0].TicketID)
	require.Equal("10", events[0].Attr("total"))
}

func TestSplitFee(t *testing.T) {
	for _, total := range []uint64{1, 9, 10, 11, 1234, math.MaxUint64} {
		for n := 1; n <= MaxFeeRecipients; n++ {
			shares := splitFee(uint256.NewInt(total), n)
			require.Len(t, shares, n)

			sum := new(uint256.Int)
			for _, share := range shares[:n-1] {
				require.Equal(t, total/uint64(n), share.Uint64())
				sum.Add(sum, share)
			}
			require.Equal(t, total/uint64(n)+total%uint64(n), shares[n-1].Uint64())
			sum.Add(sum, shares[n-1])
			require.Equal(t, total, sum.Uint64(), "total %d across %d", total, n)
		}
	}
}

func TestPayBreedingFeeUnauthorized(t *testing.T) {
	env := newTestEnv(t, 1_000)
	strangers := []ids.ShortID{ids.ShortEmpty, ids.GenerateTestShortID(), env.aminal.Address()}
	ticketIDs := []uint64{0, 1, testTicket, 1 << 32, math.MaxUint64}

	for _, caller := range strangers {
		for _, ticketID := range ticketIDs {
			_, err := env.aminal.PayBreedingFee(env.ctx, caller, newRecipients(2), ticketID)
			require.ErrorIs(t, err, ErrUnauthorized)
		}
	}
	require.Equal(t, uint64(1_000), env.balance(t, env.aminal.Address()))
}

func TestPayBreedingFeeWithoutGovernance(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, 1_000)
	env.aminal.authority = &testAuthority{}

	_, err := env.aminal.PayBreedingFee(env.ctx, env.gov.address, newRecipients(1), testTicket)
	require.ErrorIs(err, ErrUnauthorized)
	require.Equal(uint64(1_000), env.balance(t, env.aminal.Address()))
}

func TestPayBreedingFeeNotParent(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, 1_000)
	env.gov.parents[testTicket+1] = [2]ids.ShortID{ids.GenerateTestShortID(), ids.GenerateTestShortID()}

	for _, ticketID := range []uint64{testTicket + 1, testTicket + 2, math.MaxUint64} {
		_, err := env.aminal.PayBreedingFee(env.ctx, env.gov.address, newRecipients(1), ticketID)
		require.ErrorIs(err, ErrUnauthorized)
	}
	require.Equal(uint64(1_000), env.balance(t, env.aminal.Address()))
}

func TestPayBreedingFeeRecipientBounds(t *testing.T) {
	tests := []struct {
		name        string
		recipients  int
		expectedErr error
	}{
		{name: "none", recipients: 0, expectedErr: ErrNoRecipients},
		{name: "one", recipients: 1},
		{name: "max", recipients: MaxFeeRecipients},
		{name: "too many", recipients: MaxFeeRecipients + 1, expectedErr: ErrRecipientListTooLarge},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t, 1_000)
			_, err := env.aminal.PayBreedingFee(env.ctx, env.gov.address, newRecipients(test.recipients), testTicket)
			require.ErrorIs(t, err, test.expectedErr)
			if test.expectedErr != nil {
				require.Equal(t, uint64(1_000), env.balance(t, env.aminal.Address()))
			}
		})
	}
}

func TestPayBreedingFeeZero(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, 9)
	recipients := newRecipients(2)

	paid, err := env.aminal.PayBreedingFee(env.ctx, env.gov.address, recipients, testTicket)
	require.NoError(err)
	require.True(paid.IsZero())
	require.Equal(uint64(9), env.balance(t, env.aminal.Address()))
	require.Zero(env.balance(t, recipients[0]))
	require.Len(env.events(t, EventBreedingFeeSkipped), 1)
	require.Empty(env.events(t, EventBreedingFeePaid))
}

func TestPayBreedingFeeFailingRecipient(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, 100)
	recipients := newRecipients(3)
	env.ledger.SetReceiver(recipients[1], ledger.ReceiverFunc(func(context.Context, ledger.ReceiveCall) error {
		return errTest
	}))

	paid, err := env.aminal.PayBreedingFee(env.ctx, env.gov.address, recipients, testTicket)
	require.NoError(err)
	require.Equal(uint64(10), paid.Uint64())

	require.Equal(uint64(3), env.balance(t, recipients[0]))
	require.Zero(env.balance(t, recipients[1]))
	require.Equal(uint64(4), env.balance(t, recipients[2]))
	// The rejected share stays behind.
	require.Equal(uint64(93), env.balance(t, env.aminal.Address()))

	failures := env.events(t, EventBreedingFeeTransferFailed)
	require.Len(failures, 1)
	require.Equal(recipients[1].String(), failures[0].Attr("recipient"))
	require.Equal("3", failures[0].Attr("amount"))
}

func TestPayBreedingFeeReentrancy(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, 100)
	recipients := newRecipients(2)

	var (
		calls       int
		reentryErr  error
		strangerErr error
	)
	env.ledger.SetReceiver(recipients[0], ledger.ReceiverFunc(func(ctx context.Context, call ledger.ReceiveCall) error {
		calls++
		require.Equal(uint64(TransferGasStipend), call.Gas)
		_, reentryErr = env.aminal.PayBreedingFee(ctx, env.gov.address, []ids.ShortID{call.To}, testTicket)
		// The recipient calling in on its own behalf is rejected as
		// unauthorized, not as reentrant.
		_, strangerErr = env.aminal.PayBreedingFee(ctx, call.To, []ids.ShortID{call.To}, testTicket)
		return nil
	}))

	paid, err := env.aminal.PayBreedingFee(env.ctx, env.gov.address, recipients, testTicket)
	require.NoError(err)
	require.Equal(uint64(10), paid.Uint64())

	require.Equal(1, calls)
	require.ErrorIs(reentryErr, ErrReentrantCall)
	require.ErrorIs(strangerErr, ErrUnauthorized)
	require.Equal(uint64(5), env.balance(t, recipients[0]))
	require.Equal(uint64(5), env.balance(t, recipients[1]))
	require.Equal(uint64(90), env.balance(t, env.aminal.Address()))

	// The guard is released afterwards.
	paid, err = env.aminal.PayBreedingFee(env.ctx, env.gov.address, recipients, testTicket)
	require.NoError(err)
	require.Equal(uint64(9), paid.Uint64())
}
