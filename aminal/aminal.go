// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package aminal implements the settlement side of an Aminal: paying the
// proposers of winning components out of the Aminal's own balance when
// breeding governance asks it to.
package aminal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/metrics"
)

const (
	// FeeDivisor sets the breeding fee to a tenth of the balance.
	FeeDivisor = 10
	// MaxFeeRecipients bounds the fan-out of a single settlement.
	MaxFeeRecipients = 10
	// TransferGasStipend is forwarded to each recipient's receiver.
	TransferGasStipend = 2300
)

const (
	EventBreedingFeePaid           = "BreedingFeePaid"
	EventBreedingFeeSkipped        = "BreedingFeeSkipped"
	EventBreedingFeeTransferFailed = "BreedingFeeTransferFailed"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrRecipientListTooLarge = errors.New("recipient list too large")
	ErrNoRecipients          = errors.New("no recipients")
	ErrReentrantCall         = errors.New("reentrant call")

	feeDivisor = uint256.NewInt(FeeDivisor)
)

// Governance is the breeding contract an Aminal takes orders from.
type Governance interface {
	Address() ids.ShortID
	IsParentInTicket(ctx context.Context, ticketID uint64, aminal ids.ShortID) (bool, error)
}

// Authority resolves the breeding governance registered with the factory.
type Authority interface {
	BreedingGovernance() (Governance, bool)
}

// Aminal is a handle on one Aminal. Handles guard settlement against
// reentrancy, so there must be only one handle per address.
type Aminal struct {
	address   ids.ShortID
	ledger    *ledger.Ledger
	authority Authority
	metrics   metrics.Metrics
	log       log.Logger

	// settling is held for the whole of PayBreedingFee.
	settling sync.Mutex
}

func New(
	address ids.ShortID,
	l *ledger.Ledger,
	authority Authority,
	m metrics.Metrics,
	logger log.Logger,
) *Aminal {
	return &Aminal{
		address:   address,
		ledger:    l,
		authority: authority,
		metrics:   m,
		log:       logger,
	}
}

func (a *Aminal) Address() ids.ShortID {
	return a.address
}

func (a *Aminal) Balance() (*uint256.Int, error) {
	return a.ledger.Balance(a.address)
}

// PayBreedingFee pays a tenth of the Aminal's balance to recipients, split
// evenly with the remainder going to the last recipient. Only the registered
// breeding governance may call it, and only for tickets this Aminal is a
// parent of. A recipient that rejects its payment does not stop the others;
// its share stays with the Aminal. The returned amount is the total fee,
// delivered or not.
func (a *Aminal) PayBreedingFee(
	ctx context.Context,
	caller ids.ShortID,
	recipients []ids.ShortID,
	ticketID uint64,
) (*uint256.Int, error) {
	gov, ok := a.authority.BreedingGovernance()
	if !ok || caller != gov.Address() {
		return nil, fmt.Errorf("%w: %s is not the breeding governance", ErrUnauthorized, caller)
	}
	if !a.settling.TryLock() {
		return nil, ErrReentrantCall
	}
	defer a.settling.Unlock()

	switch {
	case len(recipients) == 0:
		return nil, ErrNoRecipients
	case len(recipients) > MaxFeeRecipients:
		return nil, fmt.Errorf("%w: %d > %d", ErrRecipientListTooLarge, len(recipients), MaxFeeRecipients)
	}
	isParent, err := gov.IsParentInTicket(ctx, ticketID, a.address)
	if err != nil {
		return nil, err
	}
	if !isParent {
		return nil, fmt.Errorf("%w: %s is not a parent in ticket %d", ErrUnauthorized, a.address, ticketID)
	}

	var total *uint256.Int
	err = a.ledger.Run(func(database.Database) error {
		balance, err := a.ledger.Balance(a.address)
		if err != nil {
			return err
		}
		total = new(uint256.Int).Div(balance, feeDivisor)
		if total.IsZero() {
			a.log.Debug("breeding fee skipped",
				log.Stringer("aminal", a.address),
				log.Uint64("ticketID", ticketID),
			)
			return a.emit(EventBreedingFeeSkipped, ticketID,
				ledger.Attr{Key: "balance", Value: balance.Dec()},
			)
		}

		for i, amount := range splitFee(total, len(recipients)) {
			if err := a.pay(ctx, ticketID, recipients[i], amount); err != nil {
				return err
			}
		}

		a.log.Info("breeding fee paid",
			log.Stringer("aminal", a.address),
			log.Uint64("ticketID", ticketID),
			log.String("total", total.Dec()),
			log.Int("recipients", len(recipients)),
		)
		return a.emit(EventBreedingFeePaid, ticketID,
			ledger.Attr{Key: "total", Value: total.Dec()},
			ledger.Attr{Key: "recipients", Value: strconv.Itoa(len(recipients))},
		)
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// pay transfers amount to recipient. A rejected transfer is recorded and
// swallowed.
func (a *Aminal) pay(ctx context.Context, ticketID uint64, recipient ids.ShortID, amount *uint256.Int) error {
	err := a.ledger.Transfer(ctx, a.address, recipient, amount, TransferGasStipend)
	a.metrics.MarkFeeTransfer(err == nil)
	if !errors.Is(err, ledger.ErrTransferFailed) {
		return err
	}

	a.log.Warn("breeding fee transfer failed",
		log.Stringer("aminal", a.address),
		log.Stringer("recipient", recipient),
		log.Uint64("ticketID", ticketID),
		log.String("amount", amount.Dec()),
		log.Err(err),
	)
	return a.emit(EventBreedingFeeTransferFailed, ticketID,
		ledger.Attr{Key: "recipient", Value: recipient.String()},
		ledger.Attr{Key: "amount", Value: amount.Dec()},
	)
}

func (a *Aminal) emit(name string, ticketID uint64, attrs ...ledger.Attr) error {
	return a.ledger.Emit(ledger.Event{
		Emitter:  a.address,
		Name:     name,
		TicketID: ticketID,
		Attrs:    attrs,
	})
}

// splitFee divides total into n shares. The last share absorbs the
// remainder so the shares always sum to total.
func splitFee(total *uint256.Int, n int) []*uint256.Int {
	share := new(uint256.Int).Div(total, uint256.NewInt(uint64(n)))
	shares := make([]*uint256.Int, n)
	for i := range shares[:n-1] {
		shares[i] = share
	}
	distributed := new(uint256.Int).Mul(share, uint256.NewInt(uint64(n-1)))
	shares[n-1] = new(uint256.Int).Sub(total, distributed)
	return shares
}
