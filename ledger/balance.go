// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferFailed      = errors.New("transfer failed")

	balancePrefix = []byte("balance:")
)

// ReceiveCall describes an incoming transfer delivered to a Receiver.
type ReceiveCall struct {
	From   ids.ShortID
	To     ids.ShortID
	Amount *uint256.Int
	// Gas is the stipend forwarded with the transfer.
	Gas uint64
}

// Receiver is code attached to an address that runs whenever the address is
// paid. Returning an error rejects the payment.
type Receiver interface {
	Receive(ctx context.Context, call ReceiveCall) error
}

// ReceiverFunc adapts a function to a Receiver.
type ReceiverFunc func(ctx context.Context, call ReceiveCall) error

func (f ReceiverFunc) Receive(ctx context.Context, call ReceiveCall) error {
	return f(ctx, call)
}

// SetReceiver attaches r to addr. A nil r detaches any receiver.
func (l *Ledger) SetReceiver(addr ids.ShortID, r Receiver) {
	if r == nil {
		delete(l.receivers, addr)
		return
	}
	l.receivers[addr] = r
}

func balanceKey(addr ids.ShortID) []byte {
	return append(append([]byte{}, balancePrefix...), addr[:]...)
}

// Balance returns the balance of addr as seen by the innermost layer.
func (l *Ledger) Balance(addr ids.ShortID) (*uint256.Int, error) {
	return ReadAmount(l.DB(), balanceKey(addr))
}

// Credit mints amount into addr.
func (l *Ledger) Credit(addr ids.ShortID, amount *uint256.Int) error {
	return l.Run(func(db database.Database) error {
		return credit(db, addr, amount)
	})
}

// Transfer moves amount from one address to another. If the recipient has a
// Receiver it is invoked with gas as its stipend; when it fails the
// transfer is undone and ErrTransferFailed is returned.
func (l *Ledger) Transfer(ctx context.Context, from, to ids.ShortID, amount *uint256.Int, gas uint64) error {
	return l.Run(func(db database.Database) error {
		if err := debit(db, from, amount); err != nil {
			return err
		}
		if err := credit(db, to, amount); err != nil {
			return err
		}

		r, ok := l.receivers[to]
		if !ok {
			return nil
		}
		err := r.Receive(ctx, ReceiveCall{
			From:   from,
			To:     to,
			Amount: amount.Clone(),
			Gas:    gas,
		})
		if err != nil {
			l.log.Debug("receiver rejected transfer",
				log.Stringer("from", from),
				log.Stringer("to", to),
				log.String("amount", amount.Dec()),
				log.Err(err),
			)
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		return nil
	})
}

func credit(db database.Database, addr ids.ShortID, amount *uint256.Int) error {
	key := balanceKey(addr)
	bal, err := ReadAmount(db, key)
	if err != nil {
		return err
	}
	bal, err = AddAmount(bal, amount)
	if err != nil {
		return fmt.Errorf("crediting %s: %w", addr, err)
	}
	return WriteAmount(db, key, bal)
}

func debit(db database.Database, addr ids.ShortID, amount *uint256.Int) error {
	key := balanceKey(addr)
	bal, err := ReadAmount(db, key)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, addr, bal.Dec(), amount.Dec())
	}
	return WriteAmount(db, key, new(uint256.Int).Sub(bal, amount))
}
