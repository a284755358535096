// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/aminalvm/ledger"
)

// EventFed is emitted by the entity that received a feeding.
const EventFed = "Fed"

var (
	ErrZeroFeed = errors.New("feed amount must be positive")

	_ WeightOracle = (*LoveBook)(nil)

	lovePrefix      = []byte("love:")
	totalLovePrefix = []byte("totalLove:")
)

// LoveBook accrues love on entities in exchange for balance. Love accrues
// one to one with the amount fed.
type LoveBook struct {
	log    log.Logger
	ledger *ledger.Ledger
}

func NewLoveBook(l *ledger.Ledger, logger log.Logger) *LoveBook {
	return &LoveBook{
		log:    logger,
		ledger: l,
	}
}

func loveKey(entity, contributor ids.ShortID) []byte {
	key := append([]byte{}, lovePrefix...)
	key = append(key, entity[:]...)
	return append(key, contributor[:]...)
}

func totalLoveKey(entity ids.ShortID) []byte {
	return append(append([]byte{}, totalLovePrefix...), entity[:]...)
}

func (b *LoveBook) WeightOf(_ context.Context, entity, contributor ids.ShortID) (*uint256.Int, error) {
	return ledger.ReadAmount(b.ledger.DB(), loveKey(entity, contributor))
}

// TotalLove returns the love accrued on entity by every contributor.
func (b *LoveBook) TotalLove(entity ids.ShortID) (*uint256.Int, error) {
	return ledger.ReadAmount(b.ledger.DB(), totalLoveKey(entity))
}

// Feed moves amount from contributor to entity and credits the contributor
// with the same amount of love on entity.
func (b *LoveBook) Feed(ctx context.Context, entity, contributor ids.ShortID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroFeed
	}
	return b.ledger.Run(func(db database.Database) error {
		if err := b.ledger.Transfer(ctx, contributor, entity, amount, 0); err != nil {
			return err
		}
		if err := addAmount(db, loveKey(entity, contributor), amount); err != nil {
			return err
		}
		if err := addAmount(db, totalLoveKey(entity), amount); err != nil {
			return err
		}

		b.log.Debug("fed aminal",
			log.Stringer("aminal", entity),
			log.Stringer("contributor", contributor),
			log.String("amount", amount.Dec()),
		)
		return b.ledger.Emit(ledger.Event{
			Emitter: entity,
			Name:    EventFed,
			Attrs: []ledger.Attr{
				{Key: "contributor", Value: contributor.String()},
				{Key: "amount", Value: amount.Dec()},
			},
		})
	})
}

func addAmount(db database.Database, key []byte, amount *uint256.Int) error {
	current, err := ledger.ReadAmount(db, key)
	if err != nil {
		return err
	}
	sum, err := ledger.AddAmount(current, amount)
	if err != nil {
		return err
	}
	return ledger.WriteAmount(db, key, sum)
}
