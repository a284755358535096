// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
)

const amountLen = 32

var (
	ErrOverflow      = errors.New("amount overflow")
	ErrCorruptAmount = errors.New("corrupt amount")
)

// ReadAmount reads a 32 byte big-endian amount. Missing keys read as zero.
func ReadAmount(db database.Database, key []byte) (*uint256.Int, error) {
	amount, _, err := ReadAmountOK(db, key)
	return amount, err
}

// ReadAmountOK is ReadAmount that also reports whether the key was present.
func ReadAmountOK(db database.Database, key []byte) (*uint256.Int, bool, error) {
	b, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(b) != amountLen {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrCorruptAmount, len(b))
	}
	return new(uint256.Int).SetBytes(b), true, nil
}

// WriteAmount writes amount as 32 bytes, big-endian.
func WriteAmount(db database.Database, key []byte, amount *uint256.Int) error {
	b := amount.Bytes32()
	return db.Put(key, b[:])
}

// AddAmount returns a + b, failing on overflow.
func AddAmount(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}
