// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package json provides numeric types that are JSON marshaled as strings.
package json

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

const Null = "null"

// Uint64 is a uint64 that can be JSON marshaled as a string.
type Uint64 uint64

func (u Uint64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *Uint64) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str == Null {
		return nil
	}
	val, err := strconv.ParseUint(unquote(str), 10, 64)
	*u = Uint64(val)
	return err
}

// Amount is a 256-bit token amount marshaled as a decimal string. The zero
// value is zero.
type Amount struct {
	v uint256.Int
}

func NewAmount(v *uint256.Int) Amount {
	var a Amount
	if v != nil {
		a.v.Set(v)
	}
	return a
}

// Int returns a copy of the amount.
func (a Amount) Int() *uint256.Int {
	return new(uint256.Int).Set(&a.v)
}

func (a Amount) String() string {
	return a.v.Dec()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.Dec() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str == Null {
		return nil
	}
	v, err := uint256.FromDecimal(unquote(str))
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", str, err)
	}
	a.v.Set(v)
	return nil
}

func unquote(str string) string {
	if len(str) >= 2 {
		if lastIndex := len(str) - 1; str[0] == '"' && str[lastIndex] == '"' {
			return str[1:lastIndex]
		}
	}
	return str
}
