// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package breeding

import "errors"

var (
	ErrUnknownTicket       = errors.New("unknown ticket")
	ErrPhaseMismatch       = errors.New("phase mismatch")
	ErrInvalidIndex        = errors.New("invalid proposal index")
	ErrArrayLengthMismatch = errors.New("array length mismatch")
	ErrAlreadyExecuted     = errors.New("ticket already executed")
	ErrInvalidSlot         = errors.New("invalid trait slot")
	ErrSameParents         = errors.New("parents must differ")
	ErrSlotMismatch        = errors.New("component does not fit slot")
	ErrInvalidComponent    = errors.New("invalid component")
	ErrDescriptionTooLong  = errors.New("description too long")
)
