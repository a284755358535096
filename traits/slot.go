// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package traits defines the trait slots an Aminal is composed of and the
// references to the components that fill them.
package traits

import (
	"errors"
	"fmt"
	"strings"
)

// NumSlots is the number of independent trait slots.
const NumSlots = 8

const (
	Back Slot = iota
	Limb
	Tail
	Ears
	Body
	Face
	Mouth
	Misc
)

var (
	ErrUnknownSlot = errors.New("unknown trait slot")

	slotNames = [NumSlots]string{
		"back",
		"limb",
		"tail",
		"ears",
		"body",
		"face",
		"mouth",
		"misc",
	}
)

// Slot identifies one trait category. Slots never interact with each other.
type Slot uint8

// AllSlots returns every slot in canonical order.
func AllSlots() []Slot {
	slots := make([]Slot, NumSlots)
	for i := range slots {
		slots[i] = Slot(i)
	}
	return slots
}

func (s Slot) Valid() bool {
	return s < NumSlots
}

func (s Slot) String() string {
	if !s.Valid() {
		return fmt.Sprintf("slot(%d)", uint8(s))
	}
	return slotNames[s]
}

// ParseSlot parses a slot name, case-insensitively.
func ParseSlot(name string) (Slot, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range slotNames {
		if n == name {
			return Slot(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSlot, name)
}
