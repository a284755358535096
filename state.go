// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aminalvm

// State is the lifecycle state of a VM instance.
type State uint8

const (
	// Unknown is the state of an uninitialized VM.
	Unknown State = iota

	// Bootstrapping means the VM is wiring itself and applying genesis.
	Bootstrapping

	// NormalOp means the VM accepts operations.
	NormalOp
)

func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "Bootstrapping"
	case NormalOp:
		return "NormalOp"
	default:
		return "Unknown"
	}
}
