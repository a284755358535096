// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package traits

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
)

var _ Catalog = (*MapCatalog)(nil)

// ComponentRef points at a single component: a token held by a gene
// contract.
type ComponentRef struct {
	Contract ids.ShortID `serialize:"true" json:"contract"`
	TokenID  uint64      `serialize:"true" json:"tokenID"`
}

func (r ComponentRef) IsZero() bool {
	return r.Contract == ids.ShortEmpty && r.TokenID == 0
}

func (r ComponentRef) String() string {
	return fmt.Sprintf("%s#%d", r.Contract, r.TokenID)
}

// Set holds one component per slot, indexed by Slot.
type Set [NumSlots]ComponentRef

// Gene is the read-only capability exposed by a gene contract. Its answers
// are descriptive data; nothing it returns may drive control flow beyond
// input validation.
type Gene interface {
	TraitType(ctx context.Context, tokenID uint64) (Slot, error)
	TraitValue(ctx context.Context, tokenID uint64) (string, error)
}

// Catalog resolves gene contracts by address.
type Catalog interface {
	Gene(contract ids.ShortID) (Gene, bool)
}

// MapCatalog is an in-memory Catalog.
type MapCatalog struct {
	mu    sync.RWMutex
	genes map[ids.ShortID]Gene
}

func NewMapCatalog() *MapCatalog {
	return &MapCatalog{
		genes: make(map[ids.ShortID]Gene),
	}
}

func (c *MapCatalog) Register(contract ids.ShortID, gene Gene) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.genes[contract] = gene
}

func (c *MapCatalog) Gene(contract ids.ShortID) (Gene, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	gene, ok := c.genes[contract]
	return gene, ok
}

// StaticGene is a Gene backed by a fixed table of tokens.
type StaticGene struct {
	Tokens map[uint64]StaticToken
}

// StaticToken describes one token of a StaticGene.
type StaticToken struct {
	Slot  Slot
	Value string
}

func (g *StaticGene) TraitType(_ context.Context, tokenID uint64) (Slot, error) {
	tok, ok := g.Tokens[tokenID]
	if !ok {
		return 0, fmt.Errorf("%w: token %d", ErrUnknownSlot, tokenID)
	}
	return tok.Slot, nil
}

func (g *StaticGene) TraitValue(_ context.Context, tokenID uint64) (string, error) {
	tok, ok := g.Tokens[tokenID]
	if !ok {
		return "", fmt.Errorf("%w: token %d", ErrUnknownSlot, tokenID)
	}
	return tok.Value, nil
}
