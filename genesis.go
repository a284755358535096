// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aminalvm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/registry"
	"github.com/luxfi/aminalvm/traits"
)

var errMissingDeployer = errors.New("genesis has no deployer")

// Genesis is the initial state of the chain. Addresses are in their string
// form.
type Genesis struct {
	Deployer string `json:"deployer"`
	// Allocations credit plain accounts.
	Allocations []Allocation    `json:"allocations"`
	Genes       []GenesisGene   `json:"genes"`
	Aminals     []GenesisAminal `json:"aminals"`
}

// Allocation credits Amount to Address.
type Allocation struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// GenesisGene registers a gene contract whose tokens are known upfront.
type GenesisGene struct {
	Contract string             `json:"contract"`
	Tokens   []GenesisGeneToken `json:"tokens"`
}

type GenesisGeneToken struct {
	TokenID uint64 `json:"tokenID"`
	Slot    string `json:"slot"`
	Value   string `json:"value"`
}

// GenesisAminal is spawned by the deployer with Balance in its account.
type GenesisAminal struct {
	Name       string                `json:"name"`
	Balance    uint64                `json:"balance"`
	Components map[string]GenesisRef `json:"components"`
}

// GenesisRef names a component by its gene contract and token.
type GenesisRef struct {
	Contract string `json:"contract"`
	TokenID  uint64 `json:"tokenID"`
}

// ParseGenesis decodes genesisBytes. Empty bytes produce an empty genesis
// owned by the zero deployer.
func ParseGenesis(genesisBytes []byte) (*Genesis, error) {
	g := &Genesis{}
	if len(genesisBytes) == 0 {
		g.Deployer = ids.ShortEmpty.String()
		return g, nil
	}
	if err := json.Unmarshal(genesisBytes, g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis: %w", err)
	}
	if g.Deployer == "" {
		return nil, errMissingDeployer
	}
	return g, nil
}

func (g *Genesis) DeployerAddress() (ids.ShortID, error) {
	return ids.ShortFromString(g.Deployer)
}

// Catalog builds the gene catalog named by the genesis.
func (g *Genesis) Catalog() (*traits.MapCatalog, error) {
	catalog := traits.NewMapCatalog()
	for _, gene := range g.Genes {
		contract, err := ids.ShortFromString(gene.Contract)
		if err != nil {
			return nil, fmt.Errorf("gene %q: %w", gene.Contract, err)
		}
		static := &traits.StaticGene{Tokens: make(map[uint64]traits.StaticToken, len(gene.Tokens))}
		for _, tok := range gene.Tokens {
			slot, err := traits.ParseSlot(tok.Slot)
			if err != nil {
				return nil, fmt.Errorf("gene %s token %d: %w", contract, tok.TokenID, err)
			}
			static.Tokens[tok.TokenID] = traits.StaticToken{Slot: slot, Value: tok.Value}
		}
		catalog.Register(contract, static)
	}
	return catalog, nil
}

// apply writes the genesis state in a single ledger transaction.
func (g *Genesis) apply(ctx context.Context, l *ledger.Ledger, r *registry.Registry) error {
	deployer, err := g.DeployerAddress()
	if err != nil {
		return err
	}
	return l.Run(func(database.Database) error {
		for _, alloc := range g.Allocations {
			addr, err := ids.ShortFromString(alloc.Address)
			if err != nil {
				return fmt.Errorf("allocation %q: %w", alloc.Address, err)
			}
			if err := l.Credit(addr, uint256.NewInt(alloc.Amount)); err != nil {
				return err
			}
		}
		for _, a := range g.Aminals {
			var components traits.Set
			for name, ref := range a.Components {
				slot, err := traits.ParseSlot(name)
				if err != nil {
					return fmt.Errorf("aminal %q: %w", a.Name, err)
				}
				contract, err := ids.ShortFromString(ref.Contract)
				if err != nil {
					return fmt.Errorf("aminal %q %s: %w", a.Name, slot, err)
				}
				components[slot] = traits.ComponentRef{Contract: contract, TokenID: ref.TokenID}
			}
			addr, err := r.Spawn(ctx, deployer, registry.Spec{
				Name:       a.Name,
				Components: components,
			})
			if err != nil {
				return err
			}
			if err := l.Credit(addr, uint256.NewInt(a.Balance)); err != nil {
				return err
			}
		}
		return nil
	})
}
