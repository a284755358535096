// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry is the Aminal factory. It records every Aminal with its
// components, creates offspring on behalf of breeding governance, and holds
// the write-once breeding governance registration Aminals trust.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/aminalvm/aminal"
	"github.com/luxfi/aminalvm/breeding"
	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/metrics"
	"github.com/luxfi/aminalvm/traits"
)

const (
	EventGovernanceSet = "BreedingGovernanceSet"
	EventAminalSpawned = "AminalSpawned"
	EventAminalBorn    = "AminalBorn"
)

var (
	_ breeding.Factory = (*Registry)(nil)
	_ aminal.Authority = (*Registry)(nil)

	ErrUnknownAminal        = errors.New("unknown aminal")
	ErrAminalExists         = errors.New("aminal already exists")
	ErrNotDeployer          = errors.New("caller is not the deployer")
	ErrNotGovernance        = errors.New("caller is not the breeding governance")
	ErrGovernanceAlreadySet = errors.New("breeding governance already set")
	ErrGovernanceNotSet     = errors.New("breeding governance not set")
	ErrGovernanceMismatch   = errors.New("breeding governance mismatch")

	aminalPrefix  = []byte("aminal:")
	aminalCount   = []byte("aminalCount")
	governanceKey = []byte("breedingGovernance")
)

// Spec describes an Aminal created at genesis.
type Spec struct {
	Name       string     `json:"name"`
	Components traits.Set `json:"components"`
}

// Record is the stored form of an Aminal. Aminals spawned at genesis have no
// parents.
type Record struct {
	Address    ids.ShortID `serialize:"true" json:"address"`
	Name       string      `serialize:"true" json:"name"`
	Components traits.Set  `serialize:"true" json:"components"`
	ParentA    ids.ShortID `serialize:"true" json:"parentA"`
	ParentB    ids.ShortID `serialize:"true" json:"parentB"`
	TicketID   uint64      `serialize:"true" json:"ticketID"`
	CreatedAt  uint64      `serialize:"true" json:"createdAt"`
}

// Registry is not safe for concurrent use; callers serialize access.
type Registry struct {
	log      log.Logger
	ledger   *ledger.Ledger
	metrics  metrics.Metrics
	deployer ids.ShortID

	governance aminal.Governance
	// aminals holds the single handle of every Aminal that has been loaded.
	aminals map[ids.ShortID]*aminal.Aminal
}

func New(l *ledger.Ledger, deployer ids.ShortID, m metrics.Metrics, logger log.Logger) *Registry {
	return &Registry{
		log:      logger,
		ledger:   l,
		metrics:  m,
		deployer: deployer,
		aminals:  make(map[ids.ShortID]*aminal.Aminal),
	}
}

// Deployer is the only address allowed to spawn Aminals and register the
// breeding governance.
func (r *Registry) Deployer() ids.ShortID {
	return r.deployer
}

// SetBreedingGovernance registers gov. It can succeed only once over the
// lifetime of the stored registry.
func (r *Registry) SetBreedingGovernance(caller ids.ShortID, gov aminal.Governance) error {
	if caller != r.deployer {
		return fmt.Errorf("%w: %s", ErrNotDeployer, caller)
	}
	err := r.ledger.Run(func(db database.Database) error {
		has, err := db.Has(governanceKey)
		if err != nil {
			return err
		}
		if has {
			return ErrGovernanceAlreadySet
		}
		address := gov.Address()
		if err := db.Put(governanceKey, address[:]); err != nil {
			return err
		}
		return r.ledger.Emit(ledger.Event{
			Emitter: r.deployer,
			Name:    EventGovernanceSet,
			Attrs: []ledger.Attr{
				{Key: "governance", Value: address.String()},
			},
		})
	})
	if err != nil {
		return err
	}

	r.governance = gov
	r.log.Info("registered breeding governance",
		log.Stringer("governance", gov.Address()),
	)
	return nil
}

// RestoreBreedingGovernance binds gov to a registration made by an earlier
// run. The stored address must match.
func (r *Registry) RestoreBreedingGovernance(gov aminal.Governance) error {
	address, ok, err := r.GovernanceAddress()
	if err != nil {
		return err
	}
	if !ok {
		return ErrGovernanceNotSet
	}
	if address != gov.Address() {
		return fmt.Errorf("%w: stored %s, got %s", ErrGovernanceMismatch, address, gov.Address())
	}
	r.governance = gov
	return nil
}

// GovernanceAddress returns the stored breeding governance address.
func (r *Registry) GovernanceAddress() (ids.ShortID, bool, error) {
	b, err := r.ledger.DB().Get(governanceKey)
	if errors.Is(err, database.ErrNotFound) {
		return ids.ShortEmpty, false, nil
	}
	if err != nil {
		return ids.ShortEmpty, false, err
	}
	address, err := ids.ToShortID(b)
	return address, err == nil, err
}

// BreedingGovernance returns the bound governance. The binding only counts
// while its registration is stored, so a rolled back registration unbinds it.
func (r *Registry) BreedingGovernance() (aminal.Governance, bool) {
	if r.governance == nil {
		return nil, false
	}
	address, ok, err := r.GovernanceAddress()
	if err != nil || !ok || address != r.governance.Address() {
		return nil, false
	}
	return r.governance, true
}

// Spawn creates a parentless Aminal.
func (r *Registry) Spawn(_ context.Context, caller ids.ShortID, spec Spec) (ids.ShortID, error) {
	if caller != r.deployer {
		return ids.ShortEmpty, fmt.Errorf("%w: %s", ErrNotDeployer, caller)
	}
	address, err := r.create(&Record{
		Name:       spec.Name,
		Components: spec.Components,
	}, EventAminalSpawned)
	if err != nil {
		return ids.ShortEmpty, err
	}
	r.log.Debug("spawned aminal",
		log.Stringer("address", address),
		log.String("name", spec.Name),
	)
	return address, nil
}

// CreateOffspring creates the child of an executed breeding ticket. Only the
// registered breeding governance may call it.
func (r *Registry) CreateOffspring(_ context.Context, caller ids.ShortID, req breeding.OffspringRequest) (ids.ShortID, error) {
	gov, ok := r.BreedingGovernance()
	if !ok || caller != gov.Address() {
		return ids.ShortEmpty, fmt.Errorf("%w: %s", ErrNotGovernance, caller)
	}
	for _, parent := range []ids.ShortID{req.ParentA, req.ParentB} {
		if _, err := r.Get(parent); err != nil {
			return ids.ShortEmpty, err
		}
	}
	address, err := r.create(&Record{
		Name:       req.Description,
		Components: req.Components,
		ParentA:    req.ParentA,
		ParentB:    req.ParentB,
		TicketID:   req.TicketID,
	}, EventAminalBorn)
	if err != nil {
		return ids.ShortEmpty, err
	}
	r.log.Info("aminal born",
		log.Stringer("address", address),
		log.Stringer("parentA", req.ParentA),
		log.Stringer("parentB", req.ParentB),
		log.Uint64("ticketID", req.TicketID),
	)
	return address, nil
}

func (r *Registry) create(record *Record, event string) (ids.ShortID, error) {
	err := r.ledger.Run(func(db database.Database) error {
		count, err := database.GetUInt64(db, aminalCount)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		count++
		address, err := deriveAddress(count)
		if err != nil {
			return err
		}
		has, err := db.Has(recordKey(address))
		if err != nil {
			return err
		}
		if has {
			return fmt.Errorf("%w: %s", ErrAminalExists, address)
		}

		record.Address = address
		record.CreatedAt = r.ledger.Clock().Unix()
		b, err := Codec.Marshal(CodecVersion, record)
		if err != nil {
			return err
		}
		if err := db.Put(recordKey(address), b); err != nil {
			return err
		}
		if err := database.PutUInt64(db, aminalCount, count); err != nil {
			return err
		}
		return r.ledger.Emit(ledger.Event{
			Emitter:  address,
			Name:     event,
			TicketID: record.TicketID,
			Attrs: []ledger.Attr{
				{Key: "name", Value: record.Name},
			},
		})
	})
	return record.Address, err
}

// Get returns the stored record of an Aminal.
func (r *Registry) Get(address ids.ShortID) (*Record, error) {
	b, err := r.ledger.DB().Get(recordKey(address))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAminal, address)
	}
	if err != nil {
		return nil, err
	}
	record := &Record{}
	if _, err := Codec.Unmarshal(b, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Count returns the number of Aminals ever created.
func (r *Registry) Count() (uint64, error) {
	count, err := database.GetUInt64(r.ledger.DB(), aminalCount)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return count, err
}

// List returns every Aminal in creation order.
func (r *Registry) List() ([]*Record, error) {
	count, err := r.Count()
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, count)
	for n := uint64(1); n <= count; n++ {
		address, err := deriveAddress(n)
		if err != nil {
			return nil, err
		}
		record, err := r.Get(address)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *Registry) ComponentsOf(_ context.Context, address ids.ShortID) (traits.Set, error) {
	record, err := r.Get(address)
	if err != nil {
		return traits.Set{}, err
	}
	return record.Components, nil
}

// Aminal returns the handle of an existing Aminal.
func (r *Registry) Aminal(address ids.ShortID) (*aminal.Aminal, error) {
	if a, ok := r.aminals[address]; ok {
		return a, nil
	}
	if _, err := r.Get(address); err != nil {
		return nil, err
	}
	a := aminal.New(address, r.ledger, r, r.metrics, r.log)
	r.aminals[address] = a
	return a, nil
}

func (r *Registry) FeePayer(address ids.ShortID) (breeding.FeePayer, error) {
	a, err := r.Aminal(address)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func recordKey(address ids.ShortID) []byte {
	return append(append([]byte{}, aminalPrefix...), address[:]...)
}

// deriveAddress maps the n-th Aminal to its address.
func deriveAddress(n uint64) (ids.ShortID, error) {
	var preimage [len("aminal") + 8]byte
	copy(preimage[:], "aminal")
	binary.BigEndian.PutUint64(preimage[len("aminal"):], n)
	hash := sha256.Sum256(preimage[:])
	return ids.ToShortID(hash[:20])
}
