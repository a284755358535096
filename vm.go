// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package aminalvm wires the Aminal registry, the love oracle and breeding
// governance into a single VM served over JSON-RPC.
package aminalvm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/utils/json"

	"github.com/luxfi/aminalvm/api"
	"github.com/luxfi/aminalvm/breeding"
	"github.com/luxfi/aminalvm/config"
	"github.com/luxfi/aminalvm/ledger"
	"github.com/luxfi/aminalvm/metrics"
	"github.com/luxfi/aminalvm/oracle"
	"github.com/luxfi/aminalvm/registry"
)

const (
	Name    = "aminalvm"
	Version = "1.0.0"
)

// BreedingAddress is the identity of the breeding governance contract.
var BreedingAddress = ids.ShortID{'a', 'm', 'i', 'n', 'a', 'l', '/', 'b', 'r', 'e', 'e', 'd', 'i', 'n', 'g'}

var (
	errNotInitialized = errors.New("vm not initialized")
	errNotReady       = errors.New("vm not in normal operation")
	errUnknownState   = errors.New("unknown state")
)

type VM struct {
	config.Config

	log      log.Logger
	registry metric.Registry

	// lock serializes every operation against the ledger.
	lock  sync.Mutex
	state State

	db       database.Database
	ledger   *ledger.Ledger
	metrics  metrics.Metrics
	registry *registry.Registry
	love     *oracle.LoveBook
	engine   *breeding.Engine
	genesis  *Genesis

	rpcServer *rpc.Server
}

func (vm *VM) Initialize(ctx context.Context, db database.Database, genesisBytes []byte, configBytes []byte) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.log == nil {
		vm.log = log.NoLog{}
	}
	vm.state = Bootstrapping

	if len(configBytes) > 0 || vm.Config == (config.Config{}) {
		cfg, err := config.Parse(configBytes)
		if err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		vm.Config = cfg
	} else if err := vm.Config.Verify(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	g, err := ParseGenesis(genesisBytes)
	if err != nil {
		return fmt.Errorf("failed to parse genesis bytes: %w", err)
	}
	deployer, err := g.DeployerAddress()
	if err != nil {
		return err
	}
	catalog, err := g.Catalog()
	if err != nil {
		return err
	}

	if vm.registry == nil {
		vm.registry = metric.NewRegistry()
	}
	vm.metrics, err = metrics.New(vm.MetricsNamespace, vm.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	vm.db = db
	vm.genesis = g
	vm.ledger = ledger.New(db, vm.log)
	vm.registry = registry.New(vm.ledger, deployer, vm.metrics, vm.log)
	vm.love = oracle.NewLoveBook(vm.ledger, vm.log)
	vm.engine = breeding.New(
		BreedingAddress,
		vm.Config,
		vm.ledger,
		vm.love,
		vm.registry,
		catalog,
		vm.metrics,
		vm.log,
	)

	if err := vm.bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap: %w", err)
	}

	interceptor, err := metrics.NewAPIInterceptor(vm.MetricsNamespace, vm.registry)
	if err != nil {
		return fmt.Errorf("failed to register api metrics: %w", err)
	}
	vm.rpcServer = rpc.NewServer()
	vm.rpcServer.RegisterCodec(json.NewCodec(), "application/json")
	vm.rpcServer.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	vm.rpcServer.RegisterInterceptFunc(interceptor.InterceptRequest)
	vm.rpcServer.RegisterAfterFunc(interceptor.AfterRequest)
	if err := vm.rpcServer.RegisterService(api.NewService(vm), Name); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	vm.log.Info("initialized aminalvm",
		log.String("version", Version),
		log.Stringer("deployer", deployer),
		log.Stringer("governance", BreedingAddress),
	)
	return nil
}

// bootstrap links the registry and the engine. The first start also applies
// genesis; later starts only restore the link.
func (vm *VM) bootstrap(ctx context.Context) error {
	_, linked, err := vm.registry.GovernanceAddress()
	if err != nil {
		return err
	}
	if linked {
		return vm.registry.RestoreBreedingGovernance(vm.engine)
	}
	return vm.ledger.Run(func(database.Database) error {
		if err := vm.registry.SetBreedingGovernance(vm.registry.Deployer(), vm.engine); err != nil {
			return err
		}
		return vm.genesis.apply(ctx, vm.ledger, vm.registry)
	})
}

func (vm *VM) SetState(_ context.Context, state State) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.ledger == nil {
		return errNotInitialized
	}
	switch state {
	case Bootstrapping, NormalOp:
		vm.log.Info("state transition",
			log.Stringer("from", vm.state),
			log.Stringer("to", state),
		)
		vm.state = state
		return nil
	default:
		return fmt.Errorf("%w: %s", errUnknownState, state)
	}
}

func (vm *VM) Shutdown(context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.db == nil {
		return nil
	}
	vm.state = Unknown
	if err := vm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	vm.db = nil
	vm.log.Info("aminalvm shutdown complete")
	return nil
}

func (*VM) Version(context.Context) (string, error) {
	return Version, nil
}

func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.rpcServer == nil {
		return nil, errNotInitialized
	}
	return map[string]http.Handler{
		"": vm.rpcServer,
	}, nil
}

func (vm *VM) HealthCheck(context.Context) (interface{}, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.ledger == nil {
		return nil, errNotInitialized
	}
	tickets, err := vm.engine.TicketCount()
	if err != nil {
		return nil, err
	}
	aminals, err := vm.registry.Count()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"healthy": vm.state == NormalOp,
		"state":   vm.state.String(),
		"tickets": tickets,
		"aminals": aminals,
	}, nil
}

// Clock is the time source every phase is computed against.
func (vm *VM) Clock() *ledger.Clock {
	return vm.ledger.Clock()
}

func (vm *VM) ready() error {
	switch {
	case vm.ledger == nil:
		return errNotInitialized
	case vm.state != NormalOp:
		return fmt.Errorf("%w: %s", errNotReady, vm.state)
	default:
		return nil
	}
}
