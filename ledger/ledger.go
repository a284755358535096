// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger provides the shared, serialized ledger every Aminal
// component reads and writes through.
//
// Writes happen inside Run. Each Run opens a versiondb layer on top of the
// current one; a successful Run folds its writes into the parent layer and a
// failed Run discards them. Runs nest, so a nested call that fails only
// unwinds its own writes while the enclosing call continues.
//
// A Ledger is not safe for concurrent use. Callers serialize access, the
// same way transactions are serialized by a block.
package ledger

import (
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

// Ledger is a stack of versioned layers over a base database.
type Ledger struct {
	log   log.Logger
	base  database.Database
	clock Clock

	layers    []*versiondb.Database
	receivers map[ids.ShortID]Receiver
}

func New(db database.Database, logger log.Logger) *Ledger {
	return &Ledger{
		log:       logger,
		base:      db,
		receivers: make(map[ids.ShortID]Receiver),
	}
}

// DB returns the innermost layer. Reads through it observe every write made
// by the enclosing Runs.
func (l *Ledger) DB() database.Database {
	if n := len(l.layers); n > 0 {
		return l.layers[n-1]
	}
	return l.base
}

// Depth returns the number of open Runs.
func (l *Ledger) Depth() int {
	return len(l.layers)
}

// Clock returns the block clock.
func (l *Ledger) Clock() *Clock {
	return &l.clock
}

// Run executes fn inside a new layer. If fn returns an error or panics, none
// of its writes survive.
func (l *Ledger) Run(fn func(db database.Database) error) error {
	layer := versiondb.New(l.DB())
	l.layers = append(l.layers, layer)

	committed := false
	defer func() {
		l.layers = l.layers[:len(l.layers)-1]
		if !committed {
			layer.Abort()
		}
	}()

	if err := fn(layer); err != nil {
		return err
	}
	if err := layer.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger layer: %w", err)
	}
	committed = true
	return nil
}
