// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/aminalvm"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Runs the Aminal VM behind an HTTP server",
		RunE:  serveFunc,
	}
	AddFlags(c.Flags())
	return c
}

func serveFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	ctx := c.Context()
	logger := log.NewLogger(aminalvm.Name)
	registry := metric.NewRegistry()
	factory := &aminalvm.Factory{Registry: registry}
	intf, err := factory.New(logger)
	if err != nil {
		return err
	}
	vm := intf.(*aminalvm.VM)
	if err := vm.Initialize(ctx, memdb.New(), config.GenesisBytes, config.ConfigBytes); err != nil {
		return err
	}
	if err := vm.SetState(ctx, aminalvm.NormalOp); err != nil {
		return err
	}

	router, err := newRouter(ctx, vm, registry)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr: config.HTTPAddr,
		Handler: cors.New(cors.Options{
			AllowedOrigins:   config.AllowedOrigins,
			AllowCredentials: true,
		}).Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving aminalvm",
			log.String("addr", config.HTTPAddr),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down")
		err := server.Shutdown(shutdownCtx)
		// A timed out shutdown still closes the listener.
		_ = server.Close()
		return errors.Join(err, vm.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

// newRouter mounts the VM handlers under /ext/aminalvm next to the metrics
// and health endpoints.
func newRouter(ctx context.Context, vm *aminalvm.VM, gatherer prometheus.Gatherer) (*mux.Router, error) {
	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	for path, handler := range handlers {
		router.Handle("/ext/"+aminalvm.Name+path, handler)
	}
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health, err := vm.HealthCheck(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if !vm.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	}).Methods(http.MethodGet)
	return router, nil
}
