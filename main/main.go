// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// acurastvm runs a single node devnet: it produces a block whenever txs are
// pending and serves the JSON-RPC API and prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/avalanchego/database/manager"
	"github.com/ava-labs/avalanchego/snow/engine/common"
	"github.com/ava-labs/avalanchego/version"

	"github.com/acurast/acurastvm/acurastvm"
	"github.com/acurast/acurastvm/sdk/stack"
)

func main() {
	p, err := parseParams(os.Args[1:])
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if p.version {
		fmt.Printf("%s@%s\n", acurastvm.Name, acurastvm.Version)
		os.Exit(0)
	}

	lvl, err := log.LvlFromString(p.logLevel)
	if err != nil {
		fmt.Printf("couldn't parse log level: %s\n", err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, p); err != nil {
		log.Crit("devnet stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, p *params) error {
	toEngine := make(chan common.Message, 1)
	vm := &acurastvm.VM{}
	if err := vm.Initialize(
		ctx,
		nil,
		manager.NewMemDB(version.CurrentDatabase),
		p.genesisBytes,
		nil,
		p.configBytes,
		toEngine,
		nil,
		nil,
	); err != nil {
		return fmt.Errorf("failed to initialize vm: %w", err)
	}
	defer func() {
		if err := vm.Shutdown(context.Background()); err != nil {
			log.Error("vm shutdown failed", "err", err)
		}
	}()

	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		return fmt.Errorf("failed to create handlers: %w", err)
	}
	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.Handle(path, handler.Handler)
	}
	mux.Handle("/metrics", promhttp.HandlerFor(vm.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              net.JoinHostPort(p.httpHost, strconv.Itoa(int(p.httpPort))),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		stack.NewProducer(vm.Chain()).Run(gctx, toEngine, p.blockInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
