// Command sbd-receiver runs the SBD receiver: an HTTP intake that verifies
// inbound Standard Business Documents against the SMP directory and hands
// them to the configured handlers.
//
// Usage:
//
//	sbd-receiver --config /etc/as2sbd/config.yaml
//	sbd-receiver --config config.yaml --check-config
//	sbd-receiver --config config.yaml --discover iso6523-actorid-upis::0088:123
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/sirosfoundation/go-as2sbd/internal/config"
	"github.com/sirosfoundation/go-as2sbd/internal/handlers"
	"github.com/sirosfoundation/go-as2sbd/internal/metrics"
	"github.com/sirosfoundation/go-as2sbd/internal/server"
	"github.com/sirosfoundation/go-as2sbd/internal/storage"
	"github.com/sirosfoundation/go-as2sbd/pkg/receiver"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbd"
)

const (
	shutdownTimeout   = 30 * time.Second
	storeCloseTimeout = 10 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath  string
		checkConfig bool
		discover    string
		docType     string
		process     string
		logLevel    string
	)

	flagSet := pflag.NewFlagSet("sbd-receiver", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	flagSet.BoolVar(&checkConfig, "check-config", false, "validate the configuration and exit")
	flagSet.StringVar(&discover, "discover", "", "resolve a participant identifier (scheme::value) in the directory and exit")
	flagSet.StringVar(&docType, "document-type", "", "with --discover: document type identifier to resolve the endpoint for")
	flagSet.StringVar(&process, "process", "", "with --discover: process identifier to resolve the endpoint for")
	flagSet.StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := newLogger(cfg.Logging, os.Stderr)

	if checkConfig {
		fmt.Fprintln(os.Stdout, "configuration OK")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if discover != "" {
		return runDiscover(ctx, cfg.Directory, os.Stdout, discover, docType, process)
	}

	settings, err := newSettings(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	return serve(ctx, cfg, logger, settings, store)
}

// serve wires the processing module and runs the HTTP server until ctx is
// done. It owns store and closes it on every return path.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, settings *receiver.Settings, store storage.Store) error {
	if store != nil {
		defer closeStore(store, logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry, err := handlers.Build(cfg.Handlers, store, logger)
	if err != nil {
		return err
	}

	verifier := receiver.NewVerifier(receiver.VerifierConfig{
		Settings:         settings,
		TransportProfile: cfg.Receiver.TransportProfile,
		Logger:           logger,
		Observer:         m,
	})
	module := sbd.NewModule(sbd.ModuleConfig{
		Settings: settings,
		Verifier: verifier,
		Registry: registry,
		Logger:   logger,
		Observer: m,
	})

	srv := server.New(cfg, server.Options{
		Module:   module,
		Settings: settings,
		Store:    store,
		Gatherer: reg,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
