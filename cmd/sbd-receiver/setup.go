package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sirosfoundation/go-as2sbd/internal/config"
	"github.com/sirosfoundation/go-as2sbd/internal/storage"
	"github.com/sirosfoundation/go-as2sbd/internal/storage/memory"
	"github.com/sirosfoundation/go-as2sbd/internal/storage/mongodb"
	"github.com/sirosfoundation/go-as2sbd/pkg/discovery"
	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
	"github.com/sirosfoundation/go-as2sbd/pkg/receiver"
	"github.com/sirosfoundation/go-as2sbd/pkg/security"
	"github.com/sirosfoundation/go-as2sbd/pkg/transport"
)

// newLogger builds the process logger from the logging section
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// newDiscoveryClient builds the directory client, or returns nil when no
// SMP location is configured
func newDiscoveryClient(cfg config.DirectoryConfig) (*discovery.DiscoveryClient, error) {
	if !cfg.Configured() {
		return nil, nil
	}

	httpsConfig := &transport.HTTPSConfig{Timeout: cfg.Timeout}
	if cfg.CAFile != "" {
		pool, err := transport.LoadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		httpsConfig.RootCAs = pool
	}

	return discovery.NewDiscoveryClientWithConfig(discovery.DiscoveryConfig{
		SMPURL: cfg.SMPURL,
		BDXLConfig: discovery.BDXLClientConfig{
			ServiceProviderDomain: cfg.BDXL.Domain,
			Environment:           discovery.Environment(cfg.BDXL.Environment),
			DNSServer:             cfg.BDXL.DNSServer,
		},
		SMPConfig: discovery.SMPClientConfig{
			HTTPClient: transport.NewHTTPClient(httpsConfig),
			UserAgent:  cfg.UserAgent,
		},
	}), nil
}

// newSettings populates the receiver settings from configuration
func newSettings(cfg *config.Config) (*receiver.Settings, error) {
	settings := receiver.NewSettings()
	settings.SetOwnEndpointURL(cfg.Receiver.EndpointURL)

	if cfg.Receiver.CertificateFile != "" {
		cert, err := security.LoadCertificateFile(cfg.Receiver.CertificateFile)
		if err != nil {
			return nil, fmt.Errorf("loading receiver certificate: %w", err)
		}
		settings.SetOwnCertificate(cert)
	}

	client, err := newDiscoveryClient(cfg.Directory)
	if err != nil {
		return nil, err
	}
	if client != nil {
		settings.SetLookupClient(client)
	}

	settings.SetReceiverCheckEnabled(cfg.Receiver.CheckEnabled)
	return settings, nil
}

// openStore opens the archive store, or returns nil when no handler needs
// one
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if !cfg.HasHandler(config.HandlerArchive) {
		return nil, nil
	}

	switch cfg.Storage.Type {
	case config.StorageMemory:
		return memory.NewStore(), nil
	case config.StorageMongoDB:
		mctx, cancel := context.WithTimeout(ctx, cfg.Storage.MongoDB.Timeout)
		defer cancel()
		store, err := mongodb.NewStore(mctx, &mongodb.Config{
			URI:            cfg.Storage.MongoDB.URI,
			Database:       cfg.Storage.MongoDB.Database,
			Collection:     cfg.Storage.MongoDB.Collection,
			GridFSBucket:   cfg.Storage.MongoDB.GridFS.BucketName,
			ChunkSizeBytes: cfg.Storage.MongoDB.GridFS.ChunkSizeBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("opening archive store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// closeStore releases the archive store, logging any error
func closeStore(store storage.Store, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCloseTimeout)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		logger.Error("failed to close archive store", slog.Any("error", err))
	}
}

// runDiscover prints the SMP location and registered document types of a
// participant, and the resolved endpoint when a document type and process
// are given
func runDiscover(ctx context.Context, cfg config.DirectoryConfig, w io.Writer, participantURI, docTypeURI, processURI string) error {
	client, err := newDiscoveryClient(cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("directory.smpURL or directory.bdxl.domain is required for --discover")
	}

	participant, err := identifier.ParseParticipantIdentifier(participantURI)
	if err != nil {
		return err
	}

	smpURL, err := client.LocateSMP(ctx, participant)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "participant: %s\nsmp: %s\n", participant, smpURL)

	docTypes, err := client.ListDocumentTypes(ctx, participant)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "document types:")
	for _, dt := range docTypes {
		fmt.Fprintf(w, "  %s\n", dt)
	}

	if docTypeURI == "" || processURI == "" {
		return nil
	}

	docType, err := identifier.ParseDocumentTypeIdentifier(docTypeURI)
	if err != nil {
		return err
	}
	process, err := identifier.ParseProcessIdentifier(processURI)
	if err != nil {
		return err
	}

	for _, profile := range []string{discovery.TransportAS2V1, discovery.TransportAS2V2} {
		endpoint, err := client.LookupEndpoint(ctx, participant, docType, process, profile)
		if err != nil {
			return err
		}
		if endpoint == nil {
			fmt.Fprintf(w, "%s: no endpoint\n", profile)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", profile, endpoint.EndpointURL)
		cert, err := security.ParseCertificateString(endpoint.Certificate)
		switch {
		case err != nil:
			fmt.Fprintf(w, "  certificate: %v\n", err)
		case cert == nil:
			fmt.Fprintln(w, "  certificate: none")
		default:
			fmt.Fprintf(w, "  certificate: %s serial %s\n", cert.Subject, security.SerialHex(cert))
		}
	}
	return nil
}
