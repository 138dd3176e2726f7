package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
)

// ErrNoSMPLocation is returned when neither a static SMP URL nor a BDXL
// zone is configured
var ErrNoSMPLocation = errors.New("no SMP location configured")

// DiscoveryClient resolves the receiving endpoint of a participant. The SMP
// is either configured statically or located per participant via BDXL.
type DiscoveryClient struct {
	smpURL string
	bdxl   *BDXLClient
	smp    *SMPClient
}

// DiscoveryConfig contains configuration for the discovery client
type DiscoveryConfig struct {
	// SMPURL is a fixed SMP base URL. When set, BDXL is not used.
	SMPURL string

	// BDXLConfig is the configuration for BDXL discovery, used when SMPURL
	// is empty
	BDXLConfig BDXLClientConfig

	// SMPConfig is the configuration for SMP queries
	SMPConfig SMPClientConfig
}

// NewDiscoveryClient creates a discovery client that queries a fixed SMP.
func NewDiscoveryClient(smpURL string) *DiscoveryClient {
	return NewDiscoveryClientWithConfig(DiscoveryConfig{SMPURL: smpURL})
}

// NewDiscoveryClientWithConfig creates a new discovery client with custom configuration.
func NewDiscoveryClientWithConfig(config DiscoveryConfig) *DiscoveryClient {
	c := &DiscoveryClient{
		smpURL: config.SMPURL,
		smp:    NewSMPClientWithConfig(config.SMPConfig),
	}
	if config.SMPURL == "" && config.BDXLConfig.ServiceProviderDomain != "" {
		c.bdxl = NewBDXLClientWithConfig(config.BDXLConfig)
	}
	return c
}

// LocateSMP returns the SMP base URL responsible for the participant.
func (c *DiscoveryClient) LocateSMP(ctx context.Context, participant identifier.ParticipantIdentifier) (string, error) {
	if c.smpURL != "" {
		return c.smpURL, nil
	}
	if c.bdxl == nil {
		return "", ErrNoSMPLocation
	}
	smpURL, err := c.bdxl.DiscoverSMP(ctx, participant)
	if err != nil {
		return "", fmt.Errorf("BDXL discovery failed: %w", err)
	}
	return smpURL, nil
}

// LookupEndpoint resolves the endpoint registered for the participant,
// document type and process under the given transport profile.
//
// A participant or document type unknown to the SMP, or metadata without a
// matching process and profile, yields (nil, nil). Transport and parse
// failures are returned as errors.
func (c *DiscoveryClient) LookupEndpoint(ctx context.Context, participant identifier.ParticipantIdentifier, documentType identifier.DocumentTypeIdentifier, process identifier.ProcessIdentifier, transportProfile string) (*Endpoint, error) {
	smpURL, err := c.LocateSMP(ctx, participant)
	if err != nil {
		return nil, err
	}

	metadata, err := c.smp.GetServiceMetadata(ctx, smpURL, participant, documentType)
	if errors.Is(err, ErrParticipantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("SMP lookup failed: %w", err)
	}

	return metadata.SelectEndpoint(process, transportProfile), nil
}

// ListDocumentTypes lists the service metadata references registered for a participant.
func (c *DiscoveryClient) ListDocumentTypes(ctx context.Context, participant identifier.ParticipantIdentifier) ([]string, error) {
	smpURL, err := c.LocateSMP(ctx, participant)
	if err != nil {
		return nil, err
	}

	serviceGroup, err := c.smp.GetServiceGroup(ctx, smpURL, participant)
	if err != nil {
		return nil, fmt.Errorf("SMP lookup failed: %w", err)
	}

	return serviceGroup.ServiceReferences, nil
}

// String describes where the client looks up SMPs, for logging.
func (c *DiscoveryClient) String() string {
	if c.smpURL != "" {
		return "smp:" + c.smpURL
	}
	if c.bdxl != nil {
		return "bdxl:" + c.bdxl.config.ServiceProviderDomain
	}
	return "unconfigured"
}
