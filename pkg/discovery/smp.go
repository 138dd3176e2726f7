package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
)

// SMP errors
var (
	// ErrParticipantNotFound is returned when the SMP has no metadata for the
	// participant and document type
	ErrParticipantNotFound = errors.New("participant not found in SMP")
	// ErrInvalidMetadata is returned when the SMP response cannot be parsed
	ErrInvalidMetadata = errors.New("invalid SMP service metadata")
)

// Transport profile constants
const (
	// TransportAS2V1 is the BusDox AS2 1.0 transport profile
	TransportAS2V1 = "busdox-transport-as2-ver1p0"
	// TransportAS2V2 is the BusDox AS2 2.0 transport profile
	TransportAS2V2 = "busdox-transport-as2-ver2p0"
)

const (
	defaultUserAgent    = "go-as2sbd-smp-client/1.0"
	defaultAcceptHeader = "application/xml"
	defaultTimeout      = 30 * time.Second
	maxResponseSize     = 4 << 20
)

// SMPClientConfig contains configuration for the SMP client
type SMPClientConfig struct {
	// HTTPClient is the HTTP client to use (optional)
	// If nil, a default client with 30s timeout is used
	HTTPClient *http.Client

	// UserAgent is the User-Agent header to send
	UserAgent string

	// AcceptHeader specifies the Accept header
	// Defaults to "application/xml"
	AcceptHeader string
}

// SMPClient queries an OASIS/BusDox SMP 1.0 service
type SMPClient struct {
	config     SMPClientConfig
	httpClient *http.Client
}

// NewSMPClient creates a new SMP client with default settings
func NewSMPClient() *SMPClient {
	return NewSMPClientWithConfig(SMPClientConfig{})
}

// NewSMPClientWithConfig creates a new SMP client with custom configuration
func NewSMPClientWithConfig(config SMPClientConfig) *SMPClient {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.AcceptHeader == "" {
		config.AcceptHeader = defaultAcceptHeader
	}
	return &SMPClient{
		config:     config,
		httpClient: client,
	}
}

// ServiceGroup represents an SMP ServiceGroup
type ServiceGroup struct {
	ParticipantID     string
	ServiceReferences []string
}

// ServiceMetadata represents SMP ServiceMetadata
type ServiceMetadata struct {
	ParticipantID string
	DocumentType  string
	Processes     []ProcessMetadata
}

// ProcessMetadata represents a process within ServiceMetadata
type ProcessMetadata struct {
	ProcessScheme string
	ProcessID     string
	Endpoints     []Endpoint
}

// Endpoint is a receiving access point as published in the SMP
type Endpoint struct {
	// TransportProfile is the transport protocol (e.g., "busdox-transport-as2-ver1p0")
	TransportProfile string
	// EndpointURL is the address of the access point
	EndpointURL string
	// Certificate is the access point certificate exactly as published,
	// normally base64 DER
	Certificate string
	// ServiceActivationDate is when the service becomes active
	ServiceActivationDate *time.Time
	// ServiceExpirationDate is when the service expires
	ServiceExpirationDate *time.Time
	// TechnicalContactURL is the URL for technical contact
	TechnicalContactURL string
	// Description is a human-readable description
	Description string
}

// GetServiceGroup retrieves the ServiceGroup for a participant from an SMP.
func (c *SMPClient) GetServiceGroup(ctx context.Context, smpURL string, participant identifier.ParticipantIdentifier) (*ServiceGroup, error) {
	body, err := c.doRequest(ctx, c.formatServiceGroupURL(smpURL, participant))
	if err != nil {
		return nil, err
	}
	return c.parseServiceGroup(body, participant.URIEncoded())
}

// GetServiceMetadata retrieves ServiceMetadata for a participant and document type.
func (c *SMPClient) GetServiceMetadata(ctx context.Context, smpURL string, participant identifier.ParticipantIdentifier, documentType identifier.DocumentTypeIdentifier) (*ServiceMetadata, error) {
	body, err := c.doRequest(ctx, c.formatServiceMetadataURL(smpURL, participant, documentType))
	if err != nil {
		return nil, err
	}
	return c.parseServiceMetadata(body)
}

// formatServiceGroupURL constructs the URL for ServiceGroup lookup.
func (c *SMPClient) formatServiceGroupURL(smpURL string, participant identifier.ParticipantIdentifier) string {
	base := strings.TrimRight(smpURL, "/")
	return fmt.Sprintf("%s/%s", base, url.PathEscape(participant.URIEncoded()))
}

// formatServiceMetadataURL constructs the URL for ServiceMetadata lookup.
func (c *SMPClient) formatServiceMetadataURL(smpURL string, participant identifier.ParticipantIdentifier, documentType identifier.DocumentTypeIdentifier) string {
	base := strings.TrimRight(smpURL, "/")
	return fmt.Sprintf("%s/%s/services/%s", base,
		url.PathEscape(participant.URIEncoded()),
		url.PathEscape(documentType.URIEncoded()))
}

// doRequest performs an HTTP request and returns the response body.
func (c *SMPClient) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", c.config.AcceptHeader)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SMP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrParticipantNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SMP returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// SMP 1.0 XML structures
type smp10ServiceGroup struct {
	XMLName               xml.Name `xml:"ServiceGroup"`
	ParticipantIdentifier struct {
		Value  string `xml:",chardata"`
		Scheme string `xml:"scheme,attr"`
	} `xml:"ParticipantIdentifier"`
	ServiceMetadataReferenceCollection struct {
		ServiceMetadataReferences []struct {
			Href string `xml:"href,attr"`
		} `xml:"ServiceMetadataReference"`
	} `xml:"ServiceMetadataReferenceCollection"`
}

type smp10ServiceInformation struct {
	ParticipantIdentifier struct {
		Value  string `xml:",chardata"`
		Scheme string `xml:"scheme,attr"`
	} `xml:"ParticipantIdentifier"`
	DocumentIdentifier struct {
		Value  string `xml:",chardata"`
		Scheme string `xml:"scheme,attr"`
	} `xml:"DocumentIdentifier"`
	ProcessList struct {
		Processes []struct {
			ProcessIdentifier struct {
				Value  string `xml:",chardata"`
				Scheme string `xml:"scheme,attr"`
			} `xml:"ProcessIdentifier"`
			ServiceEndpointList struct {
				Endpoints []struct {
					TransportProfile      string `xml:"transportProfile,attr"`
					EndpointAddress       string `xml:"EndpointReference>Address"`
					EndpointURI           string `xml:"EndpointURI"`
					Certificate           string `xml:"Certificate"`
					ServiceActivationDate string `xml:"ServiceActivationDate"`
					ServiceExpirationDate string `xml:"ServiceExpirationDate"`
					TechnicalContactUrl   string `xml:"TechnicalContactUrl"`
					ServiceDescription    string `xml:"ServiceDescription"`
				} `xml:"Endpoint"`
			} `xml:"ServiceEndpointList"`
		} `xml:"Process"`
	} `xml:"ProcessList"`
}

// Responses are either SignedServiceMetadata (the usual case) or a bare
// ServiceMetadata element; both carry ServiceInformation.
type smp10ServiceMetadata struct {
	XMLName            xml.Name                 `xml:""`
	ServiceInformation *smp10ServiceInformation `xml:"ServiceInformation"`
	ServiceMetadata    struct {
		ServiceInformation *smp10ServiceInformation `xml:"ServiceInformation"`
	} `xml:"ServiceMetadata"`
}

// parseServiceGroup parses an SMP ServiceGroup response.
func (c *SMPClient) parseServiceGroup(data []byte, participantID string) (*ServiceGroup, error) {
	var sg smp10ServiceGroup
	if err := xml.Unmarshal(data, &sg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	result := &ServiceGroup{
		ParticipantID: participantID,
	}

	for _, ref := range sg.ServiceMetadataReferenceCollection.ServiceMetadataReferences {
		result.ServiceReferences = append(result.ServiceReferences, ref.Href)
	}

	return result, nil
}

// parseServiceMetadata parses an SMP ServiceMetadata response.
func (c *SMPClient) parseServiceMetadata(data []byte) (*ServiceMetadata, error) {
	var sm smp10ServiceMetadata
	if err := xml.Unmarshal(data, &sm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	si := sm.ServiceMetadata.ServiceInformation
	if si == nil {
		si = sm.ServiceInformation
	}
	if si == nil {
		return nil, fmt.Errorf("%w: no ServiceInformation in %s", ErrInvalidMetadata, sm.XMLName.Local)
	}

	result := &ServiceMetadata{
		ParticipantID: si.ParticipantIdentifier.Value,
		DocumentType:  si.DocumentIdentifier.Value,
	}

	for _, p := range si.ProcessList.Processes {
		pm := ProcessMetadata{
			ProcessScheme: p.ProcessIdentifier.Scheme,
			ProcessID:     strings.TrimSpace(p.ProcessIdentifier.Value),
		}
		for _, ep := range p.ServiceEndpointList.Endpoints {
			address := ep.EndpointAddress
			if address == "" {
				address = ep.EndpointURI
			}
			endpoint := Endpoint{
				TransportProfile:    ep.TransportProfile,
				EndpointURL:         strings.TrimSpace(address),
				Certificate:         ep.Certificate,
				TechnicalContactURL: ep.TechnicalContactUrl,
				Description:         ep.ServiceDescription,
				// Unparseable dates are left nil
				ServiceActivationDate: parseDate(ep.ServiceActivationDate),
				ServiceExpirationDate: parseDate(ep.ServiceExpirationDate),
			}
			pm.Endpoints = append(pm.Endpoints, endpoint)
		}
		result.Processes = append(result.Processes, pm)
	}

	return result, nil
}

// SelectEndpoint returns the first endpoint registered for the process with
// the given transport profile, or nil when there is none.
func (m *ServiceMetadata) SelectEndpoint(process identifier.ProcessIdentifier, transportProfile string) *Endpoint {
	for _, p := range m.Processes {
		if p.ProcessID != process.Value() {
			continue
		}
		if p.ProcessScheme != "" && process.Scheme() != "" && p.ProcessScheme != process.Scheme() {
			continue
		}
		for i := range p.Endpoints {
			if p.Endpoints[i].TransportProfile == transportProfile {
				ep := p.Endpoints[i]
				return &ep
			}
		}
	}
	return nil
}

// IsActive reports whether the endpoint is within its activation window at t.
func (e *Endpoint) IsActive(t time.Time) bool {
	if e.ServiceActivationDate != nil && e.ServiceActivationDate.After(t) {
		return false
	}
	if e.ServiceExpirationDate != nil && e.ServiceExpirationDate.Before(t) {
		return false
	}
	return true
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
