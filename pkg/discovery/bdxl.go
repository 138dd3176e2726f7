package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/miekg/dns"

	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
)

// BDXL errors
var (
	// ErrNoRecordsFound is returned when no U-NAPTR records are found for the participant
	ErrNoRecordsFound = errors.New("no BDXL records found for participant")
	// ErrServiceNotFound is returned when no NAPTR record advertises an SMP
	ErrServiceNotFound = errors.New("no matching service found in BDXL records")
	// ErrInvalidNAPTRRecord is returned when a NAPTR record has invalid format
	ErrInvalidNAPTRRecord = errors.New("invalid NAPTR record format")
)

// ServiceTypeSMP is the U-NAPTR service tag advertising an SMP
const ServiceTypeSMP = "Meta:SMP"

// Environment represents the BDXL environment
type Environment string

const (
	// EnvProduction is the production environment
	EnvProduction Environment = "production"
	// EnvAcceptance is the acceptance/test environment
	EnvAcceptance Environment = "acceptance"
	// EnvTest is the test environment
	EnvTest Environment = "test"
)

const resolvConf = "/etc/resolv.conf"

// BDXLClientConfig contains configuration for BDXL client
type BDXLClientConfig struct {
	// ServiceProviderDomain is the SML zone, e.g. "edelivery.tech.ec.europa.eu"
	ServiceProviderDomain string

	// Environment specifies the environment (production, acceptance, test)
	// For non-production environments, a label is added to the DNS query
	Environment Environment

	// DNSServer is the DNS server to use for lookups (optional)
	// Format: "ip:port" (e.g., "8.8.8.8:53")
	// If empty, the first resolver from /etc/resolv.conf is used
	DNSServer string
}

// BDXLClient locates a participant's SMP through DNS U-NAPTR records
type BDXLClient struct {
	config    BDXLClientConfig
	dnsClient *dns.Client
}

// NewBDXLClient creates a new BDXL client for the given SML zone
func NewBDXLClient(serviceProviderDomain string) *BDXLClient {
	return NewBDXLClientWithConfig(BDXLClientConfig{ServiceProviderDomain: serviceProviderDomain})
}

// NewBDXLClientWithConfig creates a new BDXL client with custom configuration
func NewBDXLClientWithConfig(config BDXLClientConfig) *BDXLClient {
	if config.Environment == "" {
		config.Environment = EnvProduction
	}
	return &BDXLClient{
		config:    config,
		dnsClient: new(dns.Client),
	}
}

// DiscoverSMP resolves the SMP base URL for a participant.
func (c *BDXLClient) DiscoverSMP(ctx context.Context, participant identifier.ParticipantIdentifier) (string, error) {
	queryDomain := c.formatQueryDomain(participant)
	return c.lookupNAPTR(ctx, queryDomain)
}

// hashParticipant returns the BASE32 encoded SHA-256 hash of the lower-cased
// participant value, padding removed.
func hashParticipant(value string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(value)))
	return strings.TrimRight(base32.StdEncoding.EncodeToString(hash[:]), "=")
}

// formatQueryDomain constructs <hash>.<scheme>.[<env>.]<zone>
func (c *BDXLClient) formatQueryDomain(participant identifier.ParticipantIdentifier) string {
	labels := []string{hashParticipant(participant.Value())}
	if participant.Scheme() != "" {
		labels = append(labels, participant.Scheme())
	}
	if c.config.Environment != EnvProduction {
		labels = append(labels, string(c.config.Environment))
	}
	labels = append(labels, strings.TrimSuffix(c.config.ServiceProviderDomain, "."))
	return strings.Join(labels, ".")
}

// lookupNAPTR performs the DNS U-NAPTR lookup and extracts the SMP URL.
func (c *BDXLClient) lookupNAPTR(ctx context.Context, queryDomain string) (string, error) {
	dnsServer := c.config.DNSServer
	if dnsServer == "" {
		config, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return "", fmt.Errorf("failed to read DNS config: %w", err)
		}
		if len(config.Servers) == 0 {
			return "", errors.New("no DNS servers configured")
		}
		dnsServer = config.Servers[0] + ":" + config.Port
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(queryDomain), dns.TypeNAPTR)
	msg.RecursionDesired = true

	resp, _, err := c.dnsClient.ExchangeContext(ctx, msg, dnsServer)
	if err != nil {
		return "", fmt.Errorf("DNS lookup failed for %s: %w", queryDomain, err)
	}

	if resp.Rcode == dns.RcodeNameError {
		return "", fmt.Errorf("%w: %s", ErrNoRecordsFound, queryDomain)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("DNS lookup failed for %s: rcode=%s", queryDomain, dns.RcodeToString[resp.Rcode])
	}

	var records []*dns.NAPTR
	for _, rr := range resp.Answer {
		if naptr, ok := rr.(*dns.NAPTR); ok {
			records = append(records, naptr)
		}
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoRecordsFound, queryDomain)
	}

	return selectBestRecord(records)
}

// selectBestRecord picks the U-NAPTR SMP record with the lowest order and
// preference.
func selectBestRecord(records []*dns.NAPTR) (string, error) {
	var best *dns.NAPTR
	for _, record := range records {
		if !strings.EqualFold(record.Flags, "U") {
			continue
		}
		if !strings.EqualFold(record.Service, ServiceTypeSMP) {
			continue
		}
		if best == nil ||
			record.Order < best.Order ||
			(record.Order == best.Order && record.Preference < best.Preference) {
			best = record
		}
	}

	if best == nil {
		return "", ErrServiceNotFound
	}

	return extractURLFromRegexp(best.Regexp)
}

// extractURLFromRegexp extracts the URL from a NAPTR regexp field.
// NAPTR regexp format: "!<pattern>!<replacement>!"
func extractURLFromRegexp(regexpField string) (string, error) {
	if regexpField == "" {
		return "", ErrInvalidNAPTRRecord
	}

	parts := strings.Split(regexpField, "!")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: invalid regexp format: %s", ErrInvalidNAPTRRecord, regexpField)
	}

	replacement := parts[2]
	if replacement == "" {
		return "", fmt.Errorf("%w: empty URL in regexp: %s", ErrInvalidNAPTRRecord, regexpField)
	}

	parsedURL, err := url.Parse(replacement)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNAPTRRecord, err)
	}
	if parsedURL.Scheme != "https" && parsedURL.Scheme != "http" {
		return "", fmt.Errorf("%w: unsupported URL scheme %q", ErrInvalidNAPTRRecord, parsedURL.Scheme)
	}

	return replacement, nil
}
