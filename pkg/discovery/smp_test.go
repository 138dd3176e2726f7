package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
)

const signedMetadataAS2 = `<?xml version="1.0" encoding="UTF-8"?>
<SignedServiceMetadata xmlns="http://busdox.org/serviceMetadata/publishing/1.0/" xmlns:wsa="http://www.w3.org/2005/08/addressing">
  <ServiceMetadata>
    <ServiceInformation>
      <ParticipantIdentifier scheme="iso6523-actorid-upis">0088:7315458756324</ParticipantIdentifier>
      <DocumentIdentifier scheme="busdox-docid-qns">urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##UBL-2.1</DocumentIdentifier>
      <ProcessList>
        <Process>
          <ProcessIdentifier scheme="cenbii-procid-ubl">urn:www.cenbii.eu:profile:bii04:ver1.0</ProcessIdentifier>
          <ServiceEndpointList>
            <Endpoint transportProfile="busdox-transport-as2-ver2p0">
              <wsa:EndpointReference><wsa:Address>https://ap.example.com/as2v2</wsa:Address></wsa:EndpointReference>
              <Certificate>AAAA</Certificate>
            </Endpoint>
            <Endpoint transportProfile="busdox-transport-as2-ver1p0">
              <wsa:EndpointReference><wsa:Address>https://ap.example.com/as2</wsa:Address></wsa:EndpointReference>
              <Certificate>MIICxTCCAa2gAwIBAgI</Certificate>
              <ServiceActivationDate>2024-01-01T00:00:00Z</ServiceActivationDate>
              <ServiceExpirationDate>2030-12-31</ServiceExpirationDate>
              <TechnicalContactUrl>mailto:support@example.com</TechnicalContactUrl>
              <ServiceDescription>Production AS2 endpoint</ServiceDescription>
            </Endpoint>
          </ServiceEndpointList>
        </Process>
      </ProcessList>
    </ServiceInformation>
  </ServiceMetadata>
</SignedServiceMetadata>`

func mustParticipant(t *testing.T, value string) identifier.ParticipantIdentifier {
	t.Helper()
	p, err := identifier.NewParticipantIdentifier(identifier.SchemeParticipant, value)
	require.NoError(t, err)
	return p
}

func mustDocumentType(t *testing.T, value string) identifier.DocumentTypeIdentifier {
	t.Helper()
	d, err := identifier.NewDocumentTypeIdentifier(identifier.SchemeDocumentType, value)
	require.NoError(t, err)
	return d
}

func mustProcess(t *testing.T, value string) identifier.ProcessIdentifier {
	t.Helper()
	p, err := identifier.NewProcessIdentifier(identifier.SchemeProcess, value)
	require.NoError(t, err)
	return p
}

func TestSMPClientConfig(t *testing.T) {
	client := NewSMPClient()
	assert.Equal(t, defaultUserAgent, client.config.UserAgent)
	assert.Equal(t, "application/xml", client.config.AcceptHeader)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)

	custom := NewSMPClientWithConfig(SMPClientConfig{
		HTTPClient:   &http.Client{Timeout: time.Second},
		UserAgent:    "custom-client/2.0",
		AcceptHeader: "text/xml",
	})
	assert.Equal(t, "custom-client/2.0", custom.config.UserAgent)
	assert.Equal(t, "text/xml", custom.config.AcceptHeader)
	assert.Equal(t, time.Second, custom.httpClient.Timeout)
}

func TestSMPFormatURLs(t *testing.T) {
	client := NewSMPClient()
	participant := mustParticipant(t, "0088:1234567890")
	docType := mustDocumentType(t, "urn:example::Invoice##1")

	for _, base := range []string{"https://smp.example.com", "https://smp.example.com/"} {
		assert.Equal(t,
			"https://smp.example.com/iso6523-actorid-upis::0088:1234567890",
			client.formatServiceGroupURL(base, participant))
		assert.Equal(t,
			"https://smp.example.com/iso6523-actorid-upis::0088:1234567890/services/busdox-docid-qns::urn:example::Invoice%23%231",
			client.formatServiceMetadataURL(base, participant, docType))
	}
}

func TestParseServiceGroup(t *testing.T) {
	client := NewSMPClient()

	body := `<?xml version="1.0" encoding="UTF-8"?>
<ServiceGroup xmlns="http://busdox.org/serviceMetadata/publishing/1.0/">
  <ParticipantIdentifier scheme="iso6523-actorid-upis">0088:7315458756324</ParticipantIdentifier>
  <ServiceMetadataReferenceCollection>
    <ServiceMetadataReference href="https://smp.example.com/iso6523-actorid-upis%3A%3A0088%3A7315458756324/services/a"/>
    <ServiceMetadataReference href="https://smp.example.com/iso6523-actorid-upis%3A%3A0088%3A7315458756324/services/b"/>
  </ServiceMetadataReferenceCollection>
</ServiceGroup>`

	sg, err := client.parseServiceGroup([]byte(body), "iso6523-actorid-upis::0088:7315458756324")
	require.NoError(t, err)
	assert.Equal(t, "iso6523-actorid-upis::0088:7315458756324", sg.ParticipantID)
	assert.Len(t, sg.ServiceReferences, 2)
}

func TestParseServiceMetadata(t *testing.T) {
	client := NewSMPClient()

	sm, err := client.parseServiceMetadata([]byte(signedMetadataAS2))
	require.NoError(t, err)

	assert.Equal(t, "0088:7315458756324", sm.ParticipantID)
	assert.Equal(t, "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##UBL-2.1", sm.DocumentType)
	require.Len(t, sm.Processes, 1)

	process := sm.Processes[0]
	assert.Equal(t, "cenbii-procid-ubl", process.ProcessScheme)
	assert.Equal(t, "urn:www.cenbii.eu:profile:bii04:ver1.0", process.ProcessID)
	require.Len(t, process.Endpoints, 2)

	endpoint := process.Endpoints[1]
	assert.Equal(t, TransportAS2V1, endpoint.TransportProfile)
	assert.Equal(t, "https://ap.example.com/as2", endpoint.EndpointURL)
	assert.Equal(t, "MIICxTCCAa2gAwIBAgI", endpoint.Certificate)
	assert.Equal(t, "mailto:support@example.com", endpoint.TechnicalContactURL)
	require.NotNil(t, endpoint.ServiceActivationDate)
	require.NotNil(t, endpoint.ServiceExpirationDate)
	assert.Equal(t, 2030, endpoint.ServiceExpirationDate.Year())
}

func TestParseServiceMetadataOASISEndpointURI(t *testing.T) {
	client := NewSMPClient()

	body := `<ServiceMetadata>
  <ServiceInformation>
    <ProcessList><Process>
      <ProcessIdentifier>urn:example:process</ProcessIdentifier>
      <ServiceEndpointList>
        <Endpoint transportProfile="busdox-transport-as2-ver1p0"><EndpointURI>https://ap.example.com/uri</EndpointURI></Endpoint>
      </ServiceEndpointList>
    </Process></ProcessList>
  </ServiceInformation>
</ServiceMetadata>`

	sm, err := client.parseServiceMetadata([]byte(body))
	require.NoError(t, err)
	require.Len(t, sm.Processes, 1)
	assert.Equal(t, "https://ap.example.com/uri", sm.Processes[0].Endpoints[0].EndpointURL)
}

func TestParseServiceMetadataInvalid(t *testing.T) {
	client := NewSMPClient()

	_, err := client.parseServiceMetadata([]byte("<<<"))
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	_, err = client.parseServiceMetadata([]byte("<Redirect/>"))
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestSelectEndpoint(t *testing.T) {
	sm, err := NewSMPClient().parseServiceMetadata([]byte(signedMetadataAS2))
	require.NoError(t, err)

	process := mustProcess(t, "urn:www.cenbii.eu:profile:bii04:ver1.0")

	ep := sm.SelectEndpoint(process, TransportAS2V1)
	require.NotNil(t, ep)
	assert.Equal(t, "https://ap.example.com/as2", ep.EndpointURL)

	ep = sm.SelectEndpoint(process, TransportAS2V2)
	require.NotNil(t, ep)
	assert.Equal(t, "https://ap.example.com/as2v2", ep.EndpointURL)

	assert.Nil(t, sm.SelectEndpoint(process, "bdxr-transport-ebms3-as4-v2p0"))
	assert.Nil(t, sm.SelectEndpoint(mustProcess(t, "urn:other"), TransportAS2V1))

	otherScheme, err := identifier.NewProcessIdentifier("other-scheme", "urn:www.cenbii.eu:profile:bii04:ver1.0")
	require.NoError(t, err)
	assert.Nil(t, sm.SelectEndpoint(otherScheme, TransportAS2V1))
}

func TestEndpointIsActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		endpoint Endpoint
		want     bool
	}{
		{"no dates", Endpoint{}, true},
		{"within window", Endpoint{ServiceActivationDate: &past, ServiceExpirationDate: &future}, true},
		{"expired", Endpoint{ServiceActivationDate: &past, ServiceExpirationDate: &past}, false},
		{"not yet active", Endpoint{ServiceActivationDate: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.endpoint.IsActive(now))
		})
	}
}

func TestSMPClientHTTPRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "/iso6523-actorid-upis::0088:123", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<?xml version="1.0"?><ServiceGroup><ParticipantIdentifier>test</ParticipantIdentifier><ServiceMetadataReferenceCollection></ServiceMetadataReferenceCollection></ServiceGroup>`))
	}))
	defer server.Close()

	sg, err := NewSMPClient().GetServiceGroup(context.Background(), server.URL, mustParticipant(t, "0088:123"))
	require.NoError(t, err)
	assert.NotNil(t, sg)
}

func TestSMPClientErrors(t *testing.T) {
	status := http.StatusNotFound
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	client := NewSMPClient()
	participant := mustParticipant(t, "0088:unknown")

	_, err := client.GetServiceGroup(context.Background(), server.URL, participant)
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	status = http.StatusInternalServerError
	_, err = client.GetServiceMetadata(context.Background(), server.URL, participant, mustDocumentType(t, "doc"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrParticipantNotFound)
	assert.Contains(t, err.Error(), "500")
}
