package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParticipantIdentifier(t *testing.T) {
	p, err := NewParticipantIdentifier(SchemeParticipant, " 0088:7315458756324 ")
	require.NoError(t, err)
	assert.Equal(t, SchemeParticipant, p.Scheme())
	assert.Equal(t, "0088:7315458756324", p.Value())
	assert.Equal(t, "iso6523-actorid-upis::0088:7315458756324", p.URIEncoded())
	assert.Equal(t, p.URIEncoded(), p.String())
}

func TestEmptyValueRejected(t *testing.T) {
	_, err := NewParticipantIdentifier(SchemeParticipant, "  ")
	assert.ErrorIs(t, err, ErrEmptyValue)

	_, err = NewDocumentTypeIdentifier(SchemeDocumentType, "")
	assert.ErrorIs(t, err, ErrEmptyValue)

	_, err = NewProcessIdentifier(SchemeProcess, "")
	assert.ErrorIs(t, err, ErrEmptyValue)
}

func TestParseURIEncoded(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantScheme string
		wantValue  string
		wantErr    error
	}{
		{
			name:       "participant",
			uri:        "iso6523-actorid-upis::9915:test",
			wantScheme: "iso6523-actorid-upis",
			wantValue:  "9915:test",
		},
		{
			name:       "document type value containing separator",
			uri:        "busdox-docid-qns::urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1",
			wantScheme: "busdox-docid-qns",
			wantValue:  "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1",
		},
		{
			name:    "missing separator",
			uri:     "iso6523-actorid-upis:9915:test",
			wantErr: ErrInvalidURI,
		},
		{
			name:    "missing scheme",
			uri:     "::9915:test",
			wantErr: ErrInvalidURI,
		},
		{
			name:    "missing value",
			uri:     "iso6523-actorid-upis::",
			wantErr: ErrEmptyValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDocumentTypeIdentifier(tt.uri)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, d.Scheme())
			assert.Equal(t, tt.wantValue, d.Value())
			assert.Equal(t, tt.uri, d.URIEncoded())
		})
	}
}

func TestParseProcessAndParticipant(t *testing.T) {
	proc, err := ParseProcessIdentifier("cenbii-procid-ubl::urn:fdc:peppol.eu:2017:poacc:billing:01:1.0")
	require.NoError(t, err)
	assert.Equal(t, SchemeProcess, proc.Scheme())

	p, err := ParseParticipantIdentifier("iso6523-actorid-upis::0088:ABC")
	require.NoError(t, err)
	assert.Equal(t, "0088:ABC", p.Value())
}

func TestParticipantEqual(t *testing.T) {
	a, _ := NewParticipantIdentifier(SchemeParticipant, "0088:ABC")
	b, _ := NewParticipantIdentifier("ISO6523-ACTORID-UPIS", "0088:abc")
	c, _ := NewParticipantIdentifier(SchemeParticipant, "0088:XYZ")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestURIWithoutScheme(t *testing.T) {
	p, err := NewParticipantIdentifier("", "0088:ABC")
	require.NoError(t, err)
	assert.Equal(t, "0088:ABC", p.URIEncoded())
}
