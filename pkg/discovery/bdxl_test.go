package discovery

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNS serves the given answer records for every NAPTR question and
// returns the server address. A nil answer produces NXDOMAIN.
func startDNS(t *testing.T, answer []string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		if answer == nil {
			m.Rcode = dns.RcodeNameError
		}
		for _, s := range answer {
			rr, err := dns.NewRR(r.Question[0].Name + " 60 IN NAPTR " + s)
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestHashParticipant(t *testing.T) {
	hash := hashParticipant("0088:7315458756324")
	assert.Len(t, hash, 52)
	assert.False(t, strings.HasSuffix(hash, "="))
	assert.Equal(t, hash, hashParticipant("0088:7315458756324"))
	assert.Equal(t, hashParticipant("9915:abc"), hashParticipant("9915:ABC"), "hashing is case-insensitive")
	assert.NotEqual(t, hash, hashParticipant("0088:other"))
}

func TestFormatQueryDomain(t *testing.T) {
	participant := mustParticipant(t, "0088:123")
	hash := hashParticipant("0088:123")

	tests := []struct {
		name string
		env  Environment
		want string
	}{
		{"production", EnvProduction, hash + ".iso6523-actorid-upis.sml.example.com"},
		{"default is production", "", hash + ".iso6523-actorid-upis.sml.example.com"},
		{"acceptance", EnvAcceptance, hash + ".iso6523-actorid-upis.acceptance.sml.example.com"},
		{"test", EnvTest, hash + ".iso6523-actorid-upis.test.sml.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewBDXLClientWithConfig(BDXLClientConfig{
				ServiceProviderDomain: "sml.example.com.",
				Environment:           tt.env,
			})
			assert.Equal(t, tt.want, client.formatQueryDomain(participant))
		})
	}
}

func TestExtractURLFromRegexp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"https", "!.*!https://smp.example.com/!", "https://smp.example.com/", false},
		{"http with path", "!^.*$!http://smp.example.com/smp!", "http://smp.example.com/smp", false},
		{"empty", "", "", true},
		{"no separators", "https://smp.example.com", "", true},
		{"empty replacement", "!.*!!", "", true},
		{"ftp scheme", "!.*!ftp://smp.example.com/!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractURLFromRegexp(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNAPTRRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectBestRecord(t *testing.T) {
	mk := func(order, pref uint16, flags, service, re string) *dns.NAPTR {
		return &dns.NAPTR{Order: order, Preference: pref, Flags: flags, Service: service, Regexp: re}
	}

	got, err := selectBestRecord([]*dns.NAPTR{
		mk(100, 20, "U", "Meta:SMP", "!.*!https://second.example.com/!"),
		mk(100, 10, "U", "Meta:SMP", "!.*!https://first.example.com/!"),
		mk(10, 10, "S", "Meta:SMP", "!.*!https://wrong-flag.example.com/!"),
		mk(10, 10, "U", "Meta:Other", "!.*!https://wrong-service.example.com/!"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://first.example.com/", got)

	_, err = selectBestRecord([]*dns.NAPTR{mk(1, 1, "U", "Meta:Other", "!.*!https://x/!")})
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestDiscoverSMP(t *testing.T) {
	addr := startDNS(t, []string{
		`100 10 "U" "Meta:SMP" "!.*!https://smp.example.com/!" .`,
	})

	client := NewBDXLClientWithConfig(BDXLClientConfig{
		ServiceProviderDomain: "sml.example.com",
		DNSServer:             addr,
	})

	smpURL, err := client.DiscoverSMP(context.Background(), mustParticipant(t, "0088:123"))
	require.NoError(t, err)
	assert.Equal(t, "https://smp.example.com/", smpURL)
}

func TestDiscoverSMPNotFound(t *testing.T) {
	client := NewBDXLClientWithConfig(BDXLClientConfig{
		ServiceProviderDomain: "sml.example.com",
		DNSServer:             startDNS(t, nil),
	})
	_, err := client.DiscoverSMP(context.Background(), mustParticipant(t, "0088:123"))
	assert.ErrorIs(t, err, ErrNoRecordsFound)

	client = NewBDXLClientWithConfig(BDXLClientConfig{
		ServiceProviderDomain: "sml.example.com",
		DNSServer:             startDNS(t, []string{}),
	})
	_, err = client.DiscoverSMP(context.Background(), mustParticipant(t, "0088:123"))
	assert.ErrorIs(t, err, ErrNoRecordsFound)
}
