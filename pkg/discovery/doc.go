// Package discovery resolves the receiving access point of a participant
// from Service Metadata Publisher (SMP) records.
//
// The SMP responsible for a participant is either configured as a fixed
// base URL or located dynamically through BDXL, which publishes DNS U-NAPTR
// records for each registered participant.
//
// # Discovery Process
//
//  1. SMP location: with BDXL the lower-cased participant value is hashed
//     with SHA-256, BASE32 encoded and combined with the identifier scheme
//     and the SML zone to form the DNS query name. The U-NAPTR record with
//     service "Meta:SMP" carries the SMP base URL.
//
//  2. SMP query: the signed service metadata for the participant and
//     document type is fetched from
//     <smp>/<participant URI>/services/<document type URI>.
//
//  3. Endpoint selection: the first endpoint registered for the process
//     under the requested transport profile is returned. A participant the
//     SMP does not know, or metadata without a matching process and profile,
//     resolves to no endpoint rather than an error.
//
// # Usage
//
//	client := discovery.NewDiscoveryClientWithConfig(discovery.DiscoveryConfig{
//	    BDXLConfig: discovery.BDXLClientConfig{
//	        ServiceProviderDomain: "edelivery.tech.ec.europa.eu",
//	        Environment:           discovery.EnvAcceptance,
//	    },
//	})
//	endpoint, err := client.LookupEndpoint(ctx, receiver, docType, process, discovery.TransportAS2V1)
//
// # References
//
//   - OASIS Business Document Metadata Service Location Version 1.0
//   - RFC 4848 (U-NAPTR DNS records)
//   - BusDox Service Metadata Publishing 1.0
package discovery
