// Package credentials provides the two ways APNs authorizes a provider:
// mutual-TLS client certificates and signed JWT bearer tokens. A Dispatcher
// holds exactly one Credentials value for its lifetime.
package credentials

import "crypto/tls"

// Credentials is the capability a Dispatcher needs from either
// authentication scheme. It deliberately has no exported struct hierarchy:
// CertificateCredentials and TokenCredentials both satisfy it by
// implementing these two methods directly, not by inheriting from a base
// type.
type Credentials interface {
	// TLSConfig returns the TLS configuration to use when opening the
	// HTTP/2 connection to APNs. TokenCredentials returns a bare config
	// with no client certificate: it authenticates per-request via the
	// Authorization header instead of via the TLS handshake.
	TLSConfig() (*tls.Config, error)

	// AuthorizationHeader returns the value for the "authorization" header
	// for a request to the given topic, or ok=false if no header should be
	// sent (the certificate variant never sends one).
	AuthorizationHeader(topic string) (value string, ok bool, err error)
}
