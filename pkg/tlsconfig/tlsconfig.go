// Package tlsconfig builds the TLS client configurations used for https
// targets and CONNECT tunnels.
package tlsconfig

import "crypto/tls"

// Protocol version identifiers.
const (
	VersionTLS10 uint16 = tls.VersionTLS10
	VersionTLS11 uint16 = tls.VersionTLS11
	VersionTLS12 uint16 = tls.VersionTLS12
	VersionTLS13 uint16 = tls.VersionTLS13
)

// VersionProfile is a pre-configured min/max protocol version range.
type VersionProfile struct {
	Min uint16
	Max uint16
}

var (
	// ProfileModern allows TLS 1.3 only.
	ProfileModern = VersionProfile{Min: VersionTLS13, Max: VersionTLS13}

	// ProfileSecure allows TLS 1.2 and 1.3. This is the default.
	ProfileSecure = VersionProfile{Min: VersionTLS12, Max: VersionTLS13}

	// ProfileCompatible allows TLS 1.0 through 1.3 for load tests against
	// legacy servers.
	ProfileCompatible = VersionProfile{Min: VersionTLS10, Max: VersionTLS13}
)

// VersionName returns a human-readable name for a protocol version.
func VersionName(version uint16) string {
	switch version {
	case VersionTLS10:
		return "TLS 1.0"
	case VersionTLS11:
		return "TLS 1.1"
	case VersionTLS12:
		return "TLS 1.2"
	case VersionTLS13:
		return "TLS 1.3"
	default:
		return "Unknown"
	}
}

// Options controls how New builds a configuration.
type Options struct {
	// Profile selects the protocol version range. The zero value falls back
	// to ProfileSecure.
	Profile VersionProfile

	// ServerName is the SNI name and certificate verification target.
	ServerName string

	// InsecureSkipVerify disables certificate chain and host name checks.
	// Load targets frequently run with self-signed certificates.
	InsecureSkipVerify bool
}

// New builds a client TLS configuration from the options.
func New(opts Options) *tls.Config {
	profile := opts.Profile
	if profile.Min == 0 && profile.Max == 0 {
		profile = ProfileSecure
	}
	return &tls.Config{
		MinVersion:         profile.Min,
		MaxVersion:         profile.Max,
		ServerName:         opts.ServerName,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}
}

// WithServerName returns a copy of the configuration with the SNI name set.
// A nil base uses the default secure profile.
func WithServerName(base *tls.Config, serverName string) *tls.Config {
	if base == nil {
		return New(Options{ServerName: serverName})
	}
	clone := base.Clone()
	if clone.ServerName == "" {
		clone.ServerName = serverName
	}
	return clone
}
