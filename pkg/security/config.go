// Package security defines shared TLS configuration types consumed by the
// transport layer.
package security

// Config is the platform-wide security configuration.
type Config struct {
	TLS ClientTLSConfig `json:"tls,omitempty"`
}

// ClientTLSConfig configures TLS for outbound bus connections.
type ClientTLSConfig struct {
	Enabled    bool   `json:"enabled"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	CAFile     string `json:"ca_file,omitempty"`
	ServerName string `json:"server_name,omitempty"`
	MinVersion string `json:"min_version,omitempty"` // "1.2" or "1.3"; default 1.2
	// InsecureSkipVerify disables server certificate verification.
	// Never enable outside local development.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`
}
