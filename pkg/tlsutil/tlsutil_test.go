package tlsutil

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/gaze/pkg/security"
)

func TestDisabledReturnsNil(t *testing.T) {
	cfg, err := LoadClientTLSConfig(security.ClientTLSConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestEnabledDefaults(t *testing.T) {
	cfg, err := LoadClientTLSConfig(security.ClientTLSConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.False(t, cfg.InsecureSkipVerify)
}

func TestMinVersion13(t *testing.T) {
	cfg, err := LoadClientTLSConfig(security.ClientTLSConfig{Enabled: true, MinVersion: "1.3"})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
}

func TestMissingCAFile(t *testing.T) {
	_, err := LoadClientTLSConfig(security.ClientTLSConfig{Enabled: true, CAFile: "/nonexistent/ca.pem"})
	assert.Error(t, err)
}

func TestMissingKeyPair(t *testing.T) {
	_, err := LoadClientTLSConfig(security.ClientTLSConfig{
		Enabled:  true,
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})
	assert.Error(t, err)
}
