package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/gaze/pkg/security"
)

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, int32(0), c.Failures())
}

func TestNewClientOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithName("gaze-test"),
		WithTimeout(time.Second),
		WithReconnect(10, time.Second),
		WithCircuitBreaker(3, 30*time.Second),
		WithHandlerTimeout(5*time.Second),
		WithTLS(security.ClientTLSConfig{Enabled: false}),
	)
	require.NoError(t, err)
	assert.Equal(t, "gaze-test", c.clientName)
	assert.Equal(t, int32(3), c.circuitThreshold)
}

func TestNewClientRejectsInvalidOptions(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithTimeout(0))
	assert.Error(t, err)

	_, err = NewClient("nats://localhost:4222", WithLogger(nil))
	assert.Error(t, err)

	_, err = NewClient("nats://localhost:4222", WithCircuitBreaker(0, time.Second))
	assert.Error(t, err)
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", WithCircuitBreaker(3, time.Minute))
	require.NoError(t, err)

	c.recordFailure()
	c.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, c.Status())

	c.recordFailure()
	assert.Equal(t, StatusCircuitOpen, c.Status())
	assert.Equal(t, int32(3), c.Failures())

	// Connect refuses while the circuit is open
	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestResetCircuit(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", WithCircuitBreaker(1, time.Minute))
	require.NoError(t, err)

	c.recordFailure()
	require.Equal(t, StatusCircuitOpen, c.Status())

	c.resetCircuit()
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, int32(0), c.Failures())
	assert.Equal(t, time.Second, c.backoff.Load().(time.Duration))
}

func TestBackoffDoubling(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", WithCircuitBreaker(1, 4*time.Second))
	require.NoError(t, err)

	c.recordFailure() // opens circuit, backoff 1s -> 2s
	assert.Equal(t, 2*time.Second, c.backoff.Load().(time.Duration))

	c.recordFailure() // still open, 2s -> 4s
	assert.Equal(t, 4*time.Second, c.backoff.Load().(time.Duration))

	c.recordFailure() // capped at maxBackoff
	assert.Equal(t, 4*time.Second, c.backoff.Load().(time.Duration))
}

func TestPublishWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = c.Publish(context.Background(), "some.subject", []byte("data"))
	assert.ErrorIs(t, err, ErrNotConnected)

	err = c.Subscribe(context.Background(), "some.subject", func(context.Context, []byte) {})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))
}

func TestWaitForConnectionTimesOut(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = c.WaitForConnection(ctx)
	assert.Error(t, err)
}
