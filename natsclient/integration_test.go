package natsclient

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	server, err := StartTestServer(ctx)
	require.NoError(t, err)
	defer func() { _ = server.Terminate(ctx) }()

	client, err := NewClient(server.URL, WithName("integration-test"))
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	defer func() { _ = client.Close(ctx) }()

	var received atomic.Int32
	require.NoError(t, client.Subscribe(ctx, "test.subject", func(_ context.Context, data []byte) {
		assert.Equal(t, []byte("hello"), data)
		received.Add(1)
	}))

	require.NoError(t, client.Publish(ctx, "test.subject", []byte("hello")))
	require.NoError(t, client.Flush())

	assert.Eventually(t, func() bool {
		return received.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	rtt, err := client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}
