package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapFormatsContext(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "PatternStore", "Update", "compile patterns")
	require.Error(t, err)
	assert.Equal(t, "PatternStore.Update: compile patterns failed: boom", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestClassification(t *testing.T) {
	transient := WrapTransient(stderrors.New("x"), "c", "m", "a")
	invalid := WrapInvalid(stderrors.New("x"), "c", "m", "a")
	fatal := WrapFatal(stderrors.New("x"), "c", "m", "a")

	assert.True(t, IsTransient(transient))
	assert.False(t, IsTransient(invalid))
	assert.True(t, IsInvalid(invalid))
	assert.True(t, IsFatal(fatal))

	assert.Equal(t, ErrorTransient, Classify(transient))
	assert.Equal(t, ErrorInvalid, Classify(invalid))
	assert.Equal(t, ErrorFatal, Classify(fatal))
}

func TestSentinelClassification(t *testing.T) {
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsInvalid(ErrInvalidPattern))
	assert.True(t, IsFatal(ErrInvalidConfig))
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	base := stderrors.New("root cause")
	err := WrapInvalid(base, "Matcher", "Compile", "validate pattern")
	assert.ErrorIs(t, err, base)

	var ce *ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, "Matcher", ce.Component)
	assert.Equal(t, "Compile", ce.Operation)
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
}

func TestRetryConfigBridge(t *testing.T) {
	rc := DefaultRetryConfig()
	cfg := rc.ToRetryConfig()
	assert.Equal(t, rc.MaxRetries+1, cfg.MaxAttempts)
	assert.Equal(t, rc.InitialDelay, cfg.InitialDelay)
	assert.True(t, cfg.AddJitter)
}

func TestShouldRetry(t *testing.T) {
	rc := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2.0}
	transient := WrapTransient(stderrors.New("x"), "c", "m", "a")
	invalid := WrapInvalid(stderrors.New("x"), "c", "m", "a")

	assert.True(t, rc.ShouldRetry(transient, 0))
	assert.False(t, rc.ShouldRetry(transient, 2))
	assert.False(t, rc.ShouldRetry(invalid, 0))
	assert.False(t, rc.ShouldRetry(nil, 0))
}
