package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	ms := FromTime(now)
	back := ToTime(ms)
	assert.True(t, now.Equal(back), "expected %v, got %v", now, back)
}

func TestZeroTime(t *testing.T) {
	assert.Equal(t, int64(0), FromTime(time.Time{}))
	assert.True(t, ToTime(0).IsZero())
	assert.Equal(t, int64(0), UnixSeconds(time.Time{}))
}

func TestNowIsMilliseconds(t *testing.T) {
	before := time.Now().UnixMilli()
	got := Now()
	after := time.Now().UnixMilli()
	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}

func TestUnixSeconds(t *testing.T) {
	ref := time.Unix(1700000000, 999_000_000)
	assert.Equal(t, int64(1700000000), UnixSeconds(ref))
}
