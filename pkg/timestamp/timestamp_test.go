package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInvalidIsZero(t *testing.T) {
	require.False(t, Invalid().IsValid())
	require.Equal(t, int64(0), Invalid().MicroSecondsSinceEpoch())
}

func TestTotalOrder(t *testing.T) {
	a := FromUnix(100, 0)
	b := FromUnix(100, 1)
	c := FromUnix(101, 0)

	require.True(t, a.Before(b))
	require.True(t, b.Before(c))
	require.True(t, c.After(a))
	require.False(t, a.After(b))
}

func TestAddRoundsToMicroseconds(t *testing.T) {
	base := FromUnix(1000, 0)
	got := base.Add(1.5)
	require.Equal(t, FromUnix(1001, 500000), got)
}

func TestFromTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 123000, time.UTC).Local()
	ts := FromTime(now)
	require.True(t, ts.IsValid())
	require.Equal(t, now.Unix(), ts.SecondsSinceEpoch())
}

func TestNowIsValidAndIncreasing(t *testing.T) {
	a := Now()
	time.Sleep(time.Millisecond)
	b := Now()
	require.True(t, a.Before(b) || a == b)
	require.True(t, a.IsValid())
}
