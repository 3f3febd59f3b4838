package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystemReturnsUTC(t *testing.T) {
	now := System{}.Now()
	require.Equal(t, time.UTC, now.Location())
	require.Zero(t, now.Nanosecond()%int(Precision))
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c := Fixed(at)
	require.True(t, c.Now().Equal(at))
	require.True(t, c.Now().Equal(c.Now()))
}

func TestManualClockNeverGoesBackwards(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewManual(start)

	require.True(t, c.Advance(time.Minute).Equal(start.Add(time.Minute)))
	c.Advance(-time.Hour)
	require.True(t, c.Now().Equal(start.Add(time.Minute)))

	c.Set(start)
	require.True(t, c.Now().Equal(start.Add(time.Minute)))
	c.Set(start.Add(time.Hour))
	require.True(t, c.Now().Equal(start.Add(time.Hour)))
}
