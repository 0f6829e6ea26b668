package waypoints

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLapTimer(t *testing.T) {
	l := NewLapTimer()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	_, _, ok := l.Observe(t0, 0.5, true)
	assert.False(t, ok, "wrap before the timer arms is not a lap")
	assert.False(t, l.Started())

	_, _, ok = l.Observe(t0, 1.0, false)
	assert.False(t, l.Started(), "arming needs speed strictly above the threshold")

	l.Observe(t0, 2.0, false)
	assert.True(t, l.Started())

	_, _, ok = l.Observe(t0.Add(10*time.Second), 5, false)
	assert.False(t, ok)

	lap, d, ok := l.Observe(t0.Add(30*time.Second), 5, true)
	assert.True(t, ok)
	assert.Equal(t, 1, lap)
	assert.Equal(t, 30*time.Second, d)

	lap, d, ok = l.Observe(t0.Add(55*time.Second), 5, true)
	assert.True(t, ok)
	assert.Equal(t, 2, lap)
	assert.Equal(t, 25*time.Second, d)
	assert.Equal(t, 2, l.Laps())
}
