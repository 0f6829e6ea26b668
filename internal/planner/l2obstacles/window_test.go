package l2obstacles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowAround(t *testing.T) {
	tests := []struct {
		name                string
		front, halfWidth, n int
		want                Window
	}{
		{"default lidar", 539, 180, 1080, Window{359, 719}},
		{"clamped left", 10, 180, 1080, Window{0, 190}},
		{"clamped right", 1070, 180, 1080, Window{890, 1080}},
		{"short scan", 2, 180, 5, Window{0, 5}},
		{"empty scan", 0, 180, 0, Window{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowAround(tt.front, tt.halfWidth, tt.n))
		})
	}
}

func TestWindow_LenContains(t *testing.T) {
	w := Window{Start: 359, End: 719}
	assert.Equal(t, 360, w.Len())
	assert.True(t, w.Contains(359))
	assert.True(t, w.Contains(718))
	assert.False(t, w.Contains(719))
	assert.False(t, w.Contains(358))
}
