package l1scan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardClearance(t *testing.T) {
	t.Run("flat scan", func(t *testing.T) {
		c, ok := ForwardClearance(flatScan(1080, 10), 40)
		assert.True(t, ok)
		assert.InDelta(t, 10.0, c, 1e-12)
	})

	t.Run("mean over the window only", func(t *testing.T) {
		s := flatScan(1080, 10)
		front := s.FrontIndex()
		for i := front - 40; i <= front+40; i++ {
			s.Ranges[i] = 2
		}
		c, ok := ForwardClearance(s, 40)
		assert.True(t, ok)
		assert.InDelta(t, 2.0, c, 1e-12)
	})

	t.Run("unusable samples are skipped", func(t *testing.T) {
		s := flatScan(9, 4)
		s.Ranges[4] = math.NaN()
		s.Ranges[3] = math.Inf(1)
		c, ok := ForwardClearance(s, 2)
		assert.True(t, ok)
		assert.InDelta(t, 4.0, c, 1e-12)
	})

	t.Run("no usable sample", func(t *testing.T) {
		s := flatScan(9, math.NaN())
		_, ok := ForwardClearance(s, 2)
		assert.False(t, ok)
	})

	t.Run("window clamps to scan", func(t *testing.T) {
		c, ok := ForwardClearance(flatScan(5, 3), 40)
		assert.True(t, ok)
		assert.InDelta(t, 3.0, c, 1e-12)
	})

	t.Run("empty scan", func(t *testing.T) {
		_, ok := ForwardClearance(RangeScan{}, 40)
		assert.False(t, ok)
	})
}
