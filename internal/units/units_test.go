package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		unit string
		want float64
	}{
		{MPS, 10},
		{MPH, 22.3694},
		{KMPH, 36},
		{KPH, 36},
		{"furlongs", 10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ConvertSpeed(10, tt.unit), 1e-9, tt.unit)
	}
}

func TestConvertSpeeds(t *testing.T) {
	v := []float64{0, 1, 2}
	out := ConvertSpeeds(v, KPH)
	assert.InDeltaSlice(t, []float64{0, 3.6, 7.2}, out, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 3.6, 7.2}, v, 1e-12)
}

func TestParse(t *testing.T) {
	u, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, MPS, u)

	u, err = Parse(" KPH ")
	require.NoError(t, err)
	assert.Equal(t, KPH, u)

	_, err = Parse("knots")
	assert.ErrorContains(t, err, "mps, mph, kmph, kph")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "m/s", Label(MPS))
	assert.Equal(t, "mph", Label(MPH))
	assert.Equal(t, "km/h", Label(KMPH))
	assert.True(t, IsValid(KPH))
	assert.False(t, IsValid("m/s"))
}
