package waypoints

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPath(t *testing.T) {
	src := `x,y,speed
0.0,0.0,1.5
1.0, 0.5

# pit lane
2.0,1.0,2.0,extra
`
	p, err := LoadPath(strings.NewReader(src), ',')
	require.NoError(t, err)
	assert.Equal(t, []orb.Point{{0, 0}, {1, 0.5}, {2, 1}}, p.Points())
}

func TestLoadPath_Delimiter(t *testing.T) {
	p, err := LoadPath(strings.NewReader("1;2\n3;4\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, orb.Point{3, 4}, p.At(1))
}

func TestLoadPath_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := LoadPath(strings.NewReader("\n# nothing\n"), ',')
		assert.ErrorIs(t, err, ErrEmptyPath)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := LoadPath(strings.NewReader("x,y\n"), ',')
		assert.ErrorIs(t, err, ErrEmptyPath)
	})

	t.Run("single column", func(t *testing.T) {
		_, err := LoadPath(strings.NewReader("1,2\n3\n"), ',')
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
	})

	t.Run("bad number after data", func(t *testing.T) {
		_, err := LoadPath(strings.NewReader("1,2\nabc,4\n"), ',')
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid coordinates")
	})
}

func TestLoadPathFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,0\n4,0\n4,3\n"), 0644))

	p, err := LoadPathFile(path, ',')
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
	assert.InDelta(t, 12.0, p.Length(), 1e-9)

	_, err = LoadPathFile(filepath.Join(t.TempDir(), "missing.csv"), ',')
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPath_AtWraps(t *testing.T) {
	p, err := NewPath([]orb.Point{{0, 0}, {1, 0}, {2, 0}})
	require.NoError(t, err)

	assert.Equal(t, orb.Point{0, 0}, p.At(3))
	assert.Equal(t, orb.Point{2, 0}, p.At(-1))
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 0}}, p.Bound())

	_, err = NewPath(nil)
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestPath_IsImmutable(t *testing.T) {
	src := []orb.Point{{0, 0}, {1, 1}}
	p, err := NewPath(src)
	require.NoError(t, err)

	src[0] = orb.Point{9, 9}
	pts := p.Points()
	pts[1] = orb.Point{7, 7}

	assert.Equal(t, orb.Point{0, 0}, p.At(0))
	assert.Equal(t, orb.Point{1, 1}, p.At(1))
}
