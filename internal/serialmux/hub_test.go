package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineHub(t *testing.T) {
	h := newLineHub()
	idA, a := h.subscribe()
	idB, _ := h.subscribe()
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, h.len())

	// Nobody is reading, so delivery drops the line instead of blocking.
	assert.True(t, h.deliver("odom,0,0,0,0,0,1,0,0"))

	h.unsubscribe(idA)
	h.unsubscribe(idA)
	_, ok := <-a
	assert.False(t, ok)
	assert.Equal(t, 1, h.len())

	assert.True(t, h.close())
	assert.False(t, h.close())
	assert.Zero(t, h.len())
	assert.False(t, h.deliver("late"))

	_, c := h.subscribe()
	_, ok = <-c
	assert.False(t, ok)
}

func TestSerialMux_SubscribeAfterClose(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	assert.NoError(t, mux.Close())
	_, ch := mux.Subscribe()
	_, ok := <-ch
	assert.False(t, ok)
}
