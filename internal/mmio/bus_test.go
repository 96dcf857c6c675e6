package mmio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapRejectsOutOfRange(t *testing.T) {
	bus := NewBus(0xFE000000, 0x01000000)
	err := bus.Map(Region{Name: "uart", Base: 0xFF000000, Size: 0x1000})
	require.Error(t, err)
}

func TestMapRejectsOverlap(t *testing.T) {
	bus := NewBus(0xFE000000, 0x01000000)
	require.NoError(t, bus.Map(Region{Name: "uart", Base: 0xFE201000, Size: 0x1000}))
	err := bus.Map(Region{Name: "uart2", Base: 0xFE201800, Size: 0x1000})
	assert.Error(t, err)
}

func TestReadWrite32RoundTrip(t *testing.T) {
	bus := NewBus(0xFE000000, 0x01000000)
	require.NoError(t, bus.Write32(0xFE201000, 0xdeadbeef))

	v, err := bus.Read32(0xFE201000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)
}

func TestReadOutOfBounds(t *testing.T) {
	bus := NewBus(0xFE000000, 0x1000)
	_, err := bus.Read32(0xFFFFFFFF)
	assert.Error(t, err)
}

func TestBulkReadWrite(t *testing.T) {
	bus := NewBus(0xFE000000, 0x1000)
	payload := []byte{1, 2, 3, 4, 5}
	n, err := bus.WriteAt(payload, 0xFE000010)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	out := make([]byte, len(payload))
	n, err = bus.ReadAt(out, 0xFE000010)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, out)
}
