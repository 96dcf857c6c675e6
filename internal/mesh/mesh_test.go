package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRegistersLocalCPU(t *testing.T) {
	m := New()
	assert.Equal(t, 1, m.Discover())
}

func TestRegisterUpToCapacity(t *testing.T) {
	m := New()
	for i := 0; i < MaxDevices-1; i++ {
		assert.True(t, m.Register(Device{ID: DeviceID(i + 1)}))
	}
	assert.False(t, m.Register(Device{ID: 999}))
	assert.Equal(t, MaxDevices, m.Discover())
}

func TestCapabilityScoreFormula(t *testing.T) {
	d := Device{ComputeCenti: 500, AvailableBytes: 8 * 1024 * 1024, LatencyMs: 2}
	assert.Equal(t, int64(500+8-20), d.CapabilityScore())
}

func TestFindBestDevicePicksHighestScore(t *testing.T) {
	m := New()
	m.Register(Device{ID: 1, Capabilities: CapGPU, ComputeCenti: 2000, AvailableBytes: 4 << 20, LatencyMs: 5})
	m.Register(Device{ID: 2, Capabilities: CapNPU, ComputeCenti: 500, AvailableBytes: 64 << 20, LatencyMs: 1})

	id, ok := m.FindBestDevice(0, 0)
	assert.True(t, ok)
	assert.Equal(t, DeviceID(1), id)
}

func TestFindBestDeviceFiltersBelowThresholds(t *testing.T) {
	m := New()
	m.Register(Device{ID: 1, ComputeCenti: 100, AvailableBytes: 1024})

	_, ok := m.FindBestDevice(1<<20, 0)
	assert.False(t, ok)
}

func TestFindBestDeviceNoneMatchReturnsFalse(t *testing.T) {
	m := &Mesh{}
	_, ok := m.FindBestDevice(0, 0)
	assert.False(t, ok)
}

func TestHasCapability(t *testing.T) {
	d := Device{Capabilities: CapCPU | CapLowPower}
	assert.True(t, d.HasCapability(CapCPU))
	assert.True(t, d.HasCapability(CapLowPower))
	assert.False(t, d.HasCapability(CapGPU))
}
