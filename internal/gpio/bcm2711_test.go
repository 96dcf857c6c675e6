package gpio

import (
	"testing"

	"github.com/behrlich/aetheros/internal/mmio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGPIO(t *testing.T) (*GPIO, *mmio.Bus) {
	t.Helper()
	bus := mmio.NewBus(Base, 0x1000)
	require.NoError(t, bus.Map(mmio.Region{Name: "gpio", Base: Base, Size: 0x1000}))
	return New(bus, Base).WithSpinCycles(1), bus
}

func TestSetFunctionUpdatesCorrectField(t *testing.T) {
	g, bus := newTestGPIO(t)

	require.NoError(t, g.SetFunction(14, FunctionAlt0)) // pin 14: GPFSEL1, shift 12
	reg, err := bus.Read32(Base + offGPFSEL0 + 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(FunctionAlt0)<<12, reg)
}

func TestSetFunctionPreservesOtherPinsInSameRegister(t *testing.T) {
	g, bus := newTestGPIO(t)

	require.NoError(t, g.SetFunction(0, FunctionOutput))
	require.NoError(t, g.SetFunction(1, FunctionInput))

	reg, err := bus.Read32(Base + offGPFSEL0)
	require.NoError(t, err)
	assert.Equal(t, uint32(FunctionOutput), reg&0b111)
	assert.Equal(t, uint32(FunctionInput), (reg>>3)&0b111)
}

func TestSetPullSequenceClearsAtEnd(t *testing.T) {
	g, bus := newTestGPIO(t)

	require.NoError(t, g.SetPull(14, PullUp))

	pud, err := bus.Read32(Base + offGPPUD)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), pud) // cleared at the end of the sequence

	clk, err := bus.Read32(Base + offGPPUDCLK0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), clk) // clock also cleared
}
