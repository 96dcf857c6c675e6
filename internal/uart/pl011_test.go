package uart

import (
	"testing"

	"github.com/behrlich/aetheros/internal/mmio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *mmio.Bus {
	t.Helper()
	bus := mmio.NewBus(Base, 0x1000)
	require.NoError(t, bus.Map(mmio.Region{Name: "uart", Base: Base, Size: 0x1000}))
	return bus
}

func TestInitEnablesUARTTXRX(t *testing.T) {
	bus := newTestBus(t)
	u := New(bus, Base)
	require.NoError(t, u.Init(115200))

	cr, err := bus.Read32(Base + offCR)
	require.NoError(t, err)
	assert.Equal(t, uint32(crUARTEN|crTXE|crRXE), cr)
}

func TestInitSetsBaudDivisors(t *testing.T) {
	bus := newTestBus(t)
	u := New(bus, Base)
	require.NoError(t, u.Init(115200))

	ibrd, _ := bus.Read32(Base + offIBRD)
	fbrd, _ := bus.Read32(Base + offFBRD)
	wantIBRD, wantFBRD := baudDivisors(ClockHz, 115200)
	assert.Equal(t, wantIBRD, ibrd)
	assert.Equal(t, wantFBRD, fbrd)
}

func TestWriteExpandsNewline(t *testing.T) {
	bus := newTestBus(t)
	u := New(bus, Base)
	require.NoError(t, u.Init(115200))

	n, err := u.Write([]byte("hi\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Last byte written to DR should be '\n' (the final putChar call).
	dr, err := bus.Read32(Base + offDR)
	require.NoError(t, err)
	assert.Equal(t, uint32('\n'), dr)
}

func TestBaudDivisorsKnownValue(t *testing.T) {
	ibrd, fbrd := baudDivisors(48_000_000, 115200)
	assert.Equal(t, uint32(26), ibrd)
	assert.Equal(t, uint32(2), fbrd)
}
