package exceptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNonIRQEntriesTrapAndPark(t *testing.T) {
	ResetParked()
	vt := New()
	vt.Dispatch(CurrentSP0, Sync)
	assert.True(t, Parked())
	assert.Equal(t, uint64(1), vt.TrapCount())
}

func TestIRQEntryInvokesHandlerWithoutTrapping(t *testing.T) {
	ResetParked()
	vt := New()

	called := false
	vt.SetIRQHandler(func() { called = true })
	vt.Dispatch(CurrentSPx, IRQ)

	assert.True(t, called)
	assert.False(t, Parked())
	assert.Equal(t, uint64(1), vt.IRQCount())
}

func TestInstallRecordsVBAR(t *testing.T) {
	vt := New()
	assert.False(t, vt.Installed())
	vt.Install()
	assert.True(t, vt.Installed())
}

func TestAllSixteenEntriesPresent(t *testing.T) {
	vt := New()
	for l := Level(0); l <= LowerA32; l++ {
		for k := Kind(0); k <= SError; k++ {
			assert.NotPanics(t, func() {
				if l == CurrentSPx && k == IRQ {
					return // IRQ entry is exercised by its own test
				}
				vt.Dispatch(l, k)
			})
		}
	}
	assert.Equal(t, 16, NumEntries)
}
