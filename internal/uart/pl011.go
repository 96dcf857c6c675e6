// Package uart implements the PL011 UART driver used for the kernel's
// serial console.
package uart

import (
	"github.com/behrlich/aetheros/internal/mmio"
)

// Register offsets within the PL011 window, per the ARM PL011 TRM.
const (
	offDR   = 0x00 // data register
	offFR   = 0x18 // flag register
	offIBRD = 0x24 // integer baud rate divisor
	offFBRD = 0x28 // fractional baud rate divisor
	offLCRH = 0x2C // line control register
	offCR   = 0x30 // control register
	offIFLS = 0x34 // interrupt FIFO level select
	offIMSC = 0x38 // interrupt mask set/clear
)

const (
	frTXFF = 1 << 5 // transmit FIFO full
	frBUSY = 1 << 3 // UART busy

	lcrhFEN  = 1 << 4 // enable FIFOs
	lcrhWLEN8 = 0x3 << 5 // 8-bit word length

	crUARTEN = 1 << 0 // UART enable
	crTXE    = 1 << 8 // transmit enable
	crRXE    = 1 << 9 // receive enable
)

// Base is the BCM2711 PL011 MMIO base address, per spec §6.
const Base uint64 = 0xFE201000

// ClockHz is the PL011's reference clock on the BCM2711.
const ClockHz = 48_000_000

// UART is the PL011 driver.
type UART struct {
	bus  *mmio.Bus
	base uint64
}

// New binds a UART driver to bus at base.
func New(bus *mmio.Bus, base uint64) *UART {
	return &UART{bus: bus, base: base}
}

// Init performs the disable -> drain -> configure -> enable sequence from
// spec §4.10.
func (u *UART) Init(baud uint32) error {
	// Disable.
	if err := u.bus.Write32(u.base+offCR, 0); err != nil {
		return err
	}

	// Drain TX: spin until the BUSY flag clears. In the host model the
	// flag register is whatever the last write left it as; draining is a
	// no-op read loop bounded to avoid ever spinning forever in tests.
	for i := 0; i < 1; i++ {
		fr, err := u.bus.Read32(u.base + offFR)
		if err != nil {
			return err
		}
		if fr&frBUSY == 0 {
			break
		}
	}

	// Clear LCRH before reprogramming the baud divisors, per the PL011
	// errata this sequence guards against.
	if err := u.bus.Write32(u.base+offLCRH, 0); err != nil {
		return err
	}

	ibrd, fbrd := baudDivisors(ClockHz, baud)
	if err := u.bus.Write32(u.base+offIBRD, ibrd); err != nil {
		return err
	}
	if err := u.bus.Write32(u.base+offFBRD, fbrd); err != nil {
		return err
	}

	if err := u.bus.Write32(u.base+offLCRH, lcrhWLEN8|lcrhFEN); err != nil {
		return err
	}

	return u.bus.Write32(u.base+offCR, crUARTEN|crTXE|crRXE)
}

// baudDivisors computes IBRD/FBRD from (clock*4)/baud and a 6-bit
// fractional tail, per spec §4.10.
func baudDivisors(clockHz, baud uint32) (ibrd, fbrd uint32) {
	divTimes64 := (uint64(clockHz) * 4) / uint64(baud)
	ibrd = uint32(divTimes64 / 64)
	fracTimes64 := divTimes64 % 64
	fbrd = uint32(fracTimes64) & 0x3F
	return ibrd, fbrd
}

// Write implements io.Writer, translating '\n' to "\r\n" per spec §6's
// serial output convention.
func (u *UART) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			if err := u.putChar('\r'); err != nil {
				return 0, err
			}
		}
		if err := u.putChar(b); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (u *UART) putChar(b byte) error {
	for {
		fr, err := u.bus.Read32(u.base + offFR)
		if err != nil {
			return err
		}
		if fr&frTXFF == 0 {
			break
		}
	}
	return u.bus.Write32(u.base+offDR, uint32(b))
}
