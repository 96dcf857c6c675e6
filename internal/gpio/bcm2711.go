// Package gpio implements the BCM2711 GPIO function/pull-configuration
// driver.
package gpio

import "github.com/behrlich/aetheros/internal/mmio"

// Base is the BCM2711 GPIO MMIO base address, per spec §6.
const Base uint64 = 0xFE200000

const (
	offGPFSEL0  = 0x00 // function select, bank 0 covers pins 0-9
	offGPPUD    = 0x94 // pull up/down enable
	offGPPUDCLK0 = 0x98 // pull up/down clock, bank 0 covers pins 0-31
)

// Function is a 3-bit GPIO alternate-function selector.
type Function uint32

const (
	FunctionInput  Function = 0b000
	FunctionOutput Function = 0b001
	FunctionAlt0   Function = 0b100
	FunctionAlt1   Function = 0b101
	FunctionAlt2   Function = 0b110
	FunctionAlt3   Function = 0b111
	FunctionAlt4   Function = 0b011
	FunctionAlt5   Function = 0b010
)

// Pull is the GPIO pull-up/down/none selector.
type Pull uint32

const (
	PullNone Pull = 0b00
	PullDown Pull = 0b01
	PullUp   Pull = 0b10
)

// defaultSpinCycles is the number of spin iterations the BCM2711
// pull-program sequence requires between each GPPUD/GPPUDCLK step.
// WithSpinCycles overrides it so tests can run the sequence
// deterministically without a 150-cycle real-time delay.
const defaultSpinCycles = 150

// GPIO is the BCM2711 GPIO driver.
type GPIO struct {
	bus        *mmio.Bus
	base       uint64
	spinCycles int
}

// New binds a GPIO driver to bus at base, using the real 150-cycle spin
// count from spec §4.10.
func New(bus *mmio.Bus, base uint64) *GPIO {
	return &GPIO{bus: bus, base: base, spinCycles: defaultSpinCycles}
}

// WithSpinCycles overrides the pull-program spin count, for deterministic
// tests.
func (g *GPIO) WithSpinCycles(n int) *GPIO {
	g.spinCycles = n
	return g
}

// SetFunction updates the 3-bit field at GPFSEL[pin/10][(pin%10)*3], per
// spec §4.10.
func (g *GPIO) SetFunction(pin uint32, fn Function) error {
	reg := g.base + offGPFSEL0 + uint64(pin/10)*4
	shift := (pin % 10) * 3

	cur, err := g.bus.Read32(reg)
	if err != nil {
		return err
	}
	cur &^= 0b111 << shift
	cur |= uint32(fn) << shift
	return g.bus.Write32(reg, cur)
}

func (g *GPIO) spin() {
	for i := 0; i < g.spinCycles; i++ {
		// busy-wait, matching the real bring-up sequence's fixed cycle
		// count rather than a wall-clock delay
	}
}

// SetPull follows the BCM2711 pull-program sequence: GPPUD -> 150 spin
// cycles -> GPPUDCLK -> 150 spin cycles -> clear, per spec §4.10.
func (g *GPIO) SetPull(pin uint32, pull Pull) error {
	if err := g.bus.Write32(g.base+offGPPUD, uint32(pull)); err != nil {
		return err
	}
	g.spin()

	bank := pin / 32
	bit := pin % 32
	clkReg := g.base + offGPPUDCLK0 + uint64(bank)*4
	if err := g.bus.Write32(clkReg, 1<<bit); err != nil {
		return err
	}
	g.spin()

	if err := g.bus.Write32(g.base+offGPPUD, 0); err != nil {
		return err
	}
	return g.bus.Write32(clkReg, 0)
}
