// Package exceptions models the AArch64 exception vector table: 16
// entries (4 exception levels × 4 exception types), each a handler
// dispatched the way a real 128-byte-stride stub would branch.
package exceptions

import "github.com/behrlich/aetheros/internal/cpuctx"

// Level identifies which of the four vector groups an exception entered
// through.
type Level int

const (
	CurrentSP0 Level = iota
	CurrentSPx
	LowerA64
	LowerA32
)

// Kind identifies the exception type within a Level's group of four.
type Kind int

const (
	Sync Kind = iota
	IRQ
	FIQ
	SError
)

// NumEntries is the fixed 16-entry table size (4 levels × 4 kinds).
const NumEntries = 16

func index(l Level, k Kind) int { return int(l)*4 + int(k) }

// Handler is the Go stand-in for a vector stub's branch target.
type Handler func()

// VectorTable is the 16-entry, 2 KiB-aligned table from spec §4.2. Go
// cannot place real 128-byte-stride assembly stubs, so entries are
// plain closures invoked by Dispatch in the stub's place.
type VectorTable struct {
	entries  [NumEntries]Handler
	vbarSet  bool
	irqCount uint64
	trapCount uint64
}

// New returns a table whose non-IRQ entries all trap (park the CPU) and
// whose Current-SPx IRQ entry is a no-op until SetIRQHandler installs one.
func New() *VectorTable {
	t := &VectorTable{}
	for l := Level(0); l <= LowerA32; l++ {
		for k := Kind(0); k <= SError; k++ {
			t.entries[index(l, k)] = t.trap
		}
	}
	t.entries[index(CurrentSPx, IRQ)] = func() {} // replaced by SetIRQHandler
	return t
}

func (t *VectorTable) trap() {
	t.trapCount++
	Park()
}

// Park models the wfe loop a trap handler enters: it never returns on
// real hardware. The host model just records that the CPU parked.
var parked bool

func Park() { parked = true }

// Parked reports whether a trap has parked the simulated CPU; exposed for
// tests asserting the non-IRQ entries behave as spec requires.
func Parked() bool { return parked }

// ResetParked clears the parked flag, for test isolation between cases
// that each assert on a fresh CPU state.
func ResetParked() { parked = false }

// SetIRQHandler installs the Current-SPx IRQ entry's handler, simulating
// the IRQ trampoline: save x0..x5 (modeled as a Barrier call), invoke irq,
// restore, `eret`.
func (t *VectorTable) SetIRQHandler(irq func()) {
	t.entries[index(CurrentSPx, IRQ)] = func() {
		cpuctx.Barrier() // stand-in for saving x0..x5
		t.irqCount++
		irq()
		cpuctx.Barrier() // stand-in for restoring x0..x5 + eret
	}
}

// Install records the table's installation, simulating `msr vbar_el1`.
func (t *VectorTable) Install() {
	t.vbarSet = true
}

// Installed reports whether Install has been called.
func (t *VectorTable) Installed() bool { return t.vbarSet }

// Dispatch invokes the handler for the given level/kind, the way a real
// CPU core would branch to the matching 128-byte stub on exception entry.
func (t *VectorTable) Dispatch(l Level, k Kind) {
	t.entries[index(l, k)]()
}

// IRQCount returns how many times the IRQ entry has fired.
func (t *VectorTable) IRQCount() uint64 { return t.irqCount }

// TrapCount returns how many times a non-IRQ entry has fired.
func (t *VectorTable) TrapCount() uint64 { return t.trapCount }
