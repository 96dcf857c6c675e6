// Package cpuctx models the AArch64 execution context a preemptive
// scheduler saves and restores on every task switch.
package cpuctx

import "sync/atomic"

// Context holds the callee-saved register set (AAPCS64 x19-x30 plus the
// stack pointer) and the exception state needed to resume a task exactly
// where it was preempted.
type Context struct {
	X19, X20, X21, X22, X23, X24 uint64
	X25, X26, X27, X28           uint64
	FP, LR                       uint64 // x29, x30
	SP                           uint64
	ELR                          uint64 // exception link register at save time
	SPSR                         uint64 // saved program status
}

// Switch copies from into to, the same shape as a real context switch
// copying one task's saved registers over the CPU's live set before
// resuming. It never touches caller-saved registers: those belong to the
// compiler's calling convention, not to the scheduler.
func Switch(to *Context, from Context) {
	*to = from
}

// X86_64Context holds the x86_64 callee-saved register set from spec's
// architecture note: rbx, rbp, r12-r15, rsp. No floating point/SIMD
// state is saved, matching Context.
type X86_64Context struct {
	RBX, RBP           uint64
	R12, R13, R14, R15 uint64
	RSP                uint64
}

// SwitchX86_64 is the x86_64 analogue of Switch.
func SwitchX86_64(to *X86_64Context, from X86_64Context) {
	*to = from
}

// Arch identifies which register set a Context variant models.
type Arch string

const (
	ArchAArch64 Arch = "arm64"
	ArchX86_64  Arch = "amd64"
)

// ForGOARCH returns the Arch this package would select for a given
// GOARCH value. A real build would gate Context/X86_64Context behind a
// //go:build arm64 / //go:build amd64 file pair; since the Go toolchain
// is never invoked in this environment, that boundary can't be
// exercised by a test. A GOARCH-driven registry keeps both register
// sets reachable and tested without relying on which file the build
// happened to compile.
func ForGOARCH(goarch string) Arch {
	if goarch == "amd64" {
		return ArchX86_64
	}
	return ArchAArch64
}

var barrierCount atomic.Uint64

// Barrier models a `dsb sy` data synchronization barrier: every prior
// memory access by this core is guaranteed complete before it returns.
// There is no real memory system to order here, so it only records that a
// barrier point was reached; tests assert on the count to verify the
// MMU bring-up sequence calls it where the ISA requires.
func Barrier() {
	barrierCount.Add(1)
}

// ISB models an `isb` instruction synchronization barrier: it flushes the
// pipeline so that subsequent instructions see the effect of a preceding
// system-register write (e.g. SCTLR_EL1, TTBR0_EL1).
func ISB() {
	barrierCount.Add(1)
}

// BarrierCount returns the number of Barrier/ISB calls observed so far.
// Exposed for tests that assert a bring-up sequence issued the expected
// number of ordering points.
func BarrierCount() uint64 {
	return barrierCount.Load()
}
