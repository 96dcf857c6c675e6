// Package mmu models the AArch64 VMSA page-table hierarchy and the MMU
// bring-up sequence used to identity-map the kernel image and the BCM2711
// peripheral window.
package mmu

import (
	"fmt"

	"github.com/behrlich/aetheros/internal/cpuctx"
	"github.com/behrlich/aetheros/internal/kerrors"
)

// Descriptor bit layout, per the VMSA block/table descriptor format this
// kernel uses: bit 0 valid, bit 1 table(1)/block(0), bits[47:12] address,
// bit 10 access flag, bits[4:2] MAIR index.
const (
	bitValid      = 1 << 0
	bitTable      = 1 << 1
	bitAccessFlag = 1 << 10
	addrMask      = 0x0000_FFFF_FFFF_F000
	mairIdxShift  = 2
	mairIdxMask   = 0x7
)

// MAIR attribute indices programmed into mair_el1 during bring-up.
const (
	MAIRDeviceNGnRnE      = 0 // 0x00
	MAIRNormalNonCacheable = 1 // 0x44
	MAIRNormalWriteBack   = 2 // 0xFF
)

// PageDescriptor is a single 64-bit VMSA table/block descriptor.
type PageDescriptor uint64

func (d PageDescriptor) Valid() bool  { return d&bitValid != 0 }
func (d PageDescriptor) IsTable() bool { return d.Valid() && d&bitTable != 0 }
func (d PageDescriptor) Addr() uint64  { return uint64(d) & addrMask }
func (d PageDescriptor) AccessFlag() bool { return d&bitAccessFlag != 0 }
func (d PageDescriptor) MAIRIdx() uint8 {
	return uint8((uint64(d) >> mairIdxShift) & mairIdxMask)
}

// NewTableDescriptor builds a Table descriptor pointing at the given
// 4 KiB-aligned next-level table address.
func NewTableDescriptor(addr uint64) PageDescriptor {
	return PageDescriptor((addr & addrMask) | bitTable | bitValid)
}

// NewBlockDescriptor builds a Block descriptor for a 1 GiB (L1) or 2 MiB
// (L2) output address with the given MAIR index, setting the access flag
// only when accessFlag is true.
func NewBlockDescriptor(addr uint64, mairIdx uint8, accessFlag bool) PageDescriptor {
	d := PageDescriptor((addr & addrMask) | bitValid)
	d |= PageDescriptor(uint64(mairIdx&mairIdxMask) << mairIdxShift)
	if accessFlag {
		d |= bitAccessFlag
	}
	return d
}

// PageTable is one 4 KiB-sized, 512-entry translation table.
type PageTable [512]PageDescriptor

// TableSet is the kernel's fixed page-table hierarchy: one L0 with four
// populated entries, and four L1 tables, matching spec's data model
// exactly — no L2/L3 tables are built (1 GiB/2 MiB blocks only).
type TableSet struct {
	L0  PageTable
	L1s [4]PageTable
}

// SystemRegisters models the AArch64 system registers the bring-up
// sequence programs. A real CPU core holds these; here they are plain
// fields a test can assert against.
type SystemRegisters struct {
	TTBR0  uint64
	TCR    uint64
	MAIR   uint64
	SCTLR  uint64
}

const (
	sctlrM = 1 << 0 // MMU enable
	sctlrC = 1 << 2 // data cache enable
	sctlrI = 1 << 12 // instruction cache enable

	kernelBase = 0x80000
	peripheralBase = 0xFE000000
	peripheralSize = 24 * 1024 * 1024

	blockSize1GiB = 1 << 30
	blockSize2MiB = 1 << 21
)

// Config carries the Bringup inputs.
type Config struct {
	KernelSize uint64 // size of the identity-mapped kernel range in bytes
}

// Mmu wires a TableSet and its SystemRegisters together and exposes the
// bring-up / guard-unmap operations from spec §4.4.
type Mmu struct {
	Tables TableSet
	Regs   SystemRegisters
}

// New returns an MMU with all tables and registers zeroed (MMU disabled).
func New() *Mmu {
	return &Mmu{}
}

func peripheralL1Index() int {
	return int((peripheralBase >> 30) & 0x3)
}

func kernelL1Index() int {
	return int((kernelBase >> 30) & 0x3)
}

// Bringup performs the 9-step MMU enable sequence from spec §4.4.
func (m *Mmu) Bringup(cfg Config) error {
	// Step 1: L0 entries 0..3 are Table descriptors over the four L1s. The
	// L1 tables live inline in the same TableSet value in the host model,
	// so their "address" is a synthetic per-index identifier rather than a
	// real physical pointer; the descriptor still carries the real bits.
	for i := range m.Tables.L1s {
		m.Tables.L0[i] = NewTableDescriptor(uint64(i) << 12)
	}

	// Step 2: identity-map the kernel range in 2 MiB strides at the chosen
	// L1 index, Normal-cacheable with the access flag set.
	kernelSize := cfg.KernelSize
	if kernelSize == 0 {
		kernelSize = blockSize2MiB
	}
	l1 := &m.Tables.L1s[kernelL1Index()]
	for off := uint64(0); off < kernelSize; off += blockSize2MiB {
		addr := kernelBase + off
		idx := (addr / blockSize2MiB) % 512
		l1[idx] = NewBlockDescriptor(addr, MAIRNormalWriteBack, true)
	}

	// Step 3: identity-map the peripheral range, Device-nGnRnE.
	periphL1 := &m.Tables.L1s[peripheralL1Index()]
	for off := uint64(0); off < peripheralSize; off += blockSize2MiB {
		addr := peripheralBase + off
		idx := (addr / blockSize2MiB) % 512
		periphL1[idx] = NewBlockDescriptor(addr, MAIRDeviceNGnRnE, true)
	}

	// Step 4: ttbr0_el1 <- L0 table base (modeled as a fixed handle, 0).
	m.Regs.TTBR0 = 0

	// Step 5: tcr_el1, T0SZ=16, T1SZ=16, TG0=4K (encoding 0b00 at
	// bits [15:14]), TG1=4K (encoding 0b10 at bits [31:30]).
	const t0sz = 16
	const t1sz = 16 << 16
	const tg1Gran4K = 0b10 << 30
	m.Regs.TCR = t0sz | t1sz | tg1Gran4K

	// Step 6: mair_el1 attribute indices.
	m.Regs.MAIR = uint64(0x00)<<(8*MAIRDeviceNGnRnE) |
		uint64(0x44)<<(8*MAIRNormalNonCacheable) |
		uint64(0xFF)<<(8*MAIRNormalWriteBack)

	// Step 7: dsb sy; isb.
	cpuctx.Barrier()
	cpuctx.ISB()

	// Step 8: read-modify-write sctlr_el1 to set M, C, I.
	m.Regs.SCTLR |= sctlrM | sctlrC | sctlrI

	// Step 9: dsb sy; isb.
	cpuctx.Barrier()
	cpuctx.ISB()

	return nil
}

// IsEnabled reports whether the SCTLR_EL1 M bit is set.
func (m *Mmu) IsEnabled() bool {
	return m.Regs.SCTLR&sctlrM != 0
}

// UnmapGuard clears the L1 entry covering va and issues a simulated TLB
// invalidation (tlbi vaae1) followed by the ordering barriers.
func (m *Mmu) UnmapGuard(va uint64) error {
	if !m.IsEnabled() {
		return kerrors.New("mmu.UnmapGuard", kerrors.KindInvalidRequest, "mmu not enabled")
	}
	l1idx := int((va >> 30) & 0x3)
	if l1idx < 0 || l1idx >= len(m.Tables.L1s) {
		return kerrors.New("mmu.UnmapGuard", kerrors.KindInvalidAddress,
			fmt.Sprintf("address %#x maps outside the four L1 tables", va))
	}
	blockIdx := (va / blockSize2MiB) % 512
	m.Tables.L1s[l1idx][blockIdx] = 0

	cpuctx.Barrier() // tlbi vaae1, va>>12
	cpuctx.Barrier() // dsb sy
	cpuctx.ISB()
	return nil
}

// Translate reports whether va falls within the kernel or peripheral
// identity-mapped range, for host-side tests that assert the bring-up
// sequence actually mapped what it claims to.
func (m *Mmu) Translate(va uint64) (mapped bool, mairIdx uint8) {
	var l1idx int
	switch {
	case va >= kernelBase && va < kernelBase+blockSize2MiB*512:
		l1idx = kernelL1Index()
	case va >= peripheralBase && va < peripheralBase+peripheralSize:
		l1idx = peripheralL1Index()
	default:
		return false, 0
	}
	blockIdx := (va / blockSize2MiB) % 512
	d := m.Tables.L1s[l1idx][blockIdx]
	if !d.Valid() {
		return false, 0
	}
	return true, d.MAIRIdx()
}
