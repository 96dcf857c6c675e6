// Package gic implements the GIC-400 distributor and CPU-interface driver
// used for IRQ dispatch.
package gic

import (
	"github.com/behrlich/aetheros/internal/mmio"
)

// Distributor and CPU-interface register offsets, per the GIC-400 TRM.
const (
	// Distributor (GICD_*), relative to the distributor base.
	offCTLR    = 0x000 // distributor control
	offISENABLER0 = 0x100 // interrupt set-enable, bank 0 (IRQs 0-31)
	offICENABLER0 = 0x180 // interrupt clear-enable, bank 0
	offIPRIORITYR = 0x400 // 8-bit priority per IRQ, 4 per register
	offITARGETSR  = 0x800 // 8-bit CPU target mask per IRQ, 4 per register

	// CPU interface (GICC_*), relative to the cpu interface base.
	offCCTLR = 0x000 // CPU interface control
	offPMR   = 0x004 // priority mask register
	offIAR   = 0x00C // interrupt acknowledge register
	offEOIR  = 0x010 // end of interrupt register
)

const (
	ctlrEnable = 1 << 0
	pmrAll     = 0xFF
	iarIRQMask = 0x3FF // mask to 10 bits, per spec §4.3

	defaultPriority   = 0xA0
	defaultTargetMask = 0x01

	numSPIs = 1020 // GIC-400 supports up to 1020 interrupt IDs
)

// DistributorBase and CPUInterfaceBase are the BCM2711 GIC-400 MMIO
// bases, per spec §6.
const (
	DistributorBase  uint64 = 0xFF841000
	CPUInterfaceBase uint64 = 0xFF842000
)

// GIC is the GIC-400 driver.
type GIC struct {
	bus          *mmio.Bus
	distBase     uint64
	cpuBase      uint64
}

// New binds a GIC driver to bus at the given distributor/CPU-interface
// bases.
func New(bus *mmio.Bus, distBase, cpuBase uint64) *GIC {
	return &GIC{bus: bus, distBase: distBase, cpuBase: cpuBase}
}

// Init performs the bring-up sequence from spec §4.10: disable the
// distributor, clear all enables, set priority 0xA0 and CPU-target mask
// 0x01 for all IRQs, re-enable the distributor, set PMR=0xFF, enable the
// CPU interface.
func (g *GIC) Init() error {
	if err := g.bus.Write32(g.distBase+offCTLR, 0); err != nil {
		return err
	}

	numBanks := (numSPIs + 31) / 32
	for bank := 0; bank < numBanks; bank++ {
		if err := g.bus.Write32(g.distBase+offICENABLER0+uint64(bank)*4, 0xFFFF_FFFF); err != nil {
			return err
		}
	}

	numPriorityRegs := numSPIs / 4
	priorityWord := uint32(defaultPriority)<<24 | uint32(defaultPriority)<<16 | uint32(defaultPriority)<<8 | uint32(defaultPriority)
	for i := 0; i < numPriorityRegs; i++ {
		if err := g.bus.Write32(g.distBase+offIPRIORITYR+uint64(i)*4, priorityWord); err != nil {
			return err
		}
	}

	targetWord := uint32(defaultTargetMask)<<24 | uint32(defaultTargetMask)<<16 | uint32(defaultTargetMask)<<8 | uint32(defaultTargetMask)
	for i := 0; i < numPriorityRegs; i++ {
		if err := g.bus.Write32(g.distBase+offITARGETSR+uint64(i)*4, targetWord); err != nil {
			return err
		}
	}

	if err := g.bus.Write32(g.distBase+offCTLR, ctlrEnable); err != nil {
		return err
	}
	if err := g.bus.Write32(g.cpuBase+offPMR, pmrAll); err != nil {
		return err
	}
	return g.bus.Write32(g.cpuBase+offCCTLR, ctlrEnable)
}

// EnableIRQ sets the set-enable bit for irq in the distributor.
func (g *GIC) EnableIRQ(irq uint32) error {
	bank := irq / 32
	bit := irq % 32
	return g.bus.Write32(g.distBase+offISENABLER0+uint64(bank)*4, 1<<bit)
}

// Acknowledge reads the CPU interface's IAR and masks it to 10 bits to
// obtain the IRQ number, per spec §4.3.
func (g *GIC) Acknowledge() (uint32, error) {
	v, err := g.bus.Read32(g.cpuBase + offIAR)
	if err != nil {
		return 0, err
	}
	return v & iarIRQMask, nil
}

// EndOfInterrupt writes the acknowledged IAR value back to the EOI
// register.
func (g *GIC) EndOfInterrupt(irq uint32) error {
	return g.bus.Write32(g.cpuBase+offEOIR, irq)
}
