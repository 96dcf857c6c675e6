// Package drivers implements the driver manager: FDT-driven compat-string
// binding with a static fallback table, per spec §4.8.
package drivers

import (
	"github.com/behrlich/aetheros/internal/fdt"
	"github.com/behrlich/aetheros/internal/gic"
	"github.com/behrlich/aetheros/internal/logging"
	"github.com/behrlich/aetheros/internal/mmio"
	"github.com/behrlich/aetheros/internal/timer"
	"github.com/behrlich/aetheros/internal/uart"
)

// DeviceClass categorizes a bound driver, per spec §3 Driver.
type DeviceClass int

const (
	ClassUnknown DeviceClass = iota
	ClassSerial
	ClassInterruptController
	ClassTimer
	ClassBlockDevice
	ClassNetwork
)

// Driver is the small interface every bindable device implements,
// grounded on the teacher's interfaces.Backend/Observer segregation —
// here, compat string, lifecycle init, class, and an optional IRQ hook.
type Driver interface {
	Compatible() string
	Init() error
	Class() DeviceClass
	HandleIRQ(irq uint32)
}

// baseDriver gives concrete drivers a no-op HandleIRQ by embedding, the
// same "default no-op" shape spec §4.8 calls for.
type baseDriver struct{}

func (baseDriver) HandleIRQ(uint32) {}

// uartDriver adapts internal/uart.UART to the Driver interface.
type uartDriver struct {
	baseDriver
	compat   string
	u        *uart.UART
	baudRate uint32
}

func (d *uartDriver) Compatible() string { return d.compat }
func (d *uartDriver) Init() error        { return d.u.Init(d.baudRate) }
func (d *uartDriver) Class() DeviceClass { return ClassSerial }

// gicDriver adapts internal/gic.GIC to the Driver interface.
type gicDriver struct {
	baseDriver
	compat string
	g      *gic.GIC
}

func (d *gicDriver) Compatible() string { return d.compat }
func (d *gicDriver) Init() error        { return d.g.Init() }
func (d *gicDriver) Class() DeviceClass { return ClassInterruptController }
func (d *gicDriver) HandleIRQ(irq uint32) {
	_ = d.g.EndOfInterrupt(irq)
}

// timerDriver adapts internal/timer.Timer to the Driver interface.
type timerDriver struct {
	baseDriver
	compat string
	t      *timer.Timer
}

func (d *timerDriver) Compatible() string { return d.compat }
func (d *timerDriver) Init() error {
	d.t.Reload(10)
	d.t.EnableInterrupt()
	return nil
}
func (d *timerDriver) Class() DeviceClass { return ClassTimer }

// compat strings recognized per spec §4.8.
const (
	compatGIC400      = "arm,gic-400"
	compatGICCortexA15 = "arm,cortex-a15-gic"
	compatPL011       = "arm,pl011"
	compatPrimecell   = "arm,primecell"
	compatArmv8Timer  = "arm,armv8-timer"
	compatArmv7Timer  = "arm,armv7-timer"
)

// Manager binds and owns the process-wide driver set: one instance per
// class, per spec §3 Driver.
type Manager struct {
	log      *logging.Logger
	bus      *mmio.Bus
	byClass  map[DeviceClass]Driver
	baudRate uint32
	UART     *uart.UART
	GIC      *gic.GIC
	Timer    *timer.Timer
}

// New constructs a Manager that initializes a bound UART at baudRate;
// drivers are bound by Bind.
func New(bus *mmio.Bus, baudRate uint32) *Manager {
	return &Manager{
		log:      logging.Default().WithSubsystem("drivers"),
		bus:      bus,
		byClass:  make(map[DeviceClass]Driver),
		baudRate: baudRate,
	}
}

// Bind walks the FDT (if dtb is non-empty and parses) and binds drivers
// for matching compatible properties; on an empty dtb, a parse failure,
// or a tree with no compatible property it falls back to the static
// built-in table (GIC, PL011, generic timer) against hard-coded MMIO
// bases, per spec §4.8.
func (m *Manager) Bind(dtb []byte) error {
	compatSet := map[string]bool{}
	if len(dtb) > 0 {
		if tree, ok := fdt.FromRaw(dtb); ok {
			m.collectCompatible(tree, compatSet)
		}
	}

	if len(compatSet) == 0 {
		// Static fallback table.
		compatSet[compatGIC400] = true
		compatSet[compatPL011] = true
		compatSet[compatArmv8Timer] = true
	}

	if compatSet[compatGIC400] || compatSet[compatGICCortexA15] {
		m.bindGIC(compatSet)
	}
	if compatSet[compatPL011] || compatSet[compatPrimecell] {
		m.bindUART(compatSet)
	}
	if compatSet[compatArmv8Timer] || compatSet[compatArmv7Timer] {
		m.bindTimer(compatSet)
	}
	return nil
}

func (m *Manager) collectCompatible(tree *fdt.DeviceTree, out map[string]bool) {
	it := tree.Iterator()
	for {
		tok, ok := it.Next()
		if !ok || tok.Kind == fdt.TokenEnd {
			return
		}
		if tok.Kind == fdt.TokenProp && tok.Name == "compatible" {
			for _, c := range fdt.CompatibleStrings(tok.Value) {
				out[c] = true
			}
		}
	}
}

func (m *Manager) bindGIC(compat map[string]bool) {
	c := compatGIC400
	if !compat[compatGIC400] {
		c = compatGICCortexA15
	}
	d := &gicDriver{compat: c, g: gic.New(m.bus, gic.DistributorBase, gic.CPUInterfaceBase)}
	if err := d.Init(); err != nil {
		m.log.Warn("gic init failed", "err", err)
		return
	}
	m.GIC = d.g
	m.byClass[ClassInterruptController] = d
	m.log.Info("bound driver", "compat", c, "class", "interrupt-controller")
}

func (m *Manager) bindUART(compat map[string]bool) {
	c := compatPL011
	if !compat[compatPL011] {
		c = compatPrimecell
	}
	d := &uartDriver{compat: c, u: uart.New(m.bus, uart.Base), baudRate: m.baudRate}
	if err := d.Init(); err != nil {
		m.log.Warn("uart init failed", "err", err)
		return
	}
	m.UART = d.u
	m.byClass[ClassSerial] = d
	m.log.Info("bound driver", "compat", c, "class", "serial")
}

func (m *Manager) bindTimer(compat map[string]bool) {
	c := compatArmv8Timer
	if !compat[compatArmv8Timer] {
		c = compatArmv7Timer
	}
	d := &timerDriver{compat: c, t: timer.New(19_200_000)}
	if err := d.Init(); err != nil {
		m.log.Warn("timer init failed", "err", err)
		return
	}
	m.Timer = d.t
	m.byClass[ClassTimer] = d
	m.log.Info("bound driver", "compat", c, "class", "timer")
}

// Driver returns the bound driver for class, or nil if none is bound.
func (m *Manager) Driver(class DeviceClass) Driver {
	return m.byClass[class]
}
