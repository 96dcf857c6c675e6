// Package mesh exposes a passive device-discovery capability table. Per
// spec §1 the device mesh is a passive collaborator specified only by the
// interface it presents to the kernel core — no networking is
// implemented here (Non-goal).
package mesh

// Capability is a bitmask flag a Device may advertise.
type Capability uint32

const (
	CapCPU Capability = 1 << iota
	CapGPU
	CapNPU
	CapHighMemory
	CapLowPower
)

// MaxDevices bounds the mesh's fixed device table.
const MaxDevices = 32

// DeviceID identifies a device within the mesh.
type DeviceID uint32

// Device describes one mesh participant's advertised capabilities,
// grounded on original_source's quantum_bus.rs Device record.
type Device struct {
	ID             DeviceID
	Capabilities   Capability
	AvailableBytes uint64
	ComputeCenti   uint32 // TFLOPS * 100
	LatencyMs      uint32
}

// HasCapability reports whether the device advertises cap.
func (d Device) HasCapability(cap Capability) bool {
	return d.Capabilities&cap != 0
}

// CapabilityScore ranks a device for offload decisions: higher compute
// and memory favor it, latency penalizes it — grounded directly on
// quantum_bus.rs's capability_score.
func (d Device) CapabilityScore() int64 {
	score := int64(d.ComputeCenti)
	score += int64(d.AvailableBytes / (1024 * 1024))
	score -= int64(d.LatencyMs) * 10
	return score
}

// Mesh is a fixed-capacity device table. The kernel calls Discover once at
// boot and FindBestDevice from its allocation path to decide when to log
// an offload recommendation; nothing here opens a socket or radio.
type Mesh struct {
	devices []Device
}

// New returns an empty mesh with the local CPU pre-registered, the way
// quantum_bus.rs's discover() always adds the local device first.
func New() *Mesh {
	return &Mesh{
		devices: []Device{{ID: 0, Capabilities: CapCPU}},
	}
}

// Register adds a device to the mesh, up to MaxDevices.
func (m *Mesh) Register(d Device) bool {
	if len(m.devices) >= MaxDevices {
		return false
	}
	m.devices = append(m.devices, d)
	return true
}

// Discover returns the number of known devices. A real implementation
// would probe a transport (BLE, WiFi Direct); this model only reports
// what has been statically Registered.
func (m *Mesh) Discover() int {
	return len(m.devices)
}

// FindBestDevice returns the highest-scoring device with at least
// minBytes available memory and minComputeCenti compute power, if any.
func (m *Mesh) FindBestDevice(minBytes uint64, minComputeCenti uint32) (DeviceID, bool) {
	var best *Device
	var bestScore int64
	for i := range m.devices {
		d := &m.devices[i]
		if d.AvailableBytes < minBytes || d.ComputeCenti < minComputeCenti {
			continue
		}
		score := d.CapabilityScore()
		if best == nil || score > bestScore {
			best = d
			bestScore = score
		}
	}
	if best == nil {
		return 0, false
	}
	return best.ID, true
}
