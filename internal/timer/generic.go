// Package timer implements the ARM Generic Timer driver.
package timer

import "sync/atomic"

// ctlEnable is bit 0 of cntp_ctl_el0 (timer enabled, unmasked).
const ctlEnable = 1 << 0

// Timer models the ARM Generic Timer's per-CPU physical timer registers
// (cntfrq_el0, cntpct_el0, cntp_tval_el0, cntp_ctl_el0). There is no real
// counter to read on a host, so Counter() is a monotonically advancing
// simulated tick count that moves only when Advance is called; the
// kernel's IRQ-dispatch loop does not call Advance.
type Timer struct {
	freq    uint64
	counter atomic.Uint64
	tval    atomic.Uint64
	ctl     atomic.Uint64
}

// New returns a Timer with the given counter-frequency (Hz).
func New(freqHz uint64) *Timer {
	return &Timer{freq: freqHz}
}

// Frequency returns cntfrq_el0.
func (t *Timer) Frequency() uint64 { return t.freq }

// Counter returns cntpct_el0. Reading it twice without an intervening
// Advance yields the same, non-decreasing value — the idempotence
// property required by spec §8.
func (t *Timer) Counter() uint64 { return t.counter.Load() }

// Advance moves the simulated counter forward by n ticks, standing in
// for real hardware counting cycles between reads.
func (t *Timer) Advance(n uint64) { t.counter.Add(n) }

// Reload programs cntp_tval_el0 = freq*intervalMs/1000, per spec §4.10.
// Re-programming with the same interval yields the same tick period.
func (t *Timer) Reload(intervalMs uint64) {
	t.tval.Store(t.freq * intervalMs / 1000)
}

// TimerValue returns the currently programmed cntp_tval_el0.
func (t *Timer) TimerValue() uint64 { return t.tval.Load() }

// EnableInterrupt sets cntp_ctl_el0 bit 0 (enable, unmasked).
func (t *Timer) EnableInterrupt() {
	t.ctl.Store(t.ctl.Load() | ctlEnable)
}

// InterruptEnabled reports whether cntp_ctl_el0 bit 0 is set.
func (t *Timer) InterruptEnabled() bool {
	return t.ctl.Load()&ctlEnable != 0
}
