// Package memengine implements the two-phase (reserve, then commit) pooled
// memory engine: three size-classed pools, each with atomic reserved and
// committed watermarks.
package memengine

import (
	"fmt"
	"sync/atomic"

	"github.com/behrlich/aetheros/internal/kerrors"
)

// Size classes, matching the teacher's power-of-2 bucket dispatch in
// internal/queue/pool.go, generalized from byte-buffer buckets to
// address-range pools.
const (
	L0Size uint64 = 64 * 1024        // fast pool, ≤64 KiB allocations
	L1Size uint64 = 2 * 1024 * 1024  // general pool, ≤2 MiB allocations
	L2Size uint64 = 16 * 1024 * 1024 // large pool, everything else

	l1UtilizationThreshold = 0.80
)

// Pool is one size-classed arena: a base address, total size, and
// monotonically increasing reserved/committed watermarks.
//
// Invariant: committed <= reserved <= size at every instant.
type Pool struct {
	base      uint64
	size      uint64
	reserved  atomic.Uint64
	committed atomic.Uint64
}

func newPool(base, size uint64) *Pool {
	return &Pool{base: base, size: size}
}

// Reserved returns the current reserved watermark.
func (p *Pool) Reserved() uint64 { return p.reserved.Load() }

// Committed returns the current committed watermark.
func (p *Pool) Committed() uint64 { return p.committed.Load() }

// Size returns the pool's total size.
func (p *Pool) Size() uint64 { return p.size }

// reserve advances the reserved watermark by size, rolling back on
// overflow (fetch-add then fetch-sub), matching spec's concurrency model.
func (p *Pool) reserve(size uint64) (addr uint64, err error) {
	next := p.reserved.Add(size)
	if next > p.size {
		p.reserved.Add(-size)
		return 0, kerrors.New("memengine.Pool.reserve", kerrors.KindOutOfMemory,
			fmt.Sprintf("reserve of %d would exceed pool size %d", size, p.size))
	}
	return p.base + (next - size), nil
}

// commit widens the committed watermark only if the new upper bound
// exceeds it, and only if the range lies inside the pool.
func (p *Pool) commit(addr, size uint64) error {
	if addr < p.base || addr+size > p.base+p.size {
		return kerrors.New("memengine.Pool.commit", kerrors.KindInvalidAddress,
			fmt.Sprintf("commit range [%#x,%#x) outside pool [%#x,%#x)", addr, addr+size, p.base, p.base+p.size))
	}
	upper := (addr - p.base) + size
	reserved := p.reserved.Load()
	if upper > reserved {
		return kerrors.New("memengine.Pool.commit", kerrors.KindInvalidRequest,
			fmt.Sprintf("commit upper bound %d exceeds reserved %d", upper, reserved))
	}
	for {
		cur := p.committed.Load()
		if upper <= cur {
			return nil
		}
		if p.committed.CompareAndSwap(cur, upper) {
			return nil
		}
	}
}

// Utilization returns committed/size as a fraction in [0,1].
func (p *Pool) Utilization() float64 {
	if p.size == 0 {
		return 0
	}
	return float64(p.committed.Load()) / float64(p.size)
}

// Engine is the memory engine (SMME): the three disjoint size-classed
// pools plus the allocate/stats/cleanup operations from spec §4.6.
type Engine struct {
	L0 *Pool
	L1 *Pool
	L2 *Pool
}

// New constructs an Engine with three disjoint pools laid out back to
// back starting at base, sized L0Size/L1Size/L2Size.
func New(base uint64) *Engine {
	return NewWithPools(base, L0Size, L1Size, L2Size)
}

// NewWithPools constructs an Engine whose three disjoint pools use the
// given sizes instead of the package defaults, for boot configurations
// (internal/bootcfg.Config.Pools) that override the stock layout.
func NewWithPools(base, l0Size, l1Size, l2Size uint64) *Engine {
	l0 := newPool(base, l0Size)
	l1 := newPool(base+l0Size, l1Size)
	l2 := newPool(base+l0Size+l1Size, l2Size)
	return &Engine{L0: l0, L1: l1, L2: l2}
}

// poolFor dispatches by the pool's own configured size rather than the
// package defaults, so a reconfigured L0/L1 boundary (via NewWithPools)
// changes which pool an allocation of a given size lands in.
func (e *Engine) poolFor(size uint64) *Pool {
	switch {
	case size <= e.L0.size:
		return e.L0
	case size <= e.L1.size:
		return e.L1
	default:
		return e.L2
	}
}

// Allocate reserves and immediately commits size bytes from the
// appropriate size-classed pool, returning the allocation's absolute
// address inside that pool (pool base plus offset).
func (e *Engine) Allocate(size uint64) (uint64, error) {
	pool := e.poolFor(size)
	addr, err := pool.reserve(size)
	if err != nil {
		return 0, err
	}
	if err := pool.commit(addr, size); err != nil {
		return 0, err
	}
	return addr, nil
}

// Stats is a point-in-time snapshot of the engine's watermarks.
type Stats struct {
	TotalReserved  uint64
	TotalCommitted uint64
	L0Reserved     uint64
	L0Committed    uint64
	L1Reserved     uint64
	L1Committed    uint64
	L2Reserved     uint64
	L2Committed    uint64
}

// Stats returns (total_reserved, total_committed, per-pool usage).
func (e *Engine) Stats() Stats {
	return Stats{
		TotalReserved:  e.L0.Reserved() + e.L1.Reserved() + e.L2.Reserved(),
		TotalCommitted: e.L0.Committed() + e.L1.Committed() + e.L2.Committed(),
		L0Reserved:     e.L0.Reserved(),
		L0Committed:    e.L0.Committed(),
		L1Reserved:     e.L1.Reserved(),
		L1Committed:    e.L1.Committed(),
		L2Reserved:     e.L2.Reserved(),
		L2Committed:    e.L2.Committed(),
	}
}

// PredictiveCleanup triggers EmergencyCleanup when the L1 pool's
// utilization exceeds 80%; otherwise it returns 0 without touching L1.
func (e *Engine) PredictiveCleanup() uint64 {
	if e.L1.Utilization() > l1UtilizationThreshold {
		return e.EmergencyCleanup()
	}
	return 0
}

// EmergencyCleanup reports the L1 pool's reclaimable slack
// (reserved - committed). This is advisory only: per the spec's Open
// Question on reclaim semantics, this design never mutates watermarks
// here — only reserve and commit move them.
func (e *Engine) EmergencyCleanup() uint64 {
	reserved := e.L1.Reserved()
	committed := e.L1.Committed()
	if reserved <= committed {
		return 0
	}
	return reserved - committed
}
