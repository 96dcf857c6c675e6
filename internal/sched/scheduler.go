package sched

import (
	"sync/atomic"

	"github.com/behrlich/aetheros/internal/cpuctx"
)

// MaxObjects is the fixed task-table capacity, per spec §3 Scheduler state.
const MaxObjects = 256

// Scheduler owns the task table exclusively. IRQ code only reaches a task
// through its slot index — grounded on the teacher's Runner.tagStates
// per-tag state machine in internal/queue/runner.go, generalized from I/O
// tag states to task lifecycle states.
type Scheduler struct {
	slots     [MaxObjects]*Task
	taskCount int
	current   atomic.Uint32
	started   bool // false until the first Schedule call has picked a task
	ticks     atomic.Uint64
	live      cpuctx.Context // the CPU's currently loaded register set
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Spawn installs a task in the next free slot and returns its slot index.
// Panics if the table is full — task creation is a boot-time operation in
// this design, not a runtime one subject to recoverable failure.
func (s *Scheduler) Spawn(t *Task) int {
	if s.taskCount >= MaxObjects {
		panic("sched: task table full")
	}
	idx := s.taskCount
	s.slots[idx] = t
	s.taskCount++
	return idx
}

// TaskCount returns the number of installed tasks.
func (s *Scheduler) TaskCount() int { return s.taskCount }

// Current returns the current task index. Invariant: current < taskCount
// whenever taskCount > 0.
func (s *Scheduler) Current() uint32 { return s.current.Load() }

// Task returns the task installed at idx, or nil if the slot is empty.
func (s *Scheduler) Task(idx int) *Task {
	if idx < 0 || idx >= MaxObjects {
		return nil
	}
	return s.slots[idx]
}

// Tick decrements the running task's TicksRemaining; when it reaches
// zero the task is demoted to Ready and its quantum reloaded. Called
// every 10 timer ticks per spec §4.7.
func (s *Scheduler) Tick() {
	s.ticks.Add(1)
	idx := int(s.current.Load())
	if s.taskCount == 0 {
		return
	}
	task := s.slots[idx]
	if task == nil || task.State != Running {
		return
	}
	if task.TicksRemaining > 0 {
		task.TicksRemaining--
	}
	if task.TicksRemaining == 0 {
		task.State = Ready
		task.TicksRemaining = task.Quantum
	}
}

// Ticks returns the monotonic tick counter, for diagnostics.
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

// Schedule performs round-robin selection. If the currently loaded task
// is still Running (its quantum has not yet been exhausted by Tick), it
// keeps running — Schedule does not preempt on its own. Otherwise it
// advances past that slot and scans up to taskCount slots for the next
// Ready task. The found task is marked Running and processes at most one
// pending message; it is then left Running, so repeated Schedule calls
// between Tick-driven preemptions keep selecting the same task, matching
// the quantum being consumed across many Tick calls rather than a single
// Schedule call. cpuctx.Switch is invoked between the outgoing and
// incoming contexts only when the selected index differs from the one
// last running.
func (s *Scheduler) Schedule() (selected int, switched bool) {
	if s.taskCount == 0 {
		return -1, false
	}

	prevIdx := int(s.current.Load())
	prevTask := s.slots[prevIdx]

	start := prevIdx
	if s.started && (prevTask == nil || prevTask.State != Running) {
		start = prevIdx + 1 // prevTask already had its turn; rotate past it
	}

	selected = -1
	for i := 0; i < s.taskCount; i++ {
		idx := (start + i) % s.taskCount
		t := s.slots[idx]
		if t != nil && (t.State == Ready || t.State == Running) {
			selected = idx
			break
		}
	}
	if selected == -1 {
		return -1, false
	}

	if selected != prevIdx {
		next := s.slots[selected]
		if prevTask != nil {
			cpuctx.Switch(&prevTask.Context, s.live) // save outgoing task's context
		}
		cpuctx.Switch(&s.live, next.Context) // load incoming task's context
		switched = true
	}

	s.current.Store(uint32(selected))
	s.started = true
	task := s.slots[selected]
	task.State = Running

	if msg, ok := task.Mailbox.Get(); ok {
		processMessage(task, msg)
	}

	return selected, switched
}

// processMessage is the minimal per-message hook a real active object
// would override; the scheduler's contract only requires that at most one
// message is drained per Schedule() call.
func processMessage(t *Task, msg Message) {
	_ = t
	_ = msg
}
