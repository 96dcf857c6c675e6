// Package sched implements the preemptive round-robin scheduler over
// message-passing "active object" tasks.
package sched

import (
	"sync"

	"github.com/behrlich/aetheros/internal/cpuctx"
	"github.com/behrlich/aetheros/internal/kerrors"
)

// State is a task's lifecycle state.
type State int

const (
	Idle State = iota
	Ready
	Running
	Waiting
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Message is a value-typed mailbox entry: a kind tag and a 64-bit payload.
type Message struct {
	Kind    uint32
	Payload uint64
}

// mailboxCapacity is the fixed ring-buffer capacity per task, per spec §3.
const mailboxCapacity = 16

// Mailbox is a fixed-capacity FIFO ring buffer of Messages, grounded on
// the head/tail slot bookkeeping in internal/uring/minimal.go's SQE/CQE
// ring, reused here as a plain Go slice ring rather than an io_uring
// client.
type Mailbox struct {
	mu    sync.Mutex
	slots [mailboxCapacity]Message
	head  int
	tail  int
	count int
}

// Post enqueues a message at the tail. Returns MailboxFull if the ring is
// at capacity.
func (m *Mailbox) Post(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == mailboxCapacity {
		return kerrors.New("sched.Mailbox.Post", kerrors.KindMailboxFull, "mailbox at capacity")
	}
	m.slots[m.tail] = msg
	m.tail = (m.tail + 1) % mailboxCapacity
	m.count++
	return nil
}

// Get dequeues the head message, reporting false if the mailbox is empty.
func (m *Mailbox) Get() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == 0 {
		return Message{}, false
	}
	msg := m.slots[m.head]
	m.head = (m.head + 1) % mailboxCapacity
	m.count--
	return msg, true
}

// Len reports the number of pending messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Task is an active object: identity, lifecycle state, saved CPU context,
// a mailbox, and a time-slice quantum.
type Task struct {
	ID              uint32
	ProcessID       uint32
	Priority        uint8 // stored, not consulted — see DESIGN.md Open Question 1
	State           State
	Context         cpuctx.Context
	Quantum         uint32
	TicksRemaining  uint32
	Mailbox         Mailbox
}

// NewTask creates a task in the Idle state with an empty context and the
// given time-slice quantum.
func NewTask(id, processID uint32, priority uint8, quantum uint32) *Task {
	return &Task{
		ID:             id,
		ProcessID:      processID,
		Priority:       priority,
		State:          Idle,
		Quantum:        quantum,
		TicksRemaining: quantum,
	}
}

// Send posts a message to the task's mailbox, promoting it Idle->Ready on
// the first enqueue.
func (t *Task) Send(msg Message) error {
	if err := t.Mailbox.Post(msg); err != nil {
		return err
	}
	if t.State == Idle {
		t.State = Ready
	}
	return nil
}
