// Package ledger tracks the download status of every item in a fixed list.
//
// Memory is the in-process ledger used by the scheduler. Each index holds
// exactly one Status; FirstNotStarted returns the lowest NotStarted index so
// that free slots pick up work in list order.
package ledger

import "sync"

// Status is the download state of one item.
type Status int

const (
	NotStarted Status = iota
	InProgress
	Done
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case InProgress:
		return "in-progress"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Counts is a point-in-time tally of the ledger.
type Counts struct {
	NotStarted int
	InProgress int
	Done       int
}

// Total returns the number of tracked items.
func (c Counts) Total() int {
	return c.NotStarted + c.InProgress + c.Done
}

// Memory is a mutex-guarded in-memory ledger.
//
// A cursor remembers the lowest index that can still be NotStarted, so a full
// run costs O(n) scanning in total instead of O(n) per lookup.
type Memory struct {
	mu     sync.Mutex
	states []Status
	cursor int
	done   int
}

// NewMemory creates a ledger for n items, all NotStarted.
func NewMemory(n int) *Memory {
	m := &Memory{}
	m.Init(n)
	return m
}

// Init resets the ledger to n NotStarted items.
func (m *Memory) Init(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n < 0 {
		n = 0
	}
	m.states = make([]Status, n)
	m.cursor = 0
	m.done = 0
}

// Resume flips every InProgress item back to NotStarted. Done items are kept.
func (m *Memory) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	first := len(m.states)
	for i, s := range m.states {
		if s == InProgress {
			m.states[i] = NotStarted
			if i < first {
				first = i
			}
		}
	}
	if first < m.cursor {
		m.cursor = first
	}
}

// SetState records status for index. Out-of-range indexes are ignored.
func (m *Memory) SetState(index int, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.states) {
		return
	}

	prev := m.states[index]
	if prev == status {
		return
	}
	if prev == Done {
		m.done--
	}
	if status == Done {
		m.done++
	}
	m.states[index] = status

	if status == NotStarted && index < m.cursor {
		m.cursor = index
	}
}

// State returns the status of index.
func (m *Memory) State(index int) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.states) {
		return NotStarted
	}
	return m.states[index]
}

// FirstNotStarted returns the lowest NotStarted index.
func (m *Memory) FirstNotStarted() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.cursor < len(m.states) {
		if m.states[m.cursor] == NotStarted {
			return m.cursor, true
		}
		m.cursor++
	}
	return 0, false
}

// DoneCount returns the number of Done items.
func (m *Memory) DoneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Len returns the number of tracked items.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// Counts tallies the ledger.
func (m *Memory) Counts() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()

	var c Counts
	for _, s := range m.states {
		switch s {
		case NotStarted:
			c.NotStarted++
		case InProgress:
			c.InProgress++
		case Done:
			c.Done++
		}
	}
	return c
}
