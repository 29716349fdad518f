package zoo

import (
	"fmt"
	"sync"
)

// Memory is an in-process Registry. It keeps records in registration order
// and reuses dead slots first-fit, mirroring File.
type Memory struct {
	mu      sync.Mutex
	records []memRecord
}

type memRecord struct {
	Record
	live bool
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Register(pid int, tag, cmdline string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := memRecord{Record: Record{PID: pid, Tag: tag, CmdLine: cmdline}, live: true}

	var stale []int
	slot := -1
	for i, r := range m.records {
		if r.live {
			if r.PID == pid {
				stale = append(stale, i)
			}
			continue
		}
		if slot < 0 {
			slot = i
		}
	}

	if slot >= 0 {
		m.records[slot] = rec
	} else {
		m.records = append(m.records, rec)
	}
	for _, i := range stale {
		m.records[i].live = false
	}
	return nil
}

func (m *Memory) Tombstone(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for i := range m.records {
		if m.records[i].live && m.records[i].PID == pid {
			m.records[i].live = false
			found = true
		}
	}
	if !found {
		return fmt.Errorf("tombstone pid %d: %w", pid, ErrNotFound)
	}
	return nil
}

func (m *Memory) Lookup(tag string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.live && r.Tag == tag {
			return r.PID, nil
		}
	}
	return 0, fmt.Errorf("lookup tag %q: %w", tag, ErrNotFound)
}

func (m *Memory) List() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.records {
		if r.live {
			out = append(out, r.Record)
		}
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

// Live reports whether pid currently has a live record.
func (m *Memory) Live(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.live && r.PID == pid {
			return true
		}
	}
	return false
}
