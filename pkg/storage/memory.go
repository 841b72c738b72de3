package storage

import (
	"sync"

	"github.com/quorumkv/raftkv/pkg/raft"
)

// Memory is the default Storage: it keeps term, voted_for, and the log in
// volatile memory only, matching the original core's documented behavior
// (§1: "the original keeps state in volatile memory"). Nothing here
// survives a process restart; see Bolt for the durable alternative.
type Memory struct {
	mu       sync.Mutex
	term     uint64
	votedFor string
	log      []raft.LogEntry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveState(term uint64, votedFor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.term, m.votedFor = term, votedFor
	return nil
}

func (m *Memory) AppendEntry(e raft.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, e)
	return nil
}

func (m *Memory) TruncateLog(keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keep < len(m.log) {
		m.log = m.log[:keep]
	}
	return nil
}

func (m *Memory) Load() (uint64, string, []raft.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	logCopy := make([]raft.LogEntry, len(m.log))
	copy(logCopy, m.log)
	return m.term, m.votedFor, logCopy, nil
}

func (m *Memory) Close() error {
	return nil
}
