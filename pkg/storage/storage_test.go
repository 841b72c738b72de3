package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkv/raftkv/pkg/raft"
)

func TestMemorySaveStateAndLoad(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SaveState(5, "0001"))
	require.NoError(t, m.AppendEntry(raft.LogEntry{Term: 5, Key: "x", Value: "1"}))

	term, votedFor, log, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), term)
	assert.Equal(t, "0001", votedFor)
	assert.Len(t, log, 1)
}

func TestMemoryTruncateLog(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AppendEntry(raft.LogEntry{Term: 1}))
	}
	require.NoError(t, m.TruncateLog(2))

	_, _, log, err := m.Load()
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/state.db"

	b, err := NewBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.SaveState(7, "0002"))
	require.NoError(t, b.AppendEntry(raft.LogEntry{Term: 7, Key: "k", Value: "v", MID: "m1", Putter: "C1"}))
	require.NoError(t, b.Close())

	reopened, err := NewBolt(path)
	require.NoError(t, err)
	defer reopened.Close()

	term, votedFor, log, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), term)
	assert.Equal(t, "0002", votedFor)
	require.Len(t, log, 1)
	assert.Equal(t, "k", log[0].Key)
}

func TestBoltTruncateLog(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBolt(dir + "/state.db")
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 4; i++ {
		require.NoError(t, b.AppendEntry(raft.LogEntry{Term: 1, Key: "k"}))
	}
	require.NoError(t, b.TruncateLog(1))

	_, _, log, err := b.Load()
	require.NoError(t, err)
	assert.Len(t, log, 1)
}
