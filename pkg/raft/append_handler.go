package raft

import (
	"time"

	"github.com/quorumkv/raftkv/pkg/message"
)

// handleAppend is the follower/candidate side of replication (§4.3): adopt
// the sender as leader if its term is current-or-higher, apply the
// leader's commit index, and — for a non-heartbeat Append — check the
// log-matching precondition and reconcile the local log.
func (r *Replica) handleAppend(m message.Message) {
	r.lastActivity = time.Now()

	if m.Term >= r.term {
		r.term = m.Term
		r.assumedLeader = m.Src
		r.role = Follower
		r.votedFor = ""
		if err := r.storage.SaveState(r.term, r.votedFor); err != nil {
			r.log.Warn("failed to persist state on append", "err", err)
		}
		r.flushRequestQueue()
	}

	// Safe even before reconciling the log below: a follower only ever
	// commits entries it already holds.
	newCommit := min64(m.LeaderCommit, r.lastLogIndex())
	if newCommit > r.commitIndex {
		prev := r.commitIndex
		r.commitIndex = newCommit
		r.applyThrough(prev, r.commitIndex)
	}

	if len(m.Entries) == 0 {
		return // heartbeat: no ack expected (§4.3 step 4)
	}

	entries := make([]LogEntry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = LogEntry{Term: e.Term, Key: e.Key, Value: e.Value, MID: e.MID, Putter: e.Putter}
	}

	prevOk := m.PrevLogIndex == -1 ||
		(m.PrevLogIndex < int64(len(r.entries)) && r.entries[m.PrevLogIndex].Term == m.PrevLogTerm)
	success := m.Term >= r.term && prevOk

	if success {
		r.reconcileLog(m.PrevLogIndex+1, entries)
	}

	r.send(message.Message{
		Src:            r.id,
		Dst:            m.Src,
		Leader:         r.assumedLeader,
		Type:           message.AppendAck,
		Term:           r.term,
		Success:        success,
		ConfirmedIndex: r.lastLogIndex(),
	})
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
