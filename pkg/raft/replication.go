package raft

import (
	"time"

	"github.com/quorumkv/raftkv/pkg/message"
)

// handlePut is the Leader side of a client PUT (§4.2): append a LogEntry,
// mark it pending, and replicate to every peer starting at its current
// match_index.
func (r *Replica) handlePut(m message.Message) {
	entry := LogEntry{Term: r.term, Key: m.Key, Value: m.Value, MID: m.MID, Putter: m.Src}
	r.appendEntry(entry)
	r.pendingPuts[m.MID] = true
	for _, peer := range r.peers {
		r.sendAppend(peer)
	}
}

// handleGet is the Leader side of a client GET (§4.4): answered
// immediately from committed state, never deferred.
func (r *Replica) handleGet(m message.Message) {
	r.send(message.Message{
		Src:    r.id,
		Dst:    m.Src,
		Leader: r.assumedLeader,
		Type:   message.Ok,
		MID:    m.MID,
		Value:  r.values.Get(m.Key),
	})
}

// buildAppendMsg constructs the Append RPC targeted at peer (§4.2). A nil
// entries slice means "use the default suffix starting at
// max(prev_log_index+1, 0)"; a non-nil (possibly empty) slice is sent
// verbatim, used for heartbeats and the initial post-election Append.
func (r *Replica) buildAppendMsg(peer string, entries []LogEntry) message.Message {
	prevIndex := r.matchIndex[peer]
	prevTerm := r.termAt(prevIndex)

	if entries == nil {
		start := prevIndex + 1
		if start < 0 {
			start = 0
		}
		if start < int64(len(r.entries)) {
			entries = r.entries[start:]
		}
	}

	wire := make([]message.Entry, len(entries))
	for i, e := range entries {
		wire[i] = message.Entry{Term: e.Term, Key: e.Key, Value: e.Value, MID: e.MID, Putter: e.Putter}
	}

	return message.Message{
		Src:          r.id,
		Dst:          peer,
		Leader:       r.assumedLeader,
		Type:         message.Append,
		Term:         r.term,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      wire,
		LeaderCommit: r.commitIndex,
	}
}

func (r *Replica) sendAppend(peer string) {
	r.send(r.buildAppendMsg(peer, nil))
}

// broadcastAppend sends the same explicit entries (possibly empty, for a
// heartbeat) to every peer, each still addressed at that peer's own
// prev_log_index from match_index.
func (r *Replica) broadcastAppend(entries []LogEntry) {
	for _, peer := range r.peers {
		r.send(r.buildAppendMsg(peer, entries))
	}
}

func (r *Replica) broadcastHeartbeats() {
	r.broadcastAppend([]LogEntry{})
	r.lastHeartbeat = time.Now()
}

// handleAppendAck is the Leader side of the ack protocol (§4.2): advance
// match_index on success and recompute commit, or repair divergence by
// backing off one index and retrying on failure.
func (r *Replica) handleAppendAck(m message.Message) {
	r.bumpTermIfHigher(m.Term)
	if r.role != Leader {
		return
	}

	if int64(len(r.entries)) <= m.ConfirmedIndex {
		r.becomeFollower("stale ack beyond own log", m.Term)
		return
	}

	if !m.Success {
		if r.matchIndex[m.Src] > -1 {
			r.matchIndex[m.Src]--
		}
		r.sendAppend(m.Src)
		return
	}

	r.matchIndex[m.Src] = m.ConfirmedIndex
	r.maybeAdvanceCommit(m.ConfirmedIndex)
}

// maybeAdvanceCommit implements the commit rule (§4.2, with the adopted
// §9 open-question-(a) fix): commit_index advances to candidate only if a
// strict majority of the cluster (leader included) has replicated it AND
// the entry at that index belongs to the leader's current term.
func (r *Replica) maybeAdvanceCommit(candidate int64) {
	if candidate <= r.commitIndex {
		return
	}
	if candidate < 0 || candidate >= int64(len(r.entries)) {
		return
	}
	if r.entries[candidate].Term != r.term {
		return
	}

	count := 1 // leader
	for _, idx := range r.matchIndex {
		if idx >= candidate {
			count++
		}
	}
	if count < r.majority() {
		return
	}

	prev := r.commitIndex
	r.commitIndex = candidate
	r.applyThrough(prev, r.commitIndex)
	r.broadcastHeartbeats()
}
