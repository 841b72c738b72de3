package raft

import "github.com/quorumkv/raftkv/pkg/message"

// lastLogIndex is len(log)-1, or -1 for an empty log (§3).
func (r *Replica) lastLogIndex() int64 {
	return int64(len(r.entries)) - 1
}

// lastLogTerm is the term of the last entry, or the replica's current
// term if the log is empty (§4.1's election-start rule). handleVote only
// compares it against a candidate's when the local log is non-empty.
func (r *Replica) lastLogTerm() uint64 {
	if len(r.entries) == 0 {
		return r.term
	}
	return r.entries[len(r.entries)-1].Term
}

// logUpToDate implements the adopted version of open question (b): compare
// (lastLogTerm, lastLogIndex) lexicographically rather than index alone.
func logUpToDate(candidateLastTerm uint64, candidateLastIndex int64, ownLastTerm uint64, ownLastIndex int64) bool {
	if candidateLastTerm != ownLastTerm {
		return candidateLastTerm > ownLastTerm
	}
	return candidateLastIndex >= ownLastIndex
}

// termAt returns the term of the entry at index, or the replica's current
// term if index is out of bounds — used when prev_log_index is -1 or the
// log is empty (§4.2's Append-RPC construction).
func (r *Replica) termAt(index int64) uint64 {
	if index < 0 || index >= int64(len(r.entries)) {
		return r.term
	}
	return r.entries[index].Term
}

func (r *Replica) appendEntry(e LogEntry) {
	r.entries = append(r.entries, e)
	if err := r.storage.AppendEntry(e); err != nil {
		r.log.Warn("failed to persist appended entry", "err", err)
	}
}

// reconcileLog implements §4.3 step 6: scan entry-by-entry from offset,
// and at the first index where the local log is shorter or the existing
// entry differs by (term,key,value), truncate and splice in the rest.
// Entries that already match are left untouched, making replay of an
// identical Append a no-op beyond last_activity (§8 property 7).
func (r *Replica) reconcileLog(offset int64, incoming []LogEntry) {
	i := 0
	for i < len(incoming) {
		idx := offset + int64(i)
		if idx >= int64(len(r.entries)) || !entriesEqual(r.entries[idx], incoming[i]) {
			break
		}
		i++
	}
	if i == len(incoming) {
		return
	}
	truncateAt := int(offset) + i
	if truncateAt < len(r.entries) {
		r.entries = r.entries[:truncateAt]
		if err := r.storage.TruncateLog(truncateAt); err != nil {
			r.log.Warn("failed to persist log truncation", "err", err)
		}
	}
	for ; i < len(incoming); i++ {
		r.appendEntry(incoming[i])
	}
}

// applyThrough advances the state machine for (prevCommit, through], the
// half-open range of newly committed entries, and answers any still-
// pending PUTs among them (§4.2).
func (r *Replica) applyThrough(prevCommit, through int64) {
	for i := prevCommit + 1; i <= through; i++ {
		if i < 0 || i >= int64(len(r.entries)) {
			continue
		}
		e := r.entries[i]
		r.values.Apply(e.Key, e.Value)
		if r.role == Leader && r.pendingPuts[e.MID] {
			r.pendingPuts[e.MID] = false
			delete(r.pendingPuts, e.MID)
			r.send(message.Message{
				Src:    r.id,
				Dst:    e.Putter,
				Leader: r.assumedLeader,
				Type:   message.Ok,
				MID:    e.MID,
			})
		}
	}
}
