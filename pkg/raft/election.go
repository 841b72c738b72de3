package raft

import (
	"time"

	"github.com/quorumkv/raftkv/pkg/message"
)

// bumpTermIfHigher applies the universal "Any: observed higher term" rule
// (§4.1): term advances, voted_for resets, and a sitting Leader steps down.
// Vote requests always run this, even outside their own handler's role
// restrictions (§9's design note).
func (r *Replica) bumpTermIfHigher(term uint64) {
	if term > r.term {
		r.becomeFollower("higher term observed", term)
	}
}

// handleVote is the grant-vote rule (§4.1), reachable from any role: a
// vote request is always accepted at least enough to update term.
func (r *Replica) handleVote(m message.Message) {
	r.bumpTermIfHigher(m.Term)

	// An empty local log never outranks a candidate's log, whatever term
	// the candidate reports for its own last entry.
	upToDate := r.lastLogIndex() < 0 ||
		logUpToDate(m.LastLogTerm, m.LastLogIndex, r.lastLogTerm(), r.lastLogIndex())

	granted := false
	if (r.votedFor == "" || r.votedFor == m.CandidateID) &&
		m.Term >= r.term &&
		upToDate {
		granted = true
		r.votedFor = m.CandidateID
		r.lastActivity = time.Now()
		if err := r.storage.SaveState(r.term, r.votedFor); err != nil {
			r.log.Warn("failed to persist vote", "err", err)
		}
	}

	r.send(message.Message{
		Src:         r.id,
		Dst:         m.CandidateID,
		Leader:      r.assumedLeader,
		Type:        message.VoteAck,
		Term:        r.term,
		VoteGranted: granted,
	})
}

// handleVoteAck is Candidate-only (§4.1): acks received in any other role
// are a silent drop, matching the role dispatch table (§9).
func (r *Replica) handleVoteAck(m message.Message) {
	if r.role != Candidate {
		return
	}
	r.bumpTermIfHigher(m.Term)
	if r.role != Candidate {
		// bumpTermIfHigher may have just demoted us.
		return
	}

	r.votesTotal++
	if m.VoteGranted {
		r.votesForMe++
	}
	if r.votesForMe >= r.majority() {
		r.becomeLeader()
	}
}
