package raft

import (
	"time"

	"github.com/quorumkv/raftkv/pkg/message"
)

// becomeFollower demotes to Follower at the given term (§4.1, row "Leader:
// observed higher term -> Follower, demote, clear assumed leader", and the
// generic "Any: observed higher term" term-bump rule). voted_for resets on
// a term advance.
func (r *Replica) becomeFollower(reason string, newTerm uint64) {
	wasLeader := r.role == Leader
	r.role = Follower
	if newTerm > r.term {
		r.term = newTerm
		r.votedFor = ""
	}
	r.assumedLeader = message.UnknownLeader
	if err := r.storage.SaveState(r.term, r.votedFor); err != nil {
		r.log.Warn("failed to persist state on demotion", "err", err)
	}
	if wasLeader {
		r.matchIndex = nil
		r.pendingPuts = nil
		r.log.Info("demoted to follower", "reason", reason, "term", r.term)
	}
}

// startElection implements §4.1's "start election" action: Follower or
// Candidate timing out without a majority begins a fresh term.
func (r *Replica) startElection() {
	r.term++
	r.votedFor = r.id
	r.role = Candidate
	r.assumedLeader = message.UnknownLeader
	r.requestQueue = nil
	r.votesForMe = 1
	r.votesTotal = 1
	r.lastActivity = time.Now()
	r.electionTimeout = randomElectionTimeout()

	if err := r.storage.SaveState(r.term, r.votedFor); err != nil {
		r.log.Warn("failed to persist state on election start", "err", err)
	}

	r.log.Info("starting election", "term", r.term)

	r.send(message.Message{
		Src:          r.id,
		Dst:          message.BroadcastID,
		Leader:       r.assumedLeader,
		Type:         message.Vote,
		Term:         r.term,
		CandidateID:  r.id,
		LastLogIndex: r.lastLogIndex(),
		LastLogTerm:  r.lastLogTerm(),
	})
}

// becomeLeader implements the Candidate -> Leader transition on crossing a
// majority of vote grants (§4.1).
func (r *Replica) becomeLeader() {
	r.role = Leader
	r.assumedLeader = r.id
	r.matchIndex = make(map[string]int64, len(r.peers))
	for _, p := range r.peers {
		r.matchIndex[p] = r.commitIndex
	}
	r.pendingPuts = make(map[string]bool)

	r.log.Info("elected leader", "term", r.term)

	r.flushRequestQueue()
	r.broadcastAppend([]LogEntry{})
	r.lastHeartbeat = time.Now()
}
