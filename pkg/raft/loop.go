package raft

import (
	"time"

	"github.com/quorumkv/raftkv/pkg/message"
)

// Run is the single-threaded event loop (§5): everything that mutates
// Replica state happens here, so no field needs a lock. It returns when
// Close is called.
func (r *Replica) Run() {
	defer close(r.done)

	r.send(message.Message{
		Src:    r.id,
		Dst:    message.BroadcastID,
		Leader: r.assumedLeader,
		Type:   message.Hello,
		Nonce:  message.NewNonce(),
	})

	inbox := make(chan message.Message, 64)
	go r.recvLoop(inbox)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return

		case m := <-inbox:
			r.dispatch(m)

		case reply := <-r.statusCh:
			reply <- r.snapshot()

		case <-ticker.C:
			r.tick()
		}
	}
}

// recvLoop polls the transport off the main loop's goroutine so Recv's
// blocking wait never stalls timers or status queries, and forwards
// whatever it gets onto inbox for the loop to dispatch.
func (r *Replica) recvLoop(inbox chan<- message.Message) {
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		m, ok, err := r.transport.Recv(50 * time.Millisecond)
		if err != nil {
			r.log.Debug("recv error", "err", err)
			continue
		}
		if !ok {
			continue
		}
		select {
		case inbox <- m:
		case <-r.stopCh:
			return
		}
	}
}

// tick drives the timer-based actions (§5): a Leader emits heartbeats on
// HeartbeatInterval; a Follower or Candidate that hasn't heard from a
// leader or won an election within its timeout starts a new election.
func (r *Replica) tick() {
	now := time.Now()
	switch r.role {
	case Leader:
		if now.Sub(r.lastHeartbeat) >= HeartbeatInterval {
			r.broadcastHeartbeats()
		}
	case Candidate:
		if now.Sub(r.lastActivity) >= candidateRetryTimeout {
			r.startElection()
		}
	case Follower:
		if now.Sub(r.lastActivity) >= r.electionTimeout {
			r.startElection()
		}
	}
}

// dispatch routes an inbound message on (type, role), matching the table
// in §9's design note: unlisted (role, type) combinations are a silent
// drop, except vote requests, which bumpTermIfHigher and handleVote
// process regardless of role.
func (r *Replica) dispatch(m message.Message) {
	switch m.Type {
	case message.Get:
		r.onGet(m)
	case message.Put:
		r.onPut(m)
	case message.Vote:
		r.handleVote(m)
	case message.VoteAck:
		r.handleVoteAck(m)
	case message.Append:
		r.handleAppend(m)
	case message.AppendAck:
		r.handleAppendAck(m)
	case message.Hello:
		// informational only; no reply required.
	default:
		r.log.Debug("dropping unrecognized message", "type", m.Type, "src", m.Src)
	}
}
