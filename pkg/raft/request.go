package raft

import "github.com/quorumkv/raftkv/pkg/message"

// onGet and onPut are the client-facing entry points (§4.4): a Leader
// answers directly, a Follower/Candidate with a known leader redirects,
// and everyone else defers the request until a leader is known.
func (r *Replica) onGet(m message.Message) {
	switch {
	case r.role == Leader:
		r.handleGet(m)
	case r.assumedLeader != message.UnknownLeader:
		r.redirect(m)
	default:
		r.enqueueRequest(m)
	}
}

func (r *Replica) onPut(m message.Message) {
	switch {
	case r.role == Leader:
		r.handlePut(m)
	case r.assumedLeader != message.UnknownLeader:
		r.redirect(m)
	default:
		r.enqueueRequest(m)
	}
}

func (r *Replica) redirect(m message.Message) {
	r.send(message.Message{
		Src:    r.id,
		Dst:    m.Src,
		Leader: r.assumedLeader,
		Type:   message.Redirect,
		MID:    m.MID,
	})
}

// enqueueRequest defers a GET/PUT received while no leader is known
// (§4.4). The queue is a bounded FIFO: once full, the oldest deferred
// request is silently dropped rather than growing without limit — fail
// is reserved and never emitted by this core, so an evicted client gets
// nothing back and is expected to time out and retry, same as any other
// request this core never answers.
func (r *Replica) enqueueRequest(m message.Message) {
	if len(r.requestQueue) >= requestQueueCapacity {
		r.requestQueue = r.requestQueue[1:]
	}
	r.requestQueue = append(r.requestQueue, m)
	r.log.Debug("deferred request queued", "correlation_id", message.NewCorrelationID(), "type", m.Type, "key", m.Key)
}

// flushRequestQueue re-dispatches every deferred request through the
// normal routing path (§4.4): a role or leader change since the request
// was queued may now let it be answered, redirected, or re-queued.
func (r *Replica) flushRequestQueue() {
	pending := r.requestQueue
	r.requestQueue = nil
	for _, m := range pending {
		switch m.Type {
		case message.Get:
			r.onGet(m)
		case message.Put:
			r.onPut(m)
		}
	}
}
