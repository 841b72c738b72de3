package raft

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/quorumkv/raftkv/pkg/kvstore"
	"github.com/quorumkv/raftkv/pkg/message"
	"github.com/quorumkv/raftkv/pkg/transport"
)

const (
	// HeartbeatInterval must stay strictly below the minimum election
	// timeout (§5) so a live leader is never mistaken for a dead one.
	HeartbeatInterval = 250 * time.Millisecond

	electionTimeoutMin = 500 * time.Millisecond
	electionTimeoutMax = 1000 * time.Millisecond

	// candidateRetryTimeout is the "election_timeout_const" (§5) a
	// Candidate uses instead of its own randomized election_timeout while
	// waiting on an inconclusive election.
	candidateRetryTimeout = 1 * time.Second

	requestQueueCapacity = 256
)

// Replica is a single node's consensus core: role/term bookkeeping, the
// replicated log, the derived state machine, and the client-facing request
// router, all mutated only from the single goroutine running Run.
type Replica struct {
	id    string
	peers []string // other replica ids, excludes self

	transport transport.Transport
	storage   Storage
	values    *kvstore.Store
	log       *slog.Logger

	role          Role
	term          uint64
	votedFor      string
	assumedLeader string

	entries     []LogEntry
	commitIndex int64 // -1 means none committed

	matchIndex  map[string]int64 // leader only
	pendingPuts map[string]bool // leader only; true = awaiting an ok

	votesForMe   int // candidate only
	votesTotal   int // candidate only

	requestQueue []message.Message

	lastActivity    time.Time
	electionTimeout time.Duration
	lastHeartbeat   time.Time

	statusCh chan chan Status
	stopCh   chan struct{}
	done     chan struct{}
}

// New constructs a replica born Follower. With empty storage it starts at
// term 0 with an empty log, per §3's lifecycle; otherwise term, voted_for
// and the log are loaded from st.
func New(id string, peers []string, t transport.Transport, st Storage, values *kvstore.Store, logger *slog.Logger) *Replica {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Replica{
		id:            id,
		peers:         peers,
		transport:     t,
		storage:       st,
		values:        values,
		log:           logger.With("replica", id),
		role:          Follower,
		assumedLeader: message.UnknownLeader,
		commitIndex:   -1,
		pendingPuts:   make(map[string]bool),
		statusCh:      make(chan chan Status),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	r.electionTimeout = randomElectionTimeout()

	term, votedFor, entries, err := st.Load()
	if err != nil {
		r.log.Warn("failed to load persisted state, starting fresh", "err", err)
	} else {
		// A persisted entry was merely appended, never confirmed committed.
		// commit_index stays at -1 and only the ordinary Append/commit
		// protocol (a leader's leader_commit, or a fresh majority-replication
		// round) is allowed to advance it and apply entries into values.
		r.term, r.votedFor, r.entries = term, votedFor, entries
	}
	r.lastActivity = time.Now()
	return r
}

func randomElectionTimeout() time.Duration {
	span := electionTimeoutMax - electionTimeoutMin
	return electionTimeoutMin + time.Duration(rand.Int63n(int64(span)))
}

// Status is a read-only snapshot of replica state for the debug API. It is
// produced only from inside Run's loop, so it never races with a mutation.
type Status struct {
	ID            string
	Role          string
	Term          uint64
	VotedFor      string
	AssumedLeader string
	CommitIndex   int64
	LogLength     int
	Peers         []string
	MatchIndex    map[string]int64
}

func (r *Replica) snapshot() Status {
	var match map[string]int64
	if r.role == Leader {
		match = make(map[string]int64, len(r.matchIndex))
		for k, v := range r.matchIndex {
			match[k] = v
		}
	}
	return Status{
		ID:            r.id,
		Role:          r.role.String(),
		Term:          r.term,
		VotedFor:      r.votedFor,
		AssumedLeader: r.assumedLeader,
		CommitIndex:   r.commitIndex,
		LogLength:     len(r.entries),
		Peers:         append([]string{}, r.peers...),
		MatchIndex:    match,
	}
}

// Status blocks until the running loop services the request. Safe to call
// from any goroutine (the debug API's HTTP handlers).
func (r *Replica) Status() Status {
	reply := make(chan Status, 1)
	select {
	case r.statusCh <- reply:
		return <-reply
	case <-r.done:
		return Status{ID: r.id, Role: "stopped"}
	}
}

// Close stops the event loop and waits for it to exit.
func (r *Replica) Close() error {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	<-r.done
	return r.storage.Close()
}

func (r *Replica) majority() int {
	return (len(r.peers)+1)/2 + 1
}

// send emits one outbound message. Outbound failures are logged, never
// fatal (§7): a peer being unreachable is an ordinary, expected condition
// over a lossy transport.
func (r *Replica) send(m message.Message) {
	if err := r.transport.Send(m); err != nil {
		r.log.Debug("send failed", "dst", m.Dst, "type", m.Type, "err", err)
	}
}
