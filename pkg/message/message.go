// Package message defines the wire format exchanged between replicas and
// clients: one JSON object per datagram, tagged by type.
package message

import (
	"encoding/json"

	"github.com/google/uuid"
)

// BroadcastID is the destination used by a replica to reach every peer at
// once (a real UDP transport fans this out to each known peer address).
const BroadcastID = "FFFF"

// UnknownLeader is the sentinel leader id before any replica has observed
// a leader for the current term.
const UnknownLeader = "FFFF"

type Type string

const (
	Hello     Type = "hello"
	Get       Type = "get"
	Put       Type = "put"
	Ok        Type = "ok"
	Redirect  Type = "redirect"
	Fail      Type = "fail"
	Vote      Type = "vote"
	VoteAck   Type = "vote ack"
	Append    Type = "append"
	AppendAck Type = "ack"
)

// Entry mirrors raft.LogEntry on the wire: the fields a peer needs to
// reconstruct a log entry it didn't originate.
type Entry struct {
	Term   uint64 `json:"term"`
	Key    string `json:"key"`
	Value  string `json:"value"`
	MID    string `json:"MID"`
	Putter string `json:"putter"`
}

// Message is the envelope every datagram carries, decoded once by the
// transport and then dispatched on (role, Type).
type Message struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Leader string `json:"leader"`
	Type   Type   `json:"type"`

	// client <-> replica
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	MID   string `json:"MID,omitempty"`

	// candidate -> broadcast (vote)
	Term          uint64 `json:"term,omitempty"`
	CandidateID   string `json:"candidateId,omitempty"`
	LastLogIndex  int64  `json:"lastLogIndex,omitempty"`
	LastLogTerm   uint64 `json:"lastLogTerm,omitempty"`

	// replica -> candidate (vote ack)
	VoteGranted bool `json:"voteGranted,omitempty"`

	// leader -> peer (append)
	PrevLogIndex int64   `json:"prev_log_index,omitempty"`
	PrevLogTerm  uint64  `json:"prev_log_term,omitempty"`
	Entries      []Entry `json:"entries,omitempty"`
	LeaderCommit int64   `json:"leader_commit,omitempty"`

	// peer -> leader (ack)
	Success       bool  `json:"success,omitempty"`
	ConfirmedIndex int64 `json:"confirmed_index,omitempty"`

	// hello: a fresh value per announcement, lets a listener tell a
	// restarted replica apart from one that has been up the whole time.
	Nonce string `json:"nonce,omitempty"`
}

// NewNonce generates the value a replica's hello announcement carries.
func NewNonce() string {
	return uuid.NewString()
}

// NewCorrelationID generates an internal id for tracking one deferred
// request through the request queue in logs; it never appears on the
// wire, and is distinct from the client-assigned MID.
func NewCorrelationID() string {
	return uuid.NewString()
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Decode(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}
