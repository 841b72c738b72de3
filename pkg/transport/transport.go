// Package transport delivers the tagged message.Message envelope over a
// datagram-shaped channel: UDPTransport for a real process, InProcTransport
// for the simulator and tests. Framing and socket mechanics are treated as
// an external concern; both implementations satisfy the same interface so
// the consensus core never knows which one it's talking to.
package transport

import (
	"time"

	"github.com/quorumkv/raftkv/pkg/message"
)

// Transport is what pkg/raft's event loop drives every iteration: send a
// message, and wait up to a bound for the next inbound one.
type Transport interface {
	Send(m message.Message) error
	// Recv blocks for up to timeout waiting for an inbound message. ok is
	// false on timeout; it is never an error condition.
	Recv(timeout time.Duration) (m message.Message, ok bool, err error)
	Close() error
}

