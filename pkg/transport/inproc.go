package transport

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/quorumkv/raftkv/pkg/message"
)

// InProcBus is the shared fabric a Cluster wires every replica's
// InProcTransport into. It delivers a Message to one mailbox (unicast) or
// every mailbox but the sender's (broadcast), honoring the same
// drop/delay/partition knobs the simulator exposes to tests.
type InProcBus struct {
	mu         sync.RWMutex
	mailboxes  map[string]chan message.Message
	dropRate   float64
	delayMin   time.Duration
	delayMax   time.Duration
	partitions map[string]bool
}

func NewInProcBus() *InProcBus {
	return &InProcBus{
		mailboxes:  make(map[string]chan message.Message),
		partitions: make(map[string]bool),
	}
}

func (b *InProcBus) Register(id string) chan message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan message.Message, 256)
	b.mailboxes[id] = ch
	return ch
}

func (b *InProcBus) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.mailboxes, id)
}

func (b *InProcBus) SetDropRate(rate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropRate = rate
}

func (b *InProcBus) SetDelay(min, max time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delayMin, b.delayMax = min, max
}

// Partition marks id as unable to send or receive any datagram while
// isolated is true, simulating a network partition.
func (b *InProcBus) Partition(id string, isolated bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partitions[id] = isolated
}

func (b *InProcBus) isolated(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.partitions[id]
}

func (b *InProcBus) deliver(to string, m message.Message) {
	b.mu.RLock()
	dropRate := b.dropRate
	delayMin, delayMax := b.delayMin, b.delayMax
	ch, ok := b.mailboxes[to]
	b.mu.RUnlock()
	if !ok {
		return
	}
	if b.isolated(m.Src) || b.isolated(to) {
		return
	}
	if dropRate > 0 && rand.Float64() < dropRate {
		return
	}
	if delayMax > delayMin {
		time.Sleep(delayMin + time.Duration(rand.Int63n(int64(delayMax-delayMin))))
	} else if delayMin > 0 {
		time.Sleep(delayMin)
	}
	select {
	case ch <- m:
	default:
	}
}

func (b *InProcBus) Send(m message.Message) error {
	if m.Dst == message.BroadcastID {
		b.mu.RLock()
		targets := make([]string, 0, len(b.mailboxes))
		for id := range b.mailboxes {
			if id != m.Src {
				targets = append(targets, id)
			}
		}
		b.mu.RUnlock()
		for _, to := range targets {
			go b.deliver(to, m)
		}
		return nil
	}
	go b.deliver(m.Dst, m)
	return nil
}

// InProcTransport is the Transport a Cluster hands each simulated replica:
// one mailbox on a shared InProcBus.
type InProcTransport struct {
	id      string
	bus     *InProcBus
	mailbox chan message.Message
	closed  chan struct{}
}

func NewInProcTransport(id string, bus *InProcBus) *InProcTransport {
	return &InProcTransport{
		id:      id,
		bus:     bus,
		mailbox: bus.Register(id),
		closed:  make(chan struct{}),
	}
}

func (t *InProcTransport) Send(m message.Message) error {
	select {
	case <-t.closed:
		return errors.New("transport closed")
	default:
	}
	return t.bus.Send(m)
}

func (t *InProcTransport) Recv(timeout time.Duration) (message.Message, bool, error) {
	select {
	case m, ok := <-t.mailbox:
		if !ok {
			return message.Message{}, false, errors.New("transport closed")
		}
		return m, true, nil
	case <-time.After(timeout):
		return message.Message{}, false, nil
	case <-t.closed:
		return message.Message{}, false, errors.New("transport closed")
	}
}

func (t *InProcTransport) Close() error {
	select {
	case <-t.closed:
		return nil
	default:
		close(t.closed)
		t.bus.Unregister(t.id)
		return nil
	}
}
