// Package cluster wires a set of in-process replicas onto a shared
// InProcBus for tests and local experimentation: the same Replica and
// Storage code a real daemon runs, driven over a fake network that can
// inject drops, delay, and partitions on demand.
package cluster

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/quorumkv/raftkv/pkg/kvstore"
	"github.com/quorumkv/raftkv/pkg/raft"
	"github.com/quorumkv/raftkv/pkg/storage"
	"github.com/quorumkv/raftkv/pkg/transport"
)

// node bundles one simulated replica together with the pieces a test
// needs direct access to: its committed state and its transport handle,
// for crash/restart and partition injection.
type node struct {
	id        string
	replica   *raft.Replica
	values    *kvstore.Store
	transport *transport.InProcTransport
}

// Cluster runs a fixed set of replica ids against one InProcBus.
type Cluster struct {
	bus   *transport.InProcBus
	ids   []string
	nodes map[string]*node
	log   *slog.Logger
}

func New(ids []string) *Cluster {
	c := &Cluster{
		bus:   transport.NewInProcBus(),
		ids:   append([]string{}, ids...),
		nodes: make(map[string]*node, len(ids)),
		log:   slog.Default(),
	}
	for _, id := range ids {
		c.spawn(id)
	}
	return c
}

func (c *Cluster) peersOf(id string) []string {
	var peers []string
	for _, other := range c.ids {
		if other != id {
			peers = append(peers, other)
		}
	}
	return peers
}

func (c *Cluster) spawn(id string) {
	t := transport.NewInProcTransport(id, c.bus)
	values := kvstore.New()
	st := storage.NewMemory()
	r := raft.New(id, c.peersOf(id), t, st, values, c.log.With("node", id))
	c.nodes[id] = &node{id: id, replica: r, values: values, transport: t}
}

// Start launches every replica's event loop in its own goroutine.
func (c *Cluster) Start() {
	for _, n := range c.nodes {
		go n.replica.Run()
	}
}

// Stop closes every replica's event loop and storage. Transports stay
// registered on the bus.
func (c *Cluster) Stop() {
	for _, n := range c.nodes {
		_ = n.replica.Close()
	}
}

func (c *Cluster) Replica(id string) *raft.Replica {
	n, ok := c.nodes[id]
	if !ok {
		return nil
	}
	return n.replica
}

// Client registers a transport handle on the cluster's bus for a
// simulated client with the given id, so tests can send GET/PUT
// messages the same way a real client would over UDP.
func (c *Cluster) Client(id string) *transport.InProcTransport {
	return transport.NewInProcTransport(id, c.bus)
}

func (c *Cluster) Values(id string) *kvstore.Store {
	n, ok := c.nodes[id]
	if !ok {
		return nil
	}
	return n.values
}

// Partition isolates or restores id's connectivity to every other node.
func (c *Cluster) Partition(id string, isolated bool) {
	c.bus.Partition(id, isolated)
}

func (c *Cluster) SetDropRate(rate float64) {
	c.bus.SetDropRate(rate)
}

func (c *Cluster) SetDelay(min, max time.Duration) {
	c.bus.SetDelay(min, max)
}

// Crash stops one replica's event loop without removing it from the
// cluster's bookkeeping, so Restart can bring it back under the same id.
func (c *Cluster) Crash(id string) error {
	n, ok := c.nodes[id]
	if !ok {
		return fmt.Errorf("unknown node %q", id)
	}
	return n.replica.Close()
}

// Restart re-spawns id with a fresh Memory store, a fresh kvstore and a
// new transport, then starts its event loop again. Nothing from before the
// crash is recovered: the node comes back at term 0 with an empty log.
func (c *Cluster) Restart(id string) error {
	c.spawn(id)
	go c.nodes[id].replica.Run()
	return nil
}

// WaitForLeader polls every node's Status until one reports itself
// Leader for some term, or timeout elapses.
func (c *Cluster) WaitForLeader(timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for id, n := range c.nodes {
			if n.replica.Status().Role == "leader" {
				return id, true
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return "", false
}
