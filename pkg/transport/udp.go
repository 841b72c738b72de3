package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/quorumkv/raftkv/pkg/message"
)

// UDPTransport is the production Transport: one JSON object per UDP
// datagram, as required by the wire format (§6). A broadcast destination
// is faned out to every known peer address; the raw socket read loop and
// datagram framing are otherwise exactly the external collaborator the
// spec assumes.
//
// peers holds the statically configured replica addresses from -peers.
// Clients are never in that map, so every inbound datagram's sender
// address is learned and remembered under its src id, letting a reply
// addressed back to a client id (ok/redirect) actually find a socket
// address to write to.
type UDPTransport struct {
	conn  *net.UDPConn
	peers map[string]*net.UDPAddr // peer id -> address, excludes self

	mu      sync.RWMutex
	learned map[string]*net.UDPAddr // sender id -> last address seen from it
}

// NewUDPTransport binds a UDP socket on port and resolves peerAddrs (id ->
// "host:port") for outbound sends.
func NewUDPTransport(port int, peerAddrs map[string]string) (*UDPTransport, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	peers := make(map[string]*net.UDPAddr, len(peerAddrs))
	for id, addr := range peerAddrs {
		resolved, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			conn.Close()
			return nil, err
		}
		peers[id] = resolved
	}
	return &UDPTransport{conn: conn, peers: peers, learned: make(map[string]*net.UDPAddr)}, nil
}

func (t *UDPTransport) resolve(id string) (*net.UDPAddr, bool) {
	if addr, ok := t.peers[id]; ok {
		return addr, true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	addr, ok := t.learned[id]
	return addr, ok
}

func (t *UDPTransport) Send(m message.Message) error {
	b, err := message.Encode(m)
	if err != nil {
		return err
	}
	if m.Dst == message.BroadcastID {
		for id, addr := range t.peers {
			if id == m.Src {
				continue
			}
			// Best-effort fan-out: one dead peer must not block the rest.
			t.conn.WriteToUDP(b, addr)
		}
		return nil
	}
	addr, ok := t.resolve(m.Dst)
	if !ok {
		return errors.New("unknown destination: " + m.Dst)
	}
	_, err = t.conn.WriteToUDP(b, addr)
	return err
}

func (t *UDPTransport) Recv(timeout time.Duration) (message.Message, bool, error) {
	buf := make([]byte, 64*1024)
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return message.Message{}, false, err
	}
	n, from, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return message.Message{}, false, nil
		}
		return message.Message{}, false, err
	}
	m, err := message.Decode(buf[:n])
	if err != nil {
		// Malformed datagram: dropped, not fatal (§7).
		return message.Message{}, false, nil
	}
	if m.Src != "" {
		t.mu.Lock()
		t.learned[m.Src] = from
		t.mu.Unlock()
	}
	return m, true, nil
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
