package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkv/raftkv/pkg/message"
)

func TestUDPTransportLearnsSenderAddressForReply(t *testing.T) {
	server, err := NewUDPTransport(0, nil)
	require.NoError(t, err)
	defer server.Close()

	client, err := NewUDPTransport(0, map[string]string{
		"server": server.conn.LocalAddr().String(),
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(message.Message{Src: "C1", Dst: "server", Type: message.Get, Key: "x"}))

	got, ok, err := server.Recv(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C1", got.Src)

	// The server never had "C1" in its static peers map; it must have
	// learned the return address from the inbound datagram above.
	err = server.Send(message.Message{Src: "server", Dst: "C1", Type: message.Ok, MID: got.MID})
	require.NoError(t, err)

	reply, ok, err := client.Recv(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, message.Ok, reply.Type)
}

func TestUDPTransportSendToUnknownDestinationFails(t *testing.T) {
	server, err := NewUDPTransport(0, nil)
	require.NoError(t, err)
	defer server.Close()

	err = server.Send(message.Message{Src: "server", Dst: "nobody", Type: message.Ok})
	assert.Error(t, err)
}
