package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkv/raftkv/pkg/message"
)

func TestInProcUnicastDelivery(t *testing.T) {
	bus := NewInProcBus()
	a := NewInProcTransport("a", bus)
	b := NewInProcTransport("b", bus)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send(message.Message{Src: "a", Dst: "b", Type: message.Hello}))

	m, ok, err := b.Recv(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", m.Src)
}

func TestInProcBroadcastExcludesSender(t *testing.T) {
	bus := NewInProcBus()
	a := NewInProcTransport("a", bus)
	b := NewInProcTransport("b", bus)
	c := NewInProcTransport("c", bus)
	defer a.Close()
	defer b.Close()
	defer c.Close()

	require.NoError(t, a.Send(message.Message{Src: "a", Dst: message.BroadcastID, Type: message.Vote}))

	_, ok, _ := b.Recv(time.Second)
	assert.True(t, ok)
	_, ok, _ = c.Recv(time.Second)
	assert.True(t, ok)

	_, ok, _ = a.Recv(50 * time.Millisecond)
	assert.False(t, ok)
}

func TestInProcPartitionBlocksDelivery(t *testing.T) {
	bus := NewInProcBus()
	a := NewInProcTransport("a", bus)
	b := NewInProcTransport("b", bus)
	defer a.Close()
	defer b.Close()

	bus.Partition("b", true)
	require.NoError(t, a.Send(message.Message{Src: "a", Dst: "b", Type: message.Hello}))

	_, ok, _ := b.Recv(100 * time.Millisecond)
	assert.False(t, ok)
}

func TestInProcRecvTimesOutWithoutError(t *testing.T) {
	bus := NewInProcBus()
	a := NewInProcTransport("a", bus)
	defer a.Close()

	_, ok, err := a.Recv(50 * time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestInProcCloseUnblocksRecv(t *testing.T) {
	bus := NewInProcBus()
	a := NewInProcTransport("a", bus)

	done := make(chan struct{})
	go func() {
		_, _, err := a.Recv(time.Second)
		assert.Error(t, err)
		close(done)
	}()

	require.NoError(t, a.Close())
	<-done
}
