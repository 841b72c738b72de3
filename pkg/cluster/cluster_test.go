package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkv/raftkv/pkg/message"
)

func newRunningCluster(t *testing.T, ids []string) *Cluster {
	t.Helper()
	c := New(ids)
	c.Start()
	t.Cleanup(c.Stop)
	return c
}

func TestLeaderElectsWithinTimeout(t *testing.T) {
	c := newRunningCluster(t, []string{"0000", "0001", "0002"})

	leader, ok := c.WaitForLeader(3 * time.Second)
	require.True(t, ok)
	assert.Contains(t, []string{"0000", "0001", "0002"}, leader)
}

func TestNewLeaderElectedAfterPartitioningOldLeader(t *testing.T) {
	c := newRunningCluster(t, []string{"0000", "0001", "0002"})

	oldLeader, ok := c.WaitForLeader(3 * time.Second)
	require.True(t, ok)

	c.Partition(oldLeader, true)

	var newLeader string
	require.Eventually(t, func() bool {
		for _, id := range []string{"0000", "0001", "0002"} {
			if id == oldLeader {
				continue
			}
			if c.Replica(id).Status().Role == "leader" {
				newLeader = id
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
	assert.NotEqual(t, oldLeader, newLeader)
}

func TestPutIsReadableViaGetAfterCommit(t *testing.T) {
	c := newRunningCluster(t, []string{"0000", "0001", "0002"})
	leaderID, ok := c.WaitForLeader(3 * time.Second)
	require.True(t, ok)

	client := c.Client("C1")
	defer client.Close()
	require.NoError(t, client.Send(message.Message{Src: "C1", Dst: leaderID, Type: message.Put, Key: "x", Value: "42", MID: "mid-1"}))

	require.Eventually(t, func() bool {
		return c.Values(leaderID).Get("x") == "42"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPutReplicatesToFollowers(t *testing.T) {
	c := newRunningCluster(t, []string{"0000", "0001", "0002"})
	leaderID, ok := c.WaitForLeader(3 * time.Second)
	require.True(t, ok)

	client := c.Client("C1")
	defer client.Close()
	require.NoError(t, client.Send(message.Message{Src: "C1", Dst: leaderID, Type: message.Put, Key: "x", Value: "7", MID: "mid-1"}))

	for _, id := range []string{"0000", "0001", "0002"} {
		id := id
		require.Eventually(t, func() bool {
			return c.Values(id).Get("x") == "7"
		}, 2*time.Second, 10*time.Millisecond, "follower %s should converge", id)
	}
}

// TestPartitionedFollowerHealsAfterCommitsItMissed exercises catch-up of a
// lagging follower: one follower is cut off while the remaining
// leader+follower majority keeps committing, then the partition heals and
// the straggler must catch up to the latest value without ever observing a
// value the majority didn't commit. The straggler never acknowledged an
// entry, so its match_index is still -1 and the first Append after healing
// carries the whole log.
func TestPartitionedFollowerHealsAfterCommitsItMissed(t *testing.T) {
	c := newRunningCluster(t, []string{"0000", "0001", "0002"})
	leaderID, ok := c.WaitForLeader(3 * time.Second)
	require.True(t, ok)

	var stale string
	for _, id := range []string{"0000", "0001", "0002"} {
		if id != leaderID {
			stale = id
			break
		}
	}

	c.Partition(stale, true)

	client := c.Client("C1")
	defer client.Close()
	require.NoError(t, client.Send(message.Message{Src: "C1", Dst: leaderID, Type: message.Put, Key: "x", Value: "1", MID: "mid-1"}))
	require.Eventually(t, func() bool {
		return c.Values(leaderID).Get("x") == "1"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Send(message.Message{Src: "C1", Dst: leaderID, Type: message.Put, Key: "x", Value: "2", MID: "mid-2"}))
	require.Eventually(t, func() bool {
		return c.Values(leaderID).Get("x") == "2"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, c.Values(stale).Get("x"), "the partitioned follower must not have seen commits made without it")

	c.Partition(stale, false)

	require.NoError(t, client.Send(message.Message{Src: "C1", Dst: leaderID, Type: message.Put, Key: "x", Value: "3", MID: "mid-3"}))

	for _, id := range []string{"0000", "0001", "0002"} {
		id := id
		require.Eventually(t, func() bool {
			return c.Values(id).Get("x") == "3"
		}, 3*time.Second, 10*time.Millisecond, "node %s should converge after healing", id)
	}
}
