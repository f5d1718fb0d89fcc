package replication

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"redisgo/internal/config"
	"redisgo/internal/resp"
)

func noopLogger() *zap.Logger {
	return zap.NewNop()
}

func TestHandlePSYNCRegistersReplicaAndReturnsFullresync(t *testing.T) {
	m := NewManager(config.RolePrimary, noopLogger())
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := client.Read(buf)
		done <- buf[:n]
	}()

	r, err := m.HandlePSYNC(server)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, 1, m.ReplicaCount())
	written := <-done
	require.True(t, bytes.HasPrefix(written, []byte("+FULLRESYNC "+FixedReplID)))
}

func TestPropagateIncrementsOffsetEvenWithNoReplicas(t *testing.T) {
	m := NewManager(config.RolePrimary, noopLogger())
	frame := resp.EncodeCommand([][]byte{[]byte("SET"), []byte("a"), []byte("b")})
	m.Propagate(frame)
	require.Equal(t, int64(len(frame)), m.PropagatedBytes())
}

func TestWaitReturnsImmediatelyWhenNothingPropagatedYet(t *testing.T) {
	m := NewManager(config.RolePrimary, noopLogger())
	got := m.Wait(0, 50)
	require.Equal(t, 0, got)
}

func TestWaitTimesOutWithUnresponsiveReplica(t *testing.T) {
	m := NewManager(config.RolePrimary, noopLogger())
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	_, _ = m.HandlePSYNC(server)
	frame := resp.EncodeCommand([][]byte{[]byte("SET"), []byte("a"), []byte("b")})
	m.Propagate(frame)

	start := time.Now()
	got := m.Wait(1, 40)
	require.Equal(t, 0, got)
	require.WithinDuration(t, start.Add(40*time.Millisecond), time.Now(), 100*time.Millisecond)
}

func TestUpdateAckSatisfiesWait(t *testing.T) {
	m := NewManager(config.RolePrimary, noopLogger())
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	r, _ := m.HandlePSYNC(server)
	frame := resp.EncodeCommand([][]byte{[]byte("SET"), []byte("a"), []byte("b")})
	m.Propagate(frame)

	go func() {
		time.Sleep(15 * time.Millisecond)
		m.UpdateAck(r, m.PropagatedBytes())
	}()

	got := m.Wait(1, 500)
	require.Equal(t, 1, got)
}
