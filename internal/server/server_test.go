package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"redisgo/internal/config"
	"redisgo/internal/resp"
)

func newTestServer() *Server {
	return New(&config.Config{Role: config.RolePrimary}, zap.NewNop())
}

func TestHandleConnectionRoundTripsSetAndGet(t *testing.T) {
	s := newTestServer()
	client, conn := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		s.handleConnection(conn)
		close(done)
	}()

	write := func(args ...string) {
		enc := make([][]byte, len(args))
		for i, a := range args {
			enc[i] = []byte(a)
		}
		_, err := client.Write(resp.EncodeCommand(enc))
		require.NoError(t, err)
	}
	readReply := func() []byte {
		buf := make([]byte, 4096)
		client.SetReadDeadline(time.Now().Add(time.Second))
		n, err := client.Read(buf)
		require.NoError(t, err)
		return buf[:n]
	}

	write("SET", "k", "v")
	require.Equal(t, []byte("+OK\r\n"), readReply())

	write("GET", "k")
	require.Equal(t, []byte("$1\r\nv\r\n"), readReply())

	client.Close()
	<-done
}

func TestLoadSnapshotOnMissingFileIsNotAnError(t *testing.T) {
	s := New(&config.Config{Role: config.RolePrimary, Dir: "/nonexistent", DBFilename: "dump.rdb"}, zap.NewNop())
	require.NoError(t, s.LoadSnapshot())
}
