package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"redisgo/internal/config"
	"redisgo/internal/replication"
	"redisgo/internal/session"
	"redisgo/internal/store"
)

func newTestDispatcher(role config.Role) *Dispatcher {
	return New(store.New(), replication.NewManager(role, zap.NewNop()), &config.Config{}, zap.NewNop())
}

func cmd(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func TestPingRepliesPong(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	require.Equal(t, []byte("+PONG\r\n"), d.Dispatch(sess, nil, cmd("PING")))
}

func TestPingSuppressedOnReplicaLink(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	sess.FromMaster = true
	require.Nil(t, d.Dispatch(sess, nil, cmd("PING")))
}

func TestSetGetRoundTrip(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	require.Equal(t, []byte("+OK\r\n"), d.Dispatch(sess, nil, cmd("SET", "k", "v")))
	require.Equal(t, []byte("$1\r\nv\r\n"), d.Dispatch(sess, nil, cmd("GET", "k")))
}

func TestGetMissingKeyReturnsNullBulk(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	require.Equal(t, []byte("$-1\r\n"), d.Dispatch(sess, nil, cmd("GET", "missing")))
}

func TestIncrOnNonIntegerErrors(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	d.Dispatch(sess, nil, cmd("SET", "k", "notanumber"))
	reply := d.Dispatch(sess, nil, cmd("INCR", "k"))
	require.Contains(t, string(reply), "ERR value is not an integer")
}

func TestMultiQueuesThenExecRunsInOrder(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()

	require.Equal(t, []byte("+OK\r\n"), d.Dispatch(sess, nil, cmd("MULTI")))
	require.Equal(t, []byte("+QUEUED\r\n"), d.Dispatch(sess, nil, cmd("SET", "k", "1")))
	require.Equal(t, []byte("+QUEUED\r\n"), d.Dispatch(sess, nil, cmd("INCR", "k")))

	reply := d.Dispatch(sess, nil, cmd("EXEC"))
	require.Equal(t, []byte("*2\r\n+OK\r\n:2\r\n"), reply)
	require.False(t, sess.InMulti)
}

func TestNestedMultiErrors(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	d.Dispatch(sess, nil, cmd("MULTI"))
	reply := d.Dispatch(sess, nil, cmd("MULTI"))
	require.Contains(t, string(reply), "ERR MULTI calls can not be nested")
}

func TestExecWithoutMultiErrors(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	reply := d.Dispatch(sess, nil, cmd("EXEC"))
	require.Contains(t, string(reply), "ERR EXEC without MULTI")
}

func TestDiscardEmptiesQueue(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	d.Dispatch(sess, nil, cmd("MULTI"))
	d.Dispatch(sess, nil, cmd("SET", "k", "1"))
	reply := d.Dispatch(sess, nil, cmd("DISCARD"))
	require.Equal(t, []byte("+OK\r\n"), reply)
	_, ok := d.Store.Get("k")
	require.False(t, ok)
}

func TestExecResultIncludesQueuedCommandError(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	d.Dispatch(sess, nil, cmd("MULTI"))
	d.Dispatch(sess, nil, cmd("LPUSH", "k", "a"))
	d.Dispatch(sess, nil, cmd("INCR", "k")) // wrong type, queued anyway
	reply := d.Dispatch(sess, nil, cmd("EXEC"))
	require.Contains(t, string(reply), "WRONGTYPE")
}

func TestBLPopPopsImmediatelyWhenNonEmpty(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	d.Dispatch(sess, nil, cmd("RPUSH", "k", "a"))
	reply := d.Dispatch(sess, nil, cmd("BLPOP", "k", "0"))
	require.Equal(t, []byte("*2\r\n$1\r\nk\r\n$1\r\na\r\n"), reply)
}

func TestBLPopTimesOutOnEmptyList(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	reply := d.Dispatch(sess, nil, cmd("BLPOP", "k", "0.02"))
	require.Equal(t, []byte("$-1\r\n"), reply)
}

func TestSetPropagatesOnPrimary(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	d.Dispatch(sess, nil, cmd("SET", "k", "v"))
	require.Greater(t, d.Repl.PropagatedBytes(), int64(0))
}

func TestBlpopDoesNotPropagate(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	d.Dispatch(sess, nil, cmd("RPUSH", "k", "a"))
	before := d.Repl.PropagatedBytes()
	d.Dispatch(sess, nil, cmd("BLPOP", "k", "0"))
	require.Equal(t, before, d.Repl.PropagatedBytes())
}

func TestUnknownCommandErrors(t *testing.T) {
	d := newTestDispatcher(config.RolePrimary)
	sess := session.New()
	reply := d.Dispatch(sess, nil, cmd("BOGUS"))
	require.Contains(t, string(reply), "ERR unknown command")
}
