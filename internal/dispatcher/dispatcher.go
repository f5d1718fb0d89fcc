// Package dispatcher routes a decoded command array to its handler: the
// command table, transaction-queue interception, and post-command
// propagation hand-off to the replication component.
package dispatcher

import (
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	"redisgo/internal/blocking"
	"redisgo/internal/config"
	"redisgo/internal/replication"
	"redisgo/internal/resp"
	"redisgo/internal/session"
	"redisgo/internal/store"
)

// handlerFunc implements one command. conn is only needed by PSYNC, which
// must register the raw connection with the replication manager.
type handlerFunc func(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte

// mutating is the fixed set of commands whose successful execution on a
// primary must be re-propagated to replicas. BLPOP is deliberately absent:
// only the commands named here trigger propagation, even though BLPOP
// performs a pop internally.
var mutating = map[string]bool{
	"SET":   true,
	"INCR":  true,
	"RPUSH": true,
	"LPUSH": true,
	"LPOP":  true,
	"XADD":  true,
}

// Dispatcher holds the shared server components and the command table built
// from them.
type Dispatcher struct {
	Store *store.Store
	Repl  *replication.Manager
	Coord *blocking.Coordinator
	Cfg   *config.Config

	logger   *zap.Logger
	handlers map[string]handlerFunc
}

func New(st *store.Store, repl *replication.Manager, cfg *config.Config, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		Store:  st,
		Repl:   repl,
		Coord:  blocking.New(),
		Cfg:    cfg,
		logger: logger.Named("dispatcher"),
	}
	d.handlers = make(map[string]handlerFunc)
	d.registerStringCommands()
	d.registerListCommands()
	d.registerStreamCommands()
	d.registerTransactionCommands()
	d.registerReplicationCommands()
	return d
}

func (d *Dispatcher) register(name string, h handlerFunc) {
	d.handlers[name] = h
}

// Dispatch is the entry point for one decoded command arriving on conn.
// Transaction-queue interception happens here, before the command table is
// consulted.
func (d *Dispatcher) Dispatch(sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) == 0 {
		return nil
	}
	name := strings.ToUpper(string(args[0]))

	if sess.InMulti && !isTransactionControl(name) {
		sess.Enqueue(args)
		return resp.EncodeSimpleString("QUEUED")
	}

	return d.executeOne(sess, conn, name, args)
}

func isTransactionControl(name string) bool {
	return name == "MULTI" || name == "EXEC" || name == "DISCARD"
}

// executeOne runs a single command against the live store, bypassing
// transaction queueing. EXEC calls this directly for each of its queued
// commands.
func (d *Dispatcher) executeOne(sess *session.Session, conn net.Conn, name string, args [][]byte) []byte {
	h, ok := d.handlers[name]
	if !ok {
		return resp.EncodeError(fmt.Sprintf("ERR unknown command '%s'", name))
	}

	reply := h(d, sess, conn, args)

	if d.Repl.IsPrimary() && mutating[name] && !isErrorReply(reply) {
		d.Repl.Propagate(resp.EncodeCommand(args))
	}

	return reply
}

func isErrorReply(reply []byte) bool {
	return len(reply) > 0 && reply[0] == '-'
}

func arityError(name string) []byte {
	return resp.EncodeError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
}
