package dispatcher

import (
	"net"
	"strconv"
	"strings"

	"redisgo/internal/resp"
	"redisgo/internal/session"
)

func (d *Dispatcher) registerReplicationCommands() {
	d.register("REPLCONF", cmdReplconf)
	d.register("PSYNC", cmdPsync)
	d.register("WAIT", cmdWait)
}

// cmdReplconf handles the three inbound subcommands a primary expects:
// listening-port and capa are acknowledged with +OK; ACK updates the
// sending replica's offset and produces no reply at all.
func cmdReplconf(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) < 2 {
		return arityError("REPLCONF")
	}
	sub := strings.ToUpper(string(args[1]))

	switch sub {
	case "ACK":
		if len(args) != 3 {
			return arityError("REPLCONF")
		}
		offset, err := strconv.ParseInt(string(args[2]), 10, 64)
		if err != nil {
			return resp.EncodeError("ERR invalid ack offset")
		}
		d.Repl.UpdateAck(sess.Replica, offset)
		return nil
	default:
		return resp.EncodeSimpleString("OK")
	}
}

// cmdPsync performs the primary-side handshake: register the connection as
// a replica descriptor and write FULLRESYNC followed by the raw RDB payload
// straight to the socket, ahead of any later propagated frame. There is
// nothing left for the connection loop to write back.
func cmdPsync(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	replica, err := d.Repl.HandlePSYNC(conn)
	if err != nil {
		return resp.EncodeError("ERR PSYNC handshake failed")
	}
	sess.Replica = replica
	return nil
}

func cmdWait(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 3 {
		return arityError("WAIT")
	}
	n, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.EncodeError("ERR value is not an integer or out of range")
	}
	timeoutMs, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.EncodeError("ERR value is not an integer or out of range")
	}
	count := d.Repl.Wait(n, timeoutMs)
	return resp.EncodeInteger(int64(count))
}
