package dispatcher

import (
	"net"
	"strings"

	"redisgo/internal/resp"
	"redisgo/internal/session"
)

func (d *Dispatcher) registerTransactionCommands() {
	d.register("MULTI", cmdMulti)
	d.register("EXEC", cmdExec)
	d.register("DISCARD", cmdDiscard)
}

func cmdMulti(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if sess.InMulti {
		return resp.EncodeError("ERR MULTI calls can not be nested")
	}
	sess.BeginMulti()
	return resp.EncodeSimpleString("OK")
}

func cmdDiscard(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if !sess.InMulti {
		return resp.EncodeError("ERR DISCARD without MULTI")
	}
	sess.Discard()
	return resp.EncodeSimpleString("OK")
}

// cmdExec runs the queued commands in order against the live store,
// bypassing queueing itself, and collects each one's normal reply (error
// replies included) into the result array.
func cmdExec(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if !sess.InMulti {
		return resp.EncodeError("ERR EXEC without MULTI")
	}
	queue := sess.TakeQueue()
	results := make([][]byte, len(queue))
	for i, qc := range queue {
		name := strings.ToUpper(string(qc.Args[0]))
		results[i] = d.executeOne(sess, conn, name, qc.Args)
	}
	return resp.EncodeRawArray(results)
}
