package dispatcher

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"redisgo/internal/replication"
	"redisgo/internal/resp"
	"redisgo/internal/session"
)

func (d *Dispatcher) registerStringCommands() {
	d.register("PING", cmdPing)
	d.register("ECHO", cmdEcho)
	d.register("SET", cmdSet)
	d.register("GET", cmdGet)
	d.register("INCR", cmdIncr)
	d.register("TYPE", cmdType)
	d.register("KEYS", cmdKeys)
	d.register("CONFIG", cmdConfig)
	d.register("INFO", cmdInfo)
	d.register("COMMAND", cmdCommand)
}

// cmdPing never replies to a PING arriving over the replication link — a
// replica applying its primary's stream passes a session with FromMaster
// set and the caller discards the return value anyway, but the check keeps
// the handler correct in isolation.
func cmdPing(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if sess.FromMaster {
		return nil
	}
	return resp.EncodeSimpleString("PONG")
}

func cmdEcho(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 2 {
		return arityError("ECHO")
	}
	return resp.EncodeBulkString(args[1])
}

func cmdSet(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 3 && len(args) != 5 {
		return arityError("SET")
	}
	key, value := string(args[1]), args[2]

	var expiry *time.Time
	if len(args) == 5 {
		if !strings.EqualFold(string(args[3]), "PX") {
			return resp.EncodeError("ERR syntax error")
		}
		ms, err := strconv.ParseInt(string(args[4]), 10, 64)
		if err != nil {
			return resp.EncodeError("ERR value is not an integer or out of range")
		}
		at := time.Now().Add(time.Duration(ms) * time.Millisecond)
		expiry = &at
	}

	d.Store.SetString(key, value, expiry)
	return resp.EncodeSimpleString("OK")
}

func cmdGet(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 2 {
		return arityError("GET")
	}
	value, ok := d.Store.Get(string(args[1]))
	if !ok {
		return resp.EncodeNullBulk()
	}
	return resp.EncodeBulkString(value)
}

func cmdIncr(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 2 {
		return arityError("INCR")
	}
	next, err := d.Store.Incr(string(args[1]))
	if err != nil {
		return resp.EncodeError(err.Error())
	}
	return resp.EncodeInteger(next)
}

func cmdType(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 2 {
		return arityError("TYPE")
	}
	return resp.EncodeSimpleString(d.Store.TypeOf(string(args[1])))
}

func cmdKeys(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 2 {
		return arityError("KEYS")
	}
	keys := d.Store.Keys(string(args[1]))
	items := make([][]byte, len(keys))
	for i, k := range keys {
		items[i] = []byte(k)
	}
	return resp.EncodeBulkArray(items)
}

func cmdConfig(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 3 || !strings.EqualFold(string(args[1]), "GET") {
		return resp.EncodeError("ERR unsupported CONFIG subcommand")
	}
	name := strings.ToLower(string(args[2]))
	var value string
	switch name {
	case "dir":
		value = d.Cfg.Dir
	case "dbfilename":
		value = d.Cfg.DBFilename
	default:
		return resp.EncodeBulkArray(nil)
	}
	return resp.EncodeBulkArray([][]byte{[]byte(name), []byte(value)})
}

func cmdInfo(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	info := fmt.Sprintf(
		"# Replication\r\nrole:%s\r\nmaster_repl_offset:%d\r\nmaster_replid:%s\r\n",
		d.Repl.Role(), d.Repl.PropagatedBytes(), replication.FixedReplID,
	)
	return resp.EncodeBulkString([]byte(info))
}

// cmdCommand answers COMMAND DOCS / bare COMMAND with an empty array — only
// present so clients that probe it on connect don't see "unknown command".
func cmdCommand(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	return resp.EncodeRawArray(nil)
}
