package dispatcher

import (
	"net"
	"strconv"
	"time"

	"redisgo/internal/blocking"
	"redisgo/internal/resp"
	"redisgo/internal/session"
)

func (d *Dispatcher) registerListCommands() {
	d.register("RPUSH", cmdRPush)
	d.register("LPUSH", cmdLPush)
	d.register("LRANGE", cmdLRange)
	d.register("LLEN", cmdLLen)
	d.register("LPOP", cmdLPop)
	d.register("BLPOP", cmdBLPop)
}

func cmdRPush(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) < 3 {
		return arityError("RPUSH")
	}
	n, err := d.Store.RPush(string(args[1]), args[2:]...)
	if err != nil {
		return resp.EncodeError(err.Error())
	}
	return resp.EncodeInteger(int64(n))
}

func cmdLPush(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) < 3 {
		return arityError("LPUSH")
	}
	n, err := d.Store.LPush(string(args[1]), args[2:]...)
	if err != nil {
		return resp.EncodeError(err.Error())
	}
	return resp.EncodeInteger(int64(n))
}

func cmdLRange(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 4 {
		return arityError("LRANGE")
	}
	start, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.EncodeError("ERR value is not an integer or out of range")
	}
	stop, err := strconv.Atoi(string(args[3]))
	if err != nil {
		return resp.EncodeError("ERR value is not an integer or out of range")
	}
	items, err := d.Store.LRange(string(args[1]), start, stop)
	if err != nil {
		return resp.EncodeError(err.Error())
	}
	return resp.EncodeBulkArray(items)
}

func cmdLLen(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 2 {
		return arityError("LLEN")
	}
	n, err := d.Store.LLen(string(args[1]))
	if err != nil {
		return resp.EncodeError(err.Error())
	}
	return resp.EncodeInteger(int64(n))
}

// cmdLPop handles both the one-argument form (single optional value) and the
// counted form (array, nil when the key is absent).
func cmdLPop(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 2 && len(args) != 3 {
		return arityError("LPOP")
	}
	key := string(args[1])

	if len(args) == 2 {
		items, err := d.Store.LPop(key, 1)
		if err != nil {
			return resp.EncodeError(err.Error())
		}
		if len(items) == 0 {
			return resp.EncodeNullBulk()
		}
		return resp.EncodeBulkString(items[0])
	}

	count, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.EncodeError("ERR value is not an integer or out of range")
	}
	if count < 0 {
		return resp.EncodeError("ERR value is out of range, must be positive")
	}
	items, err := d.Store.LPop(key, count)
	if err != nil {
		return resp.EncodeError(err.Error())
	}
	if items == nil {
		return resp.EncodeNullArray()
	}
	return resp.EncodeBulkArray(items)
}

// cmdBLPop implements the single-key blocking pop of §4.8: an immediate pop
// if the list is non-empty, an indefinite park on timeout 0, otherwise a
// 10ms poll against an absolute deadline.
func cmdBLPop(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 3 {
		return arityError("BLPOP")
	}
	key := string(args[1])
	timeoutSec, err := strconv.ParseFloat(string(args[2]), 64)
	if err != nil {
		return resp.EncodeError("ERR timeout is not a float or out of range")
	}

	attempt := func() ([]byte, bool) {
		items, err := d.Store.LPop(key, 1)
		if err != nil || len(items) == 0 {
			return nil, false
		}
		return resp.EncodeRawArray([][]byte{
			resp.EncodeBulkString([]byte(key)),
			resp.EncodeBulkString(items[0]),
		}), true
	}

	hasDeadline := timeoutSec != 0
	deadline := time.Now().Add(time.Duration(timeoutSec * float64(time.Second)))

	reply, ok := blocking.Await(d.Coord, hasDeadline, deadline, attempt)
	if !ok {
		return resp.EncodeNullBulk()
	}
	return reply
}
