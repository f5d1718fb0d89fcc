package dispatcher

import (
	"net"
	"strconv"
	"strings"
	"time"

	"redisgo/internal/blocking"
	"redisgo/internal/resp"
	"redisgo/internal/session"
	"redisgo/internal/store"
)

func (d *Dispatcher) registerStreamCommands() {
	d.register("XADD", cmdXAdd)
	d.register("XRANGE", cmdXRange)
	d.register("XREAD", cmdXRead)
}

func cmdXAdd(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) < 5 || (len(args)-3)%2 != 0 {
		return arityError("XADD")
	}
	key := string(args[1])
	rawID := string(args[2])

	fields := make([][2][]byte, 0, (len(args)-3)/2)
	for i := 3; i+1 < len(args); i += 2 {
		fields = append(fields, [2][]byte{args[i], args[i+1]})
	}

	id, err := d.Store.XAdd(key, rawID, fields)
	if err != nil {
		return resp.EncodeError(err.Error())
	}
	return resp.EncodeBulkString([]byte(id.String()))
}

func cmdXRange(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	if len(args) != 4 {
		return arityError("XRANGE")
	}
	entries, err := d.Store.XRange(string(args[1]), string(args[2]), string(args[3]))
	if err != nil {
		return resp.EncodeError(err.Error())
	}
	return resp.EncodeRawArray(encodeStreamEntries(entries))
}

func encodeStreamEntries(entries []store.Entry) [][]byte {
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = resp.EncodeRawArray([][]byte{
			resp.EncodeBulkString([]byte(e.ID.String())),
			resp.EncodeBulkArray(flattenFields(e.Fields)),
		})
	}
	return out
}

func flattenFields(fields [][2][]byte) [][]byte {
	out := make([][]byte, 0, len(fields)*2)
	for _, fv := range fields {
		out = append(out, fv[0], fv[1])
	}
	return out
}

// cmdXRead implements XREAD [BLOCK ms] STREAMS k1..kn id1..idn. The "$"
// sentinel resolves once, at call time, against each stream's current last
// id — not on every poll tick.
func cmdXRead(d *Dispatcher, sess *session.Session, conn net.Conn, args [][]byte) []byte {
	hasBlock := false
	blockMs := 0
	i := 1
	if i < len(args) && strings.EqualFold(string(args[i]), "BLOCK") {
		if i+1 >= len(args) {
			return arityError("XREAD")
		}
		ms, err := strconv.Atoi(string(args[i+1]))
		if err != nil {
			return resp.EncodeError("ERR timeout is not an integer or out of range")
		}
		hasBlock = true
		blockMs = ms
		i += 2
	}
	if i >= len(args) || !strings.EqualFold(string(args[i]), "STREAMS") {
		return resp.EncodeError("ERR syntax error")
	}
	i++

	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.EncodeError("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := make([]string, n)
	after := make([]store.StreamID, n)
	for j := 0; j < n; j++ {
		key := string(rest[j])
		rawID := string(rest[n+j])
		keys[j] = key

		if rawID == "$" {
			after[j] = d.Store.LastStreamID(key)
			continue
		}
		id, err := store.ParseStreamIDStrict(rawID)
		if err != nil {
			return resp.EncodeError(err.Error())
		}
		after[j] = id
	}

	attempt := func() ([]byte, bool) {
		var parts [][]byte
		for j, key := range keys {
			entries, err := d.Store.XReadSince(key, after[j])
			if err != nil || len(entries) == 0 {
				continue
			}
			parts = append(parts, resp.EncodeRawArray([][]byte{
				resp.EncodeBulkString([]byte(key)),
				resp.EncodeRawArray(encodeStreamEntries(entries)),
			}))
		}
		if len(parts) == 0 {
			return nil, false
		}
		return resp.EncodeRawArray(parts), true
	}

	if !hasBlock {
		reply, ok := attempt()
		if !ok {
			return resp.EncodeNullBulk()
		}
		return reply
	}

	hasDeadline := blockMs != 0
	deadline := time.Now().Add(time.Duration(blockMs) * time.Millisecond)
	reply, ok := blocking.Await(d.Coord, hasDeadline, deadline, attempt)
	if !ok {
		return resp.EncodeNullBulk()
	}
	return reply
}
