// Package session holds per-connection state: identity and the MULTI/EXEC
// transaction buffer. None of this is ever shared between connections.
package session

import (
	"github.com/google/uuid"

	"redisgo/internal/replication"
)

// QueuedCommand is one command queued while a session is in a transaction.
type QueuedCommand struct {
	Args [][]byte
}

// Session is owned exclusively by the connection's own goroutine.
type Session struct {
	ID uuid.UUID

	InMulti bool
	Queue   []QueuedCommand

	// FromMaster is true for the session driving a replica's application of
	// the command stream received from its primary. PING returns no reply on
	// such a session; other replies are discarded by the replica link, and
	// the replica's self offset is tracked by replication.ReplicaClient.
	FromMaster bool

	// Replica is set once this connection completes a PSYNC handshake,
	// identifying it in the replication manager's registry for subsequent
	// REPLCONF ACK updates. Nil on every other connection.
	Replica *replication.Replica
}

func New() *Session {
	return &Session{ID: uuid.New()}
}

// BeginMulti transitions normal -> queued.
func (s *Session) BeginMulti() {
	s.InMulti = true
	s.Queue = s.Queue[:0]
}

// Enqueue appends a command to the transaction buffer.
func (s *Session) Enqueue(args [][]byte) {
	s.Queue = append(s.Queue, QueuedCommand{Args: args})
}

// Discard empties the queue and returns to normal mode.
func (s *Session) Discard() {
	s.InMulti = false
	s.Queue = nil
}

// TakeQueue returns to normal mode and returns the queued commands for
// execution by EXEC.
func (s *Session) TakeQueue() []QueuedCommand {
	queue := s.Queue
	s.InMulti = false
	s.Queue = nil
	return queue
}
