// Package server owns the TCP listener and the per-connection frame loop:
// read into a pending buffer, drain and dispatch every complete frame it
// contains, and release session state (plus any replica registration) when
// the connection closes.
package server

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"redisgo/internal/config"
	"redisgo/internal/dispatcher"
	"redisgo/internal/rdb"
	"redisgo/internal/replication"
	"redisgo/internal/resp"
	"redisgo/internal/session"
	"redisgo/internal/store"
)

// Server binds a listener and drives connections through the dispatcher. A
// replica additionally runs a single outbound link to its primary.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	store *store.Store
	repl  *replication.Manager
	disp  *dispatcher.Dispatcher

	listener net.Listener
	wg       sync.WaitGroup
}

func New(cfg *config.Config, logger *zap.Logger) *Server {
	st := store.New()
	repl := replication.NewManager(cfg.Role, logger)
	disp := dispatcher.New(st, repl, cfg, logger)

	return &Server{
		cfg:    cfg,
		logger: logger.Named("server"),
		store:  st,
		repl:   repl,
		disp:   disp,
	}
}

// LoadSnapshot seeds the store from the on-disk RDB snapshot named by the
// configured dir/dbfilename, if one exists.
func (s *Server) LoadSnapshot() error {
	path := filepath.Join(s.cfg.Dir, s.cfg.DBFilename)
	entries, err := rdb.Load(path)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	seedStore(s.store, entries)
	if len(entries) > 0 {
		s.logger.Info("loaded snapshot", zap.String("path", path), zap.Int("keys", len(entries)))
	}
	return nil
}

func seedStore(st *store.Store, entries []rdb.Entry) {
	for _, e := range entries {
		var expiry *time.Time
		if !e.Expires.IsZero() {
			at := e.Expires
			expiry = &at
		}
		st.SetString(e.Key, e.Value, expiry)
	}
}

// Run binds the listener and serves connections until ctx is cancelled. If
// the server is configured as a replica it also starts the outbound link to
// its primary.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener
	s.logger.Info("listening", zap.String("addr", addr))

	if s.cfg.Role == config.RoleReplica {
		go s.runReplicaLink(ctx)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				s.logger.Warn("accept failed", zap.Error(err))
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// runReplicaLink drives this server's outbound connection to its primary,
// applying the replicated command stream directly against the local store.
// A dropped link is retried after a short backoff.
func (s *Server) runReplicaLink(ctx context.Context) {
	client := replication.NewReplicaClient(s.cfg.ReplicaOfHost, s.cfg.ReplicaOfPort, s.logger)
	replicaSession := session.New()
	replicaSession.FromMaster = true

	apply := func(args [][]byte) {
		s.disp.Dispatch(replicaSession, nil, args)
	}
	loadRDB := func(data []byte) error {
		entries, err := rdb.Parse(data)
		if err != nil {
			return err
		}
		seedStore(s.store, entries)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := client.Run(s.cfg.Port, apply, loadRDB); err != nil {
			s.logger.Warn("replica link lost", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// handleConnection owns one connection's pending byte buffer and session for
// its entire lifetime: read, drain complete frames, dispatch, repeat.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	sess := session.New()
	defer s.releaseSession(sess)

	reader := make([]byte, 4096)
	var pending []byte

	for {
		for {
			n, ok := resp.FrameLen(pending)
			if !ok {
				break
			}
			frame := pending[:n]
			pending = pending[n:]

			args, err := resp.DecodeCommand(frame)
			if err != nil {
				conn.Write(resp.EncodeError(fmt.Sprintf("ERR Protocol error: %v", err)))
				return
			}
			if len(args) == 0 {
				continue
			}

			reply := s.disp.Dispatch(sess, conn, args)
			if reply == nil {
				continue
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}

		n, err := conn.Read(reader)
		if n > 0 {
			pending = append(pending, reader[:n]...)
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) releaseSession(sess *session.Session) {
	if sess.Replica != nil {
		s.repl.RemoveReplica(sess.Replica.ID)
	}
}
