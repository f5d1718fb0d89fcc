package replication

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"redisgo/internal/resp"
)

// ApplyFunc executes one command received from the primary against the
// replica's own store. It must not itself re-propagate.
type ApplyFunc func(args [][]byte)

// LoadRDBFunc loads a full RDB payload received during the handshake.
type LoadRDBFunc func(data []byte) error

// ReplicaClient owns the outbound connection to a primary: the handshake,
// the inbound command stream, and the replica's own replication offset.
type ReplicaClient struct {
	host string
	port int

	logger *zap.Logger

	conn net.Conn

	selfOffset int64 // atomic: bytes consumed from the primary's stream
}

func NewReplicaClient(host string, port int, logger *zap.Logger) *ReplicaClient {
	return &ReplicaClient{
		host:   host,
		port:   port,
		logger: logger.Named("replica-client"),
	}
}

// Offset returns the number of stream bytes this replica has applied so
// far — the value it reports in REPLCONF ACK.
func (c *ReplicaClient) Offset() int64 {
	return atomic.LoadInt64(&c.selfOffset)
}

// Run dials host:port, performs the PSYNC handshake advertising
// listeningPort as this replica's own port, loads the RDB payload via
// loadRDB, then applies the primary's command stream via apply until a read
// or write on the connection fails. It takes no context and offers no way to
// stop it early. It returns the error that ended the loop; callers typically
// retry after a backoff.
func (c *ReplicaClient) Run(listeningPort int, apply ApplyFunc, loadRDB LoadRDBFunc) error {
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial primary: %w", err)
	}
	c.conn = conn
	defer conn.Close()

	reader := bufio.NewReader(conn)

	if err := c.handshake(reader, listeningPort); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	rdb, err := c.readRDBPayload(reader)
	if err != nil {
		return fmt.Errorf("read rdb payload: %w", err)
	}
	if err := loadRDB(rdb); err != nil {
		c.logger.Warn("rdb load failed", zap.Error(err))
	}

	return c.streamLoop(reader, apply)
}

func (c *ReplicaClient) handshake(reader *bufio.Reader, listeningPort int) error {
	send := func(args ...string) error {
		enc := make([][]byte, len(args))
		for i, a := range args {
			enc[i] = []byte(a)
		}
		_, err := c.conn.Write(resp.EncodeCommand(enc))
		return err
	}
	readLine := func() (string, error) {
		line, err := reader.ReadString('\n')
		return strings.TrimSpace(line), err
	}

	if err := send("PING"); err != nil {
		return err
	}
	if _, err := readLine(); err != nil {
		return err
	}

	if err := send("REPLCONF", "listening-port", strconv.Itoa(listeningPort)); err != nil {
		return err
	}
	if _, err := readLine(); err != nil {
		return err
	}

	if err := send("REPLCONF", "capa", "psync2"); err != nil {
		return err
	}
	if _, err := readLine(); err != nil {
		return err
	}

	if err := send("PSYNC", "?", "-1"); err != nil {
		return err
	}
	line, err := readLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "+FULLRESYNC") {
		return fmt.Errorf("unexpected PSYNC reply: %q", line)
	}
	c.logger.Info("full resync starting", zap.String("reply", line))
	return nil
}

// readRDBPayload reads the `$<n>\r\n<n bytes>` frame that follows
// FULLRESYNC. It has no trailing CRLF, unlike an ordinary bulk string.
func (c *ReplicaClient) readRDBPayload(reader *bufio.Reader) ([]byte, error) {
	header, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "$") {
		return nil, fmt.Errorf("expected bulk header, got %q", header)
	}
	n, err := strconv.Atoi(header[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid rdb length: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// streamLoop consumes the command stream byte-for-byte, tracking the exact
// number of bytes consumed as the replica's own offset, and applies each
// command. REPLCONF GETACK is answered in place; everything else is handed
// to apply.
func (c *ReplicaClient) streamLoop(reader *bufio.Reader, apply ApplyFunc) error {
	var buf []byte
	chunk := make([]byte, 4096)

	for {
		for {
			n, ok := resp.FrameLen(buf)
			if !ok {
				break
			}
			frame := buf[:n]
			buf = buf[n:]

			args, err := resp.DecodeCommand(frame)
			if err != nil {
				c.logger.Warn("malformed command from primary", zap.Error(err))
				continue
			}
			atomic.AddInt64(&c.selfOffset, int64(n))

			if len(args) > 0 && strings.EqualFold(string(args[0]), "REPLCONF") &&
				len(args) > 1 && strings.EqualFold(string(args[1]), "GETACK") {
				ack := resp.EncodeCommand([][]byte{
					[]byte("REPLCONF"), []byte("ACK"), []byte(strconv.FormatInt(c.Offset(), 10)),
				})
				if _, err := c.conn.Write(ack); err != nil {
					return err
				}
				continue
			}

			apply(args)
		}

		n, err := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			return err
		}
	}
}
