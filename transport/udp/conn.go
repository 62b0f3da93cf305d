// Package udp drives an arq.Session over a net.PacketConn: a read goroutine
// feeds inbound datagrams to Session.Input, a ticker goroutine calls
// Session.Update every 10ms, and Write/Read give
// callers a conventional net.Conn-shaped surface over the session.
package udp

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/flowmesh/arq"
	"github.com/flowmesh/arq/internal"
)

var (
	errClosed        = errors.New("udp: use of closed connection")
	errNoRemoteAddr  = errors.New("udp: no remote address established")
)

// Config configures a Conn.
type Config struct {
	Session *arq.Session // required; caller retains ownership of its Config/tuning.
	Logger  *slog.Logger
	// ReadBufSize bounds the largest datagram Conn will attempt to read off
	// the wire. Defaults to 64KiB, comfortably above any realistic MTU.
	ReadBufSize int
}

// Conn drives one arq.Session against a specific remote endpoint over a
// net.PacketConn. It owns a background read loop and update ticker started
// by Dial; callers only interact
// with Write/Read/Close.
type Conn struct {
	mu      sync.Mutex
	pc      net.PacketConn
	remote  net.Addr
	session *arq.Session
	log     *slog.Logger

	stream   Stream
	closed   bool
	closeCh  chan struct{}
	readBuf  []byte
	backoff  internal.Backoff
}

// Dial opens a Conn to remote over pc, using session (already configured
// with the desired conv/tuning) as the reliability engine. Dial starts the
// background read and update loops; Close stops them.
func Dial(pc net.PacketConn, remote net.Addr, cfg Config) (*Conn, error) {
	if cfg.Session == nil {
		panic("udp: Config.Session is required")
	}
	readBufSize := cfg.ReadBufSize
	if readBufSize <= 0 {
		readBufSize = 64 * 1024
	}
	c := &Conn{
		pc:      pc,
		remote:  remote,
		session: cfg.Session,
		log:     cfg.Logger,
		closeCh: make(chan struct{}),
		readBuf: make([]byte, readBufSize),
		backoff: internal.NewBackoff(5 * time.Millisecond),
	}
	c.stream.init(cfg.Session)
	c.session.SetOutput(func(datagram []byte) {
		_, err := pc.WriteTo(datagram, remote)
		if err != nil && c.log != nil {
			c.log.Error("udp: write failed", slog.String("err", err.Error()))
		}
	})
	if cfg.Logger != nil {
		c.session.SetLogger(cfg.Logger)
	}
	go c.readLoop()
	go c.updateLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}
		n, addr, err := c.pc.ReadFrom(c.readBuf)
		if err != nil {
			if c.isClosed() {
				return
			}
			c.backoff.Miss()
			continue
		}
		c.backoff.Hit()
		if c.remote != nil && addr.String() != c.remote.String() {
			continue // datagram from an unexpected peer; drop.
		}
		c.mu.Lock()
		err = c.session.Input(c.readBuf[:n])
		if err == nil {
			c.stream.pump()
		}
		c.mu.Unlock()
		if err != nil && c.log != nil {
			c.log.Debug("udp: input rejected", slog.String("err", err.Error()))
		}
	}
}

func (c *Conn) updateLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-c.closeCh:
			return
		case now := <-ticker.C:
			ms := uint32(now.Sub(start).Milliseconds())
			c.mu.Lock()
			c.session.Update(ms)
			c.stream.pump()
			c.mu.Unlock()
		}
	}
}

// Write queues b as a single application message. Large writes are
// fragmented by the session per its configured MTU; see arq.Session.Send.
func (c *Conn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errClosed
	}
	if err := c.session.Send(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Read returns reassembled message bytes as they become available,
// blocking until at least one byte is ready or the connection closes.
func (c *Conn) Read(b []byte) (int, error) {
	return c.stream.Read(b)
}

// Close stops the background loops. It does not send any teardown signal
// to the peer since the protocol has no close handshake.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)
	c.stream.closeWith(io.EOF)
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the peer endpoint this Conn was dialed to.
func (c *Conn) RemoteAddr() net.Addr {
	if c.remote == nil {
		panic(errNoRemoteAddr)
	}
	return c.remote
}

// Session returns the underlying engine, for callers that want direct
// access to Stats, WaitSend, or tuning setters.
func (c *Conn) Session() *arq.Session { return c.session }
