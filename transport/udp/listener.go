package udp

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/flowmesh/arq"
	"github.com/flowmesh/arq/internal/lrucache"
)

// ListenConfig controls how a Listener binds its socket.
type ListenConfig struct {
	// ReusePort sets SO_REUSEPORT on the listening socket, letting several
	// processes (or several listeners in this one) share the port for
	// kernel-level load-spread fan-out, favoring the low end-to-end latency
	// this protocol targets over a single accept queue.
	ReusePort bool
}

// ListenUDP opens a UDP socket on addr, applying cfg before bind.
func ListenUDP(network, addr string, cfg ListenConfig) (*net.UDPConn, error) {
	lc := net.ListenConfig{}
	if cfg.ReusePort {
		lc.Control = func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		}
	}
	pc, err := lc.ListenPacket(context.Background(), network, addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// SessionFactory builds a new Session for a conversation the Listener has
// not seen before, e.g. to apply per-remote tuning or register it with a
// metrics collector.
type SessionFactory func(conv uint32, remote net.Addr) *arq.Session

// Listener demultiplexes inbound datagrams for many conversations sharing
// one socket, dispatching each to its Session by the wire header's conv
// field and lazily creating sessions for conv values not seen before.
type Listener struct {
	pc      net.PacketConn
	log     *slog.Logger
	newSess SessionFactory

	mu       sync.Mutex
	sessions map[uint32]*endpoint

	// recentMu guards recent separately from mu: Session output callbacks
	// (which read recent via outputFor) can fire synchronously from inside
	// UpdateAll/ForEach while mu is already held, so recent needs its own
	// lock to avoid a self-deadlock.
	recentMu sync.Mutex
	// recent holds the last-seen remote address per conv, bounded so a
	// listener juggling many short-lived conversations can't grow this
	// table unboundedly. It is the single source of truth a Session's
	// output callback consults to pick a destination address, so it stays
	// correct across NAT rebinding: a peer that resumes sending from a new
	// source port is re-targeted without tearing down its Session.
	recent lrucache.Cache[uint32, string]

	readBuf []byte
}

type endpoint struct {
	session *arq.Session
}

// NewListener wraps pc, creating sessions on demand via newSess.
func NewListener(pc net.PacketConn, newSess SessionFactory, log *slog.Logger) *Listener {
	return &Listener{
		pc:       pc,
		newSess:  newSess,
		log:      log,
		sessions: make(map[uint32]*endpoint),
		recent:   lrucache.New[uint32, string](1024),
		readBuf:  make([]byte, 64*1024),
	}
}

// Serve reads datagrams until pc is closed, demultiplexing each to its
// session. It blocks; run it in its own goroutine.
func (l *Listener) Serve() error {
	for {
		n, remote, err := l.pc.ReadFrom(l.readBuf)
		if err != nil {
			return err
		}
		if n < 4 {
			continue // shorter than a conv field, can't route.
		}
		conv := convOf(l.readBuf[:n])
		remoteStr := remote.String()

		l.mu.Lock()
		ep, ok := l.sessions[conv]
		if !ok {
			session := l.newSess(conv, remote)
			session.SetOutput(l.outputFor(conv))
			ep = &endpoint{session: session}
			l.sessions[conv] = ep
			l.pushRecent(conv, remoteStr)
			if l.log != nil {
				l.log.Info("udp: new session", slog.Uint64("conv", uint64(conv)), slog.String("remote", remoteStr))
			}
		} else if prev, known := l.getRecent(conv); !known || prev != remoteStr {
			// Peer resumed sending from a different endpoint (NAT rebinding).
			// Retarget future output at the new address without recreating
			// the session's reliability state.
			l.pushRecent(conv, remoteStr)
			if l.log != nil {
				l.log.Info("udp: remote rebound", slog.Uint64("conv", uint64(conv)), slog.String("from", prev), slog.String("to", remoteStr))
			}
		}
		l.mu.Unlock()

		if err := ep.session.Input(l.readBuf[:n]); err != nil && l.log != nil {
			l.log.Debug("udp: rejected datagram", slog.String("err", err.Error()), slog.Uint64("conv", uint64(conv)))
		}
	}
}

// outputFor returns the OutputFunc a conv's Session writes completed
// datagrams through. It resolves the destination from recent on every call
// rather than closing over a fixed net.Addr, so datagrams always target the
// conversation's current endpoint even if it has rebound since the Session
// was created.
func (l *Listener) outputFor(conv uint32) arq.OutputFunc {
	return func(datagram []byte) {
		remoteStr, ok := l.getRecent(conv)
		if !ok {
			return // no known endpoint for this conv; drop.
		}
		addr, err := net.ResolveUDPAddr(l.pc.LocalAddr().Network(), remoteStr)
		if err != nil {
			if l.log != nil {
				l.log.Error("udp: bad remote address", slog.String("remote", remoteStr), slog.String("err", err.Error()))
			}
			return
		}
		if _, err := l.pc.WriteTo(datagram, addr); err != nil && l.log != nil {
			l.log.Error("udp: write failed", slog.String("err", err.Error()))
		}
	}
}

func (l *Listener) pushRecent(conv uint32, remoteStr string) {
	l.recentMu.Lock()
	l.recent.Push(conv, remoteStr)
	l.recentMu.Unlock()
}

func (l *Listener) getRecent(conv uint32) (string, bool) {
	l.recentMu.Lock()
	defer l.recentMu.Unlock()
	return l.recent.Get(conv)
}

// Session returns the session tracked for conv, if any.
func (l *Listener) Session(conv uint32) (*arq.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ep, ok := l.sessions[conv]
	if !ok {
		return nil, false
	}
	return ep.session, true
}

// UpdateAll calls Update(now) on every tracked session; intended to be
// driven by a single shared ticker for the whole listener.
func (l *Listener) UpdateAll(now uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ep := range l.sessions {
		ep.session.Update(now)
	}
}

// ForEach calls fn with the conv and session of every currently tracked
// conversation. fn must not call back into the Listener.
func (l *Listener) ForEach(fn func(conv uint32, session *arq.Session)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for conv, ep := range l.sessions {
		fn(conv, ep.session)
	}
}

// convOf reads the big-endian conv field out of a raw datagram without
// fully decoding the segment header.
func convOf(datagram []byte) uint32 {
	return uint32(datagram[0])<<24 | uint32(datagram[1])<<16 | uint32(datagram[2])<<8 | uint32(datagram[3])
}
