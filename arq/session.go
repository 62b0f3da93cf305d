package arq

import "log/slog"

// State reflects peer liveness as observed by the retransmission machinery.
type State int8

const (
	StateNormal State = 0
	StateDead   State = -1
)

func (s State) String() string {
	if s == StateDead {
		return "dead"
	}
	return "normal"
}

// Session is a single conversation's worth of reliable-transport state. It
// is not safe for concurrent use; callers needing concurrency must
// serialize access externally (see the transport/udp package for one way to
// do that).
type Session struct {
	conv uint32
	log  *slog.Logger

	mtu int
	mss int

	sndWnd int
	rcvWnd int
	rmtWnd uint16

	sndUna Seq
	sndNxt Seq
	rcvNxt Seq

	sndQue []Segment
	sndBuf []Segment
	rcvBuf []Segment
	rcvQue []Segment
	ackList []ackEntry

	// RTT/RTO estimator.
	rxSRTT  int32
	rxRTTVal int32
	rxRTO   int32
	rxMinRTO int32

	current Seq
	interval int32
	tsFlush  Seq
	updated  bool

	cwnd      int
	incr      uint32
	ssthresh  int
	nocwnd    bool
	nodelay   bool
	fastresend int
	deadLink  uint32
	state     State

	probe    uint8
	tsProbe  Seq
	probeWait uint32

	buffer []byte
	output OutputFunc

	// rngState seeds jitter applied to probe backoff, see flush.go.
	rngState uint32
}

// OutputFunc is called synchronously from within Flush with one complete,
// ready-to-transmit datagram. The slice is only valid for the duration of
// the call; implementations that need to retain it must copy.
type OutputFunc func(datagram []byte)

// SetOutput registers the sink Flush writes completed datagrams to. Flush
// is a no-op until an output function is set.
func (s *Session) SetOutput(fn OutputFunc) { s.output = fn }

type ackEntry struct {
	sn Seq
	ts Seq
}

// Config configures a new Session. The zero value of every field selects
// the protocol's documented default.
type Config struct {
	MTU        int // default 1400
	SendWindow int // default 32
	RecvWindow int // default 32
	Interval   int // default 100ms
	NoDelay    bool
	FastResend int // 0 disables fast retransmit
	NoCwnd     bool // disables congestion window admission control
	DeadLink   uint32 // default 10
}

// NewSession constructs a Session for conversation id conv.
func NewSession(conv uint32, cfg Config) *Session {
	s := &Session{
		conv:     conv,
		mtu:      defaultMTU,
		sndWnd:   defaultSendWindow,
		rcvWnd:   defaultRecvWindow,
		rmtWnd:   defaultRecvWindow,
		rxRTO:    defaultRTO,
		rxMinRTO: rtoNormalMin,
		interval: defaultInterval,
		ssthresh: 2,
		deadLink: defaultDeadLink,
		rngState: 0x9E3779B9 ^ conv,
	}
	if cfg.MTU >= minMTU {
		s.mtu = cfg.MTU
	}
	if cfg.SendWindow > 0 {
		s.sndWnd = cfg.SendWindow
	}
	if cfg.RecvWindow > 0 {
		s.rcvWnd = cfg.RecvWindow
		s.rmtWnd = uint16(cfg.RecvWindow)
	}
	if cfg.Interval > 0 {
		s.interval = clampInterval(int32(cfg.Interval))
	}
	if cfg.DeadLink > 0 {
		s.deadLink = cfg.DeadLink
	}
	s.nodelay = cfg.NoDelay
	s.fastresend = cfg.FastResend
	s.nocwnd = cfg.NoCwnd
	if s.nodelay {
		s.rxMinRTO = rtoNoDelayMin
	}
	s.mss = s.mtu - headerSize
	s.cwnd = 1
	s.buffer = make([]byte, 3*(s.mtu+headerSize))
	return s
}

// SetLogger attaches a structured logger used for debug/trace diagnostics.
// A nil logger (the zero value) disables logging entirely.
func (s *Session) SetLogger(log *slog.Logger) { s.log = log }

// State reports whether the peer is believed reachable. A segment that has
// been transmitted deadLink times (first send included) without
// acknowledgment marks the
// session dead; the engine keeps retransmitting regardless, it is up to the
// caller to decide when to give up.
func (s *Session) State() State { return s.state }

// WaitSend returns the number of segments queued or in flight, awaiting
// acknowledgment.
func (s *Session) WaitSend() int { return len(s.sndBuf) + len(s.sndQue) }

// Stats is a read-only snapshot of congestion and RTT estimator state,
// intended for export (see the metrics package).
type Stats struct {
	Cwnd      int
	Ssthresh  int
	SRTT      int32
	RTO       int32
	RmtWnd    uint16
	WaitSend  int
	SndUna    uint32
	RcvNxt    uint32
	State     State
}

// Stats returns a snapshot of the session's current congestion and timing
// state.
func (s *Session) Stats() Stats {
	return Stats{
		Cwnd:     s.cwnd,
		Ssthresh: s.ssthresh,
		SRTT:     s.rxSRTT,
		RTO:      s.rxRTO,
		RmtWnd:   s.rmtWnd,
		WaitSend: s.WaitSend(),
		SndUna:   uint32(s.sndUna),
		RcvNxt:   uint32(s.rcvNxt),
		State:    s.state,
	}
}

// SetMTU changes the maximum transmission unit used when building outbound
// datagrams. Reallocates the output buffer sized off the new mtu, per the
// documented fix to size the buffer using the post-change value.
func (s *Session) SetMTU(mtu int) error {
	if mtu < minMTU {
		return ErrMTUTooSmall
	}
	s.mtu = mtu
	s.mss = mtu - headerSize
	s.buffer = make([]byte, 3*(mtu+headerSize))
	return nil
}

// SetInterval changes the flush period, clamped to [10ms, 5000ms].
func (s *Session) SetInterval(ms int) {
	s.interval = clampInterval(int32(ms))
}

func clampInterval(ms int32) int32 {
	if ms > maxInterval {
		return maxInterval
	}
	if ms < minInterval {
		return minInterval
	}
	return ms
}

// SetNoDelay configures low-latency behavior. Negative arguments leave the
// corresponding field unchanged.
func (s *Session) SetNoDelay(nodelay, interval, fastResend, noCwnd int) {
	if nodelay >= 0 {
		s.nodelay = nodelay != 0
		if s.nodelay {
			s.rxMinRTO = rtoNoDelayMin
		} else {
			s.rxMinRTO = rtoNormalMin
		}
	}
	if interval >= 0 {
		s.SetInterval(interval)
	}
	if fastResend >= 0 {
		s.fastresend = fastResend
	}
	if noCwnd >= 0 {
		s.nocwnd = noCwnd != 0
	}
}

// SetWindowSize changes the advertised send/receive window sizes, measured
// in segments. Non-positive values leave the corresponding field unchanged.
func (s *Session) SetWindowSize(sndWnd, rcvWnd int) {
	if sndWnd > 0 {
		s.sndWnd = sndWnd
	}
	if rcvWnd > 0 {
		s.rcvWnd = rcvWnd
	}
}

// wndUnused returns the free capacity we can still advertise to the peer.
func (s *Session) wndUnused() uint16 {
	if len(s.rcvQue) < s.rcvWnd {
		return uint16(s.rcvWnd - len(s.rcvQue))
	}
	return 0
}
