package udp

import (
	"sync"

	"github.com/flowmesh/arq"
	"github.com/flowmesh/arq/internal"
)

// Stream adapts a message-oriented arq.Session to an io.Reader byte stream:
// every message Session.Recv yields is appended to an internal ring buffer
// that Read then drains in order. Built on internal.Ring.
type Stream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ring    internal.Ring
	session *arq.Session
	msgBuf  []byte
	err     error
}

func (s *Stream) init(session *arq.Session) {
	s.session = session
	s.ring.Buf = make([]byte, 64*1024)
	s.msgBuf = make([]byte, 64*1024)
	s.cond = sync.NewCond(&s.mu)
}

// pump drains every currently-deliverable message from the session into the
// ring buffer. Callers must hold whatever lock serializes access to the
// session (arq.Session is not safe for concurrent use); pump takes its own
// lock only around the ring buffer and condition variable.
func (s *Stream) pump() {
	for {
		s.mu.Lock()
		free := s.ring.Free()
		s.mu.Unlock()
		if free == 0 {
			return // reader hasn't caught up; retry on the next tick.
		}

		n, err := s.session.Recv(s.msgBuf)
		if err != nil {
			return
		}

		s.mu.Lock()
		_, werr := s.ring.Write(s.msgBuf[:n])
		s.mu.Unlock()
		if werr != nil {
			// Message already popped from the session; exceptionally large
			// messages relative to the ring size are dropped rather than
			// corrupting stream order. Size the ring to the application's
			// expected message sizes to avoid this.
			continue
		}
		s.cond.Broadcast()
	}
}

// Read blocks until at least one byte is available or the stream closes.
func (s *Stream) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.ring.Buffered() == 0 && s.err == nil {
		s.cond.Wait()
	}
	if s.ring.Buffered() == 0 {
		return 0, s.err
	}
	return s.ring.Read(b)
}

func (s *Stream) closeWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	s.cond.Broadcast()
}
