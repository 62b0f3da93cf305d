package arq

import (
	"log/slog"

	"github.com/flowmesh/arq/internal"
)

// Update advances the session's clock to now (milliseconds, wraparound
// tolerant) and flushes if the configured interval has elapsed. The first
// call seeds the flush schedule; callers must call Update at least once
// before Flush does anything.
func (s *Session) Update(now uint32) {
	s.current = Seq(now)
	if !s.updated {
		s.updated = true
		s.tsFlush = s.current
	}

	slap := s.current.Diff(s.tsFlush)
	if slap > 10000 || slap < -10000 {
		s.tsFlush = s.current
		slap = 0
	}
	if slap >= 0 {
		s.tsFlush = s.tsFlush.Add(uint32(s.interval))
		if s.current.Diff(s.tsFlush) >= 0 {
			s.tsFlush = s.current.Add(uint32(s.interval))
		}
		s.Flush()
	}
}

// Check reports the time at which Update should next be called: now if
// there is unsent work outstanding, otherwise the earliest of the next
// scheduled flush or the next segment retransmission deadline.
func (s *Session) Check(now uint32) uint32 {
	cur := Seq(now)
	if !s.updated {
		return now
	}
	tsFlush := s.tsFlush
	tmPacket := int32(0x7fffffff)

	if cur.Diff(tsFlush) >= 10000 || cur.Diff(tsFlush) < -10000 {
		return now
	}

	tmFlush := tsFlush.Diff(cur)
	for i := range s.sndBuf {
		diff := s.sndBuf[i].resendts.Diff(cur)
		if diff <= 0 {
			return now
		}
		if diff < tmPacket {
			tmPacket = diff
		}
	}

	minimal := tmFlush
	if tmPacket < minimal {
		minimal = tmPacket
	}
	if minimal < 0 {
		minimal = 0
	}
	if minimal > int32(s.interval) {
		minimal = int32(s.interval)
	}
	return now + uint32(minimal)
}

// Flush emits pending ACKs, window-probe segments, newly admitted data, and
// any due retransmissions, writing completed datagrams to the registered
// OutputFunc. Rarely called directly; Update drives it on schedule.
func (s *Session) Flush() {
	if !s.updated || s.output == nil {
		return
	}

	tmpl := Segment{
		Conv: s.conv,
		Cmd:  cmdAck,
		Wnd:  s.wndUnused(),
		Una:  s.rcvNxt,
	}

	offset := 0
	flushBuf := func() {
		if offset > 0 {
			s.output(s.buffer[:offset])
			offset = 0
		}
	}
	emit := func(seg *Segment) {
		end := offset + seg.size()
		if end > s.mtu || (len(seg.Data) > 0 && end >= s.mtu) {
			flushBuf()
		}
		offset = encodeSegment(s.buffer, offset, seg)
	}

	// Phase A: flush queued ACKs.
	for _, e := range s.ackList {
		seg := tmpl
		seg.SN = e.sn
		seg.TS = e.ts
		emit(&seg)
	}
	s.ackList = s.ackList[:0]

	// Phase B: window probing state machine.
	if s.rmtWnd == 0 {
		if s.probeWait == 0 {
			s.probeWait = 7000
			s.tsProbe = s.current.Add(s.probeWait)
		} else if s.current.Diff(s.tsProbe) >= 0 {
			if s.probeWait < 7000 {
				s.probeWait = 7000
			}
			s.probeWait += s.probeWait / 2
			if s.probeWait > 120000 {
				s.probeWait = 120000
			}
			// Jitter the next probe deadline so many sessions stalled on the
			// same zero-window peer don't all retry in lockstep.
			s.rngState = internal.ProbeJitter(s.rngState)
			jitter := s.rngState % (s.probeWait/4 + 1)
			s.tsProbe = s.current.Add(s.probeWait + jitter)
			s.probe |= probeAskSend
		}
	} else {
		s.tsProbe = 0
		s.probeWait = 0
	}

	// Phase C: emit probe segments.
	if s.probe&probeAskSend != 0 {
		seg := tmpl
		seg.Cmd = cmdWAsk
		emit(&seg)
	}
	if s.probe&probeAskTell != 0 {
		seg := tmpl
		seg.Cmd = cmdWIns
		emit(&seg)
	}
	s.probe = 0

	// Phase D: admit queued segments into the send window.
	cwndEff := minInt(s.sndWnd, int(s.rmtWnd))
	if !s.nocwnd {
		cwndEff = minInt(cwndEff, s.cwnd)
	}
	for len(s.sndQue) > 0 && s.sndNxt.Diff(s.sndUna.Add(uint32(cwndEff))) < 0 {
		seg := s.sndQue[0]
		copy(s.sndQue, s.sndQue[1:])
		s.sndQue = s.sndQue[:len(s.sndQue)-1]

		seg.Cmd = cmdPush
		seg.Conv = s.conv
		seg.Wnd = s.wndUnused()
		seg.TS = s.current
		seg.SN = s.sndNxt
		seg.Una = s.rcvNxt
		seg.resendts = s.current
		seg.rto = uint32(s.rxRTO)
		seg.fastack = 0
		seg.xmit = 0
		s.sndNxt = s.sndNxt.Add(1)
		s.sndBuf = append(s.sndBuf, seg)
	}

	// Phase E: transmit and retransmit.
	resent := int(0x7fffffff)
	if s.fastresend > 0 {
		resent = s.fastresend
	}
	rtomin := int32(0)
	if !s.nodelay {
		rtomin = s.rxRTO / 8
	}

	change := 0
	lost := false
	for i := range s.sndBuf {
		seg := &s.sndBuf[i]
		needSend := false

		switch {
		case seg.xmit == 0:
			needSend = true
			seg.xmit = 1
			seg.rto = uint32(s.rxRTO)
			seg.resendts = s.current.Add(uint32(s.rxRTO) + uint32(rtomin))
		case s.current.Diff(seg.resendts) >= 0:
			needSend = true
			seg.xmit++
			if !s.nodelay {
				seg.rto += uint32(s.rxRTO)
			} else {
				seg.rto += uint32(s.rxRTO) / 2
			}
			seg.resendts = s.current.Add(seg.rto)
			lost = true
		case int(seg.fastack) >= resent:
			needSend = true
			seg.xmit++
			seg.fastack = 0
			seg.resendts = s.current.Add(seg.rto)
			change++
		}

		if !needSend {
			continue
		}
		seg.TS = s.current
		seg.Wnd = s.wndUnused()
		seg.Una = s.rcvNxt
		emit(seg)

		if seg.xmit >= s.deadLink {
			s.state = StateDead
			s.logerr("dead link", slog.Uint64("sn", uint64(seg.SN)), slog.Uint64("xmit", uint64(seg.xmit)))
		}
	}
	flushBuf()

	// Phase F: congestion response to fast retransmit / loss. The loss
	// collapse only applies alongside a fast retransmit this cycle; a bare
	// RTO timeout with no fastack-triggered resend leaves cwnd alone.
	if change > 0 {
		inflight := uint32(s.sndNxt.Diff(s.sndUna))
		s.ssthresh = maxInt(int(inflight)/2, 2)
		s.cwnd = s.ssthresh + resent
		s.incr = uint32(s.cwnd) * uint32(s.mss)
		if lost {
			s.ssthresh = maxInt(s.cwnd/2, 2)
			s.cwnd = 1
			s.incr = uint32(s.mss)
		}
	}
	if s.cwnd < 1 {
		s.cwnd = 1
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
