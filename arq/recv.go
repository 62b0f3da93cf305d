package arq

// Input parses datagram as a concatenation of one or more wire segments and
// folds them into the session's state: advancing the send window on
// cumulative/selective ACKs, recording peer window advertisements, and
// reordering PUSH segments into the receive buffer. It stops at the first
// malformed header, returning a sentinel error; segments processed before
// the fault already took effect.
func (s *Session) Input(datagram []byte) error {
	offset := 0
	prevUna := s.sndUna

	for offset < len(datagram) {
		if len(datagram)-offset < headerSize {
			return ErrTruncated
		}
		var seg Segment
		payloadLen, err := decodeHeader(datagram[offset:], &seg)
		if err != nil {
			return err
		}
		if seg.Conv != s.conv {
			return ErrConvMismatch
		}
		if !seg.Cmd.valid() {
			return ErrUnknownCmd
		}
		if len(datagram)-offset-headerSize < int(payloadLen) {
			return ErrTruncated
		}
		seg.Data = datagram[offset+headerSize : offset+headerSize+int(payloadLen)]
		s.traceSeg("recv", &seg)

		s.rmtWnd = seg.Wnd
		s.parseUna(seg.Una)
		s.shrinkBuf()

		switch seg.Cmd {
		case cmdAck:
			if s.current.Diff(seg.TS) >= 0 {
				s.updateACK(s.current.Diff(seg.TS))
			}
			s.parseAck(seg.SN)
			s.shrinkBuf()
		case cmdPush:
			inWindow := seg.SN.Diff(s.rcvNxt.Add(uint32(s.rcvWnd))) < 0 && !seg.SN.Less(s.rcvNxt)
			if inWindow {
				s.ackList = append(s.ackList, ackEntry{sn: seg.SN, ts: seg.TS})
			}
			if !seg.SN.Less(s.rcvNxt) {
				cp := seg
				cp.Data = append([]byte(nil), seg.Data...)
				s.parseData(&cp)
			}
		case cmdWAsk:
			s.probe |= probeAskTell
		case cmdWIns:
			// rmtWnd already refreshed above; nothing else to do.
		}

		offset += headerSize + int(payloadLen)
	}

	if s.sndUna.Diff(prevUna) > 0 {
		s.growCwnd()
	}
	s.traceRcv("input")
	return nil
}

// parseUna drops every in-flight segment the peer has cumulatively
// acknowledged (sn < una).
func (s *Session) parseUna(una Seq) {
	n := 0
	for n < len(s.sndBuf) && s.sndBuf[n].SN.Diff(una) < 0 {
		n++
	}
	if n > 0 {
		copy(s.sndBuf, s.sndBuf[n:])
		s.sndBuf = s.sndBuf[:len(s.sndBuf)-n]
	}
}

// shrinkBuf resyncs sndUna with the head of sndBuf after sndBuf changes.
func (s *Session) shrinkBuf() {
	if len(s.sndBuf) > 0 {
		s.sndUna = s.sndBuf[0].SN
	} else {
		s.sndUna = s.sndNxt
	}
}

// parseAck applies one selective ACK: segments sent before sn accrue a
// fastack hit (candidates for fast retransmit), and the segment matching sn
// exactly is removed from flight. sndBuf is kept sorted by SN so the walk
// can stop as soon as it passes sn.
func (s *Session) parseAck(sn Seq) {
	for i := 0; i < len(s.sndBuf); i++ {
		if sn == s.sndBuf[i].SN {
			copy(s.sndBuf[i:], s.sndBuf[i+1:])
			s.sndBuf = s.sndBuf[:len(s.sndBuf)-1]
			return
		}
		if sn.Diff(s.sndBuf[i].SN) < 0 {
			return
		}
		s.sndBuf[i].fastack++
	}
}

// parseData inserts an in-window, non-duplicate PUSH segment into rcvBuf in
// sn order, then drains any now-contiguous prefix into rcvQue.
func (s *Session) parseData(seg *Segment) {
	sn := seg.SN
	if sn.Diff(s.rcvNxt.Add(uint32(s.rcvWnd))) >= 0 || sn.Less(s.rcvNxt) {
		return
	}

	i := len(s.rcvBuf) - 1
	for ; i >= 0; i-- {
		if s.rcvBuf[i].SN == sn {
			return // duplicate
		}
		if s.rcvBuf[i].SN.Less(sn) {
			break
		}
	}

	s.rcvBuf = append(s.rcvBuf, Segment{})
	copy(s.rcvBuf[i+2:], s.rcvBuf[i+1:len(s.rcvBuf)-1])
	s.rcvBuf[i+1] = *seg

	s.drainRcvBuf()
}

// drainRcvBuf moves the contiguous, in-order prefix of rcvBuf into rcvQue,
// bounded by rcvWnd, advancing rcvNxt as it goes.
func (s *Session) drainRcvBuf() {
	n := 0
	for n < len(s.rcvBuf) && s.rcvBuf[n].SN == s.rcvNxt && len(s.rcvQue) < s.rcvWnd {
		s.rcvQue = append(s.rcvQue, s.rcvBuf[n])
		s.rcvNxt = s.rcvNxt.Add(1)
		n++
	}
	if n > 0 {
		copy(s.rcvBuf, s.rcvBuf[n:])
		s.rcvBuf = s.rcvBuf[:len(s.rcvBuf)-n]
	}
}

// growCwnd widens the congestion window by one step after new cumulative
// progress is observed: slow-start below ssthresh, additive increase above
// it, capped at the peer's advertised window.
func (s *Session) growCwnd() {
	mss := uint32(s.mss)
	if mss == 0 {
		return
	}
	if s.cwnd < s.ssthresh {
		s.cwnd++
		s.incr += mss
	} else {
		if s.incr < mss {
			s.incr = mss
		}
		s.incr += mss*mss/s.incr + mss/16
		if uint32(s.cwnd+1)*mss <= s.incr {
			s.cwnd++
		}
	}
	if s.cwnd > int(s.rmtWnd) {
		s.cwnd = int(s.rmtWnd)
		s.incr = uint32(s.rmtWnd) * mss
	}
}

// Recv copies the next fully-reassembled message into out, returning its
// length. Returns ErrEmpty if nothing is queued, ErrIncomplete if the next
// message's fragments have not all arrived, or ErrBufferTooSmall if out
// cannot hold it.
func (s *Session) Recv(out []byte) (int, error) {
	if len(s.rcvQue) == 0 {
		return 0, ErrEmpty
	}

	first := &s.rcvQue[0]
	need := int(first.Frg) + 1
	if len(s.rcvQue) < need {
		return 0, ErrIncomplete
	}
	msgLen := 0
	complete := false
	for i := 0; i < need; i++ {
		msgLen += len(s.rcvQue[i].Data)
		if s.rcvQue[i].Frg == 0 {
			complete = true
			break
		}
	}
	if !complete {
		return 0, ErrIncomplete
	}
	if len(out) < msgLen {
		return 0, ErrBufferTooSmall
	}

	recover := len(s.rcvQue) >= s.rcvWnd

	n, copied := 0, 0
	for n < len(s.rcvQue) {
		seg := &s.rcvQue[n]
		copied += copy(out[copied:], seg.Data)
		n++
		if seg.Frg == 0 {
			break
		}
	}
	copy(s.rcvQue, s.rcvQue[n:])
	s.rcvQue = s.rcvQue[:len(s.rcvQue)-n]

	s.drainRcvBuf()

	if recover && len(s.rcvQue) < s.rcvWnd {
		s.probe |= probeAskTell
	}
	s.traceRcv("recv")
	return copied, nil
}
