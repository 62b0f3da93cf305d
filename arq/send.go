package arq

// Send fragments data into one or more segments and enqueues them for
// admission into the send window at the next Flush. data is copied; the
// caller's slice may be reused immediately after Send returns.
func (s *Session) Send(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	count := (len(data) + s.mss - 1) / s.mss
	if count == 0 {
		count = 1
	}
	if count > maxFragments {
		return ErrTooLarge
	}

	for i := 0; i < count; i++ {
		size := s.mss
		if i == count-1 {
			size = len(data) - i*s.mss
		}
		chunk := make([]byte, size)
		copy(chunk, data[i*s.mss:i*s.mss+size])
		s.sndQue = append(s.sndQue, Segment{
			Conv: s.conv,
			Cmd:  cmdPush,
			Frg:  uint8(count - i - 1), // last fragment carries Frg==0.
			Data: chunk,
		})
	}
	s.traceSnd("send")
	return nil
}
