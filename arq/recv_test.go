package arq

import "testing"

func mkseg(sn Seq, frg uint8, data string) Segment {
	return Segment{SN: sn, Frg: frg, Data: []byte(data)}
}

func TestParseDataInOrderDelivery(t *testing.T) {
	s := NewSession(1, Config{})
	s.parseData(ptr(mkseg(0, 0, "a")))
	s.parseData(ptr(mkseg(1, 0, "b")))
	s.parseData(ptr(mkseg(2, 0, "c")))

	if len(s.rcvQue) != 3 {
		t.Fatalf("rcvQue len = %d, want 3", len(s.rcvQue))
	}
	if s.rcvNxt != 3 {
		t.Fatalf("rcvNxt = %d, want 3", s.rcvNxt)
	}
}

func TestParseDataReorder(t *testing.T) {
	s := NewSession(1, Config{})
	s.parseData(ptr(mkseg(2, 0, "c")))
	s.parseData(ptr(mkseg(0, 0, "a")))
	if len(s.rcvQue) != 1 || len(s.rcvBuf) != 1 {
		t.Fatalf("rcvQue=%d rcvBuf=%d, want 1,1", len(s.rcvQue), len(s.rcvBuf))
	}
	s.parseData(ptr(mkseg(1, 0, "b")))
	if len(s.rcvQue) != 3 || len(s.rcvBuf) != 0 {
		t.Fatalf("rcvQue=%d rcvBuf=%d, want 3,0", len(s.rcvQue), len(s.rcvBuf))
	}
	if s.rcvNxt != 3 {
		t.Fatalf("rcvNxt = %d, want 3", s.rcvNxt)
	}
}

func TestParseDataDuplicateDropped(t *testing.T) {
	s := NewSession(1, Config{})
	s.parseData(ptr(mkseg(5, 0, "x")))
	s.parseData(ptr(mkseg(5, 0, "x")))
	if len(s.rcvBuf) != 1 {
		t.Fatalf("rcvBuf len = %d, want 1 (duplicate must not be inserted)", len(s.rcvBuf))
	}
}

func TestParseDataOutsideWindowDropped(t *testing.T) {
	s := NewSession(1, Config{RecvWindow: 4})
	s.rcvNxt = 10
	s.parseData(ptr(mkseg(9, 0, "late")))   // before rcvNxt
	s.parseData(ptr(mkseg(100, 0, "huge"))) // past window
	if len(s.rcvBuf) != 0 {
		t.Fatalf("rcvBuf len = %d, want 0", len(s.rcvBuf))
	}
}

func TestRecvReassemblesFragmentedMessage(t *testing.T) {
	s := NewSession(1, Config{})
	s.parseData(ptr(mkseg(0, 1, "ab")))
	s.parseData(ptr(mkseg(1, 0, "cd")))

	out := make([]byte, 16)
	n, err := s.Recv(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(out[:n]) != "abcd" {
		t.Errorf("Recv = %q, want %q", out[:n], "abcd")
	}
}

func TestRecvIncompleteMessage(t *testing.T) {
	s := NewSession(1, Config{})
	s.parseData(ptr(mkseg(0, 1, "ab")))

	out := make([]byte, 16)
	_, err := s.Recv(out)
	if err != ErrIncomplete {
		t.Errorf("err = %v, want ErrIncomplete", err)
	}
}

func TestRecvBufferTooSmall(t *testing.T) {
	s := NewSession(1, Config{})
	s.parseData(ptr(mkseg(0, 0, "hello")))

	out := make([]byte, 2)
	_, err := s.Recv(out)
	if err != ErrBufferTooSmall {
		t.Errorf("err = %v, want ErrBufferTooSmall", err)
	}
}

func TestRecvEmpty(t *testing.T) {
	s := NewSession(1, Config{})
	_, err := s.Recv(make([]byte, 8))
	if err != ErrEmpty {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func TestParseAckRemovesAndFastacks(t *testing.T) {
	s := NewSession(1, Config{})
	s.sndBuf = []Segment{
		{SN: 0}, {SN: 1}, {SN: 2}, {SN: 3},
	}
	s.parseAck(2)
	if len(s.sndBuf) != 3 {
		t.Fatalf("sndBuf len = %d, want 3", len(s.sndBuf))
	}
	if s.sndBuf[0].fastack != 1 || s.sndBuf[1].fastack != 1 {
		t.Errorf("fastack not incremented for earlier segments: %+v", s.sndBuf)
	}
	if s.sndBuf[2].SN != 3 {
		t.Errorf("sn=2 segment should have been removed, buf = %+v", s.sndBuf)
	}
}

func TestParseUnaDropsAcked(t *testing.T) {
	s := NewSession(1, Config{})
	s.sndBuf = []Segment{{SN: 0}, {SN: 1}, {SN: 2}}
	s.sndNxt = 3
	s.parseUna(2)
	s.shrinkBuf()
	if len(s.sndBuf) != 1 || s.sndBuf[0].SN != 2 {
		t.Fatalf("sndBuf = %+v, want only sn=2", s.sndBuf)
	}
	if s.sndUna != 2 {
		t.Errorf("sndUna = %d, want 2", s.sndUna)
	}
}

func ptr(s Segment) *Segment { return &s }
