package arq

import "testing"

func TestSendFragmentIndexing(t *testing.T) {
	s := NewSession(1, Config{MTU: minMTU}) // mss = 26
	data := make([]byte, 58)                // 3 fragments: 26,26,6
	for i := range data {
		data[i] = byte(i)
	}
	if err := s.Send(data); err != nil {
		t.Fatal(err)
	}
	if len(s.sndQue) != 3 {
		t.Fatalf("got %d fragments, want 3", len(s.sndQue))
	}
	// Last fragment must carry Frg==0; earlier fragments count down.
	wantFrg := []uint8{2, 1, 0}
	for i, seg := range s.sndQue {
		if seg.Frg != wantFrg[i] {
			t.Errorf("fragment %d: Frg = %d, want %d", i, seg.Frg, wantFrg[i])
		}
	}
	if len(s.sndQue[2].Data) != 6 {
		t.Errorf("last fragment len = %d, want 6", len(s.sndQue[2].Data))
	}
}

func TestSendEmptyPayload(t *testing.T) {
	s := NewSession(1, Config{})
	if err := s.Send(nil); err != ErrEmptyPayload {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestSendTooLarge(t *testing.T) {
	s := NewSession(1, Config{MTU: minMTU}) // mss = 26
	data := make([]byte, 256*26)            // needs 256 fragments > 255
	if err := s.Send(data); err != ErrTooLarge {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}
