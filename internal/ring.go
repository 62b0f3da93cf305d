package internal

import (
	"errors"
	"io"
)

var (
	errRingBufferFull = errors.New("arq/internal: buffer full")
	errRingNoData     = errors.New("arq/internal: empty write")
)

// Ring is a fixed-capacity byte ring buffer. It backs transport/udp.Stream's
// adaptation of arq's message-oriented Recv into an io.Reader byte stream:
// each reassembled message is appended whole, then drained by Read in the
// order messages arrived.
type Ring struct {
	// Buf stores data written with Write and read back out with Read. Its
	// capacity is fixed at construction; there is no readable data when
	// End==0.
	Buf []byte
	// Off is the start of readable data, indexing into Buf. Off<len(Buf)
	// always holds. If Off==End and End!=0 the buffer is full.
	Off int
	// End is the end of readable data, indexing into Buf (exclusive).
	// End==0 means the buffer is empty.
	End int
}

// Write appends b to the ring buffer, to be read back in order by Read. It
// returns an error, and writes nothing, if b is larger than the remaining
// free space. An empty b writes nothing and returns no error. Writes always
// begin at Buf[End].
func (r *Ring) Write(b []byte) (int, error) {
	if len(b) > r.Free() {
		return 0, errRingBufferFull
	} else if len(b) == 0 {
		return 0, nil
	}
	midFree := r.midFree()
	if midFree > 0 {
		// start     end       off    len(buf)
		//   |  used  |  mfree  |  used  |
		n := copy(r.Buf[r.End:r.Off], b)
		r.End += n
		return n, nil
	} else if r.End == 0 {
		r.End = r.Off
	}
	// start       off       end      len(buf)
	//   |  sfree   |  used   |  efree   |
	n := copy(r.Buf[r.End:], b)
	r.End += n
	if n < len(b) {
		n2 := copy(r.Buf, b[n:])
		r.End = n2
		n += n2
	}
	return n, nil
}

// Read reads up to len(b) bytes from the ring buffer and advances the read
// pointer. Returns io.EOF when no data is available.
func (r *Ring) Read(b []byte) (int, error) {
	if r.Buffered() == 0 {
		return 0, io.EOF
	}
	var n int
	if r.End > r.Off {
		// start       off       end      len(buf)
		//   |  sfree   |  used   |  efree   |
		n = copy(b, r.Buf[r.Off:r.End])
	} else {
		// start     end       off     len(buf)
		//   |  used  |  mfree  |  used  |
		n = copy(b, r.Buf[r.Off:])
		if n < len(b) {
			n += copy(b[n:], r.Buf[:r.End])
		}
	}
	r.onReadEnd(n)
	return n, nil
}

// Reset discards all buffered data.
func (r *Ring) Reset() {
	r.Off = 0
	r.End = 0
}

// Size returns the capacity of the ring buffer.
func (r *Ring) Size() int {
	return len(r.Buf)
}

// Buffered returns the number of bytes ready to read.
func (r *Ring) Buffered() int {
	return r.Size() - r.Free()
}

// Free returns the number of bytes that can be written before the buffer is
// full.
func (r *Ring) Free() int {
	if r.End == 0 || r.Off == 0 {
		return len(r.Buf) - r.End
	}
	if r.Off < r.End {
		startFree := r.Off
		endFree := len(r.Buf) - r.End
		return startFree + endFree
	}
	return r.Off - r.End
}

func (r *Ring) midFree() int {
	if r.End >= r.Off || r.End == 0 {
		return 0
	}
	return r.Off - r.End
}

func (r *Ring) isFull() bool {
	return r.End != 0 && (r.End == r.Off || (r.End == len(r.Buf) && r.Off == 0))
}

// onReadEnd advances Off past a read of totalRead bytes, resetting the
// buffer to empty when it catches up with End.
func (r *Ring) onReadEnd(totalRead int) {
	newOff := r.addOff(r.Off, totalRead)
	if newOff == r.End {
		r.Reset()
	} else if newOff == len(r.Buf) {
		r.Off = 0
	} else {
		r.Off = newOff
	}
}

func (r *Ring) addOff(a, b int) int {
	result := a + b
	if result > len(r.Buf) {
		result -= len(r.Buf)
	}
	return result
}
