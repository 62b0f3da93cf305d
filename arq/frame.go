package arq

import "encoding/binary"

// Frame wraps a raw byte slice holding one encoded segment header (and its
// trailing payload) and provides big-endian accessors for its fields at
// fixed offsets: a thin view over a caller-owned buffer, never a copy.
type Frame struct {
	buf []byte
}

// NewFrame returns a Frame viewing buf, which must be at least headerSize
// bytes long.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < headerSize {
		return Frame{}, ErrTruncated
	}
	return Frame{buf: buf}, nil
}

// RawData returns the buffer the frame was constructed with.
func (f Frame) RawData() []byte { return f.buf }

func (f Frame) Conv() uint32 { return binary.BigEndian.Uint32(f.buf[0:4]) }
func (f Frame) SetConv(v uint32) {
	binary.BigEndian.PutUint32(f.buf[0:4], v)
}

func (f Frame) Cmd() command { return command(f.buf[4]) }
func (f Frame) SetCmd(c command) {
	f.buf[4] = byte(c)
}

func (f Frame) Frg() uint8 { return f.buf[5] }
func (f Frame) SetFrg(v uint8) {
	f.buf[5] = v
}

func (f Frame) Wnd() uint16 { return binary.BigEndian.Uint16(f.buf[6:8]) }
func (f Frame) SetWnd(v uint16) {
	binary.BigEndian.PutUint16(f.buf[6:8], v)
}

func (f Frame) TS() Seq { return Seq(binary.BigEndian.Uint32(f.buf[8:12])) }
func (f Frame) SetTS(v Seq) {
	binary.BigEndian.PutUint32(f.buf[8:12], uint32(v))
}

func (f Frame) SN() Seq { return Seq(binary.BigEndian.Uint32(f.buf[12:16])) }
func (f Frame) SetSN(v Seq) {
	binary.BigEndian.PutUint32(f.buf[12:16], uint32(v))
}

func (f Frame) Una() Seq { return Seq(binary.BigEndian.Uint32(f.buf[16:20])) }
func (f Frame) SetUna(v Seq) {
	binary.BigEndian.PutUint32(f.buf[16:20], uint32(v))
}

func (f Frame) Len() uint32 { return binary.BigEndian.Uint32(f.buf[20:24]) }
func (f Frame) SetLen(v uint32) {
	binary.BigEndian.PutUint32(f.buf[20:24], v)
}

// encodeSegment writes seg's header and payload into buf starting at offset,
// returning the new offset. buf must have at least seg.size() bytes free
// past offset.
func encodeSegment(buf []byte, offset int, seg *Segment) int {
	f, err := NewFrame(buf[offset:])
	if err != nil {
		panic("arq: encodeSegment: " + err.Error())
	}
	f.SetConv(seg.Conv)
	f.SetCmd(seg.Cmd)
	f.SetFrg(seg.Frg)
	f.SetWnd(seg.Wnd)
	f.SetTS(seg.TS)
	f.SetSN(seg.SN)
	f.SetUna(seg.Una)
	f.SetLen(uint32(len(seg.Data)))
	offset += headerSize
	offset += copy(buf[offset:], seg.Data)
	return offset
}

// decodeHeader reads a segment header at buf[0:headerSize] into seg,
// leaving seg.Data nil, and returns the payload length the header claims.
// The caller slices the payload separately since its backing array is the
// caller's datagram buffer, not a copy.
func decodeHeader(buf []byte, seg *Segment) (payloadLen uint32, err error) {
	f, err := NewFrame(buf)
	if err != nil {
		return 0, err
	}
	seg.Conv = f.Conv()
	seg.Cmd = f.Cmd()
	seg.Frg = f.Frg()
	seg.Wnd = f.Wnd()
	seg.TS = f.TS()
	seg.SN = f.SN()
	seg.Una = f.Una()
	seg.Data = nil
	return f.Len(), nil
}
