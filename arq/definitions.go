// Package arq implements a reliable, ordered, message-oriented transport
// protocol layered over an unreliable datagram substrate. A [Session] is a
// single-threaded, non-reentrant state machine: callers feed it inbound
// datagram payloads via Input, pull reassembled messages via Recv, queue
// outbound messages via Send, and drive its clock via Update.
package arq

import "fmt"

// Seq is a segment-granular sequence number or millisecond timestamp living
// in a wraparound 32-bit space. Comparisons must use Diff/Less, never the
// raw unsigned values, since the space wraps.
type Seq uint32

// Diff returns a-b interpreted as a signed 32-bit difference, tolerant of
// wraparound. A positive result means a is "later" than b.
func (a Seq) Diff(b Seq) int32 {
	return int32(a - b)
}

// Less reports whether a precedes b in the wraparound sequence space.
func (a Seq) Less(b Seq) bool {
	return a.Diff(b) < 0
}

// LessEq reports whether a precedes or equals b in the wraparound sequence space.
func (a Seq) LessEq(b Seq) bool {
	return a.Diff(b) <= 0
}

// Add returns a+n, wrapping as needed.
func (a Seq) Add(n uint32) Seq {
	return a + Seq(n)
}

// command identifies the purpose of a segment on the wire.
type command uint8

const (
	cmdPush command = 81 + iota // carries application data.
	cmdAck                      // acknowledges a single sn.
	cmdWAsk                     // "window ask": requests peer advertise its receive window.
	cmdWIns                     // "window insight": advertises sender's receive window unconditionally.
)

func (c command) String() string {
	switch c {
	case cmdPush:
		return "PUSH"
	case cmdAck:
		return "ACK"
	case cmdWAsk:
		return "WASK"
	case cmdWIns:
		return "WINS"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}

func (c command) valid() bool {
	return c >= cmdPush && c <= cmdWIns
}

// probe flags, set on Session.probe and cleared each flush.
const (
	probeAskSend uint8 = 1 << iota // we should send a WASK (our send side stalled on zero remote window).
	probeAskTell                   // we should send a WINS (advertise our receive window unconditionally).
)

// Defaults, mirrored from the tuning surface's zero-value behavior.
const (
	defaultMTU        = 1400
	defaultSendWindow = 32
	defaultRecvWindow = 32
	defaultInterval   = 100 // ms
	minInterval       = 10
	maxInterval       = 5000
	defaultRTO        = 200 // ms, initial rx_rto before any sample
	rtoNoDelayMin     = 30
	rtoNormalMin      = 100
	rtoMax            = 60000
	defaultDeadLink   = 10
	headerSize        = 24
	minMTU            = 50 // max(50, headerSize): smallest mtu SetMTU/NewSession will accept.
	maxFragments      = 255
)
