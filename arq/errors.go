package arq

import "errors"

var (
	// ErrConvMismatch is returned by Input when a datagram's conv field does
	// not match the session's conv. The whole datagram is dropped.
	ErrConvMismatch = errors.New("arq: conv mismatch")
	// ErrTruncated is returned by Input when a header claims more payload
	// than remains in the datagram.
	ErrTruncated = errors.New("arq: truncated segment")
	// ErrUnknownCmd is returned by Input when a segment's cmd byte is not
	// one of the known commands.
	ErrUnknownCmd = errors.New("arq: unknown command")

	// ErrEmptyPayload is returned by Send when given a zero-length message.
	ErrEmptyPayload = errors.New("arq: empty payload")
	// ErrTooLarge is returned by Send when the message would require more
	// than 255 fragments at the current MTU.
	ErrTooLarge = errors.New("arq: payload too large for configured mtu")

	// ErrEmpty is returned by Recv when no message is currently deliverable.
	// Not a fault; callers poll again after more Input/Update calls.
	ErrEmpty = errors.New("arq: nothing to receive")
	// ErrIncomplete is returned by Recv when the next message's fragments
	// have not all arrived yet.
	ErrIncomplete = errors.New("arq: message incomplete")
	// ErrBufferTooSmall is returned by Recv when the caller's buffer cannot
	// hold the next deliverable message.
	ErrBufferTooSmall = errors.New("arq: receive buffer too small")

	// ErrMTUTooSmall is returned by SetMTU when the requested MTU is below
	// the protocol's minimum of 50 bytes.
	ErrMTUTooSmall = errors.New("arq: mtu too small")
)
