// Package convid derives conversation identifiers for the arq transport
// from an endpoint tuple and a listener-local secret, the same
// stateless-hash-derived-identifier technique used for SYN cookies: no
// per-endpoint state is kept, so a derived ID can be recomputed and
// validated without a lookup table.
package convid

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Derive computes a 32-bit conversation id from a remote endpoint (IP
// address bytes, either 4 or 16 long, plus port) and secret. Equal inputs
// always derive the same id; the id is not meant to be unguessable, only to
// give every distinct endpoint tuple its own, collision-resistant
// conversation without a server-side allocation table.
func Derive(secret *[32]byte, remoteAddr []byte, remotePort uint16) uint32 {
	h, err := blake2b.New256(secret[:])
	if err != nil {
		// Only returns an error for an oversized key, which secret's fixed
		// width cannot produce.
		panic("convid: " + err.Error())
	}
	h.Write(remoteAddr)
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], remotePort)
	h.Write(portBuf[:])
	sum := h.Sum(nil)
	return binary.BigEndian.Uint32(sum[:4])
}

// NewSecret generates a random secret suitable for Derive, filling it by
// calling read (typically crypto/rand.Read).
func NewSecret(read func([]byte) (int, error)) (*[32]byte, error) {
	var secret [32]byte
	_, err := read(secret[:])
	if err != nil {
		return nil, err
	}
	return &secret, nil
}
