// Package rand generates short non-cryptographic identifiers for
// channel frames.
package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var (
	mu  sync.Mutex
	rng = newRNG()
)

func newRNG() *rand.Rand {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		panic("unreachable")
	}
	//nolint:gosec // frame IDs are not security-critical
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}

// NewFrameID returns a random identifier of the given length.
// Distribution over the charset is close enough to uniform for
// request correlation, which is all this is used for.
func NewFrameID(length int) string {
	buf := make([]byte, length)

	mu.Lock()
	for i := range buf {
		buf[i] = charset[rng.IntN(len(charset))]
	}
	mu.Unlock()

	return string(buf)
}
