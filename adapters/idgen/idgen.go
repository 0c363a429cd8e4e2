// Package idgen provides ID generation implementations.
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quillcms/quill/ports"
)

// UUID generates UUIDs.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

var _ ports.IDGenerator = UUID{}

// CUID generates collision-resistant ids: a "c" prefix, a millisecond
// timestamp, a process counter, a host fingerprint, and random entropy,
// all base36.
type CUID struct {
	counter     uint64
	fingerprint string
}

// NewCUID creates a cuid generator fingerprinted to this process.
func NewCUID() *CUID {
	host, _ := os.Hostname()
	var sum int
	for _, c := range host {
		sum += int(c)
	}
	return &CUID{
		fingerprint: pad(base36(uint64(os.Getpid())), 2) + pad(base36(uint64(sum)), 2),
	}
}

// New generates the next cuid.
func (g *CUID) New() string {
	n := atomic.AddUint64(&g.counter, 1)

	var buf [8]byte
	rand.Read(buf[:])
	entropy := binary.BigEndian.Uint64(buf[:])

	return "c" +
		base36(uint64(time.Now().UnixMilli())) +
		pad(base36(n%1679616), 4) + // counter wraps at 36^4
		g.fingerprint +
		pad(base36(entropy%1679616), 4) +
		pad(base36((entropy>>32)%1679616), 4)
}

var _ ports.IDGenerator = (*CUID)(nil)

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return fmt.Sprintf("%s%d", s.prefix, n)
}

// Reset resets the counter (for testing).
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

var _ ports.IDGenerator = (*Sequential)(nil)

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

func base36(n uint64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{base36Digits[n%36]}, digits...)
		n /= 36
	}
	return string(digits)
}

func pad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	if len(s) > width {
		s = s[len(s)-width:]
	}
	return s
}
