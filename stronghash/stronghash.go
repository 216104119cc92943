// Package stronghash computes 128-bit content fingerprints.
//
// A Hash is the identity relation of the tile caches in this module:
// callers derive it from whatever semantic key identifies their content
// (glyph + font + size + style; image id + offset + cell size) and the
// caches never see the raw content at all. Collisions over one session's
// working set are treated as negligible; callers needing absolute safety
// can attach a secondary equality check to their cache metadata.
package stronghash

import (
	"encoding/binary"
	"fmt"
	"hash"

	sha256 "github.com/minio/sha256-simd"
)

// Size is the size of a Hash in bytes.
const Size = 16

// Hash is a 128-bit content fingerprint with bitwise equality.
// The zero value is a valid (if unlikely) hash; Hash is comparable and
// can be used directly as a map key.
type Hash struct {
	Lo uint64
	Hi uint64
}

// Sum computes the fingerprint of data: SHA-256 truncated to 128 bits.
func Sum(data []byte) Hash {
	sum := sha256.Sum256(data)
	return fromBytes(sum[:Size])
}

// SumString computes the fingerprint of the bytes of s. It is Sum over
// a []byte conversion of s.
func SumString(s string) Hash {
	return Sum([]byte(s))
}

// FromWords assembles a Hash directly from four 32-bit words.
// Word a occupies the most significant bits, d the least. This is meant
// for tests and for callers whose key already is a small fixed tuple.
func FromWords(a, b, c, d uint32) Hash {
	return Hash{
		Hi: uint64(a)<<32 | uint64(b),
		Lo: uint64(c)<<32 | uint64(d),
	}
}

func fromBytes(b []byte) Hash {
	return Hash{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}
}

// Project32 projects the hash to 32 bits for bucket indexing.
// The SHA-256 output is uniformly distributed, so the low word is as
// good a bucket selector as any.
func (h Hash) Project32() uint32 {
	return uint32(h.Lo)
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h.Lo == 0 && h.Hi == 0
}

// String renders the hash as 32 hex digits, most significant first.
func (h Hash) String() string {
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// A Hasher incrementally fingerprints a semantic key. It avoids the
// intermediate buffer a caller would otherwise assemble just to call
// Sum. The zero value is not usable; call New.
//
//	hasher := stronghash.New()
//	hasher.WriteUint32(uint32(glyphID))
//	hasher.WriteUint16(fontSize)
//	hasher.WriteUint8(byte(style))
//	key := hasher.Sum()
type Hasher struct {
	inner   hash.Hash
	scratch [8]byte
}

// New creates a Hasher ready for use.
func New() *Hasher {
	return &Hasher{inner: sha256.New()}
}

// Reset clears the Hasher for reuse.
func (s *Hasher) Reset() {
	s.inner.Reset()
}

// Write absorbs raw bytes into the fingerprint.
func (s *Hasher) Write(p []byte) {
	// sha256.Write never fails.
	_, _ = s.inner.Write(p)
}

// WriteUint8 absorbs a single byte.
func (s *Hasher) WriteUint8(b byte) {
	s.scratch[0] = b
	s.Write(s.scratch[:1])
}

// WriteUint16 absorbs v in big-endian order.
func (s *Hasher) WriteUint16(v uint16) {
	binary.BigEndian.PutUint16(s.scratch[:2], v)
	s.Write(s.scratch[:2])
}

// WriteUint32 absorbs v in big-endian order.
func (s *Hasher) WriteUint32(v uint32) {
	binary.BigEndian.PutUint32(s.scratch[:4], v)
	s.Write(s.scratch[:4])
}

// WriteUint64 absorbs v in big-endian order.
func (s *Hasher) WriteUint64(v uint64) {
	binary.BigEndian.PutUint64(s.scratch[:8], v)
	s.Write(s.scratch[:8])
}

// Sum finalizes and returns the 128-bit fingerprint. The Hasher remains
// usable; further writes continue the same stream.
func (s *Hasher) Sum() Hash {
	var buf [sha256.Size]byte
	return fromBytes(s.inner.Sum(buf[:0])[:Size])
}
