// Package gameid mints time-ordered identifiers: UUIDv7 encoded as 26
// characters of Crockford base32. Lexically sorting the IDs sorts them by
// creation time, which keeps settlement batch journals in submission order.
package gameid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const (
	alphabet = "0123456789abcdefghjkmnpqrstvwxyz"
	idLen    = 26
)

// New returns a fresh identifier for the current time.
func New() string {
	var entropy [10]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		panic("gameid: entropy unavailable: " + err.Error())
	}
	return At(time.Now(), entropy)
}

// At mints the identifier for a fixed timestamp and entropy. Tests use it
// to get reproducible IDs.
func At(t time.Time, entropy [10]byte) string {
	var u [16]byte

	// 48-bit big-endian millisecond timestamp, then entropy.
	ms := uint64(t.UnixMilli())
	u[0] = byte(ms >> 40)
	u[1] = byte(ms >> 32)
	u[2] = byte(ms >> 24)
	u[3] = byte(ms >> 16)
	u[4] = byte(ms >> 8)
	u[5] = byte(ms)
	copy(u[6:], entropy[:])

	// UUIDv7 version and variant bits.
	u[6] = (u[6] & 0x0f) | 0x70
	u[8] = (u[8] & 0x3f) | 0x80

	return encode(u)
}

// encode renders 128 bits as base32, most significant bits first. 26
// characters hold 130 bits, so the final character carries two zero bits
// of padding.
func encode(u [16]byte) string {
	var out [idLen]byte
	var acc uint32
	bits, n := 0, 0
	for _, b := range u {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			out[n] = alphabet[(acc>>uint(bits-5))&0x1f]
			bits -= 5
			n++
		}
	}
	out[n] = alphabet[(acc<<uint(5-bits))&0x1f]
	return string(out[:])
}

// Validate checks that id is a well-formed identifier.
func Validate(id string) error {
	if len(id) != idLen {
		return fmt.Errorf("id must be %d characters, got %d", idLen, len(id))
	}
	// The leading character encodes the top of the 48-bit timestamp and
	// stays in 0-7 for any plausible clock.
	if id[0] > '7' {
		return fmt.Errorf("id first character out of range: %c", id[0])
	}
	for i, c := range id {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("invalid character %q at position %d", c, i)
		}
	}
	return nil
}
