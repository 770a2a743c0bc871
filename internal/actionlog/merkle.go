// Package actionlog keeps per-room action histories and hashes them into
// the settlement Merkle tree. One completed hand's log becomes one leaf;
// a batch's leaves roll up to the root recorded on the ledger.
package actionlog

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/lox/holdem-arena/internal/game"
)

// HashSize is the byte length of leaf and root hashes.
const HashSize = 32

// Hash is a keccak-256 digest.
type Hash [HashSize]byte

// ZeroHash is the Merkle root of an empty log.
var ZeroHash Hash

// Hex returns the digest as a lowercase hex string.
func (h Hash) Hex() string {
	return fmt.Sprintf("%x", h[:])
}

// MarshalText implements encoding.TextMarshaler so hashes serialise as hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) != 2*HashSize {
		return fmt.Errorf("hash must be %d hex characters, got %d", 2*HashSize, len(text))
	}
	_, err := hex.Decode(h[:], text)
	return err
}

// Sum hashes arbitrary bytes with keccak-256. The settler derives session
// identifiers with it.
func Sum(data []byte) Hash {
	return keccak(data)
}

// Canonical serialises an action log into its hashable form: one
// playerId:action:amount:phase:timestamp record per action, joined with
// "|".
func Canonical(records []game.ActionRecord) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = fmt.Sprintf("%s:%s:%d:%s:%d", r.PlayerID, r.Action, r.Amount, r.Phase, r.TimestampMs)
	}
	return strings.Join(parts, "|")
}

// LeafHash hashes one hand's canonical action log with keccak-256.
func LeafHash(records []game.ActionRecord) Hash {
	return keccak([]byte(Canonical(records)))
}

// MerkleRoot computes the root over the given leaves. Each level hashes
// sorted pairs, so sibling order never changes the root; an odd leaf is
// promoted to the next level unchanged. A single leaf is its own root and
// no leaves yield ZeroHash.
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}
	level := append([]Hash(nil), leaves...)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, combine(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}

// combine hashes a sorted pair: H(min(a,b) ‖ max(a,b)).
func combine(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	buf := make([]byte, 0, 2*HashSize)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return keccak(buf)
}

// keccak is the original Keccak-256, matching on-chain hashing, not the
// padded NIST SHA3-256.
func keccak(data []byte) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
