package spv

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash is a 32-byte double-SHA256 digest. It is compared and hashed
// over its full content. String() renders big-endian (the display
// convention); the wire form is little-endian, i.e. byte-reversed
// relative to String().
type Hash [32]byte

func (h Hash) String() string {
	var rev Hash
	for i := 0; i < 32; i++ {
		rev[i] = h[31-i]
	}
	return hex.EncodeToString(rev[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := HashFromString(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Scan implements sql.Scanner so disk-backed stores can read Hash
// columns directly (32 raw bytes, little-endian/wire order).
func (h *Hash) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("spv: unexpected type %T for Hash", value)
	}
	if len(b) != 32 {
		return fmt.Errorf("spv: expected 32 bytes for Hash, got %d", len(b))
	}
	copy(h[:], b)
	return nil
}

func (h Hash) Value() (driver.Value, error) {
	return h[:], nil
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashFromBytes interprets b as wire-order (little-endian) bytes.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// HashFromString parses the big-endian display form produced by String().
func HashFromString(s string) (Hash, error) {
	if len(s) != 64 {
		return Hash{}, fmt.Errorf("spv: hash string must be 64 hex chars, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	for i := 0; i < 32; i++ {
		h[i] = b[31-i]
	}
	return h, nil
}

// DoubleSha256 is the hash function used throughout the wire protocol
// for block and transaction identity.
func DoubleSha256(b []byte) Hash {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return Hash(second)
}
