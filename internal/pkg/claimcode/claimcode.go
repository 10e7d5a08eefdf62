// Package claimcode handles the opaque codes emailed for parent purchases.
// Codes are case-insensitive; only [0-9A-Z] is significant and display
// groups them in blocks of four separated by "-".
package claimcode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// MinLength is the shortest normalized code accepted for redemption.
	MinLength = 8
	// DefaultLength is the length of generated codes.
	DefaultLength = 16

	groupSize = 4
	// no 0/O/1/I to keep handwritten codes readable
	alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// Normalize uppercases s and strips everything outside [0-9A-Z].
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format normalizes s and groups it for display: "AB12-CD34".
func Format(s string) string {
	n := Normalize(s)
	if len(n) <= groupSize {
		return n
	}
	var b strings.Builder
	for i := 0; i < len(n); i += groupSize {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + groupSize
		if end > len(n) {
			end = len(n)
		}
		b.WriteString(n[i:end])
	}
	return b.String()
}

// IsWellFormed reports whether s is long enough to be worth a lookup.
func IsWellFormed(s string) bool {
	return len(Normalize(s)) >= MinLength
}

// Generate returns a new normalized code of the given length.
func Generate(length int) (string, error) {
	if length < MinLength {
		length = DefaultLength
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
