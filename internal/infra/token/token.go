// Package token issues the one-time confirmation codes that gate payments.
// Codes are six decimal digits drawn from crypto/rand; only their SHA-256
// hex digest is ever persisted, so a stolen database cannot confirm a
// payment.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// CodeLength is the number of decimal digits in a confirmation code.
const CodeLength = 6

const codeSpace = 1_000_000

// Issuer generates confirmation codes.
type Issuer struct{}

// NewIssuer creates a code issuer.
func NewIssuer() *Issuer { return &Issuer{} }

// Issue returns a fresh code ("000000".."999999") and its hash. The code
// goes to the customer out-of-band; the hash goes to the store.
func (i *Issuer) Issue() (code, hash string, err error) {
	n, err := uniform(codeSpace)
	if err != nil {
		return "", "", fmt.Errorf("issue code: %w", err)
	}
	code = fmt.Sprintf("%0*d", CodeLength, n)
	return code, Hash(code), nil
}

// Hash returns the hex SHA-256 digest of a code.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether code hashes to hash, in constant time.
func Matches(code, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(code)), []byte(hash)) == 1
}

// uniform returns a uniformly distributed value in [0, max) using rejection
// sampling, so no code is more likely than another.
func uniform(max uint64) (uint64, error) {
	limit := ^uint64(0) - (^uint64(0) % max)
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return v % max, nil
		}
	}
}
