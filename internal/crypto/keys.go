// Package crypto holds the constant-time secret comparison and signing-key
// derivation used by the auth layer.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyLength = 32

// Equal reports whether a and b are identical without leaking where they
// differ or how long either is. Both sides are hashed first so the
// comparison always runs over 32 bytes.
func Equal(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1 && len(a) == len(b)
}

// DeriveKey expands secret into a 32-byte key bound to info.
func DeriveKey(secret, info string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}
