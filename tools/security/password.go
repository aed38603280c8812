// Package security implements the hash(password, salt) -> hex digest
// contract stubbed by spec §1/§4.13. The teacher's tools/security/jwt.go
// issues bearer tokens via github.com/golang-jwt/jwt/v5; this spec has no
// bearer-token surface (credentials are checked per login frame, not
// carried as a signed token), so that file is replaced outright. PBKDF2
// is used instead of the pack's other password primitive
// (golang.org/x/crypto/bcrypt, used by solkin-msim-go/db/db.go) because
// bcrypt has no external-salt parameter and the contract requires one.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
)

// HashPassword computes hash(password, salt) -> hex digest per §1.
func HashPassword(password, salt string) string {
	digest := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(digest)
}

// VerifyPassword reports whether password hashes to digest under salt,
// comparing in constant time.
func VerifyPassword(password, salt, digest string) bool {
	computed := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// NewSalt returns a random hex-encoded salt of the given byte length.
func NewSalt(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
