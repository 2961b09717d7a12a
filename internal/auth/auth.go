// Package auth hashes and verifies passwords, validates sign-ups and mints
// session tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names a password hashing algorithm.
type Scheme string

const (
	// SchemeSHA256 is the unsalted hex SHA-256 digest used by existing stores.
	SchemeSHA256 Scheme = "sha256"
	// SchemeBcrypt is a salted bcrypt digest.
	SchemeBcrypt Scheme = "bcrypt"
)

// BcryptCost is the work factor for bcrypt digests.
const BcryptCost = 12

// Hasher produces password digests for new credentials.
type Hasher interface {
	Hash(password string) (string, error)
}

// SHA256Hasher hashes with unsalted SHA-256. Identical passwords yield
// identical digests.
type SHA256Hasher struct{}

// Hash returns the hex SHA-256 digest of password.
func (SHA256Hasher) Hash(password string) (string, error) {
	return HashSHA256(password), nil
}

// BcryptHasher hashes with bcrypt at Cost, or BcryptCost when zero.
type BcryptHasher struct {
	Cost int
}

// Hash returns a bcrypt digest of password.
func (b BcryptHasher) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = BcryptCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// NewHasher returns the Hasher for scheme.
func NewHasher(scheme Scheme) (Hasher, error) {
	switch Scheme(strings.ToLower(string(scheme))) {
	case "", SchemeSHA256:
		return SHA256Hasher{}, nil
	case SchemeBcrypt:
		return BcryptHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme: %s", scheme)
	}
}

// HashSHA256 returns the hex SHA-256 digest of password.
func HashSHA256(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// HashPassword hashes password with the default scheme.
func HashPassword(password string) (string, error) {
	return SHA256Hasher{}.Hash(password)
}

// CheckPassword reports whether password matches the stored digest. Both
// SHA-256 and bcrypt digests are accepted.
func CheckPassword(password, stored string) bool {
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	candidate := HashSHA256(password)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) == 1
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

// GenerateSessionToken returns a random 32-byte hex token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
