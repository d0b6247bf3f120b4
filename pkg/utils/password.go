package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptPrefix = "scrypt"
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltBytes    = 16
)

func deriveKey(password, saltHex string) ([]byte, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("invalid salt encoding: %w", err)
	}
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
}

// HashPassword derives a self-describing record of the form
// scrypt$<salt hex>$<derived key hex> with a fresh random salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	saltHex := hex.EncodeToString(salt)

	derived, err := deriveKey(password, saltHex)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s$%s$%s", scryptPrefix, saltHex, hex.EncodeToString(derived)), nil
}

func IsHashedPassword(stored string) bool {
	return strings.HasPrefix(stored, scryptPrefix+"$")
}

// VerifyPassword checks password against a stored record. Records that are
// not in the scrypt form are treated as legacy plaintext and compared
// directly; legacy reports true so the caller can rehash in place.
// Both comparisons run in constant time.
func VerifyPassword(password, stored string) (ok bool, legacy bool) {
	if !IsHashedPassword(stored) {
		return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1, true
	}

	parts := strings.Split(stored, "$")
	if len(parts) != 3 {
		return false, false
	}

	expected, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, false
	}

	derived, err := deriveKey(password, parts[1])
	if err != nil {
		return false, false
	}

	if len(expected) != len(derived) {
		return false, false
	}

	return subtle.ConstantTimeCompare(expected, derived) == 1, false
}
