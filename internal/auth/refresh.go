package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateRefreshSecret returns a random Base64URL public token (16 bytes),
// a random Base64URL secret (32 bytes), and a random hex salt (16 bytes).
// The secret is returned to the caller exactly once; only its salted hash is
// ever persisted.
func GenerateRefreshSecret() (publicToken, secret, salt string, err error) {
	pub := make([]byte, 16)
	if _, err := rand.Read(pub); err != nil {
		return "", "", "", fmt.Errorf("generate public token: %w", err)
	}
	sec := make([]byte, 32)
	if _, err := rand.Read(sec); err != nil {
		return "", "", "", fmt.Errorf("generate secret: %w", err)
	}
	slt := make([]byte, 16)
	if _, err := rand.Read(slt); err != nil {
		return "", "", "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(pub),
		base64.RawURLEncoding.EncodeToString(sec),
		hex.EncodeToString(slt),
		nil
}

// HashRefreshSecret returns SHA256(salt:secret) as hex for storage
func HashRefreshSecret(secret, salt string) string {
	hash := sha256.Sum256([]byte(salt + ":" + secret))
	return hex.EncodeToString(hash[:])
}

// SecretMatches compares a presented secret against the stored hash in
// constant time.
func SecretMatches(secret, salt, storedHash string) bool {
	return constantTimeCompare([]byte(HashRefreshSecret(secret, salt)), []byte(storedHash))
}

func constantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var result int
	for i := 0; i < len(a); i++ {
		result |= int(a[i]) ^ int(b[i])
	}
	return result == 0
}
