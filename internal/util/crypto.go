package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/pbkdf2"
)

// APIKeyPrefix marks every issued API key.
const APIKeyPrefix = "mcp_"

// apiKeyRandomLength is the number of random characters after the prefix.
const apiKeyRandomLength = 48

const apiKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// GenerateAPIKey returns a new plaintext API key: the "mcp_" prefix followed
// by 48 characters drawn uniformly from [a-zA-Z0-9].
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyRandomLength)
	max := big.NewInt(int64(len(apiKeyAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = apiKeyAlphabet[n.Int64()]
	}
	return APIKeyPrefix + string(buf), nil
}

// GenerateSecretHex returns a 64-char lowercase hex string from 32 random
// bytes. Used for authorization codes, access tokens and refresh tokens.
func GenerateSecretHex() (string, error) {
	bytes, err := CryptoRandomBytes(32)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashAPIKey returns the PBKDF2-SHA256 hash of an API key with the
// application-wide salt. The salt is shared so the hash doubles as an indexed
// equality lookup key; the inputs are generated high-entropy secrets, not
// user-chosen passwords. Parameters match Gitea's token hashing.
func HashAPIKey(key, salt string) string {
	hash := pbkdf2.Key([]byte(key), []byte(salt), 10000, 50, sha256.New)
	return hex.EncodeToString(hash)
}

// SHA256Hex returns the SHA-256 hash of s as a lowercase hex string.
// Intended for high-entropy, unguessable values (generated codes and tokens);
// for such inputs a KDF adds cost without adding security.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two strings in constant time.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
