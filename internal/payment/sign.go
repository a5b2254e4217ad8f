package payment

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
)

// Signing helpers shared by the adapters. All are deterministic, pure
// functions over byte strings; the exact digest per use is mandated by each
// gateway's documentation.

// HMACSHA256Hex returns the hex-encoded HMAC-SHA256 of msg under key.
func HMACSHA256Hex(key, msg string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// SHA512Hex returns the hex-encoded SHA-512 digest of msg.
func SHA512Hex(msg string) string {
	sum := sha512.Sum512([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// SHA256Hex returns the hex-encoded SHA-256 digest of msg.
func SHA256Hex(msg string) string {
	sum := sha256.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// MD5Hex returns the hex-encoded MD5 digest of msg. Kept only because some
// gateway legacy endpoints still negotiate it; never used for new signatures.
func MD5Hex(msg string) string {
	sum := md5.Sum([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// signaturesEqual does a constant-time byte comparison of two hex signatures.
func signaturesEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
