package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
	"time"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// FormatISO renders t in UTC with millisecond precision, e.g. 2025-09-01T08:30:00.000Z.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// NormalizeBool accepts the spellings the registration form has used for consent.
func NormalizeBool(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "yes", "true", "1", "y", "on":
		return true
	default:
		return false
	}
}

// SecretEqual compares two secrets in constant time. Both sides are hashed
// first so the comparison does not leak the length of want.
func SecretEqual(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	a := hmacSHA256([]byte("clubreg"), got)
	b := hmacSHA256([]byte("clubreg"), want)
	return hmac.Equal(a, b)
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// NormalizePrivateKey turns literal "\n" escapes from env files into real newlines.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// Slug lowercases s and replaces each run of whitespace with a single hyphen.
func Slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
