package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// AdminKeyLength is the number of hex characters in an admin key.
const AdminKeyLength = 10

// HourBucket formats t as yyMMddHH in t's location. A new admin key is derived
// for every bucket.
func HourBucket(t time.Time) string {
	return t.Format("06010215")
}

// DeriveAdminKey returns the admin key for the hour containing t:
// the first AdminKeyLength hex characters of sha256(HourBucket(t) + secret).
func DeriveAdminKey(t time.Time, secret string) string {
	sum := sha256.Sum256([]byte(HourBucket(t) + secret))
	return hex.EncodeToString(sum[:])[:AdminKeyLength]
}

// NormalizeKeyInput keeps only ASCII letters and digits from text,
// so "abc-123 def" is compared as "abc123def".
func NormalizeKeyInput(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}

	return b.String()
}
