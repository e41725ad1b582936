package cache

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ResponseKey derives the response-cache key for a stream listing request.
// It hashes the API key in with the rest of the request shape instead of
// concatenating it in cleartext, so a cache dump or a stray log of a key
// never reveals the raw credential (spec §7: API keys must not be logged
// or retained in process-wide structures in cleartext).
func ResponseKey(path, contentID, deviceClass string, providerTags []string, apiKeys map[string]string, resolveAll bool) string {
	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('|')
	b.WriteString(contentID)
	b.WriteByte('|')
	b.WriteString(deviceClass)
	b.WriteByte('|')
	b.WriteString(strings.Join(providerTags, ","))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(resolveAll))
	b.WriteByte('|')
	for _, tag := range providerTags {
		b.WriteString(tag)
		b.WriteByte('=')
		b.WriteString(hashSecret(apiKeys[tag]))
		b.WriteByte(',')
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// hashSecret reduces an API key to a short, irreversible fingerprint so it
// never appears verbatim in a cache key.
func hashSecret(secret string) string {
	return Fingerprint(secret)
}

// Fingerprint reduces any secret (an API key, a cookie) to a short,
// irreversible fingerprint suitable for use as part of a cache key or a log
// field, so the raw value is never retained anywhere.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}
