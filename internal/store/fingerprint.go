package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint hashes an ordered list of cleaned headers. Identical ordered
// lists always produce identical fingerprints; permuted lists are distinct
// keys on purpose — column order is part of the cache identity.
func Fingerprint(cleanedHeaders []string) string {
	h := sha256.New()
	for _, header := range cleanedHeaders {
		h.Write([]byte(header))
		// Unit separator keeps ["ab","c"] and ["a","bc"] apart.
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ShortFingerprint returns a log-friendly prefix.
func ShortFingerprint(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}

// JoinHeaders renders a header list for log lines.
func JoinHeaders(headers []string) string {
	return strings.Join(headers, ", ")
}
