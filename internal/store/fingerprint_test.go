package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	headers := []string{"姓名", "身份证号码", "入职日期"}
	assert.Equal(t, Fingerprint(headers), Fingerprint(headers))
}

// Order is part of the key: permuted header lists are independent
// fingerprints.
func TestFingerprintOrderSensitive(t *testing.T) {
	a := Fingerprint([]string{"姓名", "入职日期"})
	b := Fingerprint([]string{"入职日期", "姓名"})
	assert.NotEqual(t, a, b)
}

func TestFingerprintBoundaries(t *testing.T) {
	// Concatenation ambiguity must not collide.
	a := Fingerprint([]string{"ab", "c"})
	b := Fingerprint([]string{"a", "bc"})
	assert.NotEqual(t, a, b)

	// Differing lengths differ.
	assert.NotEqual(t, Fingerprint([]string{"a"}), Fingerprint([]string{"a", ""}))
}

func TestShortFingerprint(t *testing.T) {
	fp := Fingerprint([]string{"姓名"})
	assert.Len(t, ShortFingerprint(fp), 12)
	assert.Equal(t, "abc", ShortFingerprint("abc"))
}
