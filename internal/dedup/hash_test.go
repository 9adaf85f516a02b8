package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_KnownValue(t *testing.T) {
	// md5("") = d41d8cd98f00b204e9800998ecf8427e
	assert.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", Fingerprint("", ""))
}

func TestFingerprint_FixedLength(t *testing.T) {
	for _, tc := range []struct{ title, content string }{
		{"", ""},
		{"a", ""},
		{"Release notes", "<p>A much longer body of text that goes on for a while.</p>"},
	} {
		assert.Len(t, Fingerprint(tc.title, tc.content), Size)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	assert.Equal(t, Fingerprint("Hello", "World"), Fingerprint("Hello", "World"))
}

func TestFingerprint_ContentChangesHash(t *testing.T) {
	assert.NotEqual(t, Fingerprint("Hello", "World"), Fingerprint("Hello", "World!"))
}

func TestFingerprint_TitleChangesHash(t *testing.T) {
	assert.NotEqual(t, Fingerprint("Hello", "World"), Fingerprint("hello", "World"))
}

func TestFingerprint_IsConcatenation(t *testing.T) {
	assert.Equal(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}
