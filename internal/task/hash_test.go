package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	data := []byte("tasks:\n  - name: a\n    path: /etc/a\n    state: absent\n")

	first := Fingerprint(data)
	second := Fingerprint(data)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", first)
}

func TestFingerprint_ByteExact(t *testing.T) {
	base := Fingerprint([]byte("tasks: []\n"))

	// Even whitespace-only edits change the identity.
	reformatted := Fingerprint([]byte("tasks:  []\n"))
	assert.NotEqual(t, base, reformatted)
}

func TestFingerprint_EmptyInput(t *testing.T) {
	sum := Fingerprint(nil)
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, Fingerprint([]byte{}))
}
