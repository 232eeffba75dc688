package task

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainPlaybook is the domain prefix for playbook fingerprints.
// Version suffix enables future algorithm migration.
const DomainPlaybook = "converge/playbook/v1"

// Fingerprint computes the content-addressed identity of a playbook source.
// Format: SHA256(domain + 0x00 + data), hex encoded. The null byte separator
// prevents domain/data boundary ambiguity.
//
// The fingerprint is byte-exact over the source: reordering tasks or even
// reformatting whitespace yields a new identity, which is what run history
// wants to record.
func Fingerprint(data []byte) string {
	h := sha256.New()
	h.Write([]byte(DomainPlaybook))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
