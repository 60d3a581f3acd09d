package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const fingerprintLength = 16

// Fingerprint identifies the same meeting across accounts: title compared
// case-insensitively with whitespace collapsed, start and end compared exactly.
func Fingerprint(title, start, end string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(title), " "))
	sum := sha256.Sum256([]byte(norm + "|" + start + "|" + end))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

// EventFingerprint fingerprints a provider event.
func EventFingerprint(e RawEvent) string {
	return Fingerprint(e.Title, e.Start.String(), e.End.String())
}
