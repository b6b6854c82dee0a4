// Package capsuleid derives the short deterministic fingerprint naming a
// capsule.
//
// The identifier is the first 16 hex characters of
// SHA-256(passphrase || unlock instant in ISO-8601 millisecond UTC form).
// Two capsules sharing both passphrase and unlock instant therefore share an
// identifier; the registry resolves that as last write wins.
package capsuleid

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/cryptox"
)

// Length is the number of hex characters in an identifier.
const Length = 16

// Derive returns the identifier for passphrase and unlockAt.
func Derive(passphrase string, unlockAt time.Time) string {
	input := passphrase + FormatInstant(unlockAt)
	return cryptox.Digest([]byte(input))[:Length]
}

// FormatInstant renders t the way identifiers, manifests and registry
// records store it.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(common.ISOLayout)
}

// ParseInstant accepts the stored millisecond form and, as a fallback, any
// RFC 3339 timestamp.
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(common.ISOLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Normalize truncates t to the precision identifiers are derived with, so a
// capsule's identifier can be re-derived from its stored unlock instant.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Valid reports whether id has the shape of an identifier.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// ExportFileName is the conventional file name for an exported archive.
func ExportFileName(id string) string {
	return "chronovault-" + id + ".zip"
}
