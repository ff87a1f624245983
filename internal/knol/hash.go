// Package knol fingerprints imported deck entries so that an entry can be
// recognised across re-syncs regardless of cosmetic edits.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/conorfennell/keikaku/internal/parser"
)

// Normalize joins the identifying parts of an entry after cleaning each one.
// Text is NFKC-normalized, so full-width and half-width forms compare equal,
// then case-folded and trimmed, with line endings unified.
func Normalize(e parser.Entry) string {
	fold := cases.Fold()
	normalizePart := func(part string) string {
		p := norm.NFKC.String(part)
		p = fold.String(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	// Joined with newlines so "ab"+"c" and "a"+"bc" stay distinct.
	return strings.Join([]string{
		string(e.Kind),
		normalizePart(e.Question),
		normalizePart(e.Answer),
	}, "\n")
}

// Fingerprint returns the SHA-256 of the normalized entry as a hex string.
func Fingerprint(e parser.Entry) string {
	sum := sha256.Sum256([]byte(Normalize(e)))
	return fmt.Sprintf("%x", sum)
}
