// Package asin derives and recognizes book identifiers.
//
// Canonical books carry a real Audible ASIN. Books with no catalog match get
// a provisional identifier derived deterministically from normalized
// title+author, so the same book surfaced by different indexers always
// collapses to one record.
package asin

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/normalize"
)

const (
	// Truncation windows applied before hashing. Trailing title noise and
	// author suffixes beyond these windows do not change the identity.
	titleWindow  = 50
	authorWindow = 30

	digestChars = 11
)

// asinPattern matches a real Audible ASIN: B followed by 9 alphanumerics.
var asinPattern = regexp.MustCompile(`B[A-Z0-9]{9}`)

// audibleURLPattern matches ASINs embedded in Audible product URLs,
// e.g. https://www.audible.com/pd/Some-Title/B002V00TOO.
var audibleURLPattern = regexp.MustCompile(`audible\.com/pd/[^/]+/(B[A-Z0-9]{9})`)

// Virtual derives the provisional identifier for a (title, author) pair.
// The derivation is pure: normalize, truncate, hash, keep the first 11 hex
// characters, prefix with the virtual marker.
func Virtual(title, author string) string {
	t := truncate(normalize.Text(title, true), titleWindow)
	a := truncate(normalize.Text(author, false), authorWindow)

	sum := sha256.Sum256([]byte(t + ":" + a))
	return domain.VirtualPrefix + hex.EncodeToString(sum[:])[:digestChars]
}

// IsVirtual reports whether id is a provisional identifier.
func IsVirtual(id string) bool {
	return strings.HasPrefix(id, domain.VirtualPrefix)
}

// Extract attempts to pull a real ASIN out of an indexer hit. Some indexers
// embed the Audible ASIN in the GUID, the description, or an Audible info
// URL. Returns the empty string when nothing is found.
func Extract(hit *domain.Hit) string {
	if hit.GUID != "" {
		if m := asinPattern.FindString(hit.GUID); m != "" {
			return m
		}
	}
	if hit.Description != "" {
		if m := asinPattern.FindString(hit.Description); m != "" {
			return m
		}
	}
	if hit.InfoURL != "" {
		if m := audibleURLPattern.FindStringSubmatch(hit.InfoURL); m != nil {
			return m[1]
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
