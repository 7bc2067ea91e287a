package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies NFKC normalization and trims surrounding
// whitespace, so visually identical Unicode strings (e.g. ligatures vs.
// their decomposed letters) compare and dedupe equal.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}
