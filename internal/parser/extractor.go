package parser

import (
	"strings"

	"github.com/V4T54L/adru-export/internal/domain"
)

// Extractor splits attribute lines into a name and a raw value.
type Extractor struct {
	stripPrefix map[string]bool
}

// NewExtractor builds an extractor honoring each namespace's StripPrefix rule.
func NewExtractor(namespaces []domain.Namespace) *Extractor {
	strip := make(map[string]bool, len(namespaces))
	for _, ns := range namespaces {
		strip[ns.Key] = ns.StripPrefix
	}
	return &Extractor{stripPrefix: strip}
}

// Extract returns the attribute carried by text inside the given namespace.
// ok is false when the line has no delimiter or an empty name.
func (e *Extractor) Extract(namespace, text string) (name, value string, ok bool) {
	left, right, ok := SplitPair(text)
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(left)
	if e.stripPrefix[namespace] {
		// "3 NID_C" -> "NID_C": drop the positional prefix.
		if fields := strings.Fields(name); len(fields) > 0 {
			name = fields[len(fields)-1]
		}
	}
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(right), true
}

// SplitPair splits text on whichever of ':' and '=' occurs first.
func SplitPair(text string) (left, right string, ok bool) {
	colon := strings.IndexByte(text, ':')
	equal := strings.IndexByte(text, '=')

	at := colon
	if equal != -1 && (colon == -1 || equal < colon) {
		at = equal
	}
	if at == -1 {
		return "", "", false
	}
	return text[:at], text[at+1:], true
}
