// Package links extracts and deduplicates URLs from free text.
package links

import "regexp"

// urlPattern matches http/https URLs up to the next whitespace. No
// canonicalization is applied, so textual variants of the same URL stay
// distinct.
var urlPattern = regexp.MustCompile(`https?://\S+`)

// Extract returns every URL substring found in text, in order of
// appearance.
func Extract(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Set deduplicates URLs while preserving first-seen order. Report rows
// derive their order from this, so insertion order has to survive.
type Set struct {
	seen map[string]struct{}
	urls []string
}

// NewSet returns an empty ordered URL set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add inserts a URL if it has not been seen before and reports whether it
// was added.
func (s *Set) Add(url string) bool {
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	s.urls = append(s.urls, url)
	return true
}

// AddText extracts every URL from text and adds each to the set.
func (s *Set) AddText(text string) {
	for _, u := range Extract(text) {
		s.Add(u)
	}
}

// URLs returns the deduplicated URLs in first-seen order.
func (s *Set) URLs() []string {
	return s.urls
}

// Len returns the number of unique URLs in the set.
func (s *Set) Len() int {
	return len(s.urls)
}
