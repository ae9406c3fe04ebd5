// Package generation produces dish images at most once per key.
//
// A Cache owns every GenerationRecord. The Coordinator picks the single
// caller that performs the external call for a key and lets every other
// caller wait on the same record. The Limiter bounds how many generations
// start per window. The Orchestrator composes the three with the retry
// policy and an artifact sink.
package generation

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// maxKeyPartLen bounds slug and style, in runes.
const maxKeyPartLen = 128

// Key identifies one artifact. Requests with equal keys share one
// generation; forcing a regeneration moves to the next epoch.
type Key struct {
	Slug  string
	Style string
	Epoch uint64
}

// String renders the key as "<slug>:<style>:e<epoch>".
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:e%d", k.Slug, k.Style, k.Epoch)
}

// family is a key without its epoch
type family struct {
	slug  string
	style string
}

func (k Key) family() family { return family{slug: k.Slug, style: k.Style} }

// Validate rejects keys that cannot be rendered unambiguously or used as a
// path segment. Slugs are letters, digits and hyphens. Styles are ASCII
// letters, digits, '-', '_' and '.', and do not start with a dot.
func (k Key) Validate() error {
	switch {
	case k.Slug == "":
		return fmt.Errorf("empty dish slug")
	case k.Style == "":
		return fmt.Errorf("empty style version")
	case utf8.RuneCountInString(k.Slug) > maxKeyPartLen:
		return fmt.Errorf("dish slug longer than %d characters", maxKeyPartLen)
	case len(k.Style) > maxKeyPartLen:
		return fmt.Errorf("style version longer than %d characters", maxKeyPartLen)
	}
	for _, r := range k.Slug {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return fmt.Errorf("dish slug %q contains %q", k.Slug, r)
		}
	}
	if k.Style[0] == '.' {
		return fmt.Errorf("style version %q must not start with '.'", k.Style)
	}
	for _, r := range k.Style {
		if !isStyleRune(r) {
			return fmt.Errorf("style version %q contains %q", k.Style, r)
		}
	}
	return nil
}

func isStyleRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	}
	return false
}
