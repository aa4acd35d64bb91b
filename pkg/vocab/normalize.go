package vocab

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultExclusions are tags that describe image quality or backgrounds rather
// than content and make poor training labels.
var DefaultExclusions = []string{
	"masterpiece", "best quality", "highres", "absurdres",
	"simple background", "white background", "official art",
	"scenery", "building", "landscape",
}

// Normalize lowercases a label and replaces runs of whitespace with a single
// underscore, the canonical separator of booru-style vocabularies.
func Normalize(label string) string {
	// Casers carry state, so each call gets its own
	fields := strings.Fields(cases.Lower(language.Und).String(label))
	return strings.Join(fields, "_")
}

// Set is a collection of labels compared in normalized form
type Set map[string]struct{}

// NewSet builds a normalized set from labels, skipping blanks
func NewSet(labels ...string) Set {
	s := make(Set, len(labels))
	s.Add(labels...)
	return s
}

// Add inserts labels in normalized form
func (s Set) Add(labels ...string) {
	for _, l := range labels {
		if n := Normalize(l); n != "" {
			s[n] = struct{}{}
		}
	}
}

// Contains reports whether label matches a member after normalization
func (s Set) Contains(label string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[Normalize(label)]
	return ok
}

// ExclusionSet merges the default junk list (when enabled) with user exclusions
func ExclusionSet(useDefaults bool, user ...string) Set {
	s := NewSet(user...)
	if useDefaults {
		s.Add(DefaultExclusions...)
	}
	return s
}

// SplitList splits a comma or newline separated user list into trimmed entries
func SplitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
