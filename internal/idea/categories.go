package idea

import (
	"strings"
	"unicode"
)

// MaxTags caps the number of tags kept on an idea.
const MaxTags = 5

// SeedCategories are offered for recategorization even before a user has
// learned any of their own.
var SeedCategories = []string{"Product", "Business", "Personal", "Creative", "Technical", "Learning"}

// NormalizeTags lowercases tags, strips anything that isn't a letter or digit,
// drops empties and duplicates, and keeps at most MaxTags in input order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		var b strings.Builder
		for _, r := range strings.ToLower(tag) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		t := b.String()
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}

	return out
}

// MergeCategories returns the learned categories followed by the seed set,
// deduplicated case-insensitively. The first spelling wins.
func MergeCategories(learned []string) []string {
	out := make([]string, 0, len(learned)+len(SeedCategories))
	seen := make(map[string]struct{}, cap(out))

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}

	for _, c := range learned {
		add(c)
	}
	for _, c := range SeedCategories {
		add(c)
	}

	return out
}
