// Package filter implements C6: the sequential, stable filter chain run
// after classification. Grounded on the filter-in-place slice idiom the
// teacher uses for its quality bucketing in cmd/deflix-stremio/handlers.go.
package filter

import (
	"strings"

	"github.com/autostream/gateway/internal/classify"
	"github.com/autostream/gateway/internal/model"
)

// MaxSize drops candidates whose known size exceeds maxBytes. Candidates
// with unknown size (Bytes == 0) always pass. maxBytes == 0 means
// unlimited (a no-op).
func MaxSize(candidates []model.Candidate, maxBytes int64) []model.Candidate {
	if maxBytes <= 0 {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		if c.Features.Bytes > 0 && c.Features.Bytes > maxBytes {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Blacklist drops any candidate whose combined text, lowercased, contains
// any of terms as a substring.
func Blacklist(candidates []model.Candidate, terms []string) []model.Candidate {
	if len(terms) == 0 {
		return candidates
	}
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(strings.TrimSpace(t))
	}
	out := candidates[:0]
	for _, c := range candidates {
		text := strings.ToLower(c.CombinedText())
		blocked := false
		for _, term := range lowered {
			if term == "" {
				continue
			}
			if strings.Contains(text, term) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, c)
		}
	}
	return out
}

// StrictLanguage drops any candidate whose detected language set is
// disjoint from prefs. An empty prefs list means nothing to be strict
// about, so it is a no-op regardless of the strict flag (spec's boundary
// behavior: "empty lang_prio with lang_strict=1 -> no filtering").
func StrictLanguage(candidates []model.Candidate, prefs []string) []model.Candidate {
	if len(prefs) == 0 {
		return candidates
	}
	normalizedPrefs := make(map[string]bool, len(prefs))
	for _, p := range prefs {
		normalizedPrefs[strings.ToUpper(strings.TrimSpace(p))] = true
	}
	out := candidates[:0]
	for _, c := range candidates {
		if len(c.Features.Languages) == 0 {
			continue
		}
		matched := false
		for _, lang := range c.Features.Languages {
			norm := classify.NormalizePreference(lang, c.Features.Languages)
			if normalizedPrefs[strings.ToUpper(lang)] || normalizedPrefs[strings.ToUpper(norm)] {
				matched = true
				break
			}
		}
		if matched {
			out = append(out, c)
		}
	}
	return out
}
