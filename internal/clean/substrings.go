// Package clean implements the rule-based cleaning engine: the substring
// and filter primitives, the rule registry that binds declarative rule
// specs to them, and the orchestrator that applies an ordered rule list
// to a document batch.
package clean

import (
	"regexp"
	"strings"
)

// substitution is one pattern with its application mode fixed by a
// one-time compile probe: a pattern that compiles runs as a regular
// expression, one that does not degrades to literal replacement.
type substitution struct {
	re      *regexp.Regexp
	literal string
}

// compileSubstitutions probes each pattern once and returns the resulting
// application plan in pattern order, so a rule pays the probe per pattern
// rather than per cell.
func compileSubstitutions(patterns []string) []substitution {
	subs := make([]substitution, 0, len(patterns))
	for _, pattern := range patterns {
		if re, err := regexp.Compile(pattern); err == nil {
			subs = append(subs, substitution{re: re})
		} else {
			subs = append(subs, substitution{literal: pattern})
		}
	}
	return subs
}

// applySubstitutions folds the plan over text left to right; each pattern
// sees the cumulative result of the patterns before it.
func applySubstitutions(text string, subs []substitution, substitute string) string {
	for _, sub := range subs {
		if sub.re != nil {
			text = sub.re.ReplaceAllString(text, substitute)
		} else {
			text = strings.ReplaceAll(text, sub.literal, substitute)
		}
	}
	return text
}

// ReplaceSubstrings replaces every occurrence of each pattern in text
// with substitute. Patterns apply in order against the cumulative result
// of the previous ones, not against the original text. A pattern that is
// a valid regular expression is applied as one; an invalid pattern falls
// back to literal substring replacement instead of failing.
func ReplaceSubstrings(text string, patterns []string, substitute string) string {
	return applySubstitutions(text, compileSubstitutions(patterns), substitute)
}

// RemoveSubstrings removes every occurrence of each pattern from text.
func RemoveSubstrings(text string, patterns []string) string {
	return ReplaceSubstrings(text, patterns, "")
}
