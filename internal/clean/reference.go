package clean

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cleansweep/engine/internal/errhandling"
	"github.com/cleansweep/engine/internal/logger"
	"github.com/cleansweep/engine/pkg/curation"
)

// Markdown reference-link shapes: a bracket pair followed (after at most
// one whitespace character) by a bracket or parenthesis pair, and a
// reference-definition line "[label]: value" at a line start, leading
// whitespace allowed.
var (
	refLinkRe = regexp.MustCompile(`(\[.*?\])\s?(\[.*?\]|\(.*?\))`)
	refDefRe  = regexp.MustCompile(`(?m)^[ \t]*\[.*?\]:\s?.*`)
)

// referenceToInlineRule implements reference_to_inline: it rewrites
// reference-style Markdown links to inline form using the document's
// reference-definition lines, then strips those lines. The rewritten
// text lands in target_column; the source column is untouched when the
// two differ.
type referenceToInlineRule struct{}

func (referenceToInlineRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	column, err := requireString(params, RuleReferenceToInline, "column")
	if err != nil {
		return nil, err
	}
	target, err := optionalString(params, RuleReferenceToInline, "target_column", "content")
	if err != nil {
		return nil, err
	}
	if !b.HasColumn(column) {
		return nil, errhandling.NewSchemaError(column)
	}

	out := b.Map(func(r curation.Record) curation.Record {
		row := r.Clone()
		if s, ok := r[column].(string); ok {
			row[target] = inlineReferences(s)
		} else {
			// non-text cells mirror into the target unchanged
			row[target] = r[column]
		}
		return row
	})
	out.AddColumn(target)
	return out, nil
}

// inlineReferences rewrites one document: build the label to definitions
// table, rewrite every link occurrence left to right consuming
// definitions as they match, then strip the definition lines.
func inlineReferences(text string) string {
	refs := referenceDefinitions(text)
	out := refLinkRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := refLinkRe.FindStringSubmatch(match)
		textPart, refPart := parts[1], parts[2]
		if values := refs[refPart]; len(values) > 0 {
			refs[refPart] = values[1:]
			return textPart + "(" + values[0] + ")"
		}
		// no remaining definition (or an already-inline "(url)" part):
		// keep the occurrence as written
		logger.Debug("reference not found", "ref", refPart)
		return textPart + refPart
	})
	return refDefRe.ReplaceAllString(out, "")
}

// referenceDefinitions extracts the definition lines and builds the
// label to values table. Matched lines are sorted by their text before
// the first colon (leading whitespace included, stable) and then grouped
// by trimmed label, so a repeated label queues its values in that order;
// lookups consume a queue front to back.
func referenceDefinitions(text string) map[string][]string {
	lines := refDefRe.FindAllString(text, -1)
	sort.SliceStable(lines, func(i, j int) bool {
		pi, _, _ := strings.Cut(lines[i], ":")
		pj, _, _ := strings.Cut(lines[j], ":")
		return pi < pj
	})
	refs := make(map[string][]string, len(lines))
	for _, line := range lines {
		label, value, _ := strings.Cut(line, ":")
		label = strings.TrimSpace(label)
		refs[label] = append(refs[label], strings.TrimSpace(value))
	}
	return refs
}
