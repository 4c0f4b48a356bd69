package clean

import (
	"fmt"
	"sort"

	"github.com/cleansweep/engine/internal/errhandling"
	"github.com/cleansweep/engine/pkg/curation"
)

// Rule type names as they appear in rule specs.
const (
	RuleReplaceSubstrings  = "replace_substrings"
	RuleRemoveSubstrings   = "remove_substrings"
	RuleFilterByColumn     = "filter_by_column"
	RuleFilterByColumns    = "filter_by_columns"
	RuleFilterByMatch      = "filter_by_match"
	RuleRemoveByMatch      = "remove_by_match"
	RuleFilterByDateRange  = "filter_by_date_range"
	RuleExcludeByDateRange = "exclude_by_date_range"
	RuleRemoveNullOrEmpty  = "remove_null_or_empty"
	RuleRemoveDuplicates   = "remove_duplicates"
	RuleReferenceToInline  = "reference_to_inline"
)

// Rule is one cleaning rule implementation. Apply validates the rule's
// parameters, then transforms the batch and returns the result; the
// input batch is never mutated.
type Rule interface {
	Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error)
}

// ruleRegistry is the closed set of rule implementations, keyed by rule
// type name.
var ruleRegistry = map[string]Rule{
	RuleReplaceSubstrings:  replaceSubstringsRule{},
	RuleRemoveSubstrings:   removeSubstringsRule{},
	RuleFilterByColumn:     filterByColumnRule{},
	RuleFilterByColumns:    filterByColumnsRule{},
	RuleFilterByMatch:      filterByMatchRule{},
	RuleRemoveByMatch:      removeByMatchRule{},
	RuleFilterByDateRange:  filterByDateRangeRule{},
	RuleExcludeByDateRange: excludeByDateRangeRule{},
	RuleRemoveNullOrEmpty:  removeNullOrEmptyRule{},
	RuleRemoveDuplicates:   removeDuplicatesRule{},
	RuleReferenceToInline:  referenceToInlineRule{},
}

// RuleFor resolves a rule type name to its implementation.
func RuleFor(ruleType string) (Rule, error) {
	rule, ok := ruleRegistry[ruleType]
	if !ok {
		return nil, errhandling.NewUnknownRuleTypeError(ruleType)
	}
	return rule, nil
}

// RuleTypes returns the registered rule type names in sorted order.
func RuleTypes() []string {
	types := make([]string, 0, len(ruleRegistry))
	for name := range ruleRegistry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// requireString extracts a required string parameter. A missing, null or
// blank value is a validation error, as is a non-string one.
func requireString(params map[string]interface{}, rule, name string) (string, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return "", errhandling.MissingParam(rule, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", errhandling.NewValidationError(rule, name,
			fmt.Sprintf("must be a string, got %T", v))
	}
	if s == "" {
		return "", errhandling.MissingParam(rule, name)
	}
	return s, nil
}

// optionalString extracts an optional string parameter, returning
// fallback when it is absent, null or blank.
func optionalString(params map[string]interface{}, rule, name, fallback string) (string, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errhandling.NewValidationError(rule, name,
			fmt.Sprintf("must be a string, got %T", v))
	}
	if s == "" {
		return fallback, nil
	}
	return s, nil
}

// requireValue extracts a required parameter that may hold any type.
// Only a missing or null value is an error: empty strings, zeros and
// false are all legal filter values.
func requireValue(params map[string]interface{}, rule, name string) (interface{}, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return nil, errhandling.MissingParam(rule, name)
	}
	return v, nil
}

// requireStringList extracts a required list-of-strings parameter. A bare
// string is accepted as a one-element list; a missing or empty list is a
// validation error.
func requireStringList(params map[string]interface{}, rule, name string) ([]string, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return nil, errhandling.MissingParam(rule, name)
	}
	list, err := toStringList(v)
	if err != nil {
		return nil, errhandling.NewValidationError(rule, name, err.Error())
	}
	if len(list) == 0 {
		return nil, errhandling.MissingParam(rule, name)
	}
	return list, nil
}

// toStringList coerces a wire value to a list of strings, accepting a
// bare string as a one-element list.
func toStringList(v interface{}) ([]string, error) {
	if list, ok := curation.AsList(v); ok {
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d must be a string, got %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	return nil, fmt.Errorf("must be a string or a list of strings, got %T", v)
}

// applySubstringRule rewrites every string cell of the listed columns
// through the substitution plan built from patterns. Non-string cells
// pass through untouched; rows are cloned only when a cell changes.
func applySubstringRule(b *curation.Batch, columns, patterns []string, substitute string) (*curation.Batch, error) {
	for _, column := range columns {
		if !b.HasColumn(column) {
			return nil, errhandling.NewSchemaError(column)
		}
	}
	subs := compileSubstitutions(patterns)
	return b.Map(func(r curation.Record) curation.Record {
		var out curation.Record
		for _, column := range columns {
			s, ok := r[column].(string)
			if !ok {
				continue
			}
			rewritten := applySubstitutions(s, subs, substitute)
			if rewritten == s {
				continue
			}
			if out == nil {
				out = r.Clone()
			}
			out[column] = rewritten
		}
		if out == nil {
			return r
		}
		return out
	}), nil
}

// replaceSubstringsRule implements replace_substrings: pattern
// replacement across one or more columns.
type replaceSubstringsRule struct{}

func (replaceSubstringsRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	columns, err := requireStringList(params, RuleReplaceSubstrings, "columns")
	if err != nil {
		return nil, err
	}
	patterns, err := requireStringList(params, RuleReplaceSubstrings, "substrings")
	if err != nil {
		return nil, err
	}
	replacement, err := requireString(params, RuleReplaceSubstrings, "replacement")
	if err != nil {
		return nil, err
	}
	return applySubstringRule(b, columns, patterns, replacement)
}

// removeSubstringsRule implements remove_substrings: pattern removal
// across one or more columns.
type removeSubstringsRule struct{}

func (removeSubstringsRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	columns, err := requireStringList(params, RuleRemoveSubstrings, "columns")
	if err != nil {
		return nil, err
	}
	patterns, err := requireStringList(params, RuleRemoveSubstrings, "substrings")
	if err != nil {
		return nil, err
	}
	return applySubstringRule(b, columns, patterns, "")
}

// filterByColumnRule implements filter_by_column: a single-column filter
// with an explicit operator.
type filterByColumnRule struct{}

func (filterByColumnRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	column, err := requireString(params, RuleFilterByColumn, "column")
	if err != nil {
		return nil, err
	}
	value, err := requireValue(params, RuleFilterByColumn, "value")
	if err != nil {
		return nil, err
	}
	operator, err := requireString(params, RuleFilterByColumn, "operator")
	if err != nil {
		return nil, err
	}
	return FilterByColumn(b, column, value, ParseOperator(operator))
}

// filterByColumnsRule implements filter_by_columns: several column
// filters applied as one rule.
type filterByColumnsRule struct{}

func (filterByColumnsRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	raw, ok := params["filters"]
	if !ok || raw == nil {
		return nil, errhandling.MissingParam(RuleFilterByColumns, "filters")
	}
	filters, err := parseFilterSpecs(raw)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, errhandling.MissingParam(RuleFilterByColumns, "filters")
	}
	return FilterByColumns(b, filters)
}

// parseFilterSpecs decodes the filters wire form: a map from column name
// to either a bare value, a one-element list [value], or a two-element
// list [value, operator]. Elements past the second are ignored, as is a
// non-string operator element.
func parseFilterSpecs(raw interface{}) (map[string]FilterSpec, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errhandling.NewValidationError(RuleFilterByColumns, "filters",
			fmt.Sprintf("must be a map of column filters, got %T", raw))
	}
	filters := make(map[string]FilterSpec, len(m))
	for column, entry := range m {
		spec := FilterSpec{Value: entry}
		if list, isList := curation.AsList(entry); isList {
			if len(list) == 0 {
				return nil, errhandling.NewValidationError(RuleFilterByColumns, column, "requires a value")
			}
			spec.Value = list[0]
			if len(list) > 1 {
				if s, ok := list[1].(string); ok {
					spec.Operator = s
				}
			}
		}
		filters[column] = spec
	}
	return filters, nil
}

// filterByMatchRule implements filter_by_match: keep rows matching a
// pattern.
type filterByMatchRule struct{}

func (filterByMatchRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	column, err := requireString(params, RuleFilterByMatch, "column")
	if err != nil {
		return nil, err
	}
	pattern, err := requireString(params, RuleFilterByMatch, "value")
	if err != nil {
		return nil, err
	}
	return FilterByMatch(b, column, pattern)
}

// removeByMatchRule implements remove_by_match: drop rows matching a
// pattern.
type removeByMatchRule struct{}

func (removeByMatchRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	column, err := requireString(params, RuleRemoveByMatch, "column")
	if err != nil {
		return nil, err
	}
	pattern, err := requireString(params, RuleRemoveByMatch, "value")
	if err != nil {
		return nil, err
	}
	return RemoveByMatch(b, column, pattern)
}

// filterByDateRangeRule implements filter_by_date_range: keep rows
// whose date falls inside an inclusive range.
type filterByDateRangeRule struct{}

func (filterByDateRangeRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	column, err := requireString(params, RuleFilterByDateRange, "date_column")
	if err != nil {
		return nil, err
	}
	start, err := requireString(params, RuleFilterByDateRange, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := requireString(params, RuleFilterByDateRange, "end_date")
	if err != nil {
		return nil, err
	}
	return FilterByDateRange(b, column, start, end)
}

// excludeByDateRangeRule implements exclude_by_date_range: drop rows
// whose date falls inside an inclusive range.
type excludeByDateRangeRule struct{}

func (excludeByDateRangeRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	column, err := requireString(params, RuleExcludeByDateRange, "date_column")
	if err != nil {
		return nil, err
	}
	start, err := requireString(params, RuleExcludeByDateRange, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := requireString(params, RuleExcludeByDateRange, "end_date")
	if err != nil {
		return nil, err
	}
	return ExcludeByDateRange(b, column, start, end)
}

// removeNullOrEmptyRule implements remove_null_or_empty.
type removeNullOrEmptyRule struct{}

func (removeNullOrEmptyRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	columns, err := requireStringList(params, RuleRemoveNullOrEmpty, "columns")
	if err != nil {
		return nil, err
	}
	return RemoveNullOrEmpty(b, columns)
}

// removeDuplicatesRule implements remove_duplicates.
type removeDuplicatesRule struct{}

func (removeDuplicatesRule) Apply(b *curation.Batch, params map[string]interface{}) (*curation.Batch, error) {
	columns, err := requireStringList(params, RuleRemoveDuplicates, "columns")
	if err != nil {
		return nil, err
	}
	keep, err := optionalString(params, RuleRemoveDuplicates, "keep", "first")
	if err != nil {
		return nil, err
	}
	orderBy, err := optionalString(params, RuleRemoveDuplicates, "order_by", "")
	if err != nil {
		return nil, err
	}
	order, err := optionalString(params, RuleRemoveDuplicates, "order", "asc")
	if err != nil {
		return nil, err
	}
	return RemoveDuplicates(b, columns, keep, orderBy, order)
}

var (
	_ Rule = replaceSubstringsRule{}
	_ Rule = removeSubstringsRule{}
	_ Rule = filterByColumnRule{}
	_ Rule = filterByColumnsRule{}
	_ Rule = filterByMatchRule{}
	_ Rule = removeByMatchRule{}
	_ Rule = filterByDateRangeRule{}
	_ Rule = excludeByDateRangeRule{}
	_ Rule = removeNullOrEmptyRule{}
	_ Rule = removeDuplicatesRule{}
	_ Rule = referenceToInlineRule{}
)
