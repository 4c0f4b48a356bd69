package clean

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cleansweep/engine/internal/errhandling"
	"github.com/cleansweep/engine/pkg/curation"
)

// Operator enumerates the comparisons understood by the column filters.
type Operator int

// Column filter operators.
const (
	Equal Operator = iota
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
	Regex
	IsIn
	IsNotIn
)

var operatorNames = map[Operator]string{
	Equal:              "==",
	NotEqual:           "!=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	Regex:              "regex",
	IsIn:               "in",
	IsNotIn:            "not in",
}

// String returns the operator's canonical wire spelling.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// operatorAliases maps every accepted operator spelling (case-sensitive)
// to its operator.
var operatorAliases = map[string]Operator{
	"==":     Equal,
	"eq":     Equal,
	"=":      Equal,
	"!=":     NotEqual,
	"ne":     NotEqual,
	"<>":     NotEqual,
	">":      GreaterThan,
	"gt":     GreaterThan,
	">=":     GreaterThanOrEqual,
	"ge":     GreaterThanOrEqual,
	"=>":     GreaterThanOrEqual,
	"<":      LessThan,
	"lt":     LessThan,
	"<=":     LessThanOrEqual,
	"le":     LessThanOrEqual,
	"=<":     LessThanOrEqual,
	"regex":  Regex,
	"in":     IsIn,
	"not in": IsNotIn,
}

// ParseOperator resolves an operator spelling. A blank string means the
// operator was omitted and resolves to Equal; an unknown spelling also
// resolves to Equal rather than failing.
func ParseOperator(s string) Operator {
	if op, ok := operatorAliases[s]; ok {
		return op
	}
	return Equal
}

// FilterSpec is one column's entry in a multi-column filter: the value to
// compare against plus an optional operator spelling (blank means
// equality).
type FilterSpec struct {
	Value    interface{}
	Operator string
}

// FilterByColumn returns the rows whose cell in column satisfies op
// against value.
//
// The equality operators accept a list value and become membership tests.
// The ordering operators drop null cells and fail when a cell cannot be
// ordered against the value. The containment operators (in / not in)
// search each cell for a scalar value: substring search for string cells,
// membership for list cells; any other cell type fails. A list value with
// a containment operator behaves like the corresponding equality operator.
// The regex operator is not accepted here; use FilterByMatch.
func FilterByColumn(b *curation.Batch, column string, value interface{}, op Operator) (*curation.Batch, error) {
	if !b.HasColumn(column) {
		return nil, errhandling.NewSchemaError(column)
	}

	switch op {
	case Equal, NotEqual:
		return filterEquality(b, column, value, op == NotEqual), nil

	case GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return filterOrdering(b, column, value, op)

	case IsIn, IsNotIn:
		if _, isList := curation.AsList(value); isList {
			return filterEquality(b, column, value, op == IsNotIn), nil
		}
		return filterContainment(b, column, value, op == IsNotIn)

	default:
		return nil, errhandling.NewValidationError(RuleFilterByColumn, "operator",
			fmt.Sprintf("does not support %q", op))
	}
}

// filterEquality keeps rows whose cell equals value, or is a member of it
// when value is a list; negate inverts the test.
func filterEquality(b *curation.Batch, column string, value interface{}, negate bool) *curation.Batch {
	list, isList := curation.AsList(value)
	return b.Select(func(r curation.Record) bool {
		cell := r[column]
		var match bool
		if isList {
			match = containsValue(list, cell)
		} else {
			match = curation.EqualValues(cell, value)
		}
		if negate {
			return !match
		}
		return match
	})
}

// filterOrdering keeps rows whose cell orders against value per op. Null
// cells never satisfy an ordering comparison.
func filterOrdering(b *curation.Batch, column string, value interface{}, op Operator) (*curation.Batch, error) {
	var compareErr error
	filtered := b.Select(func(r curation.Record) bool {
		cell := r[column]
		if cell == nil {
			return false
		}
		cmp, err := curation.CompareValues(cell, value)
		if err != nil {
			if compareErr == nil {
				compareErr = fmt.Errorf("column %q: %w", column, err)
			}
			return false
		}
		switch op {
		case GreaterThan:
			return cmp > 0
		case GreaterThanOrEqual:
			return cmp >= 0
		case LessThan:
			return cmp < 0
		case LessThanOrEqual:
			return cmp <= 0
		}
		return false
	})
	if compareErr != nil {
		return nil, compareErr
	}
	return filtered, nil
}

// filterContainment keeps rows whose cell contains the scalar value;
// negate inverts the test. Cells that are not strings or lists cannot be
// searched and fail the filter.
func filterContainment(b *curation.Batch, column string, value interface{}, negate bool) (*curation.Batch, error) {
	var searchErr error
	filtered := b.Select(func(r curation.Record) bool {
		contains, err := cellContains(r[column], value)
		if err != nil {
			if searchErr == nil {
				searchErr = fmt.Errorf("column %q: %w", column, err)
			}
			return false
		}
		if negate {
			return !contains
		}
		return contains
	})
	if searchErr != nil {
		return nil, searchErr
	}
	return filtered, nil
}

// cellContains reports whether value occurs inside cell: substring search
// when the cell is a string, membership when it is a list.
func cellContains(cell, value interface{}) (bool, error) {
	if s, ok := cell.(string); ok {
		sub, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("cannot search a string cell for a %T value", value)
		}
		return strings.Contains(s, sub), nil
	}
	if list, ok := curation.AsList(cell); ok {
		return containsValue(list, value), nil
	}
	return false, fmt.Errorf("cell of type %T is not searchable", cell)
}

// containsValue reports whether v equals any element of list.
func containsValue(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if curation.EqualValues(item, v) {
			return true
		}
	}
	return false
}

// FilterByColumns applies each column's filter in sequence, narrowing the
// batch progressively (a logical AND across columns). Columns are visited
// in sorted name order so a filter map always yields the same result.
// Each entry must carry a non-nil, non-blank value; an entry whose
// operator resolves to regex must carry a string value and delegates to
// FilterByMatch.
func FilterByColumns(b *curation.Batch, filters map[string]FilterSpec) (*curation.Batch, error) {
	columns := make([]string, 0, len(filters))
	for column := range filters {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	for _, column := range columns {
		spec := filters[column]
		if !b.HasColumn(column) {
			return nil, errhandling.NewSchemaError(column)
		}
		if spec.Value == nil {
			return nil, errhandling.NewValidationError(RuleFilterByColumns, column, "requires a value")
		}
		if s, ok := spec.Value.(string); ok && strings.TrimSpace(s) == "" {
			return nil, errhandling.NewValidationError(RuleFilterByColumns, column, "requires a non-blank value")
		}

		var err error
		if op := ParseOperator(spec.Operator); op == Regex {
			pattern, ok := spec.Value.(string)
			if !ok {
				return nil, errhandling.NewValidationError(RuleFilterByColumns, column,
					fmt.Sprintf("requires a string pattern for the regex operator, got %T", spec.Value))
			}
			b, err = FilterByMatch(b, column, pattern)
		} else {
			b, err = FilterByColumn(b, column, spec.Value, op)
		}
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// compileMatch builds the case-insensitive search pattern used by the
// match filters.
func compileMatch(rule, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, errhandling.NewValidationError(rule, "value",
			fmt.Sprintf("is not a valid pattern: %v", err))
	}
	return re, nil
}

// FilterByMatch keeps the rows whose cell in column matches the pattern,
// case-insensitively. Null and non-string cells never match.
func FilterByMatch(b *curation.Batch, column, pattern string) (*curation.Batch, error) {
	if !b.HasColumn(column) {
		return nil, errhandling.NewSchemaError(column)
	}
	re, err := compileMatch(RuleFilterByMatch, pattern)
	if err != nil {
		return nil, err
	}
	return b.Select(func(r curation.Record) bool {
		s, ok := r[column].(string)
		return ok && re.MatchString(s)
	}), nil
}

// RemoveByMatch drops the rows whose cell in column matches the pattern,
// case-insensitively. Null and non-string cells never match, so they
// survive.
func RemoveByMatch(b *curation.Batch, column, pattern string) (*curation.Batch, error) {
	if !b.HasColumn(column) {
		return nil, errhandling.NewSchemaError(column)
	}
	re, err := compileMatch(RuleRemoveByMatch, pattern)
	if err != nil {
		return nil, err
	}
	return b.Select(func(r curation.Record) bool {
		s, ok := r[column].(string)
		return !ok || !re.MatchString(s)
	}), nil
}

// parseDateBound coerces one bound of a date range, attributing a bad
// bound to its rule parameter.
func parseDateBound(rule, param, value string) (time.Time, error) {
	t, err := curation.AsTime(value)
	if err != nil {
		return time.Time{}, errhandling.NewValidationError(rule, param,
			fmt.Sprintf("is not a valid date: %v", err))
	}
	return t, nil
}

// cellTime extracts a timestamp from a cell, parsing strings when needed.
func cellTime(cell interface{}) (time.Time, bool) {
	if cell == nil {
		return time.Time{}, false
	}
	t, err := curation.AsTime(cell)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FilterByDateRange keeps the rows whose cell in dateColumn falls inside
// the inclusive [start, end] range. Cells that are null or not parseable
// as a time fall outside any range and are dropped.
func FilterByDateRange(b *curation.Batch, dateColumn, startDate, endDate string) (*curation.Batch, error) {
	if !b.HasColumn(dateColumn) {
		return nil, errhandling.NewSchemaError(dateColumn)
	}
	start, err := parseDateBound(RuleFilterByDateRange, "start_date", startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDateBound(RuleFilterByDateRange, "end_date", endDate)
	if err != nil {
		return nil, err
	}
	return b.Select(func(r curation.Record) bool {
		t, ok := cellTime(r[dateColumn])
		return ok && !t.Before(start) && !t.After(end)
	}), nil
}

// ExcludeByDateRange keeps the rows whose cell in dateColumn falls
// strictly outside the inclusive [start, end] range. Null and unparseable
// cells satisfy neither side of the range and are dropped here too, same
// as in FilterByDateRange.
func ExcludeByDateRange(b *curation.Batch, dateColumn, startDate, endDate string) (*curation.Batch, error) {
	if !b.HasColumn(dateColumn) {
		return nil, errhandling.NewSchemaError(dateColumn)
	}
	start, err := parseDateBound(RuleExcludeByDateRange, "start_date", startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDateBound(RuleExcludeByDateRange, "end_date", endDate)
	if err != nil {
		return nil, err
	}
	return b.Select(func(r curation.Record) bool {
		t, ok := cellTime(r[dateColumn])
		return ok && (t.Before(start) || t.After(end))
	}), nil
}

// RemoveNullOrEmpty drops every row holding a null or empty-string cell
// in any of the listed columns.
func RemoveNullOrEmpty(b *curation.Batch, columns []string) (*curation.Batch, error) {
	for _, column := range columns {
		if !b.HasColumn(column) {
			return nil, errhandling.NewSchemaError(column)
		}
	}
	return b.Select(func(r curation.Record) bool {
		for _, column := range columns {
			cell := r[column]
			if cell == nil {
				return false
			}
			if s, ok := cell.(string); ok && s == "" {
				return false
			}
		}
		return true
	}), nil
}

// RemoveDuplicates drops the rows that repeat the key formed by the
// listed columns. When orderBy names a column the batch is stably sorted
// by it first, so keep selects which duplicate survives: "first" (the
// default) or "last". Any order value other than "asc" sorts descending.
func RemoveDuplicates(b *curation.Batch, columns []string, keep, orderBy, order string) (*curation.Batch, error) {
	for _, column := range columns {
		if !b.HasColumn(column) {
			return nil, errhandling.NewSchemaError(column)
		}
	}
	if keep == "" {
		keep = "first"
	}
	if keep != "first" && keep != "last" {
		return nil, errhandling.NewValidationError(RuleRemoveDuplicates, "keep",
			fmt.Sprintf("must be %q or %q, got %q", "first", "last", keep))
	}
	if order == "" {
		order = "asc"
	}
	if orderBy != "" {
		if !b.HasColumn(orderBy) {
			return nil, errhandling.NewSchemaError(orderBy)
		}
		b = b.SortBy(orderBy, order == "asc")
	}
	return b.DedupBy(columns, keep == "last"), nil
}
