// Package dq evaluates data-quality expectations against a cleaned
// batch. Expectations are configured declaratively alongside the rule
// list; failures are warn-logged and collected into a report, and under
// strict mode a failing report also fails the run.
package dq

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/cleansweep/engine/internal/errhandling"
	"github.com/cleansweep/engine/internal/logger"
	"github.com/cleansweep/engine/pkg/curation"
)

// Expectation kinds.
const (
	// KindColumnsMatch asserts the batch schema equals an ordered column
	// list.
	KindColumnsMatch = "columns_match"

	// KindNotNull asserts the listed columns carry no null cells. Empty
	// strings are not null; dropping those is the remove_null_or_empty
	// rule's job.
	KindNotNull = "not_null"

	// KindRowCountBetween asserts the row count lies within min/max.
	KindRowCountBetween = "row_count_between"

	// KindExpression asserts a predicate holds for every row.
	KindExpression = "expression"
)

// Expectation is one configured data-quality check.
type Expectation struct {
	// Kind selects the check (see the Kind constants).
	Kind string `json:"kind" yaml:"kind"`

	// Columns is the expected ordered schema for columns_match and the
	// target columns for not_null.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	// Include is an alias for Columns, kept for configs written against
	// the include/exclude selector style.
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`

	// Exclude removes columns from the check: not_null skips them, and
	// columns_match ignores them on both sides of the comparison.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// Min and Max bound row_count_between; a nil bound is open.
	Min *int `json:"min,omitempty" yaml:"min,omitempty"`
	Max *int `json:"max,omitempty" yaml:"max,omitempty"`

	// Expression is the predicate for the expression kind, evaluated
	// once per row with the record as environment. Missing columns
	// evaluate to nil rather than failing the whole suite.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Suite is the configured expectation suite for a run.
type Suite struct {
	// Enabled turns the quality stage on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Strict escalates a failing report to a run-failing error. The
	// default leaves failures as warnings.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`

	// Expectations are evaluated in order.
	Expectations []Expectation `json:"expectations,omitempty" yaml:"expectations,omitempty"`
}

// CheckResult is the outcome of one evaluated expectation. Per-column
// kinds produce one result per column.
type CheckResult struct {
	// Kind is the expectation kind that produced this result.
	Kind string

	// Column is set for per-column checks.
	Column string

	// Passed reports whether the expectation held.
	Passed bool

	// Message carries the failure detail; empty on pass.
	Message string

	// FailedRows counts the rows violating a per-row check.
	FailedRows int
}

// Label identifies the result in logs and summaries.
func (c CheckResult) Label() string {
	if c.Column != "" {
		return fmt.Sprintf("%s(%s)", c.Kind, c.Column)
	}
	return c.Kind
}

// Report aggregates the results of a suite run.
type Report struct {
	Results []CheckResult
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed results in evaluation order.
func (r *Report) Failures() []CheckResult {
	var failed []CheckResult
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Summary converts the report to its wire form.
func (r *Report) Summary() *curation.DQSummary {
	s := &curation.DQSummary{Expectations: len(r.Results)}
	for _, res := range r.Results {
		if !res.Passed {
			s.Failed++
			s.Failures = append(s.Failures, fmt.Sprintf("%s: %s", res.Label(), res.Message))
		}
	}
	return s
}

// Run evaluates the suite against the batch. A disabled suite returns
// an empty passing report. Failed expectations are warn-logged and
// recorded; with Strict set, a failing report also returns a
// data-quality error. A structurally invalid expectation (unknown
// kind, missing column list or bounds, uncompilable expression) aborts
// regardless of Strict.
func Run(ctx context.Context, b *curation.Batch, suite Suite) (*Report, error) {
	report := &Report{}
	if !suite.Enabled {
		return report, nil
	}

	for i, e := range suite.Expectations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := evaluate(b, e)
		if err != nil {
			return nil, errhandling.NewDataQualityError(
				fmt.Sprintf("expectation %d (%s): %v", i, e.Kind, err), err)
		}
		report.Results = append(report.Results, results...)
	}

	for _, res := range report.Failures() {
		logger.Warn("expectation failed",
			"expectation", res.Label(),
			"detail", res.Message,
			"failed_rows", res.FailedRows,
		)
	}

	if suite.Strict && !report.Passed() {
		return report, errhandling.NewDataQualityError(
			fmt.Sprintf("%d of %d expectations failed", len(report.Failures()), len(report.Results)), nil)
	}
	return report, nil
}

func evaluate(b *curation.Batch, e Expectation) ([]CheckResult, error) {
	switch e.Kind {
	case KindColumnsMatch:
		return checkColumnsMatch(b, e)
	case KindNotNull:
		return checkNotNull(b, e), nil
	case KindRowCountBetween:
		return checkRowCount(b, e)
	case KindExpression:
		return checkExpression(b, e)
	default:
		return nil, fmt.Errorf("unknown expectation kind %q", e.Kind)
	}
}

func checkColumnsMatch(b *curation.Batch, e Expectation) ([]CheckResult, error) {
	want := expectationColumns(e, nil)
	if len(want) == 0 {
		return nil, fmt.Errorf("columns_match requires a column list")
	}
	got := withoutColumns(b.Columns(), e.Exclude)

	result := CheckResult{Kind: KindColumnsMatch, Passed: stringSlicesEqual(got, want)}
	if !result.Passed {
		result.Message = fmt.Sprintf("batch columns %v do not match expected %v", got, want)
	}
	return []CheckResult{result}, nil
}

func checkNotNull(b *curation.Batch, e Expectation) []CheckResult {
	targets := expectationColumns(e, b.Columns())

	results := make([]CheckResult, 0, len(targets))
	for _, column := range targets {
		result := CheckResult{Kind: KindNotNull, Column: column}
		if !b.HasColumn(column) {
			result.Message = fmt.Sprintf("column %q not found in batch", column)
			results = append(results, result)
			continue
		}

		nulls := 0
		for _, r := range b.Records() {
			if r[column] == nil {
				nulls++
			}
		}
		result.FailedRows = nulls
		result.Passed = nulls == 0
		if !result.Passed {
			result.Message = fmt.Sprintf("%d null values in column %q", nulls, column)
		}
		results = append(results, result)
	}
	return results
}

func checkRowCount(b *curation.Batch, e Expectation) ([]CheckResult, error) {
	if e.Min == nil && e.Max == nil {
		return nil, fmt.Errorf("row_count_between requires min or max")
	}

	n := b.Len()
	result := CheckResult{Kind: KindRowCountBetween, Passed: true}
	switch {
	case e.Min != nil && n < *e.Min:
		result.Passed = false
		result.Message = fmt.Sprintf("row count %d below minimum %d", n, *e.Min)
	case e.Max != nil && n > *e.Max:
		result.Passed = false
		result.Message = fmt.Sprintf("row count %d above maximum %d", n, *e.Max)
	}
	return []CheckResult{result}, nil
}

func checkExpression(b *curation.Batch, e Expectation) ([]CheckResult, error) {
	if strings.TrimSpace(e.Expression) == "" {
		return nil, fmt.Errorf("expression is required")
	}

	// AllowUndefinedVariables keeps a missing column from failing the
	// compile; it evaluates to nil instead
	program, err := expr.Compile(e.Expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", e.Expression, err)
	}

	failed, firstErr := evalRows(b, program)

	result := CheckResult{Kind: KindExpression, Passed: failed == 0, FailedRows: failed}
	if !result.Passed {
		result.Message = fmt.Sprintf("%d of %d rows fail %q", failed, b.Len(), e.Expression)
		if firstErr != "" {
			result.Message += fmt.Sprintf(" (first error: %s)", firstErr)
		}
	}
	return []CheckResult{result}, nil
}

// evalRows counts the rows where the predicate is falsy or errors. A
// per-row evaluation error counts that row as failed rather than
// aborting the suite.
func evalRows(b *curation.Batch, program *vm.Program) (failed int, firstErr string) {
	for _, r := range b.Records() {
		out, err := expr.Run(program, map[string]interface{}(r))
		if err != nil {
			failed++
			if firstErr == "" {
				firstErr = err.Error()
			}
			continue
		}
		if !truthy(out) {
			failed++
		}
	}
	return failed, firstErr
}

// expectationColumns resolves the column selection: Columns, then
// Include, then the fallback, with Exclude filtered out.
func expectationColumns(e Expectation, fallback []string) []string {
	cols := e.Columns
	if len(cols) == 0 {
		cols = e.Include
	}
	if len(cols) == 0 {
		cols = fallback
	}
	return withoutColumns(cols, e.Exclude)
}

func withoutColumns(cols, exclude []string) []string {
	if len(exclude) == 0 {
		return cols
	}
	excluded := make(map[string]bool, len(exclude))
	for _, c := range exclude {
		excluded[c] = true
	}
	kept := make([]string, 0, len(cols))
	for _, c := range cols {
		if !excluded[c] {
			kept = append(kept, c)
		}
	}
	return kept
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// truthy converts a predicate result to a boolean.
func truthy(value interface{}) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}
