package clean

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cleansweep/engine/internal/errhandling"
	"github.com/cleansweep/engine/pkg/curation"
)

// numberedBatch builds the five-row fixture used across the filter tests.
func numberedBatch() *curation.Batch {
	return curation.FromRecords([]curation.Record{
		{"col1": 1, "col2": "a"},
		{"col1": 2, "col2": "b"},
		{"col1": 3, "col2": "c"},
		{"col1": 4, "col2": "d"},
		{"col1": 5, "col2": "e"},
	})
}

// columnValues collects one column of a batch in row order.
func columnValues(b *curation.Batch, column string) []interface{} {
	out := make([]interface{}, 0, b.Len())
	for _, r := range b.Records() {
		out = append(out, r[column])
	}
	return out
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
	}{
		{"==", Equal},
		{"eq", Equal},
		{"=", Equal},
		{"!=", NotEqual},
		{"ne", NotEqual},
		{"<>", NotEqual},
		{">", GreaterThan},
		{"gt", GreaterThan},
		{">=", GreaterThanOrEqual},
		{"ge", GreaterThanOrEqual},
		{"=>", GreaterThanOrEqual},
		{"<", LessThan},
		{"lt", LessThan},
		{"<=", LessThanOrEqual},
		{"le", LessThanOrEqual},
		{"=<", LessThanOrEqual},
		{"regex", Regex},
		{"in", IsIn},
		{"not in", IsNotIn},
		{"", Equal},        // omitted operator means equality
		{"unknown", Equal}, // unrecognized spellings default silently
		{"NE", Equal},      // matching is case sensitive
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseOperator(tt.in); got != tt.want {
				t.Errorf("ParseOperator(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOperatorString(t *testing.T) {
	tests := []struct {
		op   Operator
		want string
	}{
		{Equal, "=="},
		{GreaterThanOrEqual, ">="},
		{Regex, "regex"},
		{IsNotIn, "not in"},
		{Operator(99), "Operator(99)"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Operator.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFilterByColumnEquality(t *testing.T) {
	t.Run("scalar equality", func(t *testing.T) {
		got, err := FilterByColumn(numberedBatch(), "col1", 3, Equal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{"c"}; !reflect.DeepEqual(columnValues(got, "col2"), want) {
			t.Errorf("got %v, want %v", columnValues(got, "col2"), want)
		}
	})

	t.Run("scalar inequality", func(t *testing.T) {
		got, err := FilterByColumn(numberedBatch(), "col1", 3, NotEqual)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{"a", "b", "d", "e"}; !reflect.DeepEqual(columnValues(got, "col2"), want) {
			t.Errorf("got %v, want %v", columnValues(got, "col2"), want)
		}
	})

	t.Run("numeric values bridge int and float", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"n": float64(3)},
			{"n": float64(4)},
		})
		got, err := FilterByColumn(b, "n", 3, Equal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 1 {
			t.Errorf("expected 1 row, got %d", got.Len())
		}
	})

	t.Run("list value is a membership test", func(t *testing.T) {
		got, err := FilterByColumn(numberedBatch(), "col1", []interface{}{2, 4}, Equal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{"b", "d"}; !reflect.DeepEqual(columnValues(got, "col2"), want) {
			t.Errorf("got %v, want %v", columnValues(got, "col2"), want)
		}
	})

	t.Run("list value with inequality keeps the rest", func(t *testing.T) {
		got, err := FilterByColumn(numberedBatch(), "col1", []interface{}{2, 4}, NotEqual)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{"a", "c", "e"}; !reflect.DeepEqual(columnValues(got, "col2"), want) {
			t.Errorf("got %v, want %v", columnValues(got, "col2"), want)
		}
	})

	t.Run("null cells never equal a value but survive inequality", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"v": nil},
			{"v": "x"},
		})
		eq, err := FilterByColumn(b, "v", "x", Equal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if eq.Len() != 1 || eq.Row(0)["v"] != "x" {
			t.Errorf("equality should match only the non-null row")
		}
		ne, err := FilterByColumn(b, "v", "x", NotEqual)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ne.Len() != 1 || ne.Row(0)["v"] != nil {
			t.Errorf("inequality should keep the null row")
		}
	})
}

func TestFilterByColumnListEqualityMatchesIsIn(t *testing.T) {
	value := []interface{}{2, 4}
	viaEqual, err := FilterByColumn(numberedBatch(), "col1", value, Equal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	viaIsIn, err := FilterByColumn(numberedBatch(), "col1", value, IsIn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(viaEqual.Records(), viaIsIn.Records()) {
		t.Errorf("list equality and list is-in disagree: %v vs %v", viaEqual.Records(), viaIsIn.Records())
	}
}

func TestFilterByColumnOrdering(t *testing.T) {
	tests := []struct {
		name  string
		op    Operator
		value interface{}
		want  []interface{}
	}{
		{"greater than", GreaterThan, 3, []interface{}{"d", "e"}},
		{"greater or equal", GreaterThanOrEqual, 3, []interface{}{"c", "d", "e"}},
		{"less than", LessThan, 2, []interface{}{"a"}},
		{"less or equal", LessThanOrEqual, 2, []interface{}{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterByColumn(numberedBatch(), "col1", tt.value, tt.op)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(columnValues(got, "col2"), tt.want) {
				t.Errorf("got %v, want %v", columnValues(got, "col2"), tt.want)
			}
		})
	}

	t.Run("null cells fall out of orderings", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"n": 1},
			{"n": nil},
			{"n": 3},
		})
		got, err := FilterByColumn(b, "n", 0, GreaterThan)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 2 {
			t.Errorf("expected 2 rows, got %d", got.Len())
		}
	})

	t.Run("numeric strings order numerically", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"n": "10"},
			{"n": "9"},
		})
		got, err := FilterByColumn(b, "n", 9.5, GreaterThan)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 1 || got.Row(0)["n"] != "10" {
			t.Errorf(`expected only "10" to pass, got %v`, columnValues(got, "n"))
		}
	})

	t.Run("non-orderable cell fails", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"n": []interface{}{1, 2}},
		})
		_, err := FilterByColumn(b, "n", 1, GreaterThan)
		if err == nil {
			t.Fatal("expected an error for a list cell in an ordering filter")
		}
		if !strings.Contains(err.Error(), "not orderable") {
			t.Errorf("error should mention orderability, got %q", err)
		}
	})
}

func TestFilterByColumnContainment(t *testing.T) {
	t.Run("string cells use substring search", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"txt": "go tutorial"},
			{"txt": "rust guide"},
		})
		got, err := FilterByColumn(b, "txt", "go", IsIn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 1 || got.Row(0)["txt"] != "go tutorial" {
			t.Errorf("expected the go row, got %v", columnValues(got, "txt"))
		}
	})

	t.Run("is-not-in inverts the search", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"txt": "go tutorial"},
			{"txt": "rust guide"},
		})
		got, err := FilterByColumn(b, "txt", "go", IsNotIn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 1 || got.Row(0)["txt"] != "rust guide" {
			t.Errorf("expected the rust row, got %v", columnValues(got, "txt"))
		}
	})

	t.Run("list cells use membership", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"tags": []interface{}{"go", "web"}},
			{"tags": []interface{}{"db"}},
		})
		got, err := FilterByColumn(b, "tags", "go", IsIn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 1 {
			t.Errorf("expected 1 row, got %d", got.Len())
		}
	})

	t.Run("membership bridges numeric types", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"ids": []interface{}{float64(1), float64(2)}},
			{"ids": []interface{}{float64(3)}},
		})
		got, err := FilterByColumn(b, "ids", 2, IsIn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 1 {
			t.Errorf("expected 1 row, got %d", got.Len())
		}
	})

	t.Run("string cell rejects non-string needle", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"txt": "abc"},
		})
		_, err := FilterByColumn(b, "txt", 3, IsIn)
		if err == nil {
			t.Fatal("expected an error searching a string cell for an int")
		}
	})

	t.Run("scalar cell is not searchable", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"n": 42},
		})
		_, err := FilterByColumn(b, "n", "4", IsIn)
		if err == nil {
			t.Fatal("expected an error for a non-collection cell")
		}
		if !strings.Contains(err.Error(), "not searchable") {
			t.Errorf("error should mention searchability, got %q", err)
		}
	})
}

func TestFilterByColumnErrors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		_, err := FilterByColumn(numberedBatch(), "nope", 1, Equal)
		if !errhandling.IsSchemaError(err) {
			t.Fatalf("expected a schema error, got %v", err)
		}
		if want := `column "nope" not found in batch`; err.Error() != want {
			t.Errorf("error = %q, want %q", err, want)
		}
	})

	t.Run("regex operator rejected", func(t *testing.T) {
		_, err := FilterByColumn(numberedBatch(), "col2", "a", Regex)
		if !errhandling.IsValidationError(err) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		if !strings.Contains(err.Error(), RuleFilterByColumn) {
			t.Errorf("error should name the rule, got %q", err)
		}
	})
}

func TestFilterByColumns(t *testing.T) {
	rows := []curation.Record{
		{"status": "published", "lang": "en", "title": "Go Routines"},
		{"status": "published", "lang": "fr", "title": "Les Gophers"},
		{"status": "draft", "lang": "en", "title": "Go Modules"},
	}

	t.Run("filters combine as logical and", func(t *testing.T) {
		b := curation.FromRecords(rows)
		got, err := FilterByColumns(b, map[string]FilterSpec{
			"status": {Value: "published"},
			"lang":   {Value: "en", Operator: "=="},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 1 || got.Row(0)["title"] != "Go Routines" {
			t.Errorf("expected the published english row, got %v", columnValues(got, "title"))
		}
	})

	t.Run("regex operator delegates to match filtering", func(t *testing.T) {
		b := curation.FromRecords(rows)
		got, err := FilterByColumns(b, map[string]FilterSpec{
			"title": {Value: "^go", Operator: "regex"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 2 {
			t.Errorf("expected 2 case-insensitive matches, got %d", got.Len())
		}
	})

	t.Run("regex operator requires a string value", func(t *testing.T) {
		b := curation.FromRecords(rows)
		_, err := FilterByColumns(b, map[string]FilterSpec{
			"title": {Value: 5, Operator: "regex"},
		})
		if !errhandling.IsValidationError(err) {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})

	t.Run("nil value is rejected", func(t *testing.T) {
		b := curation.FromRecords(rows)
		_, err := FilterByColumns(b, map[string]FilterSpec{
			"status": {Value: nil},
		})
		if !errhandling.IsValidationError(err) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		if !strings.Contains(err.Error(), "status") {
			t.Errorf("error should name the column, got %q", err)
		}
	})

	t.Run("blank value is rejected", func(t *testing.T) {
		b := curation.FromRecords(rows)
		_, err := FilterByColumns(b, map[string]FilterSpec{
			"status": {Value: "   "},
		})
		if !errhandling.IsValidationError(err) {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})

	t.Run("missing columns report in sorted order", func(t *testing.T) {
		b := curation.FromRecords(rows)
		_, err := FilterByColumns(b, map[string]FilterSpec{
			"zeta":  {Value: "x"},
			"alpha": {Value: "y"},
		})
		if !errhandling.IsSchemaError(err) {
			t.Fatalf("expected a schema error, got %v", err)
		}
		if !strings.Contains(err.Error(), "alpha") {
			t.Errorf("expected the alphabetically first missing column, got %q", err)
		}
	})
}

func TestFilterByMatch(t *testing.T) {
	mixed := func() *curation.Batch {
		return curation.FromRecords([]curation.Record{
			{"title": "Go Tutorial"},
			{"title": "django tips"},
			{"title": nil},
			{"title": 42},
		})
	}

	t.Run("search is case insensitive", func(t *testing.T) {
		got, err := FilterByMatch(mixed(), "title", "go")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// "Go Tutorial" and "django" both contain "go" case-insensitively
		if got.Len() != 2 {
			t.Errorf("expected 2 rows, got %d", got.Len())
		}
	})

	t.Run("anchors narrow the search", func(t *testing.T) {
		got, err := FilterByMatch(mixed(), "title", "^go")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 1 || got.Row(0)["title"] != "Go Tutorial" {
			t.Errorf("expected only the title starting with go, got %v", columnValues(got, "title"))
		}
	})

	t.Run("null and non-string cells never match", func(t *testing.T) {
		got, err := FilterByMatch(mixed(), "title", ".")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 2 {
			t.Errorf("expected only the string rows, got %d", got.Len())
		}
	})

	t.Run("invalid pattern fails", func(t *testing.T) {
		_, err := FilterByMatch(mixed(), "title", "(")
		if !errhandling.IsValidationError(err) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		if !strings.Contains(err.Error(), RuleFilterByMatch) {
			t.Errorf("error should name the rule, got %q", err)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := FilterByMatch(mixed(), "nope", "x")
		if !errhandling.IsSchemaError(err) {
			t.Fatalf("expected a schema error, got %v", err)
		}
	})
}

func TestRemoveByMatch(t *testing.T) {
	mixed := func() *curation.Batch {
		return curation.FromRecords([]curation.Record{
			{"title": "Go Tutorial"},
			{"title": "django tips"},
			{"title": nil},
			{"title": 42},
		})
	}

	t.Run("matching rows are dropped and nulls survive", func(t *testing.T) {
		got, err := RemoveByMatch(mixed(), "title", "^go")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 3 {
			t.Errorf("expected 3 survivors, got %d", got.Len())
		}
		for _, r := range got.Records() {
			if r["title"] == "Go Tutorial" {
				t.Error("matched row should have been removed")
			}
		}
	})

	t.Run("invalid pattern names the rule", func(t *testing.T) {
		_, err := RemoveByMatch(mixed(), "title", "(")
		if !errhandling.IsValidationError(err) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		if !strings.Contains(err.Error(), RuleRemoveByMatch) {
			t.Errorf("error should name the rule, got %q", err)
		}
	})
}

func dateBatch() *curation.Batch {
	return curation.FromRecords([]curation.Record{
		{"d": "2022-12-31", "id": 1},
		{"d": "2023-01-01", "id": 2},
		{"d": "2023-01-15", "id": 3},
		{"d": "2023-01-31", "id": 4},
		{"d": "2023-02-01", "id": 5},
		{"d": time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC), "id": 6},
		{"d": nil, "id": 7},
		{"d": "not a date", "id": 8},
	})
}

func TestFilterByDateRange(t *testing.T) {
	t.Run("keeps the inclusive range", func(t *testing.T) {
		got, err := FilterByDateRange(dateBatch(), "d", "2023-01-01", "2023-01-31")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{2, 3, 4, 6}; !reflect.DeepEqual(columnValues(got, "id"), want) {
			t.Errorf("got ids %v, want %v", columnValues(got, "id"), want)
		}
	})

	t.Run("null and unparseable cells are dropped", func(t *testing.T) {
		got, err := FilterByDateRange(dateBatch(), "d", "2000-01-01", "2100-01-01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, r := range got.Records() {
			if r["id"] == 7 || r["id"] == 8 {
				t.Errorf("row %v should not survive a date filter", r["id"])
			}
		}
	})

	t.Run("invalid bound names its parameter", func(t *testing.T) {
		_, err := FilterByDateRange(dateBatch(), "d", "garbage", "2023-01-31")
		if !errhandling.IsValidationError(err) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		if !strings.Contains(err.Error(), "start_date") {
			t.Errorf("error should name start_date, got %q", err)
		}
		_, err = FilterByDateRange(dateBatch(), "d", "2023-01-01", "garbage")
		if err == nil || !strings.Contains(err.Error(), "end_date") {
			t.Errorf("error should name end_date, got %v", err)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := FilterByDateRange(dateBatch(), "nope", "2023-01-01", "2023-01-31")
		if !errhandling.IsSchemaError(err) {
			t.Fatalf("expected a schema error, got %v", err)
		}
	})
}

func TestExcludeByDateRange(t *testing.T) {
	t.Run("keeps only rows outside the range", func(t *testing.T) {
		got, err := ExcludeByDateRange(dateBatch(), "d", "2023-01-01", "2023-01-31")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{1, 5}; !reflect.DeepEqual(columnValues(got, "id"), want) {
			t.Errorf("got ids %v, want %v", columnValues(got, "id"), want)
		}
	})

	t.Run("null and unparseable cells are dropped, not kept", func(t *testing.T) {
		// exclusion is a positive outside-the-range test, not a negation
		// of the keep filter, so undated rows fall out here too
		got, err := ExcludeByDateRange(dateBatch(), "d", "2023-01-01", "2023-01-31")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, r := range got.Records() {
			if r["id"] == 7 || r["id"] == 8 {
				t.Errorf("row %v should not survive the exclusion", r["id"])
			}
		}
	})
}

func TestRemoveNullOrEmpty(t *testing.T) {
	rows := []curation.Record{
		{"a": "x", "b": "y", "id": 1},
		{"a": nil, "b": "y", "id": 2},
		{"a": "", "b": "y", "id": 3},
		{"a": "x", "b": nil, "id": 4},
		{"a": 0, "b": false, "id": 5},
	}

	t.Run("any listed column counts", func(t *testing.T) {
		got, err := RemoveNullOrEmpty(curation.FromRecords(rows), []string{"a", "b"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{1, 5}; !reflect.DeepEqual(columnValues(got, "id"), want) {
			t.Errorf("got ids %v, want %v", columnValues(got, "id"), want)
		}
	})

	t.Run("unlisted columns are ignored", func(t *testing.T) {
		got, err := RemoveNullOrEmpty(curation.FromRecords(rows), []string{"a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{1, 4, 5}; !reflect.DeepEqual(columnValues(got, "id"), want) {
			t.Errorf("got ids %v, want %v", columnValues(got, "id"), want)
		}
	})

	t.Run("result never carries a null or empty checked cell", func(t *testing.T) {
		got, err := RemoveNullOrEmpty(curation.FromRecords(rows), []string{"a", "b"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, r := range got.Records() {
			for _, c := range []string{"a", "b"} {
				if r[c] == nil || r[c] == "" {
					t.Errorf("row %v still holds a null or empty %q", r["id"], c)
				}
			}
		}
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := RemoveNullOrEmpty(curation.FromRecords(rows), []string{"a", "nope"})
		if !errhandling.IsSchemaError(err) {
			t.Fatalf("expected a schema error, got %v", err)
		}
	})
}

func TestRemoveDuplicates(t *testing.T) {
	slugRows := []curation.Record{
		{"slug": "post", "modified": "2023-01-01", "v": 1},
		{"slug": "other", "modified": "2023-02-01", "v": 2},
		{"slug": "post", "modified": "2023-03-01", "v": 3},
	}

	t.Run("first occurrence survives by default", func(t *testing.T) {
		got, err := RemoveDuplicates(curation.FromRecords(slugRows), []string{"slug"}, "", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{1, 2}; !reflect.DeepEqual(columnValues(got, "v"), want) {
			t.Errorf("got %v, want %v", columnValues(got, "v"), want)
		}
	})

	t.Run("keep last picks the later occurrence", func(t *testing.T) {
		got, err := RemoveDuplicates(curation.FromRecords(slugRows), []string{"slug"}, "last", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []interface{}{2, 3}; !reflect.DeepEqual(columnValues(got, "v"), want) {
			t.Errorf("got %v, want %v", columnValues(got, "v"), want)
		}
	})

	t.Run("descending pre-sort keeps the most recent duplicate", func(t *testing.T) {
		got, err := RemoveDuplicates(curation.FromRecords(slugRows), []string{"slug"}, "first", "modified", "desc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 2 {
			t.Fatalf("expected 2 rows, got %d", got.Len())
		}
		for _, r := range got.Records() {
			if r["slug"] == "post" && r["v"] != 3 {
				t.Errorf("expected the latest post row to survive, got v=%v", r["v"])
			}
		}
	})

	t.Run("ascending pre-sort keeps the earliest duplicate", func(t *testing.T) {
		got, err := RemoveDuplicates(curation.FromRecords(slugRows), []string{"slug"}, "first", "modified", "asc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, r := range got.Records() {
			if r["slug"] == "post" && r["v"] != 1 {
				t.Errorf("expected the earliest post row to survive, got v=%v", r["v"])
			}
		}
	})

	t.Run("deduplication is idempotent", func(t *testing.T) {
		once, err := RemoveDuplicates(curation.FromRecords(slugRows), []string{"slug"}, "first", "modified", "desc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		twice, err := RemoveDuplicates(once, []string{"slug"}, "first", "modified", "desc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(once.Records(), twice.Records()) {
			t.Errorf("second application changed the batch: %v vs %v", once.Records(), twice.Records())
		}
	})

	t.Run("composite keys use all columns", func(t *testing.T) {
		b := curation.FromRecords([]curation.Record{
			{"a": 1, "b": "x"},
			{"a": 1, "b": "y"},
			{"a": 1, "b": "x"},
		})
		got, err := RemoveDuplicates(b, []string{"a", "b"}, "", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Len() != 2 {
			t.Errorf("expected 2 rows, got %d", got.Len())
		}
	})

	t.Run("invalid keep is rejected", func(t *testing.T) {
		_, err := RemoveDuplicates(curation.FromRecords(slugRows), []string{"slug"}, "middle", "", "")
		if !errhandling.IsValidationError(err) {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})

	t.Run("missing key column", func(t *testing.T) {
		_, err := RemoveDuplicates(curation.FromRecords(slugRows), []string{"nope"}, "", "", "")
		if !errhandling.IsSchemaError(err) {
			t.Fatalf("expected a schema error, got %v", err)
		}
	})

	t.Run("missing order column", func(t *testing.T) {
		_, err := RemoveDuplicates(curation.FromRecords(slugRows), []string{"slug"}, "first", "nope", "asc")
		if !errhandling.IsSchemaError(err) {
			t.Fatalf("expected a schema error, got %v", err)
		}
	})
}
