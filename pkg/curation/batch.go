package curation

import (
	"fmt"
	"sort"
	"strings"
)

// Batch is an in-memory table of documents: an ordered collection of
// records sharing a column schema. A batch is processed as a unit by the
// cleaning engine; every engine operation returns a new batch with a
// fresh, gap-free row order rather than mutating its input.
//
// Selection operations share the underlying row maps with the source
// batch (rows are not copied); transforming rules clone the rows they
// rewrite. Use Clone for a fully independent copy.
type Batch struct {
	columns []string
	records []Record
}

// NewBatch creates an empty batch with the given column schema.
func NewBatch(columns ...string) *Batch {
	b := &Batch{columns: make([]string, 0, len(columns))}
	for _, c := range columns {
		b.AddColumn(c)
	}
	return b
}

// FromRecords creates a batch from a list of records. The schema is the
// union of all record keys: the keys of each record are added in sorted
// order as they are first seen, so the schema is deterministic regardless
// of map iteration order.
func FromRecords(records []Record) *Batch {
	b := NewBatch()
	for _, r := range records {
		b.Append(r)
	}
	return b
}

// Columns returns the ordered column schema.
func (b *Batch) Columns() []string {
	out := make([]string, len(b.columns))
	copy(out, b.columns)
	return out
}

// HasColumn reports whether the schema contains the named column.
func (b *Batch) HasColumn(name string) bool {
	for _, c := range b.columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a column to the schema if it is not already present.
func (b *Batch) AddColumn(name string) {
	if !b.HasColumn(name) {
		b.columns = append(b.columns, name)
	}
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	return len(b.records)
}

// IsEmpty reports whether the batch has no rows.
func (b *Batch) IsEmpty() bool {
	return len(b.records) == 0
}

// Row returns the record at position i. The returned map is the stored
// row, not a copy.
func (b *Batch) Row(i int) Record {
	return b.records[i]
}

// Records returns the rows in order. The slice is a copy but the row
// maps are shared.
func (b *Batch) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Append adds a record as the last row, extending the schema with any
// keys not yet present (added in sorted order for determinism).
func (b *Batch) Append(r Record) {
	var added []string
	for k := range r {
		if !b.HasColumn(k) {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	b.columns = append(b.columns, added...)
	b.records = append(b.records, r)
}

// Select returns a new batch containing the rows for which keep returns
// true, preserving order. The result has the same schema and a fresh,
// gap-free row order.
func (b *Batch) Select(keep func(Record) bool) *Batch {
	out := b.emptyLike()
	for _, r := range b.records {
		if keep(r) {
			out.records = append(out.records, r)
		}
	}
	return out
}

// Map returns a new batch produced by applying fn to every row in order.
// fn receives the stored row and must return the row to keep (typically
// a clone with some fields rewritten).
func (b *Batch) Map(fn func(Record) Record) *Batch {
	out := b.emptyLike()
	out.records = make([]Record, len(b.records))
	for i, r := range b.records {
		out.records[i] = fn(r)
	}
	return out
}

// SortBy returns a new batch with rows stably sorted by the named
// column. Nil cells always sort last; rows whose cells are mutually
// non-orderable keep their relative order.
func (b *Batch) SortBy(column string, ascending bool) *Batch {
	out := b.emptyLike()
	out.records = make([]Record, len(b.records))
	copy(out.records, b.records)
	sort.SliceStable(out.records, func(i, j int) bool {
		vi := out.records[i][column]
		vj := out.records[j][column]
		if vi == nil {
			return false
		}
		if vj == nil {
			return true
		}
		c, err := CompareValues(vi, vj)
		if err != nil {
			return false
		}
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

// DedupBy returns a new batch with duplicate rows removed, where the
// duplicate key is the tuple of values in the given columns. With
// keepLast false the first occurrence survives, otherwise the last;
// surviving rows keep the batch's row order.
func (b *Batch) DedupBy(columns []string, keepLast bool) *Batch {
	out := b.emptyLike()
	if keepLast {
		seen := make(map[string]bool, len(b.records))
		keep := make([]bool, len(b.records))
		for i := len(b.records) - 1; i >= 0; i-- {
			key := b.dedupKey(b.records[i], columns)
			if !seen[key] {
				seen[key] = true
				keep[i] = true
			}
		}
		for i, r := range b.records {
			if keep[i] {
				out.records = append(out.records, r)
			}
		}
		return out
	}
	seen := make(map[string]bool, len(b.records))
	for _, r := range b.records {
		key := b.dedupKey(r, columns)
		if !seen[key] {
			seen[key] = true
			out.records = append(out.records, r)
		}
	}
	return out
}

// dedupKey builds a composite key from the row's values in the given
// columns. Value types participate in the key so 1 and "1" stay
// distinct.
func (b *Batch) dedupKey(r Record, columns []string) string {
	var sb strings.Builder
	for _, c := range columns {
		fmt.Fprintf(&sb, "%T\x1e%v\x1f", r[c], r[c])
	}
	return sb.String()
}

// Concat returns a new batch holding this batch's rows followed by the
// other batch's rows. The schema is the union of both schemas: this
// batch's columns first, then the other's new columns in their own
// order. Rows are shared, not copied.
func (b *Batch) Concat(other *Batch) *Batch {
	out := b.emptyLike()
	for _, c := range other.columns {
		out.AddColumn(c)
	}
	out.records = make([]Record, 0, len(b.records)+len(other.records))
	out.records = append(out.records, b.records...)
	out.records = append(out.records, other.records...)
	return out
}

// Clone returns a deep copy of the batch: schema and rows are copied,
// list cells one level deep.
func (b *Batch) Clone() *Batch {
	out := b.emptyLike()
	out.records = make([]Record, len(b.records))
	for i, r := range b.records {
		out.records[i] = r.Clone()
	}
	return out
}

// DiffCount returns the number of row positions at which the two batches
// differ: positions where any column value differs, plus any surplus
// rows when the lengths differ. Comparison is positional, so both
// batches are read in their own row order.
func (b *Batch) DiffCount(other *Batch) int {
	n := len(b.records)
	if len(other.records) < n {
		n = len(other.records)
	}
	diff := len(b.records) - n + len(other.records) - n
	cols := b.columns
	if len(other.columns) > len(cols) {
		cols = other.columns
	}
	for i := 0; i < n; i++ {
		for _, c := range cols {
			if !EqualValues(b.records[i][c], other.records[i][c]) {
				diff++
				break
			}
		}
	}
	return diff
}

// emptyLike returns an empty batch sharing this batch's schema (copied).
func (b *Batch) emptyLike() *Batch {
	out := &Batch{columns: make([]string, len(b.columns))}
	copy(out.columns, b.columns)
	return out
}
