// Package curation provides the public data model and wire types for
// document-curation pipelines. This package is intended to be importable
// by external projects that need to build rule specifications, construct
// document batches, or consume run results programmatically.
package curation

// Fielder provides read access to the named fields of one document row.
// Rule helpers that only need to look up values accept this interface
// instead of a concrete row type.
type Fielder interface {
	// Get returns the value stored under key and whether the key exists.
	Get(key string) (interface{}, bool)
}

// Record is one document row: a mapping from column name to value.
// Values are scalars (string, float64/int, bool, time.Time) or small
// lists ([]interface{}). A missing key or a nil value both represent
// null, which is distinct from the empty string.
type Record map[string]interface{}

// Get implements Fielder.
func (r Record) Get(key string) (interface{}, bool) {
	v, ok := r[key]
	return v, ok
}

// GetOr returns the value stored under key, or fallback if the key is
// absent or holds nil.
func (r Record) GetOr(key string, fallback interface{}) interface{} {
	if v, ok := r[key]; ok && v != nil {
		return v
	}
	return fallback
}

// Clone returns a copy of the record. List values are copied one level
// deep so the clone can be modified without aliasing the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if list, ok := v.([]interface{}); ok {
			copied := make([]interface{}, len(list))
			copy(copied, list)
			out[k] = copied
			continue
		}
		out[k] = v
	}
	return out
}

// Verify interface compliance at compile time
var _ Fielder = (Record)(nil)
