package curation

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleSpec is one declarative cleaning step as it appears on the wire:
// a JSON/YAML object with a human-readable label, a rule type, and any
// number of rule-specific parameters flattened alongside them.
//
//	{ "rule": "drop drafts", "type": "filter_by_column",
//	  "column": "status", "value": "published", "operator": "==" }
type RuleSpec struct {
	// Rule is the human-readable label used in logs
	Rule string `json:"rule"`

	// Type selects the rule implementation (see the rule catalogue)
	Type string `json:"type"`

	// Params holds every other key of the wire object and is passed to
	// the rule's apply contract
	Params map[string]interface{} `json:"-"`
}

// RuleSpecFromMap builds a RuleSpec from a decoded configuration object.
// The "rule" and "type" keys are lifted out; all remaining keys become
// parameters.
func RuleSpecFromMap(m map[string]interface{}) RuleSpec {
	spec := RuleSpec{Params: make(map[string]interface{}, len(m))}
	for k, v := range m {
		switch k {
		case "rule":
			spec.Rule, _ = v.(string)
		case "type":
			spec.Type, _ = v.(string)
		default:
			spec.Params[k] = v
		}
	}
	return spec
}

// UnmarshalJSON decodes the flattened wire form.
func (s *RuleSpec) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = RuleSpecFromMap(raw)
	return nil
}

// MarshalJSON encodes back to the flattened wire form.
func (s RuleSpec) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(s.Params)+2)
	for k, v := range s.Params {
		flat[k] = v
	}
	flat["rule"] = s.Rule
	flat["type"] = s.Type
	return json.Marshal(flat)
}

// String returns the label if set, otherwise the type.
func (s RuleSpec) String() string {
	if s.Rule != "" {
		return s.Rule
	}
	return s.Type
}

// RunResult represents the outcome of one curation run.
type RunResult struct {
	// RunID is the unique identifier assigned to this run
	RunID string `json:"runId"`

	// Name is the configured curation name
	Name string `json:"name,omitempty"`

	// Status is the run status ("success" or "error")
	Status string `json:"status"`

	// StartedAt is when the run started
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when the run completed
	CompletedAt time.Time `json:"completedAt"`

	// DocumentsRead is the number of documents read from the source
	DocumentsRead int `json:"documentsRead"`

	// DocumentsCleaned is the number of documents in the final batch
	DocumentsCleaned int `json:"documentsCleaned"`

	// RulesApplied is the number of rules that ran (early stop on an
	// emptied batch leaves this below the configured rule count)
	RulesApplied int `json:"rulesApplied"`

	// OutputPath is where the cleaned batch was written (empty in
	// dry-run mode)
	OutputPath string `json:"outputPath,omitempty"`

	// DryRun indicates the write stage was skipped
	DryRun bool `json:"dryRun,omitempty"`

	// DQ summarizes the data-quality expectation results, if checks ran
	DQ *DQSummary `json:"dq,omitempty"`

	// Error contains error details if the run failed
	Error *RunError `json:"error,omitempty"`
}

// Duration returns the total run duration.
func (r *RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunError contains details about a run failure.
type RunError struct {
	// Code is the error code (e.g. READ_FAILED, CLEAN_FAILED)
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Stage is the pipeline stage where the error occurred
	Stage string `json:"stage,omitempty"`

	// Category is the classified error category
	Category string `json:"category,omitempty"`
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s stage failed: %s", e.Stage, e.Message)
	}
	return e.Message
}

// DQSummary summarizes a data-quality expectation suite run.
type DQSummary struct {
	// Expectations is the number of expectations evaluated
	Expectations int `json:"expectations"`

	// Failed is the number of expectations that did not hold
	Failed int `json:"failed"`

	// Failures lists one message per failed expectation
	Failures []string `json:"failures,omitempty"`
}

// Passed reports whether every expectation held.
func (s *DQSummary) Passed() bool {
	return s.Failed == 0
}
