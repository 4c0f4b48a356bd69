package config

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/cleansweep/engine/internal/dq"
	"github.com/cleansweep/engine/pkg/curation"
)

// Settings is the decoded form of a curation settings file.
type Settings struct {
	// Name labels the run in logs and results.
	Name string

	// Source locates the documents to read.
	Source Endpoint

	// Output locates the cleaned target. An empty path derives the
	// target from the source path at write time.
	Output Endpoint

	// Rules is the ordered rule list.
	Rules []curation.RuleSpec

	// Plugins lists JavaScript plugin files fired on documents_clean.
	Plugins []string

	// DQ configures the data-quality stage.
	DQ dq.Suite

	// Log configures run logging.
	Log LogSettings

	// DetailedDiff enables the changed-row diagnostic for rules that
	// leave the row count unchanged.
	DetailedDiff bool
}

// Endpoint is a file location with an optional format override.
type Endpoint struct {
	// Path is the file path; the source side also accepts a glob.
	Path string

	// Format overrides extension-based detection (csv, json, jsonl).
	Format string
}

// LogSettings configures run logging.
type LogSettings struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string

	// Format selects the console handler (json, human).
	Format string

	// File mirrors logs into a file when set.
	File string
}

// ConvertToSettings decodes validated settings data. The data should
// have passed schema validation first; the decode re-checks only what
// the schema cannot express.
//
// Rule entries keep their flattened wire form: the rule and type keys
// are lifted out and every remaining key becomes a rule parameter.
func ConvertToSettings(data map[string]interface{}) (*Settings, error) {
	if data == nil {
		return nil, fmt.Errorf("settings data is nil")
	}

	settings := &Settings{}

	name, ok := data["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("missing required field 'name'")
	}
	settings.Name = name

	sourceData, ok := data["source"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'source' section")
	}
	settings.Source = convertEndpoint(sourceData)
	if settings.Source.Path == "" {
		return nil, fmt.Errorf("missing required field 'source.path'")
	}

	if outputData, ok := data["output"].(map[string]interface{}); ok {
		settings.Output = convertEndpoint(outputData)
	}

	rulesData, ok := data["rules"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'rules' section")
	}
	for i, ruleData := range rulesData {
		ruleMap, isMap := ruleData.(map[string]interface{})
		if !isMap {
			return nil, fmt.Errorf("invalid rule at index %d", i)
		}
		spec := curation.RuleSpecFromMap(ruleMap)
		if spec.Type == "" {
			return nil, fmt.Errorf("rule at index %d is missing required field 'type'", i)
		}
		settings.Rules = append(settings.Rules, spec)
	}

	if pluginsData, ok := data["plugins"].([]interface{}); ok {
		for i, p := range pluginsData {
			path, isString := p.(string)
			if !isString || path == "" {
				return nil, fmt.Errorf("invalid plugin at index %d: expected a file path", i)
			}
			settings.Plugins = append(settings.Plugins, path)
		}
	}

	if dqData, ok := data["dq"].(map[string]interface{}); ok {
		suite, err := convertDQSuite(dqData)
		if err != nil {
			return nil, fmt.Errorf("invalid dq section: %w", err)
		}
		settings.DQ = suite
	}

	if logData, ok := data["log"].(map[string]interface{}); ok {
		settings.Log = LogSettings{
			Level:  stringField(logData, "level"),
			Format: stringField(logData, "format"),
			File:   stringField(logData, "file"),
		}
	}

	if detailed, ok := data["detailed_diff"].(bool); ok {
		settings.DetailedDiff = detailed
	}

	return settings, nil
}

func convertEndpoint(data map[string]interface{}) Endpoint {
	return Endpoint{
		Path:   stringField(data, "path"),
		Format: stringField(data, "format"),
	}
}

func convertDQSuite(data map[string]interface{}) (dq.Suite, error) {
	suite := dq.Suite{}
	if enabled, ok := data["enabled"].(bool); ok {
		suite.Enabled = enabled
	}
	if strict, ok := data["strict"].(bool); ok {
		suite.Strict = strict
	}

	expectationsData, ok := data["expectations"].([]interface{})
	if !ok {
		return suite, nil
	}
	for i, eData := range expectationsData {
		eMap, isMap := eData.(map[string]interface{})
		if !isMap {
			return suite, fmt.Errorf("invalid expectation at index %d", i)
		}
		e, err := convertExpectation(eMap)
		if err != nil {
			return suite, fmt.Errorf("invalid expectation at index %d: %w", i, err)
		}
		suite.Expectations = append(suite.Expectations, e)
	}
	return suite, nil
}

func convertExpectation(data map[string]interface{}) (dq.Expectation, error) {
	e := dq.Expectation{
		Kind:       stringField(data, "kind"),
		Expression: stringField(data, "expression"),
	}
	if e.Kind == "" {
		return e, fmt.Errorf("missing required field 'kind'")
	}

	var err error
	if e.Columns, err = stringListField(data, "columns"); err != nil {
		return e, err
	}
	if e.Include, err = stringListField(data, "include"); err != nil {
		return e, err
	}
	if e.Exclude, err = stringListField(data, "exclude"); err != nil {
		return e, err
	}
	if e.Min, err = intPtrField(data, "min"); err != nil {
		return e, err
	}
	if e.Max, err = intPtrField(data, "max"); err != nil {
		return e, err
	}
	return e, nil
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func stringListField(data map[string]interface{}, key string) ([]string, error) {
	raw, ok := data[key]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q must be a list of strings", key)
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, isString := item.(string)
		if !isString {
			return nil, fmt.Errorf("field %q element %d must be a string, got %T", key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// intPtrField reads an optional integer bound. YAML delivers ints and
// JSON delivers float64s, so the coercion goes through cast.
func intPtrField(data map[string]interface{}, key string) (*int, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return nil, fmt.Errorf("field %q must be an integer: %v", key, err)
	}
	return &n, nil
}
