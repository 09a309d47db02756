package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ruleListSchema is the JSON Schema the versioned rule list is validated
// against at submission time, so unknown rule types or missing fields are a
// validation error instead of a runtime surprise.
const ruleListSchema = `{
  "type": "object",
  "required": ["version", "rules"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {
            "enum": ["SET_HEADER", "REMOVE_HEADER", "VALUE_REPLACE", "VALUE_PREFIX", "VALUE_SUFFIX", "KEY_SET"]
          },
          "name": {"type": "string"},
          "value": {"type": "string"},
          "old": {"type": "string"},
          "new": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var compileSchemaOnce sync.Once
var compiledSchema *jsonschema.Schema

func schema() *jsonschema.Schema {
	compileSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("rules.json", bytes.NewReader([]byte(ruleListSchema))); err != nil {
			panic(fmt.Sprintf("failed to add rule list schema: %v", err))
		}
		compiledSchema = compiler.MustCompile("rules.json")
	})
	return compiledSchema
}

// ParseSpec validates a raw JSON rule list against the schema and decodes it
func ParseSpec(raw []byte) (*Spec, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("transform spec is not valid JSON: %w", err)
	}

	if err := schema().Validate(doc); err != nil {
		return nil, fmt.Errorf("transform spec validation failed: %w", err)
	}

	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode transform spec: %w", err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks rule fields the schema cannot express
func Validate(spec *Spec) error {
	if spec == nil {
		return nil
	}

	for i, rule := range spec.Rules {
		switch rule.Type {
		case RuleSetHeader, RuleRemoveHeader:
			if rule.Name == "" {
				return fmt.Errorf("rule %d (%s): header name is required", i, rule.Type)
			}
		case RuleValueReplace:
			if rule.Old == "" {
				return fmt.Errorf("rule %d (%s): old substring is required", i, rule.Type)
			}
		case RuleValuePrefix, RuleValueSuffix, RuleKeySet:
			// value may legitimately be empty
		default:
			return fmt.Errorf("rule %d: unknown rule type %q", i, rule.Type)
		}
	}
	return nil
}
