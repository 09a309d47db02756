package transform

import (
	"fmt"
	"strings"

	"github.com/flowmesh/replayd/internal/logclient"
)

// Apply runs the ordered rule list against a record and returns the
// transformed copy. The input record is never mutated; given the same
// inputs the same output is produced. A nil or empty spec is the identity.
//
// A returned error is a per-record error: the caller counts and skips the
// record, it never aborts the job.
func Apply(record *logclient.Record, spec *Spec) (*logclient.Record, error) {
	if spec.Empty() {
		return record, nil
	}

	out := record.Clone()
	for i, rule := range spec.Rules {
		if err := applyRule(out, rule); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Type, err)
		}
	}
	return out, nil
}

func applyRule(record *logclient.Record, rule Rule) error {
	switch rule.Type {
	case RuleSetHeader:
		if record.Headers == nil {
			record.Headers = make(map[string]string)
		}
		record.Headers[rule.Name] = rule.Value
		return nil

	case RuleRemoveHeader:
		delete(record.Headers, rule.Name)
		return nil

	case RuleValueReplace:
		if record.Value == nil {
			return fmt.Errorf("record has no value")
		}
		record.Value = []byte(strings.ReplaceAll(string(record.Value), rule.Old, rule.New))
		return nil

	case RuleValuePrefix:
		record.Value = append([]byte(rule.Value), record.Value...)
		return nil

	case RuleValueSuffix:
		record.Value = append(record.Value, []byte(rule.Value)...)
		return nil

	case RuleKeySet:
		record.Key = []byte(rule.Value)
		return nil

	default:
		return fmt.Errorf("unknown rule type")
	}
}
