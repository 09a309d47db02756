package filter

import (
	"fmt"
	"regexp"
)

// Validate checks a filter spec at submission time, including regex
// compilation so a bad pattern surfaces here instead of as silent
// per-record non-matches at run time.
func Validate(spec *Spec) error {
	if spec == nil {
		return nil
	}

	if spec.Logic != "" && spec.Logic != LogicAnd && spec.Logic != LogicOr {
		return fmt.Errorf("invalid filter logic: %s", spec.Logic)
	}

	if spec.Key != nil {
		switch spec.Key.Type {
		case KeyMatchExact, KeyMatchPrefix, KeyMatchContains:
		case KeyMatchRegex:
			if _, err := regexp.Compile(anchor(spec.Key.Pattern)); err != nil {
				return fmt.Errorf("invalid key filter pattern: %v", err)
			}
		default:
			return fmt.Errorf("invalid key filter type: %s", spec.Key.Type)
		}
	}

	if spec.Value != nil {
		switch spec.Value.Type {
		case ValueMatchContains:
		case ValueMatchRegex:
			if _, err := regexp.Compile(anchor(spec.Value.Pattern)); err != nil {
				return fmt.Errorf("invalid value filter pattern: %v", err)
			}
		case ValueMatchJSONPath:
			if spec.Value.Path == "" {
				return fmt.Errorf("json path filter requires a path")
			}
		case ValueMatchSize:
			min, max := spec.Value.MinBytes, spec.Value.MaxBytes
			if min == nil && max == nil {
				return fmt.Errorf("size filter requires at least one bound")
			}
			if min != nil && *min < 0 {
				return fmt.Errorf("size filter min bound cannot be negative")
			}
			if min != nil && max != nil && *max < *min {
				return fmt.Errorf("size filter max bound must be >= min bound")
			}
		default:
			return fmt.Errorf("invalid value filter type: %s", spec.Value.Type)
		}
	}

	for i, clause := range spec.Headers {
		if clause.Key == "" {
			return fmt.Errorf("header clause %d requires a key", i)
		}
	}

	if spec.Timestamp != nil {
		r := spec.Timestamp
		if r.Start == nil && r.End == nil {
			return fmt.Errorf("timestamp filter requires at least one bound")
		}
		if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
			return fmt.Errorf("timestamp filter end must be >= start")
		}
	}

	return nil
}
