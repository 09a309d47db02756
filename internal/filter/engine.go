package filter

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/flowmesh/replayd/internal/logclient"
	"github.com/flowmesh/replayd/internal/logger"
	"github.com/tidwall/gjson"
)

// regexCache caches compiled patterns across evaluations. A pattern that
// fails to compile is cached as nil so the warning is not re-logged per record.
var regexCache = struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}{compiled: make(map[string]*regexp.Regexp)}

// Matches evaluates a record against a filter spec. It is pure: no state is
// mutated and the same inputs always produce the same result. Malformed
// patterns or undecodable values are non-matches, never faults.
func Matches(record *logclient.Record, spec *Spec) bool {
	if spec.Empty() {
		return true
	}

	logic := spec.Logic
	if logic == "" {
		logic = LogicAnd
	}

	// Evaluate present sub-filters lazily so AND short-circuits on the first
	// failure and OR on the first success.
	checks := make([]func() bool, 0, 4)
	if spec.Key != nil {
		checks = append(checks, func() bool { return matchKey(record, spec.Key) })
	}
	if spec.Value != nil {
		checks = append(checks, func() bool { return matchValue(record, spec.Value) })
	}
	if len(spec.Headers) > 0 {
		checks = append(checks, func() bool { return matchHeaders(record, spec.Headers) })
	}
	if spec.Timestamp != nil {
		checks = append(checks, func() bool { return matchTimestamp(record, spec.Timestamp) })
	}

	if logic == LogicOr {
		for _, check := range checks {
			if check() {
				return true
			}
		}
		return false
	}

	for _, check := range checks {
		if !check() {
			return false
		}
	}
	return true
}

func matchKey(record *logclient.Record, f *KeyFilter) bool {
	if record.Key == nil {
		return false
	}
	key := string(record.Key)

	switch f.Type {
	case KeyMatchExact:
		return key == f.Pattern
	case KeyMatchPrefix:
		return strings.HasPrefix(key, f.Pattern)
	case KeyMatchContains:
		return strings.Contains(key, f.Pattern)
	case KeyMatchRegex:
		return matchRegex(key, f.Pattern)
	default:
		return false
	}
}

func matchValue(record *logclient.Record, f *ValueFilter) bool {
	if record.Value == nil {
		return false
	}

	switch f.Type {
	case ValueMatchContains:
		return strings.Contains(string(record.Value), f.Pattern)
	case ValueMatchRegex:
		return matchRegex(string(record.Value), f.Pattern)
	case ValueMatchJSONPath:
		return matchJSONPath(record.Value, f.Path, f.Pattern)
	case ValueMatchSize:
		size := int64(len(record.Value))
		if f.MinBytes != nil && size < *f.MinBytes {
			return false
		}
		if f.MaxBytes != nil && size > *f.MaxBytes {
			return false
		}
		return true
	default:
		return false
	}
}

// matchHeaders requires every clause to hold, regardless of the Spec's
// outer logic operator.
func matchHeaders(record *logclient.Record, clauses []HeaderClause) bool {
	if len(record.Headers) == 0 {
		return false
	}

	for _, clause := range clauses {
		value, exists := record.Headers[clause.Key]
		if !exists {
			return false
		}
		if clause.Value == nil {
			continue
		}
		if clause.ExactMatch {
			if value != *clause.Value {
				return false
			}
		} else if !strings.Contains(value, *clause.Value) {
			return false
		}
	}
	return true
}

func matchTimestamp(record *logclient.Record, r *TimestampRange) bool {
	ts := record.Timestamp.In(time.Local)
	if r.Start != nil && ts.Before(r.Start.In(time.Local)) {
		return false
	}
	if r.End != nil && ts.After(r.End.In(time.Local)) {
		return false
	}
	return true
}

// matchRegex full-matches the input against a compiled pattern. A malformed
// pattern is logged once and treated as a non-match.
func matchRegex(input, pattern string) bool {
	re := compileRegex(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(input)
}

func compileRegex(pattern string) *regexp.Regexp {
	regexCache.mu.RLock()
	re, cached := regexCache.compiled[pattern]
	regexCache.mu.RUnlock()
	if cached {
		return re
	}

	re, err := regexp.Compile(anchor(pattern))
	if err != nil {
		log := logger.WithComponent("filter")
		log.Warn().
			Err(err).
			Str("pattern", pattern).
			Msg("Malformed regex pattern, treating as non-match")
		re = nil
	}

	regexCache.mu.Lock()
	regexCache.compiled[pattern] = re
	regexCache.mu.Unlock()
	return re
}

// anchor wraps a pattern so MatchString performs a full match
func anchor(pattern string) string {
	return "^(?:" + pattern + ")$"
}

// matchJSONPath evaluates a path expression against a JSON value.
// Path-not-found is a non-match; an undecodable value is a non-match with a
// logged warning. If expected is non-empty the resolved value must equal it.
func matchJSONPath(value []byte, path, expected string) bool {
	if !gjson.ValidBytes(value) {
		log := logger.WithComponent("filter")
		log.Warn().
			Str("path", path).
			Msg("Record value is not valid JSON, treating as non-match")
		return false
	}

	result := gjson.GetBytes(value, path)
	if !result.Exists() {
		return false
	}
	if expected == "" {
		return true
	}
	return result.String() == expected
}
