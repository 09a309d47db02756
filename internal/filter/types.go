package filter

import "time"

// Logic combines the present sub-filters of a Spec
type Logic string

const (
	// LogicAnd requires every present sub-filter to match (default)
	LogicAnd Logic = "AND"
	// LogicOr requires at least one present sub-filter to match
	LogicOr Logic = "OR"
)

// KeyMatchType discriminates key sub-filter variants
type KeyMatchType string

const (
	KeyMatchExact    KeyMatchType = "EXACT"
	KeyMatchPrefix   KeyMatchType = "PREFIX"
	KeyMatchContains KeyMatchType = "CONTAINS"
	KeyMatchRegex    KeyMatchType = "REGEX"
)

// ValueMatchType discriminates value sub-filter variants
type ValueMatchType string

const (
	ValueMatchContains ValueMatchType = "CONTAINS"
	ValueMatchRegex    ValueMatchType = "REGEX"
	ValueMatchJSONPath ValueMatchType = "JSON_PATH"
	ValueMatchSize     ValueMatchType = "SIZE"
)

// KeyFilter matches against the record key. A record with no key never matches.
type KeyFilter struct {
	Type    KeyMatchType `json:"type"`
	Pattern string       `json:"pattern"`
}

// ValueFilter matches against the record value. A record with no value never matches.
type ValueFilter struct {
	Type ValueMatchType `json:"type"`
	// Pattern is the substring, regex, or expected JSON path value (optional
	// for JSON_PATH, where path existence alone matches)
	Pattern string `json:"pattern,omitempty"`
	// Path is the JSON path expression for JSON_PATH
	Path string `json:"path,omitempty"`
	// MinBytes/MaxBytes bound the value size for SIZE (inclusive, nil = unbounded)
	MinBytes *int64 `json:"min_bytes,omitempty"`
	MaxBytes *int64 `json:"max_bytes,omitempty"`
}

// HeaderClause requires a header key to exist, optionally with a value match.
// All clauses of a Spec must hold regardless of the Spec's Logic.
type HeaderClause struct {
	Key string `json:"key"`
	// Value to compare against; nil means key existence alone satisfies the clause
	Value *string `json:"value,omitempty"`
	// ExactMatch selects equality over substring containment when Value is set
	ExactMatch bool `json:"exact_match,omitempty"`
}

// TimestampRange bounds the record timestamp, compared in local wall-clock
// time. Bounds are inclusive; either may be nil.
type TimestampRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Spec is a composite message filter: up to four optional sub-filters
// combined by a single logic operator. Absent sub-filters are skipped.
// A nil Spec, or a Spec with all sub-filters absent, matches everything.
type Spec struct {
	Key       *KeyFilter      `json:"key,omitempty"`
	Value     *ValueFilter    `json:"value,omitempty"`
	Headers   []HeaderClause  `json:"headers,omitempty"`
	Timestamp *TimestampRange `json:"timestamp,omitempty"`
	Logic     Logic           `json:"logic,omitempty"`
}

// Empty reports whether no sub-filter is present
func (s *Spec) Empty() bool {
	return s == nil || (s.Key == nil && s.Value == nil && len(s.Headers) == 0 && s.Timestamp == nil)
}
