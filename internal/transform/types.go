package transform

// RuleType discriminates transformation rule variants. The set is closed;
// unknown types are rejected at submission by the rule-list schema.
type RuleType string

const (
	// RuleSetHeader sets (or overwrites) a header
	RuleSetHeader RuleType = "SET_HEADER"
	// RuleRemoveHeader removes a header if present
	RuleRemoveHeader RuleType = "REMOVE_HEADER"
	// RuleValueReplace replaces all occurrences of a substring in the value
	RuleValueReplace RuleType = "VALUE_REPLACE"
	// RuleValuePrefix prepends to the value
	RuleValuePrefix RuleType = "VALUE_PREFIX"
	// RuleValueSuffix appends to the value
	RuleValueSuffix RuleType = "VALUE_SUFFIX"
	// RuleKeySet sets the record key
	RuleKeySet RuleType = "KEY_SET"
)

// Rule is a single transformation step
type Rule struct {
	Type RuleType `json:"type"`
	// Name is the header name for SET_HEADER / REMOVE_HEADER
	Name string `json:"name,omitempty"`
	// Value is the header value, prefix, suffix, or new key
	Value string `json:"value,omitempty"`
	// Old/New are the substring pair for VALUE_REPLACE
	Old string `json:"old,omitempty"`
	New string `json:"new,omitempty"`
}

// Spec is a versioned, ordered list of transformation rules. A nil Spec is
// the identity transform.
type Spec struct {
	Version int    `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Empty reports whether the spec performs no transformation
func (s *Spec) Empty() bool {
	return s == nil || len(s.Rules) == 0
}
