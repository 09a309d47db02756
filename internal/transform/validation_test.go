package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpec(t *testing.T) {
	raw := []byte(`{
		"version": 1,
		"rules": [
			{"type": "SET_HEADER", "name": "replayed", "value": "true"},
			{"type": "VALUE_REPLACE", "old": "a", "new": "b"}
		]
	}`)

	spec, err := ParseSpec(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Version)
	require.Len(t, spec.Rules, 2)
	assert.Equal(t, RuleSetHeader, spec.Rules[0].Type)
	assert.Equal(t, RuleValueReplace, spec.Rules[1].Type)
}

func TestParseSpecRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"version": 1,`},
		{"missing version", `{"rules": []}`},
		{"version below one", `{"version": 0, "rules": []}`},
		{"missing rules", `{"version": 1}`},
		{"unknown rule type", `{"version": 1, "rules": [{"type": "UPPERCASE"}]}`},
		{"unknown rule field", `{"version": 1, "rules": [{"type": "KEY_SET", "pattern": "x"}]}`},
		{"unknown top-level field", `{"version": 1, "rules": [], "mode": "fast"}`},
		{"set header without name", `{"version": 1, "rules": [{"type": "SET_HEADER", "value": "x"}]}`},
		{"value replace without old", `{"version": 1, "rules": [{"type": "VALUE_REPLACE", "new": "x"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSpec([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate(&Spec{Version: 1}))
	assert.NoError(t, Validate(&Spec{Version: 1, Rules: []Rule{{Type: RuleValuePrefix}}}))

	assert.Error(t, Validate(&Spec{Version: 1, Rules: []Rule{{Type: RuleRemoveHeader}}}))
	assert.Error(t, Validate(&Spec{Version: 1, Rules: []Rule{{Type: "NOPE"}}}))
}
