package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name    string
		spec    *Spec
		wantErr bool
	}{
		{"nil spec", nil, false},
		{"empty spec", &Spec{}, false},
		{"valid logic", &Spec{Logic: LogicOr}, false},
		{"invalid logic", &Spec{Logic: "XOR"}, true},
		{"valid key filter", &Spec{Key: &KeyFilter{Type: KeyMatchPrefix, Pattern: "a"}}, false},
		{"invalid key filter type", &Spec{Key: &KeyFilter{Type: "GLOB", Pattern: "a"}}, true},
		{"json path without path", &Spec{Value: &ValueFilter{Type: ValueMatchJSONPath}}, true},
		{"size without bounds", &Spec{Value: &ValueFilter{Type: ValueMatchSize}}, true},
		{"size negative min", &Spec{Value: &ValueFilter{Type: ValueMatchSize, MinBytes: int64p(-1)}}, true},
		{"size max below min", &Spec{Value: &ValueFilter{Type: ValueMatchSize, MinBytes: int64p(10), MaxBytes: int64p(5)}}, true},
		{"size valid bounds", &Spec{Value: &ValueFilter{Type: ValueMatchSize, MinBytes: int64p(5), MaxBytes: int64p(10)}}, false},
		{"invalid value filter type", &Spec{Value: &ValueFilter{Type: "LENGTH"}}, true},
		{"header clause without key", &Spec{Headers: []HeaderClause{{}}}, true},
		{"timestamp without bounds", &Spec{Timestamp: &TimestampRange{}}, true},
		{"timestamp end before start", &Spec{Timestamp: &TimestampRange{Start: &late, End: &early}}, true},
		{"timestamp valid range", &Spec{Timestamp: &TimestampRange{Start: &early, End: &late}}, false},
		{"valid key regex", &Spec{Key: &KeyFilter{Type: KeyMatchRegex, Pattern: "order-[0-9]+"}}, false},
		{"malformed key regex", &Spec{Key: &KeyFilter{Type: KeyMatchRegex, Pattern: "("}}, true},
		{"valid value regex", &Spec{Value: &ValueFilter{Type: ValueMatchRegex, Pattern: ".*urgent.*"}}, false},
		{"malformed value regex", &Spec{Value: &ValueFilter{Type: ValueMatchRegex, Pattern: "[z-a]"}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.spec)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
