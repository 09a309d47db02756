package filter

import (
	"testing"
	"time"

	"github.com/flowmesh/replayd/internal/logclient"
)

func testRecord() *logclient.Record {
	return &logclient.Record{
		Topic:     "orders",
		Partition: 0,
		Offset:    42,
		Key:       []byte("order-1001"),
		Value:     []byte(`{"type":"order","priority":"urgent","amount":250}`),
		Headers:   map[string]string{"source": "checkout-service", "region": "eu-west"},
		Timestamp: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func int64p(v int64) *int64 { return &v }

func strp(s string) *string { return &s }

func TestMatchesKeyFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   KeyFilter
		expected bool
	}{
		{"exact match", KeyFilter{Type: KeyMatchExact, Pattern: "order-1001"}, true},
		{"exact mismatch", KeyFilter{Type: KeyMatchExact, Pattern: "order-1002"}, false},
		{"prefix match", KeyFilter{Type: KeyMatchPrefix, Pattern: "order-"}, true},
		{"prefix mismatch", KeyFilter{Type: KeyMatchPrefix, Pattern: "invoice-"}, false},
		{"contains match", KeyFilter{Type: KeyMatchContains, Pattern: "1001"}, true},
		{"contains mismatch", KeyFilter{Type: KeyMatchContains, Pattern: "9999"}, false},
		{"regex match", KeyFilter{Type: KeyMatchRegex, Pattern: `order-\d+`}, true},
		{"regex requires full match", KeyFilter{Type: KeyMatchRegex, Pattern: `\d+`}, false},
		{"malformed regex is a non-match", KeyFilter{Type: KeyMatchRegex, Pattern: `order-(`}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := &Spec{Key: &tc.filter}
			if got := Matches(testRecord(), spec); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestMatchesKeyFilterNilKey(t *testing.T) {
	record := testRecord()
	record.Key = nil

	spec := &Spec{Key: &KeyFilter{Type: KeyMatchPrefix, Pattern: ""}}
	if Matches(record, spec) {
		t.Error("Record without a key must not match a key filter")
	}
}

func TestMatchesValueFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   ValueFilter
		expected bool
	}{
		{"contains match", ValueFilter{Type: ValueMatchContains, Pattern: "urgent"}, true},
		{"contains mismatch", ValueFilter{Type: ValueMatchContains, Pattern: "routine"}, false},
		{"regex match", ValueFilter{Type: ValueMatchRegex, Pattern: `.*"priority":"urgent".*`}, true},
		{"malformed regex is a non-match", ValueFilter{Type: ValueMatchRegex, Pattern: `[invalid`}, false},
		{"json path existence", ValueFilter{Type: ValueMatchJSONPath, Path: "priority"}, true},
		{"json path missing", ValueFilter{Type: ValueMatchJSONPath, Path: "missing"}, false},
		{"json path equality", ValueFilter{Type: ValueMatchJSONPath, Path: "priority", Pattern: "urgent"}, true},
		{"json path inequality", ValueFilter{Type: ValueMatchJSONPath, Path: "priority", Pattern: "low"}, false},
		{"json path nested number", ValueFilter{Type: ValueMatchJSONPath, Path: "amount", Pattern: "250"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := &Spec{Value: &tc.filter}
			if got := Matches(testRecord(), spec); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestMatchesValueFilterNotJSON(t *testing.T) {
	record := testRecord()
	record.Value = []byte("plain text, not json")

	spec := &Spec{Value: &ValueFilter{Type: ValueMatchJSONPath, Path: "priority"}}
	if Matches(record, spec) {
		t.Error("Undecodable value must be a non-match, not a fault")
	}
}

func TestMatchesSizeFilterBoundsInclusive(t *testing.T) {
	record := testRecord()
	record.Value = []byte("1234567890") // 10 bytes

	tests := []struct {
		name     string
		min, max *int64
		expected bool
	}{
		{"within bounds", int64p(5), int64p(10), true},
		{"at min bound", int64p(10), nil, true},
		{"at max bound", nil, int64p(10), true},
		{"below min", int64p(11), nil, false},
		{"above max", nil, int64p(9), false},
		{"unbounded", nil, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := &Spec{Value: &ValueFilter{Type: ValueMatchSize, MinBytes: tc.min, MaxBytes: tc.max}}
			if got := Matches(record, spec); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestMatchesHeaders(t *testing.T) {
	tests := []struct {
		name     string
		clauses  []HeaderClause
		expected bool
	}{
		{"key existence", []HeaderClause{{Key: "source"}}, true},
		{"missing key", []HeaderClause{{Key: "absent"}}, false},
		{"substring value", []HeaderClause{{Key: "source", Value: strp("checkout")}}, true},
		{"exact value", []HeaderClause{{Key: "region", Value: strp("eu-west"), ExactMatch: true}}, true},
		{"exact value mismatch", []HeaderClause{{Key: "region", Value: strp("eu"), ExactMatch: true}}, false},
		{"all clauses must hold", []HeaderClause{{Key: "source"}, {Key: "absent"}}, false},
		{"multiple clauses hold", []HeaderClause{{Key: "source"}, {Key: "region"}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := &Spec{Headers: tc.clauses}
			if got := Matches(testRecord(), spec); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestMatchesHeadersEmptyRecordHeaders(t *testing.T) {
	record := testRecord()
	record.Headers = nil

	spec := &Spec{Headers: []HeaderClause{{Key: "source"}}}
	if Matches(record, spec) {
		t.Error("Record without headers must not match a header clause list")
	}
}

func TestMatchesTimestampRange(t *testing.T) {
	at := func(h int) *time.Time {
		t := time.Date(2026, 3, 15, h, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		name       string
		start, end *time.Time
		expected   bool
	}{
		{"inside range", at(11), at(13), true},
		{"at start bound", at(12), at(13), true},
		{"at end bound", at(11), at(12), true},
		{"before range", at(13), nil, false},
		{"after range", nil, at(11), false},
		{"open start", nil, at(13), true},
		{"open end", at(11), nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := &Spec{Timestamp: &TimestampRange{Start: tc.start, End: tc.end}}
			if got := Matches(testRecord(), spec); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestMatchesLogicOperators(t *testing.T) {
	match := &KeyFilter{Type: KeyMatchPrefix, Pattern: "order-"}
	miss := &ValueFilter{Type: ValueMatchContains, Pattern: "nope"}

	tests := []struct {
		name     string
		spec     *Spec
		expected bool
	}{
		{"and all match", &Spec{Key: match, Logic: LogicAnd}, true},
		{"and one misses", &Spec{Key: match, Value: miss, Logic: LogicAnd}, false},
		{"or one matches", &Spec{Key: match, Value: miss, Logic: LogicOr}, true},
		{"or all miss", &Spec{Key: &KeyFilter{Type: KeyMatchExact, Pattern: "x"}, Value: miss, Logic: LogicOr}, false},
		{"default logic is and", &Spec{Key: match, Value: miss}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(testRecord(), tc.spec); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestMatchesEmptySpec(t *testing.T) {
	if !Matches(testRecord(), nil) {
		t.Error("nil spec must match everything")
	}
	if !Matches(testRecord(), &Spec{}) {
		t.Error("empty spec must match everything")
	}
}

func TestMatchesIsIdempotent(t *testing.T) {
	record := testRecord()
	spec := &Spec{
		Key:     &KeyFilter{Type: KeyMatchRegex, Pattern: `order-\d+`},
		Value:   &ValueFilter{Type: ValueMatchJSONPath, Path: "priority", Pattern: "urgent"},
		Headers: []HeaderClause{{Key: "source"}},
	}

	first := Matches(record, spec)
	for i := 0; i < 10; i++ {
		if Matches(record, spec) != first {
			t.Fatal("Matches must be deterministic for the same inputs")
		}
	}
	if record.Key == nil || string(record.Value) == "" {
		t.Fatal("Matches must not mutate the record")
	}
}
