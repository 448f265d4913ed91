package models

import (
	"encoding/json"
	"testing"
)

func TestTypeDistribution_KeepsServerOrder(t *testing.T) {
	var s Summary
	body := `{"total_count":6,"avg_flowrate":1.5,"avg_pressure":2,"avg_temperature":3,
		"type_distribution":{"Pump":3,"Valve":1,"Compressor":2}}`
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	keys := s.TypeDistribution.Keys()
	want := []string{"Pump", "Valve", "Compressor"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v; want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q; want %q", i, keys[i], want[i])
		}
	}
	if n, ok := s.TypeDistribution.Count("Compressor"); !ok || n != 2 {
		t.Errorf("Count(Compressor) = %d, %v; want 2, true", n, ok)
	}
	if got := s.TypeDistribution.Total(); got != 6 {
		t.Errorf("Total = %d; want 6", got)
	}
}

func TestTypeDistribution_MarshalRoundTripOrder(t *testing.T) {
	td := NewTypeDistribution([]string{"b", "a"}, map[string]int{"a": 1, "b": 2})
	out, err := json.Marshal(td)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"b":2,"a":1}` {
		t.Errorf("marshal = %s; want %s", out, `{"b":2,"a":1}`)
	}
}

func TestTypeDistribution_Invalid(t *testing.T) {
	cases := []string{`[1,2]`, `{"a":"x"}`, `{"a":1`}
	for _, c := range cases {
		var td TypeDistribution
		if err := json.Unmarshal([]byte(c), &td); err == nil {
			t.Errorf("Unmarshal(%s) expected error", c)
		}
	}
}

func TestTypeDistribution_Null(t *testing.T) {
	var td TypeDistribution
	if err := json.Unmarshal([]byte(`null`), &td); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if td.Len() != 0 {
		t.Errorf("Len = %d; want 0", td.Len())
	}
}
