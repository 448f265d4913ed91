package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TypeDistribution maps an equipment type to the number of records of that
// type. It remembers the key order of the JSON object it was decoded from,
// so charts list the types in the order the server produced them.
type TypeDistribution struct {
	keys   []string
	counts map[string]int
}

// NewTypeDistribution builds a distribution from ordered keys and counts.
// Keys missing from counts are reported with a zero count.
func NewTypeDistribution(keys []string, counts map[string]int) TypeDistribution {
	td := TypeDistribution{counts: make(map[string]int, len(keys))}
	for _, k := range keys {
		td.Add(k, counts[k])
	}
	return td
}

// Add sets the count for a type, appending the type if it is new.
func (td *TypeDistribution) Add(key string, count int) {
	if td.counts == nil {
		td.counts = make(map[string]int)
	}
	if _, ok := td.counts[key]; !ok {
		td.keys = append(td.keys, key)
	}
	td.counts[key] = count
}

// Keys returns the types in insertion order.
func (td TypeDistribution) Keys() []string {
	out := make([]string, len(td.keys))
	copy(out, td.keys)
	return out
}

// Count returns the count for a type and whether it is present.
func (td TypeDistribution) Count(key string) (int, bool) {
	n, ok := td.counts[key]
	return n, ok
}

// Len is the number of distinct types.
func (td TypeDistribution) Len() int { return len(td.keys) }

// Total sums the counts of all types.
func (td TypeDistribution) Total() int {
	total := 0
	for _, k := range td.keys {
		total += td.counts[k]
	}
	return total
}

// MarshalJSON writes the distribution as a JSON object in key order.
func (td TypeDistribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range td.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		fmt.Fprintf(&buf, ":%d", td.counts[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of counts, keeping key order.
func (td *TypeDistribution) UnmarshalJSON(data []byte) error {
	*td = TypeDistribution{counts: make(map[string]int)}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("type distribution: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("type distribution: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("type distribution: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("type distribution: unexpected key %v", tok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("type distribution %q: %w", key, err)
		}
		td.Add(key, count)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("type distribution: %w", err)
	}
	return nil
}
