// Package types provides type definitions for the orders, candidates and results
// exchanged with the order backend.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is a canonical string identifier.
// Upstream payloads are inconsistent about id typing: the same service may arrive as
// "42", 42 or {"$oid": "42"}. Every representation decodes to the same ID so map
// lookups never need a second comparison.
type ID string

// objectIDKeys are the wrapper keys recognised when an id arrives as an object.
var objectIDKeys = []string{"$oid", "_id", "id"}

// UnmarshalJSON accepts strings, numbers, null and id-wrapping objects.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id string: %w", err)
		}
		*id = NewID(s)
		return nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("invalid id object: %w", err)
		}
		for _, key := range objectIDKeys {
			if raw, ok := obj[key]; ok {
				return id.UnmarshalJSON(raw)
			}
		}
		return fmt.Errorf("id object has none of %v", objectIDKeys)
	default:
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("invalid id %s: %w", string(data), err)
		}
		*id = NewID(n.String())
		return nil
	}
}

// NewID returns the canonical form of a raw identifier.
func NewID(raw string) ID {
	return ID(strings.TrimSpace(raw))
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool {
	return id == ""
}
