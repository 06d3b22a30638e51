package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Optional fields keep the three-way distinction partial updates need:
// a key that is absent leaves the stored value untouched, while a key
// that is present but empty (or null) clears it. Plain pointers collapse
// "absent" and "null" into nil, so these wrappers track presence
// explicitly through UnmarshalJSON.

// OptionalString distinguishes absent / empty / value for string fields.
type OptionalString struct {
	Set   bool
	Value string
}

// UnmarshalJSON marks the field present and records the value; null is
// treated as an explicit clear.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// OptionalFloat distinguishes absent / cleared / value for numeric fields.
type OptionalFloat struct {
	Set   bool
	Valid bool
	Value float64
}

// UnmarshalJSON marks the field present; null or empty string clears it.
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		o.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// OptionalDate distinguishes absent / cleared / value for date fields.
// Accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
type OptionalDate struct {
	Set   bool
	Valid bool
	Value time.Time
}

// UnmarshalJSON marks the field present; null or empty string clears it.
func (o *OptionalDate) UnmarshalJSON(data []byte) error {
	o.Set = true
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		o.Valid = false
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	o.Value = parsed
	o.Valid = true
	return nil
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", value)
}
