package caselaw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record is a stored court decision: its recognized text and the embedding of that text.
type Record struct {
	ID        int64         `json:"id"`
	Text      string        `json:"text"`
	Vector    EncodedVector `json:"vector"`
	CreatedAt Timestamp     `json:"created_at"`
}

// NewRecord is the insert payload. The store assigns ID and CreatedAt.
type NewRecord struct {
	Text   string        `json:"text"`
	Vector EncodedVector `json:"vector"`
}

// EncodedVector is the textual numeric-array encoding of an embedding as kept at rest
// (for example "[0.12,-0.5,0.33]"). It is decoded only when a comparison needs it.
type EncodedVector string

// UnmarshalJSON accepts a JSON string holding the array text (text columns) or the
// raw array itself (json/jsonb columns).
func (v *EncodedVector) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode vector text: %w", err)
		}
		*v = EncodedVector(s)
		return nil
	}
	*v = EncodedVector(trimmed)
	return nil
}

// MarshalJSON writes the encoding as a JSON string, or null when empty.
func (v EncodedVector) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(v))
}

// Timestamp is a time.Time that understands the timestamp renderings PostgREST emits
// for timestamptz, timestamp and date columns.
type Timestamp time.Time

var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses s using the formats accepted by Timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time().IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time().Format(time.RFC3339Nano))
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// ListOptions configures select operations.
type ListOptions struct {
	Columns  []string // Columns to select, empty means all
	Ordering string   // PostgREST order, e.g. "created_at.asc,id.asc"
	Limit    int      // Maximum rows, 0 means server default
	Offset   int      // Rows to skip
}
