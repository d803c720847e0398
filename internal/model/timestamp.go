package model

import (
	"encoding/json"
	"time"
)

// Timestamp is the logical message time as delivered by the backend.
//
// The backend emits it in two encodings: a 7-field calendar tuple
// [year, month, day, hour, minute, second, nanosecond] (month 1-based)
// and a date-time string. Unparseable values decode to the zero value,
// which sorts after every known time so that broken timestamps never
// break timeline ordering.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps a concrete time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Now returns the current UTC time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC()}
}

// Unknown reports whether the timestamp failed to parse (or was absent).
func (t Timestamp) Unknown() bool {
	return t.IsZero()
}

// Less orders timestamps ascending with unknown values last.
func (t Timestamp) Less(other Timestamp) bool {
	if t.Unknown() {
		return false
	}
	if other.Unknown() {
		return true
	}
	return t.Time.Before(other.Time)
}

// stringLayouts covers RFC3339 variants plus the zone-less LocalDateTime
// form the backend uses for history pages.
var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	// Never fail decoding on a bad timestamp: fall through to zero.
	t.Time = time.Time{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	switch data[0] {
	case '[':
		var parts []float64
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) < 6 {
			return nil
		}
		nanos := 0
		if len(parts) >= 7 {
			nanos = int(parts[6])
		}
		t.Time = time.Date(
			int(parts[0]), time.Month(int(parts[1])), int(parts[2]),
			int(parts[3]), int(parts[4]), int(parts[5]), nanos, time.UTC,
		)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil || s == "" {
			return nil
		}
		for _, layout := range stringLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
	default:
		// Epoch milliseconds.
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return nil
		}
		t.Time = time.UnixMilli(ms).UTC()
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Unknown() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
