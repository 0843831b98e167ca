package comment

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp keeps the raw backend value next to the parsed time so that a
// malformed value can be reported instead of failing the whole decode.
type Timestamp struct {
	Time  time.Time
	Raw   string
	Valid bool
}

func At(t time.Time) Timestamp {
	return Timestamp{Time: t, Raw: t.Format(time.RFC3339Nano), Valid: true}
}

// ParseTimestamp never fails; check Valid and Missing on the result.
func ParseTimestamp(raw string) Timestamp {
	ts := Timestamp{Raw: raw}
	if raw == "" {
		return ts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = t
			ts.Valid = true
			return ts
		}
	}
	return ts
}

// Missing reports that the backend sent no value at all.
func (ts Timestamp) Missing() bool {
	return !ts.Valid && ts.Raw == ""
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*ts = Timestamp{Raw: string(data)}
			return nil
		}
		*ts = ParseTimestamp(s)
		return nil
	}
	// JavaScript clients serialize dates as epoch milliseconds.
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		*ts = Timestamp{Raw: string(data)}
		return nil
	}
	*ts = Timestamp{Time: time.UnixMilli(ms).UTC(), Raw: string(data), Valid: true}
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case ts.Valid:
		return json.Marshal(ts.Time.Format(time.RFC3339Nano))
	case ts.Raw != "":
		return json.Marshal(ts.Raw)
	default:
		return []byte("null"), nil
	}
}
