package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Time is a date that accepts the formats gallery exports use.
type Time struct {
	time.Time
}

// UnmarshalJSON parses an RFC 3339 string, a "2006-01-02 15:04:05" string,
// a "2006-01-02" date or a Unix timestamp in seconds.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var sec int64
	if err := json.Unmarshal(data, &sec); err == nil {
		t.Time = time.Unix(sec, 0).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	// Try multiple formats
	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if parsed, err := time.Parse(format, s); err == nil {
			t.Time = parsed
			return nil
		}
	}

	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(sec, 0).UTC()
		return nil
	}

	return fmt.Errorf("unable to parse date: %s", s)
}
