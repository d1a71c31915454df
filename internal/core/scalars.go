package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and form format for dates.
const DateLayout = "2006-01-02"

// Flag is a boolean that tolerates the encodings the backend uses:
// true/false, 0/1 and their quoted forms.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %s", data)
	}
	return nil
}

// ParseFlag reads a checkbox or select value.
func ParseFlag(s string) Flag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Date is a calendar date kept in YYYY-MM-DD form. Timestamps such as
// "2024-01-10T00:00:00.000000Z" are cut down to their date part on decode.
type Date string

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*d = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = NewDateString(s)
	return nil
}

// NewDateString normalizes user or backend input to a Date.
func NewDateString(s string) Date {
	s = strings.TrimSpace(s)
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	return Date(s)
}

// DateOf formats t as a Date.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) String() string {
	return string(d)
}

func (d Date) IsZero() bool {
	return strings.TrimSpace(string(d)) == ""
}

// Time parses the date; the zero time is returned for empty or malformed values.
func (d Date) Time() (time.Time, error) {
	return time.Parse(DateLayout, string(d))
}

// Valid reports whether the date parses as YYYY-MM-DD.
func (d Date) Valid() bool {
	_, err := d.Time()
	return err == nil
}

// Month returns the two-digit month ("01".."12"), or "" when too short.
func (d Date) Month() string {
	if len(d) < 7 {
		return ""
	}
	return string(d[5:7])
}

// YearMonth returns "YYYY-MM", or "" when too short.
func (d Date) YearMonth() string {
	if len(d) < 7 {
		return ""
	}
	return string(d[:7])
}

// Before compares two ISO dates lexically, which matches chronological order.
func (d Date) Before(other Date) bool {
	return string(d) < string(other)
}

// DatePtr returns nil for an empty date, used for nullable end dates.
func DatePtr(s string) *Date {
	d := NewDateString(s)
	if d.IsZero() {
		return nil
	}
	return &d
}

// ParseID reads a numeric identifier from a form or path value.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
