// Package core provides the RT domain model and its consistency rules.
//
// This file contains the Rupiah amount type: tolerant JSON decoding,
// parsing of user input and Indonesian display formatting.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Rupiah is a whole-rupiah amount.
type Rupiah int64

var ErrInvalidAmount = errors.New("invalid amount")

// UnmarshalJSON accepts 150000, 150000.0, "150000" and "150000.00".
func (r *Rupiah) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*r = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*r = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("rupiah %q: %w", s, ErrInvalidAmount)
		}
		*r = Rupiah(math.Round(v))
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("rupiah %s: %w", data, ErrInvalidAmount)
	}
	*r = Rupiah(math.Round(v))
	return nil
}

// ParseRupiah reads a form value. Grouping dots and an "Rp" prefix are
// tolerated, so "150.000", "Rp 150.000" and "150000" are all 150000.
// An empty string parses as zero so that positivity is reported by validation.
func ParseRupiah(s string) (Rupiah, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp"), "rp")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if i := strings.LastIndex(s, ","); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, " ", "")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return Rupiah(v), nil
}

// String formats the amount the way the console displays it, e.g. "Rp 150.000".
func (r Rupiah) String() string {
	p := message.NewPrinter(language.Indonesian)
	if r < 0 {
		return p.Sprintf("-Rp %d", -int64(r))
	}
	return p.Sprintf("Rp %d", int64(r))
}

// Int64 is a convenience for templates and storage.
func (r Rupiah) Int64() int64 {
	return int64(r)
}
