package http

import (
	"strconv"
	"strings"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

func deref(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
