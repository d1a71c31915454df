package rtapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrNotFound is returned (wrapped) by every Get whose response is not 2xx.
var ErrNotFound = errors.New("record not found")

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
	// Fields holds backend validation errors ({"errors": {field: [msgs]}}).
	Fields map[string][]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, msg)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// HasFields reports whether the response carried field-level errors.
func (e *APIError) HasFields() bool {
	return len(e.Fields) > 0
}

func newAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var body struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = truncate(strings.TrimSpace(string(raw)), maxRawMessage)
		return apiErr
	}
	apiErr.Message = body.Message
	if apiErr.Message == "" {
		apiErr.Message = body.Error
	}
	apiErr.Fields = decodeFieldErrors(body.Errors)
	return apiErr
}

const maxRawMessage = 200

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// decodeFieldErrors accepts {field: [msgs]} and {field: msg}.
func decodeFieldErrors(raw json.RawMessage) map[string][]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var many map[string][]string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var single map[string]string
	if err := json.Unmarshal(raw, &single); err == nil {
		out := make(map[string][]string, len(single))
		for k, v := range single {
			out[k] = []string{v}
		}
		return out
	}
	return nil
}

// FieldErrorsOf extracts backend field errors from err, if any.
func FieldErrorsOf(err error) map[string][]string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.HasFields() {
		return apiErr.Fields
	}
	return nil
}
