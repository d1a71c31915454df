package core

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a form field (e.g. "name", "items.0.amount") to the
// message shown beside it.
type FieldErrors map[string]string

// Add records msg for field unless the field already has one.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Merge folds backend errors ({field: [msgs]}) into fe. Messages for one
// field are joined with a space and replace any local message.
func (fe FieldErrors) Merge(remote map[string][]string) {
	for field, msgs := range remote {
		if len(msgs) == 0 {
			continue
		}
		fe[field] = strings.Join(msgs, " ")
	}
}

func (fe FieldErrors) Get(field string) string {
	return fe[field]
}

func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Fields returns the sorted field names.
func (fe FieldErrors) Fields() []string {
	out := make([]string, 0, len(fe))
	for k := range fe {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ToMap converts to the backend's {field: [msgs]} shape.
func (fe FieldErrors) ToMap() map[string][]string {
	out := make(map[string][]string, len(fe))
	for k, v := range fe {
		out[k] = []string{v}
	}
	return out
}

// Messages holds the user-facing text per field. Keys are either the field
// name or "field.tag" for a specific rule.
type Messages map[string]string

const fallbackMessage = "Nilai tidak valid"

var (
	validate   = newValidator()
	indexRegex = regexp.MustCompile(`\[(\d+)\]`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				continue
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// validateStruct runs the struct tags and maps failures to FieldErrors.
func validateStruct(s any, msgs Messages) FieldErrors {
	out := FieldErrors{}
	err := validate.Struct(s)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_error"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		out.Add(field, lookupMessage(msgs, fe.Field(), fe.Tag()))
	}
	return out
}

// fieldPath turns "PaymentDraft.items[0].amount" into "items.0.amount".
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return indexRegex.ReplaceAllString(ns, ".$1")
}

func lookupMessage(msgs Messages, field, tag string) string {
	if i := strings.Index(field, "["); i >= 0 {
		field = field[:i]
	}
	if m, ok := msgs[field+"."+tag]; ok {
		return m
	}
	if m, ok := msgs[field]; ok {
		return m
	}
	return fallbackMessage
}
