package services

import (
	"errors"
	"strings"

	"rtadmin/internal/core"
	"rtadmin/internal/rtapi"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ErrRefetch marks a mutation that was saved but whose follow-up read
// failed. The caller should treat the write as done and reload.
var ErrRefetch = errors.New("saved, but reloading failed")

// ErrNotFound aliases rtapi.ErrNotFound for callers of this package.
var ErrNotFound = rtapi.ErrNotFound

// ValidationError carries field-level messages, local or from the backend.
type ValidationError struct {
	Fields core.FieldErrors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields.Fields(), ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FieldErrorsOf returns the field messages carried by err, if any.
func FieldErrorsOf(err error) core.FieldErrors {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// remoteAliases renames backend fields to the form inputs that show them.
var remoteAliases = map[string]string{
	"ktp_photo": "ktp_photo_file",
}

func invalid(fields core.FieldErrors) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// remote turns backend field errors into a ValidationError and passes any
// other error through unchanged.
func remote(err error) error {
	if err == nil {
		return nil
	}
	remoteFields := rtapi.FieldErrorsOf(err)
	if remoteFields == nil {
		return err
	}
	fields := core.FieldErrors{}
	fields.Merge(remoteFields)
	for from, to := range remoteAliases {
		if msg, ok := fields[from]; ok {
			delete(fields, from)
			fields[to] = msg
		}
	}
	return &ValidationError{Fields: fields}
}
