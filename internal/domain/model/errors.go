package model

import (
	"errors"
	"strings"
)

// Sentinel error kinds. Callers match them with errors.Is.
var (
	ErrValidation            = errors.New("validation failed")
	ErrEncoding              = errors.New("encoding failed")
	ErrRegistryUnavailable   = errors.New("schema registry unavailable")
	ErrSchemaConflict        = errors.New("schema conflict")
	ErrSchemaNotReady        = errors.New("schema not ready")
	ErrPublishFailed         = errors.New("publish failed")
	ErrFetchFailed           = errors.New("fetch failed")
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// Reported by stream backends.
	ErrAlreadyRegistered = errors.New("schema already registered")
	ErrSchemaNotFound    = errors.New("schema not found")
)

// Error carries an operation name, an error kind and an optional cause.
type Error struct {
	Op    string
	Kind  error
	Field string // offending field for validation/encoding errors
	Msg   string
	Err   error

	// Undetermined marks a publish whose durability is unknown.
	Undetermined bool
	RecordID     string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Field != "" {
		b.WriteString(": field ")
		b.WriteString(e.Field)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind builds an error of the given kind with a message.
func NewKind(op string, kind error, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// WrapKind wraps cause with the given kind.
func WrapKind(op string, kind error, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// FieldError reports a problem with a named field.
func FieldError(op string, kind error, field, msg string) *Error {
	return &Error{Op: op, Kind: kind, Field: field, Msg: msg}
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
