package core

import (
	"errors"
	"fmt"
)

// Stable error codes for the engine's failure taxonomy. Handlers and audit
// entries rely on these strings staying constant.
const (
	CodeValidation  = "VALIDATION"
	CodePermission  = "PERMISSION"
	CodeConflict    = "CONFLICT"
	CodeNotFound    = "NOT_FOUND"
	CodeState       = "STATE"
	CodeUpstream    = "UPSTREAM"
	CodePersistence = "PERSISTENCE"
)

// Error is a coded error carrying optional structured details.
type Error struct {
	Err     error          `json:"-"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// NewError wraps err with a stable code and optional details.
func NewError(err error, code string, details map[string]any) *Error {
	return &Error{Err: err, Code: code, Details: details}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasCode reports whether err carries the given engine error code.
func HasCode(err error, code string) bool {
	var coded *Error
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == code
}
