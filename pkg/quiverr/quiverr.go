// Package quiverr defines the tagged failure type shared by the token,
// expression, and planner layers.
package quiverr

import "fmt"

// Code is a stable error code, usable with errors.Is through
// Sentinel(code) below.
type Code string

const (
	UnexpectedToken          Code = "UnexpectedToken"
	InvalidExpressionType    Code = "InvalidExpressionType"
	InvalidIndexName         Code = "InvalidIndexName"
	InvalidUpdateField       Code = "InvalidUpdateField"
	InvalidDataType          Code = "InvalidDataType"
	InvalidNullCharInString  Code = "InvalidNullCharInString"
)

// Error is the tagged failure type described in spec §6.5.
type Error struct {
	Code     Code
	Message  string
	Position int // byte offset (see token.Token.Position), -1 when not applicable
}

func (e *Error) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s: %s (at %d)", e.Code, e.Message, e.Position)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is allows errors.Is(err, quiverr.Sentinel(quiverr.UnexpectedToken)) to
// work: it matches any *Error target with the same Code, ignoring message
// and position.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds an Error with no position information.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Position: -1}
}

// NewAt builds an Error carrying a character position.
func NewAt(code Code, position int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Position: position}
}

// Sentinel builds a bare Error usable purely as an errors.Is comparison
// target, e.g. quiverr.Sentinel(quiverr.UnexpectedToken).
func Sentinel(code Code) *Error {
	return &Error{Code: code, Position: -1}
}
