// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apierror defines Ocean's closed set of application error codes.
//
// Every error that may reach a client is an *Error carrying a stable numeric
// code and its canonical message. Handlers return an *Error when the failure
// is part of the API contract (record not found, wrong password, ...) and a
// plain wrapped error otherwise; the router distinguishes the two with
// errors.As and maps everything unrecognized to InternalServerError without
// leaking the diagnostic.
package apierror

import "fmt"

// Code is a stable numeric error code from the tables below.
type Code int32

// Common errors (1..99).
const (
	ParseError          Code = 1
	ControllerNotFound  Code = 2
	MethodNotFound      Code = 3
	ParameterNotFound   Code = 4
	InternalServerError Code = 5
	InvalidParameter    Code = 6
	RecordNotFound      Code = 7
)

// User errors (100..199).
const (
	WrongUserPassword Code = 100
	NextIDExpired     Code = 101
	AccountBlocked    Code = 102
	AccessDenied      Code = 103
)

var messages = map[Code]string{
	ParseError:          "Parse error",
	ControllerNotFound:  "Controller not found",
	MethodNotFound:      "Method not found",
	ParameterNotFound:   "Parameter not found",
	InternalServerError: "Internal server error",
	InvalidParameter:    "Invalid parameter",
	RecordNotFound:      "Record not found",
	WrongUserPassword:   "Wrong user password",
	NextIDExpired:       "Next id expired",
	AccountBlocked:      "Account blocked",
	AccessDenied:        "Access denied",
}

// Message returns the canonical message for code, or an empty string for an
// unknown code. Codes outside the tables above never leave the process.
func Message(code Code) string {
	return messages[code]
}

// Error is a typed application error. Data is optional free-form context:
// ParseError quotes the parser diagnostic, MethodNotFound quotes the
// offending method name.
type Error struct {
	Code    Code
	Message string
	Data    string
}

// New returns the canonical error for code.
func New(code Code) *Error {
	return &Error{Code: code, Message: Message(code)}
}

// WithData returns the canonical error for code with free-form context.
func WithData(code Code, data string) *Error {
	return &Error{Code: code, Message: Message(code), Data: data}
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("api error: code: %d, message: %s, data: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("api error: code: %d, message: %s", e.Code, e.Message)
}
