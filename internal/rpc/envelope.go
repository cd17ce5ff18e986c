// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rpc defines the JSON envelope framing every request and response
// at Ocean's single /api endpoint.
package rpc

import (
	"github.com/goccy/go-json"

	"github.com/krre/ocean-backend/internal/apierror"
)

// Request is the decoded body of one API call.
//
// ID is echoed verbatim into the response; an absent ID echoes as "".
// Params is kept raw so each handler can decode its own shape.
type Request struct {
	ID     *string         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Error is the wire form of an application error.
type Error struct {
	Code    apierror.Code `json:"code"`
	Message string        `json:"message"`
	Data    string        `json:"data,omitempty"`
}

// FromAPIError converts a typed application error to its wire form.
func FromAPIError(err *apierror.Error) *Error {
	return &Error{Code: err.Code, Message: err.Message, Data: err.Data}
}

// Response is the envelope written back for every decoded request.
// Exactly one of Result and Err is encoded: the error object when Err is
// set, otherwise the result slot, emitted even when the handler produced
// no payload so clients always find the key (as JSON null).
type Response struct {
	ID     string
	Method string
	Result any
	Err    *Error
}

// SetError replaces the response payload with a typed error.
func (r *Response) SetError(err *apierror.Error) {
	r.Result = nil
	r.Err = FromAPIError(err)
}

// MarshalJSON encodes the one-of invariant: never both result and error,
// never neither.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			ID     string `json:"id"`
			Method string `json:"method"`
			Error  *Error `json:"error"`
		}{r.ID, r.Method, r.Err})
	}
	return json.Marshal(struct {
		ID     string `json:"id"`
		Method string `json:"method"`
		Result any    `json:"result"`
	}{r.ID, r.Method, r.Result})
}
