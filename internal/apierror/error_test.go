// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package apierror

import (
	"errors"
	"fmt"
	"testing"
)

func TestCanonicalMessages(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{ParseError, "Parse error"},
		{ControllerNotFound, "Controller not found"},
		{MethodNotFound, "Method not found"},
		{ParameterNotFound, "Parameter not found"},
		{InternalServerError, "Internal server error"},
		{InvalidParameter, "Invalid parameter"},
		{RecordNotFound, "Record not found"},
		{WrongUserPassword, "Wrong user password"},
		{NextIDExpired, "Next id expired"},
		{AccountBlocked, "Account blocked"},
		{AccessDenied, "Access denied"},
	}

	for _, tt := range tests {
		if got := New(tt.code).Message; got != tt.want {
			t.Errorf("New(%d).Message = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestWithData(t *testing.T) {
	err := WithData(MethodNotFound, "nope.none")
	if err.Code != MethodNotFound {
		t.Errorf("Code = %d, want %d", err.Code, MethodNotFound)
	}
	if err.Data != "nope.none" {
		t.Errorf("Data = %q, want %q", err.Data, "nope.none")
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	// The router unwraps handler failures with errors.As; a typed error must
	// survive fmt.Errorf %w chains.
	wrapped := fmt.Errorf("handler failed: %w", New(RecordNotFound))

	var apiErr *Error
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As failed to find *Error in wrapped chain")
	}
	if apiErr.Code != RecordNotFound {
		t.Errorf("Code = %d, want %d", apiErr.Code, RecordNotFound)
	}

	plain := errors.New("connection reset")
	if errors.As(plain, &apiErr) {
		t.Error("errors.As matched a plain error; typed and untyped failures must stay distinguishable")
	}
}

func TestErrorString(t *testing.T) {
	got := New(AccessDenied).Error()
	want := "api error: code: 103, message: Access denied"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	got = WithData(ParseError, "unexpected EOF").Error()
	want = "api error: code: 1, message: Parse error, data: unexpected EOF"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
