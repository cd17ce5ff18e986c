// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/krre/ocean-backend/internal/apierror"
	"github.com/krre/ocean-backend/internal/model"
)

func TestDecode(t *testing.T) {
	type params struct {
		ID model.ID `json:"id"`
	}

	tests := []struct {
		name     string
		raw      string
		wantCode apierror.Code
	}{
		{"valid", `{"id":3}`, 0},
		{"missing params", ``, apierror.ParameterNotFound},
		{"malformed", `{"id":`, apierror.ParseError},
		{"type mismatch", `{"id":"three"}`, apierror.ParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Context{Params: json.RawMessage(tt.raw)}
			var p params
			err := c.Decode(&p)

			if tt.wantCode == 0 {
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				if p.ID != 3 {
					t.Errorf("id = %d, want 3", p.ID)
				}
				return
			}

			var apiErr *apierror.Error
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Fatalf("Decode error = %v, want code %d", err, tt.wantCode)
			}
		})
	}
}

func TestDecodeValidated(t *testing.T) {
	type params struct {
		Title string `json:"title" validate:"required"`
		Page  int    `json:"page" validate:"gte=0"`
	}

	c := &Context{Params: json.RawMessage(`{"title":"x","page":2}`)}
	var p params
	if err := c.DecodeValidated(&p); err != nil {
		t.Fatalf("DecodeValidated failed: %v", err)
	}

	c = &Context{Params: json.RawMessage(`{"page":-1,"title":"x"}`)}
	var negative params
	var apiErr *apierror.Error
	if err := c.DecodeValidated(&negative); !errors.As(err, &apiErr) || apiErr.Code != apierror.InvalidParameter {
		t.Fatalf("DecodeValidated error = %v, want code %d", err, apierror.InvalidParameter)
	}

	c = &Context{Params: json.RawMessage(`{"page":1}`)}
	var missing params
	if err := c.DecodeValidated(&missing); !errors.As(err, &apiErr) || apiErr.Code != apierror.InvalidParameter {
		t.Fatalf("missing required field: error = %v, want code %d", err, apierror.InvalidParameter)
	}
}
