// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the single-endpoint RPC surface: request routing,
// the method registry with its role table, and the per-request context
// handed to method handlers.
package api

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/apierror"
	"github.com/krre/ocean-backend/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler executes one RPC method. The returned value becomes the result
// field of the response envelope; nil means an empty (null) result.
type Handler func(*Context) (any, error)

// Context carries everything a handler may touch: the request context,
// the request-scoped transaction, the resolved caller and the raw params.
// Token is the bearer token the caller authenticated with; the account
// methods that rotate tokens need it to update the cache entry.
type Context struct {
	Ctx    context.Context
	Tx     pgx.Tx
	User   model.User
	Token  string
	Params json.RawMessage
}

// Decode unmarshals the request params into dst. A missing params field
// or a type mismatch comes back as a parameter error the envelope can
// carry verbatim.
func (c *Context) Decode(dst any) error {
	if len(c.Params) == 0 {
		return apierror.New(apierror.ParameterNotFound)
	}
	if err := json.Unmarshal(c.Params, dst); err != nil {
		return apierror.WithData(apierror.ParseError, err.Error())
	}
	return nil
}

// DecodeValidated decodes params and then checks dst's validate tags.
func (c *Context) DecodeValidated(dst any) error {
	if err := c.Decode(dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apierror.WithData(apierror.InvalidParameter, verrs[0].Error())
		}
		return apierror.WithData(apierror.InvalidParameter, err.Error())
	}
	return nil
}
