// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/apierror"
	"github.com/krre/ocean-backend/internal/authz"
	"github.com/krre/ocean-backend/internal/logging"
	"github.com/krre/ocean-backend/internal/metrics"
	"github.com/krre/ocean-backend/internal/model"
	"github.com/krre/ocean-backend/internal/rpc"
)

// TxBeginner opens a request-scoped transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TokenResolver resolves an API token to a user snapshot.
type TokenResolver interface {
	Get(token string) (model.User, bool)
}

// Router serves the /api endpoint. Outside of transport failures it
// answers 400 to malformed requests, 401 to unknown tokens and 200 with
// an envelope for everything else.
type Router struct {
	db            TxBeginner
	cache         TokenResolver
	registry      *Registry
	metrics       *metrics.Metrics
	anonymAllowed bool
}

func NewRouter(db TxBeginner, cache TokenResolver, registry *Registry, m *metrics.Metrics, anonymAllowed bool) *Router {
	return &Router{
		db:            db,
		cache:         cache,
		registry:      registry,
		metrics:       m,
		anonymAllowed: anonymAllowed,
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The cors middleware only echoes the header back to requests that
	// carry an Origin. Every /api answer must have it, Origin or not.
	w.Header().Set("Access-Control-Allow-Origin", "*")

	token := r.URL.Query().Get("token")
	if token == "" {
		BadRequest(w, r)
		return
	}

	user, ok := rt.cache.Get(token)
	if !ok {
		logging.Info().Str("token", token).Msg("Unauthorized")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "Unauthorized")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r)
		return
	}

	ip := clientIP(r)
	requestID := logging.NewRequestID()
	logging.Info().
		Str("request_id", requestID).
		Str("ip", ip).
		Int32("user_id", user.ID).
		Str("user", user.Name).
		RawJSON("body", sanitizeBody(body)).
		Msg("[REQUEST]")

	var resp *rpc.Response
	var req rpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		resp = &rpc.Response{}
		resp.SetError(apierror.WithData(apierror.ParseError, err.Error()))
	} else {
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		resp = rt.exec(ctx, user, token, &req)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	logging.Info().
		Str("request_id", requestID).
		Str("ip", ip).
		Int32("user_id", user.ID).
		Str("user", user.Name).
		RawJSON("body", raw).
		Msg("[RESPONSE]")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// exec runs the registry and authorization pipeline for one request and
// always produces an envelope.
func (rt *Router) exec(ctx context.Context, user model.User, token string, req *rpc.Request) *rpc.Response {
	resp := &rpc.Response{Method: req.Method}
	if req.ID != nil {
		resp.ID = *req.ID
	}

	start := time.Now()
	outcome := "ok"
	defer func() {
		rt.metrics.ObserveRequest(req.Method, outcome, time.Since(start))
	}()

	spec, found := rt.registry.Lookup(req.Method)

	// Authorization is checked before method existence, so probing for
	// method names does not bypass the role table. Unregistered names
	// carry the anonym bar, matching the method-not-found answer below.
	required := model.RoleAnonym
	if found {
		required = authz.Required(spec.Role, spec.AnonymCreate, rt.anonymAllowed)
	}
	if !authz.Allowed(user.Role, required) {
		outcome = "denied"
		resp.SetError(apierror.New(apierror.AccessDenied))
		return resp
	}

	if user.Blocked && req.Method != "user.logout" {
		outcome = "blocked"
		resp.SetError(apierror.New(apierror.AccountBlocked))
		return resp
	}

	if !found {
		outcome = "not_found"
		resp.SetError(apierror.WithData(apierror.MethodNotFound, req.Method))
		return resp
	}

	result, err := rt.dispatch(ctx, user, token, req.Params, spec.Handler)
	if err != nil {
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) {
			outcome = "error"
			resp.SetError(apiErr)
		} else {
			outcome = "internal_error"
			logging.Error().Err(err).Str("method", req.Method).Msg("Method failed")
			resp.SetError(apierror.New(apierror.InternalServerError))
		}
		return resp
	}

	resp.Result = result
	return resp
}

// dispatch runs the handler inside a transaction. The transaction commits
// only when the handler succeeds.
func (rt *Router) dispatch(ctx context.Context, user model.User, token string, params json.RawMessage, h Handler) (any, error) {
	tx, err := rt.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	c := &Context{
		Ctx:    ctx,
		Tx:     tx,
		User:   user,
		Token:  token,
		Params: params,
	}

	result, err := h(c)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// BadRequest answers every request that does not match POST /api?token=...
func BadRequest(w http.ResponseWriter, r *http.Request) {
	logging.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Bad request")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusBadRequest)
	io.WriteString(w, "Bad request")
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from the forwarding
	// headers before the router runs.
	return r.RemoteAddr
}

// sanitizeBody keeps request logging well-formed when the body is not
// valid JSON.
func sanitizeBody(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return []byte(`""`)
	}
	return quoted
}
