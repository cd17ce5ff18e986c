// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/apierror"
	"github.com/krre/ocean-backend/internal/logging"
	"github.com/krre/ocean-backend/internal/model"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	lastTx *fakeTx
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	db.lastTx = &fakeTx{}
	return db.lastTx, nil
}

type fakeCache map[string]model.User

func (c fakeCache) Get(token string) (model.User, bool) {
	u, ok := c[token]
	return u, ok
}

type envelope struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int32  `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error"`
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("ping", model.RoleAnonym, func(*Context) (any, error) {
		return nil, nil
	})
	reg.Register("user.logout", model.RoleUser, func(*Context) (any, error) {
		return nil, nil
	})
	reg.Register("mandela.delete", model.RoleAdmin, func(*Context) (any, error) {
		return nil, nil
	})
	reg.Register("mandela.getOne", model.RoleAnonym, func(c *Context) (any, error) {
		var req struct {
			ID model.ID `json:"id"`
		}
		if err := c.Decode(&req); err != nil {
			return nil, err
		}
		if req.ID != 1 {
			return nil, apierror.New(apierror.RecordNotFound)
		}
		return map[string]any{"id": req.ID, "title": "first"}, nil
	})
	reg.Register("boom", model.RoleAnonym, func(*Context) (any, error) {
		return nil, errors.New("connection refused")
	})
	reg.RegisterAnonymCreate("mandela.create", func(*Context) (any, error) {
		return map[string]any{"id": 10}, nil
	})
	return reg
}

func testCache() fakeCache {
	return fakeCache{
		"admin-token":   {ID: 1, Name: "root", Role: model.RoleAdmin},
		"user-token":    {ID: 2, Name: "alice", Role: model.RoleUser},
		"anonym-token":  {ID: 3, Name: "", Role: model.RoleAnonym},
		"blocked-token": {ID: 4, Name: "mallory", Role: model.RoleUser, Blocked: true},
	}
}

func call(t *testing.T, anonymAllowed bool, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rt := NewRouter(&fakeDB{}, testCache(), testRegistry(), nil, anonymAllowed)
	h := NewHTTPHandler(rt, 0)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", w.Code, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	return env
}

func TestBadRequestAnswers(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
	}{
		{"wrong path", http.MethodPost, "/other?token=user-token"},
		{"wrong verb", http.MethodGet, "/api?token=user-token"},
		{"missing token", http.MethodPost, "/api"},
		{"empty token", http.MethodPost, "/api?token="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewRouter(&fakeDB{}, testCache(), testRegistry(), nil, false)
			h := NewHTTPHandler(rt, 0)
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(`{"method":"ping"}`))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if w.Body.String() != "Bad request" {
				t.Errorf("body = %q, want %q", w.Body.String(), "Bad request")
			}
		})
	}
}

func TestCORSHeaderOnEveryResponse(t *testing.T) {
	// Browsers need the header on actual responses too, not only on
	// preflights, and clients do not always send an Origin.
	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{"success", http.MethodPost, "/api?token=user-token", http.StatusOK},
		{"missing token", http.MethodPost, "/api", http.StatusBadRequest},
		{"wrong verb", http.MethodGet, "/api?token=user-token", http.StatusBadRequest},
		{"unknown token", http.MethodPost, "/api?token=nobody", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewRouter(&fakeDB{}, testCache(), testRegistry(), nil, false)
			h := NewHTTPHandler(rt, 0)
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(`{"method":"ping"}`))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
			}
		})
	}
}

func TestRequestLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Output: &buf})
	defer logging.Init(logging.Config{})

	var handlerID string
	reg := NewRegistry()
	reg.Register("ping", model.RoleAnonym, func(c *Context) (any, error) {
		handlerID = logging.RequestIDFromContext(c.Ctx)
		return nil, nil
	})
	rt := NewRouter(&fakeDB{}, testCache(), reg, nil, false)

	req := httptest.NewRequest(http.MethodPost, "/api?token=user-token",
		strings.NewReader(`{"method":"ping"}`))
	rt.ServeHTTP(httptest.NewRecorder(), req)

	ids := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry struct {
			Message   string `json:"message"`
			RequestID string `json:"request_id"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not valid JSON: %v", err)
		}
		ids[entry.Message] = entry.RequestID
	}

	if ids["[REQUEST]"] == "" {
		t.Fatal("[REQUEST] line has no request id")
	}
	if ids["[REQUEST]"] != ids["[RESPONSE]"] {
		t.Errorf("request id mismatch: %q vs %q", ids["[REQUEST]"], ids["[RESPONSE]"])
	}
	if handlerID != ids["[REQUEST]"] {
		t.Errorf("handler context id = %q, want %q", handlerID, ids["[REQUEST]"])
	}
}

func TestUnauthorizedUnknownToken(t *testing.T) {
	w := call(t, false, "/api?token=nobody", `{"method":"ping"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w.Body.String() != "Unauthorized" {
		t.Errorf("body = %q, want %q", w.Body.String(), "Unauthorized")
	}
}

func TestParseErrorEnvelope(t *testing.T) {
	w := call(t, false, "/api?token=user-token", `{not json`)
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != int32(apierror.ParseError) {
		t.Fatalf("error = %+v, want code %d", env.Error, apierror.ParseError)
	}
	if env.Error.Data == "" {
		t.Error("parse error carries no diagnostic data")
	}
}

func TestMethodNotFound(t *testing.T) {
	w := call(t, false, "/api?token=user-token", `{"id":"1","method":"no.such"}`)
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != int32(apierror.MethodNotFound) {
		t.Fatalf("error = %+v, want code %d", env.Error, apierror.MethodNotFound)
	}
	if env.Error.Data != "no.such" {
		t.Errorf("error data = %q, want method name", env.Error.Data)
	}
}

func TestSuccessEnvelopeEchoesIDAndNullResult(t *testing.T) {
	w := call(t, false, "/api?token=user-token", `{"id":"9","method":"ping"}`)
	want := `{"id":"9","method":"ping","result":null}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestAbsentIDEchoesEmpty(t *testing.T) {
	w := call(t, false, "/api?token=user-token", `{"method":"ping"}`)
	env := decodeEnvelope(t, w)
	if env.ID != "" {
		t.Errorf("id = %q, want empty", env.ID)
	}
	if env.Method != "ping" {
		t.Errorf("method = %q, want ping", env.Method)
	}
}

func TestAccessDenied(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		method string
		denied bool
	}{
		{"anonym denied admin method", "anonym-token", "mandela.delete", true},
		{"user denied admin method", "user-token", "mandela.delete", true},
		{"admin allowed", "admin-token", "mandela.delete", false},
		{"anonym allowed open method", "anonym-token", "ping", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, false, "/api?token="+tt.token, `{"method":"`+tt.method+`"}`)
			env := decodeEnvelope(t, w)
			if tt.denied {
				if env.Error == nil || env.Error.Code != int32(apierror.AccessDenied) {
					t.Fatalf("error = %+v, want code %d", env.Error, apierror.AccessDenied)
				}
			} else if env.Error != nil {
				t.Fatalf("unexpected error %+v", env.Error)
			}
		})
	}
}

func TestAnonymCreateFollowsServerFlag(t *testing.T) {
	w := call(t, false, "/api?token=anonym-token", `{"method":"mandela.create"}`)
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != int32(apierror.AccessDenied) {
		t.Fatalf("flag off: error = %+v, want access denied", env.Error)
	}

	w = call(t, true, "/api?token=anonym-token", `{"method":"mandela.create"}`)
	env = decodeEnvelope(t, w)
	if env.Error != nil {
		t.Fatalf("flag on: unexpected error %+v", env.Error)
	}
}

func TestBlockedAccount(t *testing.T) {
	w := call(t, false, "/api?token=blocked-token", `{"method":"ping"}`)
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != int32(apierror.AccountBlocked) {
		t.Fatalf("error = %+v, want code %d", env.Error, apierror.AccountBlocked)
	}

	// The one escape hatch: a blocked user may still log out.
	w = call(t, false, "/api?token=blocked-token", `{"method":"user.logout"}`)
	env = decodeEnvelope(t, w)
	if env.Error != nil {
		t.Fatalf("user.logout: unexpected error %+v", env.Error)
	}
}

func TestHandlerAPIErrorKeepsCanonicalMessage(t *testing.T) {
	w := call(t, false, "/api?token=user-token", `{"method":"mandela.getOne","params":{"id":2}}`)
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != int32(apierror.RecordNotFound) {
		t.Fatalf("error = %+v, want code %d", env.Error, apierror.RecordNotFound)
	}
	if env.Error.Message != "Record not found" {
		t.Errorf("message = %q, want canonical", env.Error.Message)
	}
}

func TestInternalErrorDoesNotLeakDiagnostic(t *testing.T) {
	w := call(t, false, "/api?token=user-token", `{"method":"boom"}`)
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != int32(apierror.InternalServerError) {
		t.Fatalf("error = %+v, want code %d", env.Error, apierror.InternalServerError)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Error("internal diagnostic leaked to the client")
	}
}

func TestTransactionLifecycle(t *testing.T) {
	db := &fakeDB{}
	rt := NewRouter(db, testCache(), testRegistry(), nil, false)

	req := httptest.NewRequest(http.MethodPost, "/api?token=user-token",
		strings.NewReader(`{"method":"mandela.getOne","params":{"id":1}}`))
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if db.lastTx == nil || !db.lastTx.committed {
		t.Error("successful handler did not commit")
	}

	req = httptest.NewRequest(http.MethodPost, "/api?token=user-token",
		strings.NewReader(`{"method":"mandela.getOne","params":{"id":2}}`))
	rt.ServeHTTP(httptest.NewRecorder(), req)

	if db.lastTx == nil || db.lastTx.committed || !db.lastTx.rolledBack {
		t.Error("failing handler did not roll back")
	}
}

func TestResultPayload(t *testing.T) {
	w := call(t, false, "/api?token=user-token", `{"id":"5","method":"mandela.getOne","params":{"id":1}}`)
	env := decodeEnvelope(t, w)
	if env.Error != nil {
		t.Fatalf("unexpected error %+v", env.Error)
	}
	var result struct {
		ID    model.ID `json:"id"`
		Title string   `json:"title"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.ID != 1 || result.Title != "first" {
		t.Errorf("result = %+v", result)
	}
}
