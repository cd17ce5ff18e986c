// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/apierror"
	"github.com/krre/ocean-backend/internal/model"
)

// User implements the user.* account methods. They are the only handlers
// that write through to the token cache.
type User struct {
	deps *Deps
}

// Registration happens in two steps: getNextId reserves the next account
// id, create claims it. The reservation lives in the values scratch table
// and expires after this interval.
const nextIDTTL = 10 * time.Minute

const nextIDKey = "user.next_id"

type nextIDReservation struct {
	ID      model.ID  `json:"id"`
	Expires time.Time `json:"expires"`
}

func (u *User) GetNextID(c *api.Context) (any, error) {
	var next model.ID
	if err := c.Tx.QueryRow(c.Ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM users`).Scan(&next); err != nil {
		return nil, err
	}

	reservation, err := json.Marshal(nextIDReservation{
		ID:      next,
		Expires: time.Now().UTC().Add(nextIDTTL),
	})
	if err != nil {
		return nil, err
	}

	_, err = c.Tx.Exec(c.Ctx, `
		INSERT INTO "values" (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		nextIDKey, reservation)
	if err != nil {
		return nil, err
	}

	return responseID{ID: next}, nil
}

func (u *User) Create(c *api.Context) (any, error) {
	var req struct {
		ID     model.ID `json:"id"`
		Name   string   `json:"name"`
		Token  string   `json:"token" validate:"required"`
		Gender int16    `json:"gender"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	var raw []byte
	err := c.Tx.QueryRow(c.Ctx,
		`SELECT value FROM "values" WHERE name = $1`, nextIDKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apierror.New(apierror.NextIDExpired)
		}
		return nil, err
	}

	var reservation nextIDReservation
	if err := json.Unmarshal(raw, &reservation); err != nil {
		return nil, err
	}
	if reservation.ID != req.ID || time.Now().UTC().After(reservation.Expires) {
		return nil, apierror.New(apierror.NextIDExpired)
	}

	_, err = c.Tx.Exec(c.Ctx, `
		INSERT INTO users (id, name, token, group_id, gender)
		VALUES ($1, $2, $3, (SELECT id FROM user_groups WHERE code = $4), $5)`,
		req.ID, req.Name, req.Token, string(model.RoleUser), req.Gender)
	if err != nil {
		return nil, err
	}

	if _, err := c.Tx.Exec(c.Ctx,
		`DELETE FROM "values" WHERE name = $1`, nextIDKey); err != nil {
		return nil, err
	}

	u.deps.Cache.Set(req.Token, model.User{
		ID:   req.ID,
		Name: req.Name,
		Role: model.RoleUser,
	})

	return responseID{ID: req.ID}, nil
}

func (u *User) Delete(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	if _, err := c.Tx.Exec(c.Ctx, `DELETE FROM users WHERE id = $1`, req.ID); err != nil {
		return nil, err
	}

	u.deps.Cache.DeleteByID(req.ID)
	return nil, nil
}

func (u *User) Auth(c *api.Context) (any, error) {
	var req struct {
		ID    model.ID `json:"id"`
		Token string   `json:"token" validate:"required"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	var (
		token string
		name  string
		code  string
	)
	err := c.Tx.QueryRow(c.Ctx, `
		SELECT u.token, u.name, g.code FROM users AS u
		JOIN user_groups AS g ON g.id = u.group_id
		WHERE u.id = $1`, req.ID).Scan(&token, &name, &code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apierror.New(apierror.WrongUserPassword)
		}
		return nil, err
	}
	if token != req.Token {
		return nil, apierror.New(apierror.WrongUserPassword)
	}

	return map[string]any{"name": name, "code": code}, nil
}

// Logout rotates the caller's token to a fresh server-generated one,
// invalidating the presented credential. This is the one method a
// blocked account may still call.
func (u *User) Logout(c *api.Context) (any, error) {
	newToken := uuid.NewString()

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE users SET token = $2, update_ts = $3 WHERE id = $1`,
		c.User.ID, newToken, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	u.deps.Cache.Rotate(c.Token, newToken)
	return map[string]any{"token": newToken}, nil
}

func (u *User) GetOne(c *api.Context) (any, error) {
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	var (
		id       model.ID
		name     string
		code     string
		createTS time.Time
	)
	err := c.Tx.QueryRow(c.Ctx, `
		SELECT u.id, u.name, g.code, u.create_ts FROM users AS u
		JOIN user_groups AS g ON g.id = u.group_id
		WHERE u.token = $1`, req.Token).Scan(&id, &name, &code, &createTS)
	if err != nil {
		return nil, notFound(err)
	}

	return map[string]any{
		"id":        id,
		"name":      name,
		"code":      code,
		"create_ts": createTS,
	}, nil
}

func (u *User) Update(c *api.Context) (any, error) {
	var req struct {
		ID      model.ID `json:"id"`
		Name    string   `json:"name"`
		Code    string   `json:"code"`
		Blocked *bool    `json:"blocked"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	role := model.Role(req.Code)
	if !role.Valid() {
		return nil, apierror.WithData(apierror.InvalidParameter, "unknown group code "+req.Code)
	}

	tag, err := c.Tx.Exec(c.Ctx, `
		UPDATE users
		SET name = $2, group_id = (SELECT id FROM user_groups WHERE code = $3), update_ts = $4
		WHERE id = $1`,
		req.ID, req.Name, req.Code, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, apierror.New(apierror.RecordNotFound)
	}

	if req.Blocked != nil {
		if _, err := c.Tx.Exec(c.Ctx,
			`UPDATE users SET blocked = $2 WHERE id = $1`, req.ID, *req.Blocked); err != nil {
			return nil, err
		}
	}

	u.deps.Cache.UpdateByID(req.ID, func(cached *model.User) {
		cached.Name = req.Name
		cached.Role = role
		if req.Blocked != nil {
			cached.Blocked = *req.Blocked
		}
	})

	return nil, nil
}

func (u *User) UpdateToken(c *api.Context) (any, error) {
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE users SET token = $2, update_ts = $3 WHERE id = $1`,
		c.User.ID, req.Token, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	u.deps.Cache.Rotate(c.Token, req.Token)
	return nil, nil
}

func (u *User) UpdateProfile(c *api.Context) (any, error) {
	var req struct {
		Name   string `json:"name"`
		Gender int16  `json:"gender"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE users SET name = $2, gender = $3, update_ts = $4 WHERE id = $1`,
		c.User.ID, req.Name, req.Gender, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	u.deps.Cache.UpdateByID(c.User.ID, func(cached *model.User) {
		cached.Name = req.Name
	})

	return nil, nil
}
