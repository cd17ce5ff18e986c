// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// ForumCategory implements the forum.category.* methods.
type ForumCategory struct{}

func (f *ForumCategory) Create(c *api.Context) (any, error) {
	var req struct {
		Name       string `json:"name" validate:"required"`
		OrderIndex int16  `json:"order_index"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`INSERT INTO forum_categories (name, order_index) VALUES ($1, $2)`,
		req.Name, req.OrderIndex)
	return nil, err
}

func (f *ForumCategory) GetOne(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	var resp struct {
		Name       string `json:"name"`
		OrderIndex int16  `json:"order_index"`
	}
	err := c.Tx.QueryRow(c.Ctx,
		`SELECT name, order_index FROM forum_categories WHERE id = $1`,
		req.ID).Scan(&resp.Name, &resp.OrderIndex)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *ForumCategory) Update(c *api.Context) (any, error) {
	var req struct {
		ID         model.ID `json:"id"`
		Name       string   `json:"name" validate:"required"`
		OrderIndex int16    `json:"order_index"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE forum_categories SET name = $2, order_index = $3, update_ts = $4 WHERE id = $1`,
		req.ID, req.Name, req.OrderIndex, time.Now().UTC())
	return nil, err
}

func (f *ForumCategory) Delete(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx, `DELETE FROM forum_categories WHERE id = $1`, req.ID)
	return nil, err
}
