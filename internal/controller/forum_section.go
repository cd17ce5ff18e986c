// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// ForumSection implements the forum.section.* methods.
type ForumSection struct{}

type sectionView struct {
	ID         model.ID `json:"id"`
	CategoryID model.ID `json:"category_id"`
	Name       string   `json:"name"`
	OrderIndex int16    `json:"order_index"`
}

func (f *ForumSection) Create(c *api.Context) (any, error) {
	var req struct {
		CategoryID model.ID `json:"category_id"`
		Name       string   `json:"name" validate:"required"`
		OrderIndex int16    `json:"order_index"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`INSERT INTO forum_sections (category_id, name, order_index) VALUES ($1, $2, $3)`,
		req.CategoryID, req.Name, req.OrderIndex)
	return nil, err
}

func (f *ForumSection) GetAll(c *api.Context) (any, error) {
	sections, err := forumSections(c.Ctx, c.Tx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"sections": sections}, nil
}

func (f *ForumSection) GetOne(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	var resp struct {
		CategoryID model.ID `json:"category_id"`
		Name       string   `json:"name"`
		OrderIndex int16    `json:"order_index"`
	}
	err := c.Tx.QueryRow(c.Ctx,
		`SELECT category_id, name, order_index FROM forum_sections WHERE id = $1`,
		req.ID).Scan(&resp.CategoryID, &resp.Name, &resp.OrderIndex)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *ForumSection) Update(c *api.Context) (any, error) {
	var req struct {
		ID         model.ID `json:"id"`
		Name       string   `json:"name" validate:"required"`
		OrderIndex int16    `json:"order_index"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE forum_sections SET name = $2, order_index = $3, update_ts = $4 WHERE id = $1`,
		req.ID, req.Name, req.OrderIndex, time.Now().UTC())
	return nil, err
}

func (f *ForumSection) Delete(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx, `DELETE FROM forum_sections WHERE id = $1`, req.ID)
	return nil, err
}

func forumSections(ctx context.Context, tx pgx.Tx) ([]sectionView, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, category_id, name, order_index FROM forum_sections ORDER BY order_index ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []sectionView{}
	for rows.Next() {
		var s sectionView
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.OrderIndex); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}
