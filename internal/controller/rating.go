// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// Rating implements the rating.* leaderboards.
type Rating struct{}

func (r *Rating) GetMandels(c *api.Context) (any, error) {
	var req struct {
		Vote   int16 `json:"vote"`
		Limit  int32 `json:"limit"`
		Offset int32 `json:"offset"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	type ratedMandela struct {
		ID        model.ID `json:"id"`
		TitleMode int32    `json:"title_mode"`
		Title     string   `json:"title"`
		What      string   `json:"what"`
		Before    string   `json:"before"`
		After     string   `json:"after"`
		Count     int64    `json:"count"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT m.id, title_mode, title, what, before, after, COUNT(*)
		FROM mandels AS m
			LEFT JOIN votes AS v ON v.mandela_id = m.id
		WHERE vote = $1
		GROUP BY m.id
		ORDER BY count DESC, m.id ASC
		LIMIT $2
		OFFSET $3`,
		req.Vote, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mandels := []ratedMandela{}
	for rows.Next() {
		var m ratedMandela
		if err := rows.Scan(&m.ID, &m.TitleMode, &m.Title, &m.What, &m.Before, &m.After, &m.Count); err != nil {
			return nil, err
		}
		mandels = append(mandels, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var totalCount int64
	if err := c.Tx.QueryRow(c.Ctx,
		`SELECT COUNT(DISTINCT mandela_id) FROM votes WHERE vote = $1`,
		req.Vote).Scan(&totalCount); err != nil {
		return nil, err
	}

	return map[string]any{
		"total_count": totalCount,
		"mandels":     mandels,
	}, nil
}

func (r *Rating) GetUsers(c *api.Context) (any, error) {
	var req struct {
		Limit  int32 `json:"limit"`
		Offset int32 `json:"offset"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	type ratedUser struct {
		ID    model.ID `json:"id"`
		Name  string   `json:"name"`
		Count int64    `json:"count"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT u.name, u.id, COUNT(m.*)
		FROM users AS u
			INNER JOIN mandels AS m ON m.user_id = u.id
		GROUP BY u.id
		ORDER BY count DESC, u.id ASC
		LIMIT $1
		OFFSET $2`,
		req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []ratedUser{}
	for rows.Next() {
		var u ratedUser
		if err := rows.Scan(&u.Name, &u.ID, &u.Count); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var userCount int64
	if err := c.Tx.QueryRow(c.Ctx, `
		SELECT COUNT(*) FROM
			(SELECT COUNT(u.id) FROM users AS u
			INNER JOIN mandels AS m ON m.user_id = u.id
			GROUP BY u.id) AS user_count`).Scan(&userCount); err != nil {
		return nil, err
	}

	return map[string]any{
		"user_count": userCount,
		"users":      users,
	}, nil
}
