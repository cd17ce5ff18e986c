// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"fmt"
	"html"
	"time"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// Comment implements the comment.* methods.
type Comment struct {
	deps *Deps
}

func (cm *Comment) Create(c *api.Context) (any, error) {
	var req struct {
		MandelaID model.ID `json:"mandela_id"`
		Message   string   `json:"message" validate:"required"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`INSERT INTO comments (mandela_id, user_id, message) VALUES ($1, $2, $3)`,
		req.MandelaID, c.User.ID, req.Message)
	if err != nil {
		return nil, err
	}

	var (
		titleMode int32
		title     string
		what      string
		before    string
		after     string
	)
	err = c.Tx.QueryRow(c.Ctx,
		`SELECT title_mode, title, what, before, after FROM mandels WHERE id = $1`,
		req.MandelaID).Scan(&titleMode, &title, &what, &before, &after)
	if err != nil {
		return nil, notFound(err)
	}

	message := fmt.Sprintf("Каталог\n%s\n%s\n\n%s",
		html.EscapeString(formatMandelaTitle(titleMode, title, what, before, after)),
		html.EscapeString(c.User.Name),
		html.EscapeString(req.Message))
	cm.deps.Telegram.SendAdminMessage(message)

	return nil, nil
}

func (cm *Comment) GetAll(c *api.Context) (any, error) {
	var req struct {
		MandelaID model.ID `json:"mandela_id"`
		Offset    int32    `json:"offset"`
		Limit     int32    `json:"limit"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	type commentView struct {
		ID           model.ID  `json:"id"`
		UserID       model.ID  `json:"user_id"`
		UserName     string    `json:"user_name"`
		Message      string    `json:"message"`
		LikeCount    int64     `json:"like_count"`
		DislikeCount int64     `json:"dislike_count"`
		Like         *int16    `json:"like"`
		CreateTS     time.Time `json:"create_ts"`
		UpdateTS     time.Time `json:"update_ts"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT c.id, u.id AS user_id, u.name AS user_name, c.message, l.value AS like,
			c.create_ts, c.update_ts,
			(SELECT COUNT(*) FROM likes WHERE comment_id = c.id AND value = 0) AS like_count,
			(SELECT COUNT(*) FROM likes WHERE comment_id = c.id AND value = 1) AS dislike_count
		FROM comments AS c
			JOIN users AS u ON u.id = c.user_id
			LEFT JOIN likes AS l ON l.comment_id = c.id AND l.user_id = $1
		WHERE c.mandela_id = $2
		ORDER BY c.id ASC
		OFFSET $3
		LIMIT $4`,
		c.User.ID, req.MandelaID, req.Offset, req.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []commentView{}
	for rows.Next() {
		var v commentView
		if err := rows.Scan(&v.ID, &v.UserID, &v.UserName, &v.Message, &v.Like,
			&v.CreateTS, &v.UpdateTS, &v.LikeCount, &v.DislikeCount); err != nil {
			return nil, err
		}
		comments = append(comments, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var totalCount int64
	if err := c.Tx.QueryRow(c.Ctx,
		`SELECT COUNT(*) FROM comments WHERE mandela_id = $1`,
		req.MandelaID).Scan(&totalCount); err != nil {
		return nil, err
	}

	return map[string]any{
		"total_count": totalCount,
		"comments":    comments,
	}, nil
}

func (cm *Comment) Update(c *api.Context) (any, error) {
	var req struct {
		ID      model.ID `json:"id"`
		Message string   `json:"message" validate:"required"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE comments SET message = $2, update_ts = $3 WHERE id = $1`,
		req.ID, req.Message, time.Now().UTC())
	return nil, err
}

func (cm *Comment) Delete(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx, `DELETE FROM comments WHERE id = $1`, req.ID)
	return nil, err
}
