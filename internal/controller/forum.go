// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// Forum implements the forum front page and the recent-activity listing.
type Forum struct{}

// topicActivity is a topic row annotated with its latest post, shared by
// forum.getNew and activity.getAll.
type topicActivity struct {
	ID           model.ID  `json:"id"`
	Name         string    `json:"name"`
	Post         string    `json:"post"`
	PostID       model.ID  `json:"post_id"`
	PostCreateTS time.Time `json:"post_create_ts"`
	UserID       model.ID  `json:"user_id"`
	UserName     string    `json:"user_name"`
	PostCount    int64     `json:"post_count"`
}

func (f *Forum) GetAll(c *api.Context) (any, error) {
	type category struct {
		ID   model.ID `json:"id"`
		Name string   `json:"name"`
	}

	rows, err := c.Tx.Query(c.Ctx,
		`SELECT id, name FROM forum_categories ORDER BY order_index ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []category{}
	for rows.Next() {
		var v category
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, err
		}
		categories = append(categories, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	sections, err := forumSections(c.Ctx, c.Tx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"categories": categories,
		"sections":   sections,
	}, nil
}

func (f *Forum) GetNew(c *api.Context) (any, error) {
	var req struct {
		Offset int32 `json:"offset"`
		Limit  int32 `json:"limit"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	topics, err := newTopics(c.Ctx, c.Tx, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}

	var topicCount int64
	if err := c.Tx.QueryRow(c.Ctx,
		`SELECT COUNT(*) FROM forum_topics WHERE last_post_create_ts IS NOT NULL`).Scan(&topicCount); err != nil {
		return nil, err
	}

	return map[string]any{
		"topic_count": topicCount,
		"topics":      topics,
	}, nil
}

// newTopics lists topics by most recent post, newest first. Topics with
// no posts yet are excluded.
func newTopics(ctx context.Context, tx pgx.Tx, limit, offset int32) ([]topicActivity, error) {
	rows, err := tx.Query(ctx, `
		SELECT ft.id, ft.name, fp.post, fp.id AS post_id, fp.create_ts AS post_create_ts,
			u.id AS user_id, u.name AS user_name,
			(SELECT COUNT(*) FROM forum_posts WHERE topic_id = ft.id) AS post_count
		FROM forum_topics AS ft
			INNER JOIN forum_posts AS fp ON fp.id = ft.last_post_id
			INNER JOIN users AS u ON u.id = fp.user_id
		WHERE last_post_create_ts IS NOT NULL
		ORDER BY last_post_create_ts DESC
		LIMIT $1
		OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	topics := []topicActivity{}
	for rows.Next() {
		var t topicActivity
		if err := rows.Scan(&t.ID, &t.Name, &t.Post, &t.PostID, &t.PostCreateTS,
			&t.UserID, &t.UserName, &t.PostCount); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
