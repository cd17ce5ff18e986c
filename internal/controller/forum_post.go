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

// ForumPost implements the forum.post.* methods. Creating or deleting a
// post keeps the parent topic's last-post columns in step.
type ForumPost struct{}

func (f *ForumPost) GetAll(c *api.Context) (any, error) {
	var req struct {
		TopicID model.ID `json:"topic_id"`
		Offset  int64    `json:"offset"`
		Limit   int64    `json:"limit"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	var topicName string
	err := c.Tx.QueryRow(c.Ctx,
		`SELECT name FROM forum_topics WHERE id = $1`, req.TopicID).Scan(&topicName)
	if err != nil {
		return nil, notFound(err)
	}

	type postView struct {
		ID       model.ID  `json:"id"`
		UserID   model.ID  `json:"user_id"`
		UserName string    `json:"user_name"`
		Post     string    `json:"post"`
		CreateTS time.Time `json:"create_ts"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT fp.id, u.id AS user_id, u.name AS user_name, fp.post, fp.create_ts
		FROM forum_posts AS fp
			INNER JOIN users AS u ON u.id = fp.user_id
		WHERE fp.topic_id = $1
		ORDER BY fp.id ASC
		OFFSET $2
		LIMIT $3`,
		req.TopicID, req.Offset, req.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []postView{}
	for rows.Next() {
		var p postView
		if err := rows.Scan(&p.ID, &p.UserID, &p.UserName, &p.Post, &p.CreateTS); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var postCount int64
	if err := c.Tx.QueryRow(c.Ctx,
		`SELECT COUNT(*) FROM forum_posts WHERE topic_id = $1`,
		req.TopicID).Scan(&postCount); err != nil {
		return nil, err
	}

	return map[string]any{
		"topic_name": topicName,
		"post_count": postCount,
		"posts":      posts,
	}, nil
}

func (f *ForumPost) GetOne(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	var resp struct {
		TopicID model.ID `json:"topic_id"`
		Post    string   `json:"post"`
	}
	err := c.Tx.QueryRow(c.Ctx,
		`SELECT topic_id, post FROM forum_posts WHERE id = $1`,
		req.ID).Scan(&resp.TopicID, &resp.Post)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *ForumPost) Create(c *api.Context) (any, error) {
	var req struct {
		TopicID model.ID `json:"topic_id"`
		Post    string   `json:"post" validate:"required"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	var (
		postID   model.ID
		createTS time.Time
	)
	err := c.Tx.QueryRow(c.Ctx, `
		INSERT INTO forum_posts (topic_id, user_id, post)
		VALUES ($1, $2, $3)
		RETURNING id, create_ts`,
		req.TopicID, c.User.ID, req.Post).Scan(&postID, &createTS)
	if err != nil {
		return nil, err
	}

	_, err = c.Tx.Exec(c.Ctx,
		`UPDATE forum_topics SET last_post_id = $2, last_post_create_ts = $3 WHERE id = $1`,
		req.TopicID, postID, createTS)
	if err != nil {
		return nil, err
	}

	return responseID{ID: postID}, nil
}

func (f *ForumPost) Update(c *api.Context) (any, error) {
	var req struct {
		ID   model.ID `json:"id"`
		Post string   `json:"post" validate:"required"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE forum_posts SET post = $2, update_ts = $3 WHERE id = $1`,
		req.ID, req.Post, time.Now().UTC())
	return nil, err
}

func (f *ForumPost) Delete(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	var topicID model.ID
	err := c.Tx.QueryRow(c.Ctx,
		`SELECT topic_id FROM forum_posts WHERE id = $1`, req.ID).Scan(&topicID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := c.Tx.Exec(c.Ctx, `DELETE FROM forum_posts WHERE id = $1`, req.ID); err != nil {
		return nil, err
	}

	return nil, updateTopicLastPost(c.Ctx, c.Tx, topicID)
}

// updateTopicLastPost repoints the topic at its newest remaining post,
// clearing the columns when none is left.
func updateTopicLastPost(ctx context.Context, tx pgx.Tx, topicID model.ID) error {
	var (
		postID   *model.ID
		createTS *time.Time
	)
	err := tx.QueryRow(ctx, `
		SELECT id, create_ts FROM forum_posts
		WHERE topic_id = $1
		ORDER BY id DESC
		LIMIT 1`,
		topicID).Scan(&postID, &createTS)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE forum_topics SET last_post_id = $2, last_post_create_ts = $3 WHERE id = $1`,
		topicID, postID, createTS)
	return err
}
