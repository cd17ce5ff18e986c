// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"time"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// Feed implements the merged site activity feed: new entries, comments,
// forum topics and forum posts interleaved by creation time.
type Feed struct{}

func (f *Feed) GetAll(c *api.Context) (any, error) {
	var req struct {
		Limit  int32 `json:"limit"`
		Offset int32 `json:"offset"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	type feedItem struct {
		ID       model.ID  `json:"id"`
		Row      int64     `json:"row"`
		TitleID  model.ID  `json:"title_id"`
		Title    string    `json:"title"`
		Message  string    `json:"message"`
		UserID   model.ID  `json:"user_id"`
		UserName string    `json:"user_name"`
		Type     string    `json:"type"`
		CreateTS time.Time `json:"create_ts"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT c.id, rank() OVER (PARTITION BY mandela_id ORDER BY c.id ASC) AS row, m.id AS title_id,
			(CASE WHEN m.title_mode = 0 THEN m.title ELSE m.what || ': ' || m.before || ' / ' || m.after END) AS title,
			message, c.user_id, u.name AS user_name, c.create_ts, 'comment' AS type
		FROM comments AS c
			JOIN mandels AS m ON m.id = c.mandela_id
			JOIN users AS u ON u.id = c.user_id
		UNION
		SELECT fp.id, rank() OVER (PARTITION BY topic_id ORDER BY fp.id ASC) AS row,
			ft.id AS title_id, ft.name AS title, post AS message, fp.user_id, u.name AS user_name, fp.create_ts, 'post' AS type
		FROM forum_posts AS fp
			JOIN forum_topics AS ft ON ft.id = fp.topic_id
			JOIN users AS u ON u.id = fp.user_id
		UNION
		SELECT 0 AS id, 0 AS row, m.id AS title_id,
			(CASE WHEN m.title_mode = 0 THEN m.title ELSE m.what || ': ' || m.before || ' / ' || m.after END) AS title,
			description AS message, user_id, u.name AS user_name, m.create_ts, 'mandela' AS type
		FROM mandels AS m
			JOIN users AS u ON u.id = m.user_id
		UNION
		SELECT 0 AS id, 0 AS row, ft.id AS title_id, ft.name AS title, '' AS message, user_id, u.name AS user_name, ft.create_ts, 'topic' AS type
		FROM forum_topics AS ft
			JOIN users AS u ON u.id = ft.user_id
		ORDER BY create_ts DESC
		LIMIT $1
		OFFSET $2`,
		req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feeds := []feedItem{}
	for rows.Next() {
		var v feedItem
		if err := rows.Scan(&v.ID, &v.Row, &v.TitleID, &v.Title, &v.Message,
			&v.UserID, &v.UserName, &v.CreateTS, &v.Type); err != nil {
			return nil, err
		}
		feeds = append(feeds, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var totalCount int64
	if err := c.Tx.QueryRow(c.Ctx, `
		SELECT
			(SELECT COUNT(*) FROM mandels) +
			(SELECT COUNT(*) FROM comments) +
			(SELECT COUNT(*) FROM forum_topics) +
			(SELECT COUNT(*) FROM forum_posts)`).Scan(&totalCount); err != nil {
		return nil, err
	}

	return map[string]any{
		"total_count": totalCount,
		"feeds":       feeds,
	}, nil
}
