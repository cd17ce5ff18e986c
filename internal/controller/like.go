// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"time"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// Like implements the like.* methods. A like always targets either a
// comment or a forum post, never both.
type Like struct{}

func (l *Like) Create(c *api.Context) (any, error) {
	var req struct {
		CommentID *model.ID `json:"comment_id"`
		PostID    *model.ID `json:"post_id"`
		Action    int16     `json:"action"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`INSERT INTO likes (user_id, comment_id, post_id, value) VALUES ($1, $2, $3, $4)`,
		c.User.ID, req.CommentID, req.PostID, req.Action)
	return nil, err
}

// Delete removes the caller's like from the comment or post named in the
// request. The ids are matched independently so a null id cannot mask the
// other one.
func (l *Like) Delete(c *api.Context) (any, error) {
	var req struct {
		CommentID *model.ID `json:"comment_id"`
		PostID    *model.ID `json:"post_id"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	if req.CommentID != nil {
		_, err := c.Tx.Exec(c.Ctx,
			`DELETE FROM likes WHERE comment_id = $1 AND user_id = $2`,
			*req.CommentID, c.User.ID)
		if err != nil {
			return nil, err
		}
	}

	if req.PostID != nil {
		_, err := c.Tx.Exec(c.Ctx,
			`DELETE FROM likes WHERE post_id = $1 AND user_id = $2`,
			*req.PostID, c.User.ID)
		if err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func (l *Like) GetUsers(c *api.Context) (any, error) {
	var req struct {
		CommentID *model.ID `json:"comment_id"`
		PostID    *model.ID `json:"post_id"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	type likeUser struct {
		ID       model.ID  `json:"id"`
		Name     string    `json:"name"`
		Value    int16     `json:"value"`
		CreateTS time.Time `json:"create_ts"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT u.id, u.name, l.value, l.create_ts
		FROM likes AS l
			JOIN users AS u ON u.id = l.user_id
		WHERE (l.comment_id = $1 AND $1 IS NOT NULL)
			OR (l.post_id = $2 AND $2 IS NOT NULL)
		ORDER BY l.value ASC, u.name ASC`,
		req.CommentID, req.PostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []likeUser{}
	for rows.Next() {
		var u likeUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Value, &u.CreateTS); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
