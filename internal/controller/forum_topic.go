// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/apierror"
	"github.com/krre/ocean-backend/internal/model"
)

// ForumTopic implements the forum.topic.* methods, including polls.
type ForumTopic struct{}

type pollAnswer struct {
	ID     model.ID `json:"id"`
	Answer string   `json:"answer"`
	Count  int64    `json:"count"`
	Voted  bool     `json:"voted"`
}

func (f *ForumTopic) GetAll(c *api.Context) (any, error) {
	var req struct {
		SectionID model.ID `json:"section_id"`
		Offset    int64    `json:"offset"`
		Limit     int64    `json:"limit"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	var (
		categoryID   model.ID
		categoryName string
		sectionName  string
	)
	err := c.Tx.QueryRow(c.Ctx, `
		SELECT fc.id, fc.name, fs.name
		FROM forum_sections AS fs
			INNER JOIN forum_categories AS fc ON fc.id = fs.category_id
		WHERE fs.id = $1`,
		req.SectionID).Scan(&categoryID, &categoryName, &sectionName)
	if err != nil {
		return nil, notFound(err)
	}

	type topicView struct {
		ID               model.ID   `json:"id"`
		UserID           model.ID   `json:"user_id"`
		UserName         string     `json:"user_name"`
		Name             string     `json:"name"`
		Type             int16      `json:"type"`
		CreateTS         time.Time  `json:"create_ts"`
		LastPostID       *model.ID  `json:"last_post_id"`
		LastPostCreateTS *time.Time `json:"last_post_create_ts"`
		PostCount        int64      `json:"post_count"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT ft.id, ft.user_id, ft.last_post_id, ft.last_post_create_ts, ft.name, ft.type,
			ft.create_ts, u.name AS user_name,
			(SELECT COUNT(*) FROM forum_posts WHERE topic_id = ft.id) AS post_count
		FROM forum_topics AS ft
			JOIN users AS u ON u.id = ft.user_id
		WHERE section_id = $1
		ORDER BY ft.last_post_create_ts DESC
		OFFSET $2
		LIMIT $3`,
		req.SectionID, req.Offset, req.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	topics := []topicView{}
	for rows.Next() {
		var t topicView
		if err := rows.Scan(&t.ID, &t.UserID, &t.LastPostID, &t.LastPostCreateTS,
			&t.Name, &t.Type, &t.CreateTS, &t.UserName, &t.PostCount); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var topicCount int64
	if err := c.Tx.QueryRow(c.Ctx,
		`SELECT COUNT(*) FROM forum_topics WHERE section_id = $1`,
		req.SectionID).Scan(&topicCount); err != nil {
		return nil, err
	}

	return map[string]any{
		"category_id":   categoryID,
		"category_name": categoryName,
		"section_name":  sectionName,
		"topic_count":   topicCount,
		"topics":        topics,
	}, nil
}

func (f *ForumTopic) GetOne(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	var resp struct {
		UserID    model.ID `json:"user_id"`
		SectionID model.ID `json:"section_id"`
		Name      string   `json:"name"`
	}
	err := c.Tx.QueryRow(c.Ctx,
		`SELECT user_id, section_id, name FROM forum_topics WHERE id = $1`,
		req.ID).Scan(&resp.UserID, &resp.SectionID, &resp.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *ForumTopic) Create(c *api.Context) (any, error) {
	var req struct {
		SectionID           model.ID `json:"section_id"`
		Name                string   `json:"name" validate:"required"`
		Type                int16    `json:"type"`
		PollAnswers         []string `json:"poll_answers"`
		PollAnswerSelection *int16   `json:"poll_answer_selection"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}
	if req.Type == model.PollTopicType && len(req.PollAnswers) == 0 {
		return nil, apierror.WithData(apierror.InvalidParameter, "poll_answers")
	}

	var topicID model.ID
	err := c.Tx.QueryRow(c.Ctx, `
		INSERT INTO forum_topics (section_id, user_id, name, type, poll_selection_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		req.SectionID, c.User.ID, req.Name, req.Type, req.PollAnswerSelection).Scan(&topicID)
	if err != nil {
		return nil, err
	}

	if req.Type == model.PollTopicType {
		for _, answer := range req.PollAnswers {
			_, err := c.Tx.Exec(c.Ctx,
				`INSERT INTO forum_poll_answers (topic_id, answer) VALUES ($1, $2)`,
				topicID, answer)
			if err != nil {
				return nil, err
			}
		}
	}

	return responseID{ID: topicID}, nil
}

func (f *ForumTopic) Update(c *api.Context) (any, error) {
	var req struct {
		ID   model.ID `json:"id"`
		Name string   `json:"name" validate:"required"`
	}
	if err := c.DecodeValidated(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE forum_topics SET name = $2, update_ts = $3 WHERE id = $1`,
		req.ID, req.Name, time.Now().UTC())
	return nil, err
}

func (f *ForumTopic) Delete(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx, `DELETE FROM forum_topics WHERE id = $1`, req.ID)
	return nil, err
}

// Vote replaces the caller's poll ballot. Multi-answer polls send several
// answer ids at once.
func (f *ForumTopic) Vote(c *api.Context) (any, error) {
	var req struct {
		ID    model.ID   `json:"id"`
		Votes []model.ID `json:"votes"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`DELETE FROM forum_poll_votes WHERE topic_id = $1 AND user_id = $2`,
		req.ID, c.User.ID)
	if err != nil {
		return nil, err
	}

	for _, answerID := range req.Votes {
		_, err := c.Tx.Exec(c.Ctx,
			`INSERT INTO forum_poll_votes (topic_id, answer_id, user_id) VALUES ($1, $2, $3)`,
			req.ID, answerID, c.User.ID)
		if err != nil {
			return nil, err
		}
	}

	poll, err := topicPoll(c.Ctx, c.Tx, req.ID, c.User.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"poll": poll}, nil
}

func (f *ForumTopic) GetVoteUsers(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	type voteUser struct {
		ID       model.ID  `json:"id"`
		Name     string    `json:"name"`
		AnswerID model.ID  `json:"answer_id"`
		Answer   string    `json:"answer"`
		CreateTS time.Time `json:"create_ts"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT u.id, u.name, fpa.id AS answer_id, fpa.answer, fpv.create_ts
		FROM forum_poll_votes AS fpv
			JOIN forum_poll_answers AS fpa ON fpa.id = fpv.answer_id
			JOIN users AS u ON u.id = fpv.user_id
		WHERE fpv.topic_id = $1
		ORDER BY fpa.id ASC, u.name ASC`,
		req.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []voteUser{}
	for rows.Next() {
		var u voteUser
		if err := rows.Scan(&u.ID, &u.Name, &u.AnswerID, &u.Answer, &u.CreateTS); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func topicPoll(ctx context.Context, tx pgx.Tx, topicID, userID model.ID) ([]pollAnswer, error) {
	rows, err := tx.Query(ctx, `
		SELECT fpa.id, answer, COUNT(fpv.*),
			COALESCE((SELECT true FROM forum_poll_votes WHERE answer_id = fpa.id AND user_id = $2), false) AS voted
		FROM forum_poll_answers AS fpa
			LEFT JOIN forum_poll_votes AS fpv ON fpv.answer_id = fpa.id
		WHERE fpa.topic_id = $1
		GROUP BY fpa.id
		ORDER BY fpa.id ASC`,
		topicID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	poll := []pollAnswer{}
	for rows.Next() {
		var p pollAnswer
		if err := rows.Scan(&p.ID, &p.Answer, &p.Count, &p.Voted); err != nil {
			return nil, err
		}
		poll = append(poll, p)
	}
	return poll, rows.Err()
}
