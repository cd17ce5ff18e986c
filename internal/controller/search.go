// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// Search implements full-text search over entries, comments and forum
// posts with the russian text search configuration.
type Search struct{}

const (
	searchMandela = 0
	searchComment = 1
	searchPost    = 2
)

type searchRecord struct {
	TitleID model.ID `json:"title_id"`
	Title   string   `json:"title"`
	ID      model.ID `json:"id"`
	Row     int64    `json:"row"`
	Content string   `json:"content"`
}

func (s *Search) GetAll(c *api.Context) (any, error) {
	var req struct {
		Text   string `json:"text"`
		Type   int8   `json:"type"`
		Offset int64  `json:"offset"`
		Limit  int64  `json:"limit"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	if req.Text == "" {
		return []searchRecord{}, nil
	}

	var sql string
	switch req.Type {
	case searchMandela:
		const source = "title || ' ' || what || ' ' || before || ' ' || after || ' ' || description"
		sql = `
			SELECT 0 AS id, 0::Int8 AS row, id AS title_id, ` + mandelaTitleSQL + ` AS title,
				ts_headline(` + source + `, plainto_tsquery('russian', $1)) AS content
			FROM mandels
			WHERE to_tsvector('russian', ` + source + `) @@ plainto_tsquery('russian', $1)
			ORDER BY ts_rank(to_tsvector('russian', ` + source + `), plainto_tsquery('russian', $1)) DESC`
	case searchComment:
		sql = `
			SELECT c.id,
				(SELECT row FROM (SELECT id, row_number() OVER (PARTITION BY mandela_id ORDER BY id ASC) AS row
					FROM comments WHERE mandela_id = c.mandela_id) AS x WHERE x.id = c.id) AS row,
				m.id AS title_id, ` + mandelaTitleSQL + ` AS title,
				ts_headline('russian', c.message, plainto_tsquery($1)) AS content
			FROM comments AS c
				JOIN mandels AS m ON m.id = c.mandela_id
			WHERE to_tsvector('russian', c.message) @@ plainto_tsquery('russian', $1)
			ORDER BY ts_rank(to_tsvector('russian', c.message), plainto_tsquery('russian', $1)) DESC`
	default:
		sql = `
			SELECT fp.id,
				(SELECT row FROM (SELECT id, row_number() OVER (PARTITION BY topic_id ORDER BY id ASC) AS row
					FROM forum_posts WHERE topic_id = fp.topic_id) AS x WHERE x.id = fp.id) AS row,
				ft.id AS title_id, ft.name AS title,
				ts_headline('russian', fp.post, plainto_tsquery($1)) AS content
			FROM forum_posts AS fp
				JOIN forum_topics AS ft ON ft.id = fp.topic_id
			WHERE to_tsvector('russian', fp.post) @@ plainto_tsquery('russian', $1)
			ORDER BY ts_rank(to_tsvector('russian', fp.post), plainto_tsquery('russian', $1)) DESC`
	}
	sql += " LIMIT $2 OFFSET $3"

	rows, err := c.Tx.Query(c.Ctx, sql, req.Text, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []searchRecord{}
	for rows.Next() {
		var rec searchRecord
		if err := rows.Scan(&rec.ID, &rec.Row, &rec.TitleID, &rec.Title, &rec.Content); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return map[string]any{"records": records}, nil
}
