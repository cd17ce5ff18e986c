// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
)

// Mandela implements the mandela.* methods.
type Mandela struct {
	deps *Deps
}

// voteCount is one bucket of the yes/no/fake histogram.
type voteCount struct {
	Vote  int16 `json:"vote"`
	Count int64 `json:"count"`
}

func getPoll(ctx context.Context, tx pgx.Tx, mandelaID model.ID) ([]voteCount, error) {
	rows, err := tx.Query(ctx, `
		SELECT vote, COUNT(*) AS count FROM votes
		WHERE mandela_id = $1
		GROUP BY vote`, mandelaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []voteCount{}
	for rows.Next() {
		var v voteCount
		if err := rows.Scan(&v.Vote, &v.Count); err != nil {
			return nil, err
		}
		counts = append(counts, v)
	}
	return counts, rows.Err()
}

// updateCategories reconciles the stored category numbers of an entry
// with the requested set: stale rows go away, new numbers are inserted,
// survivors stay untouched.
func updateCategories(ctx context.Context, tx pgx.Tx, mandelaID model.ID, numbers []int16) error {
	rows, err := tx.Query(ctx,
		`SELECT id, number FROM categories WHERE mandela_id = $1`, mandelaID)
	if err != nil {
		return err
	}
	defer rows.Close()

	type current struct {
		id     model.ID
		number int16
	}
	var existing []current
	for rows.Next() {
		var c current
		if err := rows.Scan(&c.id, &c.number); err != nil {
			return err
		}
		existing = append(existing, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	toInsert := make([]int16, len(numbers))
	copy(toInsert, numbers)

	contains := func(s []int16, n int16) int {
		for i, v := range s {
			if v == n {
				return i
			}
		}
		return -1
	}

	for _, c := range existing {
		if idx := contains(toInsert, c.number); idx >= 0 {
			toInsert = append(toInsert[:idx], toInsert[idx+1:]...)
			continue
		}
		if _, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, c.id); err != nil {
			return err
		}
	}

	for _, n := range toInsert {
		if _, err := tx.Exec(ctx,
			`INSERT INTO categories (mandela_id, number) VALUES ($1, $2)`, mandelaID, n); err != nil {
			return err
		}
	}
	return nil
}

func orEmptyArray(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("[]")
	}
	return raw
}

func (m *Mandela) Create(c *api.Context) (any, error) {
	var req struct {
		TitleMode   int32           `json:"title_mode"`
		Title       string          `json:"title"`
		What        string          `json:"what"`
		Before      string          `json:"before"`
		After       string          `json:"after"`
		Description string          `json:"description"`
		Categories  []int16         `json:"categories"`
		Images      json.RawMessage `json:"images"`
		Videos      json.RawMessage `json:"videos"`
		Links       json.RawMessage `json:"links"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	var id model.ID
	err := c.Tx.QueryRow(c.Ctx, `
		INSERT INTO mandels (title_mode, title, what, before, after, description, user_id, images, videos, links)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		req.TitleMode, req.Title, req.What, req.Before, req.After, req.Description,
		c.User.ID, orEmptyArray(req.Images), orEmptyArray(req.Videos), orEmptyArray(req.Links),
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	if err := updateCategories(c.Ctx, c.Tx, id, req.Categories); err != nil {
		return nil, err
	}

	title := formatMandelaTitle(req.TitleMode, req.Title, req.What, req.Before, req.After)
	message := fmt.Sprintf("<a href=\"https://%s/mandela/%d\">%s</a>\n%s",
		m.deps.FrontendDomen, id, html.EscapeString(title), html.EscapeString(c.User.Name))
	m.deps.Telegram.SendMessage(message)

	return responseID{ID: id}, nil
}

func (m *Mandela) Update(c *api.Context) (any, error) {
	var req struct {
		ID          model.ID        `json:"id"`
		TitleMode   int32           `json:"title_mode"`
		Title       string          `json:"title"`
		What        string          `json:"what"`
		Before      string          `json:"before"`
		After       string          `json:"after"`
		Description string          `json:"description"`
		Categories  []int16         `json:"categories"`
		Images      json.RawMessage `json:"images"`
		Videos      json.RawMessage `json:"videos"`
		Links       json.RawMessage `json:"links"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx, `
		UPDATE mandels
		SET title_mode = $2, title = $3, what = $4, before = $5, after = $6,
			description = $7, images = $8, videos = $9, links = $10, update_ts = $11
		WHERE id = $1`,
		req.ID, req.TitleMode, req.Title, req.What, req.Before, req.After,
		req.Description, orEmptyArray(req.Images), orEmptyArray(req.Videos), orEmptyArray(req.Links),
		time.Now().UTC())
	if err != nil {
		return nil, err
	}

	return nil, updateCategories(c.Ctx, c.Tx, req.ID, req.Categories)
}

func (m *Mandela) GetOne(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	type mandelaView struct {
		ID             model.ID        `json:"id"`
		Title          string          `json:"title"`
		TitleMode      int32           `json:"title_mode"`
		Description    string          `json:"description"`
		UserID         model.ID        `json:"user_id"`
		UserName       string          `json:"user_name"`
		CreateTS       time.Time       `json:"create_ts"`
		UpdateTS       time.Time       `json:"update_ts"`
		What           string          `json:"what"`
		Before         string          `json:"before"`
		After          string          `json:"after"`
		Images         json.RawMessage `json:"images"`
		Videos         json.RawMessage `json:"videos"`
		Links          json.RawMessage `json:"links"`
		MarkTS         *time.Time      `json:"mark_ts"`
		Trash          bool            `json:"trash"`
		AutomaticTrash bool            `json:"automatic_trash"`
	}

	var mv mandelaView
	err := c.Tx.QueryRow(c.Ctx, `
		SELECT m.id, m.title, m.title_mode, m.description, m.user_id, u.name,
			m.create_ts, m.update_ts, m.what, m.before, m.after,
			m.images, m.videos, m.links, mk.create_ts, m.trash, m.automatic_trash
		FROM mandels AS m
			JOIN users AS u ON u.id = m.user_id
			LEFT JOIN marks AS mk ON mk.user_id = $2 AND mk.mandela_id = m.id
		WHERE m.id = $1`, req.ID, c.User.ID,
	).Scan(&mv.ID, &mv.Title, &mv.TitleMode, &mv.Description, &mv.UserID, &mv.UserName,
		&mv.CreateTS, &mv.UpdateTS, &mv.What, &mv.Before, &mv.After,
		&mv.Images, &mv.Videos, &mv.Links, &mv.MarkTS, &mv.Trash, &mv.AutomaticTrash)
	if err != nil {
		return nil, notFound(err)
	}

	votes, err := getPoll(c.Ctx, c.Tx, req.ID)
	if err != nil {
		return nil, err
	}

	var userVote *int16
	if c.User.Role != model.RoleAnonym {
		var v int16
		err := c.Tx.QueryRow(c.Ctx,
			`SELECT vote FROM votes WHERE mandela_id = $1 AND user_id = $2`,
			req.ID, c.User.ID).Scan(&v)
		switch {
		case err == nil:
			userVote = &v
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, err
		}
	}

	categories := []int16{}
	rows, err := c.Tx.Query(c.Ctx,
		`SELECT number FROM categories WHERE mandela_id = $1`, req.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n int16
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		categories = append(categories, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return map[string]any{
		"mandela":    mv,
		"votes":      votes,
		"vote":       userVote,
		"categories": categories,
	}, nil
}

// mandela.getAll filters.
const (
	showAll int8 = iota
	showNew
	showMine
	showPoll
	showTrash
	showCategory
)

// mandela.getAll sort orders.
const (
	sortByMandela int8 = 0
	sortByComment int8 = 1
)

func (m *Mandela) GetAll(c *api.Context) (any, error) {
	var req struct {
		Offset   int64     `json:"offset"`
		Limit    int64     `json:"limit"`
		UserID   *model.ID `json:"user_id"`
		Filter   *int8     `json:"filter"`
		Category *int16    `json:"category"`
		Sort     int8      `json:"sort"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	filter := showAll
	if req.Filter != nil {
		filter = *req.Filter
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT m.id, m.title_mode, m.title, m.what, m.before, m.after,
			m.create_ts, u.name, u.id, mk.create_ts
		FROM mandels AS m
			JOIN users AS u ON u.id = m.user_id
			LEFT JOIN marks AS mk ON mk.user_id = $1 AND mk.mandela_id = m.id
			LEFT JOIN votes AS v ON v.user_id = $1 AND v.mandela_id = m.id
		`)
	args := []any{c.User.ID}

	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case req.UserID != nil:
		sb.WriteString("WHERE m.user_id = " + addArg(*req.UserID) + "\n")
	case filter == showNew:
		sb.WriteString("WHERE mk.create_ts IS NULL\n")
	case filter == showMine:
		sb.WriteString("WHERE m.user_id = $1\n")
	case filter == showPoll:
		sb.WriteString("WHERE v.create_ts IS NULL\n")
	case filter == showTrash:
		sb.WriteString("WHERE m.trash = TRUE\n")
	case filter == showCategory && req.Category != nil:
		sb.WriteString("WHERE EXISTS (SELECT 1 FROM categories WHERE mandela_id = m.id AND number = " +
			addArg(*req.Category) + ")\n")
	default:
		sb.WriteString("WHERE m.trash = FALSE\n")
	}

	if req.Sort == sortByComment {
		sb.WriteString(`ORDER BY (SELECT MAX(create_ts) FROM comments WHERE mandela_id = m.id) DESC NULLS LAST` + "\n")
	} else {
		sb.WriteString("ORDER BY m.id DESC\n")
	}
	sb.WriteString("OFFSET " + addArg(req.Offset) + " LIMIT " + addArg(req.Limit))

	type mandelaRow struct {
		ID           model.ID    `json:"id"`
		TitleMode    int32       `json:"title_mode"`
		Title        string      `json:"title"`
		What         string      `json:"what"`
		Before       string      `json:"before"`
		After        string      `json:"after"`
		CreateTS     time.Time   `json:"create_ts"`
		UserName     *string     `json:"user_name"`
		UserID       model.ID    `json:"user_id"`
		CommentCount int64       `json:"comment_count"`
		MarkTS       *time.Time  `json:"mark_ts"`
		Votes        []voteCount `json:"votes"`
	}

	rows, err := c.Tx.Query(c.Ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []mandelaRow{}
	for rows.Next() {
		var r mandelaRow
		if err := rows.Scan(&r.ID, &r.TitleMode, &r.Title, &r.What, &r.Before, &r.After,
			&r.CreateTS, &r.UserName, &r.UserID, &r.MarkTS); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range list {
		if err := c.Tx.QueryRow(c.Ctx,
			`SELECT COUNT(*) FROM comments WHERE mandela_id = $1`,
			list[i].ID).Scan(&list[i].CommentCount); err != nil {
			return nil, err
		}
		votes, err := getPoll(c.Ctx, c.Tx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Votes = votes
	}

	counts, err := m.counts(c, req.UserID, filter, req.Category)
	if err != nil {
		return nil, err
	}
	counts["mandels"] = list
	return counts, nil
}

// counts assembles the sidebar counters shown next to the entry list.
func (m *Mandela) counts(c *api.Context, userID *model.ID, filter int8, category *int16) (map[string]any, error) {
	var totalCount, newCount, mineCount, pollCount, categoryCount, trashCount, userCount int64

	count := func(query string, args ...any) (int64, error) {
		var n int64
		err := c.Tx.QueryRow(c.Ctx, query, args...).Scan(&n)
		return n, err
	}

	var err error
	if userID != nil {
		if filter == showCategory && category != nil {
			userCount, err = count(`
				SELECT COUNT(*) FROM mandels AS m
				JOIN categories AS cat ON cat.mandela_id = m.id
				WHERE m.user_id = $1 AND cat.number = $2`, *userID, *category)
		} else {
			userCount, err = count(`SELECT COUNT(*) FROM mandels WHERE user_id = $1`, *userID)
		}
		if err != nil {
			return nil, err
		}
	} else {
		if totalCount, err = count(`SELECT COUNT(*) FROM mandels`); err != nil {
			return nil, err
		}

		if filter == showCategory && category != nil {
			categoryCount, err = count(`
				SELECT COUNT(*) FROM mandels AS m
				JOIN categories AS cat ON cat.mandela_id = m.id
				WHERE cat.number = $1`, *category)
			if err != nil {
				return nil, err
			}
		}

		if c.User.Role != model.RoleAnonym {
			markCount, err := count(`SELECT COUNT(*) FROM marks WHERE user_id = $1`, c.User.ID)
			if err != nil {
				return nil, err
			}
			newCount = totalCount - markCount

			votedCount, err := count(`SELECT COUNT(*) FROM votes WHERE user_id = $1`, c.User.ID)
			if err != nil {
				return nil, err
			}
			pollCount = totalCount - votedCount

			if mineCount, err = count(`SELECT COUNT(*) FROM mandels WHERE user_id = $1`, c.User.ID); err != nil {
				return nil, err
			}
		}

		if trashCount, err = count(`SELECT COUNT(*) FROM mandels WHERE trash = TRUE`); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"total_count":    totalCount,
		"new_count":      newCount,
		"mine_count":     mineCount,
		"poll_count":     pollCount,
		"trash_count":    trashCount,
		"category_count": categoryCount,
		"user_count":     userCount,
	}, nil
}

func (m *Mandela) Delete(c *api.Context) (any, error) {
	var req struct {
		ID []model.ID `json:"id"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx, `DELETE FROM mandels WHERE id = ANY($1)`, req.ID)
	return nil, err
}

func (m *Mandela) Mark(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx, `
		INSERT INTO marks (mandela_id, user_id) VALUES ($1, $2)
		ON CONFLICT (mandela_id, user_id) DO NOTHING`, req.ID, c.User.ID)
	return nil, err
}

func (m *Mandela) Vote(c *api.Context) (any, error) {
	var req struct {
		ID   model.ID `json:"id"`
		Vote int16    `json:"vote"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx, `
		INSERT INTO votes (mandela_id, user_id, vote) VALUES ($1, $2, $3)
		ON CONFLICT (mandela_id, user_id) DO UPDATE SET vote = EXCLUDED.vote`,
		req.ID, c.User.ID, req.Vote)
	if err != nil {
		return nil, err
	}

	return getPoll(c.Ctx, c.Tx, req.ID)
}

func (m *Mandela) GetVoteUsers(c *api.Context) (any, error) {
	var req requestID
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	type voteUser struct {
		ID   model.ID `json:"id"`
		Name string   `json:"name"`
		Vote int16    `json:"vote"`
	}

	rows, err := c.Tx.Query(c.Ctx, `
		SELECT u.id, u.name, v.vote FROM votes AS v
		JOIN users AS u ON u.id = v.user_id
		WHERE v.mandela_id = $1
		ORDER BY v.vote ASC, u.name ASC`, req.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []voteUser{}
	for rows.Next() {
		var u voteUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Vote); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (m *Mandela) UpdateTrash(c *api.Context) (any, error) {
	var req struct {
		ID             model.ID `json:"id"`
		Trash          bool     `json:"trash"`
		AutomaticTrash bool     `json:"automatic_trash"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	_, err := c.Tx.Exec(c.Ctx,
		`UPDATE mandels SET trash = $2, automatic_trash = $3 WHERE id = $1`,
		req.ID, req.Trash, req.AutomaticTrash)
	return nil, err
}
