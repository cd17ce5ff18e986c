// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller implements every RPC method. Handlers receive the
// request-scoped api.Context and run their SQL on its transaction; the
// router owns commit and rollback.
package controller

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/apierror"
	"github.com/krre/ocean-backend/internal/model"
	"github.com/krre/ocean-backend/internal/telegram"
	"github.com/krre/ocean-backend/internal/usercache"
)

// Deps are the shared collaborators handlers reach beyond the database.
type Deps struct {
	Cache    *usercache.Cache
	Telegram *telegram.Bot

	// FrontendDomen is the public site host used in notification links.
	FrontendDomen string
}

// Register fills the method table. The table is the authoritative record
// of the API surface: every method next to its minimum role.
func Register(reg *api.Registry, deps *Deps) {
	mandela := &Mandela{deps: deps}
	user := &User{deps: deps}
	comment := &Comment{deps: deps}
	like := &Like{}
	search := &Search{}
	rating := &Rating{}
	forum := &Forum{}
	category := &ForumCategory{}
	section := &ForumSection{}
	topic := &ForumTopic{}
	post := &ForumPost{}
	activity := &Activity{}
	feed := &Feed{}

	anonym, userRole, admin := model.RoleAnonym, model.RoleUser, model.RoleAdmin

	reg.Register("ping", anonym, ping)

	reg.RegisterAnonymCreate("mandela.create", mandela.Create)
	reg.Register("mandela.update", userRole, mandela.Update)
	reg.Register("mandela.getOne", anonym, mandela.GetOne)
	reg.Register("mandela.getAll", anonym, mandela.GetAll)
	reg.Register("mandela.delete", admin, mandela.Delete)
	reg.Register("mandela.mark", userRole, mandela.Mark)
	reg.Register("mandela.vote", userRole, mandela.Vote)
	reg.Register("mandela.getVoteUsers", admin, mandela.GetVoteUsers)
	reg.Register("mandela.updateTrash", admin, mandela.UpdateTrash)

	reg.Register("user.getNextId", anonym, user.GetNextID)
	reg.Register("user.create", anonym, user.Create)
	reg.Register("user.delete", admin, user.Delete)
	reg.Register("user.auth", anonym, user.Auth)
	reg.Register("user.logout", userRole, user.Logout)
	reg.Register("user.getOne", anonym, user.GetOne)
	reg.Register("user.update", admin, user.Update)
	reg.Register("user.updateToken", userRole, user.UpdateToken)
	reg.Register("user.updateProfile", userRole, user.UpdateProfile)

	reg.RegisterAnonymCreate("comment.create", comment.Create)
	reg.Register("comment.getAll", anonym, comment.GetAll)
	reg.Register("comment.update", userRole, comment.Update)
	reg.Register("comment.delete", userRole, comment.Delete)

	reg.Register("like.create", userRole, like.Create)
	reg.Register("like.delete", userRole, like.Delete)
	reg.Register("like.getUsers", admin, like.GetUsers)

	reg.Register("search.getAll", anonym, search.GetAll)

	reg.Register("rating.getMandels", anonym, rating.GetMandels)
	reg.Register("rating.getUsers", anonym, rating.GetUsers)

	reg.Register("forum.getAll", anonym, forum.GetAll)
	reg.Register("forum.getNew", anonym, forum.GetNew)

	reg.Register("forum.category.create", admin, category.Create)
	reg.Register("forum.category.getOne", anonym, category.GetOne)
	reg.Register("forum.category.update", admin, category.Update)
	reg.Register("forum.category.delete", admin, category.Delete)

	reg.Register("forum.section.create", admin, section.Create)
	reg.Register("forum.section.getAll", anonym, section.GetAll)
	reg.Register("forum.section.getOne", anonym, section.GetOne)
	reg.Register("forum.section.update", admin, section.Update)
	reg.Register("forum.section.delete", admin, section.Delete)

	reg.Register("forum.topic.getAll", anonym, topic.GetAll)
	reg.Register("forum.topic.getOne", anonym, topic.GetOne)
	reg.RegisterAnonymCreate("forum.topic.create", topic.Create)
	reg.Register("forum.topic.update", userRole, topic.Update)
	reg.Register("forum.topic.delete", userRole, topic.Delete)
	reg.Register("forum.topic.vote", userRole, topic.Vote)
	reg.Register("forum.topic.getVoteUsers", admin, topic.GetVoteUsers)

	reg.Register("forum.post.getAll", anonym, post.GetAll)
	reg.Register("forum.post.getOne", anonym, post.GetOne)
	reg.RegisterAnonymCreate("forum.post.create", post.Create)
	reg.Register("forum.post.update", userRole, post.Update)
	reg.Register("forum.post.delete", userRole, post.Delete)

	reg.Register("activity.getAll", anonym, activity.GetAll)
	reg.Register("feed.getAll", anonym, feed.GetAll)
}

func ping(*api.Context) (any, error) {
	return nil, nil
}

// requestID is the common one-field params shape.
type requestID struct {
	ID model.ID `json:"id"`
}

// responseID is the common one-field result shape.
type responseID struct {
	ID model.ID `json:"id"`
}

// notFound converts a no-rows scan into the typed record-not-found error.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apierror.New(apierror.RecordNotFound)
	}
	return err
}

// formatMandelaTitle renders the display title of an entry. Entries in
// change mode describe a remembered difference instead of a plain title.
func formatMandelaTitle(titleMode int32, title, what, before, after string) string {
	if titleMode == model.TitleModeChange {
		return fmt.Sprintf("%s: %s / %s", what, before, after)
	}
	return title
}

// mandelaTitleSQL is the SQL rendering of formatMandelaTitle, used by
// queries that join entry titles into their result sets.
const mandelaTitleSQL = "(CASE WHEN title_mode = 0 THEN title ELSE what || ': ' || before || ' / ' || after END)"
