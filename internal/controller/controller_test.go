// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/model"
	"github.com/krre/ocean-backend/internal/usercache"
)

// recordingTx captures Exec calls. Methods the test never reaches fall
// through to the embedded nil interface and panic, which is intentional.
type recordingTx struct {
	pgx.Tx
	execs []execCall
}

type execCall struct {
	sql  string
	args []any
}

func (t *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func newTestContext(tx pgx.Tx, user model.User, params string) *api.Context {
	return &api.Context{
		Ctx:    context.Background(),
		Tx:     tx,
		User:   user,
		Params: []byte(params),
	}
}

func TestRegisterMethodSurface(t *testing.T) {
	reg := api.NewRegistry()
	Register(reg, &Deps{Cache: usercache.New()})

	want := []string{
		"activity.getAll",
		"comment.create", "comment.delete", "comment.getAll", "comment.update",
		"feed.getAll",
		"forum.category.create", "forum.category.delete", "forum.category.getOne", "forum.category.update",
		"forum.getAll", "forum.getNew",
		"forum.post.create", "forum.post.delete", "forum.post.getAll", "forum.post.getOne", "forum.post.update",
		"forum.section.create", "forum.section.delete", "forum.section.getAll", "forum.section.getOne", "forum.section.update",
		"forum.topic.create", "forum.topic.delete", "forum.topic.getAll", "forum.topic.getOne",
		"forum.topic.getVoteUsers", "forum.topic.update", "forum.topic.vote",
		"like.create", "like.delete", "like.getUsers",
		"mandela.create", "mandela.delete", "mandela.getAll", "mandela.getOne", "mandela.getVoteUsers",
		"mandela.mark", "mandela.update", "mandela.updateTrash", "mandela.vote",
		"ping",
		"rating.getMandels", "rating.getUsers",
		"search.getAll",
		"user.auth", "user.create", "user.delete", "user.getNextId", "user.getOne",
		"user.logout", "user.update", "user.updateProfile", "user.updateToken",
	}

	got := reg.Methods()
	if len(got) != len(want) {
		t.Fatalf("method count = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("method[%d] = %q, want %q", i, got[i], name)
		}
	}
}

func TestRegisterRoles(t *testing.T) {
	reg := api.NewRegistry()
	Register(reg, &Deps{Cache: usercache.New()})

	tests := []struct {
		method       string
		role         model.Role
		anonymCreate bool
	}{
		{"ping", model.RoleAnonym, false},
		{"mandela.create", model.RoleUser, true},
		{"mandela.delete", model.RoleAdmin, false},
		{"comment.create", model.RoleUser, true},
		{"forum.topic.create", model.RoleUser, true},
		{"forum.post.create", model.RoleUser, true},
		{"forum.section.delete", model.RoleAdmin, false},
		{"forum.topic.delete", model.RoleUser, false},
		{"like.getUsers", model.RoleAdmin, false},
		{"user.logout", model.RoleUser, false},
		{"user.update", model.RoleAdmin, false},
		{"search.getAll", model.RoleAnonym, false},
	}

	for _, tt := range tests {
		spec, ok := reg.Lookup(tt.method)
		if !ok {
			t.Errorf("%s: not registered", tt.method)
			continue
		}
		if spec.Role != tt.role {
			t.Errorf("%s: role = %v, want %v", tt.method, spec.Role, tt.role)
		}
		if spec.AnonymCreate != tt.anonymCreate {
			t.Errorf("%s: anonymCreate = %v, want %v", tt.method, spec.AnonymCreate, tt.anonymCreate)
		}
	}
}

func TestFormatMandelaTitle(t *testing.T) {
	tests := []struct {
		name      string
		titleMode int32
		title     string
		what      string
		before    string
		after     string
		want      string
	}{
		{"plain", model.TitleModePlain, "Некоторое название", "a", "b", "c", "Некоторое название"},
		{"change", model.TitleModeChange, "", "Логотип", "один хвост", "два хвоста", "Логотип: один хвост / два хвоста"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMandelaTitle(tt.titleMode, tt.title, tt.what, tt.before, tt.after)
			if got != tt.want {
				t.Errorf("formatMandelaTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
