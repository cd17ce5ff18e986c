// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package usercache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/krre/ocean-backend/internal/model"
)

func TestGetReturnsSnapshot(t *testing.T) {
	c := New()
	c.Set("tok", model.User{ID: 1, Name: "alice", Role: model.RoleUser})

	got, ok := c.Get("tok")
	if !ok {
		t.Fatal("Get returned ok = false")
	}

	// Mutating the cache after Get must not affect the returned copy.
	c.UpdateBlocked(1, true)
	if got.Blocked {
		t.Error("snapshot changed after cache mutation")
	}

	updated, _ := c.Get("tok")
	if !updated.Blocked {
		t.Error("cache entry was not updated")
	}
}

func TestGetUnknownToken(t *testing.T) {
	c := New()
	if _, ok := c.Get("missing"); ok {
		t.Error("Get returned ok = true for unknown token")
	}
}

func TestDeleteByID(t *testing.T) {
	c := New()
	c.Set("a", model.User{ID: 1, Role: model.RoleUser})
	c.Set("b", model.User{ID: 2, Role: model.RoleUser})

	c.DeleteByID(1)

	if _, ok := c.Get("a"); ok {
		t.Error("entry for deleted user still resolves")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("unrelated entry was removed")
	}
}

func TestRotate(t *testing.T) {
	c := New()
	c.Set("old", model.User{ID: 7, Name: "bob", Role: model.RoleUser})

	c.Rotate("old", "new")

	if _, ok := c.Get("old"); ok {
		t.Error("old token still resolves after rotation")
	}
	u, ok := c.Get("new")
	if !ok || u.ID != 7 {
		t.Errorf("new token resolves to %+v, ok = %v", u, ok)
	}

	// Rotating an unknown token is a no-op.
	c.Rotate("missing", "other")
	if _, ok := c.Get("other"); ok {
		t.Error("rotation of unknown token created an entry")
	}
}

func TestUpdateByIDUnknown(t *testing.T) {
	c := New()
	if c.UpdateByID(99, func(u *model.User) { u.Blocked = true }) {
		t.Error("UpdateByID reported success for unknown id")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	for i := 0; i < 16; i++ {
		c.Set(fmt.Sprintf("tok%d", i), model.User{ID: model.ID(i), Role: model.RoleUser})
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.UpdateBlocked(model.ID(n), j%2 == 0)
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				u, ok := c.Get(fmt.Sprintf("tok%d", n))
				if ok && u.ID != model.ID(n) {
					t.Errorf("token tok%d resolved to user %d", n, u.ID)
				}
			}
		}(i)
	}
	wg.Wait()
}
