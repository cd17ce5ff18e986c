// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usercache keeps every known API token and its user in memory.
// The router consults it on each request, so token lookup never touches
// the database. Account mutations write through the cache.
package usercache

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krre/ocean-backend/internal/logging"
	"github.com/krre/ocean-backend/internal/model"
)

// Cache maps token to a user snapshot. Get returns a copy, so a snapshot
// taken at the start of a request stays stable for its whole lifetime.
type Cache struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func New() *Cache {
	return &Cache{users: make(map[string]model.User)}
}

// Load replaces the cache contents with all users from the database.
// Called once at startup before the listener accepts requests.
func (c *Cache) Load(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT u.id, u.name, u.token, g.code, u.blocked
		FROM users AS u
		JOIN user_groups AS g ON g.id = u.group_id`)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]model.User)
	for rows.Next() {
		var (
			u     model.User
			token string
			code  string
		)
		if err := rows.Scan(&u.ID, &u.Name, &token, &code, &u.Blocked); err != nil {
			return fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Role = model.Role(code)
		if !u.Role.Valid() {
			return fmt.Errorf("user %d has unknown group code %q", u.ID, code)
		}
		users[token] = u
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read user rows: %w", err)
	}

	c.mu.Lock()
	c.users = users
	c.mu.Unlock()

	logging.Info().Int("count", len(users)).Msg("User cache loaded")
	return nil
}

// Get returns the user snapshot for token.
func (c *Cache) Get(token string) (model.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[token]
	return u, ok
}

// Set inserts or replaces the entry for token.
func (c *Cache) Set(token string, u model.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[token] = u
}

// Delete removes the entry for token.
func (c *Cache) Delete(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, token)
}

// DeleteByID removes the entry whose user has the given id.
func (c *Cache) DeleteByID(id model.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, u := range c.users {
		if u.ID == id {
			delete(c.users, token)
			return
		}
	}
}

// Rotate moves the user from oldToken to newToken in one step.
func (c *Cache) Rotate(oldToken, newToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[oldToken]
	if !ok {
		return
	}
	delete(c.users, oldToken)
	c.users[newToken] = u
}

// UpdateBlocked flips the blocked flag of the user with the given id.
// Requests already in flight keep the snapshot they resolved.
func (c *Cache) UpdateBlocked(id model.ID, blocked bool) {
	c.UpdateByID(id, func(u *model.User) {
		u.Blocked = blocked
	})
}

// UpdateByID applies fn to the cached user with the given id. Returns
// false when no entry matches.
func (c *Cache) UpdateByID(id model.ID, fn func(*model.User)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, u := range c.users {
		if u.ID == id {
			fn(&u)
			c.users[token] = u
			return true
		}
	}
	return false
}

// Len reports the number of cached tokens.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}
