// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"github.com/krre/ocean-backend/internal/api"
)

// Activity implements activity.getAll, the sidebar list of recently
// active forum topics.
type Activity struct{}

func (a *Activity) GetAll(c *api.Context) (any, error) {
	var req struct {
		Limit int32 `json:"limit"`
	}
	if err := c.Decode(&req); err != nil {
		return nil, err
	}

	topics, err := newTopics(c.Ctx, c.Tx, req.Limit, 0)
	if err != nil {
		return nil, err
	}

	return map[string]any{"topics": topics}, nil
}
