package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cronguard/internals/modules/project"
)

func (c *Client) SetProject(ctx context.Context, p project.Project) error {
	key := fmt.Sprintf("project:%v", p.ID)

	jsonP, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, jsonP, 10*time.Minute).Err()
}

func (c *Client) GetProject(ctx context.Context, id int64) (project.Project, bool) {
	key := fmt.Sprintf("project:%v", id)

	res, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return project.Project{}, false
	}
	var p project.Project
	if err := json.Unmarshal(res, &p); err != nil {
		return project.Project{}, false
	}

	return p, true
}
