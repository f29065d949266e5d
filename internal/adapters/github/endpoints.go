package github

import (
	"context"
	"encoding/json"

	perr "repocrawl/internal/platform/errors"
)

// CountRepositories returns the total match count for a search expression
func (c *Client) CountRepositories(ctx context.Context, searchQuery string) (int, *RateLimitSnapshot, error) {
	p, err := c.Execute(ctx, RepositoryCountQuery, map[string]any{"query": searchQuery})
	if err != nil {
		return 0, nil, err
	}
	var env countEnvelope
	if err := json.Unmarshal(p.Data, &env); err != nil {
		return 0, p.RateLimit, perr.Transportf("github: decode count payload: %v", err)
	}
	return env.Search.RepositoryCount, p.RateLimit, nil
}

// SearchRepositories fetches one page of repository nodes for a search
// expression. An empty after means the first page
func (c *Client) SearchRepositories(ctx context.Context, searchQuery string, first int, after string) (*SearchPage, *RateLimitSnapshot, error) {
	vars := map[string]any{"query": searchQuery, "first": first}
	if after != "" {
		vars["after"] = after
	}
	p, err := c.Execute(ctx, RepositorySearchQuery, vars)
	if err != nil {
		return nil, nil, err
	}
	var env searchEnvelope
	if err := json.Unmarshal(p.Data, &env); err != nil {
		return nil, p.RateLimit, perr.Transportf("github: decode search payload: %v", err)
	}
	page := &SearchPage{
		RepositoryCount: env.Search.RepositoryCount,
		PageInfo:        env.Search.PageInfo,
		Nodes:           env.Search.Nodes,
	}
	return page, p.RateLimit, nil
}
