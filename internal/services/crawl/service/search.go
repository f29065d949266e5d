package service

import (
	"context"

	"repocrawl/internal/adapters/github"
	"repocrawl/internal/services/crawl/domain"
)

// GitHubSearch adapts the GraphQL client to the engine's search port,
// flattening the provider's nested documents into domain shapes
type GitHubSearch struct {
	c *github.Client
}

// NewGitHubSearch wraps a transport client as a domain.SearchPort
func NewGitHubSearch(c *github.Client) *GitHubSearch {
	if c == nil {
		panic("crawl: nil github client")
	}
	return &GitHubSearch{c: c}
}

// CountRepositories implements domain.SearchPort
func (g *GitHubSearch) CountRepositories(ctx context.Context, searchQuery string) (int, *domain.RateLimitSnapshot, error) {
	n, rl, err := g.c.CountRepositories(ctx, searchQuery)
	return n, snapshotFromAPI(rl), err
}

// SearchRepositories implements domain.SearchPort
func (g *GitHubSearch) SearchRepositories(ctx context.Context, searchQuery string, first int, after string) (*domain.SearchPage, *domain.RateLimitSnapshot, error) {
	page, rl, err := g.c.SearchRepositories(ctx, searchQuery, first, after)
	if err != nil {
		return nil, snapshotFromAPI(rl), err
	}
	out := &domain.SearchPage{
		TotalCount:  page.RepositoryCount,
		Nodes:       make([]domain.RepositoryNode, 0, len(page.Nodes)),
		HasNextPage: page.PageInfo.HasNextPage,
		EndCursor:   page.PageInfo.EndCursor,
	}
	for _, n := range page.Nodes {
		out.Nodes = append(out.Nodes, nodeFromAPI(n))
	}
	return out, snapshotFromAPI(rl), nil
}

func snapshotFromAPI(rl *github.RateLimitSnapshot) *domain.RateLimitSnapshot {
	if rl == nil {
		return nil
	}
	return &domain.RateLimitSnapshot{Cost: rl.Cost, Remaining: rl.Remaining, ResetAt: rl.ResetAt}
}

func nodeFromAPI(n github.RepoNode) domain.RepositoryNode {
	out := domain.RepositoryNode{
		ID:            n.ID,
		DatabaseID:    n.DatabaseID,
		Name:          n.Name,
		NameWithOwner: n.NameWithOwner,
		OwnerLogin:    n.Owner.Login,
		OwnerType:     n.Owner.TypeName,
		Description:   n.Description,
		Stars:         n.StargazerCount,
		Forks:         n.ForkCount,
		Watchers:      n.Watchers.TotalCount,
		OpenIssues:    n.Issues.TotalCount,
		IsPrivate:     n.IsPrivate,
		IsFork:        n.IsFork,
		IsArchived:    n.IsArchived,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		PushedAt:      n.PushedAt,
	}
	if n.PrimaryLanguage != nil {
		out.Language = &n.PrimaryLanguage.Name
	}
	return out
}
