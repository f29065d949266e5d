// Package module wires the crawl service to its adapters
package module

import (
	"context"

	"repocrawl/internal/adapters/github"
	"repocrawl/internal/modkit"
	"repocrawl/internal/modkit/repokit"
	"repocrawl/internal/services/crawl/domain"
	"repocrawl/internal/services/crawl/ratelimit"
	"repocrawl/internal/services/crawl/repo"
	"repocrawl/internal/services/crawl/service"
)

// Name is the registry key for the crawl module
const Name = "crawl"

// Ports bundles the crawl module's public surfaces
type Ports struct {
	Runner domain.RunnerPort
	Admin  domain.AdminPort
}

// Module owns the crawl service and its wiring
type Module struct {
	svc   *service.Service
	ports Ports
}

// New validates opts and builds the transport, coordinator and engine.
// Registering the ports is bootstrap's job; the registry stays untouched here
func New(d modkit.Deps, opts Options) (*Module, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	client := github.NewClient(github.Options{
		Endpoint:       opts.GraphQLURL,
		Token:          opts.Token,
		UserAgent:      opts.UserAgent,
		Timeout:        opts.RequestTimeout,
		MaxRetries:     opts.MaxRetries,
		InitialBackoff: opts.InitialBackoff,
		MaxBackoff:     opts.MaxBackoff,
	}, d.Log)

	limiter := ratelimit.New(d.Log)

	// batch ingest favors throughput; a crash loses at most the last commit
	// and the next run upserts the same rows again
	db := d.PG
	if db != nil {
		db = repokit.WithBeginHooks(db, asyncCommit)
	}

	svc := service.New(db, repo.NewPG(), service.NewGitHubSearch(client), limiter, service.Config{
		PageSize:       opts.PageSize,
		BatchSize:      opts.BatchSize,
		MaxConcurrency: opts.MaxConcurrency,
		TargetCount:    opts.TargetCount,
		SearchLimit:    opts.SearchLimit,
		RangeStart:     opts.RangeStart,
	})

	return &Module{svc: svc, ports: Ports{Runner: svc, Admin: svc}}, nil
}

func asyncCommit(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, "SET LOCAL synchronous_commit TO off")
	return err
}

// Name implements modkit.Module
func (m *Module) Name() string { return Name }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }
