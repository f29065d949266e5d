package domain

import (
	"context"
	"io"
)

// SearchPort is the provider surface the crawl engine consumes
type SearchPort interface {
	CountRepositories(ctx context.Context, searchQuery string) (int, *RateLimitSnapshot, error)
	SearchRepositories(ctx context.Context, searchQuery string, first int, after string) (*SearchPage, *RateLimitSnapshot, error)
}

// RunnerPort is the crawl module's public surface
type RunnerPort interface {
	// Crawl plans ranges and fetches repositories until the target count is
	// reached or the plan is exhausted
	Crawl(ctx context.Context) (CrawlResult, error)
}

// AdminPort covers schema setup and data export
type AdminPort interface {
	InitSchema(ctx context.Context) error
	ExportCSV(ctx context.Context, w io.Writer) error
}

// StorageRepo persists repository records. Implementations are bound to a
// transaction or pool via repokit
type StorageRepo interface {
	// UpsertRepositories writes current state rows and appends a snapshot per
	// record, returning the number of records processed
	UpsertRepositories(ctx context.Context, recs []RepositoryRecord) (int, error)
	// EnsureSchema creates the tables and indexes if missing
	EnsureSchema(ctx context.Context) error
	// ForEachRepository streams current state rows ordered by stars descending
	ForEachRepository(ctx context.Context, fn func(RepositoryRecord) error) error
}
