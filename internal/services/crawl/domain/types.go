// Package domain holds the crawl service's value types and ports
package domain

import (
	"fmt"
	"time"
)

// RateLimitSnapshot is the provider budget reading carried by every response
type RateLimitSnapshot struct {
	Cost      int
	Remaining int
	ResetAt   time.Time
}

// minSplittable is the smallest range that can still be halved; below this
// the range is terminal even when the provider reports more matches than the
// result window can return
const minSplittable = 2 * time.Second

// TimeRange is a half-open creation-time interval [Start, End)
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End minus Start
func (r TimeRange) Duration() time.Duration { return r.End.Sub(r.Start) }

// CanSplit reports whether the range is wide enough to halve
func (r TimeRange) CanSplit() bool { return r.Duration() >= minSplittable }

// Split halves the range at its midpoint. The two children partition the
// parent exactly: older is [Start, mid), newer is [mid, End)
func (r TimeRange) Split() (older, newer TimeRange) {
	mid := r.Start.Add(r.Duration() / 2)
	return TimeRange{Start: r.Start, End: mid}, TimeRange{Start: mid, End: r.End}
}

// SearchQuery renders the range as a provider search expression. The bounds
// are emitted in UTC so the half-open interval survives the provider's
// second-granularity comparison
func (r TimeRange) SearchQuery() string {
	const layout = "2006-01-02T15:04:05Z"
	return fmt.Sprintf("created:>=%s created:<%s is:public sort:created-asc",
		r.Start.UTC().Format(layout), r.End.UTC().Format(layout))
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339))
}

// RangePlan is a terminal range the planner has sized for fetching
type RangePlan struct {
	Range TimeRange
	// Requested is this range's share of the run target; the producer stops
	// paging once it has enqueued this many records
	Requested int
	// Count is the provider's match count at planning time; it can drift by
	// the time the range is fetched
	Count int
}

// RepositoryNode is the engine's view of one repository from the search API,
// flattened from the provider's nested document at the adapter edge
type RepositoryNode struct {
	ID            string
	DatabaseID    *int64
	Name          string
	NameWithOwner string
	OwnerLogin    string
	OwnerType     string
	Description   *string
	Stars         int
	Forks         int
	Watchers      int
	OpenIssues    int
	Language      *string
	IsPrivate     bool
	IsFork        bool
	IsArchived    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PushedAt      *time.Time
}

// SearchPage is one page of search results
type SearchPage struct {
	TotalCount  int
	Nodes       []RepositoryNode
	HasNextPage bool
	EndCursor   string
}

// RepositoryRecord is the persisted projection of a repository node
type RepositoryRecord struct {
	NodeID        string
	DatabaseID    *int64
	Name          string
	NameWithOwner string
	OwnerLogin    string
	OwnerType     string
	Description   *string
	Stars         int
	Forks         int
	Watchers      int
	OpenIssues    int
	Language      *string
	IsPrivate     bool
	IsFork        bool
	IsArchived    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PushedAt      *time.Time
	FetchedAt     time.Time
}

// RecordFromNode projects a search node into its persisted form
func RecordFromNode(n RepositoryNode, fetchedAt time.Time) RepositoryRecord {
	return RepositoryRecord{
		NodeID:        n.ID,
		DatabaseID:    n.DatabaseID,
		Name:          n.Name,
		NameWithOwner: n.NameWithOwner,
		OwnerLogin:    n.OwnerLogin,
		OwnerType:     n.OwnerType,
		Description:   n.Description,
		Stars:         n.Stars,
		Forks:         n.Forks,
		Watchers:      n.Watchers,
		OpenIssues:    n.OpenIssues,
		Language:      n.Language,
		IsPrivate:     n.IsPrivate,
		IsFork:        n.IsFork,
		IsArchived:    n.IsArchived,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		PushedAt:      n.PushedAt,
		FetchedAt:     fetchedAt,
	}
}

// CrawlResult summarizes one completed crawl run
type CrawlResult struct {
	RunID               string
	RepositoriesWritten int
	RangesPlanned       int
	RangesFailed        int
	RateLimitRemaining  *int
	StartedAt           time.Time
	FinishedAt          time.Time
}
