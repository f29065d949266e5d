package github

import (
	"encoding/json"
	"time"
)

// RateLimitSnapshot is a point-in-time reading of the provider's budget,
// parsed from the rateLimit block every operation requests
type RateLimitSnapshot struct {
	Cost      int       `json:"cost"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Payload is the result of one successful GraphQL execution
type Payload struct {
	Data      json.RawMessage
	RateLimit *RateLimitSnapshot
}

// OwnerNode is the owner sub-document of a repository node
type OwnerNode struct {
	Login    string `json:"login"`
	TypeName string `json:"__typename"`
}

// CountNode wraps the totalCount connections GitHub uses for counters
type CountNode struct {
	TotalCount int `json:"totalCount"`
}

// NameNode wraps named sub-documents like primaryLanguage
type NameNode struct {
	Name string `json:"name"`
}

// RepoNode is a repository node as returned by RepositorySearchQuery
type RepoNode struct {
	ID              string     `json:"id"`
	DatabaseID      *int64     `json:"databaseId"`
	Name            string     `json:"name"`
	NameWithOwner   string     `json:"nameWithOwner"`
	Description     *string    `json:"description"`
	StargazerCount  int        `json:"stargazerCount"`
	ForkCount       int        `json:"forkCount"`
	IsPrivate       bool       `json:"isPrivate"`
	IsFork          bool       `json:"isFork"`
	IsArchived      bool       `json:"isArchived"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	PushedAt        *time.Time `json:"pushedAt"`
	Owner           OwnerNode  `json:"owner"`
	Watchers        CountNode  `json:"watchers"`
	Issues          CountNode  `json:"issues"`
	PrimaryLanguage *NameNode  `json:"primaryLanguage"`
}

// PageInfo is the cursor block of a search connection
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// SearchPage is one page of repository search results
type SearchPage struct {
	RepositoryCount int
	PageInfo        PageInfo
	Nodes           []RepoNode
}

// wire shapes for unmarshalling the data subtree

type rateLimitEnvelope struct {
	RateLimit *RateLimitSnapshot `json:"rateLimit"`
}

type countEnvelope struct {
	Search struct {
		RepositoryCount int `json:"repositoryCount"`
	} `json:"search"`
}

type searchEnvelope struct {
	Search struct {
		RepositoryCount int        `json:"repositoryCount"`
		PageInfo        PageInfo   `json:"pageInfo"`
		Nodes           []RepoNode `json:"nodes"`
	} `json:"search"`
}
