// Package repo persists repository records to postgres
package repo

import (
	"context"
	"database/sql"

	"repocrawl/internal/modkit/repokit"
	perr "repocrawl/internal/platform/errors"
	ptime "repocrawl/internal/platform/time"
	"repocrawl/internal/services/crawl/domain"
)

// PG is the postgres implementation of domain.StorageRepo
type PG struct {
	q repokit.Queryer
}

// NewPG returns a binder that attaches the repo to a queryer or tx
func NewPG() repokit.Binder[domain.StorageRepo] {
	return repokit.BindFunc[domain.StorageRepo](func(q repokit.Queryer) domain.StorageRepo {
		return &PG{q: repokit.RequireQueryer(q)}
	})
}

const upsertRepositorySQL = `
	INSERT INTO github_repositories (
		node_id, database_id, name, name_with_owner,
		owner_login, owner_type, description,
		stars, forks, watchers, open_issues, language,
		is_private, is_fork, is_archived,
		created_at, updated_at, pushed_at, fetched_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19
	)
	ON CONFLICT (node_id) DO UPDATE SET
		database_id     = EXCLUDED.database_id,
		name            = EXCLUDED.name,
		name_with_owner = EXCLUDED.name_with_owner,
		owner_login     = EXCLUDED.owner_login,
		owner_type      = EXCLUDED.owner_type,
		description     = EXCLUDED.description,
		stars           = EXCLUDED.stars,
		forks           = EXCLUDED.forks,
		watchers        = EXCLUDED.watchers,
		open_issues     = EXCLUDED.open_issues,
		language        = EXCLUDED.language,
		is_private      = EXCLUDED.is_private,
		is_fork         = EXCLUDED.is_fork,
		is_archived     = EXCLUDED.is_archived,
		created_at      = EXCLUDED.created_at,
		updated_at      = EXCLUDED.updated_at,
		pushed_at       = EXCLUDED.pushed_at,
		fetched_at      = EXCLUDED.fetched_at`

const insertSnapshotSQL = `
	INSERT INTO github_repository_snapshots (
		repository_node_id, fetched_at, stars, forks, watchers, open_issues
	) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (repository_node_id, fetched_at) DO NOTHING`

// UpsertRepositories writes current state rows and one snapshot per record.
// Callers run it inside a transaction so a batch lands atomically
func (r *PG) UpsertRepositories(ctx context.Context, recs []domain.RepositoryRecord) (int, error) {
	for _, rec := range recs {
		if _, err := r.q.Exec(ctx, upsertRepositorySQL,
			rec.NodeID, rec.DatabaseID, rec.Name, rec.NameWithOwner,
			rec.OwnerLogin, rec.OwnerType, rec.Description,
			rec.Stars, rec.Forks, rec.Watchers, rec.OpenIssues, rec.Language,
			rec.IsPrivate, rec.IsFork, rec.IsArchived,
			rec.CreatedAt, rec.UpdatedAt, rec.PushedAt, rec.FetchedAt,
		); err != nil {
			return 0, perr.FromPostgresf(err, "upsert repository %s", rec.NodeID)
		}
		if _, err := r.q.Exec(ctx, insertSnapshotSQL,
			rec.NodeID, rec.FetchedAt, rec.Stars, rec.Forks, rec.Watchers, rec.OpenIssues,
		); err != nil {
			return 0, perr.FromPostgresf(err, "insert snapshot %s", rec.NodeID)
		}
	}
	return len(recs), nil
}

// EnsureSchema applies the embedded DDL, statement by statement
func (r *PG) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := r.q.Exec(ctx, stmt); err != nil {
			return perr.FromPostgres(err, "apply schema")
		}
	}
	return nil
}

const selectRepositoriesSQL = `
	SELECT
		node_id, database_id, name, name_with_owner,
		owner_login, owner_type, description,
		stars, forks, watchers, open_issues, language,
		is_private, is_fork, is_archived,
		created_at, updated_at, pushed_at, fetched_at
	FROM github_repositories
	ORDER BY stars DESC, node_id`

// ForEachRepository streams current state rows, highest stars first
func (r *PG) ForEachRepository(ctx context.Context, fn func(domain.RepositoryRecord) error) error {
	rows, err := r.q.Query(ctx, selectRepositoriesSQL)
	if err != nil {
		return perr.FromPostgres(err, "select repositories")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec    domain.RepositoryRecord
			dbID   sql.NullInt64
			desc   sql.NullString
			lang   sql.NullString
			pushed sql.NullTime
		)
		if err := rows.Scan(
			&rec.NodeID, &dbID, &rec.Name, &rec.NameWithOwner,
			&rec.OwnerLogin, &rec.OwnerType, &desc,
			&rec.Stars, &rec.Forks, &rec.Watchers, &rec.OpenIssues, &lang,
			&rec.IsPrivate, &rec.IsFork, &rec.IsArchived,
			&rec.CreatedAt, &rec.UpdatedAt, &pushed, &rec.FetchedAt,
		); err != nil {
			return perr.FromPostgres(err, "scan repository row")
		}
		if dbID.Valid {
			rec.DatabaseID = ptime.PtrOf(dbID.Int64)
		}
		if desc.Valid {
			rec.Description = ptime.PtrOf(desc.String)
		}
		if lang.Valid {
			rec.Language = ptime.PtrOf(lang.String)
		}
		if pushed.Valid {
			rec.PushedAt = ptime.Ptr(pushed.Time)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return perr.FromPostgres(err, "iterate repositories")
	}
	return nil
}
