package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"repocrawl/internal/modkit/repokit"
	perr "repocrawl/internal/platform/errors"
	"repocrawl/internal/services/crawl/domain"
)

// InitSchema creates the crawl tables if they do not exist
func (s *Service) InitSchema(ctx context.Context) error {
	return repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		return s.storage.Bind(q).EnsureSchema(ctx)
	})
}

var csvHeader = []string{
	"node_id", "name_with_owner", "owner_login", "owner_type",
	"stars", "forks", "watchers", "open_issues", "language",
	"is_fork", "is_archived", "created_at", "pushed_at", "fetched_at",
}

// ExportCSV streams the stored repositories to w as CSV, highest stars first
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "write csv header")
	}
	err := s.storage.Bind(s.db).ForEachRepository(ctx, func(rec domain.RepositoryRecord) error {
		return cw.Write(csvRow(rec))
	})
	if err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "flush csv")
	}
	return nil
}

func csvRow(rec domain.RepositoryRecord) []string {
	lang := ""
	if rec.Language != nil {
		lang = *rec.Language
	}
	pushed := ""
	if rec.PushedAt != nil {
		pushed = rec.PushedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		rec.NodeID,
		rec.NameWithOwner,
		rec.OwnerLogin,
		rec.OwnerType,
		strconv.Itoa(rec.Stars),
		strconv.Itoa(rec.Forks),
		strconv.Itoa(rec.Watchers),
		strconv.Itoa(rec.OpenIssues),
		lang,
		strconv.FormatBool(rec.IsFork),
		strconv.FormatBool(rec.IsArchived),
		rec.CreatedAt.UTC().Format(time.RFC3339),
		pushed,
		rec.FetchedAt.UTC().Format(time.RFC3339),
	}
}
