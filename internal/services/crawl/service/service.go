// Package service implements the crawl engine: range planning, concurrent
// page fetching, dedup and batched persistence
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"repocrawl/internal/modkit/repokit"
	"repocrawl/internal/platform/logger"
	"repocrawl/internal/services/crawl/domain"
	"repocrawl/internal/services/crawl/planner"
	"repocrawl/internal/services/crawl/ratelimit"
)

// Config sizes the engine. Zero fields fall back to defaults
type Config struct {
	PageSize       int
	BatchSize      int
	MaxConcurrency int
	TargetCount    int
	SearchLimit    int
	RangeStart     time.Time
}

const (
	defaultPageSize       = 100
	defaultBatchSize      = 500
	defaultMaxConcurrency = 12
	defaultSearchLimit    = 1000
)

// Service is the crawl engine. It implements domain.RunnerPort and
// domain.AdminPort, and doubles as the planner's counter
type Service struct {
	db      repokit.TxRunner
	storage repokit.Binder[domain.StorageRepo]
	api     domain.SearchPort
	limiter *ratelimit.Coordinator
	gate    *semaphore.Weighted
	cfg     Config

	now func() time.Time
}

// New builds the engine. db, storage and api are required
func New(db repokit.TxRunner, storage repokit.Binder[domain.StorageRepo], api domain.SearchPort, limiter *ratelimit.Coordinator, cfg Config) *Service {
	if db == nil {
		panic("crawl: nil tx runner")
	}
	if storage == nil {
		panic("crawl: nil storage binder")
	}
	if api == nil {
		panic("crawl: nil search port")
	}
	if limiter == nil {
		panic("crawl: nil rate limit coordinator")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	return &Service{
		db:      db,
		storage: storage,
		api:     api,
		limiter: limiter,
		gate:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		cfg:     cfg,
		now:     time.Now,
	}
}

// CountRange asks the provider how many repositories a range matches, gated
// by the budget coordinator and the in-flight semaphore
func (s *Service) CountRange(ctx context.Context, r domain.TimeRange) (int, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return 0, err
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	n, rl, err := s.api.CountRepositories(ctx, r.SearchQuery())
	s.gate.Release(1)
	if err != nil {
		s.limiter.Reset()
		return 0, err
	}
	if rl != nil {
		s.limiter.Record(*rl)
	}
	return n, nil
}

func (s *Service) fetchPage(ctx context.Context, r domain.TimeRange, first int, after string) (*domain.SearchPage, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	page, rl, err := s.api.SearchRepositories(ctx, r.SearchQuery(), first, after)
	s.gate.Release(1)
	if err != nil {
		s.limiter.Reset()
		return nil, err
	}
	if rl != nil {
		s.limiter.Record(*rl)
	}
	return page, nil
}

// seenSet dedupes node ids across producers
type seenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newSeenSet() *seenSet { return &seenSet{ids: make(map[string]struct{})} }

// add returns false when id was already present
func (s *seenSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

type writeOutcome struct {
	written int
	err     error
}

// Crawl plans the creation-time axis, fetches repositories concurrently and
// persists them in batches. Individual range failures are logged and counted
// but do not abort the run; a persistence failure does
func (s *Service) Crawl(ctx context.Context) (domain.CrawlResult, error) {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	log := logger.C(ctx)

	started := s.now().UTC()
	res := domain.CrawlResult{RunID: runID, StartedAt: started}

	initial := domain.TimeRange{Start: s.cfg.RangeStart.UTC(), End: started}
	log.Info().
		Str("range", initial.String()).
		Int("target", s.cfg.TargetCount).
		Int("page_size", s.cfg.PageSize).
		Int("batch_size", s.cfg.BatchSize).
		Msg("crawl starting")

	pl := planner.New(s, s.cfg.SearchLimit, *log)
	plans, err := pl.Plan(ctx, initial, s.cfg.TargetCount)
	if err != nil {
		res.FinishedAt = s.now().UTC()
		return res, err
	}
	res.RangesPlanned = len(plans)
	log.Info().Int("ranges", len(plans)).Msg("range plan complete")

	prodCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan domain.RepositoryRecord, 2*s.cfg.BatchSize)
	done := make(chan writeOutcome, 1)
	go s.writeLoop(ctx, records, done, cancel)

	seen := newSeenSet()
	var accepted atomic.Int64
	var failed atomic.Int64
	var wg sync.WaitGroup
	for _, p := range plans {
		wg.Add(1)
		go func(p domain.RangePlan) {
			defer wg.Done()
			if err := s.crawlRange(prodCtx, p, records, seen, &accepted); err != nil {
				if prodCtx.Err() != nil {
					return
				}
				failed.Add(1)
				log.Warn().
					Str("range", p.Range.String()).
					Int("expected", p.Count).
					Err(err).
					Msg("range crawl failed, continuing with remaining ranges")
			}
		}(p)
	}
	wg.Wait()
	close(records)
	out := <-done

	res.RepositoriesWritten = out.written
	res.RangesFailed = int(failed.Load())
	if rem, ok := s.limiter.Remaining(); ok {
		res.RateLimitRemaining = &rem
	}
	res.FinishedAt = s.now().UTC()

	if out.err != nil {
		return res, out.err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	log.Info().
		Int("written", res.RepositoriesWritten).
		Int("ranges_failed", res.RangesFailed).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("crawl finished")
	return res, nil
}

// crawlRange pages one planned range until its requested share is enqueued,
// the range is exhausted, or the producers are cancelled. Duplicates do not
// consume the share; the next page makes up for them
func (s *Service) crawlRange(ctx context.Context, p domain.RangePlan, out chan<- domain.RepositoryRecord, seen *seenSet, accepted *atomic.Int64) error {
	after := ""
	remaining := p.Requested
	for remaining > 0 {
		page, err := s.fetchPage(ctx, p.Range, min(s.cfg.PageSize, remaining), after)
		if err != nil {
			return err
		}
		fetchedAt := s.now().UTC()
		for _, n := range page.Nodes {
			if remaining == 0 {
				break
			}
			if !seen.add(n.ID) {
				continue
			}
			// reserve a slot before sending; the shares already sum to at
			// most the target, this cap only guards against plan drift
			if accepted.Add(1) > int64(s.cfg.TargetCount) {
				accepted.Add(-1)
				return nil
			}
			select {
			case out <- domain.RecordFromNode(n, fetchedAt):
				remaining--
			case <-ctx.Done():
				accepted.Add(-1)
				return ctx.Err()
			}
		}
		if !page.HasNextPage || len(page.Nodes) == 0 {
			return nil
		}
		after = page.EndCursor
	}
	return nil
}

// writeLoop drains records into batched transactional upserts. On the first
// write failure it cancels the producers and keeps draining so they never
// block on send
func (s *Service) writeLoop(ctx context.Context, records <-chan domain.RepositoryRecord, done chan<- writeOutcome, cancel context.CancelFunc) {
	log := logger.C(ctx)
	written := 0
	var werr error
	batch := make([]domain.RepositoryRecord, 0, s.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 || werr != nil {
			return
		}
		err := repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
			n, err := s.storage.Bind(q).UpsertRepositories(ctx, batch)
			if err != nil {
				return err
			}
			written += n
			return nil
		})
		if err != nil {
			werr = err
			cancel()
			log.Error().Err(err).Int("batch", len(batch)).Msg("batch write failed, aborting crawl")
		} else {
			log.Debug().Int("batch", len(batch)).Int("total", written).Msg("batch written")
		}
		batch = batch[:0]
	}

	for rec := range records {
		if werr != nil {
			continue
		}
		batch = append(batch, rec)
		if len(batch) >= s.cfg.BatchSize {
			flush()
		}
	}
	flush()
	done <- writeOutcome{written: written, err: werr}
}
