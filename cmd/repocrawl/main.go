// Command repocrawl builds a catalog of public GitHub repositories in
// postgres by walking the creation-time axis through the search API
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"repocrawl/internal/modkit"
	"repocrawl/internal/modkit/module"
	"repocrawl/internal/modkit/repokit"
	"repocrawl/internal/platform/config"
	"repocrawl/internal/platform/logger"
	"repocrawl/internal/platform/store"

	crawlmod "repocrawl/internal/services/crawl/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	var (
		fInitDB = flag.Bool("init-db", false, "create the schema and exit")
		fDump   = flag.String("dump", "", "export stored repositories as CSV to the given path ('-' for stdout) and exit")
		fCount  = flag.Int("count", 0, "target repository count (overrides TARGET_REPOSITORY_COUNT)")
		fStart  = flag.String("start", "", "creation range start, RFC3339 (overrides CREATED_RANGE_START)")
		fToken  = flag.String("token", "", "GitHub token (overrides GITHUB_TOKEN)")
		fDSN    = flag.String("dsn", "", "postgres DSN (overrides DATABASE_DSN)")
	)
	flag.Parse()

	l := logger.Get()

	// Surface flag overrides to modules that read FromConfig
	mustSetEnv("GITHUB_TOKEN", *fToken)
	mustSetEnv("DATABASE_DSN", *fDSN)
	mustSetEnv("CREATED_RANGE_START", *fStart)
	if *fCount > 0 {
		mustSetEnv("TARGET_REPOSITORY_COUNT", strconv.Itoa(*fCount))
	}

	root := config.New()
	dbCfg := root.Prefix("DATABASE_")
	pgCfg := root.Prefix("PG_")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "repocrawl",
		PG: store.PGConfig{
			Enabled:          true,
			URL:              dbCfg.MustString("DSN"),
			MaxConns:         int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs:      pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:           pgCfg.MayBool("LOG_SQL", false),
			StatementTimeout: dbCfg.MayDuration("STATEMENT_TIMEOUT", 60*time.Second),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// fail fast before any work if the database is unreachable
	repokit.MustGuard(ctx, st)

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Log: *l,
	}

	// -dump and -init-db only need the storage side; a token is still read
	// because the module builds its transport eagerly
	cm, err := crawlmod.New(deps, crawlmod.FromConfig(root))
	if err != nil {
		l.Fatal().Err(err).Msg("crawl module init failed")
	}
	module.Register(cm.Name(), cm.Ports())
	ports := cm.Ports().(crawlmod.Ports)

	switch {
	case *fInitDB:
		if err := ports.Admin.InitSchema(ctx); err != nil {
			l.Fatal().Err(err).Msg("schema init failed")
		}
		l.Info().Msg("schema ready")
		return

	case *fDump != "":
		out := os.Stdout
		if *fDump != "-" {
			f, err := os.Create(*fDump)
			if err != nil {
				l.Fatal().Err(err).Str("path", *fDump).Msg("cannot create dump file")
			}
			defer f.Close()
			out = f
		}
		if err := ports.Admin.ExportCSV(ctx, out); err != nil {
			l.Fatal().Err(err).Msg("csv export failed")
		}
		return

	default:
		res, err := ports.Runner.Crawl(ctx)
		if err != nil {
			l.Fatal().Err(err).
				Int("written", res.RepositoriesWritten).
				Msg("crawl failed")
		}
		ev := l.Info().
			Str("run_id", res.RunID).
			Int("written", res.RepositoriesWritten).
			Int("ranges", res.RangesPlanned).
			Int("ranges_failed", res.RangesFailed).
			Dur("elapsed", res.FinishedAt.Sub(res.StartedAt))
		if res.RateLimitRemaining != nil {
			ev = ev.Int("rate_limit_remaining", *res.RateLimitRemaining)
		}
		ev.Msg("crawl complete")
	}
}
