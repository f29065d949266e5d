package module

import (
	stderrs "errors"
	"time"

	"github.com/go-playground/validator/v10"

	"repocrawl/internal/adapters/github"
	"repocrawl/internal/platform/config"
	perr "repocrawl/internal/platform/errors"
)

// Options carries the crawl module tunables, sourced from the environment
type Options struct {
	Token          string        `validate:"required"`
	GraphQLURL     string        `validate:"required,url"`
	UserAgent      string        `validate:"required"`
	MaxConcurrency int           `validate:"min=1,max=64"`
	PageSize       int           `validate:"min=1,max=100"`
	MaxRetries     int           `validate:"min=1"`
	InitialBackoff time.Duration `validate:"gt=0"`
	MaxBackoff     time.Duration `validate:"gt=0,gtefield=InitialBackoff"`
	RequestTimeout time.Duration `validate:"gt=0"`
	BatchSize      int           `validate:"min=1"`
	TargetCount    int           `validate:"min=1"`
	SearchLimit    int           `validate:"min=1"`
	RangeStart     time.Time     `validate:"required"`
}

// defaultRangeStart predates the provider's launch, so the initial range
// covers every public repository
var defaultRangeStart = time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)

// FromConfig reads Options from env. GITHUB_TOKEN is the only hard
// requirement; everything else has a default
func FromConfig(cfg config.Conf) Options {
	gh := cfg.Prefix("GITHUB_")
	db := cfg.Prefix("DATABASE_")
	return Options{
		Token:          gh.MustString("TOKEN"),
		GraphQLURL:     gh.MayString("GRAPHQL_URL", github.DefaultEndpoint),
		UserAgent:      gh.MayString("USER_AGENT", "repocrawl/1.0"),
		MaxConcurrency: gh.MayInt("MAX_CONCURRENCY", 12),
		PageSize:       gh.MayInt("PAGE_SIZE", 100),
		MaxRetries:     gh.MayInt("MAX_RETRIES", 6),
		InitialBackoff: gh.MayDuration("INITIAL_BACKOFF", 1*time.Second),
		MaxBackoff:     gh.MayDuration("MAX_BACKOFF", 30*time.Second),
		RequestTimeout: gh.MayDuration("REQUEST_TIMEOUT", 40*time.Second),
		BatchSize:      db.MayInt("BATCH_SIZE", 500),
		TargetCount:    cfg.MayInt("TARGET_REPOSITORY_COUNT", 100000),
		SearchLimit:    cfg.MayInt("SEARCH_RESULT_LIMIT", 1000),
		RangeStart:     cfg.MayTime("CREATED_RANGE_START", defaultRangeStart),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the options, mapping the first violation to a field-tagged
// validation error
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stderrs.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return perr.WithField(
			perr.Validationf("crawl options: %s fails %q", f.Field(), f.Tag()),
			f.Field(),
		)
	}
	return perr.Wrap(err, perr.ErrorCodeValidation, "crawl options")
}
