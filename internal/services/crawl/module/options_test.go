package module

import (
	"testing"
	"time"

	"repocrawl/internal/adapters/github"
	"repocrawl/internal/platform/config"
	perr "repocrawl/internal/platform/errors"
)

func baseOptions() Options {
	return Options{
		Token:          "tok",
		GraphQLURL:     "https://api.github.com/graphql",
		UserAgent:      "repocrawl/1.0",
		MaxConcurrency: 12,
		PageSize:       100,
		MaxRetries:     6,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		RequestTimeout: 40 * time.Second,
		BatchSize:      500,
		TargetCount:    100000,
		SearchLimit:    1000,
		RangeStart:     defaultRangeStart,
	}
}

func TestFromConfigDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok-from-env")

	o := FromConfig(config.New())
	if o.Token != "tok-from-env" {
		t.Fatalf("token = %q", o.Token)
	}
	if o.GraphQLURL != github.DefaultEndpoint {
		t.Fatalf("url = %q", o.GraphQLURL)
	}
	if o.MaxConcurrency != 12 || o.PageSize != 100 || o.MaxRetries != 6 {
		t.Fatalf("transport defaults wrong: %+v", o)
	}
	if o.BatchSize != 500 || o.TargetCount != 100000 || o.SearchLimit != 1000 {
		t.Fatalf("engine defaults wrong: %+v", o)
	}
	if !o.RangeStart.Equal(defaultRangeStart) {
		t.Fatalf("range start = %v", o.RangeStart)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFromConfigOverrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_PAGE_SIZE", "50")
	t.Setenv("GITHUB_MAX_BACKOFF", "2m")
	t.Setenv("DATABASE_BATCH_SIZE", "100")
	t.Setenv("TARGET_REPOSITORY_COUNT", "5000")
	t.Setenv("CREATED_RANGE_START", "2015-06-01T00:00:00Z")

	o := FromConfig(config.New())
	if o.PageSize != 50 {
		t.Fatalf("page size = %d", o.PageSize)
	}
	if o.MaxBackoff != 2*time.Minute {
		t.Fatalf("max backoff = %v", o.MaxBackoff)
	}
	if o.BatchSize != 100 || o.TargetCount != 5000 {
		t.Fatalf("engine overrides wrong: %+v", o)
	}
	want := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	if !o.RangeStart.Equal(want) {
		t.Fatalf("range start = %v, want %v", o.RangeStart, want)
	}
}

func TestValidateRejectsBadOptions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing token", func(o *Options) { o.Token = "" }},
		{"bad url", func(o *Options) { o.GraphQLURL = "not a url" }},
		{"zero concurrency", func(o *Options) { o.MaxConcurrency = 0 }},
		{"page size over provider max", func(o *Options) { o.PageSize = 101 }},
		{"backoff inverted", func(o *Options) { o.MaxBackoff = time.Millisecond }},
		{"zero target", func(o *Options) { o.TargetCount = 0 }},
		{"zero range start", func(o *Options) { o.RangeStart = time.Time{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := baseOptions()
			tc.mutate(&o)
			err := o.Validate()
			if err == nil {
				t.Fatal("want validation error, got nil")
			}
			if !perr.IsCode(err, perr.ErrorCodeValidation) {
				t.Fatalf("code = %v, want validation", perr.CodeOf(err))
			}
		})
	}
}
