// Package dump runs one complete following-list dump: resolve the subject,
// walk every following page, enrich each account and hand the full result to
// a sink. Any failure aborts the run before the sink is touched.
package dump

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/Sternrassler/igdump/pkg/enrich"
	"github.com/Sternrassler/igdump/pkg/logging"
	"github.com/Sternrassler/igdump/pkg/pagination"
	"github.com/Sternrassler/igdump/pkg/sink"
	"github.com/rs/zerolog"
)

// Config holds the run configuration.
type Config struct {
	// Username is the subject whose following list is dumped (REQUIRED).
	Username string

	// Mode is serial or parallel (default parallel).
	Mode pagination.Mode

	// Concurrency bounds in-flight requests in parallel mode.
	// Zero or less means one worker per page or account.
	Concurrency int

	// PageSize is the following page size (default 200).
	PageSize int

	// Dedup drops repeated account ids before enrichment.
	Dedup bool
}

// DefaultConfig returns a parallel run configuration for username.
func DefaultConfig(username string) Config {
	return Config{
		Username: username,
		Mode:     pagination.ModeParallel,
		PageSize: pagination.DefaultPageSize,
	}
}

// Report summarizes a successful run.
type Report struct {
	Subject   client.Profile
	Offsets   []int
	Summaries int
	Written   int
	Duration  time.Duration
}

// Dumper wires the pipeline stages together.
type Dumper struct {
	pages    pagination.PageFetcher
	profiles enrich.ProfileGetter
	sink     sink.Sink
	config   Config
	logger   zerolog.Logger
}

// New creates a dumper. profiles may be nil, in which case pages also serves
// profile lookups.
func New(pages pagination.PageFetcher, profiles enrich.ProfileGetter, out sink.Sink, cfg Config) (*Dumper, error) {
	if pages == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if out == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = pagination.ModeParallel
	}
	if cfg.Mode != pagination.ModeSerial && cfg.Mode != pagination.ModeParallel {
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = pagination.DefaultPageSize
	}
	if profiles == nil {
		profiles = pages
	}

	return &Dumper{
		pages:    pages,
		profiles: profiles,
		sink:     out,
		config:   cfg,
		logger:   logging.NewLogger("dump").With().Str("subject", cfg.Username).Logger(),
	}, nil
}

// Run executes the dump.
func (d *Dumper) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	pageConfig := pagination.DefaultConfig()
	pageConfig.PageSize = d.config.PageSize
	pageConfig.Mode = d.config.Mode
	pageConfig.Concurrency = d.config.Concurrency
	paginator := pagination.NewPaginator(d.pages, pageConfig)

	walk, err := paginator.FetchAll(ctx, d.config.Username)
	if err != nil {
		return nil, fmt.Errorf("walk following list: %w", err)
	}

	summaries := walk.Summaries
	if d.config.Dedup {
		before := len(summaries)
		summaries = enrich.Dedup(summaries)
		if dropped := before - len(summaries); dropped > 0 {
			d.logger.Info().Int("dropped", dropped).Msg("Removed duplicate accounts")
		}
	}

	workers := d.config.Concurrency
	if d.config.Mode == pagination.ModeSerial {
		workers = 1
	}

	profiles, err := enrich.New(d.profiles).Enrich(ctx, summaries, workers)
	if err != nil {
		return nil, fmt.Errorf("enrich accounts: %w", err)
	}

	if err := d.sink.Emit(ctx, profiles); err != nil {
		return nil, fmt.Errorf("emit results: %w", err)
	}

	report := &Report{
		Subject:   walk.Subject,
		Offsets:   walk.Offsets,
		Summaries: len(summaries),
		Written:   len(profiles),
		Duration:  time.Since(start),
	}

	d.logger.Info().
		Int("pages", len(report.Offsets)).
		Int("written", report.Written).
		Dur("duration", report.Duration).
		Msg("Dump complete")

	return report, nil
}
