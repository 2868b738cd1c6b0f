package pagination

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/Sternrassler/igdump/pkg/endpoint"
	"github.com/Sternrassler/igdump/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is the largest page the following endpoint serves.
const DefaultPageSize = 200

// DefaultMaxPages caps the pages planned for one walk. Instagram limits an
// account to 7500 follows, so real plans stay far below it.
const DefaultMaxPages = 10000

var pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "igdump_pages_fetched_total",
	Help: "Total following pages fetched",
})

// Mode selects how page requests are issued.
type Mode string

const (
	// ModeSerial issues one page request at a time, in offset order.
	ModeSerial Mode = "serial"

	// ModeParallel issues page requests from a bounded pool of workers.
	ModeParallel Mode = "parallel"
)

// State is the paginator's position in a walk.
type State string

const (
	StateStart  State = "start"
	StatePaging State = "paging"
	StateDone   State = "done"
	StateFailed State = "failed"
)

// Config holds paginator configuration.
type Config struct {
	// PageSize is sent as count and is the stride between offsets.
	PageSize int

	// Mode selects serial or parallel page requests.
	Mode Mode

	// Concurrency bounds parallel page requests. Values <= 0 run one worker per page.
	Concurrency int

	// MaxPages rejects a declared count that would plan more pages.
	// Values <= 0 mean DefaultMaxPages.
	MaxPages int
}

// DefaultConfig returns the configuration used by the command line tool.
func DefaultConfig() Config {
	return Config{
		PageSize:    DefaultPageSize,
		Mode:        ModeParallel,
		Concurrency: 0,
		MaxPages:    DefaultMaxPages,
	}
}

// PageFetcher is the subset of the API client the paginator drives.
type PageFetcher interface {
	GetProfile(ctx context.Context, username string) (client.Profile, error)
	GetFollowingPage(ctx context.Context, userID int64, offset, pageSize int) (client.Page, error)
}

// Result is the outcome of a complete walk.
type Result struct {
	// Subject is the profile whose following list was walked.
	Subject client.Profile

	// Summaries is the concatenation of all pages in offset order.
	Summaries []client.AccountSummary

	// Offsets lists the requested offsets in order.
	Offsets []int
}

// Paginator walks the following list of one account.
type Paginator struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewPaginator creates a paginator. Zero config fields fall back to DefaultConfig.
func NewPaginator(fetcher PageFetcher, config Config) *Paginator {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Mode == "" {
		config.Mode = ModeParallel
	}
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultMaxPages
	}

	return &Paginator{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("paginator"),
		state:   StateStart,
	}
}

// State returns the current walk state.
func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Paginator) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.logger.Debug().Str("state", string(s)).Msg("Paginator state")
}

// PageCount returns how many pages Offsets plans for a declared following
// count, without allocating. Negative counts are treated as zero.
func PageCount(declared int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	if declared < 0 {
		declared = 0
	}
	ps := int64(pageSize)
	n := declared/ps + 1
	if declared%ps != 0 {
		n++
	}
	return n
}

// Offsets returns the max_id offsets to request for a declared following
// count: pageSize, 2*pageSize, ... up to and including the first offset
// >= declared+pageSize. Negative counts are treated as zero. A plan whose
// last offset does not fit in an int32 returns nil.
func Offsets(declared int64, pageSize int) []int {
	n := PageCount(declared, pageSize)
	if n == 0 || n > math.MaxInt32/int64(pageSize) {
		return nil
	}

	offsets := make([]int, n)
	for i := range offsets {
		offsets[i] = (i + 1) * pageSize
	}
	return offsets
}

// FetchAll looks up username and walks its complete following list.
func (p *Paginator) FetchAll(ctx context.Context, username string) (*Result, error) {
	p.setState(StateStart)

	subject, err := p.fetcher.GetProfile(ctx, username)
	if err != nil {
		p.setState(StateFailed)
		return nil, fmt.Errorf("get subject profile %q: %w", username, err)
	}

	return p.Walk(ctx, subject)
}

// Walk requests every page of subject's following list.
func (p *Paginator) Walk(ctx context.Context, subject client.Profile) (*Result, error) {
	start := time.Now()

	if pages := PageCount(subject.DeclaredFollowing, p.config.PageSize); pages > int64(p.config.MaxPages) {
		p.setState(StateFailed)
		return nil, &client.DecodeError{
			Endpoint: endpoint.ProfileLookup,
			Reason: fmt.Sprintf("following count %d of %q needs %d pages (max %d)",
				subject.DeclaredFollowing, subject.Username, pages, p.config.MaxPages),
		}
	}
	offsets := Offsets(subject.DeclaredFollowing, p.config.PageSize)

	p.setState(StatePaging)
	p.logger.Info().
		Str("username", subject.Username).
		Int64("user_id", subject.ID).
		Int64("declared_following", subject.DeclaredFollowing).
		Int("total_pages", len(offsets)).
		Str("mode", string(p.config.Mode)).
		Msg("Starting page fetch")

	var pages [][]client.AccountSummary
	var err error
	if p.config.Mode == ModeSerial {
		pages, err = p.fetchSerial(ctx, subject.ID, offsets)
	} else {
		pages, err = p.fetchParallel(ctx, subject.ID, offsets)
	}
	if err != nil {
		p.setState(StateFailed)
		p.logger.Warn().Err(err).Str("username", subject.Username).Msg("Page fetch failed, discarding pages")
		return nil, err
	}

	total := 0
	for _, page := range pages {
		total += len(page)
	}
	summaries := make([]client.AccountSummary, 0, total)
	for _, page := range pages {
		summaries = append(summaries, page...)
	}

	if int64(total) != subject.DeclaredFollowing {
		p.logger.Warn().
			Int64("declared_following", subject.DeclaredFollowing).
			Int("fetched", total).
			Msg("Following count drifted during paging")
	}

	p.setState(StateDone)
	p.logger.Info().
		Str("username", subject.Username).
		Int("pages", len(offsets)).
		Int("accounts", total).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return &Result{Subject: subject, Summaries: summaries, Offsets: offsets}, nil
}

func (p *Paginator) fetchSerial(ctx context.Context, userID int64, offsets []int) ([][]client.AccountSummary, error) {
	pages := make([][]client.AccountSummary, len(offsets))
	for i, offset := range offsets {
		page, err := p.fetcher.GetFollowingPage(ctx, userID, offset, p.config.PageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		pagesFetchedTotal.Inc()
		pages[i] = page.Users
	}
	return pages, nil
}

// fetchParallel writes each page into its own slot so no lock is needed.
func (p *Paginator) fetchParallel(ctx context.Context, userID int64, offsets []int) ([][]client.AccountSummary, error) {
	pages := make([][]client.AccountSummary, len(offsets))

	group, groupCtx := errgroup.WithContext(ctx)
	limit := p.config.Concurrency
	if limit <= 0 {
		limit = len(offsets)
	}
	group.SetLimit(limit)

	for i, offset := range offsets {
		group.Go(func() error {
			page, err := p.fetcher.GetFollowingPage(groupCtx, userID, offset, p.config.PageSize)
			if err != nil {
				return fmt.Errorf("fetch page at offset %d: %w", offset, err)
			}
			pagesFetchedTotal.Inc()
			pages[i] = page.Users
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}
