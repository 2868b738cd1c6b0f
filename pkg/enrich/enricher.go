// Package enrich resolves account summaries to full profiles with a bounded
// pool of concurrent profile lookups.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/Sternrassler/igdump/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var profilesEnrichedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "igdump_profiles_enriched_total",
	Help: "Total account summaries resolved to profiles",
})

// ProfileGetter looks up one profile by username.
type ProfileGetter interface {
	GetProfile(ctx context.Context, username string) (client.Profile, error)
}

// Enricher fans profile lookups out over a worker pool.
type Enricher struct {
	getter ProfileGetter
	logger zerolog.Logger
}

// New creates an enricher backed by getter.
func New(getter ProfileGetter) *Enricher {
	return &Enricher{
		getter: getter,
		logger: logging.NewLogger("enricher"),
	}
}

// Enrich looks up the profile of every summary.
//
// At most concurrency lookups run at once; concurrency <= 0 runs one worker per
// summary and 1 is strictly serial. The first failure cancels the lookups not
// yet finished and fails the batch; no partial result is returned. On success
// profiles[i] belongs to summaries[i].
func (e *Enricher) Enrich(ctx context.Context, summaries []client.AccountSummary, concurrency int) ([]client.Profile, error) {
	start := time.Now()
	profiles := make([]client.Profile, len(summaries))
	if len(summaries) == 0 {
		return profiles, nil
	}

	if concurrency <= 0 || concurrency > len(summaries) {
		concurrency = len(summaries)
	}

	e.logger.Info().
		Int("accounts", len(summaries)).
		Int("workers", concurrency).
		Msg("Starting enrichment")

	if concurrency == 1 {
		for i, summary := range summaries {
			profile, err := e.getter.GetProfile(ctx, summary.Username)
			if err != nil {
				return nil, fmt.Errorf("enrich %q: %w", summary.Username, err)
			}
			profilesEnrichedTotal.Inc()
			profiles[i] = profile
		}
	} else {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(concurrency)

		for i, summary := range summaries {
			group.Go(func() error {
				profile, err := e.getter.GetProfile(groupCtx, summary.Username)
				if err != nil {
					return fmt.Errorf("enrich %q: %w", summary.Username, err)
				}
				profilesEnrichedTotal.Inc()
				profiles[i] = profile
				return nil
			})
		}

		if err := group.Wait(); err != nil {
			e.logger.Warn().Err(err).Msg("Enrichment failed, discarding batch")
			return nil, err
		}
	}

	e.logger.Info().
		Int("profiles", len(profiles)).
		Dur("duration", time.Since(start)).
		Msg("Enrichment complete")

	return profiles, nil
}

// Dedup drops repeated account ids, keeping the first occurrence.
func Dedup(summaries []client.AccountSummary) []client.AccountSummary {
	seen := make(map[int64]struct{}, len(summaries))
	out := make([]client.AccountSummary, 0, len(summaries))
	for _, s := range summaries {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}
