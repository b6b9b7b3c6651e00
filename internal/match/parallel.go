package match

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mvargas/tender-scout/internal/models"
)

const defaultScoreWorkers = 8

// ScoreAll scores every listing with the given strategy. Scoring is pure and
// has no ordering dependency between tenders, so the work fans out across a
// bounded worker pool; results land at their input index, preserving order.
func ScoreAll(ctx context.Context, strategy ScoringStrategy, p Profile, listings []models.TenderListing, workers int) ([]ScoredTender, error) {
	if workers <= 0 {
		workers = defaultScoreWorkers
	}

	results := make([]ScoredTender, len(listings))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, listing := range listings {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = ScoredTender{
				Listing:   listing,
				Scorecard: strategy.Score(p, listing),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
