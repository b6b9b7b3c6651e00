package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/ai"
)

type ProcessStats struct {
	Examined  int `json:"examined"`
	Processed int `json:"processed"`
	Remaining int `json:"remaining"`
}

// ProcessPending runs AI classification over cached tenders that have not
// been enriched yet. Rows are marked processed only after classification
// succeeds, so a crashed or failed run leaves them pending for the next one.
// An item may therefore be classified more than once, never lost.
func (p *Pipeline) ProcessPending(ctx context.Context, batchSize int) (ProcessStats, error) {
	if batchSize <= 0 {
		batchSize = 20
	}

	batch, err := p.Store.ListUnprocessed(ctx, batchSize)
	if err != nil {
		return ProcessStats{}, err
	}
	stats := ProcessStats{Examined: len(batch)}
	if len(batch) == 0 {
		return stats, nil
	}

	if p.Generator == nil {
		// Nothing to enrich with. Drain the backlog so imports stay usable.
		for _, t := range batch {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := p.Store.MarkProcessed(ctx, t.ID); err != nil {
				p.Logger.Error("mark processed failed", zap.String("secop_id", t.SecopID), zap.Error(err))
				stats.Remaining++
				continue
			}
			stats.Processed++
		}
		return stats, nil
	}

	inputs := make([]ai.ProcessInput, 0, len(batch))
	for _, t := range batch {
		inputs = append(inputs, ai.ProcessInput{
			ID:          t.SecopID,
			Title:       t.Title,
			Description: t.Description,
		})
	}

	classifications := ai.ClassifyProcesses(ctx, p.Generator, inputs, p.Logger)
	byID := make(map[string]ai.ProcessClassification, len(classifications))
	for _, c := range classifications {
		byID[c.ID] = c
	}

	for _, t := range batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		c, ok := byID[t.SecopID]
		if !ok {
			// Classification came back without this item, retry next run.
			stats.Remaining++
			continue
		}
		if err := p.Store.SaveClassification(ctx, t.ID, c.IsCorporate, c.IsActionable, c.Advice); err != nil {
			p.Logger.Error("save classification failed", zap.String("secop_id", t.SecopID), zap.Error(err))
			stats.Remaining++
			continue
		}
		p.Logger.Info("tender classified",
			zap.String("secop_id", t.SecopID),
			zap.Bool("corporate", c.IsCorporate),
			zap.Bool("actionable", c.IsActionable))
		stats.Processed++
	}

	return stats, nil
}
