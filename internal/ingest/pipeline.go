package ingest

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/ai"
	"github.com/mvargas/tender-scout/internal/models"
	"github.com/mvargas/tender-scout/internal/secop"
	"github.com/mvargas/tender-scout/internal/unspsc"
)

// TenderStore is the slice of db.Store the pipeline needs. Tests swap in an
// in-memory fake.
type TenderStore interface {
	HistoricalExists(ctx context.Context, secopID string) (bool, error)
	InsertHistoricalTender(ctx context.Context, t *models.HistoricalTender) error
	ListUnprocessed(ctx context.Context, limit int) ([]models.HistoricalTender, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	SaveClassification(ctx context.Context, id uuid.UUID, isCorporate, isActionable bool, advice string) error
	StartImportRun(ctx context.Context, sourceID string) (uuid.UUID, error)
	FinishImportRun(ctx context.Context, runID uuid.UUID, status string, fetched, inserted, skipped, errCount int) error
}

// Embedder produces the semantic vector stored alongside each tender.
type Embedder interface {
	Enabled() bool
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Pipeline struct {
	Source    secop.Source
	Store     TenderStore
	Embedder  Embedder
	Generator ai.JSONGenerator
	Logger    *zap.Logger
	SourceID  string

	sanitizer *bluemonday.Policy
}

func NewPipeline(source secop.Source, store TenderStore, embedder Embedder, gen ai.JSONGenerator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		Source:    source,
		Store:     store,
		Embedder:  embedder,
		Generator: gen,
		Logger:    logger,
		SourceID:  "secop2",
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Stats summarizes one import run.
type Stats struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// ImportRecent fetches up to limit recent processes, deduplicates against the
// local cache by SECOP process ID and inserts the rest. A failure on one item
// is logged and counted, the loop keeps going. Embeddings are best effort:
// when the embedder is disabled or errors out the row is stored without one.
func (p *Pipeline) ImportRecent(ctx context.Context, query string, limit int) (Stats, error) {
	stats := Stats{}

	runID, runErr := p.Store.StartImportRun(ctx, p.SourceID)
	if runErr != nil {
		p.Logger.Warn("could not record import run", zap.Error(runErr))
	}
	defer func() {
		if runErr != nil {
			return
		}
		// A run where dedup skips everything is a healthy run. Only flag it
		// failed when errors outweigh the items that went through.
		status := "completed"
		if stats.Errors > stats.Inserted+stats.Skipped {
			status = "failed"
		}
		if err := p.Store.FinishImportRun(context.WithoutCancel(ctx), runID, status,
			stats.Fetched, stats.Inserted, stats.Skipped, stats.Errors); err != nil {
			p.Logger.Warn("could not close import run", zap.Error(err))
		}
	}()

	listings, err := p.Source.Search(ctx, query, limit)
	if err != nil {
		stats.Errors++
		return stats, fmt.Errorf("secop search failed: %w", err)
	}
	stats.Fetched = len(listings)
	p.Logger.Info("fetched recent processes",
		zap.Int("count", len(listings)), zap.String("source", p.SourceID))

	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		exists, err := p.Store.HistoricalExists(ctx, listing.SecopID)
		if err != nil {
			stats.Errors++
			p.Logger.Error("dedup check failed",
				zap.String("secop_id", listing.SecopID), zap.Error(err))
			continue
		}
		if exists {
			stats.Skipped++
			continue
		}

		tender := p.toHistorical(listing)
		tender.Embedding = p.embed(ctx, listing)

		if err := p.Store.InsertHistoricalTender(ctx, &tender); err != nil {
			stats.Errors++
			p.Logger.Error("insert failed",
				zap.String("secop_id", listing.SecopID), zap.Error(err))
			continue
		}
		stats.Inserted++
	}

	p.Logger.Info("import finished",
		zap.Int("fetched", stats.Fetched),
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

func (p *Pipeline) toHistorical(listing models.TenderListing) models.HistoricalTender {
	title := listing.Reference
	if title == "" {
		title = truncate(listing.Description, 120)
	}
	region := listing.Department
	if region == "" {
		region = listing.City
	}
	if region == "" {
		region = "Colombia"
	}
	return models.HistoricalTender{
		SecopID:        listing.SecopID,
		Title:          p.clean(title),
		Description:    p.clean(listing.Description),
		Amount:         listing.Amount,
		Status:         listing.Phase,
		PublishedAt:    listing.PublishedAt,
		EntityName:     p.clean(listing.Entity),
		Region:         region,
		Category:       unspsc.Category(unspsc.Normalize(listing.CategoryCode)),
		ProcessedForAI: false,
	}
}

// embed builds the text the embedding is computed from. Order matters for
// cache hits on re-imports of the same process.
func (p *Pipeline) embed(ctx context.Context, listing models.TenderListing) []float32 {
	if p.Embedder == nil || !p.Embedder.Enabled() {
		return nil
	}
	text := strings.TrimSpace(strings.Join([]string{
		p.clean(listing.Description), p.clean(listing.Entity), listing.ContractType,
	}, " "))
	if text == "" {
		return nil
	}
	vec, err := p.Embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		p.Logger.Warn("embedding failed, storing without vector",
			zap.String("secop_id", listing.SecopID), zap.Error(err))
		return nil
	}
	return vec
}

// clean strips any HTML markup SECOP descriptions occasionally carry.
func (p *Pipeline) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(p.sanitizer.Sanitize(s)))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
