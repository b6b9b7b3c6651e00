package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mvargas/tender-scout/internal/ai"
	"github.com/mvargas/tender-scout/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// historicalCols deliberately omits the embedding column: it is written at
// insert time and consumed only inside ORDER BY clauses.
const historicalCols = `id, secop_id, title, description, amount, status,
	published_at, entity_name, region, category, is_corporate, is_actionable,
	advice, processed_for_ai, created_at`

func scanHistoricalTender(scan func(dest ...interface{}) error) (models.HistoricalTender, error) {
	var t models.HistoricalTender
	err := scan(
		&t.ID, &t.SecopID, &t.Title, &t.Description, &t.Amount, &t.Status,
		&t.PublishedAt, &t.EntityName, &t.Region, &t.Category, &t.IsCorporate, &t.IsActionable,
		&t.Advice, &t.ProcessedForAI, &t.CreatedAt,
	)
	return t, err
}

// HistoricalExists is the dedup lookup used by the ingestion pipeline.
func (s *Store) HistoricalExists(ctx context.Context, secopID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM historical_tenders WHERE secop_id = $1)", secopID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup lookup failed: %w", err)
	}
	return exists, nil
}

func (s *Store) GetHistoricalTenderBySecopID(ctx context.Context, secopID string) (*models.HistoricalTender, error) {
	sql := fmt.Sprintf("SELECT %s FROM historical_tenders WHERE secop_id = $1", historicalCols)
	row := s.pool.QueryRow(ctx, sql, secopID)

	t, err := scanHistoricalTender(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	return &t, nil
}

// InsertHistoricalTender writes a new cache row. The UNIQUE constraint on
// secop_id rejects concurrent double-inserts; callers treat that as a
// per-item error and continue.
func (s *Store) InsertHistoricalTender(ctx context.Context, t *models.HistoricalTender) error {
	var embedding interface{}
	if len(t.Embedding) > 0 {
		embedding = pgvector.NewVector(t.Embedding)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO historical_tenders (
			secop_id, title, description, amount, status,
			published_at, entity_name, region, category, embedding, processed_for_ai
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		t.SecopID, t.Title, t.Description, t.Amount, t.Status,
		t.PublishedAt, t.EntityName, t.Region, t.Category, embedding, t.ProcessedForAI,
	)
	if err != nil {
		return fmt.Errorf("insert historical tender %s: %w", t.SecopID, err)
	}
	return nil
}

// ListUnprocessed returns up to limit rows still waiting for AI enrichment,
// oldest first so re-runs drain the backlog in order.
func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]models.HistoricalTender, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM historical_tenders
		WHERE processed_for_ai = FALSE
		ORDER BY created_at ASC
		LIMIT $1
	`, historicalCols)

	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed failed: %w", err)
	}
	defer rows.Close()

	var tenders []models.HistoricalTender
	for rows.Next() {
		t, err := scanHistoricalTender(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tenders = append(tenders, t)
	}
	return tenders, rows.Err()
}

// SaveClassification stores the AI labels and flips the processed flag in one
// statement, so a row can never end up processed without its metadata.
func (s *Store) SaveClassification(ctx context.Context, id uuid.UUID, isCorporate, isActionable bool, advice string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE historical_tenders SET
			is_corporate = $1,
			is_actionable = $2,
			advice = $3,
			processed_for_ai = TRUE
		WHERE id = $4
	`, isCorporate, isActionable, advice, id)
	if err != nil {
		return fmt.Errorf("save classification %s: %w", id, err)
	}
	return nil
}

func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE historical_tenders SET processed_for_ai = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	return nil
}

type HistoricalListParams struct {
	Status         string
	QueryEmbedding []float32
	Limit          int
	Offset         int
}

// ListHistoricalTenders pages through the cache. When a query embedding is
// provided rows are ordered by cosine distance, embedding-less rows last.
func (s *Store) ListHistoricalTenders(ctx context.Context, params HistoricalListParams) ([]models.HistoricalTender, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, params.Status)
		argIdx++
	}

	sql := fmt.Sprintf("SELECT %s FROM historical_tenders %s", historicalCols, where)

	if len(params.QueryEmbedding) > 0 {
		sql += fmt.Sprintf(`
			ORDER BY
				CASE WHEN embedding IS NULL THEN 1 ELSE 0 END ASC,
				embedding <=> $%d ASC,
				published_at DESC NULLS LAST
		`, argIdx)
		args = append(args, pgvector.NewVector(params.QueryEmbedding))
		argIdx++
	} else {
		sql += " ORDER BY published_at DESC NULLS LAST, created_at DESC"
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var tenders []models.HistoricalTender
	for rows.Next() {
		t, err := scanHistoricalTender(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tenders = append(tenders, t)
	}
	if tenders == nil {
		tenders = []models.HistoricalTender{}
	}
	return tenders, rows.Err()
}

func (s *Store) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, nit, city, economic_sector, unspsc_codes,
			liquidity_index, indebtedness_index, working_capital, equity,
			created_at, updated_at
		FROM companies WHERE id = $1
	`, id)

	var c models.Company
	var liquidity, indebtedness, workingCapital, equity *float64
	err := row.Scan(
		&c.ID, &c.Name, &c.NIT, &c.City, &c.EconomicSector, &c.UNSPSCCodes,
		&liquidity, &indebtedness, &workingCapital, &equity,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}

	if liquidity != nil || indebtedness != nil || workingCapital != nil || equity != nil {
		fi := &models.FinancialIndicators{}
		if liquidity != nil {
			fi.LiquidityIndex = *liquidity
		}
		if indebtedness != nil {
			fi.IndebtednessIndex = *indebtedness
		}
		if workingCapital != nil {
			fi.WorkingCapital = *workingCapital
		}
		if equity != nil {
			fi.Equity = *equity
		}
		c.FinancialIndicators = fi
	}

	return &c, nil
}

// SaveCompany upserts the company profile by ID.
func (s *Store) SaveCompany(ctx context.Context, c *models.Company) error {
	var liquidity, indebtedness, workingCapital, equity *float64
	if fi := c.FinancialIndicators; fi != nil {
		liquidity, indebtedness = &fi.LiquidityIndex, &fi.IndebtednessIndex
		workingCapital, equity = &fi.WorkingCapital, &fi.Equity
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO companies (id, name, nit, city, economic_sector, unspsc_codes,
			liquidity_index, indebtedness_index, working_capital, equity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			nit = EXCLUDED.nit,
			city = EXCLUDED.city,
			economic_sector = EXCLUDED.economic_sector,
			unspsc_codes = EXCLUDED.unspsc_codes,
			liquidity_index = EXCLUDED.liquidity_index,
			indebtedness_index = EXCLUDED.indebtedness_index,
			working_capital = EXCLUDED.working_capital,
			equity = EXCLUDED.equity,
			updated_at = NOW()
	`,
		c.ID, c.Name, c.NIT, c.City, c.EconomicSector, c.UNSPSCCodes,
		liquidity, indebtedness, workingCapital, equity,
	)
	if err != nil {
		return fmt.Errorf("save company: %w", err)
	}
	return nil
}

func (s *Store) ListContracts(ctx context.Context, companyID uuid.UUID) ([]models.Contract, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, contract_number, client_name, contract_value,
			COALESCE(execution_date, '0001-01-01'::date), description, unspsc_codes, created_at
		FROM contracts
		WHERE company_id = $1
		ORDER BY execution_date DESC NULLS LAST
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query contracts failed: %w", err)
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		var c models.Contract
		if err := rows.Scan(
			&c.ID, &c.CompanyID, &c.ContractNumber, &c.ClientName, &c.Value,
			&c.ExecutionDate, &c.Description, &c.UNSPSCCodes, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contract failed: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func (s *Store) AddContract(ctx context.Context, c *models.Contract) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contracts (company_id, contract_number, client_name,
			contract_value, execution_date, description, unspsc_codes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		c.CompanyID, c.ContractNumber, c.ClientName,
		c.Value, c.ExecutionDate, c.Description, c.UNSPSCCodes,
	)
	if err != nil {
		return fmt.Errorf("add contract: %w", err)
	}
	return nil
}

// ImportRun is one audited execution of the ingestion pipeline.
type ImportRun struct {
	RunID         uuid.UUID  `json:"run_id"`
	SourceID      string     `json:"source_id"`
	Status        string     `json:"status"`
	ItemsFetched  int        `json:"items_fetched"`
	ItemsInserted int        `json:"items_inserted"`
	ItemsSkipped  int        `json:"items_skipped"`
	Errors        int        `json:"errors"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

func (s *Store) StartImportRun(ctx context.Context, sourceID string) (uuid.UUID, error) {
	var runID uuid.UUID
	err := s.pool.QueryRow(ctx,
		"INSERT INTO import_runs (source_id, status) VALUES ($1, 'running') RETURNING run_id",
		sourceID).Scan(&runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start import run: %w", err)
	}
	return runID, nil
}

func (s *Store) FinishImportRun(ctx context.Context, runID uuid.UUID, status string, fetched, inserted, skipped, errCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE import_runs SET
			status = $1,
			items_fetched = $2,
			items_inserted = $3,
			items_skipped = $4,
			errors = $5,
			completed_at = NOW()
		WHERE run_id = $6
	`, status, fetched, inserted, skipped, errCount, runID)
	if err != nil {
		return fmt.Errorf("finish import run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, source_id, status, items_fetched, items_inserted,
			items_skipped, errors, started_at, completed_at
		FROM import_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs failed: %w", err)
	}
	defer rows.Close()

	var runs []ImportRun
	for rows.Next() {
		var r ImportRun
		if err := rows.Scan(
			&r.RunID, &r.SourceID, &r.Status, &r.ItemsFetched, &r.ItemsInserted,
			&r.ItemsSkipped, &r.Errors, &r.StartedAt, &r.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan import run failed: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UsageRecorder adapts the store to the AI usage ledger. Recording is best
// effort, a failed insert never fails the request that triggered it.
func (s *Store) UsageRecorder() ai.UsageRecorder {
	return usageRecorder{store: s}
}

type usageRecorder struct {
	store *Store
}

func (r usageRecorder) Record(ctx context.Context, u ai.Usage) {
	r.store.pool.Exec(context.WithoutCancel(ctx), `
		INSERT INTO ai_usage (model, request_type, feature, prompt_tokens, completion_tokens, total_tokens)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.Model, u.RequestType, u.Feature, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
}

// Stats returns cache counters for the dashboard.
func (s *Store) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total, pending, embedded int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM historical_tenders").Scan(&total)
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM historical_tenders WHERE processed_for_ai = FALSE").Scan(&pending)
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM historical_tenders WHERE embedding IS NOT NULL").Scan(&embedded)

	stats["total"] = total
	stats["pending_ai"] = pending
	stats["with_embedding"] = embedded

	return stats, nil
}
