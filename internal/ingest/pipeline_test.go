package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mvargas/tender-scout/internal/models"
)

type fakeSource struct {
	listings []models.TenderListing
	err      error
}

func (f *fakeSource) Search(_ context.Context, _ string, _ int) ([]models.TenderListing, error) {
	return f.listings, f.err
}

func (f *fakeSource) SearchAwarded(_ context.Context, _ []string, _ int) ([]models.AwardedContract, error) {
	return nil, f.err
}

type fakeStore struct {
	bySecopID   map[string]*models.HistoricalTender
	insertErrOn string
	runs        int
	finished    int
	lastStatus  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{bySecopID: make(map[string]*models.HistoricalTender)}
}

func (f *fakeStore) HistoricalExists(_ context.Context, secopID string) (bool, error) {
	_, ok := f.bySecopID[secopID]
	return ok, nil
}

func (f *fakeStore) InsertHistoricalTender(_ context.Context, t *models.HistoricalTender) error {
	if t.SecopID == f.insertErrOn {
		return errors.New("boom")
	}
	if _, ok := f.bySecopID[t.SecopID]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	cp := *t
	cp.ID = uuid.New()
	f.bySecopID[t.SecopID] = &cp
	return nil
}

func (f *fakeStore) ListUnprocessed(_ context.Context, limit int) ([]models.HistoricalTender, error) {
	var out []models.HistoricalTender
	for _, t := range f.bySecopID {
		if !t.ProcessedForAI {
			out = append(out, *t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkProcessed(_ context.Context, id uuid.UUID) error {
	for _, t := range f.bySecopID {
		if t.ID == id {
			t.ProcessedForAI = true
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) SaveClassification(_ context.Context, id uuid.UUID, isCorporate, isActionable bool, advice string) error {
	for _, t := range f.bySecopID {
		if t.ID == id {
			t.IsCorporate = &isCorporate
			t.IsActionable = &isActionable
			t.Advice = advice
			t.ProcessedForAI = true
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) StartImportRun(_ context.Context, _ string) (uuid.UUID, error) {
	f.runs++
	return uuid.New(), nil
}

func (f *fakeStore) FinishImportRun(_ context.Context, _ uuid.UUID, status string, _, _, _, _ int) error {
	f.finished++
	f.lastStatus = status
	return nil
}

type fakeEmbedder struct {
	enabled bool
	err     error
	calls   int
}

func (f *fakeEmbedder) Enabled() bool { return f.enabled }

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func sampleListings() []models.TenderListing {
	published := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []models.TenderListing{
		{
			SecopID:      "CO1.NTC.100",
			Reference:    "LP-100",
			Entity:       "ALCALDÍA DE CALI",
			Description:  "<p>Construcción de <b>parque</b> lineal</p>",
			CategoryCode: "V1.72141000",
			ContractType: "Obra",
			Phase:        models.PhaseAwarded,
			Amount:       2_000_000_000,
			Department:   "Valle del Cauca",
			PublishedAt:  &published,
		},
		{
			SecopID:     "CO1.NTC.101",
			Entity:      "MINISTERIO DE EDUCACIÓN",
			Description: "Dotación de mobiliario escolar",
			Phase:       models.PhaseSigned,
			Amount:      300_000_000,
			City:        "Bogotá",
		},
	}
}

func TestImportRecent(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{enabled: true}
	p := NewPipeline(&fakeSource{listings: sampleListings()}, store, embedder, nil, nil)

	stats, err := p.ImportRecent(context.Background(), "", 50)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Fetched != 2 || stats.Inserted != 2 || stats.Skipped != 0 || stats.Errors != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	first := store.bySecopID["CO1.NTC.100"]
	if first == nil {
		t.Fatal("first listing not inserted")
	}
	if first.Description != "Construcción de parque lineal" {
		t.Errorf("html not stripped: %q", first.Description)
	}
	if first.Category != "7214" {
		t.Errorf("category = %q, want prefix of normalized code", first.Category)
	}
	if first.Title != "LP-100" {
		t.Errorf("title = %q", first.Title)
	}
	if len(first.Embedding) == 0 {
		t.Error("embedding missing despite enabled embedder")
	}
	if first.ProcessedForAI {
		t.Error("fresh rows must start unprocessed")
	}

	second := store.bySecopID["CO1.NTC.101"]
	if second == nil {
		t.Fatal("second listing not inserted")
	}
	if second.Region != "Bogotá" {
		t.Errorf("region fallback = %q", second.Region)
	}
	if second.Title != "Dotación de mobiliario escolar" {
		t.Errorf("title fallback = %q", second.Title)
	}

	if store.runs != 1 || store.finished != 1 {
		t.Errorf("import run not audited: runs=%d finished=%d", store.runs, store.finished)
	}
}

func TestImportRecent_Idempotent(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeSource{listings: sampleListings()}, store, nil, nil, nil)

	if _, err := p.ImportRecent(context.Background(), "", 50); err != nil {
		t.Fatal(err)
	}
	stats, err := p.ImportRecent(context.Background(), "", 50)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Inserted != 0 || stats.Skipped != 2 {
		t.Fatalf("second run stats = %+v", stats)
	}
	if len(store.bySecopID) != 2 {
		t.Fatalf("cache has %d rows, want 2", len(store.bySecopID))
	}
}

func TestImportRecent_EmbeddingFailureStillInserts(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{enabled: true, err: errors.New("model unavailable")}
	p := NewPipeline(&fakeSource{listings: sampleListings()}, store, embedder, nil, nil)

	stats, err := p.ImportRecent(context.Background(), "", 50)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Inserted != 2 || stats.Errors != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if got := store.bySecopID["CO1.NTC.100"].Embedding; got != nil {
		t.Errorf("embedding = %v, want nil on failure", got)
	}
	if embedder.calls != 2 {
		t.Errorf("embedder calls = %d", embedder.calls)
	}
}

func TestImportRecent_InsertFailureContinues(t *testing.T) {
	store := newFakeStore()
	store.insertErrOn = "CO1.NTC.100"
	p := NewPipeline(&fakeSource{listings: sampleListings()}, store, nil, nil, nil)

	stats, err := p.ImportRecent(context.Background(), "", 50)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Inserted != 1 || stats.Errors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if store.bySecopID["CO1.NTC.101"] == nil {
		t.Error("second item must still be inserted after first fails")
	}
	if store.lastStatus != "completed" {
		t.Errorf("run status = %q, want completed when work still went through", store.lastStatus)
	}
}

func TestImportRecent_MostlySkippedRunCompletes(t *testing.T) {
	// A re-import where dedup skips almost everything and a single item
	// errors is not a failed run.
	store := newFakeStore()
	p := NewPipeline(&fakeSource{listings: sampleListings()[1:]}, store, nil, nil, nil)
	if _, err := p.ImportRecent(context.Background(), "", 50); err != nil {
		t.Fatal(err)
	}

	store.insertErrOn = "CO1.NTC.100"
	p.Source = &fakeSource{listings: sampleListings()}

	stats, err := p.ImportRecent(context.Background(), "", 50)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Inserted != 0 || stats.Skipped != 1 || stats.Errors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if store.lastStatus != "completed" {
		t.Errorf("run status = %q, want completed", store.lastStatus)
	}
}

func TestImportRecent_Cancelled(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeSource{listings: sampleListings()}, store, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ImportRecent(ctx, "", 50); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(store.bySecopID) != 0 {
		t.Error("cancelled run must not insert")
	}
}

func TestImportRecent_SourceError(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeSource{err: errors.New("socrata down")}, store, nil, nil, nil)

	if _, err := p.ImportRecent(context.Background(), "", 50); err == nil {
		t.Fatal("expected error when the source fails")
	}
	if store.finished != 1 {
		t.Error("failed run must still be closed in the audit log")
	}
	if store.lastStatus != "failed" {
		t.Errorf("run status = %q, want failed when the fetch itself breaks", store.lastStatus)
	}
}

type scriptedGenerator struct {
	respond func(prompt string) string
	err     error
}

func (s *scriptedGenerator) GenerateJSON(_ context.Context, prompt, _ string, out any) error {
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.respond(prompt)), out)
}

func TestProcessPending(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeSource{listings: sampleListings()}, store, nil, nil, nil)
	if _, err := p.ImportRecent(context.Background(), "", 50); err != nil {
		t.Fatal(err)
	}

	p.Generator = &scriptedGenerator{respond: func(string) string {
		return `[
			{"id": "CO1.NTC.100", "isCorporate": true, "isActionable": true, "advice": "Revisar pliegos"},
			{"id": "CO1.NTC.101", "isCorporate": false, "isActionable": false, "advice": ""}
		]`
	}}

	stats, err := p.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Examined != 2 || stats.Processed != 2 || stats.Remaining != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	for id, tender := range store.bySecopID {
		if !tender.ProcessedForAI {
			t.Errorf("%s still pending", id)
		}
	}

	// Classification labels must land on the rows, not just in the logs.
	first := store.bySecopID["CO1.NTC.100"]
	if first.IsCorporate == nil || !*first.IsCorporate {
		t.Error("corporate label not persisted")
	}
	if first.IsActionable == nil || !*first.IsActionable {
		t.Error("actionable label not persisted")
	}
	if first.Advice != "Revisar pliegos" {
		t.Errorf("advice = %q", first.Advice)
	}
	second := store.bySecopID["CO1.NTC.101"]
	if second.IsCorporate == nil || *second.IsCorporate {
		t.Error("personal-services label not persisted")
	}

	// Second pass finds nothing to do.
	stats, err = p.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Examined != 0 {
		t.Fatalf("second pass stats = %+v", stats)
	}
}

func TestProcessPending_FailedClassificationStaysPending(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeSource{listings: sampleListings()}, store, nil, nil, nil)
	if _, err := p.ImportRecent(context.Background(), "", 50); err != nil {
		t.Fatal(err)
	}

	p.Generator = &scriptedGenerator{err: errors.New("quota exceeded")}

	stats, err := p.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 0 || stats.Remaining != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	for id, tender := range store.bySecopID {
		if tender.ProcessedForAI {
			t.Errorf("%s must stay pending for the next run", id)
		}
	}
}

func TestProcessPending_NoGeneratorDrains(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeSource{listings: sampleListings()}, store, nil, nil, nil)
	if _, err := p.ImportRecent(context.Background(), "", 50); err != nil {
		t.Fatal(err)
	}

	stats, err := p.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}
