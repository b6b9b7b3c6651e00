package match

import (
	"context"
	"strings"
	"testing"

	"github.com/mvargas/tender-scout/internal/models"
)

func TestProfileFitScorer_AllComponents(t *testing.T) {
	company := companyWithCapacity(200_000_000, 0)
	company.UNSPSCCodes = []string{"80111600"}
	contracts := []models.Contract{
		{Value: 50_000_000, UNSPSCCodes: []string{"80111622"}},
	}
	p := NewProfile(company, contracts)

	tender := models.TenderListing{
		SecopID:      "CO1.NTC.200",
		Amount:       90_000_000,
		CategoryCode: "V1.80111699",
		Department:   "Cundinamarca",
	}

	card := ProfileFitScorer{}.Score(p, tender)

	if card.Score != 100 {
		t.Fatalf("score = %d, want 100 (reasons %v, warnings %v)", card.Score, card.Reasons, card.Warnings)
	}
	if !card.IsMatch {
		t.Error("expected match at 100")
	}
	if len(card.Reasons) != 4 {
		t.Errorf("reasons = %v, want 4 entries", card.Reasons)
	}
}

func TestProfileFitScorer_BinaryThreshold(t *testing.T) {
	// Only UNSPSC (40) and location (10) pass: exactly at the 50-point cut.
	company := models.Company{UNSPSCCodes: []string{"80111600"}}
	p := NewProfile(company, nil)

	tender := models.TenderListing{
		Amount:       90_000_000,
		CategoryCode: "80111699",
		City:         "Bogotá",
	}

	card := ProfileFitScorer{}.Score(p, tender)
	if card.Score != 50 {
		t.Fatalf("score = %d, want 50", card.Score)
	}
	if !card.IsMatch {
		t.Error("score 50 must be a match")
	}

	// Drop location: 40 points, below the cut.
	tender.City = ""
	card = ProfileFitScorer{}.Score(p, tender)
	if card.Score != 40 || card.IsMatch {
		t.Errorf("score = %d isMatch = %v, want 40/false", card.Score, card.IsMatch)
	}
}

func TestProfileFitScorer_MissingIndicatorsWarns(t *testing.T) {
	p := NewProfile(models.Company{UNSPSCCodes: []string{"80111600"}}, nil)
	card := ProfileFitScorer{}.Score(p, models.TenderListing{Amount: 1000, CategoryCode: "80111600"})

	found := false
	for _, w := range card.Warnings {
		if strings.Contains(w, "indicadores financieros") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected financial-indicator warning, got %v", card.Warnings)
	}
}

func TestScoreAll_PreservesOrder(t *testing.T) {
	p := NewProfile(companyWithCapacity(100, 0), nil)

	listings := make([]models.TenderListing, 50)
	for i := range listings {
		listings[i] = models.TenderListing{SecopID: string(rune('a' + i%26))}
		listings[i].Amount = float64(i)
	}

	scored, err := ScoreAll(context.Background(), RankedScorer{}, p, listings, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != len(listings) {
		t.Fatalf("scored %d, want %d", len(scored), len(listings))
	}
	for i := range scored {
		if scored[i].Listing.Amount != float64(i) {
			t.Fatalf("position %d holds amount %v, order not preserved", i, scored[i].Listing.Amount)
		}
	}
}

func TestScoreAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProfile(models.Company{}, nil)
	_, err := ScoreAll(ctx, RankedScorer{}, p, make([]models.TenderListing, 10), 2)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestForName(t *testing.T) {
	if s, err := ForName(""); err != nil || s.Name() != StrategyRanked {
		t.Errorf("default strategy = %v, %v", s, err)
	}
	if s, err := ForName(StrategyProfileFit); err != nil || s.Name() != StrategyProfileFit {
		t.Errorf("profile-fit strategy = %v, %v", s, err)
	}
	if _, err := ForName("nope"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
