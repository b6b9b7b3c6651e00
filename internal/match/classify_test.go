package match

import (
	"testing"

	"github.com/mvargas/tender-scout/internal/models"
)

func scoredWith(id string, score int, amount float64) ScoredTender {
	return ScoredTender{
		Listing:   models.TenderListing{SecopID: id, Amount: amount},
		Scorecard: Scorecard{Score: score},
	}
}

func TestClassify_Bands(t *testing.T) {
	scored := []ScoredTender{
		scoredWith("opp-1", 85, 10),
		scoredWith("mid-1", 55, 10),  // silent middle band
		scoredWith("risk-1", 40, 10), // risk band
		scoredWith("low-1", 20, 10),  // below risk band, silent
		scoredWith("opp-2", 70, 10),  // threshold inclusive
		scoredWith("risk-2", 30, 10), // lower bound inclusive
		scoredWith("mid-2", 49, 10),
	}

	c := Classify(scored, 100)

	if len(c.Opportunities) != 2 {
		t.Fatalf("opportunities = %d, want 2", len(c.Opportunities))
	}
	if c.Opportunities[0].Listing.SecopID != "opp-1" || c.Opportunities[1].Listing.SecopID != "opp-2" {
		t.Errorf("opportunity order wrong: %v", c.Opportunities)
	}

	wantRisks := map[string]bool{"risk-1": true, "risk-2": true, "mid-2": true}
	if len(c.Risks) != 3 {
		t.Fatalf("risks = %d, want 3", len(c.Risks))
	}
	for _, r := range c.Risks {
		if !wantRisks[r.Listing.SecopID] {
			t.Errorf("unexpected risk %s", r.Listing.SecopID)
		}
	}

	if c.Summary.Total != 7 || c.Summary.Opportunities != 2 || c.Summary.Risks != 3 {
		t.Errorf("summary = %+v", c.Summary)
	}
}

func TestClassify_StableSortOnTies(t *testing.T) {
	scored := []ScoredTender{
		scoredWith("first", 80, 10),
		scoredWith("second", 80, 10),
		scoredWith("third", 90, 10),
		scoredWith("fourth", 80, 10),
	}

	c := Classify(scored, 100)

	wantOrder := []string{"third", "first", "second", "fourth"}
	for i, want := range wantOrder {
		if got := c.Opportunities[i].Listing.SecopID; got != want {
			t.Errorf("position %d = %s, want %s", i, got, want)
		}
	}
}

func TestClassify_RiskSeverity(t *testing.T) {
	capacity := 100.0

	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{"amount at 1.5x capacity is medium", 150, "medium"},
		{"amount just above 1.5x is high", 151, "high"},
		{"small amount is medium", 50, "medium"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify([]ScoredTender{scoredWith("r", 40, tt.amount)}, capacity)
			if len(c.Risks) != 1 {
				t.Fatalf("expected one risk, got %d", len(c.Risks))
			}
			if c.Risks[0].Severity != tt.want {
				t.Errorf("severity = %s, want %s", c.Risks[0].Severity, tt.want)
			}
		})
	}
}

func TestClassify_Empty(t *testing.T) {
	c := Classify(nil, 100)
	if c.Summary.Total != 0 || c.Summary.AverageScore != 0 {
		t.Errorf("empty classification summary = %+v", c.Summary)
	}
}
