package profile

import (
	"testing"

	"github.com/mvargas/tender-scout/internal/models"
)

func TestCapacity(t *testing.T) {
	tests := []struct {
		name    string
		company models.Company
		want    float64
	}{
		{
			name:    "no indicators yields zero",
			company: models.Company{},
			want:    0,
		},
		{
			name: "working capital plus weighted equity",
			company: models.Company{FinancialIndicators: &models.FinancialIndicators{
				WorkingCapital: 60_000_000,
				Equity:         80_000_000,
			}},
			want: 100_000_000,
		},
		{
			name: "negative result clamps to zero",
			company: models.Company{FinancialIndicators: &models.FinancialIndicators{
				WorkingCapital: -100_000_000,
				Equity:         20_000_000,
			}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Capacity(tt.company); got != tt.want {
				t.Errorf("Capacity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExperienceByCode(t *testing.T) {
	contracts := []models.Contract{
		{Value: 100, UNSPSCCodes: []string{"80111600", "80111700"}},
		{Value: 50, UNSPSCCodes: []string{"80111600"}},
		{Value: 30}, // no codes recorded
	}

	exp := ExperienceByCode(contracts)

	if len(exp) != 2 {
		t.Fatalf("expected 2 distinct codes, got %d", len(exp))
	}
	if e := exp["80111600"]; e.Count != 2 || e.TotalValue != 150 {
		t.Errorf("80111600 = %+v, want count 2 total 150", e)
	}
	if e := exp["80111700"]; e.Count != 1 || e.TotalValue != 100 {
		t.Errorf("80111700 = %+v, want count 1 total 100", e)
	}
}

func TestAverageContractValue(t *testing.T) {
	if got := AverageContractValue(nil); got != 0 {
		t.Errorf("empty history average = %v, want 0", got)
	}

	contracts := []models.Contract{{Value: 90}, {Value: 110}}
	if got := AverageContractValue(contracts); got != 100 {
		t.Errorf("average = %v, want 100", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]models.Contract{{Value: 40}, {Value: 60}})
	if s.TotalContracts != 2 || s.TotalValue != 100 || s.AverageValue != 50 {
		t.Errorf("Summarize = %+v", s)
	}
}
