// Package profile derives a company's bidding capacity and experience
// histograms from its stored financial indicators and contract history.
// Everything here is pure computation over already-loaded data.
package profile

import (
	"github.com/mvargas/tender-scout/internal/models"
)

// equityWeight discounts equity relative to working capital when computing
// capacity: working capital is liquid, equity mostly is not.
const equityWeight = 0.5

// Capacity returns the financial ceiling for a single contract the company
// can credibly undertake, in COP. Returns 0 when no indicators are loaded.
func Capacity(company models.Company) float64 {
	fi := company.FinancialIndicators
	if fi == nil {
		return 0
	}
	capacity := fi.WorkingCapital + fi.Equity*equityWeight
	if capacity < 0 {
		return 0
	}
	return capacity
}

// CodeExperience aggregates a company's history under one UNSPSC code.
type CodeExperience struct {
	Count      int     `json:"count"`
	TotalValue float64 `json:"total_value"`
}

// ExperienceByCode groups the company's contract history by the UNSPSC codes
// recorded on each contract. One entry per distinct code; collapsing to the
// 4-digit category happens at the call site.
func ExperienceByCode(contracts []models.Contract) map[string]CodeExperience {
	exp := make(map[string]CodeExperience)
	for _, c := range contracts {
		for _, code := range c.UNSPSCCodes {
			e := exp[code]
			e.Count++
			e.TotalValue += c.Value
			exp[code] = e
		}
	}
	return exp
}

// AverageContractValue returns the mean value across the company's contract
// history, or 0 when there is none.
func AverageContractValue(contracts []models.Contract) float64 {
	if len(contracts) == 0 {
		return 0
	}
	var total float64
	for _, c := range contracts {
		total += c.Value
	}
	return total / float64(len(contracts))
}

// Summary is the roll-up shown on the company profile.
type Summary struct {
	TotalContracts int     `json:"total_contracts"`
	TotalValue     float64 `json:"total_value"`
	AverageValue   float64 `json:"average_value"`
}

func Summarize(contracts []models.Contract) Summary {
	s := Summary{TotalContracts: len(contracts)}
	for _, c := range contracts {
		s.TotalValue += c.Value
	}
	if s.TotalContracts > 0 {
		s.AverageValue = s.TotalValue / float64(s.TotalContracts)
	}
	return s
}
