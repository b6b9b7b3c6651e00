// Package match scores tender listings against a company profile.
//
// Two scoring strategies coexist because they encode different policies:
// RankedScorer feeds ranked opportunity/risk lists, ProfileFitScorer gives a
// single-tender go/no-go verdict. Callers pick one explicitly; the strategies
// are never merged.
package match

import (
	"fmt"

	"github.com/mvargas/tender-scout/internal/models"
	"github.com/mvargas/tender-scout/internal/profile"
)

// Scorecard is the per-tender analysis result. Recomputed on every query,
// never persisted.
type Scorecard struct {
	IsMatch  bool     `json:"is_match"`
	Score    int      `json:"match_score"` // 0-100
	Reasons  []string `json:"reasons"`
	Warnings []string `json:"warnings"`
}

// Profile bundles a company with the derived inputs every strategy needs,
// so capacity and experience are computed once per request.
type Profile struct {
	Company          models.Company
	Contracts        []models.Contract
	Capacity         float64
	Experience       map[string]profile.CodeExperience
	AvgContractValue float64
}

func NewProfile(company models.Company, contracts []models.Contract) Profile {
	return Profile{
		Company:          company,
		Contracts:        contracts,
		Capacity:         profile.Capacity(company),
		Experience:       profile.ExperienceByCode(contracts),
		AvgContractValue: profile.AverageContractValue(contracts),
	}
}

// ScoringStrategy turns a profile and a tender into a scorecard. Strategies
// are deterministic and do no I/O.
type ScoringStrategy interface {
	Name() string
	Score(p Profile, tender models.TenderListing) Scorecard
}

// ForName resolves a strategy by its registered name.
func ForName(name string) (ScoringStrategy, error) {
	switch name {
	case "", StrategyRanked:
		return RankedScorer{}, nil
	case StrategyProfileFit:
		return ProfileFitScorer{}, nil
	}
	return nil, fmt.Errorf("unknown scoring strategy %q", name)
}

const (
	StrategyRanked     = "ranked"
	StrategyProfileFit = "profile-fit"
)

// ScoredTender pairs a listing with its computed scorecard.
type ScoredTender struct {
	Listing   models.TenderListing `json:"listing"`
	Scorecard Scorecard            `json:"analysis"`
}
