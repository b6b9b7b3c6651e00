package match

import (
	"sort"
)

// Classification bands applied uniformly wherever scores are consumed.
// Tenders scoring in [50,70) or below 30 fall in a silent middle band:
// neither promoted nor flagged. That gap is intentional policy.
const (
	OpportunityThreshold   = 70
	RiskUpperBound         = 50
	RiskLowerBound         = 30
	HighRiskCapacityFactor = 1.5
)

// Risk is a scored tender flagged as a capacity or experience concern.
type Risk struct {
	ScoredTender
	Severity string `json:"severity"` // "high" or "medium"
}

// Summary aggregates one scored set for dashboard counters.
type Summary struct {
	Total         int     `json:"total"`
	Opportunities int     `json:"opportunities"`
	Risks         int     `json:"risks"`
	AverageScore  float64 `json:"average_score"`
}

// Classification is the banded view over a single scored set. Opportunity,
// risk, and summary views all derive from the same scores.
type Classification struct {
	Opportunities []ScoredTender `json:"opportunities"`
	Risks         []Risk         `json:"risks"`
	Summary       Summary        `json:"summary"`
}

// Classify splits a scored set into opportunities (score >= 70, sorted
// descending, stable for ties) and risk candidates (30 <= score < 50).
// Severity is "high" when the tender amount exceeds capacity by more than
// 50%, "medium" otherwise.
func Classify(scored []ScoredTender, capacity float64) Classification {
	c := Classification{Summary: Summary{Total: len(scored)}}

	var scoreSum int
	for _, st := range scored {
		scoreSum += st.Scorecard.Score

		switch {
		case st.Scorecard.Score >= OpportunityThreshold:
			c.Opportunities = append(c.Opportunities, st)
		case st.Scorecard.Score >= RiskLowerBound && st.Scorecard.Score < RiskUpperBound:
			severity := "medium"
			if st.Listing.Amount > capacity*HighRiskCapacityFactor {
				severity = "high"
			}
			c.Risks = append(c.Risks, Risk{ScoredTender: st, Severity: severity})
		}
	}

	// Stable: ties keep original input order.
	sort.SliceStable(c.Opportunities, func(i, j int) bool {
		return c.Opportunities[i].Scorecard.Score > c.Opportunities[j].Scorecard.Score
	})
	sort.SliceStable(c.Risks, func(i, j int) bool {
		return c.Risks[i].Scorecard.Score > c.Risks[j].Scorecard.Score
	})

	c.Summary.Opportunities = len(c.Opportunities)
	c.Summary.Risks = len(c.Risks)
	if len(scored) > 0 {
		c.Summary.AverageScore = float64(scoreSum) / float64(len(scored))
	}

	return c
}
