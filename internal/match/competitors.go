package match

import (
	"sort"

	"github.com/mvargas/tender-scout/internal/models"
)

// Competitor aggregates the awarded contracts of one supplier inside a
// market segment.
type Competitor struct {
	Supplier     string  `json:"supplier"`
	Contracts    int     `json:"contracts"`
	TotalValue   float64 `json:"total_value"`
	AverageValue float64 `json:"average_value"`
}

// Competitors groups awarded contracts by supplier and ranks suppliers by
// total awarded value, strongest first. Ties break on supplier name so the
// ranking is stable.
func Competitors(awarded []models.AwardedContract) []Competitor {
	byName := make(map[string]*Competitor)
	for _, a := range awarded {
		if a.Supplier == "" {
			continue
		}
		comp, ok := byName[a.Supplier]
		if !ok {
			comp = &Competitor{Supplier: a.Supplier}
			byName[a.Supplier] = comp
		}
		comp.Contracts++
		comp.TotalValue += a.AwardValue
	}

	out := make([]Competitor, 0, len(byName))
	for _, comp := range byName {
		comp.AverageValue = comp.TotalValue / float64(comp.Contracts)
		out = append(out, *comp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalValue != out[j].TotalValue {
			return out[i].TotalValue > out[j].TotalValue
		}
		return out[i].Supplier < out[j].Supplier
	})
	return out
}
