package match

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mvargas/tender-scout/internal/models"
	"github.com/mvargas/tender-scout/internal/unspsc"
)

// RankedScorer is the weighted scorer behind the opportunity/risk rankings:
// financial fit up to 40 points, experience/code match up to 40, contract-size
// compatibility up to 20. It is the single source of truth for ranked lists;
// opportunity, risk, and summary views must all derive from the same scored
// set.
type RankedScorer struct{}

func (RankedScorer) Name() string { return StrategyRanked }

func (RankedScorer) Score(p Profile, tender models.TenderListing) Scorecard {
	var reasons, warnings []string

	financial := financialFitPoints(p.Capacity, tender.Amount)
	switch {
	case p.Capacity <= 0:
		warnings = append(warnings, "Configura tus indicadores financieros para validar capacidad")
	case tender.Amount <= 0:
		warnings = append(warnings, "El proceso no publica precio base")
	case financial == maxFinancialPoints:
		reasons = append(reasons, fmt.Sprintf("Capacidad financiera suficiente (%s)", formatCOP(p.Capacity)))
	case financial > 0:
		warnings = append(warnings, fmt.Sprintf("El monto %s excede tu capacidad %s", formatCOP(tender.Amount), formatCOP(p.Capacity)))
	default:
		warnings = append(warnings, fmt.Sprintf("Requiere %s pero tienes %s", formatCOP(tender.Amount), formatCOP(p.Capacity)))
	}

	experience, matched := experiencePoints(p, tender)
	if len(matched) > 0 {
		reasons = append(reasons, "Código UNSPSC compatible: "+strings.Join(matched, ", "))
	} else if experience == 0 {
		warnings = append(warnings, "Sin experiencia previa en este sector")
	}

	size := sizePoints(p.AvgContractValue, tender.Amount, len(p.Contracts))
	if size == maxSizePoints {
		reasons = append(reasons, "Monto similar a tus contratos anteriores")
	} else if size == 0 && len(p.Contracts) > 0 && tender.Amount > 0 {
		warnings = append(warnings, "Monto atípico frente a tu historial de contratos")
	}

	score := financial + experience + size
	if score > 100 {
		score = 100
	}

	return Scorecard{
		IsMatch:  score >= OpportunityThreshold,
		Score:    score,
		Reasons:  reasons,
		Warnings: warnings,
	}
}

const (
	maxFinancialPoints  = 40
	maxExperiencePoints = 40
	noCodesFlatPoints   = 20
	maxSizePoints       = 20
)

// financialFitPoints maps the tender-amount/capacity ratio to 0-40 points.
// Contributes nothing when either side of the ratio is unusable.
func financialFitPoints(capacity, amount float64) int {
	if capacity <= 0 || amount <= 0 {
		return 0
	}
	ratio := amount / capacity
	switch {
	case ratio <= 1.0:
		return 40
	case ratio <= 1.5:
		return 25
	case ratio <= 2.0:
		return 10
	}
	return 0
}

// experiencePoints scores required-code coverage against the company's
// experience code set at the 4-digit category level. A tender that declares
// no codes gets a flat 20.
func experiencePoints(p Profile, tender models.TenderListing) (int, []string) {
	required := unspsc.FromListing(tender)
	if len(required) == 0 {
		return noCodesFlatPoints, nil
	}

	var matched []string
	covered := 0
	for _, req := range required {
		hit := false
		for code := range p.Experience {
			if unspsc.SameCategory(req, code) {
				if !hit {
					covered++
					hit = true
				}
				matched = append(matched, code)
			}
		}
	}
	// Experience is a map; sort so the reason trail is stable across runs.
	sort.Strings(matched)

	points := int(math.Round(maxExperiencePoints * float64(covered) / float64(len(required))))
	return points, matched
}

// sizePoints compares the tender amount against the company's average
// historical contract value. No history means no contribution.
func sizePoints(avg, amount float64, contractCount int) int {
	if contractCount == 0 || avg <= 0 || amount <= 0 {
		return 0
	}
	ratio := amount / avg
	switch {
	case ratio >= 0.5 && ratio <= 2.0:
		return 20
	case ratio >= 0.3 && ratio <= 3.0:
		return 10
	}
	return 0
}

// formatCOP renders an amount as Colombian pesos with dot thousand separators.
func formatCOP(amount float64) string {
	n := int64(math.Round(amount))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "$" + b.String()
}
