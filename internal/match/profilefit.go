package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/mvargas/tender-scout/internal/models"
	"github.com/mvargas/tender-scout/internal/unspsc"
)

// ProfileFitScorer is the go/no-go variant: four independently weighted
// components (UNSPSC 40, financial capacity 30, prior experience 20, location
// 10) and a binary verdict at 50 points.
type ProfileFitScorer struct{}

func (ProfileFitScorer) Name() string { return StrategyProfileFit }

// fitMatchThreshold is the binary cut for this strategy, distinct from the
// classification bands used by the ranked lists.
const fitMatchThreshold = 50

func (ProfileFitScorer) Score(p Profile, tender models.TenderListing) Scorecard {
	var reasons, warnings []string
	score := 0

	// 1. UNSPSC code match (40 points)
	matched := matchedCompanyCodes(p.Company.UNSPSCCodes, tender)
	if len(matched) > 0 {
		score += 40
		reasons = append(reasons, "Código UNSPSC compatible: "+strings.Join(matched, ", "))
	} else {
		warnings = append(warnings, "No hay coincidencia en códigos UNSPSC")
	}

	// 2. Financial capacity (30 points)
	if p.Company.FinancialIndicators == nil || tender.Amount <= 0 {
		warnings = append(warnings, "Configura tus indicadores financieros para validar capacidad")
	} else if p.Capacity >= tender.Amount {
		score += 30
		pct := int(math.Round(p.Capacity / tender.Amount * 100))
		reasons = append(reasons, fmt.Sprintf("Capacidad financiera suficiente (%d%%)", pct))
	} else {
		warnings = append(warnings, fmt.Sprintf("Requiere %s pero tienes %s", formatCOP(tender.Amount), formatCOP(p.Capacity)))
	}

	// 3. Prior experience in the sector (20 points)
	count := similarContractCount(p, tender)
	if count > 0 {
		score += 20
		reasons = append(reasons, fmt.Sprintf("Experiencia previa: %d contratos similares", count))
	} else {
		warnings = append(warnings, "Sin experiencia previa en este sector")
	}

	// 4. Location presence (10 points)
	if region := tenderRegion(tender); region != "" {
		score += 10
		reasons = append(reasons, "Ubicación favorable: "+region)
	}

	return Scorecard{
		IsMatch:  score >= fitMatchThreshold,
		Score:    score,
		Reasons:  reasons,
		Warnings: warnings,
	}
}

// matchedCompanyCodes returns the company codes whose 4-digit category matches
// any code the tender declares.
func matchedCompanyCodes(companyCodes []string, tender models.TenderListing) []string {
	tenderCodes := unspsc.FromListing(tender)
	if len(companyCodes) == 0 || len(tenderCodes) == 0 {
		return nil
	}

	var matched []string
	for _, companyCode := range companyCodes {
		for _, tenderCode := range tenderCodes {
			if unspsc.SameCategory(companyCode, tenderCode) {
				matched = append(matched, companyCode)
				break
			}
		}
	}
	return matched
}

// similarContractCount sums historical contract counts over the experience
// codes in the tender's categories.
func similarContractCount(p Profile, tender models.TenderListing) int {
	tenderCodes := unspsc.FromListing(tender)
	if len(tenderCodes) == 0 {
		return 0
	}

	count := 0
	for _, tenderCode := range tenderCodes {
		for code, exp := range p.Experience {
			if unspsc.SameCategory(tenderCode, code) {
				count += exp.Count
			}
		}
	}
	return count
}

func tenderRegion(tender models.TenderListing) string {
	if tender.Department != "" {
		return tender.Department
	}
	return tender.City
}
