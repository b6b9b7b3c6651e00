package models

import (
	"time"

	"github.com/google/uuid"
)

// SECOP process phases as published by the open-data source.
const (
	PhaseAwarded   = "Adjudicado"
	PhaseSigned    = "Celebrado"
	PhaseSettled   = "Liquidado"
	PhaseReceiving = "Presentación de oferta"
)

// TenderListing is a public-procurement process as returned by the external
// tender source. This core only reads and scores it.
type TenderListing struct {
	SecopID      string     `json:"secop_id"`
	Reference    string     `json:"reference"`
	Entity       string     `json:"entity"`
	Description  string     `json:"description"`
	CategoryCode string     `json:"category_code"` // May carry a "V1." prefix
	ContractType string     `json:"contract_type"`
	Phase        string     `json:"phase"`
	Amount       float64    `json:"amount"`
	Department   string     `json:"department"`
	City         string     `json:"city"`
	PublishedAt  *time.Time `json:"published_at"`
}

// Closed reports whether the process is past the stage where offers can be
// submitted.
func (t TenderListing) Closed() bool {
	switch t.Phase {
	case PhaseAwarded, PhaseSigned, PhaseSettled:
		return true
	}
	return false
}

// AwardedContract is a contract already won by some supplier in a market
// segment, fetched for competitor analysis.
type AwardedContract struct {
	Supplier     string     `json:"supplier"`
	AwardValue   float64    `json:"award_value"`
	Entity       string     `json:"entity"`
	Description  string     `json:"description"`
	CategoryCode string     `json:"category_code"`
	PublishedAt  *time.Time `json:"published_at"`
}

// HistoricalTender is a row in the local historical cache, backfilled from the
// tender source and enriched with an embedding plus AI classification labels.
// The classification fields are nil until the enrichment pass has seen the row.
type HistoricalTender struct {
	ID             uuid.UUID  `json:"id"`
	SecopID        string     `json:"secop_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Amount         float64    `json:"amount"`
	Status         string     `json:"status"`
	PublishedAt    *time.Time `json:"published_at"`
	EntityName     string     `json:"entity_name"`
	Region         string     `json:"region"`
	Category       string     `json:"category"`
	Embedding      []float32  `json:"-"`
	IsCorporate    *bool      `json:"is_corporate"`
	IsActionable   *bool      `json:"is_actionable"`
	Advice         string     `json:"advice,omitempty"`
	ProcessedForAI bool       `json:"processed_for_ai"`
	CreatedAt      time.Time  `json:"created_at"`
}
