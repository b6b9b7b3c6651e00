package models

import (
	"time"

	"github.com/google/uuid"
)

// FinancialIndicators holds the figures a company reports from its latest
// financial statements. All values are in COP.
type FinancialIndicators struct {
	LiquidityIndex    float64 `json:"liquidity_index"`
	IndebtednessIndex float64 `json:"indebtedness_index"`
	WorkingCapital    float64 `json:"working_capital"`
	Equity            float64 `json:"equity"`
}

type Company struct {
	ID                  uuid.UUID            `json:"id"`
	Name                string               `json:"name"`
	NIT                 string               `json:"nit"`
	City                string               `json:"city"`
	EconomicSector      string               `json:"economic_sector"`
	UNSPSCCodes         []string             `json:"unspsc_codes"`
	FinancialIndicators *FinancialIndicators `json:"financial_indicators"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// Contract is one entry in a company's own execution history. Immutable once
// recorded; read-only input to experience aggregation.
type Contract struct {
	ID             uuid.UUID `json:"id"`
	CompanyID      uuid.UUID `json:"company_id"`
	ContractNumber string    `json:"contract_number"`
	ClientName     string    `json:"client_name"`
	Value          float64   `json:"contract_value"`
	ExecutionDate  time.Time `json:"execution_date"`
	Description    string    `json:"description"`
	UNSPSCCodes    []string  `json:"unspsc_codes"`
	CreatedAt      time.Time `json:"created_at"`
}
