// Package secop fetches public-procurement listings from the SECOP II
// open-data dataset published through the Socrata SODA API on datos.gov.co.
package secop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/models"
	"github.com/mvargas/tender-scout/internal/unspsc"
)

// Source is the tender-source capability the rest of the system consumes.
type Source interface {
	Search(ctx context.Context, query string, limit int) ([]models.TenderListing, error)
	SearchAwarded(ctx context.Context, codes []string, limit int) ([]models.AwardedContract, error)
}

const (
	defaultBaseURL = "https://www.datos.gov.co/resource/p6dx-8zbt.json"
	defaultTimeout = 30 * time.Second
	defaultLimit   = 50
	userAgent      = "tender-scout/1.0"
)

type Client struct {
	baseURL  string
	appToken string
	http     *http.Client
	logger   *zap.Logger
}

func NewClient(cfg SourceConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &Client{
		baseURL:  baseURL,
		appToken: cfg.AppToken,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// secopProcess is the wire shape of one row in the SECOP II dataset.
// Numeric fields arrive as strings.
type secopProcess struct {
	IDDelProceso        string `json:"id_del_proceso"`
	ReferenciaProceso   string `json:"referencia_del_proceso"`
	Entidad             string `json:"entidad"`
	Descripcion         string `json:"descripci_n_del_procedimiento"`
	PrecioBase          string `json:"precio_base"`
	Fase                string `json:"fase"`
	FechaPublicacion    string `json:"fecha_de_publicacion_del"`
	CodigoCategoria     string `json:"codigo_principal_de_categoria"`
	TipoContrato        string `json:"tipo_de_contrato"`
	DepartamentoEntidad string `json:"departamento_entidad"`
	CiudadEntidad       string `json:"ciudad_entidad"`
}

// Search fetches up to limit listings, optionally narrowed by a full-text
// query, ordered by publication date descending.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.TenderListing, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	params := url.Values{}
	params.Set("$limit", strconv.Itoa(limit))
	params.Set("$order", "fecha_de_publicacion_del DESC")
	if query = strings.TrimSpace(query); query != "" {
		params.Set("$q", query)
	}

	endpoint := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build secop request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("secop request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("secop returned status %d", resp.StatusCode)
	}

	var raw []secopProcess
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode secop response: %w", err)
	}

	listings := make([]models.TenderListing, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p.IDDelProceso) == "" {
			c.logger.Debug("skipping secop row without process id")
			continue
		}
		listings = append(listings, p.toListing())
	}

	c.logger.Debug("secop search complete",
		zap.String("query", query),
		zap.Int("limit", limit),
		zap.Int("returned", len(listings)),
	)

	return listings, nil
}

// awardedRow is the wire shape of the $select projection used for
// competitor queries.
type awardedRow struct {
	Proveedor         string `json:"nombre_del_proveedor"`
	ValorAdjudicacion string `json:"valor_total_adjudicacion"`
	FechaPublicacion  string `json:"fecha_de_publicacion_del"`
	Entidad           string `json:"entidad"`
	Descripcion       string `json:"descripci_n_del_procedimiento"`
	CodigoCategoria   string `json:"codigo_principal_de_categoria"`
}

const awardedSelect = "nombre_del_proveedor, valor_total_adjudicacion, fecha_de_publicacion_del, entidad, descripci_n_del_procedimiento, codigo_principal_de_categoria"

// The dataset marks unawarded or anonymized rows with these supplier values.
var placeholderSuppliers = map[string]bool{
	"":              true,
	"No disponible": true,
	"No Adjudicado": true,
}

// SearchAwarded fetches contracts already awarded in the given UNSPSC codes,
// newest first. It is the raw material for competitor analysis: who keeps
// winning in this market segment and at what amounts.
func (c *Client) SearchAwarded(ctx context.Context, codes []string, limit int) ([]models.AwardedContract, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	// UNSPSC codes are numeric once the dataset prefix is stripped. Anything
	// else never reaches the interpolated $where clause.
	conditions := make([]string, 0, len(codes))
	for _, code := range codes {
		code = unspsc.Normalize(code)
		if code == "" || !isDigits(code) {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("codigo_principal_de_categoria LIKE '%%%s%%'", code))
	}
	if len(conditions) == 0 {
		return []models.AwardedContract{}, nil
	}

	params := url.Values{}
	params.Set("$limit", strconv.Itoa(limit))
	params.Set("$order", "fecha_de_publicacion_del DESC")
	params.Set("$select", awardedSelect)
	params.Set("$where", fmt.Sprintf("fase IN ('%s', '%s', '%s') AND (%s)",
		models.PhaseAwarded, models.PhaseSigned, models.PhaseSettled,
		strings.Join(conditions, " OR ")))

	endpoint := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build secop request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("secop request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("secop returned status %d", resp.StatusCode)
	}

	var raw []awardedRow
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode secop response: %w", err)
	}

	awarded := make([]models.AwardedContract, 0, len(raw))
	for _, r := range raw {
		supplier := strings.TrimSpace(r.Proveedor)
		if placeholderSuppliers[supplier] {
			continue
		}
		awarded = append(awarded, models.AwardedContract{
			Supplier:     supplier,
			AwardValue:   parseAmount(r.ValorAdjudicacion),
			Entity:       r.Entidad,
			Description:  r.Descripcion,
			CategoryCode: r.CodigoCategoria,
			PublishedAt:  parsePublishedAt(r.FechaPublicacion),
		})
	}

	c.logger.Debug("secop awarded search complete",
		zap.Int("codes", len(conditions)),
		zap.Int("returned", len(awarded)),
	)

	return awarded, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (p secopProcess) toListing() models.TenderListing {
	return models.TenderListing{
		SecopID:      p.IDDelProceso,
		Reference:    p.ReferenciaProceso,
		Entity:       p.Entidad,
		Description:  p.Descripcion,
		CategoryCode: p.CodigoCategoria,
		ContractType: p.TipoContrato,
		Phase:        p.Fase,
		Amount:       parseAmount(p.PrecioBase),
		Department:   p.DepartamentoEntidad,
		City:         p.CiudadEntidad,
		PublishedAt:  parsePublishedAt(p.FechaPublicacion),
	}
}

// parseAmount converts the numeric-string base price; unparseable or missing
// values become 0, matching the degrade-to-zero error policy.
func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// Socrata floating timestamps come with or without fractional seconds.
var publishedAtLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func parsePublishedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range publishedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
