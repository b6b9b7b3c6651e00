package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/ai"
	"github.com/mvargas/tender-scout/internal/db"
	"github.com/mvargas/tender-scout/internal/ingest"
	"github.com/mvargas/tender-scout/internal/match"
	"github.com/mvargas/tender-scout/internal/models"
	"github.com/mvargas/tender-scout/internal/secop"
)

type Server struct {
	Store  *db.Store
	Echo   *echo.Echo
	DB     *pgxpool.Pool
	AI     *ai.Engine
	Source secop.Source
	Logger *zap.Logger
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, aiEngine *ai.Engine, source secop.Source, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Store:  db.NewStore(pool),
		Echo:   e,
		DB:     pool,
		AI:     aiEngine,
		Source: source,
		Logger: logger,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/healthz", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/tenders", s.handleListTenders)
	api.GET("/tenders/:secop_id", s.handleGetTender)
	api.GET("/tenders/:secop_id/analysis", s.handleTenderAnalysis)
	api.GET("/stats", s.handleGetStats)
	api.GET("/sources", s.handleGetSources)

	api.POST("/companies", s.handleSaveCompany)
	api.GET("/companies/:id", s.handleGetCompany)
	api.GET("/companies/:id/contracts", s.handleListContracts)
	api.POST("/companies/:id/contracts", s.handleAddContract)
	api.GET("/companies/:id/analysis", s.handleAnalysis)
	api.POST("/companies/:id/analyze", s.handleAnalyzeOne)
	api.GET("/companies/:id/competitors", s.handleCompetitors)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/import", s.handleImport)
	admin.POST("/process", s.handleProcessPending)
	admin.GET("/runs", s.handleListRuns)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListTenders(c echo.Context) error {
	q := c.QueryParam("q")

	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	// Semantic search over the cache when a query is given and the AI
	// engine can embed it. On failure the listing degrades to recency
	// order instead of erroring out.
	var queryEmbedding []float32
	if q != "" && s.AI.Enabled() {
		aiCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		vec, err := s.AI.GenerateEmbedding(aiCtx, q)
		if err != nil {
			s.Logger.Warn("query embedding failed", zap.Error(err))
		} else {
			queryEmbedding = vec
		}
	}

	tenders, err := s.Store.ListHistoricalTenders(c.Request().Context(), db.HistoricalListParams{
		Status:         c.QueryParam("status"),
		QueryEmbedding: queryEmbedding,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		s.Logger.Error("list tenders failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenders": tenders,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleGetTender(c echo.Context) error {
	tender, err := s.Store.GetHistoricalTenderBySecopID(c.Request().Context(), c.Param("secop_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, tender)
}

// handleTenderAnalysis asks the AI engine to break a cached tender's
// description into deliverables, requirements and timeline.
func (s *Server) handleTenderAnalysis(c echo.Context) error {
	if !s.AI.Enabled() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "AI engine is not configured"})
	}

	tender, err := s.Store.GetHistoricalTenderBySecopID(c.Request().Context(), c.Param("secop_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	analysis, err := ai.AnalyzeTenderDescription(c.Request().Context(), s.AI.WithFeature("analysis"), tender.Title, tender.Description)
	if err != nil {
		s.Logger.Error("tender analysis failed", zap.String("secop_id", tender.SecopID), zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "analysis unavailable"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"secop_id": tender.SecopID,
		"analysis": analysis,
	})
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetSources(c echo.Context) error {
	reg, err := secop.LoadRegistry("")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, reg.Sources)
}

func (s *Server) handleSaveCompany(c echo.Context) error {
	var company models.Company
	if err := c.Bind(&company); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if company.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}

	if err := s.Store.SaveCompany(c.Request().Context(), &company); err != nil {
		s.Logger.Error("save company failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusCreated, company)
}

func (s *Server) handleGetCompany(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid company ID"})
	}
	company, err := s.Store.GetCompany(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, company)
}

func (s *Server) handleListContracts(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid company ID"})
	}
	contracts, err := s.Store.ListContracts(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if contracts == nil {
		contracts = []models.Contract{}
	}
	return c.JSON(http.StatusOK, contracts)
}

func (s *Server) handleAddContract(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid company ID"})
	}

	var contract models.Contract
	if err := c.Bind(&contract); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if contract.Value < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "contract_value must not be negative"})
	}
	contract.CompanyID = id

	if err := s.Store.AddContract(c.Request().Context(), &contract); err != nil {
		s.Logger.Error("add contract failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusCreated, contract)
}

// handleAnalysis fetches live SECOP processes, scores every one of them
// against the company profile and splits the results into opportunities
// and risks.
func (s *Server) handleAnalysis(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid company ID"})
	}

	strategy, err := match.ForName(c.QueryParam("strategy"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	company, err := s.Store.GetCompany(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	contracts, err := s.Store.ListContracts(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	profile := match.NewProfile(*company, contracts)

	listings, err := s.Source.Search(ctx, c.QueryParam("q"), limit)
	if err != nil {
		s.Logger.Error("secop search failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "tender source unavailable"})
	}

	scored, err := match.ScoreAll(ctx, strategy, profile, listings, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	classification := match.Classify(scored, profile.Capacity)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"strategy":      strategy.Name(),
		"opportunities": classification.Opportunities,
		"risks":         classification.Risks,
		"summary":       classification.Summary,
	})
}

// handleAnalyzeOne scores a single tender posted in the request body.
func (s *Server) handleAnalyzeOne(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid company ID"})
	}

	strategy, err := match.ForName(c.QueryParam("strategy"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	var tender models.TenderListing
	if err := c.Bind(&tender); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	company, err := s.Store.GetCompany(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	contracts, err := s.Store.ListContracts(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	profile := match.NewProfile(*company, contracts)

	scorecard := strategy.Score(profile, tender)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"strategy":  strategy.Name(),
		"tender":    tender,
		"scorecard": scorecard,
	})
}

// handleCompetitors looks up who keeps winning awarded contracts in the
// company's UNSPSC codes. A company without registered codes gets an empty
// ranking, not an error.
func (s *Server) handleCompetitors(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid company ID"})
	}

	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	company, err := s.Store.GetCompany(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	awarded, err := s.Source.SearchAwarded(ctx, company.UNSPSCCodes, limit)
	if err != nil {
		s.Logger.Error("secop awarded search failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "tender source unavailable"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"competitors": match.Competitors(awarded),
		"contracts":   len(awarded),
	})
}

func (s *Server) handleImport(c echo.Context) error {
	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}

	pipeline := ingest.NewPipeline(s.Source, s.Store, s.AI.WithFeature("import"), s.classifyGenerator(), s.Logger)
	stats, err := pipeline.ImportRecent(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
			"stats": stats,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Import complete",
		"stats":   stats,
	})
}

func (s *Server) handleProcessPending(c echo.Context) error {
	batchSize := 20
	if b, err := strconv.Atoi(c.QueryParam("batch_size")); err == nil && b > 0 && b <= 200 {
		batchSize = b
	}

	pipeline := ingest.NewPipeline(s.Source, s.Store, nil, s.classifyGenerator(), s.Logger)
	stats, err := pipeline.ProcessPending(c.Request().Context(), batchSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Processing complete",
		"stats":   stats,
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 10
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	runs, err := s.Store.ListImportRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if runs == nil {
		runs = []db.ImportRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

// classifyGenerator hands the pipeline a generator only when the AI engine
// is actually usable. With a nil generator the pipeline drains the pending
// backlog instead of retrying items that can never be classified.
func (s *Server) classifyGenerator() ai.JSONGenerator {
	if s.AI == nil || !s.AI.Enabled() {
		return nil
	}
	return s.AI.WithFeature("classify")
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret(s.Logger)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret(logger *zap.Logger) (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		logger.Warn("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
