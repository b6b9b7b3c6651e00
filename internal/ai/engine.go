package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultGenModel   = "gemini-2.0-flash"
	defaultEmbedModel = "text-embedding-004"
)

var (
	// ErrNotConfigured is returned when no API credentials were provided.
	// Callers degrade to empty results instead of failing.
	ErrNotConfigured = errors.New("ai engine not configured")
	// ErrUnparsableResponse marks a model reply that is not valid structured
	// output. Callers treat it as "no data".
	ErrUnparsableResponse = errors.New("ai response is not valid structured output")
)

// Config holds the engine settings, normally sourced from environment or the
// CLI config file.
type Config struct {
	APIKey     string
	GenModel   string
	EmbedModel string
}

// Engine wraps the Gemini API behind the three capabilities this system
// needs: text generation, structured JSON generation, and embeddings. It is
// constructed once at process start and injected into whichever component
// needs it; a nil or unconfigured engine degrades gracefully.
type Engine struct {
	client     *genai.Client
	genModel   string
	embedModel string
	feature    string
	recorder   UsageRecorder
	logger     *zap.Logger
}

func NewEngine(ctx context.Context, cfg Config, recorder UsageRecorder, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}

	e := &Engine{
		genModel:   cfg.GenModel,
		embedModel: cfg.EmbedModel,
		recorder:   recorder,
		logger:     logger,
	}
	if e.genModel == "" {
		e.genModel = defaultGenModel
	}
	if e.embedModel == "" {
		e.embedModel = defaultEmbedModel
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not configured, AI features disabled")
		return e, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	e.client = client

	return e, nil
}

// Enabled reports whether credentials were configured.
func (e *Engine) Enabled() bool {
	return e != nil && e.client != nil
}

// WithFeature returns an engine that tags usage records with the given
// feature name.
func (e *Engine) WithFeature(feature string) *Engine {
	if e == nil {
		return nil
	}
	copied := *e
	copied.feature = feature
	return &copied
}

// GenerateText sends the prompt and returns the concatenated textual reply.
func (e *Engine) GenerateText(ctx context.Context, prompt string) (string, error) {
	if !e.Enabled() {
		return "", ErrNotConfigured
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.genModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	e.recordGeneration(ctx, resp)

	text := collectText(resp)
	if text == "" {
		return "", errors.New("model returned empty response")
	}
	return text, nil
}

// GenerateJSON sends the prompt with a respond-only-with-JSON contract and
// unmarshals the reply into out. A reply that cannot be parsed yields
// ErrUnparsableResponse.
func (e *Engine) GenerateJSON(ctx context.Context, prompt, schemaDescription string, out any) error {
	if !e.Enabled() {
		return ErrNotConfigured
	}

	fullPrompt := fmt.Sprintf(
		"%s\n\nIMPORTANT: Respond ONLY with valid JSON matching this structure: %s. Do not include markdown formatting like ```json.",
		prompt, schemaDescription,
	)

	resp, err := e.client.Models.GenerateContent(ctx, e.genModel, genai.Text(fullPrompt), nil)
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}
	e.recordGeneration(ctx, resp)

	raw := collectText(resp)
	if err := parseJSONResponse(raw, out); err != nil {
		e.logger.Debug("unparsable ai response",
			zap.String("ai_model", e.genModel),
			zap.String("response_preview", preview(raw)),
		)
		return err
	}
	return nil
}

// GenerateEmbedding returns the embedding vector for the given text.
func (e *Engine) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if !e.Enabled() {
		return nil, ErrNotConfigured
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	e.recorder.Record(ctx, Usage{
		Model:       e.embedModel,
		RequestType: RequestEmbedding,
		Feature:     e.feature,
	})

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("model returned empty embedding")
	}
	return resp.Embeddings[0].Values, nil
}

func (e *Engine) recordGeneration(ctx context.Context, resp *genai.GenerateContentResponse) {
	usage := Usage{
		Model:       e.genModel,
		RequestType: RequestGeneration,
		Feature:     e.feature,
	}
	if resp != nil && resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	e.recorder.Record(ctx, usage)
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// parseJSONResponse strips markdown fences the model sometimes adds despite
// instructions, then unmarshals.
func parseJSONResponse(raw string, out any) error {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return ErrUnparsableResponse
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}
	return nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func preview(s string) string {
	const limit = 200
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
