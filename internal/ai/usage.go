package ai

import (
	"context"

	"go.uber.org/zap"
)

// Request types forwarded to the usage ledger.
const (
	RequestGeneration = "generation"
	RequestEmbedding  = "embedding"
)

// Usage is the per-call token accounting forwarded to a UsageRecorder after
// every model call. How it is stored is the recorder's concern.
type Usage struct {
	Model            string `json:"model"`
	RequestType      string `json:"request_type"`
	Feature          string `json:"feature"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// UsageRecorder receives token accounting out of band. Recording is
// best-effort; implementations must not fail the calling request.
type UsageRecorder interface {
	Record(ctx context.Context, usage Usage)
}

// NopRecorder discards usage.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Usage) {}

// LogRecorder writes usage to the structured log, for CLI runs where no
// ledger storage is wired.
type LogRecorder struct {
	Logger *zap.Logger
}

func (r LogRecorder) Record(_ context.Context, usage Usage) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("ai usage",
		zap.String("ai_model", usage.Model),
		zap.String("request_type", usage.RequestType),
		zap.String("feature", usage.Feature),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Int("total_tokens", usage.TotalTokens),
	)
}
