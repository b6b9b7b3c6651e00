package ai

import (
	"context"
	"errors"
	"testing"
)

func TestParseJSONResponse(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		want    payload
	}{
		{
			name: "plain json",
			raw:  `{"name":"obra","score":80}`,
			want: payload{Name: "obra", Score: 80},
		},
		{
			name: "fenced json block",
			raw:  "```json\n{\"name\":\"obra\",\"score\":80}\n```",
			want: payload{Name: "obra", Score: 80},
		},
		{
			name: "bare fences",
			raw:  "```\n{\"name\":\"obra\",\"score\":80}\n```",
			want: payload{Name: "obra", Score: 80},
		},
		{
			name:    "prose instead of json",
			raw:     "No puedo generar esa respuesta.",
			wantErr: true,
		},
		{
			name:    "empty response",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			err := parseJSONResponse(tt.raw, &got)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparsableResponse) {
					t.Fatalf("error = %v, want ErrUnparsableResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parsed = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEngine_DisabledDegrades(t *testing.T) {
	engine, err := NewEngine(context.Background(), Config{}, nil, nil)
	if err != nil {
		t.Fatalf("constructing unconfigured engine must not fail: %v", err)
	}
	if engine.Enabled() {
		t.Fatal("engine without api key must report disabled")
	}

	if _, err := engine.GenerateText(context.Background(), "hola"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GenerateText error = %v, want ErrNotConfigured", err)
	}
	if _, err := engine.GenerateEmbedding(context.Background(), "hola"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GenerateEmbedding error = %v, want ErrNotConfigured", err)
	}
	var out map[string]any
	if err := engine.GenerateJSON(context.Background(), "hola", "object", &out); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GenerateJSON error = %v, want ErrNotConfigured", err)
	}
}

func TestEngine_NilSafe(t *testing.T) {
	var engine *Engine
	if engine.Enabled() {
		t.Fatal("nil engine must report disabled")
	}
	if engine.WithFeature("x") != nil {
		t.Fatal("WithFeature on nil engine must stay nil")
	}
}
