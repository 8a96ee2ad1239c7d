// Package llm adapts language generation services to analysis.Generator.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/analysis"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4.1-mini"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
	maxResponse    = 1 << 20
)

// ErrNoAPIKey is returned by NewOpenAI when no key is configured.
var ErrNoAPIKey = errors.New("openai api key is required")

// Config holds OpenAI client settings.
type Config struct {
	APIKey  string `json:"-"` //nolint:gosec
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI calls the Responses API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ analysis.Generator = (*OpenAI)(nil)

// NewOpenAI creates a client. The model in Config is used when a call's
// ModelConfig does not name one.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &OpenAI{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type responsesRequest struct {
	Model           string   `json:"model"`
	Instructions    string   `json:"instructions,omitempty"`
	Input           string   `json:"input"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one prompt and returns the concatenated output text.
// Every failure wraps model.ErrGenerationUnavailable.
func (c *OpenAI) Complete(ctx context.Context, p analysis.Prompt, cfg analysis.ModelConfig) (string, error) {
	const op = "llm.openai"

	body := responsesRequest{
		Model:           cfg.Model,
		Instructions:    p.Instructions,
		Input:           p.Input,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	if body.Model == "" {
		body.Model = c.model
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		body.Temperature = &t
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", model.WrapKind(op, model.ErrGenerationUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return "", model.WrapKind(op, model.ErrGenerationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.WrapKind(op, model.ErrGenerationUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return "", model.WrapKind(op, model.ErrGenerationUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return "", model.NewKind(op, model.ErrGenerationUnavailable,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(msg)))
	}

	var out responsesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", model.WrapKind(op, model.ErrGenerationUnavailable, err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", model.NewKind(op, model.ErrGenerationUnavailable, out.Error.Message)
	}

	var text strings.Builder
	for _, item := range out.Output {
		for _, part := range item.Content {
			if part.Type == "output_text" {
				text.WriteString(part.Text)
			}
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", model.NewKind(op, model.ErrGenerationUnavailable, "response has no output text")
	}
	return text.String(), nil
}

// Unavailable is a Generator for deployments without a generation backend.
type Unavailable struct{}

// Complete always reports the backend as unavailable.
func (Unavailable) Complete(context.Context, analysis.Prompt, analysis.ModelConfig) (string, error) {
	return "", model.NewKind("llm.none", model.ErrGenerationUnavailable, "generation disabled")
}
