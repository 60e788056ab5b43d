package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autopost/internal/types"
)

const geminiAPIBase = "https://generativelanguage.googleapis.com"

// GeminiConfig holds the configuration for a GeminiClient.
type GeminiConfig struct {
	APIKey         types.SecretString
	BaseURL        string // defaults to geminiAPIBase
	TextModel      string
	EmbeddingModel string
	Logger         *slog.Logger
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type embedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// GeminiClient calls the Gemini REST API for text generation and embeddings.
type GeminiClient struct {
	base           *BaseClient
	apiKey         types.SecretString
	baseURL        string
	textModel      string
	embeddingModel string
	logger         *slog.Logger
}

// NewGeminiClient creates a GeminiClient with its own circuit breaker.
// Calls are not retried here.
func NewGeminiClient(httpClient *http.Client, cfg GeminiConfig, opts ...BaseClientOption) *GeminiClient {
	base := NewBaseClient(httpClient, "gemini", DefaultRetryPolicy(), "AutoPost/1.0", opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GeminiClient{
		base:           base,
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		textModel:      cfg.TextModel,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger,
	}
}

// Generate returns the text of the first candidate for instruction.
func (c *GeminiClient) Generate(ctx context.Context, instruction string) (string, error) {
	var out generateResponse
	err := c.post(ctx, c.textModel, "generateContent", generateRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: instruction}}}},
	}, &out, types.ErrCodeUpstreamGeneration)
	if err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 {
		return "", types.NewAppError(types.ErrCodeUpstreamGeneration, "gemini returned no candidates", nil)
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamGeneration, "gemini returned empty text", nil)
	}
	return text, nil
}

// Embed returns the embedding vector of text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	err := c.post(ctx, c.embeddingModel, "embedContent", embedRequest{
		Model:   "models/" + c.embeddingModel,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}, &out, types.ErrCodeUpstreamEmbedding)
	if err != nil {
		return nil, err
	}
	if len(out.Embedding.Values) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamEmbedding, "gemini returned an empty embedding", nil)
	}
	return out.Embedding.Values, nil
}

func (c *GeminiClient) post(ctx context.Context, model, method string, in, out any, code types.ErrorCode) error {
	body, err := json.Marshal(in)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode gemini request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:%s", c.baseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create gemini request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey.Unmask())

	start := time.Now()
	resp, err := c.base.Do(req)
	if err != nil {
		return types.NewAppError(code, fmt.Sprintf("gemini %s failed", method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorBody(resp)
		c.logger.WarnContext(ctx, "gemini request rejected",
			"method", method,
			"model", model,
			"status", resp.StatusCode,
			"body", msg,
		)
		return types.NewAppErrorWithDetails(code,
			fmt.Sprintf("gemini %s returned %d", method, resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(code, fmt.Sprintf("failed to decode gemini %s response", method), err)
	}

	c.logger.DebugContext(ctx, "gemini request completed",
		"method", method,
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
