package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"autopost/internal/types"
)

const threadsAPIBase = "https://graph.threads.net"

// ThreadsConfig holds the configuration for a ThreadsClient.
type ThreadsConfig struct {
	BaseURL    string // defaults to threadsAPIBase
	APIVersion string // defaults to v1.0
	Logger     *slog.Logger
}

type threadsIDResponse struct {
	ID string `json:"id"`
}

// ThreadsClient publishes text posts through the Threads Graph API. A post is
// a two-step operation: create a media container, then publish it.
type ThreadsClient struct {
	base    *BaseClient
	baseURL string
	version string
	logger  *slog.Logger
}

// NewThreadsClient creates a ThreadsClient with its own circuit breaker.
// Calls are never retried; a failed finalize may already have published.
func NewThreadsClient(httpClient *http.Client, cfg ThreadsConfig, opts ...BaseClientOption) *ThreadsClient {
	base := NewBaseClient(httpClient, "threads", DefaultRetryPolicy(), "AutoPost/1.0", opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = threadsAPIBase
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v1.0"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ThreadsClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: version,
		logger:  logger,
	}
}

// CreateContainer creates a text media container and returns its id.
func (c *ThreadsClient) CreateContainer(ctx context.Context, text string, accessToken string) (string, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("media_type", "TEXT")
	params.Set("access_token", accessToken)

	id, err := c.post(ctx, "threads", params)
	if err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "threads container created", "container_id", id)
	return id, nil
}

// Finalize publishes a previously created container and returns the post id.
func (c *ThreadsClient) Finalize(ctx context.Context, containerID string, accessToken string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)
	params.Set("access_token", accessToken)

	id, err := c.post(ctx, "threads_publish", params)
	if err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "threads container published", "container_id", containerID, "post_id", id)
	return id, nil
}

func (c *ThreadsClient) post(ctx context.Context, edge string, params url.Values) (string, error) {
	// Form body keeps the access token out of URLs and transport errors.
	endpoint := fmt.Sprintf("%s/%s/me/%s", c.baseURL, c.version, edge)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create threads request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.base.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamPublish, fmt.Sprintf("threads %s failed", edge), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.WarnContext(ctx, "threads request rejected",
			"edge", edge,
			"status", resp.StatusCode,
			"body", readErrorBody(resp),
		)
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamPublish,
			fmt.Sprintf("threads %s returned %d", edge, resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode})
	}

	var out threadsIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamPublish, fmt.Sprintf("failed to decode threads %s response", edge), err)
	}
	if out.ID == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamPublish, fmt.Sprintf("threads %s returned no id", edge), nil)
	}
	return out.ID, nil
}
