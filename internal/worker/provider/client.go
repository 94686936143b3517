package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
)

// Provider-native job states. Translation to the four-state job record model
// happens in the worker, not here.
const (
	StatePending    = "pending"
	StateRunning    = "running"
	StateConverting = "converting"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Heuristic progress values reported when the provider does not include
// page counts.
var stateProgressHeuristic = map[string]int{
	StatePending:    5,
	StateRunning:    50,
	StateConverting: 85,
	StateDone:       100,
}

// Status is one poll observation of a provider-side job.
type Status struct {
	State            string
	Progress         *int
	ResultArchiveURL string
	ErrorMessage     string
}

// Config holds extraction provider client configuration
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// Client is a thin client to the external extraction service. It performs no
// retries; retry and backoff policy belongs to the caller.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new extraction provider client
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type submitRequest struct {
	URL string `json:"url"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type pollResponse struct {
	State            string `json:"state"`
	ExtractedPages   *int   `json:"extracted_pages"`
	TotalPages       *int   `json:"total_pages"`
	ResultArchiveURL string `json:"result_archive_url"`
	ErrorMessage     string `json:"error_message"`
}

// Submit posts the source document URL to the provider and returns the
// provider-side job id. Network failures map to ErrNetwork, non-success
// responses to ErrProviderRejected; neither is retried here.
func (c *Client) Submit(ctx context.Context, sourceURL string) (string, error) {
	payload, err := json.Marshal(submitRequest{URL: sourceURL})
	if err != nil {
		return "", fmt.Errorf("failed to encode submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrProviderRejected, resp.StatusCode, readBodySnippet(resp.Body))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: invalid submit response: %v", domain.ErrProviderRejected, err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("%w: submit response missing job_id", domain.ErrProviderRejected)
	}

	c.logger.Debug("Submitted document to extraction provider",
		slog.String("provider_job_id", out.JobID),
	)

	return out.JobID, nil
}

// Poll fetches the provider-side state of a job. Progress is computed from
// the reported page counts when available, otherwise a fixed per-state
// heuristic is used.
func (c *Client) Poll(ctx context.Context, providerJobID string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/extract/"+providerJobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: poll status %d: %s", domain.ErrNetwork, resp.StatusCode, readBodySnippet(resp.Body))
	}

	var out pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: invalid poll response: %v", domain.ErrNetwork, err)
	}

	switch out.State {
	case StatePending, StateRunning, StateConverting, StateDone, StateFailed:
	default:
		return nil, fmt.Errorf("unknown provider state %q", out.State)
	}

	return &Status{
		State:            out.State,
		Progress:         computeProgress(&out),
		ResultArchiveURL: out.ResultArchiveURL,
		ErrorMessage:     out.ErrorMessage,
	}, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func computeProgress(resp *pollResponse) *int {
	if resp.ExtractedPages != nil && resp.TotalPages != nil && *resp.TotalPages > 0 {
		pct := *resp.ExtractedPages * 100 / *resp.TotalPages
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return &pct
	}

	if pct, ok := stateProgressHeuristic[resp.State]; ok {
		return &pct
	}
	return nil
}

func readBodySnippet(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
