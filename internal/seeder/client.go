package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnexpectedStatus is returned for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

const maxErrorBody = 512

// Outcome of one publish call.
type Outcome int

// Publish outcomes.
const (
	OutcomeFailed Outcome = iota
	OutcomeSuccess
	OutcomeDuplicate
)

// Client talks to the score service API.
type Client struct {
	http     *http.Client
	baseURL  string
	basePath string
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL, basePath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	basePath = strings.TrimRight(strings.TrimSpace(basePath), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		basePath: basePath,
	}
}

type publishResponse struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"txHash"`
	RecordID  string `json:"recordId"`
	Duplicate bool   `json:"duplicate"`
}

// DataResponse is the subset of GET /data the seeder checks.
type DataResponse struct {
	TotalEntries    int    `json:"totalEntries"`
	AISummary       string `json:"aiSummary"`
	SummaryDegraded bool   `json:"summaryDegraded"`
	Skipped         int    `json:"skipped"`
}

// LeaderboardEntry mirrors one GET /leaderboard row.
type LeaderboardEntry struct {
	Rank   int     `json:"rank"`
	Player string  `json:"player"`
	Best   uint64  `json:"best"`
	Mean   float64 `json:"mean"`
	Count  int     `json:"count"`
	Trend  string  `json:"trend"`
}

// Health reports whether the service answers /healthz with 200.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, c.baseURL+"/healthz", nil)
}

// SchemaID returns the registered schema id.
func (c *Client) SchemaID(ctx context.Context) (string, error) {
	var out struct {
		SchemaID string `json:"schemaId"`
	}
	if err := c.getJSON(ctx, c.route("/schema"), &out); err != nil {
		return "", err
	}
	return out.SchemaID, nil
}

// Publish submits one event, using its record id as the idempotency key.
func (c *Client) Publish(ctx context.Context, ev Event) (Outcome, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.route("/publish"), bytes.NewReader(body))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", ev.RecordID)

	var out publishResponse
	if err := c.do(req, &out); err != nil {
		return OutcomeFailed, err
	}
	if out.Duplicate {
		return OutcomeDuplicate, nil
	}
	return OutcomeSuccess, nil
}

// Data reads the corpus and summary for wallet.
func (c *Client) Data(ctx context.Context, wallet string) (DataResponse, error) {
	var out DataResponse
	err := c.getJSON(ctx, c.route("/data")+"?wallet="+url.QueryEscape(wallet), &out)
	return out, err
}

// Leaderboard fetches the top n players.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	err := c.getJSON(ctx, c.route("/leaderboard")+"?limit="+strconv.Itoa(n), &out)
	return out, err
}

func (c *Client) route(p string) string {
	return c.baseURL + c.basePath + p
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, req.Method, req.URL.Path,
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
