// Package fundagent provides a small HTTP client for the fund agent's
// read-only status API and manual trigger endpoints.
package fundagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the fund agent REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Status mirrors the agent's published state snapshot.
type Status struct {
	Wallet         string    `json:"wallet"`
	Balance        string    `json:"balance"`
	Mode           string    `json:"mode"`
	TradeCount     int       `json:"trade_count"`
	MaxTotalTrades int       `json:"max_total_trades"`
	TotalSpent     string    `json:"total_spent"`
	NetInvested    string    `json:"net_invested"`
	Holdings       []Holding `json:"holdings"`
	CommentaryOnly bool      `json:"commentary_only"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Holding is a single position inside a Status.
type Holding struct {
	Token       string `json:"token"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	NetInvested string `json:"net_invested"`
}

// Trade is one entry of the agent's trade ledger.
type Trade struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Token  string    `json:"token"`
	Name   string    `json:"name"`
	Symbol string    `json:"symbol"`
	Amount string    `json:"amount"`
	Venue  string    `json:"venue"`
	TxHash string    `json:"tx_hash"`
	Thesis string    `json:"thesis"`
	Time   time.Time `json:"time"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("fundagent api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the fund agent API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Status fetches the current state snapshot.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	if err := c.get(ctx, "/api/v1/status", &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Trades fetches the most recent ledger entries, newest last.
func (c *Client) Trades(ctx context.Context, limit int) ([]Trade, error) {
	endpoint := "/api/v1/trades"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var trades []Trade
	if err := c.get(ctx, endpoint, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// TriggerDiscovery requests an out-of-schedule buy-side discovery cycle.
func (c *Client) TriggerDiscovery(ctx context.Context) error {
	return c.post(ctx, "/api/v1/trigger/discovery", nil, nil)
}

// TriggerReview requests an out-of-schedule portfolio review cycle.
func (c *Client) TriggerReview(ctx context.Context) error {
	return c.post(ctx, "/api/v1/trigger/review", nil, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
