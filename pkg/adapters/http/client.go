package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// DefaultTimeout bounds a single provider round trip.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is quoted in the error.
const maxErrorBody = 512

// Client is a MetricGroupProvider and MetricValueSource backed by a remote data service.
//
//	POST {base}/feature-groups   {"filters", "metric", "thresholds"} -> {"groups": [...]}
//	POST {base}/population       {"filters"}                         -> {"feature_ids": [...]}
//	POST {base}/feature-values   {"metric", "feature_ids"}           -> {"values": {"<id>": v}}
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the per-request timeout. With WithHTTPClient, in either order, the
// timeout applies to a copy and the caller's client is left unchanged.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

type groupsResponse struct {
	Groups []domain.MetricGroup `json:"groups"`
}

type populationRequest struct {
	Filter domain.FilterSpec `json:"filters"`
}

type populationResponse struct {
	IDs []int `json:"feature_ids"`
}

type valuesRequest struct {
	Metric string `json:"metric"`
	IDs    []int  `json:"feature_ids"`
}

type valuesResponse struct {
	Values map[int]float64 `json:"values"`
}

// Groups implements ports.MetricGroupProvider.
func (c *Client) Groups(ctx context.Context, req domain.GroupRequest) ([]domain.MetricGroup, error) {
	var resp groupsResponse
	if err := c.post(ctx, "/feature-groups", req, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// Population implements ports.MetricGroupProvider.
func (c *Client) Population(ctx context.Context, filter domain.FilterSpec) ([]int, error) {
	var resp populationResponse
	if err := c.post(ctx, "/population", populationRequest{Filter: filter}, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Values implements ports.MetricValueSource.
func (c *Client) Values(ctx context.Context, metric string, ids []int) (map[int]float64, error) {
	var resp valuesResponse
	if err := c.post(ctx, "/feature-values", valuesRequest{Metric: metric, IDs: ids}, &resp); err != nil {
		return nil, err
	}
	if resp.Values == nil {
		resp.Values = map[int]float64{}
	}
	return resp.Values, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("POST %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("POST %s: failed to decode response: %w", path, err)
	}
	return nil
}
