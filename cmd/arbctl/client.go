package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"arbd/internal/api/handlers"
	"arbd/internal/bot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// statusClient - клиент read-only API демона
type statusClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newStatusClient(baseURL, token string, timeout time.Duration) *statusClient {
	return &statusClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *statusClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var apiErr handlers.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

func (c *statusClient) Status(ctx context.Context) (*handlers.StatusResponse, error) {
	var out handlers.StatusResponse
	return &out, c.get(ctx, "/api/status", nil, &out)
}

func (c *statusClient) Risk(ctx context.Context) (*bot.RiskSnapshot, error) {
	var out bot.RiskSnapshot
	return &out, c.get(ctx, "/api/risk", nil, &out)
}

func (c *statusClient) Positions(ctx context.Context) (*handlers.PositionsResponse, error) {
	var out handlers.PositionsResponse
	return &out, c.get(ctx, "/api/positions", nil, &out)
}

func (c *statusClient) Opportunities(ctx context.Context, limit int) (*handlers.OpportunitiesResponse, error) {
	var out handlers.OpportunitiesResponse
	return &out, c.get(ctx, "/api/opportunities", url.Values{"limit": {strconv.Itoa(limit)}}, &out)
}
