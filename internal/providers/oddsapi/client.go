// Package oddsapi fetches betting odds from The Odds API. Authentication is
// a query-string key.
package oddsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/internal/fetch"
)

const defaultBaseURL = "https://api.the-odds-api.com/v4"

// Name identifies this provider in budgets and fallback chains.
const Name = "oddsapi"

// Client handles Odds API requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates an Odds API client. baseURL may be empty for the production
// endpoint.
func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Configured reports whether the client has credentials. Unconfigured
// providers are left out of fallback chains.
func (c *Client) Configured() bool { return c.apiKey != "" }

// FetchOdds fetches current odds for a sport key such as
// "basketball_nba", covering the given comma-separated markets.
func (c *Client) FetchOdds(ctx context.Context, sportKey, markets string) ([]byte, error) {
	query := url.Values{}
	query.Set("apiKey", c.apiKey)
	query.Set("regions", "us")
	query.Set("markets", markets)
	query.Set("oddsFormat", "american")

	endpoint := fmt.Sprintf("%s/sports/%s/odds?%s", c.baseURL, sportKey, query.Encode())
	return c.get(ctx, endpoint)
}

// FetchSports fetches the list of available sport keys.
func (c *Client) FetchSports(ctx context.Context) ([]byte, error) {
	query := url.Values{}
	query.Set("apiKey", c.apiKey)
	return c.get(ctx, fmt.Sprintf("%s/sports?%s", c.baseURL, query.Encode()))
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("oddsapi: %w", fetch.ErrOverloaded)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("odds API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
