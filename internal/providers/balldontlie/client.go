// Package balldontlie fetches NBA games, teams, and player data from the
// balldontlie API. Authentication is a bearer token.
package balldontlie

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/internal/fetch"
)

const defaultBaseURL = "https://api.balldontlie.io/v1"

// Name identifies this provider in budgets and fallback chains.
const Name = "balldontlie"

// Client handles balldontlie API requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a balldontlie client. baseURL may be empty for the production
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

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool { return c.apiKey != "" }

// FetchGames fetches games on a date.
func (c *Client) FetchGames(ctx context.Context, date time.Time) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/games?dates[]=%s", c.baseURL, date.Format("2006-01-02")))
}

// FetchTeams fetches the full team list.
func (c *Client) FetchTeams(ctx context.Context) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/teams", c.baseURL))
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("balldontlie: %w", fetch.ErrOverloaded)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("balldontlie API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
