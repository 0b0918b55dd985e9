// Package espn fetches scoreboards, teams, and game summaries from ESPN's
// public site API. No credentials are required.
package espn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/internal/fetch"
)

const baseURL = "https://site.api.espn.com/apis/site/v2/sports"

// Name identifies this provider in budgets and fallback chains.
const Name = "espn"

// Client handles ESPN API requests.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// New creates an ESPN client with a short mandatory timeout.
func New() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
		userAgent: "Mozilla/5.0 (compatible; ApexBetsBot/1.0)",
	}
}

// FetchScoreboard fetches the scoreboard for a sport path such as
// "basketball/nba". A zero date means ESPN's "today".
func (c *Client) FetchScoreboard(ctx context.Context, sportPath string, date time.Time) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/scoreboard", baseURL, sportPath)
	if !date.IsZero() {
		url = fmt.Sprintf("%s?dates=%s", url, date.Format("20060102"))
	}
	return c.get(ctx, url)
}

// FetchTeams fetches the team list for a sport path.
func (c *Client) FetchTeams(ctx context.Context, sportPath string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/%s/teams", baseURL, sportPath))
}

// FetchGameSummary fetches the detailed summary for one game.
func (c *Client) FetchGameSummary(ctx context.Context, sportPath, gameID string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/%s/summary?event=%s", baseURL, sportPath, gameID))
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("espn: %w", fetch.ErrOverloaded)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("espn API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
