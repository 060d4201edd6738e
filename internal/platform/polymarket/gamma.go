package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata. It is preferred over the CLOB
// market endpoint for question lookup because it resolves URL slugs.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiMarket is the subset of the Gamma market payload the tracker
// needs.
type apiMarket struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Slug     string `json:"slug"`
	Active   bool   `json:"active"`
	Outcomes string `json:"outcomes"` // JSON-encoded string array
}

func (m apiMarket) toMarketInfo() domain.MarketInfo {
	info := domain.MarketInfo{
		ID:       m.ID,
		Question: m.Question,
		Active:   m.Active,
	}
	// Gamma double-encodes outcomes as a JSON string.
	if m.Outcomes != "" {
		_ = json.Unmarshal([]byte(m.Outcomes), &info.Outcomes)
	}
	if len(info.Outcomes) == 0 {
		info.Outcomes = []string{"Yes", "No"}
	}
	return info
}

// GetMarketBySlug returns market metadata looked up by URL slug.
func (g *GammaClient) GetMarketBySlug(ctx context.Context, slug string) (domain.MarketInfo, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var apiMarkets []apiMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(apiMarkets) == 0 {
		return domain.MarketInfo{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}

	return apiMarkets[0].toMarketInfo(), nil
}

// FetchMarketInfo looks up market metadata. Market ids derived from
// polymarket.com URLs are slugs, so this resolves through the slug
// endpoint.
func (g *GammaClient) FetchMarketInfo(ctx context.Context, marketID string) (domain.MarketInfo, error) {
	return g.GetMarketBySlug(ctx, marketID)
}

// doGet performs a GET and returns the raw body. Non-2xx responses are
// errors.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}
