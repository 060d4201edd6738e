// Package polymarket contains REST clients for the public Polymarket
// APIs used to price tracked positions.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. Only public, unauthenticated endpoints are used.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// orderbook is the /book response. Levels are [price, size] pairs of
// decimal strings, best level first.
type orderbook struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

// marketData is the /markets/{id} fallback response.
type marketData struct {
	Question string  `json:"question"`
	Title    string  `json:"title"`
	Price    *string `json:"price"`
	Outcomes []struct {
		Outcome string  `json:"outcome"`
		ID      string  `json:"id"`
		Price   *string `json:"price"`
	} `json:"outcomes"`
}

// FetchPrice returns the current price for one outcome of a market.
//
// The primary source is the orderbook for token "<marketID>-<idx>"
// (YES=0, NO=1): the mid of best bid and best ask, or whichever side
// exists when the book is one-sided. When the book endpoint fails, the
// market endpoint's listed prices are used instead. Returns
// domain.ErrPriceUnavailable when no price can be derived.
func (c *ClobClient) FetchPrice(ctx context.Context, marketID string, outcome domain.Outcome) (float64, error) {
	tokenID := fmt.Sprintf("%s-%d", marketID, outcome.TokenIndex())

	body, err := c.doGet(ctx, "/book?token_id="+url.QueryEscape(tokenID))
	if err != nil {
		return c.fetchPriceFromMarket(ctx, marketID, outcome)
	}

	var book orderbook
	if err := json.Unmarshal(body, &book); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode orderbook for %s: %w", tokenID, err)
	}

	price, ok := midPrice(book)
	if !ok {
		return c.fetchPriceFromMarket(ctx, marketID, outcome)
	}
	return price, nil
}

// midPrice derives a tracking price from an orderbook: the bid/ask mid
// when both sides exist, otherwise the best level of the populated
// side.
func midPrice(book orderbook) (float64, bool) {
	bestBid, hasBid := bestLevel(book.Bids)
	bestAsk, hasAsk := bestLevel(book.Asks)

	switch {
	case hasBid && hasAsk:
		return (bestBid + bestAsk) / 2, true
	case hasBid:
		return bestBid, true
	case hasAsk:
		return bestAsk, true
	default:
		return 0, false
	}
}

func bestLevel(levels [][2]string) (float64, bool) {
	if len(levels) == 0 {
		return 0, false
	}
	price, err := strconv.ParseFloat(levels[0][0], 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// fetchPriceFromMarket is the fallback path using the market listing.
func (c *ClobClient) fetchPriceFromMarket(ctx context.Context, marketID string, outcome domain.Outcome) (float64, error) {
	body, err := c.doGet(ctx, "/markets/"+url.PathEscape(marketID))
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: %w: market=%s", domain.ErrPriceUnavailable, marketID)
	}

	var md marketData
	if err := json.Unmarshal(body, &md); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode market %s: %w", marketID, err)
	}

	if md.Price != nil {
		if p, err := strconv.ParseFloat(*md.Price, 64); err == nil {
			return p, nil
		}
	}
	want := strings.ToUpper(string(outcome))
	for _, o := range md.Outcomes {
		if strings.ToUpper(o.Outcome) == want && o.Price != nil {
			if p, err := strconv.ParseFloat(*o.Price, 64); err == nil {
				return p, nil
			}
		}
	}

	return 0, fmt.Errorf("polymarket/clob: %w: market=%s outcome=%s", domain.ErrPriceUnavailable, marketID, outcome)
}

// FetchMarketInfo returns the question and outcome labels for a market.
func (c *ClobClient) FetchMarketInfo(ctx context.Context, marketID string) (domain.MarketInfo, error) {
	body, err := c.doGet(ctx, "/markets/"+url.PathEscape(marketID))
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("polymarket/clob: get market %s: %w", marketID, err)
	}

	var md marketData
	if err := json.Unmarshal(body, &md); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("polymarket/clob: decode market %s: %w", marketID, err)
	}

	question := md.Question
	if question == "" {
		question = md.Title
	}
	if question == "" {
		question = marketID
	}

	outcomes := make([]string, 0, len(md.Outcomes))
	for _, o := range md.Outcomes {
		if o.Outcome != "" {
			outcomes = append(outcomes, o.Outcome)
		} else {
			outcomes = append(outcomes, o.ID)
		}
	}
	if len(outcomes) == 0 {
		outcomes = []string{"YES", "NO"}
	}

	return domain.MarketInfo{
		ID:       marketID,
		Question: question,
		Outcomes: outcomes,
		Active:   true,
	}, nil
}

// doGet performs a GET and returns the raw body. Non-2xx responses are
// errors.
func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
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

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
