// Package congress implements the disclosure-tracker provider over the
// congressional trading disclosure API. It serves only the congress_trades
// data kind.
package congress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mphinancial/terminal/internal/market"
	"github.com/mphinancial/terminal/internal/providers"
)

// Client fetches STOCK Act disclosures for a ticker.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client. The API key is optional for mock/staging hosts.
func New(name, baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Kinds() []market.DataKind {
	return []market.DataKind{market.KindCongressTrades}
}

type disclosureResponse struct {
	Trades []struct {
		Member          string `json:"member"`
		Party           string `json:"party"`
		State           string `json:"state"`
		Ticker          string `json:"ticker"`
		Transaction     string `json:"transaction"`
		Amount          string `json:"amount"`
		TransactionDate string `json:"transaction_date"`
		DisclosureDate  string `json:"disclosure_date"`
	} `json:"trades"`
}

// FetchCongressTrades returns disclosed trades for the ticker. Transaction
// types other than purchase/sale (exchanges, received) are dropped.
func (c *Client) FetchCongressTrades(ctx context.Context, ticker string) ([]market.CongressTrade, error) {
	q := url.Values{}
	q.Set("ticker", ticker)
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u := fmt.Sprintf("%s/v1/disclosures?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, c.fail(0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &providers.ProviderError{
			Provider:    c.name,
			StatusCode:  resp.StatusCode,
			RateLimited: true,
			Err:         fmt.Errorf("rate limited"),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var body disclosureResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, c.fail(0, fmt.Errorf("decode response: %w", err))
	}

	trades := make([]market.CongressTrade, 0, len(body.Trades))
	for _, t := range body.Trades {
		var side market.TradeSide
		switch t.Transaction {
		case "Purchase", "purchase":
			side = market.TradePurchase
		case "Sale", "sale", "Sale (Full)", "Sale (Partial)":
			side = market.TradeSale
		default:
			continue
		}
		trade := market.CongressTrade{
			Member:      t.Member,
			Party:       t.Party,
			State:       t.State,
			Ticker:      t.Ticker,
			Transaction: side,
			Amount:      t.Amount,
		}
		if ts, err := time.Parse("2006-01-02", t.TransactionDate); err == nil {
			trade.Executed = ts
		}
		if ts, err := time.Parse("2006-01-02", t.DisclosureDate); err == nil {
			trade.Disclosed = ts
		}
		trades = append(trades, trade)
	}

	log.Debug().
		Str("provider", c.name).
		Str("ticker", ticker).
		Int("trades", len(trades)).
		Msg("disclosures fetched")
	return trades, nil
}

// FetchBars is not served by this provider.
func (c *Client) FetchBars(ctx context.Context, ticker string, tf market.Timeframe) ([]market.Bar, error) {
	return nil, providers.ErrKindNotSupported
}

// FetchFundamentals is not served by this provider.
func (c *Client) FetchFundamentals(ctx context.Context, ticker string) (*market.Fundamentals, error) {
	return nil, providers.ErrKindNotSupported
}

// FetchOptionsChain is not served by this provider.
func (c *Client) FetchOptionsChain(ctx context.Context, ticker string) (*market.OptionsChain, error) {
	return nil, providers.ErrKindNotSupported
}

func (c *Client) fail(status int, err error) error {
	return &providers.ProviderError{Provider: c.name, StatusCode: status, Err: err}
}
