// Package quote implements the market-data provider against the public
// quote JSON API (chart, quoteSummary, and options endpoints). Two mirror
// hosts are typically registered as independent providers so the gateway
// can fail over between them.
package quote

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

// Client fetches price history, fundamentals, and options chains.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
}

// New creates a named client against a base URL.
func New(name, baseURL string, timeout time.Duration) *Client {
	return &Client{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Kinds() []market.DataKind {
	return []market.DataKind{
		market.KindPriceHistory,
		market.KindBenchmark,
		market.KindFundamentals,
		market.KindOptionsChain,
	}
}

// chart API response, trimmed to the fields we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchBars pulls two years of bars at the requested interval.
func (c *Client) FetchBars(ctx context.Context, ticker string, tf market.Timeframe) ([]market.Bar, error) {
	interval := string(tf)
	if interval == "" {
		interval = string(market.TimeframeDaily)
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=2y",
		c.baseURL, url.PathEscape(ticker), url.QueryEscape(interval))

	var resp chartResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, c.fail(0, fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, c.fail(0, fmt.Errorf("empty chart result for %s", ticker))
	}

	r := resp.Chart.Result[0]
	q := r.Indicators.Quote[0]
	bars := make([]market.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		// The API pads halted sessions with nulls; skip incomplete rows.
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		bar := market.Bar{Timestamp: time.Unix(ts, 0).UTC(), Close: *q.Close[i]}
		if i < len(q.Open) && q.Open[i] != nil {
			bar.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			bar.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			bar.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		bars = append(bars, bar)
	}

	log.Debug().
		Str("provider", c.name).
		Str("ticker", ticker).
		Str("interval", interval).
		Int("bars", len(bars)).
		Msg("chart fetched")
	return bars, nil
}

// rawValue is the API's {"raw": 1.23, "fmt": "1.23"} number wrapper.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v *rawValue) ptr() *float64 {
	if v == nil {
		return nil
	}
	return v.Raw
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData *struct {
				DebtToEquity       *rawValue `json:"debtToEquity"`
				ReturnOnEquity     *rawValue `json:"returnOnEquity"`
				FreeCashflow       *rawValue `json:"freeCashflow"`
				EarningsGrowth     *rawValue `json:"earningsGrowth"`
				RevenueGrowth      *rawValue `json:"revenueGrowth"`
				ProfitMargins      *rawValue `json:"profitMargins"`
				CurrentPrice       *rawValue `json:"currentPrice"`
				TargetMeanPrice    *rawValue `json:"targetMeanPrice"`
				RecommendationMean *rawValue `json:"recommendationMean"`
			} `json:"financialData"`
			DefaultKeyStatistics *struct {
				PriceToBook             *rawValue `json:"priceToBook"`
				EarningsQuarterlyGrowth *rawValue `json:"earningsQuarterlyGrowth"`
				ForwardPE               *rawValue `json:"forwardPE"`
				ShortPercentOfFloat     *rawValue `json:"shortPercentOfFloat"`
				Beta                    *rawValue `json:"beta"`
				HeldPercentInstitutions *rawValue `json:"heldPercentInstitutions"`
			} `json:"defaultKeyStatistics"`
			SummaryDetail *struct {
				PriceToSales     *rawValue `json:"priceToSalesTrailing12Months"`
				MarketCap        *rawValue `json:"marketCap"`
				TrailingPE       *rawValue `json:"trailingPE"`
				FiftyTwoWeekHigh *rawValue `json:"fiftyTwoWeekHigh"`
				Volume           *rawValue `json:"volume"`
				AverageVolume    *rawValue `json:"averageVolume"`
			} `json:"summaryDetail"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

// FetchFundamentals pulls the fundamental snapshot. Absent modules leave
// their fields nil; the missing ratio downstream accounts for that.
func (c *Client) FetchFundamentals(ctx context.Context, ticker string) (*market.Fundamentals, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=financialData,defaultKeyStatistics,summaryDetail",
		c.baseURL, url.PathEscape(ticker))

	var resp quoteSummaryResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.QuoteSummary.Error != nil {
		return nil, c.fail(0, fmt.Errorf("quoteSummary error %s: %s",
			resp.QuoteSummary.Error.Code, resp.QuoteSummary.Error.Description))
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, c.fail(0, fmt.Errorf("empty quoteSummary result for %s", ticker))
	}

	r := resp.QuoteSummary.Result[0]
	f := &market.Fundamentals{}
	if fd := r.FinancialData; fd != nil {
		f.DebtToEquity = fd.DebtToEquity.ptr()
		f.ReturnOnEquity = fd.ReturnOnEquity.ptr()
		f.FreeCashflow = fd.FreeCashflow.ptr()
		f.EarningsGrowth = fd.EarningsGrowth.ptr()
		f.RevenueGrowth = fd.RevenueGrowth.ptr()
		f.ProfitMargins = fd.ProfitMargins.ptr()
		f.CurrentPrice = fd.CurrentPrice.ptr()
		f.TargetMeanPrice = fd.TargetMeanPrice.ptr()
		f.RecommendationMean = fd.RecommendationMean.ptr()
	}
	if ks := r.DefaultKeyStatistics; ks != nil {
		f.PriceToBook = ks.PriceToBook.ptr()
		f.EarningsQuarterlyGrowth = ks.EarningsQuarterlyGrowth.ptr()
		f.ForwardPE = ks.ForwardPE.ptr()
		f.ShortPercentOfFloat = ks.ShortPercentOfFloat.ptr()
		f.Beta = ks.Beta.ptr()
		f.HeldPercentInstitutions = ks.HeldPercentInstitutions.ptr()
	}
	if sd := r.SummaryDetail; sd != nil {
		f.PriceToSales = sd.PriceToSales.ptr()
		f.MarketCap = sd.MarketCap.ptr()
		f.TrailingPE = sd.TrailingPE.ptr()
		f.FiftyTwoWeekHigh = sd.FiftyTwoWeekHigh.ptr()
		f.Volume = sd.Volume.ptr()
		f.AverageVolume = sd.AverageVolume.ptr()
	}
	return f, nil
}

type optionsResponse struct {
	OptionChain struct {
		Result []struct {
			Quote struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"quote"`
			Options []struct {
				ExpirationDate int64            `json:"expirationDate"`
				Calls          []optionContract `json:"calls"`
				Puts           []optionContract `json:"puts"`
			} `json:"options"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"optionChain"`
}

type optionContract struct {
	Strike       float64 `json:"strike"`
	LastPrice    float64 `json:"lastPrice"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"openInterest"`
	Expiration   int64   `json:"expiration"`
}

// FetchOptionsChain pulls the full near-dated chain snapshot.
func (c *Client) FetchOptionsChain(ctx context.Context, ticker string) (*market.OptionsChain, error) {
	u := fmt.Sprintf("%s/v7/finance/options/%s", c.baseURL, url.PathEscape(ticker))

	var resp optionsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.OptionChain.Error != nil {
		return nil, c.fail(0, fmt.Errorf("options error %s: %s",
			resp.OptionChain.Error.Code, resp.OptionChain.Error.Description))
	}
	if len(resp.OptionChain.Result) == 0 {
		return nil, c.fail(0, fmt.Errorf("empty options result for %s", ticker))
	}

	r := resp.OptionChain.Result[0]
	chain := &market.OptionsChain{
		Ticker:    ticker,
		SpotPrice: r.Quote.RegularMarketPrice,
		AsOf:      time.Now().UTC(),
	}
	for _, exp := range r.Options {
		expiry := time.Unix(exp.ExpirationDate, 0).UTC()
		for _, oc := range exp.Calls {
			chain.Contracts = append(chain.Contracts, toContract(oc, market.OptionCall, expiry))
		}
		for _, oc := range exp.Puts {
			chain.Contracts = append(chain.Contracts, toContract(oc, market.OptionPut, expiry))
		}
	}
	return chain, nil
}

func toContract(oc optionContract, typ market.OptionType, expiry time.Time) market.OptionContract {
	if oc.Expiration != 0 {
		expiry = time.Unix(oc.Expiration, 0).UTC()
	}
	return market.OptionContract{
		Type:         typ,
		Strike:       oc.Strike,
		Expiry:       expiry,
		LastPrice:    oc.LastPrice,
		Bid:          oc.Bid,
		Ask:          oc.Ask,
		Volume:       oc.Volume,
		OpenInterest: oc.OpenInterest,
	}
}

// FetchCongressTrades is not served by this provider.
func (c *Client) FetchCongressTrades(ctx context.Context, ticker string) ([]market.CongressTrade, error) {
	return nil, providers.ErrKindNotSupported
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return c.fail(0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &providers.ProviderError{
			Provider:    c.name,
			StatusCode:  resp.StatusCode,
			RateLimited: true,
			Err:         fmt.Errorf("rate limited"),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return c.fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(0, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) fail(status int, err error) error {
	return &providers.ProviderError{Provider: c.name, StatusCode: status, Err: err}
}
