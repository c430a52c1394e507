package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mphinancial/terminal/internal/market"
	"github.com/mphinancial/terminal/internal/providers"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New("test", srv.URL, 2*time.Second), srv
}

func TestFetchBars(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/ACME", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1719705600,1719792000,1719878400],
			"indicators":{"quote":[{
				"open":[99,100,null],"high":[101,102,null],"low":[98,99,null],
				"close":[100,101,null],"volume":[1000,2000,null]
			}]}
		}]}}`))
	})
	defer srv.Close()

	bars, err := c.FetchBars(context.Background(), "ACME", market.TimeframeDaily)
	require.NoError(t, err)

	// The null-padded third row is dropped.
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 2000.0, bars[1].Volume)
	assert.Equal(t, time.Unix(1719705600, 0).UTC(), bars[0].Timestamp)
}

func TestFetchBarsRateLimited(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := c.FetchBars(context.Background(), "ACME", market.TimeframeDaily)
	require.Error(t, err)
	assert.True(t, providers.IsRateLimited(err))
}

func TestFetchBarsAPIError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[],"error":{"code":"Not Found","description":"no data"}}}`))
	})
	defer srv.Close()

	_, err := c.FetchBars(context.Background(), "NOPE", market.TimeframeDaily)
	require.Error(t, err)
	assert.False(t, providers.IsRateLimited(err))
}

func TestFetchFundamentals(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v10/finance/quoteSummary/ACME", r.URL.Path)
		w.Write([]byte(`{"quoteSummary":{"result":[{
			"financialData":{
				"debtToEquity":{"raw":42.5},
				"currentPrice":{"raw":100},
				"returnOnEquity":{}
			},
			"summaryDetail":{
				"marketCap":{"raw":1e11},
				"fiftyTwoWeekHigh":{"raw":120}
			}
		}]}}`))
	})
	defer srv.Close()

	f, err := c.FetchFundamentals(context.Background(), "ACME")
	require.NoError(t, err)

	require.NotNil(t, f.DebtToEquity)
	assert.Equal(t, 42.5, *f.DebtToEquity)
	require.NotNil(t, f.CurrentPrice)
	assert.Equal(t, 100.0, *f.CurrentPrice)
	// Empty raw wrapper and absent modules both come back nil.
	assert.Nil(t, f.ReturnOnEquity)
	assert.Nil(t, f.PriceToBook)
	assert.Greater(t, f.MissingRatio(), 0.5)
}

func TestFetchOptionsChain(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/options/ACME", r.URL.Path)
		w.Write([]byte(`{"optionChain":{"result":[{
			"quote":{"regularMarketPrice":100.5},
			"options":[{
				"expirationDate":1722556800,
				"calls":[{"strike":105,"lastPrice":2.5,"volume":100,"openInterest":500}],
				"puts":[{"strike":95,"lastPrice":1.5,"volume":50,"openInterest":400}]
			}]
		}]}}`))
	})
	defer srv.Close()

	chain, err := c.FetchOptionsChain(context.Background(), "ACME")
	require.NoError(t, err)

	assert.Equal(t, 100.5, chain.SpotPrice)
	require.Len(t, chain.Contracts, 2)
	assert.Equal(t, market.OptionCall, chain.Contracts[0].Type)
	assert.Equal(t, 105.0, chain.Contracts[0].Strike)
	assert.Equal(t, market.OptionPut, chain.Contracts[1].Type)
	assert.Equal(t, time.Unix(1722556800, 0).UTC(), chain.Contracts[0].Expiry)
}

func TestFetchCongressTradesUnsupported(t *testing.T) {
	c := New("test", "http://unused", time.Second)
	_, err := c.FetchCongressTrades(context.Background(), "ACME")
	assert.ErrorIs(t, err, providers.ErrKindNotSupported)
}
