package upstox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDay       = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	testTimeframe = domain.Timeframe{Token: "1h", Interval: 60, Unit: domain.UnitMinute}
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewProvider(Config{AccessToken: "test-token", BaseURL: server.URL}, server.Client())
}

func TestProvider_Fetch_Success(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v3/historical-candle/NSE_INDEX|Nifty 50/minutes/60/2024-01-01/2024-01-01", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "success",
			"data": {
				"candles": [
					["2024-01-01T09:15:00+05:30", 21727.75, 21737.35, 21701.8, 21712, 0, 0],
					["2024-01-01T10:15:00+05:30", 21712.2, 21740.1, 21705.05, 21738.65, 1520, 42]
				]
			}
		}`))
	})

	candles := p.Fetch(context.Background(), "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe)
	require.Len(t, candles, 2)

	ist := time.FixedZone("", 5*3600+30*60)
	assert.True(t, time.Date(2024, time.January, 1, 9, 15, 0, 0, ist).Equal(candles[0].Timestamp))
	assert.Equal(t, 21727.75, candles[0].Open)
	assert.Equal(t, 21737.35, candles[0].High)
	assert.Equal(t, 21701.8, candles[0].Low)
	assert.Equal(t, 21712.0, candles[0].Close)
	assert.Equal(t, int64(1520), candles[1].Volume)
	assert.Equal(t, int64(42), candles[1].OpenInterest)
}

func TestProvider_Fetch_EmptyDay(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[]}}`))
	})

	candles := p.Fetch(context.Background(), "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe)
	assert.Empty(t, candles)
}

func TestProvider_Fetch_FailuresAreAbsorbed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"status":"error","errors":[{"errorCode":"UDAPI100050","message":"Invalid token used to access API"}]}`))
			},
		},
		{
			name: "too many requests",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "internal server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("upstream unavailable"))
			},
		},
		{
			name: "error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"error","errors":[{"errorCode":"UDAPI1021","message":"Instrument key is invalid"}]}`))
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":`))
			},
		},
		{
			name: "short candle row",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[["2024-01-01T09:15:00+05:30", 1, 2, 3]]}}`))
			},
		},
		{
			name: "bad timestamp",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[["yesterday", 1, 2, 3, 4, 5, 6]]}}`))
			},
		},
		{
			name: "negative volume",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[["2024-01-01T09:15:00+05:30", 1, 2, 3, 4, -42, 0]]}}`))
			},
		},
		{
			name: "negative open interest",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[["2024-01-01T09:15:00+05:30", 1, 2, 3, 4, 10, -1]]}}`))
			},
		},
		{
			name: "fractional open interest",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[["2024-01-01T09:15:00+05:30", 1, 2, 3, 4, 10, 7.9]]}}`))
			},
		},
		{
			name: "fractional volume",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[["2024-01-01T09:15:00+05:30", 1, 2, 3, 4, 0.5, 0]]}}`))
			},
		},
		{
			name: "non numeric price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[["2024-01-01T09:15:00+05:30", "1", 2, 3, 4, 5, 6]]}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.handler)

			var candles []domain.Candle
			assert.NotPanics(t, func() {
				candles = p.Fetch(context.Background(), "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe)
			})
			assert.Empty(t, candles)

			_, err := p.fetchCandles(context.Background(), "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe)
			assert.ErrorIs(t, err, domain.ErrProviderFailure)
		})
	}
}

func TestProvider_Fetch_TooManyRequests(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.fetchCandles(context.Background(), "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe)
	assert.True(t, errors.Is(err, ErrTooManyRequests))
}

func TestProvider_Fetch_ErrorMessage(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","errors":[{"errorCode":"UDAPI1021","message":"Instrument key is invalid"}]}`))
	})

	_, err := p.fetchCandles(context.Background(), "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstox http 400")
	assert.Contains(t, err.Error(), "UDAPI1021: Instrument key is invalid")
}

func TestProvider_Fetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := NewProvider(Config{AccessToken: "test-token", BaseURL: url, Timeout: time.Second}, nil)

	candles := p.Fetch(context.Background(), "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe)
	assert.Empty(t, candles)
}

func TestProvider_Fetch_CanceledContext(t *testing.T) {
	calls := 0
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[]}}`))
	})
	p.limiter = newLimiter(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candles := p.Fetch(ctx, "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe)
	assert.Empty(t, candles)
	assert.Zero(t, calls)
}

func TestNewProvider_Defaults(t *testing.T) {
	p := NewProvider(Config{AccessToken: "x", BaseURL: "https://example.com/"}, http.DefaultClient)
	assert.Equal(t, "https://example.com", p.cfg.BaseURL)

	p = NewProvider(Config{AccessToken: "x"}, http.DefaultClient)
	assert.Equal(t, DefaultBaseURL, p.cfg.BaseURL)
}

func TestNewProvider_ClientFromTimeout(t *testing.T) {
	p := NewProvider(Config{AccessToken: "x", Timeout: 3 * time.Second}, nil)
	require.NotNil(t, p.client)
	assert.Equal(t, 3*time.Second, p.client.Timeout)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[["2024-01-01T09:15:00+05:30", 1, 2, 3, 4, 5, 6]]}}`))
	}))
	t.Cleanup(server.Close)

	p = NewProvider(Config{AccessToken: "x", BaseURL: server.URL, Timeout: time.Second}, nil)
	assert.Len(t, p.Fetch(context.Background(), "NSE_INDEX|Nifty 50", testDay, testDay, testTimeframe), 1)
}
