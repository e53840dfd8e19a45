package upstox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const maxErrorBodySize = 4 << 10

var ErrTooManyRequests = errors.New("too many requests")

type Provider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewProvider returns a provider for cfg. A nil client is replaced by one built
// with NewHTTPClient(cfg.Timeout).
func NewProvider(cfg Config, client *http.Client) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Provider{cfg: cfg, client: client, limiter: newLimiter(cfg.RequestsPerSecond)}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Fetch returns the candles of instrumentKey between from and to, both inclusive.
// Failures are logged and reported as an empty result, so one bad day never
// aborts a run.
func (p *Provider) Fetch(ctx context.Context, instrumentKey string, from, to time.Time, tf domain.Timeframe) []domain.Candle {
	candles, err := p.fetchCandles(ctx, instrumentKey, from, to, tf)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch candles",
			"instrument_key", instrumentKey,
			"from", from.Format(time.DateOnly),
			"to", to.Format(time.DateOnly),
			"timeframe", tf.Token,
			"error", err,
		)
		return nil
	}
	return candles
}

func (p *Provider) fetchCandles(ctx context.Context, instrumentKey string, from, to time.Time, tf domain.Timeframe) ([]domain.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limiter: %w", domain.ErrProviderFailure, err)
	}

	u := fmt.Sprintf("%s/v3/historical-candle/%s/%s/%d/%s/%s",
		p.cfg.BaseURL,
		url.PathEscape(instrumentKey),
		tf.Unit,
		tf.Interval,
		to.Format(time.DateOnly),
		from.Format(time.DateOnly),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return nil, handleErr(fmt.Sprintf("upstox http %d for %q", res.StatusCode, instrumentKey), res)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", domain.ErrProviderFailure, err)
	}

	return parseCandles(body)
}

func handleErr(msg string, res *http.Response) error {
	if res.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: %w", domain.ErrProviderFailure, msg, ErrTooManyRequests)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrProviderFailure, msg)
	}
	if m := errorMessage(body); m != "" {
		msg = fmt.Sprintf("%s (%s)", msg, m)
	}
	return fmt.Errorf("%w: %s", domain.ErrProviderFailure, msg)
}

func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	e := gjson.GetBytes(body, "errors.0")
	if !e.Exists() {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Get("errorCode").String(), e.Get("message").String())
}

// parseCandles decodes {"status":"success","data":{"candles":[[ts,o,h,l,c,v,oi],...]}}.
func parseCandles(body []byte) ([]domain.Candle, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed response body", domain.ErrProviderFailure)
	}

	if status := gjson.GetBytes(body, "status").String(); status != "success" {
		if m := errorMessage(body); m != "" {
			return nil, fmt.Errorf("%w: upstox status %q (%s)", domain.ErrProviderFailure, status, m)
		}
		return nil, fmt.Errorf("%w: upstox status %q", domain.ErrProviderFailure, status)
	}

	rows := gjson.GetBytes(body, "data.candles").Array()
	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("%w: candle %d: %w", domain.ErrProviderFailure, i, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseCandle(row gjson.Result) (domain.Candle, error) {
	fields := row.Array()
	if !row.IsArray() || len(fields) < 7 {
		return domain.Candle{}, fmt.Errorf("expected 7 fields, got %s", row.Raw)
	}

	ts, err := time.Parse(time.RFC3339, fields[0].String())
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parse timestamp %q: %w", fields[0].String(), err)
	}

	names := [...]string{"open", "high", "low", "close", "volume", "oi"}
	for i, name := range names {
		if fields[i+1].Type != gjson.Number {
			return domain.Candle{}, fmt.Errorf("parse %s %q: not a number", name, fields[i+1].Raw)
		}
	}
	for i, name := range names[4:] {
		if !isCount(fields[i+5]) {
			return domain.Candle{}, fmt.Errorf("parse %s %q: not a non-negative integer", name, fields[i+5].Raw)
		}
	}

	return domain.Candle{
		Timestamp:    ts,
		Open:         fields[1].Float(),
		High:         fields[2].Float(),
		Low:          fields[3].Float(),
		Close:        fields[4].Float(),
		Volume:       fields[5].Int(),
		OpenInterest: fields[6].Int(),
	}, nil
}

// isCount reports whether a numeric field holds a whole number >= 0 that fits an int64.
func isCount(v gjson.Result) bool {
	f := v.Float()
	return f >= 0 && f < math.MaxInt64 && f == math.Trunc(f)
}
