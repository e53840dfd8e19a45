// Package memory is a DataProvider backed by in-memory fixtures. It stands in
// for the live provider in tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
)

type fixtureKey struct {
	instrumentKey string
	timeframe     string
	day           string
}

func newFixtureKey(instrumentKey, timeframe string, day time.Time) fixtureKey {
	return fixtureKey{instrumentKey: instrumentKey, timeframe: timeframe, day: day.Format(time.DateOnly)}
}

// Call records a single Fetch invocation.
type Call struct {
	InstrumentKey string
	From          time.Time
	To            time.Time
	Timeframe     domain.Timeframe
}

type Provider struct {
	mu       sync.Mutex
	candles  map[fixtureKey][]domain.Candle
	failures map[fixtureKey]error
	calls    []Call
}

func NewProvider() *Provider {
	return &Provider{
		candles:  make(map[fixtureKey][]domain.Candle),
		failures: make(map[fixtureKey]error),
	}
}

// Set registers the candles returned for one instrument, timeframe token and day.
func (p *Provider) Set(instrumentKey, timeframe string, day time.Time, candles ...domain.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[newFixtureKey(instrumentKey, timeframe, day)] = candles
}

// Fail makes every fetch of the given day behave like a failed upstream call.
func (p *Provider) Fail(instrumentKey, timeframe string, day time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[newFixtureKey(instrumentKey, timeframe, day)] = err
}

func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	calls := make([]Call, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// Fetch returns the fixtures for every day between from and to inclusive.
// Injected failures are logged and reported as an empty result.
func (p *Provider) Fetch(ctx context.Context, instrumentKey string, from, to time.Time, tf domain.Timeframe) []domain.Candle {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{InstrumentKey: instrumentKey, From: from, To: to, Timeframe: tf})

	var candles []domain.Candle
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := newFixtureKey(instrumentKey, tf.Token, day)
		if err, ok := p.failures[key]; ok {
			slog.WarnContext(ctx, "failed to fetch candles",
				"instrument_key", instrumentKey,
				"from", from.Format(time.DateOnly),
				"to", to.Format(time.DateOnly),
				"timeframe", tf.Token,
				"error", fmt.Errorf("%w: %w", domain.ErrProviderFailure, err),
			)
			return nil
		}
		candles = append(candles, p.candles[key]...)
	}
	return candles
}
