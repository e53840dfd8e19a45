package fetch

import (
	"context"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
)

// Interface requirements for the market data provider. Fetch never fails:
// upstream errors come back as an empty result.
type dataProvider interface {
	Fetch(ctx context.Context, instrumentKey string, from, to time.Time, tf domain.Timeframe) []domain.Candle
}

// Interface requirements for the partition storage
type partitionStore interface {
	FilePath(instrumentKey, timeframe string, day time.Time) string
	Exists(filename string) (bool, error)
	Write(ctx context.Context, instrumentKey, timeframe string, day time.Time, candles []domain.Candle) error
}
