package domain

import "time"

// Candle is one OHLCV sample of an instrument for a single time bucket.
// OpenInterest is only meaningful for derivatives and is zero otherwise.
type Candle struct {
	Timestamp    time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
	OpenInterest int64
}
