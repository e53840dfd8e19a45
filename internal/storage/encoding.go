package storage

import (
	"fmt"
	"io"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
	"github.com/parquet-go/parquet-go"
)

// Column order is part of the file format: timestamp, open, high, low, close, volume, oi.
type candleRow struct {
	Timestamp time.Time `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64   `parquet:"open"`
	High      float64   `parquet:"high"`
	Low       float64   `parquet:"low"`
	Close     float64   `parquet:"close"`
	Volume    int64     `parquet:"volume"`
	OI        int64     `parquet:"oi"`
}

func toCandleRows(candles []domain.Candle) []candleRow {
	rows := make([]candleRow, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, candleRow{
			Timestamp: c.Timestamp.UTC(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			OI:        c.OpenInterest,
		})
	}
	return rows
}

func encodeCandles(w io.Writer, candles []domain.Candle) error {
	rows := toCandleRows(candles)

	pw := parquet.NewGenericWriter[candleRow](w)
	n, err := pw.Write(rows)
	if err != nil {
		return fmt.Errorf("failed to write candle rows: %w", err)
	}
	if n != len(rows) {
		return fmt.Errorf("failed to write candle rows: %w", io.ErrShortWrite)
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func decodeCandles(r io.ReaderAt, size int64) ([]domain.Candle, error) {
	rows, err := parquet.Read[candleRow](r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read candle rows: %w", err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, domain.Candle{
			Timestamp:    row.Timestamp.UTC(),
			Open:         row.Open,
			High:         row.High,
			Low:          row.Low,
			Close:        row.Close,
			Volume:       row.Volume,
			OpenInterest: row.OI,
		})
	}
	return candles, nil
}
