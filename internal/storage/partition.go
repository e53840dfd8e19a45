package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
)

const fileExt = ".parquet"

// PartitionKey identifies the single file holding one instrument's candles
// for one timeframe and calendar day.
type PartitionKey struct {
	Market     string
	Timeframe  string
	Instrument string
	Day        time.Time
}

// ValidateKey rejects instrument keys whose derived segments would leave the
// base directory or collapse into it.
func ValidateKey(instrumentKey string) error {
	if instrumentKey == "" {
		return fmt.Errorf("%w: empty", domain.ErrInvalidKey)
	}
	if strings.ContainsAny(instrumentKey, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", domain.ErrInvalidKey, instrumentKey)
	}
	k := Key(instrumentKey, "", time.Time{})
	for _, segment := range []string{k.Market, k.Instrument} {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: %q", domain.ErrInvalidKey, instrumentKey)
		}
	}
	return nil
}

// Key derives the partition key of an instrument key such as "NSE_INDEX|Nifty 50".
// The market is everything before the first '|'; the instrument segment is the
// whole key with every '|' replaced by '_'.
func Key(instrumentKey, timeframe string, day time.Time) PartitionKey {
	market, _, _ := strings.Cut(instrumentKey, "|")
	return PartitionKey{
		Market:     market,
		Timeframe:  timeframe,
		Instrument: strings.ReplaceAll(instrumentKey, "|", "_"),
		Day:        day,
	}
}

// Path lays the partition out as
// <base>/<market>/<timeframe>/<instrument>/<YYYY>/<MM>/<YYYY-MM-DD>.parquet
func (k PartitionKey) Path(base string) string {
	return filepath.Join(
		base,
		k.Market,
		k.Timeframe,
		k.Instrument,
		k.Day.Format("2006"),
		k.Day.Format("01"),
		k.Day.Format(time.DateOnly)+fileExt,
	)
}
