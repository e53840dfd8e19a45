package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Unit int

const (
	UnitMinute Unit = iota + 1
)

// String returns the unit name understood by the market data provider.
func (u Unit) String() string {
	return unitToString[u]
}

var unitToString = map[Unit]string{
	UnitMinute: "minutes",
}

// Timeframe is a candle bucket width normalized to a (count, unit) pair.
// Token keeps the configured spelling, which is what partitions are named after.
type Timeframe struct {
	Token    string
	Interval int
	Unit     Unit
}

func (t Timeframe) String() string {
	return t.Token
}

type timeframeForm struct {
	suffix     string
	multiplier int
}

// Checked in order, first match wins. Hours are reported in minutes.
var timeframeForms = []timeframeForm{
	{suffix: "min", multiplier: 1},
	{suffix: "m", multiplier: 1},
	{suffix: "h", multiplier: 60},
}

func ParseTimeframe(s string) (Timeframe, error) {
	for _, form := range timeframeForms {
		if !strings.HasSuffix(s, form.suffix) {
			continue
		}
		n, err := parsePositive(strings.TrimSuffix(s, form.suffix))
		if err != nil || n > math.MaxInt/form.multiplier {
			return Timeframe{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
		}
		return Timeframe{Token: s, Interval: n * form.multiplier, Unit: UnitMinute}, nil
	}

	n, err := parsePositive(s)
	if err != nil {
		return Timeframe{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	return Timeframe{Token: s, Interval: n, Unit: UnitMinute}, nil
}

func parsePositive(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
