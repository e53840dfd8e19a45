package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
	"github.com/0xc0d3d00d/candlefetch/internal/storage"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var ErrInvalidPlan = errors.New("invalid job plan")

// Plan mirrors the job file:
//
//	{"from_date": "2024-01-01", "instruments": ["NSE_INDEX|Nifty 50"], "timeframes": ["15min"]}
type Plan struct {
	FromDate    string   `mapstructure:"from_date"`
	Instruments []string `mapstructure:"instruments"`
	Timeframes  []string `mapstructure:"timeframes"`
}

// LoadPlan reads a job plan from path; the format follows the file extension.
func LoadPlan(path string) (Plan, error) {
	if path == "" {
		return Plan{}, fmt.Errorf("%w: config path cannot be empty", ErrInvalidPlan)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Plan{}, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}

	var plan Plan
	if err := v.Unmarshal(&plan, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return Plan{}, fmt.Errorf("parsing config failed: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Validate checks the plan before any network call is made, so a typo in a
// timeframe fails the run up front.
func (p Plan) Validate() error {
	if len(p.Instruments) == 0 {
		return fmt.Errorf("%w: no instruments configured", ErrInvalidPlan)
	}
	for i, instrument := range p.Instruments {
		if instrument == "" {
			return fmt.Errorf("%w: instrument %d is empty", ErrInvalidPlan, i)
		}
		if err := storage.ValidateKey(instrument); err != nil {
			return fmt.Errorf("%w: instrument %d: %w", ErrInvalidPlan, i, err)
		}
	}
	if len(p.Timeframes) == 0 {
		return fmt.Errorf("%w: no timeframes configured", ErrInvalidPlan)
	}
	for _, tf := range p.Timeframes {
		if _, err := domain.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
		}
	}
	if _, err := time.Parse(time.DateOnly, p.FromDate); err != nil {
		return fmt.Errorf("%w: from_date %q is not YYYY-MM-DD", ErrInvalidPlan, p.FromDate)
	}
	return nil
}

// StartDate is FromDate as midnight in loc.
func (p Plan) StartDate(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, p.FromDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: from_date %q is not YYYY-MM-DD", ErrInvalidPlan, p.FromDate)
	}
	return d, nil
}
