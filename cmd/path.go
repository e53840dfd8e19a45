package main

import (
	"fmt"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/config"
	"github.com/0xc0d3d00d/candlefetch/internal/domain"
	"github.com/0xc0d3d00d/candlefetch/internal/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newPathCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "path INSTRUMENT_KEY TIMEFRAME DATE",
		Short:   "Print the partition file of one instrument, timeframe and day",
		Example: `  candlefetch path "NSE_INDEX|Nifty 50" 15min 2024-01-01`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			instrumentKey, timeframe := args[0], args[1]
			if err := storage.ValidateKey(instrumentKey); err != nil {
				return err
			}
			if _, err := domain.ParseTimeframe(timeframe); err != nil {
				return err
			}
			day, err := time.ParseInLocation(time.DateOnly, args[2], cfg.Location())
			if err != nil {
				return fmt.Errorf("date %q is not YYYY-MM-DD: %w", args[2], err)
			}

			db, err := storage.NewStorage(afero.NewOsFs(), cfg.DataDir)
			if err != nil {
				return err
			}

			filename := db.FilePath(instrumentKey, timeframe, day)
			exists, err := db.Exists(filename)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tmissing\n", filename)
				return nil
			}

			candles, err := db.Read(filename)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d candles\n", filename, len(candles))
			return nil
		},
	}
}
