package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/config"
	"github.com/0xc0d3d00d/candlefetch/internal/domain"
	"github.com/0xc0d3d00d/candlefetch/internal/fetch"
	"github.com/0xc0d3d00d/candlefetch/internal/provider/memory"
	"github.com/0xc0d3d00d/candlefetch/internal/provider/upstox"
	"github.com/0xc0d3d00d/candlefetch/internal/server"
	"github.com/0xc0d3d00d/candlefetch/internal/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	configFile string
	from       string
	dryRun     bool
}

func newRunCmd(cfg config.Config) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch every missing daily partition from the start date up to today",
		Long: `Walks every configured instrument and timeframe one calendar day at a time,
from the plan's from_date up to today. Days that already have a partition file
are skipped; the rest are fetched and written. Re-running is always safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configFile == "" {
				opts.configFile = cfg.ConfigFile
			}
			return runFetch(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configFile, "config", "", "job plan file, json or yaml (default $CONFIG_FILE)")
	cmd.Flags().StringVar(&opts.from, "from", "", "override the plan's from_date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report missing partitions without calling the provider")
	return cmd
}

func runFetch(ctx context.Context, cfg config.Config, opts runOptions) error {
	plan, err := config.LoadPlan(opts.configFile)
	if err != nil {
		return err
	}
	if opts.from != "" {
		plan.FromDate = opts.from
		if err := plan.Validate(); err != nil {
			return err
		}
	}

	loc := cfg.Location()
	startDate, err := plan.StartDate(loc)
	if err != nil {
		return err
	}

	db, err := storage.NewStorage(afero.NewOsFs(), cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	provider, err := newProvider(cfg, opts.dryRun)
	if err != nil {
		return err
	}

	fetchOpts := []fetch.Option{fetch.WithLocation(loc)}

	var metricsServer *server.Server
	g, gCtx := errgroup.WithContext(ctx)
	if cfg.MetricsAddress != "" {
		mp, err := server.NewMeterProvider()
		if err != nil {
			return err
		}
		defer mp.Shutdown(context.Background())

		fetchOpts = append(fetchOpts, fetch.WithMeterProvider(mp))
		metricsServer = server.New(gCtx, cfg.MetricsAddress)
	}

	orchestrator, err := fetch.NewOrchestrator(provider, db, fetchOpts...)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		_, err := orchestrator.Run(gCtx, fetch.Plan{
			Instruments: plan.Instruments,
			Timeframes:  plan.Timeframes,
			StartDate:   startDate,
		})
		return err
	})

	if metricsServer != nil {
		// Start metrics server
		g.Go(func() error {
			slog.InfoContext(ctx, "starting metrics server", "listen_address", cfg.MetricsAddress)
			// Metrics are optional; a busy port must not cancel the run.
			if err := runHttpServer(gCtx, cfg.MetricsAddress, metricsServer); err != nil {
				slog.ErrorContext(ctx, "failed to start metrics server", "error", err)
			}
			return nil
		})

		// Stop it once the run is over
		g.Go(func() error {
			select {
			case <-done:
			case <-gCtx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			slog.Info("shutting down metrics server gracefully")

			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

type dataProvider interface {
	Fetch(ctx context.Context, instrumentKey string, from, to time.Time, tf domain.Timeframe) []domain.Candle
}

// newProvider returns the live Upstox provider, or an empty in-memory one for
// dry runs, which then only report the days that have no partition yet.
func newProvider(cfg config.Config, dryRun bool) (dataProvider, error) {
	if dryRun {
		return memory.NewProvider(), nil
	}
	if cfg.UpstoxToken == "" {
		return nil, errors.New("UPSTOX_TOKEN is required")
	}
	return upstox.NewProvider(upstox.Config{
		AccessToken:       cfg.UpstoxToken,
		BaseURL:           cfg.UpstoxBaseURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, nil), nil
}

func runHttpServer(ctx context.Context, listenAddress string, srv *server.Server) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return err
	}

	err = srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
