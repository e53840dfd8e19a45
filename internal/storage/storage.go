package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
	"github.com/spf13/afero"
)

var ErrPartitionNotFound = fmt.Errorf("%w: partition not found", domain.ErrNotFound)

const tmpSuffix = ".tmp"

// data
// - NSE_INDEX
//   - 15min
//     - NSE_INDEX_Nifty 50
//       - 2024
//         - 01
//           - 2024-01-01.parquet

type storage struct {
	fs      afero.Fs
	baseDir string
}

func NewStorage(fs afero.Fs, baseDir string) (*storage, error) {
	if baseDir == "" {
		return nil, errors.New("base directory for storage cannot be empty")
	}

	baseExists, err := afero.DirExists(fs, baseDir)
	if err != nil {
		return nil, err
	}

	if !baseExists {
		err = fs.MkdirAll(baseDir, 0755)
		if err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	return &storage{
		fs:      fs,
		baseDir: baseDir,
	}, nil
}

// FilePath is a pure function of its arguments and the base directory.
func (s *storage) FilePath(instrumentKey, timeframe string, day time.Time) string {
	return Key(instrumentKey, timeframe, day).Path(s.baseDir)
}

func (s *storage) Exists(filename string) (bool, error) {
	return afero.Exists(s.fs, filename)
}

// Write stores candles as the partition of instrumentKey, timeframe and day,
// replacing any previous file. Nothing is written for an empty slice.
// The file appears atomically: a failed write leaves no partition behind.
func (s *storage) Write(ctx context.Context, instrumentKey, timeframe string, day time.Time, candles []domain.Candle) error {
	if err := ValidateKey(instrumentKey); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}

	filename := s.FilePath(instrumentKey, timeframe, day)
	if len(candles) == 0 {
		slog.InfoContext(ctx, "no candles to store", "instrument_key", instrumentKey, "timeframe", timeframe, "date", day.Format(time.DateOnly))
		return nil
	}

	err := s.fs.MkdirAll(filepath.Dir(filename), 0755)
	if err != nil {
		return s.fail(ctx, filename, fmt.Errorf("failed to create partition directory: %w", err))
	}

	tmpFilename := filename + tmpSuffix
	err = s.writeFile(tmpFilename, candles)
	if err != nil {
		if rmErr := s.fs.Remove(tmpFilename); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.WarnContext(ctx, "failed to remove temporary partition file", "path", tmpFilename, "error", rmErr)
		}
		return s.fail(ctx, filename, err)
	}

	err = s.fs.Rename(tmpFilename, filename)
	if err != nil {
		_ = s.fs.Remove(tmpFilename)
		return s.fail(ctx, filename, fmt.Errorf("failed to move partition file into place: %w", err))
	}

	slog.InfoContext(ctx, "saved partition", "path", filename, "candle_count", len(candles))
	return nil
}

func (s *storage) writeFile(filename string, candles []domain.Candle) error {
	f, err := s.fs.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create partition file: %w", err)
	}

	err = encodeCandles(f, candles)
	if err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync partition file: %w", err)
	}

	return f.Close()
}

// Read loads a stored partition back, mostly for inspection from the CLI.
func (s *storage) Read(filename string) ([]domain.Candle, error) {
	f, err := s.fs.Open(filename)
	if os.IsNotExist(err) {
		return nil, ErrPartitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open partition file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat partition file: %w", err)
	}

	return decodeCandles(f, info.Size())
}

func (s *storage) fail(ctx context.Context, filename string, err error) error {
	slog.ErrorContext(ctx, "failed to store partition", "path", filename, "error", err)
	return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
}
