// Package archive stores bar series as Parquet files on disk and serves
// them back as an offline bar provider.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"macmarket/internal/domain"

	"github.com/parquet-go/parquet-go"
)

// BarRecord is the on-disk schema.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// Store lays files out as <dir>/<timeframe>/<SYMBOL>.parquet.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(symbol, timeframe string) string {
	return filepath.Join(s.Dir, timeframe, strings.ToUpper(symbol)+".parquet")
}

// Read loads the full archived series for symbol.
func (s *Store) Read(symbol, timeframe string) (domain.BarSeries, error) {
	symbol = strings.ToUpper(symbol)
	records, err := parquet.ReadFile[BarRecord](s.path(symbol, timeframe))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.BarSeries{}, domain.NewProviderError(symbol, domain.ErrNoData)
	}
	if err != nil {
		return domain.BarSeries{}, domain.NewProviderError(symbol, fmt.Errorf("read archive: %w", err))
	}
	bars := make([]domain.Bar, len(records))
	for i, r := range records {
		bars[i] = domain.Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return domain.BarSeries{Symbol: symbol, Timeframe: timeframe, Bars: bars}, nil
}

// GetBars returns the last limit archived bars.
func (s *Store) GetBars(ctx context.Context, symbol, timeframe string, limit int) (domain.BarSeries, error) {
	if err := ctx.Err(); err != nil {
		return domain.BarSeries{}, domain.NewProviderError(symbol, err)
	}
	series, err := s.Read(symbol, timeframe)
	if err != nil {
		return domain.BarSeries{}, err
	}
	if len(series.Bars) == 0 {
		return domain.BarSeries{}, domain.NewProviderError(series.Symbol, domain.ErrNoData)
	}
	if limit > 0 && len(series.Bars) > limit {
		series.Bars = series.Bars[len(series.Bars)-limit:]
	}
	return series, nil
}

// Write merges series into the archive. Bars sharing a timestamp with an
// archived bar replace it.
func (s *Store) Write(series domain.BarSeries) error {
	existing, err := s.Read(series.Symbol, series.Timeframe)
	if err != nil && !errors.Is(err, domain.ErrNoData) {
		return err
	}

	byTime := make(map[int64]BarRecord, len(existing.Bars)+len(series.Bars))
	for _, bars := range [][]domain.Bar{existing.Bars, series.Bars} {
		for _, b := range bars {
			ts := b.Time.UnixMilli()
			byTime[ts] = BarRecord{Timestamp: ts, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		}
	}
	records := make([]BarRecord, 0, len(byTime))
	for _, r := range byTime {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	path := s.path(series.Symbol, series.Timeframe)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
