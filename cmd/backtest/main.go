package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"macmarket/internal/archive"
	"macmarket/internal/config"
	"macmarket/internal/db"
	"macmarket/internal/domain"
	"macmarket/internal/readiness"
	"macmarket/internal/repository"
	"macmarket/internal/service"
	signalengine "macmarket/internal/signal"
	"macmarket/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const runTimeout = 10 * time.Minute

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	exitFunc         = os.Exit
)

type options struct {
	symbol       string
	timeframe    string
	strategy     string
	parquetDir   string
	exportDir    string
	lookback     int
	cash         float64
	quantity     float64
	minReadiness float64
	stopLoss     float64
	takeProfit   float64
	maxHold      int
	asJSON       bool
}

func main() {
	_ = loadEnvFunc()

	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		exitFunc(2)
		return
	}

	cfg := loadConfigFunc()
	if _, err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr}); err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		exitFunc(1)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if opts.parquetDir == "" {
		initPostgresFunc(ctx)
		defer db.Close()
	}

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		log.Error().Err(err).Str("symbol", opts.symbol).Msg("backtest failed")
		exitFunc(1)
	}
}

func parseOptions(args []string, errOut io.Writer) (options, error) {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var opts options
	fs.StringVar(&opts.symbol, "symbol", "", "ticker to replay (required)")
	fs.StringVar(&opts.timeframe, "timeframe", "1d", "bar timeframe")
	fs.StringVar(&opts.strategy, "strategy", "haco", "strategy name: haco, haco_ready, hacolt, buy_hold")
	fs.StringVar(&opts.parquetDir, "parquet", "", "read bars from this Parquet archive instead of Postgres")
	fs.StringVar(&opts.exportDir, "export", "", "also write the replayed bars into this Parquet archive")
	fs.IntVar(&opts.lookback, "lookback", 0, "number of most recent bars to replay (default HACO_LOOKBACK)")
	fs.Float64Var(&opts.cash, "cash", 0, "initial cash (default 10000)")
	fs.Float64Var(&opts.quantity, "qty", 0, "units bought per entry (default 1)")
	fs.Float64Var(&opts.minReadiness, "min-readiness", -1, "readiness gate for haco_ready (default BACKTEST_MIN_READINESS)")
	fs.Float64Var(&opts.stopLoss, "stop-loss", 0, "stop loss percent, 0 disables")
	fs.Float64Var(&opts.takeProfit, "take-profit", 0, "take profit percent, 0 disables")
	fs.IntVar(&opts.maxHold, "max-hold", 0, "maximum bars per trade, 0 disables")
	fs.BoolVar(&opts.asJSON, "json", false, "print the full result as JSON")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	opts.symbol = strings.ToUpper(strings.TrimSpace(opts.symbol))
	if opts.symbol == "" {
		return options{}, fmt.Errorf("-symbol is required")
	}
	opts.timeframe = strings.TrimSpace(opts.timeframe)
	if !domain.IsSupportedTimeframe(opts.timeframe) {
		return options{}, fmt.Errorf("unsupported timeframe %q, expected one of %v", opts.timeframe, domain.SupportedTimeframes)
	}
	opts.strategy = strings.ToLower(strings.TrimSpace(opts.strategy))
	if opts.lookback < 0 {
		return options{}, fmt.Errorf("-lookback must be positive")
	}
	return opts, nil
}

func (o options) params() service.BacktestParams {
	p := service.BacktestParams{
		Strategy:      o.strategy,
		InitialCash:   o.cash,
		Quantity:      o.quantity,
		StopLossPct:   o.stopLoss,
		TakeProfitPct: o.takeProfit,
		MaxHoldBars:   o.maxHold,
	}
	if o.minReadiness >= 0 {
		v := o.minReadiness
		p.MinReadiness = &v
	}
	return p
}

// run replays one backtest and writes the report to out. Bars come from
// the Parquet archive when one is given, otherwise from Postgres.
func run(ctx context.Context, cfg *config.Config, opts options, out io.Writer) error {
	tracer := trace.NewNoopTracerProvider().Tracer("backtest-cli")

	engine, err := signalengine.NewEngine(cfg.HACO, cfg.HACOLT)
	if err != nil {
		return err
	}
	scorer, err := readiness.NewScorer(cfg.Readiness)
	if err != nil {
		return err
	}

	var (
		barStore service.BarStore
		runRepo  service.BacktestRunRepository
	)
	if opts.parquetDir == "" {
		if db.Pool == nil {
			return errors.New("DATABASE_URL or -parquet is required")
		}
		barStore = repository.NewCandleRepository(db.Pool, tracer)
		runs := repository.NewBacktestRepository(db.Pool, tracer)
		if err := runs.RunMigrations(ctx); err != nil {
			return fmt.Errorf("migrate backtest runs: %w", err)
		}
		runRepo = runs
	}

	bars := service.NewBarService(tracer, barStore, nil, nil)
	signals := service.NewSignalService(tracer, bars, engine, scorer, nil, nil, 1).WithLookback(cfg.Lookback)
	backtests := service.NewBacktestService(tracer, signals, runRepo, nil, cfg.BacktestMinReadiness)

	lookback := opts.lookback
	if lookback == 0 {
		lookback = signals.DefaultLookback()
	}

	var series domain.BarSeries
	if opts.parquetDir != "" {
		series, err = archive.NewStore(opts.parquetDir).GetBars(ctx, opts.symbol, opts.timeframe, lookback)
	} else {
		series, err = bars.GetBars(ctx, opts.symbol, opts.timeframe, lookback)
	}
	if err != nil {
		return err
	}
	log.Info().
		Str("symbol", series.Symbol).
		Str("timeframe", series.Timeframe).
		Int("bars", series.Len()).
		Msg("loaded bars")

	if opts.exportDir != "" {
		if err := archive.NewStore(opts.exportDir).Write(series); err != nil {
			return fmt.Errorf("export bars: %w", err)
		}
		log.Info().Str("dir", opts.exportDir).Msg("exported bars to parquet archive")
	}

	resp, err := backtests.Run(ctx, service.BacktestRequest{
		Symbol:    series.Symbol,
		Timeframe: series.Timeframe,
		Bars:      series.Bars,
		Params:    opts.params(),
	})
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return writeReport(out, resp)
}

func writeReport(out io.Writer, resp *service.BacktestResponse) error {
	s := resp.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s (%d trades)\n", resp.Symbol, resp.Timeframe, resp.Strategy, s.TradeCount)
	fmt.Fprintf(&b, "  total pnl     %.2f (%.2f%%)\n", s.TotalPnL, s.TotalReturnPct)
	fmt.Fprintf(&b, "  win rate      %.1f%%\n", s.WinRate)
	fmt.Fprintf(&b, "  avg return    %.2f%%\n", s.AvgReturn)
	fmt.Fprintf(&b, "  max drawdown  %.2f%%\n", s.MaxDrawdownPct)
	fmt.Fprintf(&b, "  sharpe        %.2f\n", s.Sharpe)
	for _, t := range resp.Trades {
		fmt.Fprintf(&b, "  %s -> %s  %.2f -> %.2f  %+.2f  %s\n",
			t.EntryDate.Format("2006-01-02"),
			t.ExitDate.Format("2006-01-02"),
			t.EntryPrice,
			t.ExitPrice,
			t.PnL,
			t.ExitReason,
		)
	}
	_, err := io.WriteString(out, b.String())
	return err
}
