package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"macmarket/internal/chart"
	"macmarket/internal/domain"
	"macmarket/internal/scan"
	"macmarket/internal/service"
	"macmarket/internal/signal"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

const (
	maxScanSymbols = 20
	commandTimeout = 15 * time.Second
)

type SignalQuerier interface {
	DefaultParams() signal.Params
	DefaultLookback() int
	Analyze(ctx context.Context, req service.HACORequest) (*signal.Analysis, error)
	HACO(ctx context.Context, req service.HACORequest) (*service.HACOSeries, error)
	Scan(ctx context.Context, req scan.Request) ([]domain.ScanRow, error)
}

// StartTelegramBot starts long polling in the background. It returns nil
// when no token is configured.
func StartTelegramBot(token string, signals SignalQuerier) *AlertDispatcher {
	if token == "" {
		log.Info().Msg("telegram token not set, skipping bot startup")
		return nil
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create telegram bot")
		return nil
	}
	alerts := NewAlertDispatcher(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/haco", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return c.Send(hacoReply(ctx, signals, c.Args()))
	})

	charts := chart.NewRenderer()
	b.Handle("/chart", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return c.Send(chartReply(ctx, signals, charts, c.Args()))
	})

	b.Handle("/scan", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return c.Send(scanReply(ctx, signals, c.Args()))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("HACO state-change alerts enabled for this chat.")
			}
			return c.Send("HACO state-change alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("HACO state-change alerts disabled for this chat.")
			}
			return c.Send("HACO state-change alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	log.Info().Msg("telegram bot started")
	go b.Start()
	return alerts
}

func hacoReply(ctx context.Context, signals SignalQuerier, args []string) string {
	if signals == nil {
		return "Signal service unavailable"
	}
	symbol, timeframe, problem := parseSymbolArgs("/haco", args)
	if problem != "" {
		return problem
	}

	series, err := signals.HACO(ctx, service.HACORequest{
		Symbol:    symbol,
		Timeframe: timeframe,
		Params:    signals.DefaultParams(),
		Lookback:  signals.DefaultLookback(),
	})
	if err != nil {
		return fmt.Sprintf("%s: %s", symbol, describeError(err))
	}
	return formatHACO(series)
}

// chartReply returns a photo of the HACO chart, or a text reply when the
// chart cannot be produced.
func chartReply(ctx context.Context, signals SignalQuerier, renderer *chart.Renderer, args []string) any {
	if signals == nil {
		return "Signal service unavailable"
	}
	symbol, timeframe, problem := parseSymbolArgs("/chart", args)
	if problem != "" {
		return problem
	}

	a, err := signals.Analyze(ctx, service.HACORequest{
		Symbol:    symbol,
		Timeframe: timeframe,
		Params:    signals.DefaultParams(),
		Lookback:  signals.DefaultLookback(),
	})
	if err != nil {
		return fmt.Sprintf("%s: %s", symbol, describeError(err))
	}
	img, err := renderer.RenderHACO(a)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("chart render failed")
		return fmt.Sprintf("%s: chart unavailable", symbol)
	}
	last := a.LastIndex()
	return &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(img.Bytes)),
		Caption: fmt.Sprintf("%s %s HACO %s, HACOLT %s", a.Symbol, a.Timeframe, a.HACO.EncodedAt(last), a.LTStateAt(last)),
	}
}

// parseSymbolArgs reads "SYMBOL [timeframe]". problem is a user-facing
// reply when the arguments are unusable.
func parseSymbolArgs(command string, args []string) (symbol, timeframe, problem string) {
	if len(args) == 0 {
		return "", "", fmt.Sprintf("Usage: %s AAPL [timeframe]", command)
	}
	symbol = strings.ToUpper(strings.TrimSpace(args[0]))
	timeframe = "1d"
	if len(args) > 1 {
		timeframe = strings.TrimSpace(args[1])
	}
	if !domain.IsSupportedTimeframe(timeframe) {
		return "", "", fmt.Sprintf("Unsupported timeframe %s. Use one of %s", timeframe, strings.Join(domain.SupportedTimeframes, ", "))
	}
	return symbol, timeframe, ""
}

func scanReply(ctx context.Context, signals SignalQuerier, args []string) string {
	if signals == nil {
		return "Signal service unavailable"
	}
	symbols := parseScanArgs(args)
	if len(symbols) == 0 {
		return "Usage: /scan AAPL,MSFT,NVDA"
	}
	if len(symbols) > maxScanSymbols {
		return fmt.Sprintf("At most %d symbols per scan", maxScanSymbols)
	}

	rows, err := signals.Scan(ctx, scan.Request{
		Symbols:   symbols,
		Timeframe: "1d",
		Params:    signals.DefaultParams(),
		Lookback:  signals.DefaultLookback(),
	})
	if err != nil {
		return fmt.Sprintf("Scan failed: %s", describeError(err))
	}
	return formatScan(rows)
}

// parseScanArgs accepts comma and/or space separated symbols.
func parseScanArgs(args []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			s := strings.ToUpper(strings.TrimSpace(part))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func formatHACO(s *service.HACOSeries) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HACO %s", s.Symbol, s.Timeframe, s.Last.State)
	if s.Last.Changed {
		b.WriteString(" (changed)")
	}
	fmt.Fprintf(&b, "\nHACOLT: %s", s.Last.LTState)
	if s.Last.Upw {
		b.WriteString("\nBuy trigger fired")
	}
	if s.Last.Dnw {
		b.WriteString("\nSell trigger fired")
	}
	if n := len(s.Series); n > 0 {
		last := s.Series[n-1]
		fmt.Fprintf(&b, "\nClose %.2f at %s", last.Close, last.Time.UTC().Format(time.RFC822))
	}
	if s.Last.Reason != "" {
		fmt.Fprintf(&b, "\n%s", s.Last.Reason)
	}
	return b.String()
}

func formatScan(rows []domain.ScanRow) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, "HACO scan:")
	for _, r := range rows {
		if r.Failed() {
			lines = append(lines, fmt.Sprintf("%s: error: %s", r.Symbol, r.Error))
			continue
		}
		flag := ""
		switch {
		case r.Upw:
			flag = " BUY"
		case r.Dnw:
			flag = " SELL"
		}
		if r.Changed {
			flag += " *"
		}
		lines = append(lines, fmt.Sprintf("%s: %s%s (LT %s, readiness %.0f)", r.Symbol, r.State, flag, r.LTState, r.Readiness))
	}
	return strings.Join(lines, "\n")
}

func describeError(err error) string {
	var insufficient *domain.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		return fmt.Sprintf("not enough bars (have %d, need %d)", insufficient.Have, insufficient.Need)
	case errors.Is(err, domain.ErrNoData):
		return "no data"
	case errors.Is(err, domain.ErrInvalidParameter):
		return err.Error()
	default:
		return "data unavailable"
	}
}
