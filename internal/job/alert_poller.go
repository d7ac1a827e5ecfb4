package job

import (
	"context"
	"time"

	"macmarket/internal/alert"
	"macmarket/internal/domain"
	"macmarket/internal/repository"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollInterval = 5 * time.Minute
	maxRulesPerTick     = 500
	watchTimeframe      = "1d"
)

type AlertEvaluator interface {
	ListRules(ctx context.Context, filter repository.AlertFilter) ([]domain.AlertRule, error)
	EvaluateRule(ctx context.Context, rule domain.AlertRule) (alert.Result, error)
}

type Notifier interface {
	NotifyChat(ctx context.Context, chatID int64, msg string) error
	Broadcast(ctx context.Context, msg string) error
}

// AlertPoller periodically evaluates stored alert rules plus state-change
// watches on a fixed symbol list. Cursors make repeated ticks on the same
// bar silent.
type AlertPoller struct {
	tracer   trace.Tracer
	alerts   AlertEvaluator
	notifier Notifier
	watch    []string
	interval time.Duration
}

func NewAlertPoller(tracer trace.Tracer, alerts AlertEvaluator, notifier Notifier, watch []string, interval time.Duration) *AlertPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &AlertPoller{
		tracer:   tracer,
		alerts:   alerts,
		notifier: notifier,
		watch:    append([]string(nil), watch...),
		interval: interval,
	}
}

// Start runs one pass immediately and then one per interval. Blocks until
// ctx is cancelled.
func (p *AlertPoller) Start(ctx context.Context) {
	if p.alerts == nil {
		log.Warn().Msg("alert poller disabled: no alert service")
		<-ctx.Done()
		return
	}

	log.Info().Dur("interval", p.interval).Strs("watch", p.watch).Msg("alert poller starting")
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("alert poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *AlertPoller) poll(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "alert-poller.poll")
	defer span.End()

	sent := p.pollRules(ctx) + p.pollWatches(ctx)
	span.SetAttributes(attribute.Int("alerts.sent", sent))
}

func (p *AlertPoller) pollRules(ctx context.Context) int {
	rules, err := p.alerts.ListRules(ctx, repository.AlertFilter{Limit: maxRulesPerTick})
	if err != nil {
		log.Error().Err(err).Msg("alert poller: list rules failed")
		return 0
	}

	sent := 0
	for _, rule := range rules {
		if ctx.Err() != nil {
			return sent
		}
		res, err := p.alerts.EvaluateRule(ctx, rule)
		if err != nil {
			log.Warn().Err(err).Int64("rule", rule.ID).Str("symbol", rule.Symbol).Msg("alert rule evaluation failed")
			continue
		}
		if !res.Notify || p.notifier == nil {
			continue
		}
		if err := p.notifier.NotifyChat(ctx, rule.ChatID, res.Message); err != nil {
			log.Warn().Err(err).Int64("rule", rule.ID).Msg("alert delivery failed")
			continue
		}
		sent++
	}
	return sent
}

func (p *AlertPoller) pollWatches(ctx context.Context) int {
	sent := 0
	for _, symbol := range p.watch {
		if ctx.Err() != nil {
			return sent
		}
		res, err := p.alerts.EvaluateRule(ctx, domain.AlertRule{
			Symbol:    symbol,
			Timeframe: watchTimeframe,
			Rules:     domain.AlertRules{OnStateChange: true},
		})
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("state-change watch failed")
			continue
		}
		if !res.Notify || p.notifier == nil {
			continue
		}
		if err := p.notifier.Broadcast(ctx, res.Message); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("state-change broadcast failed")
			continue
		}
		sent++
	}
	return sent
}
