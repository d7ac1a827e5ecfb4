package service

import (
	"context"
	"fmt"
	"strings"

	"macmarket/internal/alert"
	"macmarket/internal/domain"
	"macmarket/internal/metrics"
	"macmarket/internal/repository"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type AlertRuleRepository interface {
	CreateAlertRule(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error)
	ListAlertRules(ctx context.Context, filter repository.AlertFilter) ([]domain.AlertRule, error)
	DeleteAlertRule(ctx context.Context, id int64) (bool, error)
}

type AlertCursorStore interface {
	Get(ctx context.Context, key string) (*domain.AlertCursor, error)
	Set(ctx context.Context, key string, cursor domain.AlertCursor) error
}

type AlertTestRequest struct {
	Symbol    string            `json:"symbol"`
	Mode      string            `json:"mode"`
	Timeframe string            `json:"tf"`
	Rules     domain.AlertRules `json:"rules"`
}

type AlertService struct {
	tracer  trace.Tracer
	signals *SignalService
	rules   AlertRuleRepository
	cursors AlertCursorStore
	metrics *metrics.Recorder
}

func NewAlertService(
	tracer trace.Tracer,
	signals *SignalService,
	rules AlertRuleRepository,
	cursors AlertCursorStore,
	rec *metrics.Recorder,
) *AlertService {
	return &AlertService{
		tracer:  tracer,
		signals: signals,
		rules:   rules,
		cursors: cursors,
		metrics: rec,
	}
}

// CursorKey identifies the dedup cursor of a stored rule, or of an ad hoc
// watch when the rule has no id.
func CursorKey(rule domain.AlertRule) string {
	if rule.ID > 0 {
		return fmt.Sprintf("rule:%d", rule.ID)
	}
	return fmt.Sprintf("watch:%s:%s", rule.Symbol, rule.Timeframe)
}

func (s *AlertService) resolveTimeframe(mode, tf string) (string, error) {
	if tf != "" {
		return tf, nil
	}
	profile, err := s.signals.Mode(mode)
	if err != nil {
		return "", err
	}
	return profile.Timeframe, nil
}

func (s *AlertService) evaluate(ctx context.Context, symbol, mode, tf string, rules domain.AlertRules, cursor *domain.AlertCursor) (alert.Result, error) {
	tf, err := s.resolveTimeframe(mode, tf)
	if err != nil {
		return alert.Result{}, err
	}
	analysis, err := s.signals.Analyze(ctx, HACORequest{
		Symbol:    symbol,
		Timeframe: tf,
		Params:    s.signals.DefaultParams(),
	})
	if err != nil {
		return alert.Result{}, err
	}
	return alert.Evaluate(analysis, s.signals.Readiness(analysis), rules, cursor)
}

// Test evaluates rules against the latest bar without touching any cursor.
func (s *AlertService) Test(ctx context.Context, req AlertTestRequest) (alert.Result, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.test")
	defer span.End()

	if s.signals == nil || !s.signals.ready() {
		return alert.Result{}, fmt.Errorf("alert service is not fully initialized")
	}
	span.SetAttributes(attribute.String("symbol", req.Symbol))
	return s.evaluate(ctx, req.Symbol, req.Mode, req.Timeframe, req.Rules, nil)
}

// EvaluateRule evaluates a rule against its stored cursor and advances the
// cursor to the latest bar.
func (s *AlertService) EvaluateRule(ctx context.Context, rule domain.AlertRule) (alert.Result, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.evaluate-rule")
	defer span.End()

	if s.signals == nil || !s.signals.ready() || s.cursors == nil {
		return alert.Result{}, fmt.Errorf("alert service is not fully initialized")
	}
	key := CursorKey(rule)
	span.SetAttributes(attribute.String("cursor", key))

	cursor, err := s.cursors.Get(ctx, key)
	if err != nil {
		return alert.Result{}, fmt.Errorf("load cursor %s: %w", key, err)
	}
	res, err := s.evaluate(ctx, rule.Symbol, rule.Mode, rule.Timeframe, rule.Rules, cursor)
	if err != nil {
		return alert.Result{}, err
	}
	if err := s.cursors.Set(ctx, key, res.Cursor); err != nil {
		log.Warn().Err(err).Str("cursor", key).Msg("failed to store alert cursor")
	}

	switch {
	case res.Notify:
		s.metrics.Alert("notified")
	case res.Triggered:
		s.metrics.Alert("suppressed")
	default:
		s.metrics.Alert("quiet")
	}
	return res, nil
}

func (s *AlertService) CreateRule(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.create-rule")
	defer span.End()

	if s.rules == nil {
		return domain.AlertRule{}, fmt.Errorf("alert service is not fully initialized")
	}
	rule.Symbol = strings.ToUpper(strings.TrimSpace(rule.Symbol))
	if rule.Symbol == "" {
		return domain.AlertRule{}, &domain.ParameterError{Name: "symbol", Value: rule.Symbol, Reason: "is required"}
	}
	if rule.Mode != "" || rule.Timeframe == "" {
		profile, err := s.signals.Mode(rule.Mode)
		if err != nil {
			return domain.AlertRule{}, err
		}
		rule.Mode = profile.Key
		if rule.Timeframe == "" {
			rule.Timeframe = profile.Timeframe
		}
	}
	if err := validateTimeframe(rule.Timeframe); err != nil {
		return domain.AlertRule{}, err
	}
	if m := rule.Rules.MinTotalScore; m != nil && (*m < 0 || *m > 100) {
		return domain.AlertRule{}, &domain.ParameterError{Name: "min_total_score", Value: *m, Reason: "must be within [0,100]"}
	}
	return s.rules.CreateAlertRule(ctx, rule)
}

func (s *AlertService) ListRules(ctx context.Context, filter repository.AlertFilter) ([]domain.AlertRule, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.list-rules")
	defer span.End()

	if s.rules == nil {
		return nil, fmt.Errorf("alert service is not fully initialized")
	}
	filter.Symbol = strings.ToUpper(strings.TrimSpace(filter.Symbol))
	return s.rules.ListAlertRules(ctx, filter)
}

func (s *AlertService) DeleteRule(ctx context.Context, id int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.delete-rule")
	defer span.End()

	if s.rules == nil {
		return false, fmt.Errorf("alert service is not fully initialized")
	}
	return s.rules.DeleteAlertRule(ctx, id)
}
