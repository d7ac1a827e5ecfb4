package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"macmarket/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type AlertFilter struct {
	Symbol string
	ChatID int64
	Limit  int
}

type AlertRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewAlertRepository(pool PgxPool, tracer trace.Tracer) *AlertRepository {
	return &AlertRepository{pool: pool, tracer: tracer}
}

func (r *AlertRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "alert-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS alert_rules (
			id          BIGSERIAL PRIMARY KEY,
			symbol      TEXT NOT NULL,
			mode        TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			chat_id     BIGINT NOT NULL DEFAULT 0,
			rules       JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_alert_rules_symbol ON alert_rules (symbol)`)
	return err
}

func (r *AlertRepository) CreateAlertRule(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.create-alert-rule")
	defer span.End()

	rules, err := json.Marshal(rule.Rules)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("encode rules: %w", err)
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO alert_rules (symbol, mode, timeframe, chat_id, rules, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		strings.ToUpper(rule.Symbol), rule.Mode, rule.Timeframe, rule.ChatID, rules, rule.CreatedAt,
	).Scan(&rule.ID)
	if err != nil {
		return domain.AlertRule{}, err
	}
	rule.Symbol = strings.ToUpper(rule.Symbol)
	return rule, nil
}

func (r *AlertRepository) ListAlertRules(ctx context.Context, filter AlertFilter) ([]domain.AlertRule, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.list-alert-rules")
	defer span.End()

	args := make([]any, 0, 3)
	var sb strings.Builder
	sb.WriteString(`SELECT id, symbol, mode, timeframe, chat_id, rules, created_at
		FROM alert_rules
		WHERE 1=1`)

	if filter.Symbol != "" {
		args = append(args, strings.ToUpper(filter.Symbol))
		sb.WriteString(fmt.Sprintf(" AND symbol = $%d", len(args)))
	}
	if filter.ChatID != 0 {
		args = append(args, filter.ChatID)
		sb.WriteString(fmt.Sprintf(" AND chat_id = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AlertRule, 0)
	for rows.Next() {
		var rule domain.AlertRule
		var raw []byte
		if err := rows.Scan(&rule.ID, &rule.Symbol, &rule.Mode, &rule.Timeframe, &rule.ChatID, &raw, &rule.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rule.Rules); err != nil {
			return nil, fmt.Errorf("decode rules for alert %d: %w", rule.ID, err)
		}
		rule.CreatedAt = rule.CreatedAt.UTC()
		out = append(out, rule)
	}
	return out, rows.Err()
}

// DeleteAlertRule reports whether a rule with id existed.
func (r *AlertRepository) DeleteAlertRule(ctx context.Context, id int64) (bool, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.delete-alert-rule")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
