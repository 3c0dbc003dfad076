package casestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/recoverops/dunning/model"
)

// PgCaseStore is a PostgreSQL-backed CaseStore using pgx/v5. It reads the
// cases table maintained by the practice-management application:
//
//	CREATE TABLE cases (
//	    id          TEXT PRIMARY KEY,
//	    amount      NUMERIC(14,2) NOT NULL,
//	    due_date    TIMESTAMPTZ NOT NULL,
//	    debtor_type TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    resolved_at TIMESTAMPTZ
//	);
type PgCaseStore struct {
	pool *pgxpool.Pool
}

// NewPgCaseStore creates a new PostgreSQL case store.
func NewPgCaseStore(pool *pgxpool.Pool) *PgCaseStore {
	return &PgCaseStore{pool: pool}
}

// FindOverdue returns open/in_progress cases past their due date.
func (s *PgCaseStore) FindOverdue(ctx context.Context, now time.Time) ([]model.Case, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, amount::text, due_date, debtor_type, status, resolved_at
		FROM cases
		WHERE status IN ('open', 'in_progress') AND due_date < $1
		ORDER BY id`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("query overdue cases: %w", err)
	}
	defer rows.Close()

	return scanCases(rows)
}

// FindResolvedSince returns resolved cases with resolved_at at or after since.
func (s *PgCaseStore) FindResolvedSince(ctx context.Context, since time.Time) ([]model.Case, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, amount::text, due_date, debtor_type, status, resolved_at
		FROM cases
		WHERE status = 'resolved' AND resolved_at >= $1
		ORDER BY id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query resolved cases: %w", err)
	}
	defer rows.Close()

	return scanCases(rows)
}

// HealthCheck verifies database connectivity. Used by the readiness endpoint.
func (s *PgCaseStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("case store ping: %w", err)
	}
	return nil
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanCases(rows pgRows) ([]model.Case, error) {
	var result []model.Case
	for rows.Next() {
		var (
			c      model.Case
			amount string
		)
		if err := rows.Scan(&c.ID, &amount, &c.DueDate, &c.DebtorType, &c.Status, &c.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		dec, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("case %s amount %q: %w", c.ID, amount, err)
		}
		c.Amount = dec
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return result, nil
}
