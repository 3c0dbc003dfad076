package records

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recoverops/dunning/model"
)

// PgStore is a PostgreSQL-backed record Store using pgx/v5:
//
//	CREATE TABLE action_records (
//	    id          TEXT PRIMARY KEY,
//	    case_id     TEXT NOT NULL,
//	    workflow_id TEXT NOT NULL,
//	    action_id   TEXT NOT NULL,
//	    channel     TEXT NOT NULL,
//	    template    TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    automated   BOOLEAN NOT NULL
//	);
//	CREATE INDEX idx_action_records_created ON action_records (created_at);
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL record store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Create persists a new action record.
func (s *PgStore) Create(ctx context.Context, rec model.ActionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO action_records (
			id, case_id, workflow_id, action_id,
			channel, template, status, created_at, automated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.CaseID, rec.WorkflowID, rec.ActionID,
		rec.Channel, rec.TemplateRef, rec.Status, rec.CreatedAt, rec.Automated,
	)
	if err != nil {
		return fmt.Errorf("insert action record: %w", err)
	}
	return nil
}

// UpdateStatus moves a record to completed or failed.
func (s *PgStore) UpdateStatus(ctx context.Context, id, status string) error {
	if status != model.RecordStatusCompleted && status != model.RecordStatusFailed {
		return model.NewConflictError(fmt.Sprintf("invalid record status %q", status))
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE action_records SET status = $1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update action record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("action record %q not found", id))
	}
	return nil
}

// ListAutomated returns automated records created at or after since.
func (s *PgStore) ListAutomated(ctx context.Context, since time.Time) ([]model.ActionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, case_id, workflow_id, action_id,
		       channel, template, status, created_at, automated
		FROM action_records
		WHERE automated AND created_at >= $1
		ORDER BY created_at, id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query action records: %w", err)
	}
	defer rows.Close()

	var result []model.ActionRecord
	for rows.Next() {
		var rec model.ActionRecord
		if err := rows.Scan(
			&rec.ID, &rec.CaseID, &rec.WorkflowID, &rec.ActionID,
			&rec.Channel, &rec.TemplateRef, &rec.Status, &rec.CreatedAt, &rec.Automated,
		); err != nil {
			return nil, fmt.Errorf("scan action record: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action records: %w", err)
	}
	return result, nil
}

// HealthCheck verifies database connectivity. Used by the readiness endpoint.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("record store ping: %w", err)
	}
	return nil
}
