package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

const upsertRecordSQL = `
	INSERT INTO crm_records (module, record_id, payload, export_run_id)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (module, record_id)
	DO UPDATE SET payload = EXCLUDED.payload,
	              export_run_id = EXCLUDED.export_run_id,
	              exported_at = now()`

// Record is one CRM record as exported: its id and the raw JSON the API
// returned for it.
type Record struct {
	ID      string
	Payload json.RawMessage
}

// Conn is the part of *pgxpool.Pool the store needs.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ExportStore persists export runs and the records they fetched.
type ExportStore struct {
	conn   Conn
	logger *zap.Logger
}

// NewExportStore creates a new export store
func NewExportStore(conn Conn, logger *zap.Logger) *ExportStore {
	return &ExportStore{conn: conn, logger: logger}
}

// CreateExportRun records the start of a module export and returns its id.
func (s *ExportStore) CreateExportRun(ctx context.Context, module string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.conn.Exec(ctx,
		`INSERT INTO export_runs (id, module, status) VALUES ($1, $2, $3)`,
		id, module, RunStatusRunning)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create export run for %s: %w", module, err)
	}

	s.logger.Debug("Created export run", zap.String("run_id", id.String()), zap.String("module", module))
	return id, nil
}

// SaveRecords upserts records in one transaction. A record already stored
// for the module is overwritten with the newer payload.
func (s *ExportStore) SaveRecords(ctx context.Context, runID uuid.UUID, module string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		_, err := tx.Exec(ctx, upsertRecordSQL, module, r.ID, []byte(r.Payload), runID)
		if err != nil {
			return fmt.Errorf("failed to save record %s/%s: %w", module, r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("Saved records batch", zap.String("module", module), zap.Int("count", len(records)))
	return nil
}

// CompleteExportRun marks a run finished. runErr, when set, is stored as
// the failure reason.
func (s *ExportStore) CompleteExportRun(ctx context.Context, runID uuid.UUID, status string, recordsExported int, runErr error) error {
	errText := pgtype.Text{}
	if runErr != nil {
		errText = pgtype.Text{String: runErr.Error(), Valid: true}
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE export_runs
		SET status = $2, records_exported = $3, error = $4, completed_at = now()
		WHERE id = $1`,
		runID, status, int32(recordsExported), errText)
	if err != nil {
		return fmt.Errorf("failed to complete export run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("export run %s not found", runID)
	}
	return nil
}
