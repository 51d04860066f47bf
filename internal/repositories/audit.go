package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/shared"
)

// AuditRepository persists [models.AuditEntry] records.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new [AuditRepository] with the given database connection
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts an entry, assigning its ID, sequence and (when unset) timestamp.
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(ctx, tx, "audit_log")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO audit_log (id, sequence, action, username, target, remote_addr, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := tx.ExecContext(ctx, query, id, sequence, string(entry.Action), entry.Username, entry.Target,
		entry.RemoteAddr, entry.Detail, entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit entry: %w", err)
	}

	entry.ID, entry.Sequence = id, sequence
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	query := `
		SELECT id, sequence, action, username, target, remote_addr, detail, created_at
		FROM audit_log
		ORDER BY sequence DESC
		LIMIT ?
	`
	return r.query(ctx, query, limit)
}

// ByUser returns up to limit entries for username, newest first.
func (r *AuditRepository) ByUser(ctx context.Context, username string, limit int) ([]models.AuditEntry, error) {
	query := `
		SELECT id, sequence, action, username, target, remote_addr, detail, created_at
		FROM audit_log
		WHERE username = ?
		ORDER BY sequence DESC
		LIMIT ?
	`
	return r.query(ctx, query, username, limit)
}

// Prune deletes entries created before cutoff and returns how many were removed.
func (r *AuditRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM audit_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func (r *AuditRepository) query(ctx context.Context, query string, args ...any) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e      models.AuditEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.Sequence, &action, &e.Username, &e.Target, &e.RemoteAddr, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = models.AuditAction(action)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
