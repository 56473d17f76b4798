package repository

import (
	"database/sql"

	"github.com/mobilehr/bpm-bridge/internal/models"
	"go.uber.org/zap"
)

// SyncLogRepository handles the append-only synchronization audit trail.
// Rows are never updated.
type SyncLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSyncLogRepository creates a sync log repository.
func NewSyncLogRepository(db *sql.DB, logger *zap.Logger) *SyncLogRepository {
	return &SyncLogRepository{db: db, logger: logger}
}

func (r *SyncLogRepository) execer(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.db
}

// Append records one synchronization attempt.
func (r *SyncLogRepository) Append(tx *sql.Tx, formID, syncType, syncStatus, detail string) error {
	_, err := r.execer(tx).Exec(`
		INSERT INTO bpm_form_sync_logs (form_id, sync_type, sync_status, detail)
		VALUES (?, ?, ?, ?)`,
		formID, syncType, syncStatus, detail)
	if err != nil {
		r.logger.Error("Failed to append sync log",
			zap.String("form_id", formID),
			zap.String("sync_type", syncType),
			zap.Error(err))
		return persistErr("append sync log", err)
	}
	return nil
}

// ListByFormID returns the sync trail for one form, newest first.
func (r *SyncLogRepository) ListByFormID(formID string) ([]*models.SyncLog, error) {
	rows, err := r.db.Query(`
		SELECT id, form_id, sync_type, sync_status, detail, sync_time
		FROM bpm_form_sync_logs
		WHERE form_id = ?
		ORDER BY sync_time DESC, id DESC`, formID)
	if err != nil {
		r.logger.Error("Failed to list sync logs",
			zap.String("form_id", formID), zap.Error(err))
		return nil, persistErr("list sync logs", err)
	}
	defer rows.Close()

	var logs []*models.SyncLog
	for rows.Next() {
		var l models.SyncLog
		if err := rows.Scan(&l.ID, &l.FormID, &l.SyncType, &l.SyncStatus,
			&l.Detail, &l.SyncTime); err != nil {
			return nil, persistErr("scan sync log", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list sync logs", err)
	}
	return logs, nil
}
