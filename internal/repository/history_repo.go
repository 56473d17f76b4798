package repository

import (
	"database/sql"

	"github.com/mobilehr/bpm-bridge/internal/models"
	"go.uber.org/zap"
)

// HistoryRepository handles the append-only approval history table.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a history repository.
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

func (r *HistoryRepository) execer(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.db
}

// Append inserts signing events, skipping any already present for the same
// (form, approver, action time). Re-pulling a process therefore never
// duplicates history.
func (r *HistoryRepository) Append(tx *sql.Tx, entries []*models.ApprovalEntry) error {
	ex := r.execer(tx)
	for _, e := range entries {
		_, err := ex.Exec(`
			INSERT OR IGNORE INTO bpm_form_approval_history
				(form_id, approver_id, action, comment, action_time)
			VALUES (?, ?, ?, ?, ?)`,
			e.FormID, e.ApproverID, e.Action, e.Comment, e.ActionTime)
		if err != nil {
			r.logger.Error("Failed to append approval entry",
				zap.String("form_id", e.FormID),
				zap.String("approver_id", e.ApproverID),
				zap.Error(err))
			return persistErr("append approval history", err)
		}
	}
	return nil
}

// GetByFormID returns a form's signing events ordered by action time.
func (r *HistoryRepository) GetByFormID(formID string) ([]*models.ApprovalEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, form_id, approver_id, action, comment, action_time, created_at
		FROM bpm_form_approval_history
		WHERE form_id = ?
		ORDER BY action_time ASC`, formID)
	if err != nil {
		r.logger.Error("Failed to get approval history",
			zap.String("form_id", formID), zap.Error(err))
		return nil, persistErr("get approval history", err)
	}
	defer rows.Close()

	var entries []*models.ApprovalEntry
	for rows.Next() {
		var e models.ApprovalEntry
		if err := rows.Scan(&e.ID, &e.FormID, &e.ApproverID, &e.Action,
			&e.Comment, &e.ActionTime, &e.CreatedAt); err != nil {
			return nil, persistErr("scan approval entry", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("get approval history", err)
	}
	return entries, nil
}
