// Package repository is the access layer for the local form mirror: form
// headers, sub-form details, approval history and the sync audit trail.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mobilehr/bpm-bridge/internal/models"
	"github.com/mobilehr/bpm-bridge/pkg/database"
	"go.uber.org/zap"
)

// Store bundles the mirror repositories and provides the transactional
// compounds the sync engine and lifecycle coordinator rely on. Every compound
// that writes business data also writes its sync-log row in the same
// transaction, so the audit trail never claims a write that did not commit.
type Store struct {
	db       *database.DB
	Forms    *FormRepository
	History  *HistoryRepository
	SyncLogs *SyncLogRepository
	logger   *zap.Logger
}

// NewStore creates the mirror store.
func NewStore(db *database.DB, logger *zap.Logger) *Store {
	return &Store{
		db:       db,
		Forms:    NewFormRepository(db.DB, logger),
		History:  NewHistoryRepository(db.DB, logger),
		SyncLogs: NewSyncLogRepository(db.DB, logger),
		logger:   logger,
	}
}

// GetForm retrieves a mirrored form header. Returns nil, nil when absent.
func (s *Store) GetForm(formID string) (*models.Form, error) {
	return s.Forms.GetByID(formID)
}

// UpsertForm writes the form header, its matching sub-form row, any approval
// history and the success sync-log entry in one atomic unit. Idempotent on
// FormID: repeating the same payload leaves the mirror unchanged.
func (s *Store) UpsertForm(ctx context.Context, form *models.Form, sub models.SubForm,
	history []*models.ApprovalEntry, syncType, detail string) error {

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.Forms.Upsert(tx, form, sub); err != nil {
			return err
		}
		if len(history) > 0 {
			if err := s.History.Append(tx, history); err != nil {
				return err
			}
		}
		return s.SyncLogs.Append(tx, form.FormID, syncType, models.SyncStatusSuccess, detail)
	})
	if err != nil {
		if IsPersistence(err) {
			return err
		}
		return persistErr("upsert form transaction", err)
	}
	return nil
}

// UpdateStatusLogged overwrites one form's status and appends the
// STATUS_UPDATE sync-log row in the same transaction.
func (s *Store) UpdateStatusLogged(ctx context.Context, formID, status, note string) error {
	detail := fmt.Sprintf("status -> %s", status)
	if note != "" {
		detail = fmt.Sprintf("%s (%s)", detail, note)
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.Forms.UpdateStatus(tx, formID, status); err != nil {
			return err
		}
		return s.SyncLogs.Append(tx, formID, models.SyncTypeStatusUpdate, models.SyncStatusSuccess, detail)
	})
	if err != nil {
		if IsPersistence(err) {
			return err
		}
		return persistErr("update status transaction", err)
	}
	return nil
}

// MarkCancelledLogged sets the one-way cancellation flag and logs the attempt
// in the same transaction.
func (s *Store) MarkCancelledLogged(ctx context.Context, formID, detail string) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.Forms.MarkCancelled(tx, formID); err != nil {
			return err
		}
		return s.SyncLogs.Append(tx, formID, models.SyncTypeCancel, models.SyncStatusSuccess, detail)
	})
	if err != nil {
		if IsPersistence(err) {
			return err
		}
		return persistErr("mark cancelled transaction", err)
	}
	return nil
}

// AppendSyncLog records a synchronization attempt outside any business write.
// Used for failure outcomes and for remote acknowledgments that precede the
// local mirror update.
func (s *Store) AppendSyncLog(formID, syncType, syncStatus, detail string) error {
	return s.SyncLogs.Append(nil, formID, syncType, syncStatus, detail)
}

// DeleteForm removes the whole aggregate for one form id. Administrative
// entry point; absent forms are a no-op.
func (s *Store) DeleteForm(ctx context.Context, formID string) error {
	form, err := s.Forms.GetByID(formID)
	if err != nil {
		return err
	}
	if form == nil {
		return nil
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return s.Forms.Delete(tx, form)
	})
	if err != nil {
		if IsPersistence(err) {
			return err
		}
		return persistErr("delete form transaction", err)
	}
	s.logger.Info("Form aggregate deleted", zap.String("form_id", formID))
	return nil
}
