// Package sync pulls authoritative process state from the BPM middleware into
// the local mirror. Pulls are request-triggered and safely repeatable; there
// is no scheduler and no internal retry.
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/mobilehr/bpm-bridge/internal/bpm"
	"github.com/mobilehr/bpm-bridge/internal/models"
	"go.uber.org/zap"
)

// ProcessReader is the slice of the BPM client the engine needs.
type ProcessReader interface {
	QueryProcessInfo(ctx context.Context, processSerialNo, processCode string) (*bpm.ProcessInfo, error)
	QueryWorkItems(ctx context.Context, uid string) ([]bpm.WorkItem, error)
}

// Mirror is the slice of the local store the engine needs.
type Mirror interface {
	GetForm(formID string) (*models.Form, error)
	UpsertForm(ctx context.Context, form *models.Form, sub models.SubForm,
		history []*models.ApprovalEntry, syncType, detail string) error
	AppendSyncLog(formID, syncType, syncStatus, detail string) error
}

// PullOutcome is the result of one pull attempt.
type PullOutcome string

const (
	// OutcomeSynced means the mirror now reflects the remote state.
	OutcomeSynced PullOutcome = "SYNCED"
	// OutcomeNotFound means the middleware does not know the process. Not a
	// failure; pollers decide whether to retry.
	OutcomeNotFound PullOutcome = "NOT_FOUND"
)

// Engine is the pull path: fetch one remote process, map it, upsert it.
type Engine struct {
	client ProcessReader
	store  Mirror
	logger *zap.Logger
}

// NewEngine creates a sync engine.
func NewEngine(client ProcessReader, store Mirror, logger *zap.Logger) *Engine {
	return &Engine{client: client, store: store, logger: logger}
}

// PullForm fetches the authoritative remote representation of one process and
// upserts it into the mirror. Idempotent on the serial number; callers may
// re-invoke on transient failure without risk of duplication.
func (e *Engine) PullForm(ctx context.Context, processSerialNo, formCode string) (PullOutcome, error) {
	formType, ok := models.FormTypeFromCode(formCode)
	if !ok {
		return "", mappingErr(processSerialNo, "unknown form code %q", formCode)
	}

	info, err := e.client.QueryProcessInfo(ctx, processSerialNo, formCode)
	if err != nil {
		if errors.Is(err, bpm.ErrProcessNotFound) {
			e.logger.Debug("Process absent on remote",
				zap.String("process_serial_no", processSerialNo))
			return OutcomeNotFound, nil
		}
		e.logSyncFailure(processSerialNo, models.SyncTypeStatusUpdate, fmt.Sprintf("remote fetch failed: %v", err))
		return "", err
	}

	form, sub, history, err := mapProcess(info, formType)
	if err != nil {
		e.logger.Error("Remote payload does not match form type",
			zap.String("process_serial_no", processSerialNo),
			zap.String("form_code", formCode),
			zap.Error(err))
		e.logSyncFailure(processSerialNo, models.SyncTypeStatusUpdate, err.Error())
		return "", err
	}

	existing, err := e.store.GetForm(form.FormID)
	if err != nil {
		e.logSyncFailure(form.FormID, models.SyncTypeStatusUpdate,
			fmt.Sprintf("local mirror read failed: %v", err))
		return "", err
	}
	syncType := models.SyncTypeStatusUpdate
	detail := fmt.Sprintf("status refresh from remote (status=%s)", form.Status)
	if existing == nil {
		syncType = models.SyncTypeInitialPull
		detail = "initial pull from remote"
	}

	if err := e.store.UpsertForm(ctx, form, sub, history, syncType, detail); err != nil {
		e.logSyncFailure(form.FormID, syncType, fmt.Sprintf("local upsert failed: %v", err))
		return "", err
	}

	e.logger.Info("Form synchronized",
		zap.String("form_id", form.FormID),
		zap.String("form_type", string(form.FormType)),
		zap.String("status", form.Status),
		zap.String("sync_type", syncType))
	return OutcomeSynced, nil
}

// WorkItemResult is the per-item outcome of a work-item fan-out pull.
type WorkItemResult struct {
	ProcessSerialNo string      `json:"process_serial_no"`
	ProcessCode     string      `json:"process_code"`
	Outcome         PullOutcome `json:"outcome,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// PullWorkItems refreshes the mirror for every pending work item of one user.
// A manual, request-triggered reconcile entry point; per-item failures do not
// stop the batch.
func (e *Engine) PullWorkItems(ctx context.Context, uid string) ([]WorkItemResult, error) {
	items, err := e.client.QueryWorkItems(ctx, uid)
	if err != nil {
		return nil, err
	}

	results := make([]WorkItemResult, 0, len(items))
	for _, item := range items {
		result := WorkItemResult{
			ProcessSerialNo: item.ProcessSerialNumber,
			ProcessCode:     item.ProcessCode,
		}

		if _, known := models.FormTypeFromCode(item.ProcessCode); !known {
			result.Error = fmt.Sprintf("unknown form code %q", item.ProcessCode)
			e.logger.Warn("Skipping work item with unknown form code",
				zap.String("process_serial_no", item.ProcessSerialNumber),
				zap.String("process_code", item.ProcessCode))
			results = append(results, result)
			continue
		}

		outcome, err := e.PullForm(ctx, item.ProcessSerialNumber, item.ProcessCode)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Outcome = outcome
		}
		results = append(results, result)
	}
	return results, nil
}

// logSyncFailure appends a FAILED audit row. Best-effort: if even the log
// write fails there is nothing left to record to, so it only goes to the
// structured log.
func (e *Engine) logSyncFailure(formID, syncType, detail string) {
	if err := e.store.AppendSyncLog(formID, syncType, models.SyncStatusFailed, detail); err != nil {
		e.logger.Error("Failed to record sync failure",
			zap.String("form_id", formID), zap.Error(err))
	}
}
