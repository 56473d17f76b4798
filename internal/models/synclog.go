package models

import "time"

// Sync types recorded in the audit trail.
const (
	SyncTypeInitialPull  = "INITIAL_PULL"
	SyncTypeStatusUpdate = "STATUS_UPDATE"
	SyncTypeWithdraw     = "WITHDRAW"
	SyncTypeSubmit       = "SUBMIT"
	SyncTypeCancel       = "CANCEL"
)

// Sync outcomes.
const (
	SyncStatusSuccess = "SUCCESS"
	SyncStatusFailed  = "FAILED"
)

// SyncLog is one synchronization attempt against a form. Rows are insert-only;
// the trail is the only place local/remote drift becomes visible.
type SyncLog struct {
	ID         int64     `json:"id"`
	FormID     string    `json:"form_id"`
	SyncType   string    `json:"sync_type"`
	SyncStatus string    `json:"sync_status"`
	Detail     string    `json:"detail"`
	SyncTime   time.Time `json:"sync_time"`
}
