package models

import "time"

// ApprovalAction is the outcome of one signing event.
const (
	ActionApproved  = "APPROVED"
	ActionRejected  = "REJECTED"
	ActionForwarded = "FORWARDED"
)

// ApprovalEntry is one signing event for a form. Entries are append-only and
// naturally keyed by (FormID, ApproverID, ActionTime).
type ApprovalEntry struct {
	ID         int64     `json:"id"`
	FormID     string    `json:"form_id"`
	ApproverID string    `json:"approver_id"`
	Action     string    `json:"action"`
	Comment    string    `json:"comment"`
	ActionTime time.Time `json:"action_time"`
	CreatedAt  time.Time `json:"created_at"`
}
