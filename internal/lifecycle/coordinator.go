// Package lifecycle drives the client-visible form operations that must touch
// both the remote BPM engine and the local mirror. Order is fixed: remote
// first, local second. BPM is authoritative; once it acknowledges a mutation
// the operation has succeeded for the caller, and a failed local follow-up is
// degraded service recorded in the sync trail, not a user-facing failure.
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/mobilehr/bpm-bridge/internal/bpm"
	"github.com/mobilehr/bpm-bridge/internal/models"
	"github.com/mobilehr/bpm-bridge/internal/sync"
	"go.uber.org/zap"
)

// Outer response codes. 203 separates "understood but rejected" from 500
// "the system itself failed".
const (
	CodeOK       = 200
	CodeRejected = 203
	CodeError    = 500
)

// Outcome is the caller-facing result of a lifecycle operation. Every
// operation returns an Outcome; errors never escape the coordinator.
type Outcome struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	FormID        string `json:"form_id,omitempty"`
	AlreadyClosed bool   `json:"already_closed,omitempty"`
}

// Substrings in a remote abort failure message that mean the process was
// already terminated or withdrawn on the BPM side.
var alreadyClosedMarkers = []string{"terminated", "aborted", "已結束", "已撤回"}

// ProcessClient is the slice of the BPM client the coordinator mutates through.
type ProcessClient interface {
	InvokeProcess(ctx context.Context, req bpm.InvokeRequest) (*bpm.InvokeResult, error)
	AbortProcesses(ctx context.Context, items []bpm.AbortItem) ([]bpm.AbortResult, error)
}

// Mirror is the slice of the local store the coordinator writes.
type Mirror interface {
	GetForm(formID string) (*models.Form, error)
	UpdateStatusLogged(ctx context.Context, formID, status, note string) error
	MarkCancelledLogged(ctx context.Context, formID, detail string) error
	AppendSyncLog(formID, syncType, syncStatus, detail string) error
}

// Puller seeds the mirror after a successful submission.
type Puller interface {
	PullForm(ctx context.Context, processSerialNo, formCode string) (sync.PullOutcome, error)
}

// Coordinator executes submit, withdraw and cancel against BPM and the mirror.
type Coordinator struct {
	client ProcessClient
	store  Mirror
	puller Puller
	logger *zap.Logger
}

// NewCoordinator creates a lifecycle coordinator.
func NewCoordinator(client ProcessClient, store Mirror, puller Puller, logger *zap.Logger) *Coordinator {
	return &Coordinator{client: client, store: store, puller: puller, logger: logger}
}

// Withdraw aborts a running process on the BPM side and then updates the
// mirror. The outer outcome reflects only the remote result: a local mirror
// failure after remote acknowledgment is logged and the caller still gets 200.
func (c *Coordinator) Withdraw(ctx context.Context, uid, formID, comment string) Outcome {
	results, err := c.client.AbortProcesses(ctx, []bpm.AbortItem{{
		ProcessInstanceSerialNo: formID,
		UserID:                  uid,
		AbortComment:            comment,
	}})
	if err != nil {
		c.logSync(formID, models.SyncTypeWithdraw, models.SyncStatusFailed,
			fmt.Sprintf("remote abort failed: %v", err))
		return c.remoteFailureOutcome(formID, err)
	}

	if len(results) == 0 || !results[0].Success {
		message := "abort rejected by BPM"
		if len(results) > 0 && results[0].Message != "" {
			message = results[0].Message
		}
		c.logSync(formID, models.SyncTypeWithdraw, models.SyncStatusFailed,
			fmt.Sprintf("remote abort rejected: %s", message))

		if isAlreadyClosed(message) {
			return Outcome{
				Code:          CodeRejected,
				Message:       "process is already closed or withdrawn",
				FormID:        formID,
				AlreadyClosed: true,
			}
		}
		return Outcome{Code: CodeRejected, Message: message, FormID: formID}
	}

	// Remote state is withdrawn from here on. Record the acknowledgment
	// before touching the mirror so the trail survives a local outage.
	c.logSync(formID, models.SyncTypeWithdraw, models.SyncStatusSuccess, "remote abort acknowledged")

	if err := c.store.UpdateStatusLogged(ctx, formID, models.StatusWithdrawn, comment); err != nil {
		c.logger.Error("Mirror status update failed after remote withdraw",
			zap.String("form_id", formID), zap.Error(err))
		c.logSync(formID, models.SyncTypeStatusUpdate, models.SyncStatusFailed,
			fmt.Sprintf("local mirror update failed after remote withdraw: %v", err))
	}
	if err := c.store.MarkCancelledLogged(ctx, formID, "withdrawn by applicant"); err != nil {
		c.logger.Error("Mirror cancellation flag update failed after remote withdraw",
			zap.String("form_id", formID), zap.Error(err))
		c.logSync(formID, models.SyncTypeCancel, models.SyncStatusFailed,
			fmt.Sprintf("local cancellation flag update failed: %v", err))
	}

	return Outcome{Code: CodeOK, Message: "process withdrawn", FormID: formID}
}

// SubmitRequest describes a new process submission.
type SubmitRequest struct {
	UserID         string
	CompanyID      string
	FormType       models.FormType
	Subject        string
	Fields         map[string]string
	HasAttachments bool
}

// Submit starts a new process instance. Success is determined solely by the
// remote status; the returned serial number is used to seed the mirror
// best-effort and is reported back to the caller when present.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) Outcome {
	processCode := req.FormType.ProcessCode()
	if processCode == "" {
		return Outcome{Code: CodeRejected, Message: fmt.Sprintf("unsupported form type %q", req.FormType)}
	}

	result, err := c.client.InvokeProcess(ctx, bpm.InvokeRequest{
		ProcessCode:    processCode,
		FormDataMap:    req.Fields,
		UserID:         req.UserID,
		Subject:        req.Subject,
		HasAttachments: req.HasAttachments,
	})
	if err != nil {
		// No form id exists yet, so there is nothing to log against.
		return c.remoteFailureOutcome("", err)
	}

	serialNo := result.ProcessSerialNo
	if serialNo != "" {
		c.logSync(serialNo, models.SyncTypeSubmit, models.SyncStatusSuccess,
			fmt.Sprintf("process invoked (oid=%s)", result.ProcessOid))

		if _, err := c.puller.PullForm(ctx, serialNo, processCode); err != nil {
			c.logger.Warn("Initial pull after submit failed; mirror will catch up on next sync",
				zap.String("form_id", serialNo), zap.Error(err))
		}
	}

	return Outcome{Code: CodeOK, Message: "process submitted", FormID: serialNo}
}

// CancelLeave submits a cancellation process for an approved leave form and,
// on remote success, sets the original form's one-way cancellation flag.
func (c *Coordinator) CancelLeave(ctx context.Context, uid, originalFormID, reason string) Outcome {
	original, err := c.store.GetForm(originalFormID)
	if err != nil {
		return Outcome{Code: CodeError, Message: "failed to read local mirror", FormID: originalFormID}
	}
	if original == nil {
		return Outcome{Code: CodeRejected, Message: "leave form not found", FormID: originalFormID}
	}
	if original.FormType != models.FormTypeLeave {
		return Outcome{Code: CodeRejected, Message: "form is not a leave form", FormID: originalFormID}
	}

	outcome := c.Submit(ctx, SubmitRequest{
		UserID:    uid,
		CompanyID: original.CompanyID,
		FormType:  models.FormTypeCancelLeave,
		Subject:   "Cancel leave " + originalFormID,
		Fields: map[string]string{
			"originalFormId": originalFormID,
			"reason":         reason,
		},
	})
	if outcome.Code != CodeOK {
		return outcome
	}

	// Remote accepted the cancellation; flip the flag regardless of the
	// original form's status. Local failure degrades, it does not reject.
	if err := c.store.MarkCancelledLogged(ctx, originalFormID, "cancel leave "+outcome.FormID); err != nil {
		c.logger.Error("Failed to mark original leave form cancelled",
			zap.String("form_id", originalFormID), zap.Error(err))
		c.logSync(originalFormID, models.SyncTypeCancel, models.SyncStatusFailed,
			fmt.Sprintf("local cancellation flag update failed: %v", err))
	}

	outcome.Message = "leave cancellation submitted"
	return outcome
}

// remoteFailureOutcome maps a client error to the fixed outer code set:
// transport problems and malformed replies are 500, remote business
// rejections are 203.
func (c *Coordinator) remoteFailureOutcome(formID string, err error) Outcome {
	if bpm.IsTransport(err) {
		return Outcome{
			Code:    CodeError,
			Message: "BPM system timeout or connection failure",
			FormID:  formID,
		}
	}
	if bpm.IsProtocolFailure(err) {
		// The middleware malfunctioned; nothing was rejected on business
		// grounds.
		return Outcome{
			Code:    CodeError,
			Message: "BPM system returned an invalid response",
			FormID:  formID,
		}
	}
	if bpm.IsRemote(err) {
		message := err.Error()
		if isAlreadyClosed(message) {
			return Outcome{
				Code:          CodeRejected,
				Message:       "process is already closed or withdrawn",
				FormID:        formID,
				AlreadyClosed: true,
			}
		}
		return Outcome{Code: CodeRejected, Message: message, FormID: formID}
	}
	return Outcome{Code: CodeError, Message: "unexpected error: " + err.Error(), FormID: formID}
}

// logSync appends to the audit trail when a form id is known. Best-effort.
func (c *Coordinator) logSync(formID, syncType, syncStatus, detail string) {
	if formID == "" {
		return
	}
	if err := c.store.AppendSyncLog(formID, syncType, syncStatus, detail); err != nil {
		c.logger.Error("Failed to append sync log",
			zap.String("form_id", formID),
			zap.String("sync_type", syncType),
			zap.Error(err))
	}
}

func isAlreadyClosed(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range alreadyClosedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
